package world

import (
	"encoding/json"
	"sort"
)

// Ledger is a per-actor mapping from item name to held quantity.
// Identity is the canonical item name: two goods with the same name are
// the same stockable good regardless of any other item fields. Entries
// are always positive; removing the last unit deletes the entry.
type Ledger struct {
	items map[string]int
}

func NewLedger() *Ledger {
	return &Ledger{items: map[string]int{}}
}

// Add merges amount into the named entry, creating it if absent.
// Non-positive amounts are rejected.
func (l *Ledger) Add(name string, amount int) bool {
	if name == "" || amount <= 0 {
		return false
	}
	l.items[name] += amount
	return true
}

// Remove takes amount from the named entry. It fails atomically, with no
// mutation, when the item is absent or current stock is below amount.
func (l *Ledger) Remove(name string, amount int) bool {
	if amount <= 0 {
		return false
	}
	cur, ok := l.items[name]
	if !ok || cur < amount {
		return false
	}
	if cur == amount {
		delete(l.items, name)
	} else {
		l.items[name] = cur - amount
	}
	return true
}

func (l *Ledger) Count(name string) int { return l.items[name] }

func (l *Ledger) Len() int { return len(l.items) }

// Items returns a copy; the live map never leaves the tick goroutine.
func (l *Ledger) Items() map[string]int {
	out := make(map[string]int, len(l.items))
	for k, v := range l.items {
		out[k] = v
	}
	return out
}

type wireEntry struct {
	Item   string `json:"item"`
	Amount int    `json:"amount"`
}

// WireSnapshot serializes the ledger as the inventory document appended
// to outgoing protocol payloads. Entries are sorted by name so the same
// stock always encodes to the same bytes.
func (l *Ledger) WireSnapshot() string {
	names := make([]string, 0, len(l.items))
	for name := range l.items {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]wireEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, wireEntry{Item: name, Amount: l.items[name]})
	}
	doc := struct {
		NpcInventory []wireEntry `json:"npc_inventory"`
	}{NpcInventory: entries}
	b, _ := json.Marshal(doc)
	return string(b)
}
