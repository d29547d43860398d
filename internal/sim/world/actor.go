package world

import (
	"math"

	"veldora.quest/internal/protocol"
)

type ActorKind int

const (
	KindPlayer ActorKind = iota
	KindNpc
)

// Actor is a player or an NPC. Both own a name and a ledger; NPCs also
// carry a persona and a conversation. Names double as dialogue identity
// and must be unique across the world.
type Actor struct {
	ID   string
	Name string
	Kind ActorKind
	Pos  [2]float64

	Inventory *Ledger

	// NPC only.
	Occupation string
	Backstory  string
	Convo      *Conversation

	Events []protocol.Event
}

func (a *Actor) AddEvent(ev protocol.Event) {
	a.Events = append(a.Events, ev)
}

func (a *Actor) distanceTo(b *Actor) float64 {
	dx := a.Pos[0] - b.Pos[0]
	dy := a.Pos[1] - b.Pos[1]
	return math.Sqrt(dx*dx + dy*dy)
}

func actionResult(t uint64, ref string, ok bool, code, detail string) protocol.Event {
	ev := protocol.Event{"t": t, "type": "ACTION_RESULT", "ref": ref, "ok": ok}
	if code != "" {
		ev["code"] = code
	}
	if detail != "" {
		ev["detail"] = detail
	}
	return ev
}

func chatEvent(t uint64, from, text string) protocol.Event {
	return protocol.Event{"t": t, "type": "CHAT", "from": from, "text": text}
}

func inputEvent(t uint64, enabled bool) protocol.Event {
	return protocol.Event{"t": t, "type": "INPUT", "enabled": enabled}
}
