package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Item categories.
const (
	CategoryCurrency = "CURRENCY"
	CategoryFood     = "FOOD"
	CategoryWeapon   = "WEAPON"
	CategoryArmor    = "ARMOR"
	CategoryMisc     = "MISC"
)

var knownCategories = map[string]struct{}{
	CategoryCurrency: {},
	CategoryFood:     {},
	CategoryWeapon:   {},
	CategoryArmor:    {},
	CategoryMisc:     {},
}

type Catalogs struct {
	Items ItemCatalog
}

// ItemCatalog is the world's read-only catalog of known goods. Ledger
// identity is the item name, so names must be unique and are matched
// case-sensitively.
type ItemCatalog struct {
	ByName map[string]ItemDef
	Names  []string // sorted
	Digest string   // sha256 of the raw file
}

type ItemDef struct {
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Value       ItemValue `json:"value"`
}

// ItemValue is the trade value expressed in a currency item,
// e.g. {"currency_item":"Gold Coin","amount":25}.
type ItemValue struct {
	CurrencyItem string `json:"currency_item"`
	Amount       int    `json:"amount"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.ByName = map[string]ItemDef{}
	for _, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("items.json: empty name")
		}
		if _, ok := knownCategories[d.Category]; !ok {
			return fmt.Errorf("items.json: %s: unknown category %q", d.Name, d.Category)
		}
		if _, dup := out.ByName[d.Name]; dup {
			return fmt.Errorf("items.json: duplicate name %q", d.Name)
		}
		out.ByName[d.Name] = d
	}

	names := make([]string, 0, len(out.ByName))
	for name := range out.ByName {
		names = append(names, name)
	}
	sort.Strings(names)
	out.Names = names

	// Every trade value must point at a known currency item.
	for _, d := range out.ByName {
		if d.Value.CurrencyItem == "" {
			continue
		}
		cur, ok := out.ByName[d.Value.CurrencyItem]
		if !ok {
			return fmt.Errorf("items.json: %s: value currency %q not in catalog", d.Name, d.Value.CurrencyItem)
		}
		if cur.Category != CategoryCurrency {
			return fmt.Errorf("items.json: %s: value currency %q is not a CURRENCY item", d.Name, d.Value.CurrencyItem)
		}
	}
	return nil
}

// Lookup resolves an item by exact name.
func (c *ItemCatalog) Lookup(name string) (ItemDef, bool) {
	d, ok := c.ByName[name]
	return d, ok
}
