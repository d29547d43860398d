package roster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRoster(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "npcs.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Npcs) == 0 {
		t.Fatalf("defaults have no npcs")
	}
	if cfg.Npcs[0].Name != "Hank" || cfg.Npcs[0].Occupation != "Blacksmith" {
		t.Fatalf("default roster: %+v", cfg.Npcs[0])
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestLoad_Yaml(t *testing.T) {
	path := writeRoster(t, `npcs:
  - name: Mira
    occupation: Baker
    backstory: Mira bakes for the whole village.
    pos: [-1.5, 1.0]
    inventory:
      Bread: 12
      Gold Coin: 8
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Npcs) != 1 {
		t.Fatalf("expected 1 npc, got %d", len(cfg.Npcs))
	}
	mira := cfg.Npcs[0]
	if mira.Name != "Mira" || mira.Occupation != "Baker" {
		t.Fatalf("npc: %+v", mira)
	}
	if mira.Pos != [2]float64{-1.5, 1.0} {
		t.Fatalf("pos: %v", mira.Pos)
	}
	if mira.Inventory["Bread"] != 12 || mira.Inventory["Gold Coin"] != 8 {
		t.Fatalf("inventory: %v", mira.Inventory)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"no npcs", `npcs: []`, "no npcs"},
		{"empty name", "npcs:\n  - name: \"\"\n    occupation: Baker\n", "empty name"},
		{"duplicate", "npcs:\n  - name: Hank\n    occupation: Blacksmith\n  - name: Hank\n    occupation: Baker\n", "duplicate"},
		{"no occupation", "npcs:\n  - name: Hank\n", "empty occupation"},
		{"bad count", "npcs:\n  - name: Hank\n    occupation: Blacksmith\n    inventory:\n      Bread: 0\n", "non-positive count"},
	}
	for _, tc := range cases {
		_, err := Load(writeRoster(t, tc.body))
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}
