package roster

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the NPC roster loaded from npcs.yaml. It decides which NPCs
// exist in the world, who they are, and what they start with.
type Config struct {
	Npcs []NpcSpec `yaml:"npcs"`
}

type NpcSpec struct {
	Name       string         `yaml:"name"`
	Occupation string         `yaml:"occupation"`
	Backstory  string         `yaml:"backstory"`
	Pos        [2]float64     `yaml:"pos"`
	Inventory  map[string]int `yaml:"inventory,omitempty"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg = Config{}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("npcs.yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("npcs.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Npcs: []NpcSpec{
			{
				Name:       "Hank",
				Occupation: "Blacksmith",
				Backstory:  "Hank is a well respected blacksmith in the Kingdom of Veldora.",
				Pos:        [2]float64{1.5, 0},
				Inventory:  map[string]int{"Steel Sword": 5, "Gold Coin": 30},
			},
		},
	}
}

func (c Config) Validate() error {
	if len(c.Npcs) == 0 {
		return fmt.Errorf("no npcs defined")
	}
	seen := map[string]struct{}{}
	for _, n := range c.Npcs {
		if strings.TrimSpace(n.Name) == "" {
			return fmt.Errorf("npc with empty name")
		}
		if _, dup := seen[n.Name]; dup {
			return fmt.Errorf("duplicate npc name %q", n.Name)
		}
		seen[n.Name] = struct{}{}
		if n.Occupation == "" {
			return fmt.Errorf("npc %s: empty occupation", n.Name)
		}
		for item, count := range n.Inventory {
			if count <= 0 {
				return fmt.Errorf("npc %s: non-positive count for %q", n.Name, item)
			}
		}
	}
	return nil
}
