package config

import "testing"

func TestConfigUseRequiresExistingPreset(t *testing.T) {
	c := &Config{Presets: map[string]Preset{}}
	if err := c.Use("missing"); err == nil {
		t.Fatalf("expected error selecting an undefined preset")
	}
}

func TestConfigSetThenUse(t *testing.T) {
	c := &Config{Presets: map[string]Preset{}}
	c.Set("bench", Preset{Topology: "fc_n=8_alpha=1_beta=1", Synthesizer: "greedy_tacos"})
	if err := c.Use("bench"); err != nil {
		t.Fatalf("use: %v", err)
	}
	name, preset, ok := c.Current()
	if !ok || name != "bench" || preset.Synthesizer != "greedy_tacos" {
		t.Fatalf("Current() = %v, %v, %v", name, preset, ok)
	}
}

func TestConfigRemoveClearsCurrentPreset(t *testing.T) {
	c := &Config{Presets: map[string]Preset{"bench": {}}, CurrentPreset: "bench"}
	if err := c.Remove("bench"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if c.CurrentPreset != "" {
		t.Fatalf("expected current preset to be cleared")
	}
}

func TestPresetEffectiveDefaults(t *testing.T) {
	p := Preset{}
	if p.EffectiveCollectivesCount() != 1 {
		t.Fatalf("EffectiveCollectivesCount() = %d, want 1", p.EffectiveCollectivesCount())
	}
	if p.EffectiveChunkSize() <= 0 {
		t.Fatalf("EffectiveChunkSize() should default to a positive value")
	}
}
