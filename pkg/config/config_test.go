package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidateRejectsNoClassifiersEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HMM.Enabled = false
	cfg.Entropy.Enabled = false
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when neither hmm nor entropy is enabled")
	}
}

func TestValidateRejectsMissingModelInSimpleMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeSimple
	cfg.Model.Filename = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing model filename in SIMPLE mode")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Reject.Threshold = -1.5
	cfg.Entropy.WindowWidths = []int{32, 512}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Reject.Threshold != cfg.Reject.Threshold {
		t.Fatalf("reject.threshold mismatch: got %v want %v", loaded.Reject.Threshold, cfg.Reject.Threshold)
	}
	if len(loaded.Entropy.WindowWidths) != 2 || loaded.Entropy.WindowWidths[1] != 512 {
		t.Fatalf("entropy.window_widths mismatch: got %v", loaded.Entropy.WindowWidths)
	}
}
