package config

import "testing"

func TestLoadLogDefaults(t *testing.T) {
	cfg, err := LoadLog()
	if err != nil {
		t.Fatalf("LoadLog() error = %v", err)
	}
	if cfg.Level != "info" || cfg.Service != "stars-engine" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxMB != 10 {
		t.Fatalf("MaxMB = %d, want 10", cfg.MaxMB)
	}
}

func TestLoadLogParse(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("LOG_SAMPLE_EVERY", "4")

	cfg, err := LoadLog()
	if err != nil {
		t.Fatalf("LoadLog() error = %v", err)
	}
	if cfg.Level != "debug" || !cfg.Pretty || cfg.SampleEvery != 4 {
		t.Fatalf("unexpected log config: %+v", cfg)
	}
}
