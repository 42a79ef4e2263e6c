package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stars-engine/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	if err := Init(config.LogConfig{Level: "debug", File: path, MaxMB: 1}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer Close()

	log.Info().Str("purchase_id", "p_1").Msg("committed")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"purchase_id":"p_1"`) {
		t.Fatalf("log file missing entry: %s", raw)
	}
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("level = %v, want debug", zerolog.GlobalLevel())
	}
}

func TestInitFallsBackToInfo(t *testing.T) {
	if err := Init(config.LogConfig{Level: "loud"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("level = %v, want info", zerolog.GlobalLevel())
	}
	if Writer() != os.Stdout {
		t.Fatal("Writer() should be stdout without a log file")
	}
}
