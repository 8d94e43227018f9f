package logger

import (
	"os"
	"path/filepath"
	"testing"

	"math-dash-service/internal/config"

	"go.uber.org/zap/zapcore"
)

func TestNewWritesRotatedFile(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "debug"
	cfg.Log.File = filepath.Join(t.TempDir(), "game.log")

	log := New(cfg)
	log.Debug("round started")
	_ = log.Sync()

	data, err := os.ReadFile(cfg.Log.File)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log output in file")
	}
}

func TestNewFallsBackToInfoOnUnknownLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "chatty"

	log := New(cfg)
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug should be disabled")
	}
	if !log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be enabled")
	}
}
