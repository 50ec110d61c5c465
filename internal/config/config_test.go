package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	flags := Flags("test")
	if err := flags.Parse(nil); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("Load returned an unexpected error: %v", err)
	}
	if cfg.Database != "wordsub.db" {
		t.Errorf("expected default database path, got %s", cfg.Database)
	}
	if cfg.SessionLimit != 20 {
		t.Errorf("expected default session limit 20, got %d", cfg.SessionLimit)
	}
	if cfg.SessionMaxAge != 72*time.Hour {
		t.Errorf("expected default session max age 72h, got %v", cfg.SessionMaxAge)
	}
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	flags := Flags("test")
	if err := flags.Parse([]string{"--session-limit", "5", "--listen", "0.0.0.0:9999"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("Load returned an unexpected error: %v", err)
	}
	if cfg.SessionLimit != 5 {
		t.Errorf("expected session limit 5, got %d", cfg.SessionLimit)
	}
	if cfg.Listen != "0.0.0.0:9999" {
		t.Errorf("expected overridden listen address, got %s", cfg.Listen)
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("WORDSUB_SESSION_LIMIT", "7")

	flags := Flags("test")
	if err := flags.Parse(nil); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("Load returned an unexpected error: %v", err)
	}
	if cfg.SessionLimit != 7 {
		t.Errorf("expected session limit 7 from the environment, got %d", cfg.SessionLimit)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	flags := Flags("test")
	if err := flags.Parse([]string{"--session-limit", "0"}); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(flags); err == nil {
		t.Error("expected a validation error for a zero session limit")
	}
}
