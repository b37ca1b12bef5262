package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/trbjo/goclock/clocks"
)

func TestInitConfigMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	c := initConfig(path)

	if c.FadeStep != clocks.DefaultFadeStep || c.FadeInterval.Duration != clocks.DefaultFadeInterval {
		t.Fatalf("fade = %v/%v, want defaults", c.FadeStep, c.FadeInterval)
	}
	if c.LogLevel != "info" || c.KeepOnWorkspaceSwitch {
		t.Fatalf("unexpected config %+v", c)
	}
	if c.path != path {
		t.Fatalf("path = %q", c.path)
	}
}

func TestInitConfigFillsInvalidFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"fade_step": 3, "fade_interval": "20ms", "primary_output": "DP-1", "keep_on_workspace_switch": true}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	c := initConfig(path)
	if c.FadeStep != clocks.DefaultFadeStep {
		t.Errorf("fade_step = %v, want default", c.FadeStep)
	}
	if c.FadeInterval.Duration != 20*time.Millisecond {
		t.Errorf("fade_interval = %v, want 20ms", c.FadeInterval)
	}
	if c.LogLevel != "info" {
		t.Errorf("log_level = %q, want info", c.LogLevel)
	}
	if c.PrimaryOutput != "DP-1" || !c.KeepOnWorkspaceSwitch {
		t.Errorf("unexpected config %+v", c)
	}
}

func TestInitConfigBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"fade_interval": "soon"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if c := initConfig(path); c.FadeInterval.Duration != clocks.DefaultFadeInterval {
		t.Fatalf("fade_interval = %v, want default", c.FadeInterval)
	}
}

func TestConfigDumpRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	c := initConfig(path)
	c.FadeStep = 0.05
	c.PrimaryOutput = "eDP-1"
	c.Dump()

	loaded, err := loadConfigFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.FadeStep != 0.05 || loaded.PrimaryOutput != "eDP-1" || loaded.FadeInterval.Duration != clocks.DefaultFadeInterval {
		t.Fatalf("loaded %+v", loaded)
	}
}
