package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/trbjo/goclock/clocks"
)

type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	durationString := d.Duration.String()
	return json.Marshal(durationString)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = duration
	return nil
}

type Config struct {
	FadeStep              float64  `json:"fade_step"`
	FadeInterval          Duration `json:"fade_interval"`
	LogLevel              string   `json:"log_level"`
	PrimaryOutput         string   `json:"primary_output,omitempty"`
	KeepOnWorkspaceSwitch bool     `json:"keep_on_workspace_switch"`

	path string
}

func defaultConfig() *Config {
	return &Config{
		FadeStep:     clocks.DefaultFadeStep,
		FadeInterval: Duration{Duration: clocks.DefaultFadeInterval},
		LogLevel:     "info",
	}
}

func loadConfigFromFile(configPath string) (*Config, error) {
	jsonFile, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer jsonFile.Close()

	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(byteValue, &config); err != nil {
		return nil, err
	}

	config.path = configPath
	return &config, nil
}

func initConfig(configPath string) *Config {
	config, err := loadConfigFromFile(configPath)
	if err != nil {
		lg.Info("Failed to load config, using defaults", "path", configPath, "error", err)
		config = defaultConfig()
		config.path = configPath
		return config
	}

	// Set default values if not specified in the loaded config
	if config.FadeStep <= 0 || config.FadeStep > 1 {
		config.FadeStep = clocks.DefaultFadeStep
	}

	if config.FadeInterval.Duration <= 0 {
		config.FadeInterval.Duration = clocks.DefaultFadeInterval
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	return config
}

// Dump writes the config back to the file it was loaded from.
func (c *Config) Dump() {
	DumpConfig(c.path, c)
}

func DumpConfig(path string, config *Config) {
	lg.Debug("dumping config to disk", "path", path)
	jsonData, err := json.MarshalIndent(config, "", "    ")
	if err != nil {
		lg.Error(err.Error())
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		lg.Error("could not create config dir", "error", err)
		return
	}
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		lg.Error("could not write config", "error", err)
		return
	}
	lg.Debug("wrote config")
}
