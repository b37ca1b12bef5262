package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/trbjo/goclock/clocks"
)

//go:embed defaults.json
var bundledDefaults []byte

// Preferences is the on-disk store for the overlay opacities. Every write
// is flushed to the file immediately.
type Preferences struct {
	mu       sync.Mutex
	path     string
	values   map[string]float64
	defaults map[string]float64
}

func parseDefaults(data []byte) (map[string]float64, error) {
	defaults := make(map[string]float64)
	if err := json.Unmarshal(data, &defaults); err != nil {
		return nil, fmt.Errorf("invalid bundled defaults: %w", err)
	}
	for _, key := range []string{clocks.KeyBackgroundAlpha, clocks.KeyFaceAlpha, clocks.KeyHandsAlpha} {
		if _, ok := defaults[key]; !ok {
			return nil, fmt.Errorf("bundled defaults lack %q", key)
		}
	}
	return defaults, nil
}

// LoadPreferences reads path, falling back to the bundled defaults for any
// missing or unreadable value. A missing file is not an error.
func LoadPreferences(path string) (*Preferences, error) {
	defaults, err := parseDefaults(bundledDefaults)
	if err != nil {
		return nil, err
	}

	p := &Preferences{
		path:     path,
		values:   make(map[string]float64, len(defaults)),
		defaults: defaults,
	}
	for k, v := range defaults {
		p.values[k] = v
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, err
	}

	stored := make(map[string]float64)
	if err := json.Unmarshal(data, &stored); err != nil {
		lg.Warn("ignoring invalid preferences file", "path", path, "error", err)
		return p, nil
	}
	for k, v := range stored {
		if _, known := defaults[k]; known {
			p.values[k] = v
		}
	}
	return p, nil
}

func (p *Preferences) Float(key string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[key]
}

func (p *Preferences) SetFloat(key string, value float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, known := p.defaults[key]; !known {
		return fmt.Errorf("unknown preference %q", key)
	}
	p.values[key] = value
	return p.save()
}

// Default returns the bundled default for key.
func (p *Preferences) Default(key string) float64 {
	return p.defaults[key]
}

func (p *Preferences) save() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p.values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0644)
}
