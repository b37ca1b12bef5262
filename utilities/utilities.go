package utilities

import (
	"os"
	"path/filepath"
)

// CreateNonBlockingSender returns a send function that never blocks: when
// ch is full the pending values are dropped and only the newest is kept.
func CreateNonBlockingSender[T any](ch chan T) func(T) {
	return func(msg T) {
		select {
		case ch <- msg:
		default:
			drainChannel(ch)
			select {
			case ch <- msg:
			default:
				// Channel is still full, message dropped
			}
		}
	}
}

func drainChannel[T any](ch chan T) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// ConfigPath returns the path of file inside the goclock config directory.
// XDG_CONFIG_HOME wins over the platform default.
func ConfigPath(file string) (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "goclock", file), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "goclock", file), nil
}
