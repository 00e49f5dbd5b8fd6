package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded is the effective configuration plus where it came from.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
	// Overrides names the environment variables applied over the file.
	Overrides []string
}

// Load resolves the config path, parses the file when present, and applies
// environment overrides. A missing file is not an error.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: path, Exists: true}
	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Exists = false
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, warnings, err := Parse(string(content), Default())
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	if overrides := applyEnv(&cfg, os.LookupEnv); len(overrides) > 0 {
		warnings, err = Validate(cfg)
		if err != nil {
			return Loaded{}, fmt.Errorf("apply environment overrides %v: %w", overrides, err)
		}
		loaded.Overrides = overrides
	}

	if !loaded.Exists {
		warnings = append([]Warning{{
			Message: fmt.Sprintf("config file %q not found; using defaults", path),
		}}, warnings...)
	}

	loaded.Config = cfg
	loaded.Warnings = warnings
	return loaded, nil
}
