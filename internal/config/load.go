package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded captures resolved config path, resolved values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load reads the options file at the resolved path, layers environment
// overrides from lookup, and resolves the final configuration. Only I/O
// failures other than a missing file are returned as errors.
func Load(explicitPath string, lookup LookupFunc) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	loaded := Loaded{Path: resolvedPath, Exists: true}

	var opts Options
	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Exists = false
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	default:
		var parseWarnings []Warning
		opts, parseWarnings = ParseOptions(string(content))
		loaded.Warnings = append(loaded.Warnings, parseWarnings...)
	}

	loaded.Warnings = append(loaded.Warnings, ApplyEnv(&opts, lookup)...)

	cfg, resolveWarnings := Resolve(opts)
	loaded.Config = cfg
	loaded.Warnings = append(loaded.Warnings, resolveWarnings...)
	return loaded, nil
}
