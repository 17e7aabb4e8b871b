package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// PathEnv names a config file used when --config is not given.
const PathEnv = "CHATDOCK_CONFIG"

// ResolvePath picks the config.jsonc location: the explicit flag, then
// $CHATDOCK_CONFIG, then XDG_CONFIG_HOME, then ~/.config.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	if fromEnv := strings.TrimSpace(os.Getenv(PathEnv)); fromEnv != "" {
		return fromEnv, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "chatdock", "config.jsonc"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", "chatdock", "config.jsonc"), nil
}
