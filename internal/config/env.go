package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment keys that override file options.
const (
	EnvMessageURL = "CHATDOCK_MESSAGE_URL"
	EnvRecordURL  = "CHATDOCK_RECORD_URL"
	EnvAPIKey     = "CHATDOCK_API_KEY"
	EnvBotName    = "CHATDOCK_BOT_NAME"
	EnvUser       = "CHATDOCK_USER"
)

// LookupFunc resolves one environment key.
type LookupFunc func(string) (string, bool)

// EnvLookup layers a dotenv file under the process environment; process
// values win, matching godotenv.Load semantics without mutating os.Environ.
func EnvLookup(dotenvPath string) (LookupFunc, error) {
	values, err := godotenv.Read(dotenvPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return os.LookupEnv, fmt.Errorf("read %s: %w", dotenvPath, err)
		}
		values = map[string]string{}
	}

	return func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok {
			return value, true
		}
		value, ok := values[key]
		return value, ok
	}, nil
}

// ApplyEnv copies environment overrides into opts.
func ApplyEnv(opts *Options, lookup LookupFunc) []Warning {
	warnings := make([]Warning, 0)

	setString := func(key string, dst **string) {
		if value, ok := lookup(key); ok {
			value = strings.TrimSpace(value)
			*dst = &value
		}
	}
	setString(EnvMessageURL, &opts.MessageURL)
	setString(EnvRecordURL, &opts.RecordURL)
	setString(EnvBotName, &opts.BotName)
	setString(EnvUser, &opts.User)

	if raw, ok := lookup(EnvAPIKey); ok && strings.TrimSpace(raw) != "" {
		var credential map[string]any
		if err := json.Unmarshal([]byte(raw), &credential); err != nil {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("%s ignored: expected a JSON object", EnvAPIKey)})
		} else {
			opts.APIKey = credential
		}
	}

	return warnings
}
