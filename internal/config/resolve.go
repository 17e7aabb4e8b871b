package config

import (
	"fmt"
	"strings"
)

// Resolve overlays opts onto Default. It never fails: malformed values keep
// their defaults and are reported as warnings.
func Resolve(opts Options) (Config, []Warning) {
	cfg := Default()
	warnings := opts.applyTo(&cfg)
	return cfg, warnings
}

func (opts Options) applyTo(cfg *Config) []Warning {
	warnings := make([]Warning, 0)
	warn := func(format string, args ...any) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(format, args...)})
	}

	if opts.Alignment != nil {
		switch alignment := strings.ToLower(strings.TrimSpace(*opts.Alignment)); alignment {
		case AlignLeft, AlignRight:
			cfg.Alignment = alignment
		default:
			warn("alignment %q is not one of left, right; using %q", *opts.Alignment, cfg.Alignment)
		}
	}

	if opts.Padding != nil {
		if *opts.Padding < 0 {
			warn("padding %d is negative; using %d", *opts.Padding, cfg.Padding)
		} else {
			cfg.Padding = *opts.Padding
		}
	}

	setName := func(key string, value *string, dst *string) {
		if value == nil {
			return
		}
		trimmed := strings.TrimSpace(*value)
		if trimmed == "" {
			warn("%s must not be empty; using %q", key, *dst)
			return
		}
		*dst = trimmed
	}
	setName("botName", opts.BotName, &cfg.BotName)
	setName("user", opts.User, &cfg.User)

	if opts.RecordURL != nil {
		cfg.RecordURL = strings.TrimSpace(*opts.RecordURL)
	}
	if opts.MessageURL != nil {
		cfg.MessageURL = strings.TrimSpace(*opts.MessageURL)
	}
	if len(opts.APIKey) > 0 {
		cfg.APIKey = cloneCredential(opts.APIKey)
	}

	if opts.RecordButton != nil {
		cfg.RecordButton = *opts.RecordButton
	}
	if opts.Maintain2Record != nil {
		cfg.Maintain2Record = *opts.Maintain2Record
	}
	if opts.Width != nil {
		cfg.Width = strings.TrimSpace(*opts.Width)
	}
	if opts.Height != nil {
		cfg.Height = strings.TrimSpace(*opts.Height)
	}

	if opts.I18n != nil {
		opts.I18n.applyTo(&cfg.I18n)
	}

	if opts.Audio != nil {
		if opts.Audio.Input != nil && strings.TrimSpace(*opts.Audio.Input) != "" {
			cfg.Audio.Input = strings.TrimSpace(*opts.Audio.Input)
		}
		if opts.Audio.Fallback != nil && strings.TrimSpace(*opts.Audio.Fallback) != "" {
			cfg.Audio.Fallback = strings.TrimSpace(*opts.Audio.Fallback)
		}
	}

	setCommand := func(key string, value *string, dst *CommandConfig) {
		if value == nil {
			return
		}
		argv, err := parseArgv(*value)
		switch {
		case err != nil:
			warn("invalid %s: %v; using %q", key, err, dst.Raw)
		case len(argv) == 0:
			warn("%s is empty; using %q", key, dst.Raw)
		default:
			*dst = CommandConfig{Raw: *value, Argv: argv}
		}
	}
	setCommand("playerCmd", opts.PlayerCmd, &cfg.Player)
	setCommand("clipboardCmd", opts.ClipboardCmd, &cfg.Clipboard)

	if opts.Autoplay != nil {
		cfg.Autoplay = *opts.Autoplay
	}
	if opts.RecordErrorBanner != nil {
		cfg.RecordErrorBanner = *opts.RecordErrorBanner
	}

	return warnings
}

// applyTo merges translations key by key; empty overrides keep the default.
func (o I18nOptions) applyTo(dst *I18n) {
	set := func(value *string, field *string) {
		if value == nil || *value == "" {
			return
		}
		*field = *value
	}
	set(o.Title, &dst.Title)
	set(o.Placeholder, &dst.Placeholder)
	set(o.MinimizeButton, &dst.MinimizeButton)
	set(o.NoReply, &dst.NoReply)
	set(o.ExchangeFailed, &dst.ExchangeFailed)
	set(o.ErrorPrefix, &dst.ErrorPrefix)
}

// cloneCredential deep-copies a decoded JSON object so the resolved config
// shares no nested maps or slices with its source.
func cloneCredential(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = cloneJSONValue(value)
	}
	return dst
}

func cloneJSONValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return cloneCredential(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneJSONValue(item)
		}
		return out
	default:
		return v
	}
}
