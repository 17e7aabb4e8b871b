package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseOptions reads a JSONC options document. It never fails: an unreadable
// document yields empty Options, and each malformed or unknown field is
// skipped with a warning so the remaining fields still apply.
func ParseOptions(content string) (Options, []Warning) {
	var opts Options
	warnings := make([]Warning, 0)
	warn := func(format string, args ...any) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(content) == "" {
		return opts, warnings
	}

	normalized, err := normalizeJSONC(content)
	if err != nil {
		warn("config ignored: %v", err)
		return opts, warnings
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	var fields map[string]json.RawMessage
	if err := decoder.Decode(&fields); err != nil {
		warn("config ignored: %v", wrapJSONDecodeError(normalized, err))
		return opts, warnings
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		warn("config ignored: %v", wrapJSONDecodeError(normalized, err))
		return Options{}, warnings
	}

	for _, key := range sortedKeys(fields) {
		raw := fields[key]
		var err error
		switch key {
		case "alignment":
			opts.Alignment, err = decodeField[string](raw)
		case "padding":
			opts.Padding, err = decodePixels(raw)
		case "botName":
			opts.BotName, err = decodeField[string](raw)
		case "user":
			opts.User, err = decodeField[string](raw)
		case "recordUrl":
			opts.RecordURL, err = decodeField[string](raw)
		case "messageUrl":
			opts.MessageURL, err = decodeField[string](raw)
		case "apiKey":
			var credential map[string]any
			if err = json.Unmarshal(raw, &credential); err == nil {
				opts.APIKey = credential
			}
		case "recordButton":
			opts.RecordButton, err = decodeField[bool](raw)
		case "maintain2Record":
			opts.Maintain2Record, err = decodeField[bool](raw)
		case "width":
			opts.Width, err = decodeDimension(raw)
		case "height":
			opts.Height, err = decodeDimension(raw)
		case "i18n":
			opts.I18n, err = parseI18n(raw, warn)
		case "audio":
			opts.Audio, err = parseAudio(raw, warn)
		case "playerCmd":
			opts.PlayerCmd, err = decodeField[string](raw)
		case "clipboardCmd":
			opts.ClipboardCmd, err = decodeField[string](raw)
		case "autoplay":
			opts.Autoplay, err = decodeField[bool](raw)
		case "recordErrorBanner":
			opts.RecordErrorBanner, err = decodeField[bool](raw)
		default:
			warn("unknown key %q ignored", key)
			continue
		}
		if err != nil {
			warn("%s ignored: %v", key, err)
		}
	}

	return opts, warnings
}

func parseI18n(raw json.RawMessage, warn func(string, ...any)) (*I18nOptions, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	out := &I18nOptions{}
	for _, key := range sortedKeys(fields) {
		value, err := decodeField[string](fields[key])
		if err != nil {
			warn("i18n.%s ignored: %v", key, err)
			continue
		}
		switch key {
		case "title":
			out.Title = value
		case "placeholder":
			out.Placeholder = value
		case "minimizeButton":
			out.MinimizeButton = value
		case "noReply":
			out.NoReply = value
		case "exchangeFailed":
			out.ExchangeFailed = value
		case "errorPrefix":
			out.ErrorPrefix = value
		default:
			warn("unknown key %q ignored", "i18n."+key)
		}
	}
	return out, nil
}

func parseAudio(raw json.RawMessage, warn func(string, ...any)) (*AudioOptions, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	out := &AudioOptions{}
	for _, key := range sortedKeys(fields) {
		value, err := decodeField[string](fields[key])
		if err != nil {
			warn("audio.%s ignored: %v", key, err)
			continue
		}
		switch key {
		case "input":
			out.Input = value
		case "fallback":
			out.Fallback = value
		default:
			warn("unknown key %q ignored", "audio."+key)
		}
	}
	return out, nil
}

func decodeField[T any](raw json.RawMessage) (*T, error) {
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return &value, nil
}

// decodePixels accepts 20, "20" and "20px".
func decodePixels(raw json.RawMessage) (*int, error) {
	if n, err := decodeField[int](raw); err == nil {
		return n, nil
	}
	s, err := decodeField[string](raw)
	if err != nil {
		return nil, fmt.Errorf("expected integer pixels")
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(*s), "px"))
	if err != nil {
		return nil, fmt.Errorf("expected integer pixels, got %q", *s)
	}
	return &n, nil
}

// decodeDimension accepts CSS-like strings and bare numbers (treated as pixels).
func decodeDimension(raw json.RawMessage) (*string, error) {
	if s, err := decodeField[string](raw); err == nil {
		return s, nil
	}
	n, err := decodeField[float64](raw)
	if err != nil {
		return nil, fmt.Errorf("expected string or number")
	}
	s := strconv.FormatFloat(*n, 'f', -1, 64) + "px"
	return &s, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
