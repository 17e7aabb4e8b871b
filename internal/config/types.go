// Package config resolves, parses, and defaults chatdock widget configuration.
package config

// Config is the fully resolved widget configuration. It is not mutated after resolution.
type Config struct {
	Alignment       string
	Padding         int
	BotName         string
	User            string
	RecordURL       string
	MessageURL      string
	APIKey          map[string]any
	RecordButton    bool
	Maintain2Record bool
	Width           string
	Height          string
	I18n            I18n

	Audio             AudioConfig
	Player            CommandConfig
	Clipboard         CommandConfig
	Autoplay          bool
	RecordErrorBanner bool
}

// I18n holds every display string the widget renders. All fields are non-empty after Resolve.
type I18n struct {
	Title          string
	Placeholder    string
	MinimizeButton string
	NoReply        string
	ExchangeFailed string
	ErrorPrefix    string
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/resolution message.
type Warning struct {
	Message string
}

// Options is a partial configuration. Nil fields keep their defaults.
type Options struct {
	Alignment       *string
	Padding         *int
	BotName         *string
	User            *string
	RecordURL       *string
	MessageURL      *string
	APIKey          map[string]any
	RecordButton    *bool
	Maintain2Record *bool
	Width           *string
	Height          *string
	I18n            *I18nOptions

	Audio             *AudioOptions
	PlayerCmd         *string
	ClipboardCmd      *string
	Autoplay          *bool
	RecordErrorBanner *bool
}

// I18nOptions overrides individual display strings.
type I18nOptions struct {
	Title          *string
	Placeholder    *string
	MinimizeButton *string
	NoReply        *string
	ExchangeFailed *string
	ErrorPrefix    *string
}

// AudioOptions overrides capture device preferences.
type AudioOptions struct {
	Input    *string
	Fallback *string
}

const (
	AlignLeft  = "left"
	AlignRight = "right"
)

// HasMessageEndpoint reports whether text exchanges are enabled.
func (c Config) HasMessageEndpoint() bool {
	return c.MessageURL != ""
}

// HasRecordEndpoint reports whether audio uploads are enabled.
func (c Config) HasRecordEndpoint() bool {
	return c.RecordURL != ""
}
