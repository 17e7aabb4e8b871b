package config

// Default returns the configuration used when no options are supplied.
func Default() Config {
	player := "pw-play --media-role Communication"
	clipboard := "wl-copy --trim-newline"

	return Config{
		Alignment:       AlignRight,
		Padding:         20,
		BotName:         "Bot",
		User:            "You",
		RecordURL:       "",
		MessageURL:      "",
		APIKey:          nil,
		RecordButton:    false,
		Maintain2Record: true,
		Width:           "300px",
		Height:          "200px",
		I18n:            DefaultI18n(),
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Player:            CommandConfig{Raw: player, Argv: mustParseArgv(player)},
		Clipboard:         CommandConfig{Raw: clipboard, Argv: mustParseArgv(clipboard)},
		Autoplay:          true,
		RecordErrorBanner: false,
	}
}

// DefaultI18n returns the built-in display strings.
func DefaultI18n() I18n {
	return I18n{
		Title:          "Chat",
		Placeholder:    "Your message...",
		MinimizeButton: "–",
		NoReply:        "No reply",
		ExchangeFailed: "Error while retrieving the response.",
		ErrorPrefix:    "Error: ",
	}
}
