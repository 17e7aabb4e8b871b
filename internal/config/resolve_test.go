package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestResolveEmptyOptionsMatchesDefault(t *testing.T) {
	cfg, warnings := Resolve(Options{})
	require.Empty(t, warnings)
	require.Equal(t, Default(), cfg)
	require.False(t, cfg.HasMessageEndpoint())
	require.False(t, cfg.HasRecordEndpoint())
}

func TestResolveOverlaysSuppliedFields(t *testing.T) {
	cfg, warnings := Resolve(Options{
		Alignment:       ptr(" LEFT "),
		Padding:         ptr(0),
		BotName:         ptr("Helper"),
		MessageURL:      ptr(" /chat "),
		RecordURL:       ptr("/record"),
		APIKey:          map[string]any{"key": "secret"},
		RecordButton:    ptr(true),
		Maintain2Record: ptr(false),
		PlayerCmd:       ptr("mpv --no-video"),
		ClipboardCmd:    ptr("xclip -selection clipboard"),
	})
	require.Empty(t, warnings)
	require.Equal(t, AlignLeft, cfg.Alignment)
	require.Equal(t, 0, cfg.Padding)
	require.Equal(t, "Helper", cfg.BotName)
	require.Equal(t, "You", cfg.User)
	require.Equal(t, "/chat", cfg.MessageURL)
	require.True(t, cfg.HasMessageEndpoint())
	require.True(t, cfg.HasRecordEndpoint())
	require.Equal(t, map[string]any{"key": "secret"}, cfg.APIKey)
	require.True(t, cfg.RecordButton)
	require.False(t, cfg.Maintain2Record)
	require.Equal(t, []string{"mpv", "--no-video"}, cfg.Player.Argv)
	require.Equal(t, []string{"xclip", "-selection", "clipboard"}, cfg.Clipboard.Argv)
}

func TestResolveDoesNotAliasCredentialMap(t *testing.T) {
	credential := map[string]any{"key": "secret"}
	cfg, _ := Resolve(Options{APIKey: credential})
	credential["key"] = "changed"
	require.Equal(t, "secret", cfg.APIKey["key"])
}

func TestResolveDeepCopiesNestedCredential(t *testing.T) {
	scopes := []any{"chat", map[string]any{"voice": true}}
	credential := map[string]any{
		"auth":   map[string]any{"token": "secret"},
		"scopes": scopes,
	}
	cfg, _ := Resolve(Options{APIKey: credential})

	credential["auth"].(map[string]any)["token"] = "changed"
	scopes[0] = "admin"
	scopes[1].(map[string]any)["voice"] = false

	require.Equal(t, map[string]any{
		"auth":   map[string]any{"token": "secret"},
		"scopes": []any{"chat", map[string]any{"voice": true}},
	}, cfg.APIKey)
}

func TestResolveMalformedValuesFallBackToDefaults(t *testing.T) {
	cfg, warnings := Resolve(Options{
		Alignment:    ptr("center"),
		Padding:      ptr(-4),
		BotName:      ptr("   "),
		PlayerCmd:    ptr(`mpv "oops`),
		ClipboardCmd: ptr("  "),
	})

	defaults := Default()
	require.Equal(t, defaults.Alignment, cfg.Alignment)
	require.Equal(t, defaults.Padding, cfg.Padding)
	require.Equal(t, defaults.BotName, cfg.BotName)
	require.Equal(t, defaults.Player, cfg.Player)
	require.Equal(t, defaults.Clipboard, cfg.Clipboard)
	require.Len(t, warnings, 5)
}

func TestResolveI18nMergesKeyByKey(t *testing.T) {
	tests := []struct {
		name string
		i18n *I18nOptions
		want I18n
	}{
		{
			name: "no override",
			i18n: nil,
			want: DefaultI18n(),
		},
		{
			name: "title only",
			i18n: &I18nOptions{Title: ptr("Support")},
			want: I18n{
				Title:          "Support",
				Placeholder:    "Your message...",
				MinimizeButton: "–",
				NoReply:        "No reply",
				ExchangeFailed: "Error while retrieving the response.",
				ErrorPrefix:    "Error: ",
			},
		},
		{
			name: "empty strings keep defaults",
			i18n: &I18nOptions{Title: ptr(""), Placeholder: ptr("Écrivez..."), MinimizeButton: ptr("")},
			want: I18n{
				Title:          "Chat",
				Placeholder:    "Écrivez...",
				MinimizeButton: "–",
				NoReply:        "No reply",
				ExchangeFailed: "Error while retrieving the response.",
				ErrorPrefix:    "Error: ",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, _ := Resolve(Options{I18n: tc.i18n})
			require.Equal(t, tc.want, cfg.I18n)
			require.NotEmpty(t, cfg.I18n.Title)
			require.NotEmpty(t, cfg.I18n.Placeholder)
			require.NotEmpty(t, cfg.I18n.MinimizeButton)
		})
	}
}
