package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgv(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{name: "empty", input: "", want: nil},
		{name: "simple", input: "pw-play --media-role Communication", want: []string{"pw-play", "--media-role", "Communication"}},
		{name: "quoted spaces", input: `mpv --title "chat reply"`, want: []string{"mpv", "--title", "chat reply"}},
		{name: "single quote", input: `mpv --title 'chat reply'`, want: []string{"mpv", "--title", "chat reply"}},
		{name: "escaped space", input: `player my\ file`, want: []string{"player", "my file"}},
		{name: "empty quoted argument", input: `player ""`, want: []string{"player", ""}},
		{name: "tabs and newlines", input: "wl-copy\t--trim-newline\n", want: []string{"wl-copy", "--trim-newline"}},
		{name: "quote inside word", input: `mpv --title=chat" reply"`, want: []string{"mpv", "--title=chat reply"}},
		{name: "leading comment", input: `# pw-play`, want: nil},
		{name: "unterminated quote", input: `player "oops`, wantErr: "unterminated quote"},
		{name: "unterminated escape", input: `player hello\`, wantErr: "unterminated escape"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseArgv(tc.input)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMustParseArgvPanicsOnInvalidInput(t *testing.T) {
	require.Panics(t, func() {
		_ = mustParseArgv(`player "unterminated`)
	})
}
