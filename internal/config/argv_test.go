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
		{name: "empty", input: "   ", want: nil},
		{name: "comment disables", input: `# game-bridge --send`, want: nil},
		{name: "plain words", input: "game-bridge --channel=voice", want: []string{"game-bridge", "--channel=voice"}},
		{name: "double quotes", input: `game-bridge --prefix "say: "`, want: []string{"game-bridge", "--prefix", "say: "}},
		{name: "single quotes keep backslash", input: `printf '%s\n'`, want: []string{"printf", `%s\n`}},
		{name: "escaped space", input: `/opt/my\ game/bridge`, want: []string{"/opt/my game/bridge"}},
		{name: "empty quoted word", input: `game-bridge ""`, want: []string{"game-bridge", ""}},
		{name: "adjacent quoting joins", input: `a"b c"'d'`, want: []string{"ab cd"}},
		{name: "unterminated quote", input: `game-bridge "oops`, wantErr: "unterminated quote"},
		{name: "unterminated escape", input: `game-bridge oops\`, wantErr: "unterminated escape"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseArgv(tc.input)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
