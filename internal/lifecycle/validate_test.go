package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/gameroom/internal/apierr"
)

func TestParseCreateInput(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		kind    apierr.Kind
		message string
	}{
		{name: "empty", body: "", kind: apierr.EmptyInput},
		{name: "whitespace", body: " \n", kind: apierr.EmptyInput},
		{name: "null", body: "null", kind: apierr.EmptyInput},
		{name: "array", body: "[1,2]", kind: apierr.InvalidJSON},
		{name: "broken", body: `{"name":`, kind: apierr.InvalidJSON},
		{
			name: "trailing value",
			body: `{"name":"a","game":"g","game_version":"1","n_max_players":4}{"junk":1}`,
			kind: apierr.InvalidJSON,
		},
		{
			name: "trailing garbage",
			body: `{"name":"a","game":"g","game_version":"1","n_max_players":4} x`,
			kind: apierr.InvalidJSON,
		},
		{
			name:    "missing name and game",
			body:    `{"game_version":"1","n_max_players":4}`,
			kind:    apierr.MissingOrMistypedField,
			message: "Input json is malformed: property 'name' is missing",
		},
		{
			name:    "mistyped version",
			body:    `{"name":"a","game":"g","game_version":1,"n_max_players":4}`,
			kind:    apierr.MissingOrMistypedField,
			message: "Input json is malformed: property 'game_version' is missing",
		},
		{
			name:    "players beyond int32",
			body:    `{"name":"a","game":"g","game_version":"1","n_max_players":3000000000}`,
			kind:    apierr.InvalidMandatoryFieldCount,
			message: "Input json has (1) mandatory property invalid",
		},
		{
			name:    "players overflowing float",
			body:    `{"name":"","game":"g","game_version":"1","n_max_players":1e400}`,
			kind:    apierr.InvalidMandatoryFieldCount,
			message: "Input json has (2) mandatory property invalid",
		},
		{
			name:    "players as string",
			body:    `{"name":"a","game":"g","game_version":"1","n_max_players":"4"}`,
			kind:    apierr.MissingOrMistypedField,
			message: "Input json is malformed: property 'n_max_players' is missing",
		},
		{
			name:    "mistyped description",
			body:    `{"name":"a","game":"g","game_version":"1","n_max_players":4,"description":false}`,
			kind:    apierr.MissingOrMistypedField,
			message: "Input json is malformed: property 'description' is missing",
		},
		{
			name:    "blank fields counted",
			body:    `{"name":" ","game":"","game_version":"1","n_max_players":-1}`,
			kind:    apierr.InvalidMandatoryFieldCount,
			message: "Input json has (3) mandatory property invalid",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCreateInput([]byte(tc.body))
			require.Error(t, err)
			assert.Equal(t, tc.kind, apierr.KindOf(err))
			if tc.message != "" {
				assert.Equal(t, tc.message, apierr.MessageOf(err))
			}
		})
	}
}

func TestParseCreateInputValid(t *testing.T) {
	req, err := ParseCreateInput([]byte(`{"name":"Room","game":"dayz","game_version":"1.26","n_max_players":60.0,"description":"pve"}`))
	require.NoError(t, err)

	assert.Equal(t, "Room", req.Name)
	assert.Equal(t, "dayz", req.Game)
	assert.Equal(t, "1.26", req.GameVersion)
	assert.Equal(t, 60, req.MaxPlayers)
	assert.Equal(t, "pve", req.Description)
}

func TestParseCreateInputZeroPlayersIsValid(t *testing.T) {
	req, err := ParseCreateInput([]byte(`{"name":"a","game":"g","game_version":"1","n_max_players":0}`))
	require.NoError(t, err)
	assert.Zero(t, req.MaxPlayers)
}

func TestParseCreateInputTruncatesPlayers(t *testing.T) {
	for body, want := range map[string]int{
		`{"name":"a","game":"g","game_version":"1","n_max_players":4.5}`:   4,
		`{"name":"a","game":"g","game_version":"1","n_max_players":9.99}`:  9,
		`{"name":"a","game":"g","game_version":"1","n_max_players":-0.5}`:  0,
		`{"name":"a","game":"g","game_version":"1","n_max_players":1.2e1}`: 12,
	} {
		req, err := ParseCreateInput([]byte(body))
		require.NoError(t, err, body)
		assert.Equal(t, want, req.MaxPlayers, body)
	}
}

func TestParseCreateInputTrailingWhitespaceIsValid(t *testing.T) {
	_, err := ParseCreateInput([]byte("{\"name\":\"a\",\"game\":\"g\",\"game_version\":\"1\",\"n_max_players\":4}\n\n"))
	require.NoError(t, err)
}
