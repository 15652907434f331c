package lifecycle

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strings"

	"github.com/woozymasta/gameroom/internal/apierr"
	"github.com/woozymasta/gameroom/internal/models"
)

// ParseCreateInput decodes and validates the body of a create request.
//
// Presence and type are checked first, in the fixed order name, game, game_version,
// n_max_players and then the optional description; the first offending property is
// reported. Any JSON number is accepted as player cap and truncated toward zero.
// Blank strings and a negative or out of range player cap are checked afterwards and
// only their count is reported.
func ParseCreateInput(body []byte) (models.CreateRequest, error) {
	var req models.CreateRequest

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return req, apierr.NewEmptyInput()
	}

	var input map[string]any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&input); err != nil {
		return req, apierr.NewInvalidJSON(err)
	}
	if err := dec.Decode(new(any)); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return req, apierr.NewInvalidJSON(err)
	}

	var ok bool
	if req.Name, ok = input[models.FieldName].(string); !ok {
		return req, apierr.NewMissingField(models.FieldName)
	}
	if req.Game, ok = input[models.FieldGame].(string); !ok {
		return req, apierr.NewMissingField(models.FieldGame)
	}
	if req.GameVersion, ok = input[models.FieldGameVersion].(string); !ok {
		return req, apierr.NewMissingField(models.FieldGameVersion)
	}
	var fits bool
	if req.MaxPlayers, fits, ok = asInt(input[models.FieldMaxPlayers]); !ok {
		return req, apierr.NewMissingField(models.FieldMaxPlayers)
	}
	if raw, present := input[models.FieldDescription]; present {
		if req.Description, ok = raw.(string); !ok {
			return req, apierr.NewMissingField(models.FieldDescription)
		}
	}

	invalid := 0
	for _, s := range []string{req.Name, req.Game, req.GameVersion} {
		if strings.TrimSpace(s) == "" {
			invalid++
		}
	}
	if !fits || req.MaxPlayers < 0 {
		invalid++
	}
	if invalid > 0 {
		return req, apierr.NewInvalidFieldCount(invalid)
	}

	return req, nil
}

// asInt truncates a JSON number toward zero. ok is false for anything but a number,
// fits is false for a number outside the int32 range.
func asInt(v any) (n int, fits, ok bool) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, false, false
	}

	f, err := num.Float64()
	f = math.Trunc(f)
	if err != nil || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false, true
	}

	return int(f), true, true
}
