package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFileType is returned when an output path carries an extension
// that is neither .png nor .jpg/.jpeg.
var ErrInvalidFileType = errors.New("schema: invalid file type")

// ValidationError reports a malformed asset or action descriptor. The
// message always names the offending field.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("asset.%s %s", e.Field, e.Detail)
}

// wrapJSONError converts stdlib decode errors into ValidationErrors that
// name the field and the expected versus received kind.
func wrapJSONError(prefix string, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = prefix
		} else if prefix != "" {
			field = prefix + "." + field
		}
		return &ValidationError{
			Field:  field,
			Detail: fmt.Sprintf("expected %s but got %s", typeErr.Type.Kind(), typeErr.Value),
		}
	}

	var synErr *json.SyntaxError
	if errors.As(err, &synErr) {
		return &ValidationError{Field: orDefault(prefix, "descriptor"), Detail: "is not valid JSON"}
	}

	// DisallowUnknownFields surfaces as a plain error naming the key.
	msg := err.Error()
	if strings.Contains(msg, "unknown field") {
		key := msg[strings.Index(msg, `"`):]
		return &ValidationError{Field: orDefault(prefix, "descriptor"), Detail: "unexpected key " + key}
	}

	return err
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
