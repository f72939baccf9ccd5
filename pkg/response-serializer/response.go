// Package serializer converts captured response bodies to and from the
// representation kept in the cache store. Bodies are JSON; the stored value
// is the body bytes exactly as the handler wrote them, so a cache hit
// replays a byte-identical response.
package serializer

import (
	"bytes"
	"encoding/json"
	"errors"
)

var (
	// ErrEmptyBody is returned for zero-length (or whitespace only) bodies.
	ErrEmptyBody = errors.New("serializer: empty body")
	// ErrInvalidJSON is returned when the bytes are not a single JSON value.
	ErrInvalidJSON = errors.New("serializer: body is not valid JSON")
)

// Encode turns a response body into its stored form.
// It refuses anything that is not a JSON document.
func Encode(body []byte) ([]byte, error) {
	if err := check(body); err != nil {
		return nil, err
	}
	return append([]byte(nil), body...), nil
}

// Decode turns a stored value back into a response body.
// A value failing the check is treated as a corrupt entry.
func Decode(stored []byte) ([]byte, error) {
	if err := check(stored); err != nil {
		return nil, err
	}
	return stored, nil
}

func check(b []byte) error {
	if len(bytes.TrimSpace(b)) == 0 {
		return ErrEmptyBody
	}
	if !json.Valid(b) {
		return ErrInvalidJSON
	}
	return nil
}
