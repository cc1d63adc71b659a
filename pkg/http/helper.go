package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"seatflow/pkg/daytime"
	apperrors "seatflow/pkg/errors"
	"strings"
)

// PathDate returns a YYYY-MM-DD path value or an InvalidInput error.
func PathDate(value string) (string, error) {
	if !daytime.ValidDate(value) {
		return "", apperrors.InvalidInput("invalid date parameter: " + value)
	}
	return value, nil
}

// DecodeJSON reads a single JSON object from the request body, rejecting
// unknown fields and trailing data.
func DecodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("request body is empty")
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return apperrors.InvalidInput("request body too large")
		}
		return apperrors.InvalidInput("invalid JSON: " + strings.TrimPrefix(err.Error(), "json: "))
	}
	if decoder.More() {
		return apperrors.InvalidInput("request body must contain a single JSON object")
	}
	return nil
}
