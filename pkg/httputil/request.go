package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// maxBodyBytes caps request bodies; the auth surface only carries small
// JSON payloads.
const maxBodyBytes = 1 << 20

// ParseJSON decodes JSON from the request body into the destination.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes the error envelope on failure.
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(w, r, dest); err != nil {
		WriteBadRequest(w, "INVALID_REQUEST", "Invalid request data")
		return false
	}
	return true
}

// BearerToken extracts the token from an "Authorization: Bearer ..."
// header. The second return is false when the header is missing or not in
// bearer form.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
