package httpx

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"
)

// FormContentType is the only body encoding the OAuth2 endpoints accept.
const FormContentType = "application/x-www-form-urlencoded"

// WriteJSON writes a JSON response with the given status code. Responses
// are never cacheable since most of them carry tokens or key material.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// IsFormRequest reports whether the request body is form encoded.
// Parameters like charset are ignored.
func IsFormRequest(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == FormContentType
}

// ParseSpaceDelimitedFields splits a space-delimited string into fields.
// Returns nil if the input string is empty or contains only whitespace.
func ParseSpaceDelimitedFields(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
