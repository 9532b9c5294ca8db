// Package handlers provides HTTP handlers for the pharmacy API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// message is the client-visible response envelope for mutations and errors.
type message struct {
	Message string `json:"message"`
}

func respondMessage(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(message{Message: msg})
}

func respondJSON(w http.ResponseWriter, body interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// queryInt64 parses an optional integer query parameter. The ok result is
// false when the parameter is present but not an integer.
func queryInt64(r *http.Request, name string) (*int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	return &n, true
}
