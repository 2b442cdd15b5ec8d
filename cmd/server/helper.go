package main

import (
	"net/http"
	"strconv"
)

// Query-parameter helpers. Invalid values fall back to the default rather
// than failing the request.

// parseFloatParam reads a float query parameter with a default.
func parseFloatParam(r *http.Request, key string, defaultValue float64) float64 {
	if value := r.URL.Query().Get(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// parseIntParam reads an integer query parameter with a default. Values
// below one fall back too, since every caller needs a positive count.
func parseIntParam(r *http.Request, key string, defaultValue int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 1 {
			return parsed
		}
	}
	return defaultValue
}

// parseBoolParam reads a boolean query parameter with a default.
func parseBoolParam(r *http.Request, key string, defaultValue bool) bool {
	if value := r.URL.Query().Get(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
