// Package http provides the web server and handler implementations.
//
// This file implements utilities for parsing and validating request data,
// consolidating the repeated form handling patterns across handlers.

package http

import (
	"net/http"
)

// ParseFormOrFail parses the request form and returns an error response on
// failure. Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Could not read the request")
	}
	return nil
}
