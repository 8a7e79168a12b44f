// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package net

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrScheme      = errors.New("scheme must be http or https")
	ErrMissingHost = errors.New("missing host")
	ErrCredentials = errors.New("embedded credentials are not allowed")
)

// SanitizeURL removes user info and query parameters for safe logging.
func SanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

// ParseHTTPURL parses s as an absolute http(s) URL without credentials.
// Fragments are dropped.
func ParseHTTPURL(s string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%q: %w", SanitizeURL(s), ErrScheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%q: %w", s, ErrMissingHost)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%q: %w", SanitizeURL(s), ErrCredentials)
	}
	u.Fragment = ""
	return u, nil
}
