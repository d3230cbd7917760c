package utils

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/idna"
)

var (
	ErrEmptyURL          = errors.New("empty url")
	ErrMissingHost       = errors.New("missing host")
	ErrUnsupportedScheme = errors.New("unsupported scheme")
)

// CanonicalEndpoint returns a deterministic form of an HTTP(S) service
// endpoint. Schemeless input gets defaultScheme; when defaultScheme is empty
// a scheme is required.
//
// Examples:
//
//	"HTTP://Analysis.LOCAL:80/api//analysis/#x" → "http://analysis.local/api/analysis"
//	"localhost:5000/api/analysis" (default "http") → "http://localhost:5000/api/analysis"
//	"https://例え.テスト/api" → "https://xn--r8jz45g.xn--zckzah/api"
//
// Userinfo and fragments are dropped; the query is kept as given.
func CanonicalEndpoint(raw, defaultScheme string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &url.Error{Op: "canonicalize", URL: raw, Err: ErrEmptyURL}
	}
	if defaultScheme != "" && !strings.Contains(raw, "://") {
		raw = defaultScheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &url.Error{Op: "canonicalize", URL: raw, Err: fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme)}
	}
	if u.Host == "" {
		return "", &url.Error{Op: "canonicalize", URL: raw, Err: ErrMissingHost}
	}

	// Lowercase host and convert IDN -> punycode
	host := strings.ToLower(u.Hostname())
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}

	// Preserve non-default port only
	port := u.Port()
	switch {
	case (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443"):
		u.Host = host
	case port != "":
		u.Host = net.JoinHostPort(host, port)
	default:
		u.Host = host
	}

	u.User = nil
	u.Fragment = ""

	if u.Path != "" {
		clean := path.Clean(u.Path)
		if clean == "." || clean == "/" {
			clean = ""
		}
		u.Path = clean
		u.RawPath = ""
	}
	return u.String(), nil
}
