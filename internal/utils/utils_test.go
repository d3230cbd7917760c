package utils_test

import (
	"errors"
	"testing"

	"github.com/raysh454/medtriage/internal/utils"
)

// ─── CanonicalEndpoint ─────────────────────────────────────────────────

func TestCanonicalEndpoint(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, scheme, want string
	}{
		{"HTTP://Analysis.LOCAL:80/api//analysis/#frag", "", "http://analysis.local/api/analysis"},
		{"https://example.com:443/api/analysis", "", "https://example.com/api/analysis"},
		{"localhost:5000/api/analysis", "http", "http://localhost:5000/api/analysis"},
		{"http://user:pw@10.0.0.2:5000/api/analysis?model=v2", "", "http://10.0.0.2:5000/api/analysis?model=v2"},
		{"https://例え.テスト/api", "", "https://xn--r8jz45g.xn--zckzah/api"},
		{"  http://example.com/  ", "", "http://example.com"},
	}
	for _, tt := range tests {
		got, err := utils.CanonicalEndpoint(tt.in, tt.scheme)
		if err != nil {
			t.Errorf("CanonicalEndpoint(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CanonicalEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalEndpoint_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want error
	}{
		{"   ", utils.ErrEmptyURL},
		{"ftp://example.com/x", utils.ErrUnsupportedScheme},
		{"http:///api/analysis", utils.ErrMissingHost},
	}
	for _, tt := range tests {
		if _, err := utils.CanonicalEndpoint(tt.in, ""); !errors.Is(err, tt.want) {
			t.Errorf("CanonicalEndpoint(%q): expected %v, got %v", tt.in, tt.want, err)
		}
	}
}
