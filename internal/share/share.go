// Package share delivers exported report artifacts to wherever the user
// wants them and returns a link to the shared copy.
package share

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"

	"github.com/raysh454/medtriage/internal/model"
	"github.com/raysh454/medtriage/internal/report"
)

// Sharer publishes an artifact and returns a URL for it. Failures are
// ScanErrors of kind KindRender; they never affect the history entry.
type Sharer interface {
	Share(ctx context.Context, art report.Artifact) (string, error)
}

// FileSharer shares in place: the artifact already sits on local disk, so
// its file:// URL is returned. It is the fallback when no object store is configured.
type FileSharer struct{}

var _ Sharer = FileSharer{}

func (FileSharer) Share(ctx context.Context, art report.Artifact) (string, error) {
	if art.Path == "" {
		return "", model.NewScanError(model.KindRender, "nothing to share", errors.New("empty artifact path"))
	}
	abs, err := filepath.Abs(art.Path)
	if err != nil {
		return "", model.NewScanError(model.KindRender, "failed to resolve artifact path", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
