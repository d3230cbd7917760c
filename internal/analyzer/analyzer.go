// Package analyzer is the transport collaborator: it uploads an image file to
// the remote analysis service and hands back the decoded JSON body.
package analyzer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Transport performs one analysis round trip. On success it returns the
// decoded JSON body untouched; validation is the caller's job. Failures are
// *model.ScanError values of kind KindTransport, KindServer or KindMalformed.
type Transport interface {
	Analyze(ctx context.Context, up Upload) (any, error)
}

// Upload is a file handle plus the name it is submitted under.
type Upload struct {
	FileName string
	// ContentType overrides Config.ContentType for this upload when set.
	ContentType string
	Content     io.Reader
}

// OpenUpload opens path for upload. The caller closes the returned file.
func OpenUpload(path string) (Upload, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return Upload{}, nil, fmt.Errorf("open upload: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return Upload{}, nil, fmt.Errorf("stat upload: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return Upload{}, nil, fmt.Errorf("open upload: %s is a directory", path)
	}
	return Upload{FileName: filepath.Base(path), Content: f}, f, nil
}
