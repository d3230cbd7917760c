// Package webclient is the HTTP layer the analysis transport is built on.
package webclient

import (
	"context"
	"io"
	"net/http"
	"time"
)

// WebClient executes a single request and returns the buffered response.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	Close() error
}

type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
	// BodyReader, when set, is streamed instead of Body. Multipart uploads
	// use it so the file is never held in memory twice.
	BodyReader io.Reader
}

type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
