package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/raysh454/medtriage/internal/logging"
	"github.com/raysh454/medtriage/internal/model"
	"github.com/raysh454/medtriage/internal/webclient"
)

// Client posts uploads as multipart/form-data through a webclient.WebClient.
type Client struct {
	wc     webclient.WebClient
	cfg    Config
	logger logging.Logger
}

var _ Transport = (*Client)(nil)

// NewClient creates a Client that sends requests through wc.
func NewClient(cfg Config, wc webclient.WebClient, logger logging.Logger) (*Client, error) {
	if logger == nil {
		return nil, errors.New("analyzer: nil logger provided")
	}
	if wc == nil {
		return nil, errors.New("analyzer: nil webclient provided")
	}
	cfg = cfg.withDefaults()
	componentLogger := logger.With(logging.Field{Key: "component", Value: "analyzer"})
	componentLogger.Info("created analysis client", logging.Field{Key: "endpoint", Value: cfg.Endpoint})
	return &Client{wc: wc, cfg: cfg, logger: componentLogger}, nil
}

// Analyze uploads up and returns the decoded success body. A non-2xx status
// is a KindServer failure even when its body parses.
func (c *Client) Analyze(ctx context.Context, up Upload) (any, error) {
	if up.Content == nil {
		return nil, model.NewScanError(model.KindTransport, "no file content to upload", nil)
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = c.cfg.ContentType
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	written := make(chan struct{})
	go func() {
		defer close(written)
		pw.CloseWithError(writeFilePart(mw, c.cfg.FieldName, up.FileName, contentType, up.Content))
	}()
	// Closing the reader unblocks the writer if the request ended early. The
	// writer must be done with up.Content before the caller may close it.
	defer func() {
		pr.Close()
		<-written
	}()

	c.logger.Info("uploading scan",
		logging.Field{Key: "file", Value: up.FileName},
		logging.Field{Key: "content_type", Value: contentType})

	resp, err := c.wc.Do(ctx, &webclient.Request{
		Method:     http.MethodPost,
		URL:        c.cfg.Endpoint,
		Headers:    http.Header{"Content-Type": []string{mw.FormDataContentType()}, "Accept": []string{"application/json"}},
		BodyReader: pr,
	})
	if err != nil {
		c.logger.Warn("analysis request failed", logging.Err(err))
		return nil, model.NewScanError(model.KindTransport, "", err)
	}

	if !resp.OK() {
		msg := serverMessage(resp.Body)
		c.logger.Warn("analysis service returned failure",
			logging.Field{Key: "status", Value: resp.StatusCode},
			logging.Field{Key: "message", Value: msg})
		return nil, model.NewScanError(model.KindServer, msg, fmt.Errorf("status %d", resp.StatusCode))
	}

	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, model.NewScanError(model.KindMalformed, "analysis response is not JSON", err)
	}
	return body, nil
}

func writeFilePart(mw *multipart.Writer, field, fileName, contentType string, content io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(field), escapeQuotes(fileName)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// serverMessage extracts "message" from a failure body, falling back to
// DefaultServerMessage.
func serverMessage(body []byte) string {
	var payload struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return DefaultServerMessage
	}
	if s, ok := payload.Message.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return DefaultServerMessage
}
