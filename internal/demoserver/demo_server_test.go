package demoserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/raysh454/medtriage/internal/analyzer"
	"github.com/raysh454/medtriage/internal/demoserver"
	"github.com/raysh454/medtriage/internal/model"
	"github.com/raysh454/medtriage/internal/testutil"
	"github.com/raysh454/medtriage/internal/webclient"
)

func newDemo(t *testing.T, cfg demoserver.Config) (*demoserver.DemoServer, *httptest.Server) {
	t.Helper()
	d := demoserver.NewDemoServer(cfg)
	ts := httptest.NewServer(d.Handler())
	t.Cleanup(ts.Close)
	return d, ts
}

func upload(t *testing.T, endpoint, field string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "j.doe.dcm")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(content)
	mw.Close()
	resp, err := http.Post(endpoint, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func message(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.Message
}

func setMode(t *testing.T, base, mode string) {
	t.Helper()
	resp, err := http.PostForm(base+"/demo/mode", url.Values{"mode": {mode}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set mode %q: status %d", mode, resp.StatusCode)
	}
}

// ─── Analysis ──────────────────────────────────────────────────────────

func TestAnalysis_DeterministicValidResult(t *testing.T) {
	t.Parallel()
	_, ts := newDemo(t, demoserver.DefaultConfig())

	decode := func() model.AnalysisResult {
		resp := upload(t, ts.URL+"/api/analysis", "file", []byte("DICM scan bytes"))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d", resp.StatusCode)
		}
		var raw any
		dec := json.NewDecoder(resp.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			t.Fatal(err)
		}
		r, err := model.Validate(raw)
		if err != nil {
			t.Fatalf("demo result does not validate: %v", err)
		}
		return r
	}

	a, b := decode(), decode()
	if len(a.Findings) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(a.Findings))
	}
	for i := range a.Findings {
		if a.Findings[i] != b.Findings[i] {
			t.Errorf("finding %d differs between identical uploads: %+v vs %+v", i, a.Findings[i], b.Findings[i])
		}
		if !model.IsKnownCondition(a.Findings[i].Name) {
			t.Errorf("unknown condition %q", a.Findings[i].Name)
		}
	}
	if a.PatientName != "j.doe" {
		t.Errorf("patient name = %q", a.PatientName)
	}
	if !strings.HasPrefix(a.ImagePayload, "data:image/png;base64,") {
		t.Errorf("image payload = %q", a.ImagePayload)
	}
}

func TestAnalysis_NoFile(t *testing.T) {
	t.Parallel()
	_, ts := newDemo(t, demoserver.DefaultConfig())

	resp := upload(t, ts.URL+"/api/analysis", "attachment", []byte("x"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if got := message(t, resp); got != "No file uploaded" {
		t.Errorf("message = %q", got)
	}
}

func TestAnalysis_FileTooLarge(t *testing.T) {
	t.Parallel()
	cfg := demoserver.DefaultConfig()
	cfg.MaxUploadBytes = 1024
	_, ts := newDemo(t, cfg)

	resp := upload(t, ts.URL+"/api/analysis", "file", bytes.Repeat([]byte("a"), 8192))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
	if got := message(t, resp); got != "File too large" {
		t.Errorf("message = %q", got)
	}
}

// ─── Modes ─────────────────────────────────────────────────────────────

func TestParseMode(t *testing.T) {
	t.Parallel()
	if m, err := demoserver.ParseMode("Garbage"); err != nil || m != demoserver.ModeGarbage {
		t.Errorf("ParseMode(Garbage) = %q, %v", m, err)
	}
	if _, err := demoserver.ParseMode("flaky"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

// The analyzer client against each demo mode yields the matching error kind.
func TestModes_MapToClientErrorKinds(t *testing.T) {
	t.Parallel()
	_, ts := newDemo(t, demoserver.DefaultConfig())
	logger := &testutil.DummyLogger{}

	wc, err := webclient.NewNetHTTPClient(webclient.Config{}, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	client, err := analyzer.NewClient(analyzer.Config{Endpoint: ts.URL + "/api/analysis"}, wc, logger)
	if err != nil {
		t.Fatal(err)
	}
	analyze := func() (any, error) {
		return client.Analyze(context.Background(), analyzer.Upload{FileName: "scan.dcm", Content: strings.NewReader("DICM")})
	}

	if _, err := analyze(); err != nil {
		t.Fatalf("ok mode: %v", err)
	}

	setMode(t, ts.URL, "error")
	_, err = analyze()
	if !errors.Is(err, model.ErrServer) || model.AsScanError(err, model.KindServer).Message != "Model unavailable" {
		t.Errorf("error mode: got %v", err)
	}

	setMode(t, ts.URL, "garbage")
	if _, err := analyze(); !errors.Is(err, model.ErrMalformedResult) {
		t.Errorf("garbage mode: expected malformed, got %v", err)
	}

	setMode(t, ts.URL, "malformed")
	body, err := analyze()
	if err != nil {
		t.Fatalf("malformed mode transport: %v", err)
	}
	if _, err := model.Validate(body); !errors.Is(err, model.ErrMalformedResult) {
		t.Errorf("malformed mode: expected validation failure, got %v", err)
	}
}
