package report_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raysh454/medtriage/internal/model"
	"github.com/raysh454/medtriage/internal/report"
	"github.com/raysh454/medtriage/internal/testutil"
)

func TestHTMLExporter_WritesFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	exp, err := report.NewExporter(report.FormatHTML, dir, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	doc := report.Render(sample())

	art, err := exp.Export(context.Background(), doc, "report J. Doe/1")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if filepath.Dir(art.Path) != dir || !strings.HasSuffix(art.Path, ".html") {
		t.Errorf("unexpected path %q", art.Path)
	}
	data, err := os.ReadFile(art.Path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	want, _ := doc.HTML()
	if !bytes.Equal(data, want) || art.Size != int64(len(want)) {
		t.Error("artifact content does not match rendered HTML")
	}
}

func TestHTMLExporter_FailureIsRenderError(t *testing.T) {
	t.Parallel()
	// A regular file where the directory should be makes the write fail.
	blocker := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}
	exp, _ := report.NewHTMLExporter(blocker, &testutil.DummyLogger{})
	_, err := exp.Export(context.Background(), report.Render(sample()), "r")
	if !errors.Is(err, model.ErrRender) {
		t.Fatalf("expected render error, got %v", err)
	}
}

func TestNewExporter_UnknownFormat(t *testing.T) {
	t.Parallel()
	if _, err := report.NewExporter("docx", t.TempDir(), &testutil.DummyLogger{}); !errors.Is(err, model.ErrRender) {
		t.Fatalf("expected render error, got %v", err)
	}
}

func TestPDFExporter_Export(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	exp, err := report.NewPDFExporter(t.TempDir(), &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewPDFExporter: %v", err)
	}
	art, err := exp.Export(context.Background(), report.Render(sample()), "pdf-report")
	if err != nil {
		t.Skipf("Skipping chromedp PDF test (environment does not support chromedp): %v", err)
	}
	data, err := os.ReadFile(art.Path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("artifact is not a PDF")
	}
}

func TestArtifactName(t *testing.T) {
	t.Parallel()
	e := model.HistoryEntry{ID: "abc", AnalysisResult: sample()}
	if got := report.ArtifactName(e); got != "medtriage-report-J. Doe-abc" {
		t.Errorf("unexpected name %q", got)
	}
}
