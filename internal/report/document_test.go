package report_test

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/raysh454/medtriage/internal/model"
	"github.com/raysh454/medtriage/internal/report"
)

func sample() model.AnalysisResult {
	return model.AnalysisResult{
		PatientName:  "J. Doe",
		AnalysisDate: "2024-01-01",
		Findings: []model.Finding{
			{Name: "Infiltration", Score: 72.3},
			{Name: "Nodule", Score: 12.0},
		},
		ImagePayload: "data:image/png;base64,iVBORw0KGgo=",
	}
}

func TestRender_Rows(t *testing.T) {
	t.Parallel()
	doc := report.Render(sample())

	want := []report.Row{
		{Name: "Infiltration", Score: "72.3", Status: model.FindingDetected},
		{Name: "Nodule", Score: "12.0", Status: model.FindingNormal},
	}
	if !reflect.DeepEqual(doc.Rows, want) {
		t.Fatalf("rows mismatch:\n got %+v\nwant %+v", doc.Rows, want)
	}
	if doc.Title != report.Title || doc.Risk != model.RiskHigh {
		t.Errorf("unexpected header: title=%q risk=%s", doc.Title, doc.Risk)
	}
}

func TestRender_Deterministic(t *testing.T) {
	t.Parallel()
	a := report.Render(sample())
	b := report.Render(sample())
	if !reflect.DeepEqual(a, b) {
		t.Fatal("Render is not deterministic")
	}
	ha, err := a.HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	hb, _ := b.HTML()
	if !bytes.Equal(ha, hb) {
		t.Error("HTML output differs between identical documents")
	}
	if a.Text() != b.Text() {
		t.Error("Text output differs between identical documents")
	}
}

func TestFormatScore(t *testing.T) {
	t.Parallel()
	tests := map[float64]string{0: "0.0", 12: "12.0", 50: "50.0", 72.34: "72.3", 99.96: "100.0", 100: "100.0"}
	for in, want := range tests {
		if got := report.FormatScore(in); got != want {
			t.Errorf("FormatScore(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestHTML_Structure(t *testing.T) {
	t.Parallel()
	html, err := report.Render(sample()).HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if got := doc.Find("#title").Text(); got != report.Title {
		t.Errorf("title = %q", got)
	}
	if got := doc.Find("#patient").Text(); got != "J. Doe" {
		t.Errorf("patient = %q", got)
	}
	if got := doc.Find("#date").Text(); got != "2024-01-01" {
		t.Errorf("date = %q", got)
	}
	if src, _ := doc.Find("img.scan").Attr("src"); !strings.HasPrefix(src, "data:image/png;base64,") {
		t.Errorf("image src = %q", src)
	}

	rows := doc.Find("tr.finding")
	if rows.Length() != 2 {
		t.Fatalf("expected 2 finding rows, got %d", rows.Length())
	}
	first := rows.Eq(0)
	if first.Find(".score").Text() != "72.3%" || first.Find(".status").Text() != "DETECTED" || !first.Find(".status").HasClass("detected") {
		t.Errorf("unexpected first row: %q", first.Text())
	}
	if rows.Eq(1).Find(".status").Text() != "NORMAL" {
		t.Errorf("unexpected second row: %q", rows.Eq(1).Text())
	}
}

func TestHTML_EscapesPatientName(t *testing.T) {
	t.Parallel()
	r := sample()
	r.PatientName = `<script>alert(1)</script>`
	html, err := report.Render(r).HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if bytes.Contains(html, []byte("<script>")) {
		t.Error("patient name was not escaped")
	}
}

func TestHTML_BareBase64AndMissingImage(t *testing.T) {
	t.Parallel()
	r := sample()
	r.ImagePayload = "iVBORw0KGgo="
	html, _ := report.Render(r).HTML()
	doc, _ := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if src, _ := doc.Find("img.scan").Attr("src"); src != "data:image/png;base64,iVBORw0KGgo=" {
		t.Errorf("unexpected src %q", src)
	}

	r.ImagePayload = ""
	html, _ = report.Render(r).HTML()
	doc, _ = goquery.NewDocumentFromReader(bytes.NewReader(html))
	if doc.Find("img.scan").Length() != 0 {
		t.Error("expected no image element for empty payload")
	}
}

func TestText(t *testing.T) {
	t.Parallel()
	text := report.Render(sample()).Text()
	for _, want := range []string{report.Title, "Patient: J. Doe", "Risk: HIGH", "Infiltration\t72.3%\tDETECTED", "Nodule\t12.0%\tNORMAL"} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
}

// ─── Diff ──────────────────────────────────────────────────────────────

func TestDiff(t *testing.T) {
	t.Parallel()
	base := report.Render(sample())

	if changes := report.Diff(base, base); len(changes) != 0 {
		t.Fatalf("expected no changes, got %+v", changes)
	}

	r := sample()
	r.Findings[1].Score = 55.0
	head := report.Render(r)

	changes := report.Diff(base, head)
	want := []report.Change{
		{Type: report.ChangeRemoved, Line: "  Nodule\t12.0%\tNORMAL"},
		{Type: report.ChangeAdded, Line: "  Nodule\t55.0%\tDETECTED"},
	}
	if !reflect.DeepEqual(changes, want) {
		t.Fatalf("unexpected changes:\n got %+v\nwant %+v", changes, want)
	}
}
