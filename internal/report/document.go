// Package report turns an AnalysisResult into a static, deterministic document
// and exports it as a shareable artifact.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/raysh454/medtriage/internal/model"
)

// Title is the fixed document header.
const Title = "MedTriage AI Report"

// Row is one finding line of the report table.
type Row struct {
	Name string `json:"name"`
	// Score is formatted to one decimal place.
	Score  string              `json:"score"`
	Status model.FindingStatus `json:"status"`
}

// Document is the rendered structure of a report. Equal inputs give equal Documents.
type Document struct {
	Title        string          `json:"title"`
	PatientName  string          `json:"patientName"`
	AnalysisDate string          `json:"analysisDate"`
	ImagePayload string          `json:"imageBase64"`
	Rows         []Row           `json:"rows"`
	Risk         model.RiskLevel `json:"risk"`
}

// Render builds the Document for result. It has no side effects.
func Render(result model.AnalysisResult) Document {
	rows := make([]Row, 0, len(result.Findings))
	for _, f := range result.Findings {
		rows = append(rows, Row{
			Name:   f.Name,
			Score:  FormatScore(f.Score),
			Status: model.ClassifyFinding(f.Score),
		})
	}
	return Document{
		Title:        Title,
		PatientName:  result.PatientName,
		AnalysisDate: result.AnalysisDate,
		ImagePayload: result.ImagePayload,
		Rows:         rows,
		Risk:         model.ClassifyRisk(result),
	}
}

// FormatScore renders a score with exactly one decimal place.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 1, 64)
}

//go:embed report.html.tmpl
var htmlTemplateSrc string

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"imageURL": imageURL,
	"lower":    func(s model.FindingStatus) string { return strings.ToLower(string(s)) },
}).Parse(htmlTemplateSrc))

// imageURL turns the payload into something an <img> can load. Bare base64 is
// assumed to be PNG.
func imageURL(payload string) template.URL {
	if payload == "" {
		return ""
	}
	if strings.HasPrefix(payload, "data:image/") {
		return template.URL(payload)
	}
	return template.URL("data:image/png;base64," + payload)
}

// HTML renders the document as a self-contained HTML page.
func (d Document) HTML() ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, d); err != nil {
		return nil, model.NewScanError(model.KindRender, "failed to render report", err)
	}
	return buf.Bytes(), nil
}

// Text renders the document as plain text, one line per fact.
func (d Document) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", d.Title)
	fmt.Fprintf(&b, "Patient: %s\n", d.PatientName)
	fmt.Fprintf(&b, "Date: %s\n", d.AnalysisDate)
	fmt.Fprintf(&b, "Risk: %s\n", d.Risk)
	b.WriteString("Findings:\n")
	for _, r := range d.Rows {
		fmt.Fprintf(&b, "  %s\t%s%%\t%s\n", r.Name, r.Score, r.Status)
	}
	return b.String()
}
