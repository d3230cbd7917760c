package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// AnalysisResult is the validated response for one scan. Findings keep the
// order the analysis service returned them in.
type AnalysisResult struct {
	PatientName  string    `json:"patientName"`
	AnalysisDate string    `json:"analysisDate"`
	Findings     []Finding `json:"findings"`
	// ImagePayload is opaque to the core, typically a base64 data URI.
	ImagePayload string `json:"imageBase64"`
}

// Clone returns a copy that shares no mutable state with r.
func (r AnalysisResult) Clone() AnalysisResult {
	out := r
	out.Findings = append([]Finding(nil), r.Findings...)
	return out
}

// HistoryEntry is an AnalysisResult committed to the history cache.
type HistoryEntry struct {
	ID string `json:"id"`
	AnalysisResult
	SavedAt time.Time `json:"savedAt"`
}

// Clone returns a copy that shares no mutable state with e.
func (e HistoryEntry) Clone() HistoryEntry {
	out := e
	out.AnalysisResult = e.AnalysisResult.Clone()
	return out
}

// imagePayloadKeys lists the accepted wire names for the image, in priority order.
var imagePayloadKeys = []string{"imageBase64", "imagePayload"}

// Validate narrows an untyped decoded JSON value into an AnalysisResult.
// Unknown fields are ignored; nothing is coerced beyond number narrowing.
func Validate(raw any) (AnalysisResult, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return AnalysisResult{}, malformed("response is not an object")
	}

	patient, err := requiredString(obj, "patientName")
	if err != nil {
		return AnalysisResult{}, err
	}
	date, err := requiredString(obj, "analysisDate")
	if err != nil {
		return AnalysisResult{}, err
	}

	rawFindings, ok := obj["findings"]
	if !ok || rawFindings == nil {
		return AnalysisResult{}, malformed("findings is missing")
	}
	list, ok := rawFindings.([]any)
	if !ok {
		return AnalysisResult{}, malformed("findings is not a list")
	}
	findings := make([]Finding, 0, len(list))
	for i, item := range list {
		f, err := validateFinding(i, item)
		if err != nil {
			return AnalysisResult{}, err
		}
		findings = append(findings, f)
	}

	image := ""
	found := false
	for _, key := range imagePayloadKeys {
		v, ok := obj[key]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return AnalysisResult{}, malformed("%s is not a string", key)
		}
		image, found = s, true
		break
	}
	if !found {
		return AnalysisResult{}, malformed("image payload is missing")
	}

	return AnalysisResult{
		PatientName:  patient,
		AnalysisDate: date,
		Findings:     findings,
		ImagePayload: image,
	}, nil
}

func validateFinding(i int, item any) (Finding, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Finding{}, malformed("findings[%d] is not an object", i)
	}
	nameVal, ok := obj["name"]
	if !ok {
		return Finding{}, malformed("findings[%d].name is missing", i)
	}
	name, ok := nameVal.(string)
	if !ok {
		return Finding{}, malformed("findings[%d].name is not a string", i)
	}
	if name == "" {
		return Finding{}, malformed("findings[%d].name is empty", i)
	}
	scoreVal, ok := obj["score"]
	if !ok {
		return Finding{}, malformed("findings[%d].score is missing", i)
	}
	score, ok := toFloat(scoreVal)
	if !ok {
		return Finding{}, malformed("findings[%d].score is not a number", i)
	}
	if math.IsNaN(score) || score < 0 || score > 100 {
		return Finding{}, malformed("findings[%d].score %v is outside [0,100]", i, score)
	}
	return Finding{Name: name, Score: score}, nil
}

func requiredString(obj map[string]any, key string) (string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return "", malformed("%s is missing", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", malformed("%s is not a string", key)
	}
	return s, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResult, fmt.Sprintf(format, args...))
}
