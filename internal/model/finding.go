package model

// DetectionThreshold is the score above which a finding counts as detected.
// The comparison is strict: a score of exactly 50.0 is NORMAL.
const DetectionThreshold = 50.0

// Finding is one detected condition with a confidence score in [0, 100].
type Finding struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// FindingStatus labels a single finding row.
type FindingStatus string

const (
	FindingDetected FindingStatus = "DETECTED"
	FindingNormal   FindingStatus = "NORMAL"
)

// ClassifyFinding labels one finding by its own score.
func ClassifyFinding(score float64) FindingStatus {
	if score > DetectionThreshold {
		return FindingDetected
	}
	return FindingNormal
}

// RiskLevel is the overall classification of an AnalysisResult.
type RiskLevel string

const (
	RiskHigh RiskLevel = "HIGH"
	RiskLow  RiskLevel = "LOW"
)

// ClassifyRisk reports HIGH iff the first (primary) finding scores above the
// detection threshold. Later findings do not participate, even when one of
// them is DETECTED; this first-finding policy is kept as-is pending a product
// decision. A result without findings is LOW.
func ClassifyRisk(r AnalysisResult) RiskLevel {
	if len(r.Findings) == 0 {
		return RiskLow
	}
	if r.Findings[0].Score > DetectionThreshold {
		return RiskHigh
	}
	return RiskLow
}

// KnownConditions is the condition vocabulary the analysis service reports on.
var KnownConditions = []string{
	"Atelectasis",
	"Cardiomegaly",
	"Consolidation",
	"Edema",
	"Effusion",
	"Emphysema",
	"Fibrosis",
	"Hernia",
	"Infiltration",
	"Mass",
	"Nodule",
	"Pleural_Thickening",
	"Pneumonia",
	"Pneumothorax",
}

var knownConditionSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(KnownConditions))
	for _, c := range KnownConditions {
		m[c] = struct{}{}
	}
	return m
}()

// IsKnownCondition reports whether name is part of KnownConditions.
func IsKnownCondition(name string) bool {
	_, ok := knownConditionSet[name]
	return ok
}
