package server

import (
	"github.com/raysh454/medtriage/internal/model"
	"github.com/raysh454/medtriage/internal/report"
)

// EntryResponse is a history entry with its derived risk.
type EntryResponse struct {
	model.HistoryEntry
	Risk model.RiskLevel `json:"risk" example:"HIGH"`
}

// ThemeRequest sets the theme preference.
type ThemeRequest struct {
	Theme string `json:"theme" example:"dark"`
}

// ThemeResponse reports the stored theme preference.
type ThemeResponse struct {
	Theme string `json:"theme" example:"light"`
}

// UnlockRequest carries the passphrase for the unlock gate.
type UnlockRequest struct {
	Passphrase string `json:"passphrase" example:"correct horse battery staple"`
}

// UnlockResponse reports the gate latch.
type UnlockResponse struct {
	Unlocked bool `json:"unlocked" example:"true"`
}

// ExportRequest selects the export format and whether to share the artifact.
type ExportRequest struct {
	Format string `json:"format" example:"pdf"`
	Share  bool   `json:"share" example:"false"`
}

// ExportResponse describes the exported artifact and, when shared, its link.
type ExportResponse struct {
	Artifact report.Artifact `json:"artifact"`
	Link     string          `json:"link,omitempty" example:"https://minio.local/reports/r.pdf?X-Amz-Signature=..."`
}

// DiffResponse lists line changes between two reports.
type DiffResponse struct {
	BaseID  string          `json:"base_id"`
	HeadID  string          `json:"head_id"`
	Changes []report.Change `json:"changes"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"not found"`
}
