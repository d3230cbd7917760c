package scanjob

import (
	"time"

	"github.com/raysh454/medtriage/internal/model"
)

// Status is the state of the active scan job.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSelecting Status = "selecting"
	StatusUploading Status = "uploading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is Succeeded or Failed.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job is a snapshot of the active scan job. It is never persisted.
type Job struct {
	ID       string `json:"id,omitempty"`
	Status   Status `json:"status"`
	FileName string `json:"file_name,omitempty"`

	// Set when Status is StatusSucceeded.
	Result *model.AnalysisResult `json:"result,omitempty"`
	Risk   model.RiskLevel       `json:"risk,omitempty"`
	// Entry is the archived history entry, nil when archiving failed.
	Entry        *model.HistoryEntry `json:"entry,omitempty"`
	ArchiveError string              `json:"archive_error,omitempty"`

	// Set when Status is StatusFailed.
	Error *model.ScanError `json:"error,omitempty"`

	StartedAt time.Time `json:"started_at,omitzero"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

func (j Job) clone() Job {
	out := j
	if j.Result != nil {
		r := j.Result.Clone()
		out.Result = &r
	}
	if j.Entry != nil {
		e := j.Entry.Clone()
		out.Entry = &e
	}
	if j.Error != nil {
		se := *j.Error
		out.Error = &se
	}
	return out
}

type EventType string

const (
	EventStatus   EventType = "status"
	EventArchived EventType = "archived"
)

// Event is published to subscribers on every transition and after archiving.
type Event struct {
	JobID string    `json:"job_id,omitempty"`
	Type  EventType `json:"type"`

	// For status changes
	Status   Status `json:"status,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Error    string `json:"error,omitempty"`

	// For archive outcomes
	EntryID      string `json:"entry_id,omitempty"`
	ArchiveError string `json:"archive_error,omitempty"`
}
