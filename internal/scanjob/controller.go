// Package scanjob drives one upload-and-analyze attempt through the
// Idle → Selecting → Uploading → Succeeded|Failed state machine and commits
// successful results to the history archive.
package scanjob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raysh454/medtriage/internal/analyzer"
	"github.com/raysh454/medtriage/internal/logging"
	"github.com/raysh454/medtriage/internal/model"
)

var (
	// ErrJobInFlight is returned by Submit while an upload is already running.
	ErrJobInFlight = errors.New("scanjob: an upload is already in flight")
	// ErrInvalidTransition is returned for any other call not allowed in the current state.
	ErrInvalidTransition = errors.New("scanjob: invalid transition")
)

// Archive is where successful results are committed. *history.Cache implements it.
type Archive interface {
	Append(ctx context.Context, result model.AnalysisResult) (model.HistoryEntry, error)
}

const eventBuffer = 16

// Controller owns the single active scan job of a session.
type Controller struct {
	transport analyzer.Transport
	archive   Archive
	logger    logging.Logger

	mu sync.Mutex
	// job is the active job; prior is what CancelSelection restores.
	job   Job
	prior Job

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int

	now func() time.Time
}

// NewController creates a Controller in the Idle state.
func NewController(transport analyzer.Transport, archive Archive, logger logging.Logger) (*Controller, error) {
	if logger == nil {
		return nil, errors.New("scanjob: nil logger provided")
	}
	if transport == nil {
		return nil, errors.New("scanjob: nil transport provided")
	}
	if archive == nil {
		return nil, errors.New("scanjob: nil archive provided")
	}
	return &Controller{
		transport: transport,
		archive:   archive,
		logger:    logger.With(logging.Field{Key: "component", Value: "scanjob"}),
		job:       Job{Status: StatusIdle},
		subs:      make(map[int]chan Event),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Current returns a snapshot of the active job.
func (c *Controller) Current() Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.clone()
}

// SelectFile starts file selection. Allowed from Idle or a terminal state.
func (c *Controller) SelectFile() (Job, error) {
	c.mu.Lock()
	from := c.job.Status
	if from != StatusIdle && !from.Terminal() {
		c.mu.Unlock()
		return Job{}, c.rejected("select", from)
	}
	c.prior = c.job
	c.job = Job{Status: StatusSelecting}
	snap := c.job.clone()
	c.mu.Unlock()

	c.publish(Event{Type: EventStatus, Status: StatusSelecting})
	return snap, nil
}

// CancelSelection aborts file selection and restores the job that was
// active before SelectFile, with no other side effect.
func (c *Controller) CancelSelection() (Job, error) {
	c.mu.Lock()
	if c.job.Status != StatusSelecting {
		from := c.job.Status
		c.mu.Unlock()
		return Job{}, c.rejected("cancel selection", from)
	}
	c.job = c.prior
	c.prior = Job{}
	snap := c.job.clone()
	c.mu.Unlock()

	c.publish(Event{JobID: snap.ID, Type: EventStatus, Status: snap.Status, FileName: snap.FileName})
	return snap, nil
}

// Reset discards a terminal job and returns to Idle. Reset on Idle is a no-op.
func (c *Controller) Reset() (Job, error) {
	c.mu.Lock()
	from := c.job.Status
	if from != StatusIdle && !from.Terminal() {
		c.mu.Unlock()
		return Job{}, c.rejected("reset", from)
	}
	c.job = Job{Status: StatusIdle}
	c.prior = Job{}
	c.mu.Unlock()

	if from != StatusIdle {
		c.publish(Event{Type: EventStatus, Status: StatusIdle})
	}
	return Job{Status: StatusIdle}, nil
}

// Submit uploads up and blocks until the job is Succeeded or Failed. It is
// only allowed from Selecting; while another upload runs it fails with
// ErrJobInFlight. ctx cancellation is honored only while waiting on the
// transport. A failed archive commit is recorded on the job and logged but
// does not change the Succeeded outcome.
func (c *Controller) Submit(ctx context.Context, up analyzer.Upload) (Job, error) {
	c.mu.Lock()
	switch c.job.Status {
	case StatusUploading:
		c.mu.Unlock()
		c.logger.Warn("submit rejected, upload in flight", logging.Field{Key: "file", Value: up.FileName})
		return Job{}, ErrJobInFlight
	case StatusSelecting:
	default:
		from := c.job.Status
		c.mu.Unlock()
		return Job{}, c.rejected("submit", from)
	}
	id := uuid.New().String()
	c.job = Job{ID: id, Status: StatusUploading, FileName: up.FileName, StartedAt: c.now()}
	c.prior = Job{}
	c.mu.Unlock()

	logger := c.logger.With(logging.Field{Key: "job_id", Value: id})
	logger.Info("scan upload started", logging.Field{Key: "file", Value: up.FileName})
	c.publish(Event{JobID: id, Type: EventStatus, Status: StatusUploading, FileName: up.FileName})

	raw, err := c.transport.Analyze(ctx, up)
	if err != nil {
		return c.fail(logger, model.AsScanError(err, model.KindTransport)), nil
	}
	result, err := model.Validate(raw)
	if err != nil {
		return c.fail(logger, model.NewScanError(model.KindMalformed, "The analysis response could not be read.", err)), nil
	}
	for _, f := range result.Findings {
		if !model.IsKnownCondition(f.Name) {
			logger.Warn("finding outside known condition vocabulary", logging.Field{Key: "name", Value: f.Name})
		}
	}

	// Still Uploading here, so no other job can start while the commit runs.
	// The commit survives caller cancellation: the scan itself already succeeded.
	entry, archiveErr := c.archive.Append(context.WithoutCancel(ctx), result)

	c.mu.Lock()
	c.job.Status = StatusSucceeded
	c.job.Result = &result
	c.job.Risk = model.ClassifyRisk(result)
	c.job.EndedAt = c.now()
	if archiveErr != nil {
		c.job.ArchiveError = model.AsScanError(archiveErr, model.KindPersistence).Message
	} else {
		c.job.Entry = &entry
	}
	snap := c.job.clone()
	c.mu.Unlock()

	logger.Info("scan succeeded",
		logging.Field{Key: "patient", Value: result.PatientName},
		logging.Field{Key: "findings", Value: len(result.Findings)},
		logging.Field{Key: "risk", Value: string(snap.Risk)})
	c.publish(Event{JobID: id, Type: EventStatus, Status: StatusSucceeded, FileName: up.FileName})

	if archiveErr != nil {
		logger.Error("failed to archive scan result", logging.Err(archiveErr))
		c.publish(Event{JobID: id, Type: EventArchived, ArchiveError: snap.ArchiveError})
	} else {
		c.publish(Event{JobID: id, Type: EventArchived, EntryID: entry.ID})
	}
	return snap, nil
}

func (c *Controller) fail(logger logging.Logger, se *model.ScanError) Job {
	c.mu.Lock()
	c.job.Status = StatusFailed
	c.job.Error = se
	c.job.EndedAt = c.now()
	snap := c.job.clone()
	c.mu.Unlock()

	logger.Warn("scan failed",
		logging.Field{Key: "kind", Value: string(se.Kind)},
		logging.Field{Key: "message", Value: se.Message})
	c.publish(Event{JobID: snap.ID, Type: EventStatus, Status: StatusFailed, FileName: snap.FileName, Error: se.Message})
	return snap
}

func (c *Controller) rejected(op string, from Status) error {
	c.logger.Debug("rejected transition",
		logging.Field{Key: "op", Value: op},
		logging.Field{Key: "from", Value: string(from)})
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, op, from)
}

// Subscribe returns a channel of job events and a function that ends the
// subscription. Slow subscribers miss events rather than block the job.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
			close(ch)
		})
	}
}

func (c *Controller) publish(ev Event) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		// Non-blocking send; drop if buffer is full.
		select {
		case ch <- ev:
		default:
		}
	}
}
