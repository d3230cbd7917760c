package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the scan core.
type ErrorKind string

const (
	KindTransport   ErrorKind = "transport"
	KindServer      ErrorKind = "server"
	KindMalformed   ErrorKind = "malformed_result"
	KindPersistence ErrorKind = "persistence"
	KindRender      ErrorKind = "render"
)

var (
	// ErrTransport covers connectivity failures, timeouts and cancellation.
	ErrTransport = errors.New("transport error")
	// ErrServer is a non-success response from the analysis service.
	ErrServer = errors.New("server error")
	// ErrMalformedResult is a response missing required fields or holding invalid values.
	ErrMalformedResult = errors.New("malformed result")
	// ErrPersistence is a history read/write failure.
	ErrPersistence = errors.New("persistence error")
	// ErrRender is a report generation or export failure.
	ErrRender = errors.New("render error")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTransport:
		return ErrTransport
	case KindServer:
		return ErrServer
	case KindMalformed:
		return ErrMalformedResult
	case KindPersistence:
		return ErrPersistence
	case KindRender:
		return ErrRender
	}
	return nil
}

// ScanError carries an ErrorKind and the human-readable message shown to the user.
type ScanError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// NewScanError builds a ScanError. When message is empty, err's text is used.
func NewScanError(kind ErrorKind, message string, err error) *ScanError {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &ScanError{Kind: kind, Message: message, Err: err}
}

func (e *ScanError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind, so errors.Is(err, ErrServer) works
// regardless of the wrapped cause.
func (e *ScanError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// AsScanError extracts a *ScanError from err. Errors that are not ScanErrors
// are classified by the sentinel they wrap, falling back to fallback.
func AsScanError(err error, fallback ErrorKind) *ScanError {
	if err == nil {
		return nil
	}
	var se *ScanError
	if errors.As(err, &se) {
		return se
	}
	for _, k := range []ErrorKind{KindTransport, KindServer, KindMalformed, KindPersistence, KindRender} {
		if errors.Is(err, k.sentinel()) {
			return NewScanError(k, "", err)
		}
	}
	return NewScanError(fallback, "", err)
}
