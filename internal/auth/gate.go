// Package auth is the unlock gate the UI consults before showing patient data.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"sync"

	"github.com/raysh454/medtriage/internal/logging"
)

// Prompt is shown by authenticators that ask the user for something.
const Prompt = "Unlock MedTriage"

// ErrLocked is returned by callers that require an unlocked gate.
var ErrLocked = errors.New("auth: locked")

// Authenticator is the device's local authentication capability.
type Authenticator interface {
	// HasHardware reports whether the device can authenticate at all.
	HasHardware(ctx context.Context) (bool, error)
	// Authenticate asks the user to authenticate and reports success.
	Authenticate(ctx context.Context, prompt string) (bool, error)
}

// Input supplies a credential the user typed.
type Input func(ctx context.Context, prompt string) (string, error)

// InputAuthenticator is an Authenticator whose credential is typed, so a
// caller that already holds the input can supply it per attempt.
type InputAuthenticator interface {
	Authenticator
	WithInput(in Input) Authenticator
}

// Gate latches open once authentication succeeds. A device without
// authentication hardware is unlocked on the first Unlock.
type Gate struct {
	auth   Authenticator
	logger logging.Logger

	mu       sync.Mutex
	unlocked bool
}

func NewGate(a Authenticator, logger logging.Logger) (*Gate, error) {
	if logger == nil {
		return nil, errors.New("auth: nil logger provided")
	}
	if a == nil {
		a = NoHardware{}
	}
	return &Gate{auth: a, logger: logger.With(logging.Field{Key: "component", Value: "auth"})}, nil
}

// Unlock authenticates with the gate's authenticator.
func (g *Gate) Unlock(ctx context.Context) (bool, error) {
	return g.unlockWith(ctx, g.auth)
}

// UnlockWithInput hands in to the gate's authenticator when it takes typed
// input. Any other authenticator runs its own prompt and in is unused.
// A failed attempt leaves the gate as it was.
func (g *Gate) UnlockWithInput(ctx context.Context, in Input) (bool, error) {
	if ia, ok := g.auth.(InputAuthenticator); ok {
		return g.unlockWith(ctx, ia.WithInput(in))
	}
	return g.unlockWith(ctx, g.auth)
}

func (g *Gate) unlockWith(ctx context.Context, a Authenticator) (bool, error) {
	if g.Unlocked() {
		return true, nil
	}
	has, err := a.HasHardware(ctx)
	if err != nil {
		return false, err
	}
	ok := true
	if has {
		ok, err = a.Authenticate(ctx, Prompt)
		if err != nil {
			g.logger.Warn("authentication error", logging.Err(err))
			return false, err
		}
	}
	if !ok {
		g.logger.Info("authentication rejected")
		return false, nil
	}
	g.mu.Lock()
	g.unlocked = true
	g.mu.Unlock()
	g.logger.Info("gate unlocked", logging.Field{Key: "hardware", Value: has})
	return true, nil
}

// Unlocked reports the latch.
func (g *Gate) Unlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlocked
}

// Lock closes the gate again.
func (g *Gate) Lock() {
	g.mu.Lock()
	g.unlocked = false
	g.mu.Unlock()
}

// NoHardware is an Authenticator for devices without local authentication.
type NoHardware struct{}

func (NoHardware) HasHardware(context.Context) (bool, error) { return false, nil }
func (NoHardware) Authenticate(context.Context, string) (bool, error) { return true, nil }

// Passphrase authenticates by comparing a supplied passphrase against a
// SHA-256 hex digest.
type Passphrase struct {
	// Digest is the lowercase hex SHA-256 of the expected passphrase.
	Digest string
	// Input returns the passphrase the user entered.
	Input Input
}

var _ InputAuthenticator = Passphrase{}

// HashPassphrase returns the digest Passphrase compares against.
func HashPassphrase(p string) string {
	sum := sha256.Sum256([]byte(p))
	return hex.EncodeToString(sum[:])
}

// HasHardware is true whenever a digest is configured.
func (p Passphrase) HasHardware(context.Context) (bool, error) {
	return strings.TrimSpace(p.Digest) != "", nil
}

func (p Passphrase) Authenticate(ctx context.Context, prompt string) (bool, error) {
	if p.Input == nil {
		return false, errors.New("auth: no passphrase input")
	}
	got, err := p.Input(ctx, prompt)
	if err != nil {
		return false, err
	}
	want := strings.ToLower(strings.TrimSpace(p.Digest))
	return subtle.ConstantTimeCompare([]byte(HashPassphrase(got)), []byte(want)) == 1, nil
}

func (p Passphrase) WithInput(in Input) Authenticator {
	p.Input = in
	return p
}

// Static returns an Input that always supplies s.
func Static(s string) Input {
	return func(context.Context, string) (string, error) { return s, nil }
}
