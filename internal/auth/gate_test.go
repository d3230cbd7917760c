package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/raysh454/medtriage/internal/auth"
	"github.com/raysh454/medtriage/internal/testutil"
)

type fakeAuth struct {
	hardware bool
	ok       bool
	err      error
	prompts  []string
}

func (f *fakeAuth) HasHardware(context.Context) (bool, error) { return f.hardware, nil }
func (f *fakeAuth) Authenticate(_ context.Context, prompt string) (bool, error) {
	f.prompts = append(f.prompts, prompt)
	return f.ok, f.err
}

func TestGate_NoHardwareUnlocks(t *testing.T) {
	t.Parallel()
	g, err := auth.NewGate(nil, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	if g.Unlocked() {
		t.Fatal("gate should start locked")
	}
	if ok, err := g.Unlock(context.Background()); !ok || err != nil {
		t.Fatalf("expected unlock, got ok=%v err=%v", ok, err)
	}
	if !g.Unlocked() {
		t.Error("expected latch to stay open")
	}
}

func TestGate_HardwarePrompts(t *testing.T) {
	t.Parallel()
	fa := &fakeAuth{hardware: true}
	g, _ := auth.NewGate(fa, &testutil.DummyLogger{})

	if ok, _ := g.Unlock(context.Background()); ok || g.Unlocked() {
		t.Fatal("rejected authentication must not unlock")
	}
	fa.ok = true
	if ok, _ := g.Unlock(context.Background()); !ok {
		t.Fatal("expected unlock on success")
	}
	if len(fa.prompts) != 2 || fa.prompts[0] != "Unlock MedTriage" {
		t.Errorf("unexpected prompts %v", fa.prompts)
	}

	g.Lock()
	if g.Unlocked() {
		t.Error("expected Lock to close the gate")
	}
}

func TestGate_AuthenticatorError(t *testing.T) {
	t.Parallel()
	boom := errors.New("sensor busy")
	g, _ := auth.NewGate(&fakeAuth{hardware: true, err: boom}, &testutil.DummyLogger{})
	if _, err := g.Unlock(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected sensor error, got %v", err)
	}
}

func TestPassphrase(t *testing.T) {
	t.Parallel()
	digest := auth.HashPassphrase("open sesame")
	g, _ := auth.NewGate(auth.Passphrase{Digest: digest}, &testutil.DummyLogger{})
	ctx := context.Background()

	if ok, _ := g.UnlockWithInput(ctx, auth.Static("wrong")); ok {
		t.Fatal("wrong passphrase unlocked the gate")
	}
	if ok, err := g.UnlockWithInput(ctx, auth.Static("open sesame")); !ok || err != nil {
		t.Fatalf("expected unlock, got ok=%v err=%v", ok, err)
	}

	if has, _ := (auth.Passphrase{}).HasHardware(ctx); has {
		t.Error("empty digest should report no hardware")
	}
	if _, err := (auth.Passphrase{Digest: digest}).Authenticate(ctx, auth.Prompt); err == nil {
		t.Error("expected error without input")
	}
}

// Typed input only reaches authenticators that take it; others prompt themselves.
func TestGate_UnlockWithInputUsesConfiguredAuthenticator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	rejecting := &fakeAuth{hardware: true, ok: false}
	g, _ := auth.NewGate(rejecting, &testutil.DummyLogger{})
	if ok, _ := g.UnlockWithInput(ctx, auth.Static("anything")); ok {
		t.Fatal("input bypassed the configured authenticator")
	}
	if len(rejecting.prompts) != 1 {
		t.Errorf("expected the configured authenticator to prompt once, got %v", rejecting.prompts)
	}

	accepting := &fakeAuth{hardware: true, ok: true}
	g, _ = auth.NewGate(accepting, &testutil.DummyLogger{})
	if ok, err := g.UnlockWithInput(ctx, auth.Static("")); !ok || err != nil {
		t.Fatalf("expected unlock, got ok=%v err=%v", ok, err)
	}
}
