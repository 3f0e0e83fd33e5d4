package app

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/akeeren/courier/internal/auth"
	"github.com/akeeren/courier/internal/call"
	"github.com/akeeren/courier/internal/config"
	"github.com/akeeren/courier/internal/signal"
)

func testConfig(dir string) config.Client {
	return config.Client{
		DataDir:        dir,
		SyncInterval:   25 * time.Millisecond,
		SignalInterval: 10 * time.Millisecond,
	}
}

func newTestApp(t *testing.T, dir string) *App {
	t.Helper()
	a, err := New(testConfig(dir))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestLoginFlow(t *testing.T) {
	a := newTestApp(t, t.TempDir())
	ctx := context.Background()

	if _, err := a.RegisterAccount(ctx, "alice", "pass1", "pass1"); err != nil {
		t.Fatalf("RegisterAccount() error = %v", err)
	}
	if got := a.ActiveUser(); got != "alice" {
		t.Fatalf("ActiveUser() = %q, want alice", got)
	}

	if err := a.Logout(); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if got := a.ActiveUser(); got != "" {
		t.Fatalf("ActiveUser() = %q after logout", got)
	}

	if _, err := a.SubmitCredentials(ctx, "alice", "wrong"); !errors.Is(err, auth.ErrBadPassword) {
		t.Fatalf("expected ErrBadPassword, got %v", err)
	}
	if _, err := a.SubmitCredentials(ctx, "alice", "pass1"); err != nil {
		t.Fatalf("SubmitCredentials() error = %v", err)
	}
}

func TestFriendAndMessageFlow(t *testing.T) {
	a := newTestApp(t, t.TempDir())
	ctx := context.Background()

	if _, err := a.RegisterAccount(ctx, "alice", "pass1", "pass1"); err != nil {
		t.Fatalf("RegisterAccount() error = %v", err)
	}
	if _, err := a.RegisterAccount(ctx, "bob", "pass2", "pass2"); err != nil {
		t.Fatalf("RegisterAccount() error = %v", err)
	}

	if err := a.RequestFriendAdd(ctx, "alice", "bob"); err != nil {
		t.Fatalf("RequestFriendAdd() error = %v", err)
	}
	if got := a.Friends("alice"); !reflect.DeepEqual(got, []string{"bob"}) {
		t.Fatalf("Friends(alice) = %+v", got)
	}

	if _, err := a.SubmitMessage("alice", "bob", "hi bob"); err != nil {
		t.Fatalf("SubmitMessage() error = %v", err)
	}
	conv := a.Conversation("alice", "bob")
	if len(conv) != 1 || conv[0].Text != "hi bob" {
		t.Fatalf("Conversation() = %+v", conv)
	}

	if err := a.RequestFriendRemove("alice", "bob"); err != nil {
		t.Fatalf("RequestFriendRemove() error = %v", err)
	}
	if got := a.Friends("alice"); len(got) != 0 {
		t.Fatalf("Friends(alice) = %+v after remove", got)
	}
}

// TestCallFlow runs two app instances over one data dir, which stands in
// for a replicated store: both see the same mailbox slots.
func TestCallFlow(t *testing.T) {
	dir := t.TempDir()
	caller := newTestApp(t, dir)
	callee := newTestApp(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := caller.RegisterAccount(ctx, "alice", "pass1", "pass1"); err != nil {
		t.Fatalf("RegisterAccount(alice) error = %v", err)
	}
	if _, err := callee.RegisterAccount(ctx, "bob", "pass2", "pass2"); err != nil {
		t.Fatalf("RegisterAccount(bob) error = %v", err)
	}

	incoming := make(chan signal.Envelope, 1)
	callee.SetHooks(Hooks{OnIncomingCall: func(env signal.Envelope) { incoming <- env }})

	go caller.Run(ctx)
	go callee.Run(ctx)

	if err := caller.RequestCall("bob", false); err != nil {
		t.Fatalf("RequestCall() error = %v", err)
	}
	if got := caller.CallState(); got != call.Originating {
		t.Fatalf("caller state = %s, want originating", got)
	}

	var env signal.Envelope
	select {
	case env = <-incoming:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the incoming-call hook")
	}
	if env.From != "alice" || env.IsVideoCall {
		t.Fatalf("incoming envelope = %+v", env)
	}

	if err := callee.AcceptIncomingCall(); err != nil {
		t.Fatalf("AcceptIncomingCall() error = %v", err)
	}
	waitFor(t, "caller to go active", func() bool { return caller.CallState() == call.Active })
	if got := callee.CallState(); got != call.Active {
		t.Fatalf("callee state = %s, want active", got)
	}

	caller.HangUp()
	caller.HangUp() // idempotent
	if got := caller.CallState(); got != call.Idle {
		t.Fatalf("caller state = %s, want idle", got)
	}
}

func TestCallOperations_LoggedOut(t *testing.T) {
	a := newTestApp(t, t.TempDir())

	if err := a.RequestCall("bob", false); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
	if _, err := a.ToggleLocalAudio(); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
	a.HangUp() // no-op, must not panic
}

func TestToggleAudio_NoCall(t *testing.T) {
	a := newTestApp(t, t.TempDir())
	if _, err := a.RegisterAccount(context.Background(), "alice", "pass1", "pass1"); err != nil {
		t.Fatalf("RegisterAccount() error = %v", err)
	}

	if _, err := a.ToggleLocalAudio(); !errors.Is(err, call.ErrNoLocalMedia) {
		t.Fatalf("expected ErrNoLocalMedia, got %v", err)
	}
}
