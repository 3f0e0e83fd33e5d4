package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/akeeren/courier/internal/app"
	"github.com/akeeren/courier/internal/config"
)

func newTestChat(t *testing.T) chatModel {
	t.Helper()
	core, err := app.New(config.Client{
		DataDir:        t.TempDir(),
		SyncInterval:   time.Second,
		SignalInterval: time.Second,
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	ctx := context.Background()
	if _, err := core.RegisterAccount(ctx, "alice", "pass1", "pass1"); err != nil {
		t.Fatalf("RegisterAccount(alice) error = %v", err)
	}
	if _, err := core.RegisterAccount(ctx, "bob", "pass2", "pass2"); err != nil {
		t.Fatalf("RegisterAccount(bob) error = %v", err)
	}
	if _, err := core.SubmitCredentials(ctx, "alice", "pass1"); err != nil {
		t.Fatalf("SubmitCredentials() error = %v", err)
	}
	return newChatModel(core, "alice", 80, 24)
}

func (m *chatModel) typeAndSubmit(text string) {
	m.input.SetValue(text)
	m.submitInput()
}

func TestChatAddFriendAndSend(t *testing.T) {
	m := newTestChat(t)

	m.typeAndSubmit("/add bob")
	if m.errMsg != "" {
		t.Fatalf("add friend failed: %s", m.errMsg)
	}
	if len(m.friends) != 1 || m.friends[0] != "bob" {
		t.Fatalf("friends = %+v", m.friends)
	}

	m.typeAndSubmit("hi bob")
	if m.errMsg != "" {
		t.Fatalf("send failed: %s", m.errMsg)
	}
	conv := m.core.Conversation("alice", "bob")
	if len(conv) != 1 || conv[0].Text != "hi bob" {
		t.Fatalf("conversation = %+v", conv)
	}
}

func TestChatSend_NoFriendSelected(t *testing.T) {
	m := newTestChat(t)

	m.typeAndSubmit("hello?")
	if m.errMsg == "" {
		t.Fatal("expected an error with no friend selected")
	}
}

func TestChatCommandErrors(t *testing.T) {
	m := newTestChat(t)

	m.typeAndSubmit("/add")
	if !strings.Contains(m.errMsg, "usage") {
		t.Fatalf("errMsg = %q", m.errMsg)
	}
	m.typeAndSubmit("/add alice")
	if m.errMsg == "" {
		t.Fatal("expected self-add error")
	}
	m.typeAndSubmit("/add ghost")
	if m.errMsg == "" {
		t.Fatal("expected unknown-user error")
	}
	m.typeAndSubmit("/bogus")
	if !strings.Contains(m.errMsg, "unknown command") {
		t.Fatalf("errMsg = %q", m.errMsg)
	}
}

func TestChatRemoveFriend(t *testing.T) {
	m := newTestChat(t)

	m.typeAndSubmit("/add bob")
	m.typeAndSubmit("/remove bob")
	if m.errMsg != "" {
		t.Fatalf("remove failed: %s", m.errMsg)
	}
	if len(m.friends) != 0 {
		t.Fatalf("friends = %+v", m.friends)
	}
}

func TestChatLogout(t *testing.T) {
	m := newTestChat(t)

	m.typeAndSubmit("/logout")
	if !m.loggedOut {
		t.Fatal("expected loggedOut after /logout")
	}
	if m.core.ActiveUser() != "" {
		t.Fatal("expected session cleared")
	}
}

func TestChatView(t *testing.T) {
	m := newTestChat(t)
	m.typeAndSubmit("/add bob")
	m.typeAndSubmit("hi bob")

	out := m.View()
	if !strings.Contains(out, "courier") || !strings.Contains(out, "alice") {
		t.Fatalf("view missing header:\n%s", out)
	}
	if !strings.Contains(out, "friends") || !strings.Contains(out, "bob") {
		t.Fatalf("view missing sidebar:\n%s", out)
	}
}
