package main

import (
	"strings"
	"testing"
)

func TestLoginValidateSubmit(t *testing.T) {
	m := newLoginModel()
	m.usernameInput.SetValue("alice")
	m.passwordInput.SetValue("pass1")
	if msg := m.validateSubmit(); msg != "" {
		t.Fatalf("unexpected error: %s", msg)
	}

	m.usernameInput.SetValue("al")
	if msg := m.validateSubmit(); msg == "" {
		t.Fatalf("expected username length error")
	}

	m.usernameInput.CharLimit = 0
	m.usernameInput.SetValue(strings.Repeat("a", 21))
	if msg := m.validateSubmit(); msg == "" {
		t.Fatalf("expected username max length error")
	}

	m.usernameInput.SetValue("alice")
	m.passwordInput.SetValue("pw")
	if msg := m.validateSubmit(); msg == "" {
		t.Fatalf("expected password length error")
	}
}

func TestLoginValidateSubmit_RegisterConfirm(t *testing.T) {
	m := newLoginModel()
	m.isRegister = true
	m.usernameInput.SetValue("alice")
	m.passwordInput.SetValue("pass1")
	m.confirmInput.SetValue("pass2")
	if msg := m.validateSubmit(); msg == "" {
		t.Fatalf("expected password mismatch error")
	}

	m.confirmInput.SetValue("pass1")
	if msg := m.validateSubmit(); msg != "" {
		t.Fatalf("unexpected error: %s", msg)
	}
}

func TestLoginMoveFocus(t *testing.T) {
	m := newLoginModel()
	m.moveFocus(1)
	if m.focusIdx != 1 {
		t.Fatalf("expected focus 1, got %d", m.focusIdx)
	}
	// Login mode has two fields; wrap around.
	m.moveFocus(1)
	if m.focusIdx != 0 {
		t.Fatalf("expected focus 0, got %d", m.focusIdx)
	}

	m.isRegister = true
	m.moveFocus(-1)
	if m.focusIdx != 2 {
		t.Fatalf("expected focus 2, got %d", m.focusIdx)
	}
}

func TestLoginView(t *testing.T) {
	m := newLoginModel()
	m.width = 80
	m.height = 24
	out := m.View()
	if !strings.Contains(out, "courier") || !strings.Contains(out, "Login") {
		t.Fatalf("unexpected view output:\n%s", out)
	}

	m.isRegister = true
	out = m.View()
	if !strings.Contains(out, "Register") || !strings.Contains(out, "Confirm Password") {
		t.Fatalf("register view missing fields:\n%s", out)
	}
}
