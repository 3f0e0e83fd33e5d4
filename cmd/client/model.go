package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/akeeren/courier/internal/app"
	"github.com/akeeren/courier/internal/auth"
	"github.com/akeeren/courier/internal/call"
	"github.com/akeeren/courier/internal/document"
	"github.com/akeeren/courier/internal/signal"
)

type appState int

const (
	stateLogin appState = iota
	stateChat
)

type rootModel struct {
	core   *app.App
	state  appState
	login  loginModel
	chat   chatModel
	width  int
	height int
}

type authSuccessMsg struct {
	session auth.Session
}

type authErrorMsg struct {
	err error
}

// Background hooks arrive as messages so all state changes flow through
// the update loop.
type friendsChangedMsg struct {
	owner   string
	friends []string
}

type messagesChangedMsg struct {
	key  string
	msgs []document.Message
}

type callStateMsg struct {
	state call.State
	peer  string
	video bool
}

type incomingCallMsg struct {
	env signal.Envelope
}

// hooksFor forwards core notifications into the program's message queue.
func hooksFor(p programRunner) app.Hooks {
	return app.Hooks{
		OnFriendsChanged: func(owner string, friends []string) {
			p.Send(friendsChangedMsg{owner: owner, friends: friends})
		},
		OnMessagesChanged: func(key string, msgs []document.Message) {
			p.Send(messagesChangedMsg{key: key, msgs: msgs})
		},
		OnCallStateChanged: func(state call.State, peer string, video bool) {
			p.Send(callStateMsg{state: state, peer: peer, video: video})
		},
		OnIncomingCall: func(env signal.Envelope) {
			p.Send(incomingCallMsg{env: env})
		},
	}
}

func newRootModel(core *app.App) rootModel {
	m := rootModel{
		core:  core,
		state: stateLogin,
		login: newLoginModel(),
	}
	// A persisted session skips the login form.
	if session, ok := core.Resume(); ok {
		m.state = stateChat
		m.chat = newChatModel(core, session.Username, 0, 0)
	}
	return m
}

func (m rootModel) Init() tea.Cmd {
	if m.state == stateChat {
		return m.chat.Init()
	}
	return m.login.Init()
}

func (m rootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if wsm, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = wsm.Width
		m.height = wsm.Height
	}

	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+q" {
		m.core.HangUp()
		return m, tea.Quit
	}

	if auth, ok := msg.(authSuccessMsg); ok {
		m.state = stateChat
		m.chat = newChatModel(m.core, auth.session.Username, m.width, m.height)
		return m, m.chat.Init()
	}

	switch m.state {
	case stateLogin:
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		if m.login.submitting {
			m.login.submitting = false
			return m, tea.Batch(cmd, m.doAuth(m.login.isRegister, m.login.username(), m.login.password(), m.login.confirmPassword()))
		}
		return m, cmd

	case stateChat:
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		if m.chat.loggedOut {
			m.state = stateLogin
			m.login = newLoginModel()
			return m, m.login.Init()
		}
		return m, cmd
	}

	return m, nil
}

func (m rootModel) View() string {
	switch m.state {
	case stateLogin:
		return m.login.View()
	case stateChat:
		return m.chat.View()
	}
	return ""
}

func (m rootModel) doAuth(register bool, username, password, confirm string) tea.Cmd {
	core := m.core
	return func() tea.Msg {
		ctx := context.Background()
		var session auth.Session
		var err error
		if register {
			session, err = core.RegisterAccount(ctx, username, password, confirm)
		} else {
			session, err = core.SubmitCredentials(ctx, username, password)
		}
		if err != nil {
			return authErrorMsg{err: err}
		}
		return authSuccessMsg{session: session}
	}
}
