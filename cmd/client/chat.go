package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/akeeren/courier/internal/app"
	"github.com/akeeren/courier/internal/call"
	"github.com/akeeren/courier/internal/document"
	"github.com/akeeren/courier/internal/signal"
)

const sidebarWidth = 22

type chatModel struct {
	core *app.App
	self string

	friends   []string
	activeIdx int

	viewport       viewport.Model
	input          textinput.Model
	sidebarVisible bool

	callState call.State
	callPeer  string
	callVideo bool
	incoming  *signal.Envelope

	errMsg    string
	info      string
	loggedOut bool
	width     int
	height    int
}

func newChatModel(core *app.App, self string, width, height int) chatModel {
	input := textinput.New()
	input.Placeholder = "message, or /add /remove /call /video /hangup /mute /logout"
	input.CharLimit = 4096
	input.Width = clampMin(width-8, 20)
	input.Focus()

	vp := viewport.New(clampMin(width-sidebarWidth-6, 10), clampMin(height-7, 1))

	m := chatModel{
		core:           core,
		self:           self,
		friends:        core.Friends(self),
		viewport:       vp,
		input:          input,
		sidebarVisible: true,
		width:          width,
		height:         height,
	}
	m.refreshConversation()
	return m
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) activeFriend() string {
	if len(m.friends) == 0 {
		return ""
	}
	if m.activeIdx >= len(m.friends) {
		return m.friends[len(m.friends)-1]
	}
	return m.friends[m.activeIdx]
}

func (m chatModel) Update(msg tea.Msg) (chatModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = clampMin(m.width-sidebarWidth-6, 10)
		m.viewport.Height = clampMin(m.height-7, 1)
		m.input.Width = clampMin(m.width-8, 20)
		m.refreshConversation()
		return m, nil

	case friendsChangedMsg:
		if msg.owner != m.self {
			return m, nil
		}
		m.friends = msg.friends
		if m.activeIdx >= len(m.friends) {
			m.activeIdx = clampMin(len(m.friends)-1, 0)
		}
		m.refreshConversation()
		return m, nil

	case messagesChangedMsg:
		if msg.key == document.ConversationKey(m.self, m.activeFriend()) {
			m.refreshConversation()
		}
		return m, nil

	case callStateMsg:
		m.callState = msg.state
		m.callPeer = msg.peer
		m.callVideo = msg.video
		if msg.state == call.Idle {
			m.incoming = nil
		}
		return m, nil

	case incomingCallMsg:
		env := msg.env
		m.incoming = &env
		return m, nil

	case tea.KeyMsg:
		m.errMsg = ""
		m.info = ""

		if m.incoming != nil {
			switch msg.String() {
			case "y", "enter":
				m.incoming = nil
				if err := m.core.AcceptIncomingCall(); err != nil {
					m.errMsg = err.Error()
				}
			case "n", "esc":
				m.incoming = nil
				m.core.RejectIncomingCall()
			}
			return m, nil
		}

		switch msg.String() {
		case "ctrl+n":
			m.cycleFriend(1)
			return m, nil
		case "ctrl+p":
			m.cycleFriend(-1)
			return m, nil
		case "ctrl+b":
			m.sidebarVisible = !m.sidebarVisible
			return m, nil
		case "ctrl+h":
			m.core.HangUp()
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case "enter":
			m.submitInput()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *chatModel) cycleFriend(dir int) {
	if len(m.friends) == 0 {
		return
	}
	m.activeIdx = (m.activeIdx + dir + len(m.friends)) % len(m.friends)
	m.refreshConversation()
}

func (m *chatModel) submitInput() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	m.input.SetValue("")

	if strings.HasPrefix(text, "/") {
		m.runCommand(text)
		return
	}

	friend := m.activeFriend()
	if friend == "" {
		m.errMsg = "no friend selected; /add someone first"
		return
	}
	if _, err := m.core.SubmitMessage(m.self, friend, text); err != nil {
		m.errMsg = err.Error()
		return
	}
	m.refreshConversation()
}

func (m *chatModel) runCommand(text string) {
	fields := strings.Fields(text)
	cmd := fields[0]
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	if arg == "" {
		arg = m.activeFriend()
	}

	switch cmd {
	case "/add":
		if len(fields) < 2 {
			m.errMsg = "usage: /add <username>"
			return
		}
		if err := m.core.RequestFriendAdd(context.Background(), m.self, fields[1]); err != nil {
			m.errMsg = err.Error()
			return
		}
		m.friends = m.core.Friends(m.self)
		m.info = "added " + fields[1]
	case "/remove":
		if len(fields) < 2 {
			m.errMsg = "usage: /remove <username>"
			return
		}
		if err := m.core.RequestFriendRemove(m.self, fields[1]); err != nil {
			m.errMsg = err.Error()
			return
		}
		m.friends = m.core.Friends(m.self)
		if m.activeIdx >= len(m.friends) {
			m.activeIdx = clampMin(len(m.friends)-1, 0)
		}
		m.refreshConversation()
	case "/call", "/video":
		if arg == "" {
			m.errMsg = "nobody to call"
			return
		}
		if err := m.core.RequestCall(arg, cmd == "/video"); err != nil {
			m.errMsg = err.Error()
			return
		}
		m.info = "calling " + arg + "..."
	case "/hangup":
		m.core.HangUp()
	case "/mute":
		on, err := m.core.ToggleLocalAudio()
		if err != nil {
			m.errMsg = err.Error()
			return
		}
		if on {
			m.info = "microphone on"
		} else {
			m.info = "microphone muted"
		}
	case "/camera":
		on, err := m.core.ToggleLocalVideo()
		if err != nil {
			m.errMsg = err.Error()
			return
		}
		if on {
			m.info = "camera on"
		} else {
			m.info = "camera off"
		}
	case "/logout":
		if err := m.core.Logout(); err != nil {
			m.errMsg = err.Error()
			return
		}
		m.loggedOut = true
	default:
		m.errMsg = "unknown command " + cmd
	}
}

func (m *chatModel) refreshConversation() {
	friend := m.activeFriend()
	if friend == "" {
		m.viewport.SetContent(subtitleStyle.Render("no conversation - /add a friend to start"))
		return
	}

	var b strings.Builder
	for _, msg := range m.core.Conversation(m.self, friend) {
		ts := msg.Timestamp
		if len(ts) > 16 {
			ts = ts[11:16]
		}
		line := fmt.Sprintf("[%s] %s: %s", ts, msg.From, msg.Text)
		if msg.From == m.self {
			b.WriteString(sentMsgStyle.Render(line))
		} else {
			b.WriteString(recvMsgStyle.Render(line))
		}
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m chatModel) sidebarView() string {
	var b strings.Builder
	b.WriteString(sidebarTitleStyle.Render("friends"))
	b.WriteString("\n")
	if len(m.friends) == 0 {
		b.WriteString(subtitleStyle.Render("(none)"))
		b.WriteString("\n")
	}
	for i, friend := range m.friends {
		prefix := "  "
		if i == m.activeIdx {
			prefix = "> "
		}
		b.WriteString(sidebarFriendStyle.Render(prefix + friend))
		b.WriteString("\n")
	}
	return sidebarBoxStyle.Height(m.viewport.Height).Width(sidebarWidth).Render(b.String())
}

func (m chatModel) statusLine() string {
	if m.incoming != nil {
		kind := "voice"
		if m.incoming.IsVideoCall {
			kind = "video"
		}
		return incomingStyle.Render(fmt.Sprintf("incoming %s call from %s - y: accept, n: reject", kind, m.incoming.From))
	}
	switch m.callState {
	case call.Idle:
		return ""
	case call.Active:
		kind := "voice"
		if m.callVideo {
			kind = "video"
		}
		return connectedStyle.Render(fmt.Sprintf("%s call with %s - ctrl+h: hang up", kind, m.callPeer))
	default:
		return labelStyle.Render(fmt.Sprintf("call with %s: %s", m.callPeer, m.callState))
	}
}

func (m chatModel) View() string {
	var b strings.Builder

	b.WriteString(appNameStyle.Render("*  courier"))
	b.WriteString("  ")
	b.WriteString(headerStyle.Render(m.self))
	b.WriteString("\n")
	b.WriteString(separator(m.width))
	b.WriteString("\n")

	if m.sidebarVisible {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.viewport.View(), m.sidebarView()))
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")
	b.WriteString(separator(m.width))
	b.WriteString("\n")

	if status := m.statusLine(); status != "" {
		b.WriteString(status)
		b.WriteString("\n")
	}
	if m.errMsg != "" {
		b.WriteString(errorStyle.Render("x " + m.errMsg))
		b.WriteString("\n")
	} else if m.info != "" {
		b.WriteString(labelStyle.Render(m.info))
		b.WriteString("\n")
	}

	b.WriteString("> ")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("ctrl+n/p: switch friend - ctrl+b: sidebar - ctrl+h: hang up - ctrl+q: quit"))

	return b.String()
}
