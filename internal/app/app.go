// Package app is the external interface of the messenger core. A UI
// collaborator calls the Submit/Request methods and receives change
// notifications through Hooks; everything else (polling, replication,
// signaling) happens behind Run.
package app

import (
	"context"
	"errors"
	"log"
	"reflect"
	"sync"
	"time"

	pionwebrtc "github.com/pion/webrtc/v4"

	"github.com/akeeren/courier/internal/auth"
	"github.com/akeeren/courier/internal/call"
	"github.com/akeeren/courier/internal/chat"
	"github.com/akeeren/courier/internal/config"
	"github.com/akeeren/courier/internal/document"
	"github.com/akeeren/courier/internal/localstore"
	"github.com/akeeren/courier/internal/remote"
	"github.com/akeeren/courier/internal/replicate"
	"github.com/akeeren/courier/internal/roster"
	"github.com/akeeren/courier/internal/signal"
)

var ErrNotLoggedIn = errors.New("not logged in")

// Hooks are the outbound notifications. They fire on background
// goroutines; UI implementations must hand off to their own event loop.
type Hooks struct {
	OnFriendsChanged   func(owner string, friends []string)
	OnMessagesChanged  func(conversationKey string, msgs []document.Message)
	OnCallStateChanged func(state call.State, remoteUser string, isVideo bool)
	OnIncomingCall     func(env signal.Envelope)
}

type App struct {
	cfg     config.Client
	store   *localstore.Store
	engine  *replicate.Engine
	auth    *auth.Service
	roster  *roster.Service
	chat    *chat.Service
	mailbox *signal.Mailbox
	devices call.MediaDevices
	hooks   Hooks

	mu      sync.Mutex
	session auth.Session
	calls   *call.Manager

	prevConvs map[string][]document.Message
}

// New wires the core from configuration. When no remote is configured the
// app runs local-only: all operations work, nothing replicates.
func New(cfg config.Client) (*App, error) {
	dir := cfg.DataDir
	if dir == "" {
		var err error
		dir, err = localstore.DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	store, err := localstore.New(dir)
	if err != nil {
		return nil, err
	}

	var rs replicate.RemoteStore
	if cfg.RemoteEnabled() {
		rs = remote.NewClient(cfg.RemoteBaseURL, cfg.BinID, cfg.AccessKey)
	}
	engine := replicate.NewEngine(store, rs)
	if err := engine.LoadLocal(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		store:     store,
		engine:    engine,
		auth:      auth.NewService(engine, store),
		roster:    roster.NewService(engine),
		chat:      chat.NewService(engine),
		mailbox:   signal.NewMailbox(store),
		devices:   call.SampleDevices{},
		prevConvs: map[string][]document.Message{},
	}
	engine.SetHooks(replicate.Hooks{
		OnMessagesChanged: a.messagesChanged,
		OnFriendsChanged:  a.friendsChanged,
	})
	return a, nil
}

func (a *App) SetHooks(hooks Hooks) { a.hooks = hooks }

// SetMediaDevices swaps the capture backend. Must be called before the
// first call is placed.
func (a *App) SetMediaDevices(devices call.MediaDevices) { a.devices = devices }

// SubmitCredentials logs in and starts a session.
func (a *App) SubmitCredentials(ctx context.Context, username, password string) (auth.Session, error) {
	session, err := a.auth.Login(ctx, username, password)
	if err != nil {
		return auth.Session{}, err
	}
	if err := a.startSession(session); err != nil {
		return auth.Session{}, err
	}
	return session, nil
}

// RegisterAccount creates an account and starts a session.
func (a *App) RegisterAccount(ctx context.Context, username, password, confirm string) (auth.Session, error) {
	session, err := a.auth.Register(ctx, username, password, confirm)
	if err != nil {
		return auth.Session{}, err
	}
	if err := a.startSession(session); err != nil {
		return auth.Session{}, err
	}
	return session, nil
}

// Resume restores the persisted session, if any.
func (a *App) Resume() (auth.Session, bool) {
	session, ok := a.auth.Resume()
	if !ok {
		return auth.Session{}, false
	}
	if err := a.startSession(session); err != nil {
		return auth.Session{}, false
	}
	return session, true
}

func (a *App) startSession(session auth.Session) error {
	calls, err := call.NewManager(session.Username, a.devices, a.mailbox, pionwebrtc.Configuration{})
	if err != nil {
		return err
	}
	calls.OnStateChange(func(state call.State) {
		if a.hooks.OnCallStateChanged != nil {
			a.hooks.OnCallStateChanged(state, calls.Peer(), calls.Video())
		}
	})

	a.mu.Lock()
	a.session = session
	a.calls = calls
	a.mu.Unlock()
	return nil
}

// Logout hangs up, drops the session, and clears the call manager.
// In-flight replication requests are not cancelled; their results land
// against state nobody is rendering.
func (a *App) Logout() error {
	a.HangUp()
	a.mu.Lock()
	a.session = auth.Session{}
	a.calls = nil
	a.mu.Unlock()
	return a.auth.Logout()
}

// ActiveUser returns the logged-in username, or "" when logged out.
func (a *App) ActiveUser() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.Username
}

func (a *App) RequestFriendAdd(ctx context.Context, owner, target string) error {
	return a.roster.Add(ctx, owner, target)
}

func (a *App) RequestFriendRemove(owner, target string) error {
	return a.roster.Remove(owner, target)
}

func (a *App) Friends(owner string) []string {
	return a.roster.Friends(owner)
}

func (a *App) SubmitMessage(from, to, text string) (document.Message, error) {
	return a.chat.Send(from, to, text)
}

func (a *App) Conversation(user, peer string) []document.Message {
	return a.chat.Conversation(user, peer)
}

// RequestCall places a call to target.
func (a *App) RequestCall(target string, isVideo bool) error {
	calls, err := a.callManager()
	if err != nil {
		return err
	}
	return calls.Start(target, isVideo)
}

// AcceptIncomingCall answers the offer surfaced by OnIncomingCall.
func (a *App) AcceptIncomingCall() error {
	calls, err := a.callManager()
	if err != nil {
		return err
	}
	return calls.Accept()
}

// RejectIncomingCall declines the pending offer.
func (a *App) RejectIncomingCall() {
	if calls, err := a.callManager(); err == nil {
		calls.Reject()
	}
}

// HangUp ends the call if one exists. Safe to call at any time.
func (a *App) HangUp() {
	if calls, err := a.callManager(); err == nil {
		calls.End()
	}
}

func (a *App) CallState() call.State {
	calls, err := a.callManager()
	if err != nil {
		return call.Idle
	}
	return calls.State()
}

func (a *App) ToggleLocalAudio() (bool, error) {
	calls, err := a.callManager()
	if err != nil {
		return false, err
	}
	media, err := calls.Media()
	if err != nil {
		return false, err
	}
	return media.ToggleAudio(), nil
}

func (a *App) ToggleLocalVideo() (bool, error) {
	calls, err := a.callManager()
	if err != nil {
		return false, err
	}
	media, err := calls.Media()
	if err != nil {
		return false, err
	}
	return media.ToggleVideo(), nil
}

func (a *App) callManager() (*call.Manager, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.calls == nil {
		return nil, ErrNotLoggedIn
	}
	return a.calls, nil
}

// Run drives the replication and signaling tickers until ctx is done.
func (a *App) Run(ctx context.Context) {
	go a.engine.Run(ctx, a.cfg.SyncInterval)

	ticker := time.NewTicker(a.cfg.SignalInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.pollSignals()
		}
	}
}

// pollSignals checks the mailboxes for the active user. Offers are only
// picked up while idle; answers only while a call is being originated.
func (a *App) pollSignals() {
	a.mu.Lock()
	self := a.session.Username
	calls := a.calls
	a.mu.Unlock()
	if self == "" || calls == nil {
		return
	}

	switch calls.State() {
	case call.Idle:
		env, ok := a.mailbox.TakeOffer(self)
		if !ok {
			return
		}
		if err := calls.HandleOffer(env); err != nil {
			log.Printf("app: incoming offer dropped: %v", err)
			return
		}
		if a.hooks.OnIncomingCall != nil {
			a.hooks.OnIncomingCall(env)
		}
	case call.Originating, call.Negotiating:
		env, ok := a.mailbox.TakeAnswer(self)
		if !ok {
			return
		}
		if err := calls.HandleAnswer(env); err != nil {
			log.Printf("app: answer dropped: %v", err)
		}
	}
}

// messagesChanged regroups the flat message list into conversations and
// fires the hook only for pairs whose view actually changed.
func (a *App) messagesChanged(msgs []document.Message) {
	convs := map[string][]document.Message{}
	for _, m := range msgs {
		key := document.ConversationKey(m.From, m.To)
		convs[key] = append(convs[key], m)
	}

	a.mu.Lock()
	prev := a.prevConvs
	a.prevConvs = convs
	a.mu.Unlock()

	if a.hooks.OnMessagesChanged == nil {
		return
	}
	for key, list := range convs {
		if !reflect.DeepEqual(prev[key], list) {
			a.hooks.OnMessagesChanged(key, list)
		}
	}
}

func (a *App) friendsChanged(friends map[string][]string) {
	if a.hooks.OnFriendsChanged == nil {
		return
	}
	for owner, list := range friends {
		a.hooks.OnFriendsChanged(owner, list)
	}
}
