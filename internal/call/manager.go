// Package call drives one voice or video call at a time through the
// offer/answer mailboxes. Signaling is single-shot: each side waits for
// ICE gathering to finish and ships one complete session description, so
// no candidate trickle channel is needed.
package call

import (
	"errors"
	"fmt"
	"log"
	"sync"

	pionwebrtc "github.com/pion/webrtc/v4"

	"github.com/akeeren/courier/internal/signal"
)

var ErrBusy = errors.New("another call is in progress")

// State is the call lifecycle. Exactly one call exists at a time.
type State int

const (
	Idle        State = iota // no call
	Originating              // offer sent, waiting for an answer
	Ringing                  // offer received, waiting for user decision
	Negotiating              // applying the remote description
	Active                   // media flowing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Originating:
		return "originating"
	case Ringing:
		return "ringing"
	case Negotiating:
		return "negotiating"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Signaler delivers session descriptions between the two parties.
type Signaler interface {
	PostOffer(signal.Envelope) error
	PostAnswer(signal.Envelope) error
	Clear(a, b string)
}

type Manager struct {
	self    string
	devices MediaDevices
	signals Signaler
	api     *pionwebrtc.API
	config  pionwebrtc.Configuration

	mu       sync.Mutex
	state    State
	peerUser string
	video    bool
	pending  signal.Envelope // offer held while Ringing
	pc       *pionwebrtc.PeerConnection
	media    *LocalMedia

	onState func(State)
	onTrack func(*pionwebrtc.TrackRemote)
}

func NewManager(self string, devices MediaDevices, signals Signaler, config pionwebrtc.Configuration) (*Manager, error) {
	me := &pionwebrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	return &Manager{
		self:    self,
		devices: devices,
		signals: signals,
		api:     pionwebrtc.NewAPI(pionwebrtc.WithMediaEngine(me)),
		config:  config,
	}, nil
}

// OnStateChange registers a listener for lifecycle transitions. Set it
// before the first call; it fires outside the manager lock.
func (m *Manager) OnStateChange(fn func(State)) { m.onState = fn }

// OnRemoteTrack registers a listener for incoming media tracks.
func (m *Manager) OnRemoteTrack(fn func(*pionwebrtc.TrackRemote)) { m.onTrack = fn }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Peer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peerUser
}

// Video reports whether the current call carries video.
func (m *Manager) Video() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.video
}

// Media exposes the local capture for mute toggles and sample writes.
func (m *Manager) Media() (*LocalMedia, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.media == nil {
		return nil, ErrNoLocalMedia
	}
	return m.media, nil
}

// Start places a call to peer. Media capture happens before anything is
// signaled; if capture fails the manager stays Idle and the callee never
// sees the attempt.
func (m *Manager) Start(peer string, video bool) error {
	m.mu.Lock()
	if m.state != Idle {
		m.mu.Unlock()
		return ErrBusy
	}
	m.mu.Unlock()

	media, err := m.devices.Capture(video)
	if err != nil {
		return err
	}

	pc, sdp, err := m.buildOffer(media)
	if err != nil {
		media.Stop()
		return err
	}

	env := signal.Envelope{From: m.self, To: peer, SDP: sdp, IsVideoCall: video}
	if err := m.signals.PostOffer(env); err != nil {
		media.Stop()
		_ = pc.Close()
		return err
	}

	m.mu.Lock()
	m.peerUser = peer
	m.video = video
	m.pc = pc
	m.media = media
	m.setStateLocked(Originating)
	m.mu.Unlock()
	return nil
}

// HandleOffer transitions to Ringing for an incoming offer. A busy
// manager drops the offer; the mailbox slot was already consumed, so the
// caller simply times out.
func (m *Manager) HandleOffer(env signal.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Idle {
		return ErrBusy
	}
	m.pending = env
	m.peerUser = env.From
	m.video = env.IsVideoCall
	m.setStateLocked(Ringing)
	return nil
}

// Accept answers the pending offer. Capture failure tears the call down
// completely so the user is never stuck half-answered.
func (m *Manager) Accept() error {
	m.mu.Lock()
	if m.state != Ringing {
		m.mu.Unlock()
		return fmt.Errorf("accept in state %s", m.state)
	}
	env := m.pending
	m.setStateLocked(Negotiating)
	m.mu.Unlock()

	media, err := m.devices.Capture(env.IsVideoCall)
	if err != nil {
		m.End()
		return err
	}

	pc, sdp, err := m.buildAnswer(media, env.SDP)
	if err != nil {
		media.Stop()
		m.End()
		return err
	}

	answer := signal.Envelope{From: m.self, To: env.From, SDP: sdp, IsVideoCall: env.IsVideoCall}
	if err := m.signals.PostAnswer(answer); err != nil {
		media.Stop()
		_ = pc.Close()
		m.End()
		return err
	}

	m.mu.Lock()
	m.pc = pc
	m.media = media
	m.setStateLocked(Active)
	m.mu.Unlock()
	return nil
}

// Reject declines the pending offer and clears every mailbox slot the
// call touched.
func (m *Manager) Reject() {
	m.mu.Lock()
	if m.state != Ringing {
		m.mu.Unlock()
		return
	}
	peer := m.peerUser
	m.resetLocked()
	m.mu.Unlock()
	m.signals.Clear(m.self, peer)
}

// HandleAnswer applies the callee's description and activates the call.
func (m *Manager) HandleAnswer(env signal.Envelope) error {
	m.mu.Lock()
	if m.state != Originating && m.state != Negotiating {
		m.mu.Unlock()
		return fmt.Errorf("answer in state %s", m.state)
	}
	pc := m.pc
	m.setStateLocked(Negotiating)
	m.mu.Unlock()

	desc := pionwebrtc.SessionDescription{Type: pionwebrtc.SDPTypeAnswer, SDP: env.SDP}
	if err := pc.SetRemoteDescription(desc); err != nil {
		m.End()
		return fmt.Errorf("set remote answer: %w", err)
	}

	m.mu.Lock()
	m.setStateLocked(Active)
	m.mu.Unlock()
	return nil
}

// End terminates the call from any state. Idempotent: the media release,
// peer close, and mailbox cleanup run unconditionally, so a second End
// or an End racing a remote hangup is harmless.
func (m *Manager) End() {
	m.mu.Lock()
	peer := m.peerUser
	pc := m.pc
	media := m.media
	wasIdle := m.state == Idle
	m.resetLocked()
	m.mu.Unlock()

	if media != nil {
		media.Stop()
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			log.Printf("call: close peer connection: %v", err)
		}
	}
	if peer != "" && !wasIdle {
		m.signals.Clear(m.self, peer)
	}
}

func (m *Manager) resetLocked() {
	m.pc = nil
	m.media = nil
	m.peerUser = ""
	m.video = false
	m.pending = signal.Envelope{}
	m.setStateLocked(Idle)
}

func (m *Manager) setStateLocked(next State) {
	if m.state == next {
		return
	}
	m.state = next
	if m.onState != nil {
		go m.onState(next)
	}
}

func (m *Manager) buildOffer(media *LocalMedia) (*pionwebrtc.PeerConnection, string, error) {
	pc, err := m.newPeerConnection(media)
	if err != nil {
		return nil, "", err
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return nil, "", fmt.Errorf("create offer: %w", err)
	}
	sdp, err := m.setLocalAndGather(pc, offer)
	if err != nil {
		_ = pc.Close()
		return nil, "", err
	}
	return pc, sdp, nil
}

func (m *Manager) buildAnswer(media *LocalMedia, offerSDP string) (*pionwebrtc.PeerConnection, string, error) {
	pc, err := m.newPeerConnection(media)
	if err != nil {
		return nil, "", err
	}
	remote := pionwebrtc.SessionDescription{Type: pionwebrtc.SDPTypeOffer, SDP: offerSDP}
	if err := pc.SetRemoteDescription(remote); err != nil {
		_ = pc.Close()
		return nil, "", fmt.Errorf("set remote offer: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = pc.Close()
		return nil, "", fmt.Errorf("create answer: %w", err)
	}
	sdp, err := m.setLocalAndGather(pc, answer)
	if err != nil {
		_ = pc.Close()
		return nil, "", err
	}
	return pc, sdp, nil
}

func (m *Manager) newPeerConnection(media *LocalMedia) (*pionwebrtc.PeerConnection, error) {
	pc, err := m.api.NewPeerConnection(m.config)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	if _, err := pc.AddTrack(media.Audio); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add audio track: %w", err)
	}
	if media.Video != nil {
		if _, err := pc.AddTrack(media.Video); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("add video track: %w", err)
		}
	}
	pc.OnTrack(func(track *pionwebrtc.TrackRemote, _ *pionwebrtc.RTPReceiver) {
		if m.onTrack != nil {
			m.onTrack(track)
		}
	})
	return pc, nil
}

// setLocalAndGather applies the description and blocks until ICE
// gathering completes, returning the final SDP with every candidate
// inlined.
func (m *Manager) setLocalAndGather(pc *pionwebrtc.PeerConnection, desc pionwebrtc.SessionDescription) (string, error) {
	done := pionwebrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(desc); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	<-done
	return pc.LocalDescription().SDP, nil
}
