// Package signal implements the offer/answer mailboxes used to set up
// calls. Each user owns two slots in the local store, offer:<name> and
// answer:<name>; a caller drops an envelope into the callee's slot and
// both sides poll their own. Slots hold at most one envelope, so a second
// caller overwrites the first.
package signal

import (
	"fmt"
	"log"
	"time"

	"github.com/akeeren/courier/internal/localstore"
)

// Envelope kinds. A marker is written into the caller's own offer slot
// while a call is being placed, so the caller's poll loop does not
// mistake its own outgoing call for an incoming one.
const (
	KindOffer  = "offer"
	KindAnswer = "answer"
	KindMarker = "marker"
)

const defaultTTL = 60 * time.Second

// Envelope is one signaling payload. SDP carries the session description
// for offer and answer kinds and is empty for markers.
type Envelope struct {
	Kind        string    `json:"kind"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	SDP         string    `json:"sdp,omitempty"`
	IsVideoCall bool      `json:"isVideoCall,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Mailbox struct {
	store *localstore.Store
	ttl   time.Duration

	now func() time.Time
}

func NewMailbox(store *localstore.Store) *Mailbox {
	return &Mailbox{store: store, ttl: defaultTTL, now: time.Now}
}

// PostOffer delivers an offer to the callee's slot and marks the
// caller's own slot so it is not read back as an incoming call.
func (m *Mailbox) PostOffer(env Envelope) error {
	env.Kind = KindOffer
	env.CreatedAt = m.now()
	if err := m.store.Put(localstore.OfferKey(env.To), env); err != nil {
		return fmt.Errorf("post offer: %w", err)
	}
	marker := Envelope{Kind: KindMarker, From: env.From, To: env.To, CreatedAt: env.CreatedAt}
	if err := m.store.Put(localstore.OfferKey(env.From), marker); err != nil {
		return fmt.Errorf("post offer marker: %w", err)
	}
	return nil
}

// PostAnswer delivers an answer to the caller's answer slot.
func (m *Mailbox) PostAnswer(env Envelope) error {
	env.Kind = KindAnswer
	env.CreatedAt = m.now()
	if err := m.store.Put(localstore.AnswerKey(env.To), env); err != nil {
		return fmt.Errorf("post answer: %w", err)
	}
	return nil
}

// TakeOffer consumes a pending offer addressed to username. Markers are
// left in place; expired or malformed envelopes are cleared and reported
// as no offer.
func (m *Mailbox) TakeOffer(username string) (Envelope, bool) {
	return m.take(localstore.OfferKey(username), KindOffer)
}

// TakeAnswer consumes a pending answer addressed to username.
func (m *Mailbox) TakeAnswer(username string) (Envelope, bool) {
	return m.take(localstore.AnswerKey(username), KindAnswer)
}

func (m *Mailbox) take(key, kind string) (Envelope, bool) {
	var env Envelope
	found, err := m.store.Get(key, &env)
	if !found {
		return Envelope{}, false
	}
	if err != nil || env.Kind == "" || env.SDP == "" && env.Kind != KindMarker {
		// Unreadable or incomplete payloads would wedge the slot forever;
		// drop them.
		log.Printf("signal: clearing malformed envelope in %s: %v", key, err)
		_ = m.store.Delete(key)
		return Envelope{}, false
	}
	if env.Kind != kind {
		return Envelope{}, false
	}
	if m.now().Sub(env.CreatedAt) > m.ttl {
		_ = m.store.Delete(key)
		return Envelope{}, false
	}
	if err := m.store.Delete(key); err != nil {
		log.Printf("signal: delete %s failed: %v", key, err)
	}
	return env, true
}

// Clear removes every slot involved in a call between the two users.
// Used on hangup and rejection so stale envelopes cannot resurrect a
// finished call.
func (m *Mailbox) Clear(a, b string) {
	for _, key := range []string{
		localstore.OfferKey(a), localstore.OfferKey(b),
		localstore.AnswerKey(a), localstore.AnswerKey(b),
	} {
		if err := m.store.Delete(key); err != nil {
			log.Printf("signal: clear %s failed: %v", key, err)
		}
	}
}
