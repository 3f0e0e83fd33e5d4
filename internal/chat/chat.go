// Package chat sends and reads direct messages. Messages live in the
// shared document as one flat append-only list; conversations are views
// filtered per user pair.
package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/akeeren/courier/internal/document"
	"github.com/akeeren/courier/internal/replicate"
)

var ErrEmptyMessage = errors.New("message text is empty")

type Service struct {
	data *replicate.Engine

	now func() time.Time
}

func NewService(data *replicate.Engine) *Service {
	return &Service{data: data, now: time.Now}
}

// Send appends a message to the shared list. The ID is the send time in
// unix milliseconds; two devices sending in the same millisecond collide,
// which the document model tolerates since messages are never addressed
// by ID.
func (s *Service) Send(from, to, text string) (document.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return document.Message{}, ErrEmptyMessage
	}

	now := s.now().UTC()
	msg := document.Message{
		ID:        now.UnixMilli(),
		From:      from,
		To:        to,
		Text:      text,
		Timestamp: now.Format(time.RFC3339),
	}
	if err := s.data.AppendMessage(msg); err != nil {
		return document.Message{}, err
	}
	return msg, nil
}

// Conversation returns the messages exchanged between the two users, in
// document order.
func (s *Service) Conversation(a, b string) []document.Message {
	return document.Conversation(s.data.Messages(), a, b)
}
