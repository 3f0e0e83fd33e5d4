// Package roster manages per-user friend lists stored in the shared
// document. A friendship is one-directional: adding bob to alice's list
// does not touch bob's list.
package roster

import (
	"context"
	"errors"

	"github.com/akeeren/courier/internal/replicate"
)

var (
	ErrSelfAdd        = errors.New("cannot add yourself as a friend")
	ErrNotFound       = errors.New("no such user")
	ErrAlreadyFriends = errors.New("already in friend list")
	ErrNotFriends     = errors.New("not in friend list")
)

type Service struct {
	data *replicate.Engine
}

func NewService(data *replicate.Engine) *Service {
	return &Service{data: data}
}

// Add appends friend to owner's list. The user directory is refreshed
// first so recently registered accounts are addable. Like registration,
// the existence check is check-then-act against the shared document.
func (s *Service) Add(ctx context.Context, owner, friend string) error {
	if friend == owner {
		return ErrSelfAdd
	}

	s.data.Pull(ctx)

	exists := false
	for _, u := range s.data.Users() {
		if u.Username == friend {
			exists = true
			break
		}
	}
	if !exists {
		return ErrNotFound
	}

	friends := s.data.Friends(owner)
	for _, f := range friends {
		if f == friend {
			return ErrAlreadyFriends
		}
	}

	return s.data.SetFriends(owner, append(friends, friend))
}

// Remove drops friend from owner's list. Removing an absent entry is an
// error so the UI can tell the user nothing happened.
func (s *Service) Remove(owner, friend string) error {
	friends := s.data.Friends(owner)
	out := friends[:0]
	found := false
	for _, f := range friends {
		if f == friend {
			found = true
			continue
		}
		out = append(out, f)
	}
	if !found {
		return ErrNotFriends
	}
	return s.data.SetFriends(owner, out)
}

// Friends returns owner's current list.
func (s *Service) Friends(owner string) []string {
	return s.data.Friends(owner)
}
