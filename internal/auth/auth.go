package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/akeeren/courier/internal/document"
	"github.com/akeeren/courier/internal/localstore"
	"github.com/akeeren/courier/internal/replicate"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrBadPassword      = errors.New("wrong password")
	ErrUsernameTooShort = errors.New("username must be at least 3 characters")
	ErrPasswordTooShort = errors.New("password must be at least 4 characters")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrUsernameTaken    = errors.New("username already exists")
)

const (
	minUsernameLen = 3
	minPasswordLen = 4
)

// Session identifies the active local user. It is persisted under the
// activeUser key so the device stays logged in across restarts.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	StartedAt time.Time `json:"startedAt"`
}

type Service struct {
	data  *replicate.Engine
	store *localstore.Store

	now      func() time.Time
	newToken func() string
}

func NewService(data *replicate.Engine, store *localstore.Store) *Service {
	return &Service{
		data:     data,
		store:    store,
		now:      time.Now,
		newToken: uuid.NewString,
	}
}

// Register creates an account. Uniqueness is checked by scanning the
// freshest user collection available; the check can race a concurrent
// registration on another device (check-then-act on the shared document).
func (s *Service) Register(ctx context.Context, username, password, confirm string) (Session, error) {
	if len(username) < minUsernameLen {
		return Session{}, ErrUsernameTooShort
	}
	if len(password) < minPasswordLen {
		return Session{}, ErrPasswordTooShort
	}
	if password != confirm {
		return Session{}, ErrPasswordMismatch
	}

	// Refresh so accounts registered on other devices are visible.
	s.data.Pull(ctx)
	for _, u := range s.data.Users() {
		if u.Username == username {
			return Session{}, ErrUsernameTaken
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, err
	}

	user := document.User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
	}
	if err := s.data.AddUser(user); err != nil {
		return Session{}, err
	}

	return s.startSession(username)
}

// Login verifies credentials against the replicated user collection.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	s.data.Pull(ctx)

	var found document.User
	var ok bool
	for _, u := range s.data.Users() {
		if u.Username == username {
			found, ok = u, true
			break
		}
	}
	if !ok {
		return Session{}, ErrUserNotFound
	}

	if !verifyPassword(found.PasswordHash, password) {
		return Session{}, ErrBadPassword
	}

	return s.startSession(username)
}

// Resume returns the persisted session, if any.
func (s *Service) Resume() (Session, bool) {
	var session Session
	ok, err := s.store.Get(localstore.KeyActiveUser, &session)
	if err != nil || !ok || session.Username == "" {
		return Session{}, false
	}
	return session, true
}

func (s *Service) Logout() error {
	return s.store.Delete(localstore.KeyActiveUser)
}

func (s *Service) startSession(username string) (Session, error) {
	session := Session{
		Token:     s.newToken(),
		Username:  username,
		StartedAt: s.now().UTC(),
	}
	if err := s.store.Put(localstore.KeyActiveUser, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// verifyPassword accepts bcrypt hashes and, as a fallback, the 32-bit
// string checksum produced by older clients writing to the same bin.
func verifyPassword(stored, password string) bool {
	if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)); err == nil {
		return true
	}
	return stored != "" && stored == legacyHash(password)
}

// legacyHash reproduces the original client's non-cryptographic checksum:
// hash = (hash << 5) - hash + char, truncated to 32 bits at every step.
func legacyHash(password string) string {
	var hash int32
	for _, r := range password {
		hash = (hash << 5) - hash + int32(r)
	}
	return strconv.FormatInt(int64(hash), 10)
}
