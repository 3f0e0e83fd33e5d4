// Package localstore is the device-local key-value store: one JSON file
// per key under the user config dir. Writes are synchronous, so a local
// mutation is durable before any remote call is attempted.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// Well-known keys. The signaling mailboxes are per-username and built with
// OfferKey/AnswerKey.
const (
	KeyActiveUser = "activeUser"
	KeyUsers      = "messengerUsers"
	KeyMessages   = "messengerMessages"
	KeyFriends    = "messengerFriends"
)

func OfferKey(username string) string  { return "offer:" + username }
func AnswerKey(username string) string { return "answer:" + username }

type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("data dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// DefaultDir returns the per-user data directory.
func DefaultDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "courier"), nil
}

// Get unmarshals the value stored under key into out. The second return
// is false when the key is absent.
func (s *Store) Get(key string, out any) (bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) Put(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := os.WriteFile(s.path(key), data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// path escapes the key so mailbox keys like "offer:bob" map to distinct,
// filesystem-safe names.
func (s *Store) path(key string) string {
	return filepath.Join(s.dir, url.QueryEscape(key)+".json")
}
