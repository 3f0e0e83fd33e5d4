// Package replicate reconciles the device-local store with the shared
// remote document. The model is availability over consistency: pulls fail
// silently and keep the last good snapshot, pushes are last-writer-wins at
// document granularity, and the local store is always written before any
// remote call is attempted.
package replicate

import (
	"context"
	"log"
	"reflect"
	"sync"
	"time"

	"github.com/akeeren/courier/internal/document"
	"github.com/akeeren/courier/internal/localstore"
)

// RemoteStore is the whole-document read/replace surface of the shared bin.
type RemoteStore interface {
	FetchLatest(ctx context.Context) (document.Document, error)
	Replace(ctx context.Context, doc document.Document) error
}

// Hooks fire after a pulled field differs from the in-memory copy and has
// been persisted locally. They run on the engine's tick goroutine.
type Hooks struct {
	OnUsersChanged    func([]document.User)
	OnMessagesChanged func([]document.Message)
	OnFriendsChanged  func(map[string][]string)
}

type Engine struct {
	store  *localstore.Store
	remote RemoteStore
	hooks  Hooks

	mu     sync.Mutex
	doc    document.Document // in-memory collections, source of truth for rendering
	cache  document.Document // last document fetched from the remote store
	cached bool

	pushTimeout time.Duration
	pushWG      sync.WaitGroup
}

// NewEngine builds an engine. remote may be nil for local-only mode.
func NewEngine(store *localstore.Store, remote RemoteStore) *Engine {
	return &Engine{
		store:       store,
		remote:      remote,
		doc:         document.New(),
		pushTimeout: 10 * time.Second,
	}
}

func (e *Engine) SetHooks(hooks Hooks) {
	e.hooks = hooks
}

// LoadLocal seeds the in-memory collections from the local store. Local
// content is the default; the remote document supersedes it on the first
// successful pull.
func (e *Engine) LoadLocal() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc := document.New()
	if _, err := e.store.Get(localstore.KeyUsers, &doc.Users); err != nil {
		return err
	}
	if _, err := e.store.Get(localstore.KeyMessages, &doc.Messages); err != nil {
		return err
	}
	if _, err := e.store.Get(localstore.KeyFriends, &doc.Friends); err != nil {
		return err
	}
	doc.Normalize()
	e.doc = doc
	return nil
}

// Pull performs a whole-document read and overlays any changed field onto
// the in-memory state. Failures are silent: the cached snapshot is
// retained and never blanked.
func (e *Engine) Pull(ctx context.Context) {
	if e.remote == nil {
		return
	}
	fetched, err := e.remote.FetchLatest(ctx)
	if err != nil {
		return
	}

	e.mu.Lock()
	e.cache = fetched.Clone()
	e.cached = true

	var usersChanged, messagesChanged, friendsChanged bool
	if !reflect.DeepEqual(fetched.Users, e.doc.Users) {
		e.doc.Users = fetched.Users
		usersChanged = e.persist(localstore.KeyUsers, fetched.Users)
	}
	if !reflect.DeepEqual(fetched.Messages, e.doc.Messages) {
		e.doc.Messages = fetched.Messages
		messagesChanged = e.persist(localstore.KeyMessages, fetched.Messages)
	}
	if !reflect.DeepEqual(fetched.Friends, e.doc.Friends) {
		e.doc.Friends = fetched.Friends
		friendsChanged = e.persist(localstore.KeyFriends, fetched.Friends)
	}
	users := e.doc.Users
	messages := e.doc.Messages
	friends := e.doc.Friends
	e.mu.Unlock()

	if usersChanged && e.hooks.OnUsersChanged != nil {
		e.hooks.OnUsersChanged(users)
	}
	if messagesChanged && e.hooks.OnMessagesChanged != nil {
		e.hooks.OnMessagesChanged(messages)
	}
	if friendsChanged && e.hooks.OnFriendsChanged != nil {
		e.hooks.OnFriendsChanged(friends)
	}
}

// persist writes one field to the local store. The field is still adopted
// in memory when the write fails; the change hook fires either way.
func (e *Engine) persist(key string, value any) bool {
	if err := e.store.Put(key, value); err != nil {
		log.Printf("replicate: persist %s failed: %v", key, err)
	}
	return true
}

// Run pulls once immediately, then on every tick until ctx is done. Ticks
// are processed one at a time; a slow pull skips beats rather than
// overlapping itself.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	e.Pull(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Pull(ctx)
		}
	}
}

// Users returns a copy of the in-memory user collection.
func (e *Engine) Users() []document.User {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]document.User, len(e.doc.Users))
	copy(out, e.doc.Users)
	return out
}

func (e *Engine) Messages() []document.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]document.Message, len(e.doc.Messages))
	copy(out, e.doc.Messages)
	return out
}

func (e *Engine) Friends(owner string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.doc.Friends[owner]))
	copy(out, e.doc.Friends[owner])
	return out
}

// AddUser appends a user, persists locally, and pushes the users field in
// the background. The caller never blocks on remote persistence.
func (e *Engine) AddUser(u document.User) error {
	e.mu.Lock()
	e.doc.Users = append(e.doc.Users, u)
	err := e.store.Put(localstore.KeyUsers, e.doc.Users)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.pushAsync(e.PushUsers)
	return nil
}

func (e *Engine) AppendMessage(m document.Message) error {
	e.mu.Lock()
	e.doc.Messages = append(e.doc.Messages, m)
	err := e.store.Put(localstore.KeyMessages, e.doc.Messages)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.pushAsync(e.PushMessages)
	return nil
}

func (e *Engine) SetFriends(owner string, friends []string) error {
	e.mu.Lock()
	if e.doc.Friends == nil {
		e.doc.Friends = map[string][]string{}
	}
	e.doc.Friends[owner] = friends
	err := e.store.Put(localstore.KeyFriends, e.doc.Friends)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.pushAsync(e.PushFriends)
	return nil
}

// PushUsers overlays the in-memory users onto a snapshot of the full
// document and writes the whole document back. Concurrent pushes from two
// clients race; the later write wins in full.
func (e *Engine) PushUsers(ctx context.Context) error {
	return e.push(ctx, func(base *document.Document, current document.Document) {
		base.Users = current.Users
	})
}

func (e *Engine) PushMessages(ctx context.Context) error {
	return e.push(ctx, func(base *document.Document, current document.Document) {
		base.Messages = current.Messages
	})
}

func (e *Engine) PushFriends(ctx context.Context) error {
	return e.push(ctx, func(base *document.Document, current document.Document) {
		base.Friends = current.Friends
	})
}

func (e *Engine) push(ctx context.Context, overlay func(base *document.Document, current document.Document)) error {
	if e.remote == nil {
		return nil
	}

	base, current := e.snapshotForPush(ctx)
	overlay(&base, current)

	if err := e.remote.Replace(ctx, base); err != nil {
		log.Printf("replicate: push failed: %v", err)
		return err
	}

	e.mu.Lock()
	e.cache = base.Clone()
	e.cached = true
	e.mu.Unlock()
	return nil
}

// snapshotForPush returns the base document the changed field is overlaid
// onto (the cached remote snapshot, freshly pulled if none exists, or the
// in-memory state as a last resort) plus the current in-memory state.
func (e *Engine) snapshotForPush(ctx context.Context) (base, current document.Document) {
	e.mu.Lock()
	cached := e.cached
	if cached {
		base = e.cache.Clone()
	}
	current = e.doc.Clone()
	e.mu.Unlock()

	if cached {
		return base, current
	}

	fetched, err := e.remote.FetchLatest(ctx)
	if err != nil {
		return current.Clone(), current
	}
	return fetched, current
}

// pushAsync fires a push without blocking the mutation path. Flush waits
// for outstanding pushes; tests and shutdown use it.
func (e *Engine) pushAsync(push func(context.Context) error) {
	if e.remote == nil {
		return
	}
	e.pushWG.Add(1)
	go func() {
		defer e.pushWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.pushTimeout)
		defer cancel()
		_ = push(ctx)
	}()
}

func (e *Engine) Flush() {
	e.pushWG.Wait()
}
