package document

import "strings"

// User is an account entry in the shared document. Immutable after
// registration. The JSON field names match the wire format of the shared
// bin, so documents written by other clients stay readable.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password"`
	CreatedAt    string `json:"createdAt"`
}

// Message is a single direct message. Messages are append-only: never
// edited, never deleted. IDs are derived from the send timestamp and are
// not guaranteed unique across devices.
type Message struct {
	ID        int64  `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Document is the single unit of remote storage: the entire application
// state, read and replaced wholesale. The remote store offers no
// compare-and-swap, so concurrent writers race and the last write wins in
// full.
type Document struct {
	Users    []User              `json:"users"`
	Messages []Message           `json:"messages"`
	Friends  map[string][]string `json:"friends"`
}

func New() Document {
	return Document{
		Users:    []User{},
		Messages: []Message{},
		Friends:  map[string][]string{},
	}
}

// Normalize replaces nil collections with empty ones so the document is
// always JSON-serializable in its canonical shape.
func (d *Document) Normalize() {
	if d.Users == nil {
		d.Users = []User{}
	}
	if d.Messages == nil {
		d.Messages = []Message{}
	}
	if d.Friends == nil {
		d.Friends = map[string][]string{}
	}
}

// Clone returns a deep copy. The replication engine hands copies to
// callers so cached state is never aliased.
func (d Document) Clone() Document {
	out := Document{
		Users:    make([]User, len(d.Users)),
		Messages: make([]Message, len(d.Messages)),
		Friends:  make(map[string][]string, len(d.Friends)),
	}
	copy(out.Users, d.Users)
	copy(out.Messages, d.Messages)
	for owner, friends := range d.Friends {
		list := make([]string, len(friends))
		copy(list, friends)
		out.Friends[owner] = list
	}
	return out
}

func (d Document) FindUser(username string) (User, bool) {
	for _, u := range d.Users {
		if u.Username == username {
			return u, true
		}
	}
	return User{}, false
}

// ConversationKey identifies the unordered pair {a, b}.
func ConversationKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}

// Conversation filters messages exchanged between a and b, in either
// direction, preserving document order.
func Conversation(messages []Message, a, b string) []Message {
	out := []Message{}
	for _, m := range messages {
		if (m.From == a && m.To == b) || (m.From == b && m.To == a) {
			out = append(out, m)
		}
	}
	return out
}
