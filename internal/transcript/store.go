package transcript

import (
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role tells whether a message came from the local user or the remote bot.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is one transcript entry. Audio holds decoded reply audio, if any.
type Message struct {
	ID     string
	Role   Role
	Sender string
	Text   string
	Audio  []byte
	At     time.Time
}

// HasAudio reports whether the message carries playable audio.
func (m Message) HasAudio() bool {
	return len(m.Audio) > 0
}

// Observer is notified with a snapshot after every append.
type Observer func([]Message)

// Store is the append-only conversation log. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	messages []Message
	observer Observer
	now      func() time.Time
}

// NewStore returns an empty store that reports appends to observer.
func NewStore(observer Observer) *Store {
	return &Store{observer: observer, now: time.Now}
}

// Append adds a message at the end of the log. Any text is accepted,
// including an empty caption for audio-only entries.
func (s *Store) Append(role Role, sender, text string, audio []byte) Message {
	msg := Message{
		ID:     uuid.NewString(),
		Role:   role,
		Sender: sender,
		Text:   text,
		Audio:  slices.Clone(audio),
		At:     s.now(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	snapshot := slices.Clone(s.messages)
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(snapshot)
	}
	return msg
}

// Messages returns a copy of the log in display order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Find returns the message with id.
func (s *Store) Find(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, msg := range s.messages {
		if msg.ID == id {
			return msg, true
		}
	}
	return Message{}, false
}

// Texts yields message texts in transcript order. Each iteration reads the
// log as it is when iteration starts, so the sequence can be replayed.
func (s *Store) Texts() iter.Seq[string] {
	return func(yield func(string) bool) {
		s.mu.RLock()
		n := len(s.messages)
		s.mu.RUnlock()

		for i := range n {
			s.mu.RLock()
			text := s.messages[i].Text
			s.mu.RUnlock()
			if !yield(text) {
				return
			}
		}
	}
}

// Context joins every message text with newlines, as sent alongside
// outbound requests.
func (s *Store) Context() string {
	var b strings.Builder
	first := true
	for text := range s.Texts() {
		if !first {
			b.WriteByte('\n')
		}
		b.WriteString(text)
		first = false
	}
	return b.String()
}
