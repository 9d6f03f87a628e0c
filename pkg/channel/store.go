package channel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"keychannel/pkg/log"
)

// Origin records how a channel entered the keyring.
type Origin string

const (
	OriginCreated Origin = "created"
	OriginJoined  Origin = "joined"
)

// MaxMessages is how many encrypted messages a channel keeps.
const MaxMessages = 50

// Channel is a keyring entry.
type Channel struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       Key       `json:"key"`
	Origin    Origin    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages,omitempty"` // newest first
}

// Message is an encrypted message sent on a channel. Only the ciphertext is
// kept.
type Message struct {
	ID         string    `json:"id"`
	Ciphertext []int     `json:"ciphertext"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the local keyring. Keys and names are unique. When backed by a
// file every change is written through.
type Store struct {
	filePath string
	mu       sync.RWMutex
	byKey    map[Key]*Channel
}

// NewMemoryStore creates a keyring that is never persisted.
func NewMemoryStore() *Store {
	return &Store{byKey: make(map[Key]*Channel)}
}

// OpenStore loads the keyring at path, starting empty if the file does not
// exist yet.
func OpenStore(path string) (*Store, error) {
	s := &Store{filePath: path, byKey: make(map[Key]*Channel)}
	if err := s.load(); err != nil {
		return nil, xerrors.Errorf("failed to load keyring %s: %w", path, err)
	}
	return s, nil
}

// Create adds a channel with a freshly generated key.
func (s *Store) Create(name string) (*Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, xerrors.New("channel name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(name) {
		return nil, xerrors.Errorf("%q: %w", name, ErrDuplicateName)
	}

	key := NewKey()
	for s.byKey[key] != nil {
		key = NewKey()
	}
	ch := &Channel{
		ID:        uuid.NewString(),
		Name:      name,
		Key:       key,
		Origin:    OriginCreated,
		CreatedAt: time.Now().UTC(),
	}
	s.byKey[key] = ch
	if err := s.persist(); err != nil {
		delete(s.byKey, key)
		return nil, err
	}
	log.Info("Created channel %q (%s)", name, key.Fingerprint())
	return copyChannel(ch), nil
}

// Join records a scanned key. created is false when the key was already in
// the keyring, in which case name is ignored. An empty name is derived from
// the key.
func (s *Store) Join(key Key, name string) (ch *Channel, created bool, err error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byKey[key]; ok {
		log.Info("Already a member of %q", existing.Name)
		return copyChannel(existing), false, nil
	}

	name = strings.TrimSpace(name)
	id := uuid.NewString()
	if name == "" {
		name = "joined-" + id[:8]
	}
	if s.nameTaken(name) {
		return nil, false, xerrors.Errorf("%q: %w", name, ErrDuplicateName)
	}

	ch = &Channel{
		ID:        id,
		Name:      name,
		Key:       key,
		Origin:    OriginJoined,
		CreatedAt: time.Now().UTC(),
	}
	s.byKey[key] = ch
	if err := s.persist(); err != nil {
		delete(s.byKey, key)
		return nil, false, err
	}
	log.Info("Joined channel %q (%s)", name, key.Fingerprint())
	return copyChannel(ch), true, nil
}

// Lookup finds the channel for key.
func (s *Store) Lookup(key Key) (*Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.byKey[key]
	if !ok {
		return nil, xerrors.Errorf("%s: %w", key.Fingerprint(), ErrUnknownKey)
	}
	return copyChannel(ch), nil
}

// List returns every channel, oldest first.
func (s *Store) List() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

// Len returns the number of channels.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

func (s *Store) sortedLocked() []Channel {
	out := make([]Channel, 0, len(s.byKey))
	for _, ch := range s.byKey {
		out = append(out, *ch)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *Store) nameTaken(name string) bool {
	for _, ch := range s.byKey {
		if ch.Name == name {
			return true
		}
	}
	return false
}

// persist rewrites the keyring file. Callers hold the write lock.
func (s *Store) persist() error {
	if s.filePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.sortedLocked(), "", "  ")
	if err != nil {
		return xerrors.Errorf("failed to encode keyring: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return xerrors.Errorf("failed to create keyring directory: %w", err)
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return xerrors.Errorf("failed to write keyring: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return xerrors.Errorf("failed to replace keyring: %w", err)
	}
	return nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // First run.
		}
		return err
	}

	var channels []Channel
	if err := json.Unmarshal(data, &channels); err != nil {
		return err
	}
	for i := range channels {
		ch := channels[i]
		if err := ch.Key.Validate(); err != nil {
			return xerrors.Errorf("entry %q: %w", ch.Name, err)
		}
		s.byKey[ch.Key] = &ch
	}
	log.Debug("Loaded %d channel(s) from %s", len(channels), s.filePath)
	return nil
}

// AddMessage records an encrypted message on the channel of key, dropping
// the oldest once MaxMessages is reached.
func (s *Store) AddMessage(key Key, ciphertext []int) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.byKey[key]
	if !ok {
		return nil, xerrors.Errorf("%s: %w", key.Fingerprint(), ErrUnknownKey)
	}

	msg := Message{
		ID:         uuid.NewString(),
		Ciphertext: append([]int(nil), ciphertext...),
		CreatedAt:  time.Now().UTC(),
	}
	old := ch.Messages
	ch.Messages = append([]Message{msg}, old...)
	if len(ch.Messages) > MaxMessages {
		ch.Messages = ch.Messages[:MaxMessages]
	}
	if err := s.persist(); err != nil {
		ch.Messages = old
		return nil, err
	}
	return &msg, nil
}

// Messages returns the messages of the channel of key, newest first.
func (s *Store) Messages(key Key) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.byKey[key]
	if !ok {
		return nil, xerrors.Errorf("%s: %w", key.Fingerprint(), ErrUnknownKey)
	}
	return copyChannel(ch).Messages, nil
}

func copyChannel(ch *Channel) *Channel {
	cp := *ch
	cp.Messages = make([]Message, len(ch.Messages))
	for i, m := range ch.Messages {
		m.Ciphertext = append([]int(nil), m.Ciphertext...)
		cp.Messages[i] = m
	}
	return &cp
}
