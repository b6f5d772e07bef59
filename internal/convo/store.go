// Package convo holds the process-lifetime conversation state: one ordered
// transcript of user/assistant turns per collection. The store is an
// explicit, injectable object constructed at startup — never ambient global
// state — and is intentionally not persisted across restarts.
package convo

import (
	"errors"
	"sort"
	"sync"
)

// ErrUnknownCollection is returned by reads against a collection name the
// store has never seen.
var ErrUnknownCollection = errors.New("convo: unknown collection")

// Role identifies the author of a turn.
type Role string

const (
	// RoleUser is a turn sent by the caller.
	RoleUser Role = "user"
	// RoleAssistant is a turn produced by the chat model.
	RoleAssistant Role = "assistant"
)

// Turn is a single conversation turn. Turns are append-only: they are never
// edited, only appended in (user, assistant) pairs or cleared wholesale.
type Turn struct {
	// Role is the author of the turn.
	Role Role `json:"role"`
	// Content is the text of the turn.
	Content string `json:"content"`
}

// entry is the per-collection transcript plus its serialization point.
// Holding a mutex per entry lets operations on different collections
// proceed fully in parallel while appends to the same collection serialize.
type entry struct {
	// mu serializes all mutations of this collection's transcript.
	mu sync.Mutex
	// turns is the ordered transcript.
	turns []Turn
}

// Store maps collection names to transcripts. The key set of this store is
// the authority on which collections exist.
type Store struct {
	// mu protects the entries map itself, not the transcripts.
	mu sync.RWMutex
	// entries maps collection name to its transcript entry.
	entries map[string]*entry
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Ensure registers the collection with an empty transcript if it is not
// already known. Idempotent: an existing transcript is left untouched.
func (s *Store) Ensure(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; !ok {
		s.entries[name] = &entry{}
	}
}

// Has reports whether the collection is known to the store.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[name]
	return ok
}

// Names returns all known collection names, sorted for stable output.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AppendPair appends a (user, assistant) turn pair atomically with respect
// to other operations on the same collection. This is the only way turns
// enter a transcript, so a transcript can never hold an unpaired user turn.
// The collection is created if absent.
func (s *Store) AppendPair(name, userContent, assistantContent string) {
	e := s.ensureEntry(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns = append(e.turns,
		Turn{Role: RoleUser, Content: userContent},
		Turn{Role: RoleAssistant, Content: assistantContent},
	)
}

// Transcript returns a copy of the collection's ordered transcript.
// Returns ErrUnknownCollection when the name has never been registered.
func (s *Store) Transcript(name string) ([]Turn, error) {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownCollection
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Turn, len(e.turns))
	copy(out, e.turns)
	return out, nil
}

// Clear resets the collection's transcript to empty, creating the
// collection if absent. Idempotent.
func (s *Store) Clear(name string) {
	e := s.ensureEntry(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns = nil
}

// Remove drops the collection and its transcript entirely. Removing an
// unknown name is a no-op.
func (s *Store) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, name)
}

// ensureEntry returns the entry for name, creating it if absent.
func (s *Store) ensureEntry(name string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		e = &entry{}
		s.entries[name] = e
	}
	return e
}
