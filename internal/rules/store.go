package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/atomicfile"
)

// Store is an ordered rule list. Order is matching priority: the first
// enabled rule whose pattern matches wins.
//
// A Store is safe for concurrent use. Mutations take the write lock, so
// readers see the rule list either before or after a mutation, never in
// between. Every accessor returns copies.
type Store struct {
	mu     sync.RWMutex
	rules  []Rule
	nextID int
	config Config
}

// NewStore returns an empty store with the default config.
func NewStore() *Store {
	return &Store{nextID: 1, config: DefaultConfig()}
}

// Load replaces the store's rules and config with the document at path.
// The store is only modified when the whole document parses; on error the
// previous state is kept.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return s.LoadBytes(data, FormatFor(path))
}

// LoadBytes is Load for an in-memory document.
func (s *Store) LoadBytes(data []byte, format Format) error {
	rs, cfg, next, err := Decode(data, format)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rs
	s.config = cfg
	s.nextID = next
	return nil
}

// Save writes all rules, in order, and the config to path. Missing parent
// directories are created.
func (s *Store) Save(path string) error {
	data, err := s.Bytes(FormatFor(path))
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrIO, err)
	}
	if err := atomicfile.Write(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// Bytes encodes the store as a rule document.
func (s *Store) Bytes(format Format) ([]byte, error) {
	snap := s.Snapshot()
	return Encode(snap.Rules, snap.Config, format)
}

// Add appends r as the lowest priority rule and returns its id. A zero id
// is replaced by the next free id. An explicit id must be unused.
func (s *Store) Add(r Rule) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.ID < 0:
		return 0, fmt.Errorf("%w: %d", ErrInvalidID, r.ID)
	case r.ID == 0:
		r.ID = s.nextID
		s.nextID++
	default:
		if s.indexOf(r.ID) >= 0 {
			return 0, fmt.Errorf("%w: %d", ErrDuplicateID, r.ID)
		}
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}
	s.rules = append(s.rules, r)
	return r.ID, nil
}

// Update replaces the rule with r.ID in place. It reports whether such a
// rule existed.
func (s *Store) Update(r Rule) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(r.ID)
	if i < 0 {
		return false
	}
	s.rules[i] = r
	return true
}

// Delete removes the rule with id. Its id is never handed out again.
func (s *Store) Delete(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.rules = append(s.rules[:i:i], s.rules[i+1:]...)
	return true
}

// Toggle flips the enabled flag of rule id and returns the new value.
func (s *Store) Toggle(id int) (enabled bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, false
	}
	s.rules[i].Enabled = !s.rules[i].Enabled
	return s.rules[i].Enabled, true
}

// SetEnabled sets the enabled flag of rule id.
func (s *Store) SetEnabled(id int, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.rules[i].Enabled = enabled
	return true
}

// Duplicate appends a copy of rule id under a new id and returns that id.
func (s *Store) Duplicate(id int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return 0, false
	}
	dup := s.rules[i]
	dup.ID = s.nextID
	dup.Name = dup.Name + " (copy)"
	s.nextID++
	s.rules = append(s.rules, dup)
	return dup.ID, true
}

// Move changes the priority of rule id so it sits at index, clamped to the
// list bounds.
func (s *Store) Move(id, index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	r := s.rules[i]
	rest := append(s.rules[:i:i], s.rules[i+1:]...)
	index = max(0, min(index, len(rest)))

	moved := make([]Rule, 0, len(s.rules))
	moved = append(moved, rest[:index]...)
	moved = append(moved, r)
	moved = append(moved, rest[index:]...)
	s.rules = moved
	return true
}

// Get returns a copy of rule id.
func (s *Store) Get(id int) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return Rule{}, false
	}
	return s.rules[i], true
}

// List returns a copy of all rules in priority order.
func (s *Store) List() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of rules.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// FindMatching returns the first enabled rule whose pattern matches
// command.
func (s *Store) FindMatching(command string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rules {
		if r.Matches(command) {
			return r, true
		}
	}
	return Rule{}, false
}

// NextID returns the id the next Add with a zero id will receive.
func (s *Store) NextID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}

func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *Store) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// Snapshot returns the rules and config as observed under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs := make([]Rule, len(s.rules))
	copy(rs, s.rules)
	return Snapshot{Rules: rs, Config: s.config}
}

func (s *Store) indexOf(id int) int {
	for i, r := range s.rules {
		if r.ID == id {
			return i
		}
	}
	return -1
}
