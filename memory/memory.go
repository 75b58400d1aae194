// Package memory keeps contacts in process memory. It backs local demos and
// stands in for a real store in tests.
package memory

import (
	"context"
	"errors"
	"sync"

	intake "github.com/phbpx/contact-intake"
)

// ErrUnavailable is returned while the store is marked down.
var ErrUnavailable = errors.New("memory store unavailable")

// Store is a concurrency safe, append-only contact store.
type Store struct {
	mu       sync.RWMutex
	contacts []intake.Contact
	ids      map[string]struct{}
	down     bool
}

// New returns an empty store.
func New() *Store {
	return &Store{ids: make(map[string]struct{})}
}

// Save appends c. Reusing an ID is rejected so every record keeps a stable
// identity.
func (s *Store) Save(ctx context.Context, c intake.Contact) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.down {
		return ErrUnavailable
	}
	if _, ok := s.ids[c.ID]; ok {
		return errors.New("duplicate contact id " + c.ID)
	}
	s.ids[c.ID] = struct{}{}
	s.contacts = append(s.contacts, c)
	return nil
}

// StatusCheck fails while the store is marked down.
func (s *Store) StatusCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.down {
		return ErrUnavailable
	}
	return ctx.Err()
}

// SetDown simulates losing and regaining connectivity.
func (s *Store) SetDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

// Contacts returns a copy of everything saved so far, in insertion order.
func (s *Store) Contacts() []intake.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]intake.Contact, len(s.contacts))
	copy(out, s.contacts)
	return out
}

// Len reports how many contacts were saved.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contacts)
}

// Migrate is a no-op; there is no schema.
func (s *Store) Migrate(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }
