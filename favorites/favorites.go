// Package favorites persists the user's favorite business IDs. The set lives
// in the secure store but is independent of the session: it survives logout.
package favorites

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/localspot/localspot-go/store"
)

const storeKey = "favorites"

// Set is a persisted, ordered set of business identifiers.
type Set struct {
	store store.Store
	mu    sync.Mutex
}

// NewSet creates a favorites set backed by s.
func NewSet(s store.Store) *Set {
	return &Set{store: s}
}

func (s *Set) load(ctx context.Context) ([]string, error) {
	raw, err := s.store.Get(ctx, storeKey)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	return ids, nil
}

func (s *Set) save(ctx context.Context, ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}
	if err := s.store.Set(ctx, storeKey, raw); err != nil {
		return fmt.Errorf("save favorites: %w", err)
	}
	return nil
}

// Add appends businessID to the set. Adding an existing ID is a no-op.
func (s *Set) Add(ctx context.Context, businessID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.load(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(ids, businessID) {
		return nil
	}
	return s.save(ctx, append(ids, businessID))
}

// Remove deletes businessID from the set.
func (s *Set) Remove(ctx context.Context, businessID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.load(ctx)
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(ids, func(id string) bool { return id == businessID })
	return s.save(ctx, kept)
}

// List returns all favorite business IDs in insertion order.
func (s *Set) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Contains reports whether businessID is a favorite.
func (s *Set) Contains(ctx context.Context, businessID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, businessID), nil
}
