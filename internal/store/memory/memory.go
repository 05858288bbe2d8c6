// Package memory provides in-memory repositories with the same semantics as
// the SQL store. It is safe for concurrent use and intended for tests and
// local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mindsight/journal/internal/store"
	"github.com/mindsight/journal/types"
)

// UserRepository stores users in a map keyed by ID.
type UserRepository struct {
	mu     sync.RWMutex
	nextID int
	users  map[int]types.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{nextID: 1, users: make(map[int]types.User)}
}

func (r *UserRepository) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Username == user.Username {
			return types.User{}, store.ErrConflict
		}
	}

	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now().UTC()
	r.users[user.ID] = user
	return user, nil
}

// EntryRepository stores entries in a map keyed by ID.
type EntryRepository struct {
	mu      sync.RWMutex
	nextID  int
	entries map[int]types.Entry
}

func NewEntryRepository() *EntryRepository {
	return &EntryRepository{nextID: 1, entries: make(map[int]types.Entry)}
}

func (r *EntryRepository) Create(_ context.Context, entry types.Entry) (types.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.ID = r.nextID
	r.nextID++
	entry.CreatedAt = time.Now().UTC()
	r.entries[entry.ID] = entry
	return entry, nil
}

func (r *EntryRepository) Get(_ context.Context, id int) (types.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return types.Entry{}, store.ErrNotFound
	}
	return entry, nil
}

// ListByUser returns the user's entries, newest first; ties break on ID.
func (r *EntryRepository) ListByUser(_ context.Context, userID int) ([]types.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]types.Entry, 0)
	for _, entry := range r.entries {
		if entry.UserID == userID {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

func (r *EntryRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

// Insert stores entry as-is, keeping its ID and timestamp. Useful for seeding
// entries owned by other users.
func (r *EntryRepository) Insert(entry types.Entry) types.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == 0 {
		entry.ID = r.nextID
	}
	if entry.ID >= r.nextID {
		r.nextID = entry.ID + 1
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.entries[entry.ID] = entry
	return entry
}
