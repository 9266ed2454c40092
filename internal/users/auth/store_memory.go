// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/taibuivan/payhub/pkg/pagination"
)

// # In-Memory Stores
//
// Process-local implementations for tests and single-instance development
// runs (SESSION_BACKEND=memory). Sessions do not survive a restart.

// MemoryDirectory is a UserDirectory backed by a map.
type MemoryDirectory struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]*User
	byName map[string]int64
	now    func() time.Time
}

// NewMemoryDirectory returns an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users:  make(map[int64]*User),
		byName: make(map[string]int64),
		now:    time.Now,
	}
}

// FindByID implements UserDirectory.
func (directory *MemoryDirectory) FindByID(_ context.Context, id int64) (*User, error) {
	directory.mu.RLock()
	defer directory.mu.RUnlock()

	user, found := directory.users[id]
	if !found {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// FindByUsername implements UserDirectory.
func (directory *MemoryDirectory) FindByUsername(context context.Context, username string) (*User, error) {
	directory.mu.RLock()
	id, found := directory.byName[username]
	directory.mu.RUnlock()

	if !found {
		return nil, ErrUserNotFound
	}
	return directory.FindByID(context, id)
}

// Create implements UserDirectory. The uniqueness check and the insert happen
// under one lock, like a unique index.
func (directory *MemoryDirectory) Create(_ context.Context, user *User) error {
	directory.mu.Lock()
	defer directory.mu.Unlock()

	if _, taken := directory.byName[user.Username]; taken {
		return ErrDuplicateUsername
	}

	directory.nextID++
	user.ID = directory.nextID
	user.CreatedAt = directory.now().UTC()

	stored := *user
	directory.users[user.ID] = &stored
	directory.byName[user.Username] = user.ID
	return nil
}

// SetAdmin implements UserDirectory.
func (directory *MemoryDirectory) SetAdmin(_ context.Context, username string, isAdmin bool) error {
	directory.mu.Lock()
	defer directory.mu.Unlock()

	id, found := directory.byName[username]
	if !found {
		return ErrUserNotFound
	}
	directory.users[id].IsAdmin = isAdmin
	return nil
}

// List implements UserDirectory.
func (directory *MemoryDirectory) List(_ context.Context, params pagination.Params) ([]*User, int, error) {
	directory.mu.RLock()
	defer directory.mu.RUnlock()

	ids := make([]int64, 0, len(directory.users))
	for id := range directory.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	total := len(ids)
	start, end := params.Window(total)

	page := make([]*User, 0, end-start)
	for _, id := range ids[start:end] {
		copied := *directory.users[id]
		page = append(page, &copied)
	}
	return page, total, nil
}

// MemorySessionStore is a SessionStore backed by a map.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

// NewMemorySessionStore returns an empty session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

// Create implements SessionStore.
func (store *MemorySessionStore) Create(_ context.Context, userID int64, expiresAt time.Time) (*Session, error) {
	sessionID, err := newSessionID()
	if err != nil {
		return nil, err
	}

	session := Session{ID: sessionID, UserID: userID, CreatedAt: store.now().UTC(), ExpiresAt: expiresAt.UTC()}

	store.mu.Lock()
	store.sessions[sessionID] = session
	store.mu.Unlock()

	return &session, nil
}

// Read implements SessionStore.
func (store *MemorySessionStore) Read(_ context.Context, sessionID string) (*Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	session, found := store.sessions[sessionID]
	if !found || session.Expired(store.now()) {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

// Destroy implements SessionStore.
func (store *MemorySessionStore) Destroy(_ context.Context, sessionID string) error {
	store.mu.Lock()
	delete(store.sessions, sessionID)
	store.mu.Unlock()
	return nil
}

// Touch implements SessionStore.
func (store *MemorySessionStore) Touch(_ context.Context, sessionID string, expiresAt time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	session, found := store.sessions[sessionID]
	if !found || session.Expired(store.now()) {
		return ErrSessionNotFound
	}
	session.ExpiresAt = expiresAt.UTC()
	store.sessions[sessionID] = session
	return nil
}

// DeleteExpired implements SessionStore.
func (store *MemorySessionStore) DeleteExpired(context.Context) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var removed int64
	now := store.now()
	for id, session := range store.sessions {
		if session.Expired(now) {
			delete(store.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many sessions are stored, expired ones included.
func (store *MemorySessionStore) Len() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.sessions)
}
