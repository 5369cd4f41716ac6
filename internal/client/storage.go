package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Storage keys; the three entries live and die together.
const (
	KeyAuthToken    = "authToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// Snapshot is the persisted session state. A zero Snapshot means logged out.
type Snapshot struct {
	Tokens TokenPair
	User   User
}

func (s Snapshot) Empty() bool {
	return s.Tokens.AccessToken == "" && s.Tokens.RefreshToken == ""
}

// Store persists the session snapshot. Save replaces all keys at once and
// Clear removes all of them; partial state is never written.
type Store interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
	Clear() error
}

// MemoryStore keeps the snapshot in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	snap Snapshot
	set  bool
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return Snapshot{}, nil
	}
	return m.snap, nil
}

func (m *MemoryStore) Save(snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	m.set = true
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = Snapshot{}
	m.set = false
	return nil
}

// FileStore persists the snapshot as one JSON document. Writes go through a
// temp file and rename, so a crash never leaves a half-written session.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

type fileDocument struct {
	AuthToken    string     `json:"authToken"`
	RefreshToken string     `json:"refreshToken"`
	User         *User      `json:"user,omitempty"`
	Expiry       *TokenPair `json:"expiry,omitempty"`
}

func (f *FileStore) Load() (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		// A corrupt session file is treated as logged out.
		return Snapshot{}, nil
	}
	snap := Snapshot{}
	snap.Tokens.AccessToken = doc.AuthToken
	snap.Tokens.RefreshToken = doc.RefreshToken
	if doc.User != nil {
		snap.User = *doc.User
	}
	if doc.Expiry != nil {
		snap.Tokens.AccessExpiresAt = doc.Expiry.AccessExpiresAt
		snap.Tokens.RefreshExpiresAt = doc.Expiry.RefreshExpiresAt
	}
	return snap, nil
}

func (f *FileStore) Save(snap Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := fileDocument{
		AuthToken:    snap.Tokens.AccessToken,
		RefreshToken: snap.Tokens.RefreshToken,
		User:         &snap.User,
		Expiry: &TokenPair{
			AccessExpiresAt:  snap.Tokens.AccessExpiresAt,
			RefreshExpiresAt: snap.Tokens.RefreshExpiresAt,
		},
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
