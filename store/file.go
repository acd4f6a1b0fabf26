package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/realmesh/go-realmesh/codec"
	"github.com/realmesh/go-realmesh/common/types"
)

const stateFile = "state.bin"

// FileStore keeps the node state in a single codec-encoded file that is
// replaced atomically on every mutation. A crash mid-save leaves the
// previous state intact, never a torn file.
type FileStore struct {
	path string

	mu      sync.Mutex
	realms  map[types.RealmID]RealmRecord
	invites map[uuid.UUID]uint32
	peers   []PeerRecord
}

var _ Store = &FileStore{}

// OpenFile loads node state from dir, creating it empty on first use.
func OpenFile(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", dir, err)
	}
	s := &FileStore{
		path:    filepath.Join(dir, stateFile),
		realms:  map[types.RealmID]RealmRecord{},
		invites: map[uuid.UUID]uint32{},
	}
	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read state file: %w", err)
	}
	var snap snapshot
	if err := codec.Decode(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	for _, rec := range snap.Realms {
		s.realms[rec.ID] = rec
	}
	for _, use := range snap.Invites {
		s.invites[uuid.UUID(use.ID)] = use.Uses
	}
	s.peers = snap.Peers
	return s, nil
}

// persist writes the current state. Callers hold the mutex.
func (s *FileStore) persist() error {
	snap := snapshot{
		Realms:  make([]RealmRecord, 0, len(s.realms)),
		Peers:   s.peers,
		Invites: make([]inviteUse, 0, len(s.invites)),
	}
	for _, rec := range s.realms {
		snap.Realms = append(snap.Realms, rec)
	}
	for id, uses := range s.invites {
		snap.Invites = append(snap.Invites, inviteUse{ID: id, Uses: uses})
	}
	raw, err := codec.Encode(&snap)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// SaveRealm implements Store.
func (s *FileStore) SaveRealm(rec RealmRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realms[rec.ID] = rec
	return s.persist()
}

// Realm implements Store.
func (s *FileStore) Realm(id types.RealmID) (RealmRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.realms[id]
	return rec, ok, nil
}

// Realms implements Store.
func (s *FileStore) Realms() ([]RealmRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]RealmRecord, 0, len(s.realms))
	for _, rec := range s.realms {
		recs = append(recs, rec)
	}
	return recs, nil
}

// DeleteRealm implements Store.
func (s *FileStore) DeleteRealm(id types.RealmID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.realms[id]; !ok {
		return nil
	}
	delete(s.realms, id)
	return s.persist()
}

// InviteUses implements Store.
func (s *FileStore) InviteUses(id uuid.UUID) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invites[id], nil
}

// BumpInviteUses implements Store.
func (s *FileStore) BumpInviteUses(id uuid.UUID) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[id]++
	if err := s.persist(); err != nil {
		return 0, err
	}
	return s.invites[id], nil
}

// SavePeers implements Store.
func (s *FileStore) SavePeers(recs []PeerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers = recs
	return s.persist()
}

// Peers implements Store.
func (s *FileStore) Peers() ([]PeerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peers, nil
}
