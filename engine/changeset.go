// Package engine provides the built-in CRDT engine: a content-addressed set
// of opaque change blobs. Changes are independent, commute trivially, and
// the replica state is simply the union of everything ever applied. Richer
// CRDTs plug in behind the same interface and are free to interpret change
// bytes however they like.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/realmesh/go-realmesh/codec"
	"github.com/realmesh/go-realmesh/common/types"
	"github.com/realmesh/go-realmesh/hash"
)

// ChangeSet is a grow-only replica of opaque changes, persisted per realm.
type ChangeSet struct {
	path string

	mu      sync.Mutex
	changes map[types.ChangeHash][]byte
}

// New loads or creates the change set for one realm under dir.
func New(dir string, realm types.RealmID) (*ChangeSet, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create engine dir %s: %w", dir, err)
	}
	cs := &ChangeSet{
		path:    filepath.Join(dir, "changes-"+realm.String()+".bin"),
		changes: map[types.ChangeHash][]byte{},
	}
	raw, err := os.ReadFile(cs.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cs, nil
	case err != nil:
		return nil, fmt.Errorf("read change set: %w", err)
	}
	var blob changeList
	if err := codec.Decode(raw, &blob); err != nil {
		return nil, fmt.Errorf("decode change set: %w", err)
	}
	for _, change := range blob.Changes {
		cs.changes[hash.Change(change.Data)] = change.Data
	}
	return cs, nil
}

// Add records a locally produced change and returns the blob to broadcast.
func (cs *ChangeSet) Add(change []byte) ([]byte, error) {
	cs.mu.Lock()
	cs.changes[hash.Change(change)] = change
	err := cs.persist()
	cs.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return encodeChanges([][]byte{change})
}

// Len returns the number of distinct changes in the replica.
func (cs *ChangeSet) Len() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.changes)
}

// Contains reports whether the replica holds the given change.
func (cs *ChangeSet) Contains(change []byte) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	_, ok := cs.changes[hash.Change(change)]
	return ok
}

// ApplyChanges implements gossip.Engine.
func (cs *ChangeSet) ApplyChanges(_ context.Context, blob []byte) error {
	var list changeList
	if err := codec.Decode(blob, &list); err != nil {
		return fmt.Errorf("decode change blob: %w", err)
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, change := range list.Changes {
		cs.changes[hash.Change(change.Data)] = change.Data
	}
	return cs.persist()
}

// Heads implements gossip.Engine. Every change is independent, so the head
// set is the full content-hash set.
func (cs *ChangeSet) Heads(context.Context) ([]types.ChangeHash, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	heads := make([]types.ChangeHash, 0, len(cs.changes))
	for h := range cs.changes {
		heads = append(heads, h)
	}
	return heads, nil
}

// ChangesSince implements gossip.Engine.
func (cs *ChangeSet) ChangesSince(_ context.Context, heads []types.ChangeHash) ([]byte, error) {
	known := make(map[types.ChangeHash]struct{}, len(heads))
	for _, h := range heads {
		known[h] = struct{}{}
	}
	cs.mu.Lock()
	var missing [][]byte
	for h, change := range cs.changes {
		if _, ok := known[h]; !ok {
			missing = append(missing, change)
		}
	}
	cs.mu.Unlock()
	if len(missing) == 0 {
		return nil, nil
	}
	return encodeChanges(missing)
}

// ReceiveSyncMessage implements gossip.Engine. The change-set engine has no
// internal sync protocol; targeted sync bytes are treated as a change blob.
func (cs *ChangeSet) ReceiveSyncMessage(ctx context.Context, data []byte) error {
	return cs.ApplyChanges(ctx, data)
}

// persist writes the replica. Callers hold the mutex.
func (cs *ChangeSet) persist() error {
	list := changeList{Changes: make([]change, 0, len(cs.changes))}
	for _, data := range cs.changes {
		list.Changes = append(list.Changes, change{Data: data})
	}
	raw, err := codec.Encode(&list)
	if err != nil {
		return fmt.Errorf("encode change set: %w", err)
	}
	if err := atomic.WriteFile(cs.path, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("write change set: %w", err)
	}
	return nil
}

func encodeChanges(changes [][]byte) ([]byte, error) {
	list := changeList{Changes: make([]change, 0, len(changes))}
	for _, data := range changes {
		list.Changes = append(list.Changes, change{Data: data})
	}
	return codec.Encode(&list)
}
