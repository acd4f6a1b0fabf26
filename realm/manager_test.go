package realm_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/realmesh/go-realmesh/common/types"
	"github.com/realmesh/go-realmesh/gossip"
	"github.com/realmesh/go-realmesh/hash"
	"github.com/realmesh/go-realmesh/invite"
	"github.com/realmesh/go-realmesh/peers"
	"github.com/realmesh/go-realmesh/pubsub"
	"github.com/realmesh/go-realmesh/realm"
	"github.com/realmesh/go-realmesh/signing"
	"github.com/realmesh/go-realmesh/store"
)

// fakeEngine is a toy CRDT: state is a set of independent change strings, a
// blob is newline-joined changes, heads are the content hashes of the set.
type fakeEngine struct {
	mu      sync.Mutex
	changes map[types.ChangeHash][]byte
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{changes: map[types.ChangeHash][]byte{}}
}

func (f *fakeEngine) ApplyChanges(_ context.Context, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, change := range strings.Split(string(blob), "\n") {
		if change == "" {
			continue
		}
		f.changes[hash.Change([]byte(change))] = []byte(change)
	}
	return nil
}

func (f *fakeEngine) Heads(context.Context) ([]types.ChangeHash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	heads := make([]types.ChangeHash, 0, len(f.changes))
	for h := range f.changes {
		heads = append(heads, h)
	}
	return heads, nil
}

func (f *fakeEngine) ChangesSince(_ context.Context, heads []types.ChangeHash) ([]byte, error) {
	known := map[types.ChangeHash]struct{}{}
	for _, h := range heads {
		known[h] = struct{}{}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var missing []string
	for h, change := range f.changes {
		if _, ok := known[h]; !ok {
			missing = append(missing, string(change))
		}
	}
	sort.Strings(missing)
	return []byte(strings.Join(missing, "\n")), nil
}

func (f *fakeEngine) ReceiveSyncMessage(context.Context, []byte) error {
	return nil
}

func (f *fakeEngine) has(change string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.changes[hash.Change([]byte(change))]
	return ok
}

type testNode struct {
	manager  *realm.Manager
	engine   *fakeEngine
	signer   *signing.EdSigner
	registry *peers.Registry
	dir      string
}

func newTestNode(t *testing.T, mesh *pubsub.Mesh, clock clockwork.Clock) *testNode {
	t.Helper()
	logger := zaptest.NewLogger(t)
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	verifier, err := signing.NewEdVerifier()
	require.NoError(t, err)
	dir := t.TempDir()
	db, err := store.OpenFile(dir)
	require.NoError(t, err)
	registry := peers.New(logger, peers.WithClock(clock))
	engine := newFakeEngine()
	transport := mesh.Node(peer.ID(signer.NodeID().String()))
	manager := realm.New(
		logger,
		realm.DefaultConfig(),
		signer,
		verifier,
		registry,
		db,
		transport,
		func(types.RealmID) (gossip.Engine, error) { return engine, nil },
		realm.WithClock(clock),
		realm.WithAdvertisedAddresses([]string{"/ip4/127.0.0.1/tcp/4001"}),
	)
	t.Cleanup(manager.Stop)
	return &testNode{manager: manager, engine: engine, signer: signer, registry: registry, dir: dir}
}

func TestTwoNodeConvergence(t *testing.T) {
	mesh := pubsub.NewMesh()
	clock := clockwork.NewFakeClock()
	alice := newTestNode(t, mesh, clock)
	bob := newTestNode(t, mesh, clock)
	ctx := context.Background()

	id, err := alice.manager.CreateRealm("shared notes")
	require.NoError(t, err)
	ticket, err := alice.manager.Invite(id, 0)
	require.NoError(t, err)

	joined, err := bob.manager.JoinRealm(ctx, ticket)
	require.NoError(t, err)
	require.Equal(t, id, joined)

	require.NoError(t, alice.manager.LocalChanges(ctx, id, []byte("alice-1")))
	require.Eventually(t, func() bool { return bob.engine.has("alice-1") },
		5*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.manager.LocalChanges(ctx, id, []byte("bob-1")))
	require.Eventually(t, func() bool { return alice.engine.has("bob-1") },
		5*time.Second, 10*time.Millisecond)
}

func TestLateJoinerCatchesUp(t *testing.T) {
	mesh := pubsub.NewMesh()
	clock := clockwork.NewFakeClock()
	alice := newTestNode(t, mesh, clock)
	carol := newTestNode(t, mesh, clock)
	ctx := context.Background()

	id, err := alice.manager.CreateRealm("backlog")
	require.NoError(t, err)
	require.NoError(t, alice.manager.LocalChanges(ctx, id, []byte("old-1")))
	require.NoError(t, alice.manager.LocalChanges(ctx, id, []byte("old-2")))

	ticket, err := alice.manager.Invite(id, 0)
	require.NoError(t, err)
	_, err = carol.manager.JoinRealm(ctx, ticket)
	require.NoError(t, err)

	// the next periodic heads announcement from alice triggers carol's
	// catch-up request
	clock.BlockUntil(2)
	clock.Advance(realm.DefaultConfig().HeadsInterval)
	require.Eventually(t, func() bool {
		return carol.engine.has("old-1") && carol.engine.has("old-2")
	}, 5*time.Second, 10*time.Millisecond)
}

func TestLeaveStopsDelivery(t *testing.T) {
	mesh := pubsub.NewMesh()
	clock := clockwork.NewFakeClock()
	alice := newTestNode(t, mesh, clock)
	bob := newTestNode(t, mesh, clock)
	ctx := context.Background()

	id, err := alice.manager.CreateRealm("ephemeral")
	require.NoError(t, err)
	ticket, err := alice.manager.Invite(id, 0)
	require.NoError(t, err)
	_, err = bob.manager.JoinRealm(ctx, ticket)
	require.NoError(t, err)

	require.NoError(t, alice.manager.LocalChanges(ctx, id, []byte("before")))
	require.Eventually(t, func() bool { return bob.engine.has("before") },
		5*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.manager.LeaveRealm(id))
	require.ErrorIs(t, bob.manager.LocalChanges(ctx, id, []byte("x")), realm.ErrRealmNotFound)

	require.NoError(t, alice.manager.LocalChanges(ctx, id, []byte("after")))
	time.Sleep(100 * time.Millisecond)
	require.False(t, bob.engine.has("after"))
}

func TestRestartResumesRealmsAndPeers(t *testing.T) {
	mesh := pubsub.NewMesh()
	clock := clockwork.NewFakeClock()
	alice := newTestNode(t, mesh, clock)
	bob := newTestNode(t, mesh, clock)
	ctx := context.Background()

	id, err := alice.manager.CreateRealm("durable")
	require.NoError(t, err)
	ticket, err := alice.manager.Invite(id, 0)
	require.NoError(t, err)
	_, err = bob.manager.JoinRealm(ctx, ticket)
	require.NoError(t, err)
	bob.manager.Stop()

	// a new process: same state dir, fresh registry and manager, no ticket
	logger := zaptest.NewLogger(t)
	verifier, err := signing.NewEdVerifier()
	require.NoError(t, err)
	db, err := store.OpenFile(bob.dir)
	require.NoError(t, err)
	registry := peers.New(logger, peers.WithClock(clock))
	engine := newFakeEngine()
	restarted := realm.New(
		logger,
		realm.DefaultConfig(),
		bob.signer,
		verifier,
		registry,
		db,
		mesh.Node(peer.ID("bob-restarted")),
		func(types.RealmID) (gossip.Engine, error) { return engine, nil },
		realm.WithClock(clock),
	)
	require.NoError(t, restarted.Start())
	defer restarted.Stop()

	// alice came back as a known peer with dialable addresses
	info, ok := registry.Get(alice.signer.NodeID())
	require.True(t, ok)
	require.NotEmpty(t, info.Addresses)
	require.Equal(t, peers.Offline, info.Status)

	// and the realm subscription is live again
	require.NoError(t, alice.manager.LocalChanges(ctx, id, []byte("post-restart")))
	require.Eventually(t, func() bool { return engine.has("post-restart") },
		5*time.Second, 10*time.Millisecond)
}

// flakyTransport fails the first topic registration, then behaves normally.
type flakyTransport struct {
	*pubsub.MeshNode
	mu     sync.Mutex
	failed bool
}

func (f *flakyTransport) Register(topic string, handler pubsub.GossipHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.failed {
		f.failed = true
		return errors.New("transport down")
	}
	return f.MeshNode.Register(topic, handler)
}

func TestFailedJoinKeepsInviteUse(t *testing.T) {
	mesh := pubsub.NewMesh()
	clock := clockwork.NewFakeClock()
	alice := newTestNode(t, mesh, clock)
	ctx := context.Background()

	id, err := alice.manager.CreateRealm("budgeted")
	require.NoError(t, err)
	ticket, err := alice.manager.Invite(id, 1)
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	verifier, err := signing.NewEdVerifier()
	require.NoError(t, err)
	db, err := store.OpenFile(t.TempDir())
	require.NoError(t, err)
	registry := peers.New(logger, peers.WithClock(clock))
	transport := &flakyTransport{MeshNode: mesh.Node(peer.ID(signer.NodeID().String()))}
	manager := realm.New(
		logger,
		realm.DefaultConfig(),
		signer,
		verifier,
		registry,
		db,
		transport,
		func(types.RealmID) (gossip.Engine, error) { return newFakeEngine(), nil },
		realm.WithClock(clock),
	)
	t.Cleanup(manager.Stop)

	_, err = manager.JoinRealm(ctx, ticket)
	require.Error(t, err)

	// the failed join did not consume the ticket's single use
	joined, err := manager.JoinRealm(ctx, ticket)
	require.NoError(t, err)
	require.Equal(t, id, joined)
}

func TestJoinErrors(t *testing.T) {
	mesh := pubsub.NewMesh()
	clock := clockwork.NewFakeClock()
	alice := newTestNode(t, mesh, clock)
	bob := newTestNode(t, mesh, clock)
	ctx := context.Background()

	id, err := alice.manager.CreateRealm("guarded")
	require.NoError(t, err)

	t.Run("malformed ticket", func(t *testing.T) {
		_, err := bob.manager.JoinRealm(ctx, "not-a-ticket")
		require.ErrorIs(t, err, invite.ErrMalformedTicket)
	})

	t.Run("double join", func(t *testing.T) {
		ticket, err := alice.manager.Invite(id, 0)
		require.NoError(t, err)
		_, err = bob.manager.JoinRealm(ctx, ticket)
		require.NoError(t, err)
		_, err = bob.manager.JoinRealm(ctx, ticket)
		require.ErrorIs(t, err, realm.ErrAlreadyJoined)
	})

	t.Run("use budget exhausted after rejoin", func(t *testing.T) {
		ticket, err := alice.manager.Invite(id, 1)
		require.NoError(t, err)
		require.NoError(t, bob.manager.LeaveRealm(id))
		_, err = bob.manager.JoinRealm(ctx, ticket)
		require.NoError(t, err)
		require.NoError(t, bob.manager.LeaveRealm(id))
		_, err = bob.manager.JoinRealm(ctx, ticket)
		require.ErrorIs(t, err, invite.ErrUsageExceeded)
	})
}
