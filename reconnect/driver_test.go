package reconnect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/realmesh/go-realmesh/common/types"
	"github.com/realmesh/go-realmesh/peers"
)

type stubConnector struct {
	mu       sync.Mutex
	failures int
	calls    int
	dialed   chan types.NodeID
}

func newStubConnector(failures int) *stubConnector {
	return &stubConnector{
		failures: failures,
		dialed:   make(chan types.NodeID, 16),
	}
}

func (s *stubConnector) Connect(_ context.Context, info peers.Info) error {
	s.mu.Lock()
	s.calls++
	failing := s.calls <= s.failures
	s.mu.Unlock()
	s.dialed <- info.ID
	if failing {
		return errors.New("connection refused")
	}
	return nil
}

func waitDial(t *testing.T, conn *stubConnector) types.NodeID {
	t.Helper()
	select {
	case id := <-conn.dialed:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dial")
		return types.NodeID{}
	}
}

func TestDriverRetriesUntilSuccess(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := DefaultConfig()
	registry := peers.New(zaptest.NewLogger(t),
		peers.WithClock(clock),
		peers.WithRetryPolicy(cfg.Delay),
	)
	var id types.NodeID
	id[0] = 1
	registry.Upsert(peers.Info{ID: id, Status: peers.Offline})

	conn := newStubConnector(1)
	driver := New(zaptest.NewLogger(t), cfg, registry, conn, WithClock(clock))
	driver.Start()
	defer driver.Stop()

	// first scan: the peer is due immediately and the dial fails
	clock.BlockUntil(1)
	clock.Advance(cfg.Interval)
	require.Equal(t, id, waitDial(t, conn))
	require.Eventually(t, func() bool {
		info, ok := registry.Get(id)
		return ok && info.BackoffAttempt == 1
	}, 5*time.Second, 10*time.Millisecond)

	// the next scans stay quiet until the backoff expires
	clock.BlockUntil(1)
	clock.Advance(cfg.Interval)
	select {
	case <-conn.dialed:
		t.Fatal("dialed before the backoff expired")
	case <-time.After(50 * time.Millisecond):
	}

	// after the base delay the retry goes through and the state resets
	clock.BlockUntil(1)
	clock.Advance(cfg.Base)
	require.Equal(t, id, waitDial(t, conn))
	require.Eventually(t, func() bool {
		info, ok := registry.Get(id)
		return ok && info.Status == peers.Online && info.BackoffAttempt == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDriverSkipsOnlinePeers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := DefaultConfig()
	registry := peers.New(zaptest.NewLogger(t), peers.WithClock(clock))
	var id types.NodeID
	id[0] = 2
	registry.Upsert(peers.Info{ID: id, Status: peers.Online})

	conn := newStubConnector(0)
	driver := New(zaptest.NewLogger(t), cfg, registry, conn, WithClock(clock))
	driver.Start()
	defer driver.Stop()

	clock.BlockUntil(1)
	clock.Advance(cfg.Interval)
	select {
	case <-conn.dialed:
		t.Fatal("dialed a peer that is online")
	case <-time.After(50 * time.Millisecond):
	}
}
