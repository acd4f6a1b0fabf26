package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (r *recorder) handler(_ context.Context, _ peer.ID, msg []byte) ValidationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return ValidationAccept
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func TestMeshDelivery(t *testing.T) {
	mesh := NewMesh()
	alice := mesh.Node("alice")
	bob := mesh.Node("bob")
	carol := mesh.Node("carol")

	var bobRec, carolRec recorder
	require.NoError(t, bob.Register("topic-a", bobRec.handler))
	require.NoError(t, carol.Register("topic-a", carolRec.handler))

	require.NoError(t, alice.Publish(context.Background(), "topic-a", []byte("hello")))
	require.Eventually(t, func() bool {
		return bobRec.count() == 1 && carolRec.count() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMeshNoLoopback(t *testing.T) {
	mesh := NewMesh()
	alice := mesh.Node("alice")

	var rec recorder
	require.NoError(t, alice.Register("topic-a", rec.handler))
	require.NoError(t, alice.Publish(context.Background(), "topic-a", []byte("hello")))

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, rec.count())
}

func TestMeshTopicIsolation(t *testing.T) {
	mesh := NewMesh()
	alice := mesh.Node("alice")
	bob := mesh.Node("bob")

	var rec recorder
	require.NoError(t, bob.Register("topic-b", rec.handler))
	require.NoError(t, alice.Publish(context.Background(), "topic-a", []byte("hello")))

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, rec.count())
}

func TestMeshUnregisterStopsDelivery(t *testing.T) {
	mesh := NewMesh()
	alice := mesh.Node("alice")
	bob := mesh.Node("bob")

	var rec recorder
	require.NoError(t, bob.Register("topic-a", rec.handler))
	require.NoError(t, alice.Publish(context.Background(), "topic-a", []byte("one")))
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 10*time.Millisecond)

	bob.Unregister("topic-a")
	require.NoError(t, alice.Publish(context.Background(), "topic-a", []byte("two")))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, rec.count())
}
