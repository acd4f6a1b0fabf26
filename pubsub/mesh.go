package pubsub

import (
	"context"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Mesh is an in-memory broadcast fabric connecting any number of nodes. It
// mirrors the delivery semantics of the gossipsub transport closely enough
// for protocol tests: messages reach every subscribed node except the
// publisher, delivery is asynchronous, and ordering between publishers is
// not guaranteed.
type Mesh struct {
	mu    sync.Mutex
	nodes map[peer.ID]*MeshNode
}

// NewMesh creates an empty fabric.
func NewMesh() *Mesh {
	return &Mesh{nodes: map[peer.ID]*MeshNode{}}
}

// Node attaches a new node to the fabric under the given id.
func (m *Mesh) Node(id peer.ID) *MeshNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	node := &MeshNode{mesh: m, id: id, handlers: map[string]GossipHandler{}}
	m.nodes[id] = node
	return node
}

// Disconnect detaches a node; messages no longer reach it.
func (m *Mesh) Disconnect(id peer.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, id)
}

func (m *Mesh) deliver(from peer.ID, topic string, msg []byte) {
	m.mu.Lock()
	type delivery struct {
		node    *MeshNode
		handler GossipHandler
	}
	var targets []delivery
	for id, node := range m.nodes {
		if id == from {
			continue
		}
		node.mu.Lock()
		handler, subscribed := node.handlers[topic]
		node.mu.Unlock()
		if subscribed {
			targets = append(targets, delivery{node: node, handler: handler})
		}
	}
	m.mu.Unlock()
	for _, target := range targets {
		go target.handler(context.Background(), from, msg)
	}
}

// MeshNode is one endpoint on the fabric. It implements PublishSubscriber.
type MeshNode struct {
	mesh *Mesh
	id   peer.ID

	mu       sync.Mutex
	handlers map[string]GossipHandler
}

var _ PublishSubscriber = &MeshNode{}

// ID returns the node's fabric identity.
func (n *MeshNode) ID() peer.ID {
	return n.id
}

// Register installs the handler for a topic.
func (n *MeshNode) Register(topic string, handler GossipHandler) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[topic] = handler
	return nil
}

// Unregister drops the handler for a topic.
func (n *MeshNode) Unregister(topic string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.handlers, topic)
}

// Publish fans the message out to every other subscribed node.
func (n *MeshNode) Publish(_ context.Context, topic string, msg []byte) error {
	n.mesh.deliver(n.id, topic, msg)
	return nil
}
