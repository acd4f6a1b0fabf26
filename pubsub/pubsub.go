// Package pubsub wraps the topic-addressed broadcast transport. Realms never
// see libp2p directly: they publish opaque blobs to a topic and register a
// handler for inbound blobs, which is exactly the surface this package
// exposes. An in-memory mesh implementation backs the multi-node tests.
package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/realmesh/go-realmesh/hash"
)

// Publisher interface for publishing messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg []byte) error
}

// Subscriber is an interface for subscribing to topics.
type Subscriber interface {
	Register(topic string, handler GossipHandler) error
	Unregister(topic string)
}

// PublishSubscriber is the combined broadcast transport surface.
type PublishSubscriber interface {
	Publisher
	Subscriber
}

// GossipHandler is a function for receiving messages.
type GossipHandler = func(context.Context, peer.ID, []byte) ValidationResult

// ValidationResult is one of the validation result constants.
type ValidationResult = pubsub.ValidationResult

const (
	// ValidationAccept should be returned if the message is good and can be
	// broadcast further.
	ValidationAccept = pubsub.ValidationAccept
	// ValidationIgnore should be returned if the message might be good but
	// is outdated and shouldn't be broadcast further.
	ValidationIgnore = pubsub.ValidationIgnore
	// ValidationReject should be returned if the message is malformed or
	// malicious and shouldn't be broadcast. The sender may get banned.
	ValidationReject = pubsub.ValidationReject
)

// Config for the gossipsub transport.
type Config struct {
	Flood          bool `mapstructure:"flood"`
	MaxMessageSize int  `mapstructure:"max-message-size"`
}

// DefaultConfig for the gossipsub transport.
func DefaultConfig() Config {
	return Config{Flood: true, MaxMessageSize: 6 << 20}
}

// msgID dedups at the transport layer by content, so the same blob relayed
// by different peers counts as one message.
func msgID(msg *pb.Message) string {
	hasher := hash.New()
	if msg.Topic != nil {
		hasher.Write([]byte(*msg.Topic))
	}
	hasher.Write(msg.Data)
	return string(hasher.Sum(nil))
}

func getOptions(cfg Config) []pubsub.Option {
	options := []pubsub.Option{
		pubsub.WithFloodPublish(cfg.Flood),
		pubsub.WithMessageIdFn(msgID),
		pubsub.WithNoAuthor(),
		pubsub.WithMessageSignaturePolicy(pubsub.StrictNoSign),
		pubsub.WithPeerOutboundQueueSize(8192),
		pubsub.WithValidateQueueSize(8192),
		pubsub.WithPeerScore(
			&pubsub.PeerScoreParams{
				AppSpecificScore:  func(peer.ID) float64 { return 0 },
				AppSpecificWeight: 1,

				BehaviourPenaltyThreshold: 6,
				BehaviourPenaltyWeight:    -10,
				BehaviourPenaltyDecay:     pubsub.ScoreParameterDecay(time.Hour),

				DecayInterval: pubsub.DefaultDecayInterval,
				DecayToZero:   pubsub.DefaultDecayToZero,

				RetainScore: 6 * time.Hour,
			},
			&pubsub.PeerScoreThresholds{
				GossipThreshold:             -500,
				PublishThreshold:            -1000,
				GraylistThreshold:           -2500,
				AcceptPXThreshold:           1000,
				OpportunisticGraftThreshold: 3.5,
			},
		),
	}
	if cfg.MaxMessageSize != 0 {
		options = append(options, pubsub.WithMaxMessageSize(cfg.MaxMessageSize))
	}
	return options
}

type topicState struct {
	topic       *pubsub.Topic
	cancelRelay pubsub.RelayCancelFunc
}

// GossipSub is the gossipsub-backed broadcast transport.
type GossipSub struct {
	logger *zap.Logger
	pubsub *pubsub.PubSub
	host   host.Host

	mu     sync.RWMutex
	topics map[string]*topicState
}

var _ PublishSubscriber = &GossipSub{}

// New creates a gossipsub transport on top of the given host.
func New(ctx context.Context, logger *zap.Logger, h host.Host, cfg Config) (*GossipSub, error) {
	ps, err := pubsub.NewGossipSub(ctx, h, getOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("initialize gossipsub: %w", err)
	}
	return &GossipSub{
		logger: logger,
		pubsub: ps,
		host:   h,
		topics: map[string]*topicState{},
	}, nil
}

// Register joins a topic and installs the handler for inbound messages. The
// handler runs as the topic validator, so its verdict also decides whether
// the message is relayed onward.
func (ps *GossipSub) Register(topic string, handler GossipHandler) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if _, exist := ps.topics[topic]; exist {
		return fmt.Errorf("topic %s already registered", topic)
	}
	err := ps.pubsub.RegisterTopicValidator(
		topic,
		func(ctx context.Context, pid peer.ID, msg *pubsub.Message) pubsub.ValidationResult {
			return handler(ctx, pid, msg.Data)
		},
	)
	if err != nil {
		return fmt.Errorf("register validator for topic %s: %w", topic, err)
	}
	topich, err := ps.pubsub.Join(topic)
	if err != nil {
		ps.pubsub.UnregisterTopicValidator(topic)
		return fmt.Errorf("join topic %s: %w", topic, err)
	}
	cancelRelay, err := topich.Relay()
	if err != nil {
		topich.Close()
		ps.pubsub.UnregisterTopicValidator(topic)
		return fmt.Errorf("enable relay for topic %s: %w", topic, err)
	}
	ps.topics[topic] = &topicState{topic: topich, cancelRelay: cancelRelay}
	return nil
}

// Unregister leaves a topic and drops its handler. Publishing to the topic
// afterwards fails until it is registered again.
func (ps *GossipSub) Unregister(topic string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	state, exist := ps.topics[topic]
	if !exist {
		return
	}
	delete(ps.topics, topic)
	ps.pubsub.UnregisterTopicValidator(topic)
	state.cancelRelay()
	if err := state.topic.Close(); err != nil {
		ps.logger.Warn("failed to close topic", zap.String("topic", topic), zap.Error(err))
	}
}

// Publish a message to the topic.
func (ps *GossipSub) Publish(ctx context.Context, topic string, msg []byte) error {
	ps.mu.RLock()
	state := ps.topics[topic]
	ps.mu.RUnlock()
	if state == nil {
		return fmt.Errorf("topic %s is not registered", topic)
	}
	if err := state.topic.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish to topic %s: %w", topic, err)
	}
	return nil
}

// TopicPeers returns the peers currently meshed on the given topic.
func (ps *GossipSub) TopicPeers(topic string) []peer.ID {
	return ps.pubsub.ListPeers(topic)
}
