package realm

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/realmesh/go-realmesh/common/types"
	"github.com/realmesh/go-realmesh/gossip"
	"github.com/realmesh/go-realmesh/peers"
	"github.com/realmesh/go-realmesh/pubsub"
	"github.com/realmesh/go-realmesh/realmcrypto"
	"github.com/realmesh/go-realmesh/signing"
)

// subscription is the running state of one joined realm: the topic handler,
// the sync protocol instance and the periodic heads announcer. It implements
// gossip.Publisher by sealing outbound messages into the realm envelope.
type subscription struct {
	logger        *zap.Logger
	realm         types.RealmID
	topic         types.TopicID
	key           types.RealmKey
	local         types.NodeID
	signer        *signing.EdSigner
	verifier      *signing.EdVerifier
	registry      *peers.Registry
	transport     pubsub.PublishSubscriber
	clock         clockwork.Clock
	headsInterval time.Duration
	protocol      *gossip.Protocol

	eg     errgroup.Group
	cancel context.CancelFunc
}

func newSubscription(
	logger *zap.Logger,
	realmID types.RealmID,
	key types.RealmKey,
	signer *signing.EdSigner,
	verifier *signing.EdVerifier,
	registry *peers.Registry,
	transport pubsub.PublishSubscriber,
	engine gossip.Engine,
	gossipCfg gossip.Config,
	clock clockwork.Clock,
	headsInterval time.Duration,
) (*subscription, error) {
	s := &subscription{
		logger:        logger,
		realm:         realmID,
		topic:         realmID.TopicID(),
		key:           key,
		local:         signer.NodeID(),
		signer:        signer,
		verifier:      verifier,
		registry:      registry,
		transport:     transport,
		clock:         clock,
		headsInterval: headsInterval,
	}
	protocol, err := gossip.New(logger, s.local, engine, s, gossipCfg)
	if err != nil {
		return nil, err
	}
	s.protocol = protocol
	return s, nil
}

func (s *subscription) start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if err := s.transport.Register(s.topic.String(), s.handle); err != nil {
		cancel()
		return err
	}
	s.eg.Go(func() error {
		s.announceLoop(ctx)
		return nil
	})
	return nil
}

// stop cancels the announcer and releases the topic. In-flight publishes are
// abandoned with the context.
func (s *subscription) stop() {
	s.cancel()
	s.transport.Unregister(s.topic.String())
	s.eg.Wait()
}

// announceLoop advertises our head set once at startup, so existing members
// can pull us up to date, and then periodically as the liveness beacon late
// joiners catch up from.
func (s *subscription) announceLoop(ctx context.Context) {
	if err := s.protocol.AnnounceHeads(ctx); err != nil {
		s.logger.Debug("initial heads announce failed", zap.Error(err))
	}
	ticker := s.clock.NewTicker(s.headsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := s.protocol.AnnounceHeads(ctx); err != nil {
				s.logger.Debug("heads announce failed", zap.Error(err))
			}
		}
	}
}

// handle processes one raw blob from the realm topic. Every failure drops
// only that message; the subscription itself always survives.
func (s *subscription) handle(ctx context.Context, _ peer.ID, raw []byte) pubsub.ValidationResult {
	plain, err := realmcrypto.Decrypt(s.key, raw)
	if err != nil {
		s.logger.Debug("dropping undecryptable message",
			zap.String("realm", s.realm.ShortString()),
		)
		return pubsub.ValidationReject
	}
	sender, _, msg, err := gossip.VerifyAndDecode(s.verifier, plain)
	if err != nil {
		s.logger.Debug("dropping unverifiable message",
			zap.String("realm", s.realm.ShortString()),
			zap.Error(err),
		)
		return pubsub.ValidationReject
	}
	if sender == s.local {
		// our own message relayed back
		return pubsub.ValidationAccept
	}
	s.registry.Upsert(peers.Info{
		ID:           sender,
		Source:       peers.SourceRealm,
		Status:       peers.Online,
		SharedRealms: []types.RealmID{s.realm},
	})
	s.registry.SetStatus(sender, peers.Online)
	if err := s.protocol.Handle(ctx, sender, msg); err != nil {
		s.logger.Warn("message dropped",
			zap.String("realm", s.realm.ShortString()),
			zap.String("from", sender.ShortString()),
			zap.Stringer("type", msg.Type),
			zap.Error(err),
		)
		return pubsub.ValidationIgnore
	}
	return pubsub.ValidationAccept
}

// Publish implements gossip.Publisher: sign, encrypt, broadcast.
func (s *subscription) Publish(ctx context.Context, msg *gossip.Message) error {
	signed, err := gossip.SignAndEncode(s.signer, s.clock.Now(), msg)
	if err != nil {
		return err
	}
	sealed, err := realmcrypto.Encrypt(s.key, signed)
	if err != nil {
		return err
	}
	return s.transport.Publish(ctx, s.topic.String(), sealed)
}
