// Package realm ties the engine together: it owns the lifecycle of joined
// realms, turns invite tickets into running subscriptions, and bridges local
// CRDT changes onto the encrypted broadcast mesh.
package realm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/realmesh/go-realmesh/common/types"
	"github.com/realmesh/go-realmesh/gossip"
	"github.com/realmesh/go-realmesh/invite"
	"github.com/realmesh/go-realmesh/peers"
	"github.com/realmesh/go-realmesh/pubsub"
	"github.com/realmesh/go-realmesh/signing"
	"github.com/realmesh/go-realmesh/store"
)

var (
	// ErrRealmNotFound is returned for operations on a realm the node has
	// not joined.
	ErrRealmNotFound = errors.New("realm: not found")
	// ErrAlreadyJoined is returned when joining a realm twice.
	ErrAlreadyJoined = errors.New("realm: already joined")
	// ErrTopicMismatch is returned for tickets whose topic does not match
	// the realm identity they carry.
	ErrTopicMismatch = errors.New("realm: ticket topic does not match realm")
)

// Config configures the realm manager.
type Config struct {
	// HeadsInterval is the cadence of periodic head announcements.
	HeadsInterval time.Duration `mapstructure:"heads-interval"`
	// JoinTimeout bounds a join operation end to end.
	JoinTimeout time.Duration `mapstructure:"join-timeout"`
	// InviteExpiry is the default lifetime of minted invites. Zero means
	// invites never expire.
	InviteExpiry time.Duration `mapstructure:"invite-expiry"`
	Gossip       gossip.Config `mapstructure:"gossip"`
}

// DefaultConfig returns the default realm manager config.
func DefaultConfig() Config {
	return Config{
		HeadsInterval: 30 * time.Second,
		JoinTimeout:   10 * time.Second,
		InviteExpiry:  7 * 24 * time.Hour,
		Gossip:        gossip.DefaultConfig(),
	}
}

// EngineFactory creates the CRDT engine instance backing one realm.
type EngineFactory func(realm types.RealmID) (gossip.Engine, error)

// Opt configures a Manager.
type Opt func(*Manager)

// WithClock replaces the wall clock, for testing.
func WithClock(clock clockwork.Clock) Opt {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithAdvertisedAddresses sets the addresses minted invites point bootstrap
// traffic at.
func WithAdvertisedAddresses(addrs []string) Opt {
	return func(m *Manager) {
		m.advertised = addrs
	}
}

// Manager owns every joined realm on this node.
type Manager struct {
	logger     *zap.Logger
	cfg        Config
	signer     *signing.EdSigner
	verifier   *signing.EdVerifier
	registry   *peers.Registry
	db         store.Store
	transport  pubsub.PublishSubscriber
	engines    EngineFactory
	clock      clockwork.Clock
	advertised []string

	mu   sync.Mutex
	subs map[types.RealmID]*subscription
}

// New creates a realm manager. Call Start to resume realms persisted by a
// previous run.
func New(
	logger *zap.Logger,
	cfg Config,
	signer *signing.EdSigner,
	verifier *signing.EdVerifier,
	registry *peers.Registry,
	db store.Store,
	transport pubsub.PublishSubscriber,
	engines EngineFactory,
	opts ...Opt,
) *Manager {
	m := &Manager{
		logger:    logger,
		cfg:       cfg,
		signer:    signer,
		verifier:  verifier,
		registry:  registry,
		db:        db,
		transport: transport,
		engines:   engines,
		clock:     clockwork.NewRealClock(),
		subs:      map[types.RealmID]*subscription{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start resumes the persisted state: the peer table is loaded into the
// registry and a subscription is started for every stored realm. A node that
// restarts rejoins its realms from this state alone, no new invite needed.
func (m *Manager) Start() error {
	peerRecs, err := m.db.Peers()
	if err != nil {
		return fmt.Errorf("load peer table: %w", err)
	}
	for _, rec := range peerRecs {
		m.registry.Upsert(rec.Info())
	}
	realms, err := m.db.Realms()
	if err != nil {
		return fmt.Errorf("load realms: %w", err)
	}
	for _, rec := range realms {
		if err := m.subscribe(rec.ID, rec.Key); err != nil {
			return fmt.Errorf("resume realm %s: %w", rec.ID.ShortString(), err)
		}
		m.logger.Info("realm resumed",
			zap.String("realm", rec.ID.ShortString()),
			zap.String("name", rec.Name),
		)
	}
	return nil
}

// Stop tears down all subscriptions and persists the peer table.
func (m *Manager) Stop() {
	m.mu.Lock()
	subs := make([]*subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.subs = map[types.RealmID]*subscription{}
	m.mu.Unlock()
	for _, sub := range subs {
		sub.stop()
	}
	activeRealms.Set(0)
	if err := m.persistPeers(); err != nil {
		m.logger.Warn("failed to persist peer table", zap.Error(err))
	}
}

// CreateRealm creates a new realm with a fresh identity and key, persists
// the binding and starts its subscription.
func (m *Manager) CreateRealm(name string) (types.RealmID, error) {
	id, err := types.GenerateRealmID()
	if err != nil {
		return types.EmptyRealmID, err
	}
	key, err := types.GenerateRealmKey()
	if err != nil {
		return types.EmptyRealmID, err
	}
	rec := store.RealmRecord{ID: id, Name: name, Key: key, Topic: id.TopicID()}
	if err := m.db.SaveRealm(rec); err != nil {
		return types.EmptyRealmID, fmt.Errorf("persist realm: %w", err)
	}
	if err := m.subscribe(id, key); err != nil {
		return types.EmptyRealmID, err
	}
	m.logger.Info("realm created",
		zap.String("realm", id.ShortString()),
		zap.String("topic", id.TopicID().ShortString()),
		zap.String("name", name),
	)
	return id, nil
}

// JoinRealm verifies an encoded invite ticket and joins the realm it grants:
// the key and topic are adopted, the bootstrap peers seeded into the
// registry, and the subscription started. Bounded by the configured join
// timeout.
func (m *Manager) JoinRealm(ctx context.Context, encoded string) (types.RealmID, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.JoinTimeout)
	defer cancel()

	ticket, err := invite.Decode(encoded)
	if err != nil {
		return types.EmptyRealmID, err
	}
	uses, err := m.db.InviteUses(ticket.InviteID)
	if err != nil {
		return types.EmptyRealmID, fmt.Errorf("load invite uses: %w", err)
	}
	if err := ticket.Verify(m.verifier, m.clock.Now(), uses); err != nil {
		return types.EmptyRealmID, err
	}
	if ticket.Topic != ticket.Realm.TopicID() {
		return types.EmptyRealmID, ErrTopicMismatch
	}
	m.mu.Lock()
	_, joined := m.subs[ticket.Realm]
	m.mu.Unlock()
	if joined {
		return types.EmptyRealmID, ErrAlreadyJoined
	}

	for i := range ticket.Bootstrap {
		peer := &ticket.Bootstrap[i]
		if peer.ID == m.signer.NodeID() {
			continue
		}
		info := peer.Info()
		info.SharedRealms = []types.RealmID{ticket.Realm}
		m.registry.Upsert(info)
	}
	if err := m.persistPeers(); err != nil {
		return types.EmptyRealmID, err
	}

	rec := store.RealmRecord{
		ID:    ticket.Realm,
		Name:  ticket.RealmName,
		Key:   ticket.Key,
		Topic: ticket.Topic,
	}
	if err := m.db.SaveRealm(rec); err != nil {
		return types.EmptyRealmID, fmt.Errorf("persist realm: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return types.EmptyRealmID, err
	}
	if err := m.subscribe(ticket.Realm, ticket.Key); err != nil {
		return types.EmptyRealmID, err
	}
	// the use is consumed only once the subscription is live, so a failed
	// join never burns a budgeted ticket
	if _, err := m.db.BumpInviteUses(ticket.InviteID); err != nil {
		m.logger.Warn("failed to bump invite uses", zap.Error(err))
	}
	m.logger.Info("realm joined",
		zap.Object("ticket", ticket),
	)
	return ticket.Realm, nil
}

// LeaveRealm stops the realm subscription, releases its topic and forgets
// the stored binding.
func (m *Manager) LeaveRealm(id types.RealmID) error {
	m.mu.Lock()
	sub, ok := m.subs[id]
	if ok {
		delete(m.subs, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrRealmNotFound
	}
	sub.stop()
	activeRealms.Dec()
	if err := m.db.DeleteRealm(id); err != nil {
		return fmt.Errorf("delete realm: %w", err)
	}
	m.logger.Info("realm left", zap.String("realm", id.ShortString()))
	return nil
}

// Invite mints an encoded invite ticket for a joined realm. Bootstrap peers
// are this node plus the known realm members.
func (m *Manager) Invite(id types.RealmID, maxUses uint32) (string, error) {
	rec, ok, err := m.db.Realm(id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrRealmNotFound
	}
	bootstrap := []invite.Peer{{ID: m.signer.NodeID(), Addresses: m.advertised}}
	for _, info := range m.registry.All() {
		if len(bootstrap) >= 16 {
			break
		}
		if !sharesRealm(info, id) {
			continue
		}
		peer := invite.Peer{ID: info.ID}
		for _, addr := range info.Addresses {
			peer.Addresses = append(peer.Addresses, addr.String())
		}
		bootstrap = append(bootstrap, peer)
	}
	ticket, err := invite.Create(m.signer, m.clock.Now(), invite.Params{
		Realm:     id,
		Key:       rec.Key,
		RealmName: rec.Name,
		Bootstrap: bootstrap,
		ExpiresIn: m.cfg.InviteExpiry,
		MaxUses:   maxUses,
	})
	if err != nil {
		return "", err
	}
	return ticket.Encode()
}

// LocalChanges applies a locally produced change blob to the realm's engine
// and broadcasts it to the realm.
func (m *Manager) LocalChanges(ctx context.Context, id types.RealmID, changes []byte) error {
	m.mu.Lock()
	sub, ok := m.subs[id]
	m.mu.Unlock()
	if !ok {
		return ErrRealmNotFound
	}
	return sub.protocol.LocalChanges(ctx, changes)
}

// Realms returns the stored realm records.
func (m *Manager) Realms() ([]store.RealmRecord, error) {
	return m.db.Realms()
}

func (m *Manager) subscribe(id types.RealmID, key types.RealmKey) error {
	engine, err := m.engines(id)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	sub, err := newSubscription(
		m.logger.Named("realm-"+id.ShortString()),
		id,
		key,
		m.signer,
		m.verifier,
		m.registry,
		m.transport,
		engine,
		m.cfg.Gossip,
		m.clock,
		m.cfg.HeadsInterval,
	)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if _, exists := m.subs[id]; exists {
		m.mu.Unlock()
		return ErrAlreadyJoined
	}
	m.subs[id] = sub
	m.mu.Unlock()
	if err := sub.start(); err != nil {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		return err
	}
	activeRealms.Inc()
	return nil
}

func (m *Manager) persistPeers() error {
	infos := m.registry.All()
	recs := make([]store.PeerRecord, 0, len(infos))
	for _, info := range infos {
		recs = append(recs, store.PeerRecordFromInfo(info))
	}
	if err := m.db.SavePeers(recs); err != nil {
		return fmt.Errorf("persist peer table: %w", err)
	}
	return nil
}

func sharesRealm(info peers.Info, id types.RealmID) bool {
	for _, realm := range info.SharedRealms {
		if realm == id {
			return true
		}
	}
	return false
}
