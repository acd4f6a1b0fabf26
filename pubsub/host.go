package pubsub

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/realmesh/go-realmesh/common/types"
	"github.com/realmesh/go-realmesh/peers"
	"github.com/realmesh/go-realmesh/signing"
)

// HostConfig configures the libp2p host.
type HostConfig struct {
	Listen []string `mapstructure:"listen"`
}

// DefaultHostConfig returns the default host config.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		Listen: []string{"/ip4/0.0.0.0/tcp/6454", "/ip4/0.0.0.0/udp/6454/quic-v1"},
	}
}

// NewHost creates a libp2p host whose identity is the node's signing key, so
// the transport peer id and the envelope sender are the same keypair.
func NewHost(cfg HostConfig, signer *signing.EdSigner) (host.Host, error) {
	priv, err := crypto.UnmarshalEd25519PrivateKey(signer.PrivateKey())
	if err != nil {
		return nil, fmt.Errorf("convert signing key: %w", err)
	}
	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(cfg.Listen...),
	)
	if err != nil {
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}
	return h, nil
}

// PeerID maps a node identity onto its libp2p peer id.
func PeerID(id types.NodeID) (peer.ID, error) {
	pub, err := crypto.UnmarshalEd25519PublicKey(id.Bytes())
	if err != nil {
		return "", fmt.Errorf("convert node id: %w", err)
	}
	pid, err := peer.IDFromPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("derive peer id: %w", err)
	}
	return pid, nil
}

// HostConnector dials registry peers through the libp2p host. It is the
// connector behind the reconnection driver.
type HostConnector struct {
	logger *zap.Logger
	host   host.Host
}

// NewHostConnector creates a connector on top of the given host.
func NewHostConnector(logger *zap.Logger, h host.Host) *HostConnector {
	return &HostConnector{logger: logger, host: h}
}

// Connect dials the peer at its known addresses.
func (c *HostConnector) Connect(ctx context.Context, info peers.Info) error {
	if len(info.Addresses) == 0 {
		return fmt.Errorf("no known addresses for %s", info.ID.ShortString())
	}
	pid, err := PeerID(info.ID)
	if err != nil {
		return err
	}
	return c.host.Connect(ctx, peer.AddrInfo{ID: pid, Addrs: info.Addresses})
}
