package main

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/realmesh/go-realmesh/codec"
	"github.com/realmesh/go-realmesh/common/types"
	"github.com/realmesh/go-realmesh/invite"
	"github.com/realmesh/go-realmesh/realm"
	"github.com/realmesh/go-realmesh/signing"
	"github.com/realmesh/go-realmesh/store"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.Execute()
}

func mintTicket(t *testing.T, signer *signing.EdSigner, bootstrap []invite.Peer) *invite.Ticket {
	t.Helper()
	id, err := types.GenerateRealmID()
	require.NoError(t, err)
	key, err := types.GenerateRealmKey()
	require.NoError(t, err)
	ticket, err := invite.Create(signer, time.Now(), invite.Params{
		Realm:     id,
		Key:       key,
		RealmName: "cli test realm",
		Bootstrap: bootstrap,
	})
	require.NoError(t, err)
	return ticket
}

// resign recomputes the creator signature over the current ticket contents,
// the way a hostile inviter could after altering a field.
func resign(t *testing.T, signer *signing.EdSigner, ticket *invite.Ticket) {
	t.Helper()
	unsigned := *ticket
	unsigned.Signature = types.EdSignature{}
	data, err := codec.Encode(&unsigned)
	require.NoError(t, err)
	ticket.Signature = signer.Sign(signing.INVITE, data)
}

func TestJoinRejectsTopicMismatch(t *testing.T) {
	inviter, err := signing.NewEdSigner()
	require.NoError(t, err)
	ticket := mintTicket(t, inviter, []invite.Peer{
		{ID: inviter.NodeID(), Addresses: []string{"/ip4/10.0.0.1/tcp/4001"}},
	})
	// a validly signed ticket steering joiners onto a foreign topic
	ticket.Topic = types.TopicID{0xde, 0xad}
	resign(t, inviter, ticket)
	encoded, err := ticket.Encode()
	require.NoError(t, err)

	err = execute(t, "join", "--ticket", encoded, "--data-dir", t.TempDir())
	require.ErrorIs(t, err, realm.ErrTopicMismatch)
}

func TestJoinDeduplicatesPeerTable(t *testing.T) {
	inviter, err := signing.NewEdSigner()
	require.NoError(t, err)
	other, err := signing.NewEdSigner()
	require.NoError(t, err)
	ticket := mintTicket(t, inviter, []invite.Peer{
		{ID: inviter.NodeID(), Addresses: []string{"/ip4/10.0.0.1/tcp/4001"}},
		{ID: other.NodeID(), Addresses: []string{"/ip4/10.0.0.2/tcp/4001"}},
	})
	encoded, err := ticket.Encode()
	require.NoError(t, err)

	dataDir := t.TempDir()
	require.NoError(t, execute(t, "join", "--ticket", encoded, "--data-dir", dataDir))
	require.NoError(t, execute(t, "join", "--ticket", encoded, "--data-dir", dataDir))

	db, err := store.OpenFile(filepath.Join(dataDir, "state"))
	require.NoError(t, err)
	recs, err := db.Peers()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	seen := map[types.NodeID]struct{}{}
	for _, rec := range recs {
		_, dup := seen[rec.ID]
		require.False(t, dup)
		seen[rec.ID] = struct{}{}
		require.Len(t, rec.Addresses, 1)
	}
}
