package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"

	"github.com/realmesh/go-realmesh/common/types"
	"github.com/realmesh/go-realmesh/peers"
)

func testRealm(t *testing.T, name string) RealmRecord {
	t.Helper()
	id, err := types.GenerateRealmID()
	require.NoError(t, err)
	key, err := types.GenerateRealmKey()
	require.NoError(t, err)
	return RealmRecord{ID: id, Name: name, Key: key, Topic: id.TopicID()}
}

func TestFileStoreRealmRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFile(dir)
	require.NoError(t, err)

	rec := testRealm(t, "family")
	require.NoError(t, s.SaveRealm(rec))

	// reopen and confirm the record survived
	reopened, err := OpenFile(dir)
	require.NoError(t, err)
	got, ok, err := reopened.Realm(rec.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec, got)

	require.NoError(t, reopened.DeleteRealm(rec.ID))
	_, ok, err = reopened.Realm(rec.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStoreInviteUses(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFile(dir)
	require.NoError(t, err)

	id := uuid.New()
	uses, err := s.InviteUses(id)
	require.NoError(t, err)
	require.Zero(t, uses)

	for i := uint32(1); i <= 3; i++ {
		uses, err = s.BumpInviteUses(id)
		require.NoError(t, err)
		require.Equal(t, i, uses)
	}

	reopened, err := OpenFile(dir)
	require.NoError(t, err)
	uses, err = reopened.InviteUses(id)
	require.NoError(t, err)
	require.Equal(t, uint32(3), uses)
}

func TestFileStorePeerTableRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFile(dir)
	require.NoError(t, err)

	var nodeID types.NodeID
	nodeID[0] = 4
	var realmID types.RealmID
	realmID[0] = 8
	recs := []PeerRecord{{
		ID:           nodeID,
		Addresses:    []string{"/ip4/192.0.2.1/tcp/4001"},
		Source:       uint8(peers.SourceInvite),
		SharedRealms: []types.RealmID{realmID},
	}}
	require.NoError(t, s.SavePeers(recs))

	reopened, err := OpenFile(dir)
	require.NoError(t, err)
	got, err := reopened.Peers()
	require.NoError(t, err)
	require.Equal(t, recs, got)

	info := got[0].Info()
	require.Equal(t, peers.Offline, info.Status)
	require.Equal(t, peers.SourceInvite, info.Source)
	require.Equal(t, []ma.Multiaddr{ma.StringCast("/ip4/192.0.2.1/tcp/4001")}, info.Addresses)
}

func TestFileStoreEmptyDir(t *testing.T) {
	s, err := OpenFile(t.TempDir())
	require.NoError(t, err)
	realms, err := s.Realms()
	require.NoError(t, err)
	require.Empty(t, realms)
	peerRecs, err := s.Peers()
	require.NoError(t, err)
	require.Empty(t, peerRecs)
}

func TestFileStoreRejectsCorruptState(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, stateFile), []byte("garbage"), 0o600))
	_, err := OpenFile(dir)
	require.Error(t, err)
}

func TestPeerRecordFromInfo(t *testing.T) {
	var nodeID types.NodeID
	nodeID[0] = 5
	info := peers.Info{
		ID:        nodeID,
		Source:    peers.SourceRealm,
		Addresses: []ma.Multiaddr{ma.StringCast("/ip4/10.0.0.1/tcp/4001")},
	}
	rec := PeerRecordFromInfo(info)
	require.Equal(t, nodeID, rec.ID)
	require.Equal(t, uint8(peers.SourceRealm), rec.Source)
	require.Equal(t, []string{"/ip4/10.0.0.1/tcp/4001"}, rec.Addresses)
}
