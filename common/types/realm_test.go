package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopicDerivationIsStable(t *testing.T) {
	id, err := GenerateRealmID()
	require.NoError(t, err)

	first := id.TopicID()
	for i := 0; i < 10; i++ {
		require.Equal(t, first, id.TopicID())
	}
}

func TestTopicDerivationIsDistinct(t *testing.T) {
	seen := map[TopicID]RealmID{}
	for i := 0; i < 1000; i++ {
		id, err := GenerateRealmID()
		require.NoError(t, err)
		topic := id.TopicID()
		prev, collision := seen[topic]
		require.False(t, collision, "topic collision between %s and %s", prev, id)
		seen[topic] = id
	}
}

func TestTopicDoesNotLeakRealmID(t *testing.T) {
	id, err := GenerateRealmID()
	require.NoError(t, err)
	topic := id.TopicID()
	// the derivation is keyed, so the topic must not contain the realm id
	require.NotEqual(t, id[:], topic[:])
	require.NotContains(t, topic.String(), id.ShortString())
}
