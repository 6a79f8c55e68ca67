package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenPairConversationIdSymmetric(t *testing.T) {
	a := GenPairConversationId("alice", "bob")
	b := GenPairConversationId("bob", "alice")
	assert.Equal(t, a, b)
	assert.Equal(t, "si_alice:bob", a)
}

func TestPairConversationIdWithUnderscores(t *testing.T) {
	// User ids may contain "_"; the ":" separator keeps parsing unambiguous
	id := GenPairConversationId("user_2", "user_1")
	assert.Equal(t, "si_user_1:user_2", id)

	userA, userB, ok := ParsePairConversationId(id)
	require.True(t, ok)
	assert.Equal(t, "user_1", userA)
	assert.Equal(t, "user_2", userB)
}

func TestParsePairConversationIdInvalid(t *testing.T) {
	_, _, ok := ParsePairConversationId("sg_group42")
	assert.False(t, ok)

	_, _, ok = ParsePairConversationId("si_nocolon")
	assert.False(t, ok)
}

func TestConversationPeerOf(t *testing.T) {
	conv := &Conversation{UserA: "alice", UserB: "bob"}
	assert.Equal(t, "bob", conv.PeerOf("alice"))
	assert.Equal(t, "alice", conv.PeerOf("bob"))
	assert.Equal(t, "", conv.PeerOf("mallory"))
	assert.True(t, conv.HasParticipant("alice"))
	assert.False(t, conv.HasParticipant("mallory"))
}

func TestMessageTranslations(t *testing.T) {
	msg := &Message{ContentText: "hello"}
	assert.Nil(t, msg.GetTranslations())

	msg.SetTranslation("spanish", "hola")
	msg.SetTranslation("french", "bonjour")

	translations := msg.GetTranslations()
	require.Len(t, translations, 2)
	assert.Equal(t, "hola", translations["spanish"])
	assert.Equal(t, "bonjour", translations["french"])

	info := msg.ToMessageInfo()
	assert.Equal(t, "hola", info.Translations["spanish"])
}
