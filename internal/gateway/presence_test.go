package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceLastAnnounceWins(t *testing.T) {
	p := NewPresence(nil)
	ctx := context.Background()

	first := &Client{UserId: "alice", ConnId: "conn-1"}
	second := &Client{UserId: "alice", ConnId: "conn-2"}

	replaced := p.Bind(ctx, first)
	assert.Nil(t, replaced)

	replaced = p.Bind(ctx, second)
	require.NotNil(t, replaced)
	assert.Equal(t, "conn-1", replaced.ConnId)

	current, ok := p.Get("alice")
	require.True(t, ok)
	assert.Equal(t, "conn-2", current.ConnId)
	assert.Equal(t, 1, p.Count())
}

func TestPresenceStaleUnbindIsNoop(t *testing.T) {
	p := NewPresence(nil)
	ctx := context.Background()

	old := &Client{UserId: "alice", ConnId: "conn-1"}
	fresh := &Client{UserId: "alice", ConnId: "conn-2"}

	p.Bind(ctx, old)
	p.Bind(ctx, fresh)

	// The replaced connection closes late; the fresh binding must survive
	wentOffline := p.Unbind(ctx, old)
	assert.False(t, wentOffline)

	current, ok := p.Get("alice")
	require.True(t, ok)
	assert.Equal(t, "conn-2", current.ConnId)

	wentOffline = p.Unbind(ctx, fresh)
	assert.True(t, wentOffline)
	_, ok = p.Get("alice")
	assert.False(t, ok)
}

func TestPresenceOnlineIdsSorted(t *testing.T) {
	p := NewPresence(nil)
	ctx := context.Background()

	p.Bind(ctx, &Client{UserId: "carol", ConnId: "c1"})
	p.Bind(ctx, &Client{UserId: "alice", ConnId: "c2"})
	p.Bind(ctx, &Client{UserId: "bob", ConnId: "c3"})

	assert.Equal(t, []string{"alice", "bob", "carol"}, p.OnlineIds())
	assert.True(t, p.IsOnline(ctx, "bob"))
	assert.False(t, p.IsOnline(ctx, "dave"))
}
