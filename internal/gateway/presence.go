package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/enlighten-app/enlighten-chat/pkg/constant"
	"github.com/redis/go-redis/v9"
)

// Presence maps each user to at most one live connection. A fresh announce
// from the same user replaces the previous entry (last announce wins), so a
// reconnecting client never fights its own dead socket for delivery.
type Presence struct {
	mu      sync.RWMutex
	clients map[string]*Client // userId -> current client
	rdb     *redis.Client
}

// NewPresence creates a new Presence registry
func NewPresence(rdb *redis.Client) *Presence {
	return &Presence{
		clients: make(map[string]*Client),
		rdb:     rdb,
	}
}

// Bind registers the client as the user's current connection and returns the
// replaced client, if any.
func (p *Presence) Bind(ctx context.Context, client *Client) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.clients[client.UserId]
	if prev == client {
		return nil
	}
	p.clients[client.UserId] = client

	p.setOnline(ctx, client.UserId)
	return prev
}

// Unbind removes the client if it is still the user's current connection.
// A stale unbind from an already-replaced connection is a no-op, so the
// reconnected client stays registered. Returns true if the user went offline.
func (p *Presence) Unbind(ctx context.Context, client *Client) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, exists := p.clients[client.UserId]
	if !exists || current != client {
		return false
	}

	delete(p.clients, client.UserId)
	p.setOffline(ctx, client.UserId)
	return true
}

// Get returns the user's current connection
func (p *Presence) Get(userId string) (*Client, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	client, exists := p.clients[userId]
	return client, exists
}

// OnlineIds returns all locally connected user ids, sorted for stable
// presence payloads
func (p *Presence) OnlineIds() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.clients))
	for userId := range p.clients {
		ids = append(ids, userId)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of bound connections
func (p *Presence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

// IsOnline checks if user is online (checks Redis for distributed support)
func (p *Presence) IsOnline(ctx context.Context, userId string) bool {
	p.mu.RLock()
	_, local := p.clients[userId]
	p.mu.RUnlock()
	if local {
		return true
	}

	if p.rdb != nil {
		key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
		exists, _ := p.rdb.Exists(ctx, key).Result()
		return exists > 0
	}

	return false
}

// Refresh extends the online flag TTL for a still-connected user
func (p *Presence) Refresh(ctx context.Context, userId string) {
	if p.rdb == nil {
		return
	}

	p.mu.RLock()
	_, local := p.clients[userId]
	p.mu.RUnlock()

	if local {
		key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
		p.rdb.Expire(ctx, key, OnlineTTL)
	}
}

// setOnline marks user as online in Redis
func (p *Presence) setOnline(ctx context.Context, userId string) {
	if p.rdb == nil {
		return
	}

	key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
	p.rdb.Set(ctx, key, "1", OnlineTTL)
}

// setOffline marks user as offline in Redis
func (p *Presence) setOffline(ctx context.Context, userId string) {
	if p.rdb == nil {
		return
	}

	key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
	p.rdb.Del(ctx, key)
}
