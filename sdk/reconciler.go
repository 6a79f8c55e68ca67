package sdk

import (
	"context"
	"time"
)

// DefaultReconcileInterval is how often the reconciler polls the server
const DefaultReconcileInterval = 5 * time.Second

// Reconciler periodically re-fetches a conversation's history over HTTP and
// merges it into the cache. Because Merge deduplicates, a poll that overlaps
// realtime delivery is silent; only messages the push path missed cause a
// visible change.
type Reconciler struct {
	client   *Client
	cache    *ConversationCache
	interval time.Duration

	// OnNewMessages fires when a poll inserted messages the cache had not
	// seen. Optional.
	OnNewMessages func(conversationId string, inserted int)
}

// NewReconciler creates a reconciler over the given client and cache
func NewReconciler(client *Client, cache *ConversationCache, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &Reconciler{
		client:   client,
		cache:    cache,
		interval: interval,
	}
}

// Run polls the conversation between the two users until the context ends.
// Blocks; run it in a goroutine.
func (r *Reconciler) Run(ctx context.Context, userA, userB string) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Poll(ctx, userA, userB)
		}
	}
}

// Poll fetches once and merges. Fetch errors are swallowed; the next tick
// retries.
func (r *Reconciler) Poll(ctx context.Context, userA, userB string) {
	history, err := r.client.GetHistory(ctx, userA, userB)
	if err != nil {
		return
	}

	inserted := r.cache.Merge(history.ConversationId, history.Messages...)
	if inserted > 0 && r.OnNewMessages != nil {
		r.OnNewMessages(history.ConversationId, inserted)
	}
}
