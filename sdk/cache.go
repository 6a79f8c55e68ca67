package sdk

import (
	"sort"
	"sync"
)

// DedupWindowMillis is how close in time two otherwise-identical messages
// must be to count as the same message during a merge.
const DedupWindowMillis = 1000

// ConversationCache is the client-side message store. Realtime pushes,
// optimistic sends and reconciliation polls all land here through Merge, so
// a message arriving over several paths still renders exactly once.
type ConversationCache struct {
	mu       sync.Mutex
	messages map[string][]*MessageInfo // conversationId -> ascending by sent_at
}

// NewConversationCache creates an empty cache
func NewConversationCache() *ConversationCache {
	return &ConversationCache{
		messages: make(map[string][]*MessageInfo),
	}
}

// Merge folds incoming messages into a conversation. Duplicates update the
// stored entry in place (a confirmed send upgrades its optimistic twin);
// everything else is inserted. The conversation is re-sorted ascending after
// every merge so out-of-order arrivals settle into timestamp order. Returns
// the number of newly inserted messages.
func (c *ConversationCache) Merge(conversationId string, incoming ...*MessageInfo) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.messages[conversationId]
	inserted := 0

	for _, msg := range incoming {
		if msg == nil {
			continue
		}
		if prev := findDuplicate(existing, msg); prev != nil {
			upgrade(prev, msg)
			continue
		}
		cp := *msg
		existing = append(existing, &cp)
		inserted++
	}

	sort.SliceStable(existing, func(i, j int) bool {
		if existing[i].SentAt != existing[j].SentAt {
			return existing[i].SentAt < existing[j].SentAt
		}
		return existing[i].Id < existing[j].Id
	})

	c.messages[conversationId] = existing
	return inserted
}

// Messages returns a copy of the conversation's messages in ascending order
func (c *ConversationCache) Messages(conversationId string) []*MessageInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := c.messages[conversationId]
	out := make([]*MessageInfo, len(stored))
	copy(out, stored)
	return out
}

// Len returns the number of cached messages in a conversation
func (c *ConversationCache) Len(conversationId string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages[conversationId])
}

// Clear drops a conversation from the cache
func (c *ConversationCache) Clear(conversationId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.messages, conversationId)
}

// findDuplicate locates a stored message that is the same logical message as
// the incoming one. A durable id or client msg id match is authoritative; an
// optimistic entry without either matches on sender plus content inside the
// dedup window.
func findDuplicate(existing []*MessageInfo, msg *MessageInfo) *MessageInfo {
	for _, prev := range existing {
		if msg.Id != 0 && prev.Id != 0 {
			if msg.Id == prev.Id {
				return prev
			}
			continue
		}
		if msg.ClientMsgId != "" && prev.ClientMsgId != "" && msg.ClientMsgId == prev.ClientMsgId {
			return prev
		}
		if prev.SenderId == msg.SenderId && prev.Content == msg.Content &&
			absDiff(prev.SentAt, msg.SentAt) < DedupWindowMillis {
			return prev
		}
	}
	return nil
}

// upgrade copies the authoritative fields from the incoming duplicate onto
// the stored entry
func upgrade(stored, incoming *MessageInfo) {
	if incoming.Id != 0 {
		stored.Id = incoming.Id
	}
	if incoming.SentAt != 0 {
		stored.SentAt = incoming.SentAt
	}
	if incoming.Read {
		stored.Read = true
	}
	if incoming.ClientMsgId != "" {
		stored.ClientMsgId = incoming.ClientMsgId
	}
	if len(incoming.Translations) > 0 {
		stored.Translations = incoming.Translations
	}
	if incoming.File != nil {
		stored.File = incoming.File
	}
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
