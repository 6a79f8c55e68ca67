package sdk

import (
	"context"
	"crypto/rand"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewClientMsgId generates a compose-time idempotency token for a message.
// ULIDs sort by creation time, which keeps retried sends easy to trace.
func NewClientMsgId() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// ListConversations fetches the caller's conversation listing
func (c *Client) ListConversations(ctx context.Context) ([]*ConversationSummary, error) {
	var result ConversationListResponse
	if err := c.get(ctx, "/chat", nil, &result); err != nil {
		return nil, err
	}
	return result.Conversations, nil
}

// GetHistory fetches the ordered history between two users. Viewing marks the
// caller's unread peer messages as read on the server.
func (c *Client) GetHistory(ctx context.Context, userA, userB string) (*HistoryResponse, error) {
	var result HistoryResponse
	if err := c.get(ctx, "/chat/conversation/"+userA+"/"+userB, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendMessage sends a message over HTTP
func (c *Client) SendMessage(ctx context.Context, req *SendMessageRequest) (*MessageInfo, error) {
	if req.ClientMsgId == "" {
		req.ClientMsgId = NewClientMsgId()
	}
	var result MessageInfo
	if err := c.post(ctx, "/chat/send", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendTextMessage is a convenience method to send a text message
func (c *Client) SendTextMessage(ctx context.Context, recvId, text string) (*MessageInfo, error) {
	return c.SendMessage(ctx, &SendMessageRequest{
		RecvId:  recvId,
		Kind:    KindText,
		Content: text,
	})
}

// StartChat ensures a conversation with the peer exists
func (c *Client) StartChat(ctx context.Context, peerId string) (*ConversationSummary, error) {
	var result ConversationSummary
	if err := c.post(ctx, "/chat/start", &StartChatRequest{PeerId: peerId}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchUsers searches among the caller's connections by name or email
func (c *Client) SearchUsers(ctx context.Context, term string, limit int) ([]*PeerInfo, error) {
	params := map[string]string{"q": term}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	var result SearchUsersResponse
	if err := c.get(ctx, "/chat/users/search", params, &result); err != nil {
		return nil, err
	}
	return result.Users, nil
}
