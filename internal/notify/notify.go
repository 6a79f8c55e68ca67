package notify

import "context"

// Event is the payload handed to the notification pipeline when a message
// lands. The downstream worker turns it into an email.
type Event struct {
	RecipientId    string `json:"recipient_id"`
	SenderId       string `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	ConversationId string `json:"conversation_id"`
	Preview        string `json:"preview"`
	SentAt         int64  `json:"sent_at"`
}

// Notifier hands message events to the notification pipeline.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, evt *Event) error
	Close() error
}

// Noop is used when notifications are disabled.
type Noop struct{}

func (Noop) NotifyNewMessage(ctx context.Context, evt *Event) error { return nil }

func (Noop) Close() error { return nil }
