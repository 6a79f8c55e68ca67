package entity

// Conversation represents the persisted thread between exactly two users.
// UserA and UserB are stored in lexicographic order so the unordered pair
// maps to a single row; ConversationId carries a unique index for the
// atomic find-or-create upsert.
type Conversation struct {
	Id             int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;uniqueIndex"`
	UserA          string `json:"user_a" gorm:"column:user_a;index"`
	UserB          string `json:"user_b" gorm:"column:user_b;index"`
	CreatedAt      int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt      int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// HasParticipant checks if the user is one of the two participants
func (c *Conversation) HasParticipant(userId string) bool {
	return c.UserA == userId || c.UserB == userId
}

// PeerOf returns the other participant ("" if userId is not a participant)
func (c *Conversation) PeerOf(userId string) string {
	switch userId {
	case c.UserA:
		return c.UserB
	case c.UserB:
		return c.UserA
	default:
		return ""
	}
}

// PeerInfo represents the public profile fields attached to a conversation
// listing entry
type PeerInfo struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Avatar       string `json:"avatar,omitempty"`
	LastLoggedIn int64  `json:"last_logged_in,omitempty"`
}

// ConversationSummary represents a conversation list entry for API responses
type ConversationSummary struct {
	ConversationId string       `json:"conversation_id"`
	Peer           *PeerInfo    `json:"peer"`
	LastMessage    *MessageInfo `json:"last_message,omitempty"`
	UnreadCount    int64        `json:"unread_count"`
	UpdatedAt      int64        `json:"updated_at"`
}
