package sdk

// Response represents the standard API response
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// Message kinds
const (
	KindText       = 1
	KindFile       = 2
	KindCallInvite = 3
)

// Realtime event names
const (
	EventAnnounce         = "announce"
	EventSend             = "send"
	EventReceive          = "receive"
	EventSendConfirmation = "send_confirmation"
	EventSendError        = "send_error"
	EventPresence         = "presence"
)

// FileRef represents an attached file
type FileRef struct {
	Url  string `json:"url,omitempty"`
	Name string `json:"name,omitempty"`
	Mime string `json:"mime,omitempty"`
}

// MessageInfo represents a message as the server renders it
type MessageInfo struct {
	Id             int64             `json:"id"`
	ConversationId string            `json:"conversation_id"`
	ClientMsgId    string            `json:"client_msg_id,omitempty"`
	SenderId       string            `json:"sender_id"`
	RecvId         string            `json:"recv_id"`
	Kind           int32             `json:"kind"`
	Content        string            `json:"content,omitempty"`
	File           *FileRef          `json:"file,omitempty"`
	Read           bool              `json:"read"`
	Translations   map[string]string `json:"translations,omitempty"`
	SentAt         int64             `json:"sent_at"`
}

// PeerInfo represents public info about a conversation peer
type PeerInfo struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Avatar       string `json:"avatar,omitempty"`
	LastLoggedIn int64  `json:"last_logged_in,omitempty"`
}

// ConversationSummary represents a conversation list entry
type ConversationSummary struct {
	ConversationId string       `json:"conversation_id"`
	Peer           *PeerInfo    `json:"peer"`
	LastMessage    *MessageInfo `json:"last_message,omitempty"`
	UnreadCount    int64        `json:"unread_count"`
	UpdatedAt      int64        `json:"updated_at"`
}

// ===== Request types =====

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	ClientMsgId string  `json:"client_msg_id"`
	RecvId      string  `json:"recv_id"`
	Kind        int32   `json:"kind"`
	Content     string  `json:"content,omitempty"`
	File        FileRef `json:"file,omitempty"`
}

// StartChatRequest represents start conversation request
type StartChatRequest struct {
	PeerId string `json:"peer_id"`
}

// ===== Response types =====

// ConversationListResponse wraps the conversation listing
type ConversationListResponse struct {
	Conversations []*ConversationSummary `json:"conversations"`
}

// HistoryResponse wraps a conversation history fetch
type HistoryResponse struct {
	ConversationId string         `json:"conversation_id"`
	Messages       []*MessageInfo `json:"messages"`
}

// SearchUsersResponse wraps a user search
type SearchUsersResponse struct {
	Users []*PeerInfo `json:"users"`
}
