package entity

import "encoding/json"

// FileRef represents an attached file
type FileRef struct {
	Url  string `json:"url,omitempty"`
	Name string `json:"name,omitempty"`
	Mime string `json:"mime,omitempty"`
}

// IsZero reports whether no file is attached
func (f FileRef) IsZero() bool {
	return f.Url == ""
}

// Message represents a message inside a conversation. Content is immutable
// after creation; only the read flag ever flips. The composite unique index
// on (sender_id, client_msg_id) backs the resend idempotency check, so two
// racing resends cannot both insert.
type Message struct {
	Id             int64   `json:"id" gorm:"column:id;primaryKey"`
	ConversationId string  `json:"conversation_id" gorm:"column:conversation_id;index"`
	ClientMsgId    string  `json:"client_msg_id" gorm:"column:client_msg_id;uniqueIndex:uk_messages_sender_cmid,priority:2"`
	SenderId       string  `json:"sender_id" gorm:"column:sender_id;uniqueIndex:uk_messages_sender_cmid,priority:1"`
	RecvId         string  `json:"recv_id" gorm:"column:recv_id"`
	Kind           int32   `json:"kind" gorm:"column:kind"`
	ContentText    string  `json:"content_text" gorm:"column:content_text"`
	FileUrl        string  `json:"file_url" gorm:"column:file_url"`
	FileName       string  `json:"file_name" gorm:"column:file_name"`
	FileMime       string  `json:"file_mime" gorm:"column:file_mime"`
	Read           bool    `json:"read" gorm:"column:is_read"`
	Translations   *string `json:"translations" gorm:"column:translations;type:json"`
	SentAt         int64   `json:"sent_at" gorm:"column:sent_at"`
	CreatedAt      int64   `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      int64   `json:"updated_at" gorm:"column:updated_at"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// HasContent reports whether the message carries text or a file.
// At least one of the two is required for a valid message.
func (m *Message) HasContent() bool {
	return m.ContentText != "" || m.FileUrl != ""
}

// File returns the attached file reference (zero value if none)
func (m *Message) File() FileRef {
	return FileRef{Url: m.FileUrl, Name: m.FileName, Mime: m.FileMime}
}

// SetFile sets the attached file reference
func (m *Message) SetFile(f FileRef) {
	m.FileUrl = f.Url
	m.FileName = f.Name
	m.FileMime = f.Mime
}

// GetTranslations returns the translations map (nil if none stored)
func (m *Message) GetTranslations() map[string]string {
	if m.Translations == nil {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(*m.Translations), &out); err != nil {
		return nil
	}
	return out
}

// SetTranslation stores a translated rendering keyed by language code
func (m *Message) SetTranslation(lang, text string) {
	translations := m.GetTranslations()
	if translations == nil {
		translations = make(map[string]string, 1)
	}
	translations[lang] = text
	raw, err := json.Marshal(translations)
	if err != nil {
		return
	}
	s := string(raw)
	m.Translations = &s
}

// MessageInfo represents message info for API responses and pushes
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

// ToMessageInfo converts Message to MessageInfo
func (m *Message) ToMessageInfo() *MessageInfo {
	info := &MessageInfo{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		ClientMsgId:    m.ClientMsgId,
		SenderId:       m.SenderId,
		RecvId:         m.RecvId,
		Kind:           m.Kind,
		Content:        m.ContentText,
		Read:           m.Read,
		Translations:   m.GetTranslations(),
		SentAt:         m.SentAt,
	}
	if f := m.File(); !f.IsZero() {
		info.File = &f
	}
	return info
}
