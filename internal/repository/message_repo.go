package repository

import (
	"context"
	"errors"

	"github.com/enlighten-app/enlighten-chat/internal/entity"
	"github.com/enlighten-app/enlighten-chat/pkg/idgen"
	"gorm.io/gorm"
)

// MessageRepo is the repository for message operations
type MessageRepo struct {
	db *gorm.DB
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create appends a new message. The server-assigned id comes from the
// sonyflake generator so it is unique across instances.
func (r *MessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *entity.Message) error {
	if msg.Id == 0 {
		id, err := idgen.NextID()
		if err != nil {
			return err
		}
		msg.Id = id
	}

	now := entity.NowUnixMilli()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	return tx.WithContext(ctx).Create(msg).Error
}

// GetByClientMsgId gets message by sender_id and client_msg_id (for the
// idempotency check; nil if none)
func (r *MessageRepo) GetByClientMsgId(ctx context.Context, senderId, clientMsgId string) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND client_msg_id = ?", senderId, clientMsgId).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// History gets the full ordered message sequence for a conversation
func (r *MessageRepo) History(ctx context.Context, conversationId string) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Order("sent_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkPeerMessagesRead flips read=true on every unread message in the
// conversation that the reader did not author. Returns the number of rows
// touched.
func (r *MessageRepo) MarkPeerMessagesRead(ctx context.Context, conversationId, readerId string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationId, readerId, false).
		Updates(map[string]interface{}{
			"is_read":    true,
			"updated_at": entity.NowUnixMilli(),
		})
	return result.RowsAffected, result.Error
}

// UnreadCount counts unread messages in a conversation not authored by the
// given user
func (r *MessageRepo) UnreadCount(ctx context.Context, conversationId, userId string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationId, userId, false).
		Count(&count).Error
	return count, err
}

// LastMessage gets the most recent message in a conversation (nil if the
// conversation has no messages yet)
func (r *MessageRepo) LastMessage(ctx context.Context, conversationId string) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Order("sent_at DESC, id DESC").
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// DeleteByConversations removes all messages belonging to the given
// conversations. Only the account-deletion cascade calls this.
func (r *MessageRepo) DeleteByConversations(ctx context.Context, tx *gorm.DB, conversationIds []string) error {
	if len(conversationIds) == 0 {
		return nil
	}
	return tx.WithContext(ctx).
		Where("conversation_id IN ?", conversationIds).
		Delete(&entity.Message{}).Error
}
