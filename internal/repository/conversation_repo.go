package repository

import (
	"context"
	"errors"

	"github.com/enlighten-app/enlighten-chat/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepo is the repository for conversation operations
type ConversationRepo struct {
	db *gorm.DB
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo(db *gorm.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// GetByPair gets the conversation for an unordered user pair (nil if none)
func (r *ConversationRepo) GetByPair(ctx context.Context, userA, userB string) (*entity.Conversation, error) {
	return r.GetByConvId(ctx, entity.GenPairConversationId(userA, userB))
}

// GetByConvId gets a conversation by its Id (nil if none)
func (r *ConversationRepo) GetByConvId(ctx context.Context, conversationId string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// FindOrCreate returns the conversation for the unordered pair, creating it
// if absent. The insert goes through ON CONFLICT DO NOTHING on the unique
// conversation_id index, so two racing sends between the same pair cannot
// produce duplicate rows.
func (r *ConversationRepo) FindOrCreate(ctx context.Context, userA, userB string) (*entity.Conversation, error) {
	a, b := entity.SortPair(userA, userB)
	now := entity.NowUnixMilli()

	conv := &entity.Conversation{
		ConversationId: entity.GenPairConversationId(a, b),
		UserA:          a,
		UserB:          b,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}},
		DoNothing: true,
	}).Create(conv).Error
	if err != nil {
		return nil, err
	}

	// Re-read: on conflict the insert was a no-op and conv has no row id
	return r.GetByConvId(ctx, conv.ConversationId)
}

// ListByUser gets all conversations the user participates in, most recent
// activity first
func (r *ConversationRepo) ListByUser(ctx context.Context, userId string) ([]*entity.Conversation, error) {
	var convs []*entity.Conversation
	err := r.db.WithContext(ctx).
		Where("user_a = ? OR user_b = ?", userId, userId).
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// Touch updates the updated_at timestamp so the conversation sorts to the
// top of the listing
func (r *ConversationRepo) Touch(ctx context.Context, tx *gorm.DB, conversationId string) error {
	return tx.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("conversation_id = ?", conversationId).
		Update("updated_at", entity.NowUnixMilli()).Error
}

// DeleteByUser removes every conversation a user participates in. Only the
// account-deletion cascade calls this.
func (r *ConversationRepo) DeleteByUser(ctx context.Context, tx *gorm.DB, userId string) ([]string, error) {
	var convs []*entity.Conversation
	if err := tx.WithContext(ctx).
		Where("user_a = ? OR user_b = ?", userId, userId).
		Find(&convs).Error; err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(convs))
	for _, conv := range convs {
		ids = append(ids, conv.ConversationId)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	err := tx.WithContext(ctx).
		Where("conversation_id IN ?", ids).
		Delete(&entity.Conversation{}).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
