package repository

import (
	"context"
	"errors"

	"github.com/enlighten-app/enlighten-chat/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepo is the repository for profile operations
type ProfileRepo struct {
	db *gorm.DB
}

// NewProfileRepo creates a new ProfileRepo
func NewProfileRepo(db *gorm.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// GetByUserId gets a profile by user Id (nil if none exists)
func (r *ProfileRepo) GetByUserId(ctx context.Context, userId string) (*entity.Profile, error) {
	var profile entity.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userId).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetByUserIds gets profiles for a set of user Ids, keyed by user Id
func (r *ProfileRepo) GetByUserIds(ctx context.Context, userIds []string) (map[string]*entity.Profile, error) {
	var profiles []*entity.Profile
	err := r.db.WithContext(ctx).Where("user_id IN ?", userIds).Find(&profiles).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]*entity.Profile, len(profiles))
	for _, p := range profiles {
		out[p.UserId] = p
	}
	return out, nil
}

// TouchLastLoggedIn records activity for a user. Upserts so a user whose
// profile row has not been provisioned yet still gets presence tracking.
func (r *ProfileRepo) TouchLastLoggedIn(ctx context.Context, userId string, ts int64) error {
	profile := &entity.Profile{
		UserId:       userId,
		LastLoggedIn: ts,
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_logged_in": ts,
			"updated_at":     entity.NowUnixMilli(),
		}),
	}).Create(profile).Error
}
