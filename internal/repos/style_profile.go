package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

type StyleProfileRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, profile *types.StyleProfile) (*types.StyleProfile, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.StyleProfile, error)
}

type styleProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStyleProfileRepo(db *gorm.DB, baseLog *logger.Logger) StyleProfileRepo {
	return &styleProfileRepo{db: db, log: baseLog.With("repo", "StyleProfileRepo")}
}

func (r *styleProfileRepo) Upsert(ctx context.Context, tx *gorm.DB, profile *types.StyleProfile) (*types.StyleProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	profile.UpdatedAt = time.Now()
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"visual", "auditory", "kinesthetic", "dominant", "model_version", "updated_at",
			}),
		}).
		Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *styleProfileRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.StyleProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.StyleProfile
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}
