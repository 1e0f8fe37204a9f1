package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

type PodcastSessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, sessions []*types.PodcastSession) ([]*types.PodcastSession, error)
	GetByModuleIDs(ctx context.Context, tx *gorm.DB, moduleIDs []uuid.UUID) ([]*types.PodcastSession, error)
}

type podcastSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPodcastSessionRepo(db *gorm.DB, baseLog *logger.Logger) PodcastSessionRepo {
	return &podcastSessionRepo{db: db, log: baseLog.With("repo", "PodcastSessionRepo")}
}

func (r *podcastSessionRepo) Create(ctx context.Context, tx *gorm.DB, sessions []*types.PodcastSession) ([]*types.PodcastSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sessions) == 0 {
		return []*types.PodcastSession{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *podcastSessionRepo) GetByModuleIDs(ctx context.Context, tx *gorm.DB, moduleIDs []uuid.UUID) ([]*types.PodcastSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PodcastSession
	if len(moduleIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("module_id IN ?", moduleIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
