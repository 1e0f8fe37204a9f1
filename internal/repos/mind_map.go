package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

type MindMapRepo interface {
	Create(ctx context.Context, tx *gorm.DB, maps []*types.MindMap) ([]*types.MindMap, error)
	GetByModuleIDs(ctx context.Context, tx *gorm.DB, moduleIDs []uuid.UUID) ([]*types.MindMap, error)
}

type mindMapRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMindMapRepo(db *gorm.DB, baseLog *logger.Logger) MindMapRepo {
	return &mindMapRepo{db: db, log: baseLog.With("repo", "MindMapRepo")}
}

func (r *mindMapRepo) Create(ctx context.Context, tx *gorm.DB, maps []*types.MindMap) ([]*types.MindMap, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(maps) == 0 {
		return []*types.MindMap{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&maps).Error; err != nil {
		return nil, err
	}
	return maps, nil
}

func (r *mindMapRepo) GetByModuleIDs(ctx context.Context, tx *gorm.DB, moduleIDs []uuid.UUID) ([]*types.MindMap, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.MindMap
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
