package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

type FlashcardSetRepo interface {
	Create(ctx context.Context, tx *gorm.DB, sets []*types.FlashcardSet) ([]*types.FlashcardSet, error)
	GetByModuleIDs(ctx context.Context, tx *gorm.DB, moduleIDs []uuid.UUID) ([]*types.FlashcardSet, error)
}

type flashcardSetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFlashcardSetRepo(db *gorm.DB, baseLog *logger.Logger) FlashcardSetRepo {
	return &flashcardSetRepo{db: db, log: baseLog.With("repo", "FlashcardSetRepo")}
}

func (r *flashcardSetRepo) Create(ctx context.Context, tx *gorm.DB, sets []*types.FlashcardSet) ([]*types.FlashcardSet, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sets) == 0 {
		return []*types.FlashcardSet{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&sets).Error; err != nil {
		return nil, err
	}
	return sets, nil
}

func (r *flashcardSetRepo) GetByModuleIDs(ctx context.Context, tx *gorm.DB, moduleIDs []uuid.UUID) ([]*types.FlashcardSet, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.FlashcardSet
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
