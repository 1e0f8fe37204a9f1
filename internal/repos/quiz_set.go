package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

type QuizSetRepo interface {
	Create(ctx context.Context, tx *gorm.DB, sets []*types.QuizSet) ([]*types.QuizSet, error)
	GetByModuleIDs(ctx context.Context, tx *gorm.DB, moduleIDs []uuid.UUID) ([]*types.QuizSet, error)
}

type quizSetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuizSetRepo(db *gorm.DB, baseLog *logger.Logger) QuizSetRepo {
	return &quizSetRepo{db: db, log: baseLog.With("repo", "QuizSetRepo")}
}

func (r *quizSetRepo) Create(ctx context.Context, tx *gorm.DB, sets []*types.QuizSet) ([]*types.QuizSet, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sets) == 0 {
		return []*types.QuizSet{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&sets).Error; err != nil {
		return nil, err
	}
	return sets, nil
}

func (r *quizSetRepo) GetByModuleIDs(ctx context.Context, tx *gorm.DB, moduleIDs []uuid.UUID) ([]*types.QuizSet, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.QuizSet
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
