package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/repos"
	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

// questionnaireLength is fixed: the model was trained against a 16-item
// questionnaire and any other shape is rejected before inference runs.
const questionnaireLength = 16

type StyleClassifierService interface {
	// Classify scores a complete questionnaire, upserts the user's style
	// profile and returns it.
	Classify(ctx context.Context, userID uuid.UUID, answers []string) (*types.StyleProfile, error)
	ModelVersion() string
}

type styleClassifierService struct {
	log          *logger.Logger
	inference    StyleInference
	profiles     repos.StyleProfileRepo
	modelVersion string
}

func NewStyleClassifierService(baseLog *logger.Logger, inference StyleInference, modelVersion string, profiles repos.StyleProfileRepo) StyleClassifierService {
	return &styleClassifierService{
		log:          baseLog.With("service", "StyleClassifierService"),
		inference:    inference,
		profiles:     profiles,
		modelVersion: modelVersion,
	}
}

func (s *styleClassifierService) ModelVersion() string {
	return s.modelVersion
}

func (s *styleClassifierService) Classify(ctx context.Context, userID uuid.UUID, answers []string) (*types.StyleProfile, error) {
	if userID == uuid.Nil {
		return nil, &InvalidInputError{Reason: "missing user id"}
	}
	// Answer count is the only input error: blank answers tokenize as empty
	// and go through inference like any other.
	if len(answers) != questionnaireLength {
		return nil, &InvalidInputError{Reason: fmt.Sprintf("questionnaire has %d answers, want %d", len(answers), questionnaireLength)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	perAnswer, err := s.inference.ClassifyBatch(answers)
	if err != nil {
		return nil, fmt.Errorf("classify questionnaire: %w", err)
	}

	scores := poolScores(perAnswer)
	profile := &types.StyleProfile{
		UserID:       userID,
		Visual:       scores.Visual,
		Auditory:     scores.Auditory,
		Kinesthetic:  scores.Kinesthetic,
		Dominant:     string(scores.Dominant()),
		ModelVersion: s.modelVersion,
	}
	saved, err := s.profiles.Upsert(ctx, nil, profile)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}

	s.log.Info("style profile classified",
		"user_id", userID,
		"dominant", saved.Dominant,
		"visual", saved.Visual,
		"auditory", saved.Auditory,
		"kinesthetic", saved.Kinesthetic,
	)
	return saved, nil
}

// poolScores mean-pools the per-answer confidences and normalizes the result
// into percentages that sum to exactly 100.
func poolScores(perAnswer []map[types.StyleLabel]float64) types.StyleScores {
	sums := map[types.StyleLabel]float64{}
	for _, answer := range perAnswer {
		for label, score := range answer {
			sums[label] += score
		}
	}

	total := 0.0
	for _, label := range types.AllStyles() {
		total += sums[label]
	}
	if total == 0 {
		// Degenerate model output; fall back to a uniform profile rather
		// than dividing by zero.
		n := float64(len(types.AllStyles()))
		return types.StyleScores{Visual: 100 / n, Auditory: 100 / n, Kinesthetic: 100 / n}
	}

	pct := func(label types.StyleLabel) float64 {
		return round2(sums[label] / total * 100)
	}
	scores := types.StyleScores{
		Visual:   pct(types.StyleVisual),
		Auditory: pct(types.StyleAuditory),
	}
	// Rounding error lands on the last component so the sum stays at 100.
	scores.Kinesthetic = round2(100 - scores.Visual - scores.Auditory)
	return scores
}
