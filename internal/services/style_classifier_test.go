package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

type fakeInference struct {
	scores [][3]float64 // visual, auditory, kinesthetic per answer
	calls  int
}

func (f *fakeInference) ClassifyBatch(answers []string) ([]map[types.StyleLabel]float64, error) {
	f.calls++
	out := make([]map[types.StyleLabel]float64, len(answers))
	for i := range answers {
		s := f.scores[i%len(f.scores)]
		out[i] = map[types.StyleLabel]float64{
			types.StyleVisual:      s[0],
			types.StyleAuditory:    s[1],
			types.StyleKinesthetic: s[2],
		}
	}
	return out, nil
}

func (f *fakeInference) Close() error { return nil }

type fakeProfileRepo struct {
	saved *types.StyleProfile
	err   error
}

func (f *fakeProfileRepo) Upsert(_ context.Context, _ *gorm.DB, profile *types.StyleProfile) (*types.StyleProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.saved = profile
	return profile, nil
}

func (f *fakeProfileRepo) GetByUserID(_ context.Context, _ *gorm.DB, _ uuid.UUID) (*types.StyleProfile, error) {
	return f.saved, nil
}

func sixteenAnswers() []string {
	answers := make([]string, 16)
	for i := range answers {
		answers[i] = "I prefer diagrams over lectures"
	}
	return answers
}

func TestClassifyRejectsWrongAnswerCount(t *testing.T) {
	inference := &fakeInference{scores: [][3]float64{{0.5, 0.3, 0.2}}}
	svc := NewStyleClassifierService(testLogger(t), inference, "v1", &fakeProfileRepo{})

	for _, n := range []int{0, 15, 17} {
		answers := make([]string, n)
		for i := range answers {
			answers[i] = "answer"
		}
		_, err := svc.Classify(context.Background(), uuid.New(), answers)
		var invalid *InvalidInputError
		if !errors.As(err, &invalid) {
			t.Fatalf("answers=%d: want InvalidInputError got %v", n, err)
		}
	}
	// No inference cost for rejected questionnaires.
	if inference.calls != 0 {
		t.Fatalf("inference calls: want=0 got=%d", inference.calls)
	}
}

func TestClassifyAcceptsBlankAnswers(t *testing.T) {
	inference := &fakeInference{scores: [][3]float64{{0.5, 0.3, 0.2}}}
	repo := &fakeProfileRepo{}
	svc := NewStyleClassifierService(testLogger(t), inference, "v1", repo)

	// Blank answers tokenize as empty; only a count mismatch is rejected.
	answers := sixteenAnswers()
	answers[3] = ""
	answers[7] = "   "
	profile, err := svc.Classify(context.Background(), uuid.New(), answers)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if inference.calls != 1 {
		t.Fatalf("inference calls: want=1 got=%d", inference.calls)
	}
	if profile == nil || repo.saved == nil {
		t.Fatalf("profile not persisted")
	}
}

func TestClassifyPoolsToPercentages(t *testing.T) {
	inference := &fakeInference{scores: [][3]float64{{0.6, 0.3, 0.1}}}
	repo := &fakeProfileRepo{}
	svc := NewStyleClassifierService(testLogger(t), inference, "v3", repo)

	userID := uuid.New()
	profile, err := svc.Classify(context.Background(), userID, sixteenAnswers())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	sum := profile.Visual + profile.Auditory + profile.Kinesthetic
	if math.Abs(sum-100) > 1e-9 {
		t.Fatalf("percentage sum: want=100 got=%v", sum)
	}
	if profile.Dominant != string(types.StyleVisual) {
		t.Fatalf("dominant: want=%s got=%s", types.StyleVisual, profile.Dominant)
	}
	if profile.ModelVersion != "v3" {
		t.Fatalf("model version: want=v3 got=%s", profile.ModelVersion)
	}
	if repo.saved == nil || repo.saved.UserID != userID {
		t.Fatalf("profile not persisted for %s", userID)
	}
}

func TestClassifyPersistenceFailure(t *testing.T) {
	inference := &fakeInference{scores: [][3]float64{{0.4, 0.4, 0.2}}}
	svc := NewStyleClassifierService(testLogger(t), inference, "v1", &fakeProfileRepo{err: errors.New("db down")})

	_, err := svc.Classify(context.Background(), uuid.New(), sixteenAnswers())
	var persistence *PersistenceError
	if !errors.As(err, &persistence) {
		t.Fatalf("want PersistenceError got %v", err)
	}
}

func TestPoolScoresUniformFallback(t *testing.T) {
	scores := poolScores([]map[types.StyleLabel]float64{{}})
	sum := scores.Visual + scores.Auditory + scores.Kinesthetic
	if math.Abs(sum-100) > 1e-9 {
		t.Fatalf("percentage sum: want=100 got=%v", sum)
	}
}
