package services

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

// fakeOpenAI returns one canned payload per schema name.
type fakeOpenAI struct {
	payloads map[string]map[string]any
	usage    TokenUsage
	err      error
	calls    []string
}

func (f *fakeOpenAI) GenerateJSON(_ context.Context, _ string, _ string, schemaName string, _ map[string]any) (map[string]any, TokenUsage, error) {
	f.calls = append(f.calls, schemaName)
	if f.err != nil {
		return nil, f.usage, f.err
	}
	payload, ok := f.payloads[schemaName]
	if !ok {
		return nil, f.usage, errors.New("no payload configured for " + schemaName)
	}
	return payload, f.usage, nil
}

func testContent() *CanonicalContent {
	return &CanonicalContent{Text: "photosynthesis converts light into chemical energy", SourceKind: "document", Method: "plain_text", Chars: 50}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestGenerateModule(t *testing.T) {
	ai := &fakeOpenAI{
		usage: TokenUsage{InputTokens: 30, OutputTokens: 12},
		payloads: map[string]map[string]any{
			"module_outline": {
				"title": "Photosynthesis",
				"topics": []any{
					map[string]any{"title": "Light reactions", "summary": "ATP and NADPH"},
					map[string]any{"title": "Calvin cycle", "summary": "Carbon fixation"},
				},
			},
		},
	}
	gen := NewContentGeneratorService(testLogger(t), ai)
	ledger := NewCostLedger()

	module, err := gen.GenerateModule(context.Background(), uuid.New(), uuid.New(), testContent(), ledger)
	if err != nil {
		t.Fatalf("GenerateModule: %v", err)
	}
	if module.Title != "Photosynthesis" {
		t.Fatalf("title: want=Photosynthesis got=%s", module.Title)
	}
	report := ledger.Finalize()
	if report.TotalInputTokens != 30 {
		t.Fatalf("input tokens: want=30 got=%d", report.TotalInputTokens)
	}
}

func TestGenerateModuleEmptyTopicsFails(t *testing.T) {
	ai := &fakeOpenAI{
		usage: TokenUsage{InputTokens: 5, OutputTokens: 1},
		payloads: map[string]map[string]any{
			"module_outline": {"title": "Empty", "topics": []any{}},
		},
	}
	gen := NewContentGeneratorService(testLogger(t), ai)
	ledger := NewCostLedger()

	_, err := gen.GenerateModule(context.Background(), uuid.New(), uuid.New(), testContent(), ledger)
	var schemaErr *GenerationSchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("want GenerationSchemaError got %v", err)
	}
	if schemaErr.Stage != StageModuleGeneration {
		t.Fatalf("stage: want=%s got=%s", StageModuleGeneration, schemaErr.Stage)
	}
	// The call was made, so its cost is still charged.
	if report := ledger.Finalize(); report.TotalInputTokens != 5 {
		t.Fatalf("input tokens: want=5 got=%d", report.TotalInputTokens)
	}
}

func TestGenerateSubmoduleFlashcards(t *testing.T) {
	ai := &fakeOpenAI{
		payloads: map[string]map[string]any{
			"flashcard_deck": {
				"cards": []any{
					map[string]any{"prompt": "What pigment absorbs light?", "answer": "Chlorophyll"},
				},
			},
		},
	}
	gen := NewContentGeneratorService(testLogger(t), ai)
	module := &types.Module{ID: uuid.New(), Title: "Photosynthesis"}

	sub, err := gen.GenerateSubmodule(context.Background(), module, testContent(), types.StyleKinesthetic, NewCostLedger())
	if err != nil {
		t.Fatalf("GenerateSubmodule: %v", err)
	}
	if sub.Flashcards == nil || sub.MindMap != nil || sub.Podcast != nil {
		t.Fatalf("kinesthetic dispatch produced wrong payload: %+v", sub)
	}
	if sub.Flashcards.ModuleID != module.ID {
		t.Fatalf("module id: want=%s got=%s", module.ID, sub.Flashcards.ModuleID)
	}
}

func TestGenerateSubmoduleMindMapRejectsCycle(t *testing.T) {
	ai := &fakeOpenAI{
		payloads: map[string]map[string]any{
			"mind_map": {
				"nodes": []any{
					map[string]any{"label": "Root", "parent": -1},
					map[string]any{"label": "A", "parent": 2},
					map[string]any{"label": "B", "parent": 1},
				},
			},
		},
	}
	gen := NewContentGeneratorService(testLogger(t), ai)
	module := &types.Module{ID: uuid.New(), Title: "Photosynthesis"}

	_, err := gen.GenerateSubmodule(context.Background(), module, testContent(), types.StyleVisual, NewCostLedger())
	var schemaErr *GenerationSchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("want GenerationSchemaError got %v", err)
	}
	if schemaErr.Stage != StageMindMap {
		t.Fatalf("stage: want=%s got=%s", StageMindMap, schemaErr.Stage)
	}
}

func TestGenerateSubmoduleMindMapRejectsTwoRoots(t *testing.T) {
	ai := &fakeOpenAI{
		payloads: map[string]map[string]any{
			"mind_map": {
				"nodes": []any{
					map[string]any{"label": "Root", "parent": -1},
					map[string]any{"label": "AlsoRoot", "parent": -1},
				},
			},
		},
	}
	gen := NewContentGeneratorService(testLogger(t), ai)
	module := &types.Module{ID: uuid.New(), Title: "Photosynthesis"}

	if _, err := gen.GenerateSubmodule(context.Background(), module, testContent(), types.StyleVisual, NewCostLedger()); err == nil {
		t.Fatalf("want error for two roots, got nil")
	}
}

func TestGenerateQuizValidation(t *testing.T) {
	cases := []struct {
		name    string
		options []any
		correct int
		wantErr bool
	}{
		{"valid", []any{"a", "b", "c", "d"}, 2, false},
		{"three options", []any{"a", "b", "c"}, 0, true},
		{"correct out of range", []any{"a", "b", "c", "d"}, 4, true},
		{"negative correct", []any{"a", "b", "c", "d"}, -1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ai := &fakeOpenAI{
				payloads: map[string]map[string]any{
					"module_quiz": {
						"questions": []any{
							map[string]any{"question": "Which organelle?", "options": tc.options, "correct_index": tc.correct},
						},
					},
				},
			}
			gen := NewContentGeneratorService(testLogger(t), ai)
			module := &types.Module{ID: uuid.New(), Title: "Photosynthesis"}

			_, err := gen.GenerateQuiz(context.Background(), module, testContent(), NewCostLedger())
			if tc.wantErr && err == nil {
				t.Fatalf("want error got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("want nil got %v", err)
			}
		})
	}
}

func TestGenerateQuizChargesCostOnCallFailure(t *testing.T) {
	ai := &fakeOpenAI{err: errors.New("upstream 500"), usage: TokenUsage{InputTokens: 8}}
	gen := NewContentGeneratorService(testLogger(t), ai)
	module := &types.Module{ID: uuid.New(), Title: "Photosynthesis"}
	ledger := NewCostLedger()

	if _, err := gen.GenerateQuiz(context.Background(), module, testContent(), ledger); err == nil {
		t.Fatalf("want error got nil")
	}
	if report := ledger.Finalize(); report.TotalInputTokens != 8 {
		t.Fatalf("input tokens: want=8 got=%d", report.TotalInputTokens)
	}
}

func TestTruncateOnRuneKeepsSequencesIntact(t *testing.T) {
	// "é" is two bytes; a cut at byte 3 would land mid-sequence.
	text := "aéé"
	got := truncateOnRune(text, 3)
	if got != "aé" {
		t.Fatalf("want=%q got=%q", "aé", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncated text is not valid UTF-8: %q", got)
	}
	if got := truncateOnRune(text, len(text)); got != text {
		t.Fatalf("want full text got=%q", got)
	}
	if got := truncateOnRune(text, 0); got != "" {
		t.Fatalf("want empty got=%q", got)
	}
}
