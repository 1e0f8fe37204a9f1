package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

// GeneratedSubmodule is the result of one style dispatch. Exactly one of the
// payload fields is set, matching Style.
type GeneratedSubmodule struct {
	Style      types.StyleLabel
	Flashcards *types.FlashcardSet
	MindMap    *types.MindMap
	Podcast    *types.PodcastSession
}

type ContentGeneratorService interface {
	GenerateModule(ctx context.Context, userID, uploadID uuid.UUID, content *CanonicalContent, ledger *CostLedger) (*types.Module, error)
	GenerateSubmodule(ctx context.Context, module *types.Module, content *CanonicalContent, style types.StyleLabel, ledger *CostLedger) (*GeneratedSubmodule, error)
	GenerateQuiz(ctx context.Context, module *types.Module, content *CanonicalContent, ledger *CostLedger) (*types.QuizSet, error)
}

type contentGeneratorService struct {
	log *logger.Logger
	ai  OpenAIClient

	maxContentChars int
}

func NewContentGeneratorService(baseLog *logger.Logger, ai OpenAIClient) ContentGeneratorService {
	return &contentGeneratorService{
		log:             baseLog.With("service", "ContentGeneratorService"),
		ai:              ai,
		maxContentChars: 20000,
	}
}

func (s *contentGeneratorService) GenerateModule(ctx context.Context, userID, uploadID uuid.UUID, content *CanonicalContent, ledger *CostLedger) (*types.Module, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
			"topics": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":   map[string]any{"type": "string"},
						"summary": map[string]any{"type": "string"},
					},
					"required":             []string{"title", "summary"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"title", "topics"},
		"additionalProperties": false,
	}

	obj, usage, err := s.ai.GenerateJSON(ctx,
		"You turn study materials into a concise module outline: a specific title and an ordered list of topics.",
		fmt.Sprintf("Study material (truncated):\n%s\n\nReturn the module title and 3-10 ordered topics.", s.truncateContent(content)),
		"module_outline",
		schema,
	)
	ledger.AddGeneration(StageModuleGeneration, usage)
	if err != nil {
		return nil, &GenerationSchemaError{Stage: StageModuleGeneration, Err: err}
	}

	var out struct {
		Title  string `json:"title"`
		Topics []struct {
			Title   string `json:"title"`
			Summary string `json:"summary"`
		} `json:"topics"`
	}
	if err := decodePayload(obj, &out); err != nil {
		return nil, &GenerationSchemaError{Stage: StageModuleGeneration, Err: err}
	}
	if strings.TrimSpace(out.Title) == "" {
		return nil, &GenerationSchemaError{Stage: StageModuleGeneration, Err: fmt.Errorf("empty module title")}
	}
	if len(out.Topics) == 0 {
		return nil, &GenerationSchemaError{Stage: StageModuleGeneration, Err: fmt.Errorf("module has no topics")}
	}

	topics := make([]types.Topic, 0, len(out.Topics))
	for i, t := range out.Topics {
		if strings.TrimSpace(t.Title) == "" {
			return nil, &GenerationSchemaError{Stage: StageModuleGeneration, Err: fmt.Errorf("topic %d has empty title", i)}
		}
		topics = append(topics, types.Topic{Index: i, Title: t.Title, Summary: t.Summary})
	}

	now := time.Now()
	return &types.Module{
		ID:        uuid.New(),
		UserID:    userID,
		UploadID:  uploadID,
		Title:     out.Title,
		Topics:    datatypes.JSON(mustJSON(topics)),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GenerateSubmodule dispatches on the closed style set. The auditory branch
// produces the script only; audio is deferred to the synthesizer.
func (s *contentGeneratorService) GenerateSubmodule(ctx context.Context, module *types.Module, content *CanonicalContent, style types.StyleLabel, ledger *CostLedger) (*GeneratedSubmodule, error) {
	switch style {
	case types.StyleKinesthetic:
		set, err := s.generateFlashcards(ctx, module, content, ledger)
		if err != nil {
			return nil, err
		}
		return &GeneratedSubmodule{Style: style, Flashcards: set}, nil
	case types.StyleVisual:
		mm, err := s.generateMindMap(ctx, module, content, ledger)
		if err != nil {
			return nil, err
		}
		return &GeneratedSubmodule{Style: style, MindMap: mm}, nil
	case types.StyleAuditory:
		ps, err := s.generatePodcastScript(ctx, module, content, ledger)
		if err != nil {
			return nil, err
		}
		return &GeneratedSubmodule{Style: style, Podcast: ps}, nil
	default:
		return nil, fmt.Errorf("unknown style %q", style)
	}
}

func (s *contentGeneratorService) generateFlashcards(ctx context.Context, module *types.Module, content *CanonicalContent, ledger *CostLedger) (*types.FlashcardSet, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"cards": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"prompt": map[string]any{"type": "string"},
						"answer": map[string]any{"type": "string"},
					},
					"required":             []string{"prompt", "answer"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"cards"},
		"additionalProperties": false,
	}

	obj, usage, err := s.ai.GenerateJSON(ctx,
		"You write active-recall flashcards grounded strictly in the provided material.",
		fmt.Sprintf("Module: %s\n\nMaterial (truncated):\n%s\n\nWrite 10-20 flashcards as prompt/answer pairs.", module.Title, s.truncateContent(content)),
		"flashcard_deck",
		schema,
	)
	ledger.AddGeneration(StageFlashcards, usage)
	if err != nil {
		return nil, &GenerationSchemaError{Stage: StageFlashcards, Err: err}
	}

	var out struct {
		Cards []types.Flashcard `json:"cards"`
	}
	if err := decodePayload(obj, &out); err != nil {
		return nil, &GenerationSchemaError{Stage: StageFlashcards, Err: err}
	}
	if len(out.Cards) == 0 {
		return nil, &GenerationSchemaError{Stage: StageFlashcards, Err: fmt.Errorf("empty flashcard deck")}
	}
	for i, c := range out.Cards {
		if strings.TrimSpace(c.Prompt) == "" || strings.TrimSpace(c.Answer) == "" {
			return nil, &GenerationSchemaError{Stage: StageFlashcards, Err: fmt.Errorf("card %d has empty prompt or answer", i)}
		}
	}

	now := time.Now()
	return &types.FlashcardSet{
		ID:        uuid.New(),
		ModuleID:  module.ID,
		Cards:     datatypes.JSON(mustJSON(out.Cards)),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *contentGeneratorService) generateMindMap(ctx context.Context, module *types.Module, content *CanonicalContent, ledger *CostLedger) (*types.MindMap, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"nodes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"label":  map[string]any{"type": "string"},
						"parent": map[string]any{"type": "integer"},
					},
					"required":             []string{"label", "parent"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"nodes"},
		"additionalProperties": false,
	}

	obj, usage, err := s.ai.GenerateJSON(ctx,
		"You build hierarchical mind maps. Node 0 is the root with parent -1; every other node's parent is the index of an earlier node.",
		fmt.Sprintf("Module: %s\n\nMaterial (truncated):\n%s\n\nBuild a mind map with 8-25 nodes covering the module's topics.", module.Title, s.truncateContent(content)),
		"mind_map",
		schema,
	)
	ledger.AddGeneration(StageMindMap, usage)
	if err != nil {
		return nil, &GenerationSchemaError{Stage: StageMindMap, Err: err}
	}

	var out struct {
		Nodes []struct {
			Label  string `json:"label"`
			Parent int    `json:"parent"`
		} `json:"nodes"`
	}
	if err := decodePayload(obj, &out); err != nil {
		return nil, &GenerationSchemaError{Stage: StageMindMap, Err: err}
	}

	nodes := make([]types.MindMapNode, 0, len(out.Nodes))
	for i, n := range out.Nodes {
		nodes = append(nodes, types.MindMapNode{Index: i, Label: n.Label, Parent: n.Parent})
	}
	if err := validateMindMapNodes(nodes); err != nil {
		return nil, &GenerationSchemaError{Stage: StageMindMap, Err: err}
	}

	now := time.Now()
	return &types.MindMap{
		ID:        uuid.New(),
		ModuleID:  module.ID,
		Nodes:     datatypes.JSON(mustJSON(nodes)),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *contentGeneratorService) generatePodcastScript(ctx context.Context, module *types.Module, content *CanonicalContent, ledger *CostLedger) (*types.PodcastSession, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"lines": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"speaker":   map[string]any{"type": "string"},
						"utterance": map[string]any{"type": "string"},
					},
					"required":             []string{"speaker", "utterance"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"lines"},
		"additionalProperties": false,
	}

	obj, usage, err := s.ai.GenerateJSON(ctx,
		"You write engaging two-host educational podcast scripts. Hosts are named Alex and Sam.",
		fmt.Sprintf("Module: %s\n\nMaterial (truncated):\n%s\n\nWrite a short podcast episode walking through the module's topics.", module.Title, s.truncateContent(content)),
		"podcast_script",
		schema,
	)
	ledger.AddGeneration(StagePodcastScript, usage)
	if err != nil {
		return nil, &GenerationSchemaError{Stage: StagePodcastScript, Err: err}
	}

	var out struct {
		Lines []types.PodcastLine `json:"lines"`
	}
	if err := decodePayload(obj, &out); err != nil {
		return nil, &GenerationSchemaError{Stage: StagePodcastScript, Err: err}
	}
	if len(out.Lines) == 0 {
		return nil, &GenerationSchemaError{Stage: StagePodcastScript, Err: fmt.Errorf("empty podcast script")}
	}
	for i, line := range out.Lines {
		if strings.TrimSpace(line.Speaker) == "" || strings.TrimSpace(line.Utterance) == "" {
			return nil, &GenerationSchemaError{Stage: StagePodcastScript, Err: fmt.Errorf("script line %d has empty speaker or utterance", i)}
		}
	}

	now := time.Now()
	return &types.PodcastSession{
		ID:        uuid.New(),
		ModuleID:  module.ID,
		Script:    datatypes.JSON(mustJSON(out.Lines)),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GenerateQuiz produces the mandatory assessment submodule. It runs in the
// same fan-out as the style submodules but its failure is fatal for the run.
func (s *contentGeneratorService) GenerateQuiz(ctx context.Context, module *types.Module, content *CanonicalContent, ledger *CostLedger) (*types.QuizSet, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question":      map[string]any{"type": "string"},
						"options":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"correct_index": map[string]any{"type": "integer"},
					},
					"required":             []string{"question", "options", "correct_index"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"questions"},
		"additionalProperties": false,
	}

	obj, usage, err := s.ai.GenerateJSON(ctx,
		"You generate fair multiple-choice quiz questions based strictly on the provided material. Four options each, one correct.",
		fmt.Sprintf("Module: %s\n\nMaterial (truncated):\n%s\n\nGenerate 5-10 multiple-choice questions.", module.Title, s.truncateContent(content)),
		"module_quiz",
		schema,
	)
	ledger.AddGeneration(StageQuizGeneration, usage)
	if err != nil {
		return nil, &GenerationSchemaError{Stage: StageQuizGeneration, Err: err}
	}

	var out struct {
		Questions []types.QuizItem `json:"questions"`
	}
	if err := decodePayload(obj, &out); err != nil {
		return nil, &GenerationSchemaError{Stage: StageQuizGeneration, Err: err}
	}
	if len(out.Questions) == 0 {
		return nil, &GenerationSchemaError{Stage: StageQuizGeneration, Err: fmt.Errorf("empty quiz")}
	}
	for i, q := range out.Questions {
		if len(q.Options) != 4 {
			return nil, &GenerationSchemaError{Stage: StageQuizGeneration, Err: fmt.Errorf("question %d has %d options, want 4", i, len(q.Options))}
		}
		if q.CorrectIndex < 0 || q.CorrectIndex > 3 {
			return nil, &GenerationSchemaError{Stage: StageQuizGeneration, Err: fmt.Errorf("question %d correct_index %d out of range", i, q.CorrectIndex)}
		}
	}

	now := time.Now()
	return &types.QuizSet{
		ID:        uuid.New(),
		ModuleID:  module.ID,
		Items:     datatypes.JSON(mustJSON(out.Questions)),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *contentGeneratorService) truncateContent(content *CanonicalContent) string {
	return truncateOnRune(content.Text, s.maxContentChars)
}

// truncateOnRune cuts text to at most max bytes without splitting a UTF-8
// sequence.
func truncateOnRune(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// validateMindMapNodes enforces the tree invariant: exactly one root
// (parent == -1) and no cycles.
func validateMindMapNodes(nodes []types.MindMapNode) error {
	if len(nodes) == 0 {
		return fmt.Errorf("empty mind map")
	}
	roots := 0
	for _, n := range nodes {
		if strings.TrimSpace(n.Label) == "" {
			return fmt.Errorf("node %d has empty label", n.Index)
		}
		if n.Parent == -1 {
			roots++
			continue
		}
		if n.Parent < 0 || n.Parent >= len(nodes) || n.Parent == n.Index {
			return fmt.Errorf("node %d has invalid parent %d", n.Index, n.Parent)
		}
	}
	if roots != 1 {
		return fmt.Errorf("mind map has %d roots, want exactly 1", roots)
	}
	// Walk each node to the root; revisiting a node on the same walk is a cycle.
	for i := range nodes {
		seen := map[int]bool{}
		cur := i
		for nodes[cur].Parent != -1 {
			if seen[cur] {
				return fmt.Errorf("mind map contains a cycle through node %d", i)
			}
			seen[cur] = true
			cur = nodes[cur].Parent
		}
	}
	return nil
}

func decodePayload(obj map[string]any, out any) error {
	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("re-encode payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("payload does not conform to schema: %w", err)
	}
	return nil
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
