package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/peterhyland0/adaptive-learning-backend/internal/clients/gcp"
	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/repos"
	"github.com/peterhyland0/adaptive-learning-backend/internal/sse"
	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

// UploadRequest carries one uploaded document through the pipeline.
type UploadRequest struct {
	UserID       uuid.UUID
	OriginalName string
	MimeType     string
	Data         []byte
	// StylePrefs selects which style submodules to generate. Empty means
	// "use the user's dominant style", falling back to all styles when no
	// profile exists yet.
	StylePrefs []types.StyleLabel
}

// UploadResult reports the pipeline outcome. FailedStyles lists best-effort
// submodules that were dropped; the module itself still succeeded.
type UploadResult struct {
	Success      bool               `json:"success"`
	RunID        uuid.UUID          `json:"run_id"`
	ModuleID     *uuid.UUID         `json:"module_id,omitempty"`
	FailedStyles []types.StyleLabel `json:"failed_styles,omitempty"`
	CostReport   types.CostReport   `json:"cost_report"`
}

type PipelineOrchestrator interface {
	ProcessUpload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
}

type pipelineOrchestrator struct {
	log *logger.Logger
	db  *gorm.DB
	hub *sse.SSEHub

	extraction  ExtractionService
	generator   ContentGeneratorService
	synthesizer AudioSynthesizerService
	bucket      gcp.BucketService

	uploads      repos.UploadRepo
	modules      repos.ModuleRepo
	flashcards   repos.FlashcardSetRepo
	mindMaps     repos.MindMapRepo
	podcasts     repos.PodcastSessionRepo
	quizzes      repos.QuizSetRepo
	runs         repos.PipelineRunRepo
	profiles     repos.StyleProfileRepo
	fanOutLimit  int
	maxUploadLen int
}

type PipelineDeps struct {
	DB          *gorm.DB
	Hub         *sse.SSEHub
	Extraction  ExtractionService
	Generator   ContentGeneratorService
	Synthesizer AudioSynthesizerService
	Bucket      gcp.BucketService

	Uploads    repos.UploadRepo
	Modules    repos.ModuleRepo
	Flashcards repos.FlashcardSetRepo
	MindMaps   repos.MindMapRepo
	Podcasts   repos.PodcastSessionRepo
	Quizzes    repos.QuizSetRepo
	Runs       repos.PipelineRunRepo
	Profiles   repos.StyleProfileRepo
}

func NewPipelineOrchestrator(baseLog *logger.Logger, deps PipelineDeps) PipelineOrchestrator {
	return &pipelineOrchestrator{
		log:          baseLog.With("service", "PipelineOrchestrator"),
		db:           deps.DB,
		hub:          deps.Hub,
		extraction:   deps.Extraction,
		generator:    deps.Generator,
		synthesizer:  deps.Synthesizer,
		bucket:       deps.Bucket,
		uploads:      deps.Uploads,
		modules:      deps.Modules,
		flashcards:   deps.Flashcards,
		mindMaps:     deps.MindMaps,
		podcasts:     deps.Podcasts,
		quizzes:      deps.Quizzes,
		runs:         deps.Runs,
		profiles:     deps.Profiles,
		fanOutLimit:  4,
		maxUploadLen: 25 << 20,
	}
}

// submoduleResult is one fan-out slot. Tasks always return nil to the
// errgroup so one failure never cancels its siblings; errors land here.
type submoduleResult struct {
	style  types.StyleLabel
	result *GeneratedSubmodule
	err    error
}

func (p *pipelineOrchestrator) ProcessUpload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if err := p.validateRequest(req); err != nil {
		return nil, err
	}
	styles, err := p.resolveStyles(ctx, req)
	if err != nil {
		return nil, err
	}

	ledger := NewCostLedger()

	upload := &types.Upload{
		ID:           uuid.New(),
		UserID:       req.UserID,
		OriginalName: req.OriginalName,
		MimeType:     req.MimeType,
		SizeBytes:    int64(len(req.Data)),
		Status:       types.StageReceived,
	}
	run := &types.PipelineRun{
		ID:       uuid.New(),
		UserID:   req.UserID,
		UploadID: upload.ID,
		Stage:    types.StageReceived,
		Status:   types.RunStatusRunning,
	}
	if _, err := p.uploads.Create(ctx, nil, []*types.Upload{upload}); err != nil {
		return nil, &PersistenceError{Err: fmt.Errorf("create upload: %w", err)}
	}
	if _, err := p.runs.Create(ctx, nil, []*types.PipelineRun{run}); err != nil {
		return nil, &PersistenceError{Err: fmt.Errorf("create pipeline run: %w", err)}
	}

	storageKey := fmt.Sprintf("uploads/%s/%s", req.UserID, upload.ID)
	if err := p.bucket.UploadFile(ctx, gcp.BucketCategoryMaterial, storageKey, bytes.NewReader(req.Data)); err != nil {
		return p.fail(ctx, run, ledger, types.StageReceived, fmt.Errorf("store upload: %w", err))
	}
	_ = p.uploads.UpdateFields(ctx, nil, upload.ID, map[string]interface{}{"storage_key": storageKey})

	p.progress(run, types.StageReceived)

	// Extraction. Fatal on failure.
	content, err := p.extraction.Extract(ctx, req.OriginalName, req.MimeType, req.Data, ledger)
	if err != nil {
		return p.fail(ctx, run, ledger, types.StageExtracted, err)
	}
	p.advance(ctx, run, types.StageExtracted)

	// Module outline. Fatal on failure.
	module, err := p.generator.GenerateModule(ctx, req.UserID, upload.ID, content, ledger)
	if err != nil {
		return p.fail(ctx, run, ledger, types.StageModuleGenerated, err)
	}
	p.advance(ctx, run, types.StageModuleGenerated)

	// Fan out: one task per requested style plus the mandatory quiz.
	p.advance(ctx, run, types.StageFanOut)

	results := make([]submoduleResult, len(styles))
	var quizSet *types.QuizSet
	var quizErr error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.fanOutLimit)
	for i, style := range styles {
		i, style := i, style
		g.Go(func() error {
			sub, err := p.generator.GenerateSubmodule(gctx, module, content, style, ledger)
			if err == nil && sub.Podcast != nil {
				err = p.synthesizer.Synthesize(gctx, sub.Podcast, ledger)
			}
			results[i] = submoduleResult{style: style, result: sub, err: err}
			return nil
		})
	}
	g.Go(func() error {
		quizSet, quizErr = p.generator.GenerateQuiz(gctx, module, content, ledger)
		return nil
	})
	_ = g.Wait()

	p.advance(ctx, run, types.StageJoined)

	// The quiz is mandatory: without it, nothing persists.
	if quizErr != nil {
		return p.fail(ctx, run, ledger, types.StageJoined, quizErr)
	}

	var failedStyles []types.StyleLabel
	persistable := make([]*GeneratedSubmodule, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			p.log.Warn("style submodule failed", "run_id", run.ID, "style", r.style, "error", r.err)
			failedStyles = append(failedStyles, r.style)
			continue
		}
		persistable = append(persistable, r.result)
	}

	// Single atomic handoff: module, quiz and surviving submodules commit
	// together or not at all.
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := p.modules.Create(ctx, tx, []*types.Module{module}); err != nil {
			return fmt.Errorf("persist module: %w", err)
		}
		if _, err := p.quizzes.Create(ctx, tx, []*types.QuizSet{quizSet}); err != nil {
			return fmt.Errorf("persist quiz: %w", err)
		}
		for _, sub := range persistable {
			switch {
			case sub.Flashcards != nil:
				if _, err := p.flashcards.Create(ctx, tx, []*types.FlashcardSet{sub.Flashcards}); err != nil {
					return fmt.Errorf("persist flashcards: %w", err)
				}
			case sub.MindMap != nil:
				if _, err := p.mindMaps.Create(ctx, tx, []*types.MindMap{sub.MindMap}); err != nil {
					return fmt.Errorf("persist mind map: %w", err)
				}
			case sub.Podcast != nil:
				if _, err := p.podcasts.Create(ctx, tx, []*types.PodcastSession{sub.Podcast}); err != nil {
					return fmt.Errorf("persist podcast: %w", err)
				}
			}
		}
		return p.uploads.UpdateFields(ctx, tx, upload.ID, map[string]interface{}{"status": types.StagePersisted})
	})
	if err != nil {
		return p.fail(ctx, run, ledger, types.StagePersisted, &PersistenceError{Err: err})
	}

	report := ledger.Finalize()
	moduleID := module.ID
	updates := map[string]interface{}{
		"stage":       types.StagePersisted,
		"status":      types.RunStatusSucceeded,
		"module_id":   moduleID,
		"cost_report": datatypes.JSON(mustJSON(report)),
	}
	if len(failedStyles) > 0 {
		updates["failed_styles"] = datatypes.JSON(mustJSON(failedStyles))
	}
	if err := p.runs.UpdateFields(ctx, nil, run.ID, updates); err != nil {
		p.log.Error("failed to finalize pipeline run", "run_id", run.ID, "error", err)
	}

	p.hub.Broadcast(sse.SSEMessage{
		Channel: sse.UserChannel(run.UserID),
		Event:   sse.SSEEventModuleReady,
		Data: map[string]any{
			"run_id":        run.ID,
			"module_id":     moduleID,
			"failed_styles": failedStyles,
		},
	})
	p.log.Info("upload processed",
		"run_id", run.ID,
		"module_id", moduleID,
		"failed_styles", failedStyles,
		"input_tokens", report.TotalInputTokens,
		"output_tokens", report.TotalOutputTokens,
	)

	return &UploadResult{
		Success:      true,
		RunID:        run.ID,
		ModuleID:     &moduleID,
		FailedStyles: failedStyles,
		CostReport:   report,
	}, nil
}

func (p *pipelineOrchestrator) validateRequest(req *UploadRequest) error {
	if req.UserID == uuid.Nil {
		return &InvalidInputError{Reason: "missing user id"}
	}
	if len(req.Data) == 0 {
		return &InvalidInputError{Reason: "empty upload"}
	}
	if len(req.Data) > p.maxUploadLen {
		return &InvalidInputError{Reason: fmt.Sprintf("upload exceeds %d bytes", p.maxUploadLen)}
	}
	seen := map[types.StyleLabel]bool{}
	for _, s := range req.StylePrefs {
		if _, ok := types.ParseStyleLabel(string(s)); !ok {
			return &InvalidInputError{Reason: fmt.Sprintf("unknown style %q", s)}
		}
		if seen[s] {
			return &InvalidInputError{Reason: fmt.Sprintf("duplicate style %q", s)}
		}
		seen[s] = true
	}
	return nil
}

// resolveStyles applies the preference fallback chain: explicit prefs, then
// the profile's dominant style, then every style.
func (p *pipelineOrchestrator) resolveStyles(ctx context.Context, req *UploadRequest) ([]types.StyleLabel, error) {
	if len(req.StylePrefs) > 0 {
		return req.StylePrefs, nil
	}
	profile, err := p.profiles.GetByUserID(ctx, nil, req.UserID)
	if err != nil {
		return nil, &PersistenceError{Err: fmt.Errorf("load style profile: %w", err)}
	}
	if profile != nil {
		if dominant, ok := types.ParseStyleLabel(profile.Dominant); ok {
			return []types.StyleLabel{dominant}, nil
		}
	}
	return types.AllStyles(), nil
}

func (p *pipelineOrchestrator) advance(ctx context.Context, run *types.PipelineRun, stage string) {
	run.Stage = stage
	if err := p.runs.UpdateFields(ctx, nil, run.ID, map[string]interface{}{"stage": stage}); err != nil {
		p.log.Warn("failed to record stage transition", "run_id", run.ID, "stage", stage, "error", err)
	}
	p.progress(run, stage)
}

func (p *pipelineOrchestrator) progress(run *types.PipelineRun, stage string) {
	p.hub.Broadcast(sse.SSEMessage{
		Channel: sse.UserChannel(run.UserID),
		Event:   sse.SSEEventPipelineProgress,
		Data:    map[string]any{"run_id": run.ID, "stage": stage},
	})
}

// fail records the terminal run state with whatever cost accrued, broadcasts
// the failure, and returns the original error. The run row survives as the
// cost-audit record even though no module was persisted.
func (p *pipelineOrchestrator) fail(ctx context.Context, run *types.PipelineRun, ledger *CostLedger, stage string, cause error) (*UploadResult, error) {
	report := ledger.Finalize()
	updates := map[string]interface{}{
		"stage":       stage,
		"status":      types.RunStatusFailed,
		"error":       cause.Error(),
		"cost_report": datatypes.JSON(mustJSON(report)),
		"updated_at":  time.Now(),
	}
	// Best effort with a fresh context: the original one may be the cause.
	recordCtx := ctx
	if recordCtx.Err() != nil {
		var cancel context.CancelFunc
		recordCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := p.runs.UpdateFields(recordCtx, nil, run.ID, updates); err != nil {
		p.log.Error("failed to record pipeline failure", "run_id", run.ID, "error", err)
	}
	_ = p.uploads.UpdateFields(recordCtx, nil, run.UploadID, map[string]interface{}{"status": types.RunStatusFailed})

	p.hub.Broadcast(sse.SSEMessage{
		Channel: sse.UserChannel(run.UserID),
		Event:   sse.SSEEventPipelineFailed,
		Data:    map[string]any{"run_id": run.ID, "stage": stage, "error": cause.Error()},
	})
	p.log.Error("pipeline failed", "run_id", run.ID, "stage", stage, "error", cause)

	return &UploadResult{Success: false, RunID: run.ID, CostReport: report}, cause
}
