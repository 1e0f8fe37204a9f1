package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/peterhyland0/adaptive-learning-backend/internal/clients/gcp"
	"github.com/peterhyland0/adaptive-learning-backend/internal/sse"
	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

// --- fakes ---------------------------------------------------------------

type fakeBucket struct{ uploads []string }

func (f *fakeBucket) UploadFile(_ context.Context, _ gcp.BucketCategory, key string, _ io.Reader) error {
	f.uploads = append(f.uploads, key)
	return nil
}
func (f *fakeBucket) DownloadFile(_ context.Context, _ gcp.BucketCategory, _ string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}
func (f *fakeBucket) DeleteFile(_ context.Context, _ gcp.BucketCategory, _ string) error { return nil }
func (f *fakeBucket) GetPublicURL(_ gcp.BucketCategory, key string) string {
	return "https://storage.test/" + key
}
func (f *fakeBucket) Close() error { return nil }

type fakeExtraction struct{ err error }

func (f *fakeExtraction) Extract(_ context.Context, _ string, _ string, _ []byte, _ *CostLedger) (*CanonicalContent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return testContent(), nil
}

type fakeGenerator struct {
	moduleErr error
	quizErr   error
	styleErrs map[types.StyleLabel]error
}

func (f *fakeGenerator) GenerateModule(_ context.Context, userID, uploadID uuid.UUID, _ *CanonicalContent, ledger *CostLedger) (*types.Module, error) {
	ledger.AddGeneration(StageModuleGeneration, TokenUsage{InputTokens: 10, OutputTokens: 5})
	if f.moduleErr != nil {
		return nil, f.moduleErr
	}
	return &types.Module{ID: uuid.New(), UserID: userID, UploadID: uploadID, Title: "Generated"}, nil
}

func (f *fakeGenerator) GenerateSubmodule(_ context.Context, module *types.Module, _ *CanonicalContent, style types.StyleLabel, ledger *CostLedger) (*GeneratedSubmodule, error) {
	ledger.AddGeneration(string(style), TokenUsage{InputTokens: 4, OutputTokens: 2})
	if err := f.styleErrs[style]; err != nil {
		return nil, err
	}
	sub := &GeneratedSubmodule{Style: style}
	switch style {
	case types.StyleKinesthetic:
		sub.Flashcards = &types.FlashcardSet{ID: uuid.New(), ModuleID: module.ID}
	case types.StyleVisual:
		sub.MindMap = &types.MindMap{ID: uuid.New(), ModuleID: module.ID}
	case types.StyleAuditory:
		sub.Podcast = &types.PodcastSession{ID: uuid.New(), ModuleID: module.ID}
	}
	return sub, nil
}

func (f *fakeGenerator) GenerateQuiz(_ context.Context, module *types.Module, _ *CanonicalContent, ledger *CostLedger) (*types.QuizSet, error) {
	ledger.AddGeneration(StageQuizGeneration, TokenUsage{InputTokens: 6, OutputTokens: 3})
	if f.quizErr != nil {
		return nil, f.quizErr
	}
	return &types.QuizSet{ID: uuid.New(), ModuleID: module.ID}, nil
}

type fakeSynthesizer struct{ err error }

func (f *fakeSynthesizer) Synthesize(_ context.Context, session *types.PodcastSession, ledger *CostLedger) error {
	if f.err != nil {
		return f.err
	}
	ledger.AddSynthesis(StagePodcastSynthesis, 500)
	session.AudioKey = "podcasts/" + session.ID.String() + ".mp3"
	return nil
}

type fakeUploadRepo struct{ created []*types.Upload }

func (f *fakeUploadRepo) Create(_ context.Context, _ *gorm.DB, uploads []*types.Upload) ([]*types.Upload, error) {
	f.created = append(f.created, uploads...)
	return uploads, nil
}
func (f *fakeUploadRepo) GetByIDs(_ context.Context, _ *gorm.DB, _ []uuid.UUID) ([]*types.Upload, error) {
	return f.created, nil
}
func (f *fakeUploadRepo) UpdateFields(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ map[string]interface{}) error {
	return nil
}

type fakeModuleRepo struct {
	created []*types.Module
	err     error
}

func (f *fakeModuleRepo) Create(_ context.Context, _ *gorm.DB, modules []*types.Module) ([]*types.Module, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, modules...)
	return modules, nil
}
func (f *fakeModuleRepo) GetByIDs(_ context.Context, _ *gorm.DB, _ []uuid.UUID) ([]*types.Module, error) {
	return f.created, nil
}
func (f *fakeModuleRepo) GetByUserID(_ context.Context, _ *gorm.DB, _ uuid.UUID) ([]*types.Module, error) {
	return f.created, nil
}

type fakeFlashcardRepo struct{ created []*types.FlashcardSet }

func (f *fakeFlashcardRepo) Create(_ context.Context, _ *gorm.DB, sets []*types.FlashcardSet) ([]*types.FlashcardSet, error) {
	f.created = append(f.created, sets...)
	return sets, nil
}
func (f *fakeFlashcardRepo) GetByModuleIDs(_ context.Context, _ *gorm.DB, _ []uuid.UUID) ([]*types.FlashcardSet, error) {
	return f.created, nil
}

type fakeMindMapRepo struct{ created []*types.MindMap }

func (f *fakeMindMapRepo) Create(_ context.Context, _ *gorm.DB, maps []*types.MindMap) ([]*types.MindMap, error) {
	f.created = append(f.created, maps...)
	return maps, nil
}
func (f *fakeMindMapRepo) GetByModuleIDs(_ context.Context, _ *gorm.DB, _ []uuid.UUID) ([]*types.MindMap, error) {
	return f.created, nil
}

type fakePodcastRepo struct{ created []*types.PodcastSession }

func (f *fakePodcastRepo) Create(_ context.Context, _ *gorm.DB, sessions []*types.PodcastSession) ([]*types.PodcastSession, error) {
	f.created = append(f.created, sessions...)
	return sessions, nil
}
func (f *fakePodcastRepo) GetByModuleIDs(_ context.Context, _ *gorm.DB, _ []uuid.UUID) ([]*types.PodcastSession, error) {
	return f.created, nil
}

type fakeQuizRepo struct{ created []*types.QuizSet }

func (f *fakeQuizRepo) Create(_ context.Context, _ *gorm.DB, sets []*types.QuizSet) ([]*types.QuizSet, error) {
	f.created = append(f.created, sets...)
	return sets, nil
}
func (f *fakeQuizRepo) GetByModuleIDs(_ context.Context, _ *gorm.DB, _ []uuid.UUID) ([]*types.QuizSet, error) {
	return f.created, nil
}

type fakeRunRepo struct {
	created []*types.PipelineRun
	updates []map[string]interface{}
}

func (f *fakeRunRepo) Create(_ context.Context, _ *gorm.DB, runs []*types.PipelineRun) ([]*types.PipelineRun, error) {
	f.created = append(f.created, runs...)
	return runs, nil
}
func (f *fakeRunRepo) GetByIDs(_ context.Context, _ *gorm.DB, _ []uuid.UUID) ([]*types.PipelineRun, error) {
	return f.created, nil
}
func (f *fakeRunRepo) GetByUploadID(_ context.Context, _ *gorm.DB, _ uuid.UUID) ([]*types.PipelineRun, error) {
	return f.created, nil
}
func (f *fakeRunRepo) UpdateFields(_ context.Context, _ *gorm.DB, _ uuid.UUID, updates map[string]interface{}) error {
	f.updates = append(f.updates, updates)
	return nil
}

func (f *fakeRunRepo) lastUpdate() map[string]interface{} {
	if len(f.updates) == 0 {
		return nil
	}
	return f.updates[len(f.updates)-1]
}

// --- harness -------------------------------------------------------------

type pipelineHarness struct {
	orchestrator PipelineOrchestrator
	bucket       *fakeBucket
	modules      *fakeModuleRepo
	flashcards   *fakeFlashcardRepo
	mindMaps     *fakeMindMapRepo
	podcasts     *fakePodcastRepo
	quizzes      *fakeQuizRepo
	runs         *fakeRunRepo
}

func newPipelineHarness(t *testing.T, gen *fakeGenerator, extraction *fakeExtraction, synth *fakeSynthesizer) *pipelineHarness {
	t.Helper()
	testDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	h := &pipelineHarness{
		bucket:     &fakeBucket{},
		modules:    &fakeModuleRepo{},
		flashcards: &fakeFlashcardRepo{},
		mindMaps:   &fakeMindMapRepo{},
		podcasts:   &fakePodcastRepo{},
		quizzes:    &fakeQuizRepo{},
		runs:       &fakeRunRepo{},
	}
	h.orchestrator = NewPipelineOrchestrator(testLogger(t), PipelineDeps{
		DB:          testDB,
		Hub:         sse.NewSSEHub(testLogger(t)),
		Extraction:  extraction,
		Generator:   gen,
		Synthesizer: synth,
		Bucket:      h.bucket,
		Uploads:     &fakeUploadRepo{},
		Modules:     h.modules,
		Flashcards:  h.flashcards,
		MindMaps:    h.mindMaps,
		Podcasts:    h.podcasts,
		Quizzes:     h.quizzes,
		Runs:        h.runs,
		Profiles:    &fakeProfileRepo{},
	})
	return h
}

func allStylesRequest() *UploadRequest {
	return &UploadRequest{
		UserID:       uuid.New(),
		OriginalName: "notes.txt",
		MimeType:     "text/plain",
		Data:         []byte("study material"),
		StylePrefs:   types.AllStyles(),
	}
}

// --- tests ---------------------------------------------------------------

func TestProcessUploadSuccess(t *testing.T) {
	h := newPipelineHarness(t, &fakeGenerator{}, &fakeExtraction{}, &fakeSynthesizer{})

	result, err := h.orchestrator.ProcessUpload(context.Background(), allStylesRequest())
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if !result.Success {
		t.Fatalf("success: want=true got=false")
	}
	if result.ModuleID == nil {
		t.Fatalf("module id missing")
	}
	if len(result.FailedStyles) != 0 {
		t.Fatalf("failed styles: want=0 got=%v", result.FailedStyles)
	}
	if len(h.modules.created) != 1 || len(h.quizzes.created) != 1 {
		t.Fatalf("persisted: modules=%d quizzes=%d", len(h.modules.created), len(h.quizzes.created))
	}
	if len(h.flashcards.created) != 1 || len(h.mindMaps.created) != 1 || len(h.podcasts.created) != 1 {
		t.Fatalf("submodules: flashcards=%d mindmaps=%d podcasts=%d",
			len(h.flashcards.created), len(h.mindMaps.created), len(h.podcasts.created))
	}
	update := h.runs.lastUpdate()
	if update["status"] != types.RunStatusSucceeded {
		t.Fatalf("run status: want=%s got=%v", types.RunStatusSucceeded, update["status"])
	}
}

func TestProcessUploadOneStyleFails(t *testing.T) {
	gen := &fakeGenerator{styleErrs: map[types.StyleLabel]error{
		types.StyleVisual: &GenerationSchemaError{Stage: StageMindMap, Err: errors.New("bad nodes")},
	}}
	h := newPipelineHarness(t, gen, &fakeExtraction{}, &fakeSynthesizer{})

	result, err := h.orchestrator.ProcessUpload(context.Background(), allStylesRequest())
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if !result.Success {
		t.Fatalf("success: want=true got=false")
	}
	if len(result.FailedStyles) != 1 || result.FailedStyles[0] != types.StyleVisual {
		t.Fatalf("failed styles: want=[visual] got=%v", result.FailedStyles)
	}
	// The failed style's submodule is dropped; the rest persist.
	if len(h.mindMaps.created) != 0 {
		t.Fatalf("mind maps persisted despite failure: %d", len(h.mindMaps.created))
	}
	if len(h.flashcards.created) != 1 || len(h.podcasts.created) != 1 || len(h.quizzes.created) != 1 {
		t.Fatalf("surviving submodules not persisted")
	}
}

func TestProcessUploadPodcastSynthesisFailureIsPerStyle(t *testing.T) {
	h := newPipelineHarness(t, &fakeGenerator{}, &fakeExtraction{}, &fakeSynthesizer{err: &SynthesisError{Err: errors.New("tts down")}})

	result, err := h.orchestrator.ProcessUpload(context.Background(), allStylesRequest())
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if len(result.FailedStyles) != 1 || result.FailedStyles[0] != types.StyleAuditory {
		t.Fatalf("failed styles: want=[auditory] got=%v", result.FailedStyles)
	}
	if len(h.podcasts.created) != 0 {
		t.Fatalf("podcast persisted despite synthesis failure")
	}
}

func TestProcessUploadQuizFailureIsFatal(t *testing.T) {
	gen := &fakeGenerator{quizErr: &GenerationSchemaError{Stage: StageQuizGeneration, Err: errors.New("bad quiz")}}
	h := newPipelineHarness(t, gen, &fakeExtraction{}, &fakeSynthesizer{})

	result, err := h.orchestrator.ProcessUpload(context.Background(), allStylesRequest())
	if err == nil {
		t.Fatalf("want error got nil")
	}
	if result == nil || result.Success {
		t.Fatalf("want failed result, got %+v", result)
	}
	// Nothing persists when the quiz fails, even healthy submodules.
	if len(h.modules.created) != 0 || len(h.flashcards.created) != 0 || len(h.quizzes.created) != 0 {
		t.Fatalf("persisted despite quiz failure")
	}
	update := h.runs.lastUpdate()
	if update["status"] != types.RunStatusFailed {
		t.Fatalf("run status: want=%s got=%v", types.RunStatusFailed, update["status"])
	}
	// The cost accrued before the failure still lands in the audit record.
	if result.CostReport.TotalInputTokens == 0 {
		t.Fatalf("cost report empty on failed run")
	}
}

func TestProcessUploadExtractionFailureIsFatal(t *testing.T) {
	h := newPipelineHarness(t, &fakeGenerator{}, &fakeExtraction{err: &ExtractionError{Err: errors.New("no text")}}, &fakeSynthesizer{})

	_, err := h.orchestrator.ProcessUpload(context.Background(), allStylesRequest())
	var extraction *ExtractionError
	if !errors.As(err, &extraction) {
		t.Fatalf("want ExtractionError got %v", err)
	}
	if len(h.modules.created) != 0 {
		t.Fatalf("module persisted despite extraction failure")
	}
}

func TestProcessUploadPersistenceFailure(t *testing.T) {
	h := newPipelineHarness(t, &fakeGenerator{}, &fakeExtraction{}, &fakeSynthesizer{})
	h.modules.err = errors.New("db down")

	_, err := h.orchestrator.ProcessUpload(context.Background(), allStylesRequest())
	var persistence *PersistenceError
	if !errors.As(err, &persistence) {
		t.Fatalf("want PersistenceError got %v", err)
	}
	if len(h.quizzes.created) != 0 {
		t.Fatalf("quiz created after module create failed")
	}
	update := h.runs.lastUpdate()
	if update["status"] != types.RunStatusFailed {
		t.Fatalf("run status: want=%s got=%v", types.RunStatusFailed, update["status"])
	}
}

func TestProcessUploadRejectsBadRequests(t *testing.T) {
	h := newPipelineHarness(t, &fakeGenerator{}, &fakeExtraction{}, &fakeSynthesizer{})

	cases := []*UploadRequest{
		{UserID: uuid.Nil, Data: []byte("x")},
		{UserID: uuid.New(), Data: nil},
		{UserID: uuid.New(), Data: []byte("x"), StylePrefs: []types.StyleLabel{"telepathic"}},
		{UserID: uuid.New(), Data: []byte("x"), StylePrefs: []types.StyleLabel{types.StyleVisual, types.StyleVisual}},
	}
	for i, req := range cases {
		_, err := h.orchestrator.ProcessUpload(context.Background(), req)
		var invalid *InvalidInputError
		if !errors.As(err, &invalid) {
			t.Fatalf("case %d: want InvalidInputError got %v", i, err)
		}
	}
}

func TestProcessUploadStoresOriginalFile(t *testing.T) {
	h := newPipelineHarness(t, &fakeGenerator{}, &fakeExtraction{}, &fakeSynthesizer{})

	if _, err := h.orchestrator.ProcessUpload(context.Background(), allStylesRequest()); err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if len(h.bucket.uploads) != 1 || !strings.HasPrefix(h.bucket.uploads[0], "uploads/") {
		t.Fatalf("original file not stored: %v", h.bucket.uploads)
	}
}
