package services

import (
	"sync"

	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

// Cost stages, used to tag ledger entries by what produced them.
const (
	StageExtraction        = "extraction"
	StageModuleGeneration  = "module_generation"
	StageQuizGeneration    = "quiz_generation"
	StageFlashcards        = "flashcards"
	StageMindMap           = "mind_map"
	StagePodcastScript     = "podcast_script"
	StagePodcastSynthesis  = "podcast_synthesis"
	StagePodcastTranscript = "podcast_transcript"
)

// CostLedger accumulates per-stage resource usage for one pipeline run. Each
// run owns exactly one ledger; fan-out tasks append concurrently, so access
// is serialized internally.
type CostLedger struct {
	mu      sync.Mutex
	entries []types.CostEntry
}

func NewCostLedger() *CostLedger {
	return &CostLedger{}
}

func (l *CostLedger) AddGeneration(stage string, usage TokenUsage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, types.CostEntry{
		Stage:        stage,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	})
}

func (l *CostLedger) AddSynthesis(stage string, chars int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, types.CostEntry{
		Stage:            stage,
		CharsSynthesized: chars,
	})
}

func (l *CostLedger) AddTranscription(stage string, seconds float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, types.CostEntry{
		Stage:        stage,
		AudioSeconds: seconds,
	})
}

// Finalize snapshots the ledger into the report handed to persistence. The
// report totals always equal the sum of recorded entries, including entries
// from calls that later failed validation.
func (l *CostLedger) Finalize() types.CostReport {
	l.mu.Lock()
	defer l.mu.Unlock()
	report := types.CostReport{
		Entries: make([]types.CostEntry, len(l.entries)),
	}
	copy(report.Entries, l.entries)
	for _, e := range l.entries {
		report.TotalInputTokens += e.InputTokens
		report.TotalOutputTokens += e.OutputTokens
		report.TotalCharsSynthesized += e.CharsSynthesized
		report.TotalAudioSeconds += e.AudioSeconds
	}
	return report
}
