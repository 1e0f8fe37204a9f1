package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

type fakeTTS struct {
	voices []string
	err    error
}

func (f *fakeTTS) SynthesizeUtterance(_ context.Context, text string, voiceName string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.voices = append(f.voices, voiceName)
	return []byte("mp3:" + text), nil
}

func (f *fakeTTS) Close() error { return nil }

func scriptJSON(t *testing.T, lines []types.PodcastLine) datatypes.JSON {
	t.Helper()
	b, err := json.Marshal(lines)
	if err != nil {
		t.Fatalf("marshal script: %v", err)
	}
	return datatypes.JSON(b)
}

func TestSynthesizeFillsSession(t *testing.T) {
	tts := &fakeTTS{}
	bucket := &fakeBucket{}
	svc := NewAudioSynthesizerService(testLogger(t), tts, nil, bucket)

	session := &types.PodcastSession{
		ID: uuid.New(),
		Script: scriptJSON(t, []types.PodcastLine{
			{Speaker: "Alex", Utterance: "Welcome to the show about photosynthesis."},
			{Speaker: "Sam", Utterance: "Let's start with the light reactions."},
		}),
	}
	ledger := NewCostLedger()

	if err := svc.Synthesize(context.Background(), session, ledger); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if session.AudioKey == "" || session.AudioURL == "" {
		t.Fatalf("audio location not set: key=%q url=%q", session.AudioKey, session.AudioURL)
	}
	if session.DurationSec <= 0 {
		t.Fatalf("duration: want>0 got=%v", session.DurationSec)
	}
	if len(bucket.uploads) != 1 {
		t.Fatalf("bucket uploads: want=1 got=%d", len(bucket.uploads))
	}
	// Hosts alternate voices.
	if len(tts.voices) != 2 || tts.voices[0] == tts.voices[1] {
		t.Fatalf("voices: want two distinct got=%v", tts.voices)
	}

	var segments []types.TranscriptSegment
	if err := json.Unmarshal(session.Transcript, &segments); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("segments: want=2 got=%d", len(segments))
	}
	if segments[0].StartSec != 0 || segments[1].StartSec < segments[0].EndSec {
		t.Fatalf("segments not ordered: %+v", segments)
	}

	report := ledger.Finalize()
	if report.TotalCharsSynthesized == 0 {
		t.Fatalf("synthesis cost not recorded")
	}
}

func TestSynthesizeEmptyScriptFails(t *testing.T) {
	svc := NewAudioSynthesizerService(testLogger(t), &fakeTTS{}, nil, &fakeBucket{})
	session := &types.PodcastSession{ID: uuid.New(), Script: scriptJSON(t, []types.PodcastLine{})}

	err := svc.Synthesize(context.Background(), session, NewCostLedger())
	var synthesis *SynthesisError
	if !errors.As(err, &synthesis) {
		t.Fatalf("want SynthesisError got %v", err)
	}
}

func TestSynthesizeTTSFailure(t *testing.T) {
	svc := NewAudioSynthesizerService(testLogger(t), &fakeTTS{err: errors.New("quota")}, nil, &fakeBucket{})
	session := &types.PodcastSession{
		ID:     uuid.New(),
		Script: scriptJSON(t, []types.PodcastLine{{Speaker: "Alex", Utterance: "Hello"}}),
	}
	ledger := NewCostLedger()

	err := svc.Synthesize(context.Background(), session, ledger)
	var synthesis *SynthesisError
	if !errors.As(err, &synthesis) {
		t.Fatalf("want SynthesisError got %v", err)
	}
	// The characters were submitted to the provider before it failed.
	if report := ledger.Finalize(); report.TotalCharsSynthesized == 0 {
		t.Fatalf("synthesis cost not recorded on failure")
	}
}
