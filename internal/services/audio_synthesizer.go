package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/peterhyland0/adaptive-learning-backend/internal/clients/gcp"
	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
	"github.com/peterhyland0/adaptive-learning-backend/internal/utils"
)

// estimatedCharsPerSecond drives transcript alignment when no STT pass runs.
const estimatedCharsPerSecond = 15.0

type AudioSynthesizerService interface {
	// Synthesize renders the session's script to audio, uploads it, and fills
	// in AudioKey, AudioURL, Transcript and DurationSec on the session.
	Synthesize(ctx context.Context, session *types.PodcastSession, ledger *CostLedger) error
}

type audioSynthesizerService struct {
	log    *logger.Logger
	tts    gcp.TextToSpeech
	speech gcp.Speech
	bucket gcp.BucketService

	voiceByHost   map[string]string
	fallbackVoice string
	alignWithSTT  bool
}

func NewAudioSynthesizerService(baseLog *logger.Logger, tts gcp.TextToSpeech, speech gcp.Speech, bucket gcp.BucketService) AudioSynthesizerService {
	log := baseLog.With("service", "AudioSynthesizerService")
	voiceA := utils.GetEnv("PODCAST_VOICE_HOST_A", "en-US-Neural2-D", log)
	voiceB := utils.GetEnv("PODCAST_VOICE_HOST_B", "en-US-Neural2-F", log)
	align := strings.EqualFold(utils.GetEnv("PODCAST_ALIGN_WITH_STT", "false", log), "true")
	return &audioSynthesizerService{
		log:    log,
		tts:    tts,
		speech: speech,
		bucket: bucket,
		voiceByHost: map[string]string{
			"alex": voiceA,
			"sam":  voiceB,
		},
		fallbackVoice: voiceA,
		alignWithSTT:  align,
	}
}

func (s *audioSynthesizerService) Synthesize(ctx context.Context, session *types.PodcastSession, ledger *CostLedger) error {
	var lines []types.PodcastLine
	if err := json.Unmarshal(session.Script, &lines); err != nil {
		return &SynthesisError{Err: fmt.Errorf("decode script: %w", err)}
	}
	if len(lines) == 0 {
		return &SynthesisError{Err: fmt.Errorf("script has no lines")}
	}

	// MP3 frames are self-delimiting, so per-utterance chunks concatenate
	// into a playable stream.
	var audio bytes.Buffer
	for i, line := range lines {
		clip, err := s.tts.SynthesizeUtterance(ctx, line.Utterance, s.voiceFor(line.Speaker))
		ledger.AddSynthesis(StagePodcastSynthesis, len(line.Utterance))
		if err != nil {
			return &SynthesisError{Err: fmt.Errorf("synthesize line %d: %w", i, err)}
		}
		audio.Write(clip)
	}

	key := fmt.Sprintf("podcasts/%s.mp3", session.ID)
	if err := s.bucket.UploadFile(ctx, gcp.BucketCategoryAudio, key, bytes.NewReader(audio.Bytes())); err != nil {
		return &SynthesisError{Err: fmt.Errorf("upload audio: %w", err)}
	}
	session.AudioKey = key
	session.AudioURL = s.bucket.GetPublicURL(gcp.BucketCategoryAudio, key)

	segments, duration, err := s.alignTranscript(ctx, lines, audio.Bytes(), ledger)
	if err != nil {
		return err
	}
	session.Transcript = datatypes.JSON(mustJSON(segments))
	session.DurationSec = duration

	s.log.Info("podcast synthesized", "session_id", session.ID, "lines", len(lines), "duration_sec", duration)
	return nil
}

func (s *audioSynthesizerService) voiceFor(speaker string) string {
	if v, ok := s.voiceByHost[strings.ToLower(strings.TrimSpace(speaker))]; ok {
		return v
	}
	return s.fallbackVoice
}

// alignTranscript produces timestamped segments, either from an STT pass over
// the rendered audio or from a speaking-rate estimate per line.
func (s *audioSynthesizerService) alignTranscript(ctx context.Context, lines []types.PodcastLine, audio []byte, ledger *CostLedger) ([]types.TranscriptSegment, float64, error) {
	if s.alignWithSTT && s.speech != nil {
		result, err := s.speech.TranscribeAudioBytes(ctx, audio, "audio/mpeg")
		if err != nil {
			return nil, 0, &SynthesisError{Err: fmt.Errorf("transcribe audio: %w", err)}
		}
		ledger.AddTranscription(StagePodcastTranscript, result.DurationSec)
		return result.Segments, result.DurationSec, nil
	}

	segments := make([]types.TranscriptSegment, 0, len(lines))
	cursor := 0.0
	for _, line := range lines {
		length := float64(len(line.Utterance)) / estimatedCharsPerSecond
		segments = append(segments, types.TranscriptSegment{
			Text:     line.Utterance,
			Speaker:  line.Speaker,
			StartSec: round2(cursor),
			EndSec:   round2(cursor + length),
		})
		cursor += length
	}
	return segments, round2(cursor), nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
