package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

// Speech wraps the GCP speech-to-text client for audio-file extraction and
// podcast transcript alignment.
type Speech interface {
	TranscribeAudioBytes(ctx context.Context, audio []byte, mimeType string) (*TranscriptResult, error)
	Close() error
}

type TranscriptResult struct {
	PrimaryText string                    `json:"primary_text"`
	Segments    []types.TranscriptSegment `json:"segments,omitempty"`
	DurationSec float64                   `json:"duration_sec"`
}

type speechService struct {
	log        *logger.Logger
	client     *speech.Client
	maxRetries int
}

func NewSpeech(log *logger.Logger) (Speech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "gcp.Speech")

	ctx := context.Background()
	client, err := speech.NewClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &speechService{log: slog, client: client, maxRetries: 3}, nil
}

func (s *speechService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *speechService) TranscribeAudioBytes(ctx context.Context, audio []byte, mimeType string) (*TranscriptResult, error) {
	if len(audio) == 0 {
		return &TranscriptResult{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:               "en-US",
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
			Encoding:                   inferSpeechEncoding(mimeType),
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	var resp *speechpb.LongRunningRecognizeResponse
	var err error
	backoff := time.Second
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		resp, err = s.recognizeOnce(ctx, req)
		if err == nil || !isRetryableGRPC(err) || attempt == s.maxRetries {
			break
		}
		s.log.Warn("speech recognize retrying", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if err != nil {
		return nil, fmt.Errorf("speech longrunningrecognize: %w", err)
	}
	return parseSpeechResponse(resp), nil
}

func (s *speechService) recognizeOnce(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	op, err := s.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func isRetryableGRPC(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
		return true
	default:
		return false
	}
}

func inferSpeechEncoding(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.Contains(m, "wav"):
		return speechpb.RecognitionConfig_LINEAR16
	case strings.Contains(m, "flac"):
		return speechpb.RecognitionConfig_FLAC
	case strings.Contains(m, "mp3") || strings.Contains(m, "mpeg"):
		return speechpb.RecognitionConfig_MP3
	case strings.Contains(m, "ogg") || strings.Contains(m, "opus"):
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func parseSpeechResponse(resp *speechpb.LongRunningRecognizeResponse) *TranscriptResult {
	out := &TranscriptResult{}
	if resp == nil {
		return out
	}

	var full strings.Builder
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		if text == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(text)

		seg := types.TranscriptSegment{Text: text}
		if len(alt.Words) > 0 {
			first := alt.Words[0]
			last := alt.Words[len(alt.Words)-1]
			if first.StartTime != nil {
				seg.StartSec = first.StartTime.AsDuration().Seconds()
			}
			if last.EndTime != nil {
				seg.EndSec = last.EndTime.AsDuration().Seconds()
			}
		}
		out.Segments = append(out.Segments, seg)
		if seg.EndSec > out.DurationSec {
			out.DurationSec = seg.EndSec
		}
	}
	out.PrimaryText = full.String()
	return out
}
