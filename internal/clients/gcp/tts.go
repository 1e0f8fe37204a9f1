package gcp

import (
	"context"
	"fmt"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
)

// TextToSpeech narrates single utterances; the synthesizer service stitches
// utterances into one podcast asset.
type TextToSpeech interface {
	SynthesizeUtterance(ctx context.Context, text string, voiceName string) ([]byte, error)
	Close() error
}

type ttsService struct {
	log          *logger.Logger
	client       *texttospeech.Client
	languageCode string
}

func NewTextToSpeech(log *logger.Logger) (TextToSpeech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "gcp.TextToSpeech")

	ctx := context.Background()
	client, err := texttospeech.NewClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("texttospeech client: %w", err)
	}
	return &ttsService{log: slog, client: client, languageCode: "en-US"}, nil
}

func (s *ttsService) SynthesizeUtterance(ctx context.Context, text string, voiceName string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("empty utterance")
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	resp, err := s.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: s.languageCode,
			Name:         voiceName,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	if len(resp.AudioContent) == 0 {
		return nil, fmt.Errorf("synthesize speech: empty audio content")
	}
	return resp.AudioContent, nil
}

func (s *ttsService) Close() error {
	return s.client.Close()
}
