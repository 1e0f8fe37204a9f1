package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/peterhyland0/adaptive-learning-backend/internal/clients/gcp"
	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
)

// CanonicalContent is the single normalized text representation of an
// uploaded document, independent of original file format. Immutable once
// produced.
type CanonicalContent struct {
	Text       string `json:"text"`
	SourceKind string `json:"source_kind"` // document|image|audio
	Method     string `json:"method"`      // pdf|docx|pptx|text|html|vision_ocr|speech_transcript
	Chars      int    `json:"chars"`
}

// ExtractionService turns heterogeneous uploads into CanonicalContent.
// Transcription duration for audio uploads is charged to the ledger under the
// extraction stage.
type ExtractionService interface {
	Extract(ctx context.Context, originalName string, mimeType string, data []byte, ledger *CostLedger) (*CanonicalContent, error)
}

type extractionService struct {
	log    *logger.Logger
	vision gcp.Vision
	speech gcp.Speech
}

func NewExtractionService(baseLog *logger.Logger, vision gcp.Vision, speech gcp.Speech) ExtractionService {
	return &extractionService{
		log:    baseLog.With("service", "ExtractionService"),
		vision: vision,
		speech: speech,
	}
}

func (s *extractionService) Extract(ctx context.Context, originalName string, mimeType string, data []byte, ledger *CostLedger) (*CanonicalContent, error) {
	if len(data) == 0 {
		return nil, &ExtractionError{Err: fmt.Errorf("empty upload %q", originalName)}
	}

	switch mimeClass(mimeType, originalName) {
	case "image":
		if s.vision == nil {
			return nil, &ExtractionError{Err: fmt.Errorf("image extraction unavailable")}
		}
		text, err := s.vision.OCRImageBytes(ctx, data, mimeType)
		if err != nil {
			return nil, &ExtractionError{Err: fmt.Errorf("image ocr: %w", err)}
		}
		return newCanonicalContent(text, "image", "vision_ocr")

	case "audio":
		if s.speech == nil {
			return nil, &ExtractionError{Err: fmt.Errorf("audio extraction unavailable")}
		}
		res, err := s.speech.TranscribeAudioBytes(ctx, data, mimeType)
		if err != nil {
			return nil, &ExtractionError{Err: fmt.Errorf("audio transcription: %w", err)}
		}
		if ledger != nil {
			ledger.AddTranscription(StageExtraction, res.DurationSec)
		}
		return newCanonicalContent(res.PrimaryText, "audio", "speech_transcript")

	default:
		text, method, err := extractDocumentText(originalName, mimeType, data)
		if err != nil {
			return nil, &ExtractionError{Err: err}
		}
		return newCanonicalContent(text, "document", method)
	}
}

func newCanonicalContent(text, sourceKind, method string) (*CanonicalContent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ExtractionError{Err: fmt.Errorf("no text content extracted (%s/%s)", sourceKind, method)}
	}
	return &CanonicalContent{
		Text:       text,
		SourceKind: sourceKind,
		Method:     method,
		Chars:      len(text),
	}, nil
}

func mimeClass(mimeType string, originalName string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	ext := strings.ToLower(filepath.Ext(originalName))
	switch {
	case strings.HasPrefix(mt, "image/"),
		ext == ".png", ext == ".jpg", ext == ".jpeg", ext == ".webp", ext == ".gif":
		return "image"
	case strings.HasPrefix(mt, "audio/"),
		ext == ".mp3", ext == ".wav", ext == ".m4a", ext == ".flac", ext == ".ogg":
		return "audio"
	default:
		return "document"
	}
}
