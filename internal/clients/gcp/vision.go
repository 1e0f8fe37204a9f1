package gcp

import (
	"context"
	"fmt"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
)

// Vision performs OCR on uploaded images.
type Vision interface {
	OCRImageBytes(ctx context.Context, img []byte, mimeType string) (string, error)
	Close() error
}

type visionService struct {
	log    *logger.Logger
	client *vision.ImageAnnotatorClient
}

func NewVision(log *logger.Logger) (Vision, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "gcp.Vision")

	ctx := context.Background()
	client, err := vision.NewImageAnnotatorClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &visionService{log: slog, client: client}, nil
}

func (s *visionService) OCRImageBytes(ctx context.Context, img []byte, mimeType string) (string, error) {
	if len(img) == 0 {
		return "", fmt.Errorf("empty image")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	batch, err := s.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: img},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision annotate (mime=%s): %w", mimeType, err)
	}
	if len(batch.Responses) == 0 {
		return "", fmt.Errorf("vision annotate: empty batch response")
	}
	resp := batch.Responses[0]
	if resp.Error != nil {
		return "", fmt.Errorf("vision annotate: %s", resp.Error.GetMessage())
	}
	if resp.FullTextAnnotation == nil {
		return "", nil
	}
	return resp.FullTextAnnotation.GetText(), nil
}

func (s *visionService) Close() error {
	return s.client.Close()
}
