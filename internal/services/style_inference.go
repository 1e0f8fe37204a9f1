package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

// StyleInference scores one questionnaire answer per input string. Scores are
// keyed by style label; absent labels count as zero.
type StyleInference interface {
	ClassifyBatch(answers []string) ([]map[types.StyleLabel]float64, error)
	Close() error
}

// classifierManifest describes the ONNX bundle shipped alongside the binary.
// The bundle and the code evolve together, so a mismatch aborts startup
// rather than silently producing garbage percentages.
type classifierManifest struct {
	Version string   `json:"version"`
	Labels  []string `json:"labels"`
	Pooling string   `json:"pooling"`
}

func loadClassifierManifest(modelDir string) (*classifierManifest, error) {
	raw, err := os.ReadFile(filepath.Join(modelDir, "manifest.json"))
	if err != nil {
		return nil, &ModelArtifactMismatchError{Detail: fmt.Sprintf("read manifest: %v", err)}
	}
	var m classifierManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &ModelArtifactMismatchError{Detail: fmt.Sprintf("decode manifest: %v", err)}
	}
	if m.Version == "" {
		return nil, &ModelArtifactMismatchError{Detail: "manifest has no version"}
	}
	if m.Pooling != "mean" {
		return nil, &ModelArtifactMismatchError{Detail: fmt.Sprintf("unsupported pooling %q", m.Pooling)}
	}

	all := types.AllStyles()
	want := make([]string, 0, len(all))
	for _, s := range all {
		want = append(want, string(s))
	}
	got := append([]string(nil), m.Labels...)
	sort.Strings(want)
	sort.Strings(got)
	if len(got) != len(want) {
		return nil, &ModelArtifactMismatchError{Detail: fmt.Sprintf("manifest labels %v, want %v", m.Labels, want)}
	}
	for i := range want {
		if got[i] != want[i] {
			return nil, &ModelArtifactMismatchError{Detail: fmt.Sprintf("manifest labels %v, want %v", m.Labels, want)}
		}
	}
	return &m, nil
}

type hugotInference struct {
	log      *logger.Logger
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline
	version  string
}

// NewHugotInference loads the ONNX classifier bundle from modelDir and wires
// it behind an ORT session. The dir must contain the model files and a
// manifest.json matching this build's label set.
func NewHugotInference(baseLog *logger.Logger, modelDir string) (StyleInference, string, error) {
	log := baseLog.With("service", "StyleInference")

	manifest, err := loadClassifierManifest(modelDir)
	if err != nil {
		return nil, "", err
	}

	session, err := hugot.NewORTSession()
	if err != nil {
		return nil, "", fmt.Errorf("initialize inference session: %w", err)
	}

	config := hugot.TextClassificationConfig{
		ModelPath: modelDir,
		Name:      "styleClassificationPipeline",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		session.Destroy()
		return nil, "", fmt.Errorf("initialize classification pipeline: %w", err)
	}

	log.Info("style classifier loaded", "model_dir", modelDir, "version", manifest.Version)
	return &hugotInference{
		log:      log,
		session:  session,
		pipeline: pipeline,
		version:  manifest.Version,
	}, manifest.Version, nil
}

func (h *hugotInference) ClassifyBatch(answers []string) ([]map[types.StyleLabel]float64, error) {
	output, err := h.pipeline.RunPipeline(answers)
	if err != nil {
		return nil, fmt.Errorf("run classification pipeline: %w", err)
	}
	if len(output.ClassificationOutputs) != len(answers) {
		return nil, fmt.Errorf("pipeline returned %d outputs for %d answers", len(output.ClassificationOutputs), len(answers))
	}

	scores := make([]map[types.StyleLabel]float64, len(answers))
	for i, outs := range output.ClassificationOutputs {
		scores[i] = map[types.StyleLabel]float64{}
		for _, out := range outs {
			label, ok := types.ParseStyleLabel(out.Label)
			if !ok {
				return nil, fmt.Errorf("answer %d: unknown label %q", i, out.Label)
			}
			scores[i][label] = float64(out.Score)
		}
	}
	return scores, nil
}

func (h *hugotInference) Close() error {
	return h.session.Destroy()
}
