package types

import "strings"

// StyleLabel is the closed set of learning modalities the classifier and the
// generation pipeline dispatch on.
type StyleLabel string

const (
	StyleVisual      StyleLabel = "visual"
	StyleAuditory    StyleLabel = "auditory"
	StyleKinesthetic StyleLabel = "kinesthetic"
)

func AllStyles() []StyleLabel {
	return []StyleLabel{StyleVisual, StyleAuditory, StyleKinesthetic}
}

func ParseStyleLabel(s string) (StyleLabel, bool) {
	switch StyleLabel(strings.ToLower(strings.TrimSpace(s))) {
	case StyleVisual:
		return StyleVisual, true
	case StyleAuditory:
		return StyleAuditory, true
	case StyleKinesthetic:
		return StyleKinesthetic, true
	default:
		return "", false
	}
}

// StyleScores maps each style to a percentage. Percentages are derived from
// the classifier's pooled confidences and sum to 100 within rounding.
type StyleScores struct {
	Visual      float64 `json:"visual"`
	Auditory    float64 `json:"auditory"`
	Kinesthetic float64 `json:"kinesthetic"`
}

func (s StyleScores) Dominant() StyleLabel {
	top := StyleVisual
	best := s.Visual
	if s.Auditory > best {
		top, best = StyleAuditory, s.Auditory
	}
	if s.Kinesthetic > best {
		top = StyleKinesthetic
	}
	return top
}

func (s StyleScores) Get(label StyleLabel) float64 {
	switch label {
	case StyleVisual:
		return s.Visual
	case StyleAuditory:
		return s.Auditory
	case StyleKinesthetic:
		return s.Kinesthetic
	default:
		return 0
	}
}
