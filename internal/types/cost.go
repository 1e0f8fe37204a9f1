package types

// CostEntry is the resource usage of one external-capability call, tagged by
// the pipeline stage or submodule that made it.
type CostEntry struct {
	Stage            string  `json:"stage"`
	InputTokens      int     `json:"input_tokens,omitempty"`
	OutputTokens     int     `json:"output_tokens,omitempty"`
	CharsSynthesized int     `json:"chars_synthesized,omitempty"`
	AudioSeconds     float64 `json:"audio_seconds,omitempty"`
}

// CostReport is the finalized per-run aggregate handed to persistence.
type CostReport struct {
	Entries               []CostEntry `json:"entries"`
	TotalInputTokens      int         `json:"total_input_tokens"`
	TotalOutputTokens     int         `json:"total_output_tokens"`
	TotalCharsSynthesized int         `json:"total_chars_synthesized"`
	TotalAudioSeconds     float64     `json:"total_audio_seconds"`
}
