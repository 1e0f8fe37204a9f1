package services

import "fmt"

// The pipeline's error taxonomy. Fatal kinds (extraction, module generation,
// mandatory quiz, persistence) abort the upload; the rest are collected
// per-submodule and reported alongside whatever succeeded.

// InvalidInputError rejects a malformed questionnaire before any inference
// cost is incurred.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// ExtractionError means the uploaded file yielded no usable content. Always
// fatal for the whole upload.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// GenerationSchemaError means a generative call returned a payload that does
// not conform to the requested schema (or the call itself failed). Fatal for
// module and quiz generation, per-style otherwise.
type GenerationSchemaError struct {
	Stage string
	Err   error
}

func (e *GenerationSchemaError) Error() string {
	return fmt.Sprintf("generation schema error at %s: %v", e.Stage, e.Err)
}

func (e *GenerationSchemaError) Unwrap() error { return e.Err }

// SynthesisError is scoped to the podcast submodule only.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// ModelArtifactMismatchError aborts startup when the classifier bundle's
// manifest does not match what this build expects.
type ModelArtifactMismatchError struct {
	Detail string
}

func (e *ModelArtifactMismatchError) Error() string {
	return fmt.Sprintf("model artifact mismatch: %s", e.Detail)
}

// PersistenceError wraps a failed persistence handoff. The cost report
// captured up to that point is still surfaced for audit.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
