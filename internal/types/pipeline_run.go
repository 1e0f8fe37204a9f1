package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Pipeline stages, in order. A run parked in any non-terminal stage with
// status "failed" names the stage that killed it.
const (
	StageReceived        = "received"
	StageExtracted       = "extracted"
	StageModuleGenerated = "module_generated"
	StageFanOut          = "submodules_fan_out"
	StageJoined          = "submodules_joined"
	StagePersisted       = "persisted"
)

const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// PipelineRun is the audit record for one ProcessUpload invocation: stage
// transitions, terminal status, per-style failures, and the finalized cost
// report. The cost report is written even when the run fails.
type PipelineRun struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	UploadID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"upload_id"`
	ModuleID     *uuid.UUID     `gorm:"type:uuid;index" json:"module_id,omitempty"`
	Stage        string         `gorm:"column:stage;not null" json:"stage"`
	Status       string         `gorm:"column:status;not null" json:"status"`
	Error        string         `gorm:"column:error" json:"error,omitempty"`
	FailedStyles datatypes.JSON `gorm:"column:failed_styles;type:jsonb" json:"failed_styles,omitempty"`
	CostReport   datatypes.JSON `gorm:"column:cost_report;type:jsonb" json:"cost_report,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PipelineRun) TableName() string { return "pipeline_run" }
