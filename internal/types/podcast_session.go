package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PodcastLine is one (speaker, utterance) pair of a generated podcast script.
type PodcastLine struct {
	Speaker   string `json:"speaker"`
	Utterance string `json:"utterance"`
}

// TranscriptSegment is one time-aligned span of the narrated audio.
type TranscriptSegment struct {
	Text     string  `json:"text"`
	Speaker  string  `json:"speaker,omitempty"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
}

// PodcastSession is the auditory submodule: the generated script, the
// synthesized audio asset, and its aligned transcript.
type PodcastSession struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ModuleID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"module_id"`
	Module      *Module        `gorm:"constraint:OnDelete:CASCADE;foreignKey:ModuleID;references:ID" json:"module,omitempty"`
	Script      datatypes.JSON `gorm:"column:script;type:jsonb;not null" json:"script"`
	AudioKey    string         `gorm:"column:audio_key" json:"audio_key"`
	AudioURL    string         `gorm:"column:audio_url" json:"audio_url"`
	Transcript  datatypes.JSON `gorm:"column:transcript;type:jsonb" json:"transcript"`
	DurationSec float64        `gorm:"column:duration_sec" json:"duration_sec"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PodcastSession) TableName() string { return "podcast_session" }
