package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Flashcard struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
}

// FlashcardSet is the kinesthetic submodule: an ordered deck of prompt/answer
// pairs derived from the module's content.
type FlashcardSet struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ModuleID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"module_id"`
	Module    *Module        `gorm:"constraint:OnDelete:CASCADE;foreignKey:ModuleID;references:ID" json:"module,omitempty"`
	Cards     datatypes.JSON `gorm:"column:cards;type:jsonb;not null" json:"cards"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (FlashcardSet) TableName() string { return "flashcard_set" }
