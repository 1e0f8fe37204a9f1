package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StyleProfile records the latest questionnaire classification for a user.
type StyleProfile struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	User         *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Visual       float64        `gorm:"column:visual;not null" json:"visual"`
	Auditory     float64        `gorm:"column:auditory;not null" json:"auditory"`
	Kinesthetic  float64        `gorm:"column:kinesthetic;not null" json:"kinesthetic"`
	Dominant     string         `gorm:"column:dominant;not null" json:"dominant"`
	ModelVersion string         `gorm:"column:model_version;not null" json:"model_version"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (StyleProfile) TableName() string { return "style_profile" }

func (p *StyleProfile) Scores() StyleScores {
	return StyleScores{Visual: p.Visual, Auditory: p.Auditory, Kinesthetic: p.Kinesthetic}
}
