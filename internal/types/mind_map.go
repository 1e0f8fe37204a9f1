package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MindMapNode is one node of the visual submodule's tree. Parent is the index
// of the parent node within the set, or -1 for the single root.
type MindMapNode struct {
	Index  int    `json:"index"`
	Label  string `json:"label"`
	Parent int    `json:"parent"`
}

// MindMap is the visual submodule. Invariant: the node set forms a tree with
// exactly one root and no cycles (validated before persistence).
type MindMap struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ModuleID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"module_id"`
	Module    *Module        `gorm:"constraint:OnDelete:CASCADE;foreignKey:ModuleID;references:ID" json:"module,omitempty"`
	Nodes     datatypes.JSON `gorm:"column:nodes;type:jsonb;not null" json:"nodes"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MindMap) TableName() string { return "mind_map" }
