package models

import (
	"time"

	"gorm.io/datatypes"
)

// BatchSnapshot persists the frozen item sequence for a batch so that
// progress pointers stay valid while claims change underneath. One row per
// batch; the generation counter makes staleness detectable.
type BatchSnapshot struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	BatchID    uint           `gorm:"not null;uniqueIndex" json:"batch_id"`
	Generation int            `gorm:"not null;default:1" json:"generation"`
	Items      datatypes.JSON `json:"items"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TableName specifies the table name for BatchSnapshot model
func (BatchSnapshot) TableName() string {
	return "batch_snapshots"
}
