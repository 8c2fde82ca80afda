package models

import "time"

// Setting is a key/value store for admin-configurable behavior, such as the
// picking sort configuration
type Setting struct {
	Key       string    `gorm:"primaryKey;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Setting model
func (Setting) TableName() string {
	return "settings"
}

// SortConfigKey is the settings key holding the Sequencer configuration JSON
const SortConfigKey = "picking_sort_config"
