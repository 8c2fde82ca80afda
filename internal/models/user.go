package models

import (
	"time"

	"gorm.io/gorm"
)

// UserAuth represents a user in the system
type UserAuth struct {
	ID        string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Username  string     `gorm:"unique;not null" json:"username"`
	Password  string     `gorm:"not null" json:"-"`
	Name      string     `json:"name,omitempty"`
	Role      string     `gorm:"default:'picker'" json:"role"` // picker | warehouse_manager | admin
	IsActive  bool       `gorm:"default:true" json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for UserAuth model
func (UserAuth) TableName() string {
	return "user_auths"
}

// CanManageBatches reports whether the user may create, edit or delete batches
func (u *UserAuth) CanManageBatches() bool {
	return u.Role == "admin" || u.Role == "warehouse_manager"
}
