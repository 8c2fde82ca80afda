package models

import "time"

// PickException records a shortfall between required and actually picked or
// allocated quantity for one order line
type PickException struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrderNo        string    `gorm:"size:50;not null;index" json:"order_no"`
	ItemCode       string    `gorm:"size:50;not null" json:"item_code"`
	ExpectedQty    int       `gorm:"not null" json:"expected_qty"`
	PickedQty      int       `gorm:"not null" json:"picked_qty"`
	PickerUsername string    `gorm:"size:64;not null" json:"picker_username"`
	Reason         string    `gorm:"size:500" json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for PickException model
func (PickException) TableName() string {
	return "pick_exceptions"
}
