package models

import (
	"time"
)

// PickStatus defines possible pick statuses for an order line
type PickStatus string

const (
	PickStatusNotPicked      PickStatus = "not_picked"      // Awaiting picking
	PickStatusPicked         PickStatus = "picked"          // Confirmed picked
	PickStatusReset          PickStatus = "reset"           // Returned to the pool by an admin
	PickStatusSkippedPending PickStatus = "skipped_pending" // Skipped, must be resolved before batch close
)

// ClaimableStatuses are the pick statuses in which a line may be claimed by a batch.
var ClaimableStatuses = []PickStatus{PickStatusNotPicked, PickStatusReset, PickStatusSkippedPending}

// Order represents a customer order header
type Order struct {
	OrderNo      string     `gorm:"primaryKey;size:50" json:"order_no"`
	CustomerName string     `gorm:"index" json:"customer_name"`
	Routing      *float64   `json:"routing,omitempty"` // Delivery routing priority, higher picks first in Sequential mode
	TotalItems   int        `json:"total_items"`
	TotalWeight  float64    `json:"total_weight"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Relations
	Lines []OrderLine `gorm:"foreignKey:OrderNo" json:"lines,omitempty"`
}

// TableName specifies the table name for Order model
func (Order) TableName() string {
	return "orders"
}

// OrderLine represents one item entry within an order, the unit of claiming and picking
type OrderLine struct {
	OrderNo  string `gorm:"primaryKey;size:50" json:"order_no"`
	ItemCode string `gorm:"primaryKey;size:50" json:"item_code"`

	ItemName string `gorm:"size:200" json:"item_name"`
	Barcode  string `gorm:"size:100" json:"barcode"`
	Zone     string `gorm:"size:50;index" json:"zone"`
	Corridor string `gorm:"size:10" json:"corridor"` // Keeps leading zeros ("09", "10")
	Location string `gorm:"size:100" json:"location"` // CORRIDOR-AISLE-LEVELBIN, e.g. "10-05-A03"
	UnitType string `gorm:"size:50" json:"unit_type"`
	Pack     string `gorm:"size:50" json:"pack"`

	Qty       int  `json:"qty"`
	PickedQty int  `json:"picked_qty"`
	IsPicked  bool `gorm:"default:false" json:"is_picked"`

	PickStatus PickStatus `gorm:"size:20;default:not_picked;index" json:"pick_status"`

	// Skip tracking
	SkipReason string     `gorm:"size:500" json:"skip_reason,omitempty"`
	SkippedAt  *time.Time `json:"skipped_at,omitempty"`
	SkipCount  int        `gorm:"default:0" json:"skip_count"`

	// Admin reset tracking
	ResetBy   string     `gorm:"size:64" json:"reset_by,omitempty"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
	ResetNote string     `gorm:"size:500" json:"reset_note,omitempty"`

	// Claim ownership: set by exactly one batch at a time. A line with a
	// non-nil owner may only be picked through that batch.
	LockedByBatchID *uint `gorm:"index" json:"locked_by_batch_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for OrderLine model
func (OrderLine) TableName() string {
	return "order_lines"
}

// Claimable reports whether the line is currently eligible for a batch claim
func (l *OrderLine) Claimable() bool {
	if l.IsPicked || l.LockedByBatchID != nil {
		return false
	}
	for _, s := range ClaimableStatuses {
		if l.PickStatus == s {
			return true
		}
	}
	return false
}
