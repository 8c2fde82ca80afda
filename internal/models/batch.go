package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PickingMode defines how a batch walks its item sequence
type PickingMode string

const (
	ModeSequential   PickingMode = "Sequential"   // One order at a time to completion
	ModeConsolidated PickingMode = "Consolidated" // One physical pick satisfies many orders
)

// BatchStatus defines possible batch lifecycle states
type BatchStatus string

const (
	BatchStatusCreated   BatchStatus = "Created"   // Claims exist, no picking yet
	BatchStatusPicking   BatchStatus = "picking"   // Assigned picker progressing through the frozen sequence
	BatchStatusCompleted BatchStatus = "Completed" // Terminal
)

// ActiveBatchStatuses are the states whose claims block other picking paths.
// Locks held by completed batches are not conflicts.
var ActiveBatchStatuses = []BatchStatus{BatchStatusCreated, BatchStatusPicking}

// Batch represents a planned unit of picking work grouping order lines by
// location criteria, worked by one assigned picker through a fixed sequence
type Batch struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:100;not null" json:"name"`
	BatchNumber string `gorm:"size:20;uniqueIndex" json:"batch_number"` // BATCH-YYYYMMDD-###

	// Filter criteria, comma-joined sets. Parsed only through picking.ParseCriteria.
	Zones     string `gorm:"size:500;not null" json:"zones"`
	Corridors string `gorm:"size:500" json:"corridors"`
	UnitTypes string `gorm:"size:500" json:"unit_types"`
	OrderNos  string `gorm:"size:2000" json:"order_nos"`

	PickingMode PickingMode `gorm:"size:20;not null" json:"picking_mode"`
	Status      BatchStatus `gorm:"size:20;default:Created;index" json:"status"`

	CreatedBy  string `gorm:"size:64;not null" json:"created_by"`
	AssignedTo string `gorm:"size:64" json:"assigned_to,omitempty"`

	// Progress pointers into the frozen sequence
	CurrentOrderIndex int `gorm:"default:0" json:"current_order_index"` // Sequential mode only
	CurrentItemIndex  int `gorm:"default:0" json:"current_item_index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Orders []BatchOrder `gorm:"foreignKey:BatchID" json:"orders,omitempty"`
}

// TableName specifies the table name for Batch model
func (Batch) TableName() string {
	return "batches"
}

// BeforeCreate generates the batch number before creating
func (b *Batch) BeforeCreate(tx *gorm.DB) error {
	if b.BatchNumber == "" {
		number, err := NextBatchNumber(tx)
		if err != nil {
			return err
		}
		b.BatchNumber = number
	}
	if b.Name == "" {
		b.Name = b.BatchNumber
	}
	return nil
}

// IsActive reports whether the batch's claims should block other picking paths
func (b *Batch) IsActive() bool {
	for _, s := range ActiveBatchStatuses {
		if b.Status == s {
			return true
		}
	}
	return false
}

// NextBatchNumber generates a unique batch number in the format BATCH-YYYYMMDD-###
func NextBatchNumber(tx *gorm.DB) (string, error) {
	prefix := "BATCH-" + time.Now().UTC().Format("20060102") + "-"

	var maxSeq *int
	err := tx.Model(&Batch{}).
		Where("batch_number LIKE ?", prefix+"%").
		Select(fmt.Sprintf("MAX(CAST(SUBSTR(batch_number, %d, 3) AS INTEGER))", len(prefix)+1)).
		Scan(&maxSeq).Error
	if err != nil {
		// Fallback to a timestamp-based number rather than failing the create
		return "BATCH-" + time.Now().UTC().Format("20060102-150405"), nil
	}

	next := 1
	if maxSeq != nil {
		next = *maxSeq + 1
	}
	number := fmt.Sprintf("%s%03d", prefix, next)

	// Re-check uniqueness in case of a concurrent create
	var count int64
	tx.Model(&Batch{}).Where("batch_number = ?", number).Count(&count)
	if count > 0 {
		number = fmt.Sprintf("%s%03d", prefix, next+1)
	}

	return number, nil
}

// BatchOrder maps an order into a batch and tracks its completion within
// the batch's scope
type BatchOrder struct {
	BatchID     uint   `gorm:"primaryKey" json:"batch_id"`
	OrderNo     string `gorm:"primaryKey;size:50" json:"order_no"`
	IsCompleted bool   `gorm:"default:false" json:"is_completed"`

	// Relations
	Order Order `gorm:"foreignKey:OrderNo" json:"order,omitempty"`
}

// TableName specifies the table name for BatchOrder model
func (BatchOrder) TableName() string {
	return "batch_orders"
}

// BatchPickedItem records the quantity a batch allocated to one order line.
// The composite unique index makes duplicate ledger rows impossible at the
// storage layer; the state machine updates in place on re-pick.
type BatchPickedItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BatchID   uint      `gorm:"not null;uniqueIndex:idx_batch_order_item" json:"batch_id"`
	OrderNo   string    `gorm:"size:50;not null;uniqueIndex:idx_batch_order_item" json:"order_no"`
	ItemCode  string    `gorm:"size:50;not null;uniqueIndex:idx_batch_order_item" json:"item_code"`
	PickedQty int       `gorm:"not null" json:"picked_qty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for BatchPickedItem model
func (BatchPickedItem) TableName() string {
	return "batch_picked_items"
}
