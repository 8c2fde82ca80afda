package picking

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/velora-wms/pickflow/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Freeze persists the ordered item list for a batch and bumps the snapshot
// generation. The frozen view decouples "what to show next" from the live
// claim state, so an admin editing another batch cannot shift a picker's
// position mid-session. Progress pointers are only meaningful against the
// generation they were advanced under.
func Freeze(tx *gorm.DB, batchID uint, items []SequenceItem) (int, error) {
	payload, err := json.Marshal(items)
	if err != nil {
		return 0, fmt.Errorf("encoding snapshot for batch %d: %w", batchID, err)
	}

	var snap models.BatchSnapshot
	err = tx.Where("batch_id = ?", batchID).First(&snap).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		snap = models.BatchSnapshot{
			BatchID:    batchID,
			Generation: 1,
			Items:      datatypes.JSON(payload),
		}
		if err := tx.Create(&snap).Error; err != nil {
			return 0, fmt.Errorf("creating snapshot for batch %d: %w", batchID, err)
		}
	case err != nil:
		return 0, fmt.Errorf("loading snapshot for batch %d: %w", batchID, err)
	default:
		snap.Generation++
		snap.Items = datatypes.JSON(payload)
		if err := tx.Save(&snap).Error; err != nil {
			return 0, fmt.Errorf("updating snapshot for batch %d: %w", batchID, err)
		}
	}

	log.Printf("🧊 Froze %d items for batch %d (generation %d)", len(items), batchID, snap.Generation)
	return snap.Generation, nil
}

// LoadSnapshot returns the frozen sequence and its generation. A batch
// without a snapshot has no session in progress.
func LoadSnapshot(db *gorm.DB, batchID uint) ([]SequenceItem, int, error) {
	var snap models.BatchSnapshot
	err := db.Where("batch_id = ?", batchID).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("loading snapshot for batch %d: %w", batchID, err)
	}

	var items []SequenceItem
	if err := json.Unmarshal(snap.Items, &items); err != nil {
		return nil, 0, fmt.Errorf("decoding snapshot for batch %d: %w", batchID, err)
	}
	return items, snap.Generation, nil
}

// Invalidate drops a batch's frozen sequence, forcing the next session
// access to re-derive it from current claims. Triggered by criteria edits,
// mode switches and administrative resets.
func Invalidate(tx *gorm.DB, batchID uint) error {
	res := tx.Where("batch_id = ?", batchID).Delete(&models.BatchSnapshot{})
	if res.Error != nil {
		return fmt.Errorf("invalidating snapshot for batch %d: %w", batchID, res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("🧹 Invalidated snapshot for batch %d", batchID)
	}
	return nil
}
