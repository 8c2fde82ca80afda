package picking

import (
	"fmt"
	"log"
	"time"

	"github.com/velora-wms/pickflow/internal/models"
	"gorm.io/gorm"
)

// PickResult reports the state machine's position after a confirm or skip
type PickResult struct {
	BatchID     uint         `json:"batch_id"`
	ItemIndex   int          `json:"item_index"`
	TotalItems  int          `json:"total_items"`
	Generation  int          `json:"generation"`
	OrderIndex  int          `json:"order_index"`
	Completed   bool         `json:"completed"`
	Reinjected  bool         `json:"reinjected"` // Skipped items re-frozen as a new sequence
	Allocations []Allocation `json:"allocations,omitempty"`
}

// ConfirmPick records the pick of the item at the given index of the frozen
// sequence. The index and generation sent by the client must match the
// batch's current position: a mismatch means the client is looking at a
// superseded sequence and the confirm is rejected, never applied elsewhere.
//
// In Sequential mode the item maps to one order line; a quantity below the
// requirement records an exception. In Consolidated mode the physically
// picked quantity is allocated across the source lines in order number
// order, and every shortfall records an exception against its order.
func (e *Engine) ConfirmPick(batchID uint, picker string, itemIndex, generation, pickedQty int, reason string) (*PickResult, error) {
	if pickedQty < 0 {
		return nil, fmt.Errorf("picked quantity %d is negative: %w", pickedQty, ErrInvalidState)
	}

	var result *PickResult
	var batchNumber string
	err := e.db.Transaction(func(tx *gorm.DB) error {
		batch, items, err := loadSession(tx, batchID, picker, itemIndex, generation)
		if err != nil {
			return err
		}
		item := items[itemIndex]

		var allocations []Allocation
		if batch.PickingMode == models.ModeConsolidated {
			allocations, err = applyConsolidatedPick(tx, batch, item, pickedQty, picker, reason)
		} else {
			err = applySequentialPick(tx, batch, item, pickedQty, picker, reason)
		}
		if err != nil {
			return err
		}

		batch.CurrentItemIndex++
		result, err = advance(tx, batch, len(items), generation)
		if err != nil {
			return err
		}
		result.Allocations = allocations
		batchNumber = batch.BatchNumber
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(EventPickConfirmed, batchID, batchNumber, map[string]any{
		"item_index":  result.ItemIndex,
		"total_items": result.TotalItems,
		"completed":   result.Completed,
	})
	if result.Completed {
		e.notify(EventBatchCompleted, batchID, batchNumber, nil)
	}
	return result, nil
}

// SkipCurrent defers the item at the given index: its source lines move to
// skipped_pending but stay locked to the batch, so no other batch can grab
// the deferred work. The pointer advances past the item; once the picker
// reaches the end of the sequence the skipped items come back as a fresh
// frozen sequence, and the batch cannot complete until each one is either
// picked or force-resolved.
func (e *Engine) SkipCurrent(batchID uint, picker string, itemIndex, generation int, reason string) (*PickResult, error) {
	var result *PickResult
	var batchNumber string
	err := e.db.Transaction(func(tx *gorm.DB) error {
		batch, items, err := loadSession(tx, batchID, picker, itemIndex, generation)
		if err != nil {
			return err
		}
		item := items[itemIndex]

		now := time.Now().UTC()
		for _, src := range item.Sources {
			res := tx.Model(&models.OrderLine{}).
				Where("order_no = ? AND item_code = ?", src.OrderNo, src.ItemCode).
				Where("locked_by_batch_id = ?", batch.ID).
				Where("is_picked = ?", false).
				Updates(map[string]any{
					"pick_status": models.PickStatusSkippedPending,
					"skip_reason": reason,
					"skipped_at":  now,
					"skip_count":  gorm.Expr("skip_count + 1"),
				})
			if res.Error != nil {
				return fmt.Errorf("skipping line %s-%s: %w", src.OrderNo, src.ItemCode, res.Error)
			}
			if res.RowsAffected != 1 {
				return fmt.Errorf("skip of %s-%s affected %d rows: %w", src.OrderNo, src.ItemCode, res.RowsAffected, ErrIntegrityViolation)
			}
		}

		log.Printf("⏭️  Skipped item %s in batch %s: %s", item.ItemCode, batch.BatchNumber, reason)

		batch.CurrentItemIndex++
		result, err = advance(tx, batch, len(items), generation)
		if err != nil {
			return err
		}
		batchNumber = batch.BatchNumber
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(EventItemSkipped, batchID, batchNumber, map[string]any{
		"item_index": result.ItemIndex,
		"reason":     reason,
	})
	return result, nil
}

// ForceComplete resolves every outstanding line of a batch as an exception
// and moves the batch to Completed. The supervisor override for damaged
// stock, missing items or an abandoned session; the exception trail keeps
// the shortfalls visible downstream.
func (e *Engine) ForceComplete(batchID uint, actor string) (*ReconciliationSummary, error) {
	var summary *ReconciliationSummary
	var batchNumber string
	err := e.db.Transaction(func(tx *gorm.DB) error {
		batch, err := lockBatch(tx, batchID)
		if err != nil {
			return err
		}
		if batch.Status == models.BatchStatusCompleted {
			return &StateError{Op: "force-complete", Status: string(batch.Status)}
		}

		unresolved, err := claimedLines(tx, batch.ID, false)
		if err != nil {
			return err
		}
		for _, line := range unresolved {
			exc := models.PickException{
				OrderNo:        line.OrderNo,
				ItemCode:       line.ItemCode,
				ExpectedQty:    line.Qty,
				PickedQty:      line.PickedQty,
				PickerUsername: actor,
				Reason:         "force-completed with item unresolved",
			}
			if err := tx.Create(&exc).Error; err != nil {
				return fmt.Errorf("recording force-complete exception for %s-%s: %w", line.OrderNo, line.ItemCode, err)
			}
		}

		if err := completeBatch(tx, batch); err != nil {
			return err
		}
		log.Printf("⚠️  Force-completed batch %s by %s: %d unresolved lines written off", batch.BatchNumber, actor, len(unresolved))

		summary, err = reconcile(tx, batch.ID)
		if err != nil {
			return err
		}
		batchNumber = batch.BatchNumber
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(EventBatchCompleted, batchID, batchNumber, map[string]any{"forced": true})
	return summary, nil
}

// loadSession validates the caller's view of an in-progress batch: status,
// picker, snapshot generation and item position must all line up
func loadSession(tx *gorm.DB, batchID uint, picker string, itemIndex, generation int) (*models.Batch, []SequenceItem, error) {
	batch, err := lockBatch(tx, batchID)
	if err != nil {
		return nil, nil, err
	}
	if batch.Status != models.BatchStatusPicking {
		return nil, nil, &StateError{Op: "pick", Status: string(batch.Status)}
	}
	if picker != "" && batch.AssignedTo != "" && batch.AssignedTo != picker {
		return nil, nil, fmt.Errorf("batch %s is assigned to %s: %w", batch.BatchNumber, batch.AssignedTo, ErrInvalidState)
	}

	items, currentGen, err := LoadSnapshot(tx, batchID)
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("batch %s has no frozen sequence: %w", batch.BatchNumber, ErrInvalidState)
	}
	if generation != currentGen {
		return nil, nil, fmt.Errorf("sequence generation %d superseded by %d: %w", generation, currentGen, ErrInvalidState)
	}
	if itemIndex != batch.CurrentItemIndex {
		return nil, nil, fmt.Errorf("item index %d does not match current position %d: %w", itemIndex, batch.CurrentItemIndex, ErrInvalidState)
	}
	if itemIndex >= len(items) {
		return nil, nil, fmt.Errorf("item index %d beyond sequence of %d: %w", itemIndex, len(items), ErrInvalidState)
	}
	return batch, items, nil
}

// applySequentialPick resolves a single-line item. A quantity differing from
// the requirement, or an explicit reason, records an exception; the line is
// still marked picked so the batch keeps moving.
func applySequentialPick(tx *gorm.DB, batch *models.Batch, item SequenceItem, pickedQty int, picker, reason string) error {
	if err := markLinePicked(tx, batch.ID, item.OrderNo, item.ItemCode, pickedQty); err != nil {
		return err
	}
	if err := upsertLedger(tx, batch.ID, item.OrderNo, item.ItemCode, pickedQty); err != nil {
		return err
	}

	if pickedQty != item.TotalQty || reason != "" {
		exc := models.PickException{
			OrderNo:        item.OrderNo,
			ItemCode:       item.ItemCode,
			ExpectedQty:    item.TotalQty,
			PickedQty:      pickedQty,
			PickerUsername: picker,
			Reason:         reason,
		}
		if err := tx.Create(&exc).Error; err != nil {
			return fmt.Errorf("recording pick exception for %s-%s: %w", item.OrderNo, item.ItemCode, err)
		}
	}

	return settleOrderMembership(tx, batch, item.OrderNo)
}

// applyConsolidatedPick splits the physically picked quantity across the
// item's source lines. Every line resolves in this pick: a line allocated
// less than required is marked picked at its allocated quantity with an
// exception for the shortfall, so the pointer never revisits the location.
func applyConsolidatedPick(tx *gorm.DB, batch *models.Batch, item SequenceItem, pickedQty int, picker, reason string) ([]Allocation, error) {
	demands := make([]Demand, 0, len(item.Sources))
	for _, src := range item.Sources {
		demands = append(demands, Demand{OrderNo: src.OrderNo, ItemCode: src.ItemCode, Required: src.Qty})
	}
	result := Allocate(pickedQty, demands)

	for _, alloc := range result.Allocations {
		if err := markLinePicked(tx, batch.ID, alloc.OrderNo, alloc.ItemCode, alloc.Allocated); err != nil {
			return nil, err
		}
		if err := upsertLedger(tx, batch.ID, alloc.OrderNo, alloc.ItemCode, alloc.Allocated); err != nil {
			return nil, err
		}
		if alloc.Shortfall > 0 || reason != "" {
			exc := models.PickException{
				OrderNo:        alloc.OrderNo,
				ItemCode:       alloc.ItemCode,
				ExpectedQty:    alloc.Required,
				PickedQty:      alloc.Allocated,
				PickerUsername: picker,
				Reason:         reason,
			}
			if err := tx.Create(&exc).Error; err != nil {
				return nil, fmt.Errorf("recording allocation exception for %s-%s: %w", alloc.OrderNo, alloc.ItemCode, err)
			}
		}
		if err := settleOrderMembership(tx, batch, alloc.OrderNo); err != nil {
			return nil, err
		}
	}

	if result.TotalShortfall > 0 {
		log.Printf("⚠️  Short pick of %s in batch %s: %d allocated, %d short",
			item.ItemCode, batch.BatchNumber, result.TotalAllocated, result.TotalShortfall)
	}
	return result.Allocations, nil
}

// markLinePicked transitions one claimed line to picked. Exactly one row
// must change; anything else means the line was released, re-claimed or
// already resolved underneath us and the transaction aborts.
func markLinePicked(tx *gorm.DB, batchID uint, orderNo, itemCode string, pickedQty int) error {
	res := tx.Model(&models.OrderLine{}).
		Where("order_no = ? AND item_code = ?", orderNo, itemCode).
		Where("locked_by_batch_id = ?", batchID).
		Where("is_picked = ?", false).
		Updates(map[string]any{
			"picked_qty":  pickedQty,
			"is_picked":   true,
			"pick_status": models.PickStatusPicked,
			"skip_reason": "",
			"skipped_at":  nil,
		})
	if res.Error != nil {
		return fmt.Errorf("marking %s-%s picked: %w", orderNo, itemCode, res.Error)
	}
	if res.RowsAffected != 1 {
		log.Printf("❌ Integrity: pick of %s-%s in batch %d affected %d rows", orderNo, itemCode, batchID, res.RowsAffected)
		return fmt.Errorf("pick of %s-%s affected %d rows: %w", orderNo, itemCode, res.RowsAffected, ErrIntegrityViolation)
	}
	return nil
}

// upsertLedger records the quantity a batch allocated to one order line.
// Re-picking the same line updates the existing row; the composite unique
// index backstops the update-first logic against races.
func upsertLedger(tx *gorm.DB, batchID uint, orderNo, itemCode string, pickedQty int) error {
	res := tx.Model(&models.BatchPickedItem{}).
		Where("batch_id = ? AND order_no = ? AND item_code = ?", batchID, orderNo, itemCode).
		Update("picked_qty", pickedQty)
	if res.Error != nil {
		return fmt.Errorf("updating ledger for %s-%s: %w", orderNo, itemCode, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	entry := models.BatchPickedItem{
		BatchID:   batchID,
		OrderNo:   orderNo,
		ItemCode:  itemCode,
		PickedQty: pickedQty,
	}
	if err := tx.Create(&entry).Error; err != nil {
		log.Printf("❌ Integrity: duplicate ledger entry for batch %d line %s-%s: %v", batchID, orderNo, itemCode, err)
		return fmt.Errorf("creating ledger entry for %s-%s: %w", orderNo, itemCode, ErrIntegrityViolation)
	}
	return nil
}

// settleOrderMembership marks the order complete within the batch once none
// of its claimed lines remain unresolved, and in Sequential mode moves the
// order pointer to the next order with outstanding work. The scan jumps
// rather than increments: an order whose remaining lines were all resolved
// out of sequence must not leave the pointer parked on it.
func settleOrderMembership(tx *gorm.DB, batch *models.Batch, orderNo string) error {
	var remaining int64
	err := tx.Model(&models.OrderLine{}).
		Where("order_no = ?", orderNo).
		Where("locked_by_batch_id = ?", batch.ID).
		Where("is_picked = ?", false).
		Count(&remaining).Error
	if err != nil {
		return fmt.Errorf("counting remaining lines for order %s: %w", orderNo, err)
	}
	if remaining > 0 {
		return nil
	}

	err = tx.Model(&models.BatchOrder{}).
		Where("batch_id = ? AND order_no = ?", batch.ID, orderNo).
		Update("is_completed", true).Error
	if err != nil {
		return fmt.Errorf("completing order %s in batch %d: %w", orderNo, batch.ID, err)
	}
	log.Printf("✅ Order %s completed in batch %s", orderNo, batch.BatchNumber)

	if batch.PickingMode == models.ModeSequential {
		next, err := findNextIncompleteOrderIndex(tx, batch)
		if err != nil {
			return err
		}
		batch.CurrentOrderIndex = next
	}
	return nil
}

// findNextIncompleteOrderIndex returns the position, in frozen routing
// priority, of the first order at or after the current pointer that still
// has unresolved lines; past the end when none remain
func findNextIncompleteOrderIndex(tx *gorm.DB, batch *models.Batch) (int, error) {
	memberships, err := sortedBatchOrders(tx, batch.ID)
	if err != nil {
		return 0, err
	}
	for i := batch.CurrentOrderIndex; i < len(memberships); i++ {
		if !memberships[i].IsCompleted {
			return i, nil
		}
	}
	return len(memberships), nil
}

// advance persists the moved pointer and, at the end of the sequence, either
// re-freezes the deferred work or completes the batch
func advance(tx *gorm.DB, batch *models.Batch, total, generation int) (*PickResult, error) {
	result := &PickResult{
		BatchID:    batch.ID,
		ItemIndex:  batch.CurrentItemIndex,
		TotalItems: total,
		Generation: generation,
		OrderIndex: batch.CurrentOrderIndex,
	}

	if batch.CurrentItemIndex < total {
		return result, tx.Save(batch).Error
	}

	completed, reinjected, newTotal, newGen, err := finishOrReinject(tx, batch)
	if err != nil {
		return nil, err
	}
	result.Completed = completed
	result.Reinjected = reinjected
	if reinjected {
		result.ItemIndex = 0
		result.OrderIndex = 0
		result.TotalItems = newTotal
		result.Generation = newGen
	}
	return result, tx.Save(batch).Error
}

// finishOrReinject is the completion gate at the end of a frozen sequence.
// Deferred or otherwise unresolved lines come back as a fresh sequence under
// a new generation; only a batch with nothing left to resolve completes.
func finishOrReinject(tx *gorm.DB, batch *models.Batch) (completed, reinjected bool, total, generation int, err error) {
	remaining, err := claimedLines(tx, batch.ID, false)
	if err != nil {
		return false, false, 0, 0, err
	}

	if len(remaining) > 0 {
		sequence, err := buildSequence(tx, batch)
		if err != nil {
			return false, false, 0, 0, err
		}
		generation, err = Freeze(tx, batch.ID, sequence)
		if err != nil {
			return false, false, 0, 0, err
		}
		batch.CurrentItemIndex = 0
		batch.CurrentOrderIndex = 0
		log.Printf("🔁 Re-froze %d deferred items for batch %s (generation %d)", len(sequence), batch.BatchNumber, generation)
		return false, true, len(sequence), generation, nil
	}

	if err := completeBatch(tx, batch); err != nil {
		return false, false, 0, 0, err
	}
	return true, false, 0, 0, nil
}

// completeBatch is the single terminal transition: memberships closed,
// unpicked claims released, picked claims kept for attribution, snapshot
// dropped
func completeBatch(tx *gorm.DB, batch *models.Batch) error {
	err := tx.Model(&models.BatchOrder{}).
		Where("batch_id = ?", batch.ID).
		Update("is_completed", true).Error
	if err != nil {
		return fmt.Errorf("closing memberships of batch %d: %w", batch.ID, err)
	}

	if _, err := Release(tx, batch.ID, true); err != nil {
		return err
	}
	if err := Invalidate(tx, batch.ID); err != nil {
		return err
	}

	batch.Status = models.BatchStatusCompleted
	if err := tx.Save(batch).Error; err != nil {
		return fmt.Errorf("completing batch %d: %w", batch.ID, err)
	}
	log.Printf("🏁 Batch %s completed", batch.BatchNumber)
	return nil
}

// OrderReconciliation compares one order's requirement against what the
// batch actually delivered
type OrderReconciliation struct {
	OrderNo     string `json:"order_no"`
	RequiredQty int    `json:"required_qty"`
	PickedQty   int    `json:"picked_qty"`
	Lines       int    `json:"lines"`
	LinesPicked int    `json:"lines_picked"`
	Complete    bool   `json:"complete"`
}

// ReconciliationSummary is the per-order outcome of a batch
type ReconciliationSummary struct {
	BatchID     uint                  `json:"batch_id"`
	BatchNumber string                `json:"batch_number"`
	Orders      []OrderReconciliation `json:"orders"`
	TotalPicked int                   `json:"total_picked"`
	Exceptions  int64                 `json:"exceptions"`
}

// Summary reconciles a batch's ledger against its orders' requirements
func (e *Engine) Summary(batchID uint) (*ReconciliationSummary, error) {
	return reconcile(e.db, batchID)
}

func reconcile(db *gorm.DB, batchID uint) (*ReconciliationSummary, error) {
	var batch models.Batch
	if err := db.First(&batch, batchID).Error; err != nil {
		return nil, fmt.Errorf("batch %d: %w", batchID, ErrNotFound)
	}

	memberships, err := sortedBatchOrders(db, batchID)
	if err != nil {
		return nil, err
	}

	var ledger []models.BatchPickedItem
	if err := db.Where("batch_id = ?", batchID).Find(&ledger).Error; err != nil {
		return nil, fmt.Errorf("loading ledger for batch %d: %w", batchID, err)
	}
	pickedByOrder := map[string]int{}
	linesByOrder := map[string]int{}
	for _, entry := range ledger {
		pickedByOrder[entry.OrderNo] += entry.PickedQty
		linesByOrder[entry.OrderNo]++
	}

	summary := &ReconciliationSummary{BatchID: batchID, BatchNumber: batch.BatchNumber}
	for _, membership := range memberships {
		var row struct {
			RequiredQty int
			Lines       int
		}
		err := db.Model(&models.OrderLine{}).
			Select("COALESCE(SUM(qty), 0) AS required_qty, COUNT(*) AS lines").
			Where("order_no = ?", membership.OrderNo).
			Where("locked_by_batch_id = ? OR (order_no, item_code) IN (?)",
				batchID,
				db.Model(&models.BatchPickedItem{}).Select("order_no, item_code").Where("batch_id = ?", batchID),
			).
			Scan(&row).Error
		if err != nil {
			return nil, fmt.Errorf("reconciling order %s: %w", membership.OrderNo, err)
		}

		summary.Orders = append(summary.Orders, OrderReconciliation{
			OrderNo:     membership.OrderNo,
			RequiredQty: row.RequiredQty,
			PickedQty:   pickedByOrder[membership.OrderNo],
			Lines:       row.Lines,
			LinesPicked: linesByOrder[membership.OrderNo],
			Complete:    membership.IsCompleted,
		})
		summary.TotalPicked += pickedByOrder[membership.OrderNo]
	}

	var exceptions int64
	err = db.Model(&models.PickException{}).
		Where("order_no IN (?)", db.Model(&models.BatchOrder{}).Select("order_no").Where("batch_id = ?", batchID)).
		Count(&exceptions).Error
	if err != nil {
		return nil, fmt.Errorf("counting exceptions for batch %d: %w", batchID, err)
	}
	summary.Exceptions = exceptions

	return summary, nil
}

// ResetLine is the admin path for returning a picked or stuck line to the
// claimable pool. Refused while an active batch owns the line; a lock held
// by a completed batch is cleared along with the pick state.
func (e *Engine) ResetLine(orderNo, itemCode, admin, note string) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		var line models.OrderLine
		err := tx.Where("order_no = ? AND item_code = ?", orderNo, itemCode).First(&line).Error
		if err != nil {
			return fmt.Errorf("line %s-%s: %w", orderNo, itemCode, ErrNotFound)
		}

		if line.LockedByBatchID != nil {
			var owner models.Batch
			if err := tx.First(&owner, *line.LockedByBatchID).Error; err == nil && owner.IsActive() {
				return fmt.Errorf("line %s-%s is claimed by active batch %s: %w", orderNo, itemCode, owner.BatchNumber, ErrLockConflict)
			}
		}

		now := time.Now().UTC()
		res := tx.Model(&models.OrderLine{}).
			Where("order_no = ? AND item_code = ?", orderNo, itemCode).
			Updates(map[string]any{
				"is_picked":          false,
				"picked_qty":         0,
				"pick_status":        models.PickStatusReset,
				"skip_reason":        "",
				"skipped_at":         nil,
				"locked_by_batch_id": nil,
				"reset_by":           admin,
				"reset_at":           now,
				"reset_note":         note,
			})
		if res.Error != nil {
			return fmt.Errorf("resetting line %s-%s: %w", orderNo, itemCode, res.Error)
		}
		log.Printf("♻️  Line %s-%s reset by %s", orderNo, itemCode, admin)
		return nil
	})
}
