package picking

import (
	"errors"
	"fmt"
	"log"

	"github.com/velora-wms/pickflow/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateBatchRequest describes a new batch
type CreateBatchRequest struct {
	Name      string             `json:"name"`
	Criteria  Criteria           `json:"criteria"`
	Mode      models.PickingMode `json:"mode"`
	CreatedBy string             `json:"created_by"`
}

// CreateBatchResult reports the outcome of batch creation. ClaimedCount is
// ground truth; the conflict report explains any shortfall against the
// pre-check for human arbitration.
type CreateBatchResult struct {
	Batch        *models.Batch  `json:"batch"`
	ClaimedCount int64          `json:"claimed_count"`
	Conflicts    ConflictReport `json:"conflicts"`
}

// CreateBatch checks conflicts, creates the batch and claims the
// non-conflicting candidate set in one transaction. A candidate set that is
// empty after excluding conflicts rejects the creation outright.
func (e *Engine) CreateBatch(req CreateBatchRequest) (*CreateBatchResult, error) {
	if err := req.Criteria.Validate(); err != nil {
		return nil, err
	}
	if req.Mode != models.ModeSequential && req.Mode != models.ModeConsolidated {
		return nil, fmt.Errorf("unknown picking mode %q", req.Mode)
	}

	report, err := CheckConflicts(e.db, req.Criteria)
	if err != nil {
		return nil, err
	}

	available, err := AvailableCount(e.db, req.Criteria)
	if err != nil {
		return nil, err
	}
	if available == 0 {
		if report.HasConflicts {
			return nil, &ConflictError{Report: report}
		}
		return nil, ErrZeroAvailable
	}

	result := &CreateBatchResult{Conflicts: report}
	err = e.db.Transaction(func(tx *gorm.DB) error {
		batch := models.Batch{
			Name:        req.Name,
			Zones:       JoinList(req.Criteria.Zones),
			Corridors:   JoinList(req.Criteria.Corridors),
			UnitTypes:   JoinList(req.Criteria.UnitTypes),
			OrderNos:    JoinList(req.Criteria.Orders),
			PickingMode: req.Mode,
			Status:      models.BatchStatusCreated,
			CreatedBy:   req.CreatedBy,
		}
		if err := tx.Create(&batch).Error; err != nil {
			return fmt.Errorf("creating batch: %w", err)
		}

		claimed, err := Claim(tx, batch.ID, req.Criteria)
		if err != nil {
			return err
		}
		if claimed == 0 {
			// The candidate set vanished between the check and the claim
			return ErrZeroAvailable
		}

		if err := rebuildMemberships(tx, batch.ID); err != nil {
			return err
		}

		result.Batch = &batch
		result.ClaimedCount = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Created batch %s with %d claimed lines", result.Batch.BatchNumber, result.ClaimedCount)
	e.notify(EventBatchCreated, result.Batch.ID, result.Batch.BatchNumber, map[string]any{
		"claimed": result.ClaimedCount,
	})
	return result, nil
}

// EditBatch replaces a batch's criteria (and optionally its picking mode),
// re-claiming under the new criteria and invalidating the frozen sequence.
// Only a Created batch may be edited: rejecting edits to a batch mid-pick
// removes the admin-edit versus active-picker race entirely.
func (e *Engine) EditBatch(batchID uint, newCriteria Criteria, newMode *models.PickingMode) (int64, error) {
	if err := newCriteria.Validate(); err != nil {
		return 0, err
	}

	var claimed int64
	var batchNumber string
	err := e.db.Transaction(func(tx *gorm.DB) error {
		batch, err := lockBatch(tx, batchID)
		if err != nil {
			return err
		}
		if batch.Status != models.BatchStatusCreated {
			return &StateError{Op: "edit", Status: string(batch.Status)}
		}

		batch.Zones = JoinList(newCriteria.Zones)
		batch.Corridors = JoinList(newCriteria.Corridors)
		batch.UnitTypes = JoinList(newCriteria.UnitTypes)
		batch.OrderNos = JoinList(newCriteria.Orders)
		if newMode != nil {
			if *newMode != models.ModeSequential && *newMode != models.ModeConsolidated {
				return fmt.Errorf("unknown picking mode %q", *newMode)
			}
			batch.PickingMode = *newMode
		}
		if err := tx.Save(batch).Error; err != nil {
			return fmt.Errorf("updating batch %d: %w", batchID, err)
		}

		// Release-and-reclaim inside this same transaction so the batch
		// never transiently owns nothing
		if _, err := Release(tx, batchID, true); err != nil {
			return err
		}
		claimed, err = Claim(tx, batchID, newCriteria)
		if err != nil {
			return err
		}
		if claimed == 0 {
			return ErrZeroAvailable
		}

		if err := rebuildMemberships(tx, batchID); err != nil {
			return err
		}
		if err := Invalidate(tx, batchID); err != nil {
			return err
		}
		batch.CurrentItemIndex = 0
		batch.CurrentOrderIndex = 0
		batchNumber = batch.BatchNumber
		return tx.Save(batch).Error
	})
	if err != nil {
		return 0, err
	}

	e.notify(EventBatchEdited, batchID, batchNumber, map[string]any{"claimed": claimed})
	return claimed, nil
}

// AssignPicker assigns (or with an empty username, unassigns) the picker of
// a Created batch
func (e *Engine) AssignPicker(batchID uint, username string) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		batch, err := lockBatch(tx, batchID)
		if err != nil {
			return err
		}
		if batch.Status != models.BatchStatusCreated {
			return &StateError{Op: "assign", Status: string(batch.Status)}
		}
		batch.AssignedTo = username
		return tx.Save(batch).Error
	})
}

// DeleteBatch removes a batch that has not recorded a single pick, releasing
// every claim and its membership and snapshot rows. Refused once any ledger
// entry exists: deletion is the only cancellation path and it must not
// destroy attributed work.
func (e *Engine) DeleteBatch(batchID uint) (int64, error) {
	var released int64
	var batchNumber string
	err := e.db.Transaction(func(tx *gorm.DB) error {
		batch, err := lockBatch(tx, batchID)
		if err != nil {
			return err
		}
		if batch.Status != models.BatchStatusCreated {
			return &StateError{Op: "delete", Status: string(batch.Status)}
		}

		var ledgerCount int64
		if err := tx.Model(&models.BatchPickedItem{}).Where("batch_id = ?", batchID).Count(&ledgerCount).Error; err != nil {
			return err
		}
		if ledgerCount > 0 {
			return fmt.Errorf("batch %s has %d recorded picks: %w", batch.BatchNumber, ledgerCount, ErrInvalidState)
		}

		released, err = Release(tx, batchID, false)
		if err != nil {
			return err
		}
		if err := tx.Where("batch_id = ?", batchID).Delete(&models.BatchOrder{}).Error; err != nil {
			return err
		}
		if err := Invalidate(tx, batchID); err != nil {
			return err
		}
		batchNumber = batch.BatchNumber
		return tx.Delete(batch).Error
	})
	if err != nil {
		return 0, err
	}

	log.Printf("🗑️  Deleted batch %s, released %d claims", batchNumber, released)
	e.notify(EventBatchDeleted, batchID, batchNumber, map[string]any{"released": released})
	return released, nil
}

// StartSession freezes the batch's sequenced item list and moves it into
// picking. Restarting an in-progress batch re-derives and re-freezes the
// sequence under a new generation.
func (e *Engine) StartSession(batchID uint, picker string) (int, int, error) {
	var length, generation int
	var batchNumber string
	err := e.db.Transaction(func(tx *gorm.DB) error {
		batch, err := lockBatch(tx, batchID)
		if err != nil {
			return err
		}
		if batch.Status == models.BatchStatusCompleted {
			return &StateError{Op: "start", Status: string(batch.Status)}
		}
		if batch.AssignedTo == "" {
			batch.AssignedTo = picker
		} else if picker != "" && batch.AssignedTo != picker {
			return fmt.Errorf("batch %s is assigned to %s: %w", batch.BatchNumber, batch.AssignedTo, ErrInvalidState)
		}

		sequence, err := buildSequence(tx, batch)
		if err != nil {
			return err
		}
		if len(sequence) == 0 {
			return ErrZeroAvailable
		}

		generation, err = Freeze(tx, batchID, sequence)
		if err != nil {
			return err
		}

		batch.Status = models.BatchStatusPicking
		batch.CurrentItemIndex = 0
		batch.CurrentOrderIndex = 0
		length = len(sequence)
		batchNumber = batch.BatchNumber
		return tx.Save(batch).Error
	})
	if err != nil {
		return 0, 0, err
	}

	log.Printf("▶️  Started batch %s: %d items frozen (generation %d)", batchNumber, length, generation)
	e.notify(EventSessionStarted, batchID, batchNumber, map[string]any{
		"items":      length,
		"generation": generation,
	})
	return length, generation, nil
}

// CurrentItem returns the picker's current position in the frozen sequence
func (e *Engine) CurrentItem(batchID uint) (*SequenceItem, int, int, int, error) {
	var batch models.Batch
	if err := e.db.First(&batch, batchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, 0, 0, fmt.Errorf("batch %d: %w", batchID, ErrNotFound)
		}
		return nil, 0, 0, 0, err
	}

	items, generation, err := LoadSnapshot(e.db, batchID)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	if batch.CurrentItemIndex >= len(items) {
		return nil, batch.CurrentItemIndex, len(items), generation, nil
	}
	return &items[batch.CurrentItemIndex], batch.CurrentItemIndex, len(items), generation, nil
}

// PreviewSequence derives the sequence the next session would freeze,
// without freezing it. Used for printed pick lists of batches not yet started.
func (e *Engine) PreviewSequence(batchID uint) ([]SequenceItem, error) {
	var batch models.Batch
	if err := e.db.First(&batch, batchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("batch %d: %w", batchID, ErrNotFound)
		}
		return nil, err
	}
	return buildSequence(e.db, &batch)
}

// lockBatch loads a batch row under FOR UPDATE so pointer advancement stays
// single-writer even across processes
func lockBatch(tx *gorm.DB, batchID uint) (*models.Batch, error) {
	var batch models.Batch
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&batch, batchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("batch %d: %w", batchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading batch %d: %w", batchID, err)
	}
	return &batch, nil
}

// rebuildMemberships recreates the batch's order memberships from its
// current claims, preserving completion flags of orders that stay in scope
func rebuildMemberships(tx *gorm.DB, batchID uint) error {
	var existing []models.BatchOrder
	if err := tx.Where("batch_id = ?", batchID).Find(&existing).Error; err != nil {
		return err
	}
	completed := map[string]bool{}
	for _, bo := range existing {
		if bo.IsCompleted {
			completed[bo.OrderNo] = true
		}
	}

	var orderNos []string
	err := tx.Model(&models.OrderLine{}).
		Where("locked_by_batch_id = ?", batchID).
		Distinct("order_no").
		Pluck("order_no", &orderNos).Error
	if err != nil {
		return fmt.Errorf("listing batch orders: %w", err)
	}

	if err := tx.Where("batch_id = ?", batchID).Delete(&models.BatchOrder{}).Error; err != nil {
		return err
	}
	for _, orderNo := range orderNos {
		bo := models.BatchOrder{
			BatchID:     batchID,
			OrderNo:     orderNo,
			IsCompleted: completed[orderNo],
		}
		if err := tx.Create(&bo).Error; err != nil {
			return fmt.Errorf("creating membership for order %s: %w", orderNo, err)
		}
	}
	return nil
}

// sortedBatchOrders returns the batch's memberships in frozen picking
// priority: routing descending, orders without routing last
func sortedBatchOrders(tx *gorm.DB, batchID uint) ([]models.BatchOrder, error) {
	var memberships []models.BatchOrder
	err := tx.Preload("Order").
		Joins("JOIN orders ON orders.order_no = batch_orders.order_no").
		Where("batch_orders.batch_id = ?", batchID).
		Order("orders.routing DESC NULLS LAST, batch_orders.order_no").
		Find(&memberships).Error
	if err != nil {
		return nil, fmt.Errorf("listing batch orders: %w", err)
	}
	return memberships, nil
}

// claimedLines returns the batch's unpicked claimed lines, optionally
// restricted to skipped_pending ones
func claimedLines(tx *gorm.DB, batchID uint, skippedOnly bool) ([]models.OrderLine, error) {
	q := tx.Where("locked_by_batch_id = ?", batchID).
		Where("is_picked = ?", false)
	if skippedOnly {
		q = q.Where("pick_status = ?", models.PickStatusSkippedPending)
	} else {
		q = q.Where("pick_status IN ?", models.ClaimableStatuses)
	}

	var lines []models.OrderLine
	if err := q.Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("loading claimed lines for batch %d: %w", batchID, err)
	}
	return lines, nil
}

// buildSequence derives the batch's picking path from its current claims.
// Sequential mode walks orders in routing priority, each order's lines
// sorted along the configured path; Consolidated mode merges lines for the
// same item and location into one pick across the whole batch.
func buildSequence(tx *gorm.DB, batch *models.Batch) ([]SequenceItem, error) {
	lines, err := claimedLines(tx, batch.ID, false)
	if err != nil {
		return nil, err
	}
	cfg := LoadSortConfig(tx)

	if batch.PickingMode == models.ModeConsolidated {
		return consolidatedSequence(lines, cfg), nil
	}

	memberships, err := sortedBatchOrders(tx, batch.ID)
	if err != nil {
		return nil, err
	}
	return sequentialSequence(lines, memberships, cfg), nil
}

func sequentialSequence(lines []models.OrderLine, memberships []models.BatchOrder, cfg SortConfig) []SequenceItem {
	byOrder := map[string][]SequenceItem{}
	for _, line := range lines {
		byOrder[line.OrderNo] = append(byOrder[line.OrderNo], lineToItem(line))
	}

	var sequence []SequenceItem
	for _, membership := range memberships {
		items := byOrder[membership.OrderNo]
		if len(items) == 0 {
			continue
		}
		sequence = append(sequence, OrderSequence(items, cfg)...)
	}
	return sequence
}

func consolidatedSequence(lines []models.OrderLine, cfg SortConfig) []SequenceItem {
	type groupKey struct {
		itemCode string
		location string
	}
	groups := map[groupKey]*SequenceItem{}
	var order []groupKey

	for _, line := range lines {
		key := groupKey{line.ItemCode, line.Location}
		item, ok := groups[key]
		if !ok {
			base := lineToItem(line)
			base.OrderNo = ""
			item = &base
			item.TotalQty = 0
			item.Sources = nil
			item.Skipped = true
			groups[key] = item
			order = append(order, key)
		}
		item.TotalQty += line.Qty
		item.Sources = append(item.Sources, SourceLine{
			OrderNo:  line.OrderNo,
			ItemCode: line.ItemCode,
			Qty:      line.Qty,
		})
		// A group defers only when every contributing line was skipped
		if line.PickStatus != models.PickStatusSkippedPending {
			item.Skipped = false
		}
	}

	items := make([]SequenceItem, 0, len(order))
	for _, key := range order {
		items = append(items, *groups[key])
	}
	return OrderSequence(items, cfg)
}

func lineToItem(line models.OrderLine) SequenceItem {
	return SequenceItem{
		ItemCode: line.ItemCode,
		ItemName: line.ItemName,
		Location: line.Location,
		Zone:     line.Zone,
		Barcode:  line.Barcode,
		UnitType: line.UnitType,
		Pack:     line.Pack,
		OrderNo:  line.OrderNo,
		TotalQty: line.Qty,
		Skipped:  line.PickStatus == models.PickStatusSkippedPending,
		Sources: []SourceLine{{
			OrderNo:  line.OrderNo,
			ItemCode: line.ItemCode,
			Qty:      line.Qty,
		}},
	}
}
