package picking

import (
	"fmt"

	"github.com/velora-wms/pickflow/internal/models"
	"gorm.io/gorm"
)

// ConflictItem identifies one line contested between the proposed criteria
// and an existing batch's claims
type ConflictItem struct {
	OrderNo  string `json:"order_no"`
	ItemCode string `json:"item_code"`
	ItemName string `json:"item_name,omitempty"`
	Location string `json:"location,omitempty"`
}

// BatchConflict groups contested lines under the batch holding them
type BatchConflict struct {
	BatchID     uint           `json:"batch_id"`
	BatchNumber string         `json:"batch_number"`
	Items       []ConflictItem `json:"items"`
}

// ConflictReport is the advisory result of a pre-claim overlap check. It is
// conflict-free only at check time: the candidate set can shrink between the
// check and the claim, so callers must treat Claim's count as ground truth.
type ConflictReport struct {
	HasConflicts          bool            `json:"has_conflicts"`
	Conflicts             []BatchConflict `json:"conflicts"`
	TotalConflictingItems int             `json:"total_conflicting_items"`
}

// CheckConflicts finds lines matching the criteria that are already locked
// by another batch whose status is still active. Locks held by completed
// batches never block new claims.
func CheckConflicts(db *gorm.DB, criteria Criteria) (ConflictReport, error) {
	if err := criteria.Validate(); err != nil {
		return ConflictReport{}, err
	}

	type conflictRow struct {
		OrderNo     string
		ItemCode    string
		ItemName    string
		Location    string
		BatchID     uint
		BatchNumber string
	}

	var rows []conflictRow
	q := criteria.apply(db.Model(&models.OrderLine{})).
		Select("order_lines.order_no, order_lines.item_code, order_lines.item_name, order_lines.location, batches.id AS batch_id, batches.batch_number").
		Joins("JOIN batches ON batches.id = order_lines.locked_by_batch_id").
		Where("order_lines.locked_by_batch_id IS NOT NULL").
		Where("batches.status IN ?", models.ActiveBatchStatuses).
		Order("batches.id, order_lines.order_no, order_lines.item_code")

	if err := q.Scan(&rows).Error; err != nil {
		return ConflictReport{}, fmt.Errorf("checking batch conflicts: %w", err)
	}

	report := ConflictReport{}
	byBatch := map[uint]int{}
	for _, row := range rows {
		idx, ok := byBatch[row.BatchID]
		if !ok {
			report.Conflicts = append(report.Conflicts, BatchConflict{
				BatchID:     row.BatchID,
				BatchNumber: row.BatchNumber,
			})
			idx = len(report.Conflicts) - 1
			byBatch[row.BatchID] = idx
		}
		report.Conflicts[idx].Items = append(report.Conflicts[idx].Items, ConflictItem{
			OrderNo:  row.OrderNo,
			ItemCode: row.ItemCode,
			ItemName: row.ItemName,
			Location: row.Location,
		})
		report.TotalConflictingItems++
	}
	report.HasConflicts = report.TotalConflictingItems > 0

	return report, nil
}

// AvailableCount counts the matching lines that are claimable and currently
// unlocked. Used to reject batch creation that would claim nothing.
func AvailableCount(db *gorm.DB, criteria Criteria) (int64, error) {
	if err := criteria.Validate(); err != nil {
		return 0, err
	}

	var count int64
	err := criteria.apply(db.Model(&models.OrderLine{})).
		Where("locked_by_batch_id IS NULL").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting available lines: %w", err)
	}
	return count, nil
}
