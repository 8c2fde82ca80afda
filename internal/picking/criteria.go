package picking

import (
	"fmt"
	"strings"

	"github.com/velora-wms/pickflow/internal/models"
	"gorm.io/gorm"
)

// Criteria is the typed filter describing which order lines a batch claims.
// Zones are required; the rest narrow the candidate set. Criteria is the
// single parsing boundary for the comma-joined sets stored on the batch row.
type Criteria struct {
	Zones     []string `json:"zones"`
	Corridors []string `json:"corridors,omitempty"`
	UnitTypes []string `json:"unit_types,omitempty"`
	Orders    []string `json:"orders,omitempty"`
}

// ParseCriteria builds a Criteria from comma-joined sets as stored on a batch
func ParseCriteria(zones, corridors, unitTypes string, orders []string) Criteria {
	return Criteria{
		Zones:     SplitList(zones),
		Corridors: SplitList(corridors),
		UnitTypes: SplitList(unitTypes),
		Orders:    orders,
	}
}

// CriteriaForBatch rebuilds the claim criteria from a batch row. All four
// dimensions round-trip through the row, so a re-claim matches exactly the
// lines the original claim matched.
func CriteriaForBatch(batch *models.Batch) Criteria {
	return ParseCriteria(batch.Zones, batch.Corridors, batch.UnitTypes, SplitList(batch.OrderNos))
}

// Validate checks that the criteria can select anything at all
func (c Criteria) Validate() error {
	if len(c.Zones) == 0 {
		return fmt.Errorf("at least one zone is required")
	}
	return nil
}

// apply adds the criteria's match conditions for claimable lines to a query.
// The lock-ownership condition is intentionally left to the caller: the lock
// manager wants unlocked lines, the conflict detector wants locked ones.
func (c Criteria) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("zone IN ?", c.Zones).
		Where("is_picked = ?", false).
		Where("pick_status IN ?", models.ClaimableStatuses)

	if len(c.Corridors) > 0 {
		q = q.Where("corridor IN ?", c.Corridors)
	}
	if len(c.UnitTypes) > 0 {
		q = q.Where("unit_type IN ?", c.UnitTypes)
	}
	if len(c.Orders) > 0 {
		q = q.Where("order_no IN ?", c.Orders)
	}
	return q
}

// SplitList parses a comma-joined set, trimming whitespace and dropping empties
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// JoinList is the inverse of SplitList for storage on the batch row
func JoinList(values []string) string {
	var cleaned []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	return strings.Join(cleaned, ",")
}
