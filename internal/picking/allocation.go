package picking

import (
	"sort"
	"strings"
)

// Demand is one order line's requirement for a consolidated pick
type Demand struct {
	OrderNo  string `json:"order_no"`
	ItemCode string `json:"item_code"`
	Required int    `json:"required"`
}

// Allocation is the quantity one order received out of a consolidated pick
type Allocation struct {
	OrderNo   string `json:"order_no"`
	ItemCode  string `json:"item_code"`
	Required  int    `json:"required"`
	Allocated int    `json:"allocated"`
	Shortfall int    `json:"shortfall"`
}

// AllocationResult summarizes the split of one physical pick across orders
type AllocationResult struct {
	Allocations    []Allocation `json:"allocations"`
	TotalAllocated int          `json:"total_allocated"`
	TotalShortfall int          `json:"total_shortfall"`
}

// Allocate distributes a physically picked quantity across the demanding
// order lines, earliest order first, giving each demand up to its required
// quantity until the picked quantity is exhausted. Orders receiving less
// than required carry a shortfall which the caller records as an exception.
//
// Invariant: sum(allocated) == min(pickedQty, sum(required)) and no
// allocation exceeds its own requirement.
func Allocate(pickedQty int, demands []Demand) AllocationResult {
	sorted := make([]Demand, len(demands))
	copy(sorted, demands)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].OrderNo != sorted[j].OrderNo {
			return sorted[i].OrderNo < sorted[j].OrderNo
		}
		return strings.Compare(sorted[i].ItemCode, sorted[j].ItemCode) < 0
	})

	result := AllocationResult{}
	remaining := pickedQty
	if remaining < 0 {
		remaining = 0
	}

	for _, d := range sorted {
		required := d.Required
		if required < 0 {
			required = 0
		}
		allocated := required
		if remaining < allocated {
			allocated = remaining
		}
		remaining -= allocated

		result.Allocations = append(result.Allocations, Allocation{
			OrderNo:   d.OrderNo,
			ItemCode:  d.ItemCode,
			Required:  required,
			Allocated: allocated,
			Shortfall: required - allocated,
		})
		result.TotalAllocated += allocated
		result.TotalShortfall += required - allocated
	}

	return result
}
