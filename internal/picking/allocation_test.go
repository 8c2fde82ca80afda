package picking

import "testing"

func TestAllocateSplitsByOrderNumber(t *testing.T) {
	result := Allocate(5, []Demand{
		{OrderNo: "ORD-2", ItemCode: "A", Required: 4},
		{OrderNo: "ORD-1", ItemCode: "A", Required: 3},
	})

	if len(result.Allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(result.Allocations))
	}
	first, second := result.Allocations[0], result.Allocations[1]
	if first.OrderNo != "ORD-1" || first.Allocated != 3 || first.Shortfall != 0 {
		t.Errorf("ORD-1 should be satisfied first: %+v", first)
	}
	if second.OrderNo != "ORD-2" || second.Allocated != 2 || second.Shortfall != 2 {
		t.Errorf("ORD-2 should get the remainder: %+v", second)
	}
	if result.TotalAllocated != 5 || result.TotalShortfall != 2 {
		t.Errorf("totals wrong: %+v", result)
	}
}

func TestAllocateConservation(t *testing.T) {
	cases := []struct {
		picked  int
		demands []Demand
	}{
		{0, []Demand{{OrderNo: "O1", Required: 5}}},
		{5, []Demand{{OrderNo: "O1", Required: 5}}},
		{10, []Demand{{OrderNo: "O1", Required: 3}, {OrderNo: "O2", Required: 4}}},
		{4, []Demand{{OrderNo: "O1", Required: 3}, {OrderNo: "O2", Required: 4}, {OrderNo: "O3", Required: 2}}},
	}

	for _, c := range cases {
		result := Allocate(c.picked, c.demands)
		totalRequired := 0
		sum := 0
		for i, a := range result.Allocations {
			if a.Allocated > a.Required {
				t.Errorf("allocation %d exceeds requirement: %+v", i, a)
			}
			if a.Allocated < 0 || a.Shortfall < 0 {
				t.Errorf("negative allocation or shortfall: %+v", a)
			}
			sum += a.Allocated
			totalRequired += a.Required
		}
		want := c.picked
		if totalRequired < want {
			want = totalRequired
		}
		if sum != want {
			t.Errorf("picked=%d: allocated %d, want %d", c.picked, sum, want)
		}
		if sum != result.TotalAllocated {
			t.Errorf("TotalAllocated %d does not match sum %d", result.TotalAllocated, sum)
		}
	}
}

func TestAllocateOverSupply(t *testing.T) {
	// Picking more than the demand never over-allocates
	result := Allocate(100, []Demand{{OrderNo: "O1", Required: 2}, {OrderNo: "O2", Required: 3}})
	if result.TotalAllocated != 5 || result.TotalShortfall != 0 {
		t.Errorf("over-supply mishandled: %+v", result)
	}
}

func TestAllocateNegativeInputsClamped(t *testing.T) {
	result := Allocate(-3, []Demand{{OrderNo: "O1", Required: 2}})
	if result.TotalAllocated != 0 {
		t.Errorf("negative pick quantity should allocate nothing: %+v", result)
	}
	result = Allocate(3, []Demand{{OrderNo: "O1", Required: -2}})
	if result.TotalAllocated != 0 || result.Allocations[0].Required != 0 {
		t.Errorf("negative requirement should clamp to zero: %+v", result)
	}
}

func TestAllocateDoesNotMutateInput(t *testing.T) {
	demands := []Demand{
		{OrderNo: "O2", Required: 1},
		{OrderNo: "O1", Required: 1},
	}
	Allocate(2, demands)
	if demands[0].OrderNo != "O2" {
		t.Error("Allocate must not reorder the caller's slice")
	}
}
