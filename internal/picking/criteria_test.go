package picking

import (
	"testing"

	"github.com/velora-wms/pickflow/internal/models"
)

func TestSplitList(t *testing.T) {
	got := SplitList("A, B ,C,,  ,D")
	want := []string{"A", "B", "C", "D"}
	if len(got) != len(want) {
		t.Fatalf("SplitList returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %q, want %q", i, got[i], want[i])
		}
	}

	if SplitList("") != nil {
		t.Error("empty input should yield nil")
	}
	if SplitList("  ") != nil {
		t.Error("whitespace input should yield nil")
	}
}

func TestJoinListRoundTrip(t *testing.T) {
	joined := JoinList([]string{" A ", "", "B"})
	if joined != "A,B" {
		t.Errorf("JoinList = %q, want %q", joined, "A,B")
	}
	back := SplitList(joined)
	if len(back) != 2 || back[0] != "A" || back[1] != "B" {
		t.Errorf("round trip lost data: %v", back)
	}
}

func TestCriteriaValidate(t *testing.T) {
	if err := (Criteria{}).Validate(); err == nil {
		t.Error("criteria without zones must be rejected")
	}
	if err := (Criteria{Zones: []string{"MAIN"}}).Validate(); err != nil {
		t.Errorf("zone-only criteria should be valid: %v", err)
	}
}

// A batch created with an order filter must re-claim under that same filter,
// not widen to every line its zones match.
func TestCriteriaForBatchRoundTrip(t *testing.T) {
	original := Criteria{
		Zones:     []string{"MAIN", "COLD"},
		Corridors: []string{"01"},
		Orders:    []string{"ORD-1", "ORD-2"},
	}
	batch := &models.Batch{
		Zones:     JoinList(original.Zones),
		Corridors: JoinList(original.Corridors),
		UnitTypes: JoinList(original.UnitTypes),
		OrderNos:  JoinList(original.Orders),
	}

	got := CriteriaForBatch(batch)
	if len(got.Orders) != 2 || got.Orders[0] != "ORD-1" || got.Orders[1] != "ORD-2" {
		t.Fatalf("order filter lost on round trip: %+v", got)
	}
	if len(got.Zones) != 2 || len(got.Corridors) != 1 || got.UnitTypes != nil {
		t.Errorf("unexpected criteria after round trip: %+v", got)
	}
}

func TestParseCriteria(t *testing.T) {
	c := ParseCriteria("MAIN,COLD", "01, 02", "", []string{"ORD-1"})
	if len(c.Zones) != 2 || len(c.Corridors) != 2 || c.UnitTypes != nil || len(c.Orders) != 1 {
		t.Errorf("unexpected criteria: %+v", c)
	}
}
