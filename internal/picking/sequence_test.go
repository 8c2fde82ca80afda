package picking

import (
	"testing"
)

func TestCompareAlphanumeric(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"A2", "A10", -1},
		{"A10", "A2", 1},
		{"A2", "A2", 0},
		{"B1", "A9", 1},
		{"10", "9", 1},
		{"09", "10", -1},
		{"", "A", -1},
		{"A", "", 1},
		{"A1B", "A1", 1},
		{"SHELF2", "SHELF10", -1},
	}
	for _, c := range cases {
		got := CompareAlphanumeric(c.a, c.b)
		if sign(got) != c.want {
			t.Errorf("CompareAlphanumeric(%q, %q) = %d, want sign %d", c.a, c.b, got, c.want)
		}
	}
}

func TestCompareAlphanumericEquivalentNumbers(t *testing.T) {
	// "05" and "5" carry the same numeric value but must still order
	// consistently so the sort stays total
	if CompareAlphanumeric("05", "5") == 0 {
		t.Error("expected a total order over numerically equal strings")
	}
	if CompareAlphanumeric("05", "5") != -CompareAlphanumeric("5", "05") {
		t.Error("comparison is not antisymmetric for 05 vs 5")
	}
}

func TestParseLocation(t *testing.T) {
	parts := ParseLocation("10-05-A03")
	if parts.Corridor != "10" || parts.Aisle != "05" || parts.Level != "A" || parts.Bin != "03" {
		t.Errorf("unexpected parts for 10-05-A03: %+v", parts)
	}

	bare := ParseLocation("12")
	if bare.Corridor != "12" || bare.Aisle != "" || bare.Level != "" || bare.Bin != "" {
		t.Errorf("bare corridor parsed wrong: %+v", bare)
	}

	empty := ParseLocation("")
	if empty != (LocationParts{}) {
		t.Errorf("empty location should yield empty parts, got %+v", empty)
	}

	twoSeg := ParseLocation("07-11")
	if twoSeg.Corridor != "07" || twoSeg.Aisle != "11" || twoSeg.Level != "" {
		t.Errorf("two-segment location parsed wrong: %+v", twoSeg)
	}
}

func item(code, location, zone string) SequenceItem {
	return SequenceItem{ItemCode: code, Location: location, Zone: zone, TotalQty: 1}
}

func TestOrderSequencePath(t *testing.T) {
	items := []SequenceItem{
		item("I3", "10-05-A10", "MAIN"),
		item("I1", "09-01-A01", "MAIN"),
		item("I2", "10-05-A2", "MAIN"),
		item("I4", "10-06-A01", "MAIN"),
	}

	sorted := OrderSequence(items, DefaultSortConfig())
	want := []string{"I1", "I2", "I3", "I4"}
	for i, code := range want {
		if sorted[i].ItemCode != code {
			t.Fatalf("position %d = %s, want %s", i, sorted[i].ItemCode, code)
		}
	}
}

func TestOrderSequenceDeterministic(t *testing.T) {
	items := []SequenceItem{
		item("I2", "01-01-A01", "MAIN"),
		item("I1", "01-01-A01", "MAIN"),
		item("I3", "01-01-A01", "MAIN"),
	}

	first := OrderSequence(append([]SequenceItem(nil), items...), DefaultSortConfig())
	// Reversed input must produce the identical output
	reversed := []SequenceItem{items[2], items[1], items[0]}
	second := OrderSequence(reversed, DefaultSortConfig())

	for i := range first {
		if first[i].ItemCode != second[i].ItemCode {
			t.Fatalf("order differs at %d: %s vs %s", i, first[i].ItemCode, second[i].ItemCode)
		}
	}
}

func TestOrderSequenceSkippedLast(t *testing.T) {
	items := []SequenceItem{
		{ItemCode: "S1", Location: "01-01-A01", Zone: "MAIN", Skipped: true},
		{ItemCode: "R2", Location: "05-01-A01", Zone: "MAIN"},
		{ItemCode: "R1", Location: "02-01-A01", Zone: "MAIN"},
		{ItemCode: "S2", Location: "03-01-A01", Zone: "MAIN", Skipped: true},
	}

	sorted := OrderSequence(items, DefaultSortConfig())
	want := []string{"R1", "R2", "S1", "S2"}
	for i, code := range want {
		if sorted[i].ItemCode != code {
			t.Fatalf("position %d = %s, want %s", i, sorted[i].ItemCode, code)
		}
	}
	// Skipped items keep the path order within their own partition
	if !sorted[2].Skipped || !sorted[3].Skipped {
		t.Error("skipped items must stay flagged after sorting")
	}
}

func TestOrderSequenceManualZonePriority(t *testing.T) {
	cfg := DefaultSortConfig()
	cfg.Zone.ManualPriority = []string{"COLD", "MAIN"}

	items := []SequenceItem{
		item("I1", "01-01-A01", "MAIN"),
		item("I2", "01-01-A01", "COLD"),
		item("I3", "01-01-A01", "BULK"), // Unlisted zones rank after listed ones
	}

	sorted := OrderSequence(items, cfg)
	want := []string{"I2", "I1", "I3"}
	for i, code := range want {
		if sorted[i].ItemCode != code {
			t.Fatalf("position %d = %s, want %s", i, sorted[i].ItemCode, code)
		}
	}
}

func TestOrderSequenceEmptyZoneTreatedAsMain(t *testing.T) {
	cfg := DefaultSortConfig()
	cfg.Zone.ManualPriority = []string{"MAIN", "COLD"}

	items := []SequenceItem{
		item("I1", "01-01-A01", "COLD"),
		item("I2", "01-01-A01", ""),
	}

	sorted := OrderSequence(items, cfg)
	if sorted[0].ItemCode != "I2" {
		t.Errorf("empty zone should rank as MAIN ahead of COLD, got %s first", sorted[0].ItemCode)
	}
}

func TestOrderSequenceDisabledKeys(t *testing.T) {
	cfg := DefaultSortConfig()
	cfg.Zone.Enabled = false
	cfg.Corridor.Direction = "desc"

	items := []SequenceItem{
		item("I1", "01-01-A01", "Z"),
		item("I2", "10-01-A01", "A"),
	}

	sorted := OrderSequence(items, cfg)
	if sorted[0].ItemCode != "I2" {
		t.Errorf("descending corridor with zone disabled should put corridor 10 first, got %s", sorted[0].ItemCode)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
