package picking

import (
	"encoding/json"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/velora-wms/pickflow/internal/models"
	"gorm.io/gorm"
)

// SortKeyConfig controls one key of the picking path comparator
type SortKeyConfig struct {
	Enabled        bool     `json:"enabled"`
	Order          int      `json:"order"`
	Direction      string   `json:"direction"` // asc | desc
	ManualPriority []string `json:"manual_priority,omitempty"`
}

// SortConfig is the full Sequencer configuration, stored as JSON under the
// picking_sort_config setting. The "shelf" key orders the aisle segment of
// the location and "bin" its trailing digits; the names are historical and
// kept so existing admin configurations stay valid.
type SortConfig struct {
	Zone     SortKeyConfig `json:"zone"`
	Corridor SortKeyConfig `json:"corridor"`
	Shelf    SortKeyConfig `json:"shelf"`
	Level    SortKeyConfig `json:"level"`
	Bin      SortKeyConfig `json:"bin"`
}

// DefaultSortConfig returns the documented fallback: all keys enabled,
// zone -> corridor -> shelf -> level -> bin, ascending
func DefaultSortConfig() SortConfig {
	return SortConfig{
		Zone:     SortKeyConfig{Enabled: true, Order: 1, Direction: "asc"},
		Corridor: SortKeyConfig{Enabled: true, Order: 2, Direction: "asc"},
		Shelf:    SortKeyConfig{Enabled: true, Order: 3, Direction: "asc"},
		Level:    SortKeyConfig{Enabled: true, Order: 4, Direction: "asc"},
		Bin:      SortKeyConfig{Enabled: true, Order: 5, Direction: "asc"},
	}
}

// LoadSortConfig reads the sort configuration from settings, falling back to
// the default when absent or malformed
func LoadSortConfig(db *gorm.DB) SortConfig {
	var setting models.Setting
	if err := db.Where("key = ?", models.SortConfigKey).First(&setting).Error; err != nil {
		return DefaultSortConfig()
	}

	var cfg SortConfig
	if err := json.Unmarshal([]byte(setting.Value), &cfg); err != nil {
		log.Printf("⚠️  Malformed %s setting, using default sorting: %v", models.SortConfigKey, err)
		return DefaultSortConfig()
	}
	return cfg
}

// LocationParts are the segments extracted from a location string
type LocationParts struct {
	Corridor string
	Aisle    string
	Level    string
	Bin      string
}

// ParseLocation splits a location string like "10-05-A03" into corridor "10",
// aisle "05", level "A" and bin "03". A string without dashes is treated as a
// bare corridor.
func ParseLocation(location string) LocationParts {
	var parts LocationParts
	if location == "" {
		return parts
	}

	if !strings.Contains(location, "-") {
		parts.Corridor = location
		return parts
	}

	segments := strings.Split(location, "-")
	parts.Corridor = segments[0]
	if len(segments) >= 2 {
		parts.Aisle = segments[1]
	}
	if len(segments) >= 3 {
		// Trailing segment is LEVEL+BIN: leading letters, then digits
		last := segments[2]
		i := 0
		for i < len(last) && !isDigit(last[i]) {
			i++
		}
		parts.Level = last[:i]
		j := i
		for j < len(last) && isDigit(last[j]) {
			j++
		}
		parts.Bin = last[i:j]
	}
	return parts
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// CompareAlphanumeric compares two strings by alternating digit and
// non-digit runs: digit runs compare as integers, non-digit runs compare
// lexically, and a non-digit run sorts before a digit run. This makes "A2"
// sort before "A10" where a pure string comparison would invert them.
func CompareAlphanumeric(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}

	runsA := splitRuns(a)
	runsB := splitRuns(b)

	for i := 0; i < len(runsA) && i < len(runsB); i++ {
		ra, rb := runsA[i], runsB[i]
		aNum, bNum := isDigit(ra[0]), isDigit(rb[0])

		if aNum != bNum {
			// Non-digit runs sort before digit runs
			if aNum {
				return 1
			}
			return -1
		}

		if aNum {
			na, _ := strconv.Atoi(ra)
			nb, _ := strconv.Atoi(rb)
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		} else if ra != rb {
			return strings.Compare(ra, rb)
		}
	}

	if len(runsA) != len(runsB) {
		if len(runsA) < len(runsB) {
			return -1
		}
		return 1
	}
	// Equal numeric values with different text ("05" vs "5"): fall back to
	// a plain comparison so the order stays total
	return strings.Compare(a, b)
}

// splitRuns tokenizes a string into alternating digit and non-digit runs
func splitRuns(s string) []string {
	var runs []string
	start := 0
	for i := 1; i <= len(s); i++ {
		if i == len(s) || isDigit(s[i]) != isDigit(s[i-1]) {
			runs = append(runs, s[start:i])
			start = i
		}
	}
	return runs
}

// SourceLine identifies one order line contributing to a sequence item
type SourceLine struct {
	OrderNo  string `json:"order_no"`
	ItemCode string `json:"item_code"`
	Qty      int    `json:"qty"`
}

// SequenceItem is one step of a batch's frozen picking path. In Consolidated
// mode it may aggregate several order lines for the same item and location;
// in Sequential mode it carries exactly one source line.
type SequenceItem struct {
	ItemCode string `json:"item_code"`
	ItemName string `json:"item_name"`
	Location string `json:"location"`
	Zone     string `json:"zone"`
	Barcode  string `json:"barcode,omitempty"`
	UnitType string `json:"unit_type,omitempty"`
	Pack     string `json:"pack,omitempty"`
	OrderNo  string `json:"order_no,omitempty"` // Owning order, Sequential mode only

	TotalQty int          `json:"total_qty"`
	Skipped  bool         `json:"skipped,omitempty"`
	Sources  []SourceLine `json:"sources"`
}

// sortField pairs a configured key with its extractor, ordered by priority
type sortField struct {
	order   int
	desc    bool
	compare func(a, b *SequenceItem) int
}

func enabledFields(cfg SortConfig) []sortField {
	var fields []sortField

	if cfg.Zone.Enabled {
		manual := cfg.Zone.ManualPriority
		fields = append(fields, sortField{cfg.Zone.Order, cfg.Zone.Direction == "desc",
			func(a, b *SequenceItem) int { return compareZones(a.Zone, b.Zone, manual) }})
	}
	if cfg.Corridor.Enabled {
		fields = append(fields, sortField{cfg.Corridor.Order, cfg.Corridor.Direction == "desc",
			func(a, b *SequenceItem) int {
				return CompareAlphanumeric(ParseLocation(a.Location).Corridor, ParseLocation(b.Location).Corridor)
			}})
	}
	if cfg.Shelf.Enabled {
		fields = append(fields, sortField{cfg.Shelf.Order, cfg.Shelf.Direction == "desc",
			func(a, b *SequenceItem) int {
				return CompareAlphanumeric(ParseLocation(a.Location).Aisle, ParseLocation(b.Location).Aisle)
			}})
	}
	if cfg.Level.Enabled {
		fields = append(fields, sortField{cfg.Level.Order, cfg.Level.Direction == "desc",
			func(a, b *SequenceItem) int {
				return CompareAlphanumeric(ParseLocation(a.Location).Level, ParseLocation(b.Location).Level)
			}})
	}
	if cfg.Bin.Enabled {
		fields = append(fields, sortField{cfg.Bin.Order, cfg.Bin.Direction == "desc",
			func(a, b *SequenceItem) int {
				return CompareAlphanumeric(ParseLocation(a.Location).Bin, ParseLocation(b.Location).Bin)
			}})
	}

	sort.SliceStable(fields, func(i, j int) bool { return fields[i].order < fields[j].order })
	return fields
}

// compareZones applies the manual zone priority list when present: listed
// zones rank by list position, unlisted zones rank after all listed ones.
// Without a manual list zones compare alphanumerically. An empty zone is
// treated as MAIN.
func compareZones(a, b string, manual []string) int {
	if a == "" {
		a = "MAIN"
	}
	if b == "" {
		b = "MAIN"
	}
	if len(manual) == 0 {
		return CompareAlphanumeric(a, b)
	}

	ra, rb := manualRank(a, manual), manualRank(b, manual)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	return 0
}

func manualRank(zone string, manual []string) int {
	for i, z := range manual {
		if z == zone {
			return i
		}
	}
	return len(manual)
}

// compareItems is the total order over sequence items for one configuration
func compareItems(a, b *SequenceItem, fields []sortField) int {
	for _, f := range fields {
		c := f.compare(a, b)
		if c != 0 {
			if f.desc {
				return -c
			}
			return c
		}
	}
	// Stable secondary keys so re-sorting identical input always yields
	// identical output
	if c := strings.Compare(a.ItemCode, b.ItemCode); c != 0 {
		return c
	}
	return strings.Compare(a.OrderNo, b.OrderNo)
}

// OrderSequence sorts sequence items along the configured picking path.
// Items marked skipped always sort after all non-skipped items, ordered by
// the same keys within each partition, so skipped work is deferred without
// reordering the rest of the path.
func OrderSequence(items []SequenceItem, cfg SortConfig) []SequenceItem {
	if len(items) == 0 {
		return items
	}

	fields := enabledFields(cfg)

	var regular, skipped []SequenceItem
	for _, item := range items {
		if item.Skipped {
			skipped = append(skipped, item)
		} else {
			regular = append(regular, item)
		}
	}

	less := func(s []SequenceItem) func(i, j int) bool {
		return func(i, j int) bool { return compareItems(&s[i], &s[j], fields) < 0 }
	}
	sort.SliceStable(regular, less(regular))
	sort.SliceStable(skipped, less(skipped))

	return append(regular, skipped...)
}
