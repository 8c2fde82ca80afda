package picking

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/velora-wms/pickflow/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testDBPort = 5599

var testDB *gorm.DB

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "pickflow_test_pg")
	if err != nil {
		log.Fatalf("creating temp dir: %v", err)
	}

	pg := embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
		Port(testDBPort).
		DataPath(filepath.Join(tmp, "data")).
		RuntimePath(filepath.Join(tmp, "runtime")).
		Database("pickflow_test").
		Username("postgres").
		Password("postgres").
		Logger(io.Discard))
	if err := pg.Start(); err != nil {
		os.RemoveAll(tmp)
		log.Fatalf("starting test database: %v", err)
	}

	dsn := fmt.Sprintf("host=localhost port=%d user=postgres password=postgres dbname=pickflow_test sslmode=disable", testDBPort)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		pg.Stop()
		os.RemoveAll(tmp)
		log.Fatalf("connecting to test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Order{}, &models.OrderLine{},
		&models.Batch{}, &models.BatchOrder{}, &models.BatchPickedItem{},
		&models.BatchSnapshot{}, &models.PickException{}, &models.Setting{},
	); err != nil {
		pg.Stop()
		os.RemoveAll(tmp)
		log.Fatalf("migrating test schema: %v", err)
	}
	testDB = db

	code := m.Run()

	pg.Stop()
	os.RemoveAll(tmp)
	os.Exit(code)
}

// seedOrder creates an order with n claimable lines in the given zone, two
// units required per line. Each test uses its own zone for isolation.
func seedOrder(t *testing.T, orderNo, zone string, n int) {
	t.Helper()
	order := models.Order{OrderNo: orderNo, CustomerName: "Test Customer", TotalItems: n}
	if err := testDB.Create(&order).Error; err != nil {
		t.Fatalf("seeding order %s: %v", orderNo, err)
	}
	for i := 1; i <= n; i++ {
		line := models.OrderLine{
			OrderNo:  orderNo,
			ItemCode: fmt.Sprintf("%s-ITEM-%02d", orderNo, i),
			ItemName: fmt.Sprintf("Item %02d", i),
			Zone:     zone,
			Corridor: "01",
			Location: fmt.Sprintf("01-%02d-A01", i),
			Qty:      2,
		}
		if err := testDB.Create(&line).Error; err != nil {
			t.Fatalf("seeding line %s: %v", line.ItemCode, err)
		}
	}
}

func createdBatch(t *testing.T, name, zones string) *models.Batch {
	t.Helper()
	batch := models.Batch{
		Name:        name,
		Zones:       zones,
		PickingMode: models.ModeSequential,
		Status:      models.BatchStatusCreated,
		CreatedBy:   "planner",
	}
	if err := testDB.Create(&batch).Error; err != nil {
		t.Fatalf("creating batch %s: %v", name, err)
	}
	return &batch
}

// Two batches claiming the same candidate set concurrently must partition it:
// every line ends up owned by exactly one of them.
func TestClaimWinsEachLineOnce(t *testing.T) {
	seedOrder(t, "RC-1", "RACE", 6)
	seedOrder(t, "RC-2", "RACE", 6)
	b1 := createdBatch(t, "race-a", "RACE")
	b2 := createdBatch(t, "race-b", "RACE")

	criteria := Criteria{Zones: []string{"RACE"}}
	var c1, c2 int64
	var err1, err2 error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); c1, err1 = Claim(testDB, b1.ID, criteria) }()
	go func() { defer wg.Done(); c2, err2 = Claim(testDB, b2.ID, criteria) }()
	wg.Wait()

	if err1 != nil || err2 != nil {
		t.Fatalf("claim errors: %v, %v", err1, err2)
	}
	if c1+c2 != 12 {
		t.Errorf("claims total %d, want 12", c1+c2)
	}

	n1, err := LockedCount(testDB, b1.ID)
	if err != nil {
		t.Fatal(err)
	}
	n2, err := LockedCount(testDB, b2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n1 != c1 || n2 != c2 {
		t.Errorf("ownership (%d, %d) does not match reported claims (%d, %d)", n1, n2, c1, c2)
	}

	var unowned int64
	testDB.Model(&models.OrderLine{}).
		Where("zone = ? AND locked_by_batch_id IS NULL", "RACE").
		Count(&unowned)
	if unowned != 0 {
		t.Errorf("%d lines left unowned", unowned)
	}
}

// Releasing with the preserve flag keeps picked lines attributed to the batch
// and frees only the unresolved ones.
func TestReleasePreservesPickedLines(t *testing.T) {
	seedOrder(t, "RL-1", "RELEASE", 3)
	b := createdBatch(t, "release", "RELEASE")

	claimed, err := Claim(testDB, b.ID, Criteria{Zones: []string{"RELEASE"}})
	if err != nil || claimed != 3 {
		t.Fatalf("claimed %d lines (err %v), want 3", claimed, err)
	}

	err = testDB.Model(&models.OrderLine{}).
		Where("order_no = ? AND item_code = ?", "RL-1", "RL-1-ITEM-01").
		Updates(map[string]any{"is_picked": true, "picked_qty": 2, "pick_status": models.PickStatusPicked}).Error
	if err != nil {
		t.Fatal(err)
	}

	released, err := Release(testDB, b.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if released != 2 {
		t.Errorf("released %d lines, want 2", released)
	}

	var picked models.OrderLine
	if err := testDB.Where("order_no = ? AND item_code = ?", "RL-1", "RL-1-ITEM-01").First(&picked).Error; err != nil {
		t.Fatal(err)
	}
	if picked.LockedByBatchID == nil || *picked.LockedByBatchID != b.ID {
		t.Error("picked line lost its lock on preserving release")
	}

	released, err = Release(testDB, b.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if released != 1 {
		t.Errorf("full release freed %d lines, want 1", released)
	}
	if remaining, _ := LockedCount(testDB, b.ID); remaining != 0 {
		t.Errorf("%d lines still locked after full release", remaining)
	}
}

// Creating a batch whose whole candidate set is held by an active batch must
// fail with a conflict report naming the holder, not silently claim nothing.
func TestCreateBatchRejectsFullyContestedCriteria(t *testing.T) {
	seedOrder(t, "CF-1", "CONTEST", 2)
	eng := NewEngine(testDB)

	first, err := eng.CreateBatch(CreateBatchRequest{
		Name:      "contest-a",
		Criteria:  Criteria{Zones: []string{"CONTEST"}},
		Mode:      models.ModeSequential,
		CreatedBy: "planner",
	})
	if err != nil {
		t.Fatal(err)
	}
	if first.ClaimedCount != 2 {
		t.Fatalf("first batch claimed %d lines, want 2", first.ClaimedCount)
	}

	_, err = eng.CreateBatch(CreateBatchRequest{
		Name:      "contest-b",
		Criteria:  Criteria{Zones: []string{"CONTEST"}},
		Mode:      models.ModeSequential,
		CreatedBy: "planner",
	})
	if !errors.Is(err, ErrLockConflict) {
		t.Fatalf("expected lock conflict, got %v", err)
	}
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected conflict report, got %v", err)
	}
	report := conflictErr.Report
	if report.TotalConflictingItems != 2 || len(report.Conflicts) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Conflicts[0].BatchNumber != first.Batch.BatchNumber {
		t.Errorf("conflict attributed to %s, want %s", report.Conflicts[0].BatchNumber, first.Batch.BatchNumber)
	}
}

// A skipped item must come back as a re-frozen sequence and block completion
// until resolved; completion then keeps every picked line attributed and
// drops the snapshot.
func TestSkippedItemsGateCompletion(t *testing.T) {
	seedOrder(t, "GT-1", "GATE", 3)
	eng := NewEngine(testDB)

	created, err := eng.CreateBatch(CreateBatchRequest{
		Name:      "gate",
		Criteria:  Criteria{Zones: []string{"GATE"}},
		Mode:      models.ModeSequential,
		CreatedBy: "planner",
	})
	if err != nil {
		t.Fatal(err)
	}
	id := created.Batch.ID

	total, gen, err := eng.StartSession(id, "picker1")
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || gen != 1 {
		t.Fatalf("session froze %d items at generation %d, want 3 at 1", total, gen)
	}

	if _, err := eng.ConfirmPick(id, "picker1", 0, gen, -1, ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("negative quantity accepted: %v", err)
	}

	item, _, _, _, err := eng.CurrentItem(id)
	if err != nil || item == nil {
		t.Fatalf("no current item: %v", err)
	}
	result, err := eng.ConfirmPick(id, "picker1", 0, gen, item.TotalQty, "")
	if err != nil {
		t.Fatal(err)
	}
	if result.Completed || result.ItemIndex != 1 {
		t.Fatalf("unexpected position after first pick: %+v", result)
	}

	if _, err := eng.SkipCurrent(id, "picker1", 1, gen, "bin blocked"); err != nil {
		t.Fatal(err)
	}

	item, _, _, _, err = eng.CurrentItem(id)
	if err != nil || item == nil {
		t.Fatalf("no current item after skip: %v", err)
	}
	result, err = eng.ConfirmPick(id, "picker1", 2, gen, item.TotalQty, "")
	if err != nil {
		t.Fatal(err)
	}
	if result.Completed {
		t.Fatal("batch completed with a deferred item outstanding")
	}
	if !result.Reinjected || result.TotalItems != 1 || result.Generation != gen+1 || result.ItemIndex != 0 {
		t.Fatalf("deferred item not re-frozen: %+v", result)
	}

	item, _, _, _, err = eng.CurrentItem(id)
	if err != nil || item == nil || !item.Skipped {
		t.Fatalf("expected the deferred item next, got %+v (err %v)", item, err)
	}
	result, err = eng.ConfirmPick(id, "picker1", 0, result.Generation, item.TotalQty, "")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Completed {
		t.Fatal("batch did not complete after resolving the deferred item")
	}

	var batch models.Batch
	if err := testDB.First(&batch, id).Error; err != nil {
		t.Fatal(err)
	}
	if batch.Status != models.BatchStatusCompleted {
		t.Errorf("batch status %s, want %s", batch.Status, models.BatchStatusCompleted)
	}

	locked, err := LockedCount(testDB, id)
	if err != nil {
		t.Fatal(err)
	}
	if locked != 3 {
		t.Errorf("%d lines attributed after completion, want 3", locked)
	}
	var unpicked int64
	testDB.Model(&models.OrderLine{}).
		Where("zone = ? AND is_picked = ?", "GATE", false).
		Count(&unpicked)
	if unpicked != 0 {
		t.Errorf("%d lines left unpicked", unpicked)
	}

	var ledger []models.BatchPickedItem
	if err := testDB.Where("batch_id = ?", id).Find(&ledger).Error; err != nil {
		t.Fatal(err)
	}
	sum := 0
	for _, entry := range ledger {
		sum += entry.PickedQty
	}
	if len(ledger) != 3 || sum != 6 {
		t.Errorf("ledger has %d entries totalling %d, want 3 totalling 6", len(ledger), sum)
	}

	items, generation, err := LoadSnapshot(testDB, id)
	if err != nil || items != nil || generation != 0 {
		t.Errorf("snapshot survived completion: %d items at generation %d (err %v)", len(items), generation, err)
	}
}
