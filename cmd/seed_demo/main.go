package main

import (
	"fmt"
	"log"

	"github.com/velora-wms/pickflow/internal/config"
	"github.com/velora-wms/pickflow/internal/database"
	"github.com/velora-wms/pickflow/internal/models"
	"github.com/velora-wms/pickflow/internal/utils"
)

func main() {
	fmt.Println("🌱 PickFlow Demo Data Seeder")

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println()

	// Run migrations first
	fmt.Println("🔨 Running database migrations...")
	err = db.AutoMigrate(
		&models.UserAuth{},
		&models.Order{},
		&models.OrderLine{},
		&models.Batch{},
		&models.BatchOrder{},
		&models.BatchPickedItem{},
		&models.BatchSnapshot{},
		&models.PickException{},
		&models.Setting{},
	)
	if err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	fmt.Println("✅ Migrations complete")
	fmt.Println()

	// Check if data already exists
	var orderCount int64
	db.Model(&models.Order{}).Count(&orderCount)
	if orderCount > 0 {
		fmt.Printf("⚠️  Database already has %d orders. Clear it first? (y/N): ", orderCount)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("❌ Aborted. Database not modified.")
			return
		}

		// Clear existing data
		fmt.Println("🗑️  Clearing existing data...")
		db.Exec("TRUNCATE TABLE batch_picked_items CASCADE")
		db.Exec("TRUNCATE TABLE batch_snapshots CASCADE")
		db.Exec("TRUNCATE TABLE batch_orders CASCADE")
		db.Exec("TRUNCATE TABLE batches CASCADE")
		db.Exec("TRUNCATE TABLE pick_exceptions CASCADE")
		db.Exec("TRUNCATE TABLE order_lines CASCADE")
		db.Exec("TRUNCATE TABLE orders CASCADE")
		fmt.Println("✅ Data cleared")
	}

	fmt.Println()
	fmt.Println("📦 Creating demo data...")
	fmt.Println()

	// 1. Users
	fmt.Println("👤 Creating users...")
	users := []struct {
		username string
		role     string
	}{
		{"admin", "admin"},
		{"manager", "warehouse_manager"},
		{"picker1", "picker"},
		{"picker2", "picker"},
	}
	for _, u := range users {
		hash, err := utils.HashPassword(u.username + "123")
		if err != nil {
			log.Fatalf("❌ Failed to hash password: %v", err)
		}
		user := models.UserAuth{
			Username: u.username,
			Password: hash,
			Name:     u.username,
			Role:     u.role,
			IsActive: true,
		}
		if err := db.Where("username = ?", u.username).FirstOrCreate(&user).Error; err != nil {
			log.Fatalf("❌ Failed to create user %s: %v", u.username, err)
		}
		fmt.Printf("   %s (%s)\n", u.username, u.role)
	}
	fmt.Println()

	// 2. Orders with lines across two zones
	fmt.Println("🧾 Creating orders...")
	routing := func(v float64) *float64 { return &v }
	orders := []models.Order{
		{OrderNo: "ORD-1001", CustomerName: "Baltic Retail", Routing: routing(30)},
		{OrderNo: "ORD-1002", CustomerName: "Hansa Foods", Routing: routing(20)},
		{OrderNo: "ORD-1003", CustomerName: "Nordwind GmbH", Routing: routing(10)},
		{OrderNo: "ORD-1004", CustomerName: "City Pharmacy"}, // No routing, picks last
	}

	lines := []models.OrderLine{
		{OrderNo: "ORD-1001", ItemCode: "SKU-100", ItemName: "Mineral Water 6x1.5L", Barcode: "4000000000017", Zone: "MAIN", Corridor: "09", Location: "09-01-A01", UnitType: "case", Pack: "6", Qty: 4},
		{OrderNo: "ORD-1001", ItemCode: "SKU-200", ItemName: "Rye Bread 500g", Barcode: "4000000000024", Zone: "MAIN", Corridor: "10", Location: "10-05-A2", UnitType: "piece", Pack: "1", Qty: 10},
		{OrderNo: "ORD-1002", ItemCode: "SKU-100", ItemName: "Mineral Water 6x1.5L", Barcode: "4000000000017", Zone: "MAIN", Corridor: "09", Location: "09-01-A01", UnitType: "case", Pack: "6", Qty: 2},
		{OrderNo: "ORD-1002", ItemCode: "SKU-300", ItemName: "Frozen Peas 1kg", Barcode: "4000000000031", Zone: "COLD", Corridor: "02", Location: "02-03-B01", UnitType: "bag", Pack: "1", Qty: 6},
		{OrderNo: "ORD-1003", ItemCode: "SKU-200", ItemName: "Rye Bread 500g", Barcode: "4000000000024", Zone: "MAIN", Corridor: "10", Location: "10-05-A2", UnitType: "piece", Pack: "1", Qty: 5},
		{OrderNo: "ORD-1003", ItemCode: "SKU-400", ItemName: "Olive Oil 1L", Barcode: "4000000000048", Zone: "MAIN", Corridor: "10", Location: "10-05-A10", UnitType: "bottle", Pack: "1", Qty: 3},
		{OrderNo: "ORD-1004", ItemCode: "SKU-300", ItemName: "Frozen Peas 1kg", Barcode: "4000000000031", Zone: "COLD", Corridor: "02", Location: "02-03-B01", UnitType: "bag", Pack: "1", Qty: 2},
		{OrderNo: "ORD-1004", ItemCode: "SKU-500", ItemName: "Paper Towels 4pk", Barcode: "4000000000055", Zone: "BULK", Corridor: "20", Location: "20-01-C01", UnitType: "pack", Pack: "4", Qty: 8},
	}

	for i := range orders {
		count := 0
		for _, l := range lines {
			if l.OrderNo == orders[i].OrderNo {
				count++
			}
		}
		orders[i].TotalItems = count
		if err := db.Create(&orders[i]).Error; err != nil {
			log.Fatalf("❌ Failed to create order %s: %v", orders[i].OrderNo, err)
		}
		fmt.Printf("   %s (%s)\n", orders[i].OrderNo, orders[i].CustomerName)
	}
	for i := range lines {
		if err := db.Create(&lines[i]).Error; err != nil {
			log.Fatalf("❌ Failed to create line %s-%s: %v", lines[i].OrderNo, lines[i].ItemCode, err)
		}
	}
	fmt.Printf("   %d order lines\n", len(lines))
	fmt.Println()

	// 3. Sort configuration with COLD zone picked first
	fmt.Println("⚙️  Writing sort configuration...")
	sortConfig := `{
  "zone":     {"enabled": true, "order": 1, "direction": "asc", "manual_priority": ["COLD", "MAIN", "BULK"]},
  "corridor": {"enabled": true, "order": 2, "direction": "asc"},
  "shelf":    {"enabled": true, "order": 3, "direction": "asc"},
  "level":    {"enabled": true, "order": 4, "direction": "asc"},
  "bin":      {"enabled": true, "order": 5, "direction": "asc"}
}`
	setting := models.Setting{Key: models.SortConfigKey, Value: sortConfig}
	if err := db.Save(&setting).Error; err != nil {
		log.Fatalf("❌ Failed to write sort config: %v", err)
	}

	fmt.Println()
	fmt.Println("✅ Demo data ready")
	fmt.Println("   Login: admin / admin123, picker1 / picker1123")
}
