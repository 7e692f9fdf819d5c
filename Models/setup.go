package Models

import (
	"log"
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "database.db"
	}

	connection, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	DB = connection

	// 1. Base reference data first
	DB.AutoMigrate(
		&User{},
		&Checkpoint{},
		&StationPrice{},
		&FCMToken{},
		&Notification{},
	)

	// 2. Journey data, then everything that references it
	DB.AutoMigrate(&FuelRecord{})
	DB.AutoMigrate(
		&DeliveryOrder{},
		&LPO{},
		&LPOEntry{},
		&YardFuelDispense{},
	)

	seedCheckpoints(connection)
}

// seedCheckpoints loads the default ordered waypoint list on an empty table.
func seedCheckpoints(db *gorm.DB) {
	var count int64
	if err := db.Model(&Checkpoint{}).Count(&count).Error; err != nil {
		log.Printf("Error counting checkpoints: %v", err)
		return
	}
	if count > 0 {
		return
	}

	checkpoints := make([]Checkpoint, 0, len(DefaultCheckpoints))
	for i, name := range DefaultCheckpoints {
		checkpoints = append(checkpoints, Checkpoint{Name: name, Position: i + 1})
	}
	if err := db.Create(&checkpoints).Error; err != nil {
		log.Printf("Error seeding checkpoints: %v", err)
		return
	}
	log.Printf("Seeded %d default checkpoints", len(checkpoints))
}
