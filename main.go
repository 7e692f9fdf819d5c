package main

import (
	"log"
	"os"

	"Convoy/CronJobs"
	"Convoy/FiberConfig"
	"Convoy/Models"
	"Convoy/Notifications"
	"Convoy/Reconcile"
	"Convoy/Slack"

	"github.com/joho/godotenv"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	Models.Connect()

	stations := Reconcile.DefaultStationMap()
	if path := os.Getenv("STATION_MAP"); path != "" {
		loaded, err := Reconcile.LoadStationMap(path)
		if err != nil {
			log.Fatalf("Failed to load station map %s: %v", path, err)
		}
		stations = loaded
	}

	slack := Slack.NewSlackClient()

	observers := Reconcile.MultiObserver{Notifications.NewObserver(Models.DB)}
	if slack != nil {
		observers = append(observers, slack.NewObserver())
	}

	engine := Reconcile.NewEngine(Models.DB, stations, observers)

	go func() {
		if err := Notifications.InitFirebase(); err != nil {
			log.Println("Failed to initialize Firebase:", err)
		}
	}()

	housekeeper := CronJobs.NewHousekeeper(Models.DB, engine, slack)
	if err := housekeeper.Start(); err != nil {
		log.Printf("Failed to start housekeeping scheduler: %v", err)
	}
	defer housekeeper.Stop()

	FiberConfig.FiberConfig(engine)
}
