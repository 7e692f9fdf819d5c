package CronJobs

import (
	"fmt"
	"log"
	"time"

	"Convoy/Controllers"
	"Convoy/Models"
	"Convoy/Prices"
	"Convoy/Reconcile"
	"Convoy/Slack"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Retention window for trashed rows before they are purged for good.
const trashRetentionDays = 30

// Housekeeper runs the scheduled maintenance jobs: linking sweeps, trash
// retention, price refresh and the daily pending backlog report.
type Housekeeper struct {
	cronScheduler *cron.Cron
	db            *gorm.DB
	engine        *Reconcile.Engine
	slack         *Slack.SlackClient
}

// NewHousekeeper creates the maintenance scheduler.
func NewHousekeeper(db *gorm.DB, engine *Reconcile.Engine, slack *Slack.SlackClient) *Housekeeper {
	return &Housekeeper{
		cronScheduler: cron.New(cron.WithSeconds()),
		db:            db,
		engine:        engine,
		slack:         slack,
	}
}

// Start schedules all jobs and starts the scheduler.
func (h *Housekeeper) Start() error {
	// Hourly linking sweep picks up pending items whose journey appeared
	// without triggering a relink.
	if _, err := h.cronScheduler.AddFunc("0 0 * * * *", func() {
		log.Println("Running scheduled linking sweep")
		h.RunLinkingSweep()
	}); err != nil {
		return fmt.Errorf("error scheduling linking sweep: %w", err)
	}

	// Daily trash purge at 2:00 AM.
	if _, err := h.cronScheduler.AddFunc("0 0 2 * * *", func() {
		log.Println("Running scheduled trash purge")
		h.RunTrashPurge()
	}); err != nil {
		return fmt.Errorf("error scheduling trash purge: %w", err)
	}

	// Daily price refresh at 6:00 AM.
	if _, err := h.cronScheduler.AddFunc("0 0 6 * * *", func() {
		log.Println("Running scheduled price refresh")
		if err := Prices.RefreshPrices(h.db); err != nil {
			log.Printf("Error refreshing prices: %v\n", err)
		}
	}); err != nil {
		return fmt.Errorf("error scheduling price refresh: %w", err)
	}

	// Daily pending backlog report at 7:00 AM.
	if _, err := h.cronScheduler.AddFunc("0 0 7 * * *", func() {
		log.Println("Sending pending backlog report")
		if err := h.slack.SendPendingReport(h.db); err != nil {
			log.Printf("Error sending pending report: %v\n", err)
		}
	}); err != nil {
		return fmt.Errorf("error scheduling pending report: %w", err)
	}

	h.cronScheduler.Start()
	log.Println("Housekeeping scheduler started")
	return nil
}

// Stop terminates the scheduler.
func (h *Housekeeper) Stop() {
	if h.cronScheduler != nil {
		h.cronScheduler.Stop()
		log.Println("Housekeeping scheduler stopped")
	}
}

// RunLinkingSweep retries linking for every truck that still has pending
// dispenses or LPO entries.
func (h *Housekeeper) RunLinkingSweep() {
	var trucks []string
	if err := h.db.Model(&Models.YardFuelDispense{}).
		Where("status = ?", Models.DispensePending).
		Distinct("truck_no").Pluck("truck_no", &trucks).Error; err != nil {
		log.Printf("Linking sweep: failed to list pending dispenses: %v\n", err)
	}

	var entryTrucks []string
	if err := h.db.Model(&Models.LPOEntry{}).
		Where("pending = ? AND is_cancelled = ?", true, false).
		Distinct("truck_no").Pluck("truck_no", &entryTrucks).Error; err != nil {
		log.Printf("Linking sweep: failed to list pending entries: %v\n", err)
	}

	seen := make(map[string]bool)
	var linked int
	for _, truckNo := range append(trucks, entryTrucks...) {
		if truckNo == "" || seen[truckNo] {
			continue
		}
		seen[truckNo] = true
		linked += Controllers.LinkPendingDispenses(h.db, h.engine, truckNo, "linking sweep")
		linked += Controllers.LinkPendingLPOEntries(h.db, h.engine, truckNo)
	}

	if linked > 0 {
		log.Printf("Linking sweep: %d items linked across %d trucks\n", linked, len(seen))
	}
}

// RunTrashPurge hard-deletes rows trashed longer than the retention window.
func (h *Housekeeper) RunTrashPurge() {
	cutoff := time.Now().AddDate(0, 0, -trashRetentionDays)
	purged := Controllers.PurgeTrashedBefore(h.db, cutoff)
	if purged > 0 {
		log.Printf("Trash purge: %d rows removed (trashed before %s)\n",
			purged, cutoff.Format("2006-01-02"))
	}
}
