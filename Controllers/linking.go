package Controllers

import (
	"fmt"
	"log"
	"time"

	"Convoy/Models"
	"Convoy/Reconcile"

	"gorm.io/gorm"
)

// LinkPendingDispenses scans all pending yard dispenses for a truck and
// links each one against the truck's open, active fuel record, applying the
// yard-column delta. Returns how many dispenses were linked. Called when a
// fuel record is created or activated, and by the hourly sweep.
func LinkPendingDispenses(db *gorm.DB, engine *Reconcile.Engine, truckNo, actor string) int {
	var pending []Models.YardFuelDispense
	if err := db.Where("status = ? AND LOWER(truck_no) = LOWER(?)", Models.DispensePending, truckNo).
		Order("created_at ASC").Find(&pending).Error; err != nil {
		log.Printf("Warning: failed to fetch pending dispenses for truck %s: %v", truckNo, err)
		return 0
	}

	linked := 0
	for i := range pending {
		if LinkDispense(db, engine, &pending[i], actor) {
			linked++
		}
	}
	return linked
}

// LinkDispense attempts to link one pending dispense. A dispense only links
// against an active, non-cancelled record; already-linked dispenses are
// never touched, so a second call applies no second delta.
func LinkDispense(db *gorm.DB, engine *Reconcile.Engine, dispense *Models.YardFuelDispense, actor string) bool {
	if dispense.Status != Models.DispensePending {
		return false
	}

	match, err := engine.Resolver.Resolve("", dispense.TruckNo, time.Now())
	if err != nil {
		log.Printf("Warning: resolver failed for dispense %d (truck %s): %v", dispense.ID, dispense.TruckNo, err)
		return false
	}
	if match.Outcome != Reconcile.OutcomeMatched || match.Record.JourneyStatus != Models.JourneyActive {
		return false
	}

	column, ok := engine.Stations.YardColumn(dispense.Yard)
	if !ok {
		log.Printf("Warning: unknown yard %q on dispense %d, skipped", dispense.Yard, dispense.ID)
		return false
	}

	app := engine.ApplyDelta(match.Record.ID, column, dispense.Liters, fmt.Sprintf("yard dispense %d", dispense.ID))
	if app == nil {
		return false
	}

	recordID := match.Record.ID
	dispense.Status = Models.DispenseLinked
	dispense.LinkedFuelRecordID = &recordID
	dispense.LinkedDONumber = match.Record.GoingDo
	if err := dispense.AppendHistory("linked", actor,
		fmt.Sprintf("linked to fuel record %d (%s, %.2f lts)", recordID, column, dispense.Liters)); err != nil {
		log.Printf("Warning: failed to append history on dispense %d: %v", dispense.ID, err)
	}
	if err := db.Save(dispense).Error; err != nil {
		// The delta is already on the record; undo it rather than leave a
		// linked amount with no linked dispense.
		engine.Reverse(app, fmt.Sprintf("yard dispense %d link rollback", dispense.ID))
		log.Printf("Warning: failed to persist link on dispense %d: %v", dispense.ID, err)
		return false
	}

	engine.Events.Notify(Reconcile.Event{
		Kind:     Reconcile.EventEntryLinked,
		RecordID: recordID,
		TruckNo:  dispense.TruckNo,
		DoNo:     match.Record.GoingDo,
		Field:    column,
		Delta:    dispense.Liters,
		Source:   fmt.Sprintf("yard dispense %d", dispense.ID),
		At:       time.Now(),
	})

	resolveRecentRejections(db, dispense.TruckNo, dispense.Yard)
	return true
}

// resolveRecentRejections marks recently rejected dispenses for the same
// truck/yard as resolved once a later entry links. Housekeeping only.
func resolveRecentRejections(db *gorm.DB, truckNo, yard string) {
	cutoff := time.Now().AddDate(0, 0, -7)
	result := db.Unscoped().Model(&Models.YardFuelDispense{}).
		Where("status = ? AND LOWER(truck_no) = LOWER(?) AND yard = ? AND resolved = ? AND updated_at >= ?",
			Models.DispenseRejected, truckNo, yard, false, cutoff).
		Update("resolved", true)
	if result.Error != nil {
		log.Printf("Warning: failed to resolve rejected dispenses for truck %s: %v", truckNo, result.Error)
	} else if result.RowsAffected > 0 {
		log.Printf("Marked %d rejected dispenses resolved for truck %s yard %s", result.RowsAffected, truckNo, yard)
	}
}

// LinkPendingLPOEntries re-runs resolution for every pending LPO entry of a
// truck. An entry that already applied a delta is skipped outright.
func LinkPendingLPOEntries(db *gorm.DB, engine *Reconcile.Engine, truckNo string) int {
	var pending []Models.LPOEntry
	if err := db.Where("pending = ? AND LOWER(truck_no) = LOWER(?)", true, truckNo).
		Order("created_at ASC").Find(&pending).Error; err != nil {
		log.Printf("Warning: failed to fetch pending LPO entries for truck %s: %v", truckNo, err)
		return 0
	}

	linked := 0
	for i := range pending {
		if LinkLPOEntry(db, engine, &pending[i]) {
			linked++
		}
	}
	return linked
}

// LinkLPOEntry attempts to apply a pending entry's liters to its fuel
// record. No-op unless the entry is pending with nothing applied yet.
func LinkLPOEntry(db *gorm.DB, engine *Reconcile.Engine, entry *Models.LPOEntry) bool {
	if !entry.Pending || entry.AppliedRecordID != nil || entry.IsCancelled {
		return false
	}

	app, outcome := engine.ApplyStationDelta(entry.DoNo, entry.TruckNo, entry.Station, entry.Liters,
		entry.CreatedAt, fmt.Sprintf("lpo entry %d", entry.ID))
	switch outcome {
	case Reconcile.OutcomeMatched:
		entry.Pending = false
		entry.AppliedRecordID = &app.RecordID
		entry.AppliedField = app.Field
		entry.AppliedLiters = app.Liters
	case Reconcile.OutcomeJourneyComplete:
		// Journey closed out before this entry arrived; record it without a
		// delta so the balance cannot go negative.
		entry.Pending = false
	default:
		return false
	}

	if err := db.Save(entry).Error; err != nil {
		if app != nil {
			engine.Reverse(app, fmt.Sprintf("lpo entry %d link rollback", entry.ID))
		}
		log.Printf("Warning: failed to persist link on LPO entry %d: %v", entry.ID, err)
		return false
	}

	if app != nil {
		engine.Events.Notify(Reconcile.Event{
			Kind:     Reconcile.EventEntryLinked,
			RecordID: app.RecordID,
			TruckNo:  entry.TruckNo,
			DoNo:     entry.DoNo,
			Field:    app.Field,
			Delta:    app.Liters,
			Source:   fmt.Sprintf("lpo entry %d", entry.ID),
			At:       time.Now(),
		})
	}
	return app != nil
}
