package Reconcile

import (
	"errors"
	"log"
	"time"

	"Convoy/Models"

	"gorm.io/gorm"
)

// ErrConflict is returned by AdjustAllocation after every optimistic retry
// lost to a concurrent writer.
var ErrConflict = errors.New("fuel record modified concurrently, retries exhausted")

const adjustRetries = 3

// Application records one delta the engine pushed to a fuel record, so the
// caller can store it on the source entry and reverse it later.
type Application struct {
	RecordID uint
	Field    string
	Liters   float64
}

// Engine applies signed liters deltas to fuel-record allocation columns and
// keeps the balance invariant. Every delta is a single server-side UPDATE
// (column += delta, balance -= delta), so two concurrent deltas against the
// same record can never lose each other's write.
//
// Failures are deliberately best-effort: a missing record or unknown column
// logs a warning and applies nothing, because reconciliation must never
// block the LPO or yard write that triggered it.
type Engine struct {
	DB       *gorm.DB
	Stations *StationMap
	Resolver *Resolver
	Events   Observer
}

func NewEngine(db *gorm.DB, stations *StationMap, events Observer) *Engine {
	if stations == nil {
		stations = DefaultStationMap()
	}
	if events == nil {
		events = ObserverFunc(func(Event) {})
	}
	return &Engine{
		DB:       db,
		Stations: stations,
		Resolver: NewResolver(db),
		Events:   events,
	}
}

// ApplyDelta adds delta liters to one allocation column of one fuel record
// and subtracts the same delta from its balance, atomically. Returns the
// application on success, nil when it was skipped.
func (e *Engine) ApplyDelta(recordID uint, field string, delta float64, source string) *Application {
	if !Models.IsAllocationColumn(field) {
		log.Printf("Warning: unknown allocation column %q, delta of %.2f lts dropped (source: %s)", field, delta, source)
		return nil
	}
	if delta == 0 {
		return nil
	}

	var before Models.FuelRecord
	if err := e.DB.First(&before, recordID).Error; err != nil {
		log.Printf("Warning: fuel record %d not found, delta of %.2f lts to %s dropped (source: %s)", recordID, delta, field, source)
		return nil
	}

	// field is whitelisted above, so interpolating it is safe.
	result := e.DB.Model(&Models.FuelRecord{}).Where("id = ?", recordID).
		Updates(map[string]interface{}{
			field:     gorm.Expr(field+" + ?", delta),
			"balance": gorm.Expr("balance - ?", delta),
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		log.Printf("Warning: failed to apply %.2f lts to %s on record %d: %v", delta, field, recordID, result.Error)
		return nil
	}
	if result.RowsAffected == 0 {
		log.Printf("Warning: fuel record %d vanished before delta of %.2f lts to %s (source: %s)", recordID, delta, field, source)
		return nil
	}

	log.Printf("Applied %.2f lts to %s on record %d (truck %s): %s %.2f -> %.2f, balance %.2f -> %.2f",
		delta, field, recordID, before.TruckNo,
		field, before.ColumnValue(field), before.ColumnValue(field)+delta,
		before.Balance, before.Balance-delta)

	e.Events.Notify(Event{
		Kind:       EventDeltaApplied,
		RecordID:   recordID,
		TruckNo:    before.TruckNo,
		Field:      field,
		Delta:      delta,
		OldBalance: before.Balance,
		NewBalance: before.Balance - delta,
		Source:     source,
		At:         time.Now(),
	})

	return &Application{RecordID: recordID, Field: field, Liters: delta}
}

// ApplyStationDelta resolves the target record for a DO/truck, maps the
// station to an allocation column, and applies the delta. The outcome tells
// the caller whether to mark its source entry linked, pending, or leave it
// as a completed-journey no-op.
func (e *Engine) ApplyStationDelta(doNo, truckNo, station string, liters float64, at time.Time, source string) (*Application, string) {
	match, err := e.Resolver.Resolve(doNo, truckNo, at)
	if err != nil {
		log.Printf("Warning: resolver failed for DO %q truck %q: %v", doNo, truckNo, err)
		return nil, OutcomeNotFound
	}

	switch match.Outcome {
	case OutcomeNotFound:
		log.Printf("No fuel record for DO %q truck %q, entry left pending (source: %s)", doNo, truckNo, source)
		e.Events.Notify(Event{
			Kind: EventEntryPending, TruckNo: truckNo, DoNo: doNo,
			Delta: liters, Source: source, At: time.Now(),
		})
		return nil, OutcomeNotFound
	case OutcomeJourneyComplete:
		log.Printf("Journey for truck %q already complete (record %d), delta of %.2f lts not applied (source: %s)",
			truckNo, match.Record.ID, liters, source)
		return nil, OutcomeJourneyComplete
	}

	field, ok := e.Stations.Resolve(station, match.Returning)
	if !ok {
		log.Printf("Warning: unknown station %q, delta of %.2f lts skipped (source: %s)", station, liters, source)
		return nil, OutcomeNotFound
	}

	app := e.ApplyDelta(match.Record.ID, field, liters, source)
	if app == nil {
		return nil, OutcomeNotFound
	}
	return app, OutcomeMatched
}

// Reverse undoes a previously recorded application.
func (e *Engine) Reverse(app *Application, source string) {
	if app == nil {
		return
	}
	e.ApplyDelta(app.RecordID, app.Field, -app.Liters, source)
}

// AdjustAllocation overwrites allocation columns and totals on a record in
// one shot, recomputing the balance so the invariant holds. Unlike
// ApplyDelta this cannot be expressed as a single increment, so it takes an
// optimistic version check with bounded retries and surfaces ErrConflict
// only after exhaustion.
//
// updates maps allocation column names (plus "total_lts" / "extra") to new
// absolute values.
func (e *Engine) AdjustAllocation(recordID uint, updates map[string]float64, source string) error {
	for field := range updates {
		if field == "total_lts" || field == "extra" {
			continue
		}
		if !Models.IsAllocationColumn(field) {
			log.Printf("Warning: unknown column %q in manual adjustment, dropped (source: %s)", field, source)
			delete(updates, field)
		}
	}
	if len(updates) == 0 {
		return nil
	}

	for attempt := 0; attempt < adjustRetries; attempt++ {
		var record Models.FuelRecord
		if err := e.DB.First(&record, recordID).Error; err != nil {
			return err
		}

		next := record
		for field, value := range updates {
			switch field {
			case "total_lts":
				next.TotalLts = value
			case "extra":
				next.Extra = value
			default:
				setColumn(&next, field, value)
			}
		}
		newBalance := next.ComputedBalance()

		values := map[string]interface{}{
			"balance": newBalance,
			"version": record.Version + 1,
		}
		for field, value := range updates {
			values[field] = value
		}

		result := e.DB.Model(&Models.FuelRecord{}).
			Where("id = ? AND version = ?", recordID, record.Version).
			Updates(values)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			log.Printf("Adjusted record %d (truck %s): balance %.2f -> %.2f (source: %s)",
				recordID, record.TruckNo, record.Balance, newBalance, source)
			e.Events.Notify(Event{
				Kind:       EventDeltaApplied,
				RecordID:   recordID,
				TruckNo:    record.TruckNo,
				OldBalance: record.Balance,
				NewBalance: newBalance,
				Source:     source,
				Details:    "manual adjustment",
				At:         time.Now(),
			})
			return nil
		}
		// Lost the version race, reread and retry.
	}

	e.Events.Notify(Event{
		Kind:     EventConflict,
		RecordID: recordID,
		Source:   source,
		Details:  "manual adjustment retries exhausted",
		At:       time.Now(),
	})
	return ErrConflict
}

func setColumn(f *Models.FuelRecord, name string, value float64) {
	switch name {
	case "moro_going":
		f.MoroGoing = value
	case "iringa_going":
		f.IringaGoing = value
	case "mbeya_going":
		f.MbeyaGoing = value
	case "tunduma_going":
		f.TundumaGoing = value
	case "zambia_going":
		f.ZambiaGoing = value
	case "moro_returning":
		f.MoroReturning = value
	case "iringa_returning":
		f.IringaReturning = value
	case "mbeya_returning":
		f.MbeyaReturning = value
	case "tunduma_returning":
		f.TundumaReturning = value
	case "zambia_returning":
		f.ZambiaReturning = value
	case "dar_yard":
		f.DarYard = value
	case "mbeya_yard":
		f.MbeyaYard = value
	}
}
