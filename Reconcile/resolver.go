package Reconcile

import (
	"errors"
	"strings"
	"time"

	"Convoy/Models"

	"gorm.io/gorm"
)

// Outcome of a resolution attempt.
const (
	OutcomeMatched         = "matched"
	OutcomeJourneyComplete = "journey_complete"
	OutcomeNotFound        = "not_found"
)

// Match is the result of locating the fuel record an incoming liters delta
// belongs to. Record is only valid for OutcomeMatched and
// OutcomeJourneyComplete.
type Match struct {
	Outcome   string
	Record    Models.FuelRecord
	Returning bool
}

// Resolver locates the single open fuel record a DO number or truck number
// refers to. DO matches are exact; the truck fallback walks month windows
// newest-first looking for a record with fuel still unaccounted for.
type Resolver struct {
	DB *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{DB: db}
}

// Resolve applies the resolution order: going DO, return DO, then the
// truck-number month-window fallback. at anchors the month windows; pass
// the source entry's date, or time.Now() for live traffic.
func (r *Resolver) Resolve(doNo, truckNo string, at time.Time) (Match, error) {
	doNo = strings.TrimSpace(doNo)
	truckNo = strings.TrimSpace(truckNo)

	if doNo != "" {
		var record Models.FuelRecord
		err := r.DB.Where("going_do = ? AND is_cancelled = ?", doNo, false).
			Order("date DESC").First(&record).Error
		if err == nil {
			return Match{Outcome: OutcomeMatched, Record: record, Returning: false}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return Match{Outcome: OutcomeNotFound}, err
		}

		err = r.DB.Where("return_do = ? AND is_cancelled = ?", doNo, false).
			Order("date DESC").First(&record).Error
		if err == nil {
			return Match{Outcome: OutcomeMatched, Record: record, Returning: true}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return Match{Outcome: OutcomeNotFound}, err
		}
	}

	if truckNo == "" {
		return Match{Outcome: OutcomeNotFound}, nil
	}
	return r.resolveByTruck(truckNo, at)
}

// resolveByTruck fetches the truck's records newest-first and searches the
// current month, the previous month, then two months back for the first
// record with balance still open.
func (r *Resolver) resolveByTruck(truckNo string, at time.Time) (Match, error) {
	var records []Models.FuelRecord
	err := r.DB.
		Where("LOWER(truck_no) LIKE ?", "%"+strings.ToLower(truckNo)+"%").
		Where("is_cancelled = ?", false).
		Order("date DESC").
		Find(&records).Error
	if err != nil {
		return Match{Outcome: OutcomeNotFound}, err
	}
	if len(records) == 0 {
		return Match{Outcome: OutcomeNotFound}, nil
	}

	for monthsBack := 0; monthsBack <= 2; monthsBack++ {
		start, end := monthWindow(at, monthsBack)
		for _, record := range records {
			if record.Date.Before(start) || !record.Date.Before(end) {
				continue
			}
			if record.Balance > 0 {
				return Match{Outcome: OutcomeMatched, Record: record}, nil
			}
		}
	}

	// Nothing open anywhere: if the latest leg closed out exactly, the
	// journey is complete and late entries must not drive it negative.
	if records[0].Balance == 0 {
		return Match{Outcome: OutcomeJourneyComplete, Record: records[0]}, nil
	}
	return Match{Outcome: OutcomeNotFound}, nil
}

// monthWindow returns [start, end) of the calendar month monthsBack months
// before at.
func monthWindow(at time.Time, monthsBack int) (time.Time, time.Time) {
	anchor := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
	start := anchor.AddDate(0, -monthsBack, 0)
	end := start.AddDate(0, 1, 0)
	return start, end
}
