package Models

import (
	"time"

	"gorm.io/gorm"
)

// Journey status values for a fuel record.
const (
	JourneyQueued    = "queued"
	JourneyActive    = "active"
	JourneyCompleted = "completed"
)

// FuelRecord holds the fuel allocation for one truck journey leg.
// Balance must always equal TotalLts + Extra minus the sum of every
// checkpoint and yard column; every write to one of those columns carries
// the opposite delta to Balance in the same UPDATE.
type FuelRecord struct {
	gorm.Model
	TruckNo  string    `json:"truck_no" gorm:"index"`
	GoingDo  string    `json:"going_do" gorm:"index"`
	ReturnDo string    `json:"return_do" gorm:"index"`
	Date     time.Time `json:"date"`

	// Going-direction checkpoint columns
	MoroGoing    float64 `json:"moro_going"`
	IringaGoing  float64 `json:"iringa_going"`
	MbeyaGoing   float64 `json:"mbeya_going"`
	TundumaGoing float64 `json:"tunduma_going"`
	ZambiaGoing  float64 `json:"zambia_going"`

	// Return-direction checkpoint columns
	MoroReturning    float64 `json:"moro_returning"`
	IringaReturning  float64 `json:"iringa_returning"`
	MbeyaReturning   float64 `json:"mbeya_returning"`
	TundumaReturning float64 `json:"tunduma_returning"`
	ZambiaReturning  float64 `json:"zambia_returning"`

	// Yard dispense columns
	DarYard   float64 `json:"dar_yard"`
	MbeyaYard float64 `json:"mbeya_yard"`

	TotalLts float64 `json:"total_lts"`
	Extra    float64 `json:"extra"`
	Balance  float64 `json:"balance"`

	JourneyStatus string `json:"journey_status" gorm:"default:queued"`
	IsCancelled   bool   `json:"is_cancelled"`

	// Bumped on every allocation write. Multi-field manual edits check it
	// before writing so concurrent edits cannot silently overwrite each other.
	Version int `json:"version" gorm:"default:0"`
}

func (FuelRecord) TableName() string {
	return "fuel_records"
}

// AllocationColumns lists every column a reconciliation delta may target,
// keyed by database column name. The schema is fixed; deltas against any
// other name are dropped with a warning.
var AllocationColumns = []string{
	"moro_going", "iringa_going", "mbeya_going", "tunduma_going", "zambia_going",
	"moro_returning", "iringa_returning", "mbeya_returning", "tunduma_returning", "zambia_returning",
	"dar_yard", "mbeya_yard",
}

// IsAllocationColumn reports whether name is one of the known checkpoint
// or yard columns.
func IsAllocationColumn(name string) bool {
	for _, col := range AllocationColumns {
		if col == name {
			return true
		}
	}
	return false
}

// AllocationSum returns the liters already attributed across all checkpoint
// and yard columns.
func (f *FuelRecord) AllocationSum() float64 {
	return f.MoroGoing + f.IringaGoing + f.MbeyaGoing + f.TundumaGoing + f.ZambiaGoing +
		f.MoroReturning + f.IringaReturning + f.MbeyaReturning + f.TundumaReturning + f.ZambiaReturning +
		f.DarYard + f.MbeyaYard
}

// ComputedBalance returns what Balance must be for the record to satisfy
// the allocation invariant.
func (f *FuelRecord) ComputedBalance() float64 {
	return f.TotalLts + f.Extra - f.AllocationSum()
}

// ColumnValue returns the current value of one allocation column.
func (f *FuelRecord) ColumnValue(name string) float64 {
	switch name {
	case "moro_going":
		return f.MoroGoing
	case "iringa_going":
		return f.IringaGoing
	case "mbeya_going":
		return f.MbeyaGoing
	case "tunduma_going":
		return f.TundumaGoing
	case "zambia_going":
		return f.ZambiaGoing
	case "moro_returning":
		return f.MoroReturning
	case "iringa_returning":
		return f.IringaReturning
	case "mbeya_returning":
		return f.MbeyaReturning
	case "tunduma_returning":
		return f.TundumaReturning
	case "zambia_returning":
		return f.ZambiaReturning
	case "dar_yard":
		return f.DarYard
	case "mbeya_yard":
		return f.MbeyaYard
	}
	return 0
}
