package Models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Yard dispense statuses.
const (
	DispensePending  = "pending"
	DispenseLinked   = "linked"
	DispenseManual   = "manual"
	DispenseRejected = "rejected"
)

// YardFuelDispense is one refueling event at a yard. Created pending, it is
// linked to an active fuel record either immediately or retroactively when a
// record for the truck appears. Rejection is a soft delete with a reason;
// the history column keeps every transition.
type YardFuelDispense struct {
	gorm.Model
	TruckNo string  `json:"truck_no" gorm:"index"`
	Yard    string  `json:"yard"`
	Liters  float64 `json:"liters"`
	Status  string  `json:"status" gorm:"default:pending;index"`

	LinkedFuelRecordID *uint  `json:"linked_fuel_record_id"`
	LinkedDONumber     string `json:"linked_do_number"`

	RejectReason string `json:"reject_reason"`
	RejectedBy   string `json:"rejected_by"`
	Resolved     bool   `json:"resolved"`

	PhotoPath string `json:"photo_path"`
	ThumbPath string `json:"thumb_path"`

	History datatypes.JSON `json:"history"`
}

func (YardFuelDispense) TableName() string {
	return "yard_fuel_dispenses"
}

// DispenseHistoryEntry is one state transition in a dispense's history log.
type DispenseHistoryEntry struct {
	Action  string    `json:"action"`
	Actor   string    `json:"actor"`
	Details string    `json:"details,omitempty"`
	At      time.Time `json:"at"`
}

// AppendHistory appends one transition to the dispense's history log.
// The log is append-only; existing entries are never rewritten.
func (d *YardFuelDispense) AppendHistory(action, actor, details string) error {
	var entries []DispenseHistoryEntry
	if len(d.History) > 0 {
		if err := json.Unmarshal(d.History, &entries); err != nil {
			return err
		}
	}
	entries = append(entries, DispenseHistoryEntry{
		Action:  action,
		Actor:   actor,
		Details: details,
		At:      time.Now(),
	})
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	d.History = datatypes.JSON(raw)
	return nil
}

// HistoryEntries decodes the history log.
func (d *YardFuelDispense) HistoryEntries() ([]DispenseHistoryEntry, error) {
	var entries []DispenseHistoryEntry
	if len(d.History) == 0 {
		return entries, nil
	}
	err := json.Unmarshal(d.History, &entries)
	return entries, err
}
