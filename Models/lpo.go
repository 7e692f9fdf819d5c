package Models

import (
	"time"

	"gorm.io/gorm"
)

// LPO is a purchase order opened with a fuel station. Entries hang off it,
// one per truck fueled under the order.
type LPO struct {
	gorm.Model
	LpoNo   string     `json:"lpo_no" gorm:"uniqueIndex"`
	Station string     `json:"station"`
	Date    time.Time  `json:"date"`
	Entries []LPOEntry `json:"entries" gorm:"foreignKey:LpoID;constraint:OnDelete:CASCADE"`
}

func (LPO) TableName() string {
	return "lpos"
}

// LPOEntry is one truck fueled at a station under a purchase order. When an
// entry is created, updated or deleted a liters delta is pushed to exactly
// one fuel record; the Applied* fields record what was pushed so the delta
// can be reversed and never double-counted.
type LPOEntry struct {
	gorm.Model
	LpoID           uint    `json:"lpo_id" gorm:"index"`
	DoNo            string  `json:"do_no" gorm:"index"`
	TruckNo         string  `json:"truck_no" gorm:"index"`
	Liters          float64 `json:"liters"`
	Rate            float64 `json:"rate"`
	Amount          float64 `json:"amount"`
	Dest            string  `json:"dest"`
	Station         string  `json:"station"`
	IsCancelled     bool    `json:"is_cancelled"`
	IsDriverAccount bool    `json:"is_driver_account"`

	// Link bookkeeping. Pending entries have applied nothing yet.
	Pending         bool    `json:"pending"`
	AppliedRecordID *uint   `json:"applied_record_id"`
	AppliedField    string  `json:"applied_field"`
	AppliedLiters   float64 `json:"applied_liters"`
}

func (LPOEntry) TableName() string {
	return "lpo_entries"
}
