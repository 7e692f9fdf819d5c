package Models

import (
	"time"

	"gorm.io/gorm"
)

// Delivery-order legs.
const (
	LegGoing  = "going"
	LegReturn = "return"
)

// DeliveryOrder is the customer-facing order a journey leg is driven
// against. A going DO with a fuel order attached is what creates the
// journey's FuelRecord.
type DeliveryOrder struct {
	gorm.Model
	DoNo         string    `json:"do_no" gorm:"uniqueIndex"`
	TruckNo      string    `json:"truck_no" gorm:"index"`
	Leg          string    `json:"leg" gorm:"default:going"`
	Dest         string    `json:"dest"`
	Date         time.Time `json:"date"`
	FuelRecordID *uint     `json:"fuel_record_id"`
}

func (DeliveryOrder) TableName() string {
	return "delivery_orders"
}
