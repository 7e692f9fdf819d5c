package Models

import (
	"time"

	"gorm.io/gorm"
)

// StationPrice is the latest published pump price for a station, refreshed
// by the price scraper. Used to sanity-check the rate keyed on LPO entries.
type StationPrice struct {
	gorm.Model
	Station       string    `json:"station" gorm:"uniqueIndex"`
	PricePerLiter float64   `json:"price_per_liter"`
	Currency      string    `json:"currency"`
	Source        string    `json:"source"`
	FetchedAt     time.Time `json:"fetched_at"`
}

func (StationPrice) TableName() string {
	return "station_prices"
}
