package Prices

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"Convoy/Models"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"gorm.io/gorm"
)

// BoardPrice is one row parsed off the published pump price board.
type BoardPrice struct {
	Station       string
	PricePerLiter float64
	Currency      string
}

// ParsePriceBoard extracts station prices from a price board HTML page.
// The board is a plain table: station name in the first cell, price in
// the second, optional currency in the third.
func ParsePriceBoard(body io.Reader) ([]BoardPrice, error) {
	document, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}

	var prices []BoardPrice
	document.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		station := strings.ToUpper(strings.TrimSpace(cells.Eq(0).Text()))
		if station == "" {
			return
		}

		rawPrice := strings.TrimSpace(cells.Eq(1).Text())
		rawPrice = strings.ReplaceAll(rawPrice, ",", "")
		price, err := strconv.ParseFloat(rawPrice, 64)
		if err != nil || price <= 0 {
			return
		}

		currency := "TZS"
		if cells.Length() > 2 {
			if c := strings.TrimSpace(cells.Eq(2).Text()); c != "" {
				currency = strings.ToUpper(c)
			}
		}

		prices = append(prices, BoardPrice{
			Station:       station,
			PricePerLiter: price,
			Currency:      currency,
		})
	})
	return prices, nil
}

// FetchBoard scrapes the configured price board URL.
func FetchBoard(boardURL string) ([]BoardPrice, error) {
	client := colly.NewCollector()

	var prices []BoardPrice
	var parseErr error
	client.OnResponse(func(r *colly.Response) {
		prices, parseErr = ParsePriceBoard(strings.NewReader(string(r.Body)))
	})

	if err := client.Visit(boardURL); err != nil {
		return nil, err
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("no prices found on board %s", boardURL)
	}
	return prices, nil
}

// UpsertPrices stores the scraped prices, one row per station.
func UpsertPrices(db *gorm.DB, prices []BoardPrice, source string) int {
	var updated int
	now := time.Now()
	for _, p := range prices {
		var existing Models.StationPrice
		err := db.Where("station = ?", p.Station).First(&existing).Error
		if err != nil {
			record := Models.StationPrice{
				Station:       p.Station,
				PricePerLiter: p.PricePerLiter,
				Currency:      p.Currency,
				Source:        source,
				FetchedAt:     now,
			}
			if err := db.Create(&record).Error; err != nil {
				log.Printf("Failed to store price for %s: %v", p.Station, err)
				continue
			}
			updated++
			continue
		}

		existing.PricePerLiter = p.PricePerLiter
		existing.Currency = p.Currency
		existing.Source = source
		existing.FetchedAt = now
		if err := db.Save(&existing).Error; err != nil {
			log.Printf("Failed to update price for %s: %v", p.Station, err)
			continue
		}
		updated++
	}
	return updated
}

// RefreshPrices scrapes PRICE_BOARD_URL and updates stored prices.
// A no-op when the URL is not configured.
func RefreshPrices(db *gorm.DB) error {
	boardURL := os.Getenv("PRICE_BOARD_URL")
	if boardURL == "" {
		return nil
	}

	prices, err := FetchBoard(boardURL)
	if err != nil {
		return err
	}

	updated := UpsertPrices(db, prices, boardURL)
	log.Printf("Price refresh: %d stations updated from %s", updated, boardURL)
	return nil
}
