package Controllers

import (
	"log"
	"strconv"
	"strings"
	"time"

	"Convoy/Models"
	"Convoy/Reconcile"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ImportController loads fuel records and checkpoints from uploaded
// spreadsheets. Expected layouts are documented per handler.
type ImportController struct {
	DB     *gorm.DB
	Engine *Reconcile.Engine
}

func NewImportController(db *gorm.DB, engine *Reconcile.Engine) *ImportController {
	return &ImportController{DB: db, Engine: engine}
}

func openUploadedSheet(ctx *fiber.Ctx) (*excelize.File, error) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return nil, err
	}
	src, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return excelize.OpenReader(src)
}

// ImportFuelRecords imports fuel records from an xlsx upload. Columns:
// truck_no, going_do, return_do, date (YYYY-MM-DD), total_lts, extra.
// The first row is treated as a header. Imported records start active
// and pending items are linked immediately.
func (c *ImportController) ImportFuelRecords(ctx *fiber.Ctx) error {
	f, err := openUploadedSheet(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No valid xlsx file provided"})
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to read sheet"})
	}

	var imported, skipped int
	var errors []string
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < 5 || strings.TrimSpace(row[0]) == "" {
			skipped++
			continue
		}

		cell := func(idx int) string {
			if idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}

		date, err := time.Parse("2006-01-02", cell(3))
		if err != nil {
			errors = append(errors, "row "+strconv.Itoa(i+1)+": invalid date")
			skipped++
			continue
		}
		totalLts, err := strconv.ParseFloat(cell(4), 64)
		if err != nil {
			errors = append(errors, "row "+strconv.Itoa(i+1)+": invalid total_lts")
			skipped++
			continue
		}
		extra := 0.0
		if cell(5) != "" {
			extra, _ = strconv.ParseFloat(cell(5), 64)
		}

		record := Models.FuelRecord{
			TruckNo:       cell(0),
			GoingDo:       cell(1),
			ReturnDo:      cell(2),
			Date:          date,
			TotalLts:      totalLts,
			Extra:         extra,
			Balance:       totalLts + extra,
			JourneyStatus: Models.JourneyActive,
		}
		if err := c.DB.Create(&record).Error; err != nil {
			errors = append(errors, "row "+strconv.Itoa(i+1)+": "+err.Error())
			skipped++
			continue
		}
		imported++

		LinkPendingDispenses(c.DB, c.Engine, record.TruckNo, actorName(ctx))
		LinkPendingLPOEntries(c.DB, c.Engine, record.TruckNo)
	}

	log.Printf("Fuel record import: %d imported, %d skipped", imported, skipped)
	return ctx.JSON(fiber.Map{
		"imported": imported,
		"skipped":  skipped,
		"errors":   errors,
	})
}

// ImportCheckpoints imports route checkpoints from an xlsx upload. One
// checkpoint name per row in the first column, ordered top to bottom.
func (c *ImportController) ImportCheckpoints(ctx *fiber.Ctx) error {
	f, err := openUploadedSheet(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No valid xlsx file provided"})
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to read sheet"})
	}

	var imported int
	err = c.DB.Transaction(func(tx *gorm.DB) error {
		var position int64
		if err := tx.Model(&Models.Checkpoint{}).Count(&position).Error; err != nil {
			return err
		}
		for _, row := range rows {
			if len(row) == 0 {
				continue
			}
			name := strings.ToUpper(strings.TrimSpace(row[0]))
			if name == "" || name == "NAME" || name == "CHECKPOINT" {
				continue
			}
			var existing int64
			tx.Model(&Models.Checkpoint{}).Where("name = ?", name).Count(&existing)
			if existing > 0 {
				continue
			}
			position++
			checkpoint := Models.Checkpoint{Name: name, Position: int(position)}
			if err := tx.Create(&checkpoint).Error; err != nil {
				return err
			}
			imported++
		}
		return nil
	})
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to import checkpoints"})
	}

	return ctx.JSON(fiber.Map{"imported": imported})
}
