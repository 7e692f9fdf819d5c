package Controllers

import (
	"log"
	"strconv"
	"time"

	"Convoy/Models"
	"Convoy/Reconcile"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// FuelRecordController handles fuel-record API endpoints.
type FuelRecordController struct {
	DB     *gorm.DB
	Engine *Reconcile.Engine
}

func NewFuelRecordController(db *gorm.DB, engine *Reconcile.Engine) *FuelRecordController {
	return &FuelRecordController{DB: db, Engine: engine}
}

// GetAllFuelRecords lists records, defaulting to the current month like the
// rest of the date-windowed endpoints.
func (c *FuelRecordController) GetAllFuelRecords(ctx *fiber.Ctx) error {
	startDateStr := ctx.Query("startDate")
	endDateStr := ctx.Query("endDate")
	truckNo := ctx.Query("truckNo")
	status := ctx.Query("status")

	query := c.DB.Model(&Models.FuelRecord{})

	if startDateStr == "" && endDateStr == "" {
		now := time.Now()
		firstDay := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)
		lastDay := time.Date(now.Year(), now.Month()+1, 0, 23, 59, 59, 0, time.Local)
		query = query.Where("date >= ? AND date <= ?", firstDay, lastDay)
	} else {
		if startDateStr != "" {
			query = query.Where("DATE(date) >= ?", startDateStr)
		}
		if endDateStr != "" {
			query = query.Where("DATE(date) <= ?", endDateStr)
		}
	}

	if truckNo != "" {
		query = query.Where("truck_no LIKE ?", "%"+truckNo+"%")
	}
	if status != "" {
		query = query.Where("journey_status = ?", status)
	}

	var records []Models.FuelRecord
	if err := query.Order("date DESC").Find(&records).Error; err != nil {
		log.Println(err.Error())
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve fuel records"})
	}
	return ctx.JSON(records)
}

func (c *FuelRecordController) GetFuelRecord(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid fuel record ID"})
	}

	var record Models.FuelRecord
	if result := c.DB.First(&record, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Fuel record not found"})
	}
	return ctx.JSON(record)
}

type CreateFuelRecordInput struct {
	TruckNo  string  `json:"truck_no" validate:"required"`
	GoingDo  string  `json:"going_do"`
	ReturnDo string  `json:"return_do"`
	Date     string  `json:"date" validate:"required"`
	TotalLts float64 `json:"total_lts" validate:"gte=0"`
	Extra    float64 `json:"extra" validate:"gte=0"`
	Activate bool    `json:"activate"`
}

// CreateFuelRecord opens a journey-leg allocation. Any pending yard
// dispenses or LPO entries for the truck are linked retroactively; their
// failures never fail the create.
func (c *FuelRecordController) CreateFuelRecord(ctx *fiber.Ctx) error {
	var input CreateFuelRecordInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := validate.Struct(input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": validationMessages(err)})
	}

	date, err := time.Parse("2006-01-02", input.Date)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date format. Use YYYY-MM-DD"})
	}

	status := Models.JourneyQueued
	if input.Activate {
		status = Models.JourneyActive
	}

	record := Models.FuelRecord{
		TruckNo:       input.TruckNo,
		GoingDo:       input.GoingDo,
		ReturnDo:      input.ReturnDo,
		Date:          date,
		TotalLts:      input.TotalLts,
		Extra:         input.Extra,
		Balance:       input.TotalLts + input.Extra,
		JourneyStatus: status,
	}
	if err := c.DB.Create(&record).Error; err != nil {
		log.Println(err.Error())
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create fuel record"})
	}

	actor := actorName(ctx)
	linked := LinkPendingDispenses(c.DB, c.Engine, record.TruckNo, actor)
	relinked := LinkPendingLPOEntries(c.DB, c.Engine, record.TruckNo)
	if linked+relinked > 0 {
		log.Printf("Retroactively linked %d dispenses and %d LPO entries for truck %s", linked, relinked, record.TruckNo)
	}

	c.DB.First(&record, record.ID)
	return ctx.Status(fiber.StatusCreated).JSON(record)
}

type UpdateFuelRecordInput struct {
	GoingDo       string `json:"going_do"`
	ReturnDo      string `json:"return_do"`
	Date          string `json:"date"`
	JourneyStatus string `json:"journey_status" validate:"omitempty,oneof=queued active completed"`

	// Allocation overrides. Absolute values; balance is recomputed.
	Allocations map[string]float64 `json:"allocations"`
	TotalLts    *float64           `json:"total_lts"`
	Extra       *float64           `json:"extra"`
}

// UpdateFuelRecord edits journey metadata and, for manual corrections,
// overwrites allocation columns through the engine's optimistic path.
func (c *FuelRecordController) UpdateFuelRecord(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid fuel record ID"})
	}

	var record Models.FuelRecord
	if result := c.DB.First(&record, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Fuel record not found"})
	}

	var input UpdateFuelRecordInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := validate.Struct(input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": validationMessages(err)})
	}

	updates := make(map[string]interface{})
	if input.GoingDo != "" {
		updates["going_do"] = input.GoingDo
	}
	if input.ReturnDo != "" {
		updates["return_do"] = input.ReturnDo
	}
	if input.JourneyStatus != "" {
		updates["journey_status"] = input.JourneyStatus
	}
	if input.Date != "" {
		date, err := time.Parse("2006-01-02", input.Date)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date format. Use YYYY-MM-DD"})
		}
		updates["date"] = date
	}
	if len(updates) > 0 {
		if err := c.DB.Model(&record).Updates(updates).Error; err != nil {
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update fuel record"})
		}
	}

	adjustments := make(map[string]float64, len(input.Allocations))
	for field, value := range input.Allocations {
		adjustments[field] = value
	}
	if input.TotalLts != nil {
		adjustments["total_lts"] = *input.TotalLts
	}
	if input.Extra != nil {
		adjustments["extra"] = *input.Extra
	}
	if len(adjustments) > 0 {
		if err := c.Engine.AdjustAllocation(record.ID, adjustments, "manual correction by "+actorName(ctx)); err != nil {
			if err == Reconcile.ErrConflict {
				return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Record was modified concurrently, try again"})
			}
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to adjust allocation"})
		}
	}

	// Activating a record is what makes it eligible for pending dispenses.
	if input.JourneyStatus == Models.JourneyActive {
		LinkPendingDispenses(c.DB, c.Engine, record.TruckNo, actorName(ctx))
		LinkPendingLPOEntries(c.DB, c.Engine, record.TruckNo)
	}

	c.DB.First(&record, record.ID)
	return ctx.JSON(record)
}

// CancelFuelRecord flags the record so the resolver stops matching it.
func (c *FuelRecordController) CancelFuelRecord(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid fuel record ID"})
	}

	var record Models.FuelRecord
	if result := c.DB.First(&record, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Fuel record not found"})
	}

	if err := c.DB.Model(&record).Update("is_cancelled", true).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to cancel fuel record"})
	}
	return ctx.JSON(fiber.Map{"message": "Fuel record cancelled"})
}

// DeleteFuelRecord soft deletes; the trash endpoints can restore or purge.
func (c *FuelRecordController) DeleteFuelRecord(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid fuel record ID"})
	}

	var record Models.FuelRecord
	if result := c.DB.First(&record, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Fuel record not found"})
	}

	c.DB.Delete(&record)
	return ctx.JSON(fiber.Map{"message": "Fuel record deleted successfully"})
}

// actorName returns the acting user's name for history/audit entries.
func actorName(ctx *fiber.Ctx) string {
	if user, ok := ctx.Locals("user").(Models.User); ok {
		return user.Name
	}
	return "system"
}
