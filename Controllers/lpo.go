package Controllers

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"Convoy/Models"
	"Convoy/Reconcile"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// LPOController handles purchase orders and their per-truck entries. Every
// entry mutation pushes a liters delta through the reconciliation engine;
// engine failures are downgraded to pending/log status and never fail the
// entry write itself.
type LPOController struct {
	DB     *gorm.DB
	Engine *Reconcile.Engine
}

func NewLPOController(db *gorm.DB, engine *Reconcile.Engine) *LPOController {
	return &LPOController{DB: db, Engine: engine}
}

type LPOEntryInput struct {
	DoNo            string  `json:"do_no"`
	TruckNo         string  `json:"truck_no" validate:"required"`
	Liters          float64 `json:"liters" validate:"gt=0"`
	Rate            float64 `json:"rate" validate:"gte=0"`
	Amount          float64 `json:"amount"`
	Dest            string  `json:"dest"`
	Station         string  `json:"station"`
	IsDriverAccount bool    `json:"is_driver_account"`
}

type CreateLPOInput struct {
	LpoNo   string          `json:"lpo_no" validate:"required"`
	Station string          `json:"station" validate:"required"`
	Date    string          `json:"date" validate:"required"`
	Entries []LPOEntryInput `json:"entries" validate:"dive"`
}

func (c *LPOController) GetLPOs(ctx *fiber.Ctx) error {
	query := c.DB.Model(&Models.LPO{}).Preload("Entries")
	if station := ctx.Query("station"); station != "" {
		query = query.Where("station = ?", station)
	}
	if startDate := ctx.Query("startDate"); startDate != "" {
		query = query.Where("DATE(date) >= ?", startDate)
	}
	if endDate := ctx.Query("endDate"); endDate != "" {
		query = query.Where("DATE(date) <= ?", endDate)
	}

	var lpos []Models.LPO
	if err := query.Order("date DESC").Find(&lpos).Error; err != nil {
		log.Println(err.Error())
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve LPOs"})
	}
	return ctx.JSON(lpos)
}

func (c *LPOController) GetLPO(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid LPO ID"})
	}
	var lpo Models.LPO
	if result := c.DB.Preload("Entries").First(&lpo, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "LPO not found"})
	}
	return ctx.JSON(lpo)
}

// CreateLPO opens a purchase order, optionally with its first batch of
// entries. Each entry is linked and applied individually.
func (c *LPOController) CreateLPO(ctx *fiber.Ctx) error {
	var input CreateLPOInput
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

	lpo := Models.LPO{LpoNo: input.LpoNo, Station: input.Station, Date: date}
	if err := c.DB.Create(&lpo).Error; err != nil {
		log.Println(err.Error())
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "LPO already exists"})
	}

	for _, entryInput := range input.Entries {
		if _, err := c.createEntry(&lpo, entryInput); err != nil {
			log.Printf("Warning: failed to create entry for truck %s on LPO %s: %v", entryInput.TruckNo, lpo.LpoNo, err)
		}
	}

	c.DB.Preload("Entries").First(&lpo, lpo.ID)
	return ctx.Status(fiber.StatusCreated).JSON(lpo)
}

type UpdateLPOInput struct {
	Station string `json:"station"`
	Date    string `json:"date"`
}

func (c *LPOController) UpdateLPO(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid LPO ID"})
	}
	var lpo Models.LPO
	if result := c.DB.First(&lpo, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "LPO not found"})
	}

	var input UpdateLPOInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	updates := make(map[string]interface{})
	if input.Station != "" {
		updates["station"] = input.Station
	}
	if input.Date != "" {
		date, err := time.Parse("2006-01-02", input.Date)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date format. Use YYYY-MM-DD"})
		}
		updates["date"] = date
	}
	if len(updates) > 0 {
		c.DB.Model(&lpo).Updates(updates)
		c.DB.First(&lpo, id)
	}
	return ctx.JSON(lpo)
}

// DeleteLPO reverses every applied entry delta, then soft deletes the order
// and its entries.
func (c *LPOController) DeleteLPO(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid LPO ID"})
	}
	var lpo Models.LPO
	if result := c.DB.Preload("Entries").First(&lpo, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "LPO not found"})
	}

	for i := range lpo.Entries {
		c.reverseEntry(&lpo.Entries[i])
	}
	c.DB.Where("lpo_id = ?", lpo.ID).Delete(&Models.LPOEntry{})
	c.DB.Delete(&lpo)
	return ctx.JSON(fiber.Map{"message": "LPO deleted successfully"})
}

// CreateEntry adds one truck's fueling to an existing purchase order.
func (c *LPOController) CreateEntry(ctx *fiber.Ctx) error {
	lpoID, err := strconv.Atoi(ctx.Params("lpo_id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid LPO ID"})
	}
	var lpo Models.LPO
	if result := c.DB.First(&lpo, lpoID); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "LPO not found"})
	}

	var input LPOEntryInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := validate.Struct(input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": validationMessages(err)})
	}

	entry, err := c.createEntry(&lpo, input)
	if err != nil {
		log.Println(err.Error())
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create entry"})
	}
	return ctx.Status(fiber.StatusCreated).JSON(entry)
}

// createEntry persists the entry first, then applies its liters through the
// engine. The write always succeeds; a failed application leaves the entry
// pending.
func (c *LPOController) createEntry(lpo *Models.LPO, input LPOEntryInput) (*Models.LPOEntry, error) {
	station := input.Station
	if station == "" {
		station = lpo.Station
	}
	amount := input.Amount
	if amount == 0 {
		amount = input.Liters * input.Rate
	}

	entry := Models.LPOEntry{
		LpoID:           lpo.ID,
		DoNo:            input.DoNo,
		TruckNo:         input.TruckNo,
		Liters:          input.Liters,
		Rate:            input.Rate,
		Amount:          amount,
		Dest:            input.Dest,
		Station:         station,
		IsDriverAccount: input.IsDriverAccount,
		Pending:         true,
	}
	if err := c.DB.Create(&entry).Error; err != nil {
		return nil, err
	}

	c.checkRate(&entry)
	LinkLPOEntry(c.DB, c.Engine, &entry)
	return &entry, nil
}

// checkRate warns when an entry's rate strays from the station's published
// pump price. Informational only.
func (c *LPOController) checkRate(entry *Models.LPOEntry) {
	if entry.Rate == 0 {
		return
	}
	var price Models.StationPrice
	if err := c.DB.Where("station = ?", entry.Station).First(&price).Error; err != nil {
		return
	}
	if price.PricePerLiter == 0 {
		return
	}
	deviation := math.Abs(entry.Rate-price.PricePerLiter) / price.PricePerLiter
	if deviation > 0.10 {
		log.Printf("Warning: LPO entry %d rate %.2f deviates %.0f%% from published %s price %.2f",
			entry.ID, entry.Rate, deviation*100, entry.Station, price.PricePerLiter)
	}
}

type UpdateEntryInput struct {
	DoNo    *string  `json:"do_no"`
	Liters  *float64 `json:"liters" validate:"omitempty,gte=0"`
	Rate    *float64 `json:"rate" validate:"omitempty,gte=0"`
	Dest    *string  `json:"dest"`
	Station *string  `json:"station"`
}

// UpdateEntry edits an entry. A liters change on an applied entry pushes
// the difference (new - old) to the same record and field; a pending entry
// simply retries the link with its new values.
func (c *LPOController) UpdateEntry(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid entry ID"})
	}
	var entry Models.LPOEntry
	if result := c.DB.First(&entry, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Entry not found"})
	}

	var input UpdateEntryInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := validate.Struct(input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": validationMessages(err)})
	}

	if input.DoNo != nil {
		entry.DoNo = *input.DoNo
	}
	if input.Dest != nil {
		entry.Dest = *input.Dest
	}
	if input.Station != nil {
		entry.Station = *input.Station
	}
	if input.Rate != nil {
		entry.Rate = *input.Rate
	}
	var app *Reconcile.Application
	if input.Liters != nil {
		oldLiters := entry.Liters
		entry.Liters = *input.Liters
		if entry.AppliedRecordID != nil {
			delta := entry.Liters - oldLiters
			if delta != 0 {
				if app = c.Engine.ApplyDelta(*entry.AppliedRecordID, entry.AppliedField, delta,
					fmt.Sprintf("lpo entry %d update", entry.ID)); app != nil {
					entry.AppliedLiters += delta
				}
			}
		}
	}
	entry.Amount = entry.Liters * entry.Rate

	if err := c.DB.Save(&entry).Error; err != nil {
		// The record already took the difference; undo it or the row's
		// AppliedLiters no longer matches what was applied.
		c.Engine.Reverse(app, fmt.Sprintf("lpo entry %d update rollback", entry.ID))
		log.Println(err.Error())
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update entry"})
	}

	if entry.Pending {
		LinkLPOEntry(c.DB, c.Engine, &entry)
	}

	c.DB.First(&entry, entry.ID)
	return ctx.JSON(entry)
}

// CancelEntry reverses the entry's delta and flags it cancelled without
// deleting it.
func (c *LPOController) CancelEntry(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid entry ID"})
	}
	var entry Models.LPOEntry
	if result := c.DB.First(&entry, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Entry not found"})
	}
	if entry.IsCancelled {
		return ctx.JSON(entry)
	}

	app := c.reverseEntry(&entry)
	entry.IsCancelled = true
	entry.Pending = false
	if err := c.DB.Save(&entry).Error; err != nil {
		// Put the delta back: the row still says applied and not cancelled,
		// and a retried cancel would otherwise reverse twice.
		c.Engine.Reverse(app, fmt.Sprintf("lpo entry %d cancel rollback", entry.ID))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to cancel entry"})
	}
	return ctx.JSON(entry)
}

// DeleteEntry reverses any applied delta and soft deletes the entry. The
// Applied* bookkeeping stays on the row so a restore can re-apply it.
func (c *LPOController) DeleteEntry(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid entry ID"})
	}
	var entry Models.LPOEntry
	if result := c.DB.First(&entry, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Entry not found"})
	}

	if entry.AppliedRecordID != nil && entry.AppliedLiters != 0 {
		c.Engine.ApplyDelta(*entry.AppliedRecordID, entry.AppliedField, -entry.AppliedLiters,
			fmt.Sprintf("lpo entry %d delete", entry.ID))
	}
	c.DB.Delete(&entry)
	return ctx.JSON(fiber.Map{"message": "Entry deleted successfully"})
}

// reverseEntry nets out everything the entry ever applied. The returned
// application lets the caller undo the reversal if its own write fails.
func (c *LPOController) reverseEntry(entry *Models.LPOEntry) *Reconcile.Application {
	if entry.AppliedRecordID == nil || entry.AppliedLiters == 0 {
		return nil
	}
	app := c.Engine.ApplyDelta(*entry.AppliedRecordID, entry.AppliedField, -entry.AppliedLiters,
		fmt.Sprintf("lpo entry %d reversal", entry.ID))
	entry.AppliedLiters = 0
	return app
}

// RelinkPending retries resolution for every pending entry of a truck.
func (c *LPOController) RelinkPending(ctx *fiber.Ctx) error {
	truckNo := ctx.Params("truckNo")
	if truckNo == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Truck number is required"})
	}
	linked := LinkPendingLPOEntries(c.DB, c.Engine, truckNo)
	return ctx.JSON(fiber.Map{"linked": linked})
}

// GetPendingEntries lists entries still waiting for a fuel record.
func (c *LPOController) GetPendingEntries(ctx *fiber.Ctx) error {
	var entries []Models.LPOEntry
	if err := c.DB.Where("pending = ?", true).Order("created_at ASC").Find(&entries).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve pending entries"})
	}
	return ctx.JSON(entries)
}
