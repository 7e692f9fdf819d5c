package Controllers

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"Convoy/Models"
	"Convoy/Reconcile"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// YardFuelController handles yard dispense endpoints and their linking
// state machine: pending -> linked, pending/linked -> rejected.
type YardFuelController struct {
	DB        *gorm.DB
	Engine    *Reconcile.Engine
	UploadDir string
}

func NewYardFuelController(db *gorm.DB, engine *Reconcile.Engine) *YardFuelController {
	return &YardFuelController{DB: db, Engine: engine, UploadDir: "uploads/dispenses"}
}

type CreateDispenseInput struct {
	TruckNo string  `json:"truck_no" validate:"required"`
	Yard    string  `json:"yard" validate:"required"`
	Liters  float64 `json:"liters" validate:"gt=0"`
}

// CreateDispense logs a yard refueling. The dispense is created pending and
// linked immediately when the truck already has an active fuel record;
// otherwise it waits for one to appear.
func (c *YardFuelController) CreateDispense(ctx *fiber.Ctx) error {
	var input CreateDispenseInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := validate.Struct(input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": validationMessages(err)})
	}
	if _, ok := c.Engine.Stations.YardColumn(input.Yard); !ok {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown yard"})
	}

	actor := actorName(ctx)
	dispense := Models.YardFuelDispense{
		TruckNo: input.TruckNo,
		Yard:    input.Yard,
		Liters:  input.Liters,
		Status:  Models.DispensePending,
	}
	if err := dispense.AppendHistory("created", actor, fmt.Sprintf("%.2f lts at %s", input.Liters, input.Yard)); err != nil {
		log.Println(err.Error())
	}
	if err := c.DB.Create(&dispense).Error; err != nil {
		log.Println(err.Error())
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create dispense"})
	}

	if !LinkDispense(c.DB, c.Engine, &dispense, actor) {
		log.Printf("Dispense %d for truck %s left pending", dispense.ID, dispense.TruckNo)
		c.Engine.Events.Notify(Reconcile.Event{
			Kind:    Reconcile.EventEntryPending,
			TruckNo: dispense.TruckNo,
			Delta:   dispense.Liters,
			Source:  fmt.Sprintf("yard dispense %d", dispense.ID),
			At:      time.Now(),
		})
	}

	c.DB.First(&dispense, dispense.ID)
	return ctx.Status(fiber.StatusCreated).JSON(dispense)
}

func (c *YardFuelController) GetDispenses(ctx *fiber.Ctx) error {
	query := c.DB.Model(&Models.YardFuelDispense{})
	if status := ctx.Query("status"); status != "" {
		if status == Models.DispenseRejected {
			query = query.Unscoped().Where("status = ?", Models.DispenseRejected)
		} else {
			query = query.Where("status = ?", status)
		}
	}
	if truckNo := ctx.Query("truckNo"); truckNo != "" {
		query = query.Where("truck_no LIKE ?", "%"+truckNo+"%")
	}
	if yard := ctx.Query("yard"); yard != "" {
		query = query.Where("yard = ?", yard)
	}

	var dispenses []Models.YardFuelDispense
	if err := query.Order("created_at DESC").Find(&dispenses).Error; err != nil {
		log.Println(err.Error())
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve dispenses"})
	}
	return ctx.JSON(dispenses)
}

func (c *YardFuelController) GetDispense(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid dispense ID"})
	}
	var dispense Models.YardFuelDispense
	if result := c.DB.Unscoped().First(&dispense, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Dispense not found"})
	}
	history, err := dispense.HistoryEntries()
	if err != nil {
		log.Println(err.Error())
	}
	return ctx.JSON(fiber.Map{"dispense": dispense, "history": history})
}

type RejectDispenseInput struct {
	Reason string `json:"reason" validate:"required"`
}

// RejectDispense soft deletes a pending or linked dispense with a reason.
// Pending dispenses never applied a delta, so nothing is reversed; a linked
// dispense's delta is reversed before rejection.
func (c *YardFuelController) RejectDispense(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid dispense ID"})
	}
	var dispense Models.YardFuelDispense
	if result := c.DB.First(&dispense, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Dispense not found"})
	}

	var input RejectDispenseInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := validate.Struct(input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": validationMessages(err)})
	}

	actor := actorName(ctx)
	if dispense.Status == Models.DispenseLinked && dispense.LinkedFuelRecordID != nil {
		if column, ok := c.Engine.Stations.YardColumn(dispense.Yard); ok {
			c.Engine.ApplyDelta(*dispense.LinkedFuelRecordID, column, -dispense.Liters,
				fmt.Sprintf("yard dispense %d rejection", dispense.ID))
		}
	}

	dispense.Status = Models.DispenseRejected
	dispense.RejectReason = input.Reason
	dispense.RejectedBy = actor
	if err := dispense.AppendHistory("rejected", actor, input.Reason); err != nil {
		log.Println(err.Error())
	}
	if err := c.DB.Save(&dispense).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to reject dispense"})
	}
	c.DB.Delete(&dispense)

	c.Engine.Events.Notify(Reconcile.Event{
		Kind:    Reconcile.EventEntryRejected,
		TruckNo: dispense.TruckNo,
		Delta:   dispense.Liters,
		Source:  fmt.Sprintf("yard dispense %d", dispense.ID),
		Details: input.Reason,
		At:      time.Now(),
	})

	return ctx.JSON(fiber.Map{"message": "Dispense rejected"})
}

// LinkPending re-scans all pending dispenses for a truck.
func (c *YardFuelController) LinkPending(ctx *fiber.Ctx) error {
	truckNo := ctx.Params("truckNo")
	if truckNo == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Truck number is required"})
	}
	linked := LinkPendingDispenses(c.DB, c.Engine, truckNo, actorName(ctx))
	return ctx.JSON(fiber.Map{"linked": linked})
}

// UploadPhoto stores the pump photo for a dispense plus a thumbnail for the
// admin UI list view.
func (c *YardFuelController) UploadPhoto(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid dispense ID"})
	}
	var dispense Models.YardFuelDispense
	if result := c.DB.First(&dispense, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Dispense not found"})
	}

	file, err := ctx.FormFile("photo")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Photo file is required"})
	}

	if err := os.MkdirAll(c.UploadDir, 0755); err != nil {
		log.Println(err.Error())
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to store photo"})
	}

	photoPath := filepath.Join(c.UploadDir, fmt.Sprintf("%d%s", dispense.ID, filepath.Ext(file.Filename)))
	if err := ctx.SaveFile(file, photoPath); err != nil {
		log.Println(err.Error())
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to store photo"})
	}

	thumbPath := filepath.Join(c.UploadDir, fmt.Sprintf("%d_thumb.jpg", dispense.ID))
	img, err := imaging.Open(photoPath)
	if err != nil {
		log.Printf("Warning: failed to decode photo for dispense %d: %v", dispense.ID, err)
	} else {
		thumb := imaging.Resize(img, 320, 0, imaging.Lanczos)
		if err := imaging.Save(thumb, thumbPath); err != nil {
			log.Printf("Warning: failed to save thumbnail for dispense %d: %v", dispense.ID, err)
			thumbPath = ""
		}
	}

	dispense.PhotoPath = photoPath
	if err == nil {
		dispense.ThumbPath = thumbPath
	}
	if err := dispense.AppendHistory("photo_uploaded", actorName(ctx), file.Filename); err != nil {
		log.Println(err.Error())
	}
	if err := c.DB.Save(&dispense).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update dispense"})
	}
	return ctx.JSON(dispense)
}
