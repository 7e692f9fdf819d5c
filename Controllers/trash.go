package Controllers

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"Convoy/Models"
	"Convoy/Reconcile"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// TrashController lists, restores and purges soft-deleted rows. Nothing is
// hard-deleted outside of an explicit purge or the retention cron.
type TrashController struct {
	DB     *gorm.DB
	Engine *Reconcile.Engine
}

func NewTrashController(db *gorm.DB, engine *Reconcile.Engine) *TrashController {
	return &TrashController{DB: db, Engine: engine}
}

var trashTypes = map[string]func() interface{}{
	"fuel_records":    func() interface{} { return &[]Models.FuelRecord{} },
	"lpos":            func() interface{} { return &[]Models.LPO{} },
	"lpo_entries":     func() interface{} { return &[]Models.LPOEntry{} },
	"dispenses":       func() interface{} { return &[]Models.YardFuelDispense{} },
	"delivery_orders": func() interface{} { return &[]Models.DeliveryOrder{} },
}

func trashModel(kind string) (interface{}, error) {
	switch kind {
	case "fuel_records":
		return &Models.FuelRecord{}, nil
	case "lpos":
		return &Models.LPO{}, nil
	case "lpo_entries":
		return &Models.LPOEntry{}, nil
	case "dispenses":
		return &Models.YardFuelDispense{}, nil
	case "delivery_orders":
		return &Models.DeliveryOrder{}, nil
	}
	return nil, fmt.Errorf("unknown trash type %q", kind)
}

// GetTrash lists soft-deleted rows of one type.
func (c *TrashController) GetTrash(ctx *fiber.Ctx) error {
	kind := ctx.Query("type")
	factory, ok := trashTypes[kind]
	if !ok {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown trash type"})
	}

	rows := factory()
	if err := c.DB.Unscoped().Where("deleted_at IS NOT NULL").Find(rows).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve trash"})
	}
	return ctx.JSON(rows)
}

// Restore clears the soft-delete marker. Restoring an LPO entry re-applies
// its recorded delta (the delete reversed it); restoring a dispense returns
// it to pending for the next linking sweep.
func (c *TrashController) Restore(ctx *fiber.Ctx) error {
	kind := ctx.Query("type")
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid ID"})
	}

	model, err := trashModel(kind)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown trash type"})
	}

	switch kind {
	case "lpos":
		var lpo Models.LPO
		if err := c.DB.Unscoped().Where("deleted_at IS NOT NULL").First(&lpo, id).Error; err != nil {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "LPO not found in trash"})
		}
		if err := c.DB.Unscoped().Model(&lpo).Update("deleted_at", nil).Error; err != nil {
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to restore"})
		}
		// Deleting the order trashed and reversed its entries; bring them
		// back with it.
		var entries []Models.LPOEntry
		if err := c.DB.Unscoped().Where("lpo_id = ? AND deleted_at IS NOT NULL", lpo.ID).
			Find(&entries).Error; err != nil {
			log.Printf("Warning: failed to load trashed entries of LPO %d: %v", lpo.ID, err)
		}
		for i := range entries {
			entry := &entries[i]
			if err := c.DB.Unscoped().Model(entry).Update("deleted_at", nil).Error; err != nil {
				log.Printf("Warning: failed to restore entry %d of LPO %d: %v", entry.ID, lpo.ID, err)
				continue
			}
			if entry.AppliedRecordID != nil && entry.AppliedLiters != 0 && !entry.IsCancelled {
				c.Engine.ApplyDelta(*entry.AppliedRecordID, entry.AppliedField, entry.AppliedLiters,
					fmt.Sprintf("lpo %d restore entry %d", lpo.ID, entry.ID))
			}
		}
		return ctx.JSON(fiber.Map{"message": "LPO restored"})

	case "lpo_entries":
		var entry Models.LPOEntry
		if err := c.DB.Unscoped().Where("deleted_at IS NOT NULL").First(&entry, id).Error; err != nil {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Entry not found in trash"})
		}
		if err := c.DB.Unscoped().Model(&entry).Update("deleted_at", nil).Error; err != nil {
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to restore"})
		}
		if entry.AppliedRecordID != nil && entry.AppliedLiters != 0 && !entry.IsCancelled {
			c.Engine.ApplyDelta(*entry.AppliedRecordID, entry.AppliedField, entry.AppliedLiters,
				fmt.Sprintf("lpo entry %d restore", entry.ID))
		}
		return ctx.JSON(fiber.Map{"message": "Entry restored"})

	case "dispenses":
		var dispense Models.YardFuelDispense
		if err := c.DB.Unscoped().Where("deleted_at IS NOT NULL").First(&dispense, id).Error; err != nil {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Dispense not found in trash"})
		}
		dispense.Status = Models.DispensePending
		dispense.Resolved = false
		dispense.LinkedFuelRecordID = nil
		dispense.LinkedDONumber = ""
		if err := dispense.AppendHistory("restored", actorName(ctx), "returned to pending"); err != nil {
			log.Println(err.Error())
		}
		if err := c.DB.Unscoped().Model(&dispense).Updates(map[string]interface{}{
			"deleted_at":            nil,
			"status":                dispense.Status,
			"resolved":              dispense.Resolved,
			"linked_fuel_record_id": nil,
			"linked_do_number":      "",
			"history":               dispense.History,
		}).Error; err != nil {
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to restore"})
		}
		return ctx.JSON(fiber.Map{"message": "Dispense restored"})
	}

	result := c.DB.Unscoped().Model(model).Where("id = ? AND deleted_at IS NOT NULL", id).
		Update("deleted_at", nil)
	if result.Error != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to restore"})
	}
	if result.RowsAffected == 0 {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found in trash"})
	}
	return ctx.JSON(fiber.Map{"message": "Restored"})
}

// Purge hard-deletes one trashed row.
func (c *TrashController) Purge(ctx *fiber.Ctx) error {
	kind := ctx.Query("type")
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid ID"})
	}

	model, err := trashModel(kind)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown trash type"})
	}

	result := c.DB.Unscoped().Where("id = ? AND deleted_at IS NOT NULL", id).Delete(model)
	if result.Error != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to purge"})
	}
	if result.RowsAffected == 0 {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found in trash"})
	}
	return ctx.JSON(fiber.Map{"message": "Purged"})
}

// PurgeTrashedBefore hard-deletes everything trashed before the cutoff.
// Called by the retention cron.
func PurgeTrashedBefore(db *gorm.DB, cutoff time.Time) int64 {
	var total int64
	for kind := range trashTypes {
		model, _ := trashModel(kind)
		result := db.Unscoped().Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).Delete(model)
		if result.Error != nil {
			log.Printf("Warning: trash purge failed for %s: %v", kind, result.Error)
			continue
		}
		total += result.RowsAffected
	}
	return total
}
