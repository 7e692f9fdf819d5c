package Controllers

import (
	"strconv"

	"Convoy/Models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// CheckpointController maintains the ordered route-waypoint list.
// Positions are 1-based and reindexed on insert and delete.
type CheckpointController struct {
	DB *gorm.DB
}

func NewCheckpointController(db *gorm.DB) *CheckpointController {
	return &CheckpointController{DB: db}
}

func (c *CheckpointController) GetCheckpoints(ctx *fiber.Ctx) error {
	var checkpoints []Models.Checkpoint
	if err := c.DB.Order("position ASC").Find(&checkpoints).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve checkpoints"})
	}
	return ctx.JSON(checkpoints)
}

type CheckpointInput struct {
	Name     string `json:"name" validate:"required"`
	Position int    `json:"position" validate:"gte=0"`
}

// CreateCheckpoint inserts a waypoint. Position 0 (or past the end) appends;
// anything else shifts the checkpoints at and after it down by one.
func (c *CheckpointController) CreateCheckpoint(ctx *fiber.Ctx) error {
	var input CheckpointInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := validate.Struct(input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": validationMessages(err)})
	}

	var checkpoint Models.Checkpoint
	err := c.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Models.Checkpoint{}).Count(&count).Error; err != nil {
			return err
		}

		position := input.Position
		if position == 0 || position > int(count) {
			position = int(count) + 1
		} else {
			if err := tx.Model(&Models.Checkpoint{}).Where("position >= ?", position).
				Update("position", gorm.Expr("position + 1")).Error; err != nil {
				return err
			}
		}

		checkpoint = Models.Checkpoint{Name: input.Name, Position: position}
		return tx.Create(&checkpoint).Error
	})
	if err != nil {
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Failed to create checkpoint"})
	}
	return ctx.Status(fiber.StatusCreated).JSON(checkpoint)
}

// UpdateCheckpoint renames and/or moves a waypoint. A move is a remove plus
// an insert at the new position.
func (c *CheckpointController) UpdateCheckpoint(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid checkpoint ID"})
	}

	var checkpoint Models.Checkpoint
	if result := c.DB.First(&checkpoint, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Checkpoint not found"})
	}

	var input CheckpointInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	err = c.DB.Transaction(func(tx *gorm.DB) error {
		if input.Name != "" && input.Name != checkpoint.Name {
			if err := tx.Model(&checkpoint).Update("name", input.Name).Error; err != nil {
				return err
			}
		}
		if input.Position != 0 && input.Position != checkpoint.Position {
			// Close the gap, then open one at the target.
			if err := tx.Model(&Models.Checkpoint{}).Where("position > ?", checkpoint.Position).
				Update("position", gorm.Expr("position - 1")).Error; err != nil {
				return err
			}
			if err := tx.Model(&Models.Checkpoint{}).Where("position >= ? AND id != ?", input.Position, checkpoint.ID).
				Update("position", gorm.Expr("position + 1")).Error; err != nil {
				return err
			}
			if err := tx.Model(&checkpoint).Update("position", input.Position).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update checkpoint"})
	}

	c.DB.First(&checkpoint, checkpoint.ID)
	return ctx.JSON(checkpoint)
}

// DeleteCheckpoint removes a waypoint and compacts the positions after it.
func (c *CheckpointController) DeleteCheckpoint(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid checkpoint ID"})
	}

	var checkpoint Models.Checkpoint
	if result := c.DB.First(&checkpoint, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Checkpoint not found"})
	}

	err = c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Delete(&checkpoint).Error; err != nil {
			return err
		}
		return tx.Model(&Models.Checkpoint{}).Where("position > ?", checkpoint.Position).
			Update("position", gorm.Expr("position - 1")).Error
	})
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete checkpoint"})
	}
	return ctx.JSON(fiber.Map{"message": "Checkpoint deleted successfully"})
}
