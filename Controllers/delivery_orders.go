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

// DeliveryOrderController handles DO bookkeeping. A going DO with a fuel
// order attached is what opens a journey's fuel record; a return DO stamps
// the return reference onto the truck's open record.
type DeliveryOrderController struct {
	DB     *gorm.DB
	Engine *Reconcile.Engine
}

func NewDeliveryOrderController(db *gorm.DB, engine *Reconcile.Engine) *DeliveryOrderController {
	return &DeliveryOrderController{DB: db, Engine: engine}
}

func (c *DeliveryOrderController) GetDeliveryOrders(ctx *fiber.Ctx) error {
	query := c.DB.Model(&Models.DeliveryOrder{})
	if truckNo := ctx.Query("truckNo"); truckNo != "" {
		query = query.Where("truck_no LIKE ?", "%"+truckNo+"%")
	}
	if leg := ctx.Query("leg"); leg != "" {
		query = query.Where("leg = ?", leg)
	}

	var orders []Models.DeliveryOrder
	if err := query.Order("date DESC").Find(&orders).Error; err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve delivery orders"})
	}
	return ctx.JSON(orders)
}

func (c *DeliveryOrderController) GetDeliveryOrder(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid delivery order ID"})
	}
	var order Models.DeliveryOrder
	if result := c.DB.First(&order, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Delivery order not found"})
	}
	return ctx.JSON(order)
}

type CreateDeliveryOrderInput struct {
	DoNo            string  `json:"do_no" validate:"required"`
	TruckNo         string  `json:"truck_no" validate:"required"`
	Leg             string  `json:"leg" validate:"omitempty,oneof=going return"`
	Dest            string  `json:"dest"`
	Date            string  `json:"date" validate:"required"`
	CreateFuelOrder bool    `json:"create_fuel_order"`
	TotalLts        float64 `json:"total_lts" validate:"gte=0"`
	Extra           float64 `json:"extra" validate:"gte=0"`
}

func (c *DeliveryOrderController) CreateDeliveryOrder(ctx *fiber.Ctx) error {
	var input CreateDeliveryOrderInput
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
	leg := input.Leg
	if leg == "" {
		leg = Models.LegGoing
	}

	order := Models.DeliveryOrder{
		DoNo:    input.DoNo,
		TruckNo: input.TruckNo,
		Leg:     leg,
		Dest:    input.Dest,
		Date:    date,
	}
	if err := c.DB.Create(&order).Error; err != nil {
		log.Println(err.Error())
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Delivery order already exists"})
	}

	actor := actorName(ctx)
	switch {
	case leg == Models.LegGoing && input.CreateFuelOrder:
		record := Models.FuelRecord{
			TruckNo:       input.TruckNo,
			GoingDo:       input.DoNo,
			Date:          date,
			TotalLts:      input.TotalLts,
			Extra:         input.Extra,
			Balance:       input.TotalLts + input.Extra,
			JourneyStatus: Models.JourneyActive,
		}
		if err := c.DB.Create(&record).Error; err != nil {
			log.Printf("Warning: failed to create fuel record for DO %s: %v", order.DoNo, err)
			break
		}
		c.DB.Model(&order).Update("fuel_record_id", record.ID)
		LinkPendingDispenses(c.DB, c.Engine, record.TruckNo, actor)
		LinkPendingLPOEntries(c.DB, c.Engine, record.TruckNo)

	case leg == Models.LegReturn:
		// Stamp the return DO onto the truck's open record so later entries
		// can match it exactly.
		match, err := c.Engine.Resolver.Resolve("", input.TruckNo, date)
		if err == nil && match.Outcome == Reconcile.OutcomeMatched && match.Record.ReturnDo == "" {
			c.DB.Model(&Models.FuelRecord{}).Where("id = ?", match.Record.ID).
				Update("return_do", input.DoNo)
			recordID := match.Record.ID
			c.DB.Model(&order).Update("fuel_record_id", recordID)
			LinkPendingLPOEntries(c.DB, c.Engine, input.TruckNo)
		}
	}

	c.DB.First(&order, order.ID)
	return ctx.Status(fiber.StatusCreated).JSON(order)
}

type UpdateDeliveryOrderInput struct {
	Dest string `json:"dest"`
	Date string `json:"date"`
}

func (c *DeliveryOrderController) UpdateDeliveryOrder(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid delivery order ID"})
	}
	var order Models.DeliveryOrder
	if result := c.DB.First(&order, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Delivery order not found"})
	}

	var input UpdateDeliveryOrderInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	updates := make(map[string]interface{})
	if input.Dest != "" {
		updates["dest"] = input.Dest
	}
	if input.Date != "" {
		date, err := time.Parse("2006-01-02", input.Date)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date format. Use YYYY-MM-DD"})
		}
		updates["date"] = date
	}
	if len(updates) > 0 {
		c.DB.Model(&order).Updates(updates)
		c.DB.First(&order, id)
	}
	return ctx.JSON(order)
}

// DeleteDeliveryOrder soft deletes the DO. The fuel record, if any, stays;
// removing the journey itself is the fuel-record delete's job.
func (c *DeliveryOrderController) DeleteDeliveryOrder(ctx *fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid delivery order ID"})
	}
	var order Models.DeliveryOrder
	if result := c.DB.First(&order, id); result.Error != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Delivery order not found"})
	}
	c.DB.Delete(&order)
	return ctx.JSON(fiber.Map{"message": "Delivery order deleted successfully"})
}
