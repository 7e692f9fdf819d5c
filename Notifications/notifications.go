package Notifications

import (
	"fmt"
	"log"
	"strconv"

	"Convoy/Models"
	"Convoy/Reconcile"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// NewObserver returns a reconciliation observer that stores in-app
// notifications and pushes them to registered devices. Delta events are
// too chatty to notify on; only linking outcomes and conflicts surface.
func NewObserver(db *gorm.DB) Reconcile.Observer {
	return Reconcile.ObserverFunc(func(e Reconcile.Event) {
		var title, body string
		switch e.Kind {
		case Reconcile.EventEntryLinked:
			title = "Fuel entry linked"
			body = fmt.Sprintf("%.0f lts applied to truck %s (%s)", e.Delta, e.TruckNo, e.Field)
		case Reconcile.EventEntryPending:
			title = "Fuel entry pending"
			body = fmt.Sprintf("No open journey found for truck %s, DO %s", e.TruckNo, e.DoNo)
		case Reconcile.EventEntryRejected:
			title = "Dispense rejected"
			body = fmt.Sprintf("Truck %s: %s", e.TruckNo, e.Details)
		case Reconcile.EventConflict:
			title = "Concurrent edit conflict"
			body = fmt.Sprintf("Record %d for truck %s was modified by someone else", e.RecordID, e.TruckNo)
		default:
			return
		}

		notification := Models.Notification{
			Title:   title,
			Body:    body,
			Kind:    e.Kind,
			TruckNo: e.TruckNo,
		}
		if err := db.Create(&notification).Error; err != nil {
			log.Printf("Failed to store notification: %v", err)
			return
		}

		go SendPush(db, title, body, map[string]string{
			"kind":     e.Kind,
			"truck_no": e.TruckNo,
			"do_no":    e.DoNo,
		})
	})
}

// ReturnNotifications lists stored notifications, newest first.
func ReturnNotifications(c *fiber.Ctx) error {
	var notifications []Models.Notification
	query := Models.DB.Order("created_at DESC").Limit(200)
	if c.Query("unread") == "true" {
		query = query.Where("read = ?", false)
	}
	if truckNo := c.Query("truck_no"); truckNo != "" {
		query = query.Where("truck_no = ?", truckNo)
	}
	if err := query.Find(&notifications).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve notifications",
		})
	}
	return c.JSON(notifications)
}

// MarkRead marks one notification (or all, with id "all") as read.
func MarkRead(c *fiber.Ctx) error {
	param := c.Params("id")
	if param == "all" {
		if err := Models.DB.Model(&Models.Notification{}).Where("read = ?", false).
			Update("read", true).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to mark notifications",
			})
		}
		return c.JSON(fiber.Map{"message": "All notifications marked read"})
	}

	id, err := strconv.Atoi(param)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid ID"})
	}

	result := Models.DB.Model(&Models.Notification{}).Where("id = ?", id).Update("read", true)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to mark notification",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
	}
	return c.JSON(fiber.Map{"message": "Notification marked read"})
}
