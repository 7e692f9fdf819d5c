package Controllers

import (
	"fmt"
	"testing"

	"Convoy/Models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYardTestApp(c *YardFuelController) *fiber.App {
	app := fiber.New()
	app.Post("/dispenses", c.CreateDispense)
	app.Post("/dispenses/:id/reject", c.RejectDispense)
	app.Get("/dispenses", c.GetDispenses)
	return app
}

func TestCreateDispenseLinksImmediately(t *testing.T) {
	db, engine := setupControllerTest(t)
	record := createActiveRecord(t, db, "TZA 1234", "DO-100", 2000)

	controller := NewYardFuelController(db, engine)
	app := newYardTestApp(controller)

	resp, err := app.Test(jsonRequest(t, "POST", "/dispenses", fiber.Map{
		"truck_no": "TZA 1234", "yard": "DAR", "liters": 70,
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var dispense Models.YardFuelDispense
	require.NoError(t, db.Where("truck_no = ?", "TZA 1234").First(&dispense).Error)
	assert.Equal(t, Models.DispenseLinked, dispense.Status)

	var rec Models.FuelRecord
	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 70.0, rec.DarYard)
	assert.Equal(t, 1930.0, rec.Balance)
}

func TestCreateDispenseUnknownYardRejected(t *testing.T) {
	db, engine := setupControllerTest(t)
	controller := NewYardFuelController(db, engine)
	app := newYardTestApp(controller)

	resp, err := app.Test(jsonRequest(t, "POST", "/dispenses", fiber.Map{
		"truck_no": "TZA 1234", "yard": "ARUSHA", "liters": 70,
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var count int64
	db.Model(&Models.YardFuelDispense{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestRejectDispenseRequiresReason(t *testing.T) {
	db, engine := setupControllerTest(t)
	controller := NewYardFuelController(db, engine)
	app := newYardTestApp(controller)

	dispense := Models.YardFuelDispense{
		TruckNo: "TZA 1234", Yard: "DAR", Liters: 50, Status: Models.DispensePending,
	}
	require.NoError(t, db.Create(&dispense).Error)

	resp, err := app.Test(jsonRequest(t, "POST", fmt.Sprintf("/dispenses/%d/reject", dispense.ID), fiber.Map{}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var got Models.YardFuelDispense
	require.NoError(t, db.First(&got, dispense.ID).Error)
	assert.Equal(t, Models.DispensePending, got.Status)
}

func TestRejectLinkedDispenseReversesDelta(t *testing.T) {
	db, engine := setupControllerTest(t)
	record := createActiveRecord(t, db, "TZA 1234", "DO-100", 2000)

	controller := NewYardFuelController(db, engine)
	app := newYardTestApp(controller)

	dispense := Models.YardFuelDispense{
		TruckNo: "TZA 1234", Yard: "DAR", Liters: 50, Status: Models.DispensePending,
	}
	require.NoError(t, db.Create(&dispense).Error)
	require.True(t, LinkDispense(db, engine, &dispense, "tester"))

	var rec Models.FuelRecord
	require.NoError(t, db.First(&rec, record.ID).Error)
	require.Equal(t, 1950.0, rec.Balance)

	resp, err := app.Test(jsonRequest(t, "POST", fmt.Sprintf("/dispenses/%d/reject", dispense.ID),
		fiber.Map{"reason": "wrong truck on the ticket"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 0.0, rec.DarYard)
	assert.Equal(t, 2000.0, rec.Balance)

	// Rejected means soft deleted with the reason on the row.
	var got Models.YardFuelDispense
	require.Error(t, db.First(&got, dispense.ID).Error)
	require.NoError(t, db.Unscoped().First(&got, dispense.ID).Error)
	assert.Equal(t, Models.DispenseRejected, got.Status)
	assert.Equal(t, "wrong truck on the ticket", got.RejectReason)
	assert.True(t, got.DeletedAt.Valid)

	history, err := got.HistoryEntries()
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, "rejected", history[len(history)-1].Action)
}

func TestRejectPendingDispenseAppliesNothing(t *testing.T) {
	db, engine := setupControllerTest(t)
	record := createActiveRecord(t, db, "TZA 9999", "DO-900", 1000)

	controller := NewYardFuelController(db, engine)
	app := newYardTestApp(controller)

	// Pending against a different truck, never linked.
	dispense := Models.YardFuelDispense{
		TruckNo: "TZA 1234", Yard: "DAR", Liters: 50, Status: Models.DispensePending,
	}
	require.NoError(t, db.Create(&dispense).Error)

	resp, err := app.Test(jsonRequest(t, "POST", fmt.Sprintf("/dispenses/%d/reject", dispense.ID),
		fiber.Map{"reason": "not ours"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var rec Models.FuelRecord
	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 1000.0, rec.Balance)
}
