package Controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Convoy/Models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newLPOTestApp(c *LPOController) *fiber.App {
	app := fiber.New()
	app.Post("/lpos", c.CreateLPO)
	app.Put("/entries/:id", c.UpdateEntry)
	app.Post("/entries/:id/cancel", c.CancelEntry)
	app.Delete("/entries/:id", c.DeleteEntry)
	return app
}

func jsonRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestLPOEntryLifecycle(t *testing.T) {
	db, engine := setupControllerTest(t)
	record := createActiveRecord(t, db, "TZA 1234", "DO-100", 2000)

	controller := NewLPOController(db, engine)
	app := newLPOTestApp(controller)

	resp, err := app.Test(jsonRequest(t, "POST", "/lpos", fiber.Map{
		"lpo_no":  "LPO-55",
		"station": "LAKE NDOLA",
		"date":    time.Now().Format("2006-01-02"),
		"entries": []fiber.Map{
			{"do_no": "DO-100", "truck_no": "TZA 1234", "liters": 100, "rate": 3200},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var entry Models.LPOEntry
	require.NoError(t, db.Where("do_no = ?", "DO-100").First(&entry).Error)
	assert.False(t, entry.Pending)
	assert.Equal(t, "zambia_going", entry.AppliedField)
	assert.Equal(t, 100.0, entry.AppliedLiters)
	assert.Equal(t, 320000.0, entry.Amount)
	assert.Equal(t, "LAKE NDOLA", entry.Station, "entry inherits the LPO station")

	var rec Models.FuelRecord
	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 100.0, rec.ZambiaGoing)
	assert.Equal(t, 1900.0, rec.Balance)

	// Raising the liters pushes only the difference.
	resp, err = app.Test(jsonRequest(t, "PUT", fmt.Sprintf("/entries/%d", entry.ID), fiber.Map{"liters": 150}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 150.0, rec.ZambiaGoing)
	assert.Equal(t, 1850.0, rec.Balance)
	require.NoError(t, db.First(&entry, entry.ID).Error)
	assert.Equal(t, 150.0, entry.AppliedLiters)

	// Deleting nets everything back out.
	resp, err = app.Test(jsonRequest(t, "DELETE", fmt.Sprintf("/entries/%d", entry.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 0.0, rec.ZambiaGoing)
	assert.Equal(t, 2000.0, rec.Balance)

	// Soft deleted, not gone: the applied bookkeeping survives for restore.
	var trashed Models.LPOEntry
	require.NoError(t, db.Unscoped().First(&trashed, entry.ID).Error)
	assert.True(t, trashed.DeletedAt.Valid)
	require.NotNil(t, trashed.AppliedRecordID)
	assert.Equal(t, 150.0, trashed.AppliedLiters)
}

func TestCancelEntryReversesDelta(t *testing.T) {
	db, engine := setupControllerTest(t)
	record := createActiveRecord(t, db, "TZA 1234", "DO-100", 2000)

	controller := NewLPOController(db, engine)
	lpo := Models.LPO{LpoNo: "LPO-1", Station: "LAKE MBEYA", Date: time.Now()}
	require.NoError(t, db.Create(&lpo).Error)

	entry, err := controller.createEntry(&lpo, LPOEntryInput{
		DoNo: "DO-100", TruckNo: "TZA 1234", Liters: 80, Rate: 3000,
	})
	require.NoError(t, err)
	require.NotNil(t, entry.AppliedRecordID)

	app := newLPOTestApp(controller)
	resp, err := app.Test(jsonRequest(t, "POST", fmt.Sprintf("/entries/%d/cancel", entry.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var rec Models.FuelRecord
	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 0.0, rec.MbeyaGoing)
	assert.Equal(t, 2000.0, rec.Balance)

	var got Models.LPOEntry
	require.NoError(t, db.First(&got, entry.ID).Error)
	assert.True(t, got.IsCancelled)
	assert.False(t, got.Pending)
	assert.Equal(t, 0.0, got.AppliedLiters)

	// Cancelling twice changes nothing.
	resp, err = app.Test(jsonRequest(t, "POST", fmt.Sprintf("/entries/%d/cancel", entry.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 2000.0, rec.Balance)
}

func TestCreateEntryWithoutRecordStaysPending(t *testing.T) {
	db, engine := setupControllerTest(t)
	controller := NewLPOController(db, engine)

	lpo := Models.LPO{LpoNo: "LPO-2", Station: "LAKE IRINGA", Date: time.Now()}
	require.NoError(t, db.Create(&lpo).Error)

	entry, err := controller.createEntry(&lpo, LPOEntryInput{
		TruckNo: "TZA 7777", Liters: 90, Rate: 3100,
	})
	require.NoError(t, err)
	assert.True(t, entry.Pending)
	assert.Nil(t, entry.AppliedRecordID)

	// The journey shows up later; the sweep picks the entry up.
	record := createActiveRecord(t, db, "TZA 7777", "DO-300", 1500)
	assert.Equal(t, 1, LinkPendingLPOEntries(db, engine, "TZA 7777"))

	var rec Models.FuelRecord
	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 90.0, rec.IringaGoing)
	assert.Equal(t, 1410.0, rec.Balance)
}

func TestDeleteLPOReversesAllEntries(t *testing.T) {
	db, engine := setupControllerTest(t)
	record := createActiveRecord(t, db, "TZA 1234", "DO-100", 2000)

	controller := NewLPOController(db, engine)
	lpo := Models.LPO{LpoNo: "LPO-3", Station: "LAKE NDOLA", Date: time.Now()}
	require.NoError(t, db.Create(&lpo).Error)

	for _, liters := range []float64{100, 60} {
		_, err := controller.createEntry(&lpo, LPOEntryInput{
			DoNo: "DO-100", TruckNo: "TZA 1234", Liters: liters, Rate: 3200,
		})
		require.NoError(t, err)
	}

	var rec Models.FuelRecord
	require.NoError(t, db.First(&rec, record.ID).Error)
	require.Equal(t, 1840.0, rec.Balance)

	app := fiber.New()
	app.Delete("/lpos/:id", controller.DeleteLPO)
	resp, err := app.Test(jsonRequest(t, "DELETE", fmt.Sprintf("/lpos/%d", lpo.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 0.0, rec.ZambiaGoing)
	assert.Equal(t, 2000.0, rec.Balance)

	var count int64
	db.Model(&Models.LPOEntry{}).Count(&count)
	assert.Equal(t, int64(0), count, "entries are soft deleted")
}

// failEntrySaves makes every write to lpo_entries fail until undone.
func failEntrySaves(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Callback().Update().Before("gorm:update").
		Register("fail_entry_saves", func(tx *gorm.DB) {
			if tx.Statement.Table == "lpo_entries" {
				tx.AddError(errors.New("simulated write failure"))
			}
		}))
}

func restoreEntrySaves(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Callback().Update().Remove("fail_entry_saves"))
}

func TestUpdateEntryRollsBackDeltaOnFailedSave(t *testing.T) {
	db, engine := setupControllerTest(t)
	record := createActiveRecord(t, db, "TZA 1234", "DO-100", 2000)

	controller := NewLPOController(db, engine)
	lpo := Models.LPO{LpoNo: "LPO-1", Station: "LAKE MBEYA", Date: time.Now()}
	require.NoError(t, db.Create(&lpo).Error)
	entry, err := controller.createEntry(&lpo, LPOEntryInput{
		DoNo: "DO-100", TruckNo: "TZA 1234", Liters: 100, Rate: 3000,
	})
	require.NoError(t, err)
	require.NotNil(t, entry.AppliedRecordID)

	failEntrySaves(t, db)
	app := newLPOTestApp(controller)
	resp, err := app.Test(jsonRequest(t, "PUT", fmt.Sprintf("/entries/%d", entry.ID), fiber.Map{"liters": 150}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	// The failed edit must leave the ledger exactly as it was.
	var rec Models.FuelRecord
	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 100.0, rec.MbeyaGoing)
	assert.Equal(t, 1900.0, rec.Balance)

	var got Models.LPOEntry
	require.NoError(t, db.First(&got, entry.ID).Error)
	assert.Equal(t, 100.0, got.Liters)
	assert.Equal(t, 100.0, got.AppliedLiters)

	// Once writes work again, deleting nets everything back out.
	restoreEntrySaves(t, db)
	resp, err = app.Test(jsonRequest(t, "DELETE", fmt.Sprintf("/entries/%d", entry.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 0.0, rec.MbeyaGoing)
	assert.Equal(t, 2000.0, rec.Balance)
}

func TestCancelEntryRollsBackReversalOnFailedSave(t *testing.T) {
	db, engine := setupControllerTest(t)
	record := createActiveRecord(t, db, "TZA 1234", "DO-100", 2000)

	controller := NewLPOController(db, engine)
	lpo := Models.LPO{LpoNo: "LPO-1", Station: "LAKE MBEYA", Date: time.Now()}
	require.NoError(t, db.Create(&lpo).Error)
	entry, err := controller.createEntry(&lpo, LPOEntryInput{
		DoNo: "DO-100", TruckNo: "TZA 1234", Liters: 80, Rate: 3000,
	})
	require.NoError(t, err)
	require.NotNil(t, entry.AppliedRecordID)

	failEntrySaves(t, db)
	app := newLPOTestApp(controller)
	resp, err := app.Test(jsonRequest(t, "POST", fmt.Sprintf("/entries/%d/cancel", entry.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	// Delta stays on the record, and the row still says applied.
	var rec Models.FuelRecord
	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 80.0, rec.MbeyaGoing)
	assert.Equal(t, 1920.0, rec.Balance)

	var got Models.LPOEntry
	require.NoError(t, db.First(&got, entry.ID).Error)
	assert.False(t, got.IsCancelled)
	assert.Equal(t, 80.0, got.AppliedLiters)

	// A retried cancel reverses exactly once.
	restoreEntrySaves(t, db)
	resp, err = app.Test(jsonRequest(t, "POST", fmt.Sprintf("/entries/%d/cancel", entry.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 0.0, rec.MbeyaGoing)
	assert.Equal(t, 2000.0, rec.Balance)
}
