package Controllers

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"Convoy/Models"
	"Convoy/Reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupControllerTest(t *testing.T) (*gorm.DB, *Reconcile.Engine) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&Models.FuelRecord{},
		&Models.LPO{},
		&Models.LPOEntry{},
		&Models.YardFuelDispense{},
		&Models.Checkpoint{},
		&Models.StationPrice{},
	))
	return db, Reconcile.NewEngine(db, nil, nil)
}

func createActiveRecord(t *testing.T, db *gorm.DB, truckNo, goingDo string, totalLts float64) Models.FuelRecord {
	t.Helper()
	record := Models.FuelRecord{
		TruckNo:       truckNo,
		GoingDo:       goingDo,
		Date:          time.Now(),
		TotalLts:      totalLts,
		Balance:       totalLts,
		JourneyStatus: Models.JourneyActive,
	}
	require.NoError(t, db.Create(&record).Error)
	return record
}

func TestLinkDispenseRetroactively(t *testing.T) {
	db, engine := setupControllerTest(t)

	dispense := Models.YardFuelDispense{
		TruckNo: "TZA 1234", Yard: "DAR", Liters: 50, Status: Models.DispensePending,
	}
	require.NoError(t, db.Create(&dispense).Error)

	// No active record yet, nothing to link against.
	assert.False(t, LinkDispense(db, engine, &dispense, "tester"))
	assert.Equal(t, Models.DispensePending, dispense.Status)

	record := createActiveRecord(t, db, "TZA 1234", "DO-100", 2000)
	linked := LinkPendingDispenses(db, engine, "TZA 1234", "tester")
	assert.Equal(t, 1, linked)

	var got Models.YardFuelDispense
	require.NoError(t, db.First(&got, dispense.ID).Error)
	assert.Equal(t, Models.DispenseLinked, got.Status)
	require.NotNil(t, got.LinkedFuelRecordID)
	assert.Equal(t, record.ID, *got.LinkedFuelRecordID)
	assert.Equal(t, "DO-100", got.LinkedDONumber)

	history, err := got.HistoryEntries()
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, "linked", history[len(history)-1].Action)

	var rec Models.FuelRecord
	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 50.0, rec.DarYard)
	assert.Equal(t, 1950.0, rec.Balance)
}

func TestLinkDispenseNeverDoubleApplies(t *testing.T) {
	db, engine := setupControllerTest(t)
	record := createActiveRecord(t, db, "TZA 1234", "DO-100", 2000)

	dispense := Models.YardFuelDispense{
		TruckNo: "TZA 1234", Yard: "MBEYA", Liters: 40, Status: Models.DispensePending,
	}
	require.NoError(t, db.Create(&dispense).Error)

	assert.True(t, LinkDispense(db, engine, &dispense, "tester"))
	assert.False(t, LinkDispense(db, engine, &dispense, "tester"))
	assert.Equal(t, 0, LinkPendingDispenses(db, engine, "TZA 1234", "tester"))

	var rec Models.FuelRecord
	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 40.0, rec.MbeyaYard)
	assert.Equal(t, 1960.0, rec.Balance)
}

func TestLinkDispenseRequiresActiveJourney(t *testing.T) {
	db, engine := setupControllerTest(t)

	record := Models.FuelRecord{
		TruckNo: "TZA 1234", Date: time.Now(), TotalLts: 2000, Balance: 2000,
		JourneyStatus: Models.JourneyQueued,
	}
	require.NoError(t, db.Create(&record).Error)

	dispense := Models.YardFuelDispense{
		TruckNo: "TZA 1234", Yard: "DAR", Liters: 50, Status: Models.DispensePending,
	}
	require.NoError(t, db.Create(&dispense).Error)

	assert.False(t, LinkDispense(db, engine, &dispense, "tester"))

	var got Models.YardFuelDispense
	require.NoError(t, db.First(&got, dispense.ID).Error)
	assert.Equal(t, Models.DispensePending, got.Status)
}

func TestLinkDispenseUnknownYard(t *testing.T) {
	db, engine := setupControllerTest(t)
	createActiveRecord(t, db, "TZA 1234", "DO-100", 2000)

	dispense := Models.YardFuelDispense{
		TruckNo: "TZA 1234", Yard: "ARUSHA", Liters: 50, Status: Models.DispensePending,
	}
	require.NoError(t, db.Create(&dispense).Error)

	assert.False(t, LinkDispense(db, engine, &dispense, "tester"))
}

func TestLinkDispenseResolvesRecentRejections(t *testing.T) {
	db, engine := setupControllerTest(t)
	createActiveRecord(t, db, "TZA 1234", "DO-100", 2000)

	rejected := Models.YardFuelDispense{
		TruckNo: "TZA 1234", Yard: "DAR", Liters: 30,
		Status: Models.DispenseRejected, RejectReason: "duplicate ticket",
	}
	require.NoError(t, db.Create(&rejected).Error)
	require.NoError(t, db.Delete(&rejected).Error)

	dispense := Models.YardFuelDispense{
		TruckNo: "TZA 1234", Yard: "DAR", Liters: 30, Status: Models.DispensePending,
	}
	require.NoError(t, db.Create(&dispense).Error)
	require.True(t, LinkDispense(db, engine, &dispense, "tester"))

	var got Models.YardFuelDispense
	require.NoError(t, db.Unscoped().First(&got, rejected.ID).Error)
	assert.True(t, got.Resolved)
}

func TestLinkLPOEntryByDO(t *testing.T) {
	db, engine := setupControllerTest(t)
	record := createActiveRecord(t, db, "TZA 1234", "DO-100", 2000)

	entry := Models.LPOEntry{
		DoNo: "DO-100", TruckNo: "TZA 1234", Liters: 100, Station: "LAKE NDOLA", Pending: true,
	}
	require.NoError(t, db.Create(&entry).Error)

	require.True(t, LinkLPOEntry(db, engine, &entry))
	assert.False(t, entry.Pending)
	require.NotNil(t, entry.AppliedRecordID)
	assert.Equal(t, record.ID, *entry.AppliedRecordID)
	assert.Equal(t, "zambia_going", entry.AppliedField)
	assert.Equal(t, 100.0, entry.AppliedLiters)

	var rec Models.FuelRecord
	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 100.0, rec.ZambiaGoing)
	assert.Equal(t, 1900.0, rec.Balance)

	// Applied entries are never re-applied.
	assert.False(t, LinkLPOEntry(db, engine, &entry))
	assert.Equal(t, 0, LinkPendingLPOEntries(db, engine, "TZA 1234"))
}

func TestLinkLPOEntryStaysPendingWithoutRecord(t *testing.T) {
	db, engine := setupControllerTest(t)

	entry := Models.LPOEntry{
		DoNo: "DO-404", TruckNo: "TZA 9999", Liters: 100, Station: "LAKE MBEYA", Pending: true,
	}
	require.NoError(t, db.Create(&entry).Error)

	assert.False(t, LinkLPOEntry(db, engine, &entry))

	var got Models.LPOEntry
	require.NoError(t, db.First(&got, entry.ID).Error)
	assert.True(t, got.Pending)
	assert.Nil(t, got.AppliedRecordID)
}

func TestLinkLPOEntryJourneyComplete(t *testing.T) {
	db, engine := setupControllerTest(t)

	record := Models.FuelRecord{
		TruckNo: "TZA 1234", Date: time.Now(), TotalLts: 1000, ZambiaGoing: 1000,
		Balance: 0, JourneyStatus: Models.JourneyCompleted,
	}
	require.NoError(t, db.Create(&record).Error)

	entry := Models.LPOEntry{
		TruckNo: "TZA 1234", Liters: 60, Station: "LAKE NDOLA", Pending: true,
	}
	require.NoError(t, db.Create(&entry).Error)

	// Settled without a delta: the closed journey must not go negative.
	assert.False(t, LinkLPOEntry(db, engine, &entry))

	var got Models.LPOEntry
	require.NoError(t, db.First(&got, entry.ID).Error)
	assert.False(t, got.Pending)
	assert.Nil(t, got.AppliedRecordID)

	var rec Models.FuelRecord
	require.NoError(t, db.First(&rec, record.ID).Error)
	assert.Equal(t, 0.0, rec.Balance)
}

func TestLinkLPOEntrySkipsCancelled(t *testing.T) {
	db, engine := setupControllerTest(t)
	createActiveRecord(t, db, "TZA 1234", "DO-100", 2000)

	entry := Models.LPOEntry{
		DoNo: "DO-100", TruckNo: "TZA 1234", Liters: 100, Station: "LAKE NDOLA",
		Pending: true, IsCancelled: true,
	}
	require.NoError(t, db.Create(&entry).Error)

	assert.False(t, LinkLPOEntry(db, engine, &entry))
}
