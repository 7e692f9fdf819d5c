package Reconcile

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"Convoy/Models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Models.FuelRecord{}))
	return db
}

func createRecord(t *testing.T, db *gorm.DB, record Models.FuelRecord) Models.FuelRecord {
	t.Helper()
	if record.JourneyStatus == "" {
		record.JourneyStatus = Models.JourneyActive
	}
	if record.Date.IsZero() {
		record.Date = time.Now()
	}
	if record.Balance == 0 && record.TotalLts != 0 {
		record.Balance = record.TotalLts + record.Extra
	}
	require.NoError(t, db.Create(&record).Error)
	return record
}

func TestApplyDeltaKeepsBalanceInvariant(t *testing.T) {
	db := setupTestDB(t)
	engine := NewEngine(db, nil, nil)
	record := createRecord(t, db, Models.FuelRecord{TruckNo: "TZA 1234", TotalLts: 2000})

	app := engine.ApplyDelta(record.ID, "zambia_going", 100, "test")
	require.NotNil(t, app)
	assert.Equal(t, record.ID, app.RecordID)
	assert.Equal(t, "zambia_going", app.Field)
	assert.Equal(t, 100.0, app.Liters)

	var got Models.FuelRecord
	require.NoError(t, db.First(&got, record.ID).Error)
	assert.Equal(t, 100.0, got.ZambiaGoing)
	assert.Equal(t, 1900.0, got.Balance)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, got.ComputedBalance(), got.Balance)
}

func TestApplyDeltaNegativeDelta(t *testing.T) {
	db := setupTestDB(t)
	engine := NewEngine(db, nil, nil)
	record := createRecord(t, db, Models.FuelRecord{TruckNo: "TZA 1234", TotalLts: 2000})

	engine.ApplyDelta(record.ID, "mbeya_going", 300, "test")
	app := engine.ApplyDelta(record.ID, "mbeya_going", -120, "test")
	require.NotNil(t, app)

	var got Models.FuelRecord
	require.NoError(t, db.First(&got, record.ID).Error)
	assert.Equal(t, 180.0, got.MbeyaGoing)
	assert.Equal(t, 1820.0, got.Balance)
}

func TestApplyDeltaSkips(t *testing.T) {
	db := setupTestDB(t)
	engine := NewEngine(db, nil, nil)
	record := createRecord(t, db, Models.FuelRecord{TruckNo: "TZA 1234", TotalLts: 2000})

	assert.Nil(t, engine.ApplyDelta(record.ID, "no_such_column", 100, "test"))
	assert.Nil(t, engine.ApplyDelta(record.ID, "zambia_going", 0, "test"))
	assert.Nil(t, engine.ApplyDelta(9999, "zambia_going", 100, "test"))

	var got Models.FuelRecord
	require.NoError(t, db.First(&got, record.ID).Error)
	assert.Equal(t, 2000.0, got.Balance)
	assert.Equal(t, 0, got.Version)
}

func TestReverseRestoresBalance(t *testing.T) {
	db := setupTestDB(t)
	engine := NewEngine(db, nil, nil)
	record := createRecord(t, db, Models.FuelRecord{TruckNo: "TZA 1234", TotalLts: 2000})

	app := engine.ApplyDelta(record.ID, "dar_yard", 50, "test")
	require.NotNil(t, app)
	engine.Reverse(app, "test rollback")

	var got Models.FuelRecord
	require.NoError(t, db.First(&got, record.ID).Error)
	assert.Equal(t, 0.0, got.DarYard)
	assert.Equal(t, 2000.0, got.Balance)
}

func TestApplyStationDelta(t *testing.T) {
	db := setupTestDB(t)

	var events []Event
	engine := NewEngine(db, nil, ObserverFunc(func(e Event) { events = append(events, e) }))

	record := createRecord(t, db, Models.FuelRecord{
		TruckNo: "TZA 1234", GoingDo: "DO-100", ReturnDo: "DO-200", TotalLts: 2000,
	})

	t.Run("going DO lands in going column", func(t *testing.T) {
		app, outcome := engine.ApplyStationDelta("DO-100", "TZA 1234", "LAKE NDOLA", 100, time.Now(), "test")
		require.NotNil(t, app)
		assert.Equal(t, OutcomeMatched, outcome)
		assert.Equal(t, "zambia_going", app.Field)
	})

	t.Run("return DO lands in returning column", func(t *testing.T) {
		app, outcome := engine.ApplyStationDelta("DO-200", "TZA 1234", "LAKE MBEYA", 80, time.Now(), "test")
		require.NotNil(t, app)
		assert.Equal(t, OutcomeMatched, outcome)
		assert.Equal(t, "mbeya_returning", app.Field)
	})

	t.Run("unknown station applies nothing", func(t *testing.T) {
		var before Models.FuelRecord
		require.NoError(t, db.First(&before, record.ID).Error)

		app, outcome := engine.ApplyStationDelta("DO-100", "TZA 1234", "TOTAL DODOMA", 100, time.Now(), "test")
		assert.Nil(t, app)
		assert.Equal(t, OutcomeNotFound, outcome)

		var after Models.FuelRecord
		require.NoError(t, db.First(&after, record.ID).Error)
		assert.Equal(t, before.Balance, after.Balance)
	})

	t.Run("no record emits pending event", func(t *testing.T) {
		events = nil
		app, outcome := engine.ApplyStationDelta("DO-999", "TZA 9999", "LAKE MBEYA", 100, time.Now(), "test")
		assert.Nil(t, app)
		assert.Equal(t, OutcomeNotFound, outcome)
		require.Len(t, events, 1)
		assert.Equal(t, EventEntryPending, events[0].Kind)
		assert.Equal(t, "TZA 9999", events[0].TruckNo)
	})
}

func TestApplyStationDeltaJourneyComplete(t *testing.T) {
	db := setupTestDB(t)
	engine := NewEngine(db, nil, nil)
	record := createRecord(t, db, Models.FuelRecord{
		TruckNo: "TZA 5555", TotalLts: 1000, ZambiaGoing: 1000, Balance: -1,
	})
	// Close the journey out exactly.
	require.NoError(t, db.Model(&record).Update("balance", 0).Error)

	app, outcome := engine.ApplyStationDelta("", "TZA 5555", "LAKE NDOLA", 100, time.Now(), "test")
	assert.Nil(t, app)
	assert.Equal(t, OutcomeJourneyComplete, outcome)

	var got Models.FuelRecord
	require.NoError(t, db.First(&got, record.ID).Error)
	assert.Equal(t, 0.0, got.Balance)
}

func TestAdjustAllocationRecomputesBalance(t *testing.T) {
	db := setupTestDB(t)
	engine := NewEngine(db, nil, nil)
	record := createRecord(t, db, Models.FuelRecord{TruckNo: "TZA 1234", TotalLts: 2000})

	err := engine.AdjustAllocation(record.ID, map[string]float64{
		"moro_going": 150,
		"dar_yard":   50,
		"extra":      100,
	}, "test")
	require.NoError(t, err)

	var got Models.FuelRecord
	require.NoError(t, db.First(&got, record.ID).Error)
	assert.Equal(t, 150.0, got.MoroGoing)
	assert.Equal(t, 50.0, got.DarYard)
	assert.Equal(t, 100.0, got.Extra)
	assert.Equal(t, 1900.0, got.Balance)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, got.ComputedBalance(), got.Balance)
}

func TestAdjustAllocationDropsUnknownColumns(t *testing.T) {
	db := setupTestDB(t)
	engine := NewEngine(db, nil, nil)
	record := createRecord(t, db, Models.FuelRecord{TruckNo: "TZA 1234", TotalLts: 2000})

	err := engine.AdjustAllocation(record.ID, map[string]float64{"bogus_column": 500}, "test")
	require.NoError(t, err)

	var got Models.FuelRecord
	require.NoError(t, db.First(&got, record.ID).Error)
	assert.Equal(t, 2000.0, got.Balance)
	assert.Equal(t, 0, got.Version)
}
