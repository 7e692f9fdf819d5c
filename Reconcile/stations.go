package Reconcile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"Convoy/Models"

	"github.com/yosuke-furukawa/json5/encoding/json5"
	"golang.org/x/exp/maps"
)

// FieldPair maps one station to its going and returning allocation columns.
// Either side may be empty; Resolve falls back to the other direction.
type FieldPair struct {
	Going     string `json:"going"`
	Returning string `json:"returning"`
}

// StationMap resolves a station name to the fuel-record column a liters
// delta should land in. It is injected into the engine rather than read
// from a package-level table so deployments can override it from a config
// file and tests can supply their own.
type StationMap struct {
	pairs map[string]FieldPair
	yards map[string]string
}

// DefaultStationMap returns the compiled-in mapping table.
func DefaultStationMap() *StationMap {
	return &StationMap{
		pairs: map[string]FieldPair{
			"LAKE MOROGORO": {Going: "moro_going", Returning: "moro_returning"},
			"LAKE IRINGA":   {Going: "iringa_going", Returning: "iringa_returning"},
			"LAKE MBEYA":    {Going: "mbeya_going", Returning: "mbeya_returning"},
			"LAKE TUNDUMA":  {Going: "tunduma_going", Returning: "tunduma_returning"},
			"LAKE NDOLA":    {Going: "zambia_going", Returning: "zambia_returning"},
			"PUMA MBEYA":    {Going: "mbeya_going", Returning: "mbeya_returning"},
			"PUMA NDOLA":    {Going: "zambia_going", Returning: "zambia_returning"},
			// CASH purchases carry no station, so they default to the Mbeya
			// pair. Known approximation, kept overridable via config.
			"CASH": {Going: "mbeya_going", Returning: "mbeya_returning"},
		},
		yards: map[string]string{
			"DAR":   "dar_yard",
			"MBEYA": "mbeya_yard",
		},
	}
}

type stationMapFile struct {
	Stations map[string]FieldPair `json:"stations"`
	Yards    map[string]string    `json:"yards"`
}

// LoadStationMap reads a mapping table from a JSON5 file. Column names are
// validated against the fixed fuel-record schema.
func LoadStationMap(path string) (*StationMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file stationMapFile
	if err := json5.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse station map %s: %w", path, err)
	}

	m := &StationMap{
		pairs: make(map[string]FieldPair, len(file.Stations)),
		yards: make(map[string]string, len(file.Yards)),
	}
	for name, pair := range file.Stations {
		if pair.Going != "" && !Models.IsAllocationColumn(pair.Going) {
			return nil, fmt.Errorf("station %q: unknown going column %q", name, pair.Going)
		}
		if pair.Returning != "" && !Models.IsAllocationColumn(pair.Returning) {
			return nil, fmt.Errorf("station %q: unknown returning column %q", name, pair.Returning)
		}
		m.pairs[normalizeStation(name)] = pair
	}
	for yard, col := range file.Yards {
		if !Models.IsAllocationColumn(col) {
			return nil, fmt.Errorf("yard %q: unknown column %q", yard, col)
		}
		m.yards[normalizeStation(yard)] = col
	}
	return m, nil
}

func normalizeStation(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Resolve returns the allocation column for a station and direction. If the
// direction-appropriate column is absent the other direction's column is
// used. Unknown stations return ok=false; the caller logs and skips.
func (m *StationMap) Resolve(station string, returning bool) (string, bool) {
	pair, ok := m.pairs[normalizeStation(station)]
	if !ok {
		return "", false
	}
	field := pair.Going
	other := pair.Returning
	if returning {
		field, other = pair.Returning, pair.Going
	}
	if field == "" {
		field = other
	}
	if field == "" {
		return "", false
	}
	return field, true
}

// YardColumn returns the allocation column a yard dispense lands in.
func (m *StationMap) YardColumn(yard string) (string, bool) {
	col, ok := m.yards[normalizeStation(yard)]
	return col, ok
}

// Stations lists the known station names, sorted.
func (m *StationMap) Stations() []string {
	names := maps.Keys(m.pairs)
	sort.Strings(names)
	return names
}
