// Package source reads the raw tabular grids the sync pipeline is built from.
//
// There are twelve fixed sources: one primary table that defines vehicle
// identity and eleven sidecar tables keyed by vehicle id in column 0. Each
// source is addressed independently by a range (a sheet tab in the Google
// Sheets provider, a file name in the CSV provider).
package source

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ID names one tabular source.
type ID string

const (
	Vehicles      ID = "vehicles"
	Charging      ID = "charging"
	Performance   ID = "performance"
	Dimensions    ID = "dimensions"
	Efficiency    ID = "efficiency"
	Comfort       ID = "comfort"
	Price         ID = "price"
	Warranty      ID = "warranty"
	Environmental ID = "environmental"
	Regional      ID = "regional"
	Features      ID = "features"
	Images        ID = "images"
)

// Primary is the source that defines entity identity.
const Primary = Vehicles

// defaultRanges holds the A1 range each source is read from.
var defaultRanges = map[ID]string{
	Vehicles:      "Vehicles!A:Z",
	Charging:      "ChargingTimes!A:Z",
	Performance:   "Performance!A:Z",
	Dimensions:    "Dimensions!A:Z",
	Efficiency:    "Efficiency!A:Z",
	Comfort:       "Comfort!A:Z",
	Price:         "Price!A:Z",
	Warranty:      "Warranty!A:Z",
	Environmental: "EnvironmentalImpact!A:Z",
	Regional:      "TurkeyStatus!A:Z",
	Features:      "Features!A:Z",
	Images:        "Images!A:Z",
}

// order is the fixed source order: primary first, then sidecars.
var order = []ID{
	Vehicles,
	Charging, Performance, Dimensions, Efficiency, Comfort,
	Price, Warranty, Environmental, Regional,
	Features, Images,
}

// Source is one addressable tabular source.
type Source struct {
	ID    ID
	Range string
}

// All returns all source ids, primary first.
func All() []ID {
	out := make([]ID, len(order))
	copy(out, order)
	return out
}

// Sidecars returns the eleven sidecar ids in fixed order.
func Sidecars() []ID {
	return All()[1:]
}

// Known reports whether id is one of the twelve sources.
func Known(id ID) bool {
	_, ok := defaultRanges[id]
	return ok
}

// Resolve returns all twelve sources with their ranges, applying overrides
// keyed by source name. Unknown override names are an error.
func Resolve(overrides map[string]string) ([]Source, error) {
	var unknown []string
	for name := range overrides {
		if !Known(ID(strings.ToLower(name))) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown source in range overrides: %s", strings.Join(unknown, ", "))
	}

	out := make([]Source, 0, len(order))
	for _, id := range order {
		rng := defaultRanges[id]
		if o, ok := overrides[string(id)]; ok {
			rng = o
		}
		out = append(out, Source{ID: id, Range: rng})
	}
	return out, nil
}

// Provider fetches the grid for one source.
type Provider interface {
	Fetch(ctx context.Context, src Source) (Grid, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, src Source) (Grid, error)

// Fetch calls f.
func (f ProviderFunc) Fetch(ctx context.Context, src Source) (Grid, error) {
	return f(ctx, src)
}

// FetchError reports that one source could not be read.
type FetchError struct {
	Source ID
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch source %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Grid is an ordered list of rows of text cells. Row 0 is the header.
type Grid [][]string

// Header returns row 0, or nil for an empty grid.
func (g Grid) Header() []string {
	if len(g) == 0 {
		return nil
	}
	return g[0]
}

// Rows returns the data rows after the header.
func (g Grid) Rows() [][]string {
	if len(g) < 2 {
		return nil
	}
	return g[1:]
}

// Cell returns the cell at row/col, or "" when the row is short.
// Providers may return ragged rows with trailing empty cells omitted.
func Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}
