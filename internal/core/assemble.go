package core

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/evsync/internal/source"
)

// SourceStats summarises what assembly found in one source.
type SourceStats struct {
	Rows       int `json:"rows"`
	Matched    int `json:"matched"`
	Orphans    int `json:"orphans"`
	Duplicates int `json:"duplicates"`
}

// AssembleResult is the output of Assemble.
type AssembleResult struct {
	// Vehicles keeps primary row order. Ids are unique.
	Vehicles []Vehicle
	// Rejected lists primary rows that never became vehicles.
	Rejected []ValidationError
	// Warnings are non-fatal notes: unreadable cells, duplicate sidecar
	// rows, sidecar rows without an id.
	Warnings []string
	Stats    map[source.ID]SourceStats
}

// IDs returns the assembled vehicle ids in order.
func (r AssembleResult) IDs() []string {
	ids := make([]string, len(r.Vehicles))
	for i, v := range r.Vehicles {
		ids[i] = v.ID
	}
	return ids
}

// arena holds parsed sidecar rows: source, then vehicle id, then rows.
// Group sources hold exactly one row per id.
type arena map[source.ID]map[string][]Row

// Assemble builds one Vehicle per valid primary row and attaches every
// sidecar group or list by id. Sidecars missing from the map, or with no
// row for an id, leave that group nil on the vehicle. Sidecar rows for ids
// absent from the primary grid are dropped.
func Assemble(primary source.Grid, sidecars map[source.ID]source.Grid) AssembleResult {
	res := AssembleResult{Stats: make(map[source.ID]SourceStats)}

	vehicles := res.parsePrimary(primary)

	defs := Definitions()
	a := make(arena, len(defs))
	for _, def := range defs {
		a[def.Source] = res.parseSidecar(def, sidecars[def.Source])
	}

	res.Vehicles = join(vehicles, a, defs)

	ids := make(map[string]struct{}, len(res.Vehicles))
	for _, v := range res.Vehicles {
		ids[v.ID] = struct{}{}
	}
	for _, def := range defs {
		st := res.Stats[def.Source]
		for id := range a[def.Source] {
			if _, ok := ids[id]; ok {
				st.Matched++
			} else {
				st.Orphans++
			}
		}
		res.Stats[def.Source] = st
	}

	return res
}

// join attaches arena rows to copies of vehicles. It reads a and never
// modifies it.
func join(vehicles []Vehicle, a arena, defs []Definition) []Vehicle {
	out := make([]Vehicle, len(vehicles))
	for i, v := range vehicles {
		for _, def := range defs {
			if rows := a[def.Source][v.ID]; len(rows) > 0 {
				def.Attach(&v, rows)
			}
		}
		out[i] = v
	}
	return out
}

func (res *AssembleResult) parsePrimary(g source.Grid) []Vehicle {
	var stats SourceStats
	defer func() { res.Stats[source.Primary] = stats }()

	if len(g) == 0 {
		return nil
	}

	cols := mapHeader(g.Header(), nil)
	seen := make(map[string]int)
	var out []Vehicle

	for i, cells := range g.Rows() {
		line := i + 2
		if blankRow(cells) {
			continue
		}
		stats.Rows++

		row, errs := parseRow(cols, cells, line, 0)
		id := row.Text("id")

		if missing := missingCore(row); len(missing) > 0 {
			res.Rejected = append(res.Rejected, ValidationError{
				Line:   line,
				ID:     id,
				Reason: "missing " + strings.Join(missing, ", "),
			})
			continue
		}
		if first, dup := seen[id]; dup {
			stats.Duplicates++
			res.Rejected = append(res.Rejected, ValidationError{
				Line:   line,
				ID:     id,
				Reason: fmt.Sprintf("duplicate id, first seen on row %d", first),
			})
			continue
		}
		seen[id] = line

		res.warnParse(source.Primary, line, id, errs)
		out = append(out, vehicleFromRow(row))
	}

	return out
}

func missingCore(r Row) []string {
	var missing []string
	for _, f := range []string{"id", "brand", "model"} {
		if r.Text(f) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

func vehicleFromRow(r Row) Vehicle {
	return Vehicle{
		ID:              r.Text("id"),
		Brand:           r.Text("brand"),
		Model:           r.Text("model"),
		Year:            r.Int("year", DefaultYear),
		Type:            r.Text("type"),
		Range:           r.Number("range", 0),
		BatteryCapacity: r.Number("batteryCapacity", 0),
		HeatPump:        r.Value("heatPump").TriState(""),
		V2L:             r.Value("v2l").TriState(""),
	}
}

func (res *AssembleResult) parseSidecar(def Definition, g source.Grid) map[string][]Row {
	var stats SourceStats
	defer func() { res.Stats[def.Source] = stats }()

	rows := make(map[string][]Row)
	if len(g) == 0 {
		return rows
	}

	cols := mapHeader(g.Header(), def.Aliases)

	for i, cells := range g.Rows() {
		line := i + 2
		if blankRow(cells) {
			continue
		}

		key := CleanCell(source.Cell(cells, 0))
		if key == "" {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("%s row %d: no vehicle id in first column", def.Source, line))
			continue
		}
		stats.Rows++

		row, errs := parseRow(cols, cells, line, 1)
		row.Key = key
		res.warnParse(def.Source, line, key, errs)

		if def.Shape == ShapeList {
			rows[key] = append(rows[key], row)
			continue
		}

		if prev, dup := rows[key]; dup {
			stats.Duplicates++
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("%s row %d (%s): duplicate of row %d, later row wins", def.Source, line, key, prev[0].Line))
		}
		rows[key] = []Row{row}
	}

	return rows
}

func (res *AssembleResult) warnParse(src source.ID, line int, id string, errs []*ParseError) {
	for _, e := range errs {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s row %d (%s): %v", src, line, id, e))
	}
}
