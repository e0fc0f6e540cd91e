// Package core provides the vehicle sync pipeline.
//
// A vehicle is spread across twelve tabular sources: one primary sheet that
// defines identity and core scalars, and eleven sidecars keyed by vehicle id
// in their first column. This package turns the fetched grids into typed
// vehicles, decides what to write, writes it and reports the outcome. It
// has no transport dependencies and is used by both the HTTP trigger and
// the CLI.
//
// # Pipeline
//
//  1. [source.FetchAll] reads every source concurrently. A failed sidecar
//     becomes an empty grid and a warning; a failed primary source aborts.
//  2. [Assemble] coerces cells with [Coerce], parses each sidecar into an
//     arena keyed by vehicle id and joins it onto the primary rows.
//  3. [Classify] compares the vehicles with one id-only read of the store
//     and decides insert, update or skip per vehicle.
//  4. Each write fills absent groups from [DefaultAttributeGroups] and goes
//     to the [Store] independently of the others.
//  5. [Aggregate] folds the write results into an [Outcome].
//
// [Service.Sync] runs the whole pipeline under a [SyncLimiter] and an
// overall deadline, publishes [Event] values on a [Broadcaster] and records
// a [RunSummary] when a [RunRecorder] is configured.
//
// # Sidecar Registry
//
// Sidecars are registered at init time with [Register]. Each [Definition]
// says whether the sidecar is a single group or a list and how its rows
// attach to a vehicle:
//
//	core.Register(core.Definition{
//	    Source: source.Price,
//	    Label:  "Price",
//	    Attach: func(v *core.Vehicle, rows []core.Row) {
//	        v.Price = &core.Price{Base: rows[0].Number("base", 0)}
//	    },
//	})
//
// # Merge Policy
//
// A single-group sidecar with several rows for one id keeps the last row.
// A primary sheet with a repeated id keeps the first row and rejects the
// rest. Sidecar rows for ids missing from the primary sheet are dropped.
//
// # Error Handling
//
// Per-cell and per-row problems never abort a run: cells fall back to
// text with a [ParseError], invalid primary rows become [ValidationError]
// notes and store rejections become [WriteError] strings in the outcome.
// Only a [FatalError] sets Success to false. [MapError] turns technical
// errors into user-facing messages with support codes.
package core
