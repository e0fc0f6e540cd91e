package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/evsync/internal/logging"
	"github.com/JonMunkholm/evsync/internal/source"
)

// Command is a trigger action.
type Command string

const (
	CmdSyncAll     Command = "sync-all"
	CmdSyncLatest  Command = "sync-latest"
	CmdSyncVehicle Command = "sync-vehicle"
	CmdDebug       Command = "debug"
)

// ParseCommand validates a trigger action name.
func ParseCommand(s string) (Command, error) {
	switch c := Command(strings.TrimSpace(s)); c {
	case CmdSyncAll, CmdSyncLatest, CmdSyncVehicle, CmdDebug:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
}

// Mode returns the reconcile mode for a sync command. Debug has none.
func (c Command) Mode() (Mode, bool) {
	switch c {
	case CmdSyncAll:
		return ModeFull, true
	case CmdSyncLatest:
		return ModeLatest, true
	case CmdSyncVehicle:
		return ModeSingle, true
	default:
		return "", false
	}
}

// Request is one trigger call.
type Request struct {
	Command Command
	ID      string
}

// Validate checks that the command is a sync command and that
// sync-vehicle carries an id.
func (r Request) Validate() error {
	if _, ok := r.Command.Mode(); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, r.Command)
	}
	if r.Command == CmdSyncVehicle && strings.TrimSpace(r.ID) == "" {
		return ErrMissingID
	}
	return nil
}

// Default pipeline bounds, used when Options leaves them zero.
const (
	DefaultSyncTimeout  = 2 * time.Minute
	DefaultFetchTimeout = 20 * time.Second
)

// Options configures a Service. Zero values pick defaults.
type Options struct {
	// Sources defaults to every known source at its default range.
	Sources          []source.Source
	Timeout          time.Duration
	FetchTimeout     time.Duration
	WriteConcurrency int

	Limiter  *SyncLimiter
	Events   *Broadcaster
	Recorder RunRecorder
	Defaults *AttributeDefaults
}

// Service runs the sync pipeline: fetch, assemble, reconcile, write,
// aggregate.
type Service struct {
	provider source.Provider
	store    Store
	recorder RunRecorder

	sources          []source.Source
	timeout          time.Duration
	fetchTimeout     time.Duration
	writeConcurrency int
	defaults         AttributeDefaults

	limiter *SyncLimiter
	events  *Broadcaster
}

// NewService creates a Service reading from p and writing to st.
func NewService(p source.Provider, st Store, opts Options) (*Service, error) {
	if p == nil {
		return nil, errors.New("source provider is required")
	}
	if st == nil {
		return nil, errors.New("store is required")
	}

	s := &Service{
		provider:         p,
		store:            st,
		recorder:         opts.Recorder,
		sources:          opts.Sources,
		timeout:          opts.Timeout,
		fetchTimeout:     opts.FetchTimeout,
		writeConcurrency: opts.WriteConcurrency,
		defaults:         DefaultAttributeGroups(),
		limiter:          opts.Limiter,
		events:           opts.Events,
	}

	if s.sources == nil {
		srcs, err := source.Resolve(nil)
		if err != nil {
			return nil, err
		}
		s.sources = srcs
	}
	if !hasPrimary(s.sources) {
		return nil, fmt.Errorf("source list must include %s", source.Primary)
	}
	if s.timeout <= 0 {
		s.timeout = DefaultSyncTimeout
	}
	if s.fetchTimeout <= 0 {
		s.fetchTimeout = DefaultFetchTimeout
	}
	if s.writeConcurrency <= 0 {
		s.writeConcurrency = 1
	}
	if opts.Defaults != nil {
		s.defaults = *opts.Defaults
	}
	if s.limiter == nil {
		s.limiter = NewSyncLimiter(DefaultMaxConcurrentSyncs, DefaultSyncWait)
	}
	if s.events == nil {
		s.events = NewBroadcaster()
	}

	return s, nil
}

func hasPrimary(srcs []source.Source) bool {
	for _, s := range srcs {
		if s.ID == source.Primary {
			return true
		}
	}
	return false
}

// Events returns the broadcaster progress events are published on.
func (s *Service) Events() *Broadcaster {
	return s.events
}

// Limiter returns the run limiter, for health output and shutdown.
func (s *Service) Limiter() *SyncLimiter {
	return s.limiter
}

// Sources returns the configured sources.
func (s *Service) Sources() []source.Source {
	return s.sources
}

// Sync runs one sync and always returns an Outcome. Success is false only
// when the run could not complete: invalid request, no free slot, primary
// source unreadable, existing-id read failed, deadline passed before
// writing, or sync-vehicle for an id absent from the source.
func (s *Service) Sync(ctx context.Context, req Request) Outcome {
	if err := req.Validate(); err != nil {
		return failedOutcome(err.Error(), err)
	}
	mode, _ := req.Command.Mode()

	if err := s.limiter.Acquire(ctx); err != nil {
		return failedOutcome(MapError(err).Message, err)
	}
	defer s.limiter.Release()

	runID := uuid.NewString()
	started := time.Now()

	log := logging.WithFields(ctx, "run_id", runID, "action", string(req.Command))
	ctx = logging.WithLogger(ctx, log)

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log.Info("sync started", "vehicle_id", req.ID, "sources", len(s.sources))
	s.publish(runCtx, Event{RunID: runID, Command: req.Command, Stage: StageStart})

	out := s.run(runCtx, runID, req, mode)
	out.RunID = runID

	if out.Success {
		s.publish(runCtx, Event{RunID: runID, Command: req.Command, Stage: StageComplete, Message: out.Message})
		log.Info("sync completed",
			"added", out.AddedCount,
			"updated", out.UpdatedCount,
			"skipped", out.SkippedCount,
			"failed", out.FailedCount(),
			"warnings", len(out.Warnings),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	} else {
		s.publish(runCtx, Event{RunID: runID, Command: req.Command, Stage: StageFailed, Message: out.Message})
		log.Error("sync failed", "error", out.Err, "duration_ms", time.Since(started).Milliseconds())
	}

	s.recordRun(ctx, newRunSummary(ctx, runID, req, started, out))
	return out
}

func (s *Service) run(ctx context.Context, runID string, req Request, mode Mode) Outcome {
	log := logging.FromContext(ctx)

	col, err := s.collect(ctx, runID, req.Command)
	if err != nil {
		return s.fatal(err, col.warnings)
	}

	existing, err := s.store.ListIDs(ctx)
	if err != nil {
		return s.fatal(&FatalError{Stage: StageReconcile, Err: fmt.Errorf("list existing ids: %w", err)}, col.warnings)
	}

	decisions, err := Classify(col.assembled.Vehicles, existing, mode, req.ID)
	if errors.Is(err, ErrVehicleNotFound) {
		out := failedOutcome(fmt.Sprintf("vehicle %s not found in source data", req.ID), err)
		out.Warnings = col.warnings
		return out
	}
	if err != nil {
		return s.fatal(&FatalError{Stage: StageReconcile, Err: err}, col.warnings)
	}

	pending := 0
	for _, d := range decisions {
		if d.Action != ActionSkip {
			pending++
		}
	}
	s.publish(ctx, Event{
		RunID:   runID,
		Command: req.Command,
		Stage:   StageReconcile,
		Done:    pending,
		Total:   len(decisions),
		Message: fmt.Sprintf("%d of %d vehicles need a write", pending, len(decisions)),
	})

	if err := ctx.Err(); err != nil {
		return s.fatal(&FatalError{Stage: StageWrite, Err: err}, col.warnings)
	}

	results := writeAll(ctx, s.store, decisions, s.defaults, s.writeConcurrency, func(done int) {
		s.publish(ctx, Event{RunID: runID, Command: req.Command, Stage: StageWrite, Done: done, Total: pending})
	})

	out := Aggregate(results)
	out.Warnings = col.warnings
	for _, e := range out.Errors {
		log.Warn("vehicle write failed", "error", e)
	}
	return out
}

func (s *Service) fatal(err error, warnings []string) Outcome {
	out := failedOutcome("Sync failed: "+MapError(err).Message, err)
	out.Warnings = warnings
	return out
}

// collected is the fetch and assembly state shared by Sync and Debug.
type collected struct {
	fetches   []source.Result
	assembled AssembleResult
	warnings  []string
}

// collect fetches every source and assembles vehicles. Only an unreadable
// primary source or an expired deadline is an error; sidecar failures are
// returned as warnings with that sidecar treated as empty.
func (s *Service) collect(ctx context.Context, runID string, cmd Command) (collected, error) {
	log := logging.FromContext(ctx)
	var col collected

	s.publish(ctx, Event{RunID: runID, Command: cmd, Stage: StageFetch, Total: len(s.sources)})
	col.fetches = source.FetchAll(ctx, s.provider, s.sources, s.fetchTimeout)

	var primary source.Grid
	sidecars := make(map[source.ID]source.Grid, len(col.fetches))
	done := 0
	for _, r := range col.fetches {
		if r.Failed() {
			if r.Source.ID == source.Primary {
				log.Error("primary source fetch failed", "source", r.Source.ID, "error", r.Err)
				return col, &FatalError{Stage: StageFetch, Err: fmt.Errorf("primary source unreadable: %w", r.Err)}
			}
			log.Warn("source fetch failed", "source", r.Source.ID, "error", r.Err)
			col.warnings = append(col.warnings, fmt.Sprintf("%v; %s data left out", r.Err, r.Source.ID))
		} else {
			log.Debug("source fetched", "source", r.Source.ID, "rows", len(r.Grid), "duration_ms", r.Duration.Milliseconds())
		}

		done++
		s.publish(ctx, Event{RunID: runID, Command: cmd, Stage: StageFetch, Source: string(r.Source.ID), Done: done, Total: len(col.fetches)})

		if r.Source.ID == source.Primary {
			primary = r.Grid
		} else {
			sidecars[r.Source.ID] = r.Grid
		}
	}

	if err := ctx.Err(); err != nil {
		return col, &FatalError{Stage: StageFetch, Err: err}
	}

	col.assembled = Assemble(primary, sidecars)
	for _, rej := range col.assembled.Rejected {
		col.warnings = append(col.warnings, fmt.Sprintf("%s %s, row skipped", source.Primary, rej.Error()))
	}
	col.warnings = append(col.warnings, col.assembled.Warnings...)

	s.publish(ctx, Event{
		RunID:   runID,
		Command: cmd,
		Stage:   StageAssemble,
		Done:    len(col.assembled.Vehicles),
		Total:   len(col.assembled.Vehicles) + len(col.assembled.Rejected),
	})
	log.Info("vehicles assembled", "vehicles", len(col.assembled.Vehicles), "rejected", len(col.assembled.Rejected))

	return col, nil
}

// publish sends e to subscribers and logs it at debug level.
func (s *Service) publish(ctx context.Context, e Event) {
	s.events.Publish(e)
	logging.FromContext(ctx).Debug("sync progress",
		"stage", e.Stage,
		"source", e.Source,
		"done", e.Done,
		"total", e.Total,
	)
}
