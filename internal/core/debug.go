package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/evsync/internal/logging"
	"github.com/JonMunkholm/evsync/internal/source"
)

// SourceReport describes one source in a DebugReport.
type SourceReport struct {
	Source     source.ID `json:"source"`
	Range      string    `json:"range"`
	Header     []string  `json:"header"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"durationMs"`
	SourceStats
}

// DebugReport is what a sync would see, without writing anything.
type DebugReport struct {
	RunID       string         `json:"runId"`
	Sources     []SourceReport `json:"sources"`
	IDs         []string       `json:"ids"`
	Rejected    []string       `json:"rejected"`
	Warnings    []string       `json:"warnings"`
	WouldInsert int            `json:"wouldInsert"`
	WouldUpdate int            `json:"wouldUpdate"`
}

// Debug fetches and assembles every source and classifies the result as a
// full sync would, without writing. The report is filled as far as the
// run got; err is non-nil when the primary source was unreadable.
func (s *Service) Debug(ctx context.Context) (*DebugReport, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	runID := uuid.NewString()
	log := logging.WithFields(ctx, "run_id", runID, "action", string(CmdDebug))
	ctx = logging.WithLogger(ctx, log)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	col, err := s.collect(ctx, runID, CmdDebug)

	report := &DebugReport{
		RunID:    runID,
		Sources:  make([]SourceReport, 0, len(col.fetches)),
		IDs:      col.assembled.IDs(),
		Rejected: make([]string, 0, len(col.assembled.Rejected)),
		Warnings: col.warnings,
	}
	if report.Warnings == nil {
		report.Warnings = []string{}
	}
	for _, f := range col.fetches {
		sr := SourceReport{
			Source:      f.Source.ID,
			Range:       f.Source.Range,
			Header:      f.Grid.Header(),
			DurationMs:  f.Duration.Milliseconds(),
			SourceStats: col.assembled.Stats[f.Source.ID],
		}
		if f.Err != nil {
			sr.Error = f.Err.Error()
		}
		report.Sources = append(report.Sources, sr)
	}
	for _, r := range col.assembled.Rejected {
		report.Rejected = append(report.Rejected, r.Error())
	}

	if err != nil {
		s.publish(ctx, Event{RunID: runID, Command: CmdDebug, Stage: StageFailed, Message: err.Error()})
		return report, err
	}

	existing, err := s.store.ListIDs(ctx)
	if err != nil {
		report.Warnings = append(report.Warnings, "could not read existing ids: "+err.Error())
	} else if decisions, cerr := Classify(col.assembled.Vehicles, existing, ModeFull, ""); cerr == nil {
		for _, d := range decisions {
			switch d.Action {
			case ActionInsert:
				report.WouldInsert++
			case ActionUpdate:
				report.WouldUpdate++
			}
		}
	}

	s.publish(ctx, Event{RunID: runID, Command: CmdDebug, Stage: StageComplete, Done: len(report.IDs), Total: len(report.IDs)})
	log.Info("debug run completed", "vehicles", len(report.IDs), "duration_ms", time.Since(start).Milliseconds())
	return report, nil
}
