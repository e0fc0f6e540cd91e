package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/evsync/internal/logging"
)

// RunSummary is the persisted record of one sync run.
type RunSummary struct {
	ID         string    `json:"id"`
	Command    Command   `json:"action"`
	VehicleID  string    `json:"vehicleId,omitempty"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	Added      int       `json:"addedCount"`
	Updated    int       `json:"updatedCount"`
	Skipped    int       `json:"skippedCount"`
	Failed     int       `json:"failedCount"`
	Warnings   int       `json:"warningCount"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
}

func newRunSummary(ctx context.Context, runID string, req Request, started time.Time, out Outcome) RunSummary {
	return RunSummary{
		ID:         runID,
		Command:    req.Command,
		VehicleID:  req.ID,
		Success:    out.Success,
		Message:    out.Message,
		Added:      out.AddedCount,
		Updated:    out.UpdatedCount,
		Skipped:    out.SkippedCount,
		Failed:     out.FailedCount(),
		Warnings:   len(out.Warnings),
		StartedAt:  started,
		DurationMs: time.Since(started).Milliseconds(),
		IPAddress:  IPAddressFromContext(ctx),
		UserAgent:  UserAgentFromContext(ctx),
	}
}

// recordRun stores the summary. Failures are logged, never returned: the
// run itself has already finished.
func (s *Service) recordRun(ctx context.Context, run RunSummary) {
	if s.recorder == nil {
		return
	}

	// The caller's context may already be past its deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.recorder.RecordRun(ctx, run); err != nil {
		logging.FromContext(ctx).Warn("failed to record sync run", "error", err)
	}
}
