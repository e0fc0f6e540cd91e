package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/JonMunkholm/evsync/internal/core"
	"github.com/JonMunkholm/evsync/internal/logging"
)

// maxSyncBody bounds the trigger request body.
const maxSyncBody = 64 << 10

type syncRequest struct {
	Action string `json:"action"`
	ID     string `json:"id"`
}

// syncData is the data block of a sync response.
type syncData struct {
	AddedCount   int      `json:"addedCount"`
	UpdatedCount int      `json:"updatedCount"`
	SkippedCount int      `json:"skippedCount"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings,omitempty"`
	RunID        string   `json:"runId,omitempty"`
}

// handleSync triggers a sync. POST takes {action, id?}; GET always runs
// sync-latest.
//
// Status codes: 200 when the run completed (entity errors are in
// data.errors), 400 for a bad body, unknown action or missing id, 404 when
// sync-vehicle names an id absent from the source, 429 when another sync
// holds the slot, 500 when the pipeline aborted.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	req := syncRequest{Action: string(core.CmdSyncLatest)}
	if r.Method == http.MethodPost {
		var err error
		if req, err = decodeSyncRequest(w, r); err != nil {
			respondError(w, r, err, http.StatusBadRequest)
			return
		}
	}

	cmd, err := core.ParseCommand(req.Action)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if cmd == core.CmdDebug {
		s.handleDebug(w, r)
		return
	}

	out := s.service.Sync(r.Context(), core.Request{Command: cmd, ID: strings.TrimSpace(req.ID)})
	status := statusFor(out.Err)

	resp := Response{Success: out.Success, Message: out.Message}
	if !out.Success {
		msg := core.MapError(out.Err)
		resp.Code = msg.Code
		resp.Action = msg.Action
		logging.FromContext(r.Context()).Warn("sync did not complete",
			"action", cmd,
			"status", status,
			"error", out.Err,
			"code", msg.Code,
		)
	}

	switch status {
	case http.StatusBadRequest:
	case http.StatusTooManyRequests:
		w.Header().Set("Retry-After", "10")
	default:
		resp.Data = syncData{
			AddedCount:   out.AddedCount,
			UpdatedCount: out.UpdatedCount,
			SkippedCount: out.SkippedCount,
			Errors:       out.Errors,
			Warnings:     out.Warnings,
			RunID:        out.RunID,
		}
	}

	writeJSON(w, r, status, resp)
}

func decodeSyncRequest(w http.ResponseWriter, r *http.Request) (syncRequest, error) {
	var req syncRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSyncBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, fmt.Errorf("%w: empty body", errBadBody)
		}
		return req, fmt.Errorf("%w: %v", errBadBody, err)
	}
	return req, nil
}

// handleDebug runs the debug action: fetch and assemble without writing.
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Debug(r.Context())
	if err != nil {
		msg := core.MapError(err)
		status := statusFor(err)
		if errors.Is(err, core.ErrTooManySyncs) {
			w.Header().Set("Retry-After", "10")
		}
		logging.FromContext(r.Context()).Warn("debug run did not complete", "error", err, "code", msg.Code)

		resp := Response{Success: false, Message: "Debug failed: " + msg.Message, Code: msg.Code, Action: msg.Action}
		if report != nil {
			resp.Data = report
		}
		writeJSON(w, r, status, resp)
		return
	}

	writeJSON(w, r, http.StatusOK, Response{
		Success: true,
		Message: fmt.Sprintf("Debug complete: %d vehicles, %d rejected rows, %d warnings",
			len(report.IDs), len(report.Rejected), len(report.Warnings)),
		Data: report,
	})
}
