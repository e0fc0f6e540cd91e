package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/evsync/internal/core"
	"github.com/JonMunkholm/evsync/internal/logging"
	"github.com/JonMunkholm/evsync/internal/source"
)

// maxRunsLimit caps the limit query parameter of the run history.
const maxRunsLimit = 200

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// handleHealth reports database reachability and sync slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status": "ok",
		"sync":   s.service.Limiter().Status(),
	}

	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("health: database ping failed", "error", err)
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = "unreachable"
		} else {
			body["database"] = "ok"
		}
	}

	writeJSON(w, r, status, body)
}

// handleRuns lists recent sync runs, newest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		respondError(w, r, errors.New("run history is not configured"), http.StatusNotImplemented)
		return
	}

	limit := min(parseIntParam(r, "limit", s.cfg.Sync.HistoryLimit), maxRunsLimit)
	runs, err := s.deps.Runs.ListRuns(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusOK, Response{
		Success: true,
		Message: fmt.Sprintf("%d runs", len(runs)),
		Data:    runs,
	})
}

// sourceInfo describes one configured source.
type sourceInfo struct {
	ID      source.ID `json:"id"`
	Range   string    `json:"range"`
	Label   string    `json:"label"`
	Primary bool      `json:"primary"`
	List    bool      `json:"list"`
}

// handleSources lists the configured sources with their ranges.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, Response{
		Success: true,
		Message: fmt.Sprintf("%d sources", len(s.service.Sources())),
		Data:    describeSources(s.service.Sources()),
	})
}

func describeSources(srcs []source.Source) []sourceInfo {
	out := make([]sourceInfo, 0, len(srcs))
	for _, src := range srcs {
		info := sourceInfo{ID: src.ID, Range: src.Range}
		if src.ID == source.Primary {
			info.Primary = true
			info.Label = "Vehicles"
		} else if def, ok := core.Get(src.ID); ok {
			info.Label = def.Label
			info.List = def.Shape == core.ShapeList
		}
		out = append(out, info)
	}
	return out
}

// handleEvents streams sync progress via Server-Sent Events. Each event is
// named after its stage and carries the JSON-encoded core.Event. A comment
// line is sent every 15 seconds to keep proxies from closing the stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	events, unsubscribe := s.service.Events().Subscribe(64)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	eventID := 0
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			eventID++
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", eventID, e.Stage, data)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
