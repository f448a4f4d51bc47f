// Package api exposes read-only HTTP views over internal state for
// operators and federated peers: no writes, no authentication beyond
// whatever sits in front of this process.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/opensciencearchive/server-sub000/internal/logging"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
)

// NewEventsHandler serves the event changefeed read-only: GET /events for a
// cursor-paginated list, GET /events/{id} for a single event by id. This is
// the pollable cursor surface an audit trail or federated peer reads from.
func NewEventsHandler(log *outbox.EventLog, logger *logging.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", listEvents(log, logger))
	mux.HandleFunc("GET /events/{id}", getEvent(log, logger))
	return mux
}

func listEvents(log *outbox.EventLog, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		limit := 50
		if raw := q.Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}

		var types []string
		if raw := q.Get("types"); raw != "" {
			types = strings.Split(raw, ",")
		}

		var after *uuid.UUID
		if raw := q.Get("after"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				http.Error(w, "invalid after cursor", http.StatusBadRequest)
				return
			}
			after = &id
		}

		newestFirst := q.Get("order") == "newest"

		events, err := log.ListEvents(ctx, limit, after, types, newestFirst)
		if err != nil {
			logger.WithField("error", err.Error()).Error("api: list events")
			http.Error(w, "list events failed", http.StatusInternalServerError)
			return
		}

		count, err := log.Count(ctx, types)
		if err != nil {
			logger.WithField("error", err.Error()).Error("api: count events")
			http.Error(w, "count events failed", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"events": events,
			"total":  count,
		})
	}
}

func getEvent(log *outbox.EventLog, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid event id", http.StatusBadRequest)
			return
		}

		ev, err := log.Get(r.Context(), id)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, ev)
		case errors.Is(err, outbox.ErrEventNotFound):
			http.Error(w, "event not found", http.StatusNotFound)
		default:
			logger.WithField("error", err.Error()).Error("api: get event")
			http.Error(w, "get event failed", http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
