package v1

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vmunix/bulkimport/internal/events"
)

const maxEventsLimit = 1000

var eventRegistry = events.DefaultRegistry()

// toEventResponse decodes the payload into its typed event when the type is
// known, and into a generic map otherwise.
func toEventResponse(e events.RawEvent) EventResponse {
	resp := EventResponse{
		ID:         e.ID,
		EventType:  e.EventType,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		OccurredAt: e.OccurredAt.Format(time.RFC3339),
	}
	if typed, err := eventRegistry.Unmarshal(e); err == nil {
		resp.Payload = typed
		return resp
	}
	if e.Payload != "" {
		var payload any
		if err := json.Unmarshal([]byte(e.Payload), &payload); err == nil {
			resp.Payload = payload
		}
	}
	return resp
}

func writeEvents(w http.ResponseWriter, raw []events.RawEvent) {
	resp := listEventsResponse{
		Items: make([]EventResponse, len(raw)),
		Total: len(raw),
	}
	for i, e := range raw {
		resp.Items[i] = toEventResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

// listEvents returns the newest events, or with ?since= every event at or
// after that time, oldest first.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	if limit <= 0 {
		limit = 100
	}
	if limit > maxEventsLimit {
		limit = maxEventsLimit
	}

	var (
		raw []events.RawEvent
		err error
	)
	if since := queryString(r, "since"); since != nil {
		t, perr := time.Parse(time.RFC3339, *since)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SINCE", "since must be an RFC 3339 timestamp")
			return
		}
		raw, err = s.deps.EventLog.Since(r.Context(), t)
		if len(raw) > limit {
			raw = raw[:limit]
		}
	} else {
		raw, err = s.deps.EventLog.Recent(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error())
		return
	}
	writeEvents(w, raw)
}

func (s *Server) jobEvents(w http.ResponseWriter, r *http.Request) {
	raw, err := s.deps.EventLog.ForEntity(r.Context(), events.EntityJob, r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error())
		return
	}
	writeEvents(w, raw)
}
