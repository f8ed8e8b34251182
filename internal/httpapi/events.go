package httpapi

import (
	"net/http"
	"strconv"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
)

// handleGetEvents implements GET /events?limit=&type=&session_id=&correlation_id=&since=.
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := persistence.EventFilter{
		EventType:     q.Get("type"),
		SessionID:     q.Get("session_id"),
		CorrelationID: q.Get("correlation_id"),
		Since:         q.Get("since"),
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	events, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, http.StatusOK, map[string]interface{}{"events": events})
}
