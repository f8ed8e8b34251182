// Package httpapi implements the HTTP surface spec.md §6 names: a thin
// net/http layer over the Policy Engine, Router, Action Executor, Advisory
// Client, and Watch-Condition Supervisor, matching the teacher's own choice
// of stdlib net/http over a third-party router/framework.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// envelope is every response body's shape per spec.md §7: success bodies
// always carry ok:true, error bodies ok:false plus a human-readable error.
func writeOK(w http.ResponseWriter, status int, fields map[string]interface{}) {
	body := map[string]interface{}{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"ok": false, "error": message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("httpapi: failed to encode response body")
	}
}
