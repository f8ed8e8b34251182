package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/actions"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/assist"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/router"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/watch"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/wshub"
)

// Server holds every dependency the HTTP handlers need. It is deliberately
// thin: all decisions are made by the Router, Executor, and Orchestrator it
// wraps, never here.
type Server struct {
	store      *persistence.Store
	router     *router.Router
	executor   *actions.Executor
	orchestrator *assist.Orchestrator
	supervisor *watch.Supervisor
	hub        *wshub.Hub
}

// New builds a Server. hub may be nil, in which case /events/stream 404s.
func New(store *persistence.Store, r *router.Router, executor *actions.Executor, orchestrator *assist.Orchestrator, supervisor *watch.Supervisor, hub *wshub.Hub) *Server {
	return &Server{store: store, router: r, executor: executor, orchestrator: orchestrator, supervisor: supervisor, hub: hub}
}

// Routes builds the HTTP surface spec.md §6 names, plus the ambient
// /metrics and /events/stream routes SPEC_FULL.md adds.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /state", s.handleGetState)
	mux.HandleFunc("POST /state", s.handlePostState)
	mux.HandleFunc("GET /events", s.handleGetEvents)
	mux.HandleFunc("POST /intent", s.handlePostIntent)
	mux.HandleFunc("POST /confirm", s.handlePostConfirm)
	mux.HandleFunc("POST /execute", s.handlePostExecute)
	mux.HandleFunc("POST /feedback", s.handlePostFeedback)
	mux.HandleFunc("POST /assist", s.handlePostAssist)

	mux.Handle("GET /metrics", promhttp.Handler())
	if s.hub != nil {
		mux.HandleFunc("GET /events/stream", s.hub.HandleWebSocket)
	}

	return mux
}
