package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/scrypster/volition/internal/agent"
	"github.com/scrypster/volition/internal/config"
	"github.com/scrypster/volition/internal/notify"
	"github.com/scrypster/volition/internal/storage"
)

// Server is the embedded status server hosted by the agent process.
type Server struct {
	store     storage.GraphStore
	hub       *Hub
	statePath string
	dataPath  string
	httpSrv   *http.Server
}

// NewServer creates a status server. statePath points at the agent's run
// state file, surfaced read-only on the status endpoint; dataPath is the
// shared data directory whose event files are relayed to websocket clients
// (empty disables the relay).
func NewServer(store storage.GraphStore, statePath, dataPath string, cfg config.MonitorConfig) *Server {
	s := &Server{
		store:     store,
		hub:       NewHub(),
		statePath: statePath,
		dataPath:  dataPath,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/ws", s.hub)

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Hub exposes the event hub so the agent can broadcast cycle summaries.
func (s *Server) Hub() *Hub { return s.hub }

// Start runs the hub, the event-file relay and the HTTP listener until ctx
// is cancelled.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run()

	var watcher *notify.EventWatcher
	if s.dataPath != "" {
		watcher = notify.NewEventWatcher(s.dataPath, func(e notify.Event) {
			s.hub.Broadcast(e)
		})
		if err := watcher.Start(); err != nil {
			log.Printf("monitor: event watcher: %v", err)
			watcher = nil
		}
	}

	go func() {
		log.Printf("monitor: listening on %s", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("monitor: server error: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		if watcher != nil {
			watcher.Stop()
		}
		s.hub.Stop()
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleStatus returns the store counters plus the agent's local run state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counters, err := s.store.GetCounters(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("counters: %v", err), http.StatusInternalServerError)
		return
	}

	state, err := agent.LoadRunState(s.statePath)
	if err != nil {
		http.Error(w, fmt.Sprintf("run state: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"counters":  counters,
		"run_state": state,
		"time":      time.Now(),
	})
}
