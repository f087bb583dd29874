package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/flightwatch/pkg/metrics"
	"github.com/cuemby/flightwatch/pkg/types"
)

// StatusSource reports the recovery coordinator status
type StatusSource interface {
	Status() types.Status
}

// MembershipSource reports the membership watch state
type MembershipSource interface {
	InCluster() bool
	ActiveCount() int
	WatcherRunning() bool
	WatcherErr() error
}

// HealthServer provides HTTP health check endpoints
type HealthServer struct {
	status     StatusSource
	membership MembershipSource
	version    string
	server     *http.Server
}

// NewHealthServer creates a health check HTTP server bound to addr. Either
// source may be nil, in which case readiness reports it as not initialized.
func NewHealthServer(addr string, status StatusSource, mem MembershipSource, m *metrics.Metrics, version string) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		status:     status,
		membership: mem,
		version:    version,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", m.Handler())

	return hs
}

// Start serves the endpoints until Shutdown is called. It returns nil after
// Shutdown, including a Shutdown that happened before Start.
func (hs *HealthServer) Start() error {
	err := hs.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server gracefully
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	return hs.server.Shutdown(ctx)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string    `json:"status"`
	Coordinator string    `json:"coordinator,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Version     string    `json:"version,omitempty"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status        string            `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
	ActiveWorkers int               `json:"active_workers"`
	Checks        map[string]string `json:"checks"`
	Message       string            `json:"message,omitempty"`
}

// healthHandler implements the /health endpoint.
// Liveness only: 200 while the process can answer.
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
	if hs.status != nil {
		response.Coordinator = string(hs.status.Status())
	}

	writeJSON(w, http.StatusOK, response)
}

// readyHandler implements the /ready endpoint
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	// Check 1: coordinator finished startup reconciliation
	if hs.status != nil {
		st := hs.status.Status()
		checks["coordinator"] = string(st)
		if st != types.StatusOK {
			ready = false
			message = fmt.Sprintf("Coordinator is %s", st)
		}
	} else {
		checks["coordinator"] = "not initialized"
		ready = false
		message = "Coordinator not initialized"
	}

	// Check 2: membership watch
	active := 0
	if hs.membership != nil {
		active = hs.membership.ActiveCount()
		switch {
		case !hs.membership.InCluster():
			checks["membership"] = "standalone"
		case hs.membership.WatcherRunning():
			checks["membership"] = "watching"
		case hs.membership.WatcherErr() != nil:
			checks["membership"] = fmt.Sprintf("degraded: %v", hs.membership.WatcherErr())
			ready = false
			if message == "" {
				message = "Membership watch stopped"
			}
		default:
			checks["membership"] = "stopped"
			ready = false
			if message == "" {
				message = "Membership watch not running"
			}
		}
	} else {
		checks["membership"] = "not initialized"
		ready = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadyResponse{
		Status:        status,
		Timestamp:     time.Now(),
		ActiveWorkers: active,
		Checks:        checks,
		Message:       message,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
