package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/queue"
)

// apiServer exposes daemon status, queue contents, and Prometheus metrics
// over HTTP. A nil apiServer is valid and serves nothing.
type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

type stagePayload struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

type statusPayload struct {
	Running      bool           `json:"running"`
	QueueDBPath  string         `json:"queue_db_path"`
	LockFilePath string         `json:"lock_file_path"`
	Stages       []stagePayload `json:"stages"`
	Queue        queuePayload   `json:"queue"`
}

type queuePayload struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Review     int `json:"review"`
	Completed  int `json:"completed"`
}

type itemPayload struct {
	ID              int64   `json:"id"`
	SourcePath      string  `json:"source_path"`
	CameraID        string  `json:"camera_id"`
	Title           string  `json:"title"`
	Status          string  `json:"status"`
	ProgressStage   string  `json:"progress_stage,omitempty"`
	ProgressPercent float64 `json:"progress_percent"`
	ProgressMessage string  `json:"progress_message,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	NeedsReview     bool    `json:"needs_review"`
	ReviewReason    string  `json:"review_reason,omitempty"`
	PlanPath        string  `json:"plan_path,omitempty"`
	RenderedFile    string  `json:"rendered_file,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/queue", srv.handleQueue)
	mux.Handle("/metrics", promhttp.Handler())

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health := s.daemon.workflow.Health(r.Context())
	ready := true
	stages := make([]stagePayload, len(health))
	for i, h := range health {
		stages[i] = stagePayload{Name: h.Name, Ready: h.Ready, Detail: h.Detail}
		if !h.Ready {
			ready = false
		}
	}
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]any{"ready": ready, "stages": stages})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	stages := make([]stagePayload, len(status.Stages))
	for i, h := range status.Stages {
		stages[i] = stagePayload{Name: h.Name, Ready: h.Ready, Detail: h.Detail}
	}
	s.writeJSON(w, http.StatusOK, statusPayload{
		Running:      status.Running,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		Stages:       stages,
		Queue: queuePayload{
			Total:      status.Queue.Total,
			Pending:    status.Queue.Pending,
			Processing: status.Queue.Processing,
			Failed:     status.Queue.Failed,
			Review:     status.Queue.Review,
			Completed:  status.Queue.Completed,
		},
	})
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var statuses []queue.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, value := range strings.Split(raw, ",") {
			status, ok := queue.ParseStatus(value)
			if !ok {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
				return
			}
			statuses = append(statuses, status)
		}
	}
	items, err := s.daemon.ListQueue(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "queue unavailable")
		return
	}
	payload := make([]itemPayload, len(items))
	for i, item := range items {
		payload[i] = itemToPayload(item)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": payload})
}

func itemToPayload(item *queue.Item) itemPayload {
	return itemPayload{
		ID:              item.ID,
		SourcePath:      item.SourcePath,
		CameraID:        item.CameraID,
		Title:           item.Title,
		Status:          string(item.Status),
		ProgressStage:   item.ProgressStage,
		ProgressPercent: item.ProgressPercent,
		ProgressMessage: item.ProgressMessage,
		ErrorMessage:    item.ErrorMessage,
		NeedsReview:     item.NeedsReview,
		ReviewReason:    item.ReviewReason,
		PlanPath:        item.PlanPath,
		RenderedFile:    item.RenderedFile,
		CreatedAt:       item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode api response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}
