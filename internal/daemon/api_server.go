package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"narrate/internal/config"
	"narrate/internal/logging"
	"narrate/internal/pipeline"
	"narrate/internal/queue"
	"narrate/internal/services"
)

// maxUploadBytes bounds the in-memory portion of multipart parsing; larger
// uploads spill to disk.
const maxUploadBytes = 32 << 20

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type statusResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Stage  string `json:"stage,omitempty"`
	Output string `json:"output_path,omitempty"`
	Error  string `json:"error,omitempty"`
}

type jobsResponse struct {
	Jobs []statusResponse `json:"jobs"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/narrate", srv.handleSubmit)
	mux.HandleFunc("/status/", srv.handleStatus)
	mux.HandleFunc("/download/", srv.handleDownload)
	mux.HandleFunc("/jobs", srv.handleJobs)
	mux.HandleFunc("/jobs/retry", srv.handleRetry)
	mux.HandleFunc("/jobs/clear", srv.handleClear)
	mux.HandleFunc("/health", srv.handleHealth)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

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
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// handleSubmit accepts a narration job: a multipart upload ("video") or a
// "video_url" field, plus the timed "script" JSON, optional "voice" and
// "add_subtitles" fields.
func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	scriptJSON := r.FormValue("script")
	if scriptJSON == "" {
		s.writeError(w, http.StatusBadRequest, "script field is required")
		return
	}

	req := pipeline.SubmitRequest{
		SourceURL:  strings.TrimSpace(r.FormValue("video_url")),
		ScriptJSON: []byte(scriptJSON),
		Options: pipeline.Options{
			Voice:     strings.TrimSpace(r.FormValue("voice")),
			Subtitles: parseBool(r.FormValue("add_subtitles")),
		},
	}

	if file, header, err := r.FormFile("video"); err == nil {
		defer file.Close()
		if req.SourceURL != "" {
			s.writeError(w, http.StatusBadRequest, "provide either a video upload or video_url, not both")
			return
		}
		uploadPath, saveErr := s.saveUpload(file, header.Filename)
		if saveErr != nil {
			s.logger.Error("failed to store upload", logging.Error(saveErr))
			s.writeError(w, http.StatusInternalServerError, "failed to store upload")
			return
		}
		req.SourcePath = uploadPath
	}

	job, err := s.daemon.pipeline.Submit(r.Context(), req)
	if err != nil {
		if req.SourcePath != "" {
			os.Remove(req.SourcePath)
		}
		if errors.Is(err, services.ErrValidation) {
			s.writeError(w, http.StatusBadRequest, services.Summary(err))
			return
		}
		s.logger.Error("submit failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}
	s.writeJSON(w, http.StatusAccepted, submitResponse{JobID: job.ID, Status: string(job.Status)})
}

func (s *apiServer) saveUpload(file io.Reader, filename string) (string, error) {
	uploadDir := filepath.Join(s.daemon.cfg.Paths.StagingDir, "uploads")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return "", err
	}
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".mp4"
	}
	path := filepath.Join(uploadDir, uuid.New().String()+ext)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", err
	}
	return path, out.Close()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/status/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	job, err := s.daemon.pipeline.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, jobView(job))
}

// handleDownload serves the finished artifact. Unknown ids are 404, jobs
// still in flight are 409, failed jobs are 410.
func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/download/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	path, err := s.daemon.pipeline.Output(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, services.ErrNotReady):
			s.writeError(w, http.StatusConflict, "job has not completed yet")
		case errors.Is(err, services.ErrJobFailed):
			s.writeError(w, http.StatusGone, services.Summary(err))
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, status)
	}
	jobs, err := s.daemon.ListJobs(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := jobsResponse{Jobs: make([]statusResponse, 0, len(jobs))}
	for _, job := range jobs {
		payload.Jobs = append(payload.Jobs, jobView(job))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	count, err := s.daemon.RetryFailed(r.Context(), body.IDs...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, countResponse{Count: count})
}

func (s *apiServer) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var (
		count int64
		err   error
	)
	switch body.Status {
	case string(queue.StatusCompleted):
		count, err = s.daemon.ClearCompleted(r.Context())
	case string(queue.StatusFailed):
		count, err = s.daemon.ClearFailed(r.Context())
	default:
		s.writeError(w, http.StatusBadRequest, "status must be completed or failed")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, countResponse{Count: count})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health, err := s.daemon.Health(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, health)
}

func jobView(job *queue.Job) statusResponse {
	view := statusResponse{
		JobID:  job.ID,
		Status: string(job.Status),
		Stage:  job.Stage,
		Error:  job.ErrorMessage,
	}
	if job.Status == queue.StatusCompleted {
		view.Output = job.OutputPath
	}
	return view
}

func decodeBody(r *http.Request, target any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return decoder.Decode(target)
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
