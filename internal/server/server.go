// Package server exposes the translation pipeline as an HTTP job API:
// submit a document, poll the task, download the result. Jobs run
// asynchronously; the liveness probe never depends on downstream
// services.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"pdf-translator/internal/budget"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pipeline"
)

// maxUploadBytes bounds the multipart request body.
const maxUploadBytes = 200 << 20

// Options configures the server's pipeline defaults.
type Options struct {
	ModelID     string
	Parallelism int
	Budget      budget.Options
}

// Server handles the job API.
type Server struct {
	pipe  *pipeline.Pipeline
	tasks *Registry
	opts  Options
	log   *zap.Logger
}

// New creates a Server around a shared pipeline.
func New(pipe *pipeline.Pipeline, opts Options) *Server {
	return &Server{
		pipe:  pipe,
		tasks: NewRegistry(),
		opts:  opts,
		log:   logger.Get(),
	}
}

// Router builds the HTTP routes. The health probe sits outside the
// middleware chain so it answers even under load.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(s.requestLogger)

		r.Post("/translate", s.handleTranslate)
		r.Get("/status/{taskID}", s.handleStatus)
		r.Get("/download/{taskID}", s.handleDownload)
		r.Delete("/tasks/{taskID}", s.handleCancel)
	})

	return r
}

// handleHealth reports process liveness only: a degraded translation
// backend shows up in task results, not here.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// handleTranslate accepts a multipart upload and starts an asynchronous
// translation job.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(data) == 0 {
		s.respondError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	sourceLang := formValue(r, "source_lang", "English")
	targetLang := formValue(r, "target_lang", "Chinese")
	if sourceLang == targetLang {
		s.respondError(w, http.StatusBadRequest, "source_lang and target_lang must differ")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := s.tasks.Create(header.Filename, sourceLang, targetLang, cancel)

	go s.runTask(ctx, task.ID, data, sourceLang, targetLang)

	s.log.Info("translation task accepted",
		zap.String("taskID", task.ID),
		zap.String("file", header.Filename),
		zap.Int("bytes", len(data)),
		zap.String("sourceLang", sourceLang),
		zap.String("targetLang", targetLang))

	s.respondJSON(w, http.StatusAccepted, map[string]string{"task_id": task.ID})
}

// runTask executes the pipeline for one job and records the outcome.
func (s *Server) runTask(ctx context.Context, taskID string, data []byte, sourceLang, targetLang string) {
	defer func() {
		if rec := recover(); rec != nil {
			s.tasks.SetFailed(taskID, fmt.Errorf("internal error: %v", rec))
			s.log.Error("task panicked", zap.String("taskID", taskID), zap.Any("panic", rec))
		}
	}()

	s.tasks.SetRunning(taskID)

	res, err := s.pipe.Run(ctx, data, pipeline.Options{
		SourceLang:  sourceLang,
		TargetLang:  targetLang,
		ModelID:     s.opts.ModelID,
		Parallelism: s.opts.Parallelism,
		Budget:      s.opts.Budget,
		Progress: func(completed, total int) {
			s.tasks.SetProgress(taskID, completed, total)
		},
	})
	if err != nil {
		s.tasks.SetFailed(taskID, err)
		s.log.Warn("task failed", zap.String("taskID", taskID), zap.Error(err))
		return
	}
	s.tasks.SetCompleted(taskID, res)
	s.log.Info("task completed",
		zap.String("taskID", taskID),
		zap.Int("translated", res.Stats.TranslatedUnits),
		zap.Int("failed", res.Stats.FailedUnits),
		zap.Int("warnings", len(res.Warnings)))
}

// handleStatus returns the job snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	task, ok := s.tasks.Get(chi.URLParam(r, "taskID"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "task not found")
		return
	}
	s.respondJSON(w, http.StatusOK, task)
}

// handleDownload streams the assembled document for a completed job.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	task, ok := s.tasks.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "task not found")
		return
	}
	switch task.Status {
	case TaskCompleted:
	case TaskFailed, TaskCancelled:
		s.respondError(w, http.StatusGone, fmt.Sprintf("task %s", task.Status))
		return
	default:
		s.respondError(w, http.StatusConflict, "task not finished")
		return
	}

	output, ok := s.tasks.Output(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "output not available")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="translated_%s"`, task.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(output)
}

// handleCancel aborts a pending or running job.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	if !s.tasks.Cancel(id) {
		s.respondError(w, http.StatusConflict, "task not cancellable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"task_id": id, "status": string(TaskCancelled)})
}

// requestLogger logs each request with its outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestID", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}

func formValue(r *http.Request, key, fallback string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return fallback
}
