package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/analysis-api/internal/api/shared"
	"github.com/phrazzld/analysis-api/internal/domain"
	"github.com/phrazzld/analysis-api/internal/metrics"
	"github.com/phrazzld/analysis-api/internal/platform/logger"
	"github.com/phrazzld/analysis-api/internal/presenter"
	"github.com/phrazzld/analysis-api/internal/redact"
	"github.com/phrazzld/analysis-api/internal/upload"
)

// multipartMemory is the part of a multipart form kept in memory; larger
// files spill to temporary files.
const multipartMemory = 8 << 20

// TaskRegistry is the part of the task registry used by the handlers.
type TaskRegistry interface {
	CreateAndStart(ctx context.Context, sub domain.Submission) (string, error)
	Resolve(ctx context.Context, id string) (domain.TaskState, error)
	Cancel(id string) error
}

// UploadCache stores uploaded files for file tasks.
type UploadCache interface {
	Save(ctx context.Context, filename string, r io.Reader) (upload.File, error)
	MaxBytes() int64
}

// AnalysisHandler handles analysis task HTTP requests
type AnalysisHandler struct {
	registry  TaskRegistry
	uploads   UploadCache
	presenter *presenter.Presenter
	metrics   *metrics.Metrics
	logger    *slog.Logger
	clock     func() time.Time
}

// NewAnalysisHandler creates a new AnalysisHandler. m may be nil.
func NewAnalysisHandler(
	registry TaskRegistry,
	uploads UploadCache,
	p *presenter.Presenter,
	m *metrics.Metrics,
	log *slog.Logger,
) *AnalysisHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AnalysisHandler{
		registry:  registry,
		uploads:   uploads,
		presenter: p,
		metrics:   m,
		logger:    log.With("component", "analysis_handler"),
		clock:     time.Now,
	}
}

// Routes returns the analysis routes, to be mounted under /api/analysis.
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/prompt", h.SubmitPrompt)
	r.Post("/upload", h.UploadFile)
	r.Get("/results/{requestId}", h.GetResults)
	r.Post("/cancel/{requestId}", h.CancelRequest)
	return r
}

// SubmitPrompt handles POST /api/analysis/prompt requests
func (h *AnalysisHandler) SubmitPrompt(w http.ResponseWriter, r *http.Request) {
	const api = "prompt"
	defer h.metrics.ApiResponseTimer(api).ObserveDuration()

	var req PromptRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, api, http.StatusBadRequest, "Missing prompt parameter", err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		h.respondError(w, r, api, http.StatusBadRequest, "Missing prompt parameter", err)
		return
	}

	h.submit(w, r, api, domain.Submission{
		Kind:    domain.RequestKindPrompt,
		Content: req.Prompt,
	})
}

// UploadFile handles POST /api/analysis/upload requests. The file is expected
// in the multipart field "file".
func (h *AnalysisHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	const api = "upload"
	defer h.metrics.ApiResponseTimer(api).ObserveDuration()

	if limit := h.uploads.MaxBytes(); limit > 0 {
		// Leave room for the multipart envelope around the file.
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartMemory)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.As(err, new(*http.MaxBytesError)) {
			h.handleError(w, r, api, err, "")
			return
		}
		h.respondError(w, r, api, http.StatusBadRequest, "No file part", err)
		return
	}
	defer file.Close()

	if header.Filename == "" {
		h.respondError(w, r, api, http.StatusBadRequest, "No file selected", nil)
		return
	}

	cached, err := h.uploads.Save(r.Context(), header.Filename, file)
	if err != nil {
		h.handleError(w, r, api, err, "Failed to store upload")
		return
	}

	sub := domain.Submission{
		Kind:       domain.RequestKindFile,
		Content:    cached.Name,
		SourcePath: cached.Path,
	}
	if !h.submit(w, r, api, sub) {
		// No task owns the file.
		if err := os.Remove(cached.Path); err != nil {
			logger.FromContextOrDefault(r.Context(), h.logger).Warn("failed to remove orphaned upload",
				"path", cached.Name,
				"error", redact.Error(err))
		}
	}
}

// submit starts a task and writes the response. It reports whether a task
// was started.
func (h *AnalysisHandler) submit(w http.ResponseWriter, r *http.Request, api string, sub domain.Submission) bool {
	id, err := h.registry.CreateAndStart(r.Context(), sub)
	if err != nil {
		h.handleError(w, r, api, err, "Failed to start analysis")
		return false
	}

	shared.RespondWithJSON(w, r, http.StatusOK, SubmitResponse{
		RequestID:              id,
		Status:                 string(domain.TaskStatusProcessing),
		EstimatedTimeRemaining: presenter.InitialEstimateSeconds(sub.Kind),
	})
	return true
}

// GetResults handles GET /api/analysis/results/{requestId} requests
func (h *AnalysisHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	const api = "results"
	defer h.metrics.ApiResponseTimer(api).ObserveDuration()

	id, err := getPathRequestID(r)
	if err != nil {
		h.handleError(w, r, api, err, "")
		return
	}

	state, err := h.registry.Resolve(r.Context(), id)
	if err != nil {
		h.handleError(w, r, api, err, "Failed to get results")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, h.presenter.Present(state, h.clock()))
}

// CancelRequest handles POST /api/analysis/cancel/{requestId} requests.
// Only tasks resident in memory can be cancelled.
func (h *AnalysisHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	const api = "cancel"
	defer h.metrics.ApiResponseTimer(api).ObserveDuration()

	id, err := getPathRequestID(r)
	if err != nil {
		h.handleError(w, r, api, err, "")
		return
	}

	if err := h.registry.Cancel(id); err != nil {
		h.handleError(w, r, api, err, "Failed to cancel request")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("cancellation requested", "task_id", id)
	shared.RespondWithJSON(w, r, http.StatusOK, CancelResponse{Success: true})
}

func (h *AnalysisHandler) handleError(w http.ResponseWriter, r *http.Request, api string, err error, fallback string) {
	status := HandleAPIError(w, r, err, fallback)
	h.metrics.ApiErrorInc(r.Method, api, status)
}

func (h *AnalysisHandler) respondError(
	w http.ResponseWriter,
	r *http.Request,
	api string,
	status int,
	msg string,
	err error,
) {
	shared.RespondWithErrorAndLog(w, r, status, msg, err)
	h.metrics.ApiErrorInc(r.Method, api, status)
}
