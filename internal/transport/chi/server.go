// Package chi implements the HTTP API on the chi router.
package chi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/minuted/minuted/internal/db"
	"github.com/minuted/minuted/internal/domain"
	transcriptuc "github.com/minuted/minuted/internal/usecase/transcript"
)

// maxUploadBytes caps transcript uploads at 10 MiB.
const maxUploadBytes = 10 << 20

// Error codes returned in the JSON error payload.
const (
	codeBadRequest              = "bad_request"
	codeValidationFailed        = "validation_failed"
	codePromptNotFound          = "prompt_not_found"
	codeMissingVariable         = "missing_variable"
	codeNoContextFound          = "no_context_found"
	codeNamespaceCheckFailed    = "namespace_check_failed"
	codeEmbeddingProviderError  = "embedding_provider_error"
	codeCompletionProviderError = "completion_provider_error"
	codeNotFound                = "not_found"
	codeInternalError           = "internal_error"
)

// ErrorResponse is the JSON error payload.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the transcript pipeline over HTTP.
type Server struct {
	transcripts   *transcriptuc.Service
	pinger        db.Pinger
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(transcripts *transcriptuc.Service, pinger db.Pinger, logger *zap.Logger) *Server {
	s := &Server{
		transcripts: transcripts,
		pinger:      pinger,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		missingVariableHandler,
		sentinelHandler(domain.ErrPromptNotFound, http.StatusNotFound, codePromptNotFound),
		sentinelHandler(domain.ErrNoContext, http.StatusNotFound, codeNoContextFound),
		sentinelHandler(domain.ErrNamespaceCheck, http.StatusBadGateway, codeNamespaceCheckFailed),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingProviderError),
		sentinelHandler(domain.ErrCompletionProvider, http.StatusBadGateway, codeCompletionProviderError),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
	}
	return s
}

// RegisterRoutes mounts all API routes on the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/process-transcript", s.ProcessTranscript)
	r.Post("/query", s.Query)
	r.Post("/process-with-prompt", s.ProcessWithPrompt)
	r.Post("/upload-transcript", s.UploadTranscript)
	r.Get("/list-uploads", s.ListUploads)
	r.Get("/prompts", s.ListPrompts)
	r.Delete("/delete-namespace/{namespace}", s.DeleteNamespace)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// ProcessTranscript handles POST /process-transcript.
func (s *Server) ProcessTranscript(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transcript string `json:"transcript"`
		Namespace  string `json:"namespace"`
		Filename   string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Transcript == "" || req.Namespace == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "transcript and namespace are required")
		return
	}

	result, err := s.transcripts.Process(r.Context(), req.Namespace, req.Transcript, req.Filename)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      result.Status,
		"namespace":   result.Namespace,
		"filename":    result.Filename,
		"uploaded_at": result.UploadedAt,
	})
}

// Query handles POST /query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string `json:"query"`
		Namespace string `json:"namespace"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" || req.Namespace == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query and namespace are required")
		return
	}

	result, err := s.transcripts.Query(r.Context(), req.Namespace, req.Query)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"response": result.Answer,
		"matches":  result.Context,
	})
}

// ProcessWithPrompt handles POST /process-with-prompt.
func (s *Server) ProcessWithPrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TranscriptText string `json:"transcript_text"`
		PromptName     string `json:"prompt_name"`
		Namespace      string `json:"namespace"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.TranscriptText == "" || req.PromptName == "" || req.Namespace == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"transcript_text, prompt_name and namespace are required")
		return
	}

	result, err := s.transcripts.RunPrompt(r.Context(), req.Namespace, req.TranscriptText, req.PromptName)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"response":     result.Answer,
		"used_context": result.Context,
	})
}

// UploadTranscript handles POST /upload-transcript. The namespace is
// the sha256 of the file content, so the same transcript always lands
// in the same namespace.
func (s *Server) UploadTranscript(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Missing file upload: "+err.Error())
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".txt") {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"Unsupported file type. Only .txt allowed.")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Failed to read upload: "+err.Error())
		return
	}

	hash := sha256.Sum256(content)

	writeJSON(w, http.StatusOK, map[string]any{
		"transcript_text": string(content),
		"namespace":       hex.EncodeToString(hash[:]),
		"filename":        header.Filename,
	})
}

// ListUploads handles GET /list-uploads.
func (s *Server) ListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.transcripts.ListUploads(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]map[string]any, len(uploads))
	for i, u := range uploads {
		items[i] = map[string]any{
			"namespace":   u.Namespace,
			"filename":    u.Filename,
			"uploaded_at": u.UploadedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploads": items})
}

// ListPrompts handles GET /prompts.
func (s *Server) ListPrompts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.transcripts.Prompts())
}

// DeleteNamespace handles DELETE /delete-namespace/{namespace}.
func (s *Server) DeleteNamespace(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	if namespace == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "namespace is required")
		return
	}

	if err := s.transcripts.DeleteNamespace(r.Context(), namespace); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Deleted namespace %q and all associated data.", namespace),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := map[string]string{"database": "ok"}

	if err := s.pinger.Ping(r.Context()); err != nil {
		s.logger.Warn("Health check database ping failed", zap.Error(err))
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
		checks["database"] = "unreachable"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrPromptNotFound,
		domain.ErrNoContext,
		domain.ErrMissingVariable,
		domain.ErrNamespaceCheck,
		domain.ErrEmbeddingProvider,
		domain.ErrCompletionProvider,
		domain.ErrNotFound,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// missingVariableHandler surfaces the placeholder name to the client.
func missingVariableHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrMissingVariable) {
		return false
	}
	var mv *domain.MissingVariableError
	if errors.As(err, &mv) {
		writeError(w, http.StatusBadRequest, codeMissingVariable, mv.Error())
		return true
	}
	writeError(w, http.StatusBadRequest, codeMissingVariable, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
