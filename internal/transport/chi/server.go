package chi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/civiciq/civiciq/internal/domain"
	logpkg "github.com/civiciq/civiciq/internal/logger"
	complaintrepo "github.com/civiciq/civiciq/internal/repository/complaint"
	"github.com/civiciq/civiciq/internal/transport/gemini"
	analyticsuc "github.com/civiciq/civiciq/internal/usecase/analytics"
	complaintuc "github.com/civiciq/civiciq/internal/usecase/complaint"
	intakeuc "github.com/civiciq/civiciq/internal/usecase/intake"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Pinger is a dependency the health endpoint probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a plain check function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Summarizer serves the AI locality report endpoint.
type Summarizer interface {
	Dashboard(ctx context.Context) (analyticsuc.Dashboard, error)
	Summary(ctx context.Context) (gemini.LocalityReport, error)
}

// Server is the hand-written chi HTTP API.
type Server struct {
	intake        *intakeuc.Service
	complaints    *complaintuc.Service
	analytics     Summarizer
	wsHandler     http.HandlerFunc
	probes        map[string]Pinger
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server.
func NewServer(
	intake *intakeuc.Service,
	complaints *complaintuc.Service,
	analytics Summarizer,
	wsHandler http.HandlerFunc,
	probes map[string]Pinger,
	logger *zap.Logger,
) *Server {
	s := &Server{
		intake:     intake,
		complaints: complaints,
		analytics:  analytics,
		wsHandler:  wsHandler,
		probes:     probes,
		logger:     logger,
	}
	s.errorHandlers = []errorHandler{
		rateLimitHandler,
		sentinelHandler(domain.ErrInvalidSubmission, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeComplaintNotFound),
		sentinelHandler(domain.ErrAlreadyVoted, http.StatusConflict, codeAlreadyVoted),
		sentinelHandler(domain.ErrStatusTransition, http.StatusConflict, codeStatusTransition),
		sentinelHandler(domain.ErrClassification, http.StatusBadGateway, codeAIProviderError),
		sentinelHandler(domain.ErrEmbedding, http.StatusBadGateway, codeAIProviderError),
	}
	return s
}

// Routes mounts all API routes on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api/complaints", func(r chi.Router) {
		r.Post("/", s.SubmitComplaint)
		r.Get("/", s.ListComplaints)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetComplaint)
			r.Post("/vote", s.VoteComplaint)
			r.Patch("/status", s.UpdateStatus)
			r.Post("/resolve", s.ResolveComplaint)
		})
	})
	r.Get("/api/analytics", s.Analytics)
	r.Get("/api/analytics/summary", s.AnalyticsSummary)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	if s.wsHandler != nil {
		r.Get("/ws", s.wsHandler)
	}
}

type submitRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	ImageURL    string `json:"image_url"`
}

// SubmitComplaint handles POST /api/complaints.
func (s *Server) SubmitComplaint(w http.ResponseWriter, r *http.Request) {
	identity := requestIdentity(r)
	if identity == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "X-User-ID header is required")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	sub, err := domain.NewSubmission(req.Title, req.Description, req.Location, req.ImageURL)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	c, err := s.intake.Submit(r.Context(), identity, sub)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, complaintToJSON(c, 0))
}

// ListComplaints handles GET /api/complaints.
func (s *Server) ListComplaints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := complaintrepo.ListFilter{
		Location: q.Get("location"),
		Category: q.Get("category"),
		SortBy:   q.Get("sort_by"),
		Page:     queryInt(q.Get("page"), 1),
		PageSize: queryInt(q.Get("page_size"), 0),
	}
	if raw := q.Get("status"); raw != "" {
		status := domain.Status(raw)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "unknown status "+strconv.Quote(raw))
			return
		}
		f.Status = status
	}

	page, err := s.complaints.List(r.Context(), f)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	items := make([]map[string]any, len(page.Complaints))
	for i, c := range page.Complaints {
		items[i] = complaintToJSON(c.Complaint, c.VoteCount)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     items,
		"total":     page.Total,
		"page":      page.Page,
		"page_size": page.PageSize,
	})
}

// GetComplaint handles GET /api/complaints/{id}.
func (s *Server) GetComplaint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, votes, err := s.complaints.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, complaintToJSON(c, votes))
}

// VoteComplaint handles POST /api/complaints/{id}/vote.
func (s *Server) VoteComplaint(w http.ResponseWriter, r *http.Request) {
	identity := requestIdentity(r)
	if identity == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "X-User-ID header is required")
		return
	}

	id := chi.URLParam(r, "id")
	votes, err := s.complaints.Vote(r.Context(), id, identity)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"complaint_id": id,
		"vote_count":   votes,
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /api/complaints/{id}/status.
func (s *Server) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	next := domain.Status(req.Status)
	if !next.Valid() {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "unknown status "+strconv.Quote(req.Status))
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.complaints.UpdateStatus(r.Context(), id, next); err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"complaint_id": id,
		"status":       string(next),
	})
}

type resolveRequest struct {
	Note string `json:"note"`
}

// ResolveComplaint handles POST /api/complaints/{id}/resolve.
func (s *Server) ResolveComplaint(w http.ResponseWriter, r *http.Request) {
	identity := requestIdentity(r)
	if identity == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "X-User-ID header is required")
		return
	}

	var req resolveRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	id := chi.URLParam(r, "id")
	if err := s.complaints.Resolve(r.Context(), id, identity, req.Note); err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"complaint_id": id,
		"status":       string(domain.StatusResolved),
	})
}

// Analytics handles GET /api/analytics.
func (s *Server) Analytics(w http.ResponseWriter, r *http.Request) {
	d, err := s.analytics.Dashboard(r.Context())
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// AnalyticsSummary handles GET /api/analytics/summary.
func (s *Server) AnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	report, err := s.analytics.Summary(r.Context())
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK
	checks := make(map[string]string, len(s.probes))
	for name, p := range s.probes {
		if err := p.Ping(ctx); err != nil {
			checks[name] = "unhealthy"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "healthy"
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

// requestIdentity returns the caller identity used for rate limiting
// and vote attribution.
func requestIdentity(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func complaintToJSON(c domain.Complaint, votes int) map[string]any {
	out := map[string]any{
		"id":             c.ID,
		"user_id":        c.UserID,
		"title":          c.Title,
		"description":    c.Description,
		"category":       c.Category,
		"severity":       string(c.Severity),
		"priority_score": c.PriorityScore,
		"location":       c.Location,
		"status":         string(c.Status),
		"summary":        c.Summary,
		"keywords":       c.Keywords,
		"is_duplicate":   c.IsDuplicate,
		"vote_count":     votes,
		"created_at":     c.CreatedAt.UTC(),
		"updated_at":     c.UpdatedAt.UTC(),
	}
	if c.ImageURL != "" {
		out["image_url"] = c.ImageURL
	}
	if c.DuplicateOf != "" {
		out["duplicate_of"] = c.DuplicateOf
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidSubmission,
		domain.ErrNotFound,
		domain.ErrAlreadyVoted,
		domain.ErrStatusTransition,
		domain.ErrRateLimited,
		domain.ErrClassification,
		domain.ErrEmbedding,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// rateLimitHandler handles ErrRateLimited with a Retry-After header.
func rateLimitHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrRateLimited) {
		return false
	}
	var rle *domain.RateLimitError
	if errors.As(err, &rle) {
		retryAfter := int(math.Ceil(rle.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"code":        codeRateLimited,
			"message":     msg,
			"retry_after": retryAfter,
		})
		return true
	}
	writeError(w, http.StatusTooManyRequests, codeRateLimited, msg)
	return true
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logpkg.FromContextOr(ctx, s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
