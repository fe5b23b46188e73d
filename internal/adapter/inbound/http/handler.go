package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odisys/ces-gate/internal/domain/ces"
	"github.com/odisys/ces-gate/internal/domain/ratelimit"
	"github.com/odisys/ces-gate/internal/service"
)

// maxInputBytes caps the request body. User text beyond this is not a
// legitimate chat message.
const maxInputBytes = 64 * 1024

// ProcessRequest is the JSON body of POST /v1/process.
type ProcessRequest struct {
	// Input is the raw user text.
	Input string `json:"input"`
	// UserID identifies the caller for verdicts and audit records.
	UserID string `json:"user_id,omitempty"`
	// GroundTruth is optional factual data (e.g. inventory count) used to
	// verify claims in the drafted output.
	GroundTruth *ces.GroundTruth `json:"ground_truth,omitempty"`
}

// ErrorResponse is the JSON body of a non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves the pipeline over HTTP.
type Handler struct {
	pipeline *service.PipelineService
	gate     *service.CESService
	metrics  *Metrics
	logger   *slog.Logger
	limiter  ratelimit.Limiter
	rlConfig ratelimit.Config
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRateLimit throttles POST /v1/process per caller.
func WithRateLimit(limiter ratelimit.Limiter, cfg ratelimit.Config) HandlerOption {
	return func(h *Handler) {
		h.limiter = limiter
		h.rlConfig = cfg
	}
}

// NewHandler creates a Handler. metrics may be nil, in which case no metrics
// are recorded.
func NewHandler(pipeline *service.PipelineService, gate *service.CESService, metrics *Metrics, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		pipeline: pipeline,
		gate:     gate,
		metrics:  metrics,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the HTTP mux: the pipeline entry point, health, constitution
// reload, and Prometheus metrics.
func (h *Handler) Routes(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/process", h.handleProcess)
	mux.HandleFunc("POST /v1/constitution/reload", h.handleReload)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	if reg != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	return mux
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ProcessRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInputBytes))
	if err := dec.Decode(&req); err != nil {
		h.observe("bad_request", start)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		h.observe("bad_request", start)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "input is required"})
		return
	}

	if h.limiter != nil {
		key := ratelimit.CallerKey(req.UserID, r.RemoteAddr)
		res, err := h.limiter.Allow(r.Context(), key, h.rlConfig)
		if err != nil {
			// Throttle failures never take the pipeline down.
			h.logger.Warn("rate limit check failed", "key", key, "error", err)
		} else if !res.Allowed {
			h.observe("rate_limited", start)
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}
	}

	result := h.pipeline.Process(r.Context(), req.Input, service.Caller{
		UserID:      req.UserID,
		GroundTruth: req.GroundTruth,
	})

	if h.metrics != nil {
		h.metrics.Classifications.WithLabelValues(string(result.Intent.Domain), string(result.Intent.Impact)).Inc()
		if result.Verdict.Allowed {
			h.metrics.Verdicts.WithLabelValues("allow").Inc()
		} else {
			h.metrics.Verdicts.WithLabelValues("block").Inc()
		}
	}
	h.observe("ok", start)

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.gate.Reload(r.Context()); err != nil {
		h.logger.Error("constitution reload failed", "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}
	if h.metrics != nil {
		h.metrics.PoliciesLoaded.Set(float64(h.gate.PoliciesLoaded()))
	}
	writeJSON(w, http.StatusOK, map[string]int{"policies_loaded": h.gate.PoliciesLoaded()})
}

// HealthResponse is the JSON response from /healthz.
type HealthResponse struct {
	Status         string `json:"status"`
	PoliciesLoaded int    `json:"policies_loaded"`
	FailMode       string `json:"fail_mode,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		PoliciesLoaded: h.gate.PoliciesLoaded(),
		FailMode:       string(h.gate.FailMode()),
	})
}

func (h *Handler) observe(status string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.RequestsTotal.WithLabelValues(status).Inc()
	h.metrics.RequestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
