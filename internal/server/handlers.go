package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/openhealth/modelserve/internal/config"
	"github.com/openhealth/modelserve/internal/drift"
	"github.com/openhealth/modelserve/internal/loader"
	"github.com/openhealth/modelserve/internal/monitoring"
	"github.com/openhealth/modelserve/internal/registry"
	"github.com/openhealth/modelserve/internal/serving"
	"github.com/openhealth/modelserve/pkg/errors"
)

// Handlers contains all HTTP handlers for the serving API
type Handlers struct {
	orchestrator *serving.Orchestrator
	registry     *registry.Registry
	cache        *loader.Cache
	collector    *monitoring.Collector
	detector     *drift.Detector
	logger       *logrus.Logger
	config       *config.Config
	version      string
	startTime    time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(
	orchestrator *serving.Orchestrator,
	reg *registry.Registry,
	cache *loader.Cache,
	collector *monitoring.Collector,
	detector *drift.Detector,
	logger *logrus.Logger,
	cfg *config.Config,
	version string,
) *Handlers {
	return &Handlers{
		orchestrator: orchestrator,
		registry:     reg,
		cache:        cache,
		collector:    collector,
		detector:     detector,
		logger:       logger,
		config:       cfg,
		version:      version,
		startTime:    time.Now(),
	}
}

type predictRequest struct {
	Features  map[string]float64 `json:"features"`
	Version   string             `json:"version,omitempty"`
	Threshold float64            `json:"threshold,omitempty"`
}

type versionRequest struct {
	Version string `json:"version"`
}

type dataRequest struct {
	Data      []float64 `json:"data"`
	Threshold float64   `json:"threshold,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"version":   h.version,
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
	})
}

// Version handles GET /version
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.version})
}

// Predict handles POST /api/v1/predict/{model}
func (h *Handlers) Predict(w http.ResponseWriter, r *http.Request) {
	model := mux.Vars(r)["model"]

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.NewValidationError(errors.CodeInvalidInput,
			"request body must be JSON with a features object"))
		return
	}
	if len(req.Features) == 0 {
		h.writeError(w, r, errors.NewValidationError(errors.CodeInvalidInput,
			"features are required"))
		return
	}

	result, err := h.orchestrator.Predict(r.Context(), model, req.Features, &serving.PredictOptions{
		Version:   req.Version,
		Threshold: req.Threshold,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListModels handles GET /api/v1/models
func (h *Handlers) ListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": h.registry.ListModels(),
	})
}

// ReloadModel handles POST /api/v1/admin/models/{model}/reload
func (h *Handlers) ReloadModel(w http.ResponseWriter, r *http.Request) {
	model := mux.Vars(r)["model"]

	var req versionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, r, errors.NewValidationError(errors.CodeInvalidInput, "invalid request body"))
			return
		}
	}

	entry, err := h.cache.Reload(model, req.Version)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model":     entry.Name,
		"version":   entry.Version,
		"loaded_at": entry.LoadedAt,
	})
}

// RollbackModel handles POST /api/v1/admin/models/{model}/rollback
func (h *Handlers) RollbackModel(w http.ResponseWriter, r *http.Request) {
	model := mux.Vars(r)["model"]

	version, ok, err := h.registry.Rollback(model)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"rolled_back": false,
			"reason":      "insufficient versions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rolled_back": true,
		"model":       model,
		"version":     version,
	})
}

// SetModelVersion handles PUT /api/v1/admin/models/{model}/version
func (h *Handlers) SetModelVersion(w http.ResponseWriter, r *http.Request) {
	model := mux.Vars(r)["model"]

	var req versionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Version == "" {
		h.writeError(w, r, errors.NewValidationError(errors.CodeInvalidInput, "version is required"))
		return
	}

	// The registry does not verify existence; the admin surface does.
	available, err := h.registry.AvailableVersions(model)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	found := false
	for _, v := range available {
		if v == req.Version {
			found = true
			break
		}
	}
	if !found {
		h.writeError(w, r, errors.WrapError(errors.ErrVersionNotFound, errors.ErrorTypeRegistry,
			errors.CodeVersionNotFound,
			fmt.Sprintf("version %s not available for %s", req.Version, model)))
		return
	}

	if err := h.registry.SetActiveVersion(model, req.Version); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"model":   model,
		"version": req.Version,
	})
}

// CacheInfo handles GET /api/v1/admin/cache
func (h *Handlers) CacheInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Info())
}

// ClearCache handles POST /api/v1/admin/cache/clear
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// Metrics handles GET /api/v1/metrics
func (h *Handlers) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.collector.Snapshot())
}

// ModelMetrics handles GET /api/v1/metrics/{model}
func (h *Handlers) ModelMetrics(w http.ResponseWriter, r *http.Request) {
	model := mux.Vars(r)["model"]

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model":       model,
		"latency":     h.collector.LatencyStats(model),
		"confidence":  h.collector.ConfidenceStats(model),
		"predictions": h.collector.PredictionCounts(model),
	})
}

// SaveReference handles POST /api/v1/admin/models/{model}/reference
func (h *Handlers) SaveReference(w http.ResponseWriter, r *http.Request) {
	model := mux.Vars(r)["model"]

	var req dataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Data) == 0 {
		h.writeError(w, r, errors.NewValidationError(errors.CodeInvalidInput, "data is required"))
		return
	}

	ref, err := h.detector.SaveReference(model, req.Data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ref)
}

// DetectDrift handles POST /api/v1/admin/models/{model}/drift
func (h *Handlers) DetectDrift(w http.ResponseWriter, r *http.Request) {
	model := mux.Vars(r)["model"]

	var req dataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Data) == 0 {
		h.writeError(w, r, errors.NewValidationError(errors.CodeInvalidInput, "data is required"))
		return
	}

	detected, report, err := h.detector.DetectDrift(model, req.Data, req.Threshold)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if report == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"drift_detected": false,
			"reason":         "no reference statistics",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"drift_detected": detected,
		"report":         report,
	})
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.NewInternalError("unexpected error")
		h.logger.WithError(err).Error("Unhandled error")
	}

	resp := errors.ErrorResponse{
		Error:     appErr,
		RequestID: requestIDFrom(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	}

	writeJSON(w, appErr.HTTPStatus, resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
