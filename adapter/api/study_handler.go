package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/studyloop/internal/ml/predictor"
	"github.com/studyloop/studyloop/internal/scheduling/application/services"
	"github.com/studyloop/studyloop/internal/scheduling/domain"
	"github.com/studyloop/studyloop/pkg/observability"
)

// StudyHandler handles schedule, prediction, and model status requests.
type StudyHandler struct {
	repo      domain.StudyRepository
	scheduler *services.Scheduler
	engine    *services.PriorityEngine
	predictor *predictor.Service
	health    *observability.HealthRegistry
	logger    *slog.Logger
	metrics   observability.Metrics
}

// StudyHandlerConfig holds dependencies for the study handler.
type StudyHandlerConfig struct {
	Repo      domain.StudyRepository
	Scheduler *services.Scheduler
	Engine    *services.PriorityEngine
	Predictor *predictor.Service
	Health    *observability.HealthRegistry
	Logger    *slog.Logger
	Metrics   observability.Metrics
}

// NewStudyHandler creates a new study handler.
func NewStudyHandler(cfg StudyHandlerConfig) *StudyHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Health == nil {
		cfg.Health = observability.NewHealthRegistry()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	return &StudyHandler{
		repo:      cfg.Repo,
		scheduler: cfg.Scheduler,
		engine:    cfg.Engine,
		predictor: cfg.Predictor,
		health:    cfg.Health,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

type scheduleResponse struct {
	Schedule    []domain.ScoredTask       `json:"schedule"`
	Insights    services.ScheduleInsights `json:"insights"`
	GeneratedAt time.Time                 `json:"generated_at"`
}

// GetSchedule handles GET /api/v1/schedule. Degraded dependencies yield an
// empty or heuristic-only schedule, never an error status.
func (h *StudyHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "user_id must be a valid UUID")
		return
	}

	maxTasks := parseIntParam(r, "max_tasks", 0)

	schedule, err := observability.TimeOperationResult(r.Context(), nil, h.metrics, "api.schedule", func() ([]domain.ScoredTask, error) {
		return h.scheduler.GenerateDailySchedule(r.Context(), userID, maxTasks, time.Now())
	})
	if err != nil {
		h.logger.Error("schedule generation failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate schedule")
		return
	}

	writeJSON(w, http.StatusOK, scheduleResponse{
		Schedule:    schedule,
		Insights:    h.scheduler.Insights(schedule),
		GeneratedAt: time.Now().UTC(),
	})
}

type predictTimeRequest struct {
	UserID  uuid.UUID   `json:"user_id"`
	TaskIDs []uuid.UUID `json:"task_ids"`
}

type taskPrediction struct {
	TaskID           uuid.UUID `json:"task_id"`
	PredictedMinutes int       `json:"predicted_minutes"`
	ConfidenceScore  float64   `json:"confidence_score"`
}

type predictTimeResponse struct {
	Predictions  []taskPrediction `json:"predictions"`
	ModelVersion string           `json:"model_version"`
}

// PredictTime handles POST /api/v1/predict-time.
func (h *StudyHandler) PredictTime(w http.ResponseWriter, r *http.Request) {
	var req predictTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if len(req.TaskIDs) == 0 {
		writeError(w, http.StatusBadRequest, "task_ids is required")
		return
	}

	if !h.predictor.Available() {
		writeError(w, http.StatusServiceUnavailable, "no trained model available")
		return
	}

	tasks, err := h.repo.TasksByIDs(r.Context(), req.UserID, req.TaskIDs)
	if err != nil {
		h.logger.Error("task lookup failed", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load tasks")
		return
	}
	if len(tasks) == 0 {
		writeError(w, http.StatusNotFound, "no matching tasks for user")
		return
	}

	stats, err := h.repo.SubjectStats(r.Context(), req.UserID)
	if err != nil {
		h.logger.Warn("subject stats unavailable, using defaults", "user_id", req.UserID, "error", err)
		stats = map[uuid.UUID]domain.SubjectStats{}
	}
	userStats, err := h.repo.UserStats(r.Context(), req.UserID)
	if err != nil {
		h.logger.Warn("user stats unavailable, using defaults", "user_id", req.UserID, "error", err)
		userStats = domain.DefaultUserStats(req.UserID)
	}

	minutes, err := h.predictor.PredictBatch(r.Context(), tasks, stats, userStats, time.Now())
	if err != nil {
		if errors.Is(err, domain.ErrNotTrained) {
			writeError(w, http.StatusServiceUnavailable, "no trained model available")
			return
		}
		h.logger.Error("prediction failed", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}

	confidence := h.predictor.Confidence()
	predictions := make([]taskPrediction, 0, len(tasks))
	for _, task := range tasks {
		predicted, ok := minutes[task.ID]
		if !ok {
			continue
		}
		predictions = append(predictions, taskPrediction{
			TaskID:           task.ID,
			PredictedMinutes: predicted,
			ConfidenceScore:  confidence,
		})
	}

	writeJSON(w, http.StatusOK, predictTimeResponse{
		Predictions:  predictions,
		ModelVersion: h.predictor.Version(),
	})
}

type statusResponse struct {
	PredictorLoaded bool   `json:"predictor_loaded"`
	EncodersLoaded  bool   `json:"encoders_loaded"`
	ScorerReady     bool   `json:"scorer_ready"`
	Strategy        string `json:"strategy"`
	ModelVersion    string `json:"model_version,omitempty"`
}

// GetStatus handles GET /api/v1/status.
func (h *StudyHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		PredictorLoaded: h.predictor.Available(),
		EncodersLoaded:  h.predictor.EncodersLoaded(),
		ScorerReady:     h.engine != nil,
		Strategy:        h.engine.StrategyName(),
		ModelVersion:    h.predictor.Version(),
	})
}

type updateWeightsRequest struct {
	Weights map[string]float64 `json:"weights"`
}

// UpdateWeights handles PUT /api/v1/weights. Invalid weights are rejected
// before any mutation.
func (h *StudyHandler) UpdateWeights(w http.ResponseWriter, r *http.Request) {
	var req updateWeightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Weights) == 0 {
		writeError(w, http.StatusBadRequest, "weights is required")
		return
	}

	if err := h.engine.SetWeights(services.Weights(req.Weights)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("scoring weights updated", "strategy", h.engine.StrategyName())
	writeJSON(w, http.StatusOK, map[string]any{
		"strategy": h.engine.StrategyName(),
		"weights":  h.engine.Weights(),
	})
}

// Health handles GET /health.
func (h *StudyHandler) Health(w http.ResponseWriter, r *http.Request) {
	overall := h.health.GetOverallHealth(r.Context())

	status := http.StatusOK
	if overall.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, overall)
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
