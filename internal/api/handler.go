package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yusdesign/trier/internal/batch"
	"github.com/yusdesign/trier/internal/domain"
	"github.com/yusdesign/trier/internal/history"
	"github.com/yusdesign/trier/internal/pattern"
	"github.com/yusdesign/trier/internal/rules"
	"github.com/yusdesign/trier/internal/scoring"
	"github.com/yusdesign/trier/internal/velocity"
)

// resultCacheTTL bounds how long scored results stay cached.
const resultCacheTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo        domain.Repository
	cache       domain.Cache
	bus         domain.EventBus
	patterns    *pattern.Table
	custom      *rules.Engine
	counter     *velocity.Counter
	evaluator   *batch.Evaluator
	scoringCfg  domain.ScoringConfig
	matcherCfg  domain.MatcherConfig
	patternFile string
	version     string
	logger      *slog.Logger

	// matcher is rebuilt whenever the fraud corpus is refreshed.
	mu      sync.RWMutex
	matcher *history.Matcher
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, patterns *pattern.Table, custom *rules.Engine, cfg *domain.Config, version string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		repo:        repo,
		cache:       cache,
		bus:         bus,
		patterns:    patterns,
		custom:      custom,
		counter:     velocity.NewCounter(cache),
		evaluator:   batch.NewEvaluator(patterns, custom, cfg.Scoring, cfg.Matcher, cfg.Workers, logger),
		scoringCfg:  cfg.Scoring,
		matcherCfg:  cfg.Matcher,
		patternFile: cfg.PatternFile,
		version:     version,
		logger:      logger,
		matcher:     history.NewMatcher(nil, cfg.Matcher.RequireBoth),
	}
}

// RefreshCorpus reloads the historical fraud corpus from the repository
// and rebuilds the matcher used by the synchronous scoring path.
func (h *Handler) RefreshCorpus(ctx context.Context) error {
	if h.repo == nil {
		return nil
	}
	frauds, err := h.repo.ListHistoricalFrauds(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.matcher = history.NewMatcher(frauds, h.matcherCfg.RequireBoth)
	h.mu.Unlock()

	h.logger.Info("fraud corpus refreshed", "records", len(frauds))
	return nil
}

// currentMatcher returns the matcher snapshot for the online path.
func (h *Handler) currentMatcher() *history.Matcher {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.matcher
}

// liveVelocity adapts the counter snapshot taken at ingest time to the
// scorer's point-in-time velocity queries.
type liveVelocity struct {
	counts map[time.Duration]int64
}

func (v liveVelocity) At(userID int64, asOf time.Time, window time.Duration) velocity.Window {
	return velocity.Window{Count: int(v.counts[window])}
}

// Score handles POST /score: synchronous scoring of one transaction using
// live velocity counters.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req domain.ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	tx, err := req.ToTransaction()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid timestamp: " + err.Error(),
		})
		return
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}

	// Cached results short-circuit rescoring of the same transaction.
	if h.cache != nil {
		if cached, err := h.cache.GetResult(ctx, tx.ID); err == nil && cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	user, err := h.repo.GetUserProfile(ctx, tx.UserID)
	if err != nil {
		scoreFailures.Inc()
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "user not found",
		})
		return
	}

	// Bump live velocity counters for this user. Counter errors degrade
	// to zero velocity rather than failing the request.
	counts, err := h.counter.Observe(ctx, tx.UserID)
	if err != nil {
		h.logger.WarnContext(ctx, "velocity counter failed", "user_id", tx.UserID, "error", err)
		counts = map[time.Duration]int64{}
	}

	scorer := scoring.NewScorer(&scoring.Sources{
		Patterns: h.patterns,
		Velocity: liveVelocity{counts: counts},
		History:  h.currentMatcher(),
		Custom:   h.custom,
	}, h.scoringCfg, h.logger)

	res, err := scorer.Score(ctx, tx, user)
	if err != nil {
		scoreFailures.Inc()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": err.Error(),
		})
		return
	}

	// Persist and publish are best effort; the caller already has the score.
	if err := h.repo.SaveTransaction(ctx, tx); err != nil {
		h.logger.ErrorContext(ctx, "failed to save transaction", "tx_id", tx.ID, "error", err)
	}
	if err := h.repo.SaveResult(ctx, res); err != nil {
		h.logger.ErrorContext(ctx, "failed to save result", "tx_id", tx.ID, "error", err)
	}
	if h.cache != nil {
		if err := h.cache.SetResult(ctx, tx.ID, res, resultCacheTTL); err != nil {
			h.logger.WarnContext(ctx, "failed to cache result", "tx_id", tx.ID, "error", err)
		}
	}
	h.publishResult(ctx, res)

	scoredTotal.WithLabelValues(string(res.RiskLevel)).Inc()
	if res.IsAlert() {
		alertsTotal.Inc()
	}
	scoreDuration.Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, res)
}

// BatchRequest is the request body for POST /score/batch. Users and frauds
// fall back to repository data when omitted.
type BatchRequest struct {
	Transactions []*domain.Transaction     `json:"transactions"`
	Users        []*domain.UserProfile     `json:"users,omitempty"`
	Frauds       []*domain.HistoricalFraud `json:"frauds,omitempty"`
}

// ScoreBatch handles POST /score/batch: point-in-time batch evaluation.
func (h *Handler) ScoreBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Users) == 0 && h.repo != nil {
		users, err := h.repo.ListUserProfiles(ctx)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to load user profiles", "error", err)
		} else {
			req.Users = users
		}
	}
	if len(req.Frauds) == 0 && h.repo != nil {
		frauds, err := h.repo.ListHistoricalFrauds(ctx)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to load fraud corpus", "error", err)
		} else {
			req.Frauds = frauds
		}
	}

	report, err := h.evaluator.Evaluate(ctx, batch.Input{
		Transactions: req.Transactions,
		Users:        req.Users,
		Frauds:       req.Frauds,
	})
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": err.Error(),
		})
		return
	}

	// Persist scored results so alerts survive the batch run.
	if h.repo != nil {
		for _, res := range report.Results {
			if err := h.repo.SaveResult(ctx, res); err != nil {
				h.logger.ErrorContext(ctx, "failed to save batch result", "tx_id", res.TransactionID, "error", err)
			}
		}
	}
	for _, res := range report.Alerts {
		h.publishResult(ctx, res)
	}

	batchesTotal.Inc()
	for _, res := range report.Results {
		scoredTotal.WithLabelValues(string(res.RiskLevel)).Inc()
	}
	alertsTotal.Add(float64(len(report.Alerts)))

	writeJSON(w, http.StatusOK, report)
}

// publishResult emits scored and alert events. Publish failures are logged
// and never surface to the caller.
func (h *Handler) publishResult(ctx context.Context, res *domain.ScoringResult) {
	if h.bus == nil {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := h.bus.Publish(ctx, domain.TopicTransactionScored, payload); err != nil {
		h.logger.Warn("failed to publish scored event", "tx_id", res.TransactionID, "error", err)
	}
	if res.IsAlert() {
		if err := h.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
			h.logger.Warn("failed to publish alert event", "tx_id", res.TransactionID, "error", err)
		}
	}
}

// GetResult retrieves a scoring result by ID.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resultID := chi.URLParam(r, "id")

	if resultID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "result id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	res, err := h.repo.GetResult(ctx, resultID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get result", "id", resultID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "result not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, txID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// GetTransactionResult retrieves the latest result for a transaction.
func (h *Handler) GetTransactionResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	// Cache first, repository second.
	if h.cache != nil {
		if cached, err := h.cache.GetResult(ctx, txID); err == nil && cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	res, err := h.repo.GetResultByTransaction(ctx, txID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "result not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// ListAlerts returns HIGH-risk results, most recent first.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	alerts, err := h.repo.ListAlerts(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// PatternRating resolves a merchant/location pair through the rating table.
func (h *Handler) PatternRating(w http.ResponseWriter, r *http.Request) {
	merchant := r.URL.Query().Get("merchant")
	location := r.URL.Query().Get("location")

	if merchant == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "merchant is required",
		})
		return
	}
	if location == "" {
		location = domain.LocationUnknown
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"merchant":       merchant,
		"location":       location,
		"rating":         h.patterns.Rating(merchant, location),
		"expectedAmount": h.patterns.ExpectedAmount(merchant, location),
	})
}

// ReloadPatterns re-reads the pattern table file and swaps it in atomically.
func (h *Handler) ReloadPatterns(w http.ResponseWriter, r *http.Request) {
	if h.patternFile == "" {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "no pattern file configured",
		})
		return
	}

	data, err := pattern.LoadFile(h.patternFile)
	if err != nil {
		h.logger.Error("pattern reload failed", "file", h.patternFile, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "pattern reload failed: " + err.Error(),
		})
		return
	}

	h.patterns.Reload(data)

	h.logger.Info("pattern table reloaded", "file", h.patternFile, "entries", h.patterns.Size())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "pattern table reloaded",
		"entries": h.patterns.Size(),
	})
}

// ListRules returns all custom rules loaded in the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.custom.Loaded()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loaded,
		"count": len(loaded),
	})
}

// CreateRuleRequest is the request body for creating a custom rule.
type CreateRuleRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Tag         string  `json:"tag"`
	Weight      float64 `json:"weight"`
	Enabled     bool    `json:"enabled"`
}

// CreateRule validates and persists a custom rule. The rule takes effect
// after POST /rules/reload.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" || req.Tag == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, expression, and tag are required",
		})
		return
	}

	cfg := &domain.RuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Tag:         req.Tag,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	// Compile check before persisting.
	if err := h.custom.Validate(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, cfg); err != nil {
			h.logger.ErrorContext(ctx, "failed to save rule config", "id", cfg.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	h.logger.InfoContext(ctx, "rule created", "id", cfg.ID, "name", cfg.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    cfg,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads enabled custom rules from the repository into the
// engine. This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	configs, err := h.repo.ListRuleConfigs(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.custom.Load(configs); err != nil {
		h.logger.ErrorContext(ctx, "failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	h.logger.InfoContext(ctx, "rules reloaded", "count", len(configs))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(configs),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
