// Package worker provides async scoring of transactions from the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/yusdesign/trier/internal/domain"
	"github.com/yusdesign/trier/internal/history"
	"github.com/yusdesign/trier/internal/pattern"
	"github.com/yusdesign/trier/internal/rules"
	"github.com/yusdesign/trier/internal/scoring"
	"github.com/yusdesign/trier/internal/velocity"
)

// resultCacheTTL bounds how long scored results stay cached.
const resultCacheTTL = 5 * time.Minute

// Worker consumes ingested transactions from the bus, scores them with
// live velocity counters, persists the results and emits scored and alert
// events. It is the async counterpart of the synchronous API path.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	patterns *pattern.Table
	custom   *rules.Engine
	counter  *velocity.Counter
	cfg      domain.ScoringConfig
	matchCfg domain.MatcherConfig
	logger   *slog.Logger

	mu      sync.RWMutex
	matcher *history.Matcher

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async scoring worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, patterns *pattern.Table, custom *rules.Engine, cfg domain.ScoringConfig, matchCfg domain.MatcherConfig, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		cache:    cache,
		patterns: patterns,
		custom:   custom,
		counter:  velocity.NewCounter(cache),
		cfg:      cfg,
		matchCfg: matchCfg,
		logger:   logger,
		matcher:  history.NewMatcher(nil, matchCfg.RequireBoth),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start loads the fraud corpus and subscribes to the ingest topic.
func (w *Worker) Start() error {
	if err := w.RefreshCorpus(w.ctx); err != nil {
		w.logger.Error("failed to load fraud corpus", "error", err)
	}

	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("worker started", "topic", domain.TopicTransactionIngested)
	return nil
}

// RefreshCorpus reloads the historical fraud corpus from the repository.
func (w *Worker) RefreshCorpus(ctx context.Context) error {
	if w.repo == nil {
		return nil
	}
	frauds, err := w.repo.ListHistoricalFrauds(ctx)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.matcher = history.NewMatcher(frauds, w.matchCfg.RequireBoth)
	w.mu.Unlock()

	w.logger.Info("fraud corpus refreshed", "records", len(frauds))
	return nil
}

func (w *Worker) currentMatcher() *history.Matcher {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.matcher
}

// liveVelocity adapts the counter snapshot taken at ingest time to the
// scorer's point-in-time velocity queries.
type liveVelocity struct {
	counts map[time.Duration]int64
}

func (v liveVelocity) At(userID int64, asOf time.Time, window time.Duration) velocity.Window {
	return velocity.Window{Count: int(v.counts[window])}
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processTransaction(ctx, msg)
}

// processTransaction scores one ingested transaction end to end.
func (w *Worker) processTransaction(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var tx domain.Transaction
	if err := json.Unmarshal(msg.Payload, &tx); err != nil {
		w.logger.Error("failed to parse transaction message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	var user *domain.UserProfile
	if w.repo != nil {
		loaded, err := w.repo.GetUserProfile(ctx, tx.UserID)
		if err == nil {
			user = loaded
		}
	}
	if user == nil {
		w.logger.Warn("user not found for ingested transaction",
			"tx_id", tx.ID,
			"user_id", tx.UserID,
		)
		return domain.ErrMissingUser
	}

	counts, err := w.counter.Observe(ctx, tx.UserID)
	if err != nil {
		w.logger.Warn("velocity counter failed", "user_id", tx.UserID, "error", err)
		counts = map[time.Duration]int64{}
	}

	scorer := scoring.NewScorer(&scoring.Sources{
		Patterns: w.patterns,
		Velocity: liveVelocity{counts: counts},
		History:  w.currentMatcher(),
		Custom:   w.custom,
	}, w.cfg, w.logger)

	res, err := scorer.Score(ctx, &tx, user)
	if err != nil {
		w.logger.Error("scoring failed",
			"tx_id", tx.ID,
			"error", err,
		)
		return err
	}

	if w.repo != nil {
		if err := w.repo.SaveTransaction(ctx, &tx); err != nil {
			w.logger.Error("failed to save transaction", "tx_id", tx.ID, "error", err)
		}
		if err := w.repo.SaveResult(ctx, res); err != nil {
			w.logger.Error("failed to save result", "tx_id", tx.ID, "error", err)
		}
	}
	if w.cache != nil {
		if err := w.cache.SetResult(ctx, tx.ID, res, resultCacheTTL); err != nil {
			w.logger.Warn("failed to cache result", "tx_id", tx.ID, "error", err)
		}
	}

	payload, _ := json.Marshal(res)
	if err := w.bus.Publish(ctx, domain.TopicTransactionScored, payload); err != nil {
		w.logger.Error("failed to publish scored event", "tx_id", tx.ID, "error", err)
	}
	if res.IsAlert() {
		if err := w.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
			w.logger.Error("failed to publish alert", "tx_id", tx.ID, "error", err)
		}
	}

	w.logger.Info("transaction scored",
		"tx_id", tx.ID,
		"risk_level", res.RiskLevel,
		"score", res.RiskScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	w.logger.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
