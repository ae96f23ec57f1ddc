// Package batch scores transaction sets offline. A batch run is a pure
// function of its inputs: the transaction snapshot, the user table and
// the fraud corpus are captured once at the start, so results do not
// depend on wall-clock time or on ordering races between workers.
package batch

import (
	"context"
	"fmt"
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

// Input is everything a batch run reads.
type Input struct {
	Transactions []*domain.Transaction
	Users        []*domain.UserProfile
	Frauds       []*domain.HistoricalFraud
}

// Evaluator runs batch scoring with a bounded worker pool.
type Evaluator struct {
	patterns *pattern.Table
	custom   *rules.Engine
	cfg      domain.ScoringConfig
	matcher  domain.MatcherConfig
	workers  int
	logger   *slog.Logger
}

// NewEvaluator builds an evaluator. A nil custom engine disables
// operator-defined rules; workers <= 0 falls back to a single worker.
func NewEvaluator(patterns *pattern.Table, custom *rules.Engine, cfg domain.ScoringConfig, matcher domain.MatcherConfig, workers int, logger *slog.Logger) *Evaluator {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		patterns: patterns,
		custom:   custom,
		cfg:      cfg,
		matcher:  matcher,
		workers:  workers,
		logger:   logger,
	}
}

// Evaluate scores every transaction in the input and assembles the report.
//
// Per-transaction failures (malformed input, missing user) are collected
// and never abort the batch. The only batch-level failures are an empty
// user table while transactions reference users, and context cancellation.
// Results and alerts preserve input order regardless of worker scheduling.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) (*domain.BatchReport, error) {
	start := time.Now()

	if len(in.Users) == 0 && len(in.Transactions) > 0 {
		return nil, domain.ErrEmptyUserTable
	}

	users := make(map[int64]*domain.UserProfile, len(in.Users))
	for _, u := range in.Users {
		if u != nil {
			users[u.UserID] = u
		}
	}

	scorer := scoring.NewScorer(&scoring.Sources{
		Patterns: e.patterns,
		Velocity: velocity.NewCalculator(in.Transactions),
		History:  history.NewMatcher(in.Frauds, e.matcher.RequireBoth),
		Custom:   e.custom,
	}, e.cfg, e.logger)

	// Workers write results[i] for input index i, so input order survives
	// scheduling. Failures are appended under the lock and sorted out of
	// band from results.
	results := make([]*domain.ScoringResult, len(in.Transactions))
	failures := make([]domain.Failure, len(in.Transactions))
	failed := make([]bool, len(in.Transactions))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workers)

	var cancelled error
	for i, tx := range in.Transactions {
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
		case sem <- struct{}{}:
		}
		if cancelled != nil {
			break
		}

		wg.Add(1)
		go func(idx int, tx *domain.Transaction) {
			defer wg.Done()
			defer func() { <-sem }()

			var user *domain.UserProfile
			if tx != nil {
				user = users[tx.UserID]
			}

			res, err := scorer.Score(ctx, tx, user)
			if err != nil {
				failures[idx] = domain.Failure{TransactionID: txID(tx), Error: err.Error()}
				failed[idx] = true
				return
			}
			results[idx] = res
		}(i, tx)
	}

	wg.Wait()
	if cancelled != nil {
		return nil, cancelled
	}

	report := &domain.BatchReport{}
	for i, res := range results {
		if failed[i] {
			report.Failures = append(report.Failures, failures[i])
			continue
		}
		if res == nil {
			continue
		}
		report.Results = append(report.Results, res)
		if res.IsAlert() {
			report.Alerts = append(report.Alerts, res)
		}
	}

	report.Stats = computeStats(in.Transactions, results)
	report.Metrics = computeMetrics(in.Transactions, results)
	report.ProcessMs = time.Since(start).Milliseconds()

	e.logger.InfoContext(ctx, "batch evaluation complete",
		"transactions", len(in.Transactions),
		"scored", len(report.Results),
		"alerts", len(report.Alerts),
		"failures", len(report.Failures),
		"process_ms", report.ProcessMs)

	return report, nil
}

func txID(tx *domain.Transaction) string {
	if tx == nil {
		return ""
	}
	return tx.ID
}

// computeStats tallies the named geographic patterns and risk-level
// distribution across the scored transactions.
func computeStats(txs []*domain.Transaction, results []*domain.ScoringResult) domain.PatternStats {
	var stats domain.PatternStats
	for i, res := range results {
		if res == nil {
			continue
		}
		tx := txs[i]

		if (tx.Merchant == "RU Store" || tx.Merchant == "Unknown Store") && tx.Location == "RU" {
			stats.RUPatterns++
		}
		if (tx.Merchant == "CN Store" || tx.Merchant == "Unknown Store") && tx.Location == "CN" {
			stats.CNPatterns++
		}
		if tx.Merchant == "Amazon" && (tx.Location == "RU" || tx.Location == "CN") {
			stats.AmazonUnusual++
		}
		if tx.Merchant == "Walmart" && (tx.Location == "RU" || tx.Location == "CN") {
			stats.WalmartUnusual++
		}

		switch res.RiskLevel {
		case domain.RiskHigh:
			stats.TotalHighRisk++
		case domain.RiskMedium:
			stats.TotalMediumRisk++
		default:
			stats.TotalLowRisk++
		}
	}
	return stats
}

// computeMetrics builds the confusion counts over labeled transactions.
// A HIGH classification is the positive prediction. Returns nil when the
// batch carries no labels at all.
func computeMetrics(txs []*domain.Transaction, results []*domain.ScoringResult) *domain.DetectionMetrics {
	m := &domain.DetectionMetrics{}
	for i, res := range results {
		if res == nil {
			continue
		}
		tx := txs[i]
		if tx.IsFraud == nil {
			continue
		}
		m.Labeled++

		predicted := res.RiskLevel == domain.RiskHigh
		actual := *tx.IsFraud
		switch {
		case predicted && actual:
			m.TruePositives++
		case predicted && !actual:
			m.FalsePositives++
		case !predicted && actual:
			m.FalseNegatives++
		}
	}
	if m.Labeled == 0 {
		return nil
	}
	m.Compute()
	return m
}

// Describe renders a one-line batch summary for logs and CLI output.
func Describe(r *domain.BatchReport) string {
	s := fmt.Sprintf("scored=%d alerts=%d failures=%d high=%d medium=%d low=%d",
		len(r.Results), len(r.Alerts), len(r.Failures),
		r.Stats.TotalHighRisk, r.Stats.TotalMediumRisk, r.Stats.TotalLowRisk)
	if r.Metrics != nil {
		s += fmt.Sprintf(" precision=%.2f recall=%.2f f1=%.2f",
			r.Metrics.Precision, r.Metrics.Recall, r.Metrics.F1)
	}
	return s
}
