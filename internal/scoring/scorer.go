// Package scoring implements the risk aggregator: a fixed, ordered rule
// set that combines the pattern rating, velocity, historical and user
// signals into one explainable score. Determinism is the contract — the
// same transaction against the same reference data always produces the
// same score and the same rule tags, in the same order.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yusdesign/trier/internal/domain"
	"github.com/yusdesign/trier/internal/history"
	"github.com/yusdesign/trier/internal/pattern"
	"github.com/yusdesign/trier/internal/rules"
	"github.com/yusdesign/trier/internal/velocity"
)

// VelocitySource answers point-in-time velocity queries. The batch path
// uses a snapshot calculator; the online path adapts live counters.
type VelocitySource interface {
	At(userID int64, asOf time.Time, window time.Duration) velocity.Window
}

// Scorer scores one transaction at a time against fixed reference data.
// Safe for concurrent use; all fields are read-only after construction.
type Scorer struct {
	src    *Sources
	cfg    domain.ScoringConfig
	logger *slog.Logger
}

// Sources bundles the reference data a scorer reads.
type Sources struct {
	Patterns *pattern.Table
	Velocity VelocitySource
	History  *history.Matcher

	// Custom optionally extends the built-in rules with operator-defined
	// CEL rules, evaluated after them.
	Custom *rules.Engine
}

// NewScorer builds a scorer over the given sources.
func NewScorer(src *Sources, cfg domain.ScoringConfig, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{src: src, cfg: cfg, logger: logger}
}

// Score evaluates the rule set against one transaction.
//
// Rules run in a fixed order; each contributes at most once. The category
// bonuses run first, then the pattern, amount, velocity, historical and
// user rules, then any custom rules. The raw sum clamps to [0,100] before
// classification.
//
// Returns ErrMissingUser when user is nil and ErrMalformedInput when the
// transaction fails shape validation. Both are per-transaction failures.
func (s *Scorer) Score(ctx context.Context, tx *domain.Transaction, user *domain.UserProfile) (*domain.ScoringResult, error) {
	if err := domain.ValidateTransaction(tx); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", domain.ErrMissingUser, tx.UserID)
	}

	src := s.src
	cfg := s.cfg

	rating := src.Patterns.Rating(tx.Merchant, tx.Location)
	vel1h := src.Velocity.At(tx.UserID, tx.Timestamp, time.Hour)
	vel24h := src.Velocity.At(tx.UserID, tx.Timestamp, 24*time.Hour)
	match := src.History.Lookup(tx.Merchant, tx.Location, tx.Amount)

	var score float64
	var triggered []string

	// Category bonuses for cross-border merchants and implausible
	// retailer locations.
	if cfg.EnableCategoryRules {
		cat := pattern.Categorize(tx.Merchant, tx.Location)
		if cat.IsCrossBorderSuspicious() {
			score += cfg.CrossBorderScore
			triggered = append(triggered, fmt.Sprintf("CROSS_BORDER_PATTERN:%s-%s", tx.Merchant, tx.Location))
		}
		if cat.IsUnusualRetailer() && tx.Amount > cfg.RetailerAmountFloor {
			score += cfg.RetailerScore
			triggered = append(triggered, "UNUSUAL_RETAILER_LOCATION_HIGH_AMOUNT")
		}
	}

	// Rule 1: pattern rating carries half its value into the score.
	score += float64(rating) * cfg.PatternWeight
	if rating > cfg.HighPatternThreshold {
		triggered = append(triggered, fmt.Sprintf("HIGH_RISK_PATTERN:%s-%s", tx.Merchant, tx.Location))
	} else if rating > cfg.MedPatternThreshold {
		triggered = append(triggered, fmt.Sprintf("MEDIUM_RISK_PATTERN:%s-%s", tx.Merchant, tx.Location))
	}

	// Rule 2: amount against the pattern's expectation.
	expected := src.Patterns.ExpectedAmount(tx.Merchant, tx.Location)
	if tx.Amount > expected*cfg.AmountMultiplier {
		score += cfg.AmountScore
		triggered = append(triggered, "AMOUNT_ABOVE_PATTERN_EXPECTATION")
	}

	// Rule 3: velocity. The risky-pattern branch wins; plain high
	// velocity applies only when it does not.
	if vel24h.Count > cfg.RiskyVelocityCount && rating > cfg.RiskyVelocityPattern {
		score += cfg.RiskyVelocityScore
		triggered = append(triggered, "HIGH_VELOCITY_WITH_RISKY_PATTERN")
	} else if vel24h.Count > cfg.PlainVelocityCount {
		score += cfg.PlainVelocityScore
		triggered = append(triggered, "HIGH_VELOCITY")
	}

	// Rule 4: similarity to the known-fraud corpus, weighted by how
	// typical the amount is among the similar cases.
	if match.Matched {
		score += match.Confidence * cfg.HistoricalWeight
		triggered = append(triggered, fmt.Sprintf("HISTORICAL_PATTERN_MATCH:%dsimilar", match.SimilarCount))
	}

	// Rule 5: user-level prior.
	if user.RiskScore > cfg.UserRiskThreshold {
		score += cfg.UserRiskScore
		triggered = append(triggered, "HIGH_RISK_USER")
	}

	// Operator-defined rules run last. An erroring rule is skipped and
	// logged; it never fails the transaction.
	if src.Custom != nil && src.Custom.Count() > 0 {
		contribs, errs := src.Custom.Evaluate(rules.Input{
			Amount:               tx.Amount,
			Merchant:             tx.Merchant,
			Location:             tx.Location,
			DeviceID:             tx.DeviceID,
			UserRisk:             user.RiskScore,
			AccountAgeDays:       user.AccountAgeDays,
			IsVIP:                user.IsVIP,
			PatternRating:        rating,
			Velocity1h:           vel1h.Count,
			Velocity24h:          vel24h.Count,
			Velocity24hAmount:    vel24h.Amount,
			HistoricalCount:      match.SimilarCount,
			HistoricalConfidence: match.Confidence,
		})
		for _, err := range errs {
			s.logger.WarnContext(ctx, "custom rule evaluation failed",
				"tx_id", tx.ID,
				"error", err)
		}
		for _, c := range contribs {
			score += c.Score
			triggered = append(triggered, c.Tag)
		}
	}

	score = clampScore(score)
	level, action := domain.ClassifyScore(score, cfg.HighThreshold, cfg.MediumThreshold)

	return &domain.ScoringResult{
		ID:                     uuid.NewString(),
		TransactionID:          tx.ID,
		UserID:                 tx.UserID,
		RiskScore:              score,
		RiskLevel:              level,
		Action:                 action,
		RulesTriggered:         triggered,
		PatternRating:          rating,
		Velocity1h:             vel1h.Count,
		Velocity24h:            vel24h.Count,
		Velocity24hAmount:      vel24h.Amount,
		HistoricalSimilarCount: match.SimilarCount,
		Timestamp:              tx.Timestamp,
	}, nil
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
