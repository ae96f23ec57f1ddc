// Package domain defines the core types and interfaces for Trier.
package domain

import (
	"time"
)

// RiskLevel buckets a numeric risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Action is the recommended handling for a scored transaction.
type Action string

const (
	ActionAllow  Action = "ALLOW"
	ActionReview Action = "REVIEW"
	ActionBlock  Action = "BLOCK"
)

// ScoringResult is the immutable output of scoring one transaction.
// A new scoring run produces new results; existing ones are never mutated.
type ScoringResult struct {
	ID            string `json:"id"`
	TransactionID string `json:"transactionId"`
	UserID        int64  `json:"userId"`

	// RiskScore is clamped to [0,100].
	RiskScore float64   `json:"riskScore"`
	RiskLevel RiskLevel `json:"riskLevel"`
	Action    Action    `json:"action"`

	// RulesTriggered lists rule tags in evaluation order. Each rule
	// contributes at most once, so duplicates cannot occur.
	RulesTriggered []string `json:"rulesTriggered"`

	// Signal breakdown, kept for auditability.
	PatternRating          int     `json:"patternRating"`
	Velocity1h             int     `json:"velocity1h"`
	Velocity24h            int     `json:"velocity24h"`
	Velocity24hAmount      float64 `json:"velocity24hAmount"`
	HistoricalSimilarCount int     `json:"historicalSimilarCount"`

	Timestamp time.Time `json:"timestamp"`
}

// IsAlert reports whether this result classifies as an alert.
// An alert is a HIGH-risk result projected into a reporting view;
// it has no independent lifecycle.
func (r *ScoringResult) IsAlert() bool {
	return r.RiskLevel == RiskHigh
}

// ClassifyScore maps a clamped score to a level and action using the
// given thresholds.
func ClassifyScore(score, highThreshold, mediumThreshold float64) (RiskLevel, Action) {
	switch {
	case score >= highThreshold:
		return RiskHigh, ActionBlock
	case score >= mediumThreshold:
		return RiskMedium, ActionReview
	default:
		return RiskLow, ActionAllow
	}
}

// Failure records a per-transaction scoring failure. Failures are collected
// alongside successful results and never abort the batch.
type Failure struct {
	TransactionID string `json:"transactionId"`
	Error         string `json:"error"`
}

// PatternStats aggregates named geographic/merchant pattern counts for a
// batch. Used purely for reporting.
type PatternStats struct {
	RUPatterns      int `json:"ruPatterns"`
	CNPatterns      int `json:"cnPatterns"`
	AmazonUnusual   int `json:"amazonUnusual"`
	WalmartUnusual  int `json:"walmartUnusual"`
	TotalHighRisk   int `json:"totalHighRisk"`
	TotalMediumRisk int `json:"totalMediumRisk"`
	TotalLowRisk    int `json:"totalLowRisk"`
}

// DetectionMetrics holds precision/recall/F1 against ground-truth labels.
// A transaction counts as a true positive when it is labeled fraud and
// scored HIGH. Zero denominators yield 0, not an error.
type DetectionMetrics struct {
	TruePositives  int     `json:"truePositives"`
	FalsePositives int     `json:"falsePositives"`
	FalseNegatives int     `json:"falseNegatives"`
	Labeled        int     `json:"labeled"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
}

// Compute fills Precision, Recall and F1 from the confusion counts.
func (m *DetectionMetrics) Compute() {
	if tp := float64(m.TruePositives); tp > 0 || m.FalsePositives > 0 {
		m.Precision = tp / (tp + float64(m.FalsePositives))
	}
	if tp := float64(m.TruePositives); tp > 0 || m.FalseNegatives > 0 {
		m.Recall = tp / (tp + float64(m.FalseNegatives))
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
}

// BatchReport is the complete output of a batch scoring run.
type BatchReport struct {
	// Results holds one entry per successfully scored transaction,
	// in input order.
	Results []*ScoringResult `json:"results"`

	// Alerts is the HIGH-risk subset of Results, in the same order.
	Alerts []*ScoringResult `json:"alerts"`

	// Failures lists transactions rejected by validation or scoring.
	Failures []Failure `json:"failures,omitempty"`

	Stats   PatternStats      `json:"stats"`
	Metrics *DetectionMetrics `json:"metrics,omitempty"`

	ProcessMs int64 `json:"processMs"`
}
