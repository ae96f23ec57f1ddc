// Package rules provides the CEL-Go engine for operator-defined scoring
// rules. Custom rules extend the built-in rule set without a redeploy:
// each is a CEL expression over the transaction and its computed signals,
// compiled once at load and evaluated per transaction.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/yusdesign/trier/internal/domain"
)

// Engine compiles and evaluates custom scoring rules. Rules load and
// reload under a write lock; evaluation takes a read lock, so scoring
// never blocks on other scorers.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled []*compiledRule
}

type compiledRule struct {
	cfg     *domain.RuleConfig
	program cel.Program
}

// Input is the variable set a rule expression can reference.
type Input struct {
	Amount               float64
	Merchant             string
	Location             string
	DeviceID             string
	UserRisk             float64
	AccountAgeDays       int
	IsVIP                bool
	PatternRating        int
	Velocity1h           int
	Velocity24h          int
	Velocity24hAmount    float64
	HistoricalCount      int
	HistoricalConfidence float64
}

// Contribution is one fired rule's addition to the risk score.
type Contribution struct {
	Tag   string
	Score float64
}

// NewEngine creates an engine with the scoring variable environment.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("merchant", cel.StringType),
		cel.Variable("location", cel.StringType),
		cel.Variable("device_id", cel.StringType),
		cel.Variable("user_risk", cel.DoubleType),
		cel.Variable("account_age_days", cel.IntType),
		cel.Variable("is_vip", cel.BoolType),
		cel.Variable("pattern_rating", cel.IntType),
		cel.Variable("velocity_1h", cel.IntType),
		cel.Variable("velocity_24h", cel.IntType),
		cel.Variable("velocity_24h_amount", cel.DoubleType),
		cel.Variable("historical_count", cel.IntType),
		cel.Variable("historical_confidence", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// Validate compiles a rule without loading it.
func (e *Engine) Validate(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}
	_, err := e.compile(cfg)
	return err
}

// Load replaces the loaded rule set with the enabled rules from configs,
// preserving their order. A compile error leaves the previous set intact.
func (e *Engine) Load(configs []*domain.RuleConfig) error {
	next := make([]*compiledRule, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		cr, err := e.compile(cfg)
		if err != nil {
			return err
		}
		next = append(next, cr)
	}

	e.mu.Lock()
	e.compiled = next
	e.mu.Unlock()
	return nil
}

// Evaluate runs all loaded rules against the input, in load order.
// A boolean expression fires on true and contributes its weight; a numeric
// expression fires when positive and contributes value times weight. A rule
// whose evaluation errors is skipped, reported through the errs return so
// the caller can log it without failing the transaction.
func (e *Engine) Evaluate(in Input) (contribs []Contribution, errs []error) {
	e.mu.RLock()
	rules := e.compiled
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	activation := map[string]any{
		"amount":                in.Amount,
		"merchant":              in.Merchant,
		"location":              in.Location,
		"device_id":             in.DeviceID,
		"user_risk":             in.UserRisk,
		"account_age_days":      in.AccountAgeDays,
		"is_vip":                in.IsVIP,
		"pattern_rating":        in.PatternRating,
		"velocity_1h":           in.Velocity1h,
		"velocity_24h":          in.Velocity24h,
		"velocity_24h_amount":   in.Velocity24hAmount,
		"historical_count":      in.HistoricalCount,
		"historical_confidence": in.HistoricalConfidence,
	}

	for _, r := range rules {
		out, _, err := r.program.Eval(activation)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", r.cfg.ID, err))
			continue
		}

		score, fired := contribution(out, r.cfg.Weight)
		if fired {
			contribs = append(contribs, Contribution{Tag: r.cfg.Tag, Score: score})
		}
	}
	return contribs, errs
}

// Count returns the number of loaded rules.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Loaded returns the configurations of the loaded rules, in order.
func (e *Engine) Loaded() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.RuleConfig, len(e.compiled))
	for i, r := range e.compiled {
		out[i] = r.cfg
	}
	return out
}

func contribution(val ref.Val, weight float64) (float64, bool) {
	switch v := val.(type) {
	case types.Bool:
		if bool(v) {
			return weight, true
		}
	case types.Double:
		if float64(v) > 0 {
			return float64(v) * weight, true
		}
	case types.Int:
		if int64(v) > 0 {
			return float64(v) * weight, true
		}
	}
	return 0, false
}

func (e *Engine) compile(cfg *domain.RuleConfig) (*compiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &compiledRule{cfg: cfg, program: program}, nil
}
