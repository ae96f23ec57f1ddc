package rules

import (
	"strings"
	"testing"

	"github.com/yusdesign/trier/internal/domain"
)

func newTestEngine(t *testing.T, configs ...*domain.RuleConfig) *Engine {
	t.Helper()
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := e.Load(configs); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return e
}

func TestBooleanRuleFiresOnTrue(t *testing.T) {
	e := newTestEngine(t, &domain.RuleConfig{
		ID:         "r1",
		Name:       "large amount",
		Expression: `amount > 1000.0`,
		Tag:        "LARGE_AMOUNT",
		Weight:     12,
		Enabled:    true,
	})

	contribs, errs := e.Evaluate(Input{Amount: 1500})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(contribs) != 1 {
		t.Fatalf("got %d contributions, want 1", len(contribs))
	}
	if contribs[0].Tag != "LARGE_AMOUNT" || contribs[0].Score != 12 {
		t.Errorf("contribution = %+v, want {LARGE_AMOUNT 12}", contribs[0])
	}

	contribs, _ = e.Evaluate(Input{Amount: 500})
	if len(contribs) != 0 {
		t.Errorf("rule fired below threshold: %+v", contribs)
	}
}

func TestNumericRuleScalesByWeight(t *testing.T) {
	e := newTestEngine(t, &domain.RuleConfig{
		ID:         "r1",
		Name:       "velocity surcharge",
		Expression: `velocity_24h > 3 ? velocity_24h - 3 : 0`,
		Tag:        "VELOCITY_SURCHARGE",
		Weight:     2.5,
		Enabled:    true,
	})

	contribs, errs := e.Evaluate(Input{Velocity24h: 7})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(contribs) != 1 {
		t.Fatalf("got %d contributions, want 1", len(contribs))
	}
	if contribs[0].Score != 10 {
		t.Errorf("score = %.1f, want 10 (4 * 2.5)", contribs[0].Score)
	}

	// Zero result means the rule did not fire.
	contribs, _ = e.Evaluate(Input{Velocity24h: 2})
	if len(contribs) != 0 {
		t.Errorf("rule fired on zero result: %+v", contribs)
	}
}

func TestRulesEvaluateInLoadOrder(t *testing.T) {
	e := newTestEngine(t,
		&domain.RuleConfig{ID: "a", Expression: `true`, Tag: "FIRST", Weight: 1, Enabled: true},
		&domain.RuleConfig{ID: "b", Expression: `true`, Tag: "SECOND", Weight: 1, Enabled: true},
		&domain.RuleConfig{ID: "c", Expression: `true`, Tag: "THIRD", Weight: 1, Enabled: true},
	)

	contribs, _ := e.Evaluate(Input{})
	want := []string{"FIRST", "SECOND", "THIRD"}
	if len(contribs) != len(want) {
		t.Fatalf("got %d contributions, want %d", len(contribs), len(want))
	}
	for i, tag := range want {
		if contribs[i].Tag != tag {
			t.Errorf("contribs[%d].Tag = %s, want %s", i, contribs[i].Tag, tag)
		}
	}
}

func TestDisabledRulesSkipped(t *testing.T) {
	e := newTestEngine(t,
		&domain.RuleConfig{ID: "on", Expression: `true`, Tag: "ON", Weight: 1, Enabled: true},
		&domain.RuleConfig{ID: "off", Expression: `true`, Tag: "OFF", Weight: 1, Enabled: false},
	)

	if e.Count() != 1 {
		t.Errorf("Count() = %d, want 1", e.Count())
	}
	contribs, _ := e.Evaluate(Input{})
	if len(contribs) != 1 || contribs[0].Tag != "ON" {
		t.Errorf("contributions = %+v, want only ON", contribs)
	}
}

func TestCompileErrorRejected(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	bad := &domain.RuleConfig{ID: "bad", Expression: `amount >`, Tag: "BAD", Weight: 1, Enabled: true}
	if err := e.Load([]*domain.RuleConfig{bad}); err == nil {
		t.Error("expected compile error for malformed expression")
	}
	if err := e.Validate(bad); err == nil {
		t.Error("Validate should reject malformed expression")
	}
}

func TestNonScalarOutputRejected(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	err = e.Validate(&domain.RuleConfig{
		ID:         "str",
		Expression: `merchant + location`,
		Enabled:    true,
	})
	if err == nil {
		t.Fatal("expected error for string-typed expression")
	}
	if !strings.Contains(err.Error(), "must return bool, int, or double") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadErrorKeepsPreviousRules(t *testing.T) {
	e := newTestEngine(t, &domain.RuleConfig{
		ID: "good", Expression: `true`, Tag: "GOOD", Weight: 1, Enabled: true,
	})

	err := e.Load([]*domain.RuleConfig{
		{ID: "bad", Expression: `not valid (`, Enabled: true},
	})
	if err == nil {
		t.Fatal("expected load error")
	}
	if e.Count() != 1 {
		t.Errorf("Count() after failed load = %d, want previous set intact", e.Count())
	}
}

func TestAllSignalsAvailable(t *testing.T) {
	e := newTestEngine(t, &domain.RuleConfig{
		ID:   "signals",
		Name: "all signals",
		Expression: `merchant == "Amazon" && location == "RU" && device_id != "" &&
			user_risk > 0.5 && account_age_days < 30 && !is_vip &&
			pattern_rating > 60 && velocity_1h >= 1 && velocity_24h > 5 &&
			velocity_24h_amount > 100.0 && historical_count > 0 &&
			historical_confidence > 0.4`,
		Tag:     "ALL_SIGNALS",
		Weight:  5,
		Enabled: true,
	})

	contribs, errs := e.Evaluate(Input{
		Amount:               250,
		Merchant:             "Amazon",
		Location:             "RU",
		DeviceID:             "dev-1",
		UserRisk:             0.8,
		AccountAgeDays:       10,
		IsVIP:                false,
		PatternRating:        85,
		Velocity1h:           2,
		Velocity24h:          6,
		Velocity24hAmount:    900,
		HistoricalCount:      3,
		HistoricalConfidence: 0.7,
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(contribs) != 1 || contribs[0].Score != 5 {
		t.Errorf("contributions = %+v, want one with score 5", contribs)
	}
}
