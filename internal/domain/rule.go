package domain

// RuleConfig defines an operator-supplied custom scoring rule. Custom rules
// run after the built-in rule set; each carries a CEL expression evaluated
// against the transaction and its computed signals. A boolean expression
// fires on true; a numeric expression fires when positive, and its value is
// multiplied by Weight before being added to the risk score.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Expression is a CEL expression over: amount, merchant, location,
	// device_id, user_risk, account_age_days, is_vip, pattern_rating,
	// velocity_1h, velocity_24h, velocity_24h_amount, historical_count,
	// historical_confidence.
	Expression string `json:"expression"`

	// Tag is appended to rules_triggered when the rule fires.
	Tag string `json:"tag"`

	// Weight scales the rule's score contribution. Boolean expressions
	// contribute exactly Weight when true.
	Weight float64 `json:"weight"`

	Enabled bool `json:"enabled"`
}
