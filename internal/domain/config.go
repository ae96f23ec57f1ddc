package domain

// Config holds the complete Trier configuration.
type Config struct {
	Server ServerConfig `json:"server"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Engine configuration
	Scoring ScoringConfig `json:"scoring"`
	Matcher MatcherConfig `json:"matcher"`

	// PatternFile optionally points to a YAML pattern table that
	// replaces the built-in ratings at startup.
	PatternFile string `json:"patternFile,omitempty"`

	// Workers bounds concurrent scoring inside a batch.
	Workers int `json:"workers"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// ScoringConfig exposes the aggregator's rule weights and thresholds.
// The defaults are design constants; changing them changes what the
// engine considers risky, not how it evaluates.
type ScoringConfig struct {
	// Rule 1: pattern rating contribution.
	PatternWeight        float64 `json:"patternWeight"`
	HighPatternThreshold int     `json:"highPatternThreshold"`
	MedPatternThreshold  int     `json:"medPatternThreshold"`

	// Rule 2: amount vs. pattern expectation.
	AmountMultiplier float64 `json:"amountMultiplier"`
	AmountScore      float64 `json:"amountScore"`

	// Rule 3: velocity under a risky pattern, then plain velocity.
	RiskyVelocityCount   int     `json:"riskyVelocityCount"`
	RiskyVelocityPattern int     `json:"riskyVelocityPattern"`
	RiskyVelocityScore   float64 `json:"riskyVelocityScore"`
	PlainVelocityCount   int     `json:"plainVelocityCount"`
	PlainVelocityScore   float64 `json:"plainVelocityScore"`

	// Rule 4: historical match contribution.
	HistoricalWeight float64 `json:"historicalWeight"`

	// Rule 5: user prior.
	UserRiskThreshold float64 `json:"userRiskThreshold"`
	UserRiskScore     float64 `json:"userRiskScore"`

	// Category bonus rules (cross-border and unusual-retailer patterns).
	EnableCategoryRules bool    `json:"enableCategoryRules"`
	CrossBorderScore    float64 `json:"crossBorderScore"`
	RetailerScore       float64 `json:"retailerScore"`
	RetailerAmountFloor float64 `json:"retailerAmountFloor"`

	// Classification thresholds on the clamped [0,100] score.
	HighThreshold   float64 `json:"highThreshold"`
	MediumThreshold float64 `json:"mediumThreshold"`
}

// MatcherConfig controls the historical pattern matcher.
type MatcherConfig struct {
	// RequireBoth tightens similarity from merchant-OR-location to
	// merchant-AND-location. The OR default preserves the documented
	// recall-heavy behavior.
	RequireBoth bool `json:"requireBoth"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"`
}

// DefaultScoringConfig returns the compatibility defaults. Implementations
// that need different behavior should start from these and override.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		PatternWeight:        0.5,
		HighPatternThreshold: 70,
		MedPatternThreshold:  50,

		AmountMultiplier: 2.0,
		AmountScore:      15,

		RiskyVelocityCount:   5,
		RiskyVelocityPattern: 60,
		RiskyVelocityScore:   20,
		PlainVelocityCount:   10,
		PlainVelocityScore:   10,

		HistoricalWeight: 15,

		UserRiskThreshold: 0.7,
		UserRiskScore:     10,

		EnableCategoryRules: true,
		CrossBorderScore:    15,
		RetailerScore:       20,
		RetailerAmountFloor: 200,

		HighThreshold:   70,
		MediumThreshold: 40,
	}
}

// DefaultConfig returns the default configuration: SQLite storage,
// in-process cache and bus, built-in pattern table.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./trier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scoring: DefaultScoringConfig(),
		Matcher: MatcherConfig{RequireBoth: false},
		Workers: 8,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "trier",
		},
	}
}
