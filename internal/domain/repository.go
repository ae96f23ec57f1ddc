package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence. The scoring path
// itself never touches the repository; snapshots are loaded up front and
// results written back after scoring.
type Repository interface {
	// Transaction snapshot
	SaveTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	ListTransactions(ctx context.Context) ([]*Transaction, error)

	// User reference data
	SaveUserProfile(ctx context.Context, user *UserProfile) error
	GetUserProfile(ctx context.Context, userID int64) (*UserProfile, error)
	ListUserProfiles(ctx context.Context) ([]*UserProfile, error)

	// Historical fraud corpus (append-only)
	SaveHistoricalFraud(ctx context.Context, rec *HistoricalFraud) error
	ListHistoricalFrauds(ctx context.Context) ([]*HistoricalFraud, error)

	// Scoring output
	SaveResult(ctx context.Context, res *ScoringResult) error
	GetResult(ctx context.Context, resultID string) (*ScoringResult, error)
	GetResultByTransaction(ctx context.Context, txID string) (*ScoringResult, error)
	ListAlerts(ctx context.Context) ([]*ScoringResult, error)

	// Custom rule configuration
	SaveRuleConfig(ctx context.Context, rule *RuleConfig) error
	ListRuleConfigs(ctx context.Context) ([]*RuleConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
