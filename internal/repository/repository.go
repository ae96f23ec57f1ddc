// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yusdesign/trier/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transaction.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, user_id, amount, merchant, location, device_id, timestamp, is_fraud
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			amount = excluded.amount,
			merchant = excluded.merchant,
			location = excluded.location,
			device_id = excluded.device_id,
			timestamp = excluded.timestamp,
			is_fraud = excluded.is_fraud
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.UserID, tx.Amount, tx.Merchant, tx.Location,
		tx.DeviceID, tx.Timestamp.UTC(), fraudLabel(tx.IsFraud),
	)
	return err
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	query := `
		SELECT id, user_id, amount, merchant, location, device_id, timestamp, is_fraud
		FROM transactions
		WHERE id = ?
	`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, r.rebind(query), txID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tx, err
}

// ListTransactions retrieves the full transaction snapshot ordered by time.
func (r *SQLRepository) ListTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	query := `
		SELECT id, user_id, amount, merchant, location, device_id, timestamp, is_fraud
		FROM transactions
		ORDER BY timestamp
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// SaveUserProfile stores or updates a user profile.
func (r *SQLRepository) SaveUserProfile(ctx context.Context, user *domain.UserProfile) error {
	if user == nil {
		return fmt.Errorf("%w: user is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO users (user_id, account_age_days, risk_score, is_vip)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			account_age_days = excluded.account_age_days,
			risk_score = excluded.risk_score,
			is_vip = excluded.is_vip
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		user.UserID, user.AccountAgeDays, user.RiskScore, boolInt(user.IsVIP),
	)
	return err
}

// GetUserProfile retrieves a user profile by id.
func (r *SQLRepository) GetUserProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	query := `
		SELECT user_id, account_age_days, risk_score, is_vip
		FROM users
		WHERE user_id = ?
	`

	var u domain.UserProfile
	var vip int
	err := r.db.QueryRowContext(ctx, r.rebind(query), userID).Scan(
		&u.UserID, &u.AccountAgeDays, &u.RiskScore, &vip,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.IsVIP = vip == 1
	return &u, nil
}

// ListUserProfiles retrieves the full user table.
func (r *SQLRepository) ListUserProfiles(ctx context.Context) ([]*domain.UserProfile, error) {
	query := `
		SELECT user_id, account_age_days, risk_score, is_vip
		FROM users
		ORDER BY user_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.UserProfile
	for rows.Next() {
		var u domain.UserProfile
		var vip int
		if err := rows.Scan(&u.UserID, &u.AccountAgeDays, &u.RiskScore, &vip); err != nil {
			return nil, err
		}
		u.IsVIP = vip == 1
		users = append(users, &u)
	}
	return users, rows.Err()
}

// SaveHistoricalFraud appends a record to the fraud corpus.
func (r *SQLRepository) SaveHistoricalFraud(ctx context.Context, rec *domain.HistoricalFraud) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: fraud record id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO historical_frauds (
			id, user_id, merchant, location, amount, device_id, fraud_type, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, rec.UserID, rec.Merchant, rec.Location,
		rec.Amount, rec.DeviceID, rec.FraudType, rec.Timestamp.UTC(),
	)
	return err
}

// ListHistoricalFrauds retrieves the fraud corpus ordered by time.
func (r *SQLRepository) ListHistoricalFrauds(ctx context.Context) ([]*domain.HistoricalFraud, error) {
	query := `
		SELECT id, user_id, merchant, location, amount, device_id, fraud_type, timestamp
		FROM historical_frauds
		ORDER BY timestamp
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*domain.HistoricalFraud
	for rows.Next() {
		var rec domain.HistoricalFraud
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Merchant, &rec.Location,
			&rec.Amount, &rec.DeviceID, &rec.FraudType, &rec.Timestamp,
		); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// SaveResult stores a scoring result.
func (r *SQLRepository) SaveResult(ctx context.Context, res *domain.ScoringResult) error {
	if res == nil || res.ID == "" {
		return fmt.Errorf("%w: result id is required", ErrInvalidInput)
	}

	rules, _ := json.Marshal(res.RulesTriggered)

	query := `
		INSERT INTO scoring_results (
			id, tx_id, user_id, risk_score, risk_level, action, rules_triggered,
			pattern_rating, velocity_1h, velocity_24h, velocity_24h_amount,
			historical_similar, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		res.ID, res.TransactionID, res.UserID,
		res.RiskScore, string(res.RiskLevel), string(res.Action), string(rules),
		res.PatternRating, res.Velocity1h, res.Velocity24h, res.Velocity24hAmount,
		res.HistoricalSimilarCount, res.Timestamp.UTC(),
	)
	return err
}

// GetResult retrieves a scoring result by id.
func (r *SQLRepository) GetResult(ctx context.Context, resultID string) (*domain.ScoringResult, error) {
	query := selectResults + ` WHERE id = ?`

	res, err := scanResult(r.db.QueryRowContext(ctx, r.rebind(query), resultID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

// GetResultByTransaction retrieves the latest scoring result for a
// transaction.
func (r *SQLRepository) GetResultByTransaction(ctx context.Context, txID string) (*domain.ScoringResult, error) {
	query := selectResults + ` WHERE tx_id = ? ORDER BY timestamp DESC LIMIT 1`

	res, err := scanResult(r.db.QueryRowContext(ctx, r.rebind(query), txID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

// ListAlerts retrieves all HIGH-risk results, newest first.
func (r *SQLRepository) ListAlerts(ctx context.Context) ([]*domain.ScoringResult, error) {
	query := selectResults + ` WHERE risk_level = ? ORDER BY timestamp DESC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), string(domain.RiskHigh))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.ScoringResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// SaveRuleConfig stores or updates a custom rule configuration.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, rule *domain.RuleConfig) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, name, description, expression, tag, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			tag = excluded.tag,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression, rule.Tag,
		rule.Weight, boolInt(rule.Enabled), now, now,
	)
	return err
}

// ListRuleConfigs retrieves all enabled custom rules ordered by name.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, expression, tag, weight, enabled
		FROM rule_configs
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var enabled int
		if err := rows.Scan(
			&cfg.ID, &cfg.Name, &cfg.Description, &cfg.Expression,
			&cfg.Tag, &cfg.Weight, &enabled,
		); err != nil {
			return nil, err
		}
		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}
	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

const selectResults = `
	SELECT id, tx_id, user_id, risk_score, risk_level, action, rules_triggered,
		   pattern_rating, velocity_1h, velocity_24h, velocity_24h_amount,
		   historical_similar, timestamp
	FROM scoring_results`

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*domain.ScoringResult, error) {
	var res domain.ScoringResult
	var level, action, rules string

	err := row.Scan(
		&res.ID, &res.TransactionID, &res.UserID,
		&res.RiskScore, &level, &action, &rules,
		&res.PatternRating, &res.Velocity1h, &res.Velocity24h, &res.Velocity24hAmount,
		&res.HistoricalSimilarCount, &res.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	res.RiskLevel = domain.RiskLevel(level)
	res.Action = domain.Action(action)
	json.Unmarshal([]byte(rules), &res.RulesTriggered)
	return &res, nil
}

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var deviceID sql.NullString
	var fraud sql.NullInt64

	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.Amount, &tx.Merchant, &tx.Location,
		&deviceID, &tx.Timestamp, &fraud,
	)
	if err != nil {
		return nil, err
	}

	tx.DeviceID = deviceID.String
	if fraud.Valid {
		b := fraud.Int64 == 1
		tx.IsFraud = &b
	}
	return &tx, nil
}

// fraudLabel maps the optional ground-truth label to a nullable column.
func fraudLabel(b *bool) any {
	if b == nil {
		return nil
	}
	return boolInt(*b)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
