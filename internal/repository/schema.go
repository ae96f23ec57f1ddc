package repository

// Schema definitions for the Trier database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    amount REAL NOT NULL,
    merchant TEXT NOT NULL,
    location TEXT NOT NULL,
    device_id TEXT,
    timestamp TIMESTAMP NOT NULL,
    is_fraud INTEGER
);

CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(user_id, timestamp);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    user_id BIGINT PRIMARY KEY,
    account_age_days INTEGER NOT NULL DEFAULT 0,
    risk_score REAL NOT NULL DEFAULT 0,
    is_vip INTEGER NOT NULL DEFAULT 0
);
`

const schemaHistoricalFrauds = `
CREATE TABLE IF NOT EXISTS historical_frauds (
    id TEXT PRIMARY KEY,
    user_id BIGINT,
    merchant TEXT NOT NULL,
    location TEXT NOT NULL,
    amount REAL NOT NULL,
    device_id TEXT,
    fraud_type TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_frauds_merchant ON historical_frauds(merchant);
CREATE INDEX IF NOT EXISTS idx_frauds_location ON historical_frauds(location);
`

const schemaScoringResults = `
CREATE TABLE IF NOT EXISTS scoring_results (
    id TEXT PRIMARY KEY,
    tx_id TEXT NOT NULL,
    user_id BIGINT NOT NULL,
    risk_score REAL NOT NULL,
    risk_level TEXT NOT NULL,
    action TEXT NOT NULL,
    rules_triggered TEXT NOT NULL,
    pattern_rating INTEGER NOT NULL,
    velocity_1h INTEGER NOT NULL,
    velocity_24h INTEGER NOT NULL,
    velocity_24h_amount REAL NOT NULL,
    historical_similar INTEGER NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_tx ON scoring_results(tx_id);
CREATE INDEX IF NOT EXISTS idx_results_level ON scoring_results(risk_level);
CREATE INDEX IF NOT EXISTS idx_results_timestamp ON scoring_results(timestamp);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    tag TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaUsers,
		schemaHistoricalFrauds,
		schemaScoringResults,
		schemaRuleConfigs,
	}
}
