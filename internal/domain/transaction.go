package domain

import (
	"time"
)

// LocationUnknown is the placeholder for transactions without a resolvable
// country code. The pattern table also uses it as the merchant wildcard key.
const LocationUnknown = "Unknown"

// Transaction is an incoming transaction to be scored.
// Records are created by the ingestion layer and never mutated.
type Transaction struct {
	ID       string  `json:"id"`
	UserID   int64   `json:"userId"`
	Amount   float64 `json:"amount"`
	Merchant string  `json:"merchant"`

	// Location is an ISO-like country code, or "Unknown".
	Location string `json:"location"`

	DeviceID  string    `json:"deviceId"`
	Timestamp time.Time `json:"timestamp"`

	// IsFraud is the optional ground-truth label, used only for
	// offline detection metrics, never for scoring.
	IsFraud *bool `json:"isFraud,omitempty"`
}

// UserProfile is read-only reference data for a user, loaded once per run.
type UserProfile struct {
	UserID         int64 `json:"userId"`
	AccountAgeDays int   `json:"accountAgeDays"`

	// RiskScore is a pre-computed user-level prior in [0,1].
	RiskScore float64 `json:"riskScore"`

	IsVIP bool `json:"isVip"`
}

// HistoricalFraud is one record of the append-only known-fraud corpus.
type HistoricalFraud struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId,omitempty"`
	Merchant  string    `json:"merchant"`
	Location  string    `json:"location"`
	Amount    float64   `json:"amount"`
	DeviceID  string    `json:"deviceId,omitempty"`
	FraudType string    `json:"fraudType"`
	Timestamp time.Time `json:"timestamp"`
}

// ScoreRequest is the API request payload for single-transaction scoring.
type ScoreRequest struct {
	ID        string  `json:"id,omitempty"`
	UserID    int64   `json:"userId"`
	Amount    float64 `json:"amount"`
	Merchant  string  `json:"merchant"`
	Location  string  `json:"location"`
	DeviceID  string  `json:"deviceId,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"` // RFC 3339; defaults to now
}

// ToTransaction converts a request to a Transaction domain object.
func (r *ScoreRequest) ToTransaction() (*Transaction, error) {
	ts := time.Now().UTC()
	if r.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, r.Timestamp)
		if err != nil {
			return nil, err
		}
		ts = parsed.UTC()
	}

	loc := r.Location
	if loc == "" {
		loc = LocationUnknown
	}

	return &Transaction{
		ID:        r.ID,
		UserID:    r.UserID,
		Amount:    r.Amount,
		Merchant:  r.Merchant,
		Location:  loc,
		DeviceID:  r.DeviceID,
		Timestamp: ts,
	}, nil
}
