package repository

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/yusdesign/trier/internal/domain"
)

// Synthetic dataset generation for local development and benchmarks.
// Generators take an explicit seed so runs are reproducible.

// GenerateTransactions builds n synthetic transactions spread over the
// seven days before now. Roughly a third carry cross-border patterns with
// an elevated fraud rate, a third are global retailers in mixed locations,
// and the rest are benign domestic activity.
func GenerateTransactions(n int, users int, now time.Time, seed int64) []*domain.Transaction {
	rng := rand.New(rand.NewSource(seed))
	start := now.Add(-7 * 24 * time.Hour)

	txs := make([]*domain.Transaction, 0, n)
	for i := 1; i <= n; i++ {
		var merchant, location string
		var amount float64
		var isFraud bool

		switch bias := rng.Float64(); {
		case bias < 0.3:
			merchant = pick(rng, "RU Store", "CN Store", "Unknown Store", "Alibaba")
			location = pick(rng, "RU", "CN", domain.LocationUnknown)
			amount = 500 + rng.Float64()*2500
			isFraud = rng.Float64() < 0.4
		case bias < 0.6:
			merchant = pick(rng, "Amazon", "Walmart")
			location = pick(rng, "US", "UK", "CA", "RU", "CN")
			amount = 50 + rng.Float64()*750
			isFraud = location == "RU" || location == "CN"
		default:
			merchant = pick(rng, "Target", "Best Buy", "Local Store")
			location = pick(rng, "US", "UK", "CA", "AU")
			amount = 10 + rng.Float64()*290
			isFraud = rng.Float64() < 0.02
		}

		label := isFraud
		txs = append(txs, &domain.Transaction{
			ID:        fmt.Sprintf("TX_%06d", i),
			UserID:    1 + rng.Int63n(int64(users)),
			Amount:    round2(amount),
			Merchant:  merchant,
			Location:  location,
			DeviceID:  fmt.Sprintf("DEV_%03d", 100+rng.Intn(900)),
			Timestamp: start.Add(time.Duration(1+rng.Intn(168)) * time.Hour),
			IsFraud:   &label,
		})
	}
	return txs
}

// GenerateUserProfiles builds n user profiles with a small risky tail.
func GenerateUserProfiles(n int, seed int64) []*domain.UserProfile {
	rng := rand.New(rand.NewSource(seed))

	users := make([]*domain.UserProfile, 0, n)
	for i := 1; i <= n; i++ {
		risk := rng.Float64() * 0.5
		if rng.Float64() < 0.1 {
			risk = 0.7 + rng.Float64()*0.3
		}
		users = append(users, &domain.UserProfile{
			UserID:         int64(i),
			AccountAgeDays: rng.Intn(2000),
			RiskScore:      round2(risk),
			IsVIP:          rng.Float64() < 0.05,
		})
	}
	return users
}

type fraudTemplate struct {
	merchant  string
	locations []string
	minAmount float64
	maxAmount float64
}

var fraudTemplates = []fraudTemplate{
	{"RU Store", []string{"RU"}, 1000, 5000},
	{"Unknown Store", []string{"RU"}, 500, 3000},
	{"Amazon", []string{"RU"}, 800, 4000},
	{"CN Store", []string{"CN"}, 800, 4000},
	{"Alibaba", []string{"CN", domain.LocationUnknown}, 600, 3500},
	{"Walmart", []string{"CN"}, 700, 3000},
	{"RU Store", []string{"CN"}, 1500, 6000},
	{"CN Store", []string{"RU"}, 1200, 5000},
}

// GenerateHistoricalFrauds builds n corpus records over the ninety days
// before now, drawn from the known cross-border fraud shapes.
func GenerateHistoricalFrauds(n int, users int, now time.Time, seed int64) []*domain.HistoricalFraud {
	rng := rand.New(rand.NewSource(seed))
	start := now.Add(-90 * 24 * time.Hour)
	types := []string{"card_not_present", "identity_theft", "friendly_fraud"}

	recs := make([]*domain.HistoricalFraud, 0, n)
	for i := 1; i <= n; i++ {
		tpl := fraudTemplates[rng.Intn(len(fraudTemplates))]
		recs = append(recs, &domain.HistoricalFraud{
			ID:        fmt.Sprintf("HIST_FRAUD_%04d", i),
			UserID:    1 + rng.Int63n(int64(users)),
			Merchant:  tpl.merchant,
			Location:  tpl.locations[rng.Intn(len(tpl.locations))],
			Amount:    round2(tpl.minAmount + rng.Float64()*(tpl.maxAmount-tpl.minAmount)),
			DeviceID:  fmt.Sprintf("DEV_%03d", 100+rng.Intn(900)),
			FraudType: types[rng.Intn(len(types))],
			Timestamp: start.Add(time.Duration(1+rng.Intn(2160)) * time.Hour),
		})
	}
	return recs
}

func pick(rng *rand.Rand, options ...string) string {
	return options[rng.Intn(len(options))]
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
