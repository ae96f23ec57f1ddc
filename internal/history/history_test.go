package history

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/yusdesign/trier/internal/domain"
)

func fraud(merchant, location string, amount float64) *domain.HistoricalFraud {
	return &domain.HistoricalFraud{
		ID:        fmt.Sprintf("fraud-%s-%s-%.0f", merchant, location, amount),
		UserID:    1000,
		Merchant:  merchant,
		Location:  location,
		Amount:    amount,
		FraudType: "card_testing",
		Timestamp: time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC),
	}
}

func TestLookupNoMatch(t *testing.T) {
	m := NewMatcher([]*domain.HistoricalFraud{
		fraud("RU Store", "RU", 500),
	}, false)

	res := m.Lookup("Amazon", "US", 100)
	if res.Matched {
		t.Error("expected no match for unrelated merchant and location")
	}
	if res.SimilarCount != 0 || res.Confidence != 0 {
		t.Errorf("no-match result = %+v, want zero value", res)
	}
}

func TestLookupMatchesByMerchantOrLocation(t *testing.T) {
	m := NewMatcher([]*domain.HistoricalFraud{
		fraud("RU Store", "RU", 500),
		fraud("Alibaba", "CN", 300),
	}, false)

	t.Run("MerchantOnly", func(t *testing.T) {
		res := m.Lookup("RU Store", "US", 500)
		if !res.Matched || res.SimilarCount != 1 {
			t.Errorf("merchant-only match = %+v, want 1 similar", res)
		}
	})

	t.Run("LocationOnly", func(t *testing.T) {
		res := m.Lookup("Target", "CN", 300)
		if !res.Matched || res.SimilarCount != 1 {
			t.Errorf("location-only match = %+v, want 1 similar", res)
		}
	})

	t.Run("BothNoDoubleCount", func(t *testing.T) {
		res := m.Lookup("RU Store", "RU", 500)
		if res.SimilarCount != 1 {
			t.Errorf("record matching on both attributes counted %d times, want 1", res.SimilarCount)
		}
	})
}

func TestLookupRequireBoth(t *testing.T) {
	m := NewMatcher([]*domain.HistoricalFraud{
		fraud("RU Store", "RU", 500),
	}, true)

	if res := m.Lookup("RU Store", "US", 500); res.Matched {
		t.Error("merchant-only should not match with requireBoth")
	}
	if res := m.Lookup("RU Store", "RU", 500); !res.Matched {
		t.Error("full match should match with requireBoth")
	}
}

func TestLookupConfidenceNeutralCases(t *testing.T) {
	t.Run("SingleRecord", func(t *testing.T) {
		m := NewMatcher([]*domain.HistoricalFraud{
			fraud("RU Store", "RU", 500),
		}, false)
		res := m.Lookup("RU Store", "RU", 9999)
		if res.Confidence != 0.5 {
			t.Errorf("single-record confidence = %.2f, want 0.5", res.Confidence)
		}
	})

	t.Run("ZeroSpread", func(t *testing.T) {
		m := NewMatcher([]*domain.HistoricalFraud{
			fraud("RU Store", "RU", 500),
			fraud("RU Store", "CN", 500),
			fraud("RU Store", "US", 500),
		}, false)
		res := m.Lookup("RU Store", "DE", 500)
		if res.Confidence != 0.5 {
			t.Errorf("identical-amounts confidence = %.2f, want 0.5", res.Confidence)
		}
	})
}

func TestLookupConfidenceFromZScore(t *testing.T) {
	// Amounts 100 and 300: mean 200, population stddev 100.
	m := NewMatcher([]*domain.HistoricalFraud{
		fraud("RU Store", "RU", 100),
		fraud("RU Store", "CN", 300),
	}, false)

	tests := []struct {
		name   string
		amount float64
		want   float64
	}{
		{"AtMean", 200, 1.0},
		{"OneSigma", 300, 1.0 - 1.0/3.0},
		{"TwoSigma", 400, 1.0 - 2.0/3.0},
		{"ThreeSigma", 500, 0.0},
		{"BeyondThreeSigma", 900, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Lookup("RU Store", "XX", tt.amount)
			if math.Abs(res.Confidence-tt.want) > 1e-9 {
				t.Errorf("confidence at %.0f = %.4f, want %.4f", tt.amount, res.Confidence, tt.want)
			}
		})
	}
}

func TestLookupConfidenceMonotonic(t *testing.T) {
	m := NewMatcher([]*domain.HistoricalFraud{
		fraud("RU Store", "RU", 100),
		fraud("RU Store", "CN", 300),
	}, false)

	prev := math.Inf(1)
	for amount := 200.0; amount <= 1000; amount += 50 {
		c := m.Lookup("RU Store", "XX", amount).Confidence
		if c < 0 || c > 1 {
			t.Fatalf("confidence %.4f at %.0f outside [0,1]", c, amount)
		}
		if c > prev {
			t.Fatalf("confidence rose from %.4f to %.4f as amount moved away from mean", prev, c)
		}
		prev = c
	}
}

func TestLookupEmptyCorpus(t *testing.T) {
	m := NewMatcher(nil, false)
	if m.Size() != 0 {
		t.Errorf("Size() = %d, want 0", m.Size())
	}
	if res := m.Lookup("Amazon", "US", 100); res.Matched {
		t.Error("empty corpus should never match")
	}
}
