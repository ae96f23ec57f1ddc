package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/yusdesign/trier/internal/bus"
	"github.com/yusdesign/trier/internal/cache"
	"github.com/yusdesign/trier/internal/domain"
	"github.com/yusdesign/trier/internal/pattern"
	"github.com/yusdesign/trier/internal/repository"
	"github.com/yusdesign/trier/internal/rules"
)

// createTestServer wires a server against a temporary SQLite database,
// an in-memory cache and the channel bus.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	f, err := os.CreateTemp("", "trier-api-*.db")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: f.Name(),
	})
	if err != nil {
		t.Fatalf("repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	if err := repo.SaveUserProfile(ctx, &domain.UserProfile{
		UserID:         7,
		AccountAgeDays: 400,
		RiskScore:      0.1,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	engine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("rules engine: %v", err)
	}

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	cfg := domain.DefaultConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewServer(cfg, repo, cache.NewLRUCache(100), eventBus, pattern.Default(), engine, "test-v1", logger)
}

func postJSON(t *testing.T, server *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, server *Server, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestScoreEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("LowRiskTransaction", func(t *testing.T) {
		rr := postJSON(t, server, "/score", domain.ScoreRequest{
			ID:       "TX_LOW",
			UserID:   7,
			Amount:   50,
			Merchant: "Amazon",
			Location: "US",
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var res domain.ScoringResult
		if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if res.ID == "" {
			t.Error("expected result id in response")
		}
		if res.RiskScore != 5 {
			t.Errorf("expected score 5, got %.1f", res.RiskScore)
		}
		if res.RiskLevel != domain.RiskLow {
			t.Errorf("expected LOW, got %s", res.RiskLevel)
		}
		if res.Action != domain.ActionAllow {
			t.Errorf("expected ALLOW, got %s", res.Action)
		}
	})

	t.Run("RiskyTransaction", func(t *testing.T) {
		rr := postJSON(t, server, "/score", domain.ScoreRequest{
			ID:       "TX_RISKY",
			UserID:   7,
			Amount:   1500,
			Merchant: "RU Store",
			Location: "RU",
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var res domain.ScoringResult
		if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		// Pattern rating 95 contributes 47.5, amount above expectation 15.
		if res.RiskScore != 62.5 {
			t.Errorf("expected score 62.5, got %.1f", res.RiskScore)
		}
		if res.RiskLevel != domain.RiskMedium {
			t.Errorf("expected MEDIUM, got %s", res.RiskLevel)
		}

		found := false
		for _, tag := range res.RulesTriggered {
			if tag == "HIGH_RISK_PATTERN:RU Store-RU" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected HIGH_RISK_PATTERN tag, got %v", res.RulesTriggered)
		}
	})

	t.Run("CachedResult", func(t *testing.T) {
		first := postJSON(t, server, "/score", domain.ScoreRequest{
			ID:       "TX_CACHED",
			UserID:   7,
			Amount:   25,
			Merchant: "Walmart",
			Location: "US",
		})
		if first.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", first.Code)
		}

		second := postJSON(t, server, "/score", domain.ScoreRequest{
			ID:       "TX_CACHED",
			UserID:   7,
			Amount:   25,
			Merchant: "Walmart",
			Location: "US",
		})
		if second.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", second.Code)
		}

		var res1, res2 domain.ScoringResult
		json.Unmarshal(first.Body.Bytes(), &res1)
		json.Unmarshal(second.Body.Bytes(), &res2)

		if res1.ID != res2.ID {
			t.Errorf("expected cached result on rescore, got %s and %s", res1.ID, res2.ID)
		}
	})

	t.Run("UnknownUser", func(t *testing.T) {
		rr := postJSON(t, server, "/score", domain.ScoreRequest{
			ID:       "TX_NOUSER",
			UserID:   999,
			Amount:   100,
			Merchant: "Amazon",
			Location: "US",
		})

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/score", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidTimestamp", func(t *testing.T) {
		rr := postJSON(t, server, "/score", domain.ScoreRequest{
			ID:        "TX_BADTS",
			UserID:    7,
			Amount:    100,
			Merchant:  "Amazon",
			Location:  "US",
			Timestamp: "yesterday",
		})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestScoreBatchEndpoint(t *testing.T) {
	server := createTestServer(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("OrderPreserved", func(t *testing.T) {
		req := BatchRequest{
			Transactions: []*domain.Transaction{
				{ID: "tx-1", UserID: 1, Amount: 50, Merchant: "Amazon", Location: "US", Timestamp: now},
				{ID: "tx-2", UserID: 1, Amount: 30, Merchant: "Walmart", Location: "US", Timestamp: now.Add(time.Minute)},
				{ID: "tx-3", UserID: 1, Amount: 20, Merchant: "Target", Location: "US", Timestamp: now.Add(2 * time.Minute)},
			},
			Users: []*domain.UserProfile{
				{UserID: 1, AccountAgeDays: 100, RiskScore: 0.1},
			},
		}

		rr := postJSON(t, server, "/score/batch", req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var report domain.BatchReport
		if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
			t.Fatalf("failed to parse report: %v", err)
		}

		if len(report.Results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(report.Results))
		}
		for i, want := range []string{"tx-1", "tx-2", "tx-3"} {
			if report.Results[i].TransactionID != want {
				t.Errorf("result %d: expected %s, got %s", i, want, report.Results[i].TransactionID)
			}
		}
	})

	t.Run("UsersFallBackToRepository", func(t *testing.T) {
		// User 7 is seeded in the repository; no inline users supplied.
		req := BatchRequest{
			Transactions: []*domain.Transaction{
				{ID: "tx-repo-user", UserID: 7, Amount: 40, Merchant: "Amazon", Location: "US", Timestamp: now},
			},
		}

		rr := postJSON(t, server, "/score/batch", req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var report domain.BatchReport
		json.Unmarshal(rr.Body.Bytes(), &report)

		if len(report.Results) != 1 {
			t.Fatalf("expected 1 result, got %d (failures: %v)", len(report.Results), report.Failures)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/score/batch", bytes.NewBufferString("{"))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestResultRetrieval(t *testing.T) {
	server := createTestServer(t)

	score := postJSON(t, server, "/score", domain.ScoreRequest{
		ID:       "TX_LOOKUP",
		UserID:   7,
		Amount:   75,
		Merchant: "Amazon",
		Location: "US",
	})
	if score.Code != http.StatusOK {
		t.Fatalf("scoring failed: %d %s", score.Code, score.Body.String())
	}

	var scored domain.ScoringResult
	json.Unmarshal(score.Body.Bytes(), &scored)

	t.Run("GetResult", func(t *testing.T) {
		rr := get(t, server, "/results/"+scored.ID)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var res domain.ScoringResult
		json.Unmarshal(rr.Body.Bytes(), &res)
		if res.TransactionID != "TX_LOOKUP" {
			t.Errorf("expected TX_LOOKUP, got %s", res.TransactionID)
		}
	})

	t.Run("GetResultNotFound", func(t *testing.T) {
		rr := get(t, server, "/results/no-such-result")
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("GetTransaction", func(t *testing.T) {
		rr := get(t, server, "/transactions/TX_LOOKUP")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var tx domain.Transaction
		json.Unmarshal(rr.Body.Bytes(), &tx)
		if tx.Merchant != "Amazon" {
			t.Errorf("expected Amazon, got %s", tx.Merchant)
		}
	})

	t.Run("GetTransactionResult", func(t *testing.T) {
		rr := get(t, server, "/transactions/TX_LOOKUP/result")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var res domain.ScoringResult
		json.Unmarshal(rr.Body.Bytes(), &res)
		if res.TransactionID != "TX_LOOKUP" {
			t.Errorf("expected TX_LOOKUP, got %s", res.TransactionID)
		}
	})

	t.Run("ListAlerts", func(t *testing.T) {
		rr := get(t, server, "/alerts")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestPatternEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("Rating", func(t *testing.T) {
		rr := get(t, server, "/patterns/rating?merchant=RU+Store&location=RU")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Rating         int     `json:"rating"`
			ExpectedAmount float64 `json:"expectedAmount"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp.Rating != 95 {
			t.Errorf("expected rating 95, got %d", resp.Rating)
		}
		if resp.ExpectedAmount != 200 {
			t.Errorf("expected amount 200, got %.0f", resp.ExpectedAmount)
		}
	})

	t.Run("RatingDefaultsLocation", func(t *testing.T) {
		rr := get(t, server, "/patterns/rating?merchant=Amazon")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Location string `json:"location"`
			Rating   int    `json:"rating"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp.Location != domain.LocationUnknown {
			t.Errorf("expected Unknown location, got %s", resp.Location)
		}
		if resp.Rating != 70 {
			t.Errorf("expected rating 70, got %d", resp.Rating)
		}
	})

	t.Run("RatingRequiresMerchant", func(t *testing.T) {
		rr := get(t, server, "/patterns/rating")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ReloadWithoutFile", func(t *testing.T) {
		rr := postJSON(t, server, "/patterns/reload", map[string]string{})
		if rr.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rr.Code)
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CreateRule", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", CreateRuleRequest{
			ID:         "very-large-amount",
			Name:       "Very Large Amount",
			Expression: "amount > 10000.0",
			Tag:        "VERY_LARGE_AMOUNT",
			Weight:     25,
			Enabled:    true,
		})

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("CreateRuleInvalidExpression", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", CreateRuleRequest{
			ID:         "broken",
			Name:       "Broken",
			Expression: "amount >",
			Tag:        "BROKEN",
			Weight:     1,
			Enabled:    true,
		})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("CreateRuleMissingFields", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", CreateRuleRequest{
			ID: "incomplete",
		})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ReloadRules", func(t *testing.T) {
		rr := postJSON(t, server, "/rules/reload", map[string]string{})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 rule reloaded, got %d", resp.Count)
		}
	})

	t.Run("ListRules", func(t *testing.T) {
		rr := get(t, server, "/rules")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 loaded rule, got %d", resp.Count)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("Health", func(t *testing.T) {
		rr := get(t, server, "/health")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["status"] != "healthy" {
			t.Errorf("expected healthy, got %s", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp["version"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		rr := get(t, server, "/ready")
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		rr := get(t, server, "/metrics")
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}
