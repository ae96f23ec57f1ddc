package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yusdesign/trier/internal/bus"
	"github.com/yusdesign/trier/internal/cache"
	"github.com/yusdesign/trier/internal/domain"
	"github.com/yusdesign/trier/internal/pattern"
	"github.com/yusdesign/trier/internal/repository"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	f, err := os.CreateTemp("", "trier-worker-*.db")
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
	users := []*domain.UserProfile{
		{UserID: 7, AccountAgeDays: 400, RiskScore: 0.1},
		{UserID: 8, AccountAgeDays: 30, RiskScore: 0.9},
	}
	for _, u := range users {
		if err := repo.SaveUserProfile(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	return repo
}

func newTestWorker(t *testing.T, eventBus domain.EventBus, repo domain.Repository) *Worker {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWorker(eventBus, repo, cache.NewLRUCache(100), pattern.Default(), nil,
		domain.DefaultScoringConfig(), domain.MatcherConfig{}, logger)
}

func TestWorkerStartAndStop(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w := newTestWorker(t, eventBus, newTestRepo(t))

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stats := w.GetStats()
	if stats.SubscriptionCount != 1 {
		t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
	}
	if len(stats.Topics) != 1 || stats.Topics[0] != domain.TopicTransactionIngested {
		t.Errorf("expected ingest topic subscription, got %v", stats.Topics)
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	stats = w.GetStats()
	if stats.SubscriptionCount != 0 {
		t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
	}
}

func TestWorkerProcessTransaction(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	repo := newTestRepo(t)
	w := newTestWorker(t, eventBus, repo)

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	var scoredReceived atomic.Bool
	var scoredPayload atomic.Pointer[[]byte]

	ctx := context.Background()
	eventBus.Subscribe(ctx, domain.TopicTransactionScored, func(ctx context.Context, msg *domain.Message) error {
		payload := msg.Payload
		scoredPayload.Store(&payload)
		scoredReceived.Store(true)
		return nil
	})

	// Allow subscriptions to be active
	time.Sleep(50 * time.Millisecond)

	tx := &domain.Transaction{
		ID:        "TX_ASYNC_1",
		UserID:    7,
		Amount:    50,
		Merchant:  "Amazon",
		Location:  "US",
		Timestamp: time.Now().UTC(),
	}
	payload, _ := json.Marshal(tx)
	if err := eventBus.Publish(ctx, domain.TopicTransactionIngested, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !scoredReceived.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !scoredReceived.Load() {
		t.Fatal("timeout waiting for scored event")
	}

	var res domain.ScoringResult
	if err := json.Unmarshal(*scoredPayload.Load(), &res); err != nil {
		t.Fatalf("failed to parse scored event: %v", err)
	}
	if res.TransactionID != "TX_ASYNC_1" {
		t.Errorf("expected TX_ASYNC_1, got %s", res.TransactionID)
	}
	if res.RiskLevel != domain.RiskLow {
		t.Errorf("expected LOW, got %s", res.RiskLevel)
	}

	// Result must be persisted
	saved, err := repo.GetResultByTransaction(ctx, "TX_ASYNC_1")
	if err != nil {
		t.Fatalf("expected persisted result: %v", err)
	}
	if saved.RiskScore != res.RiskScore {
		t.Errorf("persisted score %.1f differs from event score %.1f", saved.RiskScore, res.RiskScore)
	}
}

func TestWorkerPublishesAlerts(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w := newTestWorker(t, eventBus, newTestRepo(t))

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	var alertReceived atomic.Bool

	ctx := context.Background()
	eventBus.Subscribe(ctx, domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
		alertReceived.Store(true)
		return nil
	})

	time.Sleep(50 * time.Millisecond)

	// Unknown Store in RU at a high amount for a risky user: rating 98
	// contributes 49, amount above expectation 15, user prior 10.
	tx := &domain.Transaction{
		ID:        "TX_ASYNC_ALERT",
		UserID:    8,
		Amount:    2000,
		Merchant:  "Unknown Store",
		Location:  "RU",
		Timestamp: time.Now().UTC(),
	}
	payload, _ := json.Marshal(tx)
	if err := eventBus.Publish(ctx, domain.TopicTransactionIngested, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !alertReceived.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !alertReceived.Load() {
		t.Fatal("timeout waiting for alert event")
	}
}

func TestWorkerSkipsUnknownUser(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	repo := newTestRepo(t)
	w := newTestWorker(t, eventBus, repo)

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	var scoredReceived atomic.Bool

	ctx := context.Background()
	eventBus.Subscribe(ctx, domain.TopicTransactionScored, func(ctx context.Context, msg *domain.Message) error {
		scoredReceived.Store(true)
		return nil
	})

	time.Sleep(50 * time.Millisecond)

	tx := &domain.Transaction{
		ID:        "TX_ASYNC_NOUSER",
		UserID:    999,
		Amount:    100,
		Merchant:  "Amazon",
		Location:  "US",
		Timestamp: time.Now().UTC(),
	}
	payload, _ := json.Marshal(tx)
	eventBus.Publish(ctx, domain.TopicTransactionIngested, payload)

	time.Sleep(200 * time.Millisecond)

	if scoredReceived.Load() {
		t.Error("expected no scored event for unknown user")
	}
	if _, err := repo.GetResultByTransaction(ctx, "TX_ASYNC_NOUSER"); err == nil {
		t.Error("expected no persisted result for unknown user")
	}
}
