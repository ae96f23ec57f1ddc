// Benchmark tool for offline batch evaluation against labeled data.
//
// Usage:
//   go run cmd/benchmark/main.go -transactions txs.csv -frauds frauds.csv
//   go run cmd/benchmark/main.go -generate 5000 -seed 42
//
// This tool:
//  1. Loads labeled transactions and a fraud corpus from CSV, or
//     generates a synthetic dataset
//  2. Runs the batch evaluator directly (no HTTP round trips)
//  3. Compares HIGH classifications with actual fraud labels
//  4. Prints the confusion matrix, precision, recall and F1-score
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/yusdesign/trier/internal/batch"
	"github.com/yusdesign/trier/internal/domain"
	"github.com/yusdesign/trier/internal/pattern"
	"github.com/yusdesign/trier/internal/repository"
)

func main() {
	txPath := flag.String("transactions", "", "Path to labeled transactions CSV")
	fraudPath := flag.String("frauds", "", "Path to historical fraud corpus CSV")
	generate := flag.Int("generate", 0, "Generate N synthetic transactions instead of loading CSV")
	userCount := flag.Int("users", 100, "Number of synthetic user profiles")
	seed := flag.Int64("seed", 42, "Seed for synthetic data generation")
	workers := flag.Int("workers", 8, "Number of concurrent scoring workers")
	patternFile := flag.String("pattern-file", "", "Optional YAML pattern table")
	dbPath := flag.String("db", "", "Optional SQLite path to persist results")
	verbose := flag.Bool("verbose", false, "Print each alert")
	flag.Parse()

	if *txPath == "" && *generate == 0 {
		fmt.Println("Usage: benchmark -transactions txs.csv [-frauds frauds.csv]")
		fmt.Println("       benchmark -generate 5000 [-seed 42]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Scoring output goes to stdout; keep the log stream out of the way.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	patterns := pattern.Default()
	if *patternFile != "" {
		data, err := pattern.LoadFile(*patternFile)
		if err != nil {
			fmt.Printf("ERROR: failed to load pattern file: %v\n", err)
			os.Exit(1)
		}
		patterns.Reload(data)
		fmt.Printf("Pattern table loaded from %s (%d entries)\n", *patternFile, patterns.Size())
	}

	in, err := loadInput(*txPath, *fraudPath, *generate, *userCount, *seed)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}

	labeled, fraudCount := countLabels(in.Transactions)
	fmt.Printf("\nDataset: %d transactions, %d users, %d fraud corpus records\n",
		len(in.Transactions), len(in.Users), len(in.Frauds))
	if labeled > 0 {
		fmt.Printf("Labels:  %d labeled, %d fraud (%.2f%%)\n",
			labeled, fraudCount, 100*float64(fraudCount)/float64(labeled))
	}

	evaluator := batch.NewEvaluator(patterns, nil, domain.DefaultScoringConfig(), domain.MatcherConfig{}, *workers, logger)

	fmt.Printf("\nEvaluating with %d workers...\n", *workers)
	start := time.Now()
	report, err := evaluator.Evaluate(context.Background(), in)
	if err != nil {
		fmt.Printf("ERROR: evaluation failed: %v\n", err)
		os.Exit(1)
	}
	duration := time.Since(start)

	printReport(report, duration)

	if *verbose {
		printAlerts(report, in.Transactions)
	}

	if *dbPath != "" {
		if err := persist(report, in, *dbPath); err != nil {
			fmt.Printf("ERROR: failed to persist results: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nResults persisted to %s\n", *dbPath)
	}
}

// loadInput assembles the batch input from CSV files or the synthetic
// generators.
func loadInput(txPath, fraudPath string, generate, userCount int, seed int64) (batch.Input, error) {
	var in batch.Input

	if generate > 0 {
		now := time.Now().UTC()
		in.Transactions = repository.GenerateTransactions(generate, userCount, now, seed)
		in.Users = repository.GenerateUserProfiles(userCount, seed+1)
		in.Frauds = repository.GenerateHistoricalFrauds(generate/10+1, userCount, now, seed+2)
		fmt.Printf("Generated %d transactions with seed %d\n", generate, seed)
		return in, nil
	}

	txs, err := repository.LoadTransactionsCSV(txPath)
	if err != nil {
		return in, fmt.Errorf("failed to load transactions: %w", err)
	}
	in.Transactions = txs
	fmt.Printf("Loaded %d transactions from %s\n", len(txs), txPath)

	if fraudPath != "" {
		frauds, err := repository.LoadHistoricalFraudsCSV(fraudPath)
		if err != nil {
			return in, fmt.Errorf("failed to load fraud corpus: %w", err)
		}
		in.Frauds = frauds
		fmt.Printf("Loaded %d fraud corpus records from %s\n", len(frauds), fraudPath)
	}

	// CSV datasets carry no user table; synthesize a neutral profile per
	// distinct user so the user-prior rule stays silent.
	seen := make(map[int64]bool)
	for _, tx := range txs {
		if tx == nil || seen[tx.UserID] {
			continue
		}
		seen[tx.UserID] = true
		in.Users = append(in.Users, &domain.UserProfile{
			UserID:         tx.UserID,
			AccountAgeDays: 365,
			RiskScore:      0.1,
		})
	}

	return in, nil
}

func countLabels(txs []*domain.Transaction) (labeled, fraud int) {
	for _, tx := range txs {
		if tx == nil || tx.IsFraud == nil {
			continue
		}
		labeled++
		if *tx.IsFraud {
			fraud++
		}
	}
	return labeled, fraud
}

func printReport(r *domain.BatchReport, duration time.Duration) {
	fmt.Println("\n=============== BENCHMARK RESULTS ===============")

	fmt.Println("\nSCORING")
	fmt.Printf("   Scored:       %d\n", len(r.Results))
	fmt.Printf("   Alerts:       %d\n", len(r.Alerts))
	fmt.Printf("   Failures:     %d\n", len(r.Failures))
	fmt.Printf("   Duration:     %v (%.0f tx/sec)\n", duration.Round(time.Millisecond), rate(len(r.Results), duration))

	fmt.Println("\nRISK DISTRIBUTION")
	fmt.Printf("   High:         %d\n", r.Stats.TotalHighRisk)
	fmt.Printf("   Medium:       %d\n", r.Stats.TotalMediumRisk)
	fmt.Printf("   Low:          %d\n", r.Stats.TotalLowRisk)

	fmt.Println("\nPATTERNS")
	fmt.Printf("   RU patterns:      %d\n", r.Stats.RUPatterns)
	fmt.Printf("   CN patterns:      %d\n", r.Stats.CNPatterns)
	fmt.Printf("   Amazon unusual:   %d\n", r.Stats.AmazonUnusual)
	fmt.Printf("   Walmart unusual:  %d\n", r.Stats.WalmartUnusual)

	m := r.Metrics
	if m == nil {
		fmt.Println("\nNo ground-truth labels in dataset; skipping detection metrics.")
		return
	}

	trueNegatives := m.Labeled - m.TruePositives - m.FalsePositives - m.FalseNegatives

	fmt.Println("\nCONFUSION MATRIX")
	fmt.Println("                      Predicted")
	fmt.Println("                  HIGH        not HIGH")
	fmt.Println("            +----------+----------+")
	fmt.Printf("   Fraud    | %8d | %8d |  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("            +----------+----------+")
	fmt.Printf("   Legit    | %8d | %8d |  (FP, TN)\n", m.FalsePositives, trueNegatives)
	fmt.Println("            +----------+----------+")

	fmt.Println("\nDETECTION METRICS")
	fmt.Printf("   Precision:    %.4f\n", m.Precision)
	fmt.Printf("   Recall:       %.4f\n", m.Recall)
	fmt.Printf("   F1-Score:     %.4f\n", m.F1)
}

func printAlerts(r *domain.BatchReport, txs []*domain.Transaction) {
	byID := make(map[string]*domain.Transaction, len(txs))
	for _, tx := range txs {
		if tx != nil {
			byID[tx.ID] = tx
		}
	}

	fmt.Println("\nALERTS")
	for _, res := range r.Alerts {
		tx := byID[res.TransactionID]
		if tx == nil {
			continue
		}
		fmt.Printf("   %-12s | %-14s | %-8s | $%10.2f | score %5.1f | %v\n",
			res.TransactionID, tx.Merchant, tx.Location, tx.Amount, res.RiskScore, res.RulesTriggered)
	}
}

func rate(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

// persist saves the evaluated dataset and its results to a SQLite file.
func persist(r *domain.BatchReport, in batch.Input, path string) error {
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: path,
	})
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := context.Background()
	for _, tx := range in.Transactions {
		if tx == nil {
			continue
		}
		if err := repo.SaveTransaction(ctx, tx); err != nil {
			return err
		}
	}
	for _, u := range in.Users {
		if err := repo.SaveUserProfile(ctx, u); err != nil {
			return err
		}
	}
	for _, f := range in.Frauds {
		if err := repo.SaveHistoricalFraud(ctx, f); err != nil {
			return err
		}
	}
	for _, res := range r.Results {
		if err := repo.SaveResult(ctx, res); err != nil {
			return err
		}
	}
	return nil
}
