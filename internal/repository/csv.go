package repository

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yusdesign/trier/internal/domain"
)

// CSV loaders for the legacy dataset layout. Column lookup is by header
// name, so extra columns and reordering are tolerated. Malformed rows are
// skipped, matching how batch scoring treats malformed transactions.

// LoadTransactionsCSV reads a transaction snapshot from a CSV file.
//
// Recognized columns: transaction_id (or id), user_id, amount, merchant,
// location, device_id, timestamp (RFC 3339), is_actual_fraud (or is_fraud).
func LoadTransactionsCSV(path string) ([]*domain.Transaction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transactions csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	cols, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	var txs []*domain.Transaction
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		id := cols.get(record, "transaction_id")
		if id == "" {
			id = cols.get(record, "id")
		}
		userID, err := strconv.ParseInt(cols.get(record, "user_id"), 10, 64)
		if err != nil {
			continue
		}
		amount, err := strconv.ParseFloat(cols.get(record, "amount"), 64)
		if err != nil {
			continue
		}
		ts, err := parseTime(cols.get(record, "timestamp"))
		if err != nil {
			continue
		}

		location := cols.get(record, "location")
		if location == "" {
			location = domain.LocationUnknown
		}

		tx := &domain.Transaction{
			ID:        id,
			UserID:    userID,
			Amount:    amount,
			Merchant:  cols.get(record, "merchant"),
			Location:  location,
			DeviceID:  cols.get(record, "device_id"),
			Timestamp: ts,
		}

		if label := cols.get(record, "is_actual_fraud"); label != "" {
			b := parseBool(label)
			tx.IsFraud = &b
		} else if label := cols.get(record, "is_fraud"); label != "" {
			b := parseBool(label)
			tx.IsFraud = &b
		}

		txs = append(txs, tx)
	}
	return txs, nil
}

// LoadHistoricalFraudsCSV reads a fraud corpus from a CSV file.
//
// Recognized columns: transaction_id (or id), user_id, amount, merchant,
// location, device_id, fraud_type, timestamp.
func LoadHistoricalFraudsCSV(path string) ([]*domain.HistoricalFraud, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frauds csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	cols, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	var recs []*domain.HistoricalFraud
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		id := cols.get(record, "transaction_id")
		if id == "" {
			id = cols.get(record, "id")
		}
		amount, err := strconv.ParseFloat(cols.get(record, "amount"), 64)
		if err != nil {
			continue
		}
		ts, err := parseTime(cols.get(record, "timestamp"))
		if err != nil {
			continue
		}
		userID, _ := strconv.ParseInt(cols.get(record, "user_id"), 10, 64)

		recs = append(recs, &domain.HistoricalFraud{
			ID:        id,
			UserID:    userID,
			Merchant:  cols.get(record, "merchant"),
			Location:  cols.get(record, "location"),
			Amount:    amount,
			DeviceID:  cols.get(record, "device_id"),
			FraudType: cols.get(record, "fraud_type"),
			Timestamp: ts,
		})
	}
	return recs, nil
}

type columns map[string]int

func readHeader(reader *csv.Reader) (columns, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	cols := make(columns, len(header))
	for i, col := range header {
		cols[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return cols, nil
}

func (c columns) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "t", "yes":
		return true
	}
	return false
}
