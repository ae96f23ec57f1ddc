// Package velocity computes per-user transaction velocity.
//
// Two implementations cover the two execution modes. Calculator answers
// point-in-time queries against an immutable transaction snapshot, which
// keeps batch evaluation reproducible: a transaction's velocity reflects
// only activity before it, never transactions scored later in the same
// batch. Counter tracks live velocity through windowed cache counters for
// the online scoring path.
package velocity

import (
	"sort"
	"time"

	"github.com/yusdesign/trier/internal/domain"
)

// Window is a velocity measurement over a time span ending at a reference
// instant.
type Window struct {
	Count  int
	Amount float64
}

type userHistory struct {
	times   []time.Time
	amounts []float64
	// prefix[i] is the sum of amounts[0:i], so a range sum is one subtraction.
	prefix []float64
}

// Calculator answers point-in-time velocity queries against a fixed
// transaction snapshot. Build once per batch; safe for concurrent reads.
type Calculator struct {
	byUser map[int64]*userHistory
}

// NewCalculator indexes the snapshot by user, sorted by timestamp.
func NewCalculator(txs []*domain.Transaction) *Calculator {
	grouped := make(map[int64][]*domain.Transaction)
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		grouped[tx.UserID] = append(grouped[tx.UserID], tx)
	}

	byUser := make(map[int64]*userHistory, len(grouped))
	for userID, group := range grouped {
		sort.Slice(group, func(i, j int) bool {
			return group[i].Timestamp.Before(group[j].Timestamp)
		})

		h := &userHistory{
			times:   make([]time.Time, len(group)),
			amounts: make([]float64, len(group)),
			prefix:  make([]float64, len(group)+1),
		}
		for i, tx := range group {
			h.times[i] = tx.Timestamp
			h.amounts[i] = tx.Amount
			h.prefix[i+1] = h.prefix[i] + tx.Amount
		}
		byUser[userID] = h
	}

	return &Calculator{byUser: byUser}
}

// At returns the user's velocity in the window (asOf-window, asOf].
// The lower bound is exclusive: a transaction exactly at the window edge
// is outside it. The upper bound is inclusive, so the transaction being
// scored counts toward its own velocity; transactions chronologically
// after asOf never do.
func (c *Calculator) At(userID int64, asOf time.Time, window time.Duration) Window {
	h, ok := c.byUser[userID]
	if !ok {
		return Window{}
	}

	cutoff := asOf.Add(-window)

	// First index with timestamp strictly after the cutoff.
	lo := sort.Search(len(h.times), func(i int) bool {
		return h.times[i].After(cutoff)
	})
	// First index with timestamp strictly after asOf.
	hi := sort.Search(len(h.times), func(i int) bool {
		return h.times[i].After(asOf)
	})

	if lo >= hi {
		return Window{}
	}
	return Window{
		Count:  hi - lo,
		Amount: h.prefix[hi] - h.prefix[lo],
	}
}

// Users returns the number of distinct users in the snapshot.
func (c *Calculator) Users() int {
	return len(c.byUser)
}
