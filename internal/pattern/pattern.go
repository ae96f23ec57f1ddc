// Package pattern provides the merchant/location risk rating table.
//
// The table encodes domain knowledge (a merchant operating in an implausible
// country scores high) and is data-driven: entries load from YAML without
// code changes. Lookup is total — every pair resolves to a rating through
// the fallback chain, and no lookup ever fails.
package pattern

import (
	"sync"

	"github.com/yusdesign/trier/internal/domain"
)

// Key identifies a merchant/location pair.
type Key struct {
	Merchant string
	Location string
}

// GlobalDefaultRating applies when neither the table nor the location
// defaults know anything about a pair.
const GlobalDefaultRating = 30

// DefaultExpectedAmount applies to pairs without an expected-amount entry.
const DefaultExpectedAmount = 100

// Table is an immutable rating lookup built at startup. Reads are safe for
// concurrent use; Reload swaps the whole table atomically.
type Table struct {
	mu               sync.RWMutex
	ratings          map[Key]int
	merchantWildcard map[string]int
	locationDefaults map[string]int
	defaultRating    int
	expected         map[Key]float64
	defaultExpected  float64
}

// Data is the raw form of a pattern table, as loaded from YAML or built in.
type Data struct {
	Ratings          []RatingEntry   `yaml:"ratings"`
	LocationDefaults map[string]int  `yaml:"locationDefaults"`
	DefaultRating    int             `yaml:"defaultRating"`
	ExpectedAmounts  []ExpectedEntry `yaml:"expectedAmounts"`
	DefaultExpected  float64         `yaml:"defaultExpected"`
}

// RatingEntry is one (merchant, location) → rating row.
type RatingEntry struct {
	Merchant string `yaml:"merchant"`
	Location string `yaml:"location"`
	Rating   int    `yaml:"rating"`
}

// ExpectedEntry is one (merchant, location) → typical amount row.
type ExpectedEntry struct {
	Merchant string  `yaml:"merchant"`
	Location string  `yaml:"location"`
	Amount   float64 `yaml:"amount"`
}

// New builds a table from raw data. Entries keyed at location "Unknown"
// double as the merchant wildcard in the fallback chain.
func New(data Data) *Table {
	t := &Table{}
	t.load(data)
	return t
}

// Default returns the built-in table.
func Default() *Table {
	return New(DefaultData())
}

func (t *Table) load(data Data) {
	ratings := make(map[Key]int, len(data.Ratings))
	wildcard := make(map[string]int)
	for _, e := range data.Ratings {
		ratings[Key{e.Merchant, e.Location}] = clampRating(e.Rating)
		if e.Location == domain.LocationUnknown {
			wildcard[e.Merchant] = clampRating(e.Rating)
		}
	}

	locDefaults := make(map[string]int, len(data.LocationDefaults))
	for loc, r := range data.LocationDefaults {
		locDefaults[loc] = clampRating(r)
	}

	defaultRating := data.DefaultRating
	if defaultRating == 0 {
		defaultRating = GlobalDefaultRating
	}

	expected := make(map[Key]float64, len(data.ExpectedAmounts))
	for _, e := range data.ExpectedAmounts {
		expected[Key{e.Merchant, e.Location}] = e.Amount
	}

	defaultExpected := data.DefaultExpected
	if defaultExpected == 0 {
		defaultExpected = DefaultExpectedAmount
	}

	t.mu.Lock()
	t.ratings = ratings
	t.merchantWildcard = wildcard
	t.locationDefaults = locDefaults
	t.defaultRating = clampRating(defaultRating)
	t.expected = expected
	t.defaultExpected = defaultExpected
	t.mu.Unlock()
}

// Rating resolves the risk rating for a merchant/location pair.
// Fallback order: exact match, merchant wildcard (location "Unknown"),
// location default, global default. First match wins.
func (t *Table) Rating(merchant, location string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if r, ok := t.ratings[Key{merchant, location}]; ok {
		return r
	}
	if r, ok := t.merchantWildcard[merchant]; ok {
		return r
	}
	if r, ok := t.locationDefaults[location]; ok {
		return r
	}
	return t.defaultRating
}

// ExpectedAmount returns the typical transaction amount for a pair,
// falling back to the default when the pair is unknown.
func (t *Table) ExpectedAmount(merchant, location string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if a, ok := t.expected[Key{merchant, location}]; ok {
		return a
	}
	return t.defaultExpected
}

// Reload replaces the table contents atomically. In-flight lookups finish
// against the old data; a batch in progress keeps its snapshot semantics
// because each batch captures the table once at start.
func (t *Table) Reload(data Data) {
	t.load(data)
}

// Size returns the number of exact rating entries loaded.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ratings)
}

func clampRating(r int) int {
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}
