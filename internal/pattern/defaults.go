package pattern

// DefaultData returns the built-in pattern table. The entries encode the
// cross-border merchant knowledge the engine ships with; deployments
// override them with a YAML file.
func DefaultData() Data {
	return Data{
		Ratings: []RatingEntry{
			// Russian merchants
			{"RU Store", "RU", 95},
			{"RU Store", "CN", 92},
			{"RU Store", "US", 80},
			{"RU Store", "UK", 80},
			{"RU Store", "DE", 75},

			// Russian marketplaces
			{"Yandex Market", "RU", 70},
			{"Yandex Market", "CN", 90},
			{"Yandex", "CN", 90},
			{"Ozon", "RU", 65},
			{"Ozon", "CN", 85},
			{"Wildberries", "RU", 60},
			{"Wildberries", "CN", 85},

			// Chinese merchants
			{"CN Store", "CN", 90},
			{"CN Store", "RU", 92},
			{"CN Store", "US", 75},
			{"CN Store", "UK", 75},

			// Chinese marketplaces
			{"Alibaba", "CN", 60},
			{"Alibaba", "RU", 88},
			{"Alibaba", "US", 70},
			{"JD.com", "CN", 55},
			{"JD.com", "RU", 80},
			{"Taobao", "CN", 65},
			{"Taobao", "RU", 85},

			// Amazon in plausible locations
			{"Amazon", "US", 10},
			{"Amazon", "UK", 15},
			{"Amazon", "CA", 15},
			{"Amazon", "DE", 20},
			{"Amazon", "FR", 20},
			{"Amazon", "JP", 25},

			// Amazon in unexpected places
			{"Amazon", "RU", 85},
			{"Amazon", "CN", 80},
			{"Amazon", "IN", 45},
			{"Amazon", "BR", 50},
			{"Amazon", "NG", 95},
			{"Amazon", "Unknown", 70},

			// Walmart
			{"Walmart", "US", 5},
			{"Walmart", "CA", 10},
			{"Walmart", "MX", 15},
			{"Walmart", "RU", 90},
			{"Walmart", "CN", 90},
			{"Walmart", "UK", 60},
			{"Walmart", "DE", 75},
			{"Walmart", "JP", 80},
			{"Walmart", "Unknown", 65},

			// Unknown merchants are the highest-risk bucket
			{"Unknown Store", "RU", 98},
			{"Unknown Store", "CN", 95},
			{"Unknown Store", "NG", 98},
			{"Unknown Store", "BR", 70},
			{"Unknown Store", "IN", 65},
			{"Unknown Store", "US", 50},
			{"Unknown Store", "UK", 55},
		},
		LocationDefaults: map[string]int{
			"US": 10, "UK": 15, "CA": 15, "AU": 20,
			"DE": 20, "FR": 20, "JP": 25, "KR": 25,
			"IN": 35, "BR": 40, "MX": 35,
			"RU": 70,
			"CN": 68,
			"NG": 85, "KE": 75, "ZA": 60,
			"Unknown": 50,
		},
		DefaultRating: GlobalDefaultRating,
		ExpectedAmounts: []ExpectedEntry{
			{"Amazon", "US", 150},
			{"Amazon", "UK", 130},
			{"Walmart", "US", 100},
			{"Walmart", "CA", 90},
			{"RU Store", "RU", 200},
			{"CN Store", "CN", 180},
			{"Unknown Store", "RU", 150},
			{"Unknown Store", "CN", 150},
		},
		DefaultExpected: DefaultExpectedAmount,
	}
}
