package pattern

import "strings"

// Category classifies a merchant/location pair for the bonus rules and
// batch statistics. Values are stable identifiers, not display strings.
type Category string

const (
	CategoryNormal Category = "normal"

	CategoryRUDomestic   Category = "ru_domestic"
	CategoryRUSuspicious Category = "ru_international_suspicious"
	CategoryRUOther      Category = "ru_other"

	CategoryCNDomestic   Category = "cn_domestic"
	CategoryCNSuspicious Category = "cn_international_suspicious"
	CategoryCNOther      Category = "cn_other"

	CategoryAmazonNormal   Category = "amazon_normal"
	CategoryAmazonUnusual  Category = "amazon_unusual"
	CategoryWalmartNormal  Category = "walmart_normal"
	CategoryWalmartUnusual Category = "walmart_unusual"
)

var (
	ruMerchants = []string{"RU Store", "Yandex", "Ozon", "Wildberries", "Kaspersky", "Mail.ru"}
	cnMerchants = []string{"CN Store", "Alibaba", "JD.com", "Taobao", "Baidu", "Tencent"}

	ruSuspiciousLocations = map[string]bool{"CN": true, "US": true, "UK": true, "DE": true}
	cnSuspiciousLocations = map[string]bool{"RU": true, "US": true, "UK": true, "JP": true}

	retailerNormalLocations = map[string]bool{"US": true, "CA": true, "UK": true, "DE": true, "FR": true, "JP": true}
)

// Categorize assigns a pattern category to a merchant/location pair.
func Categorize(merchant, location string) Category {
	switch {
	case containsAny(merchant, ruMerchants):
		if location == "RU" {
			return CategoryRUDomestic
		}
		if ruSuspiciousLocations[location] {
			return CategoryRUSuspicious
		}
		return CategoryRUOther

	case containsAny(merchant, cnMerchants):
		if location == "CN" {
			return CategoryCNDomestic
		}
		if cnSuspiciousLocations[location] {
			return CategoryCNSuspicious
		}
		return CategoryCNOther

	case merchant == "Amazon":
		if retailerNormalLocations[location] {
			return CategoryAmazonNormal
		}
		return CategoryAmazonUnusual

	case merchant == "Walmart":
		if retailerNormalLocations[location] {
			return CategoryWalmartNormal
		}
		return CategoryWalmartUnusual
	}

	return CategoryNormal
}

// IsCrossBorderSuspicious reports whether the category is a merchant
// operating outside its home market in a suspicious location.
func (c Category) IsCrossBorderSuspicious() bool {
	return c == CategoryRUSuspicious || c == CategoryCNSuspicious
}

// IsUnusualRetailer reports whether the category is a global retailer in
// an implausible location.
func (c Category) IsUnusualRetailer() bool {
	return c == CategoryAmazonUnusual || c == CategoryWalmartUnusual
}

func containsAny(merchant string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(merchant, n) {
			return true
		}
	}
	return false
}
