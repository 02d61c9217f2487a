package availability

import "github.com/shopspring/decimal"

// Priced is anything with a duration and price, typically a catalog service.
type Priced interface {
	Minutes() int
	UnitPrice() decimal.Decimal
}

// TotalDuration sums the durations of services. An empty list yields 0.
func TotalDuration[S Priced](services []S) int {
	total := 0
	for _, s := range services {
		total += s.Minutes()
	}
	return total
}

// TotalPrice sums the prices of services. An empty list yields zero.
func TotalPrice[S Priced](services []S) decimal.Decimal {
	total := decimal.Zero
	for _, s := range services {
		total = total.Add(s.UnitPrice())
	}
	return total
}
