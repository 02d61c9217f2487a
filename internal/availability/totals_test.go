package availability

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type item struct {
	minutes int
	price   string
}

func (i item) Minutes() int { return i.minutes }
func (i item) UnitPrice() decimal.Decimal { return decimal.RequireFromString(i.price) }

func TestTotalsEmpty(t *testing.T) {
	assert.Equal(t, 0, TotalDuration([]item{}))
	assert.True(t, TotalPrice([]item(nil)).IsZero())
}

func TestTotals(t *testing.T) {
	services := []item{{30, "25000"}, {45, "40000.50"}, {15, "0"}}
	assert.Equal(t, 90, TotalDuration(services))
	assert.Equal(t, "65000.5", TotalPrice(services).String())
}
