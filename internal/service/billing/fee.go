// internal/service/billing/fee.go
package billing

import (
	"parking-service/internal/domain/parking"
)

// Rate is the hourly tariff of one size class.
type Rate struct {
	FirstHour      float64 `json:"first_hour"`
	SubsequentHour float64 `json:"subsequent_hour"`
}

// RateTable maps a size class to its tariff. Treat as read-only once built.
type RateTable map[parking.SizeClass]Rate

// DefaultRates is the stock tariff.
func DefaultRates() RateTable {
	return RateTable{
		parking.SizeMotorcycle: {FirstHour: 10, SubsequentHour: 5},
		parking.SizeCompact:    {FirstHour: 25, SubsequentHour: 12},
		parking.SizeLarge:      {FirstHour: 50, SubsequentHour: 25},
	}
}

// Calculator turns a parked duration into a fee.
type Calculator struct {
	rates    RateTable
	fallback parking.SizeClass
}

func NewCalculator(rates RateTable) *Calculator {
	copied := make(RateTable, len(rates))
	for k, v := range rates {
		copied[k] = v
	}
	return &Calculator{rates: copied, fallback: parking.SizeCompact}
}

// Fee bills every started hour. Unknown classes are billed at the
// Compact tariff.
func (c *Calculator) Fee(durationMinutes int, class parking.SizeClass) float64 {
	if durationMinutes <= 0 {
		return 0
	}

	rate := c.RateFor(class)
	hours := (durationMinutes + 59) / 60
	if hours <= 1 {
		return rate.FirstHour
	}
	return rate.FirstHour + float64(hours-1)*rate.SubsequentHour
}

// RateFor returns the tariff applied to class.
func (c *Calculator) RateFor(class parking.SizeClass) Rate {
	if rate, ok := c.rates[class]; ok {
		return rate
	}
	return c.rates[c.fallback]
}

// Rates returns a copy of the table.
func (c *Calculator) Rates() RateTable {
	out := make(RateTable, len(c.rates))
	for k, v := range c.rates {
		out[k] = v
	}
	return out
}
