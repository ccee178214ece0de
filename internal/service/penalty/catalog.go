// internal/service/penalty/catalog.go
package penalty

import (
	"parking-service/internal/domain/parking"
)

// DefaultLostTicket holds the stock lost-ticket surcharges.
var DefaultLostTicket = map[parking.SizeClass]float64{
	parking.SizeMotorcycle: 100,
	parking.SizeCompact:    250,
	parking.SizeLarge:      500,
}

// Catalog is an immutable penalty lookup built once at startup.
type Catalog struct {
	byType map[string]parking.Penalty
}

func NewCatalog(penalties []parking.Penalty) *Catalog {
	byType := make(map[string]parking.Penalty, len(penalties))
	for _, p := range penalties {
		byType[p.PenaltyType] = p
	}
	return &Catalog{byType: byType}
}

// Lookup returns the penalty configured for the reason and class.
func (c *Catalog) Lookup(reason parking.ExitReason, class parking.SizeClass) (parking.Penalty, bool) {
	p, ok := c.byType[parking.PenaltyType(reason, class)]
	return p, ok
}

// SeedPenalties expands amounts into catalog rows for provisioning.
func SeedPenalties(lostTicket map[parking.SizeClass]float64) []parking.Penalty {
	out := make([]parking.Penalty, 0, len(lostTicket))
	for _, class := range parking.SupportedSizeClasses {
		amount, ok := lostTicket[class]
		if !ok {
			continue
		}
		out = append(out, parking.Penalty{
			PenaltyType: parking.PenaltyType(parking.ExitLostTicket, class),
			Amount:      amount,
		})
	}
	return out
}
