// internal/service/parking/seed.go
package parking

import (
	"fmt"

	"parking-service/internal/domain/parking"
	"parking-service/internal/service/penalty"
)

// spotRange numbers spots prefix+from .. prefix+to inclusive.
type spotRange struct {
	from, to int
	class    parking.SizeClass
}

type lotLayout struct {
	name   string
	prefix string
	ranges []spotRange
}

var demoLayouts = []lotLayout{
	{"Main Lot A", "A", []spotRange{
		{1, 40, parking.SizeMotorcycle},
		{41, 70, parking.SizeCompact},
		{71, 100, parking.SizeLarge},
	}},
	{"Overflow Lot B", "B", []spotRange{
		{1, 30, parking.SizeMotorcycle},
		{41, 70, parking.SizeCompact},
	}},
	{"Economy Lot C", "C", []spotRange{
		{1, 40, parking.SizeMotorcycle},
		{41, 70, parking.SizeCompact},
		{71, 100, parking.SizeLarge},
	}},
}

// DemoSeed returns the three demo lots and the stock lost-ticket
// penalties.
func DemoSeed() *parking.SeedData {
	data := &parking.SeedData{
		Penalties: penalty.SeedPenalties(penalty.DefaultLostTicket),
	}

	for _, layout := range demoLayouts {
		lot := parking.LotSeed{Name: layout.name}
		for _, r := range layout.ranges {
			for i := r.from; i <= r.to; i++ {
				lot.Spots = append(lot.Spots, parking.SpotSeed{
					SpotNumber: fmt.Sprintf("%s%d", layout.prefix, i),
					Size:       r.class,
				})
			}
		}
		data.Lots = append(data.Lots, lot)
	}

	return data
}
