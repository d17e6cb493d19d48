// Package pricing computes the authoritative cost of a print order.
package pricing

// Rates holds the configured per-page rates and flat service fee, in whole
// currency units.
type Rates struct {
	BWRatePerPage    int64
	ColorRatePerPage int64
	ServiceFee       int64
}

// Selection describes how color pages were chosen.
type Selection int

const (
	// SelectionNone prints everything black and white.
	SelectionNone Selection = iota
	// SelectionAll prints every page in color.
	SelectionAll
	// SelectionPages prints an explicit page set in color.
	SelectionPages
)

// Quote is the cost breakdown for an order.
type Quote struct {
	TotalUnits int64 `json:"totalUnits"`
	ColorUnits int64 `json:"colorUnits"`
	BWUnits    int64 `json:"bwUnits"`
	TotalCost  int64 `json:"totalCost"`
}

// Compute derives the cost from page counts, copies and the color selection.
// colorPages is the size of the resolved color page set and is only consulted
// for SelectionPages. Color units are clamped to total units so a malformed
// selection can never bill more pages than the order contains.
func Compute(totalPages, copies int, sel Selection, colorPages int, r Rates) Quote {
	if totalPages < 0 {
		totalPages = 0
	}
	if copies < 1 {
		copies = 1
	}

	totalUnits := int64(totalPages) * int64(copies)

	var colorUnits int64
	switch sel {
	case SelectionAll:
		colorUnits = totalUnits
	case SelectionPages:
		colorUnits = int64(colorPages) * int64(copies)
		if colorUnits > totalUnits {
			colorUnits = totalUnits
		}
		if colorUnits < 0 {
			colorUnits = 0
		}
	}

	bwUnits := totalUnits - colorUnits

	return Quote{
		TotalUnits: totalUnits,
		ColorUnits: colorUnits,
		BWUnits:    bwUnits,
		TotalCost:  bwUnits*r.BWRatePerPage + colorUnits*r.ColorRatePerPage + r.ServiceFee,
	}
}
