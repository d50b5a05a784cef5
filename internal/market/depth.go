// Package market defines the normalized market-data value types shared by
// every venue adapter and sink.
package market

import "github.com/shopspring/decimal"

// DefaultDepth is the number of levels kept on each side of an order book.
const DefaultDepth = 20

// SnapshotDepth is the number of levels persisted in snapshot rows.
const SnapshotDepth = 5

// UpdateType tags the origin of a snapshot row.
type UpdateType int

const (
	// UpdateTypeNone marks a row written before any market event.
	UpdateTypeNone UpdateType = 0
	// UpdateTypeOrderBook marks a row triggered by a depth change.
	UpdateTypeOrderBook UpdateType = 1
	// UpdateTypeTrades marks a row triggered by a trade.
	UpdateTypeTrades UpdateType = 2
)

// PriceLevel is one aggregated level of an order book side.
// Count is only meaningful on venues that report per-level order counts.
type PriceLevel struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
	Count  int
}

// L2Depth holds the top-N levels of both order book sides. Bids are kept in
// strictly descending price order, asks ascending; the venue adapter is
// responsible for the ordering.
type L2Depth struct {
	Depth      int
	Bids       []PriceLevel
	Asks       []PriceLevel
	DateTime   string
	UpdateType UpdateType
}

// NewL2Depth allocates a zeroed book with the given number of levels per side.
func NewL2Depth(depth int) *L2Depth {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &L2Depth{
		Depth:      depth,
		Bids:       make([]PriceLevel, depth),
		Asks:       make([]PriceLevel, depth),
		DateTime:   "",
		UpdateType: UpdateTypeNone,
	}
}

// Reset zeroes every level while keeping the allocation. Adapters call this
// before filling an absolute snapshot so that levels beyond the venue's depth
// stay at zero.
func (d *L2Depth) Reset() {
	for i := range d.Bids {
		d.Bids[i] = PriceLevel{}
	}
	for i := range d.Asks {
		d.Asks[i] = PriceLevel{}
	}
}

// Copy produces a disjoint deep copy of the book.
func (d *L2Depth) Copy() *L2Depth {
	out := &L2Depth{
		Depth:      d.Depth,
		Bids:       make([]PriceLevel, len(d.Bids)),
		Asks:       make([]PriceLevel, len(d.Asks)),
		DateTime:   d.DateTime,
		UpdateType: d.UpdateType,
	}
	copy(out.Bids, d.Bids)
	copy(out.Asks, d.Asks)
	return out
}

// IsDiff reports whether any of the top-N bid or ask prices or volumes differ
// from other. Per-level order counts do not participate in the comparison.
func (d *L2Depth) IsDiff(other *L2Depth) bool {
	if other == nil {
		return true
	}
	n := d.Depth
	if other.Depth < n {
		n = other.Depth
	}
	for i := 0; i < n; i++ {
		if !d.Bids[i].Price.Equal(other.Bids[i].Price) ||
			!d.Bids[i].Volume.Equal(other.Bids[i].Volume) {
			return true
		}
		if !d.Asks[i].Price.Equal(other.Asks[i].Price) ||
			!d.Asks[i].Volume.Equal(other.Asks[i].Volume) {
			return true
		}
	}
	return false
}
