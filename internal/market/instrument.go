package market

// Instrument carries the identity and mutable streaming state of one
// subscribed instrument. The state is owned by exactly one gateway worker;
// no synchronisation is needed on the counters.
type Instrument struct {
	Exchange string
	Name     string
	Code     string

	L2Depth     *L2Depth
	PrevL2Depth *L2Depth

	OrderBookID int64
	TradeID     int64
	ExchTradeID string

	Subscribed       bool
	OrderBookChannel string
	TradesChannel    string

	SnapshotTable  string
	OrderBookTable string
	TradesTable    string

	Extras map[string]string
}

// NewInstrument constructs an instrument with zeroed books at the default
// depth.
func NewInstrument(exchange, name, code string) *Instrument {
	return &Instrument{
		Exchange:    exchange,
		Name:        name,
		Code:        code,
		L2Depth:     NewL2Depth(DefaultDepth),
		PrevL2Depth: NewL2Depth(DefaultDepth),
	}
}

// AdvanceOrderBook increments the local order book id and returns it.
func (i *Instrument) AdvanceOrderBook() int64 {
	i.OrderBookID++
	return i.OrderBookID
}

// AdvanceTrade increments the local trade id and records the venue trade id
// on the same advance, keeping the dedup state and the counter in step.
func (i *Instrument) AdvanceTrade(exchTradeID string) int64 {
	i.TradeID++
	i.ExchTradeID = exchTradeID
	return i.TradeID
}

// Extra returns the venue-specific subscription extra for key, or def when
// the subscription file did not set one.
func (i *Instrument) Extra(key, def string) string {
	if v, ok := i.Extras[key]; ok && v != "" {
		return v
	}
	return def
}
