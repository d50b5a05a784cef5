package market

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the aggressor side of a trade.
type Side int

const (
	// SideUnknown is reported when the venue's side encoding is unrecognised.
	SideUnknown Side = 0
	// SideBuy marks a buyer-initiated trade.
	SideBuy Side = 1
	// SideSell marks a seller-initiated trade.
	SideSell Side = 2
)

// Trade is a single normalized trade.
type Trade struct {
	ID       string
	DateTime string
	Price    decimal.Decimal
	Volume   decimal.Decimal
	Side     Side
}

// ParseSide maps a venue-reported side value onto the common side codes.
// It accepts the usual string synonyms, numeric codes, and boolean maker
// flags; anything unrecognised maps to SideUnknown rather than failing.
func ParseSide(raw any) Side {
	switch v := raw.(type) {
	case nil:
		return SideUnknown
	case bool:
		if v {
			return SideBuy
		}
		return SideSell
	case int:
		return sideFromInt(int64(v))
	case int64:
		return sideFromInt(v)
	case float64:
		return sideFromInt(int64(v))
	case string:
		return sideFromString(v)
	default:
		return SideUnknown
	}
}

func sideFromInt(v int64) Side {
	switch v {
	case 1:
		return SideBuy
	case 2:
		return SideSell
	default:
		return SideUnknown
	}
}

func sideFromString(v string) Side {
	s := strings.ToLower(strings.TrimSpace(v))
	switch s {
	case "buy", "bid", "b", "1", "true":
		return SideBuy
	case "sell", "ask", "offer", "s", "a", "2", "false":
		return SideSell
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return sideFromInt(int64(n))
	}
	return SideUnknown
}
