package sink

import (
	"fmt"
	"regexp"
	"strings"
)

// Shared redis key layout. Every segment is lowercased. The candle and chart
// workers address the same keys, so the builders live here rather than in
// the adapter.
const (
	// SnapshotTable is the shared latest-state table upserted by every event.
	SnapshotTable = "exchanges_snapshot"
	// SnapshotChannel carries one JSON message per snapshot upsert.
	SnapshotChannel = "befh_es"

	snapshotKeyPrefix = "befh_es_"
	periodKeyPrefix   = "befh_etp_"
	queueKeyPrefix    = "befh_etpq_"
	pricesKeyPrefix   = "befh_etpr_"
)

var tradesTableRegex = regexp.MustCompile(`^exch_([^_]+)_(.+)_trades_[0-9]{8}$`)

// periodEpochRegex extracts the epoch-second suffix from a period key.
var periodEpochRegex = regexp.MustCompile(`_([0-9]{10})$`)

// Token lowercases s and strips everything outside [a-z0-9], yielding the
// segment form shared by table names and key-value keys. Venue and instrument
// names pass through this before landing in any key.
func Token(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SnapshotColumnKey is the key holding one snapshot column for an instrument.
func SnapshotColumnKey(exchange, instrument, column string) string {
	return snapshotKeyPrefix + Token(exchange) + "_" + Token(instrument) + "_" + strings.ToLower(column)
}

// PeriodKey addresses the per-second trade bucket for an epoch second.
func PeriodKey(exchange, instrument string, epoch int64) string {
	return fmt.Sprintf("%s%s_%s_%d", periodKeyPrefix, Token(exchange), Token(instrument), epoch)
}

// QueueKey addresses the sorted set of outstanding period buckets.
func QueueKey(exchange, instrument string) string {
	return queueKeyPrefix + Token(exchange) + "_" + Token(instrument)
}

// PricesKey addresses the per-second price series consumed by the chart
// worker.
func PricesKey(exchange, instrument string) string {
	return pricesKeyPrefix + Token(exchange) + "_" + Token(instrument)
}

// ParseTradesTable extracts the venue and instrument from a daily trades
// table name, reporting false for any other table.
func ParseTradesTable(table string) (exchange, instrument string, ok bool) {
	m := tradesTableRegex.FindStringSubmatch(table)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ParsePeriodEpoch extracts the epoch-second suffix from a period key,
// reporting false when the key carries no epoch.
func ParsePeriodEpoch(key string) (int64, bool) {
	m := periodEpochRegex.FindStringSubmatch(key)
	if m == nil {
		return 0, false
	}
	var epoch int64
	if _, err := fmt.Sscanf(m[1], "%d", &epoch); err != nil {
		return 0, false
	}
	return epoch, true
}
