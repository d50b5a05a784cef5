package sink

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	kdb "github.com/sv/kdbgo"

	"github.com/coachpo/befh/errs"
)

// kdbStore appends typed rows to kdb+ tables over the IPC protocol. The
// columnar engine computes latest-by-key on read, so or_replace degrades to
// a plain append and tables are created unkeyed.
type kdbStore struct {
	conn *kdb.KDBConn
	mu   sync.Mutex
}

// NewKDB connects to a kdb+ process. dest is formatted as host:port.
func NewKDB(dest string) (Store, error) {
	host, portStr, ok := strings.Cut(dest, ":")
	if !ok {
		return nil, fmt.Errorf("kdb destination %q: want host:port", dest)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("kdb destination %q: bad port: %w", dest, err)
	}
	conn, err := kdb.DialKDB(host, port, "")
	if err != nil {
		return nil, fmt.Errorf("dial kdb %s: %w", dest, err)
	}
	return &kdbStore{conn: conn}, nil
}

func (k *kdbStore) Name() string { return "kdb" }

func (k *kdbStore) Create(_ context.Context, table string, columns []string, types []ColumnType, _ []int, ifNotExists bool) error {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = col + ":" + qEmptyColumn(types[i])
	}
	stmt := fmt.Sprintf("%s:([] %s)", table, strings.Join(defs, "; "))
	if ifNotExists {
		stmt = fmt.Sprintf("$[`%s in tables[]; ::; %s]", table, stmt)
	}
	return k.eval(stmt)
}

func (k *kdbStore) Insert(_ context.Context, row Row) error {
	literals := make([]string, len(row.Values))
	for i, v := range row.Values {
		literals[i] = qLiteral(v, row.Types[i])
	}
	stmt := fmt.Sprintf("`%s insert (%s)", row.Table, strings.Join(literals, ";"))
	return k.eval(stmt)
}

func (k *kdbStore) eval(stmt string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.conn.AsyncCall(stmt); err != nil {
		return errs.New("", errs.CodeSink, errs.WithStatement(stmt), errs.WithCause(err))
	}
	return nil
}

// Select is served by the columnar engine directly; the ingest path never
// reads back through this sink.
func (k *kdbStore) Select(context.Context, Query) ([][]string, error) { return nil, nil }

func (k *kdbStore) Delete(_ context.Context, table, condition string) error {
	if condition != "" {
		return nil
	}
	return k.eval("delete from `" + table)
}

func (k *kdbStore) Commit(context.Context) error { return nil }

func (k *kdbStore) Close() error {
	k.conn.Close()
	return nil
}

func qEmptyColumn(t ColumnType) string {
	switch t {
	case TypeInt:
		return "`long$()"
	case TypeDecimal:
		return "`float$()"
	default:
		return "`symbol$()"
	}
}

func qLiteral(v any, t ColumnType) string {
	switch t {
	case TypeInt:
		switch n := v.(type) {
		case int64:
			return strconv.FormatInt(n, 10)
		case int:
			return strconv.Itoa(n)
		default:
			return fmt.Sprintf("%v", v)
		}
	case TypeDecimal:
		switch n := v.(type) {
		case decimal.Decimal:
			return n.String()
		default:
			return fmt.Sprintf("%v", v)
		}
	default:
		return fmt.Sprintf("`$\"%s\"", strings.ReplaceAll(fmt.Sprintf("%v", v), `"`, `\"`))
	}
}
