package sink

import (
	"context"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	_ "go.nanomsg.org/mangos/v3/transport/tcp"

	"github.com/coachpo/befh/errs"
)

// publisher serialises each inserted row as a single table-tagged message on
// a pub socket. Subscribers filter on the table-name prefix. No durability:
// a row published with no subscriber listening is gone.
type publisher struct {
	sock mangos.Socket
	mu   sync.Mutex
}

// NewPublisher binds a pub socket on addr (e.g. tcp://127.0.0.1:6001).
func NewPublisher(addr string) (Store, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("create pub socket: %w", err)
	}
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &publisher{sock: sock}, nil
}

func (p *publisher) Name() string { return "publisher" }

func (p *publisher) Create(context.Context, string, []string, []ColumnType, []int, bool) error {
	return nil
}

func (p *publisher) Insert(_ context.Context, row Row) error {
	body := make(map[string]any, len(row.Columns)+1)
	body["table"] = row.Table
	for i, col := range row.Columns {
		body[col] = renderPlain(row.Values[i], row.Types[i])
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return errs.New("", errs.CodeSink,
			errs.WithMessage("marshal published row"), errs.WithCause(err))
	}
	msg := append([]byte(row.Table+" "), payload...)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.sock.Send(msg); err != nil {
		return errs.New("", errs.CodeSink,
			errs.WithMessage(fmt.Sprintf("publish row for %s", row.Table)), errs.WithCause(err))
	}
	return nil
}

func (p *publisher) Select(context.Context, Query) ([][]string, error) { return nil, nil }

func (p *publisher) Delete(context.Context, string, string) error { return nil }

func (p *publisher) Commit(context.Context) error { return nil }

func (p *publisher) Close() error { return p.sock.Close() }
