package subs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/coachpo/befh/errs"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subscriptions.ini")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
[Okex_BTC]
exchange = Okex
instmt_name = BTC
instmt_code = btc_usdt

[Binance_BTCUSDT]
exchange = Binance
instmt_name = BTCUSDT
instmt_code = btcusdt
depth = 10
`)

	subscriptions, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(subscriptions) != 2 {
		t.Fatalf("got %d subscriptions, want 2", len(subscriptions))
	}

	first := subscriptions[0]
	if first.Exchange != "Okex" || first.InstmtName != "BTC" || first.InstmtCode != "btc_usdt" {
		t.Errorf("unexpected first subscription: %+v", first)
	}
	if len(first.Extras) != 0 {
		t.Errorf("unexpected extras: %v", first.Extras)
	}

	second := subscriptions[1]
	if second.Extras["depth"] != "10" {
		t.Errorf("unknown key not preserved: %v", second.Extras)
	}
}

func TestLoadMissingRequiredKey(t *testing.T) {
	path := writeFile(t, `
[Broken]
exchange = Okex
instmt_name = BTC
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing instmt_code")
	}
	var envelope *errs.E
	if !errors.As(err, &envelope) || envelope.Code != errs.CodeConfig {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeFile(t, "")
	subscriptions, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(subscriptions) != 0 {
		t.Errorf("got %d subscriptions, want 0", len(subscriptions))
	}
}
