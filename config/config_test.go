package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSinkSettingsAny(t *testing.T) {
	if (SinkSettings{}).Any() {
		t.Error("zero settings must select no sink")
	}
	if !(SinkSettings{SQLitePath: "befh.db"}).Any() {
		t.Error("sqlite path must count as a sink")
	}
	if !(SinkSettings{KV: KVSettings{Addr: "localhost:6379"}}).Any() {
		t.Error("kv address must count as a sink")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("BEFH_SUBSCRIPTIONS", "/etc/befh/subs.ini")
	t.Setenv("BEFH_PROXY", "http://proxy:3128")

	cfg := FromEnv()
	if cfg.Subscriptions != "/etc/befh/subs.ini" {
		t.Errorf("subscriptions = %s", cfg.Subscriptions)
	}
	if cfg.Proxy != "http://proxy:3128" {
		t.Errorf("proxy = %s", cfg.Proxy)
	}
}

func TestLoadEndpoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venues.yaml")
	content := "venues:\n  OKEX: wss://alt.okex.example/ws\n  binance: \"\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	overrides, err := LoadEndpoints(path)
	if err != nil {
		t.Fatalf("LoadEndpoints: %v", err)
	}
	if overrides["okex"] != "wss://alt.okex.example/ws" {
		t.Errorf("okex = %q", overrides["okex"])
	}
	if _, ok := overrides["binance"]; ok {
		t.Error("empty override must be dropped")
	}

	if got, err := LoadEndpoints(""); err != nil || got != nil {
		t.Errorf("empty path: %v %v", got, err)
	}
	if _, err := LoadEndpoints(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file must fail")
	}
}
