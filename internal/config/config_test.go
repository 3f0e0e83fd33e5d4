package config

import (
	"testing"
	"time"
)

func TestLoadClientFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadClientFromEnv()
	if err != nil {
		t.Fatalf("LoadClientFromEnv() error = %v", err)
	}
	if cfg.SyncInterval != 500*time.Millisecond {
		t.Errorf("SyncInterval = %v, want 500ms", cfg.SyncInterval)
	}
	if cfg.SignalInterval != time.Second {
		t.Errorf("SignalInterval = %v, want 1s", cfg.SignalInterval)
	}
}

func TestLoadClientFromEnv_Intervals(t *testing.T) {
	t.Setenv("COURIER_SYNC_INTERVAL", "250ms")
	t.Setenv("COURIER_SIGNAL_INTERVAL", "2s")

	cfg, err := LoadClientFromEnv()
	if err != nil {
		t.Fatalf("LoadClientFromEnv() error = %v", err)
	}
	if cfg.SyncInterval != 250*time.Millisecond {
		t.Errorf("SyncInterval = %v, want 250ms", cfg.SyncInterval)
	}
	if cfg.SignalInterval != 2*time.Second {
		t.Errorf("SignalInterval = %v, want 2s", cfg.SignalInterval)
	}
}

func TestLoadClientFromEnv_BadInterval(t *testing.T) {
	t.Setenv("COURIER_SYNC_INTERVAL", "fast")

	if _, err := LoadClientFromEnv(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestClientValidate_RemotePairing(t *testing.T) {
	cfg := Client{SyncInterval: time.Second, SignalInterval: time.Second, RemoteBaseURL: "https://api.example.com/b"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when bin id is missing")
	}

	cfg.BinID = "abc123"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !cfg.RemoteEnabled() {
		t.Fatal("expected remote to be enabled")
	}
}

func TestClientValidate_LocalOnly(t *testing.T) {
	cfg := Client{SyncInterval: time.Second, SignalInterval: time.Second}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.RemoteEnabled() {
		t.Fatal("expected local-only mode")
	}
}

func TestServerValidate(t *testing.T) {
	cfg := Server{ListenAddr: ":8080", DBURL: "postgres://localhost/courier", AccessKey: "secret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	cfg.DBURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing db url")
	}
}

func TestServerValidate_TLSPairing(t *testing.T) {
	cfg := Server{ListenAddr: ":8080", DBURL: "postgres://localhost/courier", AccessKey: "secret", TLSCertPath: "/tmp/cert.pem"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when tls key is missing")
	}
}
