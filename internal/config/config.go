package config

import (
	"errors"
	"os"
	"time"
)

// Client configures the messenger core. A client without a remote bin
// configured runs in local-only mode against the device store.
type Client struct {
	RemoteBaseURL  string
	BinID          string
	AccessKey      string
	DataDir        string
	SyncInterval   time.Duration
	SignalInterval time.Duration
}

// Server configures the bin-compatible document server.
type Server struct {
	ListenAddr  string
	DBURL       string
	AccessKey   string
	TLSCertPath string
	TLSKeyPath  string
}

func LoadClientFromEnv() (Client, error) {
	cfg := Client{
		RemoteBaseURL:  os.Getenv("COURIER_REMOTE_URL"),
		BinID:          os.Getenv("COURIER_BIN_ID"),
		AccessKey:      os.Getenv("COURIER_ACCESS_KEY"),
		DataDir:        os.Getenv("COURIER_DATA_DIR"),
		SyncInterval:   500 * time.Millisecond,
		SignalInterval: time.Second,
	}

	if v := os.Getenv("COURIER_SYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Client{}, errors.New("sync interval must be a duration")
		}
		cfg.SyncInterval = d
	}
	if v := os.Getenv("COURIER_SIGNAL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Client{}, errors.New("signal interval must be a duration")
		}
		cfg.SignalInterval = d
	}

	return cfg, nil
}

func (c Client) Validate() error {
	if c.SyncInterval <= 0 {
		return errors.New("sync interval must be positive")
	}
	if c.SignalInterval <= 0 {
		return errors.New("signal interval must be positive")
	}
	if (c.RemoteBaseURL == "") != (c.BinID == "") {
		return errors.New("both remote url and bin id are required when enabling the remote store")
	}
	return nil
}

// RemoteEnabled reports whether a remote bin is configured; otherwise the
// client persists to the local store only.
func (c Client) RemoteEnabled() bool {
	return c.RemoteBaseURL != "" && c.BinID != ""
}

func LoadServerFromEnv() (Server, error) {
	cfg := Server{
		ListenAddr:  ":8080",
		DBURL:       os.Getenv("COURIER_DB_URL"),
		AccessKey:   os.Getenv("COURIER_ACCESS_KEY"),
		TLSCertPath: os.Getenv("COURIER_TLS_CERT"),
		TLSKeyPath:  os.Getenv("COURIER_TLS_KEY"),
	}

	if v := os.Getenv("COURIER_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}

	return cfg, nil
}

func (c Server) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen addr is required")
	}
	if c.DBURL == "" {
		return errors.New("db url is required")
	}
	if c.AccessKey == "" {
		return errors.New("access key is required")
	}
	if (c.TLSCertPath == "") != (c.TLSKeyPath == "") {
		return errors.New("both tls cert and key are required when enabling tls")
	}
	return nil
}
