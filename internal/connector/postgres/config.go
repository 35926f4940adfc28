package postgres

import "fmt"

// Config holds PostgreSQL source settings.
type Config struct {
	DSN            string
	FetchSize      int
	RecordsPerSec  int
	ConnectTimeout int
}

const (
	defaultFetchSize      = 10000
	defaultConnectTimeout = 5
)

// ParseConfig extracts source settings from a loose parameter map.
func ParseConfig(params map[string]any) *Config {
	cfg := &Config{
		DSN:            firstString(params, "dsn", "connection_string"),
		FetchSize:      firstInt(params, "fetch_size"),
		RecordsPerSec:  firstInt(params, "records_per_sec", "rate_limit"),
		ConnectTimeout: firstInt(params, "connect_timeout"),
	}
	if cfg.FetchSize <= 0 {
		cfg.FetchSize = defaultFetchSize
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	return cfg
}

// Validate reports whether the config is usable without connecting.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	return nil
}

func firstString(params map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := params[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func firstInt(params map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := params[key].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
