// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the messaging server.
//
// Fields:
//   - EndpointAddr: bind address for the WebSocket endpoint.
//   - DatabaseDriver: "sqlite3" or "postgres".
//   - DatabaseDSN: DSN matching the driver (file path for sqlite3, pgx DSN for postgres).
//   - TLSCertFile / TLSKeyFile: server certificate pair; both empty disables TLS.
//   - ChallengeValidity: how long an issued authentication challenge stays usable.
//   - TokenValidity: session token lifetime.
//   - MessageRetention: mailbox retention for undelivered chat messages.
//   - NoticeRetention: mailbox retention for undelivered system notices.
//   - MaxFrameBytes: upper bound on a single inbound frame.
type Config struct {
	EndpointAddr      string
	DatabaseDriver    string
	DatabaseDSN       string
	TLSCertFile       string
	TLSKeyFile        string
	ChallengeValidity time.Duration
	TokenValidity     time.Duration
	MessageRetention  time.Duration
	NoticeRetention   time.Duration
	MaxFrameBytes     int64
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: The plaintext listener default is insecure for production and
// should be overridden with a certificate pair.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8765"
	c.DatabaseDriver = "sqlite3"
	c.DatabaseDSN = "dmaft.db"
	c.ChallengeValidity = 5 * time.Minute
	c.TokenValidity = 24 * time.Hour
	c.MessageRetention = 7 * 24 * time.Hour
	c.NoticeRetention = 14 * 24 * time.Hour
	c.MaxFrameBytes = 1 << 20
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
