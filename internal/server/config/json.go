package config

import (
	"encoding/json"
	"os"

	"github.com/dmaft/dmaft-server/internal/flagx"
	"github.com/dmaft/dmaft-server/internal/timex"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// It relies on timex.Duration so JSON can specify intervals either as
// strings ("24h") or integer nanoseconds. Zero values mean "keep the
// current setting".
type JsonConfig struct {
	EndpointAddr      string         `json:"endpoint_addr"`
	DatabaseDriver    string         `json:"database_driver"`
	DatabaseDSN       string         `json:"database_dsn"`
	TLSCertFile       string         `json:"tls_cert_file"`
	TLSKeyFile        string         `json:"tls_key_file"`
	ChallengeValidity timex.Duration `json:"challenge_validity"`
	TokenValidity     timex.Duration `json:"token_validity"`
	MessageRetention  timex.Duration `json:"message_retention"`
	NoticeRetention   timex.Duration `json:"notice_retention"`
	MaxFrameBytes     int64          `json:"max_frame_bytes"`
}

// parseJson loads configuration values from a JSON file named by the -c or
// -config command-line flags. Without the flag no file is loaded. An
// unreadable or malformed file panics: a half-applied config is worse than
// not starting.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDriver != "" {
		config.DatabaseDriver = c.DatabaseDriver
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.TLSCertFile != "" {
		config.TLSCertFile = c.TLSCertFile
	}
	if c.TLSKeyFile != "" {
		config.TLSKeyFile = c.TLSKeyFile
	}
	if c.ChallengeValidity.Duration != 0 {
		config.ChallengeValidity = c.ChallengeValidity.Duration
	}
	if c.TokenValidity.Duration != 0 {
		config.TokenValidity = c.TokenValidity.Duration
	}
	if c.MessageRetention.Duration != 0 {
		config.MessageRetention = c.MessageRetention.Duration
	}
	if c.NoticeRetention.Duration != 0 {
		config.NoticeRetention = c.NoticeRetention.Duration
	}
	if c.MaxFrameBytes != 0 {
		config.MaxFrameBytes = c.MaxFrameBytes
	}
}
