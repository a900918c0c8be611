package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"floodguard-be/pkg/clientstate"
	"floodguard-be/pkg/mapview"
	"floodguard-be/pkg/session"
)

// DefaultConfigFile is read when --config is not given. A missing default
// file is not an error.
const DefaultConfigFile = "floodguard.yaml"

// Config is the terminal client's YAML file. Credentials never live here.
type Config struct {
	ServerURL string `yaml:"server_url"`
	APIURL    string `yaml:"api_url"`
	// SessionID pins the session across client restarts. Empty generates one.
	SessionID           string              `yaml:"session_id"`
	Watchdog            time.Duration       `yaml:"watchdog"`
	Reconnect           session.RetryPolicy `yaml:"reconnect"`
	CellDeg             float64             `yaml:"cluster_cell_deg"`
	RequiredCredentials []string            `yaml:"required_credentials"`
	LogFile             string              `yaml:"log_file"`
	NatsURL             string              `yaml:"nats_url"`
	// MaxListed caps the numbered project list under the map summary.
	MaxListed int `yaml:"max_listed"`
}

func DefaultConfig() *Config {
	return &Config{
		ServerURL:           "ws://localhost:8000/api/chat",
		APIURL:              "http://localhost:8000/api",
		Watchdog:            clientstate.DefaultWatchdog,
		Reconnect:           session.RetryPolicy{Interval: session.DefaultReconnectInterval},
		CellDeg:             mapview.DefaultCellDeg,
		RequiredCredentials: []string{"anthropic_key", "openai_key"},
		LogFile:             "logs/chat-client.log",
		NatsURL:             "nats://localhost:4222",
		MaxListed:           20,
	}
}

// ReadConfig overlays the YAML file at path on the defaults. When required
// is false a missing file yields the defaults.
func ReadConfig(path string, required bool) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("parsing config: server_url is empty")
	}
	if cfg.CellDeg <= 0 {
		cfg.CellDeg = mapview.DefaultCellDeg
	}
	if cfg.MaxListed <= 0 {
		cfg.MaxListed = DefaultConfig().MaxListed
	}
	return cfg, nil
}
