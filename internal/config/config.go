package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/ledgerq/ledgerq/pkg/log"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DataDir is the Pebble database directory. Empty means DefaultDataDir().
	DataDir string `json:"dataDir" yaml:"dataDir"`
	// HTTPAddr is the listen address for the HTTP API.
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`
	// AllowAutoCreateLedgers lets API calls create ledgers on first use.
	AllowAutoCreateLedgers bool `json:"allowAutoCreateLedgers" yaml:"allowAutoCreateLedgers"`
	// DefaultLedgerName is used when a request omits the ledger.
	DefaultLedgerName string `json:"defaultLedgerName" yaml:"defaultLedgerName"`
	// LedgerNameRegex constrains ledger names created via the API.
	LedgerNameRegex string         `json:"ledgerNameRegex" yaml:"ledgerNameRegex"`
	LedgerDefaults  LedgerDefaults `json:"ledgerDefaults" yaml:"ledgerDefaults"`
	// Log configures the process logger.
	Log log.Config `json:"log" yaml:"log"`
}

// LedgerDefaults captures per-ledger baseline processing settings.
type LedgerDefaults struct {
	// FailurePolicy is "abort" or "requeue".
	FailurePolicy string `json:"failurePolicy" yaml:"failurePolicy"`
	// BatchLimit is the fulfillment count per batch run.
	BatchLimit int `json:"batchLimit" yaml:"batchLimit"`
	// ScanBudget bounds slots examined per batch run; 0 means unbounded.
	ScanBudget int `json:"scanBudget" yaml:"scanBudget"`
	// CompactStaleRatio is the stale fraction at which the sweeper compacts.
	CompactStaleRatio float64 `json:"compactStaleRatio" yaml:"compactStaleRatio"`
	// SweepInterval is how often the background sweeper checks staleness.
	SweepInterval time.Duration `json:"sweepInterval" yaml:"sweepInterval"`
	// JournalRetention bounds fulfillment history age; 0 keeps forever.
	JournalRetention time.Duration `json:"journalRetention" yaml:"journalRetention"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr:               ":8080",
		AllowAutoCreateLedgers: true,
		DefaultLedgerName:      "default",
		LedgerNameRegex:        "[a-z0-9-_]{1,64}",
		LedgerDefaults: LedgerDefaults{
			FailurePolicy:     "abort",
			BatchLimit:        100,
			CompactStaleRatio: 0.5,
			SweepInterval:     30 * time.Second,
		},
		Log: log.Config{Level: "info", Format: "json", Output: "console"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}
