package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays LEDGERQ_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("LEDGERQ_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LEDGERQ_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("LEDGERQ_ALLOW_AUTO_CREATE_LEDGERS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowAutoCreateLedgers = b
		}
	}
	if v := os.Getenv("LEDGERQ_DEFAULT_LEDGER_NAME"); v != "" {
		cfg.DefaultLedgerName = v
	}
	if v := os.Getenv("LEDGERQ_LEDGER_NAME_REGEX"); v != "" {
		cfg.LedgerNameRegex = v
	}
	if v := os.Getenv("LEDGERQ_LEDGER_DEFAULTS_FAILURE_POLICY"); v != "" {
		cfg.LedgerDefaults.FailurePolicy = v
	}
	if v := os.Getenv("LEDGERQ_LEDGER_DEFAULTS_BATCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LedgerDefaults.BatchLimit = n
		}
	}
	if v := os.Getenv("LEDGERQ_LEDGER_DEFAULTS_SCAN_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LedgerDefaults.ScanBudget = n
		}
	}
	if v := os.Getenv("LEDGERQ_LEDGER_DEFAULTS_COMPACT_STALE_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.LedgerDefaults.CompactStaleRatio = f
		}
	}
	if v := os.Getenv("LEDGERQ_LEDGER_DEFAULTS_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LedgerDefaults.SweepInterval = d
		}
	}
	if v := os.Getenv("LEDGERQ_LEDGER_DEFAULTS_JOURNAL_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LedgerDefaults.JournalRetention = d
		}
	}
	if v := os.Getenv("LEDGERQ_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LEDGERQ_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
