package runtime

import (
	"context"
	"errors"
	"time"

	cfgpkg "github.com/ledgerq/ledgerq/internal/config"
	"github.com/ledgerq/ledgerq/internal/journal"
	"github.com/ledgerq/ledgerq/internal/ledger"
	"github.com/ledgerq/ledgerq/internal/obligation"
	pebblestore "github.com/ledgerq/ledgerq/internal/storage/pebble"
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Metrics       pebblestore.MetricsHook
}

// Runtime wires storage, config, and facades for a single-node instance.
type Runtime struct {
	db     *pebblestore.DB
	config cfgpkg.Config
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Metrics:       opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	rt := &Runtime{db: db, config: opts.Config}
	return rt, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	return nil
}

// EnsureLedger creates a ledger record if absent.
func (r *Runtime) EnsureLedger(name string) (ledger.Meta, error) {
	return ledger.EnsureLedger(r.db, name)
}

// ListLedgers returns every registered ledger.
func (r *Runtime) ListLedgers() ([]ledger.Meta, error) {
	return ledger.ListLedgers(r.db)
}

// OpenQueue opens the obligation queue for a ledger.
func (r *Runtime) OpenQueue(name string) (*obligation.Queue, error) {
	return obligation.OpenQueue(r.db, name)
}

// OpenJournal opens the fulfillment journal for a ledger.
func (r *Runtime) OpenJournal(name string) (*journal.Journal, error) {
	return journal.Open(r.db, name)
}

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
