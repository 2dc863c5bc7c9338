package serverrun

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	cfgpkg "github.com/ledgerq/ledgerq/internal/config"
	"github.com/ledgerq/ledgerq/internal/metrics"
	"github.com/ledgerq/ledgerq/internal/obligation"
	"github.com/ledgerq/ledgerq/internal/runtime"
	httpserver "github.com/ledgerq/ledgerq/internal/server/http"
	obligsvc "github.com/ledgerq/ledgerq/internal/services/obligations"
	pebblestore "github.com/ledgerq/ledgerq/internal/storage/pebble"
	logpkg "github.com/ledgerq/ledgerq/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing; replaced by os.Getenv at build time
var getenv = func(key string) string { return os.Getenv(key) }

type Options struct {
	DataDir       string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	// FulfillWebhook, when set, delivers every fulfillment as a POST to this
	// URL. Empty means obligations are accepted without an external effect.
	FulfillWebhook string
}

// Run starts the HTTP server and background sweepers, blocking until ctx is
// cancelled.
func Run(ctx context.Context, opts Options) error {
	// Be robust to callers that don't pass a signal-aware context
	// or if signal delivery needs to be observed here. We layer a
	// local signal context over the provided one.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	storeDir := filepath.Join(opts.DataDir, "store")
	rt, err := runtime.Open(runtime.Options{
		DataDir:       storeDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        opts.Config,
		Metrics:       metrics.StoreHook{},
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	// Build process-wide logger using env/ApplyConfig; defaults: level=info, format=text
	logCfg := logpkg.Config{
		Level:  getenvDefault("LEDGERQ_LOG_LEVEL", opts.Config.Log.Level),
		Format: getenvDefault("LEDGERQ_LOG_FORMAT", opts.Config.Log.Format),
	}
	procLogger, err := logpkg.ApplyConfig(logCfg)
	if err != nil {
		// Fallback to a sane default
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(logCfg.Level); e == nil {
			lvl = l
		}
		procLogger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}

	// Redirect stdlib logs (e.g., Pebble) to our logger
	logpkg.RedirectStdLog(procLogger)

	procLogger.Info("starting ledgerq server",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("dataDir", storeDir),
		logpkg.Str("level", logCfg.Level),
		logpkg.Str("format", logCfg.Format),
		logpkg.Str("fulfillWebhook", opts.FulfillWebhook),
	)

	var fulfill obligation.Fulfiller
	if opts.FulfillWebhook != "" {
		fulfill = obligsvc.NewWebhookFulfiller(opts.FulfillWebhook)
	}
	hsrv := httpserver.New(rt, procLogger.With(logpkg.Component("http")), fulfill)

	if err := hsrv.Service().StartSweepers(); err != nil {
		procLogger.Warn("sweeper startup failed", logpkg.Err(err))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, opts.HTTPAddr); err != nil && sctx.Err() == nil {
			log.Printf("http error: %v", err)
		}
	}()

	if retention := opts.Config.LedgerDefaults.JournalRetention; retention > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trimJournals(sctx, hsrv.Service(), rt, retention, procLogger)
		}()
	}

	<-sctx.Done()
	// Shut servers down before closing the runtime/DB to avoid races.
	hsrv.Close()
	wg.Wait()
	return nil
}

// trimJournals periodically drops fulfillment records older than retention
// from every known ledger.
func trimJournals(ctx context.Context, svc *obligsvc.Service, rt *runtime.Runtime, retention time.Duration, logger logpkg.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			known, err := rt.ListLedgers()
			if err != nil {
				logger.Warn("journal trim: list ledgers failed", logpkg.Err(err))
				continue
			}
			for _, m := range known {
				deleted, err := svc.TrimHistory(ctx, m.Name, retention)
				if err != nil {
					logger.Warn("journal trim failed", logpkg.Str("ledger", m.Name), logpkg.Err(err))
					continue
				}
				if deleted > 0 {
					logger.Info("journal trimmed", logpkg.Str("ledger", m.Name), logpkg.Int("deleted", deleted))
				}
			}
		}
	}
}
