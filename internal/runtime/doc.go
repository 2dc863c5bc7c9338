// Package runtime wires storage, config, and facades into a single-node
// ledgerq instance. It exposes Open/Close, basic health checks, and helpers
// to open internal components used by higher-level services.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	// Health
//	_ = rt.CheckHealth(context.Background())
//	// Open a queue and register an obligation
//	q, _ := rt.OpenQueue("default")
//	_, _ = q.Append(context.Background(), "alice", 100)
package runtime
