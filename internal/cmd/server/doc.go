// Package serverrun exposes the shared Run entrypoint used by the CLI to
// open the ensdb runtime and serve it over gRPC and HTTP until shutdown.
//
// Example:
//
//	opts := serverrun.Options{ConfigPath: "ensdb.yaml", Fsync: pebblestore.FsyncModeAlways}
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, opts)
package serverrun
