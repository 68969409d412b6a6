// Package runtime wires the flash partition, the metadata store and the
// record log into one process-wide handle. It is created once at startup,
// passed to the servers and CLI commands, and closed with a final metadata
// flush.
//
// Example:
//
//	cfg := config.Default()
//	rt, err := runtime.Open(runtime.Options{Config: cfg})
//	if err != nil { /* handle */ }
//	defer rt.Close()
//	sn, _ := rt.Log().Add(ctx, recordlog.Record{Timestamp: now, Identifier: rpi})
//	_ = rt.CheckHealth(ctx)
package runtime
