// Package pebblestore is the small durable key/value store that holds the
// record log's metadata. It wraps Pebble with an fsync policy, a logger
// bridge and optional latency hooks.
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./meta",
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	_ = db.Set([]byte("recordlog/meta"), raw)
//	v, err := db.Get([]byte("recordlog/meta"))
//	if errors.Is(err, pebblestore.ErrNotFound) { /* fresh store */ }
package pebblestore
