// Package log provides the structured logging facade used across ensdb.
//
// # Overview
//
// A small Logger interface with leveled methods and a Field type for
// structured context. Records are routed through log/slog with a bridge
// handler that feeds our formatter and outputs, so slog-aware code and the
// facade produce identical lines.
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("recordlog"))
//	l.Info("record added", log.Uint32("sn", 42))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config (level, json|text).
// RedirectStdLog routes the standard library logger (used by Pebble) into a
// Logger. NewNopLogger discards everything and is the default for library
// components that were not handed a logger.
package log
