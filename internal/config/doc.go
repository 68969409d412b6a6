// Package config provides loading and environment overlay for ensdb
// configuration. It exposes a Default() baseline, file loading for JSON and
// YAML, and an ENS_* environment overlay.
//
// Example:
//
//	cfg, err := config.Load("/etc/ensdb.yaml")
//	if err != nil { /* handle */ }
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { /* handle */ }
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
package config
