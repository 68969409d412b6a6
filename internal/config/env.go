package config

import (
	"os"
	"strconv"
)

// FromEnv overlays ENS_* environment variables onto cfg. Unparseable
// numbers are ignored.
func FromEnv(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("ENS_DATA_DIR", &cfg.DataDir)
	str("ENS_FLASH_PATH", &cfg.Flash.Path)
	num("ENS_FLASH_SECTOR_SIZE", &cfg.Flash.SectorSize)
	num("ENS_FLASH_SECTOR_COUNT", &cfg.Flash.SectorCount)
	num("ENS_FLASH_WRITE_BLOCK", &cfg.Flash.WriteBlock)
	num("ENS_LOG_CAPACITY", &cfg.Log.Capacity)
	num("ENS_LOG_ENTRY_SIZE", &cfg.Log.EntrySize)
	str("ENS_BLOOM_STRATEGY", &cfg.Bloom.Strategy)
	str("ENS_HTTP_ADDR", &cfg.Server.HTTPAddr)
	str("ENS_GRPC_ADDR", &cfg.Server.GRPCAddr)
	str("ENS_LOG_LEVEL", &cfg.Logging.Level)
	str("ENS_LOG_FORMAT", &cfg.Logging.Format)
}
