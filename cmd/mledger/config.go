package main

import (
	"fmt"
	"time"

	"github.com/franz/music-ledger/internal/report"
	"github.com/franz/music-ledger/internal/store"
	"github.com/spf13/viper"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (MLEDGER_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val == 0 {
		return defaultValue
	}
	return val
}

// GetConfigStringSlice retrieves a string slice config value
func GetConfigStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}

// openStore opens the configured history database
func openStore(mode store.Mode, lockTimeout time.Duration) (*store.Store, error) {
	dbPath := GetConfigString("db", "music-ledger.db")

	db, err := store.Open(dbPath, &store.OpenOptions{
		Mode:             mode,
		LockTimeout:      lockTimeout,
		NetworkOptimized: viper.GetBool("network"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// eventLevel maps the output flags to the audit log's minimum level
func eventLevel() report.EventLevel {
	switch {
	case viper.GetBool("quiet"):
		return report.LevelWarning
	case viper.GetBool("verbose"):
		return report.LevelDebug
	default:
		return report.LevelInfo
	}
}
