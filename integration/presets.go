// Package integration provides the named node profiles of the bridge
// launcher. A preset bundles the settings that change together between
// deployments (store backend, block time, pool and cache sizes, whether the
// off-chain worker and metrics run) so an operator picks one name instead of
// a dozen flags.
//
// Usage:
//
//	preset, err := integration.GetPresetByName("validator")
//	integration.ApplyPreset(&current, preset)
//
// Flags and config files are applied on top of the preset.
package integration

import (
	"fmt"
	"time"
)

const (
	DBMemory = "memory"
	DBBolt   = "bolt"
)

// PresetConfig captures the parameters that vary across profiles. Network
// identity, endpoints and keys are never part of a preset.
type PresetConfig struct {
	Name string
	// DB is the state store backend, DBMemory or DBBolt.
	DB string
	// BlockTime is the interval between produced blocks.
	BlockTime time.Duration
	// PoolCapacity bounds the unsigned extrinsic pool.
	PoolCapacity int
	// WorkerCacheSize bounds the task locks and event caches of the
	// off-chain worker.
	WorkerCacheSize int
	EnableMetrics   bool
	EnableWorker    bool
}

// DefaultPreset is a persistent node that runs the off-chain worker when a
// validator key is configured.
func DefaultPreset() PresetConfig {
	return PresetConfig{
		Name:            "default",
		DB:              DBBolt,
		BlockTime:       6 * time.Second,
		PoolCapacity:    4096,
		WorkerCacheSize: 1024,
		EnableMetrics:   false,
		EnableWorker:    true,
	}
}

// DevPreset keeps everything in memory and produces blocks fast. Nothing
// survives a restart.
func DevPreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "dev"
	cfg.DB = DBMemory
	cfg.BlockTime = time.Second
	cfg.PoolCapacity = 256
	cfg.WorkerCacheSize = 128
	cfg.EnableMetrics = true
	return cfg
}

// ValidatorPreset is a production validator: persistent state, large
// caches and metrics for the dashboards.
func ValidatorPreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "validator"
	cfg.PoolCapacity = 8192
	cfg.WorkerCacheSize = 4096
	cfg.EnableMetrics = true
	return cfg
}

// ObserverPreset follows the chain without ever signing.
func ObserverPreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "observer"
	cfg.EnableMetrics = true
	cfg.EnableWorker = false
	return cfg
}

// GetPresetByName looks a preset up by name.
func GetPresetByName(name string) (PresetConfig, error) {
	switch name {
	case "default":
		return DefaultPreset(), nil
	case "dev":
		return DevPreset(), nil
	case "validator":
		return ValidatorPreset(), nil
	case "observer":
		return ObserverPreset(), nil
	default:
		return PresetConfig{}, fmt.Errorf("unknown preset: %q (valid: default, dev, validator, observer)", name)
	}
}

// ApplyPreset merges preset into target. Zero numeric and string fields of
// preset leave target unchanged; booleans are always applied.
func ApplyPreset(target *PresetConfig, preset PresetConfig) {
	if preset.DB != "" {
		target.DB = preset.DB
	}
	if preset.BlockTime > 0 {
		target.BlockTime = preset.BlockTime
	}
	if preset.PoolCapacity > 0 {
		target.PoolCapacity = preset.PoolCapacity
	}
	if preset.WorkerCacheSize > 0 {
		target.WorkerCacheSize = preset.WorkerCacheSize
	}
	target.EnableMetrics = preset.EnableMetrics
	target.EnableWorker = preset.EnableWorker
	if preset.Name != "" {
		target.Name = preset.Name
	}
}
