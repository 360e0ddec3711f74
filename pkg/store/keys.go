package store

// Bus key schema. Each key has exactly one writing component; everyone else
// reads. Values are decimal strings unless noted.
const (
	// Feed-owned.
	KeyLastPrice        = "last_btc_price"
	KeyPrevPrice        = "prev_btc_price"
	KeyLastVolume       = "last_btc_volume"
	KeyLastUpdateTime   = "last_btc_update_time" // epoch seconds
	KeyMovementHistory  = "btc_movement_history" // list, most-recent-first, len<=100
	KeyVolumeHistory    = "btc_volume_history"
	KeyAbsChangeHistory = "abs_price_change_history" // |delta|*100

	// WindowedStats-owned.
	KeyVolatility1m   = "volatility_1min"
	KeyVolatility5m   = "volatility_5min"
	KeyAcceleration1m = "price_acceleration_1min"

	// FibAnalyzer-owned.
	KeyMarketRegime     = "current_market_regime"
	KeyRegimeMultiplier = "regime_multiplier"
	KeyRealtimeFib      = "realtime_fibonacci_levels"   // JSON
	KeyFibConfluence    = "latest_fibonacci_confluence" // JSON

	// HFDetector-owned.
	KeyHFModeActive   = "hf_trap_mode_active" // "0" or "1"
	KeyHFMultiplier   = "hf_trap_multiplier"  // decimal in [0.5, 1.0]
	KeyTrapQueue      = "mm_trap_queue:zset"  // zset of JSON events, score=epoch sec
	KeyCoreErrorCount = "core_errors_total"

	// External inputs.
	KeySchumann = "schumann_resonance"
)
