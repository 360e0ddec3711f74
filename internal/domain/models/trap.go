package models

import "time"

// Trap kinds emitted by the detector.
const (
	TrapLiquidityGrab           = "Liquidity Grab"
	TrapVolatilityLiquidityGrab = "Volatility Liquidity Grab"
	TrapStopHunt                = "Stop Hunt"
	TrapFakePump                = "Fake Pump"
	TrapFakeDump                = "Fake Dump"
)

// TrapEvent records one suspected manipulation pattern. Never mutated after
// creation.
type TrapEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Kind        string    `json:"kind"`
	Confidence  float64   `json:"confidence"`
	PriceChange float64   `json:"price_change"`
}

// HFModeState is the global high-frequency trap mode slot. The multiplier
// scales down other detection thresholds while the mode is active.
type HFModeState struct {
	Active      bool       `json:"active"`
	Multiplier  float64    `json:"multiplier"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}
