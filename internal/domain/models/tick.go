package models

import "time"

// Tick is a single normalized trade observation. Immutable once created.
type Tick struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
}

// PricePoint is one entry of a rolling price history.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}
