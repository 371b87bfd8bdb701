package metrics

import (
	"context"
	"time"
)

// Collector receives one Snapshot per control cycle.
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Repository defines the interface for sample storage
type Repository interface {
	Record(snapshot *Snapshot) error
	Close() error
}

// Snapshot is the state of every fan at one point in time.
type Snapshot struct {
	Timestamp time.Time
	Fans      []FanSample
}

// FanSample holds the raw readings of one fan.
type FanSample struct {
	Name        string
	Temperature int
	SpeedLevel  float64
	Speeds      []int
	Mode        string
}
