package domain

import "time"

const (
	DefaultHubCapacity      = 100
	DefaultReceiverCapacity = 50
)

// SystemConfig holds the capacity limits read on every admission check.
type SystemConfig struct {
	HubCapacity      int
	ReceiverCapacity int
	UpdatedAt        time.Time
}
