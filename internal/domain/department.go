package domain

import "time"

// Department is a routing endpoint. The engine never mutates it.
type Department struct {
	ID          int64
	Code        string
	Name        string
	DisplayName string
	Description string
	CreatedAt   time.Time
}
