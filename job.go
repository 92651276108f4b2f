package qpath

import "time"

// Job represents work to be done
type Job struct {
	ID        string
	Fn        func() (any, error)
	StartTime time.Time
}
