package domain

import "time"

// Clock abstracts wall-clock reads so heartbeat and sweep timing can be driven by tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
