package controller

import (
	"math/rand/v2"
	"time"
)

// backoff computes reconnect delays: exponential from an initial delay,
// capped, with symmetric jitter (spec 4.1).
type backoff struct {
	initial time.Duration
	max     time.Duration
	jitter  float64
}

func defaultBackoff() backoff {
	return backoff{initial: time.Second, max: 30 * time.Second, jitter: 0.2}
}

// delay returns the wait before reconnect attempt n (1-based).
func (b backoff) delay(attempt int) time.Duration {
	d := b.initial
	for i := 1; i < attempt && d < b.max; i++ {
		d *= 2
		if d > b.max {
			d = b.max
		}
	}
	if d > b.max {
		d = b.max
	}
	jitter := (rand.Float64()*2 - 1) * b.jitter // in [-jitter, +jitter]
	scaled := float64(d) * (1 + jitter)
	if scaled < 0 {
		scaled = 0
	}
	return time.Duration(scaled)
}
