package push

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff computes reconnect delays: Initial, multiplied by Factor per
// failed attempt, capped at Max, with ±Jitter fraction of randomisation.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64
	Rand    func() float64 // [0,1); nil uses math/rand
}

// DefaultBackoff starts at one second and caps at thirty.
var DefaultBackoff = Backoff{Initial: time.Second, Max: 30 * time.Second, Factor: 2, Jitter: 0.2}

// Next returns the delay before retry number attempt (0-based).
func (b Backoff) Next(attempt int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = time.Second
	}
	max := b.Max
	if max < initial {
		max = initial
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(initial) * math.Pow(factor, float64(attempt))
	if d > float64(max) || math.IsInf(d, 0) {
		d = float64(max)
	}
	if b.Jitter > 0 {
		rnd := b.Rand
		if rnd == nil {
			rnd = rand.Float64
		}
		j := b.Jitter
		if j > 1 {
			j = 1
		}
		d = d * (1 - j + 2*j*rnd())
		if d > float64(max) {
			d = float64(max)
		}
	}
	return time.Duration(d)
}

// sleep waits d or until ctx is done; it reports whether the full delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
