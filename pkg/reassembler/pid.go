package reassembler

import (
	"context"
	"time"
)

// pidSample is one ring entry of the PID thread's sliding window, matching
// spec.md §4.5's "each sample stores the local error and the running
// integral".
type pidSample struct {
	at       time.Time
	err      float64
	integral float64
}

// pidRing is a fixed-depth ring of epoch_ms/period_ms samples.
type pidRing struct {
	samples []pidSample
	next    int
	filled  int
}

func newPIDRing(depth int) *pidRing {
	if depth < 1 {
		depth = 1
	}
	return &pidRing{samples: make([]pidSample, depth)}
}

func (r *pidRing) push(s pidSample) {
	r.samples[r.next] = s
	r.next = (r.next + 1) % len(r.samples)
	if r.filled < len(r.samples) {
		r.filled++
	}
}

// oldest returns the ring's oldest sample, matching the original's
// "oldestSample" reference point: before the ring fills that is the first
// sample pushed; once full, it is the one the next push will overwrite.
func (r *pidRing) oldest() (pidSample, bool) {
	if r.filled == 0 {
		return pidSample{}, false
	}
	if r.filled < len(r.samples) {
		return r.samples[0], true
	}
	return r.samples[r.next], true
}

// sendStateLoop runs at flags.PeriodMs cadence, sampling queue occupancy and
// driving the PID control formula from spec.md §4.5 before reporting it to
// the control plane. gRPC errors bump grpcErrCnt and never stop the loop.
func (r *Reassembler) sendStateLoop() {
	ring := newPIDRing(r.pidDepth())
	ticker := time.NewTicker(time.Duration(r.flags.PeriodMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		if r.stopFlag.IsSet() {
			return
		}
		select {
		case now := <-ticker.C:
			fillPercent := float32(r.queue.depth()) / float32(eventQueueCapacity)

			errVal := float64(r.flags.SetPoint) - float64(fillPercent)
			oldest, have := ring.oldest()

			var integral, derivative float64
			if have {
				dt := now.Sub(oldest.at).Seconds()
				if dt > 0 {
					integral = oldest.integral + errVal*dt
					derivative = (errVal - oldest.err) / dt
				}
			}
			ring.push(pidSample{at: now, err: errVal, integral: integral})

			control := r.flags.Kp*errVal + r.flags.Ki*integral + r.flags.Kd*derivative

			if r.lbMgr != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				err := r.lbMgr.SendState(ctx, fillPercent, float32(control), true, now)
				cancel()
				if err != nil {
					r.stats.grpcErrCnt.Inc()
					r.stats.lastE2SARError.Store(err.Error())
				}
			}
		}
	}
}

func (r *Reassembler) pidDepth() int {
	if r.flags.PeriodMs <= 0 {
		return 1
	}
	depth := r.flags.EpochMs / r.flags.PeriodMs
	if depth < 1 {
		depth = 1
	}
	return depth
}
