package reassembler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPIDRingOldestBeforeFill(t *testing.T) {
	r := newPIDRing(5)
	_, ok := r.oldest()
	require.False(t, ok)

	r.push(pidSample{at: time.Now(), err: 0.1})
	oldest, ok := r.oldest()
	require.True(t, ok)
	require.InDelta(t, 0.1, oldest.err, 0.0001)
}

func TestPIDRingOldestAfterWraparound(t *testing.T) {
	r := newPIDRing(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		r.push(pidSample{at: base.Add(time.Duration(i) * time.Second), err: float64(i)})
	}
	// depth 3, 5 pushes: ring holds samples for i=2,3,4; oldest is i=2.
	oldest, ok := r.oldest()
	require.True(t, ok)
	require.InDelta(t, 2.0, oldest.err, 0.0001)
}

func TestPIDDepthDerivedFromEpochAndPeriod(t *testing.T) {
	r := &Reassembler{}
	r.flags.EpochMs = 1000
	r.flags.PeriodMs = 100
	require.Equal(t, 10, r.pidDepth())
}

func TestPIDDepthFloorsAtOne(t *testing.T) {
	r := &Reassembler{}
	r.flags.EpochMs = 0
	r.flags.PeriodMs = 0
	require.Equal(t, 1, r.pidDepth())
}
