package segmenter

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// clockEntropyTest samples `samples` readings of now() at `interval` apart
// and returns the Shannon entropy, in bits, of the low byte of each reading
// (spec.md §9: "Clock entropy self-test at startup: sample 1000 now()
// values at 1 ms intervals, compute Shannon entropy of the low byte").
func clockEntropyTest(now func() uint64, samples int, interval time.Duration) float64 {
	var counts [256]int
	for i := 0; i < samples; i++ {
		b := byte(now())
		counts[b]++
		if i != samples-1 {
			time.Sleep(interval)
		}
	}

	var entropy float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(samples)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

const (
	// clockEntropySamples and clockEntropyInterval are the original's
	// documented self-test parameters.
	clockEntropySamples  = 1000
	clockEntropyInterval = time.Millisecond

	// minClockEntropyBits is the threshold below which PRNG bits are OR'd
	// into the tick to compensate for a low-resolution clock.
	minClockEntropyBits = 6.0
)

// tickGenerator produces the 64-bit value placed in LBHdr.EventNum, either a
// sequential counter or a microsecond timestamp reinforced with PRNG bits
// when the clock's low-byte entropy is insufficient (spec.md §4.4 step 3,
// §9). The "reinforce" decision is made once at Segmenter startup via
// runClockEntropySelfTest and held for the Segmenter's lifetime.
type tickGenerator struct {
	sequential    bool
	needsPRNGBits bool

	mu      sync.Mutex
	counter uint64
	rng     *rand.Rand
}

func newTickGenerator(sequential bool, needsPRNGBits bool, seed int64) *tickGenerator {
	return &tickGenerator{
		sequential:    sequential,
		needsPRNGBits: needsPRNGBits,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// Next returns the next tick value. Safe for concurrent use: a Segmenter's
// tickGenerator is shared between arbitrary producer goroutines calling
// AddToSendQueue/SendEvent and the sync goroutine's own ticks.
func (g *tickGenerator) Next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sequential {
		g.counter++
		return g.counter
	}

	tick := uint64(time.Now().UnixMicro())
	if g.needsPRNGBits {
		// OR in 8 low-order random bits, preserving the timestamp's
		// higher-order monotonic structure (spec.md §9).
		tick |= uint64(g.rng.Intn(256))
	}
	return tick
}

// runClockEntropySelfTest runs the documented self-test and reports whether
// the tick generator must reinforce its low byte with PRNG bits.
func runClockEntropySelfTest() bool {
	now := func() uint64 { return uint64(time.Now().UnixMicro()) }
	bits := clockEntropyTest(now, clockEntropySamples, clockEntropyInterval)
	return bits < minClockEntropyBits
}
