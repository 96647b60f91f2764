package reassembler

import "go.uber.org/atomic"

// Stats carries the Reassembler's reported counters (spec.md §4.5: "Reported
// stats: {enqueueLoss, reassemblyLoss, eventSuccess, lastErrno, grpcErrCnt,
// dataErrCnt, lastE2SARError}"), plus a per-port fragment counter retrievable
// only after shutdown.
type Stats struct {
	enqueueLoss    atomic.Uint64
	reassemblyLoss atomic.Uint64
	eventSuccess   atomic.Uint64
	lastErrno      atomic.String
	grpcErrCnt     atomic.Uint64
	dataErrCnt     atomic.Uint64
	lastE2SARError atomic.String
}

// Snapshot is a race-free, point-in-time read of Stats.
type Snapshot struct {
	EnqueueLoss    uint64
	ReassemblyLoss uint64
	EventSuccess   uint64
	LastErrno      string
	GrpcErrCnt     uint64
	DataErrCnt     uint64
	LastE2SARError string
}

func (s *Stats) snapshot() Snapshot {
	return Snapshot{
		EnqueueLoss:    s.enqueueLoss.Load(),
		ReassemblyLoss: s.reassemblyLoss.Load(),
		EventSuccess:   s.eventSuccess.Load(),
		LastErrno:      s.lastErrno.Load(),
		GrpcErrCnt:     s.grpcErrCnt.Load(),
		DataErrCnt:     s.dataErrCnt.Load(),
		LastE2SARError: s.lastE2SARError.Load(),
	}
}

// Snapshot returns a point-in-time read of the Reassembler's counters.
func (r *Reassembler) Snapshot() Snapshot { return r.stats.snapshot() }

// fragmentCounters tracks per-port datagram counts, retrievable only after
// shutdown (spec.md §4.5): a live read during operation would race with the
// owning receive thread, so FragmentCounts returns nil until Stop has been
// called.
type fragmentCounters struct {
	counts map[uint16]*atomic.Uint64
}

func newFragmentCounters(ports []uint16) *fragmentCounters {
	fc := &fragmentCounters{counts: make(map[uint16]*atomic.Uint64, len(ports))}
	for _, p := range ports {
		fc.counts[p] = atomic.NewUint64(0)
	}
	return fc
}

func (fc *fragmentCounters) inc(port uint16) {
	if c, ok := fc.counts[port]; ok {
		c.Inc()
	}
}

func (fc *fragmentCounters) snapshot() map[uint16]uint64 {
	out := make(map[uint16]uint64, len(fc.counts))
	for port, c := range fc.counts {
		out[port] = c.Load()
	}
	return out
}
