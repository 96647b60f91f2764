package segmenter

import "go.uber.org/atomic"

// DirectionStats is the {msgCnt, errCnt, lastErrno, lastE2SARErrorCode}
// counter set spec.md §4.4 reports per direction (sync, data).
type DirectionStats struct {
	msgCnt             atomic.Uint64
	errCnt             atomic.Uint64
	lastErrno          atomic.String
	lastE2SARErrorCode atomic.String
}

func (s *DirectionStats) recordSuccess() {
	s.msgCnt.Inc()
}

func (s *DirectionStats) recordSuccessN(n uint64) {
	s.msgCnt.Add(n)
}

func (s *DirectionStats) recordError(errnoStr, kindStr string) {
	s.errCnt.Inc()
	s.lastErrno.Store(errnoStr)
	s.lastE2SARErrorCode.Store(kindStr)
}

// Snapshot is an immutable, race-free read of one DirectionStats instant.
type Snapshot struct {
	MsgCnt             uint64
	ErrCnt             uint64
	LastErrno          string
	LastE2SARErrorCode string
}

func (s *DirectionStats) snapshot() Snapshot {
	return Snapshot{
		MsgCnt:             s.msgCnt.Load(),
		ErrCnt:             s.errCnt.Load(),
		LastErrno:          s.lastErrno.Load(),
		LastE2SARErrorCode: s.lastE2SARErrorCode.Load(),
	}
}

// Stats bundles the Segmenter's sync- and data-direction counters.
type Stats struct {
	Sync DirectionStats
	Data DirectionStats
}

// SyncSnapshot returns a point-in-time read of the sync-direction counters.
func (s *Stats) SyncSnapshot() Snapshot { return s.Sync.snapshot() }

// DataSnapshot returns a point-in-time read of the data-direction counters.
func (s *Stats) DataSnapshot() Snapshot { return s.Data.snapshot() }
