package reassembler

import (
	"container/heap"
	"time"
)

// eventKey identifies one event-in-progress record, matching spec.md §4.5's
// "keyed by (eventNum, dataId)".
type eventKey struct {
	eventNum uint64
	dataId   uint16
}

// pendingSegment is one out-of-order arrival waiting for its turn; heap-
// ordered by offset so the lowest unconsumed offset always surfaces first
// (spec.md §4.5 step 4, §9: "min-heap keyed by offset ... at most a few
// entries are expected under normal loss").
type pendingSegment struct {
	offset  uint32
	payload []byte
}

type segmentHeap []pendingSegment

func (h segmentHeap) Len() int            { return len(h) }
func (h segmentHeap) Less(i, j int) bool  { return h[i].offset < h[j].offset }
func (h segmentHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *segmentHeap) Push(x any)         { *h = append(*h, x.(pendingSegment)) }
func (h *segmentHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// inProgressEvent is the per-event assembly record owned exclusively by one
// receive thread (spec.md §5: "event-in-progress map is thread-local to each
// receive thread — no sharing").
type inProgressEvent struct {
	buf       []byte
	filled    uint32
	total     uint32
	firstSeen time.Time
	ooo       segmentHeap
}

func newInProgressEvent(total uint32, now time.Time) *inProgressEvent {
	return &inProgressEvent{
		buf:       make([]byte, total),
		firstSeen: now,
	}
}

// absorb copies a segment at bufferOffset into the event buffer if it is the
// next expected offset, otherwise parks it in the out-of-order heap; it then
// repeatedly drains the heap of segments whose offset now matches the new
// expected offset (spec.md §4.5 step 4). Returns true once filled==total.
func (e *inProgressEvent) absorb(offset uint32, payload []byte) bool {
	if offset == e.filled {
		e.copyIn(offset, payload)
		e.drainHeap()
	} else {
		heap.Push(&e.ooo, pendingSegment{offset: offset, payload: append([]byte(nil), payload...)})
	}
	return e.filled >= e.total
}

func (e *inProgressEvent) copyIn(offset uint32, payload []byte) {
	n := copy(e.buf[offset:], payload)
	e.filled = offset + uint32(n)
}

func (e *inProgressEvent) drainHeap() {
	for e.ooo.Len() > 0 && e.ooo[0].offset == e.filled {
		next := heap.Pop(&e.ooo).(pendingSegment)
		e.copyIn(next.offset, next.payload)
	}
}

// age reports how long since the first segment of this event was seen.
func (e *inProgressEvent) age(now time.Time) time.Duration {
	return now.Sub(e.firstSeen)
}
