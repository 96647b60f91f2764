package reassembler

import (
	"sync"
	"time"
)

// AssembledEvent is a fully reassembled event, handed to the consumer. The
// consumer now owns Data and must not retain references past its own
// processing (spec.md §4.5 "Consumer API").
type AssembledEvent struct {
	Data     []byte
	EventNum uint64
	DataId   uint16
}

// eventQueueCapacity bounds the completed-event queue; once full, the next
// completed event is dropped and counted as enqueue-loss (spec.md §4.5 step
// 5, §8).
const eventQueueCapacity = 1024

// lostEventsQueueCapacity bounds the diagnostic queue of dropped event keys
// visible to the consumer (spec.md §4.5: "a bounded lost-events queue
// visible to the consumer for diagnostics").
const lostEventsQueueCapacity = 256

type eventQueue struct {
	ch chan *AssembledEvent

	lostMu sync.Mutex
	lost   []eventKey
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		ch:   make(chan *AssembledEvent, eventQueueCapacity),
		lost: make([]eventKey, 0, lostEventsQueueCapacity),
	}
}

// push attempts to enqueue ev, returning false if the queue was full, in
// which case key is appended to the bounded lost-events diagnostic queue
// (oldest entries are dropped once that queue itself fills).
func (q *eventQueue) push(ev *AssembledEvent, key eventKey) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		q.lostMu.Lock()
		if len(q.lost) >= lostEventsQueueCapacity {
			q.lost = q.lost[1:]
		}
		q.lost = append(q.lost, key)
		q.lostMu.Unlock()
		return false
	}
}

// depth returns the current queue occupancy, used by the PID thread's
// fillPercent sample.
func (q *eventQueue) depth() int { return len(q.ch) }

// lostEvents returns a snapshot of the diagnostic queue's current contents.
func (q *eventQueue) lostEvents() []eventKey {
	q.lostMu.Lock()
	defer q.lostMu.Unlock()
	out := make([]eventKey, len(q.lost))
	copy(out, q.lost)
	return out
}

// GetEvent is the non-blocking consumer call; it returns (nil, false) when
// the queue is empty (spec.md §4.5: "getEvent (non-blocking; returns -1 when
// queue is empty)").
func (r *Reassembler) GetEvent() (*AssembledEvent, bool) {
	select {
	case ev := <-r.queue.ch:
		return ev, true
	default:
		return nil, false
	}
}

// RecvEvent blocks until an event is available, waitMs elapses, or the
// Reassembler is stopped, waking roughly every 10 ms to check both
// conditions (spec.md §4.5: "blocks on a condition variable, wakes every
// ~10 ms to check the stop flag and the optional deadline").
func (r *Reassembler) RecvEvent(waitMs int) (*AssembledEvent, bool) {
	var deadline time.Time
	if waitMs > 0 {
		deadline = time.Now().Add(time.Duration(waitMs) * time.Millisecond)
	}

	for {
		select {
		case ev := <-r.queue.ch:
			return ev, true
		case <-time.After(10 * time.Millisecond):
			if r.stopFlag.IsSet() {
				return nil, false
			}
			if waitMs > 0 && time.Now().After(deadline) {
				return nil, false
			}
		}
	}
}

// LostEvents returns the (eventNum, dataId) keys of the most recently
// dropped events, for consumer-side diagnostics.
func (r *Reassembler) LostEvents() []struct {
	EventNum uint64
	DataId   uint16
} {
	keys := r.queue.lostEvents()
	out := make([]struct {
		EventNum uint64
		DataId   uint16
	}, len(keys))
	for i, k := range keys {
		out[i] = struct {
			EventNum uint64
			DataId   uint16
		}{EventNum: k.eventNum, DataId: k.dataId}
	}
	return out
}
