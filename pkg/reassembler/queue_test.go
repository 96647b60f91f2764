package reassembler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventQueuePushAndOverflow(t *testing.T) {
	q := newEventQueue()
	for i := 0; i < eventQueueCapacity; i++ {
		ok := q.push(&AssembledEvent{EventNum: uint64(i)}, eventKey{eventNum: uint64(i)})
		require.True(t, ok)
	}
	ok := q.push(&AssembledEvent{EventNum: 99999}, eventKey{eventNum: 99999})
	require.False(t, ok)

	lost := q.lostEvents()
	require.Len(t, lost, 1)
	require.Equal(t, uint64(99999), lost[0].eventNum)
}

func TestEventQueueDepth(t *testing.T) {
	q := newEventQueue()
	require.Equal(t, 0, q.depth())
	q.push(&AssembledEvent{}, eventKey{})
	require.Equal(t, 1, q.depth())
}

func TestEventQueueLostBoundedCapacity(t *testing.T) {
	q := newEventQueue()
	for i := 0; i < eventQueueCapacity; i++ {
		q.push(&AssembledEvent{}, eventKey{})
	}
	for i := 0; i < lostEventsQueueCapacity+10; i++ {
		q.push(&AssembledEvent{}, eventKey{eventNum: uint64(i)})
	}
	require.LessOrEqual(t, len(q.lostEvents()), lostEventsQueueCapacity)
}
