package segmenter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectionStatsRecordsSuccessAndError(t *testing.T) {
	var s DirectionStats
	s.recordSuccess()
	s.recordSuccess()
	s.recordError("EAGAIN", "SocketError")

	snap := s.snapshot()
	require.Equal(t, uint64(2), snap.MsgCnt)
	require.Equal(t, uint64(1), snap.ErrCnt)
	require.Equal(t, "EAGAIN", snap.LastErrno)
	require.Equal(t, "SocketError", snap.LastE2SARErrorCode)
}

func TestStatsSnapshotsAreIndependent(t *testing.T) {
	var st Stats
	st.Sync.recordSuccess()
	st.Data.recordError("EINTR", "SystemError")

	require.Equal(t, uint64(1), st.SyncSnapshot().MsgCnt)
	require.Equal(t, uint64(0), st.DataSnapshot().MsgCnt)
	require.Equal(t, uint64(1), st.DataSnapshot().ErrCnt)
}
