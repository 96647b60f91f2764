package header

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLBHdrRoundTrip(t *testing.T) {
	buf := make([]byte, LBHdrLen)
	h := NewLBHdr(0xBEEF, 0x0102030405060708)
	h.Marshal(buf)

	require.Equal(t, []byte{'L', 'B'}, buf[0:2])
	require.Equal(t, byte(2), buf[2])
	require.Equal(t, byte(1), buf[3])

	got, err := UnmarshalLBHdr(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestLBHdrBadVersionRejected(t *testing.T) {
	buf := make([]byte, LBHdrLen)
	NewLBHdr(1, 1).Marshal(buf)
	buf[2] = 9 // corrupt version
	_, err := UnmarshalLBHdr(buf)
	require.Error(t, err)
}

func TestREHdrRoundTrip(t *testing.T) {
	buf := make([]byte, REHdrLen)
	h := REHdr{DataId: 7, BufferOffset: 1400, BufferLength: 65536, EventNum: 99}
	h.Marshal(buf)

	require.Equal(t, byte(rehdrVersionNibble), buf[0])
	require.Equal(t, byte(0), buf[1])

	got, err := UnmarshalREHdr(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestREHdrValidationRejectsBadVersionOrReserved(t *testing.T) {
	buf := make([]byte, REHdrLen)
	REHdr{DataId: 1, BufferOffset: 0, BufferLength: 10, EventNum: 1}.Marshal(buf)

	bad := append([]byte(nil), buf...)
	bad[0] = 0x20 // version nibble 2, not 1
	_, err := UnmarshalREHdr(bad)
	require.Error(t, err)

	bad2 := append([]byte(nil), buf...)
	bad2[1] = 0xFF // reserved must be 0
	_, err = UnmarshalREHdr(bad2)
	require.Error(t, err)
}

func TestSyncHdrRoundTrip(t *testing.T) {
	buf := make([]byte, SyncHdrLen)
	h := SyncHdr{EventSrcId: 42, EventNumber: 123456, AvgEventRateHz: 1000, UnixTimeNano: 1700000000000000000}
	h.Marshal(buf)

	require.Equal(t, []byte{'L', 'C'}, buf[0:2])

	got, err := UnmarshalSyncHdr(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

// TestBigEndianByteOrder pins the wire layout against literal reference bytes
// (spec.md §8: "All multi-byte integer fields are big-endian on the wire").
func TestBigEndianByteOrder(t *testing.T) {
	buf := make([]byte, LBREHdrLen)
	NewLBHdr(0x0102, 0x0102030405060708).Marshal(buf[0:LBHdrLen])
	REHdr{DataId: 0x0304, BufferOffset: 0x05060708, BufferLength: 0x090a0b0c, EventNum: 0x0102030405060708}.
		Marshal(buf[LBHdrLen:])

	require.Equal(t, byte(0x01), buf[6]) // entropy high byte
	require.Equal(t, byte(0x02), buf[7]) // entropy low byte
	require.Equal(t, byte(0x03), buf[LBHdrLen+2])
	require.Equal(t, byte(0x04), buf[LBHdrLen+3])
}

func TestHeaderSizes(t *testing.T) {
	require.Equal(t, 16, LBHdrLen)
	require.Equal(t, 20, REHdrLen)
	require.Equal(t, 28, SyncHdrLen)
	require.Equal(t, 36, LBREHdrLen)
}

func TestTotalHeaderLen(t *testing.T) {
	require.Equal(t, 20+8+36, TotalHeaderLen(false))
	require.Equal(t, 40+8+36, TotalHeaderLen(true))
}
