package reassembler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jlab-hep/e2sar-go/internal/econfig"
	"github.com/jlab-hep/e2sar-go/pkg/euri"
	"github.com/jlab-hep/e2sar-go/pkg/header"
	"github.com/jlab-hep/e2sar-go/pkg/segmenter"
)

func testURI(t *testing.T) *euri.URI {
	t.Helper()
	uri, err := euri.Parse("ejfat://token@127.0.0.1:18080/lb/test1", euri.Admin, false)
	require.NoError(t, err)
	return uri
}

func TestPortRangeDerivedFromThreadCount(t *testing.T) {
	flags := econfig.DefaultReassemblerFlags()
	flags.UseCP = false
	r, err := New(testURI(t), net.IPv4(127, 0, 0, 1), 19522, 7, nil, flags, nil)
	require.NoError(t, err)
	require.Equal(t, 3, r.PortRange())
	require.Len(t, r.Ports(), 8)
	require.Equal(t, uint16(19522), r.Ports()[0])
	require.Equal(t, uint16(19529), r.Ports()[7])
}

func TestPortRangeOverrideIsHonored(t *testing.T) {
	flags := econfig.DefaultReassemblerFlags()
	flags.UseCP = false
	flags.PortRange = 10
	r, err := New(testURI(t), net.IPv4(127, 0, 0, 1), 19522, 4, nil, flags, nil)
	require.NoError(t, err)
	require.Equal(t, 10, r.PortRange())
	require.Len(t, r.Ports(), 1024)
	require.Equal(t, uint16(19522), r.Ports()[0])
	require.Equal(t, uint16(20545), r.Ports()[1023])
}

func TestOpenAndStartToleratesCoreAffinityFailure(t *testing.T) {
	flags := econfig.DefaultReassemblerFlags()
	flags.UseCP = false

	// cores is best-effort: an invalid/unsupported core must never stop
	// OpenAndStart from succeeding.
	r, err := New(testURI(t), net.IPv4(127, 0, 0, 1), 31528, 1, []int{9999}, flags, nil)
	require.NoError(t, err)
	require.NoError(t, r.OpenAndStart(context.Background(), "test-worker"))
	require.NoError(t, r.Stop(context.Background()))
}

func TestSingleFrameLoopback(t *testing.T) {
	const recvPort = 31522
	rflags := econfig.DefaultReassemblerFlags()
	rflags.UseCP = false
	rflags.WithLBHeader = true

	r, err := New(testURI(t), net.IPv4(127, 0, 0, 1), recvPort, 1, nil, rflags, nil)
	require.NoError(t, err)
	require.NoError(t, r.OpenAndStart(context.Background(), "test-worker"))
	defer r.Stop(context.Background())

	sflags := econfig.DefaultSegmenterFlags()
	sflags.UseCP = false
	sflags.MTU = 1500
	sflags.NumSendSockets = 1

	uri := testURI(t)
	uri.SetDataAddr(net.IPv4(127, 0, 0, 1), recvPort)

	s, err := segmenter.New(uri, 1, 1, sflags, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.OpenAndStart(context.Background()))
	defer s.Stop()

	payload := []byte("THIS IS A VERY LONG EVENT MESSAGE WE WANT TO SEND EVERY 1 SECONDS.")
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SendEvent(payload, 0, 0, 0))
		time.Sleep(20 * time.Millisecond)
	}

	deadline := time.Now().Add(3 * time.Second)
	received := 0
	for time.Now().Before(deadline) && received < 5 {
		if ev, ok := r.RecvEvent(200); ok {
			require.Equal(t, payload, ev.Data)
			received++
		}
	}
	require.Equal(t, 5, received)
	require.Equal(t, uint64(5), r.Snapshot().EventSuccess)
	require.Equal(t, uint64(0), r.Snapshot().ReassemblyLoss)
	require.Equal(t, uint64(0), r.Snapshot().EnqueueLoss)
}

func TestReceiveLoopRecordsLastErrnoOnSocketError(t *testing.T) {
	const recvPort = 31526
	flags := econfig.DefaultReassemblerFlags()
	flags.UseCP = false

	r, err := New(testURI(t), net.IPv4(127, 0, 0, 1), recvPort, 1, nil, flags, nil)
	require.NoError(t, err)
	require.NoError(t, r.OpenAndStart(context.Background(), "test-worker"))

	// Close the bound socket out from under the receive loop to force a
	// non-timeout ReadFromUDP error.
	for _, socks := range r.threadSocks {
		for _, conn := range socks {
			conn.Close()
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && r.Snapshot().LastErrno == "" {
		time.Sleep(10 * time.Millisecond)
	}
	require.NotEmpty(t, r.Snapshot().LastErrno)

	r.threadSocks = nil
	require.NoError(t, r.Stop(context.Background()))
}

func TestMultiFrameLoopback(t *testing.T) {
	const recvPort = 31524
	rflags := econfig.DefaultReassemblerFlags()
	rflags.UseCP = false
	rflags.WithLBHeader = true

	r, err := New(testURI(t), net.IPv4(127, 0, 0, 1), recvPort, 1, nil, rflags, nil)
	require.NoError(t, err)
	require.NoError(t, r.OpenAndStart(context.Background(), "test-worker"))
	defer r.Stop(context.Background())

	sflags := econfig.DefaultSegmenterFlags()
	sflags.UseCP = false
	sflags.MTU = 80
	sflags.NumSendSockets = 1

	uri := testURI(t)
	uri.SetDataAddr(net.IPv4(127, 0, 0, 1), recvPort)

	s, err := segmenter.New(uri, 1, 1, sflags, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.OpenAndStart(context.Background()))
	defer s.Stop()

	payload := []byte("THIS IS A VERY LONG EVENT MESSAGE WE WANT TO SEND EVERY 1 SECONDS.")
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SendEvent(payload, 0, 0, 0))
		time.Sleep(20 * time.Millisecond)
	}

	deadline := time.Now().Add(3 * time.Second)
	received := 0
	for time.Now().Before(deadline) && received < 5 {
		if ev, ok := r.RecvEvent(200); ok {
			require.Equal(t, payload, ev.Data)
			received++
		}
	}
	require.Equal(t, 5, received)
	require.Equal(t, uint64(5), r.Snapshot().EventSuccess)

	totalHdr := header.TotalHeaderLen(false)
	maxPld := sflags.MTU - totalHdr
	wantFragments := (len(payload) + maxPld - 1) / maxPld
	require.Equal(t, 5, wantFragments)
	require.Equal(t, uint64(25), s.Stats().DataSnapshot().MsgCnt)
}
