// Package segmenter implements the E2SAR Segmenter: it fragments
// application events into LB+RE-headered UDP datagrams and fans them out
// over a pool of send sockets, optionally sending sync packets to the load
// balancer's sync address, grounded on
// original_source/include/e2sarDPSegmenter.hpp.
package segmenter

import (
	"context"
	"log/slog"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/tevino/abool"
	"go.uber.org/atomic"

	"github.com/jlab-hep/e2sar-go/internal/affinity"
	"github.com/jlab-hep/e2sar-go/internal/econfig"
	"github.com/jlab-hep/e2sar-go/internal/lbmanager"
	"github.com/jlab-hep/e2sar-go/internal/netutil"
	"github.com/jlab-hep/e2sar-go/internal/otuslog"
	"github.com/jlab-hep/e2sar-go/pkg/e2sarerr"
	"github.com/jlab-hep/e2sar-go/pkg/euri"
	"github.com/jlab-hep/e2sar-go/pkg/header"
	"github.com/jlab-hep/e2sar-go/pkg/segmenter/transport"
)

// sendQueueCapacity bounds the channel-backed MPSC queue AddToSendQueue pushes
// onto (spec.md §4.4: "pushes a lock-free MPSC record").
const sendQueueCapacity = 2048

// CompletionFunc is invoked exactly once per event, after its last segment
// has been submitted/sent, carrying the opaque cookie passed at enqueue
// time (spec.md §4.4: "callback ... receives the opaque cookie passed at
// enqueue").
type CompletionFunc func(cookie any)

type queuedEvent struct {
	data     []byte
	eventNum uint64
	dataId   uint16
	entropy  uint16
	cb       CompletionFunc
	cbArg    any
}

// Segmenter fragments and sends application events toward a dataplane
// address discovered via a *euri.URI, optionally reporting sync state over
// UDP to the URI's sync address.
type Segmenter struct {
	uri         *euri.URI
	defaultData uint16
	eventSrcId  uint32
	flags       econfig.SegmenterFlags
	cpuCores    []int

	logger *slog.Logger
	lbMgr  *lbmanager.Manager

	maxPld int

	sendConns      []*net.UDPConn
	sendTransports []transport.Transport
	syncConn       *net.UDPConn

	queue chan *queuedEvent

	stopFlag *abool.AtomicBool
	wg       conc.WaitGroup

	stats Stats

	rrIndex uint64
	rrMu    sync.Mutex

	tick *tickGenerator

	periodEvents atomic.Uint64

	rateHistory   []uint64
	rateHistoryMu sync.Mutex
}

// New constructs a Segmenter bound to uri's dataplane address. It does not
// start any threads; call OpenAndStart for that (spec.md §4.4).
func New(uri *euri.URI, defaultDataId uint16, eventSrcId uint32, flags econfig.SegmenterFlags, cpuCores []int, logger *slog.Logger) (*Segmenter, error) {
	if logger == nil {
		logger = otuslog.Default()
	}

	mtu := flags.MTU
	if mtu == 0 {
		if _, probed, err := netutil.InterfaceAndMTU(net.IPv4(127, 0, 0, 1)); err == nil {
			mtu = probed
		} else {
			return nil, e2sarerr.Wrap(e2sarerr.SocketError, "MTU autodetect unavailable; caller must pass a nonzero MTU", err)
		}
	}

	totalHdr := header.TotalHeaderLen(flags.DpV6)
	if mtu <= totalHdr {
		return nil, e2sarerr.Newf(e2sarerr.SocketError, "mtu %d too small for header length %d", mtu, totalHdr)
	}

	return &Segmenter{
		uri:         uri,
		defaultData: defaultDataId,
		eventSrcId:  eventSrcId,
		flags:       flags,
		cpuCores:    cpuCores,
		logger:      otuslog.Component(logger, "segmenter"),
		maxPld:      mtu - totalHdr,
		queue:       make(chan *queuedEvent, sendQueueCapacity),
		stopFlag:    abool.New(),
		rateHistory: make([]uint64, 0, flags.SyncPeriods),
	}, nil
}

// WithLBManager stores a control-plane façade on the Segmenter. No Segmenter
// operation calls through it: sync packets go over UDP to the URI's sync
// address, and the Segmenter registers nothing with the control plane.
func (s *Segmenter) WithLBManager(m *lbmanager.Manager) { s.lbMgr = m }

// OpenAndStart opens the sync socket first (if useCP) and emits sync for
// warmUpMs before opening data sockets and starting the send workers
// (spec.md §4.4 "Startup").
func (s *Segmenter) OpenAndStart(ctx context.Context) error {
	needsPRNGBits := runClockEntropySelfTest()
	s.tick = newTickGenerator(false, needsPRNGBits, time.Now().UnixNano())

	if s.flags.UseCP {
		if err := s.openSyncSocket(); err != nil {
			return err
		}
		s.wg.Go(func() { s.syncLoop() })
		time.Sleep(time.Duration(s.flags.WarmUpMs) * time.Millisecond)
	}

	if err := s.openDataSockets(); err != nil {
		return err
	}

	for i, conn := range s.sendConns {
		conn := conn
		tr := s.sendTransports[i]
		core := -1
		if i < len(s.cpuCores) {
			core = s.cpuCores[i]
		}
		s.wg.Go(func() { s.sendWorker(conn, tr, core) })
	}

	return nil
}

func (s *Segmenter) openSyncSocket() error {
	if !s.uri.HasSyncAddr() {
		return e2sarerr.New(e2sarerr.ParameterNotAvailable, "sync address not available on URI")
	}
	addr, port, err := s.uri.SyncAddr()
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: addr, Port: int(port)})
	if err != nil {
		return e2sarerr.Wrap(e2sarerr.SocketError, "dialing sync address", err)
	}
	s.syncConn = conn
	return nil
}

func (s *Segmenter) openDataSockets() error {
	dataAddr, dataPort, err := s.resolveDataAddr()
	if err != nil {
		return err
	}

	transportName := s.flags.Transport
	if transportName == "" {
		transportName = transport.PlainName
	}
	s.sendConns = make([]*net.UDPConn, 0, s.flags.NumSendSockets)
	s.sendTransports = make([]transport.Transport, 0, s.flags.NumSendSockets)

	for i := 0; i < s.flags.NumSendSockets; i++ {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
		if err != nil {
			return e2sarerr.Wrap(e2sarerr.SocketError, "opening send socket", err)
		}
		if err := conn.SetWriteBuffer(s.flags.SndSocketBufSize); err != nil {
			s.logger.Debug("SetWriteBuffer failed", "error", err)
		}

		destPort := dataPort
		if s.flags.MultiPort {
			destPort = dataPort + uint16(i)
		}
		if s.flags.ConnectedSocket {
			if err := conn.Close(); err != nil {
				return e2sarerr.Wrap(e2sarerr.SocketError, "closing ephemeral socket before connect", err)
			}
			connected, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: dataAddr, Port: int(destPort)})
			if err != nil {
				return e2sarerr.Wrap(e2sarerr.SocketError, "connecting data socket", err)
			}
			conn = connected
		}

		tr, err := transport.Get(transportName)
		if err != nil {
			return e2sarerr.Wrap(e2sarerr.SocketError, "building send transport", err)
		}

		s.sendConns = append(s.sendConns, conn)
		s.sendTransports = append(s.sendTransports, tr)
	}
	return nil
}

func (s *Segmenter) resolveDataAddr() (net.IP, uint16, error) {
	if s.flags.DpV6 && s.uri.HasDataAddrV6() {
		return s.uri.DataAddrV6()
	}
	if s.uri.HasDataAddrV4() {
		return s.uri.DataAddrV4()
	}
	if s.uri.HasDataAddrV6() {
		return s.uri.DataAddrV6()
	}
	return nil, 0, e2sarerr.New(e2sarerr.ParameterNotAvailable, "no data address available on URI")
}

// AddToSendQueue pushes a non-blocking MPSC record (spec.md §4.4). An
// entropy of 0 generates a fresh random value per event; an eventNum of 0
// takes the next value of the Segmenter's tick generator (a microsecond
// timestamp, low byte OR'd with random bits when the startup clock-entropy
// self-test fails), so defaulted event numbers are not guaranteed to be
// strictly increasing; a dataId of 0 falls back to the Segmenter's default.
func (s *Segmenter) AddToSendQueue(data []byte, eventNum uint64, dataId uint16, entropy uint16, cb CompletionFunc, cbArg any) error {
	ev := s.prepareEvent(data, eventNum, dataId, entropy, cb, cbArg)
	select {
	case s.queue <- ev:
		return nil
	default:
		return e2sarerr.New(e2sarerr.LogicError, "send queue full")
	}
}

// SendEvent is the blocking variant: it bypasses the queue and segments/
// sends the event directly on the calling goroutine, round-robining
// successive calls across the send sockets. Queued events are instead sent on
// the socket of whichever send worker dequeues them.
func (s *Segmenter) SendEvent(data []byte, eventNum uint64, dataId uint16, entropy uint16) error {
	ev := s.prepareEvent(data, eventNum, dataId, entropy, nil, nil)
	conn, tr := s.pickSocket()
	return s.segmentAndSend(conn, tr, ev)
}

func (s *Segmenter) prepareEvent(data []byte, eventNum uint64, dataId uint16, entropy uint16, cb CompletionFunc, cbArg any) *queuedEvent {
	if dataId == 0 {
		dataId = s.defaultData
	}
	if eventNum == 0 {
		eventNum = s.tick.Next()
	}
	if entropy == 0 {
		entropy = uint16(rand.Intn(1 << 16))
	}
	return &queuedEvent{data: data, eventNum: eventNum, dataId: dataId, entropy: entropy, cb: cb, cbArg: cbArg}
}

func (s *Segmenter) pickSocket() (*net.UDPConn, transport.Transport) {
	s.rrMu.Lock()
	idx := s.rrIndex % uint64(len(s.sendConns))
	s.rrIndex++
	s.rrMu.Unlock()
	return s.sendConns[idx], s.sendTransports[idx]
}

func (s *Segmenter) sendWorker(conn *net.UDPConn, tr transport.Transport, core int) {
	if core >= 0 {
		if err := affinity.SetThread(core); err != nil {
			s.logger.Debug("affinity.SetThread failed", "core", core, "error", err)
		}
	}
	for {
		if s.stopFlag.IsSet() {
			s.drainQueue(conn, tr)
			return
		}
		select {
		case ev := <-s.queue:
			_ = s.segmentAndSend(conn, tr, ev)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (s *Segmenter) drainQueue(conn *net.UDPConn, tr transport.Transport) {
	for {
		select {
		case ev := <-s.queue:
			_ = s.segmentAndSend(conn, tr, ev)
		default:
			return
		}
	}
}

// segmentAndSend builds the LB+RE header pair for every offset of ev and
// dispatches the full set of segments through tr as a single event (spec.md
// §4.4 steps 2–5).
func (s *Segmenter) segmentAndSend(conn *net.UDPConn, tr transport.Transport, ev *queuedEvent) error {
	total := len(ev.data)
	segCount := 1
	if s.maxPld > 0 && total > s.maxPld {
		segCount = (total + s.maxPld - 1) / s.maxPld
	}

	datagrams := make([]transport.Datagram, 0, segCount)
	for offset := 0; offset < total || (total == 0 && offset == 0); offset += s.maxPld {
		end := offset + s.maxPld
		if end > total {
			end = total
		}

		hdr := make([]byte, header.LBREHdrLen)
		header.NewLBHdr(ev.entropy, ev.eventNum).Marshal(hdr[:header.LBHdrLen])
		header.REHdr{
			DataId:       ev.dataId,
			BufferOffset: uint32(offset),
			BufferLength: uint32(total),
			EventNum:     ev.eventNum,
		}.Marshal(hdr[header.LBHdrLen:])

		datagrams = append(datagrams, transport.Datagram{Header: hdr, Payload: ev.data[offset:end]})

		if total == 0 {
			break
		}
	}

	done := func() {
		if ev.cb != nil {
			ev.cb(ev.cbArg)
		}
	}

	var cbErr error
	if s.flags.Smooth {
		cbErr = s.sendSmooth(conn, tr, datagrams, done)
	} else {
		cbErr = tr.SendEvent(conn, datagrams, done)
	}

	// msgCnt counts individual datagrams sent, matching spec.md §8 scenario 2
	// ("msgCnt==25" for 5 events x 5 fragments each).
	if cbErr != nil {
		s.stats.Data.recordError(cbErr.Error(), "SocketError")
	} else {
		s.stats.Data.recordSuccessN(uint64(len(datagrams)))
		s.periodEvents.Inc()
	}

	if s.flags.RateGbps > 0 && !s.flags.Smooth {
		s.rateShape(total)
	}
	return cbErr
}

// sendSmooth sends datagrams one at a time, pacing between each by its own
// payload size rather than bursting the whole event and sleeping once
// (spec.md §4.4 step 5: smooth mode paces every frame). done fires after the
// last segment, preserving the exactly-once completion contract.
func (s *Segmenter) sendSmooth(conn *net.UDPConn, tr transport.Transport, datagrams []transport.Datagram, done transport.CompletionFunc) error {
	for i, dg := range datagrams {
		var cb transport.CompletionFunc
		if i == len(datagrams)-1 {
			cb = done
		}
		if err := tr.SendEvent(conn, []transport.Datagram{dg}, cb); err != nil {
			return err
		}
		if s.flags.RateGbps > 0 {
			s.rateShape(len(dg.Payload))
		}
	}
	return nil
}

func (s *Segmenter) rateShape(bytes int) {
	micros := float64(bytes) * 8 / (s.flags.RateGbps * 1000)
	if micros <= 0 {
		return
	}
	deadline := time.Now().Add(time.Duration(micros) * time.Microsecond)
	for time.Now().Before(deadline) {
	}
}

// syncLoop sends a SyncHdr at flags.SyncPeriodMs cadence, averaging the send
// rate over the last flags.SyncPeriods intervals (spec.md §4.4 "Sync
// thread"). Errors bump the sync direction's errCnt (Stats.Sync) and never
// stop the loop.
func (s *Segmenter) syncLoop() {
	ticker := time.NewTicker(time.Duration(s.flags.SyncPeriodMs) * time.Millisecond)
	defer ticker.Stop()

	var lastEventNum uint64
	for {
		if s.stopFlag.IsSet() {
			return
		}
		select {
		case <-ticker.C:
			lastEventNum = s.tick.Next()

			count := s.periodEvents.Swap(0)
			intervalSec := float64(s.flags.SyncPeriodMs) / 1000.0
			var rateHz uint64
			if intervalSec > 0 {
				rateHz = uint64(float64(count) / intervalSec)
			}
			s.pushRateSample(rateHz)

			buf := make([]byte, header.SyncHdrLen)
			header.SyncHdr{
				EventSrcId:     s.eventSrcId,
				EventNumber:    lastEventNum,
				AvgEventRateHz: uint32(s.averageRate()),
				UnixTimeNano:   uint64(time.Now().UnixNano()),
			}.Marshal(buf)

			if _, err := s.syncConn.Write(buf); err != nil {
				s.stats.Sync.recordError(err.Error(), "SocketError")
			} else {
				s.stats.Sync.recordSuccess()
			}
		}
	}
}

// pushRateSample records rateHz as the most recent per-sync-period sample,
// keeping at most flags.SyncPeriods entries (spec.md §4.4 "Sync thread":
// "averaging the send rate over the last flags.SyncPeriods intervals").
func (s *Segmenter) pushRateSample(rateHz uint64) {
	s.rateHistoryMu.Lock()
	defer s.rateHistoryMu.Unlock()

	limit := s.flags.SyncPeriods
	if limit <= 0 {
		limit = 1
	}
	s.rateHistory = append(s.rateHistory, rateHz)
	if len(s.rateHistory) > limit {
		s.rateHistory = s.rateHistory[len(s.rateHistory)-limit:]
	}
}

func (s *Segmenter) averageRate() uint64 {
	s.rateHistoryMu.Lock()
	defer s.rateHistoryMu.Unlock()
	if len(s.rateHistory) == 0 {
		return 0
	}
	var sum uint64
	for _, r := range s.rateHistory {
		sum += r
	}
	return sum / uint64(len(s.rateHistory))
}

// Stop signals all threads to stop, waits for the send workers to drain the
// queue, and closes sockets. Safe to call once.
func (s *Segmenter) Stop() {
	s.stopFlag.Set()
	s.wg.Wait()
	for _, conn := range s.sendConns {
		conn.Close()
	}
	for _, tr := range s.sendTransports {
		tr.Close()
	}
	if s.syncConn != nil {
		s.syncConn.Close()
	}
}

// Stats returns the Segmenter's {sync, data} counters.
func (s *Segmenter) Stats() *Stats { return &s.stats }
