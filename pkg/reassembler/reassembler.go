// Package reassembler implements the E2SAR Reassembler: it binds a range of
// UDP ports, reassembles RE-headered fragments into complete events per
// (eventNum, dataId), and optionally reports PID-driven state to the control
// plane, grounded on original_source/include/e2sarDPReassembler.hpp.
package reassembler

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/tevino/abool"

	"github.com/jlab-hep/e2sar-go/internal/affinity"
	"github.com/jlab-hep/e2sar-go/internal/econfig"
	"github.com/jlab-hep/e2sar-go/internal/lbmanager"
	"github.com/jlab-hep/e2sar-go/internal/otuslog"
	"github.com/jlab-hep/e2sar-go/pkg/e2sarerr"
	"github.com/jlab-hep/e2sar-go/pkg/euri"
	"github.com/jlab-hep/e2sar-go/pkg/header"
)

// pollInterval mirrors the ~10 ms polling cadence spec.md §4.5 and §5
// document; each receive-loop pass splits it across its sockets' read
// deadlines and runs one GC sweep.
const pollInterval = 10 * time.Millisecond

// Reassembler receives, reassembles and queues events arriving from one or
// more Segmenters over a range of UDP ports.
type Reassembler struct {
	uri       *euri.URI
	localIP   net.IP
	startPort uint16
	numThreads int
	cores     []int
	flags     econfig.ReassemblerFlags
	portRange int

	logger *slog.Logger
	lbMgr  *lbmanager.Manager

	ports        []uint16
	threadSocks  [][]*net.UDPConn // threadSocks[i] = sockets owned by thread i

	queue *eventQueue
	stats Stats
	frags *fragmentCounters

	stopFlag *abool.AtomicBool
	wg       conc.WaitGroup
}

// New constructs a Reassembler. numThreads is used to derive portRange when
// flags.PortRange is negative (spec.md §4.5 "Port allocation"); cores, if
// non-empty, pins one receive thread per listed core and its length
// overrides numThreads.
func New(uri *euri.URI, localIP net.IP, startPort uint16, numThreads int, cores []int, flags econfig.ReassemblerFlags, logger *slog.Logger) (*Reassembler, error) {
	if logger == nil {
		logger = otuslog.Default()
	}
	if len(cores) > 0 {
		numThreads = len(cores)
	}
	if numThreads < 1 {
		return nil, e2sarerr.New(e2sarerr.ParameterError, "numThreads must be >= 1")
	}

	portRange := flags.PortRange
	if portRange < 0 {
		portRange = int(lbmanager.SourceCountToPortRange(uint16(numThreads)))
	}
	numPorts := 1 << uint(portRange)

	ports := make([]uint16, numPorts)
	for i := range ports {
		ports[i] = startPort + uint16(i)
	}

	return &Reassembler{
		uri:        uri,
		localIP:    localIP,
		startPort:  startPort,
		numThreads: numThreads,
		cores:      cores,
		flags:      flags,
		portRange:  portRange,
		logger:     otuslog.Component(logger, "reassembler"),
		ports:      ports,
		queue:      newEventQueue(),
		frags:      newFragmentCounters(ports),
		stopFlag:   abool.New(),
	}, nil
}

// WithLBManager attaches the control-plane façade used for register/
// SendState/deregister when flags.UseCP is set.
func (r *Reassembler) WithLBManager(m *lbmanager.Manager) { r.lbMgr = m }

// PortRange reports the resolved 2^r port-count exponent (spec.md §4.5:
// "portRange is reported to the CP so the LB can target the worker on the
// right port").
func (r *Reassembler) PortRange() int { return r.portRange }

// Ports returns the full set of bound (or about-to-be-bound) ports.
func (r *Reassembler) Ports() []uint16 { return append([]uint16(nil), r.ports...) }

// OpenAndStart binds every port, distributes them round-robin across
// numThreads receive threads, optionally registers with the control plane,
// and starts the receive goroutines (each also runs the GC sweep for its own
// in-progress events) and, when flags.UseCP is set, the SendState goroutine.
func (r *Reassembler) OpenAndStart(ctx context.Context, nodeName string) error {
	if r.flags.UseCP {
		if r.lbMgr == nil {
			return e2sarerr.New(e2sarerr.LogicError, "useCP set but no LBManager attached")
		}
		_, err := r.lbMgr.RegisterWorker(ctx, lbmanager.RegisterWorkerParams{
			NodeName:    nodeName,
			NodeIP:      r.localIP.String(),
			NodePort:    r.startPort,
			Weight:      float32(r.flags.Weight),
			SourceCount: uint16(len(r.ports)),
			MinFactor:   float32(r.flags.MinFactor),
			MaxFactor:   float32(r.flags.MaxFactor),
		})
		if err != nil {
			return e2sarerr.Wrap(e2sarerr.RPCError, "registerWorker failed", err)
		}
	}

	r.threadSocks = make([][]*net.UDPConn, r.numThreads)
	for i, port := range r.ports {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: r.localIP, Port: int(port)})
		if err != nil {
			return e2sarerr.Wrapf(e2sarerr.SocketError, "binding port %d", err, port)
		}
		if err := conn.SetReadBuffer(r.flags.RcvSocketBufSize); err != nil {
			r.logger.Debug("SetReadBuffer failed", "error", err)
		}
		thread := i % r.numThreads
		r.threadSocks[thread] = append(r.threadSocks[thread], conn)
	}

	for i := 0; i < r.numThreads; i++ {
		socks := r.threadSocks[i]
		core := -1
		if i < len(r.cores) {
			core = r.cores[i]
		}
		r.wg.Go(func() { r.receiveLoop(socks, core) })
	}

	if r.flags.UseCP {
		r.wg.Go(func() { r.sendStateLoop() })
	}

	return nil
}

// receiveLoop owns an exclusive subset of sockets and their in-progress
// event map (spec.md §4.5 "Receive loop (per thread)"): no cross-thread
// synchronization is required because the LB hashes every segment of one
// event to the same port.
func (r *Reassembler) receiveLoop(socks []*net.UDPConn, core int) {
	if core >= 0 {
		if err := affinity.SetThread(core); err != nil {
			r.logger.Debug("affinity.SetThread failed", "core", core, "error", err)
		}
	}

	inProgress := make(map[eventKey]*inProgressEvent)
	buf := make([]byte, 65536)

	for {
		if r.stopFlag.IsSet() {
			return
		}

		r.gc(inProgress)

		readAny := false
		for _, conn := range socks {
			conn.SetReadDeadline(time.Now().Add(pollInterval / time.Duration(len(socks))))
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
					r.stats.lastErrno.Store(err.Error())
					r.stats.dataErrCnt.Inc()
				}
				continue
			}
			readAny = true
			r.frags.inc(uint16(conn.LocalAddr().(*net.UDPAddr).Port))
			r.handleDatagram(inProgress, buf[:n])
		}
		if !readAny {
			time.Sleep(time.Millisecond)
		}
	}
}

func (r *Reassembler) handleDatagram(inProgress map[eventKey]*inProgressEvent, datagram []byte) {
	payload := datagram
	if r.flags.WithLBHeader {
		if len(payload) < header.LBHdrLen {
			r.stats.dataErrCnt.Inc()
			return
		}
		payload = payload[header.LBHdrLen:]
	}

	re, err := header.UnmarshalREHdr(payload)
	if err != nil {
		r.stats.dataErrCnt.Inc()
		return
	}
	segPayload := payload[header.REHdrLen:]

	key := eventKey{eventNum: re.EventNum, dataId: re.DataId}
	ev, ok := inProgress[key]
	if !ok {
		ev = newInProgressEvent(re.BufferLength, time.Now())
		inProgress[key] = ev
	}

	if ev.absorb(re.BufferOffset, segPayload) {
		delete(inProgress, key)
		r.stats.eventSuccess.Inc()
		assembled := &AssembledEvent{Data: ev.buf, EventNum: re.EventNum, DataId: re.DataId}
		if !r.queue.push(assembled, key) {
			r.stats.enqueueLoss.Inc()
		}
	}
}

// gc frees events-in-progress that have exceeded eventTimeout_ms without
// completing, counting each as reassembly-loss (spec.md §4.5 step 2).
func (r *Reassembler) gc(inProgress map[eventKey]*inProgressEvent) {
	if r.flags.EventTimeoutMs <= 0 {
		return
	}
	timeout := time.Duration(r.flags.EventTimeoutMs) * time.Millisecond
	now := time.Now()
	for key, ev := range inProgress {
		if ev.age(now) > timeout {
			delete(inProgress, key)
			r.stats.reassemblyLoss.Inc()
		}
	}
}

// Stop signals all threads to stop and waits for them, then closes sockets
// and, if registered, notifies the control plane (spec.md §4.5 "Worker
// lifecycle").
func (r *Reassembler) Stop(ctx context.Context) error {
	r.stopFlag.Set()
	r.wg.Wait()

	for _, socks := range r.threadSocks {
		for _, conn := range socks {
			conn.Close()
		}
	}

	if r.flags.UseCP && r.lbMgr != nil {
		if err := r.lbMgr.DeregisterWorker(ctx); err != nil {
			return e2sarerr.Wrap(e2sarerr.RPCError, "deregisterWorker failed", err)
		}
	}
	return nil
}

// FragmentCounts returns the per-port datagram counters. Per spec.md §4.5
// these are retrievable only after shutdown to avoid racing the owning
// receive thread.
func (r *Reassembler) FragmentCounts() map[uint16]uint64 {
	if !r.stopFlag.IsSet() {
		return nil
	}
	return r.frags.snapshot()
}
