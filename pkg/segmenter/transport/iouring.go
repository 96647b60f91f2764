//go:build linux

package transport

import (
	"net"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// IOUringName is the registry name for the io_uring transport. The ring is
// set up without SQPOLL (submission goes through io_uring_enter) and SQEs
// name the socket's ordinary fd; no files are registered with the ring
// (spec.md §4.4 step 4, §9: "in io_uring mode the callback MUST be
// invoked on the CQE thread, not the submitter"). Built directly against
// golang.org/x/sys/unix raw syscalls since no io_uring wrapper library is
// grounded anywhere in the retrieved corpus (see DESIGN.md).
const IOUringName = "io_uring"

func init() {
	Register(IOUringName, newIOUringTransport)
}

const (
	ioUringQueueDepth = 256

	ioUringOpWritev = 2

	ioSqringOffHead        = 0
	ioSqringOffTail        = 4
	ioSqringOffRingMask    = 8
	ioSqringOffRingEntries = 12
	ioSqringOffArray       = 36

	ioCqringOffHead        = 0
	ioCqringOffTail        = 4
	ioCqringOffRingMask    = 8
	ioCqringOffRingEntries = 12
	ioCqringOffCqes        = 32

	ioUringEnterGetevents = 1 << 0

	ioSqeSizeof = 64
	ioCqeSizeof = 16
)

// ioUringParams mirrors struct io_uring_params from <linux/io_uring.h>; only
// the fields this transport reads/writes are named, the rest are padding
// matched by byte offset.
type ioUringParams struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCPU  uint32
	sqThreadIdle uint32
	features     uint32
	wqFd         uint32
	resv         [3]uint32
	sqOff        ioSqringOffsets
	cqOff        ioCqringOffsets
}

type ioSqringOffsets struct {
	head, tail, ringMask, ringEntries, flags, dropped, array uint32
	resv1                                                    uint32
	resv2                                                    uint64
}

type ioCqringOffsets struct {
	head, tail, ringMask, ringEntries, overflow, cqes uint32
	flags                                             uint32
	resv1                                              uint32
	resv2                                              uint64
}

// completion tracks in-flight event submissions: a pending segment count and
// the callback to run once it reaches zero, invoked from reapLoop.
type completion struct {
	remaining int32
	done      CompletionFunc
}

type ioUringTransport struct {
	fd int

	sqRing, cqRing []byte
	sqeArray       []byte

	sqHead, sqTail, sqMask *uint32
	sqArray                []uint32

	cqHead, cqTail, cqMask *uint32

	mu      sync.Mutex
	nextTag uint64
	pending map[uint64]*completion

	closeOnce sync.Once
	stop      chan struct{}
}

func newIOUringTransport() (Transport, error) {
	var params ioUringParams
	params.flags = 0 // no IORING_SETUP_SQPOLL, so sqThreadIdle below has no effect
	params.sqThreadIdle = 2000

	fd, _, errno := unix.Syscall(unix.SYS_IO_URING_SETUP, uintptr(ioUringQueueDepth), uintptr(unsafe.Pointer(&params)), 0)
	if errno != 0 {
		return nil, errno
	}

	ringFd := int(fd)

	sqRingSize := params.sqOff.array + params.sqEntries*4
	cqRingSize := params.cqOff.cqes + params.cqEntries*ioCqeSizeof

	sqRing, err := unix.Mmap(ringFd, 0, int(sqRingSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Close(ringFd)
		return nil, err
	}
	cqRing, err := unix.Mmap(ringFd, 0x8000000, int(cqRingSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Munmap(sqRing)
		unix.Close(ringFd)
		return nil, err
	}
	sqes, err := unix.Mmap(ringFd, 0x10000000, int(params.sqEntries)*ioSqeSizeof, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Munmap(sqRing)
		unix.Munmap(cqRing)
		unix.Close(ringFd)
		return nil, err
	}

	t := &ioUringTransport{
		fd:       ringFd,
		sqRing:   sqRing,
		cqRing:   cqRing,
		sqeArray: sqes,
		pending:  make(map[uint64]*completion),
		stop:     make(chan struct{}),
	}
	t.sqHead = (*uint32)(unsafe.Pointer(&sqRing[params.sqOff.head]))
	t.sqTail = (*uint32)(unsafe.Pointer(&sqRing[params.sqOff.tail]))
	t.sqMask = (*uint32)(unsafe.Pointer(&sqRing[params.sqOff.ringMask]))
	t.cqHead = (*uint32)(unsafe.Pointer(&cqRing[params.cqOff.head]))
	t.cqTail = (*uint32)(unsafe.Pointer(&cqRing[params.cqOff.tail]))
	t.cqMask = (*uint32)(unsafe.Pointer(&cqRing[params.cqOff.ringMask]))

	arrayPtr := unsafe.Pointer(&sqRing[params.sqOff.array])
	t.sqArray = unsafe.Slice((*uint32)(arrayPtr), params.sqEntries)

	go t.reapLoop()
	return t, nil
}

func (t *ioUringTransport) Name() string { return IOUringName }

// SendEvent submits every segment's writev as a separate SQE tagged with a
// shared completion record; done runs on the CQE reaper once the record's
// outstanding counter reaches zero. The SQEs are submitted with one
// io_uring_enter call per event.
func (t *ioUringTransport) SendEvent(conn *net.UDPConn, datagrams []Datagram, done CompletionFunc) error {
	if len(datagrams) == 0 {
		if done != nil {
			done()
		}
		return nil
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	t.mu.Lock()
	tag := t.nextTag
	t.nextTag++
	t.pending[tag] = &completion{remaining: int32(len(datagrams)), done: done}
	t.mu.Unlock()

	var submitErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		for _, dg := range datagrams {
			iov := []unix.Iovec{{Base: &dg.Header[0]}, {Base: &dg.Header[0]}}
			iov[0].SetLen(len(dg.Header))
			if len(dg.Payload) > 0 {
				iov[1].Base = &dg.Payload[0]
			}
			iov[1].SetLen(len(dg.Payload))

			if err := t.pushSQE(uint32(fd), iov, tag); err != nil {
				submitErr = err
				return
			}
		}
		if _, _, errno := unix.Syscall(unix.SYS_IO_URING_ENTER, uintptr(t.fd), uintptr(len(datagrams)), 0); errno != 0 {
			submitErr = errno
		}
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return submitErr
}

func (t *ioUringTransport) pushSQE(fd uint32, iov []unix.Iovec, tag uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tail := atomic.LoadUint32(t.sqTail)
	mask := atomic.LoadUint32(t.sqMask)
	idx := tail & mask

	sqe := (*ioUringSQE)(unsafe.Pointer(&t.sqeArray[idx*ioSqeSizeof]))
	sqe.opcode = ioUringOpWritev
	sqe.fd = int32(fd)
	sqe.addr = uint64(uintptr(unsafe.Pointer(&iov[0])))
	sqe.len = uint32(len(iov))
	sqe.userData = tag

	t.sqArray[idx] = idx
	atomic.StoreUint32(t.sqTail, tail+1)
	return nil
}

// reapLoop polls the completion queue and invokes each completion's callback
// once every segment it tracks has been acknowledged. This is the only
// goroutine permitted to invoke event completion callbacks in io_uring mode.
func (t *ioUringTransport) reapLoop() {
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		unix.Syscall(unix.SYS_IO_URING_ENTER, uintptr(t.fd), 0, 1|uintptr(ioUringEnterGetevents))

		head := atomic.LoadUint32(t.cqHead)
		tail := atomic.LoadUint32(t.cqTail)
		mask := atomic.LoadUint32(t.cqMask)

		for head != tail {
			idx := head & mask
			cqe := (*ioUringCQE)(unsafe.Pointer(&t.cqRing[32+idx*ioCqeSizeof]))
			t.complete(cqe.userData)
			head++
		}
		atomic.StoreUint32(t.cqHead, head)
	}
}

func (t *ioUringTransport) complete(tag uint64) {
	t.mu.Lock()
	c, ok := t.pending[tag]
	if !ok {
		t.mu.Unlock()
		return
	}
	c.remaining--
	done := c.remaining == 0
	if done {
		delete(t.pending, tag)
	}
	t.mu.Unlock()

	if done && c.done != nil {
		c.done()
	}
}

func (t *ioUringTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.stop)
		unix.Munmap(t.sqeArray)
		unix.Munmap(t.cqRing)
		unix.Munmap(t.sqRing)
		unix.Close(t.fd)
	})
	return nil
}

// ioUringSQE mirrors struct io_uring_sqe's fixed 64-byte layout; only the
// fields WRITEV submission needs are named.
type ioUringSQE struct {
	opcode   uint8
	flags    uint8
	ioprio   uint16
	fd       int32
	off      uint64
	addr     uint64
	len      uint32
	opFlags  uint32
	userData uint64
	_        [16]byte
}

// ioUringCQE mirrors struct io_uring_cqe.
type ioUringCQE struct {
	userData uint64
	res      int32
	flags    uint32
}
