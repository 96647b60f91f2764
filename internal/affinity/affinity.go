//go:build linux

// Package affinity pins Segmenter/Reassembler worker goroutines to specific
// CPU cores and binds process memory to a NUMA node, grounded on
// original_source/include/e2sarAffinity.hpp's Affinity class and exercising
// golang.org/x/sys/unix the way nerrf's tracker does for kernel-adjacent
// operations (rlimits, clock syscalls).
//
// Linux-only: sched_setaffinity/set_mempolicy have no portable equivalent, matching
// the original's own Linux-specific implementation.
package affinity

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/jlab-hep/e2sar-go/pkg/e2sarerr"
)

// SetThread pins the calling goroutine's OS thread to core. It calls
// runtime.LockOSThread so the pinning survives goroutine scheduling; callers
// running on a worker goroutine should call this once at the top of the
// goroutine's body, matching Affinity::setThread's "calling thread" contract.
func SetThread(core int) error {
	if core < 0 {
		return e2sarerr.Newf(e2sarerr.ParameterError, "invalid core %d", core)
	}
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(core)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return e2sarerr.Wrapf(e2sarerr.SystemError, "sched_setaffinity(core=%d)", err, core)
	}
	return nil
}

// SetThreadXOR pins the calling thread to every core EXCEPT those listed,
// matching Affinity::setThreadXOR (used to keep a core free for
// latency-sensitive interrupt handling).
func SetThreadXOR(excluded []int) error {
	runtime.LockOSThread()

	excludeSet := make(map[int]struct{}, len(excluded))
	for _, c := range excluded {
		excludeSet[c] = struct{}{}
	}

	var set unix.CPUSet
	set.Zero()
	n := runtime.NumCPU()
	for c := 0; c < n; c++ {
		if _, skip := excludeSet[c]; !skip {
			set.Set(c)
		}
	}

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return e2sarerr.Wrap(e2sarerr.SystemError, "sched_setaffinity(xor)", err)
	}
	return nil
}

// SetProcess applies the given cores to the affinity mask of the thread whose
// id equals the process id (sched_setaffinity(getpid())), i.e. the process's
// main OS thread; threads that already exist keep their own masks.
func SetProcess(cores []int) error {
	var set unix.CPUSet
	set.Zero()
	for _, c := range cores {
		if c < 0 {
			return e2sarerr.Newf(e2sarerr.ParameterError, "invalid core %d", c)
		}
		set.Set(c)
	}

	if err := unix.SchedSetaffinity(unix.Getpid(), &set); err != nil {
		return e2sarerr.Wrap(e2sarerr.SystemError, "sched_setaffinity(process)", err)
	}
	return nil
}

// SetNUMABind sets the calling thread's default memory allocation policy to
// bind to the given NUMA node via the raw set_mempolicy(2) syscall, since
// golang.org/x/sys/unix does not wrap libnuma. Matches
// Affinity::setNUMABind's "bind process memory allocation" contract more
// directly than mbind(2), which operates on an explicit address range
// rather than future allocations.
func SetNUMABind(node int) error {
	if node < 0 || node > 63 {
		return e2sarerr.Newf(e2sarerr.OutOfRange, "NUMA node %d out of range", node)
	}

	const (
		mpolBind = 2
		maxNode  = 64
	)
	nodemask := uint64(1) << uint(node)

	_, _, errno := unix.Syscall(
		unix.SYS_SET_MEMPOLICY,
		uintptr(mpolBind),
		uintptr(unsafe.Pointer(&nodemask)),
		uintptr(maxNode),
	)
	if errno != 0 {
		return e2sarerr.Wrapf(e2sarerr.SystemError, "set_mempolicy(node=%d)", errno, node)
	}
	return nil
}
