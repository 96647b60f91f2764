//go:build !linux

// Non-Linux stub: sched_setaffinity/set_mempolicy have no portable
// equivalent, matching the original's own Linux-specific implementation.
// Callers treat pinning as best-effort and log the returned error rather
// than failing startup.
package affinity

import "github.com/jlab-hep/e2sar-go/pkg/e2sarerr"

func SetThread(core int) error {
	return e2sarerr.New(e2sarerr.ParameterNotAvailable, "thread affinity not supported on this platform")
}

func SetThreadXOR(excluded []int) error {
	return e2sarerr.New(e2sarerr.ParameterNotAvailable, "thread affinity not supported on this platform")
}

func SetProcess(cores []int) error {
	return e2sarerr.New(e2sarerr.ParameterNotAvailable, "process affinity not supported on this platform")
}

func SetNUMABind(node int) error {
	return e2sarerr.New(e2sarerr.ParameterNotAvailable, "NUMA binding not supported on this platform")
}
