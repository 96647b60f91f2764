//go:build linux

package affinity

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetThreadRejectsNegativeCore(t *testing.T) {
	err := SetThread(-1)
	require.Error(t, err)
}

func TestSetProcessRejectsNegativeCore(t *testing.T) {
	err := SetProcess([]int{0, -2})
	require.Error(t, err)
}

func TestSetThreadValidCore(t *testing.T) {
	// This runs the actual syscall against core 0, which is always present.
	err := SetThread(0)
	require.NoError(t, err)
}

func TestSetThreadXORExcludesAllIsError(t *testing.T) {
	all := make([]int, runtime.NumCPU())
	for i := range all {
		all[i] = i
	}
	// excluding every core leaves an empty mask; sched_setaffinity rejects it.
	err := SetThreadXOR(all)
	require.Error(t, err)
}

func TestSetNUMABindRejectsOutOfRange(t *testing.T) {
	err := SetNUMABind(64)
	require.Error(t, err)
	err = SetNUMABind(-1)
	require.Error(t, err)
}
