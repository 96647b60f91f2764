package econfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jlab-hep/e2sar-go/pkg/e2sarerr"
)

func writeTmpINI(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flags.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSegmenterFlagsLoadINIOverlaysKnownKeys(t *testing.T) {
	path := writeTmpINI(t, `
[general]
mtu = 9000
useCP = false

[data-plane]
numSendSockets = 8
rateGbps = 2.5

[control-plane]
warmUpMs = 2000
`)

	flags := DefaultSegmenterFlags()
	require.NoError(t, flags.LoadINI(path))

	require.Equal(t, 9000, flags.MTU)
	require.False(t, flags.UseCP)
	require.Equal(t, 8, flags.NumSendSockets)
	require.InDelta(t, 2.5, flags.RateGbps, 0.0001)
	require.Equal(t, 2000, flags.WarmUpMs)

	// untouched fields keep their defaults
	require.Equal(t, 2, flags.SyncPeriods)
	require.True(t, flags.ConnectedSocket)
}

func TestSegmenterFlagsLoadINIIgnoresUnknownKeys(t *testing.T) {
	path := writeTmpINI(t, `
[general]
mtu = 3000
bogusFlag = true
`)
	flags := DefaultSegmenterFlags()
	require.NoError(t, flags.LoadINI(path))
	require.Equal(t, 3000, flags.MTU)
}

func TestSegmenterFlagsLoadINIMissingFileIsError(t *testing.T) {
	flags := DefaultSegmenterFlags()
	err := flags.LoadINI(filepath.Join(t.TempDir(), "missing.ini"))
	require.Error(t, err)
}

func TestReassemblerFlagsLoadINIOverlaysPIDSection(t *testing.T) {
	path := writeTmpINI(t, `
[general]
portRange = 3
eventTimeout_ms = 750

[pid]
Kp = 0.5
Ki = 0.1
Kd = 0.05
setPoint = 0.8
`)
	flags := DefaultReassemblerFlags()
	require.NoError(t, flags.LoadINI(path))

	require.Equal(t, 3, flags.PortRange)
	require.Equal(t, 750, flags.EventTimeoutMs)
	require.InDelta(t, 0.5, flags.Kp, 0.0001)
	require.InDelta(t, 0.1, flags.Ki, 0.0001)
	require.InDelta(t, 0.05, flags.Kd, 0.0001)
	require.InDelta(t, 0.8, flags.SetPoint, 0.0001)

	// defaults preserved where absent
	require.Equal(t, 100, flags.PeriodMs)
	require.InDelta(t, 1.0, flags.Weight, 0.0001)
}

func TestReassemblerFlagsAbsentSectionsKeepDefaults(t *testing.T) {
	path := writeTmpINI(t, `
[general]
useCP = true
`)
	flags := DefaultReassemblerFlags()
	require.NoError(t, flags.LoadINI(path))
	require.Equal(t, DefaultReassemblerFlags().PortRange, flags.PortRange)
	require.Equal(t, DefaultReassemblerFlags().MaxFactor, flags.MaxFactor)
}

func TestURIFromEnv(t *testing.T) {
	t.Setenv("EJFAT_URI", "ejfat://token@host:1234/lb/abc")
	val, err := URIFromEnv("")
	require.NoError(t, err)
	require.Equal(t, "ejfat://token@host:1234/lb/abc", val)
}

func TestURIFromEnvMissingIsParameterNotAvailable(t *testing.T) {
	os.Unsetenv("EJFAT_SOME_OTHER_VAR_NOT_SET")
	_, err := URIFromEnv("EJFAT_SOME_OTHER_VAR_NOT_SET")
	require.Error(t, err)
	require.True(t, e2sarerr.Is(err, e2sarerr.ParameterNotAvailable))
}

func TestURIFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ejfat_uri")
	require.NoError(t, os.WriteFile(path, []byte("ejfat://tok@host:19522/lb/x\n"), 0o644))

	val, err := URIFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "ejfat://tok@host:19522/lb/x", val)
}
