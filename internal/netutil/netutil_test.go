package netutil

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMTUFallsBackOnUnknownInterface(t *testing.T) {
	require.Equal(t, DefaultMTU, MTU("no-such-interface-xyz"))
}

func TestMTULoopback(t *testing.T) {
	ifaces, err := net.Interfaces()
	require.NoError(t, err)
	var loName string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			loName = iface.Name
			break
		}
	}
	if loName == "" {
		t.Skip("no loopback interface available")
	}
	require.Greater(t, MTU(loName), 0)
}

func TestHostName(t *testing.T) {
	name, err := HostName()
	require.NoError(t, err)
	require.NotEmpty(t, name)
}

func TestInterfaceAndMTULoopback(t *testing.T) {
	name, mtu, err := InterfaceAndMTU(net.ParseIP("127.0.0.1"))
	if err != nil {
		t.Skipf("loopback routing unavailable in this sandbox: %v", err)
	}
	require.NotEmpty(t, name)
	require.Greater(t, mtu, 0)
}
