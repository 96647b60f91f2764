// Package netutil provides MTU probing and outgoing-interface discovery for
// the Segmenter's MTU autodetect step (spec.md §4.4), grounded on
// original_source/include/e2sarNetUtil.hpp's NetUtil class.
package netutil

import (
	"net"
	"os"

	"github.com/jlab-hep/e2sar-go/pkg/e2sarerr"
)

// DefaultMTU is returned by MTU when the named interface cannot be queried,
// matching e2sarNetUtil.hpp's documented "1500 as the best guess" fallback.
const DefaultMTU = 1500

// MTU returns the MTU of the named interface, or DefaultMTU if it cannot be
// determined. This never errors, matching NetUtil::getMTU's noexcept best-effort
// contract.
func MTU(interfaceName string) int {
	iface, err := net.InterfaceByName(interfaceName)
	if err != nil {
		return DefaultMTU
	}
	return iface.MTU
}

// HostName returns the local hostname.
func HostName() (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", e2sarerr.Wrap(e2sarerr.SystemError, "unable to determine hostname", err)
	}
	return name, nil
}

// InterfaceIPs returns the v4 (or v6, if v6 is true) addresses bound to the
// named interface.
func InterfaceIPs(interfaceName string, v6 bool) ([]net.IP, error) {
	iface, err := net.InterfaceByName(interfaceName)
	if err != nil {
		return nil, e2sarerr.Wrapf(e2sarerr.NotFound, "interface %s not found", err, interfaceName)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, e2sarerr.Wrapf(e2sarerr.SystemError, "unable to list addresses for %s", err, interfaceName)
	}

	var out []net.IP
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		is4 := ipNet.IP.To4() != nil
		if is4 != v6 {
			out = append(out, ipNet.IP)
		}
	}
	if len(out) == 0 {
		return nil, e2sarerr.Newf(e2sarerr.NotFound, "no matching addresses on interface %s", interfaceName)
	}
	return out, nil
}

// InterfaceAndMTU discovers the outgoing interface and its MTU for a
// destination address, without requiring netlink/route-table access: it
// dials a throwaway UDP "connection" (no packets are sent for UDP connect)
// and inspects the kernel-chosen local address, then maps that address back
// to an interface. This is the portable substitute for e2sarNetUtil.hpp's
// NETLINK_CAPABLE-gated getInterfaceAndMTU.
func InterfaceAndMTU(dest net.IP) (ifaceName string, mtu int, err error) {
	conn, dialErr := net.Dial("udp", net.JoinHostPort(dest.String(), "9"))
	if dialErr != nil {
		return "", 0, e2sarerr.Wrapf(e2sarerr.SocketError, "unable to determine route to %s", dialErr, dest)
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", 0, e2sarerr.New(e2sarerr.SystemError, "unexpected local address type from UDP dial")
	}

	ifaces, listErr := net.Interfaces()
	if listErr != nil {
		return "", 0, e2sarerr.Wrap(e2sarerr.SystemError, "unable to enumerate interfaces", listErr)
	}
	for _, iface := range ifaces {
		addrs, addrErr := iface.Addrs()
		if addrErr != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if ok && ipNet.IP.Equal(localAddr.IP) {
				return iface.Name, iface.MTU, nil
			}
		}
	}
	return "", 0, e2sarerr.Newf(e2sarerr.NotFound, "no interface owns local address %s", localAddr.IP)
}
