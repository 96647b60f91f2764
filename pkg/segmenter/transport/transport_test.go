package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
	}()
	Register(PlainName, func() (Transport, error) { return &plainTransport{}, nil })
}

func TestRegisterPanicsOnEmptyName(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
	}()
	Register("", func() (Transport, error) { return &plainTransport{}, nil })
}

func TestGetUnknownTransport(t *testing.T) {
	_, err := Get("does-not-exist")
	require.Error(t, err)
}

func TestListIncludesPlain(t *testing.T) {
	require.Contains(t, List(), PlainName)
}

func TestPlainTransportSendEventRoundTrip(t *testing.T) {
	recvConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer recvConn.Close()

	sendConn, err := net.DialUDP("udp4", nil, recvConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer sendConn.Close()

	tr, err := Get(PlainName)
	require.NoError(t, err)

	done := make(chan struct{}, 1)
	datagrams := []Datagram{
		{Header: []byte("HDR1"), Payload: []byte("payload-one")},
		{Header: []byte("HDR2"), Payload: []byte("payload-two")},
	}
	require.NoError(t, tr.SendEvent(sendConn, datagrams, func() { done <- struct{}{} }))

	select {
	case <-done:
	default:
		t.Fatal("completion callback was not invoked synchronously for plain transport")
	}

	buf := make([]byte, 1500)
	for _, want := range []string{"HDR1payload-one", "HDR2payload-two"} {
		n, _, err := recvConn.ReadFromUDP(buf)
		require.NoError(t, err)
		require.Equal(t, want, string(buf[:n]))
	}
}
