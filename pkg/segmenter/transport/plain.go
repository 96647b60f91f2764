package transport

import "net"

// PlainName is the registry name for the plain-sendmsg transport: one
// net.UDPConn.Write call per segment, matching the original's simplest
// "plain sendmsg" strategy.
const PlainName = "plain"

func init() {
	Register(PlainName, func() (Transport, error) { return &plainTransport{}, nil })
}

type plainTransport struct{}

func (t *plainTransport) Name() string { return PlainName }

func (t *plainTransport) SendEvent(conn *net.UDPConn, datagrams []Datagram, done CompletionFunc) error {
	for _, dg := range datagrams {
		buf := make([]byte, 0, len(dg.Header)+len(dg.Payload))
		buf = append(buf, dg.Header...)
		buf = append(buf, dg.Payload...)
		if _, err := conn.Write(buf); err != nil {
			return err
		}
	}
	if done != nil {
		done()
	}
	return nil
}

func (t *plainTransport) Close() error { return nil }
