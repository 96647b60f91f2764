// Package transport provides the Segmenter's runtime-selected send
// strategies — plain sendmsg, batched sendmmsg, and io_uring — as a registry
// of named factories, grounded on the teacher's pkg/plugin/registry.go
// panic-on-duplicate, lookup-by-name pattern (spec.md §9: "send transports
// SHOULD be a runtime-selected strategy object; exactly one active per
// process").
package transport

import (
	"fmt"
	"net"
	"sort"
)

// Datagram is one outgoing segment: a header buffer (LB+RE, 36 bytes) and
// the payload slice it precedes. Transports MUST send the two as a single
// logical datagram without copying header and payload together, where the
// underlying syscall supports scatter-gather.
type Datagram struct {
	Header  []byte
	Payload []byte
}

// CompletionFunc is invoked once a Datagram's containing event has been
// fully submitted/sent. io_uring-based transports invoke it from the CQE
// reaper thread rather than the submitting goroutine (spec.md §9).
type CompletionFunc func()

// Transport is a single send strategy bound to one UDP socket.
type Transport interface {
	// Name identifies the transport for logging/registry lookup.
	Name() string
	// SendEvent sends every Datagram belonging to one event over conn, then
	// invokes done (if non-nil) after the last segment has been
	// submitted/sent, per the exactly-once completion contract.
	SendEvent(conn *net.UDPConn, datagrams []Datagram, done CompletionFunc) error
	// Close releases any transport-owned resources (e.g. the io_uring ring).
	Close() error
}

// Factory builds a fresh Transport instance, typically one per send socket.
type Factory func() (Transport, error)

var registry = make(map[string]Factory)

// Register adds factory under name. Panics on empty name, nil factory, or a
// duplicate name — all three indicate a compile-time bug, matching
// pkg/plugin.RegisterCapturer's contract.
func Register(name string, factory Factory) {
	if name == "" {
		panic("transport: name cannot be empty")
	}
	if factory == nil {
		panic("transport: factory cannot be nil")
	}
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("transport: %q already registered", name))
	}
	registry[name] = factory
}

// Get builds a new Transport for name.
func Get(name string) (Transport, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("transport: %q not registered", name)
	}
	return factory()
}

// List returns the sorted names of every registered transport.
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
