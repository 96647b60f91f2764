// Package header implements the three on-wire E2SAR dataplane headers —
// LBHdr, REHdr and SyncHdr — as fixed-layout big-endian byte codecs.
//
// Grounded on original_source/include/e2sarHeaders.hpp: the C++ source packs
// these as __attribute__((__packed__)) structs with htobe/be-to-h accessors;
// Go has no portable packed-struct layout guarantee, so each header is
// represented as a plain Go struct plus explicit Marshal/Unmarshal methods
// that read and write big-endian fields directly into/out of a byte slice,
// per spec.md §9's "byte-array codecs with explicit big-endian reads/writes"
// guidance for safer languages.
package header

import (
	"encoding/binary"

	"github.com/jlab-hep/e2sar-go/pkg/e2sarerr"
)

// Fixed header sizes (spec.md §9: LB=16, RE=20, Sync=28).
const (
	LBHdrLen   = 16
	REHdrLen   = 20
	SyncHdrLen = 28

	// LBREHdrLen is the combined length of one LB+RE header pair; implementations
	// MUST keep the two concatenated in memory (spec.md §4.1) so a single iovec
	// entry covers both ahead of the payload iovec entry.
	LBREHdrLen = LBHdrLen + REHdrLen
)

const (
	lbPreambleHi = 'L'
	lbPreambleLo = 'B'
	lbVersion2   = 2

	rehdrVersion       = 1
	rehdrVersionNibble = rehdrVersion << 4

	syncPreambleHi = 'L'
	syncPreambleLo = 'C'
	syncVersion2   = 2
)

// LBHdr is the 16-byte Load Balancer header (v2). The LB dispatches on a hash
// of Entropy and uses EventNum as a monotonic-ish tick for epoch alignment.
// All segments of one event must share the same Entropy (spec.md I3).
type LBHdr struct {
	Version    uint8
	NextProto  uint8
	Entropy    uint16
	EventNum   uint64
}

// Marshal writes the header in big-endian wire format into buf[0:LBHdrLen].
func (h LBHdr) Marshal(buf []byte) {
	_ = buf[LBHdrLen-1]
	buf[0] = lbPreambleHi
	buf[1] = lbPreambleLo
	buf[2] = h.Version
	buf[3] = h.NextProto
	binary.BigEndian.PutUint16(buf[4:6], 0) // reserved
	binary.BigEndian.PutUint16(buf[6:8], h.Entropy)
	binary.BigEndian.PutUint64(buf[8:16], h.EventNum)
}

// NewLBHdr builds a v2 LB header with nextProto fixed to the RE header version,
// matching the C++ default member initializers.
func NewLBHdr(entropy uint16, eventNum uint64) LBHdr {
	return LBHdr{Version: lbVersion2, NextProto: rehdrVersion, Entropy: entropy, EventNum: eventNum}
}

// UnmarshalLBHdr parses an LB header out of buf[0:LBHdrLen] and validates the
// preamble and version. A bad preamble/version is a data error (spec.md §4.1).
func UnmarshalLBHdr(buf []byte) (LBHdr, error) {
	if len(buf) < LBHdrLen {
		return LBHdr{}, e2sarerr.New(e2sarerr.ParseError, "short buffer for LB header")
	}
	if buf[0] != lbPreambleHi || buf[1] != lbPreambleLo {
		return LBHdr{}, e2sarerr.New(e2sarerr.ParseError, "bad LB header preamble")
	}
	h := LBHdr{
		Version:   buf[2],
		NextProto: buf[3],
		Entropy:   binary.BigEndian.Uint16(buf[6:8]),
		EventNum:  binary.BigEndian.Uint64(buf[8:16]),
	}
	if h.Version != lbVersion2 {
		return LBHdr{}, e2sarerr.New(e2sarerr.ParseError, "unsupported LB header version")
	}
	return h, nil
}

// REHdr is the 20-byte Reassembly header, preserved end-to-end by the LB.
// BufferLength is the *event's total size*, not this segment's length
// (spec.md §3); the reassembler uses it to allocate the event on first sight.
type REHdr struct {
	DataId       uint16
	BufferOffset uint32
	BufferLength uint32
	EventNum     uint64
}

// Marshal writes the header in big-endian wire format into buf[0:REHdrLen].
func (h REHdr) Marshal(buf []byte) {
	_ = buf[REHdrLen-1]
	buf[0] = rehdrVersionNibble
	buf[1] = 0 // reserved
	binary.BigEndian.PutUint16(buf[2:4], h.DataId)
	binary.BigEndian.PutUint32(buf[4:8], h.BufferOffset)
	binary.BigEndian.PutUint32(buf[8:12], h.BufferLength)
	binary.BigEndian.PutUint64(buf[12:20], h.EventNum)
}

// UnmarshalREHdr parses an RE header out of buf[0:REHdrLen], validating only
// the version nibble and reserved byte; offset/length bounds are not checked
// here. Version-nibble mismatch or a nonzero reserved byte is a
// data error: the datagram must be dropped (spec.md §4.1).
func UnmarshalREHdr(buf []byte) (REHdr, error) {
	if len(buf) < REHdrLen {
		return REHdr{}, e2sarerr.New(e2sarerr.ParseError, "short buffer for RE header")
	}
	if buf[0] != rehdrVersionNibble || buf[1] != 0 {
		return REHdr{}, e2sarerr.New(e2sarerr.ParseError, "bad RE header version/reserved")
	}
	return REHdr{
		DataId:       binary.BigEndian.Uint16(buf[2:4]),
		BufferOffset: binary.BigEndian.Uint32(buf[4:8]),
		BufferLength: binary.BigEndian.Uint32(buf[8:12]),
		EventNum:     binary.BigEndian.Uint64(buf[12:20]),
	}, nil
}

// SyncHdr is the 28-byte control datagram the Segmenter periodically emits to
// the LB's sync address.
type SyncHdr struct {
	EventSrcId    uint32
	EventNumber   uint64
	AvgEventRateHz uint32
	UnixTimeNano  uint64
}

// Marshal writes the header in big-endian wire format into buf[0:SyncHdrLen].
func (h SyncHdr) Marshal(buf []byte) {
	_ = buf[SyncHdrLen-1]
	buf[0] = syncPreambleHi
	buf[1] = syncPreambleLo
	buf[2] = syncVersion2
	buf[3] = 0 // reserved
	binary.BigEndian.PutUint32(buf[4:8], h.EventSrcId)
	binary.BigEndian.PutUint64(buf[8:16], h.EventNumber)
	binary.BigEndian.PutUint32(buf[16:20], h.AvgEventRateHz)
	binary.BigEndian.PutUint64(buf[20:28], h.UnixTimeNano)
}

// UnmarshalSyncHdr parses a Sync header out of buf[0:SyncHdrLen].
func UnmarshalSyncHdr(buf []byte) (SyncHdr, error) {
	if len(buf) < SyncHdrLen {
		return SyncHdr{}, e2sarerr.New(e2sarerr.ParseError, "short buffer for sync header")
	}
	if buf[0] != syncPreambleHi || buf[1] != syncPreambleLo {
		return SyncHdr{}, e2sarerr.New(e2sarerr.ParseError, "bad sync header preamble")
	}
	return SyncHdr{
		EventSrcId:     binary.BigEndian.Uint32(buf[4:8]),
		EventNumber:    binary.BigEndian.Uint64(buf[8:16]),
		AvgEventRateHz: binary.BigEndian.Uint32(buf[16:20]),
		UnixTimeNano:   binary.BigEndian.Uint64(buf[20:28]),
	}, nil
}

// IPv4HeaderLen, IPv6HeaderLen and UDPHeaderLen are used by callers computing
// maximum payload size under a given MTU (spec.md §3).
const (
	IPv4HeaderLen = 20
	IPv6HeaderLen = 40
	UDPHeaderLen  = 8
)

// TotalHeaderLen returns IP+UDP+LB+RE header length for the given IP version.
func TotalHeaderLen(useIPv6 bool) int {
	ipLen := IPv4HeaderLen
	if useIPv6 {
		ipLen = IPv6HeaderLen
	}
	return ipLen + UDPHeaderLen + LBREHdrLen
}
