// Package lbgrpc is a hand-maintained gRPC client/server for the
// LoadBalancer control-plane service described in
// original_source/grpc/loadbalancer.proto (not present in this build
// environment — no protoc toolchain is available here, so the service is
// authored directly against google.golang.org/grpc's pluggable codec
// machinery instead of protoc-generated proto.Message types).
//
// Every message below corresponds to one of the request/reply pairs in
// original_source/include/e2sarCP.hpp; field names follow the C++ struct
// members (fillPercent, controlSignal, sourceCount, ...) rather than
// protobuf's lowerCamel/underscore convention, since there is no .proto
// dictating wire names here — the JSON codec (codec.go) carries whatever
// struct tags these types declare.
package lbgrpc

import "time"

// ReserveLoadBalancerRequest asks the control plane to create a new LB
// instance under lbName, valid until Until (unix nanos), fed by senders.
type ReserveLoadBalancerRequest struct {
	LBName  string   `json:"lbName"`
	Until   int64    `json:"until"` // unix nanos
	Senders []string `json:"senders"`
}

// ReserveLoadBalancerReply carries the instance token and the addresses the
// reservation assigned; the caller mutates its held URI from these fields.
type ReserveLoadBalancerReply struct {
	LBID          string `json:"lbId"`
	InstanceToken string `json:"instanceToken"`
	SyncIP        string `json:"syncIp"`
	SyncPort      uint16 `json:"syncPort"`
	DataIPv4      string `json:"dataIPv4,omitempty"`
	DataIPv6      string `json:"dataIPv6,omitempty"`
}

// GetLoadBalancerRequest identifies the LB to fetch, defaulting to the
// caller's held lbId when LBID is empty.
type GetLoadBalancerRequest struct {
	LBID string `json:"lbId"`
}

// GetLoadBalancerReply mirrors ReserveLoadBalancerReply's addressing fields
// without reissuing a token.
type GetLoadBalancerReply struct {
	LBID     string `json:"lbId"`
	SyncIP   string `json:"syncIp"`
	SyncPort uint16 `json:"syncPort"`
	DataIPv4 string `json:"dataIPv4,omitempty"`
	DataIPv6 string `json:"dataIPv6,omitempty"`
}

// FreeLoadBalancerRequest releases a reservation.
type FreeLoadBalancerRequest struct {
	LBID string `json:"lbId"`
}

// FreeLoadBalancerReply acknowledges the release.
type FreeLoadBalancerReply struct{}

// WorkerStatus reports one registered worker's fill/control state, as
// returned inside LoadBalancerStatusReply (e2sarCP.hpp's LBWorkerStatus).
type WorkerStatus struct {
	Name           string    `json:"name"`
	FillPercent    float32   `json:"fillPercent"`
	ControlSignal  float32   `json:"controlSignal"`
	SlotsAssigned  uint32    `json:"slotsAssigned"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// LoadBalancerStatusRequest identifies the LB whose status is requested.
type LoadBalancerStatusRequest struct {
	LBID string `json:"lbId"`
}

// LoadBalancerStatusReply mirrors e2sarCP.hpp's LBStatus.
type LoadBalancerStatusReply struct {
	Timestamp                   time.Time      `json:"timestamp"`
	CurrentEpoch                uint64         `json:"currentEpoch"`
	CurrentPredictedEventNumber uint64         `json:"currentPredictedEventNumber"`
	Workers                     []WorkerStatus `json:"workers"`
	SenderAddresses             []string       `json:"senderAddresses"`
	ExpiresAt                   time.Time      `json:"expiresAt"`
}

// OverviewRequest has no fields; Overview lists every LB reservation.
type OverviewRequest struct{}

// OverviewEntry is one reservation's summary (e2sarCP.hpp's OverviewEntry).
type OverviewEntry struct {
	Name            string `json:"name"`
	LBID            string `json:"lbId"`
	SyncIP          string `json:"syncIp"`
	SyncPort        uint16 `json:"syncPort"`
	DataIPv4        string `json:"dataIPv4,omitempty"`
	RegisteredNodes uint32 `json:"registeredNodes"`
}

// OverviewReply lists every reservation the caller's admin token can see.
type OverviewReply struct {
	Entries []OverviewEntry `json:"entries"`
}

// AddSendersRequest appends sender addresses to an LB's source allow-list.
type AddSendersRequest struct {
	LBID    string   `json:"lbId"`
	Senders []string `json:"senders"`
}

// AddSendersReply acknowledges the addition.
type AddSendersReply struct{}

// RemoveSendersRequest removes sender addresses from an LB's allow-list.
type RemoveSendersRequest struct {
	LBID    string   `json:"lbId"`
	Senders []string `json:"senders"`
}

// RemoveSendersReply acknowledges the removal.
type RemoveSendersReply struct{}

// RegisterRequest registers a worker node with the control plane
// (e2sarCP.hpp's registerWorker parameters).
type RegisterRequest struct {
	LBID        string  `json:"lbId"`
	NodeName    string  `json:"nodeName"`
	NodeIP      string  `json:"nodeIp"`
	NodePort    uint16  `json:"nodePort"`
	Weight      float32 `json:"weight"`
	SourceCount uint16  `json:"sourceCount"`
	MinFactor   float32 `json:"minFactor"`
	MaxFactor   float32 `json:"maxFactor"`
}

// RegisterReply carries the session id/token and the derived port range the
// worker must bind to (spec.md §4.3's sourceCount → PortRange conversion is
// performed server-side in the real control plane; internal/lbmanager also
// computes it client-side so callers can size their port bind before the
// RPC round-trip completes).
type RegisterReply struct {
	SessionID    string `json:"sessionId"`
	SessionToken string `json:"sessionToken"`
	PortRange    uint8  `json:"portRange"`
}

// DeregisterRequest removes a previously registered worker.
type DeregisterRequest struct {
	SessionID string `json:"sessionId"`
}

// DeregisterReply acknowledges the removal.
type DeregisterReply struct{}

// SendStateRequest reports a worker's queue fill and PID control signal.
type SendStateRequest struct {
	SessionID     string  `json:"sessionId"`
	FillPercent   float32 `json:"fillPercent"`
	ControlSignal float32 `json:"controlSignal"`
	IsReady       bool    `json:"isReady"`
	Timestamp     int64   `json:"timestamp"` // unix nanos, 0 = server assigns
}

// SendStateReply acknowledges the state report.
type SendStateReply struct{}

// VersionRequest has no fields.
type VersionRequest struct{}

// VersionReply carries the three version strings reported by the control
// plane (e2sarCP.hpp's version() returns a 3-tuple of strings).
type VersionReply struct {
	Commit  string `json:"commit"`
	Build   string `json:"build"`
	Release string `json:"release"`
}
