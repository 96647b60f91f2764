// Package lbmanager implements the LBManager gRPC client façade: reserve/
// free/get an LB instance, register/deregister a worker, report PID state,
// and fetch overview/status/version — grounded on
// original_source/include/e2sarCP.hpp's LBManager class, speaking through
// pkg/lbgrpc instead of a protoc-generated stub (see pkg/lbgrpc's doc
// comment for why).
package lbmanager

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/jlab-hep/e2sar-go/pkg/e2sarerr"
	"github.com/jlab-hep/e2sar-go/pkg/euri"
	"github.com/jlab-hep/e2sar-go/pkg/lbgrpc"
)

// TLSOptions mirrors e2sarCP.hpp's makeSslOptions/makeSslOptionsFromFiles:
// pluggable root CA and optional client certificate for mutual TLS. A zero
// value means "use the system root pool, no client certificate".
type TLSOptions struct {
	RootCAPEM     []byte
	ClientCertPEM []byte
	ClientKeyPEM  []byte
}

// Manager is the gRPC client façade used by both Segmenter and Reassembler.
// It owns no goroutines; every call blocks on the underlying RPC and, on
// success, mutates the held *euri.URI exactly as registerWorker/reserveLB do
// in the original (spec.md §4.3): the caller's thread only, before startup.
type Manager struct {
	uri    *euri.URI
	conn   *grpc.ClientConn
	client lbgrpc.LoadBalancerClient
}

// New dials the control plane named in uri and returns a Manager bound to
// it. validateServer disables peer certificate verification when false
// (self-signed testing); useHostAddress forces validateServer off and
// resolves the CP hostname client-side, using a literal IP in the TLS
// handshake's SNI-free path, matching the original's documented tradeoff.
func New(ctx context.Context, uri *euri.URI, validateServer, useHostAddress bool, tlsOpts TLSOptions) (*Manager, error) {
	if useHostAddress {
		validateServer = false
	}

	target, err := dialTarget(uri, useHostAddress)
	if err != nil {
		return nil, err
	}

	var dialOpts []grpc.DialOption
	if uri.UseTLS() {
		tlsConfig, err := buildTLSConfig(validateServer, tlsOpts)
		if err != nil {
			return nil, err
		}
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, e2sarerr.Wrapf(e2sarerr.RPCError, "dialing control plane at %s", err, target)
	}

	return &Manager{
		uri:    uri,
		conn:   conn,
		client: lbgrpc.NewLoadBalancerClient(conn),
	}, nil
}

// newWithClient builds a Manager around an already-connected client,
// bypassing dialing. Used by tests that stand up an in-process server.
func newWithClient(uri *euri.URI, client lbgrpc.LoadBalancerClient) *Manager {
	return &Manager{uri: uri, client: client}
}

// Close releases the underlying gRPC connection.
func (m *Manager) Close() error {
	if m.conn == nil {
		return nil
	}
	return m.conn.Close()
}

// URI returns the held connection descriptor, mutated in place by
// successful RPCs.
func (m *Manager) URI() *euri.URI { return m.uri }

func dialTarget(uri *euri.URI, useHostAddress bool) (string, error) {
	if !useHostAddress {
		if host, port, err := uri.CPHost(); err == nil {
			return fmt.Sprintf("%s:%d", host, port), nil
		}
	}
	addr, port, err := uri.CPAddr()
	if err != nil {
		return "", e2sarerr.Wrap(e2sarerr.ParameterNotAvailable, "control plane address not available", err)
	}
	return fmt.Sprintf("%s:%d", addr.String(), port), nil
}

func buildTLSConfig(validateServer bool, opts TLSOptions) (*tls.Config, error) {
	cfg := &tls.Config{InsecureSkipVerify: !validateServer}

	if len(opts.RootCAPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(opts.RootCAPEM) {
			return nil, e2sarerr.New(e2sarerr.ParameterError, "unable to parse root CA PEM")
		}
		cfg.RootCAs = pool
	}
	if len(opts.ClientCertPEM) > 0 {
		cert, err := tls.X509KeyPair(opts.ClientCertPEM, opts.ClientKeyPEM)
		if err != nil {
			return nil, e2sarerr.Wrap(e2sarerr.ParameterError, "unable to load client certificate", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

// withToken attaches slot's bearer token to ctx as the gRPC authorization
// metadata (spec.md §4.3: "Bearer tokens carried in the authorization
// metadata header").
func (m *Manager) withToken(ctx context.Context, slot euri.TokenType) (context.Context, error) {
	tok, err := m.uri.Token(slot)
	if err != nil {
		return nil, err
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok), nil
}

// ReserveLB reserves a new LB instance named name, valid until deadline, fed
// by senders. On success it mutates the held URI with the instance token,
// lb id, sync address and data addresses (spec.md §4.3).
func (m *Manager) ReserveLB(ctx context.Context, name string, deadline time.Time, senders []string) (string, error) {
	ctx, err := m.withToken(ctx, euri.Admin)
	if err != nil {
		return "", err
	}
	reply, err := m.client.ReserveLoadBalancer(ctx, &lbgrpc.ReserveLoadBalancerRequest{
		LBName:  name,
		Until:   deadline.UnixNano(),
		Senders: senders,
	})
	if err != nil {
		return "", e2sarerr.Wrap(e2sarerr.RPCError, "reserveLB failed", err)
	}

	m.uri.SetLBID(reply.LBID)
	m.uri.SetToken(euri.Instance, reply.InstanceToken)
	if ip := parseIP(reply.SyncIP); ip != nil {
		m.uri.SetSyncAddr(ip, reply.SyncPort)
	}
	if ip := parseIP(reply.DataIPv4); ip != nil {
		m.uri.SetDataAddr(ip, euri.DataplanePort)
	}
	if ip := parseIP(reply.DataIPv6); ip != nil {
		m.uri.SetDataAddr(ip, euri.DataplanePort)
	}
	return reply.LBID, nil
}

// GetLB refreshes the held URI's dataplane/sync addresses for lbId (or the
// URI's own lb id when lbId is empty) using the admin token. Unlike
// ReserveLB it does not set an instance token — it is not available.
func (m *Manager) GetLB(ctx context.Context, lbID string) error {
	if lbID == "" {
		lbID = m.uri.LBID()
	}
	ctx, err := m.withToken(ctx, euri.Admin)
	if err != nil {
		return err
	}
	reply, err := m.client.GetLoadBalancer(ctx, &lbgrpc.GetLoadBalancerRequest{LBID: lbID})
	if err != nil {
		return e2sarerr.Wrap(e2sarerr.RPCError, "getLB failed", err)
	}
	m.uri.SetLBID(reply.LBID)
	if ip := parseIP(reply.SyncIP); ip != nil {
		m.uri.SetSyncAddr(ip, reply.SyncPort)
	}
	if ip := parseIP(reply.DataIPv4); ip != nil {
		m.uri.SetDataAddr(ip, euri.DataplanePort)
	}
	if ip := parseIP(reply.DataIPv6); ip != nil {
		m.uri.SetDataAddr(ip, euri.DataplanePort)
	}
	return nil
}

// FreeLB releases a reservation (admin token).
func (m *Manager) FreeLB(ctx context.Context, lbID string) error {
	if lbID == "" {
		lbID = m.uri.LBID()
	}
	ctx, err := m.withToken(ctx, euri.Admin)
	if err != nil {
		return err
	}
	if _, err := m.client.FreeLoadBalancer(ctx, &lbgrpc.FreeLoadBalancerRequest{LBID: lbID}); err != nil {
		return e2sarerr.Wrap(e2sarerr.RPCError, "freeLB failed", err)
	}
	return nil
}

// GetLBStatus fetches worker fill/control state and sender addresses for
// lbId (admin token).
func (m *Manager) GetLBStatus(ctx context.Context, lbID string) (*lbgrpc.LoadBalancerStatusReply, error) {
	if lbID == "" {
		lbID = m.uri.LBID()
	}
	ctx, err := m.withToken(ctx, euri.Admin)
	if err != nil {
		return nil, err
	}
	reply, err := m.client.LoadBalancerStatus(ctx, &lbgrpc.LoadBalancerStatusRequest{LBID: lbID})
	if err != nil {
		return nil, e2sarerr.Wrap(e2sarerr.RPCError, "getLBStatus failed", err)
	}
	return reply, nil
}

// Overview lists every reservation visible to the admin token.
func (m *Manager) Overview(ctx context.Context) (*lbgrpc.OverviewReply, error) {
	ctx, err := m.withToken(ctx, euri.Admin)
	if err != nil {
		return nil, err
	}
	reply, err := m.client.Overview(ctx, &lbgrpc.OverviewRequest{})
	if err != nil {
		return nil, e2sarerr.Wrap(e2sarerr.RPCError, "overview failed", err)
	}
	return reply, nil
}

// AddSenders appends sender addresses to the LB's allow-list.
func (m *Manager) AddSenders(ctx context.Context, senders []string) error {
	ctx, err := m.withToken(ctx, euri.Admin)
	if err != nil {
		return err
	}
	if _, err := m.client.AddSenders(ctx, &lbgrpc.AddSendersRequest{LBID: m.uri.LBID(), Senders: senders}); err != nil {
		return e2sarerr.Wrap(e2sarerr.RPCError, "addSenders failed", err)
	}
	return nil
}

// RemoveSenders removes sender addresses from the LB's allow-list.
func (m *Manager) RemoveSenders(ctx context.Context, senders []string) error {
	ctx, err := m.withToken(ctx, euri.Admin)
	if err != nil {
		return err
	}
	if _, err := m.client.RemoveSenders(ctx, &lbgrpc.RemoveSendersRequest{LBID: m.uri.LBID(), Senders: senders}); err != nil {
		return e2sarerr.Wrap(e2sarerr.RPCError, "removeSenders failed", err)
	}
	return nil
}

// RegisterWorkerParams bundles registerWorker's parameters (spec.md §4.3).
type RegisterWorkerParams struct {
	NodeName    string
	NodeIP      string
	NodePort    uint16
	Weight      float32
	SourceCount uint16
	MinFactor   float32
	MaxFactor   float32
}

// RegisterWorker registers a worker node with the control plane using the
// instance token; on success it records the session id/token on the held
// URI. The caller MUST send a first SendState within 10s or the CP
// deregisters automatically (spec.md §4.3).
func (m *Manager) RegisterWorker(ctx context.Context, p RegisterWorkerParams) (portRange uint8, err error) {
	ctx, err = m.withToken(ctx, euri.Instance)
	if err != nil {
		return 0, err
	}
	reply, err := m.client.Register(ctx, &lbgrpc.RegisterRequest{
		LBID:        m.uri.LBID(),
		NodeName:    p.NodeName,
		NodeIP:      p.NodeIP,
		NodePort:    p.NodePort,
		Weight:      p.Weight,
		SourceCount: p.SourceCount,
		MinFactor:   p.MinFactor,
		MaxFactor:   p.MaxFactor,
	})
	if err != nil {
		return 0, e2sarerr.Wrap(e2sarerr.RPCError, "registerWorker failed", err)
	}
	m.uri.SetSessionID(reply.SessionID)
	m.uri.SetToken(euri.Session, reply.SessionToken)
	return reply.PortRange, nil
}

// DeregisterWorker notifies the CP using the session token.
func (m *Manager) DeregisterWorker(ctx context.Context) error {
	ctx, err := m.withToken(ctx, euri.Session)
	if err != nil {
		return err
	}
	if _, err := m.client.Deregister(ctx, &lbgrpc.DeregisterRequest{SessionID: m.uri.SessionID()}); err != nil {
		return e2sarerr.Wrap(e2sarerr.RPCError, "deregisterWorker failed", err)
	}
	return nil
}

// SendState reports queue fill and PID control signal using the session
// token. A zero ts means "let the control plane stamp its own receipt
// time", matching the original's two-overload (with/without explicit
// Timestamp) sendState.
func (m *Manager) SendState(ctx context.Context, fillPercent, controlSignal float32, isReady bool, ts time.Time) error {
	ctx, err := m.withToken(ctx, euri.Session)
	if err != nil {
		return err
	}
	var unixNanos int64
	if !ts.IsZero() {
		unixNanos = ts.UnixNano()
	}
	if _, err := m.client.SendState(ctx, &lbgrpc.SendStateRequest{
		SessionID:     m.uri.SessionID(),
		FillPercent:   fillPercent,
		ControlSignal: controlSignal,
		IsReady:       isReady,
		Timestamp:     unixNanos,
	}); err != nil {
		return e2sarerr.Wrap(e2sarerr.RPCError, "sendState failed", err)
	}
	return nil
}

// Version fetches the control plane's version triple.
func (m *Manager) Version(ctx context.Context) (*lbgrpc.VersionReply, error) {
	reply, err := m.client.Version(ctx, &lbgrpc.VersionRequest{})
	if err != nil {
		return nil, e2sarerr.Wrap(e2sarerr.RPCError, "version failed", err)
	}
	return reply, nil
}

// SourceCountToPortRange converts a worker's source count into the CP's
// PortRange enum: sourceCount in {0,1} maps to 0; otherwise
// ceil(log2(sourceCount)), clamped to [0,14] (spec.md §4.3, §8).
func SourceCountToPortRange(sourceCount uint16) uint8 {
	if sourceCount <= 1 {
		return 0
	}
	pr := int(math.Ceil(math.Log2(float64(sourceCount))))
	if pr < 0 {
		pr = 0
	}
	if pr > 14 {
		pr = 14
	}
	return uint8(pr)
}

func parseIP(s string) net.IP {
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}
