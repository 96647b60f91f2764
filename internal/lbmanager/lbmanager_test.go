package lbmanager

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"github.com/jlab-hep/e2sar-go/pkg/e2sarerr"
	"github.com/jlab-hep/e2sar-go/pkg/euri"
	"github.com/jlab-hep/e2sar-go/pkg/lbgrpc"
)

type stubCP struct {
	lbgrpc.UnimplementedLoadBalancerServer
	lastAuth string
}

func (s *stubCP) ReserveLoadBalancer(ctx context.Context, in *lbgrpc.ReserveLoadBalancerRequest) (*lbgrpc.ReserveLoadBalancerReply, error) {
	s.captureAuth(ctx)
	return &lbgrpc.ReserveLoadBalancerReply{
		LBID:          "lb-1",
		InstanceToken: "instok",
		SyncIP:        "10.1.1.1",
		SyncPort:      19523,
		DataIPv4:      "10.1.1.2",
	}, nil
}

func (s *stubCP) Register(ctx context.Context, in *lbgrpc.RegisterRequest) (*lbgrpc.RegisterReply, error) {
	s.captureAuth(ctx)
	return &lbgrpc.RegisterReply{
		SessionID:    "sess-1",
		SessionToken: "sesstok",
		PortRange:    SourceCountToPortRange(in.SourceCount),
	}, nil
}

func (s *stubCP) SendState(ctx context.Context, in *lbgrpc.SendStateRequest) (*lbgrpc.SendStateReply, error) {
	s.captureAuth(ctx)
	return &lbgrpc.SendStateReply{}, nil
}

func (s *stubCP) captureAuth(ctx context.Context) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("authorization"); len(vals) > 0 {
			s.lastAuth = vals[0]
		}
	}
}

func newTestManager(t *testing.T, srv *stubCP) (*Manager, func()) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	gs := grpc.NewServer()
	lbgrpc.RegisterLoadBalancerServer(gs, srv)
	go gs.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	uri, err := euri.Parse("ejfat://admintok@cp.example.org:18020", euri.Admin, false)
	require.NoError(t, err)

	m := newWithClient(uri, lbgrpc.NewLoadBalancerClient(conn))
	return m, func() { conn.Close(); gs.Stop() }
}

func TestReserveLBMutatesURI(t *testing.T) {
	srv := &stubCP{}
	m, closeFn := newTestManager(t, srv)
	defer closeFn()

	lbID, err := m.ReserveLB(context.Background(), "myfarm", time.Now().Add(time.Hour), []string{"10.0.0.5"})
	require.NoError(t, err)
	require.Equal(t, "lb-1", lbID)
	require.Equal(t, "Bearer admintok", srv.lastAuth)

	require.Equal(t, "lb-1", m.URI().LBID())
	tok, err := m.URI().Token(euri.Instance)
	require.NoError(t, err)
	require.Equal(t, "instok", tok)

	require.True(t, m.URI().HasSyncAddr())
	require.True(t, m.URI().HasDataAddrV4())
}

func TestRegisterWorkerUsesInstanceToken(t *testing.T) {
	srv := &stubCP{}
	m, closeFn := newTestManager(t, srv)
	defer closeFn()

	m.URI().SetToken(euri.Instance, "instok")

	portRange, err := m.RegisterWorker(context.Background(), RegisterWorkerParams{
		NodeName:    "worker-1",
		NodeIP:      "10.0.0.9",
		NodePort:    20000,
		Weight:      1.0,
		SourceCount: 4,
		MinFactor:   0.5,
		MaxFactor:   2.0,
	})
	require.NoError(t, err)
	require.Equal(t, uint8(2), portRange)
	require.Equal(t, "Bearer instok", srv.lastAuth)
	require.Equal(t, "sess-1", m.URI().SessionID())

	tok, err := m.URI().Token(euri.Session)
	require.NoError(t, err)
	require.Equal(t, "sesstok", tok)
}

func TestSendStateUsesSessionToken(t *testing.T) {
	srv := &stubCP{}
	m, closeFn := newTestManager(t, srv)
	defer closeFn()

	m.URI().SetToken(euri.Session, "sesstok")
	m.URI().SetSessionID("sess-1")

	err := m.SendState(context.Background(), 0.5, 0.1, true, time.Time{})
	require.NoError(t, err)
	require.Equal(t, "Bearer sesstok", srv.lastAuth)
}

func TestMissingTokenIsParameterNotAvailable(t *testing.T) {
	srv := &stubCP{}
	m, closeFn := newTestManager(t, srv)
	defer closeFn()

	// no admin token was set on this URI variant
	uri, err := euri.Parse("ejfat://cp.example.org:18020", euri.Admin, false)
	require.NoError(t, err)
	m2 := newWithClient(uri, lbgrpc.NewLoadBalancerClient(nil))
	_ = m

	_, err = m2.ReserveLB(context.Background(), "x", time.Now(), nil)
	require.Error(t, err)
	require.True(t, e2sarerr.Is(err, e2sarerr.ParameterNotAvailable))
}

func TestSourceCountToPortRange(t *testing.T) {
	require.Equal(t, uint8(0), SourceCountToPortRange(0))
	require.Equal(t, uint8(0), SourceCountToPortRange(1))
	require.Equal(t, uint8(1), SourceCountToPortRange(2))
	require.Equal(t, uint8(2), SourceCountToPortRange(4))
	require.Equal(t, uint8(3), SourceCountToPortRange(7))
	require.Equal(t, uint8(4), SourceCountToPortRange(10))
	require.Equal(t, uint8(14), SourceCountToPortRange(1<<15))
}
