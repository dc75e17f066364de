package client

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/charadev96/gochan/internal/client/repository"
	gochan "github.com/charadev96/gochan/internal/server"
	server "github.com/charadev96/gochan/internal/server/domain"
	"github.com/charadev96/gochan/internal/server/notify"
	"github.com/charadev96/gochan/internal/server/service"
)

// listenBuf serves inst on an in-process listener.
func listenBuf(t *testing.T, inst *grpc.Server) *bufconn.Listener {
	t.Helper()
	ln := bufconn.Listen(1 << 20)
	go inst.Serve(ln)
	t.Cleanup(inst.Stop)
	return ln
}

func dialBuf(t *testing.T, ln *bufconn.Listener, creds credentials.TransportCredentials) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return ln.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(creds),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func serveBuf(t *testing.T, inst *grpc.Server) *grpc.ClientConn {
	t.Helper()
	return dialBuf(t, listenBuf(t, inst), insecure.NewCredentials())
}

type testServer struct {
	svc       *service.ChannelService
	messaging *grpc.ClientConn
	admin     *grpc.ClientConn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mailbox := notify.NewMailbox(0)
	svc := service.NewChannelService()
	svc.Notifier = mailbox
	srv := &gochan.Server{
		ChannelService: svc,
		Mailbox:        mailbox,
	}
	return &testServer{
		svc:       svc,
		messaging: serveBuf(t, srv.NewMessagingServer()),
		admin:     serveBuf(t, srv.NewAdminServer()),
	}
}

func (s *testServer) client(user server.UserID) *Client {
	return &Client{User: user, Messaging: s.messaging, Admin: s.admin}
}

func TestInviteAcceptFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := newTestServer(t)

	bob := ts.client("bob")
	alice := ts.client("alice")
	require.NoError(t, bob.CreateChannel(ctx, "general", "bob"))

	res, err := bob.Invite(ctx, "alice", "general")
	require.NoError(t, err)
	require.Equal(t, server.OutcomeSuccess, res.Outcome)
	require.Equal(t, server.UserID("alice"), res.Invitee)

	notices, err := alice.FetchNotices(ctx)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	require.Equal(t, server.NoticeInvited, notices[0].Kind)
	require.Equal(t, server.UserID("bob"), notices[0].Actor)

	res, err = alice.Accept(ctx)
	require.NoError(t, err)
	require.Equal(t, server.OutcomeSuccess, res.Outcome)
	require.Equal(t, "general", res.Channel)
	require.Equal(t, server.UserID("bob"), res.Inviter)
	require.Len(t, res.Notices, 2)
	require.Equal(t, server.NoticeJoined, res.Notices[0].Kind)
	require.Equal(t, server.NoticeDefaultSet, res.Notices[1].Kind)

	def, ok, err := alice.DefaultChannel(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "general", def)

	res, err = alice.Accept(ctx)
	require.NoError(t, err)
	require.Equal(t, server.OutcomeNotInvited, res.Outcome)

	channels, err := bob.ListChannels(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string][]server.UserID{"general": {"alice", "bob"}}, channels)

	res, err = alice.Leave(ctx, "general")
	require.NoError(t, err)
	require.Equal(t, server.OutcomeSuccess, res.Outcome)
	_, ok, err = alice.DefaultChannel(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOutcomesOverTransport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := newTestServer(t)

	bob := ts.client("bob")
	dave := ts.client("dave")
	require.NoError(t, bob.CreateChannel(ctx, "ghost", "bob"))

	res, err := bob.Invite(ctx, "dave", "ghost")
	require.NoError(t, err)
	require.Equal(t, server.OutcomeSuccess, res.Outcome)
	require.NoError(t, bob.DeleteChannel(ctx, "ghost"))

	res, err = dave.Accept(ctx)
	require.NoError(t, err)
	require.Equal(t, server.OutcomeChannelNotFound, res.Outcome)
	require.Equal(t, "ghost", res.Channel)
	require.False(t, ts.svc.Invites.Contains("dave"))

	res, err = dave.Deny(ctx)
	require.NoError(t, err)
	require.Equal(t, server.OutcomeNotInvited, res.Outcome)
}

func TestTransportErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := newTestServer(t)

	t.Run("missing user", func(t *testing.T) {
		_, err := ts.client("").Accept(ctx)
		require.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))
	})

	t.Run("delete unknown channel", func(t *testing.T) {
		err := ts.client("bob").DeleteChannel(ctx, "missing")
		require.Equal(t, codes.NotFound, status.Code(errors.Unwrap(err)))
	})

	t.Run("duplicate channel", func(t *testing.T) {
		bob := ts.client("bob")
		require.NoError(t, bob.CreateChannel(ctx, "general"))
		err := bob.CreateChannel(ctx, "general")
		require.Equal(t, codes.AlreadyExists, status.Code(errors.Unwrap(err)))
	})
}

type failingChannels struct {
	server.ChannelRepository
}

func (failingChannels) AddMember(ctx context.Context, id uuid.UUID, user server.UserID) error {
	return errors.New("disk full")
}

func TestOutcomeSurvivesStorageFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := newTestServer(t)

	bob := ts.client("bob")
	require.NoError(t, bob.CreateChannel(ctx, "general", "bob"))
	_, err := bob.Invite(ctx, "alice", "general")
	require.NoError(t, err)
	ts.svc.StoredChannels = failingChannels{}

	res, err := ts.client("alice").Accept(ctx)
	require.Equal(t, codes.Internal, status.Code(errors.Unwrap(err)))
	require.Equal(t, server.OutcomeSuccess, res.Outcome)
	require.Equal(t, "general", res.Channel)
	require.Equal(t, server.UserID("bob"), res.Inviter)

	def, ok, err := ts.client("alice").DefaultChannel(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "general", def)

	t.Run("bad input carries no result", func(t *testing.T) {
		res, err := ts.client("").Accept(ctx)
		require.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))
		require.Equal(t, server.Result{}, res)
	})
}

func newTLSServer(t *testing.T) (*bufconn.Listener, tls.Certificate) {
	t.Helper()
	dir := t.TempDir()
	cert, err := gochan.EnsureCertificate(
		filepath.Join(dir, "gochan.crt"),
		filepath.Join(dir, "gochan.key"),
		[]string{"127.0.0.1"},
		nil,
	)
	require.NoError(t, err)

	svc := service.NewChannelService()
	srv := &gochan.Server{
		Messaging:      gochan.MessagingConfig{Certificate: &cert},
		ChannelService: svc,
		Mailbox:        notify.NewMailbox(0),
	}
	return listenBuf(t, srv.NewMessagingServer()), cert
}

func TestPinnedTLS(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ln, cert := newTLSServer(t)
	pins := &repository.TOMLPinRepository{FilePath: filepath.Join(t.TempDir(), "pins.toml")}
	connect := func(ln *bufconn.Listener, trust func(*x509.Certificate) bool) error {
		v := &PinVerifier{ServerID: "local", Address: "127.0.0.1:7401", Pins: pins, Trust: trust}
		c := &Client{User: "alice", Messaging: dialBuf(t, ln, v.Credentials())}
		_, _, err := c.DefaultChannel(ctx)
		return err
	}

	var asked atomic.Int32
	require.NoError(t, connect(ln, func(*x509.Certificate) bool {
		asked.Add(1)
		return true
	}))
	require.EqualValues(t, 1, asked.Load())

	pin, err := pins.Get("local")
	require.NoError(t, err)
	require.Equal(t, cert.Leaf.PublicKey.(ed25519.PublicKey), pin.PublicKey)
	require.Equal(t, "127.0.0.1:7401", pin.Address)

	t.Run("pinned key needs no confirmation", func(t *testing.T) {
		require.NoError(t, connect(ln, nil))
	})

	t.Run("changed key is refused unless trusted", func(t *testing.T) {
		other, _ := newTLSServer(t)
		err := connect(other, func(*x509.Certificate) bool { return false })
		require.Equal(t, codes.Unavailable, status.Code(errors.Unwrap(err)))

		kept, err := pins.Get("local")
		require.NoError(t, err)
		require.Equal(t, pin.PublicKey, kept.PublicKey)
	})

	t.Run("host outside the certificate is refused", func(t *testing.T) {
		v := &PinVerifier{ServerID: "local", Address: "10.0.0.1:7401", Pins: pins}
		c := &Client{User: "alice", Messaging: dialBuf(t, ln, v.Credentials())}
		_, _, err := c.DefaultChannel(ctx)
		require.Equal(t, codes.Unavailable, status.Code(errors.Unwrap(err)))
	})
}
