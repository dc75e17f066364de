package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/reflection"

	"github.com/charadev96/gochan/internal/server/handler/admin"
	"github.com/charadev96/gochan/internal/server/handler/messaging"
	"github.com/charadev96/gochan/internal/server/notify"
	"github.com/charadev96/gochan/internal/server/service"
	"github.com/charadev96/gochan/internal/shared/log"
	"github.com/charadev96/gochan/internal/shared/rpc"
)

type AdminConfig struct {
	Addr   string
	Logger *zerolog.Logger
}

type MessagingConfig struct {
	Addr   string
	Logger *zerolog.Logger

	// Certificate serves the endpoint over TLS. Without one it is plaintext.
	Certificate *tls.Certificate
}

type Server struct {
	Admin     AdminConfig
	Messaging MessagingConfig

	ChannelService *service.ChannelService
	Mailbox        *notify.Mailbox
}

// Serve runs both endpoints until ctx is cancelled or one of them fails.
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.ServeAdmin(ctx)
	})
	g.Go(func() error {
		return s.ServeMessaging(ctx)
	})
	return g.Wait()
}

func (s *Server) ServeAdmin(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Admin.Addr)
	if err != nil {
		return fmt.Errorf("failed to init admin server: %w", err)
	}
	return s.serve(ctx, ln, s.NewAdminServer(), s.Admin.Logger)
}

func (s *Server) ServeMessaging(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Messaging.Addr)
	if err != nil {
		return fmt.Errorf("failed to init messaging server: %w", err)
	}
	return s.serve(ctx, ln, s.NewMessagingServer(), s.Messaging.Logger)
}

func (s *Server) NewAdminServer() *grpc.Server {
	inst := grpc.NewServer(grpc.UnaryInterceptor(rpc.LoggingInterceptor(log.OrNop(s.Admin.Logger))))
	admin.Register(inst, &admin.ChannelServiceHandler{
		Service: s.ChannelService,
	})
	reflection.Register(inst)
	return inst
}

func (s *Server) NewMessagingServer() *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(rpc.LoggingInterceptor(log.OrNop(s.Messaging.Logger))),
	}
	if s.Messaging.Certificate != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(&tls.Config{
			Certificates: []tls.Certificate{*s.Messaging.Certificate},
			MinVersion:   tls.VersionTLS13,
		})))
	}
	inst := grpc.NewServer(opts...)
	messaging.Register(inst, &messaging.ChannelServiceHandler{
		Service: s.ChannelService,
		Mailbox: s.Mailbox,
	})
	return inst
}

func (s *Server) serve(ctx context.Context, ln net.Listener, inst *grpc.Server, logger *zerolog.Logger) error {
	logger = log.OrNop(logger)
	logger.Info().
		Str("address", ln.Addr().String()).
		Msg("started server")

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			inst.GracefulStop()
		case <-stopped:
		}
	}()

	if err := inst.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
