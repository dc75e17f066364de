package client

import (
	"context"
	"crypto/x509"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/charadev96/gochan/internal/client/domain"
	server "github.com/charadev96/gochan/internal/server/domain"
	"github.com/charadev96/gochan/internal/server/handler/admin"
	"github.com/charadev96/gochan/internal/server/handler/messaging"
	"github.com/charadev96/gochan/internal/shared/log"
	"github.com/charadev96/gochan/internal/shared/rpc"
)

// Client issues commands on behalf of one user against the messaging
// endpoint, and optionally administers channels through the admin endpoint.
type Client struct {
	User   server.UserID
	Logger *zerolog.Logger

	Messaging grpc.ClientConnInterface
	Admin     grpc.ClientConnInterface
}

// DialOptions describes the endpoints of one server. The messaging
// endpoint is verified against Pins; the admin endpoint is plaintext and
// skipped when AdminAddr is empty.
type DialOptions struct {
	User          server.UserID
	MessagingAddr string
	AdminAddr     string

	Pins   domain.PinRepository
	Trust  func(*x509.Certificate) bool
	Logger *zerolog.Logger
}

// Dial returns a client for opts.User and a func closing its connections.
func Dial(opts DialOptions) (*Client, func() error, error) {
	if err := opts.User.Validate(); err != nil {
		return nil, nil, err
	}
	if opts.Pins == nil {
		return nil, nil, fmt.Errorf("failed to establish connection: no pin repository")
	}
	verifier := &PinVerifier{
		ServerID: opts.MessagingAddr,
		Address:  opts.MessagingAddr,
		Pins:     opts.Pins,
		Logger:   opts.Logger,
		Trust:    opts.Trust,
	}
	msg, err := grpc.NewClient(opts.MessagingAddr, grpc.WithTransportCredentials(verifier.Credentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to establish connection: %w", err)
	}
	c := &Client{User: opts.User, Logger: opts.Logger, Messaging: msg}
	closers := []func() error{msg.Close}

	if opts.AdminAddr != "" {
		adm, err := grpc.NewClient(opts.AdminAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			msg.Close()
			return nil, nil, fmt.Errorf("failed to establish admin connection: %w", err)
		}
		c.Admin = adm
		closers = append(closers, adm.Close)
	}

	closeAll := func() error {
		var first error
		for _, fn := range closers {
			if err := fn(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	return c, closeAll, nil
}

func (c *Client) Invite(ctx context.Context, invitee server.UserID, channel string) (server.Result, error) {
	return c.command(ctx, "Invite", map[string]any{
		"invitee": invitee.String(),
		"channel": channel,
	})
}

func (c *Client) Accept(ctx context.Context) (server.Result, error) {
	return c.command(ctx, "Accept", nil)
}

func (c *Client) Deny(ctx context.Context) (server.Result, error) {
	return c.command(ctx, "Deny", nil)
}

func (c *Client) Leave(ctx context.Context, channel string) (server.Result, error) {
	return c.command(ctx, "Leave", map[string]any{"channel": channel})
}

func (c *Client) DefaultChannel(ctx context.Context) (string, bool, error) {
	out, err := c.call(ctx, c.Messaging, messaging.ServiceName, "GetDefault", map[string]any{
		"user": c.User.String(),
	})
	if err != nil {
		return "", false, err
	}
	f := out.GetFields()
	return f["channel"].GetStringValue(), f["found"].GetBoolValue(), nil
}

func (c *Client) FetchNotices(ctx context.Context) ([]server.Notice, error) {
	out, err := c.call(ctx, c.Messaging, messaging.ServiceName, "FetchNotices", map[string]any{
		"user": c.User.String(),
	})
	if err != nil {
		return nil, err
	}
	return messaging.DecodeNotices(out), nil
}

func (c *Client) CreateChannel(ctx context.Context, name string, members ...server.UserID) error {
	list := make([]any, 0, len(members))
	for _, m := range members {
		list = append(list, m.String())
	}
	_, err := c.adminCall(ctx, "CreateChannel", map[string]any{
		"name":    name,
		"members": list,
	})
	return err
}

func (c *Client) DeleteChannel(ctx context.Context, name string) error {
	_, err := c.adminCall(ctx, "DeleteChannel", map[string]any{"name": name})
	return err
}

// ListChannels returns channel names mapped to their members.
func (c *Client) ListChannels(ctx context.Context) (map[string][]server.UserID, error) {
	out, err := c.adminCall(ctx, "ListChannels", map[string]any{})
	if err != nil {
		return nil, err
	}
	channels := make(map[string][]server.UserID)
	for _, v := range out.GetFields()["channels"].GetListValue().GetValues() {
		ch := v.GetStructValue()
		name := ch.GetFields()["name"].GetStringValue()
		members := []server.UserID{}
		for _, m := range rpc.Strings(ch, "members") {
			members = append(members, server.UserID(m))
		}
		channels[name] = members
	}
	return channels, nil
}

func (c *Client) command(ctx context.Context, method string, fields map[string]any) (server.Result, error) {
	req := map[string]any{"user": c.User.String()}
	for k, v := range fields {
		req[k] = v
	}
	out, err := c.call(ctx, c.Messaging, messaging.ServiceName, method, req)
	if err != nil {
		// a command whose change was applied but not stored still reports
		// its outcome
		res, _ := messaging.ResultFromStatus(err)
		return res, err
	}
	res := messaging.DecodeResult(out)
	log.OrNop(c.Logger).Debug().
		Str("method", method).
		Stringer("outcome", res.Outcome).
		Msg("got response from server")
	return res, nil
}

func (c *Client) adminCall(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	if c.Admin == nil {
		return nil, fmt.Errorf("no admin connection")
	}
	return c.call(ctx, c.Admin, admin.ServiceName, method, req)
}

func (c *Client) call(ctx context.Context, conn grpc.ClientConnInterface, service, method string, req map[string]any) (*structpb.Struct, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, rpc.RequestIDKey, uuid.NewString())
	out, err := rpc.Invoke(ctx, conn, service, method, req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	return out, nil
}
