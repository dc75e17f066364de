package messaging

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	server "github.com/charadev96/gochan/internal/server/domain"
	"github.com/charadev96/gochan/internal/server/handler"
	"github.com/charadev96/gochan/internal/server/notify"
	"github.com/charadev96/gochan/internal/server/service"
	"github.com/charadev96/gochan/internal/shared/rpc"
)

const ServiceName = "gochan.messaging.ChannelService"

// ChannelServer is the set of user commands served on the messaging
// endpoint. Every request names the calling user in its "user" field;
// authenticating that user happens before the call reaches the handler.
type ChannelServer interface {
	Invite(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Accept(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Deny(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Leave(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDefault(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FetchNotices(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var ChannelServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChannelServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "Invite", ChannelServer.Invite),
		rpc.Unary(ServiceName, "Accept", ChannelServer.Accept),
		rpc.Unary(ServiceName, "Deny", ChannelServer.Deny),
		rpc.Unary(ServiceName, "Leave", ChannelServer.Leave),
		rpc.Unary(ServiceName, "GetDefault", ChannelServer.GetDefault),
		rpc.Unary(ServiceName, "FetchNotices", ChannelServer.FetchNotices),
	},
	Streams: []grpc.StreamDesc{},
}

func Register(s grpc.ServiceRegistrar, h ChannelServer) {
	s.RegisterService(&ChannelServiceDesc, h)
}

// Outcomes other than errors travel in the reply's "outcome" field with a
// successful status. Only bad input and storage failures become status
// errors.
type ChannelServiceHandler struct {
	Service *service.ChannelService
	Mailbox *notify.Mailbox
}

func (h *ChannelServiceHandler) Invite(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	user, err := rpc.String(req, "user")
	if err != nil {
		return nil, err
	}
	invitee, err := rpc.String(req, "invitee")
	if err != nil {
		return nil, err
	}
	channel, err := rpc.String(req, "channel")
	if err != nil {
		return nil, err
	}
	res, err := h.Service.Invite(ctx, server.UserID(user), server.UserID(invitee), channel)
	return reply(res, err)
}

func (h *ChannelServiceHandler) Accept(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	user, err := rpc.String(req, "user")
	if err != nil {
		return nil, err
	}
	res, err := h.Service.Accept(ctx, server.UserID(user))
	return reply(res, err)
}

func (h *ChannelServiceHandler) Deny(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	user, err := rpc.String(req, "user")
	if err != nil {
		return nil, err
	}
	res, err := h.Service.Deny(ctx, server.UserID(user))
	return reply(res, err)
}

func (h *ChannelServiceHandler) Leave(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	user, err := rpc.String(req, "user")
	if err != nil {
		return nil, err
	}
	channel, err := rpc.String(req, "channel")
	if err != nil {
		return nil, err
	}
	res, err := h.Service.Leave(ctx, server.UserID(user), channel)
	return reply(res, err)
}

func (h *ChannelServiceHandler) GetDefault(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	user, err := rpc.String(req, "user")
	if err != nil {
		return nil, err
	}
	channel, ok := h.Service.DefaultChannel(server.UserID(user))
	return rpc.Reply(map[string]any{
		"user":    user,
		"channel": channel,
		"found":   ok,
	})
}

func (h *ChannelServiceHandler) FetchNotices(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	user, err := rpc.String(req, "user")
	if err != nil {
		return nil, err
	}
	var notices []server.Notice
	if h.Mailbox != nil {
		notices = h.Mailbox.Drain(server.UserID(user))
	}
	return rpc.Reply(map[string]any{
		"user":    user,
		"notices": encodeNotices(notices),
	})
}

// reply encodes res. When storing the change failed the outcome still
// stands in memory, so the encoded result rides along as a status detail.
func reply(res server.Result, err error) (*structpb.Struct, error) {
	out, encErr := rpc.Reply(encodeResult(res))
	if err == nil {
		return out, encErr
	}
	st := status.Convert(handler.Status(err))
	if st.Code() != codes.Internal || encErr != nil {
		return nil, st.Err()
	}
	if withResult, detailErr := st.WithDetails(out); detailErr == nil {
		st = withResult
	}
	return nil, st.Err()
}

// ResultFromStatus recovers the result attached to a failed command, if any.
func ResultFromStatus(err error) (server.Result, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return server.Result{}, false
	}
	for _, d := range st.Details() {
		if s, ok := d.(*structpb.Struct); ok {
			return DecodeResult(s), true
		}
	}
	return server.Result{}, false
}
