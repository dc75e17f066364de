package admin

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	server "github.com/charadev96/gochan/internal/server/domain"
	"github.com/charadev96/gochan/internal/server/handler"
	"github.com/charadev96/gochan/internal/server/service"
	"github.com/charadev96/gochan/internal/shared/rpc"
)

const ServiceName = "gochan.admin.ChannelAdminService"

type ChannelAdminServer interface {
	CreateChannel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteChannel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListChannels(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetChannel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListInvites(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var ChannelAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChannelAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "CreateChannel", ChannelAdminServer.CreateChannel),
		rpc.Unary(ServiceName, "DeleteChannel", ChannelAdminServer.DeleteChannel),
		rpc.Unary(ServiceName, "ListChannels", ChannelAdminServer.ListChannels),
		rpc.Unary(ServiceName, "GetChannel", ChannelAdminServer.GetChannel),
		rpc.Unary(ServiceName, "ListInvites", ChannelAdminServer.ListInvites),
	},
	Streams: []grpc.StreamDesc{},
}

func Register(s grpc.ServiceRegistrar, h ChannelAdminServer) {
	s.RegisterService(&ChannelAdminServiceDesc, h)
}

type ChannelServiceHandler struct {
	Service *service.ChannelService
}

func (h *ChannelServiceHandler) CreateChannel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := rpc.String(req, "name")
	if err != nil {
		return nil, err
	}
	var members []server.UserID
	for _, m := range rpc.Strings(req, "members") {
		members = append(members, server.UserID(m))
	}
	info, err := h.Service.CreateChannel(ctx, name, members...)
	if err != nil {
		return nil, handler.Status(err)
	}
	return rpc.Reply(map[string]any{"channel": encodeChannel(info)})
}

func (h *ChannelServiceHandler) DeleteChannel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := rpc.String(req, "name")
	if err != nil {
		return nil, err
	}
	if err := h.Service.DeleteChannel(ctx, name); err != nil {
		return nil, handler.Status(err)
	}
	return rpc.Reply(map[string]any{})
}

func (h *ChannelServiceHandler) ListChannels(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var channels []any
	for _, info := range h.Service.ListChannels() {
		channels = append(channels, encodeChannel(info))
	}
	return rpc.Reply(map[string]any{"channels": channels})
}

func (h *ChannelServiceHandler) GetChannel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := rpc.String(req, "name")
	if err != nil {
		return nil, err
	}
	info, err := h.Service.Channel(name)
	if err != nil {
		return nil, handler.Status(err)
	}
	return rpc.Reply(map[string]any{"channel": encodeChannel(info)})
}

func (h *ChannelServiceHandler) ListInvites(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	inviter := rpc.OptionalString(req, "inviter")
	var invites []any
	for _, inv := range h.Service.PendingInvites(server.UserID(inviter)) {
		invites = append(invites, map[string]any{
			"invitee":    inv.Invitee.String(),
			"channel":    inv.Channel,
			"inviter":    inv.Inviter.String(),
			"created_at": inv.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rpc.Reply(map[string]any{"invites": invites})
}

func encodeChannel(info server.ChannelInfo) map[string]any {
	members := make([]any, 0, len(info.Members))
	for _, m := range info.Members {
		members = append(members, m.String())
	}
	return map[string]any{
		"id":      info.ID.String(),
		"name":    info.Name,
		"members": members,
	}
}
