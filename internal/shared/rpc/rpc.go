package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const RequestIDKey = "x-request-id"

// Unary builds a method descriptor for a handler that exchanges structpb
// messages. srv must be of type S, which grpc guarantees through the
// HandlerType of the service descriptor.
func Unary[S any](service, method string, call func(S, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := fmt.Sprintf("/%s/%s", service, method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			h := srv.(S)
			if interceptor == nil {
				return call(h, ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(h, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// Invoke calls a unary structpb method on conn.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, service, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, fmt.Sprintf("/%s/%s", service, method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// String returns the string field key of s, or an InvalidArgument status
// when it is missing or empty.
func String(s *structpb.Struct, key string) (string, error) {
	v := s.GetFields()[key].GetStringValue()
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "missing field '%s'", key)
	}
	return v, nil
}

func OptionalString(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func Strings(s *structpb.Struct, key string) []string {
	values := s.GetFields()[key].GetListValue().GetValues()
	out := make([]string, 0, len(values))
	for _, v := range values {
		if str := v.GetStringValue(); str != "" {
			out = append(out, str)
		}
	}
	return out
}

// Reply encodes fields into a structpb message.
func Reply(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// LoggingInterceptor tags every call with a request id, taken from the
// incoming metadata when present, and logs its result.
func LoggingInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDKey); len(vals) > 0 {
				id = vals[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		l := logger.With().
			Str("request_id", id).
			Str("method", info.FullMethod).
			Logger()
		ctx = l.WithContext(ctx)

		start := time.Now()
		resp, err := handler(ctx, req)
		lvl := zerolog.DebugLevel
		if err != nil {
			lvl = zerolog.WarnLevel
		}
		ev := l.WithLevel(lvl).Dur("elapsed", time.Since(start))
		if err != nil {
			ev = ev.Str("code", status.Code(err).String()).Err(err)
		}
		ev.Msg("handled call")
		return resp, err
	}
}
