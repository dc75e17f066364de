package handler

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	server "github.com/charadev96/gochan/internal/server/domain"
	shared "github.com/charadev96/gochan/internal/shared/domain"
)

// Status converts a service error into a grpc status error.
func Status(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case errors.Is(err, server.ErrInvalidUser), errors.Is(err, server.ErrInvalidChannel):
		code = codes.InvalidArgument
	case errors.Is(err, shared.ErrNotExist):
		code = codes.NotFound
	case errors.Is(err, shared.ErrExist), errors.Is(err, server.ErrAlreadyJoined):
		code = codes.AlreadyExists
	case errors.Is(err, server.ErrNotInvited), errors.Is(err, server.ErrNotMember):
		code = codes.FailedPrecondition
	}
	return status.Error(code, err.Error())
}
