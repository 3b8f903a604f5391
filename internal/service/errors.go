package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/roomledger/internal/lifecycle"
	"github.com/mmynk/roomledger/internal/middleware"
)

var (
	errUnauthenticated = errors.New("authentication required")
	errInternal        = errors.New("internal error")
)

// actorFrom builds the engine actor from the identity RequireAuth put in ctx.
func actorFrom(ctx context.Context) (lifecycle.Actor, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return lifecycle.Actor{}, connect.NewError(connect.CodeUnauthenticated, errUnauthenticated)
	}
	return lifecycle.Actor{UserID: userID, Role: middleware.GetRole(ctx)}, nil
}

// connectError maps engine failures to Connect codes. Unexpected failures are
// logged and hidden behind a generic message.
func connectError(logger *slog.Logger, op string, err error) error {
	var e *lifecycle.Error
	if !errors.As(err, &e) {
		logger.Error(op+" failed", "error", err)
		return connect.NewError(connect.CodeInternal, errInternal)
	}

	code := connect.CodeInternal
	switch e.Kind {
	case lifecycle.KindNotFound:
		code = connect.CodeNotFound
	case lifecycle.KindForbidden:
		code = connect.CodePermissionDenied
	case lifecycle.KindInvalidState:
		code = connect.CodeFailedPrecondition
	case lifecycle.KindValidation:
		code = connect.CodeInvalidArgument
	case lifecycle.KindConflict:
		code = connect.CodeAlreadyExists
	}
	logger.Warn(op+" rejected", "kind", e.Kind.String(), "error", e.Message)
	return connect.NewError(code, e)
}
