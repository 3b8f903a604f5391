package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/roomledger/internal/lifecycle"
	"github.com/mmynk/roomledger/pkg/api"
)

// RoomService implements the RoomService RPC interface: room membership,
// moderation and the caller's notifications.
type RoomService struct {
	engine *lifecycle.Engine
	logger *slog.Logger
}

var _ api.RoomServiceHandler = (*RoomService)(nil)

// NewRoomService creates a RoomService backed by engine.
func NewRoomService(engine *lifecycle.Engine, logger *slog.Logger) *RoomService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomService{engine: engine, logger: logger}
}

func (s *RoomService) CreateRoom(ctx context.Context, req *connect.Request[api.CreateRoomRequest]) (*connect.Response[api.RoomResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("CreateRoom request", "actor_id", actor.UserID, "title", req.Msg.Title)

	room, err := s.engine.CreateRoom(ctx, actor, lifecycle.RoomInput{Title: req.Msg.Title, Threshold: req.Msg.Threshold})
	if err != nil {
		return nil, connectError(s.logger, "CreateRoom", err)
	}
	return connect.NewResponse(&api.RoomResponse{Room: toAPIRoom(room)}), nil
}

func (s *RoomService) GetRoom(ctx context.Context, req *connect.Request[api.RoomRequest]) (*connect.Response[api.GetRoomResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	details, err := s.engine.GetRoom(ctx, actor, req.Msg.RoomID)
	if err != nil {
		return nil, connectError(s.logger, "GetRoom", err)
	}
	return connect.NewResponse(&api.GetRoomResponse{
		Room:    toAPIRoom(&details.Room),
		Members: toAPIMembers(details.Members),
	}), nil
}

func (s *RoomService) UpdateThreshold(ctx context.Context, req *connect.Request[api.UpdateThresholdRequest]) (*connect.Response[api.RoomResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("UpdateThreshold request", "actor_id", actor.UserID, "room_id", req.Msg.RoomID, "threshold", req.Msg.Threshold.String())

	room, err := s.engine.UpdateThreshold(ctx, actor, req.Msg.RoomID, req.Msg.Threshold)
	if err != nil {
		return nil, connectError(s.logger, "UpdateThreshold", err)
	}
	return connect.NewResponse(&api.RoomResponse{Room: toAPIRoom(room)}), nil
}

func (s *RoomService) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("AddMember request", "actor_id", actor.UserID, "room_id", req.Msg.RoomID)

	member, err := s.engine.AddMember(ctx, actor, req.Msg.RoomID, req.Msg.Email)
	if err != nil {
		return nil, connectError(s.logger, "AddMember", err)
	}
	return connect.NewResponse(&api.AddMemberResponse{Member: toAPIMember(member)}), nil
}

func (s *RoomService) RemoveMember(ctx context.Context, req *connect.Request[api.RemoveMemberRequest]) (*connect.Response[api.Empty], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("RemoveMember request", "actor_id", actor.UserID, "room_id", req.Msg.RoomID, "user_id", req.Msg.UserID)

	if err := s.engine.RemoveMember(ctx, actor, req.Msg.RoomID, req.Msg.UserID); err != nil {
		return nil, connectError(s.logger, "RemoveMember", err)
	}
	return connect.NewResponse(&api.Empty{}), nil
}

func (s *RoomService) BanRoom(ctx context.Context, req *connect.Request[api.BanRoomRequest]) (*connect.Response[api.Empty], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("BanRoom request", "actor_id", actor.UserID, "room_id", req.Msg.RoomID, "banned", req.Msg.Banned)

	if err := s.engine.BanRoom(ctx, actor, req.Msg.RoomID, req.Msg.Banned); err != nil {
		return nil, connectError(s.logger, "BanRoom", err)
	}
	return connect.NewResponse(&api.Empty{}), nil
}

func (s *RoomService) DeleteRoom(ctx context.Context, req *connect.Request[api.DeleteRoomRequest]) (*connect.Response[api.Empty], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("DeleteRoom request", "actor_id", actor.UserID, "room_id", req.Msg.RoomID, "delete_admin", req.Msg.DeleteAdminAccount)

	if err := s.engine.DeleteRoom(ctx, actor, req.Msg.RoomID, req.Msg.DeleteAdminAccount); err != nil {
		return nil, connectError(s.logger, "DeleteRoom", err)
	}
	return connect.NewResponse(&api.Empty{}), nil
}

func (s *RoomService) ListNotifications(ctx context.Context, _ *connect.Request[api.Empty]) (*connect.Response[api.ListNotificationsResponse], error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	notifications, err := s.engine.ListNotifications(ctx, actor)
	if err != nil {
		return nil, connectError(s.logger, "ListNotifications", err)
	}
	out := make([]api.Notification, len(notifications))
	for i := range notifications {
		out[i] = *toAPINotification(&notifications[i])
	}
	return connect.NewResponse(&api.ListNotificationsResponse{Notifications: out}), nil
}
