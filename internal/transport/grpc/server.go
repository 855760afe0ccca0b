package grpcx

import (
	"context"
	"errors"

	"github.com/cwrk-planet/roomsync/internal/domain"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "roomsync.v1.Rooms"

type RoomSvc interface {
	CreateRoom(ctx context.Context, hostName string) (*domain.Room, error)
	GetRoom(ctx context.Context, id string) (*domain.Room, error)
	JoinRoom(ctx context.Context, id, displayName, participantID string) (*domain.Room, error)
	UpdateActiveTab(ctx context.Context, id string, tab domain.Tab) (*domain.Room, error)
}

type CreateRoomRequest struct {
	HostName string `json:"hostName,omitempty"`
}

type GetRoomRequest struct {
	RoomID string `json:"roomId"`
}

type JoinRoomRequest struct {
	RoomID        string `json:"roomId"`
	DisplayName   string `json:"displayName,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
}

type UpdateTabRequest struct {
	RoomID string     `json:"roomId"`
	Tab    domain.Tab `json:"tab"`
}

type RoomResponse struct {
	Room *domain.Room `json:"room"`
}

// Server — те же операции, что и REST, для внутренних клиентов.
// Рассылок в сокеты отсюда нет, как и из REST.
type Server struct {
	roomSvc RoomSvc
}

func NewServer(roomSvc RoomSvc) *Server {
	return &Server{roomSvc: roomSvc}
}

func Register(grpcServer *grpc.Server, s *Server) {
	grpcServer.RegisterService(&serviceDesc, s)
}

// -------- helpers --------

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func requireRoomID(id string) error {
	if id == "" {
		return status.Error(codes.InvalidArgument, "roomId required")
	}
	return nil
}

// -------- methods --------

func (s *Server) CreateRoom(ctx context.Context, in *CreateRoomRequest) (*RoomResponse, error) {
	if len([]rune(in.HostName)) > domain.MaxNameLength {
		return nil, status.Error(codes.InvalidArgument, "hostName too long")
	}
	room, err := s.roomSvc.CreateRoom(ctx, in.HostName)
	if err != nil {
		return nil, mapErr(err)
	}
	return &RoomResponse{Room: room}, nil
}

func (s *Server) GetRoom(ctx context.Context, in *GetRoomRequest) (*RoomResponse, error) {
	if err := requireRoomID(in.RoomID); err != nil {
		return nil, err
	}
	room, err := s.roomSvc.GetRoom(ctx, in.RoomID)
	if err != nil {
		return nil, mapErr(err)
	}
	return &RoomResponse{Room: room}, nil
}

func (s *Server) JoinRoom(ctx context.Context, in *JoinRoomRequest) (*RoomResponse, error) {
	if err := requireRoomID(in.RoomID); err != nil {
		return nil, err
	}
	if len([]rune(in.DisplayName)) > domain.MaxNameLength {
		return nil, status.Error(codes.InvalidArgument, "displayName too long")
	}
	room, err := s.roomSvc.JoinRoom(ctx, in.RoomID, in.DisplayName, in.ParticipantID)
	if err != nil {
		return nil, mapErr(err)
	}
	return &RoomResponse{Room: room}, nil
}

func (s *Server) UpdateActiveTab(ctx context.Context, in *UpdateTabRequest) (*RoomResponse, error) {
	if err := requireRoomID(in.RoomID); err != nil {
		return nil, err
	}
	room, err := s.roomSvc.UpdateActiveTab(ctx, in.RoomID, in.Tab)
	if err != nil {
		return nil, mapErr(err)
	}
	return &RoomResponse{Room: room}, nil
}

// -------- service descriptor --------

type roomsServer interface {
	CreateRoom(context.Context, *CreateRoomRequest) (*RoomResponse, error)
	GetRoom(context.Context, *GetRoomRequest) (*RoomResponse, error)
	JoinRoom(context.Context, *JoinRoomRequest) (*RoomResponse, error)
	UpdateActiveTab(context.Context, *UpdateTabRequest) (*RoomResponse, error)
}

// unaryHandler собирает grpc.MethodHandler для метода с запросом Req.
func unaryHandler[Req any](method string, call func(roomsServer, context.Context, *Req) (*RoomResponse, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(roomsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(roomsServer), ctx, req.(*Req))
		})
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*roomsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateRoom", Handler: unaryHandler("CreateRoom", roomsServer.CreateRoom)},
		{MethodName: "GetRoom", Handler: unaryHandler("GetRoom", roomsServer.GetRoom)},
		{MethodName: "JoinRoom", Handler: unaryHandler("JoinRoom", roomsServer.JoinRoom)},
		{MethodName: "UpdateActiveTab", Handler: unaryHandler("UpdateActiveTab", roomsServer.UpdateActiveTab)},
	},
	Metadata: "roomsync/v1/rooms",
}
