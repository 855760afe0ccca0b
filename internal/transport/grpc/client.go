package grpcx

import (
	"context"
	"fmt"
	"time"

	"github.com/cwrk-planet/roomsync/internal/domain"

	"github.com/go-chi/chi/v5/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Client — типизированный клиент сервиса Rooms.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

type ClientOptions struct {
	Target  string
	Timeout time.Duration
	// Dial — дополнительные опции, например bufconn в тестах.
	Dial []grpc.DialOption
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Target == "" {
		return nil, fmt.Errorf("rooms client: empty target")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts.Dial...)

	conn, err := grpc.NewClient(opts.Target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("rooms client: new client failed: %w", err)
	}
	return &Client{conn: conn, timeout: opts.Timeout}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// withOutboundMeta — прокидывает x-request-id, если он есть в контексте.
func withOutboundMeta(ctx context.Context) context.Context {
	if rid := middleware.GetReqID(ctx); rid != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", rid)
	}
	return ctx
}

func (c *Client) call(ctx context.Context, method string, in any) (*domain.Room, error) {
	rpcCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	rpcCtx = withOutboundMeta(rpcCtx)

	out := new(RoomResponse)
	if err := c.conn.Invoke(rpcCtx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, unmapErr(err)
	}
	if out.Room == nil {
		return nil, fmt.Errorf("%s: empty response", method)
	}
	return out.Room, nil
}

func (c *Client) CreateRoom(ctx context.Context, hostName string) (*domain.Room, error) {
	return c.call(ctx, "CreateRoom", &CreateRoomRequest{HostName: hostName})
}

func (c *Client) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	return c.call(ctx, "GetRoom", &GetRoomRequest{RoomID: roomID})
}

func (c *Client) JoinRoom(ctx context.Context, roomID, displayName, participantID string) (*domain.Room, error) {
	return c.call(ctx, "JoinRoom", &JoinRoomRequest{
		RoomID:        roomID,
		DisplayName:   displayName,
		ParticipantID: participantID,
	})
}

func (c *Client) UpdateTab(ctx context.Context, roomID string, tab domain.Tab) (*domain.Room, error) {
	return c.call(ctx, "UpdateActiveTab", &UpdateTabRequest{RoomID: roomID, Tab: tab})
}

// unmapErr — обратное к mapErr: коды статуса в доменные ошибки.
func unmapErr(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", domain.ErrRoomNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", domain.ErrValidation, st.Message())
	}
	return err
}
