package restclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cwrk-planet/roomsync/internal/domain"
)

type errorResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// APIError — ответ сервера не из 2xx. 400 и 404 разворачиваются в
// domain.ErrValidation и domain.ErrRoomNotFound.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return domain.ErrValidation
	case http.StatusNotFound:
		return domain.ErrRoomNotFound
	}
	return nil
}

// Client — REST API комнат.
type Client struct {
	http *resty.Client
	log  *slog.Logger
}

func New(baseURL string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: client, log: log}
}

// WebSocketURL — адрес /ws того же сервера.
func WebSocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

func (c *Client) CreateRoom(ctx context.Context, hostName string) (*domain.Room, error) {
	body := map[string]any{}
	if hostName != "" {
		body["hostName"] = hostName
	}
	return c.room(ctx, http.MethodPost, "/api/rooms", body)
}

func (c *Client) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	return c.room(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID), nil)
}

// JoinRoom идемпотентен по participantID.
func (c *Client) JoinRoom(ctx context.Context, roomID, displayName, participantID string) (*domain.Room, error) {
	body := map[string]any{}
	if displayName != "" {
		body["displayName"] = displayName
	}
	if participantID != "" {
		body["participantId"] = participantID
	}
	return c.room(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/join", body)
}

func (c *Client) UpdateTab(ctx context.Context, roomID string, tab domain.Tab) (*domain.Room, error) {
	return c.room(ctx, http.MethodPatch, "/api/rooms/"+url.PathEscape(roomID)+"/tab", map[string]any{"tab": tab})
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiErr).
		Get("/health")
	if err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{Status: resp.StatusCode(), Message: apiErr.Message}
	}
	return &out, nil
}

func (c *Client) room(ctx context.Context, method, path string, body any) (*domain.Room, error) {
	var room domain.Room
	var apiErr errorResponse

	req := c.http.R().
		SetContext(ctx).
		SetResult(&room).
		SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.log.Debug("rooms api call failed", "method", method, "path", path, "err", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return nil, &APIError{Status: resp.StatusCode(), Message: apiErr.Message}
	}
	return &room, nil
}
