package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cwrk-planet/roomsync/internal/negotiation"
	"github.com/cwrk-planet/roomsync/internal/restclient"
	"github.com/cwrk-planet/roomsync/internal/session"
)

const confirmTimeout = 5 * time.Second

// live — клиент, вошедший в комнату по сокету.
type live struct {
	ctrl   *session.Controller
	events chan string
	media  *negotiation.StaticMedia
}

// enter входит в комнату под новым id участника и поднимает сессию.
// С call=true готовит pion и локальные дорожки для звонка.
func (a *app) enter(ctx context.Context, roomID string, call bool, onTrack func(string, negotiation.RemoteTrack)) (*live, error) {
	pid := "cli-" + uuid.NewString()
	snap, err := a.rooms.JoinRoom(ctx, roomID, a.settings.Name, pid)
	if err != nil {
		return nil, fmt.Errorf("join room: %w", err)
	}
	wsURL, err := restclient.WebSocketURL(a.settings.Server)
	if err != nil {
		return nil, err
	}

	l := &live{events: make(chan string, 64)}
	cfg := session.Config{
		URL:           wsURL,
		RoomID:        roomID,
		ParticipantID: pid,
		Snapshot:      snap,
		OnRemoteTrack: onTrack,
		Logger:        a.log.With("component", "session"),
		OnEvent: func(event string) {
			// readPump не ждёт медленного читателя
			select {
			case l.events <- event:
			default:
			}
		},
	}
	if call {
		media, err := negotiation.NewStaticMedia(pid)
		if err != nil {
			return nil, fmt.Errorf("local media: %w", err)
		}
		l.media = media
		cfg.Media = media
		cfg.NewPeerConnection = negotiation.PionFactory(a.settings.ICEServers)
	}

	ctrl, err := session.Enter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	l.ctrl = ctrl
	return l, nil
}

// await ждёт событие want, пока не выйдет время или не закроется сокет.
func (l *live) await(ctx context.Context, want string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		select {
		case ev := <-l.events:
			if ev == want {
				return nil
			}
		case <-l.ctrl.Done():
			return fmt.Errorf("connection closed before %s", want)
		case <-ctx.Done():
			return fmt.Errorf("no %s from server: %w", want, ctx.Err())
		}
	}
}
