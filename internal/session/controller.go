package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cwrk-planet/roomsync/internal/docsync"
	"github.com/cwrk-planet/roomsync/internal/domain"
	"github.com/cwrk-planet/roomsync/internal/negotiation"
	"github.com/cwrk-planet/roomsync/internal/signaling"
	"github.com/cwrk-planet/roomsync/pkg/logger"
)

type Config struct {
	URL           string // ws://host/ws
	RoomID        string
	ParticipantID string
	Snapshot      *domain.Room // снимок из REST join, может быть nil

	NewPeerConnection negotiation.Factory
	Media             negotiation.MediaSource
	OnRemoteTrack     func(remoteID string, t negotiation.RemoteTrack)

	// OnEvent вызывается после применения входящего события комнаты.
	OnEvent func(event string)

	Logger *slog.Logger
}

// Controller — присутствие клиента в одной комнате. Владеет соединением
// с хабом: создаёт его в Enter и закрывает в Close.
type Controller struct {
	cfg    Config
	log    *slog.Logger
	client *signaling.Client
	connID string
	docs   *docsync.Client

	mu     sync.Mutex
	subs   []*signaling.Subscription
	calls  *negotiation.Manager
	inCall bool
	closed bool
}

// Enter подключается к хабу, привязывает соединение к участнику и
// подписывается на события комнаты.
func Enter(ctx context.Context, cfg Config) (*Controller, error) {
	if cfg.RoomID == "" || cfg.ParticipantID == "" {
		return nil, fmt.Errorf("%w: room and participant ids are required", domain.ErrValidation)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(logger.Room(cfg.RoomID), logger.Participant(cfg.ParticipantID))

	client, err := signaling.Dial(ctx, cfg.URL, log)
	if err != nil {
		return nil, err
	}
	connID, err := client.ConnectionID(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("wait for connection id: %w", err)
	}

	c := &Controller{
		cfg:    cfg,
		log:    log.With(logger.Conn(connID)),
		client: client,
		connID: connID,
		docs:   docsync.New(cfg.RoomID, cfg.Snapshot, client, log),
	}
	c.subscribe()

	if err := client.Send(signaling.EventJoin, signaling.JoinPayload{
		RoomID:        cfg.RoomID,
		ParticipantID: cfg.ParticipantID,
	}); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Controller) ConnectionID() string { return c.connID }

func (c *Controller) Docs() *docsync.Client { return c.docs }

// Done закрывается, когда соединение с хабом потеряно или закрыто.
func (c *Controller) Done() <-chan struct{} { return c.client.Done() }

// Calls — менеджер согласований или nil, пока клиент не в звонке.
func (c *Controller) Calls() *negotiation.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *Controller) subscribe() {
	on := func(event string, fn func(json.RawMessage) error) {
		sub := c.client.Subscribe(event, func(raw json.RawMessage) {
			if err := fn(raw); err != nil {
				c.log.Debug("event skipped", "event", event, "err", err)
				return
			}
			if c.cfg.OnEvent != nil {
				c.cfg.OnEvent(event)
			}
		})
		c.subs = append(c.subs, sub)
	}

	on(signaling.EventDocumentsUpdated, func(raw json.RawMessage) error {
		var p signaling.DocumentsPayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		if p.RoomID != c.cfg.RoomID {
			return errForeignRoom
		}
		c.docs.ApplyBroadcast(p.Documents)
		return nil
	})
	on(signaling.EventParticipantsUpdate, func(raw json.RawMessage) error {
		var p signaling.ParticipantsPayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		if p.RoomID != c.cfg.RoomID {
			return errForeignRoom
		}
		c.docs.ApplyParticipants(p.Participants)
		return nil
	})
	on(signaling.EventTabChanged, func(raw json.RawMessage) error {
		var p signaling.TabChangedPayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		if p.RoomID != c.cfg.RoomID {
			return errForeignRoom
		}
		c.docs.ApplyTab(p.Tab)
		return nil
	})

	on(signaling.EventCallUserJoined, func(raw json.RawMessage) error {
		var p signaling.CallPresencePayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		if m := c.Calls(); m != nil {
			m.HandleJoined(p.ConnectionID)
		}
		return nil
	})
	on(signaling.EventCallUserLeft, func(raw json.RawMessage) error {
		var p signaling.CallPresencePayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		if m := c.Calls(); m != nil {
			m.HandleLeft(p.ConnectionID)
		}
		return nil
	})
	for _, event := range []string{signaling.EventRTCOffer, signaling.EventRTCAnswer, signaling.EventRTCICE} {
		on(event, func(raw json.RawMessage) error {
			var p signaling.SignalPayload
			if err := decode(raw, &p); err != nil {
				return err
			}
			if m := c.Calls(); m != nil {
				m.HandleSignal(event, p)
			}
			return nil
		})
	}
}

var errForeignRoom = errors.New("event for another room")

func decode(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// JoinCall поднимает менеджер согласований и объявляет себя в звонке.
// Участники, уже бывшие в звонке, шлют offer первыми.
func (c *Controller) JoinCall() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return signaling.ErrClosed
	}
	if c.inCall {
		c.mu.Unlock()
		return nil
	}
	if c.cfg.NewPeerConnection == nil {
		c.mu.Unlock()
		return errors.New("session: no peer connection factory")
	}
	c.calls = negotiation.NewManager(negotiation.Config{
		RoomID:            c.cfg.RoomID,
		LocalID:           c.connID,
		NewPeerConnection: c.cfg.NewPeerConnection,
		Media:             c.cfg.Media,
		Sender:            c.client,
		Logger:            c.log,
		OnRemoteTrack:     c.cfg.OnRemoteTrack,
	})
	c.inCall = true
	c.mu.Unlock()

	return c.client.Send(signaling.EventJoinCall, signaling.RoomPayload{RoomID: c.cfg.RoomID})
}

// LeaveCall закрывает все peer connection.
func (c *Controller) LeaveCall() error {
	c.mu.Lock()
	m := c.calls
	wasIn := c.inCall
	c.calls = nil
	c.inCall = false
	c.mu.Unlock()

	if m != nil {
		m.Close()
	}
	if !wasIn {
		return nil
	}
	return c.client.Send(signaling.EventLeaveCall, signaling.RoomPayload{RoomID: c.cfg.RoomID})
}

// Close снимает подписки, выходит из звонка и закрывает соединение.
// Повторный вызов ничего не делает.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	if err := c.LeaveCall(); err != nil && !errors.Is(err, signaling.ErrClosed) {
		c.log.Debug("leave-call not sent", "err", err)
	}
	return c.client.Close()
}
