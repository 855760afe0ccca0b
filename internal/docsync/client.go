package docsync

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/cwrk-planet/roomsync/internal/domain"
	"github.com/cwrk-planet/roomsync/internal/signaling"
	"github.com/cwrk-planet/roomsync/pkg/logger"
)

// Sender — канал до хаба.
type Sender interface {
	Send(event string, payload any) error
}

// Client хранит последний известный снимок комнаты. Входящие broadcast'ы
// заменяют документы целиком, исходящие правки применяются сразу,
// без отката, если сервер их молча отбросит.
type Client struct {
	roomID string
	send   Sender
	log    *slog.Logger

	mu           sync.RWMutex
	docs         domain.Documents
	participants []domain.Participant
	tab          domain.Tab
}

func New(roomID string, initial *domain.Room, send Sender, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		roomID: roomID,
		send:   send,
		log:    log.With(logger.Room(roomID)),
		docs:   domain.DefaultDocuments(),
		tab:    domain.TabCode,
	}
	if initial != nil {
		c.docs = initial.Documents.Clone()
		c.participants = append([]domain.Participant(nil), initial.Participants...)
		c.tab = initial.ActiveTab
	}
	return c
}

// Documents — копия локального снимка.
func (c *Client) Documents() domain.Documents {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.docs.Clone()
}

func (c *Client) Participants() []domain.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Participant(nil), c.participants...)
}

func (c *Client) ActiveTab() domain.Tab {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tab
}

// ApplyBroadcast заменяет документы целиком, без слияния.
func (c *Client) ApplyBroadcast(docs domain.Documents) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = docs.Clone()
}

func (c *Client) ApplyParticipants(list []domain.Participant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.participants = append([]domain.Participant(nil), list...)
}

func (c *Client) ApplyTab(tab domain.Tab) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tab = tab
}

// EditCode правит код текущего языка и сохраняет его в codes.
func (c *Client) EditCode(code string) error {
	c.mu.Lock()
	patch := domain.CodeEdit(c.docs.Language, code)
	c.docs.Apply(patch)
	c.mu.Unlock()
	return c.push(patch)
}

// SwitchLanguage берёт сохранённый код языка или его шаблон.
func (c *Client) SwitchLanguage(lang domain.Language) error {
	if !lang.Valid() {
		return fmt.Errorf("%w: unknown language %q", domain.ErrValidation, lang)
	}

	c.mu.Lock()
	code, ok := c.docs.Codes[lang]
	if !ok {
		code = domain.Template(lang)
	}
	patch := domain.LanguageSwitch(lang, code)
	c.docs.Apply(patch)
	c.mu.Unlock()
	return c.push(patch)
}

func (c *Client) EditNotes(notes string) error {
	return c.edit(domain.NotesEdit(notes))
}

func (c *Client) SetInput(input string) error {
	return c.edit(domain.InputEdit(input))
}

func (c *Client) SetOutput(output string) error {
	return c.edit(domain.OutputEdit(output))
}

// AddStroke дописывает штрих и шлёт весь список. Два клиента, закончившие
// штрих одновременно, перетрут друг друга: побеждает последний патч.
func (c *Client) AddStroke(s domain.Stroke) error {
	c.mu.Lock()
	list := append(domain.CloneStrokes(c.docs.Whiteboard), s)
	patch := domain.WhiteboardReplace(list)
	c.docs.Apply(patch)
	c.mu.Unlock()
	return c.push(patch)
}

// UndoStroke убирает последний штрих. На пустой доске ничего не шлёт.
func (c *Client) UndoStroke() error {
	c.mu.Lock()
	if len(c.docs.Whiteboard) == 0 {
		c.mu.Unlock()
		return nil
	}
	patch := domain.WhiteboardReplace(c.docs.Whiteboard[:len(c.docs.Whiteboard)-1])
	c.docs.Apply(patch)
	c.mu.Unlock()
	return c.push(patch)
}

func (c *Client) ClearWhiteboard() error {
	return c.edit(domain.WhiteboardReplace(nil))
}

// ChangeTab шлёт tab-change. Локально вкладка меняется по tab-changed.
func (c *Client) ChangeTab(tab domain.Tab) error {
	if !tab.Valid() {
		return fmt.Errorf("%w: unknown tab %q", domain.ErrValidation, tab)
	}
	return c.send.Send(signaling.EventTabChange, signaling.TabChangePayload{RoomID: c.roomID, Tab: tab})
}

func (c *Client) edit(patch domain.DocumentPatch) error {
	c.mu.Lock()
	c.docs.Apply(patch)
	c.mu.Unlock()
	return c.push(patch)
}

func (c *Client) push(patch domain.DocumentPatch) error {
	err := c.send.Send(signaling.EventDocChange, signaling.DocChangePayload{RoomID: c.roomID, Patch: patch})
	if err != nil {
		c.log.Warn("doc-change not sent", "fields", patch.Fields(), "err", err)
	}
	return err
}
