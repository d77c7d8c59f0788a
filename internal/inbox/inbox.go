// Package inbox keeps the conversation list and the open conversation's
// messages in sync with the REST collaborator and the live socket.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"skillswap/internal/models"
	"skillswap/internal/typing"
	"skillswap/internal/ws"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ChatAPI is the REST collaborator.
type ChatAPI interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	CreateConversation(ctx context.Context, recipient string) (models.Conversation, error)
	CreateMessage(ctx context.Context, conversationID, text, receiverID string) (models.Message, error)
}

// Connection is the command and event surface of the socket.
type Connection interface {
	Emit(cmd ws.Command) error
	IsConnected() bool
	Subscribe(handler func(ws.Event)) func()
}

// Drafts persists composer text per conversation.
type Drafts interface {
	SaveDraft(conversationID, text string) error
	Draft(conversationID string) (string, error)
	DeleteDraft(conversationID string) error
}

type Change int

const (
	ChangeConversations Change = iota
	ChangeTimeline
	ChangeTyping
	ChangePresence
	ChangeConnection
)

func (c Change) String() string {
	switch c {
	case ChangeConversations:
		return "conversations"
	case ChangeTimeline:
		return "timeline"
	case ChangeTyping:
		return "typing"
	case ChangePresence:
		return "presence"
	case ChangeConnection:
		return "connection"
	default:
		return fmt.Sprintf("change(%d)", int(c))
	}
}

type Options struct {
	Session      models.Session
	API          ChatAPI
	Conn         Connection
	Drafts       Drafts
	IdleTimeout  time.Duration
	DecayTimeout time.Duration
	// Listener is told what changed so the UI can re-render. It is never
	// called with the inbox lock held.
	Listener func(Change)
	Logger   *slog.Logger
}

type pendingSend struct {
	id             string
	conversationID string
	receiverID     string
	text           string
	createdAt      time.Time
}

// Inbox is one open inbox page. All state changes, whether from socket
// events, timers or user commands, are serialized through mu.
type Inbox struct {
	opts   Options
	selfID string
	log    *slog.Logger
	typing *typing.Coordinator

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	store     *Store
	timeline  *Timeline
	pending   []pendingSend
	restSends int
	closed    bool

	orphans     singleflight.Group
	unsubscribe func()
}

func New(opts Options) *Inbox {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	i := &Inbox{
		opts:     opts,
		selfID:   opts.Session.UserID,
		log:      logger.With("component", "inbox", "user_id", opts.Session.UserID),
		ctx:      ctx,
		cancel:   cancel,
		store:    NewStore(),
		timeline: NewTimeline(opts.Session.UserID),
	}
	i.typing = typing.New(typing.Config{
		SelfID:       opts.Session.UserID,
		IdleTimeout:  opts.IdleTimeout,
		DecayTimeout: opts.DecayTimeout,
		OnChange: func(string, bool) {
			i.notify(ChangeTyping)
		},
	}, opts.Conn)
	i.unsubscribe = opts.Conn.Subscribe(i.HandleEvent)
	return i
}

// LoadInitial replaces the conversation list with the server's. On failure
// the list is left empty and the error returned for the caller to show.
func (i *Inbox) LoadInitial(ctx context.Context) error {
	conversations, err := i.opts.API.ListConversations(ctx)

	i.mu.Lock()
	if err != nil {
		i.store.Replace(nil)
	} else {
		i.store.Replace(conversations)
	}
	i.mu.Unlock()

	i.notify(ChangeConversations)
	if err != nil {
		return fmt.Errorf("failed to load conversations: %w", err)
	}
	return nil
}

// Select opens a conversation: it becomes active, its unread counter is
// zeroed, the server is told, and the history is fetched fresh.
func (i *Inbox) Select(ctx context.Context, conversationID string) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return errors.New("inbox is closed")
	}
	if !i.store.Has(conversationID) {
		i.mu.Unlock()
		return fmt.Errorf("conversation %s: %w", conversationID, models.ErrNotFound)
	}
	if prev := i.store.ActiveID(); prev != "" && prev != conversationID {
		i.leaveLocked(prev)
	}
	i.store.Select(conversationID)
	i.timeline.Reset(conversationID)
	i.emit(ws.ConversationActive{ConversationID: conversationID})
	i.emit(ws.MarkRead{ConversationID: conversationID})
	i.mu.Unlock()
	i.notify(ChangeConversations, ChangeTimeline)

	return i.loadHistory(ctx, conversationID)
}

func (i *Inbox) loadHistory(ctx context.Context, conversationID string) error {
	messages, err := i.opts.API.ListMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}

	i.mu.Lock()
	// The user may have moved on while the request was in flight.
	if i.timeline.ConversationID() != conversationID {
		i.mu.Unlock()
		return nil
	}
	i.timeline.Load(messages)
	i.mu.Unlock()

	i.notify(ChangeTimeline)
	return nil
}

// Deselect closes the active conversation.
func (i *Inbox) Deselect() {
	i.mu.Lock()
	active := i.store.ActiveID()
	if active == "" {
		i.mu.Unlock()
		return
	}
	i.leaveLocked(active)
	i.mu.Unlock()
	i.notify(ChangeConversations, ChangeTimeline)
}

// leaveLocked tells the server the conversation is inactive, cancels its
// typing timer and drops its timeline.
func (i *Inbox) leaveLocked(conversationID string) {
	i.emit(ws.ConversationInactive{ConversationID: conversationID})
	i.typing.Leave(conversationID)
	i.store.Deselect(conversationID)
	if i.timeline.ConversationID() == conversationID {
		i.timeline.Reset("")
	}
}

// Create starts a conversation with a user given by email or id, puts it on
// top of the list and opens it.
func (i *Inbox) Create(ctx context.Context, recipient string) (models.Conversation, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return models.Conversation{}, ErrEmptyRecipient
	}

	conv, err := i.opts.API.CreateConversation(ctx, recipient)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("failed to start a chat: %w", err)
	}

	i.mu.Lock()
	i.store.Prepend(conv)
	i.mu.Unlock()
	i.notify(ChangeConversations)

	return conv, i.Select(ctx, conv.ID)
}

// Type records composer activity for the active conversation: the draft is
// kept and a typing signal sent to the peer.
func (i *Inbox) Type(text string) {
	i.mu.Lock()
	conv, ok := i.store.Active()
	i.mu.Unlock()
	if !ok {
		return
	}

	i.saveDraft(conv.ID, text)
	if conv.Participant.ID != "" {
		i.typing.Keystroke(conv.ID, conv.Participant.ID)
	}
}

// Draft returns the saved composer text of the active conversation.
func (i *Inbox) Draft() string {
	i.mu.Lock()
	id := i.store.ActiveID()
	i.mu.Unlock()
	if id == "" || i.opts.Drafts == nil {
		return ""
	}
	text, err := i.opts.Drafts.Draft(id)
	if err != nil {
		i.log.Warn("failed to read draft", "conversation_id", id, "error", err)
		return ""
	}
	return text
}

// Send delivers text to the active conversation's peer. While the socket is
// up the message is emitted and appears only when the server acknowledges
// it with its own id and timestamp. Otherwise it is created over REST and
// appended as sent right away.
func (i *Inbox) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	i.mu.Lock()
	conv, ok := i.store.Active()
	if !ok {
		i.mu.Unlock()
		return ErrNoActiveConversation
	}
	peerID := conv.Participant.ID
	if peerID == "" {
		i.mu.Unlock()
		return ErrNoRecipient
	}

	if i.opts.Conn.IsConnected() {
		err := i.opts.Conn.Emit(ws.SendMessage{
			ConversationID: conv.ID,
			ToUserID:       peerID,
			Text:           text,
		})
		if err == nil {
			i.pending = append(i.pending, pendingSend{
				id:             uuid.NewString(),
				conversationID: conv.ID,
				receiverID:     peerID,
				text:           text,
				createdAt:      time.Now(),
			})
			i.mu.Unlock()
			i.typing.Stop(conv.ID, peerID)
			i.deleteDraft(conv.ID)
			i.notify(ChangeTimeline)
			return nil
		}
		// The socket went away between the check and the write.
		i.log.Info("socket send failed, falling back to REST", "conversation_id", conv.ID, "error", err)
	}
	i.restSends++
	i.mu.Unlock()

	msg, err := i.opts.API.CreateMessage(ctx, conv.ID, text, peerID)

	i.mu.Lock()
	i.restSends--
	if err != nil {
		i.mu.Unlock()
		i.notify(ChangeTimeline)
		return fmt.Errorf("failed to send message: %w", err)
	}
	if msg.ConversationID == "" {
		msg.ConversationID = conv.ID
	}
	msg.Status = msg.Status.Normalize()
	if i.timeline.ConversationID() == msg.ConversationID {
		i.timeline.Append(msg)
	}
	i.store.UpdatePreview(msg)
	i.mu.Unlock()

	i.deleteDraft(conv.ID)
	i.notify(ChangeTimeline, ChangeConversations)
	return nil
}

// React asks the server to add a reaction. The timeline changes only when
// the server broadcasts the authoritative reaction set.
func (i *Inbox) React(messageID, emoji string) error {
	if messageID == "" || strings.TrimSpace(emoji) == "" {
		return ErrEmptyReaction
	}
	return i.opts.Conn.Emit(ws.React{MessageID: messageID, Emoji: emoji})
}

// HandleEvent is the single reducer for everything the socket delivers.
func (i *Inbox) HandleEvent(ev ws.Event) {
	switch e := ev.(type) {
	case ws.TypingStart, ws.TypingStop:
		i.typing.Handle(ev)
		return
	case ws.PresenceList, ws.PresenceUpdate:
		if !i.isClosed() {
			i.notify(ChangePresence)
		}
		return
	case ws.Connected:
		i.reactivate()
		if !i.isClosed() {
			i.notify(ChangeConnection)
		}
		return
	case ws.Disconnected:
		if !i.isClosed() {
			i.notify(ChangeConnection)
		}
		return
	case ws.MessageNew:
		i.applyIncoming(e.Message)
		return
	}

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	var changes []Change
	switch e := ev.(type) {
	case ws.MessageSent:
		changes = i.applySentLocked(e.Message)
	case ws.MessageDelivered:
		if i.timeline.ApplyDelivered(e.MessageID) {
			changes = append(changes, ChangeTimeline)
		}
	case ws.MessageRead:
		changes = i.applyReadLocked(e)
	case ws.MessageReaction:
		if i.timeline.ApplyReactions(e.MessageID, e.Reactions) {
			changes = append(changes, ChangeTimeline)
		}
	}
	i.mu.Unlock()
	i.notify(changes...)
}

// applyIncoming routes a pushed message to its conversation. If it belongs
// to the open conversation it is appended and read right away.
func (i *Inbox) applyIncoming(m models.Message) {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	if !i.store.ApplyMessage(m) {
		i.wg.Add(1)
		i.mu.Unlock()
		go i.fetchOrphan(m)
		return
	}
	changes := []Change{ChangeConversations}
	if m.ConversationID == i.store.ActiveID() {
		if i.timeline.Append(m) {
			changes = append(changes, ChangeTimeline)
		}
		i.emit(ws.MarkRead{ConversationID: m.ConversationID})
	}
	i.mu.Unlock()
	i.notify(changes...)
}

// fetchOrphan handles a message whose conversation is not in the list yet,
// typically one another user just started. The list is fetched again and
// the missing conversations added; concurrent orphans share one request.
func (i *Inbox) fetchOrphan(m models.Message) {
	defer i.wg.Done()

	v, err, _ := i.orphans.Do("conversations", func() (any, error) {
		return i.opts.API.ListConversations(i.ctx)
	})
	if err != nil {
		i.log.Warn("failed to fetch conversation for message", "conversation_id", m.ConversationID, "error", err)
		return
	}
	conversations := v.([]models.Conversation)

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.store.Merge(conversations)
	conv, ok := i.store.Get(m.ConversationID)
	if !ok {
		i.mu.Unlock()
		i.log.Warn("dropping message for unknown conversation", "conversation_id", m.ConversationID, "message_id", m.ID)
		return
	}
	// A snapshot older than the message cannot have counted it.
	if conv.LastMessage == nil || conv.LastMessage.CreatedAt.Before(m.CreatedAt) {
		i.store.ApplyMessage(m)
	} else {
		i.store.MarkApplied(m.ID)
	}
	i.mu.Unlock()
	i.notify(ChangeConversations)
}

// applySentLocked handles the server's echo of our own socket send.
func (i *Inbox) applySentLocked(m models.Message) []Change {
	i.dropPendingLocked(m)
	changes := []Change{ChangeConversations}
	if i.timeline.ConversationID() == m.ConversationID {
		i.timeline.Append(m)
		changes = append(changes, ChangeTimeline)
	}
	i.store.UpdatePreview(m)
	return changes
}

func (i *Inbox) dropPendingLocked(m models.Message) {
	match := -1
	for idx, p := range i.pending {
		if p.conversationID != m.ConversationID {
			continue
		}
		if p.text == m.Text {
			match = idx
			break
		}
		if match < 0 {
			match = idx
		}
	}
	if match >= 0 {
		i.pending = append(i.pending[:match], i.pending[match+1:]...)
	}
}

func (i *Inbox) applyReadLocked(e ws.MessageRead) []Change {
	var changes []Change
	switch {
	case e.MessageID != "":
		if i.timeline.ApplyRead(e.MessageID) {
			changes = append(changes, ChangeTimeline)
		}
	case e.ConversationID != "" && e.ConversationID == i.timeline.ConversationID():
		if i.timeline.ApplyReadAll() {
			changes = append(changes, ChangeTimeline)
		}
	}
	if e.ConversationID != "" {
		i.store.MarkRead(e.ConversationID)
		changes = append(changes, ChangeConversations)
	}
	return changes
}

// reactivate repeats the active-conversation signal after a reconnect, since
// the server keeps that state per socket.
func (i *Inbox) reactivate() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if id := i.store.ActiveID(); id != "" && !i.closed {
		i.emit(ws.ConversationActive{ConversationID: id})
		i.emit(ws.MarkRead{ConversationID: id})
	}
}

// Close detaches the inbox from the socket, tells the server the active
// conversation is no longer open and cancels every timer.
func (i *Inbox) Close() {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	if active := i.store.ActiveID(); active != "" {
		i.leaveLocked(active)
	}
	i.closed = true
	i.pending = nil
	i.mu.Unlock()

	i.unsubscribe()
	i.typing.Close()
	i.cancel()
	i.wg.Wait()
}

func (i *Inbox) Conversations() []models.Conversation {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.store.List()
}

// Search filters conversations by participant name.
func (i *Inbox) Search(term string) []models.Conversation {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.store.Filter(term)
}

func (i *Inbox) Active() (models.Conversation, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.store.Active()
}

func (i *Inbox) Messages() []models.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.timeline.Messages()
}

// Pending returns socket sends of the active conversation still waiting for
// their acknowledgement. They are not part of the timeline.
func (i *Inbox) Pending() []models.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	var result []models.Message
	for _, p := range i.pending {
		if p.conversationID != i.timeline.ConversationID() {
			continue
		}
		result = append(result, models.Message{
			ID:             p.id,
			ConversationID: p.conversationID,
			SenderID:       i.selfID,
			ReceiverID:     p.receiverID,
			Text:           p.text,
			CreatedAt:      p.createdAt,
			Status:         models.StatusSending,
		})
	}
	return result
}

// Sending reports whether a send is waiting for the server.
func (i *Inbox) Sending() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.pending) > 0 || i.restSends > 0
}

func (i *Inbox) IsTyping(conversationID string) bool {
	return i.typing.IsTyping(conversationID)
}

// emit sends a fire-and-forget command. Commands are dropped while the
// socket is down.
func (i *Inbox) emit(cmd ws.Command) {
	if err := i.opts.Conn.Emit(cmd); err != nil && !errors.Is(err, ws.ErrNotConnected) {
		i.log.Warn("failed to emit command", "command", cmd.CommandName(), "error", err)
	}
}

func (i *Inbox) saveDraft(conversationID, text string) {
	if i.opts.Drafts == nil {
		return
	}
	if err := i.opts.Drafts.SaveDraft(conversationID, text); err != nil {
		i.log.Warn("failed to save draft", "conversation_id", conversationID, "error", err)
	}
}

func (i *Inbox) deleteDraft(conversationID string) {
	if i.opts.Drafts == nil {
		return
	}
	if err := i.opts.Drafts.DeleteDraft(conversationID); err != nil {
		i.log.Warn("failed to delete draft", "conversation_id", conversationID, "error", err)
	}
}

func (i *Inbox) isClosed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

func (i *Inbox) notify(changes ...Change) {
	if i.opts.Listener == nil {
		return
	}
	for _, c := range changes {
		i.opts.Listener(c)
	}
}
