// Package chattest runs an in-process stand-in for the SkillSwap chat
// backend: the websocket event channel and the conversation REST endpoints.
package chattest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"skillswap/internal/models"
	"skillswap/internal/ws"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Received is a command the server read from a client.
type Received struct {
	UserID  string
	Command ws.Command
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) send(f ws.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(f)
}

type Server struct {
	*httptest.Server

	// Commands receives every command any client sent, in order. Commands
	// are dropped once the buffer is full.
	Commands chan Received

	upgrader websocket.Upgrader

	mu         sync.Mutex
	users      map[string]User
	byToken    map[string]string
	byEmail    map[string]string
	threads    []Thread
	messages   map[string][]*models.Message
	clients    map[string]*client
	lastSeen   map[string]time.Time
	restStatus int
	requests   []string
}

func NewServer() *Server {
	s := &Server{
		Commands: make(chan Received, 256),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		users:    make(map[string]User),
		byToken:  make(map[string]string),
		byEmail:  make(map[string]string),
		messages: make(map[string][]*models.Message),
		clients:  make(map[string]*client),
		lastSeen: make(map[string]time.Time),
	}
	for _, u := range Users {
		s.users[u.ID] = u
		s.byToken[u.Token] = u.ID
		s.byEmail[u.Email] = u.ID
	}
	s.threads = append(s.threads, Conversations...)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleSocket)
	mux.HandleFunc("GET /api/chats/conversations", s.auth(s.listConversations))
	mux.HandleFunc("POST /api/chats/conversations", s.auth(s.createConversation))
	mux.HandleFunc("GET /api/chats/conversations/{id}/messages", s.auth(s.listMessages))
	mux.HandleFunc("POST /api/chats/conversations/{id}/messages", s.auth(s.createMessage))

	s.Server = httptest.NewServer(mux)
	return s
}

// SocketURL is the websocket endpoint of the server.
func (s *Server) SocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

// APIURL is the REST base of the server.
func (s *Server) APIURL() string {
	return s.URL + "/api"
}

// FailREST makes every REST call answer with status until reset with 0.
func (s *Server) FailREST(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restStatus = status
}

// Requests returns "METHOD path" of every REST call served so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// AddThread registers a conversation without telling anyone.
func (s *Server) AddThread(t Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = append(s.threads, t)
}

// AddMessage stores a message without pushing it.
func (s *Server) AddMessage(m models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], &m)
}

// Push sends an event to a connected user.
func (s *Server) Push(userID string, ev ws.Event) error {
	s.mu.Lock()
	c, ok := s.clients[userID]
	s.mu.Unlock()
	if !ok {
		return errors.New("user is not connected")
	}
	frame, err := ws.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return c.send(frame)
}

// Connected reports whether the user has a live socket.
func (s *Server) Connected(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.clients[userID]
	return ok
}

// Drop closes the user's socket from the server side.
func (s *Server) Drop(userID string) {
	s.mu.Lock()
	c, ok := s.clients[userID]
	s.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

// NextCommand waits for the next command sent by userID, skipping commands
// of other users.
func (s *Server) NextCommand(ctx context.Context, userID string) (ws.Command, error) {
	for {
		select {
		case r := <-s.Commands:
			if r.UserID == userID {
				return r.Command, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}

	s.mu.Lock()
	s.clients[userID] = c
	s.mu.Unlock()
	s.broadcastPresence(userID, ws.PresenceUpdate{UserID: userID, Status: ws.PresenceOnline})

	defer func() {
		_ = conn.Close()
		seen := time.Now().UTC().Truncate(time.Second)
		s.mu.Lock()
		if s.clients[userID] == c {
			delete(s.clients, userID)
			s.lastSeen[userID] = seen
		}
		s.mu.Unlock()
		s.broadcastPresence(userID, ws.PresenceUpdate{UserID: userID, Status: ws.PresenceOffline, LastSeen: &seen})
	}()

	for {
		var frame ws.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		cmd, err := ws.DecodeCommand(frame)
		if err != nil {
			continue
		}
		select {
		case s.Commands <- Received{UserID: userID, Command: cmd}:
		default:
		}
		s.dispatch(userID, c, cmd)
	}
}

func (s *Server) dispatch(userID string, c *client, cmd ws.Command) {
	switch cmd := cmd.(type) {
	case ws.PresenceQuery:
		s.mu.Lock()
		online := make([]string, 0, len(s.clients))
		for id := range s.clients {
			online = append(online, id)
		}
		s.mu.Unlock()
		s.sendTo(c, ws.PresenceList{Users: online})
	case ws.SendMessage:
		msg, ok := s.storeMessage(cmd.ConversationID, userID, cmd.ToUserID, cmd.Text)
		if !ok {
			return
		}
		s.sendTo(c, ws.MessageSent{Message: *msg})
		if s.Push(cmd.ToUserID, ws.MessageNew{Message: *msg}) == nil {
			s.setStatus(msg, models.StatusDelivered)
			s.sendTo(c, ws.MessageDelivered{MessageID: msg.ID})
		}
	case ws.StartTyping:
		_ = s.Push(cmd.ToUserID, ws.TypingStart{FromUserID: userID, ConversationID: cmd.ConversationID})
	case ws.StopTyping:
		_ = s.Push(cmd.ToUserID, ws.TypingStop{FromUserID: userID, ConversationID: cmd.ConversationID})
	case ws.MarkRead:
		s.markRead(userID, cmd.ConversationID)
	case ws.React:
		s.react(userID, cmd)
	}
}

func (s *Server) storeMessage(conversationID, from, to, text string) (*models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.thread(conversationID)
	if !ok || !thread.has(from) {
		return nil, false
	}
	if to == "" {
		to = thread.other(from)
	}
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       from,
		ReceiverID:     to,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
		Status:         models.StatusSent,
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	cp := *msg
	return &cp, true
}

func (s *Server) setStatus(m *models.Message, status models.MessageStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stored := range s.messages[m.ConversationID] {
		if stored.ID == m.ID {
			stored.Status = stored.Status.Advance(status)
		}
	}
}

func (s *Server) markRead(userID, conversationID string) {
	s.mu.Lock()
	thread, ok := s.thread(conversationID)
	if ok {
		for _, m := range s.messages[conversationID] {
			if m.ReceiverID == userID {
				m.Status = m.Status.Advance(models.StatusRead)
			}
		}
	}
	s.mu.Unlock()
	if ok {
		_ = s.Push(thread.other(userID), ws.MessageRead{ConversationID: conversationID})
	}
}

func (s *Server) react(userID string, cmd ws.React) {
	s.mu.Lock()
	var (
		reactions []models.Reaction
		thread    Thread
		found     bool
	)
	for convID, msgs := range s.messages {
		for _, m := range msgs {
			if m.ID != cmd.MessageID {
				continue
			}
			m.Reactions = append(m.Reactions, models.Reaction{Emoji: cmd.Emoji, UserID: userID})
			reactions = append([]models.Reaction(nil), m.Reactions...)
			thread, found = s.thread(convID)
		}
	}
	s.mu.Unlock()
	if !found {
		return
	}
	for _, member := range thread.Members {
		_ = s.Push(member, ws.MessageReaction{MessageID: cmd.MessageID, Reactions: reactions})
	}
}

func (s *Server) broadcastPresence(userID string, update ws.PresenceUpdate) {
	s.mu.Lock()
	others := make([]string, 0, len(s.clients))
	for id := range s.clients {
		if id != userID {
			others = append(others, id)
		}
	}
	s.mu.Unlock()
	for _, id := range others {
		_ = s.Push(id, update)
	}
}

func (s *Server) sendTo(c *client, ev ws.Event) {
	frame, err := ws.EncodeEvent(ev)
	if err != nil {
		return
	}
	_ = c.send(frame)
}

// thread must be called with s.mu held.
func (s *Server) thread(id string) (Thread, bool) {
	for _, t := range s.threads {
		if t.ID == id {
			return t, true
		}
	}
	return Thread{}, false
}

func (s *Server) userFromRequest(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.byToken[token]
	return userID, ok
}

type handler func(w http.ResponseWriter, r *http.Request, userID string)

func (s *Server) auth(next handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		status := s.restStatus
		s.mu.Unlock()

		if status != 0 {
			writeError(w, status, "request failed")
			return
		}
		userID, ok := s.userFromRequest(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		next(w, r, userID)
	}
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request, userID string) {
	s.mu.Lock()
	var result []models.Conversation
	for _, t := range s.threads {
		if t.has(userID) {
			result = append(result, s.project(t, userID))
		}
	}
	s.mu.Unlock()
	writeData(w, http.StatusOK, map[string]any{"conversations": result})
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		RecipientEmail string `json:"recipientEmail"`
		RecipientID    string `json:"recipientId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	recipient := req.RecipientID
	if req.RecipientEmail != "" {
		recipient = s.byEmail[req.RecipientEmail]
	}
	if _, ok := s.users[recipient]; !ok || recipient == userID {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	for _, t := range s.threads {
		if t.has(userID) && t.has(recipient) {
			writeData(w, http.StatusOK, map[string]any{"conversation": s.project(t, userID)})
			return
		}
	}
	t := Thread{ID: uuid.NewString(), Members: [2]string{userID, recipient}}
	s.threads = append(s.threads, t)
	writeData(w, http.StatusCreated, map[string]any{"conversation": s.project(t, userID)})
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request, userID string) {
	id := r.PathValue("id")
	s.mu.Lock()
	t, ok := s.thread(id)
	if !ok || !t.has(userID) {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	result := make([]models.Message, 0, len(s.messages[id]))
	for _, m := range s.messages[id] {
		result = append(result, m.Clone())
	}
	s.mu.Unlock()
	writeData(w, http.StatusOK, map[string]any{"messages": result})
}

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Text       string `json:"text"`
		ReceiverID string `json:"receiverId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Message text is required")
		return
	}
	msg, ok := s.storeMessage(r.PathValue("id"), userID, req.ReceiverID, req.Text)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	_ = s.Push(msg.ReceiverID, ws.MessageNew{Message: *msg})
	writeData(w, http.StatusCreated, map[string]any{"message": msg})
}

// project must be called with s.mu held.
func (s *Server) project(t Thread, userID string) models.Conversation {
	peer := s.users[t.other(userID)]
	conv := models.Conversation{ID: t.ID, Participant: peer.Participant}
	msgs := s.messages[t.ID]
	if len(msgs) > 0 {
		conv.LastMessage = msgs[len(msgs)-1].Preview()
	}
	for _, m := range msgs {
		if m.ReceiverID == userID && m.Status != models.StatusRead {
			conv.UnreadCount++
		}
	}
	return conv
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
