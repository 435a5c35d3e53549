package collab

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultRateLimit = 60
	defaultRateBurst = 120
)

type Room struct {
	projectID string
	clients   map[string]*Client // clientID -> client
	presence  *PresenceManager
}

func NewRoom(projectID string) *Room {
	return &Room{
		projectID: projectID,
		clients:   make(map[string]*Client),
		presence:  NewPresenceManager(),
	}
}

type HubOptions struct {
	Logger *zap.Logger
	// RateLimit is the number of inbound messages per second each client may
	// send, with bursts up to RateBurst.
	RateLimit float64
	RateBurst int
}

type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]*Room    // projectID -> room
	sessions map[string]*Session // projectID -> session
	load     Loader

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	limit rate.Limit
	burst int
	log   *zap.Logger
}

func NewHub(load Loader, opts HubOptions) *Hub {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = defaultRateBurst
	}
	return &Hub{
		rooms:      make(map[string]*Room),
		sessions:   make(map[string]*Session),
		load:       load,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		limit:      rate.Limit(opts.RateLimit),
		burst:      opts.RateBurst,
		log:        opts.Logger.Named("collab"),
	}
}

// Run serves registrations until ctx is cancelled, then closes every session.
func (h *Hub) Run(ctx context.Context) error {
	defer h.stop()
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			return nil
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		defer h.mu.Unlock()
		for id, s := range h.sessions {
			s.Close()
			delete(h.sessions, id)
		}
	})
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Session returns the open session of projectID, loading it on first use.
func (h *Hub) Session(projectID string) (*Session, error) {
	h.mu.RLock()
	s, ok := h.sessions[projectID]
	h.mu.RUnlock()
	if ok {
		return s, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[projectID]; ok {
		return s, nil
	}
	s, err := h.load(projectID)
	if err != nil {
		return nil, err
	}
	h.sessions[projectID] = s
	h.log.Info("session opened", zap.String("project", projectID))
	return s, nil
}

func (h *Hub) addClient(client *Client) {
	session, err := h.Session(client.ProjectID)
	if err != nil {
		h.log.Warn("session unavailable", zap.String("project", client.ProjectID), zap.Error(err))
		client.Send(errorMessage(err.Error()))
		client.closeSend()
		return
	}

	h.mu.Lock()
	room, ok := h.rooms[client.ProjectID]
	if !ok {
		room = NewRoom(client.ProjectID)
		h.rooms[client.ProjectID] = room
	}
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	welcome, _ := json.Marshal(WelcomePayload{
		ClientID:  client.ClientID,
		ServerSeq: session.Seq(),
		Patch:     session.Patch(),
		History:   session.History(),
	})
	client.Send(&Message{Type: TypeWelcome, ProjectID: client.ProjectID, Payload: welcome})

	// Send current presence state to new client
	if stateMsg := room.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	// Broadcast join to other clients
	joinPayload, _ := json.Marshal(PresenceJoinPayload{
		UserID:      client.UserID,
		ClientID:    client.ClientID,
		DisplayName: client.DisplayName,
	})
	h.broadcastToRoom(client.ProjectID, &Message{
		Type:    TypePresenceJoin,
		UserID:  client.UserID,
		Payload: joinPayload,
	}, client.ClientID)

	h.log.Info("client joined", zap.String("user", client.UserID), zap.String("project", client.ProjectID))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.ProjectID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := room.clients[client.ClientID]; !ok {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	client.closeSend()
	room.presence.Remove(client.ClientID)

	if len(room.clients) == 0 {
		delete(h.rooms, client.ProjectID)
	}
	h.mu.Unlock()

	leavePayload, _ := json.Marshal(PresenceLeavePayload{UserID: client.UserID, ClientID: client.ClientID})
	h.broadcastToRoom(client.ProjectID, &Message{
		Type:    TypePresenceLeave,
		UserID:  client.UserID,
		Payload: leavePayload,
	}, "")

	h.log.Info("client left", zap.String("user", client.UserID), zap.String("project", client.ProjectID))
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	if !sender.limiter.Allow() {
		h.log.Debug("rate limited", zap.String("user", sender.UserID), zap.String("type", msg.Type))
		sender.Send(nackMessage("", "rate limited"))
		return
	}

	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(sender, msg)
	case TypeEditorCommand:
		h.handleCommand(sender, msg)
	default:
		h.log.Warn("unknown message type", zap.String("type", msg.Type), zap.String("user", sender.UserID))
		sender.Send(errorMessage("unknown message type " + msg.Type))
	}
}

func (h *Hub) handleCommand(sender *Client, msg *Message) {
	var payload CommandPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.log.Warn("invalid command payload", zap.Error(err))
		sender.Send(nackMessage("", "invalid payload"))
		return
	}

	h.mu.RLock()
	session, ok := h.sessions[sender.ProjectID]
	h.mu.RUnlock()
	if !ok {
		sender.Send(nackMessage(payload.ID, "no session"))
		return
	}

	res, seq, err := session.Apply(payload.Command)
	if err != nil {
		h.log.Debug("command rejected",
			zap.String("type", payload.Command.Type),
			zap.String("user", sender.UserID),
			zap.Error(err))
		sender.Send(nackMessage(payload.ID, err.Error()))
		return
	}

	ack, _ := json.Marshal(CommandAckPayload{CommandID: payload.ID, ServerSeq: seq, Result: res})
	sender.Send(&Message{Type: TypeOpAck, Seq: msg.Seq, Payload: ack})

	if res.Changed {
		h.broadcastPatch(session, sender.UserID, seq)
		h.prunePresence(session)
	}
}

// prunePresence drops deleted or hidden layers from every client selection
// and resends the room state when one changed.
func (h *Hub) prunePresence(session *Session) {
	h.mu.RLock()
	room, ok := h.rooms[session.ProjectID()]
	h.mu.RUnlock()
	if !ok || !room.presence.Prune(session.LiveIDs) {
		return
	}
	if msg := room.presence.StateMessage(); msg != nil {
		h.broadcastToRoom(session.ProjectID(), msg, "")
	}
}

func (h *Hub) broadcastPatch(session *Session, userID string, seq int64) {
	ed := session.Editor()
	payload, err := json.Marshal(PatchUpdatePayload{
		ServerSeq: seq,
		UserID:    userID,
		Patch:     session.Patch(),
		History:   session.History(),
		CanUndo:   ed.CanUndo(),
		CanRedo:   ed.CanRedo(),
	})
	if err != nil {
		h.log.Error("marshal patch update", zap.Error(err))
		return
	}
	h.broadcastToRoom(session.ProjectID(), &Message{
		Type:      TypePatchUpdate,
		ProjectID: session.ProjectID(),
		Seq:       seq,
		Payload:   payload,
	}, "")
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		h.log.Warn("invalid presence payload", zap.Error(err))
		return
	}

	presence.UserID = sender.UserID
	presence.DisplayName = sender.DisplayName

	h.mu.RLock()
	room, ok := h.rooms[sender.ProjectID]
	session := h.sessions[sender.ProjectID]
	h.mu.RUnlock()
	if !ok || session == nil {
		return
	}

	stored := room.presence.Update(sender.ClientID, presence, session.LiveIDs)

	outPayload, _ := json.Marshal(stored)
	h.broadcastToRoom(sender.ProjectID, &Message{
		Type:     TypePresenceUpdate,
		UserID:   sender.UserID,
		ClientID: sender.ClientID,
		Payload:  outPayload,
	}, sender.ClientID)
}

func (h *Hub) broadcastToRoom(projectID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[projectID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

func nackMessage(commandID, reason string) *Message {
	payload, _ := json.Marshal(CommandNackPayload{CommandID: commandID, Reason: reason})
	return &Message{Type: TypeOpNack, Payload: payload}
}

func errorMessage(reason string) *Message {
	payload, _ := json.Marshal(map[string]string{"error": reason})
	return &Message{Type: TypeError, Payload: payload}
}
