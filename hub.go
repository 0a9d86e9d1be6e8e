// Linkring room hub
//
// One websocket hub serves the single live room. Participants join from
// their phones, fill in a ten-tag profile, and get repeatedly matched into
// pairs (or one triple on odd pools) for timed conversations; each group
// records the commonalities it discovers and everyone's score grows on the
// facilitator's dashboard.
//
// Features:
// - Single endpoint /ws shared by participants and the facilitator
// - Clients identified by cookie (clientID); reconnects resume the seat
// - Participants can also connect by hand, picking one or two free partners
// - Facilitator authenticates with a shared secret, then drives the room:
//   create, start (optional timer), complete, remove participant, reset
// - Every committed engine transaction broadcasts a fresh room snapshot
// - Disconnects flag the participant offline after a grace period rather
//   than deleting them; removal is facilitator-only
// - Freed participants are re-matched after a short coalescing delay
// - Timer expiry is polled and forces completion idempotently
// - In-browser QR button to share the join URL, backed by go-qrcode

package main

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/hansolcho/linkring/internal/engine"
)

type Client struct {
	conn     *websocket.Conn
	send     chan any
	clientID string
}

type clientRequest struct {
	client *Client
	msg    ClientMessage
}

// outbound is a send queued from outside the run goroutine. An empty
// participantID broadcasts to every connected client.
type outbound struct {
	participantID string
	msg           any
}

// Hub routes everything through one run goroutine. Only that goroutine
// sends on or closes client channels; goroutines outside the loop (the
// change watcher, rematch timers) queue through h.outbound instead, so a
// disconnect can never race a broadcast into a closed channel.
type Hub struct {
	cfg    *Config
	engine *engine.Engine

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	joins    chan clientRequest
	profiles chan clientRequest
	submits  chan clientRequest
	connects chan clientRequest
	admin    chan clientRequest
	outbound chan outbound

	mu sync.RWMutex

	// participants maps a cookie identity to its seat in the room.
	participants map[string]string
	// facilitators holds cookie identities that have presented the
	// shared secret, so a facilitator reconnect keeps its rights.
	facilitators map[string]bool

	rematchPending bool
}

func newHub(cfg *Config, eng *engine.Engine) *Hub {
	return &Hub{
		cfg:          cfg,
		engine:       eng,
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unreg:        make(chan *Client),
		joins:        make(chan clientRequest),
		profiles:     make(chan clientRequest),
		submits:      make(chan clientRequest),
		connects:     make(chan clientRequest),
		admin:        make(chan clientRequest),
		outbound:     make(chan outbound, 16),
		participants: make(map[string]string),
		facilitators: make(map[string]bool),
	}
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unreg:
			h.handleUnregister(c)

		case req := <-h.joins:
			h.handleJoin(req)

		case req := <-h.profiles:
			h.handleProfile(req)

		case req := <-h.submits:
			h.handleSubmit(req)

		case req := <-h.connects:
			h.handleConnect(req)

		case req := <-h.admin:
			h.handleAdmin(req)

		case o := <-h.outbound:
			h.handleOutbound(o)
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	participantID := h.participants[c.clientID]
	facilitator := h.facilitators[c.clientID]
	h.mu.Unlock()

	room := h.engine.Snapshot()

	// A stale seat (participant removed, or room reset) reads as no seat.
	if participantID != "" {
		if room == nil || room.Participants[participantID] == nil {
			h.mu.Lock()
			delete(h.participants, c.clientID)
			h.mu.Unlock()
			participantID = ""
		}
	}

	if participantID != "" {
		if err := h.engine.SetOnline(participantID, true); err == nil {
			logf(h.cfg, "WS: Participant %s back online", participantID)
		}
	}

	info := SessionInfoMessage{
		Type:          "session_info",
		ParticipantID: participantID,
		Facilitator:   facilitator,
		RoomOpen:      room != nil,
	}
	if room != nil {
		info.RoomName = room.Name
	}
	h.trySend(c, info)
	h.trySend(c, RoomStateMessage{
		Type:    "room_state",
		Version: h.engine.Version(),
		Room:    buildRoomView(room),
	})
}

func (h *Hub) handleUnregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	participantID := h.participants[c.clientID]
	h.mu.Unlock()

	if participantID != "" {
		go h.scheduleOffline(c.clientID, participantID, h.cfg.offlineGrace)
	}
}

// scheduleOffline waits for the grace period, and if no client with this
// cookie has reconnected, flags the participant offline so the partitioner
// skips them. They keep their seat, score, and history.
func (h *Hub) scheduleOffline(clientID, participantID string, d time.Duration) {
	time.Sleep(d)

	h.mu.RLock()
	for c := range h.clients {
		if c.clientID == clientID {
			h.mu.RUnlock()
			return
		}
	}
	h.mu.RUnlock()

	if err := h.engine.SetOnline(participantID, false); err == nil {
		logf(h.cfg, "WS: Participant %s flagged offline", participantID)
	}
}

func (h *Hub) handleJoin(req clientRequest) {
	c := req.client
	msg := req.msg

	h.mu.RLock()
	existing := h.participants[c.clientID]
	h.mu.RUnlock()

	if existing != "" {
		if room := h.engine.Snapshot(); room != nil && room.Participants[existing] != nil {
			h.sendError(c, "already_joined", "This device already has a seat in the room.")
			return
		}
	}

	p, err := h.engine.Join(msg.RoomName, msg.Name, msg.Affiliation)
	if err != nil {
		h.sendError(c, errorCode(err), joinErrorText(err))
		return
	}

	h.mu.Lock()
	h.participants[c.clientID] = p.ID
	h.mu.Unlock()

	logf(h.cfg, "ROOM: Participant %q (%s) joined", p.Name, p.Affiliation)

	h.trySend(c, SessionInfoMessage{
		Type:          "session_info",
		ParticipantID: p.ID,
		RoomOpen:      true,
		RoomName:      msg.RoomName,
	})
}

func joinErrorText(err error) string {
	switch errorCode(err) {
	case "no_room":
		return "No room is open yet. Ask the facilitator to open one."
	case "room_mismatch":
		return "That room name does not match the open room."
	case "room_closed":
		return "The event has ended; the room is closed."
	default:
		return "Name, affiliation and room name are all required."
	}
}

func (h *Hub) handleProfile(req clientRequest) {
	c := req.client

	participantID := h.seatFor(c)
	if participantID == "" {
		h.sendError(c, "no_seat", "Join the room before submitting a profile.")
		return
	}

	if err := h.engine.SubmitProfile(participantID, req.msg.Tags); err != nil {
		h.sendError(c, errorCode(err), "All ten tags must be filled in.")
		return
	}

	// A freshly-ready participant mid-event should be picked up on the
	// next pass without waiting for someone else's match to clear.
	if room := h.engine.Snapshot(); room != nil && room.Status == engine.StatusRunning {
		h.scheduleRematch()
	}
}

func (h *Hub) handleSubmit(req clientRequest) {
	c := req.client

	participantID := h.seatFor(c)
	if participantID == "" {
		h.sendError(c, "no_seat", "Join the room before submitting traits.")
		return
	}

	finalized, err := h.engine.SubmitTraits(participantID, req.msg.Traits)
	if err != nil {
		h.sendError(c, errorCode(err), submitErrorText(err))
		return
	}

	if finalized {
		logf(h.cfg, "MATCH: Connection completed by %s", participantID)
		h.notifyGroupCleared(participantID)
		h.scheduleRematch()
	}
}

func submitErrorText(err error) string {
	switch errorCode(err) {
	case "not_matched":
		return "You are not currently in a conversation."
	default:
		return "All three commonalities must be filled in."
	}
}

// handleConnect starts a hand-picked group outside the automatic
// partitioner: the initiator chose one or two free partners.
func (h *Hub) handleConnect(req clientRequest) {
	c := req.client

	participantID := h.seatFor(c)
	if participantID == "" {
		h.sendError(c, "no_seat", "Join the room before connecting with someone.")
		return
	}

	group, err := h.engine.Connect(participantID, req.msg.TargetIDs)
	if err != nil {
		h.sendError(c, errorCode(err), connectErrorText(err))
		return
	}

	logf(h.cfg, "MATCH: Manual group of %d formed by %s", len(group), participantID)
	h.notifyMatched([][]string{group})
}

func connectErrorText(err error) string {
	switch errorCode(err) {
	case "already_matched":
		return "Someone in that group is already in a conversation."
	case "bad_status":
		return "The event is not running."
	case "not_found":
		return "No such participant."
	default:
		return "Pick one or two other people."
	}
}

func (h *Hub) handleAdmin(req clientRequest) {
	c := req.client
	msg := req.msg

	if msg.Type == "auth" {
		if msg.Password != h.cfg.adminPassword {
			h.sendError(c, "bad_password", "Incorrect password.")
			return
		}
		h.mu.Lock()
		h.facilitators[c.clientID] = true
		h.mu.Unlock()

		room := h.engine.Snapshot()
		info := SessionInfoMessage{
			Type:        "session_info",
			Facilitator: true,
			RoomOpen:    room != nil,
		}
		if room != nil {
			info.RoomName = room.Name
		}
		h.trySend(c, info)
		return
	}

	h.mu.RLock()
	facilitator := h.facilitators[c.clientID]
	h.mu.RUnlock()
	if !facilitator {
		h.sendError(c, "forbidden", "Facilitator authentication required.")
		return
	}

	switch msg.Type {
	case "create_room":
		room, err := h.engine.CreateRoom(msg.RoomName)
		if err != nil {
			h.sendError(c, errorCode(err), "A room name is required.")
			return
		}
		h.clearSeats()
		logf(h.cfg, "ROOM: Created room %q", room.Name)

	case "admin":
		h.handleAdminCommand(c, msg)

	default:
		// ignore unknown types
	}
}

func (h *Hub) handleAdminCommand(c *Client, msg ClientMessage) {
	switch msg.Command {
	case "start":
		minutes := msg.Minutes
		if minutes < 0 || minutes > 60 {
			h.sendError(c, "invalid", "Timer length must be between 0 and 60 minutes.")
			return
		}
		if minutes == 0 {
			minutes = h.cfg.sessionMinutes
		}
		groups, err := h.engine.Start(time.Duration(minutes) * time.Minute)
		if err != nil {
			h.sendError(c, errorCode(err), "The room has already been started.")
			return
		}
		logf(h.cfg, "ROOM: Started (%dm timer), %d group(s) formed", minutes, len(groups))
		h.notifyMatched(groups)

	case "complete":
		if err := h.engine.Complete(); err != nil {
			h.sendError(c, errorCode(err), "The event is not running.")
			return
		}
		logf(h.cfg, "ROOM: Completed")

	case "remove":
		h.removeParticipant(c, msg.TargetID)

	case "reset":
		room, err := h.engine.Reset()
		if err != nil {
			h.sendError(c, errorCode(err), "No room is open.")
			return
		}
		h.clearSeats()
		logf(h.cfg, "ROOM: Reset room %q", room.Name)

	default:
		h.sendError(c, "invalid", "Unknown facilitator command.")
	}
}

func (h *Hub) removeParticipant(c *Client, targetID string) {
	if targetID == "" {
		h.sendError(c, "invalid", "A participant id is required.")
		return
	}

	if err := h.engine.Remove(targetID); err != nil {
		h.sendError(c, errorCode(err), "No such participant.")
		return
	}

	h.mu.Lock()
	var seatCookies []string
	for clientID, participantID := range h.participants {
		if participantID == targetID {
			seatCookies = append(seatCookies, clientID)
			delete(h.participants, clientID)
		}
	}
	var removedClients []*Client
	for client := range h.clients {
		if slices.Contains(seatCookies, client.clientID) {
			removedClients = append(removedClients, client)
		}
	}
	h.mu.Unlock()

	for _, client := range removedClients {
		h.trySend(client, NoticeMessage{
			Type:    "notice",
			Event:   "removed",
			Message: "You have been removed by the facilitator.",
		})
	}

	logf(h.cfg, "ROOM: Removed participant %s", targetID)
	h.scheduleRematch()
}

// clearSeats drops every cookie->participant mapping; used when the room
// is recreated and all prior participants are discarded.
func (h *Hub) clearSeats() {
	h.mu.Lock()
	h.participants = make(map[string]string)
	h.mu.Unlock()
}

func (h *Hub) seatFor(c *Client) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.participants[c.clientID]
}

// scheduleRematch runs one partition pass after a short delay. Clears that
// land close together (both members of a pair finishing, a removal during
// a burst of completions) coalesce into a single pass that sees the whole
// freed pool.
func (h *Hub) scheduleRematch() {
	h.mu.Lock()
	if h.rematchPending {
		h.mu.Unlock()
		return
	}
	h.rematchPending = true
	h.mu.Unlock()

	time.AfterFunc(h.cfg.rematchDelay, func() {
		h.mu.Lock()
		h.rematchPending = false
		h.mu.Unlock()

		groups, err := h.engine.Rematch()
		if err != nil {
			logf(h.cfg, "MATCH: Rematch failed: %v", err)
			return
		}
		if len(groups) > 0 {
			logf(h.cfg, "MATCH: Formed %d group(s)", len(groups))
			// Timer goroutine; the notices must go through the run loop.
			for _, group := range groups {
				for _, participantID := range group {
					h.outbound <- outbound{
						participantID: participantID,
						msg:           NoticeMessage{Type: "notice", Event: "match_found"},
					}
				}
			}
		}
	})
}

// notifyMatched nudges every member of the freshly formed groups. Run
// goroutine only.
func (h *Hub) notifyMatched(groups [][]string) {
	for _, group := range groups {
		for _, participantID := range group {
			h.sendToParticipant(participantID, NoticeMessage{
				Type:  "notice",
				Event: "match_found",
			})
		}
	}
}

// notifyGroupCleared nudges the members of the just-finalized group. By
// the time this runs the match is already cleared, so the group is read
// from the connection record the submitter completed.
func (h *Hub) notifyGroupCleared(submitterID string) {
	room := h.engine.Snapshot()
	if room == nil {
		return
	}
	for _, conn := range room.Connections {
		if !conn.Finalized() || !conn.HasSubmitted(submitterID) {
			continue
		}
		for _, memberID := range conn.MemberIDs {
			h.sendToParticipant(memberID, NoticeMessage{
				Type:  "notice",
				Event: "match_cleared",
			})
		}
	}
}

// sendToParticipant delivers to every client holding the participant's
// seat. Run goroutine only.
func (h *Hub) sendToParticipant(participantID string, msg any) {
	h.mu.RLock()
	var targets []*Client
	for c := range h.clients {
		if h.participants[c.clientID] == participantID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.trySend(c, msg)
	}
}

func (h *Hub) sendError(c *Client, code, message string) {
	h.trySend(c, ErrorMessage{
		Type:    "error",
		Code:    code,
		Message: message,
	})
}

// handleOutbound delivers a queued send from the run loop.
func (h *Hub) handleOutbound(o outbound) {
	if o.participantID != "" {
		h.sendToParticipant(o.participantID, o.msg)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.trySend(c, o.msg)
	}
}

// trySend queues msg for one client, dropping the client if its send
// buffer is full. Run goroutine only: send and close on c.send must never
// race, so every other goroutine queues through h.outbound instead.
func (h *Hub) trySend(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
	}
}

// watchChanges queues a room snapshot broadcast after every committed
// engine transaction.
func (h *Hub) watchChanges() {
	for range h.engine.Changes() {
		h.outbound <- outbound{msg: RoomStateMessage{
			Type:    "room_state",
			Version: h.engine.Version(),
			Room:    buildRoomView(h.engine.Snapshot()),
		}}
	}
}

// deadlineLoop polls the advisory event timer. Any number of pollers may
// observe expiry; the forced completion is idempotent.
func (h *Hub) deadlineLoop() {
	ticker := time.NewTicker(time.Second)
	for range ticker.C {
		if h.engine.CheckDeadline(time.Now()) {
			logf(h.cfg, "ROOM: Timer expired, room completed")
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const clientCookieName = "linkring_id"

func getOrSetClientID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(clientCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

func (h *Hub) serveWS() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		clientID := getOrSetClientID(w, r)
		if clientID == "" {
			http.Error(w, "unable to assign client id", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			clientID: clientID,
		}

		h.register <- client

		go client.writePump()
		client.readPump(h)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "join":
			h.joins <- clientRequest{client: c, msg: msg}
		case "profile":
			h.profiles <- clientRequest{client: c, msg: msg}
		case "submit_traits":
			h.submits <- clientRequest{client: c, msg: msg}
		case "manual_connect":
			h.connects <- clientRequest{client: c, msg: msg}
		case "auth", "create_room", "admin":
			h.admin <- clientRequest{client: c, msg: msg}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
