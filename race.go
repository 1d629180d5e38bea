/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/mazerace/internal/room"
	"github.com/Seednode/mazerace/internal/session"
)

const (
	playerCookieName = "mazerace_id"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ClientMessage is any request a browser sends over the socket. Only the
// fields relevant to Type are read.
type ClientMessage struct {
	Type      string        `json:"type"`
	Name      string        `json:"name,omitempty"`
	Code      string        `json:"code,omitempty"`
	Settings  room.Settings `json:"settings"`
	Ready     bool          `json:"ready,omitempty"`
	Team      string        `json:"team,omitempty"`
	Direction string        `json:"direction,omitempty"`
}

// Ack answers exactly one ClientMessage.
type Ack struct {
	Type     string     `json:"type"`
	Action   string     `json:"action"`
	OK       bool       `json:"ok"`
	Error    string     `json:"error,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	RoomCode string     `json:"roomCode,omitempty"`
	PlayerID string     `json:"playerId,omitempty"`
	Room     *room.View `json:"room,omitempty"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	done     chan struct{}
	once     sync.Once
	playerID string
}

func newClient(conn *websocket.Conn, playerID string) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan any, sendBuffer),
		done:     make(chan struct{}),
		playerID: playerID,
	}
}

// deliver queues v for the write pump. It never blocks; a full buffer drops
// the message.
func (c *Client) deliver(v any) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- v:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// switchboard maps player ids to their live connection and delivers room
// events to them.
type switchboard struct {
	cfg *Config

	mu      sync.RWMutex
	clients map[string]*Client
}

func newSwitchboard(cfg *Config) *switchboard {
	return &switchboard{
		cfg:     cfg,
		clients: make(map[string]*Client),
	}
}

// Send implements session.Broadcaster.
func (s *switchboard) Send(to []string, msg session.Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range to {
		c, ok := s.clients[id]
		if !ok {
			continue
		}
		if !c.deliver(msg) {
			logf(s.cfg, "SERVE: Dropped %s for player %s", msg.Type, id)
		}
	}
}

// attach makes c the connection for its player, replacing and closing any
// older one.
func (s *switchboard) attach(c *Client) {
	s.mu.Lock()
	old, ok := s.clients[c.playerID]
	s.clients[c.playerID] = c
	s.mu.Unlock()

	if ok && old != c {
		old.close()
	}
}

// detach forgets c and reports whether it was still the player's current
// connection.
func (s *switchboard) detach(c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.close()

	if s.clients[c.playerID] != c {
		return false
	}
	delete(s.clients, c.playerID)

	return true
}

func (s *switchboard) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.clients {
		c.close()
		delete(s.clients, id)
	}
}

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

func serveRaceSocket(cfg *Config, svc *session.Service, board *switchboard) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		playerID := getOrSetPlayerID(w, r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Websocket upgrade from %s failed: %v", realIP(r), err)
			return
		}

		client := newClient(conn, playerID)
		board.attach(client)

		logf(cfg, "SERVE: Player %s connected from %s", playerID, realIP(r))

		if err := svc.Reconnect(playerID); err != nil && !errors.Is(err, session.ErrNotInRoom) {
			logf(cfg, "ROUND: Reconnect of %s: %v", playerID, err)
		}

		go client.writePump()
		client.readPump(cfg, svc, board)
	}
}

func (c *Client) readPump(cfg *Config, svc *session.Service, board *switchboard) {
	defer func() {
		if board.detach(c) {
			if err := svc.Disconnect(c.playerID); err != nil {
				logf(cfg, "ROUND: Disconnect of %s: %v", c.playerID, err)
			}
		}
		_ = c.conn.Close()

		logf(cfg, "SERVE: Player %s disconnected", c.playerID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		c.deliver(handleFrame(svc, c.playerID, data))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame decodes one raw frame and dispatches it. A frame that does not
// decode is refused without touching any room.
func handleFrame(svc *session.Service, playerID string, data []byte) Ack {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		var peek struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(data, &peek)

		return Ack{Type: "ack", Action: peek.Type, Error: "invalid message"}
	}

	return dispatch(svc, playerID, msg)
}

// dispatch applies one request on behalf of playerID and builds its ack.
func dispatch(svc *session.Service, playerID string, msg ClientMessage) Ack {
	ack := Ack{Type: "ack", Action: msg.Type}

	var err error
	switch msg.Type {
	case "create_room", "join_room":
		var joined session.Joined
		if msg.Type == "create_room" {
			joined, err = svc.CreateRoom(playerID, msg.Name, msg.Settings)
		} else {
			joined, err = svc.JoinRoom(playerID, msg.Code, msg.Name)
		}
		if err == nil {
			ack.RoomCode = joined.RoomCode
			ack.PlayerID = joined.PlayerID
			ack.Room = &joined.Room
		}
	case "leave_room":
		err = svc.LeaveRoom(playerID)
	case "set_ready":
		err = svc.SetReady(playerID, msg.Ready)
	case "select_team":
		err = svc.SelectTeam(playerID, msg.Team)
	case "start_round":
		err = svc.StartRound(playerID)
	case "restart_round":
		err = svc.RestartRound(playerID)
	case "move":
		err = svc.Move(playerID, msg.Direction)
	case "use_power_up":
		err = svc.UsePowerUp(playerID)
	default:
		err = errors.New("unknown message type")
	}

	if err != nil {
		ack.Error = err.Error()

		var rej *session.Rejection
		if errors.As(err, &rej) {
			ack.Reason = rej.Code
		}

		return ack
	}

	ack.OK = true

	return ack
}

func registerRace(cfg *Config, path string, mux *httprouter.Router, svc *session.Service, board *switchboard) {
	mux.GET(path+"/race/ws", serveRaceSocket(cfg, svc, board))
	mux.GET(path+"/qr/:code", serveQR(cfg, svc))
}
