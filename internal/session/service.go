/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session runs races. Each room is owned by a Hub that serializes
// player actions, clock ticks and power-up expiries onto a single goroutine
// and applies them through an Engine. Service is the entry point used by
// transports.
package session

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Seednode/mazerace/internal/maze"
	"github.com/Seednode/mazerace/internal/registry"
	"github.com/Seednode/mazerace/internal/room"
)

var ErrRoomNotFound = errors.New("room not found")

// Config holds server-wide session settings.
type Config struct {
	Limits       room.Limits
	Rules        Rules
	TickInterval time.Duration
	Mazes        MazeSource
	Now          func() time.Time
	Logf         func(format string, args ...any)
}

type Service struct {
	rooms *registry.Registry[*Hub]
	out   Broadcaster
	cfg   Config
}

func NewService(rooms *registry.Registry[*Hub], out Broadcaster, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logf == nil {
		cfg.Logf = func(string, ...any) {}
	}
	if cfg.Limits == (room.Limits{}) {
		cfg.Limits = room.DefaultLimits()
	}
	if cfg.Rules.LightningCharges == 0 && cfg.Rules.LightningDuration == 0 && cfg.Rules.Warnings == nil {
		cfg.Rules = DefaultRules()
	}
	if cfg.Mazes == nil {
		cfg.Mazes = maze.NewGenerator(rand.NewSource(time.Now().UnixNano()))
	}

	return &Service{
		rooms: rooms,
		out:   out,
		cfg:   cfg,
	}
}

// Joined is the acknowledgement for create and join requests.
type Joined struct {
	RoomCode string    `json:"roomCode"`
	PlayerID string    `json:"playerId"`
	Room     room.View `json:"room"`
}

// Stats summarizes every live room.
type Stats struct {
	TotalRooms   int `json:"totalRooms"`
	ActiveGames  int `json:"activeGames"`
	WaitingRooms int `json:"waitingRooms"`
	TotalPlayers int `json:"totalPlayers"`
}

// Validation answers whether a room code can be joined right now.
type Validation struct {
	Valid   bool          `json:"valid"`
	Message string        `json:"message,omitempty"`
	Room    *room.Summary `json:"room,omitempty"`
}

func (s *Service) hubConfig() HubConfig {
	return HubConfig{
		Rules:        s.cfg.Rules,
		Mazes:        s.cfg.Mazes,
		Out:          s.out,
		TickInterval: s.cfg.TickInterval,
		Now:          s.cfg.Now,
		Logf:         s.cfg.Logf,
	}
}

// CreateRoom opens a room with the requester as host. An empty playerID is
// replaced with a fresh one. A player already in another room is moved out
// of it once the new room exists.
func (s *Service) CreateRoom(playerID, name string, settings room.Settings) (Joined, error) {
	name, err := room.ValidateName(name)
	if err != nil {
		return Joined{}, err
	}
	settings, err = s.cfg.Limits.Normalize(settings)
	if err != nil {
		return Joined{}, err
	}

	if playerID == "" {
		playerID = uuid.NewString()
	}

	now := s.cfg.Now()
	hub, err := s.rooms.Create(func(code string) (*Hub, error) {
		r := room.New(code, room.NewPlayer(playerID, name, now), settings, now)
		return NewHub(r, s.hubConfig()), nil
	})
	if err != nil {
		return Joined{}, err
	}
	s.leaveCurrent(playerID)
	s.rooms.Bind(playerID, hub.Code())

	s.cfg.Logf("Room %s created by %s", hub.Code(), name)

	var joined Joined
	err = hub.do(func(e *Engine) error {
		view := e.Room().Snapshot(s.cfg.Now())
		joined = Joined{RoomCode: hub.Code(), PlayerID: playerID, Room: view}
		s.out.Send([]string{playerID}, Message{Type: TypeRoomUpdated, Data: view})
		return nil
	})

	return joined, err
}

// JoinRoom adds the requester to a waiting room.
func (s *Service) JoinRoom(playerID, code, name string) (Joined, error) {
	code, err := registry.NormalizeCode(code)
	if err != nil {
		return Joined{}, err
	}
	name, err = room.ValidateName(name)
	if err != nil {
		return Joined{}, err
	}

	hub, ok := s.rooms.Get(code)
	if !ok {
		return Joined{}, ErrRoomNotFound
	}

	if playerID == "" {
		playerID = uuid.NewString()
	}
	if _, current, ok := s.rooms.Lookup(playerID); ok && current == code {
		return Joined{}, room.ErrDuplicatePlayer
	}

	var joined Joined
	err = hub.do(func(e *Engine) error {
		if err := e.Join(room.NewPlayer(playerID, name, s.cfg.Now())); err != nil {
			return err
		}
		joined = Joined{RoomCode: code, PlayerID: playerID, Room: e.Room().Snapshot(s.cfg.Now())}
		return nil
	})
	if err != nil {
		return Joined{}, err
	}

	s.leaveCurrent(playerID)
	s.rooms.Bind(playerID, code)

	return joined, nil
}

// leaveCurrent removes playerID from the room it was bound to before
// joining another one.
func (s *Service) leaveCurrent(playerID string) {
	if _, _, ok := s.rooms.Lookup(playerID); ok {
		_ = s.LeaveRoom(playerID)
	}
}

// closeRoom drops a room from the registry and stops its hub.
func (s *Service) closeRoom(hub *Hub) {
	s.rooms.Delete(hub.Code())
	hub.Close()

	s.cfg.Logf("Room %s closed", hub.Code())
}

// LeaveRoom removes the requester from its room.
func (s *Service) LeaveRoom(playerID string) error {
	hub, code, ok := s.rooms.Lookup(playerID)
	if !ok {
		return ErrNotInRoom
	}

	var closed bool
	err := hub.do(func(e *Engine) (err error) {
		closed, err = e.Leave(playerID)
		return err
	})

	s.rooms.Unbind(playerID, code)

	if closed {
		s.closeRoom(hub)
	}

	return err
}

// Disconnect handles a dropped connection. Outside a round it is a leave.
func (s *Service) Disconnect(playerID string) error {
	hub, code, ok := s.rooms.Lookup(playerID)
	if !ok {
		return nil
	}

	var (
		closed  bool
		removed bool
	)
	err := hub.do(func(e *Engine) (err error) {
		removed = e.Room().Status == room.Waiting
		closed, err = e.Disconnect(playerID)
		return err
	})

	if removed {
		s.rooms.Unbind(playerID, code)
	}
	if closed {
		s.closeRoom(hub)
	}

	return err
}

// Reconnect restores a returning player's connected flag. ErrNotInRoom means
// there is nothing to resume.
func (s *Service) Reconnect(playerID string) error {
	return s.route(playerID, func(e *Engine) error {
		return e.Reconnect(playerID)
	})
}

// route runs fn against the requester's room.
func (s *Service) route(playerID string, fn func(e *Engine) error) error {
	hub, _, ok := s.rooms.Lookup(playerID)
	if !ok {
		return ErrNotInRoom
	}
	return hub.do(fn)
}

func (s *Service) SetReady(playerID string, ready bool) error {
	return s.route(playerID, func(e *Engine) error {
		return e.SetReady(playerID, ready)
	})
}

func (s *Service) SelectTeam(playerID, team string) error {
	return s.route(playerID, func(e *Engine) error {
		return e.SelectTeam(playerID, team)
	})
}

func (s *Service) StartRound(playerID string) error {
	return s.route(playerID, func(e *Engine) error {
		return e.Start(playerID)
	})
}

func (s *Service) RestartRound(playerID string) error {
	return s.route(playerID, func(e *Engine) error {
		return e.Restart(playerID)
	})
}

// Move validates the direction before touching the room.
func (s *Service) Move(playerID, direction string) error {
	if _, err := ParseDirection(direction); err != nil {
		return err
	}
	return s.route(playerID, func(e *Engine) error {
		return e.Move(playerID, direction)
	})
}

func (s *Service) UsePowerUp(playerID string) error {
	return s.route(playerID, func(e *Engine) error {
		return e.UseLightning(playerID)
	})
}

// Room returns the current view of the requester's room.
func (s *Service) Room(playerID string) (room.View, error) {
	var view room.View
	err := s.route(playerID, func(e *Engine) error {
		view = e.Room().Snapshot(s.cfg.Now())
		return nil
	})
	return view, err
}

func (s *Service) Stats() Stats {
	var st Stats
	s.rooms.Each(func(_ string, hub *Hub) {
		sum := hub.Summary()

		st.TotalRooms++
		st.TotalPlayers += sum.PlayerCount
		switch sum.Status {
		case room.InProgress:
			st.ActiveGames++
		case room.Waiting:
			st.WaitingRooms++
		}
	})
	return st
}

// WaitingRooms lists joinable-looking rooms ordered by code.
func (s *Service) WaitingRooms() []room.Summary {
	out := []room.Summary{}
	s.rooms.Each(func(_ string, hub *Hub) {
		if sum := hub.Summary(); sum.Status == room.Waiting {
			out = append(out, sum)
		}
	})

	sort.Slice(out, func(i, j int) bool {
		return out[i].Code < out[j].Code
	})

	return out
}

// Lobby returns the lobby summary of one room.
func (s *Service) Lobby(code string) (room.Summary, error) {
	code, err := registry.NormalizeCode(code)
	if err != nil {
		return room.Summary{}, err
	}

	hub, ok := s.rooms.Get(code)
	if !ok {
		return room.Summary{}, ErrRoomNotFound
	}

	return hub.Summary(), nil
}

// Validate reports whether code names a room that can be joined now.
func (s *Service) Validate(code string) (Validation, error) {
	sum, err := s.Lobby(code)
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return Validation{Message: "Room not found"}, nil
	case err != nil:
		return Validation{}, err
	case sum.Status != room.Waiting:
		return Validation{Message: "Game has already started"}, nil
	case sum.PlayerCount >= sum.MaxPlayers:
		return Validation{Message: "Room is full"}, nil
	}

	return Validation{Valid: true, Room: &sum}, nil
}

// Run sweeps idle rooms until ctx is done.
func (s *Service) Run(ctx context.Context) {
	s.rooms.Run(ctx)
}

// Shutdown closes every room.
func (s *Service) Shutdown() {
	s.rooms.CloseAll()
}
