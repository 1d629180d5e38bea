/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package room holds the race entities: players, rooms and their settings.
// A Room is not synchronized; its owner serializes access.
package room

import (
	"errors"
	"slices"
	"sort"
	"time"

	"github.com/zyedidia/generic/mapset"

	"github.com/Seednode/mazerace/internal/maze"
)

// Status is the lifecycle state of a room.
type Status string

const (
	Waiting    Status = "waiting"
	InProgress Status = "in-progress"
	Finished   Status = "finished"
)

var (
	ErrRoomFull        = errors.New("room is full")
	ErrRoundStarted    = errors.New("game has already started")
	ErrNotWaiting      = errors.New("game already started or finished")
	ErrNoPlayers       = errors.New("no players in room")
	ErrDuplicatePlayer = errors.New("player already in room")
)

type Room struct {
	Code         string
	HostID       string
	Settings     Settings
	Status       Status
	Maze         *maze.Maze
	StartedAt    time.Time
	EndedAt      time.Time
	CreatedAt    time.Time
	LastActivity time.Time
	WinnerID     string
	WinningTeam  Team

	players         map[string]Player
	teamCheckpoints map[Team]mapset.Set[int]
}

// New creates a waiting room with host as its only, always-ready member.
func New(code string, host Player, settings Settings, now time.Time) *Room {
	r := &Room{
		Code:            code,
		HostID:          host.ID,
		Settings:        settings,
		Status:          Waiting,
		CreatedAt:       now,
		LastActivity:    now,
		players:         map[string]Player{host.ID: host.WithReady(true)},
		teamCheckpoints: newTeamCheckpoints(),
	}

	return r
}

func newTeamCheckpoints() map[Team]mapset.Set[int] {
	return map[Team]mapset.Set[int]{
		TeamA: mapset.New[int](),
		TeamB: mapset.New[int](),
	}
}

func (r *Room) Touch(now time.Time) {
	r.LastActivity = now
}

// IdleFor returns the time since the last recorded activity.
func (r *Room) IdleFor(now time.Time) time.Duration {
	return now.Sub(r.LastActivity)
}

// Evictable reports whether the room may be swept: finished and idle, or
// waiting with nobody in it and idle.
func (r *Room) Evictable(now time.Time, timeout time.Duration) bool {
	if r.IdleFor(now) <= timeout {
		return false
	}

	switch r.Status {
	case Finished:
		return true
	case Waiting:
		return len(r.players) == 0
	}

	return false
}

func (r *Room) Len() int {
	return len(r.players)
}

func (r *Room) IsFull() bool {
	return len(r.players) >= r.Settings.MaxPlayers
}

// AddPlayer admits p while the room is waiting and has space.
func (r *Room) AddPlayer(p Player, now time.Time) error {
	switch {
	case r.Status != Waiting:
		return ErrRoundStarted
	case r.IsFull():
		return ErrRoomFull
	}
	if _, exists := r.players[p.ID]; exists {
		return ErrDuplicatePlayer
	}

	r.players[p.ID] = p
	r.Touch(now)

	return nil
}

// RemovePlayer drops id. If it was the host and others remain, the
// earliest-joined remaining player becomes host and is marked ready.
func (r *Room) RemovePlayer(id string, now time.Time) (Player, bool) {
	p, ok := r.players[id]
	if !ok {
		return Player{}, false
	}

	delete(r.players, id)
	r.Touch(now)

	if id == r.HostID && len(r.players) > 0 {
		next := r.Players()[0]
		r.HostID = next.ID
		r.players[next.ID] = next.WithReady(true)
	}

	return p, true
}

func (r *Room) Player(id string) (Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

// SetPlayer stores an updated record for an existing member.
func (r *Room) SetPlayer(p Player) {
	if _, ok := r.players[p.ID]; ok {
		r.players[p.ID] = p
	}
}

// Players returns members ordered by join time, then id.
func (r *Room) Players() []Player {
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})

	return out
}

func (r *Room) IDs() []string {
	ids := make([]string, 0, len(r.players))
	for _, p := range r.Players() {
		ids = append(ids, p.ID)
	}
	return ids
}

func (r *Room) IsHost(id string) bool {
	return id == r.HostID
}

// AllReady is false for an empty room.
func (r *Room) AllReady() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

func (r *Room) AllFinished() bool {
	for _, p := range r.players {
		if !p.Finished {
			return false
		}
	}
	return true
}

func (r *Room) AllHaveTeam() bool {
	for _, p := range r.players {
		if p.Team == NoTeam {
			return false
		}
	}
	return true
}

func (r *Room) TeamSize(t Team) int {
	n := 0
	for _, p := range r.players {
		if p.Team == t {
			n++
		}
	}
	return n
}

// TeamFinished reports whether t has members and all of them have finished.
func (r *Room) TeamFinished(t Team) bool {
	members := 0
	for _, p := range r.players {
		if p.Team != t {
			continue
		}
		if !p.Finished {
			return false
		}
		members++
	}
	return members > 0
}

// CheckpointsActive reports whether checkpoint rules apply to the current round.
func (r *Room) CheckpointsActive() bool {
	return (r.Settings.EnableCheckpoints || r.Settings.TeamMode) &&
		r.Maze != nil && len(r.Maze.Checkpoints) > 0
}

// ReachTeamCheckpoint records order for t and reports whether it was new.
func (r *Room) ReachTeamCheckpoint(t Team, order int) bool {
	set, ok := r.teamCheckpoints[t]
	if !ok || set.Has(order) {
		return false
	}
	set.Put(order)
	return true
}

func (r *Room) TeamHasCheckpoint(t Team, order int) bool {
	set, ok := r.teamCheckpoints[t]
	return ok && set.Has(order)
}

// TeamCheckpoints returns the orders t has reached, ascending.
func (r *Room) TeamCheckpoints(t Team) []int {
	set, ok := r.teamCheckpoints[t]
	if !ok {
		return []int{}
	}
	out := make([]int, 0, set.Size())
	set.Each(func(order int) {
		out = append(out, order)
	})
	slices.Sort(out)
	return out
}

// Start moves a waiting room into play on m.
func (r *Room) Start(m *maze.Maze, now time.Time) error {
	if r.Status != Waiting {
		return ErrNotWaiting
	}
	if len(r.players) == 0 {
		return ErrNoPlayers
	}

	r.Status = InProgress
	r.Maze = m
	r.StartedAt = now
	r.EndedAt = time.Time{}
	r.WinnerID = ""
	r.WinningTeam = NoTeam
	r.teamCheckpoints = newTeamCheckpoints()
	r.Touch(now)

	return nil
}

// End finishes the round. Ending twice keeps the first end time.
func (r *Room) End(now time.Time) {
	if r.Status == Finished {
		return
	}
	r.Status = Finished
	r.EndedAt = now
	r.Touch(now)
}

// ResetToLobby returns a room to waiting. Round fields of every player are
// cleared; only the host stays ready.
func (r *Room) ResetToLobby(now time.Time) {
	r.Status = Waiting
	r.Maze = nil
	r.StartedAt = time.Time{}
	r.EndedAt = time.Time{}
	r.WinnerID = ""
	r.WinningTeam = NoTeam
	r.teamCheckpoints = newTeamCheckpoints()

	for id, p := range r.players {
		r.players[id] = p.ResetRound(id == r.HostID)
	}

	r.Touch(now)
}

// Elapsed is whole seconds since the round started, frozen at the end time.
func (r *Room) Elapsed(now time.Time) int {
	if r.StartedAt.IsZero() {
		return 0
	}
	end := now
	if !r.EndedAt.IsZero() {
		end = r.EndedAt
	}
	return int(end.Sub(r.StartedAt) / time.Second)
}

func (r *Room) Remaining(now time.Time) int {
	return max(0, r.Settings.TimerDuration-r.Elapsed(now))
}

// View is the full room state sent to members.
type View struct {
	Code            string         `json:"roomCode"`
	HostID          string         `json:"hostId"`
	PlayerCount     int            `json:"playerCount"`
	Players         []Player       `json:"players"`
	Settings        Settings       `json:"settings"`
	Status          Status         `json:"status"`
	Maze            *maze.Maze     `json:"maze"`
	StartedAt       *time.Time     `json:"startTime"`
	EndedAt         *time.Time     `json:"endTime"`
	Elapsed         int            `json:"elapsedTime"`
	Remaining       int            `json:"remainingTime"`
	WinnerID        string         `json:"winner,omitempty"`
	WinningTeam     Team           `json:"winningTeam,omitempty"`
	TeamCheckpoints map[Team][]int `json:"teamCheckpoints,omitempty"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Snapshot copies the room state. The maze is shared; it is never modified
// after generation.
func (r *Room) Snapshot(now time.Time) View {
	v := View{
		Code:        r.Code,
		HostID:      r.HostID,
		PlayerCount: len(r.players),
		Players:     r.Players(),
		Settings:    r.Settings,
		Status:      r.Status,
		Maze:        r.Maze,
		StartedAt:   timePtr(r.StartedAt),
		EndedAt:     timePtr(r.EndedAt),
		Elapsed:     r.Elapsed(now),
		Remaining:   r.Remaining(now),
		WinnerID:    r.WinnerID,
		WinningTeam: r.WinningTeam,
	}

	if r.Settings.TeamMode {
		v.TeamCheckpoints = map[Team][]int{
			TeamA: r.TeamCheckpoints(TeamA),
			TeamB: r.TeamCheckpoints(TeamB),
		}
	}

	return v
}

// Summary is the lobby listing form of a room.
type Summary struct {
	Code          string          `json:"roomCode"`
	PlayerCount   int             `json:"playerCount"`
	MaxPlayers    int             `json:"maxPlayers"`
	Difficulty    maze.Difficulty `json:"difficulty"`
	TimerDuration int             `json:"timerDuration"`
	TeamMode      bool            `json:"teamMode"`
	TunnelMode    bool            `json:"tunnelMode"`
	Status        Status          `json:"status"`
}

func (r *Room) Summary() Summary {
	return Summary{
		Code:          r.Code,
		PlayerCount:   len(r.players),
		MaxPlayers:    r.Settings.MaxPlayers,
		Difficulty:    r.Settings.Difficulty,
		TimerDuration: r.Settings.TimerDuration,
		TeamMode:      r.Settings.TeamMode,
		TunnelMode:    r.Settings.TunnelMode,
		Status:        r.Status,
	}
}
