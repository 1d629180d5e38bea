/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/zyedidia/generic/mapset"

	"github.com/Seednode/mazerace/internal/maze"
	"github.com/Seednode/mazerace/internal/pathfind"
	"github.com/Seednode/mazerace/internal/ranking"
	"github.com/Seednode/mazerace/internal/room"
)

var (
	ErrInvalidDirection = errors.New("invalid direction")
	ErrNotInRoom        = errors.New("player is not in a room")
)

// Scheduler runs deferred work for one room. Everything it triggers must
// re-enter the engine through the room's serialized action queue.
type Scheduler interface {
	StartClock()
	StopClock()
	ExpireLightningAfter(playerID string, d time.Duration)
}

// MazeSource builds the maze for a round.
type MazeSource interface {
	Generate(opts maze.Options) (*maze.Maze, error)
}

// Rules are the server-wide round parameters.
type Rules struct {
	LightningCharges  int
	LightningDuration time.Duration
	Warnings          []int
}

func DefaultRules() Rules {
	return Rules{
		LightningCharges:  3,
		LightningDuration: 2 * time.Second,
		Warnings:          []int{60, 30, 10},
	}
}

// Direction is one of the four moves a player can make.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// ParseDirection rejects anything but the four moves.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Up, Down, Left, Right:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

func (d Direction) offset() (int, int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

// EngineConfig wires an Engine to its collaborators.
type EngineConfig struct {
	Rules     Rules
	Mazes     MazeSource
	Out       Broadcaster
	Scheduler Scheduler
	Now       func() time.Time
	Logf      func(format string, args ...any)
}

// Engine applies player actions and clock events to one room. It is not
// safe for concurrent use; the owning Hub serializes every call.
type Engine struct {
	room  *room.Room
	rules Rules
	mazes MazeSource
	out   Broadcaster
	sched Scheduler
	now   func() time.Time
	logf  func(format string, args ...any)

	warned mapset.Set[int]
}

func NewEngine(r *room.Room, cfg EngineConfig) *Engine {
	e := &Engine{
		room:   r,
		rules:  cfg.Rules,
		mazes:  cfg.Mazes,
		out:    cfg.Out,
		sched:  cfg.Scheduler,
		now:    cfg.Now,
		logf:   cfg.Logf,
		warned: mapset.New[int](),
	}

	if e.now == nil {
		e.now = time.Now
	}
	if e.logf == nil {
		e.logf = func(string, ...any) {}
	}

	return e
}

func (e *Engine) Room() *room.Room {
	return e.room
}

func (e *Engine) broadcast(typ string, data any) {
	e.out.Send(e.room.IDs(), Message{Type: typ, Data: data})
}

func (e *Engine) sendTo(id, typ string, data any) {
	e.out.Send([]string{id}, Message{Type: typ, Data: data})
}

// reject reports a policy violation to the originating player and returns it.
func (e *Engine) reject(id, code string, args ...any) error {
	r := newRejection(code, args...)
	e.sendTo(id, TypeRejection, r)
	return r
}

func (e *Engine) roomUpdated() {
	e.broadcast(TypeRoomUpdated, e.room.Snapshot(e.now()))
}

func (e *Engine) player(id string) (room.Player, error) {
	p, ok := e.room.Player(id)
	if !ok {
		return room.Player{}, ErrNotInRoom
	}
	return p, nil
}

// Join admits a new player to a waiting room.
func (e *Engine) Join(p room.Player) error {
	if err := e.room.AddPlayer(p, e.now()); err != nil {
		return err
	}

	e.logf("%s joined room %s", p.Name, e.room.Code)

	e.roomUpdated()
	e.broadcast(TypePlayerJoined, PlayerNotice{
		PlayerID: p.ID,
		Name:     p.Name,
		Message:  fmt.Sprintf("%s joined the room", p.Name),
	})

	return nil
}

// Leave removes a player. It reports true when the room has closed, either
// because it is empty or because the host left before the round started.
func (e *Engine) Leave(id string) (bool, error) {
	wasHost := e.room.IsHost(id)
	waiting := e.room.Status == room.Waiting

	p, ok := e.room.RemovePlayer(id, e.now())
	if !ok {
		return false, ErrNotInRoom
	}

	e.logf("%s left room %s", p.Name, e.room.Code)

	if e.room.Len() == 0 || (wasHost && waiting) {
		e.broadcast(TypeRoomClosed, RoomClosed{Message: "Room has been closed"})
		e.Close()
		return true, nil
	}

	e.roomUpdated()
	e.broadcast(TypePlayerLeft, PlayerNotice{
		PlayerID: p.ID,
		Name:     p.Name,
		Message:  fmt.Sprintf("%s left the room", p.Name),
	})

	if e.room.Status == room.InProgress && !e.room.Settings.TeamMode && e.room.AllFinished() {
		e.endRound()
	}

	return false, nil
}

// Disconnect is a leave while waiting; during or after a round the player
// stays in the room, flagged as disconnected.
func (e *Engine) Disconnect(id string) (bool, error) {
	if e.room.Status == room.Waiting {
		return e.Leave(id)
	}

	p, err := e.player(id)
	if err != nil {
		return false, err
	}

	e.room.SetPlayer(p.WithConnected(false))
	e.room.Touch(e.now())

	e.broadcast(TypePlayerDisconnected, PlayerNotice{PlayerID: p.ID, Name: p.Name})
	e.roomUpdated()

	return false, nil
}

// Reconnect marks a returning player as connected again and sends them the
// current room. Everyone else hears about it only when the flag changes.
func (e *Engine) Reconnect(id string) error {
	p, err := e.player(id)
	if err != nil {
		return err
	}

	e.room.Touch(e.now())

	if p.Connected {
		e.sendTo(id, TypeRoomUpdated, e.room.Snapshot(e.now()))
		return nil
	}

	e.room.SetPlayer(p.WithConnected(true))

	e.logf("%s reconnected to room %s", p.Name, e.room.Code)

	e.roomUpdated()

	return nil
}

// SetReady toggles a player's ready flag. The host is always ready.
func (e *Engine) SetReady(id string, ready bool) error {
	p, err := e.player(id)
	if err != nil {
		return err
	}
	if e.room.Status != room.Waiting {
		return e.reject(id, CodeNotWaiting)
	}

	if e.room.IsHost(id) {
		ready = true
	}

	e.room.SetPlayer(p.WithReady(ready))
	e.room.Touch(e.now())
	e.roomUpdated()

	return nil
}

// SelectTeam assigns a player to team A or B before the round.
func (e *Engine) SelectTeam(id, tag string) error {
	p, err := e.player(id)
	if err != nil {
		return err
	}

	if !e.room.Settings.TeamMode {
		return e.reject(id, CodeTeamModeDisabled)
	}
	if e.room.Status != room.Waiting {
		return e.reject(id, CodeTeamLocked)
	}
	team, ok := room.ParseTeam(tag)
	if !ok {
		return e.reject(id, CodeInvalidTeam)
	}

	e.room.SetPlayer(p.WithTeam(team))
	e.room.Touch(e.now())
	e.roomUpdated()

	return nil
}

// checkpointCount is the number of checkpoints to request for the next round.
func (e *Engine) checkpointCount() int {
	s := e.room.Settings
	switch {
	case s.TeamMode:
		return max(maze.DefaultCheckpoints, e.room.TeamSize(room.TeamA), e.room.TeamSize(room.TeamB))
	case s.EnableCheckpoints:
		return maze.DefaultCheckpoints
	}
	return 0
}

// Start begins a round on a freshly generated maze.
func (e *Engine) Start(id string) error {
	if _, err := e.player(id); err != nil {
		return err
	}

	r := e.room
	switch {
	case !r.IsHost(id):
		return e.reject(id, CodeNotHostStart)
	case r.Status != room.Waiting:
		return e.reject(id, CodeNotWaiting)
	case r.Len() == 0:
		return e.reject(id, CodeNoPlayers)
	case !r.AllReady():
		return e.reject(id, CodePlayersNotReady)
	}

	if r.Settings.TeamMode {
		if !r.AllHaveTeam() {
			return e.reject(id, CodeTeamsIncomplete)
		}
		if r.TeamSize(room.TeamA) == 0 || r.TeamSize(room.TeamB) == 0 {
			return e.reject(id, CodeTeamsUnbalanced)
		}
	}

	m, err := e.mazes.Generate(maze.Options{
		Difficulty:  r.Settings.Difficulty,
		MaxPlayers:  r.Settings.MaxPlayers,
		Checkpoints: e.checkpointCount(),
	})
	if err != nil {
		return fmt.Errorf("generate maze for room %s: %w", r.Code, err)
	}

	now := e.now()
	if err := r.Start(m, now); err != nil {
		return err
	}

	start := m.Start()
	distance := pathfind.ToEnd(m, start)
	for _, p := range r.Players() {
		r.SetPlayer(p.StartRound(start, distance, e.rules.LightningCharges))
	}

	e.warned = mapset.New[int]()
	e.sched.StartClock()

	e.logf("Round started in room %s (%s, %dx%d, %d checkpoints)",
		r.Code, m.Difficulty, m.Width, m.Height, len(m.Checkpoints))

	e.broadcast(TypeRoundStarted, r.Snapshot(now))

	return nil
}

// Restart returns a finished room to the lobby.
func (e *Engine) Restart(id string) error {
	if _, err := e.player(id); err != nil {
		return err
	}

	switch {
	case !e.room.IsHost(id):
		return e.reject(id, CodeNotHostRestart)
	case e.room.Status != room.Finished:
		return e.reject(id, CodeRoundNotFinished)
	}

	e.sched.StopClock()

	now := e.now()
	e.room.ResetToLobby(now)

	e.logf("Room %s restarted", e.room.Code)

	e.broadcast(TypeRoundRestarted, e.room.Snapshot(now))

	return nil
}

// Move steps a player one cell. Moves outside a round, by finished players
// or into walls are dropped without error.
func (e *Engine) Move(id, direction string) error {
	dir, err := ParseDirection(direction)
	if err != nil {
		return err
	}

	p, err := e.player(id)
	if err != nil {
		return err
	}

	r := e.room
	if r.Status != room.InProgress || r.Maze == nil || p.Finished {
		return nil
	}

	target := p.Position.Step(dir.offset())
	if !r.Maze.Walkable(target) {
		return nil
	}

	now := e.now()
	p = p.MoveTo(target)
	r.SetPlayer(p)
	r.Touch(now)

	e.broadcast(TypePlayerMoved, PlayerMoved{PlayerID: p.ID, Position: p.Position, Moves: p.Moves})

	if r.CheckpointsActive() {
		p = e.crossCheckpoint(p)
	}

	if target != r.Maze.Endpoint {
		r.SetPlayer(p.WithDistance(pathfind.ToEnd(r.Maze, target)))
		return nil
	}

	if err := e.finishGate(p); err != nil {
		r.SetPlayer(p.WithDistance(pathfind.ToEnd(r.Maze, target)))
		return err
	}

	e.finish(p, now)

	return nil
}

// crossCheckpoint records a checkpoint on the player's cell, if any.
func (e *Engine) crossCheckpoint(p room.Player) room.Player {
	r := e.room

	cp, ok := r.Maze.CheckpointAt(p.Position)
	if !ok {
		return p
	}

	if r.Settings.TeamMode && p.Team != room.NoTeam {
		if r.ReachTeamCheckpoint(p.Team, cp.Order) {
			e.logf("%s (Team %s) reached checkpoint %d in room %s", p.Name, p.Team, cp.Order, r.Code)
			e.broadcast(TypeTeamCheckpointReached, TeamCheckpointReached{
				Team:     p.Team,
				Order:    cp.Order,
				PlayerID: p.ID,
				Name:     p.Name,
			})
		}
		return p
	}

	if cp.Order != p.NextCheckpoint {
		return p
	}

	p = p.ReachCheckpoint(cp.Order)
	r.SetPlayer(p)

	e.broadcast(TypeCheckpointReached, CheckpointReached{
		PlayerID:       p.ID,
		Name:           p.Name,
		Order:          cp.Order,
		NextCheckpoint: p.NextCheckpoint,
	})

	return p
}

// finishGate checks the checkpoint requirement for reaching the endpoint.
func (e *Engine) finishGate(p room.Player) error {
	r := e.room
	total := len(r.Maze.Checkpoints)

	switch {
	case r.Settings.TeamMode && p.Team != room.NoTeam:
		have := len(r.TeamCheckpoints(p.Team))
		if have < total {
			return e.reject(p.ID, CodeTeamCheckpointsIncomplete, have, total)
		}
	case r.Settings.EnableCheckpoints:
		have := len(p.Checkpoints)
		if have < total {
			return e.reject(p.ID, CodeCheckpointsIncomplete, have, total)
		}
	}

	return nil
}

func (e *Engine) finish(p room.Player, now time.Time) {
	r := e.room

	seconds := r.Elapsed(now)
	p = p.Finish(seconds)
	r.SetPlayer(p)

	e.logf("%s finished in %ds in room %s", p.Name, seconds, r.Code)

	e.broadcast(TypePlayerFinished, PlayerFinished{
		PlayerID:       p.ID,
		Name:           p.Name,
		CompletionTime: seconds,
		Team:           p.Team,
	})

	if r.Settings.TeamMode && p.Team != room.NoTeam {
		if r.TeamFinished(p.Team) {
			r.WinningTeam = p.Team
			e.logf("Team %s wins in room %s", p.Team, r.Code)
			e.broadcast(TypeTeamVictory, TeamVictory{Team: p.Team})
			e.endRound()
		}
		return
	}

	if r.WinnerID == "" {
		r.WinnerID = p.ID
		e.broadcast(TypeWinnerAnnounced, PlayerNotice{PlayerID: p.ID, Name: p.Name})
	}

	if r.AllFinished() {
		e.endRound()
	}
}

// UseLightning spends a charge and opens the player's lightning window.
func (e *Engine) UseLightning(id string) error {
	p, err := e.player(id)
	if err != nil {
		return err
	}
	if e.room.Status != room.InProgress {
		return nil
	}
	if !e.room.Settings.TunnelMode {
		return e.reject(id, CodeTunnelModeDisabled)
	}

	p, ok := p.UseLightning(e.now(), e.rules.LightningDuration)
	if !ok {
		return e.reject(id, CodeNoLightningCharges)
	}
	e.room.SetPlayer(p)

	e.logf("%s used lightning in room %s (%d charges remaining)", p.Name, e.room.Code, p.LightningCharges)

	e.sendTo(id, TypeLightningActivated, LightningActivated{
		Charges:    p.LightningCharges,
		DurationMS: e.rules.LightningDuration.Milliseconds(),
	})
	e.sched.ExpireLightningAfter(id, e.rules.LightningDuration)

	return nil
}

// ExpireLightning closes a lightning window that has run its course.
func (e *Engine) ExpireLightning(id string) {
	p, ok := e.room.Player(id)
	if !ok {
		return
	}

	p, expired := p.ExpireLightning(e.now())
	if !expired {
		return
	}
	e.room.SetPlayer(p)

	e.sendTo(id, TypeLightningDeactivated, nil)
}

// Tick publishes the round clock, issues each warning once and ends the
// round when time runs out. Ticks outside a round are ignored.
func (e *Engine) Tick() {
	r := e.room
	if r.Status != room.InProgress {
		return
	}

	now := e.now()
	remaining := r.Remaining(now)

	e.broadcast(TypeTimerTick, TimerTick{Elapsed: r.Elapsed(now), Remaining: remaining})

	for _, threshold := range e.rules.Warnings {
		if remaining <= threshold && remaining > 0 && !e.warned.Has(threshold) {
			e.warned.Put(threshold)
			e.broadcast(TypeTimerWarning, TimerWarning{Remaining: threshold})
		}
	}

	if remaining <= 0 {
		e.logf("Time is up in room %s", r.Code)
		e.endRound()
	}
}

// endRound ranks the players and publishes the results once per round.
func (e *Engine) endRound() {
	r := e.room
	if r.Status != room.InProgress {
		return
	}

	e.sched.StopClock()

	now := e.now()
	r.End(now)

	players := r.Players()
	for i, p := range players {
		if !p.Finished {
			players[i] = p.WithDistance(pathfind.ToEnd(r.Maze, p.Position))
		}
	}

	results, ranked := ranking.Compute(r.Code, r.Elapsed(now), r.WinnerID, r.WinningTeam, r.Maze, players)
	for _, p := range ranked {
		r.SetPlayer(p)
	}

	e.logf("Round ended in room %s after %ds", r.Code, results.GameTime)

	e.broadcast(TypeRoundEnded, results)
}

// Close stops the room's clock. The room is not usable afterwards.
func (e *Engine) Close() {
	e.sched.StopClock()
}

// Evict tells every member the room is gone and closes it.
func (e *Engine) Evict() {
	e.logf("Room %s closed after inactivity", e.room.Code)

	e.broadcast(TypeRoomClosed, RoomClosed{Message: "Room closed due to inactivity"})
	e.Close()
}
