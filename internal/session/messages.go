/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"github.com/Seednode/mazerace/internal/maze"
	"github.com/Seednode/mazerace/internal/room"
)

// Outbound message types.
const (
	TypeRoomUpdated           = "room_updated"
	TypePlayerJoined          = "player_joined"
	TypePlayerLeft            = "player_left"
	TypeRoundStarted          = "round_started"
	TypePlayerMoved           = "player_moved"
	TypeCheckpointReached     = "checkpoint_reached"
	TypeTeamCheckpointReached = "team_checkpoint_reached"
	TypePlayerFinished        = "player_finished"
	TypeWinnerAnnounced       = "winner_announced"
	TypeTeamVictory           = "team_victory"
	TypeTimerTick             = "timer_tick"
	TypeTimerWarning          = "timer_warning"
	TypeRoundEnded            = "round_ended"
	TypePlayerDisconnected    = "player_disconnected"
	TypeRoomClosed            = "room_closed"
	TypeRoundRestarted        = "round_restarted"
	TypeRejection             = "rejection"
	TypeLightningActivated    = "lightning_activated"
	TypeLightningDeactivated  = "lightning_deactivated"
)

// Message is the envelope handed to a Broadcaster.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Broadcaster delivers messages to players by id. Send must not block.
type Broadcaster interface {
	Send(to []string, msg Message)
}

type PlayerNotice struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"username"`
	Message  string `json:"message,omitempty"`
}

type PlayerMoved struct {
	PlayerID string     `json:"playerId"`
	Position maze.Point `json:"position"`
	Moves    int        `json:"moves"`
}

type CheckpointReached struct {
	PlayerID       string `json:"playerId"`
	Name           string `json:"username"`
	Order          int    `json:"checkpointOrder"`
	NextCheckpoint int    `json:"nextCheckpoint"`
}

type TeamCheckpointReached struct {
	Team     room.Team `json:"team"`
	Order    int       `json:"checkpointOrder"`
	PlayerID string    `json:"playerId"`
	Name     string    `json:"username"`
}

type PlayerFinished struct {
	PlayerID       string    `json:"playerId"`
	Name           string    `json:"username"`
	CompletionTime int       `json:"completionTime"`
	Team           room.Team `json:"team,omitempty"`
}

type TeamVictory struct {
	Team room.Team `json:"winningTeam"`
}

type TimerTick struct {
	Elapsed   int `json:"elapsed"`
	Remaining int `json:"remaining"`
}

type TimerWarning struct {
	Remaining int `json:"remaining"`
}

type RoomClosed struct {
	Message string `json:"message"`
}

type LightningActivated struct {
	Charges    int   `json:"lightningCharges"`
	DurationMS int64 `json:"duration"`
}
