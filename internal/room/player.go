/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"slices"
	"time"

	"github.com/Seednode/mazerace/internal/maze"
)

// Team tags a player in team mode. The zero value means no team.
type Team string

const (
	NoTeam Team = ""
	TeamA  Team = "A"
	TeamB  Team = "B"
)

// ParseTeam accepts only the two playable tags.
func ParseTeam(s string) (Team, bool) {
	switch Team(s) {
	case TeamA, TeamB:
		return Team(s), true
	}
	return NoTeam, false
}

// UnknownDistance marks a distance that has not been measured or has no path.
const UnknownDistance = -1

// Player is a value record. Every transition returns an updated copy and
// leaves the receiver untouched, so snapshots never alias live state.
type Player struct {
	ID               string     `json:"playerId"`
	Name             string     `json:"username"`
	Position         maze.Point `json:"position"`
	Ready            bool       `json:"isReady"`
	Connected        bool       `json:"isConnected"`
	Moves            int        `json:"moves"`
	CompletionTime   *int       `json:"completionTime"`
	DistanceToEnd    int        `json:"distanceToEnd"`
	Rank             *int       `json:"rank"`
	Finished         bool       `json:"hasFinished"`
	Checkpoints      []int      `json:"checkpointsReached"`
	NextCheckpoint   int        `json:"nextCheckpoint"`
	Team             Team       `json:"team"`
	LightningCharges int        `json:"lightningCharges"`
	LightningActive  bool       `json:"lightningActive"`
	LightningEndsAt  time.Time  `json:"-"`
	JoinedAt         time.Time  `json:"joinedAt"`
}

func NewPlayer(id, name string, now time.Time) Player {
	return Player{
		ID:             id,
		Name:           name,
		Connected:      true,
		DistanceToEnd:  UnknownDistance,
		Checkpoints:    []int{},
		NextCheckpoint: 1,
		JoinedAt:       now,
	}
}

func (p Player) clone() Player {
	p.Checkpoints = slices.Clone(p.Checkpoints)
	if p.CompletionTime != nil {
		v := *p.CompletionTime
		p.CompletionTime = &v
	}
	if p.Rank != nil {
		v := *p.Rank
		p.Rank = &v
	}
	return p
}

func (p Player) WithReady(ready bool) Player {
	p = p.clone()
	p.Ready = ready
	return p
}

func (p Player) WithConnected(connected bool) Player {
	p = p.clone()
	p.Connected = connected
	return p
}

func (p Player) WithTeam(t Team) Player {
	p = p.clone()
	p.Team = t
	return p
}

func (p Player) WithDistance(d int) Player {
	p = p.clone()
	p.DistanceToEnd = d
	return p
}

func (p Player) WithRank(rank int) Player {
	p = p.clone()
	p.Rank = &rank
	return p
}

// MoveTo places the player on pos and counts one move.
func (p Player) MoveTo(pos maze.Point) Player {
	p = p.clone()
	p.Position = pos
	p.Moves++
	return p
}

// Finish records completion after the given number of seconds.
func (p Player) Finish(seconds int) Player {
	p = p.clone()
	p.Finished = true
	p.CompletionTime = &seconds
	p.DistanceToEnd = 0
	return p
}

func (p Player) HasCheckpoint(order int) bool {
	return slices.Contains(p.Checkpoints, order)
}

// ReachCheckpoint records order once; the next expected order follows the highest reached.
func (p Player) ReachCheckpoint(order int) Player {
	if p.HasCheckpoint(order) {
		return p
	}
	p = p.clone()
	p.Checkpoints = append(p.Checkpoints, order)
	p.NextCheckpoint = slices.Max(p.Checkpoints) + 1
	return p
}

// UseLightning spends a charge and opens a window ending at now+window.
// It reports false when no charges remain.
func (p Player) UseLightning(now time.Time, window time.Duration) (Player, bool) {
	if p.LightningCharges <= 0 {
		return p, false
	}
	p = p.clone()
	p.LightningCharges--
	p.LightningActive = true
	p.LightningEndsAt = now.Add(window)
	return p, true
}

// ExpireLightning clears the active flag once the current window has elapsed.
// A stale expiry from an earlier window leaves a newer one in place.
func (p Player) ExpireLightning(now time.Time) (Player, bool) {
	if !p.LightningActive || now.Before(p.LightningEndsAt) {
		return p, false
	}
	p = p.clone()
	p.LightningActive = false
	p.LightningEndsAt = time.Time{}
	return p, true
}

// StartRound places the player on the start cell with a full power-up pool.
func (p Player) StartRound(start maze.Point, distance, charges int) Player {
	p = p.clone()
	p.Position = start
	p.Moves = 0
	p.CompletionTime = nil
	p.DistanceToEnd = distance
	p.Rank = nil
	p.Finished = false
	p.Checkpoints = []int{}
	p.NextCheckpoint = 1
	p.LightningCharges = charges
	p.LightningActive = false
	p.LightningEndsAt = time.Time{}
	return p
}

// ResetRound clears everything scoped to a round, keeping identity,
// connection state and join time.
func (p Player) ResetRound(ready bool) Player {
	return Player{
		ID:             p.ID,
		Name:           p.Name,
		Ready:          ready,
		Connected:      p.Connected,
		DistanceToEnd:  UnknownDistance,
		Checkpoints:    []int{},
		NextCheckpoint: 1,
		JoinedAt:       p.JoinedAt,
	}
}
