/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package ranking orders the players of a finished round and summarizes it.
package ranking

import (
	"math"
	"sort"

	"github.com/Seednode/mazerace/internal/maze"
	"github.com/Seednode/mazerace/internal/pathfind"
	"github.com/Seednode/mazerace/internal/room"
)

// Standing is one row of the results table.
type Standing struct {
	Rank           int       `json:"rank"`
	PlayerID       string    `json:"playerId"`
	Name           string    `json:"username"`
	Team           room.Team `json:"team,omitempty"`
	Finished       bool      `json:"hasFinished"`
	CompletionTime *int      `json:"completionTime"`
	DistanceToEnd  int       `json:"distanceToEnd"`
	Moves          int       `json:"moves"`
	Progress       int       `json:"progressPercentage"`
	Connected      bool      `json:"isConnected"`
}

type Statistics struct {
	TotalPlayers int `json:"totalPlayers"`
	Finishers    int `json:"finishers"`
	AverageTime  int `json:"averageTime"`
	AverageMoves int `json:"averageMoves"`
}

// Results is the round-ended payload.
type Results struct {
	RoomCode    string     `json:"roomCode"`
	GameTime    int        `json:"gameTime"`
	WinnerID    string     `json:"winner,omitempty"`
	WinningTeam room.Team  `json:"winningTeam,omitempty"`
	Rankings    []Standing `json:"rankings"`
	Statistics  Statistics `json:"statistics"`
}

// distanceKey treats an unknown distance as farther than any measured one.
func distanceKey(d int) int {
	if d < 0 {
		return math.MaxInt
	}
	return d
}

// Less reports whether a places ahead of b.
func Less(a, b room.Player) bool {
	switch {
	case a.Finished && b.Finished:
		return *a.CompletionTime < *b.CompletionTime
	case a.Finished != b.Finished:
		return a.Finished
	}

	da, db := distanceKey(a.DistanceToEnd), distanceKey(b.DistanceToEnd)
	if da != db {
		return da < db
	}
	return a.Moves < b.Moves
}

// Rank sorts players and returns copies carrying ranks 1..N.
func Rank(players []room.Player) []room.Player {
	out := make([]room.Player, len(players))
	copy(out, players)

	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j])
	})

	for i := range out {
		out[i] = out[i].WithRank(i + 1)
	}

	return out
}

// Progress converts a live distance into a percentage of the route covered.
func Progress(p room.Player, maxDistance int) int {
	if p.Finished {
		return 100
	}
	if maxDistance <= 0 || p.DistanceToEnd < 0 {
		return 0
	}

	pct := math.Round(100 * float64(maxDistance-p.DistanceToEnd) / float64(maxDistance))
	return int(max(0, min(100, pct)))
}

// Stats aggregates over all players; means are rounded and zero when empty.
func Stats(players []room.Player) Statistics {
	s := Statistics{TotalPlayers: len(players)}

	var times, moves int
	for _, p := range players {
		moves += p.Moves
		if p.Finished {
			s.Finishers++
			times += *p.CompletionTime
		}
	}

	if s.Finishers > 0 {
		s.AverageTime = int(math.Round(float64(times) / float64(s.Finishers)))
	}
	if s.TotalPlayers > 0 {
		s.AverageMoves = int(math.Round(float64(moves) / float64(s.TotalPlayers)))
	}

	return s
}

// MaxDistance is the start to endpoint distance of m.
func MaxDistance(m *maze.Maze) int {
	if m == nil {
		return 0
	}
	return pathfind.ToEnd(m, m.Start())
}

// Compute ranks the given players and builds the results. The ranked player
// records are returned so the caller can store them.
func Compute(code string, gameTime int, winnerID string, winningTeam room.Team, m *maze.Maze, players []room.Player) (Results, []room.Player) {
	ranked := Rank(players)
	maxDistance := MaxDistance(m)

	standings := make([]Standing, len(ranked))
	for i, p := range ranked {
		standings[i] = Standing{
			Rank:           *p.Rank,
			PlayerID:       p.ID,
			Name:           p.Name,
			Team:           p.Team,
			Finished:       p.Finished,
			CompletionTime: p.CompletionTime,
			DistanceToEnd:  p.DistanceToEnd,
			Moves:          p.Moves,
			Progress:       Progress(p, maxDistance),
			Connected:      p.Connected,
		}
	}

	return Results{
		RoomCode:    code,
		GameTime:    gameTime,
		WinnerID:    winnerID,
		WinningTeam: winningTeam,
		Rankings:    standings,
		Statistics:  Stats(ranked),
	}, ranked
}
