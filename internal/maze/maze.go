/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package maze generates square grid mazes for a race: a randomized
// depth-first carve, extra loops scaled by difficulty, a fixed start and
// endpoint on opposite interior corners, and optional ordered checkpoints.
package maze

import (
	"errors"
	"fmt"
	"strings"
)

// Cell is a single grid value. Path cells are walkable.
type Cell int

const (
	Path Cell = 0
	Wall Cell = 1
)

// Difficulty selects the grid size and loop tables.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

var ErrUnknownDifficulty = errors.New("unknown difficulty")

// Profile holds the generation parameters for one difficulty.
type Profile struct {
	Size        int
	LoopDensity float64
	MinLoops    int
}

var profiles = map[Difficulty]Profile{
	Easy:   {Size: 15, LoopDensity: 0.04, MinLoops: 1},
	Medium: {Size: 25, LoopDensity: 0.08, MinLoops: 2},
	Hard:   {Size: 35, LoopDensity: 0.12, MinLoops: 3},
}

// Difficulties lists the accepted difficulty values in ascending order.
func Difficulties() []Difficulty {
	return []Difficulty{Easy, Medium, Hard}
}

// ProfileFor returns the generation table entry for d.
func ProfileFor(d Difficulty) (Profile, error) {
	p, ok := profiles[d]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownDifficulty, d)
	}
	return p, nil
}

// ParseDifficulty accepts any casing and surrounding whitespace.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := profiles[d]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDifficulty, s)
	}
	return d, nil
}

// Point is a grid coordinate; X is the column and Y the row.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Step returns the neighbouring point in the given offset.
func (p Point) Step(dx, dy int) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Checkpoint is an ordered waypoint; Order starts at 1.
type Checkpoint struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Order int `json:"order"`
}

// Point returns the checkpoint location.
func (c Checkpoint) Point() Point {
	return Point{X: c.X, Y: c.Y}
}

// Grid is indexed as grid[y][x].
type Grid [][]Cell

// NewGrid returns a width×height grid filled with fill.
func NewGrid(width, height int, fill Cell) Grid {
	g := make(Grid, height)
	for y := range g {
		row := make([]Cell, width)
		for x := range row {
			row[x] = fill
		}
		g[y] = row
	}
	return g
}

func (g Grid) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

func (g Grid) Height() int {
	return len(g)
}

// InBounds reports whether p lies inside the grid.
func (g Grid) InBounds(p Point) bool {
	return p.Y >= 0 && p.Y < len(g) && p.X >= 0 && p.X < len(g[p.Y])
}

// Walkable reports whether p is inside the grid and open. Out of bounds is a wall.
func (g Grid) Walkable(p Point) bool {
	return g.InBounds(p) && g[p.Y][p.X] == Path
}

// Maze is a generated grid together with its race markers.
type Maze struct {
	Difficulty     Difficulty   `json:"difficulty"`
	Width          int          `json:"width"`
	Height         int          `json:"height"`
	Grid           Grid         `json:"grid"`
	StartPositions []Point      `json:"startPositions"`
	Endpoint       Point        `json:"endpoint"`
	Checkpoints    []Checkpoint `json:"checkpoints"`

	// LoopsCarved counts walls opened after the perfect-maze pass.
	LoopsCarved int `json:"-"`
}

// Start returns the shared start cell.
func (m *Maze) Start() Point {
	if len(m.StartPositions) == 0 {
		return Point{X: 1, Y: 1}
	}
	return m.StartPositions[0]
}

// Walkable reports whether p is an open cell of the maze.
func (m *Maze) Walkable(p Point) bool {
	return m.Grid.Walkable(p)
}

// CheckpointAt returns the checkpoint located on p, if any.
func (m *Maze) CheckpointAt(p Point) (Checkpoint, bool) {
	for _, c := range m.Checkpoints {
		if c.X == p.X && c.Y == p.Y {
			return c, true
		}
	}
	return Checkpoint{}, false
}
