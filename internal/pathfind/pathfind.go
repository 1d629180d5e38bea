/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package pathfind measures hop distance between two cells of a maze grid.
package pathfind

import (
	"github.com/zyedidia/generic/heap"

	"github.com/Seednode/mazerace/internal/maze"
)

// Unreachable is returned when no open path joins the two cells.
const Unreachable = -1

type node struct {
	p maze.Point
	g int
	f int
}

var directions = []maze.Point{
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
}

func manhattan(a, b maze.Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Distance returns the shortest 4-connected hop count from -> to over open cells,
// or Unreachable. The Manhattan heuristic is consistent on a unit-cost grid, so the
// result equals the breadth-first distance.
func Distance(grid maze.Grid, from, to maze.Point) int {
	if !grid.Walkable(from) || !grid.Walkable(to) {
		return Unreachable
	}
	if from == to {
		return 0
	}

	open := heap.New(func(a, b node) bool {
		return a.f < b.f
	})
	best := map[maze.Point]int{from: 0}
	closed := make(map[maze.Point]bool)

	open.Push(node{p: from, g: 0, f: manhattan(from, to)})

	for open.Size() > 0 {
		cur, _ := open.Pop()

		if cur.p == to {
			return cur.g
		}
		if closed[cur.p] {
			continue
		}
		closed[cur.p] = true

		for _, d := range directions {
			next := cur.p.Step(d.X, d.Y)
			if !grid.Walkable(next) || closed[next] {
				continue
			}

			g := cur.g + 1
			if prev, seen := best[next]; seen && prev <= g {
				continue
			}
			best[next] = g

			open.Push(node{p: next, g: g, f: g + manhattan(next, to)})
		}
	}

	return Unreachable
}

// FromStart is Distance from the maze start to p.
func FromStart(m *maze.Maze, p maze.Point) int {
	return Distance(m.Grid, m.Start(), p)
}

// ToEnd is Distance from p to the maze endpoint.
func ToEnd(m *maze.Maze, p maze.Point) int {
	return Distance(m.Grid, p, m.Endpoint)
}
