/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package maze

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
)

const (
	// DefaultCheckpoints is the number of checkpoints placed outside team scaling.
	DefaultCheckpoints = 3

	// MaxCheckpoints bounds the band partition; narrower bands rarely hold candidates.
	MaxCheckpoints = 8

	bandSpanStart = 0.15
	bandSpanEnd   = 0.85
	bandGap       = 0.05
	endpointClear = 0.10
	pickJitter    = 0.20
)

var ErrTooFewPlayers = errors.New("maze needs at least one player slot")

// Options describes one maze request.
type Options struct {
	Difficulty  Difficulty
	MaxPlayers  int
	Checkpoints int // 0 disables checkpoints
}

// Generator builds mazes from a seedable source. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a Generator drawing from src.
func NewGenerator(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)}
}

// NewSeededGenerator is shorthand for NewGenerator(rand.NewSource(seed)).
func NewSeededGenerator(seed int64) *Generator {
	return NewGenerator(rand.NewSource(seed))
}

var carveSteps = []Point{
	{X: 0, Y: -2},
	{X: 2, Y: 0},
	{X: 0, Y: 2},
	{X: -2, Y: 0},
}

// Generate builds a new maze for opts.
func (g *Generator) Generate(opts Options) (*Maze, error) {
	profile, err := ProfileFor(opts.Difficulty)
	if err != nil {
		return nil, err
	}
	if opts.MaxPlayers < 1 {
		return nil, ErrTooFewPlayers
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	size := profile.Size
	grid := NewGrid(size, size, Wall)

	g.carve(grid, Point{X: 1, Y: 1})
	loops := g.addLoops(grid, profile)
	sealBorder(grid)

	start := Point{X: 1, Y: 1}
	end := Point{X: size - 2, Y: size - 2}
	grid[start.Y][start.X] = Path
	grid[end.Y][end.X] = Path

	starts := make([]Point, opts.MaxPlayers)
	for i := range starts {
		starts[i] = start
	}

	m := &Maze{
		Difficulty:     opts.Difficulty,
		Width:          size,
		Height:         size,
		Grid:           grid,
		StartPositions: starts,
		Endpoint:       end,
		Checkpoints:    []Checkpoint{},
		LoopsCarved:    loops,
	}

	if opts.Checkpoints > 0 {
		m.Checkpoints = g.placeCheckpoints(grid, start, end, min(opts.Checkpoints, MaxCheckpoints))
	}

	return m, nil
}

// carve runs the randomized depth-first pass from origin.
func (g *Generator) carve(grid Grid, origin Point) {
	size := grid.Height()
	stack := []Point{origin}
	grid[origin.Y][origin.X] = Path

	neighbors := make([]Point, 0, len(carveSteps))

	for len(stack) > 0 {
		cur := stack[len(stack)-1]

		neighbors = neighbors[:0]
		for _, d := range carveSteps {
			n := cur.Step(d.X, d.Y)
			if n.X > 0 && n.X < size-1 && n.Y > 0 && n.Y < size-1 && grid[n.Y][n.X] == Wall {
				neighbors = append(neighbors, n)
			}
		}

		if len(neighbors) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}

		next := neighbors[g.rng.Intn(len(neighbors))]
		grid[(cur.Y+next.Y)/2][(cur.X+next.X)/2] = Path
		grid[next.Y][next.X] = Path

		stack = append(stack, next)
	}
}

// loopWall reports whether (x, y) is a closed wall separating two open cells.
func loopWall(grid Grid, x, y int) bool {
	if grid[y][x] != Wall {
		return false
	}

	switch {
	case x%2 == 1 && y%2 == 0:
		return grid[y-1][x] == Path && grid[y+1][x] == Path
	case x%2 == 0 && y%2 == 1:
		return grid[y][x-1] == Path && grid[y][x+1] == Path
	}

	return false
}

// addLoops opens extra walls and returns how many were opened.
func (g *Generator) addLoops(grid Grid, p Profile) int {
	size := grid.Height()
	carved := 0

	for y := 2; y < size-2; y++ {
		for x := 2; x < size-2; x++ {
			if !loopWall(grid, x, y) {
				continue
			}
			if g.rng.Float64() < p.LoopDensity {
				grid[y][x] = Path
				carved++
			}
		}
	}

	if carved >= p.MinLoops {
		return carved
	}

	// Deterministic top-up around the endpoint so every maze has alternate routes near the goal.
	endX, endY := size-2, size-2
	for radius := 2; radius < size && carved < p.MinLoops; radius++ {
		minX, maxX := max(2, endX-radius), min(size-3, endX+radius)
		minY, maxY := max(2, endY-radius), min(size-3, endY+radius)

		for y := minY; y <= maxY && carved < p.MinLoops; y++ {
			for x := minX; x <= maxX && carved < p.MinLoops; x++ {
				if loopWall(grid, x, y) {
					grid[y][x] = Path
					carved++
				}
			}
		}
	}

	return carved
}

func sealBorder(grid Grid) {
	h, w := grid.Height(), grid.Width()
	for x := 0; x < w; x++ {
		grid[0][x] = Wall
		grid[h-1][x] = Wall
	}
	for y := 0; y < h; y++ {
		grid[y][0] = Wall
		grid[y][w-1] = Wall
	}
}

type band struct {
	min, max float64
}

// bands splits the 15%-85% span of size into count equal bands separated by 5% gaps.
// For three bands this yields 15-35%, 40-60% and 65-85%.
func bands(size, count int) []band {
	width := (bandSpanEnd - bandSpanStart - bandGap*float64(count-1)) / float64(count)
	out := make([]band, count)
	for i := range out {
		lo := bandSpanStart + float64(i)*(width+bandGap)
		out[i] = band{min: lo * float64(size), max: (lo + width) * float64(size)}
	}
	return out
}

type candidate struct {
	p    Point
	dist float64
}

func euclid(a, b Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

func (g *Generator) placeCheckpoints(grid Grid, start, end Point, count int) []Checkpoint {
	size := grid.Height()
	clear := float64(size) * endpointClear

	out := make([]Checkpoint, 0, count)
	for _, b := range bands(size, count) {
		var candidates []candidate
		for y := 1; y < size-1; y++ {
			for x := 1; x < size-1; x++ {
				if grid[y][x] != Path {
					continue
				}
				p := Point{X: x, Y: y}
				d := euclid(p, start)
				if d < b.min || d > b.max {
					continue
				}
				if euclid(p, end) <= clear {
					continue
				}
				candidates = append(candidates, candidate{p: p, dist: d})
			}
		}

		if len(candidates) == 0 {
			continue
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].dist < candidates[j].dist
		})

		mid := len(candidates) / 2
		offset := math.Floor(float64(len(candidates)) * pickJitter)
		idx := int(math.Floor(float64(mid) + g.rng.Float64()*offset*2 - offset))
		idx = max(0, min(len(candidates)-1, idx))

		pick := candidates[idx].p
		out = append(out, Checkpoint{X: pick.X, Y: pick.Y, Order: len(out) + 1})
	}

	return out
}
