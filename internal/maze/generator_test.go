/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package maze

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

// countReachable returns the number of path cells reachable from start via N/E/S/W.
func countReachable(grid Grid, start Point) int {
	if !grid.Walkable(start) {
		return 0
	}
	visited := map[Point]bool{start: true}
	queue := []Point{start}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, n := range []Point{p.Step(0, -1), p.Step(1, 0), p.Step(0, 1), p.Step(-1, 0)} {
			if grid.Walkable(n) && !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return len(visited)
}

func countPath(grid Grid) int {
	n := 0
	for _, row := range grid {
		for _, c := range row {
			if c == Path {
				n++
			}
		}
	}
	return n
}

func TestGenerateInvariants(t *testing.T) {
	for _, d := range Difficulties() {
		for seed := int64(1); seed <= 20; seed++ {
			g := NewSeededGenerator(seed)
			m, err := g.Generate(Options{Difficulty: d, MaxPlayers: 4, Checkpoints: DefaultCheckpoints})
			if err != nil {
				t.Fatalf("Generate(%s, seed %d) failed: %v", d, seed, err)
			}

			profile, _ := ProfileFor(d)
			if m.Width != profile.Size || m.Height != profile.Size {
				t.Fatalf("%s: got %dx%d, want %dx%d", d, m.Width, m.Height, profile.Size, profile.Size)
			}

			for i := 0; i < m.Width; i++ {
				if m.Grid[0][i] != Wall || m.Grid[m.Height-1][i] != Wall {
					t.Fatalf("%s seed %d: open cell on horizontal border at column %d", d, seed, i)
				}
				if m.Grid[i][0] != Wall || m.Grid[i][m.Width-1] != Wall {
					t.Fatalf("%s seed %d: open cell on vertical border at row %d", d, seed, i)
				}
			}

			if !m.Walkable(m.Endpoint) {
				t.Errorf("%s seed %d: endpoint %v is a wall", d, seed, m.Endpoint)
			}
			for _, s := range m.StartPositions {
				if !m.Walkable(s) {
					t.Errorf("%s seed %d: start %v is a wall", d, seed, s)
				}
			}

			if got, want := countReachable(m.Grid, m.Start()), countPath(m.Grid); got != want {
				t.Errorf("%s seed %d: %d of %d path cells reachable", d, seed, got, want)
			}

			if m.LoopsCarved < profile.MinLoops {
				t.Errorf("%s seed %d: carved %d loops, want at least %d", d, seed, m.LoopsCarved, profile.MinLoops)
			}
		}
	}
}

func TestGenerateEasyTwoPlayers(t *testing.T) {
	m, err := NewSeededGenerator(42).Generate(Options{Difficulty: Easy, MaxPlayers: 2})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if m.Width != 15 || m.Height != 15 {
		t.Fatalf("got %dx%d, want 15x15", m.Width, m.Height)
	}
	if m.Grid[1][1] != Path {
		t.Error("start (1,1) is not a path cell")
	}
	if m.Grid[13][13] != Path {
		t.Error("endpoint (13,13) is not a path cell")
	}
	if m.Endpoint != (Point{X: 13, Y: 13}) {
		t.Errorf("endpoint = %v, want (13,13)", m.Endpoint)
	}
	if len(m.StartPositions) != 2 {
		t.Fatalf("got %d start positions, want 2", len(m.StartPositions))
	}
	for _, s := range m.StartPositions {
		if s != (Point{X: 1, Y: 1}) {
			t.Errorf("start position %v, want (1,1)", s)
		}
	}
	if len(m.Checkpoints) != 0 {
		t.Errorf("got %d checkpoints without requesting any", len(m.Checkpoints))
	}
}

func TestGenerateDeterministic(t *testing.T) {
	opts := Options{Difficulty: Medium, MaxPlayers: 3, Checkpoints: DefaultCheckpoints}

	a, err := NewSeededGenerator(7).Generate(opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSeededGenerator(7).Generate(opts)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different mazes")
	}
}

func TestCheckpointPlacement(t *testing.T) {
	for _, d := range Difficulties() {
		for seed := int64(1); seed <= 10; seed++ {
			m, err := NewSeededGenerator(seed).Generate(Options{Difficulty: d, MaxPlayers: 2, Checkpoints: DefaultCheckpoints})
			if err != nil {
				t.Fatal(err)
			}

			if len(m.Checkpoints) != DefaultCheckpoints {
				t.Fatalf("%s seed %d: got %d checkpoints, want %d", d, seed, len(m.Checkpoints), DefaultCheckpoints)
			}

			clear := float64(m.Width) * endpointClear
			prev := 0.0
			for i, c := range m.Checkpoints {
				if c.Order != i+1 {
					t.Errorf("%s seed %d: checkpoint %d has order %d", d, seed, i, c.Order)
				}
				if !m.Walkable(c.Point()) {
					t.Errorf("%s seed %d: checkpoint %v is on a wall", d, seed, c)
				}
				if euclid(c.Point(), m.Endpoint) <= clear {
					t.Errorf("%s seed %d: checkpoint %v too close to endpoint", d, seed, c)
				}
				dist := euclid(c.Point(), m.Start())
				if dist < prev {
					t.Errorf("%s seed %d: checkpoint %d closer to start than checkpoint %d", d, seed, i+1, i)
				}
				prev = dist

				got, ok := m.CheckpointAt(c.Point())
				if !ok || got != c {
					t.Errorf("CheckpointAt(%v) = %v, %v", c.Point(), got, ok)
				}
			}
		}
	}
}

func TestBands(t *testing.T) {
	want := []band{{15, 35}, {40, 60}, {65, 85}}
	got := bands(100, 3)

	for i := range want {
		if math.Abs(got[i].min-want[i].min) > 1e-9 || math.Abs(got[i].max-want[i].max) > 1e-9 {
			t.Errorf("band %d = %v, want %v", i, got[i], want[i])
		}
	}

	five := bands(100, 5)
	if math.Abs(five[0].min-15) > 1e-9 || math.Abs(five[4].max-85) > 1e-9 {
		t.Errorf("five bands do not span 15-85: %v", five)
	}
}

func TestGenerateErrors(t *testing.T) {
	g := NewSeededGenerator(1)

	if _, err := g.Generate(Options{Difficulty: "extreme", MaxPlayers: 2}); !errors.Is(err, ErrUnknownDifficulty) {
		t.Errorf("unknown difficulty: got %v", err)
	}
	if _, err := g.Generate(Options{Difficulty: Easy}); !errors.Is(err, ErrTooFewPlayers) {
		t.Errorf("zero players: got %v", err)
	}
}

func TestParseDifficulty(t *testing.T) {
	cases := []struct {
		in   string
		want Difficulty
		ok   bool
	}{
		{"easy", Easy, true},
		{" Medium ", Medium, true},
		{"HARD", Hard, true},
		{"", "", false},
		{"nightmare", "", false},
	}

	for _, tc := range cases {
		got, err := ParseDifficulty(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Errorf("ParseDifficulty(%q) = %q, %v", tc.in, got, err)
		}
	}
}
