/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package registry maps room codes to live rooms and players to the room
// they are in, and sweeps idle rooms on an interval.
package registry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
)

const (
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 6

	DefaultMaxRooms      = 50
	DefaultIdleTimeout   = 10 * time.Minute
	DefaultSweepInterval = time.Minute

	maxCodeAttempts = 32
)

var (
	ErrTooManyRooms = errors.New("maximum number of rooms reached")
	ErrNoFreeCode   = errors.New("could not allocate a unique room code")
	ErrInvalidCode  = errors.New("invalid room code")
	ErrNotFound     = errors.New("room not found")
)

// Entry is what the registry needs from a room.
type Entry interface {
	// Evict closes the room if it has been idle long enough to sweep and
	// reports whether it did. The check and the close must not interleave
	// with the room's own activity.
	Evict(now time.Time, timeout time.Duration) bool
	// Close releases the room's resources. It must be safe to call twice.
	Close()
}

// Options configures a Registry. Zero values fall back to the defaults.
type Options struct {
	MaxRooms      int
	IdleTimeout   time.Duration
	SweepInterval time.Duration

	// Logf receives sweep notices.
	Logf func(format string, args ...any)
	// Codes replaces the random code source.
	Codes func() (string, error)
	// Now replaces time.Now.
	Now func() time.Time
}

type Registry[R Entry] struct {
	mu      sync.RWMutex
	rooms   map[string]R
	players map[string]string

	maxRooms      int
	idleTimeout   time.Duration
	sweepInterval time.Duration

	logf  func(format string, args ...any)
	codes func() (string, error)
	now   func() time.Time
}

func New[R Entry](opts Options) *Registry[R] {
	r := &Registry[R]{
		rooms:         make(map[string]R),
		players:       make(map[string]string),
		maxRooms:      opts.MaxRooms,
		idleTimeout:   opts.IdleTimeout,
		sweepInterval: opts.SweepInterval,
		logf:          opts.Logf,
		codes:         opts.Codes,
		now:           opts.Now,
	}

	if r.maxRooms <= 0 {
		r.maxRooms = DefaultMaxRooms
	}
	if r.idleTimeout <= 0 {
		r.idleTimeout = DefaultIdleTimeout
	}
	if r.sweepInterval <= 0 {
		r.sweepInterval = DefaultSweepInterval
	}
	if r.logf == nil {
		r.logf = func(string, ...any) {}
	}
	if r.codes == nil {
		r.codes = NewCode
	}
	if r.now == nil {
		r.now = time.Now
	}

	return r
}

// NewCode returns a random code drawn from CodeAlphabet.
func NewCode() (string, error) {
	max := big.NewInt(int64(len(CodeAlphabet)))

	var b strings.Builder
	b.Grow(CodeLength)

	for range CodeLength {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(CodeAlphabet[n.Int64()])
	}

	return b.String(), nil
}

// NormalizeCode trims and upper-cases a user-supplied code and checks its shape.
func NormalizeCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))

	switch {
	case c == "":
		return "", fmt.Errorf("%w: room code is required", ErrInvalidCode)
	case len(c) != CodeLength:
		return "", fmt.Errorf("%w: room code must be %d characters", ErrInvalidCode, CodeLength)
	}

	for _, ch := range c {
		if !strings.ContainsRune(CodeAlphabet, ch) {
			return "", fmt.Errorf("%w: room code contains %q", ErrInvalidCode, ch)
		}
	}

	return c, nil
}

// Create allocates an unused code and stores the room built for it. build
// runs under the registry lock and must not call back into the registry.
func (r *Registry[R]) Create(build func(code string) (R, error)) (R, error) {
	var zero R

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.rooms) >= r.maxRooms {
		return zero, ErrTooManyRooms
	}

	for range maxCodeAttempts {
		code, err := r.codes()
		if err != nil {
			return zero, err
		}
		if _, taken := r.rooms[code]; taken {
			continue
		}

		room, err := build(code)
		if err != nil {
			return zero, err
		}
		r.rooms[code] = room

		return room, nil
	}

	return zero, ErrNoFreeCode
}

func (r *Registry[R]) Get(code string) (R, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[code]
	return room, ok
}

// Delete removes the room and every player bound to it. It does not close the room.
func (r *Registry[R]) Delete(code string) (R, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.deleteLocked(code)
}

func (r *Registry[R]) deleteLocked(code string) (R, bool) {
	room, ok := r.rooms[code]
	if !ok {
		return room, false
	}

	delete(r.rooms, code)
	for player, c := range r.players {
		if c == code {
			delete(r.players, player)
		}
	}

	return room, true
}

// Bind records that player is in the room with code.
func (r *Registry[R]) Bind(player, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.players[player] = code
}

// Unbind forgets player, but only if it is still bound to code.
func (r *Registry[R]) Unbind(player, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.players[player] == code {
		delete(r.players, player)
	}
}

// Lookup returns the room player is bound to.
func (r *Registry[R]) Lookup(player string) (R, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero R

	code, ok := r.players[player]
	if !ok {
		return zero, "", false
	}

	room, ok := r.rooms[code]
	if !ok {
		return zero, "", false
	}

	return room, code, true
}

func (r *Registry[R]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

// Each calls fn for a snapshot of the rooms, outside the lock.
func (r *Registry[R]) Each(fn func(code string, room R)) {
	r.mu.RLock()
	snapshot := make(map[string]R, len(r.rooms))
	for code, room := range r.rooms {
		snapshot[code] = room
	}
	r.mu.RUnlock()

	for code, room := range snapshot {
		fn(code, room)
	}
}

// Sweep evicts idle rooms. Each room decides and closes itself atomically,
// so one that became active since the last sweep is left alone. It returns
// the evicted codes.
func (r *Registry[R]) Sweep() []string {
	now := r.now()

	var evicted []string
	r.Each(func(code string, room R) {
		if !room.Evict(now, r.idleTimeout) {
			return
		}
		if _, ok := r.Delete(code); !ok {
			return
		}

		evicted = append(evicted, code)

		r.logf("Cleaned up inactive room %s", code)
	})

	return evicted
}

// Run sweeps every interval until ctx is done.
func (r *Registry[R]) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// CloseAll empties the registry and closes every room.
func (r *Registry[R]) CloseAll() {
	r.mu.Lock()
	rooms := make([]R, 0, len(r.rooms))
	for code := range r.rooms {
		room, _ := r.deleteLocked(code)
		rooms = append(rooms, room)
	}
	r.mu.Unlock()

	for _, room := range rooms {
		room.Close()
	}
}
