/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Seednode/mazerace/internal/room"
)

var (
	ErrRoomClosed   = errors.New("room has been closed")
	ErrActionFailed = errors.New("internal error while processing action")
)

const actionQueueSize = 64

// Hub owns one room. Every action against the room, whether a player
// request, a clock tick or a lightning expiry, runs on the hub's single
// consumer goroutine in arrival order.
type Hub struct {
	code   string
	engine *Engine
	tick   time.Duration
	logf   func(format string, args ...any)

	mu      sync.Mutex
	actions chan func()
	quit    chan struct{}
	once    sync.Once

	timersMu  sync.Mutex
	clock     *roundClock
	lightning map[string]*time.Timer
}

type roundClock struct {
	stop      chan struct{}
	once      sync.Once
	cancelled atomic.Bool
}

func (c *roundClock) cancel() {
	c.once.Do(func() {
		c.cancelled.Store(true)
		close(c.stop)
	})
}

// HubConfig carries what a Hub needs beyond its room.
type HubConfig struct {
	Rules        Rules
	Mazes        MazeSource
	Out          Broadcaster
	TickInterval time.Duration
	Now          func() time.Time
	Logf         func(format string, args ...any)
}

// NewHub wraps r in an engine and starts the hub's consumer goroutine.
func NewHub(r *room.Room, cfg HubConfig) *Hub {
	h := &Hub{
		code:      r.Code,
		tick:      cfg.TickInterval,
		logf:      cfg.Logf,
		actions:   make(chan func(), actionQueueSize),
		quit:      make(chan struct{}),
		lightning: make(map[string]*time.Timer),
	}

	if h.tick <= 0 {
		h.tick = time.Second
	}
	if h.logf == nil {
		h.logf = func(string, ...any) {}
	}

	h.engine = NewEngine(r, EngineConfig{
		Rules:     cfg.Rules,
		Mazes:     cfg.Mazes,
		Out:       cfg.Out,
		Scheduler: h,
		Now:       cfg.Now,
		Logf:      h.logf,
	})

	go h.run()

	return h
}

func (h *Hub) Code() string {
	return h.code
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			return
		case fn := <-h.actions:
			h.exec(fn)
		}
	}
}

// exec runs one action under the hub lock. A panic is logged and the hub
// moves on to the next action.
func (h *Hub) exec(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.quit:
		return
	default:
	}

	defer func() {
		if r := recover(); r != nil {
			h.logf("Recovered panic in room %s: %v\n%s", h.code, r, debug.Stack())
		}
	}()

	fn()
}

// post queues fn without waiting for it to run.
func (h *Hub) post(fn func()) bool {
	select {
	case h.actions <- fn:
		return true
	case <-h.quit:
		return false
	}
}

// do queues fn and waits for its result.
func (h *Hub) do(fn func(e *Engine) error) error {
	done := make(chan error, 1)

	action := func() {
		err := ErrActionFailed
		defer func() {
			done <- err
		}()

		err = fn(h.engine)
	}

	if !h.post(action) {
		return ErrRoomClosed
	}

	select {
	case err := <-done:
		return err
	case <-h.quit:
		return ErrRoomClosed
	}
}

// view reads from the engine under the hub lock without queueing.
func (h *Hub) view(fn func(e *Engine)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fn(h.engine)
}

// Evict implements registry.Entry. The idle check and the close happen under
// the hub lock, so an action that lands first keeps the room alive and none
// can run after it is evicted.
func (h *Hub) Evict(now time.Time, timeout time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.quit:
		return true
	default:
	}

	if !h.engine.Room().Evictable(now, timeout) {
		return false
	}

	h.engine.Evict()
	h.Close()

	return true
}

func (h *Hub) Summary() room.Summary {
	var s room.Summary
	h.view(func(e *Engine) {
		s = e.Room().Summary()
	})
	return s
}

// Close stops the consumer goroutine and every pending timer. Queued
// actions are dropped. Safe to call more than once.
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.quit)

		h.timersMu.Lock()
		defer h.timersMu.Unlock()

		if h.clock != nil {
			h.clock.cancel()
			h.clock = nil
		}
		for id, t := range h.lightning {
			t.Stop()
			delete(h.lightning, id)
		}
	})
}

// StartClock implements Scheduler. Any running clock is replaced.
func (h *Hub) StartClock() {
	h.timersMu.Lock()
	defer h.timersMu.Unlock()

	if h.clock != nil {
		h.clock.cancel()
	}

	c := &roundClock{stop: make(chan struct{})}
	h.clock = c

	go func() {
		ticker := time.NewTicker(h.tick)
		defer ticker.Stop()

		for {
			select {
			case <-c.stop:
				return
			case <-h.quit:
				return
			case <-ticker.C:
				h.post(func() {
					if c.cancelled.Load() {
						return
					}
					h.engine.Tick()
				})
			}
		}
	}()
}

// StopClock implements Scheduler. It is idempotent.
func (h *Hub) StopClock() {
	h.timersMu.Lock()
	defer h.timersMu.Unlock()

	if h.clock != nil {
		h.clock.cancel()
		h.clock = nil
	}
}

// ExpireLightningAfter implements Scheduler. The expiry is queued like any
// other action; a newer activation replaces the pending timer.
func (h *Hub) ExpireLightningAfter(playerID string, d time.Duration) {
	h.timersMu.Lock()
	defer h.timersMu.Unlock()

	if t, ok := h.lightning[playerID]; ok {
		t.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		h.timersMu.Lock()
		if h.lightning[playerID] == t {
			delete(h.lightning, playerID)
		}
		h.timersMu.Unlock()

		h.post(func() {
			h.engine.ExpireLightning(playerID)
		})
	})
	h.lightning[playerID] = t
}
