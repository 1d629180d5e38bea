/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/Seednode/mazerace/internal/maze"
	"github.com/Seednode/mazerace/internal/registry"
	"github.com/Seednode/mazerace/internal/room"
)

type serviceFixture struct {
	svc   *Service
	rooms *registry.Registry[*Hub]
	out   *recorder
	clock *fakeClock
}

func newServiceFixture(t *testing.T, cfg Config) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		out:   &recorder{},
		clock: &fakeClock{t: epoch},
	}

	if cfg.Now == nil {
		cfg.Now = f.clock.now
	}
	if cfg.Mazes == nil {
		cfg.Mazes = &fakeMazes{m: corridor(6)}
	}

	f.rooms = registry.New[*Hub](registry.Options{Now: cfg.Now})
	f.svc = NewService(f.rooms, f.out, cfg)

	t.Cleanup(f.svc.Shutdown)

	return f
}

func (f *serviceFixture) create(t *testing.T, id string, settings room.Settings) string {
	t.Helper()

	joined, err := f.svc.CreateRoom(id, id, settings)
	if err != nil {
		t.Fatalf("CreateRoom(%s) failed: %v", id, err)
	}
	return joined.RoomCode
}

func (f *serviceFixture) join(t *testing.T, id, code string) {
	t.Helper()

	if _, err := f.svc.JoinRoom(id, code, id); err != nil {
		t.Fatalf("JoinRoom(%s, %s) failed: %v", id, code, err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestServiceRace(t *testing.T) {
	f := newServiceFixture(t, Config{})

	joined, err := f.svc.CreateRoom("", "alice", room.Settings{Difficulty: "easy"})
	if err != nil {
		t.Fatal(err)
	}
	if joined.PlayerID == "" || len(joined.RoomCode) != registry.CodeLength {
		t.Fatalf("joined = %+v", joined)
	}
	if joined.Room.HostID != joined.PlayerID || joined.Room.Settings.Difficulty != maze.Easy {
		t.Errorf("room view = %+v", joined.Room)
	}
	alice := joined.PlayerID

	guest, err := f.svc.JoinRoom("", " "+joined.RoomCode+" ", "bob")
	if err != nil {
		t.Fatal(err)
	}
	bob := guest.PlayerID
	if guest.Room.PlayerCount != 2 {
		t.Errorf("player count = %d", guest.Room.PlayerCount)
	}

	wantRejection(t, f.svc.StartRound(alice), CodePlayersNotReady)

	if err := f.svc.SetReady(bob, true); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.StartRound(alice); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Move(bob, "diagonal"); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("bad direction: %v", err)
	}

	f.clock.advance(30 * time.Second)
	for range 5 {
		if err := f.svc.Move(alice, "right"); err != nil {
			t.Fatal(err)
		}
	}

	view, err := f.svc.Room(alice)
	if err != nil {
		t.Fatal(err)
	}
	if view.WinnerID != alice || view.Status != room.InProgress {
		t.Errorf("winner = %q status = %s", view.WinnerID, view.Status)
	}

	if err := f.svc.LeaveRoom(bob); err != nil {
		t.Fatal(err)
	}
	if f.out.count(TypeRoundEnded) != 1 {
		t.Error("round did not end after the last racer left")
	}
	if err := f.svc.SetReady(bob, true); !errors.Is(err, ErrNotInRoom) {
		t.Errorf("departed player still routed: %v", err)
	}
}

func TestServiceJoinErrors(t *testing.T) {
	f := newServiceFixture(t, Config{})
	code := f.create(t, "host", room.Settings{MaxPlayers: 2})

	cases := []struct {
		name string
		code string
		user string
		want error
	}{
		{"malformed code", "AB", "guest", registry.ErrInvalidCode},
		{"unknown code", "ZZZZZZ", "guest", ErrRoomNotFound},
		{"bad name", code, "x", room.ErrInvalidName},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.JoinRoom("", tc.code, tc.user); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}

	f.join(t, "guest", code)
	if _, err := f.svc.JoinRoom("late", code, "late"); !errors.Is(err, room.ErrRoomFull) {
		t.Errorf("full room: %v", err)
	}
	if _, err := f.svc.JoinRoom("guest", code, "guest"); !errors.Is(err, room.ErrDuplicatePlayer) {
		t.Errorf("rejoin: %v", err)
	}

	_ = f.svc.SetReady("guest", true)
	if err := f.svc.StartRound("host"); err != nil {
		t.Fatal(err)
	}
	_ = f.svc.LeaveRoom("guest")

	if _, err := f.svc.JoinRoom("late", code, "late"); !errors.Is(err, room.ErrRoundStarted) {
		t.Errorf("started room: %v", err)
	}
}

func TestServiceCreateErrors(t *testing.T) {
	f := newServiceFixture(t, Config{})

	if _, err := f.svc.CreateRoom("", "?", room.Settings{}); !errors.Is(err, room.ErrInvalidName) {
		t.Errorf("bad name: %v", err)
	}
	if _, err := f.svc.CreateRoom("", "alice", room.Settings{TimerDuration: 30}); !errors.Is(err, room.ErrInvalidSettings) {
		t.Errorf("bad settings: %v", err)
	}
	if f.rooms.Len() != 0 {
		t.Error("invalid request created a room")
	}
}

func TestServiceHostLeaveClosesRoom(t *testing.T) {
	f := newServiceFixture(t, Config{})
	code := f.create(t, "host", room.Settings{})
	f.join(t, "guest", code)

	if err := f.svc.LeaveRoom("host"); err != nil {
		t.Fatal(err)
	}

	if f.rooms.Len() != 0 {
		t.Error("room still registered")
	}
	if err := f.svc.SetReady("guest", true); !errors.Is(err, ErrNotInRoom) {
		t.Errorf("guest still bound: %v", err)
	}
	if f.out.count(TypeRoomClosed) != 1 {
		t.Error("room_closed not sent")
	}
}

func TestServiceSwitchRooms(t *testing.T) {
	f := newServiceFixture(t, Config{})
	first := f.create(t, "alice", room.Settings{})
	f.join(t, "bob", first)

	second := f.create(t, "bob", room.Settings{})

	lobby, err := f.svc.Lobby(first)
	if err != nil {
		t.Fatal(err)
	}
	if lobby.PlayerCount != 1 {
		t.Errorf("first room has %d players after bob moved", lobby.PlayerCount)
	}

	view, err := f.svc.Room("bob")
	if err != nil {
		t.Fatal(err)
	}
	if view.Code != second || view.HostID != "bob" {
		t.Errorf("bob routed to %s", view.Code)
	}
}

func TestServiceDisconnect(t *testing.T) {
	f := newServiceFixture(t, Config{})
	code := f.create(t, "host", room.Settings{})
	f.join(t, "guest", code)
	f.join(t, "other", code)

	if err := f.svc.Disconnect("other"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Room("other"); !errors.Is(err, ErrNotInRoom) {
		t.Errorf("waiting disconnect kept binding: %v", err)
	}

	_ = f.svc.SetReady("guest", true)
	_ = f.svc.StartRound("host")

	if err := f.svc.Disconnect("guest"); err != nil {
		t.Fatal(err)
	}
	view, err := f.svc.Room("guest")
	if err != nil {
		t.Fatalf("in-round disconnect dropped binding: %v", err)
	}
	for _, p := range view.Players {
		if p.ID == "guest" && p.Connected {
			t.Error("guest still connected")
		}
	}

	if err := f.svc.Disconnect("nobody"); err != nil {
		t.Errorf("unknown disconnect: %v", err)
	}
}

func TestServiceListing(t *testing.T) {
	f := newServiceFixture(t, Config{})
	a := f.create(t, "alice", room.Settings{})
	b := f.create(t, "bob", room.Settings{MaxPlayers: 2})
	f.join(t, "carol", b)

	_ = f.svc.SetReady("carol", true)
	if err := f.svc.StartRound("bob"); err != nil {
		t.Fatal(err)
	}

	if st := f.svc.Stats(); st != (Stats{TotalRooms: 2, ActiveGames: 1, WaitingRooms: 1, TotalPlayers: 3}) {
		t.Errorf("stats = %+v", st)
	}

	waiting := f.svc.WaitingRooms()
	if len(waiting) != 1 || waiting[0].Code != a {
		t.Errorf("waiting rooms = %+v", waiting)
	}

	cases := []struct {
		code  string
		valid bool
		msg   string
	}{
		{a, true, ""},
		{b, false, "Game has already started"},
		{"ZZZZZZ", false, "Room not found"},
	}
	for _, tc := range cases {
		v, err := f.svc.Validate(tc.code)
		if err != nil {
			t.Fatalf("Validate(%s): %v", tc.code, err)
		}
		if v.Valid != tc.valid || v.Message != tc.msg {
			t.Errorf("Validate(%s) = %+v", tc.code, v)
		}
	}

	if _, err := f.svc.Validate("bad"); !errors.Is(err, registry.ErrInvalidCode) {
		t.Errorf("malformed code: %v", err)
	}
}

func TestServiceSweepsFinishedRooms(t *testing.T) {
	f := newServiceFixture(t, Config{})
	code := f.create(t, "solo", room.Settings{})

	if err := f.svc.StartRound("solo"); err != nil {
		t.Fatal(err)
	}
	for range 5 {
		_ = f.svc.Move("solo", "right")
	}

	if lobby, _ := f.svc.Lobby(code); lobby.Status != room.Finished {
		t.Fatalf("status = %s", lobby.Status)
	}

	if evicted := f.rooms.Sweep(); len(evicted) != 0 {
		t.Fatalf("fresh room evicted: %v", evicted)
	}

	f.clock.advance(registry.DefaultIdleTimeout + time.Second)

	if evicted := f.rooms.Sweep(); len(evicted) != 1 || evicted[0] != code {
		t.Fatalf("evicted = %v", evicted)
	}
	if _, err := f.svc.Room("solo"); !errors.Is(err, ErrNotInRoom) {
		t.Errorf("member of evicted room still bound: %v", err)
	}
}

// finishedRoom plays one round to the end with a host and one guest.
func finishedRoom(t *testing.T, f *serviceFixture) string {
	t.Helper()

	code := f.create(t, "host", room.Settings{})
	f.join(t, "guest", code)

	if err := f.svc.SetReady("guest", true); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.StartRound("host"); err != nil {
		t.Fatal(err)
	}
	for range 5 {
		_ = f.svc.Move("host", "right")
		_ = f.svc.Move("guest", "right")
	}

	if lobby, _ := f.svc.Lobby(code); lobby.Status != room.Finished {
		t.Fatalf("status = %s", lobby.Status)
	}

	return code
}

func TestSweepNotifiesMembers(t *testing.T) {
	f := newServiceFixture(t, Config{})
	code := finishedRoom(t, f)

	f.clock.advance(registry.DefaultIdleTimeout + time.Second)

	if evicted := f.rooms.Sweep(); len(evicted) != 1 || evicted[0] != code {
		t.Fatalf("evicted = %v", evicted)
	}

	s, ok := f.out.last(TypeRoomClosed)
	if !ok || len(s.to) != 2 || !slices.Contains(s.to, "host") || !slices.Contains(s.to, "guest") {
		t.Fatalf("room_closed = %+v", s)
	}
	if msg := s.msg.Data.(RoomClosed).Message; msg == "" {
		t.Error("room_closed carries no message")
	}
}

func TestSweepSparesRestartedRoom(t *testing.T) {
	f := newServiceFixture(t, Config{})
	code := finishedRoom(t, f)
	hub, _ := f.rooms.Get(code)

	f.clock.advance(registry.DefaultIdleTimeout + time.Second)

	// The host comes back just as the room crosses the idle timeout.
	if err := f.svc.RestartRound("host"); err != nil {
		t.Fatal(err)
	}

	if hub.Evict(f.clock.now(), registry.DefaultIdleTimeout) {
		t.Fatal("restarted room evicted")
	}
	if evicted := f.rooms.Sweep(); len(evicted) != 0 {
		t.Fatalf("evicted = %v", evicted)
	}
	if f.out.count(TypeRoomClosed) != 0 {
		t.Error("room_closed sent for a live room")
	}
	if err := f.svc.SetReady("guest", true); err != nil {
		t.Errorf("room unusable after sweep: %v", err)
	}
}

func TestHubRejectsActionsAfterEviction(t *testing.T) {
	f := newServiceFixture(t, Config{})
	code := finishedRoom(t, f)
	hub, _ := f.rooms.Get(code)

	f.clock.advance(registry.DefaultIdleTimeout + time.Second)

	if !hub.Evict(f.clock.now(), registry.DefaultIdleTimeout) {
		t.Fatal("idle finished room not evicted")
	}
	if err := hub.do(func(*Engine) error { return nil }); !errors.Is(err, ErrRoomClosed) {
		t.Errorf("action after eviction = %v", err)
	}
	if !hub.Evict(f.clock.now(), registry.DefaultIdleTimeout) {
		t.Error("second eviction of a closed hub refused")
	}
}

func TestHubRecoversFromPanic(t *testing.T) {
	f := newServiceFixture(t, Config{})
	code := f.create(t, "host", room.Settings{})

	hub, _ := f.rooms.Get(code)

	err := hub.do(func(*Engine) error {
		panic("boom")
	})
	if !errors.Is(err, ErrActionFailed) {
		t.Errorf("panicking action returned %v", err)
	}

	if err := f.svc.SetReady("host", true); err != nil {
		t.Errorf("hub dead after panic: %v", err)
	}
}

func TestHubClosedRejectsActions(t *testing.T) {
	f := newServiceFixture(t, Config{})
	code := f.create(t, "host", room.Settings{})

	hub, _ := f.rooms.Get(code)
	hub.Close()
	hub.Close()

	if err := hub.do(func(*Engine) error { return nil }); !errors.Is(err, ErrRoomClosed) {
		t.Errorf("closed hub returned %v", err)
	}
}

func TestHubClockTicks(t *testing.T) {
	f := newServiceFixture(t, Config{
		Now:          time.Now,
		TickInterval: 10 * time.Millisecond,
	})
	f.create(t, "host", room.Settings{})

	if err := f.svc.StartRound("host"); err != nil {
		t.Fatal(err)
	}

	eventually(t, "timer ticks", func() bool {
		return f.out.count(TypeTimerTick) >= 3
	})

	for range 5 {
		_ = f.svc.Move("host", "right")
	}
	if f.out.count(TypeRoundEnded) != 1 {
		t.Fatal("round did not end")
	}

	ticks := f.out.count(TypeTimerTick)
	time.Sleep(50 * time.Millisecond)
	if got := f.out.count(TypeTimerTick); got != ticks {
		t.Errorf("clock kept ticking after the round: %d -> %d", ticks, got)
	}
}

func TestHubLightningExpires(t *testing.T) {
	rules := DefaultRules()
	rules.LightningDuration = 20 * time.Millisecond

	f := newServiceFixture(t, Config{
		Now:   time.Now,
		Rules: rules,
	})
	f.create(t, "host", room.Settings{TunnelMode: true})

	if err := f.svc.StartRound("host"); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.UsePowerUp("host"); err != nil {
		t.Fatal(err)
	}

	eventually(t, "lightning to expire", func() bool {
		return f.out.count(TypeLightningDeactivated) == 1
	})

	view, err := f.svc.Room("host")
	if err != nil {
		t.Fatal(err)
	}
	if view.Players[0].LightningActive || view.Players[0].LightningCharges != 2 {
		t.Errorf("host after expiry: %+v", view.Players[0])
	}
}
