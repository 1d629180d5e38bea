/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Seednode/mazerace/internal/maze"
)

var (
	ErrInvalidSettings = errors.New("invalid room settings")
	ErrInvalidName     = errors.New("invalid username")
)

const (
	MinNameLength = 2
	MaxNameLength = 20
	MinPlayers    = 2
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Settings are chosen by the host at creation time.
type Settings struct {
	Difficulty        maze.Difficulty `json:"difficulty"`
	TimerDuration     int             `json:"timerDuration"`
	MaxPlayers        int             `json:"maxPlayers"`
	EnableCheckpoints bool            `json:"enableCheckpoints"`
	TunnelMode        bool            `json:"tunnelMode"`
	TeamMode          bool            `json:"teamMode"`
}

// Limits bound the values a host may pick.
type Limits struct {
	MinDuration     int
	MaxDuration     int
	DefaultDuration int
	MaxPlayers      int
}

func DefaultLimits() Limits {
	return Limits{
		MinDuration:     120,
		MaxDuration:     600,
		DefaultDuration: 300,
		MaxPlayers:      8,
	}
}

// Normalize fills unset fields with defaults and rejects out-of-range values.
// Team mode always plays with checkpoints.
func (l Limits) Normalize(s Settings) (Settings, error) {
	if s.Difficulty == "" {
		s.Difficulty = maze.Hard
	}
	d, err := maze.ParseDifficulty(string(s.Difficulty))
	if err != nil {
		return Settings{}, fmt.Errorf("%w: difficulty must be one of: easy, medium, hard", ErrInvalidSettings)
	}
	s.Difficulty = d

	if s.TimerDuration == 0 {
		s.TimerDuration = l.DefaultDuration
	}
	if s.TimerDuration < l.MinDuration || s.TimerDuration > l.MaxDuration {
		return Settings{}, fmt.Errorf("%w: timer duration must be between %d and %d seconds",
			ErrInvalidSettings, l.MinDuration, l.MaxDuration)
	}

	if s.MaxPlayers == 0 {
		s.MaxPlayers = l.MaxPlayers
	}
	if s.MaxPlayers < MinPlayers || s.MaxPlayers > l.MaxPlayers {
		return Settings{}, fmt.Errorf("%w: max players must be between %d and %d",
			ErrInvalidSettings, MinPlayers, l.MaxPlayers)
	}

	if s.TeamMode {
		s.EnableCheckpoints = true
	}

	return s, nil
}

// ValidateName returns the trimmed display name.
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)

	switch {
	case trimmed == "":
		return "", fmt.Errorf("%w: username is required", ErrInvalidName)
	case len(trimmed) < MinNameLength || len(trimmed) > MaxNameLength:
		return "", fmt.Errorf("%w: username must be between %d and %d characters",
			ErrInvalidName, MinNameLength, MaxNameLength)
	case !namePattern.MatchString(trimmed):
		return "", fmt.Errorf("%w: username can only contain letters, numbers, underscores, and hyphens", ErrInvalidName)
	}

	return trimmed, nil
}
