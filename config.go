/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/mazerace/internal/room"
	"github.com/Seednode/mazerace/internal/session"
)

const envPrefix = "MAZERACE"

type Config struct {
	bind    string
	port    int
	prefix  string
	profile bool
	tlsCert string
	tlsKey  string
	verbose bool
	version bool

	maxRooms      int
	maxPlayers    int
	roomTimeout   time.Duration
	sweepInterval time.Duration
	tickInterval  time.Duration

	minDuration     int
	maxDuration     int
	defaultDuration int

	lightningCharges  int
	lightningDuration time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxRooms < 1 {
		return fmt.Errorf("invalid max rooms (must be at least 1): %d", c.maxRooms)
	}
	if c.maxPlayers < room.MinPlayers {
		return fmt.Errorf("invalid max players (must be at least %d): %d", room.MinPlayers, c.maxPlayers)
	}
	if c.roomTimeout <= 0 || c.sweepInterval <= 0 || c.tickInterval <= 0 {
		return errors.New("room timeout, sweep interval and tick interval must be positive")
	}
	if c.minDuration < 1 || c.minDuration > c.maxDuration {
		return fmt.Errorf("invalid round duration range: %d-%d", c.minDuration, c.maxDuration)
	}
	if c.defaultDuration < c.minDuration || c.defaultDuration > c.maxDuration {
		return fmt.Errorf("invalid default duration (must be between %d-%d inclusive): %d",
			c.minDuration, c.maxDuration, c.defaultDuration)
	}
	if c.lightningCharges < 0 {
		return fmt.Errorf("invalid lightning charges: %d", c.lightningCharges)
	}
	if c.lightningDuration <= 0 {
		return fmt.Errorf("invalid lightning duration: %s", c.lightningDuration)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) limits() room.Limits {
	return room.Limits{
		MinDuration:     c.minDuration,
		MaxDuration:     c.maxDuration,
		DefaultDuration: c.defaultDuration,
		MaxPlayers:      c.maxPlayers,
	}
}

func (c *Config) rules() session.Rules {
	r := session.DefaultRules()
	r.LightningCharges = c.lightningCharges
	r.LightningDuration = c.lightningDuration
	return r
}

// loadEnv reads MAZERACE_ENV_FILE, or ./.env when present, into the
// environment. Variables already set take precedence.
func loadEnv() error {
	path := os.Getenv(envPrefix + "_ENV_FILE")
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "mazerace",
		Short:         "Multiplayer maze races over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	limits := room.DefaultLimits()
	rules := session.DefaultRules()

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: MAZERACE_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: MAZERACE_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: MAZERACE_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: MAZERACE_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: MAZERACE_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: MAZERACE_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: MAZERACE_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: MAZERACE_VERSION)")

	fs.IntVar(&cfg.maxRooms, "max-rooms", 50, "maximum number of concurrent rooms (env: MAZERACE_MAX_ROOMS)")
	fs.IntVar(&cfg.maxPlayers, "max-players", limits.MaxPlayers, "largest room size a host may pick (env: MAZERACE_MAX_PLAYERS)")
	fs.DurationVar(&cfg.roomTimeout, "room-timeout", 10*time.Minute, "time before idle rooms are closed (env: MAZERACE_ROOM_TIMEOUT)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", time.Minute, "time between idle room sweeps (env: MAZERACE_SWEEP_INTERVAL)")
	fs.DurationVar(&cfg.tickInterval, "tick-interval", time.Second, "time between round clock ticks (env: MAZERACE_TICK_INTERVAL)")
	fs.IntVar(&cfg.minDuration, "min-duration", limits.MinDuration, "shortest round a host may pick, in seconds (env: MAZERACE_MIN_DURATION)")
	fs.IntVar(&cfg.maxDuration, "max-duration", limits.MaxDuration, "longest round a host may pick, in seconds (env: MAZERACE_MAX_DURATION)")
	fs.IntVar(&cfg.defaultDuration, "default-duration", limits.DefaultDuration, "round length when the host picks none, in seconds (env: MAZERACE_DEFAULT_DURATION)")
	fs.IntVar(&cfg.lightningCharges, "lightning-charges", rules.LightningCharges, "lightning charges per player per round (env: MAZERACE_LIGHTNING_CHARGES)")
	fs.DurationVar(&cfg.lightningDuration, "lightning-duration", rules.LightningDuration, "how long lightning lasts (env: MAZERACE_LIGHTNING_DURATION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("mazerace v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
