/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, false},
		{"port too high", func(c *Config) { c.port = 70000 }, false},
		{"no rooms", func(c *Config) { c.maxRooms = 0 }, false},
		{"one player", func(c *Config) { c.maxPlayers = 1 }, false},
		{"zero tick", func(c *Config) { c.tickInterval = 0 }, false},
		{"inverted durations", func(c *Config) { c.minDuration = 700 }, false},
		{"default outside range", func(c *Config) { c.defaultDuration = 60 }, false},
		{"negative charges", func(c *Config) { c.lightningCharges = -1 }, false},
		{"no charges", func(c *Config) { c.lightningCharges = 0 }, true},
		{"zero lightning", func(c *Config) { c.lightningDuration = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(cfg)

			if err := cfg.validate(); (err == nil) != tt.ok {
				t.Errorf("validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestConfigDerived(t *testing.T) {
	cfg := testConfig()
	cfg.lightningCharges = 5
	cfg.lightningDuration = 3 * time.Second

	rules := cfg.rules()
	if rules.LightningCharges != 5 || rules.LightningDuration != 3*time.Second || len(rules.Warnings) != 3 {
		t.Errorf("rules = %+v", rules)
	}

	limits := cfg.limits()
	if limits.MinDuration != 120 || limits.MaxDuration != 600 || limits.DefaultDuration != 300 || limits.MaxPlayers != 8 {
		t.Errorf("limits = %+v", limits)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("MAZERACE_TEST_LOADED=yes\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MAZERACE_ENV_FILE", path)
	t.Setenv("MAZERACE_TEST_LOADED", "")
	os.Unsetenv("MAZERACE_TEST_LOADED")

	if err := loadEnv(); err != nil {
		t.Fatalf("loadEnv() = %v", err)
	}
	if got := os.Getenv("MAZERACE_TEST_LOADED"); got != "yes" {
		t.Errorf("MAZERACE_TEST_LOADED = %q, want yes", got)
	}

	t.Setenv("MAZERACE_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	if err := loadEnv(); err == nil {
		t.Error("loadEnv() with a missing file succeeded")
	}
}

func TestNewCmdReadsEnvironment(t *testing.T) {
	t.Setenv("MAZERACE_PORT", "9090")
	t.Setenv("MAZERACE_MAX_ROOMS", "7")

	cfg := &Config{}
	_ = newCmd(cfg)

	if cfg.port != 9090 || cfg.maxRooms != 7 {
		t.Errorf("port, maxRooms = %d, %d, want 9090, 7", cfg.port, cfg.maxRooms)
	}
	if cfg.tickInterval != time.Second {
		t.Errorf("tickInterval = %s, want 1s", cfg.tickInterval)
	}
}

func TestIsTag(t *testing.T) {
	tests := map[string]bool{
		"ROUND": true,
		"SERVE": true,
		"":      false,
		"Room":  false,
		"A1":    false,
	}

	for in, want := range tests {
		if got := isTag(in); got != want {
			t.Errorf("isTag(%q) = %v, want %v", in, got, want)
		}
	}
}
