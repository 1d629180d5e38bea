/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gookit/color"
	"golang.org/x/term"
)

var colorLogs = term.IsTerminal(int(os.Stderr.Fd()))

// logf prints a verbose log line. Messages are expected to start with an
// upper-case tag such as "ROUND: ".
func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	stamp := time.Now().Format(logDate)
	msg := fmt.Sprintf(format, args...)

	if colorLogs {
		stamp = color.Gray.Sprint(stamp)
		if tag, rest, ok := strings.Cut(msg, ": "); ok && isTag(tag) {
			msg = tagColor(tag).Sprint(tag) + ": " + rest
		}
	}

	log.Printf("%s | %s", stamp, msg)
}

// tagged returns a logger for the internal packages that prefixes every
// line with tag.
func tagged(cfg *Config, tag string) func(format string, args ...any) {
	return func(format string, args ...any) {
		logf(cfg, tag+": "+format, args...)
	}
}

func isTag(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func tagColor(tag string) color.Color {
	switch tag {
	case "ERROR":
		return color.Red
	case "START", "SERVE":
		return color.Green
	case "SWEEP":
		return color.Yellow
	default:
		return color.Cyan
	}
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
