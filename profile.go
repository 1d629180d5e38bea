/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http/pprof"

	"github.com/julienschmidt/httprouter"
)

var namedProfiles = []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"}

func registerProfileHandlers(cfg *Config, mux *httprouter.Router) {
	path := cfg.prefix + "/pprof"

	for _, name := range namedProfiles {
		mux.Handler("GET", path+"/"+name, pprof.Handler(name))
	}

	mux.HandlerFunc("GET", path+"/cmdline", pprof.Cmdline)
	mux.HandlerFunc("GET", path+"/profile", pprof.Profile)
	mux.HandlerFunc("GET", path+"/symbol", pprof.Symbol)
	mux.HandlerFunc("GET", path+"/trace", pprof.Trace)

	logf(cfg, "SERVE: Registered profiling handlers under %s/", path)
}
