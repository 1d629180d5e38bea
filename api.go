/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/mazerace/internal/registry"
	"github.com/Seednode/mazerace/internal/session"
)

const qrSize = 320

type apiError struct {
	Error string `json:"error"`
}

type validateRequest struct {
	RoomCode string `json:"roomCode"`
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	_, err = w.Write(data)

	return err
}

// apiHandle adapts fn into a route that logs and writes its JSON result.
func apiHandle(cfg *Config, errs chan<- error, fn func(r *http.Request, p httprouter.Params) (int, any)) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		status, body := fn(r, p)

		if err := writeJSON(cfg, w, status, body); err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: %s %s (%d) to %s in %s",
			r.Method,
			r.URL.Path,
			status,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func lookupStatus(err error) (int, any) {
	switch {
	case errors.Is(err, session.ErrRoomNotFound):
		return http.StatusNotFound, apiError{Error: "Room not found"}
	case errors.Is(err, registry.ErrInvalidCode):
		return http.StatusBadRequest, apiError{Error: "Invalid room code"}
	default:
		return http.StatusInternalServerError, apiError{Error: err.Error()}
	}
}

func registerAPI(cfg *Config, path string, mux *httprouter.Router, svc *session.Service, errs chan<- error) {
	mux.GET(path+"/health", apiHandle(cfg, errs, func(*http.Request, httprouter.Params) (int, any) {
		return http.StatusOK, map[string]string{
			"status":    "ok",
			"version":   releaseVersion,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	}))

	mux.GET(path+"/stats", apiHandle(cfg, errs, func(*http.Request, httprouter.Params) (int, any) {
		return http.StatusOK, svc.Stats()
	}))

	mux.GET(path+"/rooms", apiHandle(cfg, errs, func(*http.Request, httprouter.Params) (int, any) {
		return http.StatusOK, svc.WaitingRooms()
	}))

	mux.GET(path+"/rooms/:code", apiHandle(cfg, errs, func(_ *http.Request, p httprouter.Params) (int, any) {
		sum, err := svc.Lobby(p.ByName("code"))
		if err != nil {
			return lookupStatus(err)
		}
		return http.StatusOK, sum
	}))

	mux.POST(path+"/rooms/validate", apiHandle(cfg, errs, func(r *http.Request, _ httprouter.Params) (int, any) {
		var req validateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxMessageSize)).Decode(&req); err != nil {
			return http.StatusBadRequest, apiError{Error: "Invalid request body"}
		}

		v, err := svc.Validate(req.RoomCode)
		if errors.Is(err, registry.ErrInvalidCode) {
			return http.StatusOK, session.Validation{Message: "Invalid room code"}
		}
		if err != nil {
			return lookupStatus(err)
		}
		return http.StatusOK, v
	}))
}

// serveQR renders a PNG QR code that opens the join page for a room.
func serveQR(cfg *Config, svc *session.Service) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		sum, err := svc.Lobby(p.ByName("code"))
		if err != nil {
			status, _ := lookupStatus(err)
			http.Error(w, http.StatusText(status), status)
			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/?room=" + sum.Code

		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		securityHeaders(cfg, w)

		_, _ = w.Write(png)

		logf(cfg, "SERVE: QR code for room %s (%s) to %s in %s",
			sum.Code,
			humanReadableSize(int64(len(png))),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
