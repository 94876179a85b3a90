// Package server exposes the lights over HTTP and websockets.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"lights-controller/internal/config"
	"lights-controller/internal/core"
	"lights-controller/internal/lights"
	"lights-controller/internal/logging"
	"lights-controller/internal/metrics"
	"lights-controller/internal/scheduler"
	"lights-controller/internal/scripts"
)

const (
	maxMessageSize = 64 << 10
	sendTimeout    = 5 * time.Second
)

// Sender accepts state changes. lights.Remote satisfies it.
type Sender interface {
	Send(ctx context.Context, change core.AppStateChange) error
}

type Options struct {
	Config config.ServerConfig
	Remote Sender
	State  *core.StateWatch
	// Schedules and Scripts are optional; their APIs are not mounted
	// without them.
	Schedules *scheduler.Scheduler
	Scripts   *scripts.Library
}

// Server manages the HTTP, HTTPS and websocket endpoints.
type Server struct {
	cfg       config.ServerConfig
	remote    Sender
	state     *core.StateWatch
	schedules *scheduler.Scheduler
	scripts   *scripts.Library
	hub       *Hub
	upgrader  websocket.Upgrader
	log       zerolog.Logger

	mu       sync.Mutex
	servers  []*http.Server
	shutdown bool
}

func New(opts Options) *Server {
	s := &Server{
		cfg:       opts.Config,
		remote:    opts.Remote,
		state:     opts.State,
		schedules: opts.Schedules,
		scripts:   opts.Scripts,
		hub:       NewHub(),
		log:       logging.Component("server"),
	}
	// Without an allow list the upgrader keeps its same-host check.
	if len(s.cfg.AllowedOrigins) > 0 {
		s.upgrader.CheckOrigin = s.checkOrigin
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Non-browser clients send no Origin.
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(origin, allowed) {
			return true
		}
	}
	s.log.Warn().Str("origin", origin).Msg("websocket connection blocked: origin not allowed")
	return false
}

// Run drives the websocket hub until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.hub.Follow(ctx, s.state)
	}()
	wg.Wait()
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/change", s.handleChange)
	if s.schedules != nil {
		mux.HandleFunc("GET /api/schedules", s.handleListSchedules)
		mux.HandleFunc("POST /api/schedules", s.handleAddSchedule)
		mux.HandleFunc("DELETE /api/schedules/{id}", s.handleRemoveSchedule)
	}
	if s.scripts != nil {
		mux.HandleFunc("GET /api/scripts", s.handleListScripts)
		mux.HandleFunc("GET /api/scripts/{name}", s.handleGetScript)
		mux.HandleFunc("PUT /api/scripts/{name}", s.handleSaveScript)
		mux.HandleFunc("DELETE /api/scripts/{name}", s.handleDeleteScript)
	}
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("/ws", s.handleWebSocket)
	if s.cfg.WebDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.WebDir)))
	}
	return mux
}

// ListenAndServe serves HTTPS when TLS is configured, optionally
// redirecting plain HTTP to it, and plain HTTP otherwise. It returns
// nil after Shutdown.
func (s *Server) ListenAndServe() error {
	handler := s.Handler()

	if !s.cfg.TLS() {
		srv := &http.Server{Addr: s.cfg.HTTPAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
		if !s.track(srv) {
			return nil
		}
		s.log.Info().Str("addr", srv.Addr).Msg("http server listening")
		return ignoreClosed(srv.ListenAndServe())
	}

	errc := make(chan error, 2)
	if s.cfg.RedirectHTTP {
		redirect := &http.Server{
			Addr:              s.cfg.HTTPAddr,
			Handler:           http.HandlerFunc(s.redirectToHTTPS),
			ReadHeaderTimeout: 10 * time.Second,
		}
		if s.track(redirect) {
			go func() {
				s.log.Info().Str("addr", redirect.Addr).Msg("http redirect listening")
				errc <- ignoreClosed(redirect.ListenAndServe())
			}()
		}
	}

	tlsSrv := &http.Server{Addr: s.cfg.HTTPSAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	if !s.track(tlsSrv) {
		return nil
	}
	go func() {
		s.log.Info().Str("addr", tlsSrv.Addr).Msg("https server listening")
		errc <- ignoreClosed(tlsSrv.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey))
	}()

	// The first failure wins; a clean shutdown reports nil from both.
	if err := <-errc; err != nil {
		return err
	}
	if s.cfg.RedirectHTTP {
		return <-errc
	}
	return nil
}

// Shutdown gracefully stops every listener started by ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	servers := s.servers
	s.servers = nil
	s.mu.Unlock()

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) track(srv *http.Server) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.servers = append(s.servers, srv)
	return true
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) redirectToHTTPS(w http.ResponseWriter, r *http.Request) {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if _, port, err := net.SplitHostPort(s.cfg.HTTPSAddr); err == nil && port != "443" {
		host = net.JoinHostPort(host, port)
	}
	http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusMovedPermanently)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorMessage(err))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	state, _ := s.state.Latest()
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleChange(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	change, err := core.DecodeChange(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.send(r.Context(), change); err != nil {
		if errors.Is(err, lights.ErrStopped) {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeError(w, http.StatusGatewayTimeout, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) send(ctx context.Context, change core.AppStateChange) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return s.remote.Send(ctx, change)
}

type scheduleRequest struct {
	Spec    string `json:"spec"`
	Command string `json:"command"`
}

func (s *Server) handleListSchedules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.schedules.List())
}

func (s *Server) handleAddSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxMessageSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := s.schedules.Add(req.Spec, req.Command)
	if err != nil {
		if entry.ID != 0 {
			// Added but not persisted.
			s.log.Error().Err(err).Msg("schedule not saved")
			writeJSON(w, http.StatusCreated, entry)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleRemoveSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.schedules.Remove(id); err != nil {
		if errors.Is(err, scheduler.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		s.log.Error().Err(err).Msg("schedule not saved")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListScripts(w http.ResponseWriter, _ *http.Request) {
	names, err := s.scripts.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	code, err := s.scripts.Read(r.PathValue("name"))
	if err != nil {
		writeError(w, scriptErrorStatus(err), err)
		return
	}
	w.Header().Set("Content-Type", "text/x-lua; charset=utf-8")
	_, _ = io.WriteString(w, code)
}

func (s *Server) handleSaveScript(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.scripts.Save(r.PathValue("name"), string(body)); err != nil {
		writeError(w, scriptErrorStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteScript(w http.ResponseWriter, r *http.Request) {
	if err := s.scripts.Delete(r.PathValue("name")); err != nil {
		writeError(w, scriptErrorStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func scriptErrorStatus(err error) int {
	switch {
	case errors.Is(err, scripts.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)
	c := &client{conn: conn}

	state, _ := s.state.Latest()
	if err := c.writeJSON(state); err != nil {
		conn.Close()
		return
	}
	if !s.hub.add(c) {
		conn.Close()
		return
	}
	defer s.hub.remove(c)

	limiter := rate.NewLimiter(rate.Limit(s.cfg.WSRateLimit), s.cfg.WSRateBurst)
	log := s.log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	ctx := r.Context()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		change, err := core.DecodeChange(data)
		if err != nil {
			log.Debug().Err(err).Msg("rejected websocket message")
			_ = c.writeJSON(errorMessage(err))
			continue
		}
		if err := s.send(ctx, change); err != nil {
			_ = c.writeJSON(errorMessage(err))
			if errors.Is(err, lights.ErrStopped) {
				return
			}
		}
	}
}
