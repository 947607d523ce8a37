// Package dashboard serves the local web front end: signup, login,
// watchlist and simulation pages rendered from embedded templates.
package dashboard

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/sdibella/coinfolio/internal/api"
	"github.com/sdibella/coinfolio/internal/app"
	"github.com/sdibella/coinfolio/internal/watchlist"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config holds server configuration
type Config struct {
	App     *app.App
	Tracker *watchlist.Tracker
	Live    http.Handler // served at /ws; nil disables it
	Addr    string
	Log     zerolog.Logger
	Now     func() time.Time
}

// Server is the dashboard HTTP server.
type Server struct {
	app       *app.App
	tracker   *watchlist.Tracker
	router    *chi.Mux
	server    *http.Server
	templates *template.Template
	log       zerolog.Logger
	now       func() time.Time
	unfollow  func()
}

func New(cfg Config) (*Server, error) {
	s := &Server{
		app:     cfg.App,
		tracker: cfg.Tracker,
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "dashboard").Logger(),
		now:     cfg.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	// A tracker built here follows the watchlist bus itself; a caller
	// supplying one also owns its subscription.
	if s.tracker == nil {
		s.tracker = cfg.App.Tracker()
		s.unfollow = s.tracker.Follow(context.Background())
	}

	funcMap := template.FuncMap{
		"toupper":  strings.ToUpper,
		"datetime": displayTime,
		"mark": func(ok bool) string {
			if ok {
				return "✓"
			}
			return "✗"
		},
	}
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = tmpl

	s.setupMiddleware()
	s.setupRoutes(cfg.Live)

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
}

func (s *Server) setupRoutes(live http.Handler) {
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if live != nil {
		s.router.Handle("/ws", live)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/", s.handleIndex)
		r.Get("/signup", s.handleSignupForm)
		r.Post("/signup", s.handleSignup)
		r.Get("/login", s.handleLoginForm)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/watchlist", s.handleWatchlist)
			r.Post("/watchlist", s.handleWatchAdd)
			r.Post("/watchlist/{coinID}/remove", s.handleWatchRemove)

			r.Get("/simulations", s.handleSimulations)
			r.Post("/simulations", s.handleSimulationCreate)
			r.Get("/simulations/{id}", s.handleSimulation)
			r.Post("/simulations/{id}/delete", s.handleSimulationDelete)
			r.Post("/simulations/{id}/positions", s.handlePositionAdd)
			r.Post("/transactions/{id}/delete", s.handleTransactionDelete)
		})

		r.Route("/api", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
				AllowedMethods: []string{"GET", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Content-Type"},
				MaxAge:         300,
			}))
			r.Use(s.requireAuthAPI)
			r.Get("/series/{id}", s.handleSeries)
			r.Get("/toasts", s.handleToasts)
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown; it returns http.ErrServerClosed then.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Dashboard starting")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down dashboard")
	if s.unfollow != nil {
		s.unfollow()
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// requireAuth sends anonymous visitors to the login page.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.app.Session.Authenticated() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionEnded sends the browser to the login page when err, or a call made
// while serving r, ended the session. The expiry toast shows there.
func (s *Server) sessionEnded(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, api.ErrSessionExpired) && s.app.Session.Authenticated() {
		return false
	}
	s.log.Info().Str("path", r.URL.Path).Msg("session expired, redirecting to login")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
	return true
}

func (s *Server) requireAuthAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.app.Session.Authenticated() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// render executes a page template into a buffer first so a template error
// never leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, status int, name, title, errMsg string, data any) {
	page := Page{
		Title:         title,
		Authenticated: s.app.Session.Authenticated(),
		Currency:      s.app.Config.Currency,
		Toasts:        s.app.Toasts.List(),
		Error:         errMsg,
		Data:          data,
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, page); err != nil {
		s.log.Error().Err(err).Str("template", name).Msg("Failed to render template")
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// displayTime renders an RFC 3339 timestamp like "Feb 10, 2:15 PM"; other
// strings pass through.
func displayTime(s string) string {
	if s == "" {
		return "-"
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Local().Format("Jan 2, 3:04 PM")
		}
	}
	return s
}
