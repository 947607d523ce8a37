package dashboard

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/sdibella/coinfolio/internal/accounts"
	"github.com/sdibella/coinfolio/internal/api"
	"github.com/sdibella/coinfolio/internal/journal"
	"github.com/sdibella/coinfolio/internal/signup"
	"github.com/sdibella/coinfolio/internal/toast"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	view := IndexView{}

	if s.app.Session.Authenticated() {
		profile, err := s.app.Accounts.Profile(r.Context())
		if errors.Is(err, api.ErrSessionExpired) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("loading profile")
		} else {
			view.Profile = &profile
		}
	}

	if path := s.app.JournalPath(); path != "" {
		events, err := journal.Read(path)
		if err != nil {
			s.log.Warn().Err(err).Msg("reading journal")
		}
		analyzer := NewAnalyzer()
		analyzer.ProcessEvents(events)
		view.Activity = analyzer.Summary()
		view.Simulations = analyzer.Simulations()
	}

	s.render(w, http.StatusOK, "index.html", "Home", "", view)
}

func (s *Server) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "signup.html", "Sign up", "", SignupView{Checks: signup.Evaluate("")})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "signup.html", "Sign up", "Invalid form submission", SignupView{})
		return
	}
	form := signup.Form{
		Email:       strings.TrimSpace(r.PostFormValue("email")),
		Password:    r.PostFormValue("password"),
		DisplayName: strings.TrimSpace(r.PostFormValue("display_name")),
	}

	res, err := signup.Submit(r.Context(), s.app.Accounts, form)
	if err != nil {
		if !errors.Is(err, signup.ErrInvalidPassword) {
			s.log.Warn().Err(err).Str("email", form.Email).Msg("registration failed")
		}
		s.render(w, http.StatusUnprocessableEntity, "signup.html", "Sign up", res.Error, SignupView{
			Email:       form.Email,
			DisplayName: form.DisplayName,
			Checks:      res.Checks,
			Touched:     res.Touched,
		})
		return
	}

	s.app.Toasts.Show(res.Message, toast.Success, toast.DefaultDuration)
	http.Redirect(w, r, "/login?email="+url.QueryEscape(form.Email), http.StatusSeeOther)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login.html", "Log in", "", LoginView{Email: r.URL.Query().Get("email")})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "login.html", "Log in", "Invalid form submission", LoginView{})
		return
	}
	creds := accounts.Credentials{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}

	if _, err := s.app.Login(r.Context(), creds); err != nil {
		s.render(w, http.StatusUnprocessableEntity, "login.html", "Log in", err.Error(), LoginView{Email: creds.Email})
		return
	}

	s.tracker.Load(r.Context())
	http.Redirect(w, r, "/simulations", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Logout(r.Context()); err != nil {
		s.app.Toasts.Show(err.Error(), toast.Error, toast.DefaultDuration)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleToasts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Toasts.List())
}
