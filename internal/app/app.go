// Package app wires the service clients shared by the CLI and the
// dashboard around one api.Session.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sdibella/coinfolio/internal/accounts"
	"github.com/sdibella/coinfolio/internal/api"
	"github.com/sdibella/coinfolio/internal/cache"
	"github.com/sdibella/coinfolio/internal/coins"
	"github.com/sdibella/coinfolio/internal/config"
	"github.com/sdibella/coinfolio/internal/currency"
	"github.com/sdibella/coinfolio/internal/journal"
	"github.com/sdibella/coinfolio/internal/simulations"
	"github.com/sdibella/coinfolio/internal/toast"
	"github.com/sdibella/coinfolio/internal/watchlist"
)

const MsgSessionExpired = "Your session has expired. Please log in again."

// App owns every long-lived client. Close releases the cache and journal.
type App struct {
	Config *config.Config
	Log    zerolog.Logger

	Session     *api.Session
	Accounts    *accounts.Client
	Coins       *coins.Client
	Simulations *simulations.Client
	Watchlist   *watchlist.Client
	Currency    *currency.Converter

	Toasts *toast.Center
	Bus    *watchlist.Bus

	cache   *cache.Cache
	journal *journal.Journal
}

// New builds the clients for cfg. A CachePath or JournalPath of "" disables
// that store.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Log:    log,
		Toasts: toast.NewCenter(),
		Bus:    &watchlist.Bus{},
	}

	if cfg.CachePath != "" {
		c, err := cache.Open(cfg.CachePath)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		a.cache = c
	}

	if cfg.JournalPath != "" {
		j, err := journal.New(cfg.JournalPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		a.journal = j
	}

	session, err := api.NewSession(cfg.BaseURL(), api.Options{
		Timeout: cfg.Timeout,
		Logger:  log,
		OnSessionExpired: func() {
			a.Toasts.Show(MsgSessionExpired, toast.Warning, toast.DefaultDuration)
			a.Record(journal.NewSession("expired", "", a.Session.APIRoot()))
		},
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating session: %w", err)
	}
	a.Session = session

	a.Accounts = accounts.NewClient(session, log)
	a.Coins = coins.NewClient(session, a.cache, log)
	a.Simulations = simulations.NewClient(session, log)
	a.Watchlist = watchlist.NewClient(session, log)
	a.Currency = currency.NewConverter(a.Coins, a.cache, log)

	return a, nil
}

// Tracker returns a watchlist tracker bound to the configured currency.
func (a *App) Tracker() *watchlist.Tracker {
	return watchlist.NewTracker(a.Watchlist, a.Coins, a.Bus, a.Config.Currency, a.Log)
}

// Login authenticates and journals the session start.
func (a *App) Login(ctx context.Context, creds accounts.Credentials) (accounts.LoginResponse, error) {
	resp, err := a.Accounts.Login(ctx, creds)
	if err != nil {
		return resp, err
	}
	a.Record(journal.NewSession("login", creds.Email, a.Session.APIRoot()))
	return resp, nil
}

// Logout ends the session and journals it.
func (a *App) Logout(ctx context.Context) error {
	if err := a.Session.Logout(ctx); err != nil {
		return err
	}
	a.Record(journal.NewSession("logout", "", a.Session.APIRoot()))
	return nil
}

// SignIn restores a session from the refresh cookie and falls back to the
// configured credentials.
func (a *App) SignIn(ctx context.Context) error {
	a.Session.Bootstrap(ctx)
	if a.Session.Authenticated() {
		return nil
	}
	if !a.Config.HasCredentials() {
		return errors.New("not logged in: set COINFOLIO_EMAIL and COINFOLIO_PASSWORD")
	}
	_, err := a.Login(ctx, accounts.Credentials{Email: a.Config.Email, Password: a.Config.Password})
	return err
}

// Record appends event to the journal. Failures are logged, not returned.
func (a *App) Record(event any) {
	if a.journal == nil {
		return
	}
	if err := a.journal.Log(event); err != nil {
		a.Log.Warn().Err(err).Msg("journal write failed")
	}
}

// JournalPath returns the journal path, "" when disabled.
func (a *App) JournalPath() string {
	if a.journal == nil {
		return ""
	}
	return a.Config.JournalPath
}

// PruneCache drops expired cache rows and reports how many went per table.
// It is a no-op when the cache is disabled.
func (a *App) PruneCache() (map[string]int64, error) {
	if a.cache == nil {
		return map[string]int64{}, nil
	}
	removed, err := a.cache.DeleteExpired()
	if err != nil {
		return removed, fmt.Errorf("pruning cache: %w", err)
	}
	return removed, nil
}

// Prune is PruneCache for schedulers: failures are logged.
func (a *App) Prune() {
	removed, err := a.PruneCache()
	if err != nil {
		a.Log.Warn().Err(err).Msg("cache prune failed")
		return
	}
	for table, n := range removed {
		if n > 0 {
			a.Log.Debug().Str("table", table).Int64("rows", n).Msg("pruned cache")
		}
	}
}

// Close releases resources. It is safe to call on a partly built App.
func (a *App) Close() error {
	a.Toasts.Close()
	var errs []error
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	return errors.Join(errs...)
}
