// Package accounts wraps registration, login and profile endpoints.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sdibella/coinfolio/internal/api"
	"github.com/sdibella/coinfolio/internal/errmsg"
)

// Session is the part of api.Session the account calls use.
type Session interface {
	AuthFetch(ctx context.Context, path string, opts api.RequestOptions, anonymous bool, out any) error
	SetAccessToken(token string)
}

type Client struct {
	session Session
	log     zerolog.Logger
}

func NewClient(s Session, log zerolog.Logger) *Client {
	return &Client{session: s, log: log.With().Str("component", "accounts").Logger()}
}

// --- API Types ---

type Registration struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Profile struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	DisplayName       string `json:"display_name"`
	PreferredCurrency string `json:"preferred_currency"`
	Timezone          string `json:"timezone"`
	DateFormat        string `json:"date_format"`
}

type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	User        *Profile `json:"user,omitempty"`
}

// --- API Methods ---

// Register creates an account. The server's detail message, when present,
// becomes the error text; otherwise "Registration failed".
func (c *Client) Register(ctx context.Context, reg Registration) error {
	err := c.session.AuthFetch(ctx, "/accounts/register/", api.RequestOptions{
		Method: http.MethodPost,
		Body:   reg,
	}, true, nil)
	if err != nil {
		c.log.Debug().Err(err).Str("email", reg.Email).Msg("register failed")
		return failure(err, "Registration failed")
	}
	c.log.Info().Str("email", reg.Email).Msg("registered")
	return nil
}

// Login authenticates and stores the returned access token in the session.
// The refresh cookie set by the server lands in the session's jar.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResponse, error) {
	var resp LoginResponse
	err := c.session.AuthFetch(ctx, "/accounts/login/", api.RequestOptions{
		Method: http.MethodPost,
		Body:   creds,
	}, true, &resp)
	if err != nil {
		c.log.Debug().Err(err).Str("email", creds.Email).Msg("login failed")
		return LoginResponse{}, failure(err, "Login failed")
	}
	if resp.AccessToken != "" {
		c.session.SetAccessToken(resp.AccessToken)
	}
	c.log.Info().Str("email", creds.Email).Msg("logged in")
	return resp, nil
}

// Profile returns the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var p Profile
	if err := c.session.AuthFetch(ctx, "/accounts/profile/", api.RequestOptions{}, false, &p); err != nil {
		return Profile{}, fmt.Errorf("fetching profile: %w", err)
	}
	return p, nil
}

// Health pings the server's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	if err := c.session.AuthFetch(ctx, "/health/", api.RequestOptions{}, true, nil); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

// FailureError keeps the underlying error for errors.Is/As while exposing
// only the server detail (or a fallback) as its message.
type FailureError struct {
	Message string
	Err     error
}

func (e *FailureError) Error() string { return e.Message }
func (e *FailureError) Unwrap() error { return e.Err }

func failure(err error, fallback string) error {
	msg := fallback
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if d, ok := errmsg.Detail(apiErr.Payload); ok {
			msg = d
		}
	}
	return &FailureError{Message: msg, Err: err}
}
