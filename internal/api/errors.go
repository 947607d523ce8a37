package api

import (
	"errors"
	"fmt"

	"github.com/sdibella/coinfolio/internal/errmsg"
)

var (
	// ErrRequestFailed wraps transport failures: the server was never heard from.
	ErrRequestFailed = errors.New("request failed")

	// ErrSessionExpired is returned when a 401 could not be recovered by refreshing.
	ErrSessionExpired = errors.New("Session expired. Please login again.")

	// ErrLogoutFailed is returned when the logout request could not be sent.
	ErrLogoutFailed = errors.New("Logout failed. Try again.")
)

// APIError is a non-2xx response. Message is the server's detail when it
// sent one, else a generic status line.
type APIError struct {
	Status  int
	Message string
	Payload errmsg.Payload
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorPayload exposes the decoded body to errmsg.Friendly.
func (e *APIError) ErrorPayload() errmsg.Payload {
	return e.Payload
}

func newAPIError(status int, body []byte) *APIError {
	payload, err := errmsg.Parse(body)
	if err != nil {
		// Non-JSON body (HTML error page, proxy text). Keep it as a string.
		payload = errmsg.String(string(body))
		if len(body) == 0 {
			payload = errmsg.Payload{}
		}
	}

	msg, ok := errmsg.Detail(payload)
	if !ok {
		msg = fmt.Sprintf("HTTP error! status: %d", status)
	}
	return &APIError{Status: status, Message: msg, Payload: payload}
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
