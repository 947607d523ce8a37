// Package signup validates new-account passwords and submits registrations.
package signup

import (
	"context"
	"errors"
	"regexp"
	"unicode/utf8"

	"github.com/sdibella/coinfolio/internal/accounts"
)

const (
	MinLength = 8

	MsgInvalidPassword = "Password does not meet the requirements."
	MsgRegistered      = "Registration successful! Please log in."
)

var ErrInvalidPassword = errors.New(MsgInvalidPassword)

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// Rule is one password requirement.
type Rule struct {
	Key   string
	Label string
	Test  func(password string) bool
}

// Rules are checked independently; all must pass.
var Rules = []Rule{
	{Key: "length", Label: "At least 8 characters", Test: func(p string) bool { return utf8.RuneCountInString(p) >= MinLength }},
	{Key: "uppercase", Label: "Contains an uppercase letter", Test: upperRe.MatchString},
	{Key: "number", Label: "Contains a number", Test: digitRe.MatchString},
	{Key: "special", Label: "Contains a special character", Test: specialRe.MatchString},
}

// Check is one rule's outcome for a password.
type Check struct {
	Key   string
	Label string
	OK    bool
}

// Evaluate runs every rule against password, in rule order.
func Evaluate(password string) []Check {
	out := make([]Check, len(Rules))
	for i, r := range Rules {
		out[i] = Check{Key: r.Key, Label: r.Label, OK: r.Test(password)}
	}
	return out
}

// Valid reports whether password passes every rule.
func Valid(password string) bool {
	for _, r := range Rules {
		if !r.Test(password) {
			return false
		}
	}
	return true
}

// Registrar creates accounts; *accounts.Client satisfies it.
type Registrar interface {
	Register(ctx context.Context, reg accounts.Registration) error
}

// Form is the signup form's input.
type Form struct {
	Email       string
	Password    string
	DisplayName string
}

// Result is what the signup page renders after a submit.
type Result struct {
	Checks  []Check
	Touched bool   // show rule checklist
	Error   string // inline error banner
	Message string // success message carried to the login page
}

// Submit validates the password and, when every rule passes, registers the
// account. Invalid passwords never reach the server.
func Submit(ctx context.Context, r Registrar, f Form) (Result, error) {
	res := Result{Checks: Evaluate(f.Password)}
	if !Valid(f.Password) {
		res.Touched = true
		res.Error = MsgInvalidPassword
		return res, ErrInvalidPassword
	}

	err := r.Register(ctx, accounts.Registration{
		Email:       f.Email,
		Password:    f.Password,
		DisplayName: f.DisplayName,
	})
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.Message = MsgRegistered
	return res, nil
}
