package signup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdibella/coinfolio/internal/accounts"
)

type fakeRegistrar struct {
	got []accounts.Registration
	err error
}

func (f *fakeRegistrar) Register(ctx context.Context, reg accounts.Registration) error {
	f.got = append(f.got, reg)
	return f.err
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		password string
		want     map[string]bool
	}{
		{"", map[string]bool{"length": false, "uppercase": false, "number": false, "special": false}},
		{"abcdefgh", map[string]bool{"length": true, "uppercase": false, "number": false, "special": false}},
		{"Abcdefg1", map[string]bool{"length": true, "uppercase": true, "number": true, "special": false}},
		{"Abcdef1!", map[string]bool{"length": true, "uppercase": true, "number": true, "special": true}},
		{"A1 ", map[string]bool{"length": false, "uppercase": true, "number": true, "special": true}},
		{"ÁBCDEFG1", map[string]bool{"length": true, "uppercase": true, "number": true, "special": true}},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			checks := Evaluate(tt.password)
			require.Len(t, checks, 4)
			got := map[string]bool{}
			for _, c := range checks {
				got[c.Key] = c.OK
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("Sup3r$ecret"))
	assert.False(t, Valid("Sup3rSecret"))
	assert.False(t, Valid("S3$t"))
}

func TestSubmit_InvalidPasswordBlocked(t *testing.T) {
	reg := &fakeRegistrar{}

	res, err := Submit(context.Background(), reg, Form{Email: "a@b.c", Password: "password"})
	assert.ErrorIs(t, err, ErrInvalidPassword)
	assert.Equal(t, "Password does not meet the requirements.", res.Error)
	assert.True(t, res.Touched)
	assert.Empty(t, reg.got, "no request sent")
}

func TestSubmit_Registers(t *testing.T) {
	reg := &fakeRegistrar{}

	res, err := Submit(context.Background(), reg, Form{Email: "a@b.c", Password: "Abcdef1!", DisplayName: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "Registration successful! Please log in.", res.Message)
	assert.Empty(t, res.Error)
	assert.Equal(t, []accounts.Registration{{Email: "a@b.c", Password: "Abcdef1!", DisplayName: "Ann"}}, reg.got)
}

func TestSubmit_ServerError(t *testing.T) {
	reg := &fakeRegistrar{err: errors.New("Email already registered")}

	res, err := Submit(context.Background(), reg, Form{Email: "a@b.c", Password: "Abcdef1!"})
	assert.Error(t, err)
	assert.Equal(t, "Email already registered", res.Error)
	assert.Empty(t, res.Message)
}
