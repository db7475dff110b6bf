package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/taskauth/internal/common"
	"github.com/dmitrijs2005/taskauth/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBootstrap struct {
	status    *services.BootstrapStatus
	statusErr error
	createErr error

	calls    int
	email    string
	fullName string
	password string
	force    bool
}

func (f *fakeBootstrap) Status(context.Context) (*services.BootstrapStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if f.status == nil {
		return &services.BootstrapStatus{}, nil
	}
	return f.status, nil
}

func (f *fakeBootstrap) BootstrapAdmin(_ context.Context, email, fullName, password string, force bool) (int64, error) {
	f.calls++
	f.email, f.fullName, f.password, f.force = email, fullName, password, force
	if f.createErr != nil {
		return 0, f.createErr
	}
	return 7, nil
}

func newTestApp(b Bootstrapper, input string) (*App, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &App{
		bootstrap: b,
		reader:    bufio.NewReader(strings.NewReader(input)),
		out:       out,
	}, out
}

func TestRun_NoArgsAndUnknown(t *testing.T) {
	a, out := newTestApp(&fakeBootstrap{}, "")

	err := a.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, out.String(), "Usage: taskauth-admin")

	err = a.Run(context.Background(), []string{"frobnicate"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, err.Error(), "frobnicate")
}

func TestRun_Help(t *testing.T) {
	a, out := newTestApp(&fakeBootstrap{}, "")
	require.NoError(t, a.Run(context.Background(), []string{"help"}))
	assert.Contains(t, out.String(), "bootstrap")
	assert.True(t, IsHelp("-h"))
	assert.False(t, IsHelp("status"))
}

func TestRun_Status(t *testing.T) {
	tests := []struct {
		name   string
		fake   *fakeBootstrap
		want   string
		errMsg string
	}{
		{
			name: "not bootstrapped",
			fake: &fakeBootstrap{},
			want: "not bootstrapped",
		},
		{
			name: "bootstrapped",
			fake: &fakeBootstrap{status: &services.BootstrapStatus{IsBootstrapped: true, AdminCount: 2}},
			want: "bootstrapped: 2 administrator(s)",
		},
		{
			name:   "store error",
			fake:   &fakeBootstrap{statusErr: errors.New("db down")},
			errMsg: "db down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, out := newTestApp(tt.fake, "")
			err := a.Run(context.Background(), []string{"status"})
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestBootstrap_FlagsAndPassword(t *testing.T) {
	stubPasswords(t, "hunter22", "hunter22")
	fake := &fakeBootstrap{}
	a, out := newTestApp(fake, "")

	err := a.Run(context.Background(), []string{
		"bootstrap", "-d", "ignored-dsn", "-email", "root@example.com", "-name=Root User",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, "root@example.com", fake.email)
	assert.Equal(t, "Root User", fake.fullName)
	assert.Equal(t, "hunter22", fake.password)
	assert.False(t, fake.force)
	assert.Contains(t, out.String(), "administrator root@example.com created with id 7")
}

func TestBootstrap_PromptsForMissingValues(t *testing.T) {
	stubPasswords(t, "hunter22", "hunter22")
	fake := &fakeBootstrap{}
	a, out := newTestApp(fake, "root@example.com\nRoot User\n")

	require.NoError(t, a.Run(context.Background(), []string{"bootstrap"}))
	assert.Equal(t, "root@example.com", fake.email)
	assert.Equal(t, "Root User", fake.fullName)
	assert.Contains(t, out.String(), "Administrator email")
	assert.Contains(t, out.String(), "Administrator full name")
}

func TestBootstrap_EmptyPromptedValue(t *testing.T) {
	fake := &fakeBootstrap{}
	a, _ := newTestApp(fake, "\n")

	err := a.Run(context.Background(), []string{"bootstrap"})
	assert.ErrorIs(t, err, ErrEmptyValue)
	assert.Zero(t, fake.calls)
}

func TestBootstrap_AlreadyBootstrapped(t *testing.T) {
	fake := &fakeBootstrap{status: &services.BootstrapStatus{IsBootstrapped: true, AdminCount: 1}}
	a, _ := newTestApp(fake, "")

	err := a.Run(context.Background(), []string{"bootstrap", "-email", "a@b.c", "-name", "A"})
	assert.ErrorIs(t, err, common.ErrAlreadyBootstrapped)
	assert.Contains(t, err.Error(), "-force")
	assert.Zero(t, fake.calls)
}

func TestBootstrap_Force(t *testing.T) {
	stubPasswords(t, "hunter22", "hunter22")
	fake := &fakeBootstrap{status: &services.BootstrapStatus{IsBootstrapped: true, AdminCount: 1}}
	a, _ := newTestApp(fake, "")

	err := a.Run(context.Background(), []string{"bootstrap", "-email", "a@b.c", "-name", "A", "-force"})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)
	assert.True(t, fake.force)
}

func TestBootstrap_PasswordErrors(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		wantErr error
	}{
		{name: "too short", entries: []string{"abc"}, wantErr: ErrPasswordTooShort},
		{name: "mismatch", entries: []string{"hunter22", "hunter23"}, wantErr: ErrPasswordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubPasswords(t, tt.entries...)
			fake := &fakeBootstrap{}
			a, _ := newTestApp(fake, "")

			err := a.Run(context.Background(), []string{"bootstrap", "-email", "a@b.c", "-name", "A"})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, fake.calls)
		})
	}
}

func TestBootstrap_ServiceError(t *testing.T) {
	stubPasswords(t, "hunter22", "hunter22")
	fake := &fakeBootstrap{createErr: common.ErrEmailInUse}
	a, _ := newTestApp(fake, "")

	err := a.Run(context.Background(), []string{"bootstrap", "-email", "a@b.c", "-name", "A"})
	assert.ErrorIs(t, err, common.ErrEmailInUse)
}
