package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/sse"
)

func TestSession_LoginBootstrap(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, p := e.signUp(t, "BMS")

	boot, err := e.session.Login(ctx, " "+p.Email+" ", "greenleaf")
	require.NoError(t, err)
	assert.NotEmpty(t, boot.AccessToken)
	assert.NotEmpty(t, boot.SessionID)
	assert.Equal(t, p.ID, boot.Profile.ID)
	require.NotNil(t, boot.View)
	assert.Equal(t, nav.PageDashboard, boot.View.Page)
	_, ok := boot.View.Data.(DashboardView)
	assert.True(t, ok)

	assert.Equal(t, []string{"Welcome back, " + p.FullName + "!"}, e.pusher.toasts(sse.ToastSuccess))
	assert.Equal(t, 1, e.sessions.Len())
}

func TestSession_ReloadDoesNotRepeatLogin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	token, _ := e.signUp(t, "BMS")

	first, err := e.session.Initialize(ctx, token)
	require.NoError(t, err)
	second, err := e.session.Initialize(ctx, token)
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Len(t, e.pusher.toasts(sse.ToastSuccess), 1)
}

func TestSession_BadCredentials(t *testing.T) {
	e := newTestEnv(t)
	_, p := e.signUp(t, "BMS")

	_, err := e.session.Login(context.Background(), p.Email, "wrong-password")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	_, err = e.session.Login(context.Background(), "", "")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Zero(t, e.sessions.Len())
}

func TestSession_UnknownTokenRedirects(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.session.Initialize(context.Background(), "not-a-token")
	require.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, map[string]string{"redirect": LoginPath}, de.Details)
}

func TestSession_ResolveRebuildsWithoutLoginEvent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	token, p := e.signUp(t, "BMS")

	st, err := e.session.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, p.ID, st.UserID())
	assert.Empty(t, e.pusher.toasts(sse.ToastSuccess))

	again, err := e.session.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Same(t, st, again)

	// A later bootstrap reuses the state and stays quiet.
	_, err = e.session.Initialize(ctx, token)
	require.NoError(t, err)
	assert.Empty(t, e.pusher.toasts(sse.ToastSuccess))
}

func TestSession_Logout(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	token, _ := e.signUp(t, "BMS")
	boot, err := e.session.Initialize(ctx, token)
	require.NoError(t, err)

	out := e.session.Logout(ctx, token)
	assert.Equal(t, LoginPath, out.Redirect)
	assert.Zero(t, e.sessions.Len())
	assert.Equal(t, 1, e.pusher.count(sse.EventRedirect))
	assert.Contains(t, e.pusher.disconnected, boot.SessionID)

	// The token is revoked remotely too.
	_, err = e.session.Resolve(ctx, token)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	// Logging out twice still succeeds.
	assert.Equal(t, LoginPath, e.session.Logout(ctx, token).Redirect)
}

func TestSession_SignUpValidates(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.session.SignUp(context.Background(), domain.SignUpRequest{Email: "nope", Password: "x"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	boot, err := e.session.SignUp(context.Background(), domain.SignUpRequest{
		Email:     "New.Student@Campus.edu",
		Password:  "greenleaf",
		FullName:  "  New Student ",
		StudentID: "S9999",
		Course:    "FY BSc IT",
	})
	require.NoError(t, err)
	assert.Equal(t, "new.student@campus.edu", boot.Profile.Email)
	assert.Equal(t, "New Student", boot.Profile.FullName)
}
