package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocampus/ecocampus-server/internal/chat"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/logger"
	"github.com/ecocampus/ecocampus-server/internal/media"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/prefs"
	"github.com/ecocampus/ecocampus-server/internal/sse"
)

func TestProfile_Preferences(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	st, _ := e.newStudent(t, "BMS")

	pr, err := e.profile.Preferences(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, prefs.ThemeLight, pr.Theme)

	pr, err = e.profile.SetTheme(ctx, st, prefs.ThemeDark)
	require.NoError(t, err)
	assert.Equal(t, prefs.ThemeDark, pr.Theme)

	_, err = e.profile.SetTheme(ctx, st, "neon")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = e.profile.SetLowData(ctx, st, true)
	require.NoError(t, err)

	view, err := e.nav.ShowPage(ctx, st, nav.PageProfile, true)
	require.NoError(t, err)
	pv, ok := view.Data.(ProfileView)
	require.True(t, ok)
	assert.Equal(t, prefs.ThemeDark, pv.Theme)
	assert.True(t, pv.LowData)
	assert.NotEmpty(t, pv.AvatarURL)
}

func TestProfile_UploadAvatar(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	st, p := e.newStudent(t, "BMS")

	view, err := e.profile.UploadAvatar(ctx, st, pngPhoto(t, 320, 240))
	require.NoError(t, err)
	assert.NotEmpty(t, view.BlurHash)
	assert.Equal(t, 1, e.uploader.calls)
	assert.Contains(t, e.pusher.toasts(sse.ToastSuccess), "Profile updated successfully!")

	saved, err := e.store.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Contains(t, saved.ProfileImgURL, media.FolderAvatars)

	got, _ := st.Profile()
	assert.Equal(t, saved.ProfileImgURL, got.ProfileImgURL)

	_, err = e.profile.UploadAvatar(ctx, st, strings.NewReader("GIF? no"))
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Equal(t, 1, e.uploader.calls)
}

func TestProfile_ChangePassword(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	st, p := e.newStudent(t, "BMS")

	err := e.profile.ChangePassword(ctx, st, "abc")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Contains(t, e.pusher.toasts(sse.ToastError), "Password must be at least 6 characters.")

	require.NoError(t, e.profile.ChangePassword(ctx, st, "evergreen"))
	assert.Contains(t, e.pusher.toasts(sse.ToastSuccess), "Password updated successfully!")

	_, err = e.session.Login(ctx, p.Email, "greenleaf")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	_, err = e.session.Login(ctx, p.Email, "evergreen")
	require.NoError(t, err)
}

func TestChat_Send(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	st, _ := e.newStudent(t, "BMS")

	_, err := e.chat.Send(ctx, st, "   ")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	line, err := e.chat.Send(ctx, st, "Where can I spend points?")
	require.NoError(t, err)
	assert.Equal(t, "Try the **Green Cafe**.", line.Text)
	assert.Contains(t, line.HTML, "<strong>Green Cafe</strong>")

	view, err := e.nav.ShowPage(ctx, st, nav.PageChat, true)
	require.NoError(t, err)
	lines, ok := view.Data.([]ChatLine)
	require.True(t, ok)
	require.Len(t, lines, 2)
	assert.Equal(t, "Where can I spend points?", lines[0].Text)
	assert.Equal(t, line.Text, lines[1].Text)
}

func TestChat_FallbackOnCompletionError(t *testing.T) {
	e := newTestEnv(t)
	st, _ := e.newStudent(t, "BMS")
	svc := NewChatService(e.store, e.nav, stubCompleter{err: errors.New("upstream 502")},
		stubPrompts{}, e.clock, e.campus, logger.Discard())

	line, err := svc.Send(context.Background(), st, "hello")
	require.NoError(t, err)
	assert.Equal(t, chat.FallbackReply, line.Text)
}
