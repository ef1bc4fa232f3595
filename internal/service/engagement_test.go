package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocampus/ecocampus-server/internal/backend/sqlite"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/sse"
	"github.com/ecocampus/ecocampus-server/internal/state"
)

func pngPhoto(t *testing.T, w, h int) *bytes.Reader {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x), G: 160, B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return bytes.NewReader(buf.Bytes())
}

func TestMyEventStatus(t *testing.T) {
	e := domain.Event{Attendance: []domain.Attendance{
		{UserID: "u1", Status: domain.AttendanceRegistered, FullName: "Asha"},
		{UserID: "u2", Status: domain.AttendanceConfirmed, FullName: "Kabir"},
		{UserID: "u3", Status: domain.AttendanceAbsent, FullName: "Meera"},
	}}

	assert.Equal(t, EventGoing, MyEventStatus(e, "u1"))
	assert.Equal(t, EventAttended, MyEventStatus(e, "u2"))
	assert.Equal(t, EventMissed, MyEventStatus(e, "u3"))
	assert.Equal(t, EventUpcoming, MyEventStatus(e, "u4"))

	attendees := Attendees(e)
	require.Len(t, attendees, 2)
	assert.Equal(t, "Asha", attendees[0].Name)
	assert.Equal(t, "Kabir", attendees[1].Name)
}

func TestRSVP(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.importCatalog(t, sqlite.Catalog{Events: []sqlite.CatalogEvent{
		{ID: "evt-1", Title: "Beach Cleanup", Location: "Juhu", StartsIn: 48 * time.Hour, Reward: 50},
	}})
	st, _ := e.newStudent(t, "BMS")

	require.NoError(t, e.events.RSVP(ctx, st, "evt-1"))
	assert.Contains(t, e.pusher.toasts(sse.ToastSuccess), "You have successfully registered!")

	view, err := e.nav.ShowPage(ctx, st, nav.PageEvents, true)
	require.NoError(t, err)
	cards, ok := view.Data.([]EventCard)
	require.True(t, ok)
	require.Len(t, cards, 1)
	assert.Equal(t, EventGoing, cards[0].MyStatus)
	assert.Equal(t, 1, cards[0].AttendeeCount)

	err = e.events.RSVP(ctx, st, "evt-1")
	assert.ErrorIs(t, err, domainerrors.ErrConflict)
	assert.Contains(t, e.pusher.toasts(sse.ToastError), "You are already registered for this event.")

	assert.ErrorIs(t, e.events.RSVP(ctx, st, "evt-missing"), domainerrors.ErrNotFound)
}

func TestBuildChallengeCard(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	today := func(s domain.ChallengeSubmission) bool { return s.CreatedAt.YearDay() == now.YearDay() }
	daily := domain.Challenge{ID: "c1", Title: "Refill", Type: "Upload", Frequency: "daily"}
	once := domain.Challenge{ID: "c2", Title: "Plant", Type: "spot", Frequency: "once"}

	tests := []struct {
		name     string
		c        domain.Challenge
		subs     []domain.ChallengeSubmission
		status   string
		label    string
		disabled bool
	}{
		{"upload without submission", daily, nil, ChallengeActive, "Take Photo", false},
		{"other type without submission", once, nil, ChallengeActive, "Start", false},
		{"daily approved today", daily, []domain.ChallengeSubmission{
			{ChallengeID: "c1", Status: domain.SubmissionApproved, CreatedAt: now},
		}, ChallengeCompleted, "Done for Today", true},
		{"daily approved yesterday counts as fresh", daily, []domain.ChallengeSubmission{
			{ChallengeID: "c1", Status: domain.SubmissionApproved, CreatedAt: now.AddDate(0, 0, -1)},
		}, ChallengeActive, "Take Photo", false},
		{"once verified", once, []domain.ChallengeSubmission{
			{ChallengeID: "c2", Status: domain.SubmissionVerified, CreatedAt: now.AddDate(0, 0, -9)},
		}, ChallengeCompleted, "Completed", true},
		{"pending review", once, []domain.ChallengeSubmission{
			{ChallengeID: "c2", Status: domain.SubmissionPending, CreatedAt: now},
		}, ChallengePending, "In Review", true},
		{"rejected can retry", once, []domain.ChallengeSubmission{
			{ChallengeID: "c2", Status: domain.SubmissionRejected, CreatedAt: now},
		}, ChallengeActive, "Retry", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := BuildChallengeCard(tt.c, tt.subs, today)
			assert.Equal(t, tt.status, card.Status)
			assert.Equal(t, tt.label, card.ButtonLabel)
			assert.Equal(t, tt.disabled, card.Disabled)
		})
	}
}

func seedChallenge(t *testing.T, e *testEnv) {
	t.Helper()
	e.importCatalog(t, sqlite.Catalog{Challenges: []sqlite.CatalogChallenge{
		{ID: "chl-1", Title: "Refill Station", Reward: 20, Type: "Upload", Frequency: "daily"},
	}})
}

func TestSubmitPhoto(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	seedChallenge(t, e)
	st, _ := e.newStudent(t, "BMS")

	require.NoError(t, e.nav.Preload(ctx, st, state.ResourceChallenges))
	e.challenges.OpenCamera(st, "chl-1")
	assert.Equal(t, 1, e.pusher.count(sse.EventModal))

	card, err := e.challenges.SubmitPhoto(ctx, st, "", pngPhoto(t, 64, 48))
	require.NoError(t, err)
	assert.Equal(t, ChallengePending, card.Status)
	assert.Equal(t, "In Review", card.ButtonLabel)
	assert.Equal(t, 1, e.uploader.calls)
	_, ok := st.Intent(state.IntentChallenge)
	assert.False(t, ok)

	// Pending work cannot be submitted again.
	_, err = e.challenges.SubmitPhoto(ctx, st, "chl-1", pngPhoto(t, 8, 8))
	assert.ErrorIs(t, err, domainerrors.ErrConflict)
	assert.Equal(t, 1, e.uploader.calls)

	subs, err := e.store.ListSubmissionsSince(ctx, st.UserID(), e.clock.StartOfToday())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, strings.HasPrefix(subs[0].SubmissionURL, "https://res.cloudinary.com/"))
}

func TestSubmitPhoto_RejectsNonImages(t *testing.T) {
	e := newTestEnv(t)
	seedChallenge(t, e)
	st, _ := e.newStudent(t, "BMS")

	_, err := e.challenges.SubmitPhoto(context.Background(), st, "chl-1", strings.NewReader("not an image"))
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Zero(t, e.uploader.calls)
}

func TestSubmitPhoto_UploadFailureRollsBack(t *testing.T) {
	e := newTestEnv(t)
	seedChallenge(t, e)
	st, _ := e.newStudent(t, "BMS")
	e.uploader.err = errors.New("cloud unavailable")

	_, err := e.challenges.SubmitPhoto(context.Background(), st, "chl-1", pngPhoto(t, 16, 16))
	require.Error(t, err)
	assert.Equal(t, "Failed to upload photo.", userMessage(err))

	data, _ := state.Get[challengeData](st, state.ResourceChallenges)
	assert.Empty(t, data.Submissions)
}
