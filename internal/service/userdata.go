package service

import (
	"context"
	"time"

	"github.com/ecocampus/ecocampus-server/internal/backend"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/prefs"
	"github.com/ecocampus/ecocampus-server/internal/state"
)

// Pages showing the user's points or avatar.
var userPages = []string{nav.PageDashboard, nav.PageProfile, nav.PageEcoPoints}

// refreshUserData re-reads the users row and merges the server values into
// the session. Pages showing the profile are re-rendered when anything changed.
func refreshUserData(ctx context.Context, profiles backend.Profiles, n *nav.Navigator, st *state.AppState) error {
	p, err := profiles.GetProfile(ctx, st.UserID())
	if err != nil {
		return err
	}
	if st.UpdateProfile(func(cur *domain.Profile) { mergeProfile(cur, *p) }) {
		n.Rerender(st, userPages...)
	}
	return nil
}

// mergeProfile copies the columns that change server-side.
func mergeProfile(dst *domain.Profile, src domain.Profile) {
	dst.CurrentPoints = src.CurrentPoints
	dst.LifetimePoints = src.LifetimePoints
	dst.ProfileImgURL = src.ProfileImgURL
	dst.TickType = src.TickType
	dst.Mobile = src.Mobile
	dst.IsVolunteer = src.IsVolunteer
	dst.VolunteerSportID = src.VolunteerSportID
}

func currentProfile(st *state.AppState) (domain.Profile, error) {
	p, ok := st.Profile()
	if !ok {
		return domain.Profile{}, domainerrors.Unauthorized("session is not initialized")
	}
	return p, nil
}

// lowData reports the user's data-saver setting, if the profile page loaded it.
func lowData(st *state.AppState) bool {
	p, ok := state.Get[prefs.Preferences](st, state.ResourceProfile)
	return ok && p.LowData
}

// displayTime formats t for cards, e.g. "12 Mar, 04:30 PM".
func displayTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02 Jan, 03:04 PM")
}
