package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecocampus/ecocampus-server/internal/backend"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/state"
	"github.com/ecocampus/ecocampus-server/internal/validation"
)

const (
	onceLogin  = "login"
	onceLogout = "logout"

	preloadTimeout = 30 * time.Second
)

// Pusher delivers events to the browsers of a session.
type Pusher interface {
	Notify(sessionID, kind string, data any)
	DisconnectSession(sessionID string)
}

// Bootstrap is the result of an initialized session.
type Bootstrap struct {
	AccessToken string         `json:"access_token"`
	SessionID   string         `json:"session_id"`
	Profile     domain.Profile `json:"profile"`
	View        *nav.View      `json:"view,omitempty"`
}

// Logout is returned by Logout; the browser always follows Redirect.
type Logout struct {
	Redirect string `json:"redirect"`
}

// SessionService runs the session state machine:
// unauthenticated → session-check → profile-fetch → initialized, or redirected.
type SessionService struct {
	backend   backend.Client
	sessions  *state.Registry
	nav       *nav.Navigator
	recorder  nav.Recorder
	pusher    Pusher
	realtime  *RealtimeService
	validator *validation.Validator
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// NewSessionService creates the session service.
func NewSessionService(
	client backend.Client,
	sessions *state.Registry,
	navigator *nav.Navigator,
	recorder nav.Recorder,
	pusher Pusher,
	realtime *RealtimeService,
	validator *validation.Validator,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		backend:   client,
		sessions:  sessions,
		nav:       navigator,
		recorder:  recorder,
		pusher:    pusher,
		realtime:  realtime,
		validator: validator,
		logger:    logger,
	}
}

// Login signs in with email and password and initializes the session.
func (s *SessionService) Login(ctx context.Context, email, password string) (*Bootstrap, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, domainerrors.Validation("Email and password are required.")
	}
	sess, err := s.backend.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.Initialize(ctx, sess.AccessToken)
}

// SignUp creates an account and initializes its first session.
func (s *SessionService) SignUp(ctx context.Context, req domain.SignUpRequest) (*Bootstrap, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	sess, err := s.backend.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Initialize(ctx, sess.AccessToken)
}

// Initialize checks the session, fetches the profile and shows the dashboard.
// A page reload on a live session reuses its state, so the login event and
// the welcome toast are not repeated.
func (s *SessionService) Initialize(ctx context.Context, accessToken string) (*Bootstrap, error) {
	st, err := s.open(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	profile, _ := st.Profile()
	if st.FireOnce(onceLogin) {
		s.recorder.Record(ctx, profile.ID, domain.ActionLogin, "User logged in", nil)
		toastSuccess(st, "Welcome back, "+profile.FullName+"!")
	}

	st.ResetHistory("#" + nav.PageDashboard)
	view, err := s.nav.ShowPage(ctx, st, nav.PageDashboard, false)
	if err != nil {
		// The view carries the retry affordance; the session itself is fine.
		s.logger.Warn("initial dashboard load failed", "user_id", profile.ID, "error", err)
	}

	s.preload(ctx, st, state.ResourceEvents)

	return &Bootstrap{
		AccessToken: accessToken,
		SessionID:   st.SessionID(),
		Profile:     profile,
		View:        view,
	}, nil
}

// Resolve returns the live state of a token. A token that is valid on the
// backend but unknown here, e.g. after a restart, gets its state rebuilt.
func (s *SessionService) Resolve(ctx context.Context, accessToken string) (*state.AppState, error) {
	if st, ok := s.sessions.Get(accessToken); ok {
		return st, nil
	}
	st, err := s.open(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	// Restored sessions did not just log in.
	st.FireOnce(onceLogin)
	st.ResetHistory("#" + nav.PageDashboard)
	return st, nil
}

// open moves a token through session-check and profile-fetch.
func (s *SessionService) open(ctx context.Context, accessToken string) (*state.AppState, error) {
	if accessToken == "" {
		return nil, unauthenticated("Please sign in.")
	}
	if st, ok := s.sessions.Get(accessToken); ok {
		return st, nil
	}

	sess, err := s.backend.GetSession(ctx, accessToken)
	if err != nil {
		s.logger.Info("session check failed", "error", err)
		return nil, unauthenticated("Your session has expired. Please sign in again.")
	}

	profile, err := s.backend.GetProfileByAuthID(ctx, sess.AuthUserID)
	if err != nil {
		s.logger.Warn("profile fetch failed, signing out",
			"auth_user_id", sess.AuthUserID,
			"error", err,
		)
		if err := s.backend.SignOut(ctx, accessToken); err != nil {
			s.logger.Warn("sign out after profile failure", "error", err)
		}
		s.sessions.Destroy(accessToken)
		return nil, unauthenticated("Could not load profile. Logging out.")
	}

	sessionID := uuid.NewString()
	st := s.sessions.Create(sessionID, accessToken)
	st.SetProfile(*profile)
	st.SetNotifier(func(kind string, data any) {
		s.pusher.Notify(sessionID, kind, data)
	})
	st.AddCloser(func() { s.pusher.DisconnectSession(sessionID) })

	if err := s.realtime.Start(ctx, st); err != nil {
		// Pages still work; they just will not resync on their own.
		s.logger.Warn("realtime subscriptions failed", "user_id", profile.ID, "error", err)
	}

	s.logger.Info("session initialized", "user_id", profile.ID, "session_id", sessionID)
	return st, nil
}

// Logout ends the session. It never fails: the browser must leave even when
// the activity log or the remote sign-out does not work.
func (s *SessionService) Logout(ctx context.Context, accessToken string) *Logout {
	out := &Logout{Redirect: LoginPath}

	st, ok := s.sessions.Get(accessToken)
	if ok {
		pushRedirect(st, LoginPath, "logout")
		// Realtime subscriptions and browser streams are closers of the state.
		st.Close()
		if st.FireOnce(onceLogout) {
			s.recorder.Record(ctx, st.UserID(), domain.ActionLogout, "User logged out", nil)
		}
	}

	if err := s.backend.SignOut(ctx, accessToken); err != nil {
		s.logger.Warn("remote sign out failed", "error", err)
	}
	s.sessions.Destroy(accessToken)
	return out
}

// RefreshUserData merges the latest users row into the session.
func (s *SessionService) RefreshUserData(ctx context.Context, st *state.AppState) error {
	return refreshUserData(ctx, s.backend, s.nav, st)
}

// preload loads a resource in the background so its first visit is instant.
func (s *SessionService) preload(ctx context.Context, st *state.AppState, r state.Resource) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, preloadTimeout)
		defer cancel()
		if err := s.nav.Preload(ctx, st, r); err != nil {
			s.logger.Warn("background preload failed", "resource", r, "user_id", st.UserID(), "error", err)
		}
	})
}

// Shutdown waits for background loads and ends every session.
func (s *SessionService) Shutdown() error {
	s.wg.Wait()
	s.sessions.CloseAll()
	return nil
}

func unauthenticated(msg string) error {
	return domainerrors.Unauthorized(msg).WithDetails(map[string]string{"redirect": LoginPath})
}
