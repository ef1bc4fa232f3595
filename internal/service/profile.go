package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/ecocampus/ecocampus-server/internal/backend"
	"github.com/ecocampus/ecocampus-server/internal/config"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/media"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/prefs"
	"github.com/ecocampus/ecocampus-server/internal/state"
	"github.com/ecocampus/ecocampus-server/internal/util"
)

// MinPasswordLength is the shortest password accepted on change.
const MinPasswordLength = 6

// PrefsStore persists per-user settings.
type PrefsStore interface {
	Get(ctx context.Context, userID string) (prefs.Preferences, error)
	SetTheme(ctx context.Context, userID, theme string) (prefs.Preferences, error)
	SetLowData(ctx context.Context, userID string, on bool) (prefs.Preferences, error)
	SetAvatarBlurHash(ctx context.Context, userID, hash string) (prefs.Preferences, error)
}

// ProfileView is the profile page.
type ProfileView struct {
	Name           string             `json:"name"`
	Initials       string             `json:"initials"`
	Email          string             `json:"email"`
	StudentID      string             `json:"student_id"`
	Course         string             `json:"course"`
	Mobile         string             `json:"mobile,omitempty"`
	AvatarURL      string             `json:"avatar_url"`
	BlurHash       string             `json:"blurhash,omitempty"`
	TickType       string             `json:"tick_type,omitempty"`
	Points         int                `json:"points"`
	LifetimePoints int                `json:"lifetime_points"`
	Level          util.LevelProgress `json:"level"`
	Theme          string             `json:"theme"`
	LowData        bool               `json:"low_data"`
}

// ProfileService runs the profile page, avatar uploads, password changes and
// display preferences.
type ProfileService struct {
	backend  backend.Client
	nav      *nav.Navigator
	flows    *FlowRunner
	recorder nav.Recorder
	uploader media.Uploader
	prefs    PrefsStore
	levels   []config.Level
	logger   *slog.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(
	client backend.Client,
	navigator *nav.Navigator,
	flows *FlowRunner,
	recorder nav.Recorder,
	uploader media.Uploader,
	prefStore PrefsStore,
	levels []config.Level,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		backend:  client,
		nav:      navigator,
		flows:    flows,
		recorder: recorder,
		uploader: uploader,
		prefs:    prefStore,
		levels:   levels,
		logger:   logger,
	}
}

// Pages returns the profile page.
func (s *ProfileService) Pages() []nav.Page {
	return []nav.Page{{
		Name:     nav.PageProfile,
		Resource: state.ResourceProfile,
		Load:     s.load,
		Render:   s.render,
	}}
}

func (s *ProfileService) load(ctx context.Context, st *state.AppState) (any, error) {
	return s.prefs.Get(ctx, st.UserID())
}

func (s *ProfileService) render(st *state.AppState) (any, error) {
	p, err := currentProfile(st)
	if err != nil {
		return nil, err
	}
	pr, _ := state.Get[prefs.Preferences](st, state.ResourceProfile)
	sc := st.Scalars()
	return ProfileView{
		Name:           p.FullName,
		Initials:       util.Initials(p.FullName),
		Email:          p.Email,
		StudentID:      p.StudentID,
		Course:         p.Course,
		Mobile:         p.Mobile,
		AvatarURL:      avatarOrPlaceholder(p, pr.LowData),
		BlurHash:       pr.AvatarBlurHash,
		TickType:       p.TickType,
		Points:         sc.Points,
		LifetimePoints: sc.LifetimePoints,
		Level:          util.LevelFor(sc.LifetimePoints, s.levels),
		Theme:          pr.Theme,
		LowData:        pr.LowData,
	}, nil
}

// Preferences returns the stored settings, loading them once per session.
func (s *ProfileService) Preferences(ctx context.Context, st *state.AppState) (prefs.Preferences, error) {
	if err := s.nav.Preload(ctx, st, state.ResourceProfile); err != nil {
		return prefs.Preferences{}, err
	}
	p, _ := state.Get[prefs.Preferences](st, state.ResourceProfile)
	return p, nil
}

// SetTheme stores the theme and updates the cached preferences.
func (s *ProfileService) SetTheme(ctx context.Context, st *state.AppState, theme string) (prefs.Preferences, error) {
	p, err := s.prefs.SetTheme(ctx, st.UserID(), theme)
	if errors.Is(err, prefs.ErrInvalidTheme) {
		return prefs.Preferences{}, domainerrors.Validation(err.Error())
	}
	if err != nil {
		return prefs.Preferences{}, err
	}
	s.cachePrefs(st, p)
	return p, nil
}

// SetLowData toggles the data saver. Image URLs rendered afterwards use the
// low quality variants.
func (s *ProfileService) SetLowData(ctx context.Context, st *state.AppState, on bool) (prefs.Preferences, error) {
	p, err := s.prefs.SetLowData(ctx, st.UserID(), on)
	if err != nil {
		return prefs.Preferences{}, err
	}
	s.cachePrefs(st, p)
	return p, nil
}

func (s *ProfileService) cachePrefs(st *state.AppState, p prefs.Preferences) {
	st.SetResource(state.ResourceProfile, p)
	st.MarkLoaded(state.ResourceProfile)
	s.nav.Rerender(st, userPages...)
}

// UploadAvatar resizes the image, hosts it and points the profile at it.
func (s *ProfileService) UploadAvatar(ctx context.Context, st *state.AppState, r io.Reader) (*ProfileView, error) {
	uid := st.UserID()
	var (
		img     *media.Prepared
		updated *domain.Profile
	)
	err := s.flows.Run(ctx, st, Flow{
		Name: "avatar_upload",
		Validate: func(context.Context) error {
			var err error
			img, err = media.PrepareAvatar(io.LimitReader(r, media.MaxUploadBytes))
			if errors.Is(err, media.ErrUnsupportedImage) {
				return domainerrors.Validation("Please upload a JPEG, PNG, GIF or WebP image.")
			}
			return err
		},
		Write: func(ctx context.Context) error {
			s.recorder.Record(ctx, uid, domain.ActionUploadStart, "Starting avatar upload", nil)
			url, err := s.uploader.Upload(ctx, media.FolderAvatars, uid, img)
			if err != nil {
				return err
			}
			updated, err = s.backend.UpdateProfile(ctx, uid, domain.ProfilePatch{ProfileImgURL: &url})
			return err
		},
		Apply: func(ctx context.Context) {
			st.UpdateProfile(func(p *domain.Profile) { p.ProfileImgURL = updated.ProfileImgURL })
			if p, err := s.prefs.SetAvatarBlurHash(ctx, uid, img.BlurHash); err != nil {
				s.logger.Warn("store avatar blurhash", "user_id", uid, "error", err)
			} else {
				st.SetResource(state.ResourceProfile, p)
				st.MarkLoaded(state.ResourceProfile)
			}
			s.recorder.Record(ctx, uid, domain.ActionUploadSuccess, "Avatar updated",
				map[string]any{"width": img.Width, "height": img.Height})
		},
		OnFailure: func(ctx context.Context, err error) {
			s.recorder.Record(ctx, uid, domain.ActionUploadError, err.Error(), nil)
		},
		Rerender: userPages,
		Success:  "Profile updated successfully!",
		Failure:  "Upload failed. Try a smaller image.",
	})
	if err != nil {
		return nil, err
	}
	v, err := s.render(st)
	if err != nil {
		return nil, err
	}
	view := v.(ProfileView)
	return &view, nil
}

// ChangePassword sets a new password for the signed-in user.
func (s *ProfileService) ChangePassword(ctx context.Context, st *state.AppState, newPassword string) error {
	uid := st.UserID()
	return s.flows.Run(ctx, st, Flow{
		Name: "password_change",
		Validate: func(context.Context) error {
			if len(newPassword) < MinPasswordLength {
				return domainerrors.Validation("Password must be at least 6 characters.")
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			return s.backend.UpdatePassword(ctx, st.AccessToken(), newPassword)
		},
		Apply: func(ctx context.Context) {
			s.recorder.Record(ctx, uid, domain.ActionPasswordChange, "Password changed", nil)
		},
		Success: "Password updated successfully!",
	})
}
