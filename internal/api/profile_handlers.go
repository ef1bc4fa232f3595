package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ecocampus/ecocampus-server/internal/prefs"
	"github.com/ecocampus/ecocampus-server/internal/service"
)

func (s *Server) registerProfileRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:  "uploadAvatar",
		Method:       http.MethodPost,
		Path:         "/api/v1/profile/avatar",
		Summary:      "Upload avatar image",
		Description:  "Uploads a new avatar image for the authenticated user",
		Tags:         []string{"Profile"},
		Security:     bearer,
		MaxBodyBytes: MaxUploadSize,
	}, s.handleUploadAvatar)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPreferences",
		Method:      http.MethodGet,
		Path:        "/api/v1/preferences",
		Summary:     "Get preferences",
		Tags:        []string{"Profile"},
		Security:    bearer,
	}, s.handleGetPreferences)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTheme",
		Method:      http.MethodGet,
		Path:        "/api/v1/preferences/theme",
		Summary:     "Get theme",
		Tags:        []string{"Profile"},
		Security:    bearer,
	}, s.handleGetPreferences)

	huma.Register(s.api, huma.Operation{
		OperationID: "setTheme",
		Method:      http.MethodPut,
		Path:        "/api/v1/preferences/theme",
		Summary:     "Set theme",
		Tags:        []string{"Profile"},
		Security:    bearer,
	}, s.handleSetTheme)

	huma.Register(s.api, huma.Operation{
		OperationID: "setLowData",
		Method:      http.MethodPut,
		Path:        "/api/v1/preferences/low-data",
		Summary:     "Set low data mode",
		Description: "Low data mode serves smaller images",
		Tags:        []string{"Profile"},
		Security:    bearer,
	}, s.handleSetLowData)
}

// UploadAvatarInput contains the avatar upload request.
type UploadAvatarInput struct {
	ContentType string `header:"Content-Type" doc:"Image content type"`
	RawBody     []byte
}

// ProfileOutput wraps the profile view for Huma.
type ProfileOutput struct {
	Body *service.ProfileView
}

// PreferencesOutput wraps preferences for Huma.
type PreferencesOutput struct {
	Body prefs.Preferences
}

// SetThemeInput carries the theme.
type SetThemeInput struct {
	Body struct {
		Theme string `json:"theme" enum:"light,dark" doc:"Color theme"`
	}
}

// SetLowDataInput toggles low data mode.
type SetLowDataInput struct {
	Body struct {
		Enabled bool `json:"enabled" doc:"Serve smaller images"`
	}
}

func (s *Server) handleUploadAvatar(ctx context.Context, input *UploadAvatarInput) (*ProfileOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("avatar upload request",
		"user_id", st.UserID(),
		"content_type", input.ContentType,
		"body_size", len(input.RawBody),
	)

	// The content is sniffed downstream; the header is only logged.
	view, err := s.services.Profile.UploadAvatar(ctx, st, bytes.NewReader(input.RawBody))
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: view}, nil
}

func (s *Server) handleGetPreferences(ctx context.Context, _ *struct{}) (*PreferencesOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.services.Profile.Preferences(ctx, st)
	if err != nil {
		return nil, err
	}
	return &PreferencesOutput{Body: p}, nil
}

func (s *Server) handleSetTheme(ctx context.Context, input *SetThemeInput) (*PreferencesOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.services.Profile.SetTheme(ctx, st, input.Body.Theme)
	if err != nil {
		return nil, err
	}
	return &PreferencesOutput{Body: p}, nil
}

func (s *Server) handleSetLowData(ctx context.Context, input *SetLowDataInput) (*PreferencesOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.services.Profile.SetLowData(ctx, st, input.Body.Enabled)
	if err != nil {
		return nil, err
	}
	return &PreferencesOutput{Body: p}, nil
}
