package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	"github.com/ecocampus/ecocampus-server/internal/service"
)

const (
	pathLogin  = "/api/v1/auth/login"
	pathSignup = "/api/v1/auth/signup"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        pathLogin,
		Summary:     "Sign in",
		Description: "Signs in with email and password and initializes the session",
		Tags:        []string{"Authentication"},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "signup",
		Method:      http.MethodPost,
		Path:        pathSignup,
		Summary:     "Create account",
		Description: "Creates a student account and initializes its session",
		Tags:        []string{"Authentication"},
	}, s.handleSignUp)

	huma.Register(s.api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/logout",
		Summary:     "Sign out",
		Description: "Ends the session. Always succeeds and names the page to go to.",
		Tags:        []string{"Authentication"},
		Security:    bearer,
	}, s.handleLogout)

	huma.Register(s.api, huma.Operation{
		OperationID: "changePassword",
		Method:      http.MethodPut,
		Path:        "/api/v1/auth/password",
		Summary:     "Change password",
		Tags:        []string{"Authentication"},
		Security:    bearer,
	}, s.handleChangePassword)
}

// === DTOs ===

// LoginRequest is the request body for sign in.
type LoginRequest struct {
	Email    string `json:"email" maxLength:"254" doc:"Account email"`
	Password string `json:"password" maxLength:"1024" doc:"Account password"`
}

// LoginInput wraps the login request for Huma.
type LoginInput struct {
	Body LoginRequest
}

// SignUpRequest is the request body for account creation.
type SignUpRequest struct {
	Email     string `json:"email" maxLength:"254" doc:"Account email"`
	Password  string `json:"password" maxLength:"1024" doc:"Password, at least 6 characters"`
	FullName  string `json:"full_name" maxLength:"120" doc:"Display name"`
	StudentID string `json:"student_id" maxLength:"32" doc:"College roll number"`
	Course    string `json:"course" maxLength:"64" doc:"Department or course"`
	Gender    string `json:"gender,omitempty" enum:"Male,Female,Other" doc:"Gender"`
	Mobile    string `json:"mobile,omitempty" doc:"Ten digit mobile number"`
}

// SignUpInput wraps the sign up request for Huma.
type SignUpInput struct {
	Body SignUpRequest
}

// BootstrapOutput wraps an initialized session for Huma.
type BootstrapOutput struct {
	Body *service.Bootstrap
}

// LogoutOutput wraps the logout redirect for Huma.
type LogoutOutput struct {
	Body *service.Logout
}

// ChangePasswordInput wraps the password change request for Huma.
type ChangePasswordInput struct {
	Body struct {
		Password string `json:"password" maxLength:"1024" doc:"New password, at least 6 characters"`
	}
}

// MessageResponse contains a simple message.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps the message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

// === Handlers ===

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*BootstrapOutput, error) {
	boot, err := s.services.Session.Login(ctx, input.Body.Email, input.Body.Password)
	if err != nil {
		return nil, err
	}
	return &BootstrapOutput{Body: boot}, nil
}

func (s *Server) handleSignUp(ctx context.Context, input *SignUpInput) (*BootstrapOutput, error) {
	boot, err := s.services.Session.SignUp(ctx, domain.SignUpRequest{
		Email:     input.Body.Email,
		Password:  input.Body.Password,
		FullName:  input.Body.FullName,
		StudentID: input.Body.StudentID,
		Course:    input.Body.Course,
		Gender:    input.Body.Gender,
		Mobile:    input.Body.Mobile,
	})
	if err != nil {
		return nil, err
	}
	return &BootstrapOutput{Body: boot}, nil
}

func (s *Server) handleLogout(ctx context.Context, _ *struct{}) (*LogoutOutput, error) {
	return &LogoutOutput{Body: s.services.Session.Logout(ctx, accessToken(ctx))}, nil
}

func (s *Server) handleChangePassword(ctx context.Context, input *ChangePasswordInput) (*MessageOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Profile.ChangePassword(ctx, st, input.Body.Password); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Password updated successfully!"}}, nil
}
