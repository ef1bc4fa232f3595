package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ecocampus/ecocampus-server/internal/service"
)

func (s *Server) registerCheckinRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCheckin",
		Method:      http.MethodGet,
		Path:        "/api/v1/checkin",
		Summary:     "Check-in dialog",
		Description: "Returns the check-in dialog for today: streak, restore offer and button state",
		Tags:        []string{"Check-in"},
		Security:    bearer,
	}, s.handleGetCheckin)

	huma.Register(s.api, huma.Operation{
		OperationID: "checkin",
		Method:      http.MethodPost,
		Path:        "/api/v1/checkin",
		Summary:     "Daily check-in",
		Tags:        []string{"Check-in"},
		Security:    bearer,
	}, s.handleCheckin)

	huma.Register(s.api, huma.Operation{
		OperationID: "restoreStreak",
		Method:      http.MethodPost,
		Path:        "/api/v1/checkin/restore",
		Summary:     "Restore streak",
		Description: "Spends points to bring back a streak broken by exactly one missed day",
		Tags:        []string{"Check-in"},
		Security:    bearer,
	}, s.handleRestoreStreak)
}

func (s *Server) registerQuizRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getQuiz",
		Method:      http.MethodGet,
		Path:        "/api/v1/quiz",
		Summary:     "Today's quiz",
		Tags:        []string{"Quiz"},
		Security:    bearer,
	}, s.handleGetQuiz)

	huma.Register(s.api, huma.Operation{
		OperationID: "answerQuiz",
		Method:      http.MethodPost,
		Path:        "/api/v1/quiz/answer",
		Summary:     "Answer today's quiz",
		Tags:        []string{"Quiz"},
		Security:    bearer,
	}, s.handleAnswerQuiz)
}

// CheckinOutput wraps the check-in dialog for Huma.
type CheckinOutput struct {
	Body *service.CheckinModal
}

// QuizOutput wraps the quiz view for Huma.
type QuizOutput struct {
	Body *service.QuizView
}

// AnswerQuizInput carries the chosen option.
type AnswerQuizInput struct {
	Body struct {
		Answer int `json:"answer" minimum:"0" doc:"Index of the chosen option"`
	}
}

// QuizResultOutput wraps the quiz result for Huma.
type QuizResultOutput struct {
	Body *service.QuizResult
}

func (s *Server) handleGetCheckin(ctx context.Context, _ *struct{}) (*CheckinOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	modal, err := s.services.Checkin.Modal(ctx, st)
	if err != nil {
		return nil, err
	}
	return &CheckinOutput{Body: modal}, nil
}

func (s *Server) handleCheckin(ctx context.Context, _ *struct{}) (*CheckinOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	modal, err := s.services.Checkin.DailyCheckin(ctx, st)
	if err != nil {
		return nil, err
	}
	return &CheckinOutput{Body: modal}, nil
}

func (s *Server) handleRestoreStreak(ctx context.Context, _ *struct{}) (*CheckinOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	modal, err := s.services.Checkin.RestoreStreak(ctx, st)
	if err != nil {
		return nil, err
	}
	return &CheckinOutput{Body: modal}, nil
}

func (s *Server) handleGetQuiz(ctx context.Context, _ *struct{}) (*QuizOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Quiz.Open(ctx, st)
	if err != nil {
		return nil, err
	}
	return &QuizOutput{Body: view}, nil
}

func (s *Server) handleAnswerQuiz(ctx context.Context, input *AnswerQuizInput) (*QuizResultOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.services.Quiz.Submit(ctx, st, input.Body.Answer)
	if err != nil {
		return nil, err
	}
	return &QuizResultOutput{Body: result}, nil
}
