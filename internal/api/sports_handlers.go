package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	"github.com/ecocampus/ecocampus-server/internal/service"
)

func (s *Server) registerSportsRoutes() {
	// Registrations.
	huma.Register(s.api, huma.Operation{
		OperationID: "openSportRegistration",
		Method:      http.MethodPost,
		Path:        "/api/v1/sports/{id}/registration-form",
		Summary:     "Open registration form",
		Tags:        []string{"Sports"},
		Security:    bearer,
	}, s.handleOpenRegistration)

	huma.Register(s.api, huma.Operation{
		OperationID: "registerSport",
		Method:      http.MethodPost,
		Path:        "/api/v1/sports/{id}/registrations",
		Summary:     "Register for a sport",
		Tags:        []string{"Sports"},
		Security:    bearer,
	}, s.handleRegisterSport)

	huma.Register(s.api, huma.Operation{
		OperationID: "withdrawSport",
		Method:      http.MethodDelete,
		Path:        "/api/v1/sports/{id}/registrations",
		Summary:     "Withdraw from a sport",
		Tags:        []string{"Sports"},
		Security:    bearer,
	}, s.handleWithdrawSport)

	// Teams.
	huma.Register(s.api, huma.Operation{
		OperationID: "listTeams",
		Method:      http.MethodGet,
		Path:        "/api/v1/sports/{id}/teams",
		Summary:     "Team marketplace",
		Description: "Lists open teams of a sport, optionally filtered by name",
		Tags:        []string{"Sports"},
		Security:    bearer,
	}, s.handleListTeams)

	huma.Register(s.api, huma.Operation{
		OperationID: "createTeam",
		Method:      http.MethodPost,
		Path:        "/api/v1/sports/{id}/teams",
		Summary:     "Create team",
		Tags:        []string{"Sports"},
		Security:    bearer,
	}, s.handleCreateTeam)

	huma.Register(s.api, huma.Operation{
		OperationID: "joinTeam",
		Method:      http.MethodPost,
		Path:        "/api/v1/teams/{id}/join",
		Summary:     "Request to join team",
		Tags:        []string{"Sports"},
		Security:    bearer,
	}, s.handleJoinTeam)

	huma.Register(s.api, huma.Operation{
		OperationID: "respondToJoinRequest",
		Method:      http.MethodPost,
		Path:        "/api/v1/teams/{id}/requests/{member}",
		Summary:     "Accept or reject a join request",
		Tags:        []string{"Sports"},
		Security:    bearer,
	}, s.handleRespondToRequest)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeTeamMember",
		Method:      http.MethodDelete,
		Path:        "/api/v1/teams/{id}/members/{member}",
		Summary:     "Remove team member",
		Tags:        []string{"Sports"},
		Security:    bearer,
	}, s.handleRemoveMember)

	huma.Register(s.api, huma.Operation{
		OperationID: "lockTeam",
		Method:      http.MethodPost,
		Path:        "/api/v1/teams/{id}/lock",
		Summary:     "Lock team",
		Tags:        []string{"Sports"},
		Security:    bearer,
	}, s.handleLockTeam)

	huma.Register(s.api, huma.Operation{
		OperationID: "leaveTeam",
		Method:      http.MethodPost,
		Path:        "/api/v1/teams/{id}/leave",
		Summary:     "Leave team",
		Tags:        []string{"Sports"},
		Security:    bearer,
	}, s.handleLeaveTeam)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteTeam",
		Method:      http.MethodDelete,
		Path:        "/api/v1/teams/{id}",
		Summary:     "Delete team",
		Tags:        []string{"Sports"},
		Security:    bearer,
	}, s.handleDeleteTeam)

	// Live scores (volunteers).
	huma.Register(s.api, huma.Operation{
		OperationID: "updateScore",
		Method:      http.MethodPut,
		Path:        "/api/v1/matches/{id}/score",
		Summary:     "Update live score",
		Tags:        []string{"Sports"},
		Security:    bearer,
	}, s.handleUpdateScore)

	huma.Register(s.api, huma.Operation{
		OperationID: "endMatch",
		Method:      http.MethodPost,
		Path:        "/api/v1/matches/{id}/end",
		Summary:     "End match",
		Tags:        []string{"Sports"},
		Security:    bearer,
	}, s.handleEndMatch)
}

// RegisterSportInput carries the contact number for a registration.
type RegisterSportInput struct {
	ID   string `path:"id" doc:"Sport ID"`
	Body struct {
		Mobile string `json:"mobile" doc:"Ten digit mobile number"`
	}
}

// ListTeamsInput filters the marketplace.
type ListTeamsInput struct {
	ID    string `path:"id" doc:"Sport ID"`
	Query string `query:"q" maxLength:"100" doc:"Team name filter"`
}

// TeamsOutput wraps marketplace teams for Huma.
type TeamsOutput struct {
	Body []service.MarketTeam
}

// CreateTeamInput names a new team.
type CreateTeamInput struct {
	ID   string `path:"id" doc:"Sport ID"`
	Body struct {
		Name string `json:"name" maxLength:"60" doc:"Team name"`
	}
}

// TeamOutput wraps a team card for Huma.
type TeamOutput struct {
	Body *service.TeamCard
}

// MemberInput addresses one member of a team.
type MemberInput struct {
	ID     string `path:"id" doc:"Team ID"`
	Member string `path:"member" doc:"Member row ID"`
}

// RespondToRequestInput accepts or rejects a join request.
type RespondToRequestInput struct {
	ID     string `path:"id" doc:"Team ID"`
	Member string `path:"member" doc:"Member row ID"`
	Body   struct {
		Accept bool `json:"accept" doc:"True to accept, false to reject"`
	}
}

// UpdateScoreInput carries one score edit.
type UpdateScoreInput struct {
	ID   string `path:"id" doc:"Match ID"`
	Body service.ScoreUpdate
}

// EndMatchInput names the winner.
type EndMatchInput struct {
	ID   string `path:"id" doc:"Match ID"`
	Body struct {
		Winner string `json:"winner,omitempty" doc:"Winning team or student; empty for a draw"`
	}
}

// MatchOutput wraps a match for Huma.
type MatchOutput struct {
	Body *domain.Match
}

func message(text string) *MessageOutput {
	return &MessageOutput{Body: MessageResponse{Message: text}}
}

func (s *Server) handleOpenRegistration(ctx context.Context, input *IDInput) (*MessageOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Sports.OpenRegistration(ctx, st, input.ID); err != nil {
		return nil, err
	}
	return message("Registration form opened"), nil
}

func (s *Server) handleRegisterSport(ctx context.Context, input *RegisterSportInput) (*MessageOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Sports.Register(ctx, st, input.ID, input.Body.Mobile); err != nil {
		return nil, err
	}
	return message("Registered"), nil
}

func (s *Server) handleWithdrawSport(ctx context.Context, input *IDInput) (*MessageOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Sports.Withdraw(ctx, st, input.ID); err != nil {
		return nil, err
	}
	return message("Registration withdrawn"), nil
}

func (s *Server) handleListTeams(ctx context.Context, input *ListTeamsInput) (*TeamsOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	teams, err := s.services.Sports.Marketplace(ctx, st, input.ID, input.Query)
	if err != nil {
		return nil, err
	}
	return &TeamsOutput{Body: teams}, nil
}

func (s *Server) handleCreateTeam(ctx context.Context, input *CreateTeamInput) (*TeamOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	team, err := s.services.Sports.CreateTeam(ctx, st, input.ID, input.Body.Name)
	if err != nil {
		return nil, err
	}
	return &TeamOutput{Body: team}, nil
}

func (s *Server) handleJoinTeam(ctx context.Context, input *IDInput) (*MessageOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Sports.JoinTeam(ctx, st, input.ID); err != nil {
		return nil, err
	}
	return message("Join request sent"), nil
}

func (s *Server) handleRespondToRequest(ctx context.Context, input *RespondToRequestInput) (*MessageOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Sports.RespondToRequest(ctx, st, input.ID, input.Member, input.Body.Accept); err != nil {
		return nil, err
	}
	if input.Body.Accept {
		return message("Request accepted"), nil
	}
	return message("Request rejected"), nil
}

func (s *Server) handleRemoveMember(ctx context.Context, input *MemberInput) (*MessageOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Sports.RemoveMember(ctx, st, input.ID, input.Member); err != nil {
		return nil, err
	}
	return message("Member removed"), nil
}

func (s *Server) handleLockTeam(ctx context.Context, input *IDInput) (*MessageOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Sports.LockTeam(ctx, st, input.ID); err != nil {
		return nil, err
	}
	return message("Team locked"), nil
}

func (s *Server) handleLeaveTeam(ctx context.Context, input *IDInput) (*MessageOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Sports.LeaveTeam(ctx, st, input.ID); err != nil {
		return nil, err
	}
	return message("Left team"), nil
}

func (s *Server) handleDeleteTeam(ctx context.Context, input *IDInput) (*MessageOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Sports.DeleteTeam(ctx, st, input.ID); err != nil {
		return nil, err
	}
	return message("Team deleted"), nil
}

func (s *Server) handleUpdateScore(ctx context.Context, input *UpdateScoreInput) (*MatchOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	match, err := s.services.Sports.UpdateScore(ctx, st, input.ID, input.Body)
	if err != nil {
		return nil, err
	}
	return &MatchOutput{Body: match}, nil
}

func (s *Server) handleEndMatch(ctx context.Context, input *EndMatchInput) (*MatchOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	match, err := s.services.Sports.EndMatch(ctx, st, input.ID, input.Body.Winner)
	if err != nil {
		return nil, err
	}
	return &MatchOutput{Body: match}, nil
}
