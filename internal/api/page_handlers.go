package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ecocampus/ecocampus-server/internal/nav"
)

func (s *Server) registerPageRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "showPage",
		Method:      http.MethodGet,
		Path:        "/api/v1/pages/{page}",
		Summary:     "Show page",
		Description: "Makes the page visible, loading its data on first visit, and returns its view model",
		Tags:        []string{"Navigation"},
		Security:    bearer,
	}, s.handleShowPage)

	huma.Register(s.api, huma.Operation{
		OperationID: "goBack",
		Method:      http.MethodPost,
		Path:        "/api/v1/pages/back",
		Summary:     "Go back",
		Description: "Returns to the previous page, or the dashboard when history is empty",
		Tags:        []string{"Navigation"},
		Security:    bearer,
	}, s.handleBack)

	huma.Register(s.api, huma.Operation{
		OperationID: "refreshPage",
		Method:      http.MethodPost,
		Path:        "/api/v1/pages/{page}/refresh",
		Summary:     "Refresh page",
		Description: "Reloads the page data from the backend",
		Tags:        []string{"Navigation"},
		Security:    bearer,
	}, s.handleRefreshPage)
}

// ShowPageInput names the page to show.
type ShowPageInput struct {
	Page         string `path:"page" doc:"Page name, e.g. dashboard or leaderboard"`
	AddToHistory bool   `query:"history" default:"true" doc:"Push the page onto the history stack"`
}

// PageInput names a page.
type PageInput struct {
	Page string `path:"page" doc:"Page name"`
}

// ViewOutput wraps a rendered page for Huma.
type ViewOutput struct {
	Body *nav.View
}

// A load or render failure still returns the view so the browser can render the retry
// affordance; only unknown pages and missing sessions are errors.
func (s *Server) handleShowPage(ctx context.Context, input *ShowPageInput) (*ViewOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Navigator.ShowPage(ctx, st, input.Page, input.AddToHistory)
	return viewOrError(view, err)
}

func (s *Server) handleBack(ctx context.Context, _ *struct{}) (*ViewOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Navigator.Back(ctx, st)
	return viewOrError(view, err)
}

func (s *Server) handleRefreshPage(ctx context.Context, input *PageInput) (*ViewOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Navigator.RefreshPage(ctx, st, input.Page)
	return viewOrError(view, err)
}

func viewOrError(view *nav.View, err error) (*ViewOutput, error) {
	if view != nil {
		return &ViewOutput{Body: view}, nil
	}
	return nil, err
}
