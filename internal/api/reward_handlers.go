package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ecocampus/ecocampus-server/internal/search"
	"github.com/ecocampus/ecocampus-server/internal/service"
)

func (s *Server) registerRewardRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "showStore",
		Method:      http.MethodGet,
		Path:        "/api/v1/stores/{id}",
		Summary:     "Show store",
		Tags:        []string{"Rewards"},
		Security:    bearer,
	}, s.handleShowStore)

	huma.Register(s.api, huma.Operation{
		OperationID: "showProduct",
		Method:      http.MethodGet,
		Path:        "/api/v1/products/{id}",
		Summary:     "Show product",
		Tags:        []string{"Rewards"},
		Security:    bearer,
	}, s.handleShowProduct)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchStore",
		Method:      http.MethodGet,
		Path:        "/api/v1/store/search",
		Summary:     "Search the store",
		Description: "Full-text search over stores and products",
		Tags:        []string{"Rewards"},
		Security:    bearer,
	}, s.handleSearchStore)

	huma.Register(s.api, huma.Operation{
		OperationID: "purchaseProduct",
		Method:      http.MethodPost,
		Path:        "/api/v1/products/{id}/purchase",
		Summary:     "Buy a product with points",
		Tags:        []string{"Rewards"},
		Security:    bearer,
	}, s.handlePurchase)

	huma.Register(s.api, huma.Operation{
		OperationID: "redeemCoupon",
		Method:      http.MethodPost,
		Path:        "/api/v1/coupons/redeem",
		Summary:     "Redeem coupon",
		Tags:        []string{"Rewards"},
		Security:    bearer,
	}, s.handleRedeemCoupon)
}

func (s *Server) registerLeaderboardRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listDepartments",
		Method:      http.MethodGet,
		Path:        "/api/v1/departments",
		Summary:     "Department leaderboard",
		Tags:        []string{"Leaderboard"},
		Security:    bearer,
	}, s.handleListDepartments)

	huma.Register(s.api, huma.Operation{
		OperationID: "showDepartment",
		Method:      http.MethodGet,
		Path:        "/api/v1/departments/{name}",
		Summary:     "Department members",
		Tags:        []string{"Leaderboard"},
		Security:    bearer,
	}, s.handleShowDepartment)
}

// SearchStoreInput carries the store search query.
type SearchStoreInput struct {
	Query       string `query:"q" maxLength:"100" doc:"Search text"`
	StoreID     string `query:"store" doc:"Restrict to one store"`
	Type        string `query:"type" enum:"product,store" doc:"Restrict to one document type"`
	InStockOnly bool   `query:"in_stock" doc:"Hide sold out products"`
	Sort        string `query:"sort" enum:"relevance,popularity,price-low,price-high,name" doc:"Sort order"`
	Limit       int    `query:"limit" minimum:"0" maximum:"100" doc:"Maximum hits"`
	Offset      int    `query:"offset" minimum:"0" doc:"Hits to skip"`
}

// SearchOutput wraps search hits for Huma.
type SearchOutput struct {
	Body *search.SearchResult
}

// RedeemCouponInput carries the coupon code.
type RedeemCouponInput struct {
	Body struct {
		Code string `json:"code" maxLength:"64" doc:"Coupon code"`
	}
}

// RedeemOutput wraps the coupon outcome for Huma.
type RedeemOutput struct {
	Body *service.RedeemResult
}

// OrderOutput wraps a new order for Huma.
type OrderOutput struct {
	Body *service.OrderCard
}

// DepartmentsOutput wraps the department tab for Huma.
type DepartmentsOutput struct {
	Body *service.DepartmentsView
}

// DepartmentInput names a department.
type DepartmentInput struct {
	Name string `path:"name" doc:"Department name"`
}

func (s *Server) handleShowStore(ctx context.Context, input *IDInput) (*ViewOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Rewards.ShowStore(ctx, st, input.ID)
	return viewOrError(view, err)
}

func (s *Server) handleShowProduct(ctx context.Context, input *IDInput) (*ViewOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Rewards.ShowProduct(ctx, st, input.ID)
	return viewOrError(view, err)
}

func (s *Server) handleSearchStore(ctx context.Context, input *SearchStoreInput) (*SearchOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}

	params := search.DefaultSearchParams()
	params.Query = input.Query
	params.StoreID = input.StoreID
	params.InStockOnly = input.InStockOnly
	params.Offset = input.Offset
	if input.Type != "" {
		params.Types = []search.DocType{search.DocType(input.Type)}
	}
	if input.Sort != "" {
		params.SortBy = input.Sort
	}
	if input.Limit > 0 {
		params.Limit = input.Limit
	}

	result, err := s.services.Rewards.Search(ctx, st, params)
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Body: result}, nil
}

func (s *Server) handlePurchase(ctx context.Context, input *IDInput) (*OrderOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.services.Rewards.Purchase(ctx, st, input.ID)
	if err != nil {
		return nil, err
	}
	return &OrderOutput{Body: order}, nil
}

func (s *Server) handleRedeemCoupon(ctx context.Context, input *RedeemCouponInput) (*RedeemOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.services.Rewards.RedeemCoupon(ctx, st, input.Body.Code)
	if err != nil {
		return nil, err
	}
	return &RedeemOutput{Body: result}, nil
}

func (s *Server) handleListDepartments(ctx context.Context, _ *struct{}) (*DepartmentsOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Leaderboard.Departments(ctx, st)
	if err != nil {
		return nil, err
	}
	return &DepartmentsOutput{Body: view}, nil
}

func (s *Server) handleShowDepartment(ctx context.Context, input *DepartmentInput) (*ViewOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Leaderboard.ShowDepartment(ctx, st, input.Name)
	return viewOrError(view, err)
}
