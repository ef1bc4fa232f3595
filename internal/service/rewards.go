package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ecocampus/ecocampus-server/internal/backend"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/media"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/search"
	"github.com/ecocampus/ecocampus-server/internal/state"
	"github.com/ecocampus/ecocampus-server/internal/util"
	"github.com/ecocampus/ecocampus-server/internal/validation"
)

const (
	intentStore   = "store"
	intentProduct = "product"
)

// CatalogIndex is the full-text index over stores and products.
type CatalogIndex interface {
	IndexDocuments(docs []*search.SearchDocument) error
	Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error)
}

type catalog struct {
	Stores   []domain.Store
	Products []domain.Product
}

func (c catalog) product(id string) (domain.Product, bool) {
	i := slices.IndexFunc(c.Products, func(p domain.Product) bool { return p.ID == id })
	if i < 0 {
		return domain.Product{}, false
	}
	return c.Products[i], true
}

// ProductCard is a product tile.
type ProductCard struct {
	ID            string  `json:"id"`
	StoreID       string  `json:"store_id"`
	StoreName     string  `json:"store_name"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	ImageURL      string  `json:"image_url"`
	Cost          int     `json:"cost"`
	OriginalPrice float64 `json:"original_price,omitempty"`
	Stock         int     `json:"stock"`
	Affordable    bool    `json:"affordable"`
	ButtonLabel   string  `json:"button_label"`
}

// StoreCard is a store with its products.
type StoreCard struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	LogoURL  string        `json:"logo_url"`
	Products []ProductCard `json:"products"`
}

// RewardsView is the store front.
type RewardsView struct {
	Points int         `json:"points"`
	Stores []StoreCard `json:"stores"`
}

// OrderCard is one purchase on the my rewards page. QRValue is what the
// vendor scans.
type OrderCard struct {
	ID          string `json:"id"`
	ProductName string `json:"product_name"`
	StoreName   string `json:"store_name"`
	ImageURL    string `json:"image_url"`
	Status      string `json:"status"`
	QRValue     string `json:"qr_value"`
	PointsSpent int    `json:"points_spent"`
	Date        string `json:"date"`
}

// RedeemResult is the outcome of a coupon.
type RedeemResult struct {
	Points  int    `json:"points"`
	Message string `json:"message"`
}

type redeemRequest struct {
	Code string `json:"code" validate:"required,coupon"`
}

// RewardsService runs the store, orders and coupons.
type RewardsService struct {
	backend   backend.Client
	nav       *nav.Navigator
	flows     *FlowRunner
	recorder  nav.Recorder
	index     CatalogIndex
	validator *validation.Validator
	clock     *util.Clock
	logger    *slog.Logger
}

// NewRewardsService creates the rewards service.
func NewRewardsService(
	client backend.Client,
	navigator *nav.Navigator,
	flows *FlowRunner,
	recorder nav.Recorder,
	index CatalogIndex,
	validator *validation.Validator,
	clock *util.Clock,
	logger *slog.Logger,
) *RewardsService {
	return &RewardsService{
		backend:   client,
		nav:       navigator,
		flows:     flows,
		recorder:  recorder,
		index:     index,
		validator: validator,
		clock:     clock,
		logger:    logger,
	}
}

// Pages returns the store pages. The detail pages share the catalog load.
func (s *RewardsService) Pages() []nav.Page {
	return []nav.Page{
		{Name: nav.PageRewards, Resource: state.ResourceStore, Load: s.loadCatalog, Render: s.renderRewards},
		{Name: nav.PageStoreDetail, Resource: state.ResourceStore, Load: s.loadCatalog, Render: s.renderStoreDetail},
		{Name: nav.PageProductDetail, Resource: state.ResourceStore, Load: s.loadCatalog, Render: s.renderProductDetail},
		{Name: nav.PageMyRewards, Resource: state.ResourceOrders, Load: s.loadOrders, Render: s.renderOrders},
	}
}

func (s *RewardsService) loadCatalog(ctx context.Context, _ *state.AppState) (any, error) {
	stores, err := s.backend.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.backend.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]*search.SearchDocument, 0, len(stores)+len(products))
	for _, st := range stores {
		docs = append(docs, search.StoreToSearchDocument(st))
	}
	for _, p := range products {
		docs = append(docs, search.ProductToSearchDocument(p))
	}
	// Search degrades to no results; browsing still works.
	if err := s.index.IndexDocuments(docs); err != nil {
		s.logger.Warn("catalog indexing failed", "error", err)
	}
	return catalog{Stores: stores, Products: products}, nil
}

func (s *RewardsService) productCard(p domain.Product, points int, low bool) ProductCard {
	c := ProductCard{
		ID:            p.ID,
		StoreID:       p.StoreID,
		StoreName:     p.StoreName,
		Name:          p.Name,
		Description:   p.Description,
		ImageURL:      media.OptimizeURL(p.ImageURL, 400, low),
		Cost:          p.EcoPointsCost,
		OriginalPrice: p.OriginalPrice,
		Stock:         p.Stock,
		Affordable:    points >= p.EcoPointsCost,
		ButtonLabel:   "Redeem",
	}
	switch {
	case p.Stock <= 0:
		c.ButtonLabel = "Out of Stock"
	case !c.Affordable:
		c.ButtonLabel = fmt.Sprintf("Need %d more", p.EcoPointsCost-points)
	}
	return c
}

func (s *RewardsService) storeCards(st *state.AppState, filter string) []StoreCard {
	cat, _ := state.Get[catalog](st, state.ResourceStore)
	points := st.Scalars().Points
	low := lowData(st)

	byStore := make(map[string][]ProductCard)
	for _, p := range cat.Products {
		byStore[p.StoreID] = append(byStore[p.StoreID], s.productCard(p, points, low))
	}
	cards := make([]StoreCard, 0, len(cat.Stores))
	for _, store := range cat.Stores {
		if filter != "" && store.ID != filter {
			continue
		}
		cards = append(cards, StoreCard{
			ID:       store.ID,
			Name:     store.Name,
			LogoURL:  media.OptimizeURL(store.LogoURL, 120, low),
			Products: byStore[store.ID],
		})
	}
	return cards
}

func (s *RewardsService) renderRewards(st *state.AppState) (any, error) {
	return RewardsView{Points: st.Scalars().Points, Stores: s.storeCards(st, "")}, nil
}

func (s *RewardsService) renderStoreDetail(st *state.AppState) (any, error) {
	id, ok := st.Intent(intentStore)
	if !ok {
		return nil, domainerrors.Validation("no store selected")
	}
	cards := s.storeCards(st, id)
	if len(cards) == 0 {
		return nil, domainerrors.NotFoundf("store %q not found", id)
	}
	return cards[0], nil
}

func (s *RewardsService) renderProductDetail(st *state.AppState) (any, error) {
	id, ok := st.Intent(intentProduct)
	if !ok {
		return nil, domainerrors.Validation("no product selected")
	}
	cat, _ := state.Get[catalog](st, state.ResourceStore)
	p, ok := cat.product(id)
	if !ok {
		return nil, domainerrors.NotFoundf("product %q not found", id)
	}
	return s.productCard(p, st.Scalars().Points, lowData(st)), nil
}

// ShowStore opens one store's detail page.
func (s *RewardsService) ShowStore(ctx context.Context, st *state.AppState, storeID string) (*nav.View, error) {
	st.SetIntent(intentStore, storeID)
	return s.nav.ShowPage(ctx, st, nav.PageStoreDetail, true)
}

// ShowProduct opens one product's detail page.
func (s *RewardsService) ShowProduct(ctx context.Context, st *state.AppState, productID string) (*nav.View, error) {
	st.SetIntent(intentProduct, productID)
	return s.nav.ShowPage(ctx, st, nav.PageProductDetail, true)
}

// Search queries the catalog index, loading the catalog first if needed.
func (s *RewardsService) Search(ctx context.Context, st *state.AppState, params search.SearchParams) (*search.SearchResult, error) {
	if err := s.nav.Preload(ctx, st, state.ResourceStore); err != nil {
		return nil, err
	}
	params.Query = strings.TrimSpace(params.Query)
	return s.index.Search(ctx, params)
}

func (s *RewardsService) loadOrders(ctx context.Context, st *state.AppState) (any, error) {
	return s.backend.ListOrders(ctx, st.UserID())
}

func (s *RewardsService) renderOrders(st *state.AppState) (any, error) {
	orders, _ := state.Get[[]domain.Order](st, state.ResourceOrders)
	orders = slices.Clone(orders)
	slices.SortStableFunc(orders, func(a, b domain.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })

	low := lowData(st)
	cards := make([]OrderCard, len(orders))
	for i, o := range orders {
		cards[i] = OrderCard{
			ID:          o.ID,
			ProductName: o.ProductName,
			StoreName:   o.StoreName,
			ImageURL:    media.OptimizeURL(o.ImageURL, 200, low),
			Status:      cmp.Or(o.Status, domain.OrderPending),
			QRValue:     o.TicketCode,
			PointsSpent: o.PointsSpent,
			Date:        displayTime(o.CreatedAt, s.clock.Location()),
		}
	}
	return cards, nil
}

// RedeemCoupon exchanges a bonus code for points. An invalid or expired code
// leaves the balance unchanged.
func (s *RewardsService) RedeemCoupon(ctx context.Context, st *state.AppState, code string) (*RedeemResult, error) {
	code = strings.TrimSpace(code)
	uid := st.UserID()

	var awarded int
	err := s.flows.Run(ctx, st, Flow{
		Name: "redeem_coupon",
		Validate: func(ctx context.Context) error {
			if err := s.validator.Validate(redeemRequest{Code: code}); err != nil {
				s.recorder.Record(ctx, uid, domain.ActionRedeemFail, "Failed to redeem code: "+code, nil)
				return err
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			var err error
			awarded, err = s.backend.RedeemCoupon(ctx, uid, code)
			return err
		},
		Apply: func(ctx context.Context) {
			st.AddPoints(awarded)
			st.Invalidate(state.ResourceHistory)
			s.recorder.Record(ctx, uid, domain.ActionRedeemSuccess, "Redeemed code: "+code,
				map[string]any{"points": awarded})
			if err := refreshUserData(ctx, s.backend, s.nav, st); err != nil {
				s.logger.Warn("refresh after coupon", "user_id", uid, "error", err)
			}
			toastSuccess(st, fmt.Sprintf("Success! You earned %d points.", awarded))
		},
		OnFailure: func(ctx context.Context, _ error) {
			s.recorder.Record(ctx, uid, domain.ActionRedeemFail, "Failed to redeem code: "+code, nil)
		},
		Rerender: userPages,
		Failure:  "Invalid or expired code.",
	})
	if err != nil {
		return nil, err
	}
	return &RedeemResult{Points: awarded, Message: fmt.Sprintf("Success! You earned %d points.", awarded)}, nil
}

// Purchase buys a product with points. The backend debits the balance and
// decrements stock in one transaction.
func (s *RewardsService) Purchase(ctx context.Context, st *state.AppState, productID string) (*OrderCard, error) {
	if err := s.nav.Preload(ctx, st, state.ResourceStore); err != nil {
		return nil, err
	}
	cat, _ := state.Get[catalog](st, state.ResourceStore)
	product, known := cat.product(productID)
	uid := st.UserID()

	var order *domain.Order
	err := s.flows.Run(ctx, st, Flow{
		Name: "purchase",
		Validate: func(context.Context) error {
			if !known {
				return domainerrors.NotFound("That item is no longer available.")
			}
			if product.Stock <= 0 {
				return domainerrors.Conflict("This item is out of stock.")
			}
			if bal := st.Scalars().Points; bal < product.EcoPointsCost {
				return domainerrors.InsufficientPoints(product.EcoPointsCost, bal)
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			var err error
			order, err = s.backend.CreateOrder(ctx, uid, productID)
			return err
		},
		Apply: func(ctx context.Context) {
			st.AddPoints(-order.PointsSpent)
			st.Invalidate(state.ResourceOrders)
			st.Invalidate(state.ResourceHistory)
			s.recorder.Record(ctx, uid, domain.ActionPurchase, "Purchased "+product.Name,
				map[string]any{"product_id": productID, "order_id": order.ID, "points": order.PointsSpent})
			// Stock and popularity changed.
			if err := s.nav.Refresh(ctx, st, state.ResourceStore); err != nil {
				s.logger.Warn("catalog refresh after purchase", "user_id", uid, "error", err)
			}
			if err := refreshUserData(ctx, s.backend, s.nav, st); err != nil {
				s.logger.Warn("refresh after purchase", "user_id", uid, "error", err)
			}
		},
		Rerender: []string{nav.PageRewards, nav.PageProductDetail},
		Success:  "Purchase successful! Find your QR code in My Rewards.",
	})
	if err != nil {
		return nil, err
	}
	return &OrderCard{
		ID:          order.ID,
		ProductName: product.Name,
		StoreName:   product.StoreName,
		Status:      cmp.Or(order.Status, domain.OrderPending),
		QRValue:     order.TicketCode,
		PointsSpent: order.PointsSpent,
		Date:        displayTime(order.CreatedAt, s.clock.Location()),
	}, nil
}
