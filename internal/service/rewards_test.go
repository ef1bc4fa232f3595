package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocampus/ecocampus-server/internal/backend/sqlite"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/search"
	"github.com/ecocampus/ecocampus-server/internal/sse"
	"github.com/ecocampus/ecocampus-server/internal/state"
)

func seedRewards(t *testing.T, e *testEnv) {
	t.Helper()
	e.importCatalog(t, sqlite.Catalog{
		Stores: []sqlite.CatalogStore{{
			ID: "str-1", Name: "Green Cafe",
			Products: []sqlite.CatalogProduct{
				{ID: "prd-1", Name: "Bamboo Bottle", Cost: 80, Stock: 1},
				{ID: "prd-2", Name: "Jute Bag", Cost: 30, Stock: 0},
			},
		}},
		Coupons: []sqlite.CatalogCoupon{
			{Code: "GREEN25", Points: 25},
			{Code: "GONE", Points: 5, ExpiresIn: time.Nanosecond},
		},
	})
}

func TestRedeemCoupon_Scenario(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	seedRewards(t, e)
	st, p := e.newStudent(t, "BMS")

	res, err := e.rewards.RedeemCoupon(ctx, st, " green25 ")
	require.NoError(t, err)
	assert.Equal(t, 25, res.Points)
	assert.Equal(t, "Success! You earned 25 points.", res.Message)
	assert.Equal(t, 25, st.Scalars().Points)
	assert.Contains(t, e.pusher.toasts(sse.ToastSuccess), "Success! You earned 25 points.")

	// Single use per user.
	_, err = e.rewards.RedeemCoupon(ctx, st, "GREEN25")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Equal(t, "Invalid or expired code.", userMessage(err))
	assert.Equal(t, 25, st.Scalars().Points)

	time.Sleep(time.Millisecond)
	_, err = e.rewards.RedeemCoupon(ctx, st, "GONE")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = e.rewards.RedeemCoupon(ctx, st, "")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	got, err := e.store.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.CurrentPoints)
	assert.Contains(t, e.pusher.toasts(sse.ToastError), "Invalid or expired code.")
}

func TestPurchase(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	seedRewards(t, e)
	token, p := e.signUp(t, "BMS")
	e.credit(t, p.ID, 100)
	st := e.login(t, token)

	view, err := e.nav.ShowPage(ctx, st, nav.PageRewards, true)
	require.NoError(t, err)
	rv, ok := view.Data.(RewardsView)
	require.True(t, ok)
	require.Len(t, rv.Stores, 1)
	labels := map[string]string{}
	for _, c := range rv.Stores[0].Products {
		labels[c.ID] = c.ButtonLabel
	}
	assert.Equal(t, "Redeem", labels["prd-1"])
	assert.Equal(t, "Out of Stock", labels["prd-2"])

	_, err = e.rewards.Purchase(ctx, st, "prd-2")
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	order, err := e.rewards.Purchase(ctx, st, "prd-1")
	require.NoError(t, err)
	assert.Equal(t, "Bamboo Bottle", order.ProductName)
	assert.NotEmpty(t, order.QRValue)
	assert.Equal(t, 20, st.Scalars().Points)
	assert.False(t, st.IsLoaded(state.ResourceHistory))

	// The catalog was refreshed: the last bottle is gone.
	_, err = e.rewards.Purchase(ctx, st, "prd-1")
	assert.ErrorIs(t, err, domainerrors.ErrConflict)
	assert.Equal(t, 20, st.Scalars().Points)

	view, err = e.nav.ShowPage(ctx, st, nav.PageMyRewards, true)
	require.NoError(t, err)
	orders, ok := view.Data.([]OrderCard)
	require.True(t, ok)
	require.Len(t, orders, 1)
	assert.Equal(t, order.QRValue, orders[0].QRValue)
}

func TestPurchase_InsufficientPoints(t *testing.T) {
	e := newTestEnv(t)
	seedRewards(t, e)
	st, _ := e.newStudent(t, "BMS")

	_, err := e.rewards.Purchase(context.Background(), st, "prd-1")
	assert.ErrorIs(t, err, domainerrors.ErrInsufficientPoints)
	assert.Equal(t, 0, st.Scalars().Points)
}

func TestRewardsSearch(t *testing.T) {
	e := newTestEnv(t)
	seedRewards(t, e)
	st, _ := e.newStudent(t, "BMS")

	res, err := e.rewards.Search(context.Background(), st, search.SearchParams{Query: "bottle"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "prd-1", res.Hits[0].ID)
}
