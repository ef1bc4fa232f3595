package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocampus/ecocampus-server/internal/nav"
)

func TestHistoryPages(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	st, p := e.newStudent(t, "BMS")
	e.credit(t, p.ID, 30)
	require.NoError(t, e.store.RecordPlastic(ctx, p.ID, 2, 20))

	view, err := e.nav.ShowPage(ctx, st, nav.PageHistory, true)
	require.NoError(t, err)
	rows, ok := view.Data.([]HistoryRow)
	require.True(t, ok)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.True(t, r.Credit)
		assert.NotEmpty(t, r.Icon)
	}

	view, err = e.nav.ShowPage(ctx, st, nav.PagePlasticLog, true)
	require.NoError(t, err)
	plastic, ok := view.Data.(PlasticView)
	require.True(t, ok)
	assert.Equal(t, "2.0 kg", plastic.TotalKg)
	assert.Equal(t, "3.0 kg", plastic.CO2Saved)
	require.Len(t, plastic.Entries, 1)
	assert.Equal(t, 20, plastic.Entries[0].Points)

	require.Eventually(t, func() bool { return st.Scalars().Points == 50 }, 2*time.Second, 10*time.Millisecond)
	view, err = e.nav.ShowPage(ctx, st, nav.PageEcoPoints, true)
	require.NoError(t, err)
	eco, ok := view.Data.(EcoPointsView)
	require.True(t, ok)
	assert.Equal(t, 50, eco.LifetimePoints)
	assert.NotEmpty(t, eco.Levels)

	// Back returns to the plastic log.
	view, err = e.nav.Back(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, nav.PagePlasticLog, view.Page)
}

func TestGalleryPage_Empty(t *testing.T) {
	e := newTestEnv(t)
	st, _ := e.newStudent(t, "BMS")

	view, err := e.nav.ShowPage(context.Background(), st, nav.PageGreenLens, true)
	require.NoError(t, err)
	items, ok := view.Data.([]GalleryItem)
	require.True(t, ok)
	assert.Empty(t, items)
}
