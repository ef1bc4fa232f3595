package nav

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/logger"
	"github.com/ecocampus/ecocampus-server/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	mu      sync.Mutex
	actions []string
}

func (r *recorded) Record(_ context.Context, _, action, description string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action+":"+description)
}

func (r *recorded) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.actions...)
}

// countingPage returns a page whose loader counts calls and renders the cached value.
func countingPage(name string, r state.Resource, calls *atomic.Int32, value any) Page {
	return Page{
		Name:     name,
		Resource: r,
		Load: func(context.Context, *state.AppState) (any, error) {
			calls.Add(1)
			return value, nil
		},
		Render: func(st *state.AppState) (any, error) {
			v, _ := st.Resource(r)
			return v, nil
		},
	}
}

func staticPage(name string) Page {
	return Page{Name: name, Render: func(*state.AppState) (any, error) { return name, nil }}
}

func newNav(t *testing.T, pages ...Page) (*Navigator, *recorded) {
	t.Helper()
	rec := &recorded{}
	n := New(rec, logger.Discard())
	require.NoError(t, n.Register(pages...))
	return n, rec
}

func TestRegister_RejectsBadRegistry(t *testing.T) {
	err := New(&recorded{}, logger.Discard()).Register(Page{Name: PageDashboard})
	assert.Error(t, err)

	err = New(&recorded{}, logger.Discard()).Register(staticPage(PageDashboard), staticPage(PageDashboard))
	assert.Error(t, err)
}

func TestShowPage_UnknownPage(t *testing.T) {
	n, _ := newNav(t, staticPage(PageDashboard))
	st := state.New("sess-1", "tok")

	_, err := n.ShowPage(context.Background(), st, "admin", true)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Empty(t, st.Visible())
}

func TestShowPage_LoadsOnceAndRendersFromCache(t *testing.T) {
	var calls atomic.Int32
	n, rec := newNav(t,
		countingPage(PageLeaderboard, state.ResourceLeaderboard, &calls, []string{"asha"}),
		staticPage(PageDashboard),
	)
	st := state.New("sess-1", "tok")
	ctx := context.Background()

	view, err := n.ShowPage(ctx, st, PageLeaderboard, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"asha"}, view.Data)
	assert.Equal(t, PageLeaderboard, view.ActiveNav)
	assert.True(t, st.IsLoaded(state.ResourceLeaderboard))

	_, err = n.ShowPage(ctx, st, PageDashboard, true)
	require.NoError(t, err)
	_, err = n.ShowPage(ctx, st, "#leaderboard", true)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"#leaderboard", "#dashboard", "#leaderboard"}, st.History())
	assert.Equal(t, []string{"page_view:Visited leaderboard", "page_view:Visited dashboard"}, rec.all())
}

func TestShowPage_ConcurrentVisitsShareOneLoad(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	page := Page{
		Name:     PageRewards,
		Resource: state.ResourceStore,
		Load: func(context.Context, *state.AppState) (any, error) {
			calls.Add(1)
			<-release
			return "catalog", nil
		},
		Render: func(st *state.AppState) (any, error) {
			v, _ := st.Resource(state.ResourceStore)
			return v, nil
		},
	}
	n, _ := newNav(t, page)
	st := state.New("sess-1", "tok")

	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() {
			_, err := n.ShowPage(context.Background(), st, PageRewards, false)
			assert.NoError(t, err)
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestShowPage_LoadFailureCarriesRetry(t *testing.T) {
	fail := true
	page := Page{
		Name:     PageHistory,
		Resource: state.ResourceHistory,
		Load: func(context.Context, *state.AppState) (any, error) {
			if fail {
				return nil, errors.New("network down")
			}
			return []int{1}, nil
		},
		Render: func(st *state.AppState) (any, error) {
			v, _ := st.Resource(state.ResourceHistory)
			return v, nil
		},
	}
	n, _ := newNav(t, page)
	st := state.New("sess-1", "tok")
	ctx := context.Background()

	view, err := n.ShowPage(ctx, st, PageHistory, true)
	require.Error(t, err)
	require.NotNil(t, view)
	assert.True(t, view.Retry)
	assert.Contains(t, view.Error, "network down")
	assert.False(t, st.IsLoaded(state.ResourceHistory))

	fail = false
	view, err = n.ShowPage(ctx, st, PageHistory, false)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, view.Data)
	assert.False(t, view.Retry)
}

func TestShowPage_RenderFailureCarriesRetry(t *testing.T) {
	selected := false
	detail := Page{
		Name: PageDepartmentDetail,
		Render: func(*state.AppState) (any, error) {
			if !selected {
				return nil, errors.New("no department selected")
			}
			return "BSC IT", nil
		},
	}
	n, _ := newNav(t, staticPage(PageDashboard), detail)
	st := state.New("sess-1", "tok")
	ctx := context.Background()

	_, err := n.ShowPage(ctx, st, PageDashboard, true)
	require.NoError(t, err)

	view, err := n.ShowPage(ctx, st, PageDepartmentDetail, true)
	require.Error(t, err)
	require.NotNil(t, view)
	assert.True(t, view.Retry)
	assert.Equal(t, "no department selected", view.Error)
	assert.Equal(t, []string{"#dashboard", "#department-detail"}, view.History)
	stored, ok := st.View(PageDepartmentDetail)
	require.True(t, ok)
	assert.Equal(t, view, stored)

	selected = true
	view, err = n.RefreshPage(ctx, st, PageDepartmentDetail)
	require.NoError(t, err)
	assert.Equal(t, "BSC IT", view.Data)
	assert.False(t, view.Retry)
	assert.Len(t, st.History(), 2)
}

func TestShowPage_ClearsDetailViews(t *testing.T) {
	n, _ := newNav(t,
		staticPage(PageRewards),
		staticPage(PageStoreDetail),
		staticPage(PageProductDetail),
		staticPage(PageLeaderboard),
		staticPage(PageDepartmentDetail),
	)
	st := state.New("sess-1", "tok")
	ctx := context.Background()

	// Department detail drops the store group.
	for _, p := range []string{PageStoreDetail, PageDepartmentDetail} {
		_, err := n.ShowPage(ctx, st, p, false)
		require.NoError(t, err)
	}
	_, ok := st.View(PageStoreDetail)
	assert.False(t, ok)
	_, ok = st.View(PageDepartmentDetail)
	assert.True(t, ok)

	// Product detail keeps the store group but drops the department detail.
	for _, p := range []string{PageStoreDetail, PageProductDetail} {
		_, err := n.ShowPage(ctx, st, p, false)
		require.NoError(t, err)
	}
	_, ok = st.View(PageStoreDetail)
	assert.True(t, ok)
	_, ok = st.View(PageDepartmentDetail)
	assert.False(t, ok)

	_, err := n.ShowPage(ctx, st, PageLeaderboard, false)
	require.NoError(t, err)
	_, ok = st.View(PageStoreDetail)
	assert.False(t, ok)
	_, ok = st.View(PageProductDetail)
	assert.False(t, ok)
}

func TestShowPage_SupersededLoadDoesNotReplaceView(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	slow := Page{
		Name:     PageEvents,
		Resource: state.ResourceEvents,
		Load: func(context.Context, *state.AppState) (any, error) {
			close(started)
			<-release
			return "events", nil
		},
		Render: func(st *state.AppState) (any, error) { return "events view", nil },
	}
	n, _ := newNav(t, slow, staticPage(PageDashboard))
	st := state.New("sess-1", "tok")
	ctx := context.Background()

	done := make(chan *View)
	go func() {
		v, _ := n.ShowPage(ctx, st, PageEvents, true)
		done <- v
	}()
	<-started

	_, err := n.ShowPage(ctx, st, PageDashboard, true)
	require.NoError(t, err)
	close(release)

	v := <-done
	assert.True(t, v.Superseded)
	assert.True(t, st.IsLoaded(state.ResourceEvents), "backend data is still cached")
	_, ok := st.View(PageEvents)
	assert.False(t, ok)
	assert.Equal(t, PageDashboard, st.Visible())
}

func TestBack(t *testing.T) {
	n, _ := newNav(t, staticPage(PageDashboard), staticPage(PageRewards), staticPage(PageHistory))
	st := state.New("sess-1", "tok")
	ctx := context.Background()

	view, err := n.Back(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, PageDashboard, view.Page)

	_, err = n.ShowPage(ctx, st, PageRewards, true)
	require.NoError(t, err)
	_, err = n.ShowPage(ctx, st, PageHistory, true)
	require.NoError(t, err)

	view, err = n.Back(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, PageRewards, view.Page)
	assert.Equal(t, []string{"#dashboard", "#rewards"}, st.History())
}

func TestRefresh_ReloadsAndPushesVisiblePage(t *testing.T) {
	var calls atomic.Int32
	n, _ := newNav(t, countingPage(PageMyRewards, state.ResourceOrders, &calls, "orders"))
	st := state.New("sess-1", "tok")
	ctx := context.Background()

	var pushed []string
	st.SetNotifier(func(kind string, data any) {
		pushed = append(pushed, kind+":"+data.(*View).Page)
	})

	_, err := n.ShowPage(ctx, st, PageMyRewards, false)
	require.NoError(t, err)
	require.NoError(t, n.Refresh(ctx, st, state.ResourceOrders))

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"view:my-rewards"}, pushed)

	assert.ErrorIs(t, n.Refresh(ctx, st, "nope"), domainerrors.ErrValidation)
}

func TestPreload_UsesTabLoaderOnce(t *testing.T) {
	var calls atomic.Int32
	n, _ := newNav(t, staticPage(PageLeaderboard))
	require.NoError(t, n.RegisterLoader(state.ResourceDepartments, func(context.Context, *state.AppState) (any, error) {
		calls.Add(1)
		return []string{"BSC IT"}, nil
	}))
	assert.Error(t, n.RegisterLoader(state.ResourceDepartments, func(context.Context, *state.AppState) (any, error) {
		return nil, nil
	}))

	st := state.New("sess-1", "tok")
	ctx := context.Background()
	require.NoError(t, n.Preload(ctx, st, state.ResourceDepartments))
	require.NoError(t, n.Preload(ctx, st, state.ResourceDepartments))

	assert.Equal(t, int32(1), calls.Load())
	v, ok := state.Get[[]string](st, state.ResourceDepartments)
	require.True(t, ok)
	assert.Equal(t, []string{"BSC IT"}, v)
	assert.Empty(t, st.Visible())

	assert.ErrorIs(t, n.Preload(ctx, st, "nope"), domainerrors.ErrValidation)
}

func TestRefreshPage_ReloadsWithoutHistory(t *testing.T) {
	var calls atomic.Int32
	n, _ := newNav(t, countingPage(PageEvents, state.ResourceEvents, &calls, "events"))
	st := state.New("sess-1", "tok")
	ctx := context.Background()

	_, err := n.ShowPage(ctx, st, PageEvents, true)
	require.NoError(t, err)
	view, err := n.RefreshPage(ctx, st, "#"+PageEvents)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "events", view.Data)
	assert.Len(t, st.History(), 1)

	_, err = n.RefreshPage(ctx, st, "admin")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestExpireWhen_ReloadsStaleResource(t *testing.T) {
	var calls atomic.Int32
	n, _ := newNav(t, countingPage(PageDashboard, state.ResourceDashboard, &calls, "facts"))
	var stale atomic.Bool
	require.NoError(t, n.ExpireWhen(state.ResourceDashboard, func(*state.AppState) bool { return stale.Load() }))
	assert.Error(t, n.ExpireWhen(state.ResourceDashboard, func(*state.AppState) bool { return false }))
	assert.Error(t, n.ExpireWhen(state.ResourceEvents, nil))

	st := state.New("sess-1", "tok")
	ctx := context.Background()

	_, err := n.ShowPage(ctx, st, PageDashboard, false)
	require.NoError(t, err)
	require.NoError(t, n.Preload(ctx, st, state.ResourceDashboard))
	assert.Equal(t, int32(1), calls.Load())

	stale.Store(true)
	_, err = n.ShowPage(ctx, st, PageDashboard, false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	require.NoError(t, n.Preload(ctx, st, state.ResourceDashboard))
	assert.Equal(t, int32(3), calls.Load())

	stale.Store(false)
	require.NoError(t, n.Preload(ctx, st, state.ResourceDashboard))
	assert.Equal(t, int32(3), calls.Load())
}

func TestLoad_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	page := Page{
		Name:     PageEvents,
		Resource: state.ResourceEvents,
		Load: func(ctx context.Context, _ *state.AppState) (any, error) {
			calls.Add(1)
			close(started)
			select {
			case <-release:
				return "events", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
		Render: func(st *state.AppState) (any, error) {
			v, _ := st.Resource(state.ResourceEvents)
			return v, nil
		},
	}
	n, _ := newNav(t, page)
	st := state.New("sess-1", "tok")

	firstCtx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- n.Preload(firstCtx, st, state.ResourceEvents) }()
	<-started

	second := make(chan *View, 1)
	go func() {
		v, _ := n.ShowPage(context.Background(), st, PageEvents, false)
		second <- v
	}()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	v := <-second
	require.NotNil(t, v)
	assert.Empty(t, v.Error)
	assert.Equal(t, "events", v.Data)
	assert.True(t, st.IsLoaded(state.ResourceEvents))
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoad_Timeout(t *testing.T) {
	page := Page{
		Name:     PageEvents,
		Resource: state.ResourceEvents,
		Load: func(ctx context.Context, _ *state.AppState) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		Render: func(*state.AppState) (any, error) { return nil, nil },
	}
	n, _ := newNav(t, page)
	n.SetLoadTimeout(20 * time.Millisecond)
	st := state.New("sess-1", "tok")

	err := n.Preload(context.Background(), st, state.ResourceEvents)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, st.IsLoaded(state.ResourceEvents))
}
