package state

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFireOnce(t *testing.T) {
	st := New("sess-1", "tok")

	var fired atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			if st.FireOnce("login") {
				fired.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), fired.Load())
	assert.True(t, st.FireOnce("logout"))
}

func TestProfileAndScalars(t *testing.T) {
	st := New("sess-1", "tok")
	_, ok := st.Profile()
	assert.False(t, ok)
	assert.Empty(t, st.UserID())

	st.SetProfile(domain.Profile{ID: "usr-1", FullName: "Asha", CurrentPoints: 60, LifetimePoints: 200})
	assert.Equal(t, "usr-1", st.UserID())

	st.AddPoints(10)
	p, ok := st.Profile()
	require.True(t, ok)
	assert.Equal(t, 70, p.CurrentPoints)
	assert.Equal(t, 210, p.LifetimePoints)

	st.AddPoints(-50)
	assert.Equal(t, 20, st.Scalars().Points)
	assert.Equal(t, 210, st.Scalars().LifetimePoints)
}

func TestUpdateProfile_ReportsChange(t *testing.T) {
	st := New("sess-1", "tok")
	assert.False(t, st.UpdateProfile(func(p *domain.Profile) { p.TickType = "gold" }))

	st.SetProfile(domain.Profile{ID: "usr-1", CurrentPoints: 10})
	assert.True(t, st.UpdateProfile(func(p *domain.Profile) { p.CurrentPoints = 25 }))
	assert.False(t, st.UpdateProfile(func(p *domain.Profile) { p.CurrentPoints = 25 }))
	assert.Equal(t, 25, st.Scalars().Points)
}

func TestSnapshotRestore(t *testing.T) {
	st := New("sess-1", "tok")
	st.SetProfile(domain.Profile{ID: "usr-1", CurrentPoints: 60})
	st.UpdateScalars(func(sc *Scalars) { sc.Streak = 5 })

	snap := st.Snapshot()
	st.UpdateScalars(func(sc *Scalars) {
		sc.Points -= 50
		sc.Streak = 6
		sc.LastCheckinDate = "2026-03-10"
	})

	st.Restore(snap)
	assert.Equal(t, Scalars{Points: 60, Streak: 5}, st.Scalars())
	assert.Equal(t, 60, snap.Scalars().Points)
}

func TestResources(t *testing.T) {
	st := New("sess-1", "tok")
	assert.False(t, st.IsLoaded(ResourceLeaderboard))

	st.SetResource(ResourceLeaderboard, []string{"a"})
	st.MarkLoaded(ResourceLeaderboard)
	assert.True(t, st.IsLoaded(ResourceLeaderboard))

	got, ok := Get[[]string](st, ResourceLeaderboard)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, got)

	_, ok = Get[int](st, ResourceLeaderboard)
	assert.False(t, ok)

	st.Invalidate(ResourceLeaderboard)
	assert.False(t, st.IsLoaded(ResourceLeaderboard))
	_, ok = st.Resource(ResourceLeaderboard)
	assert.True(t, ok, "invalidate keeps the cached value")

	st.MarkLoaded(ResourceStore)
	st.MarkLoaded(ResourceEvents)
	assert.Equal(t, []Resource{ResourceEvents, ResourceStore}, st.LoadedResources())
}

func TestDepartmentsAndIntents(t *testing.T) {
	st := New("sess-1", "tok")
	st.SetDepartment("BMS", 3)
	v, ok := st.Department("BMS")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	st.ClearDepartments()
	_, ok = st.Department("BMS")
	assert.False(t, ok)

	st.SetIntent(IntentSport, "spt-1")
	got, ok := st.Intent(IntentSport)
	require.True(t, ok)
	assert.Equal(t, "spt-1", got)
	st.ClearIntent(IntentSport)
	_, ok = st.Intent(IntentSport)
	assert.False(t, ok)
}

func TestGeneration(t *testing.T) {
	st := New("sess-1", "tok")
	first := st.NextGeneration()
	assert.True(t, st.IsCurrent(first))
	second := st.NextGeneration()
	assert.False(t, st.IsCurrent(first))
	assert.True(t, st.IsCurrent(second))
}

func TestHistory(t *testing.T) {
	st := New("sess-1", "tok")
	_, ok := st.PopHistory()
	assert.False(t, ok)

	st.ResetHistory("#dashboard")
	st.PushHistory("#leaderboard")
	st.PushHistory("#leaderboard")
	st.PushHistory("#rewards")
	assert.Equal(t, []string{"#dashboard", "#leaderboard", "#rewards"}, st.History())

	prev, ok := st.PopHistory()
	require.True(t, ok)
	assert.Equal(t, "#leaderboard", prev)
	prev, ok = st.PopHistory()
	require.True(t, ok)
	assert.Equal(t, "#dashboard", prev)
	_, ok = st.PopHistory()
	assert.False(t, ok)
}

func TestNotifyAndClose(t *testing.T) {
	st := New("sess-1", "tok")
	st.Notify("view", nil) // no notifier installed

	var kinds []string
	st.SetNotifier(func(kind string, _ any) { kinds = append(kinds, kind) })
	st.Notify("toast", "hi")
	assert.Equal(t, []string{"toast"}, kinds)

	closed := 0
	st.AddCloser(func() { closed++ })
	st.AddCloser(func() { closed++ })
	st.Close()
	st.Close()
	assert.Equal(t, 2, closed)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	first := r.Create("sess-1", "tok-1")
	closed := false
	first.AddCloser(func() { closed = true })

	got, ok := r.Get("tok-1")
	require.True(t, ok)
	assert.Same(t, first, got)

	// Re-creating a session for the same token closes the old one.
	second := r.Create("sess-1", "tok-1")
	assert.True(t, closed)
	assert.NotSame(t, first, second)
	assert.Equal(t, 1, r.Len())

	r.Destroy("tok-1")
	_, ok = r.Get("tok-1")
	assert.False(t, ok)
	r.Destroy("tok-1")

	r.Create("sess-2", "tok-2")
	r.CloseAll()
	assert.Equal(t, 0, r.Len())
}
