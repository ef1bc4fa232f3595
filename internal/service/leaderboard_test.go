package service

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	"github.com/ecocampus/ecocampus-server/internal/nav"
)

func leaders() []domain.LeaderboardUser {
	return []domain.LeaderboardUser{
		{ID: "u1", FullName: "Asha Rao", Course: "FY BMS", LifetimePoints: 120},
		{ID: "u2", FullName: "Kabir Shah", Course: "SY BSc IT", LifetimePoints: 300},
		{ID: "u3", FullName: "Aarav Mehta", Course: "BMS", LifetimePoints: 120},
		{ID: "u4", FullName: "Zoya Khan", Course: "TY BSc IT", LifetimePoints: 0},
		{ID: "u5", FullName: "Meera Iyer", Course: "BAF", LifetimePoints: 45},
	}
}

func TestBuildLeaderboard(t *testing.T) {
	v := BuildLeaderboard(leaders(), "u3")

	require.Len(t, v.Podium, 3)
	assert.Equal(t, []string{"u2", "u3", "u1"}, []string{v.Podium[0].ID, v.Podium[1].ID, v.Podium[2].ID})
	assert.Equal(t, []int{1, 2, 3}, []int{v.Podium[0].Rank, v.Podium[1].Rank, v.Podium[2].Rank})
	assert.True(t, v.Podium[1].IsMe)
	assert.Equal(t, "AM", v.Podium[1].Initials)

	// Zero-point users are not ranked.
	require.Len(t, v.Rest, 1)
	assert.Equal(t, "u5", v.Rest[0].ID)
	assert.Equal(t, 4, v.Rest[0].Rank)
}

func TestBuildLeaderboard_Idempotent(t *testing.T) {
	users := leaders()
	first := BuildLeaderboard(users, "u1")

	// Input order must not matter.
	reversed := make([]domain.LeaderboardUser, len(users))
	for i, u := range users {
		reversed[len(users)-1-i] = u
	}
	second := BuildLeaderboard(reversed, "u1")

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("leaderboard changed between builds (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(leaders(), users); diff != "" {
		t.Errorf("input mutated (-want +got):\n%s", diff)
	}
}

func TestBuildLeaderboard_Empty(t *testing.T) {
	v := BuildLeaderboard(nil, "")
	assert.Empty(t, v.Podium)
	assert.Empty(t, v.Rest)
}

func TestGroupDepartments(t *testing.T) {
	got := GroupDepartments(leaders())
	want := []domain.DepartmentStat{
		{Department: "BSC IT", AvgPoints: 150, StudentCount: 2, TotalPoints: 300},
		{Department: "BMS", AvgPoints: 120, StudentCount: 2, TotalPoints: 240},
		{Department: "BAF", AvgPoints: 45, StudentCount: 1, TotalPoints: 45},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GroupDepartments mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupDepartments_RoundsHalfUp(t *testing.T) {
	got := GroupDepartments([]domain.LeaderboardUser{
		{ID: "a", Course: "BMS", LifetimePoints: 1},
		{ID: "b", Course: "BMS", LifetimePoints: 2},
	})
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].AvgPoints)
}

func TestLeaderboardPage_AndDepartmentDrillDown(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	st, me := e.newStudent(t, "FY BMS")
	_, other := e.newStudent(t, "SY BMS")
	e.credit(t, me.ID, 40)
	e.credit(t, other.ID, 90)

	view, err := e.nav.ShowPage(ctx, st, nav.PageLeaderboard, true)
	require.NoError(t, err)
	board, ok := view.Data.(LeaderboardView)
	require.True(t, ok)
	require.Len(t, board.Podium, 2)
	assert.Equal(t, other.ID, board.Podium[0].ID)
	assert.True(t, board.Podium[1].IsMe)

	depts, err := e.leaderboard.Departments(ctx, st)
	require.NoError(t, err)
	require.NotEmpty(t, depts.Departments)
	assert.Equal(t, "BMS", depts.Departments[0].Department)
	assert.Equal(t, 65, depts.Departments[0].AvgPoints)

	view, err = e.leaderboard.ShowDepartment(ctx, st, "ty bms")
	require.NoError(t, err)
	detail, ok := view.Data.(DepartmentDetailView)
	require.True(t, ok)
	assert.Equal(t, "BMS", detail.Department)
	assert.Len(t, detail.Members, 2)
}
