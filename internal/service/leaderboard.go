package service

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/ecocampus/ecocampus-server/internal/backend"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/media"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/state"
	"github.com/ecocampus/ecocampus-server/internal/util"
)

const (
	podiumSize = 3

	// intentDepartment holds the department shown on the drill-down page.
	intentDepartment = "department"
)

// LeaderRow is one ranked user.
type LeaderRow struct {
	Rank      int    `json:"rank"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Initials  string `json:"initials"`
	Course    string `json:"course"`
	AvatarURL string `json:"avatar_url,omitempty"`
	TickType  string `json:"tick_type,omitempty"`
	Points    int    `json:"points"`
	Streak    int    `json:"streak"`
	IsMe      bool   `json:"is_me"`
}

// LeaderboardView is the student tab: a top-3 podium and the rest.
type LeaderboardView struct {
	Tab    string      `json:"tab"`
	Podium []LeaderRow `json:"podium"`
	Rest   []LeaderRow `json:"rest"`
}

// DepartmentRow is one ranked department.
type DepartmentRow struct {
	Rank         int    `json:"rank"`
	Department   string `json:"department"`
	AvgPoints    int    `json:"avg_points"`
	StudentCount int    `json:"student_count"`
	TotalPoints  int    `json:"total_points"`
}

// DepartmentsView is the department tab.
type DepartmentsView struct {
	Tab         string          `json:"tab"`
	Departments []DepartmentRow `json:"departments"`
}

// DepartmentDetailView lists the members of one department.
type DepartmentDetailView struct {
	Department string      `json:"department"`
	Members    []LeaderRow `json:"members"`
}

// LeaderboardService ranks students and departments.
type LeaderboardService struct {
	backend backend.Client
	nav     *nav.Navigator
	logger  *slog.Logger
}

// NewLeaderboardService creates the leaderboard service.
func NewLeaderboardService(client backend.Client, navigator *nav.Navigator, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{backend: client, nav: navigator, logger: logger}
}

// Pages returns the leaderboard pages.
func (s *LeaderboardService) Pages() []nav.Page {
	return []nav.Page{
		{
			Name:     nav.PageLeaderboard,
			Resource: state.ResourceLeaderboard,
			Load:     s.loadLeaderboard,
			Render:   s.renderLeaderboard,
		},
		{
			Name:   nav.PageDepartmentDetail,
			Render: s.renderDepartmentDetail,
		},
	}
}

// Loaders registers the department tab.
func (s *LeaderboardService) Loaders(n *nav.Navigator) error {
	return n.RegisterLoader(state.ResourceDepartments, s.loadDepartments)
}

func (s *LeaderboardService) loadLeaderboard(ctx context.Context, _ *state.AppState) (any, error) {
	return s.backend.ListLeaderboard(ctx)
}

func (s *LeaderboardService) renderLeaderboard(st *state.AppState) (any, error) {
	users, _ := state.Get[[]domain.LeaderboardUser](st, state.ResourceLeaderboard)
	return BuildLeaderboard(users, st.UserID()), nil
}

// BuildLeaderboard ranks users with lifetime points by points, ties by name.
// It is a pure function of its inputs.
func BuildLeaderboard(users []domain.LeaderboardUser, me string) LeaderboardView {
	ranked := make([]domain.LeaderboardUser, 0, len(users))
	for _, u := range users {
		if u.LifetimePoints > 0 {
			ranked = append(ranked, u)
		}
	}
	slices.SortStableFunc(ranked, func(a, b domain.LeaderboardUser) int {
		return cmp.Or(
			cmp.Compare(b.LifetimePoints, a.LifetimePoints),
			strings.Compare(a.FullName, b.FullName),
		)
	})

	rows := make([]LeaderRow, len(ranked))
	for i, u := range ranked {
		rows[i] = leaderRow(i+1, u, me)
	}

	split := min(podiumSize, len(rows))
	return LeaderboardView{
		Tab:    "students",
		Podium: rows[:split],
		Rest:   rows[split:],
	}
}

func leaderRow(rank int, u domain.LeaderboardUser, me string) LeaderRow {
	return LeaderRow{
		Rank:      rank,
		ID:        u.ID,
		Name:      u.FullName,
		Initials:  util.Initials(u.FullName),
		Course:    u.Course,
		AvatarURL: media.Avatar(u.ProfileImgURL),
		TickType:  u.TickType,
		Points:    u.LifetimePoints,
		Streak:    u.CurrentStreak,
		IsMe:      u.ID == me,
	}
}

// loadDepartments prefers the server-side aggregation. The client-side
// grouping over every user only runs when the procedure is unavailable.
func (s *LeaderboardService) loadDepartments(ctx context.Context, _ *state.AppState) (any, error) {
	stats, err := s.backend.DepartmentStats(ctx)
	if err == nil {
		return stats, nil
	}
	if !domainerrors.Is(err, domainerrors.ErrUnavailable) && !domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	s.logger.Warn("department aggregation unavailable, grouping locally", "error", err)
	users, err := s.backend.ListAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	return GroupDepartments(users), nil
}

// GroupDepartments groups users by normalised course and averages their
// lifetime points, zero-point users included. Averages round half away
// from zero.
func GroupDepartments(users []domain.LeaderboardUser) []domain.DepartmentStat {
	type acc struct{ total, count int }
	groups := make(map[string]*acc)
	for _, u := range users {
		dept := domain.Department(u.Course)
		a, ok := groups[dept]
		if !ok {
			a = &acc{}
			groups[dept] = a
		}
		a.total += u.LifetimePoints
		a.count++
	}

	out := make([]domain.DepartmentStat, 0, len(groups))
	for dept, a := range groups {
		out = append(out, domain.DepartmentStat{
			Department:   dept,
			AvgPoints:    int(math.Round(float64(a.total) / float64(a.count))),
			StudentCount: a.count,
			TotalPoints:  a.total,
		})
	}
	sortDepartments(out)
	return out
}

func sortDepartments(stats []domain.DepartmentStat) {
	slices.SortFunc(stats, func(a, b domain.DepartmentStat) int {
		return cmp.Or(
			cmp.Compare(b.AvgPoints, a.AvgPoints),
			strings.Compare(a.Department, b.Department),
		)
	})
}

// Departments returns the department tab, loading it once per session.
func (s *LeaderboardService) Departments(ctx context.Context, st *state.AppState) (*DepartmentsView, error) {
	if err := s.nav.Preload(ctx, st, state.ResourceDepartments); err != nil {
		return nil, err
	}
	stats, _ := state.Get[[]domain.DepartmentStat](st, state.ResourceDepartments)
	stats = slices.Clone(stats)
	sortDepartments(stats)

	view := &DepartmentsView{Tab: "departments", Departments: make([]DepartmentRow, len(stats))}
	for i, d := range stats {
		view.Departments[i] = DepartmentRow{
			Rank:         i + 1,
			Department:   d.Department,
			AvgPoints:    d.AvgPoints,
			StudentCount: d.StudentCount,
			TotalPoints:  d.TotalPoints,
		}
	}
	return view, nil
}

// ShowDepartment opens the drill-down of one department. Members are fetched
// on the first visit and cached by department name.
func (s *LeaderboardService) ShowDepartment(ctx context.Context, st *state.AppState, name string) (*nav.View, error) {
	name = domain.Department(name)
	if _, ok := st.Department(name); !ok {
		members, err := s.fetchDepartment(ctx, name)
		if err != nil {
			return nil, err
		}
		st.SetDepartment(name, members)
	}
	st.SetIntent(intentDepartment, name)
	return s.nav.ShowPage(ctx, st, nav.PageDepartmentDetail, true)
}

func (s *LeaderboardService) fetchDepartment(ctx context.Context, name string) ([]domain.LeaderboardUser, error) {
	courses, err := s.backend.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	var match []string
	for _, c := range courses {
		if domain.Department(c) == name {
			match = append(match, c)
		}
	}
	if len(match) == 0 {
		return nil, domainerrors.NotFoundf("department %q not found", name)
	}
	members, err := s.backend.ListUsersByCourses(ctx, match)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(members, func(a, b domain.LeaderboardUser) int {
		return cmp.Compare(b.LifetimePoints, a.LifetimePoints)
	})
	return members, nil
}

func (s *LeaderboardService) renderDepartmentDetail(st *state.AppState) (any, error) {
	name, ok := st.Intent(intentDepartment)
	if !ok {
		return nil, domainerrors.Validation("no department selected")
	}
	cached, _ := st.Department(name)
	members, _ := cached.([]domain.LeaderboardUser)

	view := DepartmentDetailView{Department: name, Members: make([]LeaderRow, len(members))}
	for i, u := range members {
		view.Members[i] = leaderRow(i+1, u, st.UserID())
	}
	return view, nil
}
