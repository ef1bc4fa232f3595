package nav

import (
	"context"

	"github.com/ecocampus/ecocampus-server/internal/state"
)

// Page names. The set is closed; ShowPage rejects anything else.
const (
	PageDashboard        = "dashboard"
	PageLeaderboard      = "leaderboard"
	PageRewards          = "rewards"
	PageMyRewards        = "my-rewards"
	PageHistory          = "history"
	PageEcoPoints        = "ecopoints"
	PageChallenges       = "challenges"
	PageEvents           = "events"
	PageProfile          = "profile"
	PageGreenLens        = "green-lens"
	PagePlasticLog       = "plastic-log"
	PageChat             = "chat"
	PageSports           = "sports"
	PageMovies           = "movies"
	PageStoreDetail      = "store-detail"
	PageProductDetail    = "product-detail"
	PageDepartmentDetail = "department-detail"
)

// Detail groups: pages in a group share their detail views.
const (
	groupStore      = "store"
	groupDepartment = "department"
)

// LoadFunc fetches a resource from the backend.
type LoadFunc func(ctx context.Context, st *state.AppState) (any, error)

// RenderFunc builds a page's view model from cached state only.
type RenderFunc func(st *state.AppState) (any, error)

// StaleFunc reports whether a loaded resource must be reloaded.
type StaleFunc func(st *state.AppState) bool

// Page is one registry entry.
type Page struct {
	Name string
	// Resource is the cache entry the page reads. Pages sharing a resource
	// share one load.
	Resource state.Resource
	// Load fills Resource. A page with Load but no Resource loads on every visit.
	Load   LoadFunc
	Render RenderFunc
}

func detailGroup(page string) string {
	switch page {
	case PageStoreDetail, PageProductDetail:
		return groupStore
	case PageDepartmentDetail:
		return groupDepartment
	default:
		return ""
	}
}
