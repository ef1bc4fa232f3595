package api

import (
	"context"

	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/service"
)

// Services groups the session services used by the API server.
type Services struct {
	Session     *service.SessionService
	Navigator   *nav.Navigator
	Dashboard   *service.DashboardService
	Checkin     *service.CheckinService
	Quiz        *service.QuizService
	Leaderboard *service.LeaderboardService
	Rewards     *service.RewardsService
	Challenges  *service.ChallengeService
	Events      *service.EventService
	Profile     *service.ProfileService
	Chat        *service.ChatService
	Sports      *service.SportsService
	Movies      *service.MovieService
}

// Pinger reports whether a dependency answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DocumentCounter reports the size of the search index.
type DocumentCounter interface {
	DocumentCount() (uint64, error)
}

// Health groups the dependencies checked by GET /health. Nil members are
// reported as degraded.
type Health struct {
	Backend Pinger
	Search  DocumentCounter
	Clients interface{ ClientCount() int }
}
