// Package backend defines the contract of the hosted campus backend: table reads and
// writes, remote procedures, realtime change subscriptions and session auth.
//
// The service layer depends only on these interfaces. Implementations return
// domain errors (internal/errors) so callers can branch on codes.
package backend

import (
	"context"
	"time"

	"github.com/ecocampus/ecocampus-server/internal/domain"
)

// Client is the single shared handle to the backend.
type Client interface {
	Auth
	Profiles
	Points
	Engagement
	Commerce
	Social
	Conversations
	Sports
	Cinema
	Realtime
}

// Auth manages identities and sessions.
type Auth interface {
	SignUp(ctx context.Context, req domain.SignUpRequest) (*domain.AuthSession, error)
	SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error)
	// GetSession returns ErrUnauthorized when the token is missing, expired or revoked.
	GetSession(ctx context.Context, accessToken string) (*domain.AuthSession, error)
	SignOut(ctx context.Context, accessToken string) error
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error
}

// Profiles reads and patches users rows.
type Profiles interface {
	GetProfileByAuthID(ctx context.Context, authUserID string) (*domain.Profile, error)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.Profile, error)
	LogActivity(ctx context.Context, entry domain.Activity) error
}

// Points covers check-ins, streaks, the ledger and impact.
type Points interface {
	// InsertCheckin records today's check-in. The backend trigger updates the
	// streak row: +1 when the previous check-in was the day before, else 1.
	// A second check-in for the same date returns ErrAlreadyCheckedIn.
	InsertCheckin(ctx context.Context, userID, date string, points int) (*domain.Checkin, error)
	HasCheckin(ctx context.Context, userID, date string) (bool, error)
	GetStreak(ctx context.Context, userID string) (*domain.Streak, error)
	// RestoreStreak runs the restore procedure in one transaction: debit cost,
	// record today's check-in without a reward, then force the streak to old+1.
	// A balance below cost returns ErrInsufficientPoints and changes nothing.
	RestoreStreak(ctx context.Context, userID, date string, cost int) (*domain.RestoreResult, error)
	InsertLedger(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error)
	ListLedger(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error)
	GetImpact(ctx context.Context, userID string) (*domain.Impact, error)
	// RedeemCoupon returns the points awarded, or ErrNotFound for an invalid or expired code.
	RedeemCoupon(ctx context.Context, userID, code string) (int, error)
}

// Engagement covers quizzes, challenges and events.
type Engagement interface {
	GetQuizForDate(ctx context.Context, date string) (*domain.Quiz, error)
	GetQuizSubmission(ctx context.Context, quizID, userID string) (*domain.QuizSubmission, error)
	InsertQuizSubmission(ctx context.Context, sub domain.QuizSubmission) (*domain.QuizSubmission, error)

	ListActiveChallenges(ctx context.Context) ([]domain.Challenge, error)
	ListSubmissionsSince(ctx context.Context, userID string, since time.Time) ([]domain.ChallengeSubmission, error)
	InsertChallengeSubmission(ctx context.Context, sub domain.ChallengeSubmission) (*domain.ChallengeSubmission, error)

	ListEvents(ctx context.Context) ([]domain.Event, error)
	// InsertAttendance returns ErrConflict when the user already has a row for the event.
	InsertAttendance(ctx context.Context, eventID, userID, status string) (*domain.Attendance, error)
}

// Commerce covers the store, orders and coupons.
type Commerce interface {
	ListStores(ctx context.Context) ([]domain.Store, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	// CreateOrder debits the product cost and decrements stock atomically.
	CreateOrder(ctx context.Context, userID, productID string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
}

// Social covers rankings.
type Social interface {
	// ListLeaderboard returns users with lifetime points > 0 and their streaks.
	ListLeaderboard(ctx context.Context) ([]domain.LeaderboardUser, error)
	// ListAllUsers returns every user, zero-point users included, for client-side grouping.
	ListAllUsers(ctx context.Context) ([]domain.LeaderboardUser, error)
	// DepartmentStats runs the server-side department aggregation.
	DepartmentStats(ctx context.Context) ([]domain.DepartmentStat, error)
	ListUsersByCourses(ctx context.Context, courses []string) ([]domain.LeaderboardUser, error)
	ListCourses(ctx context.Context) ([]string, error)
}

// Conversations stores assistant chat history.
type Conversations interface {
	ListChatHistory(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error)
	InsertChatMessage(ctx context.Context, msg domain.ChatMessage) (*domain.ChatMessage, error)
}

// Sports covers sports-fest registrations, teams and live matches.
type Sports interface {
	ListSports(ctx context.Context) ([]domain.Sport, error)
	GetSport(ctx context.Context, sportID string) (*domain.Sport, error)
	ListRegistrations(ctx context.Context, userID string) ([]domain.Registration, error)
	Register(ctx context.Context, userID, sportID string) (*domain.Registration, error)
	DeleteRegistration(ctx context.Context, userID, sportID string) error

	ListTeams(ctx context.Context, sportID string) ([]domain.Team, error)
	GetTeam(ctx context.Context, teamID string) (*domain.Team, error)
	// FindMembership returns the user's team_members row for a sport, or ErrNotFound.
	FindMembership(ctx context.Context, userID, sportID string) (*domain.TeamMember, error)
	ListUserTeams(ctx context.Context, userID string) ([]domain.Team, error)
	CreateTeam(ctx context.Context, name, sportID, captainID string) (*domain.Team, error)
	AddMember(ctx context.Context, teamID, userID, status string) (*domain.TeamMember, error)
	SetMemberStatus(ctx context.Context, memberID, status string) error
	DeleteMember(ctx context.Context, memberID string) error
	SetTeamStatus(ctx context.Context, teamID, status string) error
	DeleteTeam(ctx context.Context, teamID string) error

	ListMatches(ctx context.Context, sportID string) ([]domain.Match, error)
	GetMatch(ctx context.Context, matchID string) (*domain.Match, error)
	UpdateMatch(ctx context.Context, matchID, status string, live domain.LiveData) error
}

// Cinema covers movie screenings and bookings.
type Cinema interface {
	ListScreenings(ctx context.Context, from time.Time) ([]domain.Screening, error)
	ListBookings(ctx context.Context, userID string) ([]domain.Booking, error)
	CreateBooking(ctx context.Context, userID, screeningID string) (*domain.Booking, error)
}

// Realtime delivers row-level change events.
type Realtime interface {
	// Subscribe delivers changes to table rows whose column equals value.
	// An empty column subscribes to every row of the table.
	Subscribe(ctx context.Context, table, column, value string) (*Subscription, error)
}
