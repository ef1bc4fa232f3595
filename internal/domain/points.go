package domain

import "time"

// Streak is the user_streaks row maintained by the backend check-in trigger.
type Streak struct {
	UserID          string `json:"user_id"`
	CurrentStreak   int    `json:"current_streak"`
	LastCheckinDate string `json:"last_checkin_date,omitempty"` // YYYY-MM-DD, empty when never checked in
}

// Checkin is one daily_checkins row.
type Checkin struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	CheckinDate   string    `json:"checkin_date"`
	PointsAwarded int       `json:"points_awarded"`
	CreatedAt     time.Time `json:"created_at"`
}

// Impact is the user_impact aggregate shown on the dashboard.
type Impact struct {
	TotalPlasticKg float64 `json:"total_plastic_kg"`
	CO2SavedKg     float64 `json:"co2_saved_kg"`
	EventsAttended int     `json:"events_attended"`
}

// LedgerEntry is one points_ledger row. Positive deltas also raise lifetime points.
type LedgerEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SourceType  string    `json:"source_type"`
	SourceID    string    `json:"source_id,omitempty"`
	Description string    `json:"description"`
	PointsDelta int       `json:"points_delta"`
	CreatedAt   time.Time `json:"created_at"`
}

// Ledger source types.
const (
	SourceCheckin       = "checkin"
	SourceEvent         = "event"
	SourceChallenge     = "challenge"
	SourcePlastic       = "plastic"
	SourceOrder         = "order"
	SourceCoupon        = "coupon"
	SourceQuiz          = "quiz"
	SourceStreakRestore = "streak_restore"
	SourceBooking       = "booking"
)

// RestoreResult is returned by the streak restore procedure.
type RestoreResult struct {
	Streak        int `json:"streak"`
	PointsCharged int `json:"points_charged"`
	CurrentPoints int `json:"current_points"`
}

// LeaderboardUser is the projection used by the individual ranking.
type LeaderboardUser struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	Course         string `json:"course"`
	ProfileImgURL  string `json:"profile_img_url,omitempty"`
	TickType       string `json:"tick_type,omitempty"`
	LifetimePoints int    `json:"lifetime_points"`
	CurrentStreak  int    `json:"current_streak"`
}

// DepartmentStat is one row of the department aggregation.
type DepartmentStat struct {
	Department   string `json:"department"`
	AvgPoints    int    `json:"avg_points"`
	StudentCount int    `json:"student_count"`
	TotalPoints  int    `json:"total_points"`
}
