package domain

import "time"

// Quiz is one daily_quizzes row.
type Quiz struct {
	ID                 string   `json:"id"`
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"-"`
	PointsReward       int      `json:"points_reward"`
	AvailableDate      string   `json:"available_date"`
}

// QuizSubmission is one quiz_submissions row.
type QuizSubmission struct {
	ID        string    `json:"id"`
	QuizID    string    `json:"quiz_id"`
	UserID    string    `json:"user_id"`
	IsCorrect bool      `json:"is_correct"`
	CreatedAt time.Time `json:"created_at"`
}

// Challenge is an active points challenge.
type Challenge struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	PointsReward int    `json:"points_reward"`
	Type         string `json:"type"`      // Quiz | Upload | selfie | spot
	Frequency    string `json:"frequency"` // daily | once
}

// ChallengeSubmission is a photo proof awaiting review.
type ChallengeSubmission struct {
	ID            string    `json:"id"`
	ChallengeID   string    `json:"challenge_id"`
	UserID        string    `json:"user_id"`
	SubmissionURL string    `json:"submission_url"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Submission statuses.
const (
	SubmissionPending  = "pending"
	SubmissionApproved = "approved"
	SubmissionVerified = "verified"
	SubmissionRejected = "rejected"
)

// Event is a campus event with its attendance rows embedded.
type Event struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Location     string       `json:"location"`
	PosterURL    string       `json:"poster_url,omitempty"`
	StartAt      time.Time    `json:"start_at"`
	PointsReward int          `json:"points_reward"`
	Attendance   []Attendance `json:"event_attendance"`
}

// Attendance is one event_attendance row joined to the attendee.
type Attendance struct {
	ID            string `json:"id"`
	EventID       string `json:"event_id"`
	UserID        string `json:"user_id"`
	Status        string `json:"status"`
	FullName      string `json:"full_name,omitempty"`
	ProfileImgURL string `json:"profile_img_url,omitempty"`
}

// Attendance statuses.
const (
	AttendanceRegistered = "registered"
	AttendanceConfirmed  = "confirmed"
	AttendanceAbsent     = "absent"
)
