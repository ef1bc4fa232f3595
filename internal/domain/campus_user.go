// Package domain holds the row shapes exchanged with the campus backend.
package domain

import "time"

// Profile is the users row as the client sees it.
type Profile struct {
	ID             string `json:"id"`
	AuthUserID     string `json:"auth_user_id"`
	FullName       string `json:"full_name"`
	StudentID      string `json:"student_id"`
	Course         string `json:"course"`
	Email          string `json:"email"`
	Mobile         string `json:"mobile,omitempty"`
	Gender         string `json:"gender,omitempty"`
	CurrentPoints  int    `json:"current_points"`
	LifetimePoints int    `json:"lifetime_points"`
	ProfileImgURL  string `json:"profile_img_url,omitempty"`
	TickType       string `json:"tick_type,omitempty"`
	IsVolunteer    bool   `json:"is_volunteer"`
	// VolunteerSportID scopes a volunteer's live scoring to one sport.
	VolunteerSportID string `json:"volunteer_sport_id,omitempty"`
}

// ProfilePatch carries the columns a user may change on their own row.
// Nil fields are left untouched.
type ProfilePatch struct {
	ProfileImgURL *string
	Mobile        *string
	TickType      *string
}

// AuthSession is an authenticated principal as issued by the backend.
type AuthSession struct {
	AccessToken string    `json:"access_token"`
	AuthUserID  string    `json:"auth_user_id"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SignUpRequest creates an auth identity and its users row.
type SignUpRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FullName  string `json:"full_name" validate:"required,max=120"`
	StudentID string `json:"student_id" validate:"required,max=32"`
	Course    string `json:"course" validate:"required,max=64"`
	Gender    string `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	Mobile    string `json:"mobile" validate:"omitempty,mobile"`
}

// Activity is an append-only analytics row.
type Activity struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	ActionType  string         `json:"action_type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Activity action types.
const (
	ActionLogin             = "login"
	ActionLogout            = "logout"
	ActionPageView          = "page_view"
	ActionCheckin           = "checkin"
	ActionStreakRestore     = "streak_restore"
	ActionQuizSubmit        = "quiz_submit"
	ActionRedeemSuccess     = "redeem_code_success"
	ActionRedeemFail        = "redeem_code_fail"
	ActionEventRSVP         = "event_rsvp"
	ActionPurchase          = "purchase"
	ActionChallengeSubmit   = "challenge_submit"
	ActionUploadStart       = "upload_start"
	ActionUploadSuccess     = "upload_success"
	ActionUploadError       = "upload_error"
	ActionPasswordChange    = "password_change"
	ActionSportRegistration = "sport_registration"
	ActionMovieBooking      = "movie_booking"
	ActionWriteFailed       = "write_failed"
)

// ChatMessage is one line of the assistant conversation.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"` // user | bot
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Chat roles.
const (
	ChatRoleUser = "user"
	ChatRoleBot  = "bot"
)
