package domain

import "time"

// Sport is a sports-fest discipline open for registration.
type Sport struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	Type        string `json:"type"` // Team | Individual
	Status      string `json:"status"`
	TeamSize    int    `json:"team_size"`
	MinTeamSize int    `json:"min_team_size"`
}

// IsTeam reports whether the sport is played in teams.
func (s Sport) IsTeam() bool { return s.Type == SportTypeTeam }

// Sport types and states.
const (
	SportTypeTeam       = "Team"
	SportTypeIndividual = "Individual"
	SportOpen           = "Open"
)

// Registration is a user's entry for a sport.
type Registration struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SportID   string    `json:"sport_id"`
	Sport     Sport     `json:"sport"`
	CreatedAt time.Time `json:"created_at"`
}

// Team is a squad for a team sport.
type Team struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	SportID       string       `json:"sport_id"`
	SportName     string       `json:"sport_name"`
	TeamSize      int          `json:"team_size"`
	MinTeamSize   int          `json:"min_team_size"`
	CaptainID     string       `json:"captain_id"`
	CaptainName   string       `json:"captain_name"`
	CaptainGender string       `json:"captain_gender"`
	Status        string       `json:"status"`
	Members       []TeamMember `json:"members"`
}

// Team states.
const (
	TeamOpen   = "Open"
	TeamLocked = "Locked"
)

// AcceptedCount counts members whose request was accepted.
func (t Team) AcceptedCount() int {
	n := 0
	for _, m := range t.Members {
		if m.Status == MemberAccepted {
			n++
		}
	}
	return n
}

// TeamMember is a team_members row joined to the user.
type TeamMember struct {
	ID       string `json:"id"`
	TeamID   string `json:"team_id"`
	UserID   string `json:"user_id"`
	Status   string `json:"status"`
	FullName string `json:"full_name"`
	Course   string `json:"course"`
	Mobile   string `json:"mobile,omitempty"`
}

// Member states.
const (
	MemberPending  = "Pending"
	MemberAccepted = "Accepted"
	MemberRejected = "Rejected"
)

// Match is a live-scored fixture.
type Match struct {
	ID           string       `json:"id"`
	SportID      string       `json:"sport_id"`
	SportName    string       `json:"sport_name"`
	Title        string       `json:"title"`
	Status       string       `json:"status"`
	Participants Participants `json:"participants"`
	LiveData     LiveData     `json:"live_data"`
	StartsAt     time.Time    `json:"starts_at"`
}

// Match states.
const (
	MatchScheduled = "Scheduled"
	MatchLive      = "Live"
	MatchCompleted = "Completed"
)

// Participants lists who plays: two sides for head-to-head, students for performance events.
type Participants struct {
	TeamA    string   `json:"team_a,omitempty"`
	TeamB    string   `json:"team_b,omitempty"`
	Students []string `json:"students,omitempty"`
}

// LiveData is the score blob a volunteer edits during a match.
type LiveData struct {
	Results []PerformanceResult      `json:"results,omitempty"`
	Cricket map[string]CricketInning `json:"cricket,omitempty"` // keyed teamA | teamB
	S1      int                      `json:"s1"`
	S2      int                      `json:"s2"`
	Winner  string                   `json:"winner,omitempty"`
}

// PerformanceResult is a timed or ranked individual result.
type PerformanceResult struct {
	UID  string `json:"uid"`
	Time string `json:"time"`
	Rank int    `json:"rank"`
}

// CricketInning is one side's running score.
type CricketInning struct {
	Runs    int    `json:"runs"`
	Wickets int    `json:"wickets"`
	Overs   string `json:"overs"`
}
