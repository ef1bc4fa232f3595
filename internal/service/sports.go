package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ecocampus/ecocampus-server/internal/backend"
	"github.com/ecocampus/ecocampus-server/internal/config"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/state"
	"github.com/ecocampus/ecocampus-server/internal/validation"
)

// Kinds of live score edits.
const (
	ScorePerformance = "performance"
	ScoreCricket     = "cricket"
	ScoreStandard    = "standard"
)

// unrankedResult is the rank of a performance entry until results are final.
const unrankedResult = 999

type sportsData struct {
	Sports        []domain.Sport
	Registrations []domain.Registration
	Teams         []domain.Team
	// Matches is the volunteer's sport; empty for everyone else.
	Matches []domain.Match
}

func (d sportsData) registered(sportID string) bool {
	return slices.ContainsFunc(d.Registrations, func(r domain.Registration) bool { return r.SportID == sportID })
}

func (d sportsData) sport(sportID string) (domain.Sport, bool) {
	i := slices.IndexFunc(d.Sports, func(s domain.Sport) bool { return s.ID == sportID })
	if i < 0 {
		return domain.Sport{}, false
	}
	return d.Sports[i], true
}

// SportCard is one discipline in the directory.
type SportCard struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	Type        string `json:"type"`
	TeamSize    int    `json:"team_size,omitempty"`
	Registered  bool   `json:"registered"`
	ButtonLabel string `json:"button_label"`
	Disabled    bool   `json:"disabled"`
}

// TeamCard is a team the user belongs to.
type TeamCard struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	SportID   string              `json:"sport_id"`
	SportName string              `json:"sport_name"`
	Status    string              `json:"status"`
	IsCaptain bool                `json:"is_captain"`
	MyStatus  string              `json:"my_status"`
	Members   []domain.TeamMember `json:"members"`
	// Requests are pending join requests, shown to the captain only.
	Requests  []domain.TeamMember `json:"requests,omitempty"`
	SeatsLeft int                 `json:"seats_left"`
	CanLock   bool                `json:"can_lock"`
	Locked    bool                `json:"locked"`
}

// MarketTeam is an open team looking for players.
type MarketTeam struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	SportID     string   `json:"sport_id"`
	SportName   string   `json:"sport_name"`
	CaptainName string   `json:"captain_name"`
	SeatsLeft   int      `json:"seats_left"`
	Full        bool     `json:"full"`
	ButtonLabel string   `json:"button_label"`
	Roster      []string `json:"roster"`
}

// SportsView is the sports fest page.
type SportsView struct {
	Sports        []SportCard           `json:"sports"`
	Registrations []domain.Registration `json:"registrations"`
	Teams         []TeamCard            `json:"teams"`
	Volunteer     bool                  `json:"volunteer"`
	LiveMatches   []domain.Match        `json:"live_matches,omitempty"`
}

// ScoreUpdate is one edit a volunteer makes to a live match.
type ScoreUpdate struct {
	Kind string `json:"kind" validate:"required,oneof=performance cricket standard"`
	// StudentID and Time apply to performance events.
	StudentID string `json:"student_id,omitempty"`
	Time      string `json:"time,omitempty"`
	// Team is teamA or teamB; Field is runs, wickets or overs.
	Team  string `json:"team,omitempty"`
	Field string `json:"field,omitempty"`
	// Side is s1 or s2 for standard scores.
	Side  string `json:"side,omitempty"`
	Value string `json:"value,omitempty"`
}

type registrationRequest struct {
	SportID string `validate:"required"`
	Mobile  string `validate:"required,mobile"`
}

// SportsService runs the sports fest: registrations, teams and live scores.
type SportsService struct {
	backend   backend.Client
	nav       *nav.Navigator
	flows     *FlowRunner
	recorder  nav.Recorder
	validator *validation.Validator
	campus    config.CampusConfig
	logger    *slog.Logger
}

// NewSportsService creates the sports service.
func NewSportsService(
	client backend.Client,
	navigator *nav.Navigator,
	flows *FlowRunner,
	recorder nav.Recorder,
	validator *validation.Validator,
	campus config.CampusConfig,
	logger *slog.Logger,
) *SportsService {
	return &SportsService{
		backend:   client,
		nav:       navigator,
		flows:     flows,
		recorder:  recorder,
		validator: validator,
		campus:    campus,
		logger:    logger,
	}
}

// Pages returns the sports page.
func (s *SportsService) Pages() []nav.Page {
	return []nav.Page{{
		Name:     nav.PageSports,
		Resource: state.ResourceSports,
		Load:     s.load,
		Render:   s.render,
	}}
}

func (s *SportsService) load(ctx context.Context, st *state.AppState) (any, error) {
	p, err := currentProfile(st)
	if err != nil {
		return nil, err
	}

	var data sportsData
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.Sports, err = s.backend.ListSports(ctx)
		return err
	})
	g.Go(func() (err error) {
		data.Registrations, err = s.backend.ListRegistrations(ctx, p.ID)
		return err
	})
	g.Go(func() (err error) {
		data.Teams, err = s.backend.ListUserTeams(ctx, p.ID)
		return err
	})
	if p.IsVolunteer && p.VolunteerSportID != "" {
		g.Go(func() (err error) {
			data.Matches, err = s.backend.ListMatches(ctx, p.VolunteerSportID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *SportsService) render(st *state.AppState) (any, error) {
	p, err := currentProfile(st)
	if err != nil {
		return nil, err
	}
	data, _ := state.Get[sportsData](st, state.ResourceSports)

	view := SportsView{
		Sports:        make([]SportCard, 0, len(data.Sports)),
		Registrations: data.Registrations,
		Teams:         make([]TeamCard, len(data.Teams)),
		Volunteer:     p.IsVolunteer,
	}
	for _, sp := range data.Sports {
		card := SportCard{
			ID:          sp.ID,
			Name:        sp.Name,
			Icon:        sp.Icon,
			Type:        sp.Type,
			TeamSize:    sp.TeamSize,
			Registered:  data.registered(sp.ID),
			ButtonLabel: "Register",
		}
		switch {
		case card.Registered:
			card.ButtonLabel = "Registered"
			card.Disabled = true
		case sp.Status != "" && sp.Status != domain.SportOpen:
			card.ButtonLabel = "Closed"
			card.Disabled = true
		}
		view.Sports = append(view.Sports, card)
	}
	for i, t := range data.Teams {
		view.Teams[i] = s.teamCard(t, p.ID)
	}
	for _, m := range data.Matches {
		if m.Status == domain.MatchLive {
			view.LiveMatches = append(view.LiveMatches, m)
		}
	}
	return view, nil
}

func (s *SportsService) teamSize(t domain.Team) int {
	if t.TeamSize > 0 {
		return t.TeamSize
	}
	return s.campus.DefaultTeamSize
}

func (s *SportsService) minTeamSize(t domain.Team) int {
	if t.MinTeamSize > 0 {
		return t.MinTeamSize
	}
	return s.campus.MinTeamSize
}

// SeatsLeft is the number of accepted places still open, never negative.
func SeatsLeft(t domain.Team, size int) int {
	return max(0, size-t.AcceptedCount())
}

func (s *SportsService) teamCard(t domain.Team, me string) TeamCard {
	card := TeamCard{
		ID:        t.ID,
		Name:      t.Name,
		SportID:   t.SportID,
		SportName: t.SportName,
		Status:    t.Status,
		IsCaptain: t.CaptainID == me,
		SeatsLeft: SeatsLeft(t, s.teamSize(t)),
		Locked:    t.Status == domain.TeamLocked,
	}
	for _, m := range t.Members {
		if m.UserID == me {
			card.MyStatus = m.Status
		}
		switch m.Status {
		case domain.MemberAccepted:
			card.Members = append(card.Members, m)
		case domain.MemberPending:
			if card.IsCaptain {
				card.Requests = append(card.Requests, m)
			}
		}
	}
	card.CanLock = card.IsCaptain && !card.Locked && t.AcceptedCount() >= s.minTeamSize(t)
	return card
}

// Marketplace lists open teams the user could join: teams of one sport, or of
// every team sport when sportID is empty. Teams whose captain has another
// gender are hidden.
func (s *SportsService) Marketplace(ctx context.Context, st *state.AppState, sportID, query string) ([]MarketTeam, error) {
	if err := s.nav.Preload(ctx, st, state.ResourceSports); err != nil {
		return nil, err
	}
	p, err := currentProfile(st)
	if err != nil {
		return nil, err
	}
	data, _ := state.Get[sportsData](st, state.ResourceSports)

	var sportIDs []string
	if sportID != "" {
		sportIDs = []string{sportID}
	} else {
		for _, sp := range data.Sports {
			if sp.IsTeam() {
				sportIDs = append(sportIDs, sp.ID)
			}
		}
	}

	query = strings.ToLower(strings.TrimSpace(query))
	out := []MarketTeam{}
	for _, id := range sportIDs {
		teams, err := s.backend.ListTeams(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, t := range teams {
			if t.Status != domain.TeamOpen {
				continue
			}
			if query != "" && !strings.Contains(strings.ToLower(t.Name), query) {
				continue
			}
			if t.CaptainGender != "" && p.Gender != "" && t.CaptainGender != p.Gender {
				continue
			}
			out = append(out, s.marketTeam(t))
		}
	}
	return out, nil
}

func (s *SportsService) marketTeam(t domain.Team) MarketTeam {
	seats := SeatsLeft(t, s.teamSize(t))
	mt := MarketTeam{
		ID:          t.ID,
		Name:        t.Name,
		SportID:     t.SportID,
		SportName:   t.SportName,
		CaptainName: t.CaptainName,
		SeatsLeft:   seats,
		Full:        seats <= 0,
		ButtonLabel: "View Squad & Join",
		Roster:      []string{},
	}
	if mt.Full {
		mt.ButtonLabel = "Team Full"
	}
	for _, m := range t.Members {
		if m.Status == domain.MemberAccepted {
			mt.Roster = append(mt.Roster, m.FullName)
		}
	}
	return mt
}

// OpenRegistration shows the registration dialog for a sport.
func (s *SportsService) OpenRegistration(ctx context.Context, st *state.AppState, sportID string) error {
	if err := s.nav.Preload(ctx, st, state.ResourceSports); err != nil {
		return err
	}
	data, _ := state.Get[sportsData](st, state.ResourceSports)
	sp, ok := data.sport(sportID)
	if !ok {
		return domainerrors.NotFound("Sport not found.")
	}
	p, _ := st.Profile()
	st.SetIntent(state.IntentSport, sportID)
	pushModal(st, ModalSport, true, map[string]any{"sport": sp, "mobile": p.Mobile})
	return nil
}

// Register enters the user for a sport. A mobile number is required and is
// saved to the profile when it changed. An empty sportID uses the sport the
// dialog was opened for.
func (s *SportsService) Register(ctx context.Context, st *state.AppState, sportID, mobile string) error {
	if sportID == "" {
		sportID, _ = st.Intent(state.IntentSport)
	}
	mobile = strings.TrimSpace(mobile)
	if err := s.nav.Preload(ctx, st, state.ResourceSports); err != nil {
		return err
	}
	data, _ := state.Get[sportsData](st, state.ResourceSports)
	p, _ := st.Profile()

	var sp domain.Sport
	return s.flows.Run(ctx, st, Flow{
		Name: "sport_registration",
		Validate: func(context.Context) error {
			if mobile == "" {
				return domainerrors.Validation("Mobile number required!")
			}
			if err := s.validator.Validate(registrationRequest{SportID: sportID, Mobile: mobile}); err != nil {
				return err
			}
			var ok bool
			if sp, ok = data.sport(sportID); !ok {
				return domainerrors.NotFound("Sport not found.")
			}
			if sp.Status != "" && sp.Status != domain.SportOpen {
				return domainerrors.Conflictf("Registrations for %s are closed.", sp.Name)
			}
			if data.registered(sportID) {
				return domainerrors.Conflictf("You are already registered for %s.", sp.Name)
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			if mobile != p.Mobile {
				if _, err := s.backend.UpdateProfile(ctx, p.ID, domain.ProfilePatch{Mobile: &mobile}); err != nil {
					return err
				}
			}
			_, err := s.backend.Register(ctx, p.ID, sportID)
			return err
		},
		Apply: func(ctx context.Context) {
			st.UpdateProfile(func(cur *domain.Profile) { cur.Mobile = mobile })
			st.ClearIntent(state.IntentSport)
			pushModal(st, ModalSport, false, nil)
			s.recorder.Record(ctx, p.ID, domain.ActionSportRegistration, "Registered for "+sp.Name,
				map[string]any{"sport_id": sportID})
			s.refresh(ctx, st)
		},
		Success: "Registration Successful!",
	})
}

// Withdraw cancels a registration. Team players leave their team first;
// captains and members of locked teams cannot withdraw.
func (s *SportsService) Withdraw(ctx context.Context, st *state.AppState, sportID string) error {
	if err := s.nav.Preload(ctx, st, state.ResourceSports); err != nil {
		return err
	}
	data, _ := state.Get[sportsData](st, state.ResourceSports)
	uid := st.UserID()

	var membership *domain.TeamMember
	return s.flows.Run(ctx, st, Flow{
		Name: "sport_withdraw",
		Validate: func(ctx context.Context) error {
			if !data.registered(sportID) {
				return domainerrors.NotFound("You are not registered for this sport.")
			}
			sp, _ := data.sport(sportID)
			if !sp.IsTeam() {
				return nil
			}
			m, err := s.backend.FindMembership(ctx, uid, sportID)
			if domainerrors.Is(err, domainerrors.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			team, err := s.backend.GetTeam(ctx, m.TeamID)
			if err != nil {
				return err
			}
			if team.Status == domain.TeamLocked {
				return domainerrors.Conflictf("Cannot withdraw! Your team '%s' is LOCKED.", team.Name)
			}
			if team.CaptainID == uid {
				return domainerrors.Conflict("Captains cannot withdraw. Delete the team in 'Teams' tab first.")
			}
			membership = m
			return nil
		},
		Write: func(ctx context.Context) error {
			if membership != nil {
				if err := s.backend.DeleteMember(ctx, membership.ID); err != nil {
					return err
				}
			}
			return s.backend.DeleteRegistration(ctx, uid, sportID)
		},
		Apply: func(ctx context.Context) {
			s.refresh(ctx, st)
		},
		Success: "Withdrawn Successfully",
	})
}

// CreateTeam starts a team with the user as its accepted captain.
func (s *SportsService) CreateTeam(ctx context.Context, st *state.AppState, sportID, name string) (*TeamCard, error) {
	name = strings.TrimSpace(name)
	if err := s.nav.Preload(ctx, st, state.ResourceSports); err != nil {
		return nil, err
	}
	data, _ := state.Get[sportsData](st, state.ResourceSports)
	uid := st.UserID()

	var team *domain.Team
	err := s.flows.Run(ctx, st, Flow{
		Name: "team_create",
		Validate: func(ctx context.Context) error {
			if name == "" {
				return domainerrors.Validation("Enter Team Name")
			}
			sp, ok := data.sport(sportID)
			if !ok || !sp.IsTeam() {
				return domainerrors.Validation("Pick a team sport.")
			}
			if !data.registered(sportID) {
				return domainerrors.Validation("Register for this sport first!")
			}
			return s.ensureNoTeam(ctx, uid, sportID, "You already have a team for this sport.")
		},
		Write: func(ctx context.Context) error {
			var err error
			team, err = s.backend.CreateTeam(ctx, name, sportID, uid)
			return err
		},
		Apply: func(ctx context.Context) {
			s.refresh(ctx, st)
		},
		Success: "Team Created!",
	})
	if err != nil {
		return nil, err
	}
	card := s.teamCard(*team, uid)
	return &card, nil
}

func (s *SportsService) ensureNoTeam(ctx context.Context, uid, sportID, msg string) error {
	_, err := s.backend.FindMembership(ctx, uid, sportID)
	switch {
	case err == nil:
		return domainerrors.Conflict(msg)
	case domainerrors.Is(err, domainerrors.ErrNotFound):
		return nil
	default:
		return err
	}
}

// JoinTeam sends a join request to the captain.
func (s *SportsService) JoinTeam(ctx context.Context, st *state.AppState, teamID string) error {
	if err := s.nav.Preload(ctx, st, state.ResourceSports); err != nil {
		return err
	}
	data, _ := state.Get[sportsData](st, state.ResourceSports)
	uid := st.UserID()

	return s.flows.Run(ctx, st, Flow{
		Name: "team_join",
		Validate: func(ctx context.Context) error {
			team, err := s.backend.GetTeam(ctx, teamID)
			if err != nil {
				return err
			}
			if team.Status != domain.TeamOpen || SeatsLeft(*team, s.teamSize(*team)) <= 0 {
				return domainerrors.Conflict("This team is full!")
			}
			if !data.registered(team.SportID) {
				return domainerrors.Validationf("You must Register for %s individually first!", team.SportName)
			}
			return s.ensureNoTeam(ctx, uid, team.SportID, fmt.Sprintf("You are already in a team for %s.", team.SportName))
		},
		Write: func(ctx context.Context) error {
			_, err := s.backend.AddMember(ctx, teamID, uid, domain.MemberPending)
			return err
		},
		Apply: func(ctx context.Context) {
			s.refresh(ctx, st)
		},
		Success: "Request Sent to Captain!",
	})
}

// captainTeam loads a team the user captains and that is still open.
func (s *SportsService) captainTeam(ctx context.Context, uid, teamID string) (*domain.Team, error) {
	team, err := s.backend.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.CaptainID != uid {
		return nil, domainerrors.Forbidden("Only the captain can manage this team.")
	}
	if team.Status == domain.TeamLocked {
		return nil, domainerrors.Conflict("This team is locked.")
	}
	return team, nil
}

func memberOf(t *domain.Team, memberID string) (domain.TeamMember, bool) {
	i := slices.IndexFunc(t.Members, func(m domain.TeamMember) bool { return m.ID == memberID })
	if i < 0 {
		return domain.TeamMember{}, false
	}
	return t.Members[i], true
}

// RespondToRequest accepts or rejects a pending join request. Rejected
// requests are deleted so the player can apply elsewhere.
func (s *SportsService) RespondToRequest(ctx context.Context, st *state.AppState, teamID, memberID string, accept bool) error {
	uid := st.UserID()
	success := "Request declined"
	if accept {
		success = "Player added to the squad"
	}
	return s.flows.Run(ctx, st, Flow{
		Name: "team_request",
		Validate: func(ctx context.Context) error {
			team, err := s.captainTeam(ctx, uid, teamID)
			if err != nil {
				return err
			}
			m, ok := memberOf(team, memberID)
			if !ok || m.Status != domain.MemberPending {
				return domainerrors.NotFound("That request is no longer pending.")
			}
			if accept && SeatsLeft(*team, s.teamSize(*team)) <= 0 {
				return domainerrors.Conflict("This team is full!")
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			if accept {
				return s.backend.SetMemberStatus(ctx, memberID, domain.MemberAccepted)
			}
			return s.backend.DeleteMember(ctx, memberID)
		},
		Apply: func(ctx context.Context) {
			s.refresh(ctx, st)
		},
		Success: success,
	})
}

// RemoveMember drops an accepted player from an open team.
func (s *SportsService) RemoveMember(ctx context.Context, st *state.AppState, teamID, memberID string) error {
	uid := st.UserID()
	return s.flows.Run(ctx, st, Flow{
		Name: "team_remove_member",
		Validate: func(ctx context.Context) error {
			team, err := s.captainTeam(ctx, uid, teamID)
			if err != nil {
				return err
			}
			m, ok := memberOf(team, memberID)
			if !ok {
				return domainerrors.NotFound("Player not found.")
			}
			if m.UserID == uid {
				return domainerrors.Validation("Captains cannot remove themselves.")
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			return s.backend.DeleteMember(ctx, memberID)
		},
		Apply: func(ctx context.Context) {
			s.refresh(ctx, st)
		},
		Success: "Player removed",
	})
}

// LockTeam finalises the squad once it has the minimum number of accepted players.
func (s *SportsService) LockTeam(ctx context.Context, st *state.AppState, teamID string) error {
	uid := st.UserID()
	return s.flows.Run(ctx, st, Flow{
		Name: "team_lock",
		Validate: func(ctx context.Context) error {
			team, err := s.captainTeam(ctx, uid, teamID)
			if err != nil {
				return err
			}
			if need := s.minTeamSize(*team); team.AcceptedCount() < need {
				return domainerrors.Validationf("Squad incomplete! Need %d players.", need)
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			return s.backend.SetTeamStatus(ctx, teamID, domain.TeamLocked)
		},
		Apply: func(ctx context.Context) {
			s.refresh(ctx, st)
		},
		Success: "Team Locked!",
	})
}

// DeleteTeam removes an open team and all its memberships.
func (s *SportsService) DeleteTeam(ctx context.Context, st *state.AppState, teamID string) error {
	uid := st.UserID()
	return s.flows.Run(ctx, st, Flow{
		Name: "team_delete",
		Validate: func(ctx context.Context) error {
			_, err := s.captainTeam(ctx, uid, teamID)
			return err
		},
		Write: func(ctx context.Context) error {
			return s.backend.DeleteTeam(ctx, teamID)
		},
		Apply: func(ctx context.Context) {
			s.refresh(ctx, st)
		},
		Success: "Team Deleted",
	})
}

// LeaveTeam removes the user from a team they do not captain.
func (s *SportsService) LeaveTeam(ctx context.Context, st *state.AppState, teamID string) error {
	uid := st.UserID()
	var memberID string
	return s.flows.Run(ctx, st, Flow{
		Name: "team_leave",
		Validate: func(ctx context.Context) error {
			team, err := s.backend.GetTeam(ctx, teamID)
			if err != nil {
				return err
			}
			if team.CaptainID == uid {
				return domainerrors.Validation("Captains cannot leave. Delete the team instead.")
			}
			if team.Status == domain.TeamLocked {
				return domainerrors.Conflictf("Your team '%s' is LOCKED.", team.Name)
			}
			i := slices.IndexFunc(team.Members, func(m domain.TeamMember) bool { return m.UserID == uid })
			if i < 0 {
				return domainerrors.NotFound("You are not in this team.")
			}
			memberID = team.Members[i].ID
			return nil
		},
		Write: func(ctx context.Context) error {
			return s.backend.DeleteMember(ctx, memberID)
		},
		Apply: func(ctx context.Context) {
			s.refresh(ctx, st)
		},
		Success: "Left team successfully",
	})
}

// volunteerMatch loads a match the user may score.
func (s *SportsService) volunteerMatch(ctx context.Context, st *state.AppState, matchID string) (*domain.Match, error) {
	p, err := currentProfile(st)
	if err != nil {
		return nil, err
	}
	if !p.IsVolunteer {
		return nil, domainerrors.Forbidden("Volunteer access required.")
	}
	m, err := s.backend.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if p.VolunteerSportID != "" && m.SportID != p.VolunteerSportID {
		return nil, domainerrors.Forbidden("This match belongs to another sport.")
	}
	if m.Status == domain.MatchCompleted {
		return nil, domainerrors.Conflict("Match ended or removed")
	}
	return m, nil
}

// ApplyScore returns live with u applied. The input is not modified.
func ApplyScore(live domain.LiveData, u ScoreUpdate) (domain.LiveData, error) {
	out := live
	switch u.Kind {
	case ScorePerformance:
		if u.StudentID == "" {
			return live, domainerrors.Validation("student is required")
		}
		out.Results = slices.Clone(live.Results)
		if i := slices.IndexFunc(out.Results, func(r domain.PerformanceResult) bool { return r.UID == u.StudentID }); i >= 0 {
			out.Results[i].Time = u.Value
		} else {
			out.Results = append(out.Results, domain.PerformanceResult{UID: u.StudentID, Time: u.Value, Rank: unrankedResult})
		}

	case ScoreCricket:
		if u.Team != "teamA" && u.Team != "teamB" {
			return live, domainerrors.Validation("team must be teamA or teamB")
		}
		out.Cricket = make(map[string]domain.CricketInning, len(live.Cricket)+1)
		for k, v := range live.Cricket {
			out.Cricket[k] = v
		}
		inning := out.Cricket[u.Team]
		switch u.Field {
		case "runs", "wickets":
			n, err := strconv.Atoi(strings.TrimSpace(u.Value))
			if err != nil || n < 0 {
				return live, domainerrors.Validationf("%s must be a whole number", u.Field)
			}
			if u.Field == "runs" {
				inning.Runs = n
			} else {
				inning.Wickets = n
			}
		case "overs":
			inning.Overs = strings.TrimSpace(u.Value)
		default:
			return live, domainerrors.Validation("field must be runs, wickets or overs")
		}
		out.Cricket[u.Team] = inning

	case ScoreStandard:
		n, err := strconv.Atoi(strings.TrimSpace(u.Value))
		if err != nil || n < 0 {
			return live, domainerrors.Validation("score must be a whole number")
		}
		switch u.Side {
		case "s1":
			out.S1 = n
		case "s2":
			out.S2 = n
		default:
			return live, domainerrors.Validation("side must be s1 or s2")
		}

	default:
		return live, domainerrors.Validationf("unknown score kind %q", u.Kind)
	}
	return out, nil
}

// UpdateScore records a volunteer's live score edit. The match goes live on
// its first edit.
func (s *SportsService) UpdateScore(ctx context.Context, st *state.AppState, matchID string, u ScoreUpdate) (*domain.Match, error) {
	var match *domain.Match
	err := s.flows.Run(ctx, st, Flow{
		Name: "score_update",
		Validate: func(ctx context.Context) error {
			if err := s.validator.Validate(u); err != nil {
				return err
			}
			m, err := s.volunteerMatch(ctx, st, matchID)
			if err != nil {
				return err
			}
			live, err := ApplyScore(m.LiveData, u)
			if err != nil {
				return err
			}
			m.LiveData = live
			m.Status = domain.MatchLive
			match = m
			return nil
		},
		Write: func(ctx context.Context) error {
			return s.backend.UpdateMatch(ctx, matchID, match.Status, match.LiveData)
		},
		Success: "Score Updated",
		Failure: "Failed",
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// EndMatch declares the winner and completes the match.
func (s *SportsService) EndMatch(ctx context.Context, st *state.AppState, matchID, winner string) (*domain.Match, error) {
	winner = strings.TrimSpace(winner)
	var match *domain.Match
	err := s.flows.Run(ctx, st, Flow{
		Name: "match_end",
		Validate: func(ctx context.Context) error {
			if winner == "" {
				return domainerrors.Validation("Please select a winner first")
			}
			m, err := s.volunteerMatch(ctx, st, matchID)
			if err != nil {
				return err
			}
			m.LiveData.Winner = winner
			m.Status = domain.MatchCompleted
			match = m
			return nil
		},
		Write: func(ctx context.Context) error {
			return s.backend.UpdateMatch(ctx, matchID, match.Status, match.LiveData)
		},
		Apply: func(ctx context.Context) {
			s.refresh(ctx, st)
		},
		Success: "Match Completed",
		Failure: "Error ending match",
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

func (s *SportsService) refresh(ctx context.Context, st *state.AppState) {
	if err := s.nav.Refresh(ctx, st, state.ResourceSports); err != nil {
		s.logger.Warn("sports refresh", "user_id", st.UserID(), "error", err)
	}
}
