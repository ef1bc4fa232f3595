package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/id"
)

const sportColumns = `id, name, icon, type, status, team_size, min_team_size`

func scanSport(sc scanner) (*domain.Sport, error) {
	var (
		sp   domain.Sport
		icon sql.NullString
	)
	if err := sc.Scan(&sp.ID, &sp.Name, &icon, &sp.Type, &sp.Status, &sp.TeamSize, &sp.MinTeamSize); err != nil {
		return nil, err
	}
	sp.Icon = icon.String
	return &sp, nil
}

// ListSports returns every sport.
func (s *Store) ListSports(ctx context.Context) ([]domain.Sport, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sportColumns+` FROM sports ORDER BY name`)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list sports")
	}
	defer rows.Close()

	var out []domain.Sport
	for rows.Next() {
		sp, err := scanSport(rows)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan sport")
		}
		out = append(out, *sp)
	}
	return out, rows.Err()
}

// GetSport returns one sport.
func (s *Store) GetSport(ctx context.Context, sportID string) (*domain.Sport, error) {
	sp, err := scanSport(s.db.QueryRowContext(ctx, `SELECT `+sportColumns+` FROM sports WHERE id = ?`, sportID))
	if err != nil {
		return nil, notFoundOr(err, "sport not found")
	}
	return sp, nil
}

// ListRegistrations returns the user's registrations with their sports.
func (s *Store) ListRegistrations(ctx context.Context, userID string) ([]domain.Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.user_id, r.created_at,
			sp.id, sp.name, sp.icon, sp.type, sp.status, sp.team_size, sp.min_team_size
		FROM registrations r JOIN sports sp ON sp.id = r.sport_id
		WHERE r.user_id = ?
		ORDER BY r.created_at`, userID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list registrations")
	}
	defer rows.Close()

	var out []domain.Registration
	for rows.Next() {
		var (
			r       domain.Registration
			created string
			icon    sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserID, &created,
			&r.Sport.ID, &r.Sport.Name, &icon, &r.Sport.Type, &r.Sport.Status,
			&r.Sport.TeamSize, &r.Sport.MinTeamSize); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan registration")
		}
		r.Sport.Icon = icon.String
		r.SportID = r.Sport.ID
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "parse registration time")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Register enters the user for a sport.
func (s *Store) Register(ctx context.Context, userID, sportID string) (*domain.Registration, error) {
	regID, err := id.Generate(id.PrefixRegistration)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate registration id")
	}
	r := domain.Registration{ID: regID, UserID: userID, SportID: sportID, CreatedAt: s.now()}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO registrations (id, user_id, sport_id, created_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.UserID, r.SportID, formatTime(r.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return nil, domainerrors.Conflict("already registered for this sport")
		}
		if isForeignKeyViolation(err) {
			return nil, domainerrors.NotFound("sport not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "register")
	}

	if sp, err := s.GetSport(ctx, sportID); err == nil {
		r.Sport = *sp
	}
	s.publish(domain.ChangeInsert, "registrations", nil, map[string]any{
		"id": r.ID, "user_id": userID, "sport_id": sportID,
	})
	return &r, nil
}

// DeleteRegistration withdraws the user from a sport.
func (s *Store) DeleteRegistration(ctx context.Context, userID, sportID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM registrations WHERE user_id = ? AND sport_id = ?`, userID, sportID)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "delete registration")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domainerrors.NotFound("registration not found")
	}
	s.publish(domain.ChangeDelete, "registrations", map[string]any{
		"user_id": userID, "sport_id": sportID,
	}, nil)
	return nil
}

const teamSelect = `
	SELECT t.id, t.name, t.sport_id, sp.name, sp.team_size, sp.min_team_size,
		t.captain_id, u.full_name, COALESCE(u.gender, ''), t.status
	FROM teams t
	JOIN sports sp ON sp.id = t.sport_id
	JOIN users u ON u.id = t.captain_id`

func scanTeam(sc scanner) (*domain.Team, error) {
	var t domain.Team
	if err := sc.Scan(&t.ID, &t.Name, &t.SportID, &t.SportName, &t.TeamSize, &t.MinTeamSize,
		&t.CaptainID, &t.CaptainName, &t.CaptainGender, &t.Status); err != nil {
		return nil, err
	}
	t.Members = []domain.TeamMember{}
	return &t, nil
}

// listTeams runs a team query and attaches members.
func (s *Store) listTeams(ctx context.Context, where string, args ...any) ([]domain.Team, error) {
	rows, err := s.db.QueryContext(ctx, teamSelect+" "+where+" ORDER BY t.created_at, t.rowid", args...)
	if err != nil {
		return nil, err
	}
	var (
		teams []domain.Team
		index = make(map[string]int)
		ids   []any
	)
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[t.ID] = len(teams)
		ids = append(ids, t.ID)
		teams = append(teams, *t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return teams, nil
	}

	members, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT m.id, m.team_id, m.user_id, m.status, u.full_name, u.course, COALESCE(u.mobile, '')
		FROM team_members m JOIN users u ON u.id = m.user_id
		WHERE m.team_id IN (%s)
		ORDER BY m.created_at, m.rowid`, placeholders(len(ids))), ids...)
	if err != nil {
		return nil, err
	}
	defer members.Close()

	for members.Next() {
		var m domain.TeamMember
		if err := members.Scan(&m.ID, &m.TeamID, &m.UserID, &m.Status, &m.FullName, &m.Course, &m.Mobile); err != nil {
			return nil, err
		}
		i := index[m.TeamID]
		teams[i].Members = append(teams[i].Members, m)
	}
	return teams, members.Err()
}

// ListTeams returns a sport's teams with members.
func (s *Store) ListTeams(ctx context.Context, sportID string) ([]domain.Team, error) {
	teams, err := s.listTeams(ctx, "WHERE t.sport_id = ?", sportID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list teams")
	}
	return teams, nil
}

// GetTeam returns one team with members.
func (s *Store) GetTeam(ctx context.Context, teamID string) (*domain.Team, error) {
	teams, err := s.listTeams(ctx, "WHERE t.id = ?", teamID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "get team")
	}
	if len(teams) == 0 {
		return nil, domainerrors.NotFound("team not found")
	}
	return &teams[0], nil
}

// ListUserTeams returns every team the user has a membership row in.
func (s *Store) ListUserTeams(ctx context.Context, userID string) ([]domain.Team, error) {
	teams, err := s.listTeams(ctx,
		"WHERE t.id IN (SELECT team_id FROM team_members WHERE user_id = ?)", userID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list user teams")
	}
	return teams, nil
}

// FindMembership returns the user's membership in any team of the sport.
func (s *Store) FindMembership(ctx context.Context, userID, sportID string) (*domain.TeamMember, error) {
	var m domain.TeamMember
	err := s.db.QueryRowContext(ctx, `
		SELECT m.id, m.team_id, m.user_id, m.status, u.full_name, u.course, COALESCE(u.mobile, '')
		FROM team_members m
		JOIN teams t ON t.id = m.team_id
		JOIN users u ON u.id = m.user_id
		WHERE m.user_id = ? AND t.sport_id = ?
		LIMIT 1`, userID, sportID,
	).Scan(&m.ID, &m.TeamID, &m.UserID, &m.Status, &m.FullName, &m.Course, &m.Mobile)
	if err != nil {
		return nil, notFoundOr(err, "no team membership")
	}
	return &m, nil
}

// CreateTeam creates an open team with the captain as its first accepted member.
func (s *Store) CreateTeam(ctx context.Context, name, sportID, captainID string) (*domain.Team, error) {
	teamID, err := id.Generate(id.PrefixTeam)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate team id")
	}
	memberID, err := id.Generate(id.PrefixMember)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate member id")
	}

	now := formatTime(s.now())
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO teams (id, name, sport_id, captain_id, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			teamID, name, sportID, captainID, domain.TeamOpen, now,
		); err != nil {
			if isUniqueViolation(err) {
				return domainerrors.AlreadyExists("team name already taken")
			}
			if isForeignKeyViolation(err) {
				return domainerrors.NotFound("sport not found")
			}
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO team_members (id, team_id, user_id, status, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			memberID, teamID, captainID, domain.MemberAccepted, now,
		)
		return err
	})
	if err != nil {
		var de *domainerrors.Error
		if domainerrors.As(err, &de) {
			return nil, err
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "create team")
	}

	s.publish(domain.ChangeInsert, "teams", nil, map[string]any{"id": teamID, "sport_id": sportID})
	s.publishMember(domain.ChangeInsert, memberID, teamID, captainID, domain.MemberAccepted)
	return s.GetTeam(ctx, teamID)
}

// AddMember inserts a membership row, usually a pending join request.
func (s *Store) AddMember(ctx context.Context, teamID, userID, status string) (*domain.TeamMember, error) {
	memberID, err := id.Generate(id.PrefixMember)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate member id")
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO team_members (id, team_id, user_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		memberID, teamID, userID, status, formatTime(s.now()),
	); err != nil {
		if isUniqueViolation(err) {
			return nil, domainerrors.Conflict("already requested to join this team")
		}
		if isForeignKeyViolation(err) {
			return nil, domainerrors.NotFound("team not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "add member")
	}

	s.publishMember(domain.ChangeInsert, memberID, teamID, userID, status)
	return &domain.TeamMember{ID: memberID, TeamID: teamID, UserID: userID, Status: status}, nil
}

func (s *Store) memberRow(ctx context.Context, memberID string) (teamID, userID string, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT team_id, user_id FROM team_members WHERE id = ?`, memberID,
	).Scan(&teamID, &userID)
	if err != nil {
		return "", "", notFoundOr(err, "member not found")
	}
	return teamID, userID, nil
}

// SetMemberStatus updates a membership's status.
func (s *Store) SetMemberStatus(ctx context.Context, memberID, status string) error {
	teamID, userID, err := s.memberRow(ctx, memberID)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE team_members SET status = ? WHERE id = ?`, status, memberID,
	); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "set member status")
	}
	s.publishMember(domain.ChangeUpdate, memberID, teamID, userID, status)
	return nil
}

// DeleteMember removes a membership row.
func (s *Store) DeleteMember(ctx context.Context, memberID string) error {
	teamID, userID, err := s.memberRow(ctx, memberID)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM team_members WHERE id = ?`, memberID); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "delete member")
	}
	s.publishMember(domain.ChangeDelete, memberID, teamID, userID, "")
	return nil
}

// SetTeamStatus locks or reopens a team.
func (s *Store) SetTeamStatus(ctx context.Context, teamID, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE teams SET status = ? WHERE id = ?`, status, teamID)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "set team status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domainerrors.NotFound("team not found")
	}
	s.publish(domain.ChangeUpdate, "teams", nil, map[string]any{"id": teamID, "status": status})
	return nil
}

// DeleteTeam removes the members first, then the team.
func (s *Store) DeleteTeam(ctx context.Context, teamID string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = ?`, teamID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, teamID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domainerrors.NotFound("team not found")
		}
		return nil
	})
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			return err
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "delete team")
	}
	s.publish(domain.ChangeDelete, "teams", map[string]any{"id": teamID}, nil)
	return nil
}

func (s *Store) publishMember(event, memberID, teamID, userID, status string) {
	row := map[string]any{"id": memberID, "team_id": teamID, "user_id": userID, "status": status}
	if event == domain.ChangeDelete {
		s.publish(event, "team_members", row, nil)
		return
	}
	s.publish(event, "team_members", nil, row)
}

const matchSelect = `
	SELECT m.id, m.sport_id, sp.name, m.title, m.status, m.participants, m.live_data, m.starts_at
	FROM matches m JOIN sports sp ON sp.id = m.sport_id`

func scanMatch(sc scanner) (*domain.Match, error) {
	var (
		m                  domain.Match
		participants, live string
		starts             string
	)
	if err := sc.Scan(&m.ID, &m.SportID, &m.SportName, &m.Title, &m.Status, &participants, &live, &starts); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(participants), &m.Participants); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	if err := json.Unmarshal([]byte(live), &m.LiveData); err != nil {
		return nil, fmt.Errorf("decode live data: %w", err)
	}
	var err error
	m.StartsAt, err = parseTime(starts)
	return &m, err
}

// ListMatches returns a sport's matches in start order; an empty sportID lists all.
func (s *Store) ListMatches(ctx context.Context, sportID string) ([]domain.Match, error) {
	query := matchSelect + ` ORDER BY m.starts_at`
	var args []any
	if sportID != "" {
		query = matchSelect + ` WHERE m.sport_id = ? ORDER BY m.starts_at`
		args = append(args, sportID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list matches")
	}
	defer rows.Close()

	var out []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan match")
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// GetMatch returns one match.
func (s *Store) GetMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	m, err := scanMatch(s.db.QueryRowContext(ctx, matchSelect+` WHERE m.id = ?`, matchID))
	if err != nil {
		return nil, notFoundOr(err, "match not found")
	}
	return m, nil
}

// UpdateMatch replaces a match's status and live score.
func (s *Store) UpdateMatch(ctx context.Context, matchID, status string, live domain.LiveData) error {
	raw, err := json.Marshal(live)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeValidation, "encode live data")
	}

	var sportID string
	err = s.db.QueryRowContext(ctx,
		`UPDATE matches SET status = ?, live_data = ? WHERE id = ? RETURNING sport_id`,
		status, string(raw), matchID,
	).Scan(&sportID)
	if err != nil {
		return notFoundOr(err, "match not found")
	}

	s.publish(domain.ChangeUpdate, "matches", nil, map[string]any{
		"id": matchID, "sport_id": sportID, "status": status,
	})
	return nil
}
