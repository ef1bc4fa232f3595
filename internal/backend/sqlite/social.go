package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"

	sqlitedrv "modernc.org/sqlite"
)

var registerFuncsOnce sync.Once

// registerFuncs exposes department() to SQL so the department_stats
// aggregation groups exactly like the service-side fallback.
func registerFuncs() error {
	var err error
	registerFuncsOnce.Do(func() {
		err = sqlitedrv.RegisterDeterministicScalarFunction("department", 1,
			func(_ *sqlitedrv.FunctionContext, args []driver.Value) (driver.Value, error) {
				course, _ := args[0].(string)
				return domain.Department(course), nil
			})
	})
	return err
}

const leaderboardSelect = `
	SELECT u.id, u.full_name, u.course, u.profile_img_url, u.tick_type,
		u.lifetime_points, COALESCE(st.current_streak, 0)
	FROM users u LEFT JOIN user_streaks st ON st.user_id = u.id`

func scanLeaderboardRows(rows *sql.Rows) ([]domain.LeaderboardUser, error) {
	defer rows.Close()

	var out []domain.LeaderboardUser
	for rows.Next() {
		var (
			u         domain.LeaderboardUser
			img, tick sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.FullName, &u.Course, &img, &tick, &u.LifetimePoints, &u.CurrentStreak); err != nil {
			return nil, err
		}
		u.ProfileImgURL = img.String
		u.TickType = tick.String
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListLeaderboard returns users who have earned points, highest first.
func (s *Store) ListLeaderboard(ctx context.Context) ([]domain.LeaderboardUser, error) {
	rows, err := s.db.QueryContext(ctx, leaderboardSelect+`
		WHERE u.lifetime_points > 0
		ORDER BY u.lifetime_points DESC, u.full_name`)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list leaderboard")
	}
	out, err := scanLeaderboardRows(rows)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan leaderboard")
	}
	return out, nil
}

// ListAllUsers returns every user including those without points.
func (s *Store) ListAllUsers(ctx context.Context) ([]domain.LeaderboardUser, error) {
	rows, err := s.db.QueryContext(ctx, leaderboardSelect+` ORDER BY u.lifetime_points DESC, u.full_name`)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list users")
	}
	out, err := scanLeaderboardRows(rows)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan users")
	}
	return out, nil
}

// DepartmentStats is the department_stats procedure: average lifetime points
// per normalized department, zero-point students included.
func (s *Store) DepartmentStats(ctx context.Context) ([]domain.DepartmentStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT department(course) AS dept,
			CAST(ROUND(AVG(lifetime_points)) AS INTEGER) AS avg_points,
			COUNT(*), SUM(lifetime_points)
		FROM users
		GROUP BY dept
		ORDER BY avg_points DESC, dept`)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUnavailable, "department stats")
	}
	defer rows.Close()

	var out []domain.DepartmentStat
	for rows.Next() {
		var d domain.DepartmentStat
		if err := rows.Scan(&d.Department, &d.AvgPoints, &d.StudentCount, &d.TotalPoints); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan department stat")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListUsersByCourses returns users whose raw course is one of courses.
func (s *Store) ListUsersByCourses(ctx context.Context, courses []string) ([]domain.LeaderboardUser, error) {
	if len(courses) == 0 {
		return nil, nil
	}
	args := make([]any, len(courses))
	for i, c := range courses {
		args[i] = c
	}
	query := fmt.Sprintf(`%s WHERE u.course IN (%s) ORDER BY u.lifetime_points DESC, u.full_name`,
		leaderboardSelect, placeholders(len(courses)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list users by course")
	}
	out, err := scanLeaderboardRows(rows)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan users")
	}
	return out, nil
}

// ListCourses returns the distinct raw course values on record.
func (s *Store) ListCourses(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT course FROM users ORDER BY course`)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list courses")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan course")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
