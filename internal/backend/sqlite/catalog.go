package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Catalog is the campus content loaded by the seed command. Times are offsets
// from the import moment so a seeded campus always has upcoming activity.
type Catalog struct {
	Stores     []CatalogStore     `yaml:"stores"`
	Quizzes    []CatalogQuiz      `yaml:"quizzes"`
	Challenges []CatalogChallenge `yaml:"challenges"`
	Events     []CatalogEvent     `yaml:"events"`
	Coupons    []CatalogCoupon    `yaml:"coupons"`
	Sports     []CatalogSport     `yaml:"sports"`
	Movies     []CatalogMovie     `yaml:"movies"`
}

type CatalogStore struct {
	ID       string           `yaml:"id"`
	Name     string           `yaml:"name"`
	LogoURL  string           `yaml:"logo_url"`
	Products []CatalogProduct `yaml:"products"`
}

type CatalogProduct struct {
	ID            string  `yaml:"id"`
	Name          string  `yaml:"name"`
	Description   string  `yaml:"description"`
	ImageURL      string  `yaml:"image_url"`
	Cost          int     `yaml:"cost"`
	OriginalPrice float64 `yaml:"original_price"`
	Stock         int     `yaml:"stock"`
}

type CatalogQuiz struct {
	ID        string   `yaml:"id"`
	DayOffset int      `yaml:"day_offset"`
	Question  string   `yaml:"question"`
	Options   []string `yaml:"options"`
	Correct   int      `yaml:"correct"`
	Reward    int      `yaml:"reward"`
}

type CatalogChallenge struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Reward      int    `yaml:"reward"`
	Type        string `yaml:"type"`
	Frequency   string `yaml:"frequency"`
}

type CatalogEvent struct {
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	Location    string        `yaml:"location"`
	PosterURL   string        `yaml:"poster_url"`
	StartsIn    time.Duration `yaml:"starts_in"`
	Reward      int           `yaml:"reward"`
}

type CatalogCoupon struct {
	Code      string        `yaml:"code"`
	Points    int           `yaml:"points"`
	ExpiresIn time.Duration `yaml:"expires_in"`
	MaxUses   int           `yaml:"max_uses"`
}

type CatalogSport struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Icon        string         `yaml:"icon"`
	Type        string         `yaml:"type"`
	TeamSize    int            `yaml:"team_size"`
	MinTeamSize int            `yaml:"min_team_size"`
	Matches     []CatalogMatch `yaml:"matches"`
}

type CatalogMatch struct {
	ID       string        `yaml:"id"`
	Title    string        `yaml:"title"`
	TeamA    string        `yaml:"team_a"`
	TeamB    string        `yaml:"team_b"`
	StartsIn time.Duration `yaml:"starts_in"`
}

type CatalogMovie struct {
	ID         string             `yaml:"id"`
	Title      string             `yaml:"title"`
	Genre      string             `yaml:"genre"`
	Language   string             `yaml:"language"`
	PosterURL  string             `yaml:"poster_url"`
	Screenings []CatalogScreening `yaml:"screenings"`
}

type CatalogScreening struct {
	ID       string        `yaml:"id"`
	StartsIn time.Duration `yaml:"starts_in"`
	Venue    string        `yaml:"venue"`
	Price    int           `yaml:"price"`
	Seats    int           `yaml:"seats"`
}

// ParseCatalog decodes a YAML catalog. Unknown keys are rejected.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	return c, nil
}

// ImportCatalog inserts catalog rows that do not exist yet. Re-importing the
// same catalog is a no-op. Quiz dates are computed in loc.
func (s *Store) ImportCatalog(ctx context.Context, c Catalog, loc *time.Location) error {
	now := s.now()
	ins := "INSERT INTO %s ON CONFLICT DO NOTHING"

	return s.withTx(ctx, func(tx *sql.Tx) error {
		exec := func(table string, args ...any) error {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(ins, table), args...); err != nil {
				return fmt.Errorf("import %s: %w", table, err)
			}
			return nil
		}

		for _, st := range c.Stores {
			if err := exec("stores (id, name, logo_url) VALUES (?, ?, ?)",
				st.ID, st.Name, nullString(st.LogoURL)); err != nil {
				return err
			}
			for _, p := range st.Products {
				if err := exec(`products (id, store_id, name, description, image_url, ecopoints_cost, original_price, stock)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					p.ID, st.ID, p.Name, p.Description, nullString(p.ImageURL), p.Cost, p.OriginalPrice, p.Stock); err != nil {
					return err
				}
			}
		}

		for _, q := range c.Quizzes {
			options, err := json.Marshal(q.Options)
			if err != nil {
				return fmt.Errorf("encode quiz options: %w", err)
			}
			date := now.In(loc).AddDate(0, 0, q.DayOffset).Format(time.DateOnly)
			if err := exec(`daily_quizzes (id, question, options, correct_option_index, points_reward, available_date)
				VALUES (?, ?, ?, ?, ?, ?)`,
				q.ID, q.Question, string(options), q.Correct, q.Reward, date); err != nil {
				return err
			}
		}

		for _, ch := range c.Challenges {
			if err := exec(`challenges (id, title, description, points_reward, type, frequency)
				VALUES (?, ?, ?, ?, ?, ?)`,
				ch.ID, ch.Title, ch.Description, ch.Reward, ch.Type, defaultString(ch.Frequency, "once")); err != nil {
				return err
			}
		}

		for _, e := range c.Events {
			if err := exec(`events (id, title, description, location, poster_url, start_at, points_reward)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				e.ID, e.Title, e.Description, e.Location, nullString(e.PosterURL),
				formatTime(now.Add(e.StartsIn)), e.Reward); err != nil {
				return err
			}
		}

		for _, cp := range c.Coupons {
			var expires sql.NullString
			if cp.ExpiresIn > 0 {
				expires = sql.NullString{String: formatTime(now.Add(cp.ExpiresIn)), Valid: true}
			}
			if err := exec("coupons (code, points, expires_at, max_uses) VALUES (?, ?, ?, ?)",
				cp.Code, cp.Points, expires, cp.MaxUses); err != nil {
				return err
			}
		}

		for _, sp := range c.Sports {
			if err := exec(`sports (id, name, icon, type, team_size, min_team_size)
				VALUES (?, ?, ?, ?, ?, ?)`,
				sp.ID, sp.Name, nullString(sp.Icon), defaultString(sp.Type, "Individual"),
				sp.TeamSize, sp.MinTeamSize); err != nil {
				return err
			}
			for _, m := range sp.Matches {
				participants, err := json.Marshal(map[string]string{"team_a": m.TeamA, "team_b": m.TeamB})
				if err != nil {
					return fmt.Errorf("encode participants: %w", err)
				}
				if err := exec(`matches (id, sport_id, title, participants, starts_at)
					VALUES (?, ?, ?, ?, ?)`,
					m.ID, sp.ID, m.Title, string(participants), formatTime(now.Add(m.StartsIn))); err != nil {
					return err
				}
			}
		}

		for _, mv := range c.Movies {
			if err := exec("movies (id, title, genre, language, poster_url) VALUES (?, ?, ?, ?, ?)",
				mv.ID, mv.Title, mv.Genre, mv.Language, nullString(mv.PosterURL)); err != nil {
				return err
			}
			for _, sc := range mv.Screenings {
				if err := exec(`screenings (id, movie_id, show_time, venue, price_bronze, seats_total)
					VALUES (?, ?, ?, ?, ?, ?)`,
					sc.ID, mv.ID, formatTime(now.Add(sc.StartsIn)), sc.Venue, sc.Price, sc.Seats); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// RecordPlastic logs recycled plastic: impact grows and the user earns points.
func (s *Store) RecordPlastic(ctx context.Context, userID string, kg float64, points int) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// Roughly 1.5 kg of CO2 avoided per kg of recycled plastic.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_impact (user_id, total_plastic_kg, co2_saved_kg) VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				total_plastic_kg = total_plastic_kg + excluded.total_plastic_kg,
				co2_saved_kg = co2_saved_kg + excluded.co2_saved_kg`,
			userID, kg, kg*1.5,
		); err != nil {
			return err
		}
		_, err := insertLedgerTx(ctx, tx, ledgerPlastic(userID, kg, points, s.now()))
		return err
	})
	if err != nil {
		return fmt.Errorf("record plastic: %w", err)
	}
	s.publishUser(ctx, userID)
	return nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
