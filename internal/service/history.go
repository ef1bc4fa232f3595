package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ecocampus/ecocampus-server/internal/backend"
	"github.com/ecocampus/ecocampus-server/internal/config"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	"github.com/ecocampus/ecocampus-server/internal/media"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/state"
	"github.com/ecocampus/ecocampus-server/internal/util"
)

// plasticScan bounds the ledger rows scanned for plastic submissions.
const plasticScan = 200

// HistoryRow is one ledger line.
type HistoryRow struct {
	Description string `json:"description"`
	Points      int    `json:"points"`
	Icon        string `json:"icon"`
	Date        string `json:"date"`
	Credit      bool   `json:"credit"`
}

// EcoPointsView is the balance and level page.
type EcoPointsView struct {
	Points         int                `json:"points"`
	LifetimePoints int                `json:"lifetime_points"`
	Level          util.LevelProgress `json:"level"`
	Levels         []config.Level     `json:"levels"`
}

// PlasticView lists recycling submissions and their totals.
type PlasticView struct {
	TotalKg  string       `json:"total_kg"`
	CO2Saved string       `json:"co2_saved"`
	Entries  []HistoryRow `json:"entries"`
}

// GalleryItem is one photo proof in the green lens gallery.
type GalleryItem struct {
	ID          string `json:"id"`
	ChallengeID string `json:"challenge_id"`
	ImageURL    string `json:"image_url"`
	Status      string `json:"status"`
	Date        string `json:"date"`
}

type plasticData struct {
	Impact  domain.Impact
	Entries []domain.LedgerEntry
}

// HistoryService renders the points ledger pages.
type HistoryService struct {
	backend backend.Client
	clock   *util.Clock
	campus  config.CampusConfig
	levels  []config.Level
}

// NewHistoryService creates the history service.
func NewHistoryService(client backend.Client, clock *util.Clock, campus config.CampusConfig, levels []config.Level) *HistoryService {
	return &HistoryService{backend: client, clock: clock, campus: campus, levels: levels}
}

// Pages returns the ledger backed pages.
func (s *HistoryService) Pages() []nav.Page {
	return []nav.Page{
		{Name: nav.PageHistory, Resource: state.ResourceHistory, Load: s.loadHistory, Render: s.renderHistory},
		{Name: nav.PageEcoPoints, Render: s.renderEcoPoints},
		{Name: nav.PagePlasticLog, Resource: state.ResourcePlastic, Load: s.loadPlastic, Render: s.renderPlastic},
		{Name: nav.PageGreenLens, Resource: state.ResourceGallery, Load: s.loadGallery, Render: s.renderGallery},
	}
}

func (s *HistoryService) loadHistory(ctx context.Context, st *state.AppState) (any, error) {
	return s.backend.ListLedger(ctx, st.UserID(), s.campus.HistoryLimit)
}

func (s *HistoryService) renderHistory(st *state.AppState) (any, error) {
	entries, _ := state.Get[[]domain.LedgerEntry](st, state.ResourceHistory)
	return s.rows(entries), nil
}

func (s *HistoryService) rows(entries []domain.LedgerEntry) []HistoryRow {
	rows := make([]HistoryRow, len(entries))
	for i, e := range entries {
		rows[i] = HistoryRow{
			Description: e.Description,
			Points:      e.PointsDelta,
			Icon:        util.HistoryIcon(e.SourceType),
			Date:        displayTime(e.CreatedAt, s.clock.Location()),
			Credit:      e.PointsDelta > 0,
		}
	}
	return rows
}

func (s *HistoryService) renderEcoPoints(st *state.AppState) (any, error) {
	sc := st.Scalars()
	return EcoPointsView{
		Points:         sc.Points,
		LifetimePoints: sc.LifetimePoints,
		Level:          util.LevelFor(sc.LifetimePoints, s.levels),
		Levels:         s.levels,
	}, nil
}

func (s *HistoryService) loadPlastic(ctx context.Context, st *state.AppState) (any, error) {
	uid := st.UserID()
	impact, err := s.backend.GetImpact(ctx, uid)
	if err != nil {
		return nil, err
	}
	ledger, err := s.backend.ListLedger(ctx, uid, plasticScan)
	if err != nil {
		return nil, err
	}
	data := plasticData{Impact: *impact}
	for _, e := range ledger {
		if e.SourceType == domain.SourcePlastic {
			data.Entries = append(data.Entries, e)
		}
	}
	return data, nil
}

func (s *HistoryService) renderPlastic(st *state.AppState) (any, error) {
	data, _ := state.Get[plasticData](st, state.ResourcePlastic)
	return PlasticView{
		TotalKg:  fmt.Sprintf("%.1f kg", data.Impact.TotalPlasticKg),
		CO2Saved: fmt.Sprintf("%.1f kg", data.Impact.CO2SavedKg),
		Entries:  s.rows(data.Entries),
	}, nil
}

func (s *HistoryService) loadGallery(ctx context.Context, st *state.AppState) (any, error) {
	return s.backend.ListSubmissionsSince(ctx, st.UserID(), time.Time{})
}

func (s *HistoryService) renderGallery(st *state.AppState) (any, error) {
	subs, _ := state.Get[[]domain.ChallengeSubmission](st, state.ResourceGallery)
	low := lowData(st)
	items := make([]GalleryItem, 0, len(subs))
	for _, sub := range subs {
		if sub.SubmissionURL == "" {
			continue
		}
		items = append(items, GalleryItem{
			ID:          sub.ID,
			ChallengeID: sub.ChallengeID,
			ImageURL:    media.OptimizeURL(sub.SubmissionURL, 400, low),
			Status:      sub.Status,
			Date:        displayTime(sub.CreatedAt, s.clock.Location()),
		})
	}
	return items, nil
}
