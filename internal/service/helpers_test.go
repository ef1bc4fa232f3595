package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ecocampus/ecocampus-server/internal/activity"
	"github.com/ecocampus/ecocampus-server/internal/airquality"
	"github.com/ecocampus/ecocampus-server/internal/auth"
	"github.com/ecocampus/ecocampus-server/internal/backend/sqlite"
	"github.com/ecocampus/ecocampus-server/internal/chat"
	"github.com/ecocampus/ecocampus-server/internal/config"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	"github.com/ecocampus/ecocampus-server/internal/logger"
	"github.com/ecocampus/ecocampus-server/internal/media"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/prefs"
	"github.com/ecocampus/ecocampus-server/internal/search"
	"github.com/ecocampus/ecocampus-server/internal/sse"
	"github.com/ecocampus/ecocampus-server/internal/state"
	"github.com/ecocampus/ecocampus-server/internal/util"
	"github.com/ecocampus/ecocampus-server/internal/validation"
)

// bleve starts its analysis workers at package init and never stops them.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/blevesearch/bleve_index_api.AnalysisWorker"))
}

type pushed struct {
	SessionID string
	Kind      string
	Data      any
}

// recordingPusher keeps every event a session would have sent to its browser.
type recordingPusher struct {
	mu           sync.Mutex
	events       []pushed
	disconnected []string
}

func (p *recordingPusher) Notify(sessionID, kind string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, pushed{SessionID: sessionID, Kind: kind, Data: data})
}

func (p *recordingPusher) DisconnectSession(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnected = append(p.disconnected, sessionID)
}

func (p *recordingPusher) toasts(level string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		if t, ok := e.Data.(sse.ToastEventData); ok && e.Kind == string(sse.EventToast) && t.Level == level {
			out = append(out, t.Message)
		}
	}
	return out
}

func (p *recordingPusher) count(kind sse.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Kind == string(kind) {
			n++
		}
	}
	return n
}

type memoryPrefs struct {
	mu   sync.Mutex
	byID map[string]prefs.Preferences
}

func (m *memoryPrefs) Get(_ context.Context, userID string) (prefs.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byID[userID]; ok {
		return p, nil
	}
	return prefs.Preferences{Theme: prefs.ThemeLight}, nil
}

func (m *memoryPrefs) update(userID string, fn func(*prefs.Preferences)) prefs.Preferences {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byID == nil {
		m.byID = map[string]prefs.Preferences{}
	}
	p, ok := m.byID[userID]
	if !ok {
		p = prefs.Preferences{Theme: prefs.ThemeLight}
	}
	fn(&p)
	m.byID[userID] = p
	return p
}

func (m *memoryPrefs) SetTheme(_ context.Context, userID, theme string) (prefs.Preferences, error) {
	if theme != prefs.ThemeLight && theme != prefs.ThemeDark {
		return prefs.Preferences{}, prefs.ErrInvalidTheme
	}
	return m.update(userID, func(p *prefs.Preferences) { p.Theme = theme }), nil
}

func (m *memoryPrefs) SetLowData(_ context.Context, userID string, on bool) (prefs.Preferences, error) {
	return m.update(userID, func(p *prefs.Preferences) { p.LowData = on }), nil
}

func (m *memoryPrefs) SetAvatarBlurHash(_ context.Context, userID, hash string) (prefs.Preferences, error) {
	return m.update(userID, func(p *prefs.Preferences) { p.AvatarBlurHash = hash }), nil
}

type memoryIndex struct {
	mu   sync.Mutex
	docs map[string]*search.SearchDocument
}

func (m *memoryIndex) IndexDocuments(docs []*search.SearchDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs == nil {
		m.docs = map[string]*search.SearchDocument{}
	}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return nil
}

func (m *memoryIndex) Search(_ context.Context, params search.SearchParams) (*search.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := &search.SearchResult{Query: params.Query}
	q := strings.ToLower(params.Query)
	for _, d := range m.docs {
		if strings.Contains(strings.ToLower(d.Name), q) {
			res.Hits = append(res.Hits, search.SearchHit{ID: d.ID, Type: d.Type, Name: d.Name})
		}
	}
	res.Total = uint64(len(res.Hits))
	return res, nil
}

type stubUploader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (u *stubUploader) Upload(_ context.Context, folder, publicID string, _ *media.Prepared) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if u.err != nil {
		return "", u.err
	}
	return fmt.Sprintf("https://res.cloudinary.com/demo/image/upload/%s/%s.jpg", folder, publicID), nil
}

type stubAir struct{}

func (stubAir) Lookup(context.Context, float64, float64) (*airquality.Card, error) {
	c := airquality.Unavailable()
	return &c, nil
}

type stubCompleter struct {
	reply string
	err   error
}

func (c stubCompleter) Complete(context.Context, chat.CompletionRequest) (string, error) {
	return c.reply, c.err
}

type stubPrompts struct{}

func (stubPrompts) Render(d chat.PromptData) (string, error) {
	return "You help " + d.UserName, nil
}

// testEnv is a full service graph on a temporary SQLite backend.
type testEnv struct {
	store    *sqlite.Store
	nav      *nav.Navigator
	recorder *activity.Recorder
	flows    *FlowRunner
	clock    *util.Clock
	campus   config.CampusConfig
	sessions *state.Registry
	pusher   *recordingPusher
	uploader *stubUploader
	prefs    *memoryPrefs

	session     *SessionService
	realtime    *RealtimeService
	dashboard   *DashboardService
	checkin     *CheckinService
	quiz        *QuizService
	leaderboard *LeaderboardService
	history     *HistoryService
	rewards     *RewardsService
	challenges  *ChallengeService
	events      *EventService
	profile     *ProfileService
	chat        *ChatService
	sports      *SportsService
	movies      *MovieService
}

var testSeq int

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvAt(t, time.Now)
}

// newTestEnvAt builds the graph on a clock driven by now.
func newTestEnvAt(t *testing.T, now func() time.Time) *testEnv {
	t.Helper()
	log := logger.Discard()

	tokens, err := auth.NewTokenService([]byte(strings.Repeat("k", 32)), time.Hour)
	require.NoError(t, err)
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "campus.db"), tokens, log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	levels, err := config.LoadLevels("")
	require.NoError(t, err)

	e := &testEnv{
		store:    store,
		recorder: activity.NewRecorder(store, log),
		clock:    util.NewClockAt(time.UTC, now),
		campus: config.CampusConfig{
			Timezone:         "UTC",
			Location:         time.UTC,
			CheckinReward:    10,
			RestoreCost:      50,
			DefaultTeamSize:  5,
			MinTeamSize:      2,
			HistoryLimit:     20,
			ChatHistoryLimit: 20,
		},
		sessions: state.NewRegistry(),
		pusher:   &recordingPusher{},
		uploader: &stubUploader{},
		prefs:    &memoryPrefs{},
	}
	t.Cleanup(e.recorder.Wait)

	validator := validation.New()
	e.nav = nav.New(e.recorder, log)
	e.flows = NewFlowRunner(e.nav, e.recorder, 0, log)
	e.realtime = NewRealtimeService(store, e.nav, log)
	t.Cleanup(func() {
		e.sessions.CloseAll()
		e.realtime.Wait()
	})

	e.session = NewSessionService(store, e.sessions, e.nav, e.recorder, e.pusher, e.realtime, validator, log)
	e.dashboard = NewDashboardService(store, e.clock, e.campus, levels, stubAir{}, log)
	e.checkin = NewCheckinService(store, e.nav, e.flows, e.recorder, e.clock, e.campus, log)
	e.quiz = NewQuizService(store, e.nav, e.flows, e.recorder, e.clock, 0, log)
	e.leaderboard = NewLeaderboardService(store, e.nav, log)
	e.history = NewHistoryService(store, e.clock, e.campus, levels)
	e.rewards = NewRewardsService(store, e.nav, e.flows, e.recorder, &memoryIndex{}, validator, e.clock, log)
	e.challenges = NewChallengeService(store, e.nav, e.flows, e.recorder, e.uploader, e.clock, log)
	e.events = NewEventService(store, e.nav, e.flows, e.recorder, e.clock, log)
	e.profile = NewProfileService(store, e.nav, e.flows, e.recorder, e.uploader, e.prefs, levels, log)
	e.chat = NewChatService(store, e.nav, stubCompleter{reply: "Try the **Green Cafe**."}, stubPrompts{}, e.clock, e.campus, log)
	e.sports = NewSportsService(store, e.nav, e.flows, e.recorder, validator, e.campus, log)
	e.movies = NewMovieService(store, e.nav, e.flows, e.recorder, e.clock, log)
	t.Cleanup(func() { _ = e.quiz.Shutdown() })
	t.Cleanup(func() { _ = e.session.Shutdown() })

	require.NoError(t, RegisterPages(e.nav,
		e.dashboard, e.quiz, e.leaderboard, e.history, e.rewards, e.challenges,
		e.events, e.profile, e.chat, e.sports, e.movies,
	))
	return e
}

// signUp creates a student on the backend without opening a session.
func (e *testEnv) signUp(t *testing.T, course string) (token string, p *domain.Profile) {
	t.Helper()
	ctx := context.Background()
	testSeq++
	sess, err := e.store.SignUp(ctx, domain.SignUpRequest{
		Email:     fmt.Sprintf("student%d@campus.edu", testSeq),
		Password:  "greenleaf",
		FullName:  fmt.Sprintf("Student %d", testSeq),
		StudentID: fmt.Sprintf("S%04d", testSeq),
		Course:    course,
	})
	require.NoError(t, err)
	p, err = e.store.GetProfileByAuthID(ctx, sess.AuthUserID)
	require.NoError(t, err)
	return sess.AccessToken, p
}

// login initializes a session for token and returns its state.
func (e *testEnv) login(t *testing.T, token string) *state.AppState {
	t.Helper()
	_, err := e.session.Initialize(context.Background(), token)
	require.NoError(t, err)
	st, ok := e.sessions.Get(token)
	require.True(t, ok)
	return st
}

// newStudent signs up and logs in.
func (e *testEnv) newStudent(t *testing.T, course string) (*state.AppState, *domain.Profile) {
	t.Helper()
	token, p := e.signUp(t, course)
	return e.login(t, token), p
}

func (e *testEnv) credit(t *testing.T, userID string, points int) {
	t.Helper()
	_, err := e.store.InsertLedger(context.Background(), domain.LedgerEntry{
		UserID: userID, SourceType: domain.SourceEvent, Description: "Seed", PointsDelta: points,
	})
	require.NoError(t, err)
}

func (e *testEnv) importCatalog(t *testing.T, c sqlite.Catalog) {
	t.Helper()
	require.NoError(t, e.store.ImportCatalog(context.Background(), c, time.UTC))
}

// manualClock is a time source tests move by hand.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// dayOffset returns the campus date n days from today.
func (e *testEnv) dayOffset(n int) string {
	return e.clock.Now().AddDate(0, 0, n).Format(util.DateLayout)
}
