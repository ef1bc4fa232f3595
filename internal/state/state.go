// Package state holds the per-session application state: the user snapshot,
// the resource cache and its loaded flags, once-only guards, pending intents,
// the navigation generation and the last rendered view of every page.
//
// All mutation goes through methods guarded by one mutex. Cached values are
// treated as immutable: writers replace them, never modify them in place.
package state

import (
	"maps"
	"slices"
	"sync"

	"github.com/ecocampus/ecocampus-server/internal/domain"
)

// Resource names a cached backend read. Several pages may share one.
type Resource string

// Cached resources.
const (
	ResourceDashboard   Resource = "dashboard"
	ResourceLeaderboard Resource = "leaderboard"
	ResourceDepartments Resource = "departments"
	ResourceStore       Resource = "store"
	ResourceOrders      Resource = "orders"
	ResourceHistory     Resource = "history"
	ResourceChallenges  Resource = "challenges"
	ResourceEvents      Resource = "events"
	ResourceProfile     Resource = "profile"
	ResourceChat        Resource = "chat"
	ResourceSports      Resource = "sports"
	ResourceScreenings  Resource = "screenings"
	ResourceQuiz        Resource = "quiz"
	ResourcePlastic     Resource = "plastic"
	ResourceGallery     Resource = "gallery"
)

// Pending write intents, set when a modal opens and consumed by its submit.
const (
	IntentSport     = "selected_sport"
	IntentChallenge = "camera_challenge"
	IntentQuiz      = "current_quiz"
)

// Scalars is the slice of state that write flows mutate optimistically.
type Scalars struct {
	Points          int    `json:"points"`
	LifetimePoints  int    `json:"lifetime_points"`
	Streak          int    `json:"streak"`
	// LastCheckinDate is the campus date of the latest check-in. Whether the
	// user has checked in today is derived from it, never stored.
	LastCheckinDate string `json:"last_checkin_date,omitempty"`
	QuizAttempted   bool   `json:"quiz_attempted"`
}

// Snapshot is an opaque copy of Scalars for rollback.
type Snapshot struct {
	scalars Scalars
}

// Scalars returns the captured values.
func (s Snapshot) Scalars() Scalars { return s.scalars }

// NotifyFunc receives pushes for the session's browser.
type NotifyFunc func(kind string, data any)

// AppState is one browser session's state container.
type AppState struct {
	mu sync.RWMutex
	// writes orders write flows against remote balance updates.
	writes sync.Mutex

	sessionID   string
	accessToken string

	profile    *domain.Profile
	scalars    Scalars
	resources  map[Resource]any
	loaded     map[Resource]bool
	depts      map[string]any
	fired      map[string]struct{}
	intents    map[string]string
	views      map[string]any
	visible    string
	history    []string
	generation uint64

	closers []func()
	notify  NotifyFunc
}

// New creates an empty state for a session.
func New(sessionID, accessToken string) *AppState {
	return &AppState{
		sessionID:   sessionID,
		accessToken: accessToken,
		resources:   make(map[Resource]any),
		loaded:      make(map[Resource]bool),
		depts:       make(map[string]any),
		fired:       make(map[string]struct{}),
		intents:     make(map[string]string),
		views:       make(map[string]any),
	}
}

// SessionID returns the session identifier used for push routing.
func (s *AppState) SessionID() string { return s.sessionID }

// AccessToken returns the backend access token of the session.
func (s *AppState) AccessToken() string { return s.accessToken }

// SetProfile stores the profile and seeds the point scalars from it.
func (s *AppState) SetProfile(p domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = &p
	s.scalars.Points = p.CurrentPoints
	s.scalars.LifetimePoints = p.LifetimePoints
}

// Profile returns a copy of the profile with live point values.
func (s *AppState) Profile() (domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return domain.Profile{}, false
	}
	p := *s.profile
	p.CurrentPoints = s.scalars.Points
	p.LifetimePoints = s.scalars.LifetimePoints
	return p, true
}

// UserID returns the profile id, or "" before initialization.
func (s *AppState) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return ""
	}
	return s.profile.ID
}

// UpdateProfile applies fn to a copy of the profile and stores the result.
// It reports whether anything changed. Point changes flow into the scalars.
func (s *AppState) UpdateProfile(fn func(p *domain.Profile)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return false
	}
	before := *s.profile
	before.CurrentPoints = s.scalars.Points
	before.LifetimePoints = s.scalars.LifetimePoints

	next := before
	fn(&next)
	if next == before {
		return false
	}
	s.profile = &next
	s.scalars.Points = next.CurrentPoints
	s.scalars.LifetimePoints = next.LifetimePoints
	return true
}

// Exclusive runs fn while holding the session's write lock. A write flow
// holds it from snapshot to apply, so a change event for the same row is
// merged either before the snapshot or after the optimistic update.
func (s *AppState) Exclusive(fn func()) {
	s.writes.Lock()
	defer s.writes.Unlock()
	fn()
}

// Scalars returns the current scalar values.
func (s *AppState) Scalars() Scalars {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scalars
}

// UpdateScalars mutates the scalars under the lock.
func (s *AppState) UpdateScalars(fn func(sc *Scalars)) Scalars {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.scalars)
	return s.scalars
}

// AddPoints adjusts the balance; positive amounts also raise lifetime points.
func (s *AppState) AddPoints(delta int) Scalars {
	return s.UpdateScalars(func(sc *Scalars) {
		sc.Points += delta
		if delta > 0 {
			sc.LifetimePoints += delta
		}
	})
}

// Snapshot captures the scalars for a later Restore.
func (s *AppState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{scalars: s.scalars}
}

// Restore puts back a snapshot taken before a failed write.
func (s *AppState) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scalars = snap.scalars
}

// FireOnce reports true the first time key is seen in this session.
func (s *AppState) FireOnce(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fired[key]; ok {
		return false
	}
	s.fired[key] = struct{}{}
	return true
}

// Resource returns a cached value.
func (s *AppState) Resource(r Resource) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.resources[r]
	return v, ok
}

// SetResource replaces a cached value without touching its loaded flag.
func (s *AppState) SetResource(r Resource, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[r] = v
}

// Get returns a cached value of type T.
func Get[T any](s *AppState, r Resource) (T, bool) {
	v, ok := s.Resource(r)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// IsLoaded reports whether the resource was loaded successfully.
func (s *AppState) IsLoaded(r Resource) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded[r]
}

// MarkLoaded sets the loaded flag.
func (s *AppState) MarkLoaded(r Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded[r] = true
}

// Invalidate clears the loaded flag so the next visit reloads. The cached
// value stays until the reload replaces it.
func (s *AppState) Invalidate(r Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loaded, r)
}

// LoadedResources lists resources with their loaded flag set.
func (s *AppState) LoadedResources() []Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Collect(maps.Keys(s.loaded))
	slices.Sort(out)
	return out
}

// Department returns a cached department drill-down.
func (s *AppState) Department(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.depts[name]
	return v, ok
}

// SetDepartment caches a department drill-down.
func (s *AppState) SetDepartment(name string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depts[name] = v
}

// ClearDepartments drops every cached drill-down.
func (s *AppState) ClearDepartments() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.depts)
}

// SetIntent records a pending write intent.
func (s *AppState) SetIntent(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[key] = value
}

// Intent returns a pending intent.
func (s *AppState) Intent(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.intents[key]
	return v, ok
}

// ClearIntent removes a pending intent.
func (s *AppState) ClearIntent(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.intents, key)
}

// NextGeneration starts a navigation and returns its generation.
func (s *AppState) NextGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

// IsCurrent reports whether gen is still the latest navigation.
func (s *AppState) IsCurrent(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation == gen
}

// SetView stores the last render of a page.
func (s *AppState) SetView(page string, view any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[page] = view
}

// View returns the last render of a page.
func (s *AppState) View(page string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[page]
	return v, ok
}

// ClearView drops a page's render.
func (s *AppState) ClearView(page string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, page)
}

// SetVisible marks the page currently shown.
func (s *AppState) SetVisible(page string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = page
}

// Visible returns the page currently shown.
func (s *AppState) Visible() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible
}

// PushHistory appends an entry unless it repeats the top of the stack.
func (s *AppState) PushHistory(entry string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.history); n > 0 && s.history[n-1] == entry {
		return
	}
	s.history = append(s.history, entry)
}

// PopHistory drops the current entry and returns the one before it.
func (s *AppState) PopHistory() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) < 2 {
		return "", false
	}
	s.history = s.history[:len(s.history)-1]
	return s.history[len(s.history)-1], true
}

// ResetHistory replaces the stack with a single entry.
func (s *AppState) ResetHistory(entry string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = []string{entry}
}

// History returns a copy of the stack, oldest first.
func (s *AppState) History() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

// SetNotifier installs the push target for this session.
func (s *AppState) SetNotifier(fn NotifyFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// Notify pushes to the session's browser if a notifier is installed.
func (s *AppState) Notify(kind string, data any) {
	s.mu.RLock()
	fn := s.notify
	s.mu.RUnlock()
	if fn != nil {
		fn(kind, data)
	}
}

// AddCloser registers cleanup to run when the session ends.
func (s *AppState) AddCloser(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// Close runs every registered closer once.
func (s *AppState) Close() {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	for _, fn := range closers {
		fn()
	}
}
