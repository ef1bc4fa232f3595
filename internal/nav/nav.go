// Package nav is the navigation orchestrator: it switches the visible page,
// keeps the history stack, loads each resource at most once per session and
// renders page view models from cached state.
package nav

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/state"
)

// Recorder logs analytics without blocking.
type Recorder interface {
	Record(ctx context.Context, userID, action, description string, metadata map[string]any)
}

// View is the result of a navigation.
type View struct {
	Page      string   `json:"page"`
	ActiveNav string   `json:"active_nav"`
	ScrollTop int      `json:"scroll_top"`
	History   []string `json:"history"`
	Data      any      `json:"data,omitempty"`
	Error     string   `json:"error,omitempty"`
	Retry     bool     `json:"retry,omitempty"`
	// Superseded is set when a newer navigation started while this one loaded.
	Superseded bool `json:"superseded,omitempty"`
}

// Push kinds sent to the browser.
const (
	PushView = "view"
)

// DefaultLoadTimeout bounds a shared resource load.
const DefaultLoadTimeout = 15 * time.Second

// Navigator owns the page registry.
type Navigator struct {
	pages    map[string]Page
	loaders  map[state.Resource]LoadFunc
	stale    map[state.Resource]StaleFunc
	loads    singleflight.Group
	timeout  time.Duration
	recorder Recorder
	logger   *slog.Logger
}

// New builds an empty navigator. Pages are added with Register before serving.
func New(recorder Recorder, logger *slog.Logger) *Navigator {
	return &Navigator{
		pages:    make(map[string]Page),
		loaders:  make(map[state.Resource]LoadFunc),
		stale:    make(map[state.Resource]StaleFunc),
		timeout:  DefaultLoadTimeout,
		recorder: recorder,
		logger:   logger,
	}
}

// Register adds pages to the registry. It is not safe to call once requests
// are being served.
func (n *Navigator) Register(pages ...Page) error {
	for _, p := range pages {
		if p.Render == nil {
			return fmt.Errorf("page %q has no renderer", p.Name)
		}
		if _, dup := n.pages[p.Name]; dup {
			return fmt.Errorf("page %q registered twice", p.Name)
		}
		n.pages[p.Name] = p
		if p.Resource != "" && p.Load != nil {
			if _, ok := n.loaders[p.Resource]; !ok {
				n.loaders[p.Resource] = p.Load
			}
		}
	}
	return nil
}

// RegisterLoader adds a loader for a resource no page owns, such as a tab
// inside a page or the daily quiz.
func (n *Navigator) RegisterLoader(r state.Resource, fn LoadFunc) error {
	if fn == nil {
		return fmt.Errorf("resource %q has no loader", r)
	}
	if _, dup := n.loaders[r]; dup {
		return fmt.Errorf("resource %q already has a loader", r)
	}
	n.loaders[r] = fn
	return nil
}

// ExpireWhen registers a check run before a loaded resource is reused. When
// it reports true the resource is reloaded.
func (n *Navigator) ExpireWhen(r state.Resource, fn StaleFunc) error {
	if fn == nil {
		return fmt.Errorf("resource %q has no expiry check", r)
	}
	if _, dup := n.stale[r]; dup {
		return fmt.Errorf("resource %q already has an expiry check", r)
	}
	n.stale[r] = fn
	return nil
}

// SetLoadTimeout overrides DefaultLoadTimeout.
func (n *Navigator) SetLoadTimeout(d time.Duration) {
	if d > 0 {
		n.timeout = d
	}
}

// Preload loads a resource once without touching visibility or history.
func (n *Navigator) Preload(ctx context.Context, st *state.AppState, r state.Resource) error {
	fn, ok := n.loaders[r]
	if !ok {
		return domainerrors.Validationf("unknown resource %q", r)
	}
	if n.fresh(st, r) {
		return nil
	}
	return n.load(ctx, st, r, fn)
}

// fresh reports whether r is loaded and still current. A stale resource is
// invalidated.
func (n *Navigator) fresh(st *state.AppState, r state.Resource) bool {
	if !st.IsLoaded(r) {
		return false
	}
	if check, ok := n.stale[r]; ok && check(st) {
		st.Invalidate(r)
		return false
	}
	return true
}

// Has reports whether page is registered.
func (n *Navigator) Has(page string) bool {
	_, ok := n.pages[page]
	return ok
}

// ShowPage makes page the visible view, loading its resource on first visit.
// A load or render failure returns a view carrying the error with retry set,
// together with the error. The page stays visible so retry has a target.
func (n *Navigator) ShowPage(ctx context.Context, st *state.AppState, page string, addToHistory bool) (*View, error) {
	page = strings.TrimPrefix(page, "#")
	p, ok := n.pages[page]
	if !ok {
		return nil, domainerrors.Validationf("unknown page %q", page)
	}

	gen := st.NextGeneration()

	if st.FireOnce("page_view:" + page) {
		n.recorder.Record(ctx, st.UserID(), domain.ActionPageView, "Visited "+page, map[string]any{"page": page})
	}

	st.SetVisible(page)
	group := detailGroup(page)
	if group != groupStore {
		st.ClearView(PageStoreDetail)
		st.ClearView(PageProductDetail)
	}
	if group != groupDepartment {
		st.ClearView(PageDepartmentDetail)
	}
	if addToHistory {
		st.PushHistory("#" + page)
	}

	view := &View{Page: page, ActiveNav: page, ScrollTop: 0, History: st.History()}

	if err := n.ensureLoaded(ctx, st, p); err != nil {
		n.logger.Warn("page load failed",
			"page", page,
			"user_id", st.UserID(),
			"error", err,
		)
		return n.failed(st, gen, view, err)
	}

	data, err := p.Render(st)
	if err != nil {
		n.logger.Warn("page render failed",
			"page", page,
			"user_id", st.UserID(),
			"error", err,
		)
		return n.failed(st, gen, view, err)
	}
	view.Data = data

	if !st.IsCurrent(gen) {
		view.Superseded = true
		return view, nil
	}
	st.SetView(page, view)
	return view, nil
}

func (n *Navigator) failed(st *state.AppState, gen uint64, view *View, err error) (*View, error) {
	view.Error = err.Error()
	view.Retry = true
	if st.IsCurrent(gen) {
		st.SetView(view.Page, view)
	} else {
		view.Superseded = true
	}
	return view, err
}

func (n *Navigator) ensureLoaded(ctx context.Context, st *state.AppState, p Page) error {
	if p.Load == nil {
		return nil
	}
	if p.Resource == "" {
		_, err := p.Load(ctx, st)
		return err
	}
	if n.fresh(st, p.Resource) {
		return nil
	}
	return n.load(ctx, st, p.Resource, p.Load)
}

// load runs one load per session and resource no matter how many callers wait
// on it. The load is detached from the caller that started it and bounded by
// the load timeout.
func (n *Navigator) load(ctx context.Context, st *state.AppState, r state.Resource, fn LoadFunc) error {
	key := st.SessionID() + "/" + string(r)
	ch := n.loads.DoChan(key, func() (any, error) {
		if st.IsLoaded(r) {
			return nil, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		data, err := fn(loadCtx, st)
		if err != nil {
			return nil, err
		}
		st.SetResource(r, data)
		st.MarkLoaded(r)
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Back returns to the previous history entry, or the dashboard when there is none.
func (n *Navigator) Back(ctx context.Context, st *state.AppState) (*View, error) {
	prev, ok := st.PopHistory()
	if !ok {
		st.ResetHistory("#" + PageDashboard)
		return n.ShowPage(ctx, st, PageDashboard, false)
	}
	return n.ShowPage(ctx, st, prev, false)
}

// Refresh reloads a resource and re-renders the pages reading it. The visible
// page is pushed to the browser.
func (n *Navigator) Refresh(ctx context.Context, st *state.AppState, r state.Resource) error {
	loader, ok := n.loaders[r]
	if !ok {
		return domainerrors.Validationf("unknown resource %q", r)
	}

	st.Invalidate(r)
	if err := n.load(ctx, st, r, loader); err != nil {
		n.logger.Warn("resource refresh failed", "resource", r, "user_id", st.UserID(), "error", err)
		return err
	}

	for name, p := range n.pages {
		if p.Resource == r {
			n.Rerender(st, name)
		}
	}
	return nil
}

// RefreshPage drops the cached resource of page and shows it again without
// touching history.
func (n *Navigator) RefreshPage(ctx context.Context, st *state.AppState, page string) (*View, error) {
	page = strings.TrimPrefix(page, "#")
	p, ok := n.pages[page]
	if !ok {
		return nil, domainerrors.Validationf("unknown page %q", page)
	}
	if p.Resource != "" {
		st.Invalidate(p.Resource)
	}
	return n.ShowPage(ctx, st, page, false)
}

// Rerender re-renders pages from cache. Only pages the session has rendered
// before, or the visible one, are touched; the visible page is pushed.
func (n *Navigator) Rerender(st *state.AppState, pages ...string) {
	visible := st.Visible()
	for _, name := range pages {
		p, ok := n.pages[name]
		if !ok {
			continue
		}
		if _, seen := st.View(name); !seen && name != visible {
			continue
		}
		if p.Resource != "" && !st.IsLoaded(p.Resource) {
			continue
		}
		data, err := p.Render(st)
		if err != nil {
			n.logger.Warn("render failed", "page", name, "error", err)
			continue
		}
		view := &View{Page: name, ActiveNav: name, History: st.History(), Data: data}
		st.SetView(name, view)
		if name == visible {
			st.Notify(PushView, view)
		}
	}
}
