package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ecocampus/ecocampus-server/internal/backend"
	"github.com/ecocampus/ecocampus-server/internal/chat"
	"github.com/ecocampus/ecocampus-server/internal/config"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/state"
	"github.com/ecocampus/ecocampus-server/internal/util"
)

const (
	maxChatMessage   = 1000
	promptStoreItems = 5
	promptLeaders    = 3
)

// PromptRenderer builds the assistant's system prompt.
type PromptRenderer interface {
	Render(data chat.PromptData) (string, error)
}

// ChatLine is one rendered message.
type ChatLine struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Text string `json:"text"`
	HTML string `json:"html,omitempty"`
	Time string `json:"time"`
}

// ChatService runs the campus assistant.
type ChatService struct {
	backend   backend.Client
	nav       *nav.Navigator
	completer chat.Completer
	prompts   PromptRenderer
	clock     *util.Clock
	campus    config.CampusConfig
	logger    *slog.Logger
}

// NewChatService creates the chat service.
func NewChatService(
	client backend.Client,
	navigator *nav.Navigator,
	completer chat.Completer,
	prompts PromptRenderer,
	clock *util.Clock,
	campus config.CampusConfig,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		backend:   client,
		nav:       navigator,
		completer: completer,
		prompts:   prompts,
		clock:     clock,
		campus:    campus,
		logger:    logger,
	}
}

// Pages returns the chat page.
func (s *ChatService) Pages() []nav.Page {
	return []nav.Page{{
		Name:     nav.PageChat,
		Resource: state.ResourceChat,
		Load:     s.load,
		Render:   s.render,
	}}
}

func (s *ChatService) load(ctx context.Context, st *state.AppState) (any, error) {
	msgs, err := s.backend.ListChatHistory(ctx, st.UserID(), s.campus.ChatHistoryLimit)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(msgs, func(a, b domain.ChatMessage) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return msgs, nil
}

func (s *ChatService) render(st *state.AppState) (any, error) {
	msgs, _ := state.Get[[]domain.ChatMessage](st, state.ResourceChat)
	lines := make([]ChatLine, len(msgs))
	for i, m := range msgs {
		lines[i] = s.line(m)
	}
	return lines, nil
}

func (s *ChatService) line(m domain.ChatMessage) ChatLine {
	l := ChatLine{
		ID:   m.ID,
		Role: m.Role,
		Text: m.Message,
		Time: m.CreatedAt.In(s.clock.Location()).Format("3:04 PM"),
	}
	if m.Role == domain.ChatRoleBot {
		r := chat.Render(m.Message)
		l.HTML = r.HTML
	}
	return l
}

// Send stores the user's message, asks the assistant and stores its reply.
// Assistant failures produce the fallback reply rather than an error.
func (s *ChatService) Send(ctx context.Context, st *state.AppState, text string) (*ChatLine, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domainerrors.Validation("Type a message first.")
	}
	if len(text) > maxChatMessage {
		return nil, domainerrors.Validationf("Messages are limited to %d characters.", maxChatMessage)
	}
	if err := s.nav.Preload(ctx, st, state.ResourceChat); err != nil {
		return nil, err
	}
	uid := st.UserID()

	userMsg, err := s.backend.InsertChatMessage(ctx, domain.ChatMessage{UserID: uid, Role: domain.ChatRoleUser, Message: text})
	if err != nil {
		return nil, err
	}
	s.append(st, *userMsg)

	reply := s.complete(ctx, st, text)

	botMsg, err := s.backend.InsertChatMessage(ctx, domain.ChatMessage{UserID: uid, Role: domain.ChatRoleBot, Message: reply})
	if err != nil {
		// The reply is still shown; it just will not be in the history.
		s.logger.Warn("store chat reply", "user_id", uid, "error", err)
		botMsg = &domain.ChatMessage{UserID: uid, Role: domain.ChatRoleBot, Message: reply, CreatedAt: s.clock.Now()}
	} else {
		s.append(st, *botMsg)
	}

	s.nav.Rerender(st, nav.PageChat)
	line := s.line(*botMsg)
	return &line, nil
}

func (s *ChatService) complete(ctx context.Context, st *state.AppState, text string) string {
	system, err := s.prompts.Render(s.promptData(ctx, st))
	if err != nil {
		s.logger.Warn("render system prompt", "error", err)
		return chat.FallbackReply
	}
	reply, err := s.completer.Complete(ctx, chat.CompletionRequest{
		UserID:       st.UserID(),
		AccessToken:  st.AccessToken(),
		Message:      text,
		SystemPrompt: system,
	})
	if err != nil || strings.TrimSpace(reply) == "" {
		s.logger.Warn("chat completion failed", "user_id", st.UserID(), "error", err)
		return chat.FallbackReply
	}
	return reply
}

// promptData gathers the live context from the session cache, loading the
// events, store and leaderboard in parallel. Missing pieces are left empty.
func (s *ChatService) promptData(ctx context.Context, st *state.AppState) chat.PromptData {
	var g errgroup.Group
	for _, r := range []state.Resource{state.ResourceEvents, state.ResourceStore, state.ResourceLeaderboard} {
		g.Go(func() error {
			if err := s.nav.Preload(ctx, st, r); err != nil {
				s.logger.Debug("chat context unavailable", "resource", r, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	p, _ := st.Profile()
	data := chat.PromptData{
		UserName: p.FullName,
		Points:   st.Scalars().Points,
		Course:   p.Course,
	}

	events, _ := state.Get[[]domain.Event](st, state.ResourceEvents)
	loc := s.clock.Location()
	for _, e := range events {
		data.Events = append(data.Events, fmt.Sprintf("%s (%s)", e.Title, e.StartAt.In(loc).Format("02 Jan")))
	}

	cat, _ := state.Get[catalog](st, state.ResourceStore)
	for _, pr := range cat.Products[:min(promptStoreItems, len(cat.Products))] {
		data.StoreItems = append(data.StoreItems, fmt.Sprintf("%s (%d pts)", pr.Name, pr.EcoPointsCost))
	}

	leaders, _ := state.Get[[]domain.LeaderboardUser](st, state.ResourceLeaderboard)
	board := BuildLeaderboard(leaders, "")
	for _, row := range board.Podium[:min(promptLeaders, len(board.Podium))] {
		data.TopLeaders = append(data.TopLeaders, row.Name)
	}
	return data
}

func (s *ChatService) append(st *state.AppState, m domain.ChatMessage) {
	msgs, _ := state.Get[[]domain.ChatMessage](st, state.ResourceChat)
	next := append(slices.Clone(msgs), m)
	if limit := s.campus.ChatHistoryLimit; limit > 0 && len(next) > limit {
		next = next[len(next)-limit:]
	}
	st.SetResource(state.ResourceChat, next)
}
