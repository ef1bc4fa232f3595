package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ecocampus/ecocampus-server/internal/backend"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/state"
	"github.com/ecocampus/ecocampus-server/internal/util"
)

// Quiz availability.
const (
	QuizUnavailable = "unavailable"
	QuizAvailable   = "available-unattempted"
	QuizAttempted   = "available-attempted"
)

// quizData is the cached availability check for one campus day.
type quizData struct {
	Date      string
	Quiz      *domain.Quiz
	Attempted bool
}

// QuizView is the quiz card and modal view model.
type QuizView struct {
	Availability string       `json:"availability"`
	Quiz         *domain.Quiz `json:"quiz,omitempty"`
	ButtonLabel  string       `json:"button_label"`
	Disabled     bool         `json:"disabled"`
}

// QuizResult is the feedback shown after answering.
type QuizResult struct {
	Correct bool   `json:"correct"`
	Points  int    `json:"points"`
	Message string `json:"message"`
}

// QuizService runs the daily quiz.
type QuizService struct {
	backend  backend.Client
	nav      *nav.Navigator
	flows    *FlowRunner
	recorder nav.Recorder
	clock    *util.Clock
	// feedback is how long the result stays on screen before the modal closes.
	feedback time.Duration

	wg     sync.WaitGroup
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// NewQuizService creates the quiz service.
func NewQuizService(
	client backend.Client,
	navigator *nav.Navigator,
	flows *FlowRunner,
	recorder nav.Recorder,
	clock *util.Clock,
	feedback time.Duration,
	logger *slog.Logger,
) *QuizService {
	return &QuizService{
		backend:  client,
		nav:      navigator,
		flows:    flows,
		recorder: recorder,
		clock:    clock,
		feedback: feedback,
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Loaders registers the quiz availability check with the navigator. The
// check is redone once the campus day rolls over.
func (s *QuizService) Loaders(n *nav.Navigator) error {
	if err := n.RegisterLoader(state.ResourceQuiz, s.load); err != nil {
		return err
	}
	return n.ExpireWhen(state.ResourceQuiz, func(st *state.AppState) bool {
		data, ok := state.Get[quizData](st, state.ResourceQuiz)
		return ok && data.Date != s.clock.Today()
	})
}

// load checks availability and attempt status once per campus day.
func (s *QuizService) load(ctx context.Context, st *state.AppState) (any, error) {
	today := s.clock.Today()
	quiz, err := s.backend.GetQuizForDate(ctx, today)
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			st.UpdateScalars(func(sc *state.Scalars) { sc.QuizAttempted = false })
			return quizData{Date: today}, nil
		}
		return nil, err
	}

	data := quizData{Date: today, Quiz: quiz}
	if _, err := s.backend.GetQuizSubmission(ctx, quiz.ID, st.UserID()); err == nil {
		data.Attempted = true
	} else if !domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	st.UpdateScalars(func(sc *state.Scalars) { sc.QuizAttempted = data.Attempted })
	return data, nil
}

// BuildQuizView renders the cached check.
func BuildQuizView(st *state.AppState) QuizView {
	data, _ := state.Get[quizData](st, state.ResourceQuiz)
	if data.Quiz == nil {
		return QuizView{Availability: QuizUnavailable, ButtonLabel: "No Quiz Today", Disabled: true}
	}
	if data.Attempted || st.Scalars().QuizAttempted {
		return QuizView{Availability: QuizAttempted, Quiz: data.Quiz, ButtonLabel: "Attempted", Disabled: true}
	}
	return QuizView{Availability: QuizAvailable, Quiz: data.Quiz, ButtonLabel: "Play Now"}
}

// Open returns the quiz, reusing the cached availability.
func (s *QuizService) Open(ctx context.Context, st *state.AppState) (*QuizView, error) {
	if err := s.nav.Preload(ctx, st, state.ResourceQuiz); err != nil {
		return nil, err
	}
	v := BuildQuizView(st)
	if v.Quiz != nil {
		st.SetIntent(state.IntentQuiz, v.Quiz.ID)
	}
	return &v, nil
}

// Submit answers today's quiz. The attempt is claimed under the state lock
// before anything is written, so a double tap writes one submission.
func (s *QuizService) Submit(ctx context.Context, st *state.AppState, answer int) (*QuizResult, error) {
	if err := s.nav.Preload(ctx, st, state.ResourceQuiz); err != nil {
		return nil, err
	}
	data, _ := state.Get[quizData](st, state.ResourceQuiz)
	uid := st.UserID()

	var result QuizResult
	err := s.flows.Run(ctx, st, Flow{
		Name: "quiz",
		Validate: func(context.Context) error {
			if data.Quiz == nil {
				return domainerrors.NotFound("There is no quiz today.")
			}
			if answer < 0 || answer >= len(data.Quiz.Options) {
				return domainerrors.Validation("Pick one of the options.")
			}
			var already bool
			st.UpdateScalars(func(sc *state.Scalars) {
				already = sc.QuizAttempted
				sc.QuizAttempted = true
			})
			if already {
				return domainerrors.ErrAlreadyAttempted
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			correct := answer == data.Quiz.CorrectOptionIndex
			if _, err := s.backend.InsertQuizSubmission(ctx, domain.QuizSubmission{
				QuizID:    data.Quiz.ID,
				UserID:    uid,
				IsCorrect: correct,
			}); err != nil {
				return err
			}
			result = QuizResult{Correct: correct, Message: "Wrong Answer!"}
			if !correct {
				return nil
			}
			if _, err := s.backend.InsertLedger(ctx, domain.LedgerEntry{
				UserID:      uid,
				SourceType:  domain.SourceQuiz,
				SourceID:    data.Quiz.ID,
				Description: "Daily Quiz Win",
				PointsDelta: data.Quiz.PointsReward,
			}); err != nil {
				return err
			}
			result.Points = data.Quiz.PointsReward
			result.Message = fmt.Sprintf("Correct! +%d Points", data.Quiz.PointsReward)
			return nil
		},
		Apply: func(ctx context.Context) {
			st.SetResource(state.ResourceQuiz, quizData{Date: data.Date, Quiz: data.Quiz, Attempted: true})
			st.ClearIntent(state.IntentQuiz)
			if result.Points > 0 {
				st.AddPoints(result.Points)
				st.Invalidate(state.ResourceHistory)
			}
			s.recorder.Record(ctx, uid, domain.ActionQuizSubmit, result.Message,
				map[string]any{"quiz_id": data.Quiz.ID, "correct": result.Correct})
			s.closeAfterFeedback(ctx, st)
		},
		// The claim was taken before the snapshot, so release it by hand
		// unless the backend already holds a submission.
		OnFailure: func(_ context.Context, err error) {
			if domainerrors.Is(err, domainerrors.ErrAlreadyAttempted) {
				st.SetResource(state.ResourceQuiz, quizData{Date: data.Date, Quiz: data.Quiz, Attempted: true})
				return
			}
			st.UpdateScalars(func(sc *state.Scalars) { sc.QuizAttempted = false })
		},
		Rerender: []string{nav.PageChallenges, nav.PageDashboard},
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// closeAfterFeedback waits for the feedback delay, then refreshes the balance
// and closes the modal in the browser.
func (s *QuizService) closeAfterFeedback(ctx context.Context, st *state.AppState) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Go(func() {
		if s.feedback > 0 {
			timer := time.NewTimer(s.feedback)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-s.done:
				return
			}
		}
		ctx, cancel := context.WithTimeout(ctx, resyncTimeout)
		defer cancel()
		if err := refreshUserData(ctx, s.backend, s.nav, st); err != nil {
			s.logger.Warn("refresh after quiz", "user_id", st.UserID(), "error", err)
		}
		pushModal(st, ModalQuiz, false, nil)
	})
}

// Wait blocks until pending feedback timers have fired.
func (s *QuizService) Wait() {
	s.wg.Wait()
}

// Shutdown cancels pending feedback timers.
func (s *QuizService) Shutdown() error {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}
