package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"

	"github.com/ecocampus/ecocampus-server/internal/backend"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/id"
	"github.com/ecocampus/ecocampus-server/internal/media"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/state"
	"github.com/ecocampus/ecocampus-server/internal/util"
)

// Challenge card states.
const (
	ChallengeActive    = "active"
	ChallengePending   = "pending"
	ChallengeCompleted = "completed"
)

const frequencyDaily = "daily"

type challengeData struct {
	Challenges  []domain.Challenge
	Submissions []domain.ChallengeSubmission
}

// ChallengeCard is one challenge with its button state.
type ChallengeCard struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	Type        string `json:"type"`
	Frequency   string `json:"frequency"`
	Icon        string `json:"icon"`
	Status      string `json:"status"`
	ButtonLabel string `json:"button_label"`
	Disabled    bool   `json:"disabled"`
}

// ChallengesView is the challenges page.
type ChallengesView struct {
	Quiz       QuizView        `json:"quiz"`
	Challenges []ChallengeCard `json:"challenges"`
}

// ChallengeService runs photo challenges.
type ChallengeService struct {
	backend  backend.Client
	nav      *nav.Navigator
	flows    *FlowRunner
	recorder nav.Recorder
	uploader media.Uploader
	clock    *util.Clock
	logger   *slog.Logger
}

// NewChallengeService creates the challenge service.
func NewChallengeService(
	client backend.Client,
	navigator *nav.Navigator,
	flows *FlowRunner,
	recorder nav.Recorder,
	uploader media.Uploader,
	clock *util.Clock,
	logger *slog.Logger,
) *ChallengeService {
	return &ChallengeService{
		backend:  client,
		nav:      navigator,
		flows:    flows,
		recorder: recorder,
		uploader: uploader,
		clock:    clock,
		logger:   logger,
	}
}

// Pages returns the challenges page.
func (s *ChallengeService) Pages() []nav.Page {
	return []nav.Page{{
		Name:     nav.PageChallenges,
		Resource: state.ResourceChallenges,
		Load:     s.load,
		Render:   s.render,
	}}
}

// load fetches active challenges and today's submissions, then the quiz card.
func (s *ChallengeService) load(ctx context.Context, st *state.AppState) (any, error) {
	challenges, err := s.backend.ListActiveChallenges(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := s.backend.ListSubmissionsSince(ctx, st.UserID(), s.clock.StartOfToday())
	if err != nil {
		return nil, err
	}
	if err := s.nav.Preload(ctx, st, state.ResourceQuiz); err != nil {
		s.logger.Warn("quiz status load failed", "user_id", st.UserID(), "error", err)
	}
	return challengeData{Challenges: challenges, Submissions: subs}, nil
}

func (s *ChallengeService) render(st *state.AppState) (any, error) {
	data, _ := state.Get[challengeData](st, state.ResourceChallenges)
	view := ChallengesView{Quiz: BuildQuizView(st), Challenges: make([]ChallengeCard, len(data.Challenges))}
	for i, c := range data.Challenges {
		view.Challenges[i] = s.card(c, data.Submissions)
	}
	return view, nil
}

// BuildChallengeCard picks the submission that counts for c and derives the
// button. Daily challenges only count a submission made today.
func BuildChallengeCard(c domain.Challenge, subs []domain.ChallengeSubmission, isToday func(domain.ChallengeSubmission) bool) ChallengeCard {
	card := ChallengeCard{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Points:      c.PointsReward,
		Type:        c.Type,
		Frequency:   c.Frequency,
		Icon:        util.ChallengeIcon(c.Type),
		Status:      ChallengeActive,
		ButtonLabel: "Start",
	}

	var sub *domain.ChallengeSubmission
	for i := range subs {
		if subs[i].ChallengeID != c.ID {
			continue
		}
		if c.Frequency == frequencyDaily && !isToday(subs[i]) {
			continue
		}
		sub = &subs[i]
		break
	}

	if sub == nil {
		if c.Type == "Upload" {
			card.ButtonLabel = "Take Photo"
		}
		return card
	}
	switch sub.Status {
	case domain.SubmissionApproved, domain.SubmissionVerified:
		card.Status = ChallengeCompleted
		card.Disabled = true
		card.ButtonLabel = "Completed"
		if c.Frequency == frequencyDaily {
			card.ButtonLabel = "Done for Today"
		}
	case domain.SubmissionPending:
		card.Status = ChallengePending
		card.ButtonLabel = "In Review"
		card.Disabled = true
	case domain.SubmissionRejected:
		card.ButtonLabel = "Retry"
	}
	return card
}

// OpenCamera remembers which challenge the next photo is for.
func (s *ChallengeService) OpenCamera(st *state.AppState, challengeID string) {
	st.SetIntent(state.IntentChallenge, challengeID)
	pushModal(st, ModalCamera, true, map[string]string{"challenge_id": challengeID})
}

// SubmitPhoto uploads a proof photo and files it for review. An empty
// challengeID uses the challenge the camera was opened for.
func (s *ChallengeService) SubmitPhoto(ctx context.Context, st *state.AppState, challengeID string, photo io.Reader) (*ChallengeCard, error) {
	if challengeID == "" {
		challengeID, _ = st.Intent(state.IntentChallenge)
	}
	if err := s.nav.Preload(ctx, st, state.ResourceChallenges); err != nil {
		return nil, err
	}
	data, _ := state.Get[challengeData](st, state.ResourceChallenges)
	uid := st.UserID()

	var (
		challenge domain.Challenge
		img       *media.Prepared
		sub       *domain.ChallengeSubmission
	)
	err := s.flows.Run(ctx, st, Flow{
		Name: "challenge_submit",
		Validate: func(context.Context) error {
			i := slices.IndexFunc(data.Challenges, func(c domain.Challenge) bool { return c.ID == challengeID })
			if i < 0 {
				return domainerrors.NotFound("That challenge is no longer active.")
			}
			challenge = data.Challenges[i]
			if card := s.card(challenge, data.Submissions); card.Disabled {
				return domainerrors.Conflictf("%s: %s", challenge.Title, card.ButtonLabel)
			}
			var err error
			img, err = media.PreparePhoto(photo)
			if errors.Is(err, media.ErrUnsupportedImage) {
				return domainerrors.Validation("Please upload a JPEG, PNG, GIF or WebP photo.")
			}
			return err
		},
		Write: func(ctx context.Context) error {
			s.recorder.Record(ctx, uid, domain.ActionUploadStart, "Starting challenge upload",
				map[string]any{"challenge_id": challengeID})
			publicID, err := id.Generate("sub")
			if err != nil {
				return err
			}
			url, err := s.uploader.Upload(ctx, media.FolderChallenges, publicID, img)
			if err != nil {
				return err
			}
			sub, err = s.backend.InsertChallengeSubmission(ctx, domain.ChallengeSubmission{
				ChallengeID:   challengeID,
				UserID:        uid,
				SubmissionURL: url,
				Status:        domain.SubmissionPending,
			})
			return err
		},
		Apply: func(ctx context.Context) {
			// Local update only; review happens elsewhere.
			st.SetResource(state.ResourceChallenges, challengeData{
				Challenges:  data.Challenges,
				Submissions: append([]domain.ChallengeSubmission{*sub}, data.Submissions...),
			})
			st.Invalidate(state.ResourceGallery)
			st.ClearIntent(state.IntentChallenge)
			s.recorder.Record(ctx, uid, domain.ActionUploadSuccess, "Challenge submitted successfully",
				map[string]any{"challenge_id": challengeID, "submission_id": sub.ID})
			s.recorder.Record(ctx, uid, domain.ActionChallengeSubmit, "Submitted "+challenge.Title, nil)
		},
		OnFailure: func(ctx context.Context, err error) {
			s.recorder.Record(ctx, uid, domain.ActionUploadError, err.Error(),
				map[string]any{"challenge_id": challengeID})
		},
		Rerender: []string{nav.PageChallenges},
		Success:  "Challenge submitted successfully!",
		Failure:  "Failed to upload photo.",
	})
	if err != nil {
		return nil, err
	}
	updated, _ := state.Get[challengeData](st, state.ResourceChallenges)
	card := s.card(challenge, updated.Submissions)
	return &card, nil
}

func (s *ChallengeService) card(c domain.Challenge, subs []domain.ChallengeSubmission) ChallengeCard {
	today := s.clock.Today()
	loc := s.clock.Location()
	return BuildChallengeCard(c, subs, func(sub domain.ChallengeSubmission) bool {
		return sub.CreatedAt.In(loc).Format(util.DateLayout) == today
	})
}
