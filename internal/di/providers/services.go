package providers

import (
	"github.com/samber/do/v2"

	"github.com/ecocampus/ecocampus-server/internal/activity"
	"github.com/ecocampus/ecocampus-server/internal/airquality"
	"github.com/ecocampus/ecocampus-server/internal/api"
	"github.com/ecocampus/ecocampus-server/internal/chat"
	"github.com/ecocampus/ecocampus-server/internal/config"
	"github.com/ecocampus/ecocampus-server/internal/logger"
	"github.com/ecocampus/ecocampus-server/internal/media"
	"github.com/ecocampus/ecocampus-server/internal/nav"
	"github.com/ecocampus/ecocampus-server/internal/prefs"
	"github.com/ecocampus/ecocampus-server/internal/search"
	"github.com/ecocampus/ecocampus-server/internal/service"
	"github.com/ecocampus/ecocampus-server/internal/state"
	"github.com/ecocampus/ecocampus-server/internal/util"
	"github.com/ecocampus/ecocampus-server/internal/validation"
)

// ProvideRecorder provides the asynchronous activity recorder.
func ProvideRecorder(i do.Injector) (*activity.Recorder, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return activity.NewRecorder(storeHandle.Store, log.Logger), nil
}

// ProvideClock provides the campus clock.
func ProvideClock(i do.Injector) (*util.Clock, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return util.NewClock(cfg.Campus.Location), nil
}

// ProvideRegistry provides the live session registry.
func ProvideRegistry(i do.Injector) (*state.Registry, error) {
	return state.NewRegistry(), nil
}

// ProvideValidator provides the struct validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideNavigator provides the page navigator.
func ProvideNavigator(i do.Injector) (*nav.Navigator, error) {
	recorder := do.MustInvoke[*activity.Recorder](i)
	log := do.MustInvoke[*logger.Logger](i)
	return nav.New(recorder, log.Logger), nil
}

// ProvideFlowRunner provides the write flow runner.
func ProvideFlowRunner(i do.Injector) (*service.FlowRunner, error) {
	navigator := do.MustInvoke[*nav.Navigator](i)
	recorder := do.MustInvoke[*activity.Recorder](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewFlowRunner(navigator, recorder, 0, log.Logger), nil
}

// ProvideRealtimeService provides the backend change subscriber.
func ProvideRealtimeService(i do.Injector) (*service.RealtimeService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	navigator := do.MustInvoke[*nav.Navigator](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewRealtimeService(storeHandle.Store, navigator, log.Logger), nil
}

// ProvideSessionService provides the session state machine.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sessions := do.MustInvoke[*state.Registry](i)
	navigator := do.MustInvoke[*nav.Navigator](i)
	recorder := do.MustInvoke[*activity.Recorder](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	realtime := do.MustInvoke[*service.RealtimeService](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSessionService(storeHandle.Store, sessions, navigator, recorder, sseHandle.Manager, realtime, validator, log.Logger), nil
}

// ProvideDashboardService provides the dashboard service.
func ProvideDashboardService(i do.Injector) (*service.DashboardService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	clock := do.MustInvoke[*util.Clock](i)
	air := do.MustInvoke[*airquality.Client](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewDashboardService(storeHandle.Store, clock, cfg.Campus, cfg.Levels, air, log.Logger), nil
}

// ProvideCheckinService provides the daily check-in service.
func ProvideCheckinService(i do.Injector) (*service.CheckinService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	navigator := do.MustInvoke[*nav.Navigator](i)
	flows := do.MustInvoke[*service.FlowRunner](i)
	recorder := do.MustInvoke[*activity.Recorder](i)
	clock := do.MustInvoke[*util.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCheckinService(storeHandle.Store, navigator, flows, recorder, clock, cfg.Campus, log.Logger), nil
}

// ProvideQuizService provides the daily quiz service.
func ProvideQuizService(i do.Injector) (*service.QuizService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	navigator := do.MustInvoke[*nav.Navigator](i)
	flows := do.MustInvoke[*service.FlowRunner](i)
	recorder := do.MustInvoke[*activity.Recorder](i)
	clock := do.MustInvoke[*util.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewQuizService(storeHandle.Store, navigator, flows, recorder, clock, cfg.Campus.QuizFeedbackDelay, log.Logger), nil
}

// ProvideLeaderboardService provides the leaderboard service.
func ProvideLeaderboardService(i do.Injector) (*service.LeaderboardService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	navigator := do.MustInvoke[*nav.Navigator](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewLeaderboardService(storeHandle.Store, navigator, log.Logger), nil
}

// ProvideHistoryService provides the points history service.
func ProvideHistoryService(i do.Injector) (*service.HistoryService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	clock := do.MustInvoke[*util.Clock](i)
	return service.NewHistoryService(storeHandle.Store, clock, cfg.Campus, cfg.Levels), nil
}

// ProvideRewardsService provides the rewards store service.
func ProvideRewardsService(i do.Injector) (*service.RewardsService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	navigator := do.MustInvoke[*nav.Navigator](i)
	flows := do.MustInvoke[*service.FlowRunner](i)
	recorder := do.MustInvoke[*activity.Recorder](i)
	index := do.MustInvoke[*search.SearchIndex](i)
	validator := do.MustInvoke[*validation.Validator](i)
	clock := do.MustInvoke[*util.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewRewardsService(storeHandle.Store, navigator, flows, recorder, index, validator, clock, log.Logger), nil
}

// ProvideChallengeService provides the photo challenge service.
func ProvideChallengeService(i do.Injector) (*service.ChallengeService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	navigator := do.MustInvoke[*nav.Navigator](i)
	flows := do.MustInvoke[*service.FlowRunner](i)
	recorder := do.MustInvoke[*activity.Recorder](i)
	uploader := do.MustInvoke[media.Uploader](i)
	clock := do.MustInvoke[*util.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewChallengeService(storeHandle.Store, navigator, flows, recorder, uploader, clock, log.Logger), nil
}

// ProvideEventService provides the campus events service.
func ProvideEventService(i do.Injector) (*service.EventService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	navigator := do.MustInvoke[*nav.Navigator](i)
	flows := do.MustInvoke[*service.FlowRunner](i)
	recorder := do.MustInvoke[*activity.Recorder](i)
	clock := do.MustInvoke[*util.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewEventService(storeHandle.Store, navigator, flows, recorder, clock, log.Logger), nil
}

// ProvideProfileService provides the profile service.
func ProvideProfileService(i do.Injector) (*service.ProfileService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	navigator := do.MustInvoke[*nav.Navigator](i)
	flows := do.MustInvoke[*service.FlowRunner](i)
	recorder := do.MustInvoke[*activity.Recorder](i)
	uploader := do.MustInvoke[media.Uploader](i)
	preferences := do.MustInvoke[*prefs.Store](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewProfileService(storeHandle.Store, navigator, flows, recorder, uploader, preferences, cfg.Levels, log.Logger), nil
}

// ProvideChatService provides the campus assistant.
func ProvideChatService(i do.Injector) (*service.ChatService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	navigator := do.MustInvoke[*nav.Navigator](i)
	client := do.MustInvoke[*chat.Client](i)
	prompts := do.MustInvoke[*chat.Prompts](i)
	clock := do.MustInvoke[*util.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewChatService(storeHandle.Store, navigator, client, prompts, clock, cfg.Campus, log.Logger), nil
}

// ProvideSportsService provides the sports hub service.
func ProvideSportsService(i do.Injector) (*service.SportsService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	navigator := do.MustInvoke[*nav.Navigator](i)
	flows := do.MustInvoke[*service.FlowRunner](i)
	recorder := do.MustInvoke[*activity.Recorder](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSportsService(storeHandle.Store, navigator, flows, recorder, validator, cfg.Campus, log.Logger), nil
}

// ProvideMovieService provides the movie night service.
func ProvideMovieService(i do.Injector) (*service.MovieService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	navigator := do.MustInvoke[*nav.Navigator](i)
	flows := do.MustInvoke[*service.FlowRunner](i)
	recorder := do.MustInvoke[*activity.Recorder](i)
	clock := do.MustInvoke[*util.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewMovieService(storeHandle.Store, navigator, flows, recorder, clock, log.Logger), nil
}

// ProvideAPIServices registers every page with the navigator and groups the
// services for the HTTP layer.
func ProvideAPIServices(i do.Injector) (*api.Services, error) {
	navigator := do.MustInvoke[*nav.Navigator](i)

	services := &api.Services{
		Session:     do.MustInvoke[*service.SessionService](i),
		Navigator:   navigator,
		Dashboard:   do.MustInvoke[*service.DashboardService](i),
		Checkin:     do.MustInvoke[*service.CheckinService](i),
		Quiz:        do.MustInvoke[*service.QuizService](i),
		Leaderboard: do.MustInvoke[*service.LeaderboardService](i),
		Rewards:     do.MustInvoke[*service.RewardsService](i),
		Challenges:  do.MustInvoke[*service.ChallengeService](i),
		Events:      do.MustInvoke[*service.EventService](i),
		Profile:     do.MustInvoke[*service.ProfileService](i),
		Chat:        do.MustInvoke[*service.ChatService](i),
		Sports:      do.MustInvoke[*service.SportsService](i),
		Movies:      do.MustInvoke[*service.MovieService](i),
	}

	if err := service.RegisterPages(navigator,
		services.Dashboard,
		services.Quiz,
		services.Leaderboard,
		do.MustInvoke[*service.HistoryService](i),
		services.Rewards,
		services.Challenges,
		services.Events,
		services.Profile,
		services.Chat,
		services.Sports,
		services.Movies,
	); err != nil {
		return nil, err
	}

	return services, nil
}
