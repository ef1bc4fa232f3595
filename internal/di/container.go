// Package di provides dependency injection configuration for the EcoCampus server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/ecocampus/ecocampus-server/internal/activity"
	"github.com/ecocampus/ecocampus-server/internal/api"
	"github.com/ecocampus/ecocampus-server/internal/auth"
	"github.com/ecocampus/ecocampus-server/internal/chat"
	"github.com/ecocampus/ecocampus-server/internal/config"
	"github.com/ecocampus/ecocampus-server/internal/di/providers"
	"github.com/ecocampus/ecocampus-server/internal/logger"
	"github.com/ecocampus/ecocampus-server/internal/prefs"
	"github.com/ecocampus/ecocampus-server/internal/search"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideTokenService)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvidePreferences)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Integrations
	do.Provide(injector, providers.ProvideLoginLimiter)
	do.Provide(injector, providers.ProvideUpstreamLimiter)
	do.Provide(injector, providers.ProvideChatLimiter)
	do.Provide(injector, providers.ProvideUploader)
	do.Provide(injector, providers.ProvideAirQualityClient)
	do.Provide(injector, providers.ProvideChatClient)
	do.Provide(injector, providers.ProvidePrompts)

	// Session plumbing
	do.Provide(injector, providers.ProvideRecorder)
	do.Provide(injector, providers.ProvideClock)
	do.Provide(injector, providers.ProvideRegistry)
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideNavigator)
	do.Provide(injector, providers.ProvideFlowRunner)
	do.Provide(injector, providers.ProvideRealtimeService)

	// Business services
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideDashboardService)
	do.Provide(injector, providers.ProvideCheckinService)
	do.Provide(injector, providers.ProvideQuizService)
	do.Provide(injector, providers.ProvideLeaderboardService)
	do.Provide(injector, providers.ProvideHistoryService)
	do.Provide(injector, providers.ProvideRewardsService)
	do.Provide(injector, providers.ProvideChallengeService)
	do.Provide(injector, providers.ProvideEventService)
	do.Provide(injector, providers.ProvideProfileService)
	do.Provide(injector, providers.ProvideChatService)
	do.Provide(injector, providers.ProvideSportsService)
	do.Provide(injector, providers.ProvideMovieService)
	do.Provide(injector, providers.ProvideAPIServices)

	// Workers
	do.Provide(injector, providers.ProvideSessionCleanupJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the HTTP server.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*prefs.Store](injector)
	_ = do.MustInvoke[*search.SearchIndex](injector)
	_ = do.MustInvoke[*chat.Prompts](injector)
	_ = do.MustInvoke[*activity.Recorder](injector)

	// Business services and page registration
	_ = do.MustInvoke[*api.Services](injector)

	// Workers
	_ = do.MustInvoke[*providers.SessionCleanupJob](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
