package providers

import (
	"github.com/samber/do/v2"

	"github.com/ecocampus/ecocampus-server/internal/airquality"
	"github.com/ecocampus/ecocampus-server/internal/chat"
	"github.com/ecocampus/ecocampus-server/internal/config"
	"github.com/ecocampus/ecocampus-server/internal/logger"
	"github.com/ecocampus/ecocampus-server/internal/media"
	"github.com/ecocampus/ecocampus-server/internal/ratelimit"
)

// Limits for the keyed limiters.
const (
	loginRPS      = 0.2 // one attempt per 5s per IP after the burst
	loginBurst    = 10
	upstreamRPS   = 5
	upstreamBurst = 10
	chatRPS       = 0.5
	chatBurst     = 3
)

// LoginLimiter throttles sign in and sign up per client IP.
type LoginLimiter struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (l *LoginLimiter) Shutdown() {
	l.Stop()
}

// UpstreamLimiter throttles outbound calls per upstream API.
type UpstreamLimiter struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (l *UpstreamLimiter) Shutdown() {
	l.Stop()
}

// ChatLimiter throttles assistant messages per user.
type ChatLimiter struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (l *ChatLimiter) Shutdown() {
	l.Stop()
}

// ProvideLoginLimiter provides the sign in limiter.
func ProvideLoginLimiter(i do.Injector) (*LoginLimiter, error) {
	return &LoginLimiter{ratelimit.New(loginRPS, loginBurst)}, nil
}

// ProvideUpstreamLimiter provides the outbound API limiter.
func ProvideUpstreamLimiter(i do.Injector) (*UpstreamLimiter, error) {
	return &UpstreamLimiter{ratelimit.New(upstreamRPS, upstreamBurst)}, nil
}

// ProvideChatLimiter provides the per-user chat limiter.
func ProvideChatLimiter(i do.Injector) (*ChatLimiter, error) {
	return &ChatLimiter{ratelimit.New(chatRPS, chatBurst)}, nil
}

// ProvideUploader provides the Cloudinary image uploader. Without credentials
// uploads are rejected instead of failing startup.
func ProvideUploader(i do.Injector) (media.Uploader, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	in := cfg.Integrations
	if in.CloudinaryCloudName == "" || in.CloudinaryAPIKey == "" || in.CloudinaryAPISecret == "" {
		log.Warn("Cloudinary credentials missing, photo uploads disabled")
		return media.DisabledUploader{}, nil
	}

	uploader, err := media.NewCloudinaryUploader(media.CloudinaryConfig{
		CloudName:    in.CloudinaryCloudName,
		APIKey:       in.CloudinaryAPIKey,
		APISecret:    in.CloudinaryAPISecret,
		UploadPreset: in.CloudinaryUploadPreset,
	}, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Cloudinary uploader ready", "cloud", in.CloudinaryCloudName)
	return uploader, nil
}

// ProvideAirQualityClient provides the AQI and reverse geocoding client.
func ProvideAirQualityClient(i do.Injector) (*airquality.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	limiter := do.MustInvoke[*UpstreamLimiter](i)

	return airquality.NewClient(airquality.Config{
		AirQualityURL: cfg.Integrations.AirQualityURL,
		GeocodeURL:    cfg.Integrations.GeocodeURL,
		Timeout:       cfg.Integrations.HTTPTimeout,
	}, limiter.KeyedRateLimiter, log.Logger), nil
}

// ProvideChatClient provides the language model client.
func ProvideChatClient(i do.Injector) (*chat.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	limiter := do.MustInvoke[*ChatLimiter](i)

	if cfg.Integrations.ChatEndpoint == "" {
		log.Warn("No chat endpoint configured, the assistant will answer with a fallback")
	}

	return chat.NewClient(cfg.Integrations.ChatEndpoint, cfg.Integrations.HTTPTimeout, limiter.KeyedRateLimiter, log.Logger), nil
}

// ProvidePrompts provides the hot-reloaded chat prompt template.
func ProvidePrompts(i do.Injector) (*chat.Prompts, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return chat.NewPrompts(cfg.Integrations.ChatPromptTemplate, log.Logger)
}
