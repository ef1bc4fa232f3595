// Package airquality looks up the current US AQI and a place name for a
// coordinate pair, and classifies the reading for the dashboard card.
package airquality

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ecocampus/ecocampus-server/internal/ratelimit"
)

// DefaultCity is shown when reverse geocoding yields no name.
const DefaultCity = "Campus Area"

// Config holds upstream endpoints.
type Config struct {
	AirQualityURL string
	GeocodeURL    string
	Timeout       time.Duration
}

// Client queries the air quality and reverse geocoding APIs.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.KeyedRateLimiter
	aqiURL     string
	geoURL     string
	logger     *slog.Logger
}

// NewClient creates a client. Outbound calls are throttled per upstream by limiter.
func NewClient(cfg Config, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		aqiURL:     cfg.AirQualityURL,
		geoURL:     cfg.GeocodeURL,
		logger:     logger,
	}
}

type aqiResponse struct {
	Current struct {
		USAQI *float64 `json:"us_aqi"`
	} `json:"current"`
}

type geocodeResponse struct {
	Locality string `json:"locality"`
	City     string `json:"city"`
}

// Lookup fetches the AQI and place name concurrently. A geocoding failure
// falls back to DefaultCity; an AQI failure is returned.
func (c *Client) Lookup(ctx context.Context, lat, lon float64) (*Card, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("coordinates out of range: %f,%f", lat, lon)
	}

	var (
		aqi  int
		city = DefaultCity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := c.fetchAQI(gctx, lat, lon)
		if err != nil {
			return err
		}
		aqi = v
		return nil
	})
	g.Go(func() error {
		name, err := c.fetchCity(gctx, lat, lon)
		if err != nil {
			c.logger.Warn("reverse geocode failed", "error", err)
			return nil
		}
		if name != "" {
			city = name
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	card := Classify(aqi)
	card.City = city
	return &card, nil
}

func (c *Client) fetchAQI(ctx context.Context, lat, lon float64) (int, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("current", "us_aqi")

	var resp aqiResponse
	if err := c.getJSON(ctx, "air-quality", c.aqiURL+"?"+params.Encode(), &resp); err != nil {
		return 0, fmt.Errorf("air quality: %w", err)
	}
	if resp.Current.USAQI == nil {
		return 0, fmt.Errorf("air quality: response has no us_aqi")
	}
	return int(*resp.Current.USAQI + 0.5), nil
}

func (c *Client) fetchCity(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("localityLanguage", "en")

	var resp geocodeResponse
	if err := c.getJSON(ctx, "geocode", c.geoURL+"?"+params.Encode(), &resp); err != nil {
		return "", fmt.Errorf("geocode: %w", err)
	}
	if resp.Locality != "" {
		return resp.Locality, nil
	}
	return resp.City, nil
}

func (c *Client) getJSON(ctx context.Context, upstream, target string, dst any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, upstream); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.UnmarshalRead(resp.Body, dst); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
