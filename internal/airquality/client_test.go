package airquality

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ecocampus/ecocampus-server/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		aqi    int
		status string
		tone   string
	}{
		{0, "Good", "green"},
		{50, "Good", "green"},
		{51, "Moderate", "yellow"},
		{100, "Moderate", "yellow"},
		{101, "Unhealthy", "red"},
		{320, "Unhealthy", "red"},
	}
	for _, tt := range tests {
		card := Classify(tt.aqi)
		assert.Equal(t, tt.status, card.Status, "aqi %d", tt.aqi)
		assert.Equal(t, tt.tone, card.Tone, "aqi %d", tt.aqi)
		assert.NotEmpty(t, card.Advice)
	}
}

func newUpstreams(t *testing.T, aqiBody, geoBody string, geoStatus int) *Client {
	t.Helper()
	aqi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "us_aqi", r.URL.Query().Get("current"))
		assert.Equal(t, "19.0760", r.URL.Query().Get("latitude"))
		_, _ = w.Write([]byte(aqiBody))
	}))
	t.Cleanup(aqi.Close)

	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "en", r.URL.Query().Get("localityLanguage"))
		w.WriteHeader(geoStatus)
		_, _ = w.Write([]byte(geoBody))
	}))
	t.Cleanup(geo.Close)

	return NewClient(Config{AirQualityURL: aqi.URL, GeocodeURL: geo.URL}, nil, logger.Discard())
}

func TestLookup_PrefersLocality(t *testing.T) {
	c := newUpstreams(t, `{"current":{"us_aqi":72.4}}`, `{"locality":"Andheri","city":"Mumbai"}`, http.StatusOK)

	card, err := c.Lookup(t.Context(), 19.076, 72.8777)
	require.NoError(t, err)
	assert.Equal(t, 72, card.AQI)
	assert.Equal(t, "Moderate", card.Status)
	assert.Equal(t, "Andheri", card.City)
}

func TestLookup_FallsBackToCityThenDefault(t *testing.T) {
	c := newUpstreams(t, `{"current":{"us_aqi":12}}`, `{"locality":"","city":"Mumbai"}`, http.StatusOK)
	card, err := c.Lookup(t.Context(), 19.076, 72.8777)
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", card.City)

	c = newUpstreams(t, `{"current":{"us_aqi":12}}`, `{}`, http.StatusOK)
	card, err = c.Lookup(t.Context(), 19.076, 72.8777)
	require.NoError(t, err)
	assert.Equal(t, DefaultCity, card.City)

	c = newUpstreams(t, `{"current":{"us_aqi":12}}`, `oops`, http.StatusBadGateway)
	card, err = c.Lookup(t.Context(), 19.076, 72.8777)
	require.NoError(t, err)
	assert.Equal(t, DefaultCity, card.City)
	assert.Equal(t, "Good", card.Status)
}

func TestLookup_AQIFailure(t *testing.T) {
	c := newUpstreams(t, `{"current":{}}`, `{"city":"Mumbai"}`, http.StatusOK)
	_, err := c.Lookup(t.Context(), 19.076, 72.8777)
	assert.Error(t, err)
}

func TestLookup_RejectsBadCoordinates(t *testing.T) {
	c := NewClient(Config{}, nil, logger.Discard())
	_, err := c.Lookup(t.Context(), 123, 0)
	assert.Error(t, err)
}
