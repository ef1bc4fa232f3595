package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocampus/ecocampus-server/internal/backend/sqlite"
	"github.com/ecocampus/ecocampus-server/internal/service"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x), G: 160, B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// submitPhoto posts a multipart form through the full router.
func (ts *testServer) submitPhoto(t *testing.T, token, challengeID, field string, photo []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "photo.png")
	require.NoError(t, err)
	_, err = part.Write(photo)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/challenges/"+challengeID+"/submissions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

func seedChallenge(t *testing.T, ts *testServer) {
	t.Helper()
	require.NoError(t, ts.store.ImportCatalog(context.Background(), sqlite.Catalog{
		Challenges: []sqlite.CatalogChallenge{
			{ID: "chl-1", Title: "Refill Station", Reward: 20, Type: "Upload", Frequency: "daily"},
		},
	}, time.UTC))
}

func TestSubmitPhoto(t *testing.T) {
	ts := setupTestServer(t)
	seedChallenge(t, ts)
	token, _ := ts.signUp(t)

	resp := ts.api.Post("/api/v1/challenges/chl-1/camera", authHeader(token))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	rec := ts.submitPhoto(t, token, "chl-1", "photo", pngBytes(t, 64, 48))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decode[service.ChallengeCard](t, rec.Body.Bytes())
	assert.True(t, env.Success)
	assert.Equal(t, service.ChallengePending, env.Data.Status)
	assert.Equal(t, "In Review", env.Data.ButtonLabel)

	// A pending submission blocks another one.
	rec = ts.submitPhoto(t, token, "chl-1", "photo", pngBytes(t, 8, 8))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmitPhoto_Errors(t *testing.T) {
	ts := setupTestServer(t)
	seedChallenge(t, ts)
	token, _ := ts.signUp(t)

	tests := []struct {
		name       string
		token      string
		field      string
		photo      []byte
		wantStatus int
		wantCode   string
	}{
		{"no session", "", "photo", pngBytes(t, 4, 4), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong field", token, "file", pngBytes(t, 4, 4), http.StatusBadRequest, "VALIDATION"},
		{"not an image", token, "photo", []byte("plain text"), http.StatusBadRequest, "VALIDATION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.submitPhoto(t, tt.token, "chl-1", tt.field, tt.photo)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			env := decode[json.RawMessage](t, rec.Body.Bytes())
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Code)
		})
	}
}

func TestUploadAvatar(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.signUp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/profile/avatar", bytes.NewReader(pngBytes(t, 32, 32)))
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env testEnvelope[map[string]any]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.True(t, strings.Contains(rec.Body.String(), "res.cloudinary.com"))
}
