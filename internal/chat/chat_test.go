package chat

import (
	"encoding/json/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ecocampus/ecocampus-server/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRender_Markdown(t *testing.T) {
	r := Render("Hey **Aarav**! Try the *quiz*.\n\n- plant a tree\n- log plastic")
	assert.Contains(t, r.HTML, "<strong>Aarav</strong>")
	assert.Contains(t, r.HTML, "<em>quiz</em>")
	assert.Contains(t, r.HTML, "<li>plant a tree</li>")
	assert.Equal(t, "Hey Aarav! Try the quiz. plant a tree log plastic", r.Preview)
}

func TestRender_EscapesRawHTMLAndNormalises(t *testing.T) {
	r := Render("<p>Vote <strong>today</strong></p><script>alert(1)</script>")
	assert.Contains(t, r.Markdown, "**today**")
	assert.NotContains(t, r.HTML, "<script>")
	assert.Contains(t, r.HTML, "<strong>today</strong>")
}

func TestRender_TruncatesPreview(t *testing.T) {
	r := Render(strings.Repeat("leaf ", 60))
	assert.True(t, strings.HasSuffix(r.Preview, "…"))
	assert.LessOrEqual(t, len([]rune(r.Preview)), previewLength+1)
}

func TestPrompts_DefaultTemplate(t *testing.T) {
	p, err := NewPrompts("", logger.Discard())
	require.NoError(t, err)
	defer p.Shutdown()

	out, err := p.Render(PromptData{
		UserName:   "Priya",
		Points:     120,
		Events:     []string{"Beach Cleanup (Mar 12)"},
		TopLeaders: []string{"Aarav", "Zoya"},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "**Priya**")
	assert.Contains(t, out, "**120 EcoPoints**")
	assert.Contains(t, out, "• Beach Cleanup (Mar 12)")
	assert.Contains(t, out, "Store restocking.")
	assert.Contains(t, out, "1. Aarav")
	assert.Contains(t, out, "2. Zoya")
}

func TestPrompts_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("v1 {{.UserName}}"), 0o600))

	p, err := NewPrompts(path, logger.Discard())
	require.NoError(t, err)
	defer p.Shutdown()

	out, err := p.Render(PromptData{UserName: "Zoya"})
	require.NoError(t, err)
	assert.Equal(t, "v1 Zoya", out)

	require.NoError(t, os.WriteFile(path, []byte("v2 {{.UserName}}"), 0o600))
	assert.Eventually(t, func() bool {
		out, _ := p.Render(PromptData{UserName: "Zoya"})
		return out == "v2 Zoya"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestPrompts_BadTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("{{.Broken"), 0o600))
	_, err := NewPrompts(path, logger.Discard())
	assert.Error(t, err)
}

func TestClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.UnmarshalRead(r.Body, &body))
		assert.Equal(t, "how do I earn points?", body["message"])
		assert.Equal(t, "system", body["systemPrompt"])
		_, _ = w.Write([]byte(`{"reply":"Check in daily! 🔥"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil, logger.Discard())
	reply, err := c.Complete(t.Context(), CompletionRequest{
		UserID: "usr-1", AccessToken: "tok-1", Message: "how do I earn points?", SystemPrompt: "system",
	})
	require.NoError(t, err)
	assert.Equal(t, "Check in daily! 🔥", reply)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model overloaded"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil, logger.Discard())
	_, err := c.Complete(t.Context(), CompletionRequest{Message: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")

	_, err = NewClient("", time.Second, nil, logger.Discard()).Complete(t.Context(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
