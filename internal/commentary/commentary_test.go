package commentary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"github.com/vzahanych/weather-alert-bot/internal/weather"
	"go.uber.org/zap/zaptest"
)

func TestRenderPrompt(t *testing.T) {
	assert.Equal(t, "Comment on: sunny", RenderPrompt("Comment on: {weather_summary}", "sunny"))
	assert.Equal(t, "Be witty.\n\nsunny", RenderPrompt("Be witty.", "sunny"))
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(config.CommentaryConfig{}, " ", zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-haiku-4-5", req.Model)
		assert.Equal(t, 100, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "Say something about: Today: 4-12°C", req.Messages[0].Content)

		fmt.Fprint(w, `{"content":[{"type":"text","text":"  Scarf weather, folks.  "}]}`)
	}))
	defer srv.Close()

	c, err := NewClient(config.CommentaryConfig{
		BaseURL: srv.URL,
		Prompt:  "Say something about: {weather_summary}",
	}, "secret", zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "Scarf weather, folks.", c.Comment(context.Background(), "Today: 4-12°C"))
}

func TestComment_FailureYieldsEmpty(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(config.CommentaryConfig{BaseURL: srv.URL, Prompt: "{weather_summary}"}, "secret", zaptest.NewLogger(t))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.Empty(t, c.Comment(context.Background(), "x"))
	}
	assert.EqualValues(t, 3, hits.Load(), "breaker opens after three failures")
}

func TestComment_NoTextBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[]}`)
	}))
	defer srv.Close()

	c, err := NewClient(config.CommentaryConfig{BaseURL: srv.URL}, "secret", zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "x")
	assert.Error(t, err)
}

func TestBuildContext(t *testing.T) {
	// Saturday 22 June 2024
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 22, 8, 0, 0, 0, time.UTC))
	s := weather.NewSummarizer(clock, time.UTC)

	at := func(day int) time.Time { return time.Date(2024, 6, day, 12, 0, 0, 0, time.UTC) }
	f := weather.Forecast{
		LocationName: "Home",
		Samples: []weather.Sample{
			{Time: at(22), TempMin: 4, TempMax: 12, WindGustKmh: 30, Condition: "Clouds"},
			{Time: at(23), TempMin: 8, TempMax: 18, WindGustKmh: 50, PrecipitationMM: 1.25, Condition: "Rain"},
			{Time: at(24), TempMin: 8, TempMax: 16, WindGustKmh: 45},
		},
	}

	got := BuildContext([]weather.Forecast{f}, s)

	want := "Location: Home, Saturday in June (weekend); " +
		"Today: 4-12°C, wind 30km/h (Moderate wind) (Clouds); " +
		"Sunday: 8-18°C (6° warmer), wind 50km/h (Strong wind) increasing, rain 1.2mm (Rain); " +
		"Monday: 8-16°C, wind 45km/h (Fresh wind)"
	assert.Equal(t, want, got)
}

func TestBuildContext_NoForecasts(t *testing.T) {
	// Wednesday 19 June 2024
	s := weather.NewSummarizer(clockwork.NewFakeClockAt(time.Date(2024, 6, 19, 8, 0, 0, 0, time.UTC)), time.UTC)
	assert.Equal(t, "Location: Unknown, Wednesday in June", BuildContext(nil, s))
}
