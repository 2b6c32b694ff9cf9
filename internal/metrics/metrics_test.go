package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	b, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(b)
}

func TestCollector_Exposition(t *testing.T) {
	c := NewCollector("wall")
	c.ObserveHTTP("GET", "GET /api/wall", 200, 30*time.Millisecond)
	c.PollResult("answers", nil)
	c.PollResult("answers", errors.New("down"))
	c.WallSize(12, 5)
	c.VisibleBubbles(3, 4)
	c.BreakerState(gobreaker.StateClosed, gobreaker.StateOpen)
	c.Submission("submit", nil)

	out := scrape(t, c)
	for _, want := range []string{
		`wall_http_requests_total{method="GET",route="GET /api/wall",status="200"} 1`,
		`wall_polls_total{loop="answers",outcome="ok"} 1`,
		`wall_polls_total{loop="answers",outcome="error"} 1`,
		`wall_answers 12`,
		`wall_clusters 5`,
		`wall_visible_bubbles{season="3"} 4`,
		`wall_backend_breaker_state 2`,
		`wall_submissions_total{kind="submit",outcome="ok"} 1`,
		`wall_http_request_duration_seconds_count{method="GET",route="GET /api/wall"} 1`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestCollector_PrivateRegistries(t *testing.T) {
	a := NewCollector("wall")
	b := NewCollector("wall")
	a.WallSize(1, 1)
	assert.Contains(t, scrape(t, b), "wall_answers 0")
	assert.NotSame(t, a.Registry(), b.Registry())
}
