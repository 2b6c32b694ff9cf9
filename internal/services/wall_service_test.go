package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/models"
)

type fakeSource struct {
	mu        sync.Mutex
	answers   []models.AnswerPoint
	questions []models.Question
	err       error
	calls     int
}

func (f *fakeSource) Answers(context.Context) ([]models.AnswerPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.answers, nil
}

func (f *fakeSource) Questions(context.Context) ([]models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.questions, nil
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type memSnapshots struct {
	answers []models.AnswerPoint
	at      time.Time
	saves   int
}

func (m *memSnapshots) SaveAnswers(_ context.Context, answers []models.AnswerPoint, at time.Time) error {
	m.answers, m.at = answers, at
	m.saves++
	return nil
}

func (m *memSnapshots) LoadAnswers(context.Context) ([]models.AnswerPoint, time.Time, error) {
	return m.answers, m.at, nil
}

func withText(a models.AnswerPoint, text, created string) models.AnswerPoint {
	a.Texts = map[string]string{"en": text}
	a.Dates = map[string]any{}
	if created != "" {
		a.Dates["created_at"] = created
	}
	return a
}

func sampleAnswers() []models.AnswerPoint {
	return []models.AnswerPoint{
		withText(ap("a", "q1", 0, 0), "Alpha", ""),
		withText(ap("b", "q1", 0.05, 0.05), "Bravo", ""),
		withText(ap("c", "q1", 0.9, 0.9), "Charlie", "2024-07-10"),
		withText(ap("d", "q2", math.NaN(), math.NaN()), "Delta", ""),
	}
}

func newTestWall(t *testing.T, src *fakeSource, store SnapshotStore) (*WallService, *HighlightTracker, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	tracker := NewHighlightTracker(clock, 0, "", nil)
	rotator := NewPageRotator(clock, 0)
	w := NewWallService(src, store, tracker, rotator, WallSettings{PageSize: 1}, nil)
	w.now = clock.Now
	return w, tracker, clock
}

func bubbleIDs(v *WallView) []string {
	ids := []string{}
	for _, b := range v.Bubbles {
		ids = append(ids, b.ClusterID)
	}
	return ids
}

func TestWallService_RefreshAndView(t *testing.T) {
	src := &fakeSource{
		answers:   sampleAnswers(),
		questions: []models.Question{{ID: "q1", Color: "#123456", TextI18n: map[string]string{"en": "Wish", "nl": "Wens"}}},
	}
	store := &memSnapshots{}
	w, _, clock := newTestWall(t, src, store)

	require.NoError(t, w.Refresh(context.Background()))
	require.NoError(t, w.RefreshQuestions(context.Background()))
	answers, clusters := w.Counts()
	assert.Equal(t, 4, answers)
	assert.Equal(t, 3, clusters)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, clock.Now(), store.at)

	view, err := w.View(-1, "en")
	require.NoError(t, err)
	assert.Equal(t, 5, view.Season)
	assert.Equal(t, "Spring 2025", view.SeasonLabel)
	assert.Equal(t, []string{"cluster-0", "cluster-2"}, bubbleIDs(view))
	assert.Equal(t, 3, view.TotalClusters)
	assert.Equal(t, "#123456", view.Bubbles[0].Style.Color)
	assert.Equal(t, "#cccccc", view.Bubbles[1].Style.Color)
	assert.Equal(t, 50.0, view.Bubbles[1].Style.Left)
	assert.Equal(t, "Alpha", view.Bubbles[0].Preview)

	summer, err := w.View(2, "nl")
	require.NoError(t, err)
	assert.Equal(t, "Zomer 2024", summer.SeasonLabel)
	assert.Equal(t, []string{"cluster-1"}, bubbleIDs(summer))

	_, err = w.View(6, "en")
	se, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorInvalid, se.Code)
}

func TestWallService_StaleButValid(t *testing.T) {
	src := &fakeSource{answers: sampleAnswers()}
	w, _, _ := newTestWall(t, src, nil)
	require.NoError(t, w.Refresh(context.Background()))
	before, err := w.View(-1, "en")
	require.NoError(t, err)

	src.fail(errors.New("backend down"))
	assert.Error(t, w.Refresh(context.Background()))
	assert.Error(t, w.RefreshQuestions(context.Background()))

	after, err := w.View(-1, "en")
	require.NoError(t, err)
	assert.Equal(t, bubbleIDs(before), bubbleIDs(after))
	assert.Equal(t, before.FetchedAt, after.FetchedAt)
}

func TestWallService_EmptyWall(t *testing.T) {
	w, _, _ := newTestWall(t, &fakeSource{}, nil)
	view, err := w.View(-1, "en")
	require.NoError(t, err)
	assert.NotNil(t, view.Bubbles)
	assert.Empty(t, view.Bubbles)
	assert.True(t, view.FetchedAt.IsZero())
}

func TestWallService_SeedFromStore(t *testing.T) {
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	store := &memSnapshots{answers: sampleAnswers(), at: at}
	src := &fakeSource{err: errors.New("offline")}
	w, _, _ := newTestWall(t, src, store)

	require.NoError(t, w.Seed(context.Background()))
	_, clusters := w.Counts()
	assert.Equal(t, 3, clusters)

	view, err := w.View(-1, "en")
	require.NoError(t, err)
	assert.Equal(t, at, view.FetchedAt)
}

func TestWallService_SeedDoesNotOverwriteFresh(t *testing.T) {
	store := &memSnapshots{}
	src := &fakeSource{answers: sampleAnswers()[:1]}
	w, _, _ := newTestWall(t, src, store)
	require.NoError(t, w.Refresh(context.Background()))

	store.answers = sampleAnswers()
	require.NoError(t, w.Seed(context.Background()))
	answers, _ := w.Counts()
	assert.Equal(t, 1, answers)
}

func TestWallService_ApplyReclusters(t *testing.T) {
	src := &fakeSource{answers: sampleAnswers()}
	w, _, _ := newTestWall(t, src, nil)
	require.NoError(t, w.Refresh(context.Background()))

	st := w.Settings()
	st.Threshold = 200
	w.Apply(st)
	_, clusters := w.Counts()
	assert.Equal(t, 2, clusters, "a wide threshold pulls c into the q1 cluster")

	cal, err := NewSeasonCalendar(DefaultSeasons(), 2)
	require.NoError(t, err)
	st.Calendar = cal
	w.Apply(st)
	view, err := w.View(-1, "en")
	require.NoError(t, err)
	assert.Equal(t, 2, view.Season)
	assert.Equal(t, []string{"cluster-0", "cluster-1"}, bubbleIDs(view), "undated clusters follow the new current season")
}

func TestWallService_RefreshAndApplyAgree(t *testing.T) {
	src := &fakeSource{answers: sampleAnswers()}
	w, _, _ := newTestWall(t, src, nil)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		st := w.Settings()
		st.Threshold = 15
		if i%2 == 0 {
			st.Threshold = 200
		}
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); _ = w.Refresh(ctx) }()
		go func() { defer wg.Done(); w.Apply(st) }()
		wg.Wait()

		want := 3
		if w.Settings().Threshold == 200 {
			want = 2
		}
		_, clusters := w.Counts()
		require.Equal(t, want, clusters, "round %d: snapshot built with a stale threshold", i)
	}
}

func TestWallService_MineFollowsHighlight(t *testing.T) {
	src := &fakeSource{answers: sampleAnswers()}
	w, tracker, clock := newTestWall(t, src, nil)
	require.NoError(t, w.Refresh(context.Background()))

	require.True(t, tracker.Notify("b"))
	view, err := w.View(-1, "en")
	require.NoError(t, err)
	assert.True(t, view.Bubbles[0].Mine)
	assert.False(t, view.Bubbles[1].Mine)
	assert.Equal(t, "b", view.Highlight.AnswerID)

	clock.Advance(DefaultHighlightTTL)
	view, err = w.View(-1, "en")
	require.NoError(t, err)
	assert.False(t, view.Bubbles[0].Mine)
}

func TestWallService_ClusterDetailAndPaging(t *testing.T) {
	src := &fakeSource{
		answers:   sampleAnswers(),
		questions: []models.Question{{ID: "q1", TextI18n: map[string]string{"en": "Wish", "nl": "Wens"}}},
	}
	w, tracker, clock := newTestWall(t, src, nil)
	require.NoError(t, w.Refresh(context.Background()))
	require.NoError(t, w.RefreshQuestions(context.Background()))
	tracker.Notify("b")

	d, err := w.Cluster("cluster-0", "nl", 1)
	require.NoError(t, err)
	assert.Equal(t, "Wens", d.Question)
	assert.Equal(t, 2, d.Pages)
	require.Len(t, d.Answers, 1)
	assert.Equal(t, "Bravo", d.Answers[0].Text)
	assert.True(t, d.Answers[0].Mine)

	// auto page follows the rotator
	d, err = w.Cluster("cluster-0", "en", -1)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Page)
	clock.Advance(DefaultRotateInterval)
	d, err = w.Cluster("cluster-0", "en", -1)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Page)

	require.NoError(t, w.TurnPage("cluster-0", 1))
	d, err = w.Cluster("cluster-0", "en", -1)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Page)

	_, err = w.Cluster("cluster-0", "en", 2)
	assert.Error(t, err)
	_, err = w.Cluster("cluster-9", "en", 0)
	assert.ErrorIs(t, err, ErrUnknownCluster)
	assert.ErrorIs(t, w.TurnPage("cluster-9", 1), ErrUnknownCluster)

	dated, err := w.Cluster("cluster-1", "en", 0)
	require.NoError(t, err)
	assert.Equal(t, "Summer 2024", dated.Answers[0].Season)
	assert.Equal(t, "#cccccc", dated.Color)
}

func TestWallService_CloseCluster(t *testing.T) {
	src := &fakeSource{answers: sampleAnswers()}
	w, tracker, clock := newTestWall(t, src, nil)
	require.NoError(t, w.Refresh(context.Background()))
	tracker.Notify("c")

	_, err := w.Cluster("cluster-0", "en", -1)
	require.NoError(t, err)
	require.NoError(t, w.CloseCluster("cluster-0"))
	assert.Equal(t, "", openCluster(w))
	assert.False(t, tracker.IsDismissed(), "closing another cluster keeps the highlight")

	require.NoError(t, w.CloseCluster("cluster-1"))
	assert.True(t, tracker.IsDismissed())
	assert.ErrorIs(t, w.CloseCluster("nope"), ErrUnknownCluster)

	clock.Advance(time.Minute)
	assert.Equal(t, 0, clock.pending())
}

func openCluster(w *WallService) string {
	id, _ := w.rotator.Page()
	return id
}

func TestWallService_Questions(t *testing.T) {
	src := &fakeSource{questions: []models.Question{
		{ID: "q2", TextI18n: map[string]string{"fr": "Rêve"}},
		{ID: "q1", Color: "#ff0000", TextI18n: map[string]string{"en": "Wish", "nl": "Wens"}},
	}}
	w, _, _ := newTestWall(t, src, nil)
	require.NoError(t, w.RefreshQuestions(context.Background()))

	qs := w.Questions("nl")
	require.Len(t, qs, 2)
	assert.Equal(t, LocalizedQuestion{ID: "q1", Text: "Wens", Color: "#ff0000"}, qs[0])
	assert.Equal(t, LocalizedQuestion{ID: "q2", Text: "Rêve", Color: "#cccccc"}, qs[1])
}

func TestWallService_SeasonStats(t *testing.T) {
	answers := append(sampleAnswers(),
		withText(ap("e", "q2", 0.5, 0.5), "Echo", "2025-02-15T10:00:00Z"),
		withText(ap("f", "q2", 0.52, 0.5), "Foxtrot", "garbage"),
	)
	w, _, _ := newTestWall(t, &fakeSource{answers: answers}, nil)
	require.NoError(t, w.Refresh(context.Background()))

	sum := w.SeasonStats("en")
	assert.Equal(t, 5, sum.Default)
	assert.Equal(t, 6, sum.Total)
	assert.Equal(t, 3, sum.Undated)
	require.Len(t, sum.Seasons, 6)
	assert.Equal(t, 1, sum.Seasons[2].Answers)
	assert.Equal(t, 1, sum.Seasons[4].Answers)
	assert.Equal(t, 4, sum.Seasons[5].Answers, "undated and unparseable answers count toward the current season")
	assert.Equal(t, 2, sum.Seasons[5].ByQuestion["q1"])
	assert.Equal(t, 1, sum.Seasons[4].Clusters)
	require.Len(t, sum.Timeseries, 2)
	assert.Equal(t, SeasonTimeseries{Date: "2025-02-15", Count: 1}, sum.Timeseries[1])
}

func TestWallService_Export(t *testing.T) {
	w, _, _ := newTestWall(t, &fakeSource{answers: sampleAnswers()}, nil)
	require.NoError(t, w.Refresh(context.Background()))

	out, err := w.Export("", "en")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "answer_id,question_id,cluster_id,cluster_size,x,y,season,text", lines[0])
	assert.Equal(t, "a,q1,cluster-0,2,0,0,,Alpha", lines[1])
	assert.Equal(t, "c,q1,cluster-1,1,0.9,0.9,Summer 2024,Charlie", lines[3])
	assert.Equal(t, "d,q2,cluster-2,1,,,,Delta", lines[4])

	out, err = w.Export(ExportClusters, "en")
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "cluster_id,question_id,size,center_x,center_y,Winter 2024,Spring 2024,Summer 2024,Fall 2024,Winter 2025,Spring 2025", lines[0])
	assert.Equal(t, "cluster-1,q1,1,0.9,0.9,0,0,1,0,0,0", lines[2])

	_, err = w.Export("xlsx", "en")
	assert.Error(t, err)
}
