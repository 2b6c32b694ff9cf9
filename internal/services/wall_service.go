package services

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/models"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/utils"
)

// AnswerSource is the slice of the backend the wall reads from.
type AnswerSource interface {
	Answers(ctx context.Context) ([]models.AnswerPoint, error)
	Questions(ctx context.Context) ([]models.Question, error)
}

// SnapshotStore caches the last good answer list across restarts.
type SnapshotStore interface {
	SaveAnswers(ctx context.Context, answers []models.AnswerPoint, fetchedAt time.Time) error
	LoadAnswers(ctx context.Context) ([]models.AnswerPoint, time.Time, error)
}

// WallSettings are the tunables that can be swapped at runtime.
type WallSettings struct {
	Calendar  *SeasonCalendar
	Layout    Layout
	Threshold float64
	PageSize  int
}

// Bubble is one visible cluster on the wall.
type Bubble struct {
	ClusterID  string      `json:"cluster_id"`
	QuestionID string      `json:"question_id"`
	Size       int         `json:"size"`
	Style      BubbleStyle `json:"style"`
	Mine       bool        `json:"mine"`
	Preview    string      `json:"preview"`
}

type WallView struct {
	Season        int            `json:"season"`
	SeasonLabel   string         `json:"season_label"`
	Bubbles       []Bubble       `json:"bubbles"`
	TotalClusters int            `json:"total_clusters"`
	FetchedAt     time.Time      `json:"fetched_at"`
	Highlight     HighlightState `json:"highlight"`
}

type AnswerCard struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Mine   bool   `json:"mine"`
	Season string `json:"season,omitempty"`
}

type ClusterDetail struct {
	ID         string       `json:"id"`
	QuestionID string       `json:"question_id"`
	Question   string       `json:"question"`
	Color      string       `json:"color"`
	Size       int          `json:"size"`
	Page       int          `json:"page"`
	Pages      int          `json:"pages"`
	Answers    []AnswerCard `json:"answers"`
}

type wallSnapshot struct {
	answers   []models.AnswerPoint
	clusters  []Cluster
	index     map[string]int
	fetchedAt time.Time
}

type questionSet struct {
	byID   map[string]models.Question
	colors map[string]string
}

// WallService turns the polled answer list into the clustered, season
// filtered, positioned bubble set. Every refresh replaces the snapshot
// wholesale; readers always see a complete cluster list.
type WallService struct {
	source    AnswerSource
	store     SnapshotStore
	tracker   *HighlightTracker
	rotator   *PageRotator
	logger    *zap.Logger
	now       func() time.Time
	settings  atomic.Pointer[WallSettings]
	snapshot  atomic.Pointer[wallSnapshot]
	questions atomic.Pointer[questionSet]

	// snapMu serializes snapshot rebuilds so a refresh and a settings change
	// never overwrite each other with stale input.
	snapMu sync.Mutex
}

func NewWallService(source AnswerSource, store SnapshotStore, tracker *HighlightTracker, rotator *PageRotator, settings WallSettings, logger *zap.Logger) *WallService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rotator == nil {
		rotator = NewPageRotator(nil, 0)
	}
	s := &WallService{
		source:  source,
		store:   store,
		tracker: tracker,
		rotator: rotator,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	s.settings.Store(normalizeSettings(settings))
	s.snapshot.Store(&wallSnapshot{index: map[string]int{}})
	s.questions.Store(&questionSet{byID: map[string]models.Question{}, colors: map[string]string{}})
	return s
}

func normalizeSettings(st WallSettings) *WallSettings {
	if st.Calendar == nil {
		st.Calendar, _ = NewSeasonCalendar(DefaultSeasons(), -1)
	}
	if st.Layout.AxisScale == 0 {
		st.Layout = DefaultLayout()
	}
	if st.Threshold <= 0 {
		st.Threshold = DefaultClusterThreshold
	}
	if st.PageSize <= 0 {
		st.PageSize = DefaultPageSize
	}
	return &st
}

// Settings returns the active tunables.
func (s *WallService) Settings() WallSettings { return *s.settings.Load() }

// Apply swaps the tunables and re-clusters the current answers.
func (s *WallService) Apply(st WallSettings) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	next := normalizeSettings(st)
	s.settings.Store(next)
	cur := s.snapshot.Load()
	s.snapshot.Store(buildSnapshot(cur.answers, next.Threshold, cur.fetchedAt))
	s.logger.Info("wall settings applied",
		zap.Int("seasons", next.Calendar.Len()),
		zap.Float64("threshold", next.Threshold),
	)
}

func buildSnapshot(answers []models.AnswerPoint, threshold float64, at time.Time) *wallSnapshot {
	clusters := ClusterAnswers(answers, threshold)
	index := make(map[string]int, len(clusters))
	for i, c := range clusters {
		index[c.ID] = i
	}
	return &wallSnapshot{answers: answers, clusters: clusters, index: index, fetchedAt: at}
}

// Seed loads the cached answers from the last run, if nothing was fetched yet.
func (s *WallService) Seed(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	answers, at, err := s.store.LoadAnswers(ctx)
	if err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if cur := s.snapshot.Load(); !cur.fetchedAt.IsZero() {
		return nil
	}
	s.snapshot.Store(buildSnapshot(answers, s.settings.Load().Threshold, at))
	s.logger.Info("wall seeded from cache", zap.Int("answers", len(answers)), zap.Time("fetched_at", at))
	return nil
}

// Refresh fetches answers and rebuilds the clusters. On failure the previous
// snapshot stays in place and the error is returned for accounting.
func (s *WallService) Refresh(ctx context.Context) error {
	answers, err := s.source.Answers(ctx)
	if err != nil {
		s.logger.Warn("answers refresh failed, keeping previous wall", zap.Error(err))
		return err
	}
	at := s.now()
	s.snapMu.Lock()
	s.snapshot.Store(buildSnapshot(answers, s.settings.Load().Threshold, at))
	s.snapMu.Unlock()
	if s.store != nil {
		if err := s.store.SaveAnswers(ctx, answers, at); err != nil {
			s.logger.Warn("cache answers", zap.Error(err))
		}
	}
	return nil
}

// RefreshQuestions reloads question texts and colours; same stale policy.
func (s *WallService) RefreshQuestions(ctx context.Context) error {
	qs, err := s.source.Questions(ctx)
	if err != nil {
		s.logger.Warn("questions refresh failed, keeping previous set", zap.Error(err))
		return err
	}
	set := &questionSet{byID: make(map[string]models.Question, len(qs)), colors: make(map[string]string, len(qs))}
	for _, q := range qs {
		set.byID[q.ID] = q
		if q.Color != "" {
			set.colors[q.ID] = q.Color
		}
	}
	s.questions.Store(set)
	return nil
}

// Counts reports the size of the current snapshot.
func (s *WallService) Counts() (answers, clusters int) {
	snap := s.snapshot.Load()
	return len(snap.answers), len(snap.clusters)
}

// View renders the wall for season; season < 0 means the current season.
func (s *WallService) View(season int, lang string) (*WallView, error) {
	st := s.settings.Load()
	if season < 0 {
		season = st.Calendar.Default()
	}
	if !st.Calendar.Valid(season) {
		return nil, NewInvalidError("unknown season")
	}
	snap := s.snapshot.Load()
	qs := s.questions.Load()
	visible := FilterBySeason(snap.clusters, season, st.Calendar)

	view := &WallView{
		Season:        season,
		SeasonLabel:   SeasonLabel(st.Calendar, season, lang),
		Bubbles:       make([]Bubble, 0, len(visible)),
		TotalClusters: len(snap.clusters),
		FetchedAt:     snap.fetchedAt,
	}
	if s.tracker != nil {
		view.Highlight = s.tracker.State()
	}
	for _, c := range visible {
		color := st.Layout.ColorFor(qs.colors, c.QuestionID)
		view.Bubbles = append(view.Bubbles, Bubble{
			ClusterID:  c.ID,
			QuestionID: c.QuestionID,
			Size:       c.Size,
			Style:      st.Layout.StyleFor(c, color),
			Mine:       s.clusterIsMine(c),
			Preview:    answerText(c.Seed(), lang),
		})
	}
	return view, nil
}

func (s *WallService) clusterIsMine(c Cluster) bool {
	if s.tracker == nil {
		return false
	}
	id, ok := s.tracker.Current()
	if !ok {
		return false
	}
	for _, a := range c.Answers {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Cluster returns one page of a cluster's answers. page < 0 follows the
// auto-rotating page of the detail view.
func (s *WallService) Cluster(id, lang string, page int) (*ClusterDetail, error) {
	snap := s.snapshot.Load()
	i, ok := snap.index[id]
	if !ok {
		return nil, ErrUnknownCluster
	}
	c := snap.clusters[i]
	st := s.settings.Load()
	qs := s.questions.Load()

	pages := pageCount(c.Size, st.PageSize)
	if page < 0 {
		page = s.rotator.Sync(id, pages)
	}
	if page >= pages {
		return nil, NewInvalidError("page out of range")
	}

	detail := &ClusterDetail{
		ID:         c.ID,
		QuestionID: c.QuestionID,
		Color:      st.Layout.ColorFor(qs.colors, c.QuestionID),
		Size:       c.Size,
		Page:       page,
		Pages:      pages,
	}
	if q, ok := qs.byID[c.QuestionID]; ok {
		detail.Question = pickLocalized(q.TextI18n, lang)
	}
	start := page * st.PageSize
	end := start + st.PageSize
	if end > len(c.Answers) {
		end = len(c.Answers)
	}
	for _, a := range c.Answers[start:end] {
		card := AnswerCard{ID: a.ID, Text: answerText(a, lang)}
		if s.tracker != nil {
			card.Mine = s.tracker.IsMine(a.ID)
		}
		if v, ok := a.Date(); ok {
			card.Season = SeasonLabel(st.Calendar, st.Calendar.Index(v), lang)
		}
		detail.Answers = append(detail.Answers, card)
	}
	return detail, nil
}

func pageCount(size, pageSize int) int {
	pages := (size + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}

// TurnPage moves the detail view of cluster id by delta pages (negative goes
// back) and restarts the rotation interval.
func (s *WallService) TurnPage(id string, delta int) error {
	snap := s.snapshot.Load()
	i, ok := snap.index[id]
	if !ok {
		return ErrUnknownCluster
	}
	s.rotator.Sync(id, pageCount(snap.clusters[i].Size, s.settings.Load().PageSize))
	switch {
	case delta > 0:
		s.rotator.Next()
	case delta < 0:
		s.rotator.Prev()
	}
	return nil
}

// CloseCluster stops page rotation and, when the cluster holds the
// highlighted answer, dismisses the highlight.
func (s *WallService) CloseCluster(id string) error {
	snap := s.snapshot.Load()
	i, ok := snap.index[id]
	if !ok {
		return ErrUnknownCluster
	}
	if open, _ := s.rotator.Page(); open == id {
		s.rotator.Close()
	}
	if s.clusterIsMine(snap.clusters[i]) {
		s.tracker.Dismiss()
	}
	return nil
}

// Questions lists the cached questions localized to lang, ordered by id.
func (s *WallService) Questions(lang string) []LocalizedQuestion {
	qs := s.questions.Load()
	out := make([]LocalizedQuestion, 0, len(qs.byID))
	for _, q := range qs.byID {
		out = append(out, LocalizedQuestion{ID: q.ID, Text: pickLocalized(q.TextI18n, lang), Color: s.settings.Load().Layout.ColorFor(qs.colors, q.ID)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type LocalizedQuestion struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Color string `json:"color"`
}

// SeasonLabel localizes a season label, falling back to the configured text.
func SeasonLabel(cal *SeasonCalendar, idx int, lang string) string {
	if !cal.Valid(idx) {
		return ""
	}
	s := cal.Seasons()[idx]
	return utils.SeasonLabel(lang, string(s.Quarter), s.Year, s.Label)
}

func answerText(a models.AnswerPoint, lang string) string {
	if t, ok := a.Text(lang); ok {
		return t
	}
	return utils.T(lang, "answer.placeholder")
}

// pickLocalized prefers lang, then English, then the first key in order.
func pickLocalized(m map[string]string, lang string) string {
	if v := m[lang]; v != "" {
		return v
	}
	if v := m["en"]; v != "" {
		return v
	}
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return m[keys[0]]
}
