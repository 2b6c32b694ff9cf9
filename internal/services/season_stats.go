package services

import (
	"sort"
	"time"
)

type SeasonBucket struct {
	Index      int            `json:"index"`
	Label      string         `json:"label"`
	Answers    int            `json:"answers"`
	Clusters   int            `json:"clusters"`
	ByQuestion map[string]int `json:"by_question"`
}

type SeasonTimeseries struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type SeasonSummary struct {
	Default    int                `json:"default"`
	Total      int                `json:"total_answers"`
	Undated    int                `json:"undated_answers"`
	Seasons    []SeasonBucket     `json:"seasons"`
	Timeseries []SeasonTimeseries `json:"timeseries"`
	FetchedAt  time.Time          `json:"fetched_at"`
}

// SeasonStats summarizes the current snapshot per season. Answers without a
// usable date count toward the current season, matching what the wall shows.
func (s *WallService) SeasonStats(lang string) *SeasonSummary {
	snap := s.snapshot.Load()
	cal := s.settings.Load().Calendar

	buckets := make([]SeasonBucket, cal.Len())
	for i := range buckets {
		buckets[i] = SeasonBucket{Index: i, Label: SeasonLabel(cal, i, lang), ByQuestion: map[string]int{}}
	}
	countsByDay := map[string]int{}
	undated := 0
	for _, a := range snap.answers {
		idx := cal.Default()
		if v, ok := a.Date(); ok {
			idx = cal.Index(v)
			if t, ok := parseDateValue(v); ok {
				countsByDay[t.UTC().Format("2006-01-02")]++
			}
		} else {
			undated++
		}
		buckets[idx].Answers++
		buckets[idx].ByQuestion[a.QuestionID]++
	}
	for i := range buckets {
		buckets[i].Clusters = len(FilterBySeason(snap.clusters, i, cal))
	}

	return &SeasonSummary{
		Default:    cal.Default(),
		Total:      len(snap.answers),
		Undated:    undated,
		Seasons:    buckets,
		Timeseries: buildTimeseries(countsByDay),
		FetchedAt:  snap.fetchedAt,
	}
}

func buildTimeseries(counts map[string]int) []SeasonTimeseries {
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]SeasonTimeseries, 0, len(days))
	for _, d := range days {
		out = append(out, SeasonTimeseries{Date: d, Count: counts[d]})
	}
	return out
}
