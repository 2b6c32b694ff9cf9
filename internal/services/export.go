package services

import (
	"bytes"
	"encoding/csv"
	"math"
	"strconv"
)

const (
	ExportAnswers  = "answers"
	ExportClusters = "clusters"
)

// Export renders the current snapshot as CSV for the curators. "answers" is
// one row per answer; "clusters" is one row per cluster.
func (s *WallService) Export(format, lang string) ([]byte, error) {
	snap := s.snapshot.Load()
	cal := s.settings.Load().Calendar
	switch format {
	case "", ExportAnswers:
		return exportAnswersCSV(snap.clusters, cal, lang)
	case ExportClusters:
		return exportClustersCSV(snap.clusters, cal, lang)
	default:
		return nil, NewInvalidError("unsupported format")
	}
}

func exportAnswersCSV(clusters []Cluster, cal *SeasonCalendar, lang string) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"answer_id", "question_id", "cluster_id", "cluster_size", "x", "y", "season", "text"})
	for _, c := range clusters {
		for _, a := range c.Answers {
			season := ""
			if v, ok := a.Date(); ok {
				season = SeasonLabel(cal, cal.Index(v), lang)
			}
			text, _ := a.Text(lang)
			rec := []string{
				a.ID,
				a.QuestionID,
				c.ID,
				strconv.Itoa(c.Size),
				formatCoord(a.X),
				formatCoord(a.Y),
				season,
				text,
			}
			if err := w.Write(rec); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// exportClustersCSV lists, per cluster, which seasons it shows up in.
func exportClustersCSV(clusters []Cluster, cal *SeasonCalendar, lang string) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"cluster_id", "question_id", "size", "center_x", "center_y"}
	for i := 0; i < cal.Len(); i++ {
		header = append(header, SeasonLabel(cal, i, lang))
	}
	_ = w.Write(header)
	for _, c := range clusters {
		rec := []string{c.ID, c.QuestionID, strconv.Itoa(c.Size), formatCoord(c.CenterX), formatCoord(c.CenterY)}
		for i := 0; i < cal.Len(); i++ {
			visible := "0"
			if len(FilterBySeason([]Cluster{c}, i, cal)) == 1 {
				visible = "1"
			}
			rec = append(rec, visible)
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatCoord(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
