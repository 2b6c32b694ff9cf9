package services

// FilterBySeason keeps the clusters with at least one member dated in season.
// Clusters whose members carry no date at all are legacy data and are shown
// only under the calendar's current season. Inclusion is per cluster.
func FilterBySeason(clusters []Cluster, season int, cal *SeasonCalendar) []Cluster {
	out := make([]Cluster, 0, len(clusters))
	for _, c := range clusters {
		dated := false
		match := false
		for _, a := range c.Answers {
			v, ok := a.Date()
			if !ok {
				continue
			}
			dated = true
			if cal.Index(v) == season {
				match = true
				break
			}
		}
		if match || (!dated && season == cal.Default()) {
			out = append(out, c)
		}
	}
	return out
}
