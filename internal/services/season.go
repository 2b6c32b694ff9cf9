package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Quarter is a calendar quarter as used on the wall's timeline.
type Quarter string

const (
	Winter Quarter = "winter" // Jan-Mar
	Spring Quarter = "spring" // Apr-Jun
	Summer Quarter = "summer" // Jul-Sep
	Fall   Quarter = "fall"   // Oct-Dec
)

var quarterOrder = []Quarter{Winter, Spring, Summer, Fall}

// Season is one labelled bucket on the timeline.
type Season struct {
	Label   string  `yaml:"label" json:"label" validate:"required"`
	Quarter Quarter `yaml:"quarter" json:"quarter" validate:"oneof=winter spring summer fall"`
	Year    int     `yaml:"year" json:"year" validate:"gte=2000,lte=2100"`
}

// DefaultSeasons is the exhibition timeline shipped with the wall.
func DefaultSeasons() []Season {
	return []Season{
		{Label: "Winter 2024", Quarter: Winter, Year: 2024},
		{Label: "Spring 2024", Quarter: Spring, Year: 2024},
		{Label: "Summer 2024", Quarter: Summer, Year: 2024},
		{Label: "Fall 2024", Quarter: Fall, Year: 2024},
		{Label: "Winter 2025", Quarter: Winter, Year: 2025},
		{Label: "Spring 2025", Quarter: Spring, Year: 2025},
	}
}

// SeasonCalendar maps arbitrary date values to season indexes.
type SeasonCalendar struct {
	seasons []Season
	def     int
}

// NewSeasonCalendar builds a calendar. def < 0 selects the last season as the
// current one.
func NewSeasonCalendar(seasons []Season, def int) (*SeasonCalendar, error) {
	if len(seasons) == 0 {
		return nil, fmt.Errorf("season calendar: at least one season required")
	}
	if def < 0 {
		def = len(seasons) - 1
	}
	if def >= len(seasons) {
		return nil, fmt.Errorf("season calendar: default index %d out of range [0,%d)", def, len(seasons))
	}
	for i, s := range seasons {
		if quarterIndex(s.Quarter) < 0 {
			return nil, fmt.Errorf("season calendar: season %d has unknown quarter %q", i, s.Quarter)
		}
	}
	return &SeasonCalendar{seasons: append([]Season(nil), seasons...), def: def}, nil
}

func (c *SeasonCalendar) Len() int { return len(c.seasons) }
func (c *SeasonCalendar) Default() int { return c.def }
func (c *SeasonCalendar) Seasons() []Season { return append([]Season(nil), c.seasons...) }

// Valid reports whether idx addresses a configured season.
func (c *SeasonCalendar) Valid(idx int) bool { return idx >= 0 && idx < len(c.seasons) }

// Index classifies a date value. Missing, empty or unparseable values map to
// the default season; it never panics.
func (c *SeasonCalendar) Index(value any) int {
	t, ok := parseDateValue(value)
	if !ok {
		return c.def
	}
	return c.IndexOf(t)
}

// IndexOf classifies a parsed time by its quarter. Among the seasons of that
// quarter the latest one not after the date's year wins; dates before every
// configured year fall into the earliest one.
func (c *SeasonCalendar) IndexOf(t time.Time) int {
	q := quarterOrder[int(t.Month()-1)/3]
	year := t.Year()
	best, earliest := -1, -1
	for i, s := range c.seasons {
		if s.Quarter != q {
			continue
		}
		if earliest < 0 || s.Year < c.seasons[earliest].Year {
			earliest = i
		}
		if s.Year <= year && (best < 0 || s.Year > c.seasons[best].Year) {
			best = i
		}
	}
	if best >= 0 {
		return best
	}
	if earliest >= 0 {
		return earliest
	}
	return c.def
}

func quarterIndex(q Quarter) int {
	for i, v := range quarterOrder {
		if v == q {
			return i
		}
	}
	return -1
}

// parseDateValue accepts whatever the backend put in a date field.
func parseDateValue(value any) (t time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case string:
		return parseDateString(v)
	case json.Number:
		return parseDateString(v.String())
	case float64:
		return epochTime(v)
	case int:
		return epochTime(float64(v))
	case int64:
		return epochTime(float64(v))
	default:
		return time.Time{}, false
	}
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return epochTime(f)
	}
	t, err := dateparse.ParseAny(s)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

// epochTime reads seconds or milliseconds since the Unix epoch.
func epochTime(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return time.Time{}, false
	}
	if f > 1e11 {
		ms := int64(f)
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Unix(int64(f), 0).UTC(), true
}
