package services

import "math"

// Layout holds the constants that map opinion-space coordinates to screen
// geometry. The zero value is not useful; start from DefaultLayout.
type Layout struct {
	AxisScale    float64 `yaml:"axis_scale" validate:"gt=0"`
	AxisOffset   float64 `yaml:"axis_offset"`
	SafeMin      float64 `yaml:"safe_min" validate:"gte=0,ltefield=SafeMax"`
	SafeMax      float64 `yaml:"safe_max" validate:"lte=100"`
	BaseDiameter float64 `yaml:"base_diameter" validate:"gt=0"`
	GrowPerItem  float64 `yaml:"grow_per_item" validate:"gte=0"`
	MaxDiameter  float64 `yaml:"max_diameter" validate:"gtefield=BaseDiameter"`
	ZBase        int     `yaml:"z_base" validate:"gt=0"`
	ZStep        int     `yaml:"z_step" validate:"gt=0"`
	ZMaxDrop     int     `yaml:"z_max_drop" validate:"ltfield=ZBase"`
	DefaultColor string  `yaml:"default_color" validate:"required"`
}

func DefaultLayout() Layout {
	return Layout{
		AxisScale:    70,
		AxisOffset:   50,
		SafeMin:      15,
		SafeMax:      85,
		BaseDiameter: 10,
		GrowPerItem:  8,
		MaxDiameter:  150,
		ZBase:        200,
		ZStep:        5,
		ZMaxDrop:     150,
		DefaultColor: "#cccccc",
	}
}

// BubbleStyle is the render-ready geometry of one cluster. Left and Bottom are
// percentages of the container; Diameter is in pixels.
type BubbleStyle struct {
	Left     float64 `json:"left"`
	Bottom   float64 `json:"bottom"`
	Diameter float64 `json:"diameter"`
	ZIndex   int     `json:"z_index"`
	Color    string  `json:"color"`
}

// StyleFor positions a cluster by its seed answer, sizes it by member count and
// stacks smaller bubbles above larger ones.
func (l Layout) StyleFor(c Cluster, color string) BubbleStyle {
	x, y := math.NaN(), math.NaN()
	if len(c.Answers) > 0 {
		x, y = c.Answers[0].X, c.Answers[0].Y
	}
	size := c.Size
	if size < 1 {
		size = 1
	}
	if color == "" {
		color = l.DefaultColor
	}
	return BubbleStyle{
		Left:     l.position(x),
		Bottom:   l.position(y),
		Diameter: l.diameter(size),
		ZIndex:   l.zIndex(size),
		Color:    color,
	}
}

// ColorFor looks a question's colour up, falling back to DefaultColor.
func (l Layout) ColorFor(colors map[string]string, questionID string) string {
	if c, ok := colors[questionID]; ok && c != "" {
		return c
	}
	return l.DefaultColor
}

func (l Layout) position(v float64) float64 {
	p := v*l.AxisScale + l.AxisOffset
	if math.IsNaN(p) {
		// missing coordinate: park the bubble mid-screen
		return (l.SafeMin + l.SafeMax) / 2
	}
	return math.Max(l.SafeMin, math.Min(l.SafeMax, p))
}

func (l Layout) diameter(size int) float64 {
	return math.Min(l.MaxDiameter, l.BaseDiameter+float64(size-1)*l.GrowPerItem)
}

func (l Layout) zIndex(size int) int {
	drop := size * l.ZStep
	if drop > l.ZMaxDrop {
		drop = l.ZMaxDrop
	}
	return l.ZBase - drop
}
