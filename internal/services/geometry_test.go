package services

import (
	"math"
	"testing"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/models"
)

func clusterOf(size int, x, y float64) Cluster {
	answers := make([]models.AnswerPoint, size)
	for i := range answers {
		answers[i] = models.AnswerPoint{ID: "a", QuestionID: "q", X: x, Y: y}
	}
	return Cluster{ID: "cluster-0", QuestionID: "q", Answers: answers, Size: size}
}

func TestStyleFor_Clamp(t *testing.T) {
	l := DefaultLayout()
	lo := l.StyleFor(clusterOf(1, -10, -10), "")
	hi := l.StyleFor(clusterOf(1, 10, 10), "")
	if lo.Left != 15 || lo.Bottom != 15 {
		t.Fatalf("expected 15/15, got %v/%v", lo.Left, lo.Bottom)
	}
	if hi.Left != 85 || hi.Bottom != 85 {
		t.Fatalf("expected 85/85, got %v/%v", hi.Left, hi.Bottom)
	}
	mid := l.StyleFor(clusterOf(1, 0.2, -0.2), "")
	if math.Abs(mid.Left-64) > 1e-9 || math.Abs(mid.Bottom-36) > 1e-9 {
		t.Fatalf("expected 64/36, got %v/%v", mid.Left, mid.Bottom)
	}
}

func TestStyleFor_MissingCoordinates(t *testing.T) {
	s := DefaultLayout().StyleFor(clusterOf(1, math.NaN(), math.NaN()), "")
	if s.Left != 50 || s.Bottom != 50 {
		t.Fatalf("NaN should land mid-screen, got %v/%v", s.Left, s.Bottom)
	}
	empty := DefaultLayout().StyleFor(Cluster{}, "")
	if empty.Left != 50 || empty.Diameter != 10 {
		t.Fatalf("empty cluster: %+v", empty)
	}
}

func TestStyleFor_SizeAndZOrder(t *testing.T) {
	l := DefaultLayout()
	prevZ := math.MaxInt
	for _, size := range []int{1, 2, 5, 10} {
		s := l.StyleFor(clusterOf(size, 0, 0), "")
		if s.ZIndex >= prevZ {
			t.Fatalf("z-index must decrease with size: size %d z %d prev %d", size, s.ZIndex, prevZ)
		}
		prevZ = s.ZIndex
		want := 10 + float64(size-1)*8
		if s.Diameter != want {
			t.Fatalf("size %d: diameter %v want %v", size, s.Diameter, want)
		}
	}
	big := l.StyleFor(clusterOf(100, 0, 0), "")
	if big.Diameter != 150 {
		t.Fatalf("diameter cap: got %v", big.Diameter)
	}
	if big.ZIndex != 50 {
		t.Fatalf("z floor: got %d", big.ZIndex)
	}
}

func TestColorFor(t *testing.T) {
	l := DefaultLayout()
	colors := map[string]string{"q1": "#ff0000", "q2": ""}
	if got := l.ColorFor(colors, "q1"); got != "#ff0000" {
		t.Fatalf("got %s", got)
	}
	if got := l.ColorFor(colors, "q2"); got != "#cccccc" {
		t.Fatalf("blank colour should fall back, got %s", got)
	}
	if got := l.StyleFor(clusterOf(1, 0, 0), "").Color; got != "#cccccc" {
		t.Fatalf("style default colour, got %s", got)
	}
}
