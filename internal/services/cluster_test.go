package services

import (
	"math"
	"reflect"
	"testing"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/models"
)

func ap(id, q string, x, y float64) models.AnswerPoint {
	return models.AnswerPoint{ID: id, QuestionID: q, X: x, Y: y}
}

func memberIDs(c Cluster) []string {
	ids := make([]string, 0, len(c.Answers))
	for _, a := range c.Answers {
		ids = append(ids, a.ID)
	}
	return ids
}

func TestClusterAnswers_Scenario(t *testing.T) {
	answers := []models.AnswerPoint{
		ap("a", "1", 0, 0),
		ap("b", "1", 0.05, 0.05),
		ap("c", "1", 0.9, 0.9),
		ap("d", "2", 0, 0),
	}
	got := ClusterAnswers(answers, DefaultClusterThreshold)
	if len(got) != 3 {
		t.Fatalf("expected 3 clusters, got %d", len(got))
	}
	want := [][]string{{"a", "b"}, {"c"}, {"d"}}
	for i, c := range got {
		if !reflect.DeepEqual(memberIDs(c), want[i]) {
			t.Fatalf("cluster %d: want %v, got %v", i, want[i], memberIDs(c))
		}
		if c.Size != len(want[i]) {
			t.Fatalf("cluster %d: size %d", i, c.Size)
		}
	}
	if got[0].ID != "cluster-0" || got[2].ID != "cluster-2" {
		t.Fatalf("unexpected ids %s, %s", got[0].ID, got[2].ID)
	}
	if got[0].CenterX != 0 || got[0].CenterY != 0 {
		t.Fatalf("center should be the seed's coordinates")
	}
}

func TestClusterAnswers_Empty(t *testing.T) {
	got := ClusterAnswers(nil, DefaultClusterThreshold)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestClusterAnswers_ThresholdBoundary(t *testing.T) {
	merged := ClusterAnswers([]models.AnswerPoint{ap("a", "q", 0, 0), ap("b", "q", 0.15, 0)}, 15)
	if len(merged) != 1 {
		t.Fatalf("distance 15 must merge, got %d clusters", len(merged))
	}
	split := ClusterAnswers([]models.AnswerPoint{ap("a", "q", 0, 0), ap("b", "q", 0.1501, 0)}, 15)
	if len(split) != 2 {
		t.Fatalf("distance 15.01 must not merge, got %d clusters", len(split))
	}
}

func TestClusterAnswers_SeedOnly(t *testing.T) {
	// b is near a, c is near b but not near a: c must not join through b
	answers := []models.AnswerPoint{
		ap("a", "q", 0, 0),
		ap("b", "q", 0.1, 0),
		ap("c", "q", 0.2, 0),
	}
	got := ClusterAnswers(answers, 15)
	if len(got) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(got))
	}
	if !reflect.DeepEqual(memberIDs(got[0]), []string{"a", "b"}) || !reflect.DeepEqual(memberIDs(got[1]), []string{"c"}) {
		t.Fatalf("unexpected membership %v / %v", memberIDs(got[0]), memberIDs(got[1]))
	}
}

func TestClusterAnswers_MembersOnBothSidesOfSeed(t *testing.T) {
	// b and c are each 10 from the seed but 20 from each other; both still join
	answers := []models.AnswerPoint{
		ap("a", "q", 0, 0),
		ap("b", "q", -0.1, 0),
		ap("c", "q", 0.1, 0),
	}
	got := ClusterAnswers(answers, 15)
	if len(got) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(got))
	}
	if !reflect.DeepEqual(memberIDs(got[0]), []string{"a", "b", "c"}) {
		t.Fatalf("unexpected membership %v", memberIDs(got[0]))
	}
}

func TestClusterAnswers_LaterSeedScansWholeList(t *testing.T) {
	// c seeds after a and absorbs b, which sits before it in the input
	answers := []models.AnswerPoint{
		ap("a", "q", -0.5, 0),
		ap("b", "q", 0.5, 0),
		ap("c", "q", 0.55, 0),
	}
	got := ClusterAnswers(answers, 15)
	if len(got) != 2 || !reflect.DeepEqual(memberIDs(got[1]), []string{"b", "c"}) {
		t.Fatalf("unexpected clusters %+v", got)
	}
}

func TestClusterAnswers_Deterministic(t *testing.T) {
	answers := []models.AnswerPoint{
		ap("a", "1", 0, 0), ap("b", "1", 0.05, 0.05), ap("c", "2", 0.1, 0.1),
		ap("d", "1", 0.12, 0), ap("e", "2", 0.11, 0.1), ap("f", "1", -0.9, 0.3),
	}
	first := ClusterAnswers(answers, 15)
	second := ClusterAnswers(answers, 15)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("clustering is not deterministic")
	}
}

func TestClusterAnswers_QuestionIsolationAndNaN(t *testing.T) {
	answers := []models.AnswerPoint{
		ap("a", "1", 0, 0),
		ap("b", "2", 0, 0),
		ap("c", "1", math.NaN(), 0),
		ap("d", "1", math.NaN(), math.NaN()),
		ap("e", "1", 0.01, 0.01),
	}
	got := ClusterAnswers(answers, 15)
	for _, c := range got {
		for _, m := range c.Answers {
			if m.QuestionID != c.QuestionID {
				t.Fatalf("cluster %s mixes questions", c.ID)
			}
		}
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 clusters, got %d", len(got))
	}
	for _, c := range got[1:] {
		if c.Size != 1 {
			t.Fatalf("cluster %s should be a singleton, got %v", c.ID, memberIDs(c))
		}
	}
}
