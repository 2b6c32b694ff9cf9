package services

import (
	"math"
	"strconv"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/models"
)

// DefaultClusterThreshold is the merge distance in axis units scaled by 100.
const DefaultClusterThreshold = 15.0

// Cluster is a group of same-question answers that sit close to a seed answer.
// Clusters are rebuilt from scratch on every refresh, so ids are only stable
// within one pass.
type Cluster struct {
	ID         string               `json:"id"`
	QuestionID string               `json:"question_id"`
	Answers    []models.AnswerPoint `json:"answers"`
	CenterX    float64              `json:"-"`
	CenterY    float64              `json:"-"`
	Size       int                  `json:"size"`
}

// Seed returns the answer the cluster grew from.
func (c Cluster) Seed() models.AnswerPoint { return c.Answers[0] }

// ClusterAnswers groups answers greedily in input order. Each unprocessed
// answer seeds a cluster and absorbs every other unprocessed answer of the
// same question whose distance to the seed, scaled by 100, is within
// threshold. Membership is decided against the seed only, so two members may
// be further apart than threshold. Answers with missing coordinates produce NaN
// distances and always end up alone.
//
// The pass is O(n²); fine for a kiosk wall with a few thousand answers.
func ClusterAnswers(answers []models.AnswerPoint, threshold float64) []Cluster {
	clusters := make([]Cluster, 0, len(answers))
	processed := make([]bool, len(answers))

	for i := range answers {
		if processed[i] {
			continue
		}
		seed := answers[i]
		members := []models.AnswerPoint{seed}
		for j := range answers {
			if j == i || processed[j] {
				continue
			}
			other := answers[j]
			if other.QuestionID != seed.QuestionID {
				continue
			}
			if distance(seed, other)*100 <= threshold {
				members = append(members, other)
				processed[j] = true
			}
		}
		processed[i] = true
		clusters = append(clusters, Cluster{
			ID:         "cluster-" + strconv.Itoa(len(clusters)),
			QuestionID: seed.QuestionID,
			Answers:    members,
			CenterX:    seed.X,
			CenterY:    seed.Y,
			Size:       len(members),
		})
	}
	return clusters
}

func distance(a, b models.AnswerPoint) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
