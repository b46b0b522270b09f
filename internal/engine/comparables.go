package engine

import (
	"sort"

	"github.com/taxvalor/api/internal/models"
)

// DefaultComparableCount is the number of comparables selected when the
// caller does not specify k.
const DefaultComparableCount = 5

// scoredProperty pairs a candidate with its similarity to the subject.
type scoredProperty struct {
	property *models.Property
	score    float64
}

// SelectComparables ranks the candidate pool by similarity to the subject
// and returns the top k properties. The subject itself and candidates from
// other tenants are excluded. Ties keep the candidates' original pool order
// (stable sort), so results are deterministic and evidence built from them
// is reproducible. Returns fewer than k when the pool is smaller; k <= 0
// selects DefaultComparableCount.
func SelectComparables(subject *models.Property, pool []*models.Property, k int) []*models.Property {
	if k <= 0 {
		k = DefaultComparableCount
	}

	scored := make([]scoredProperty, 0, len(pool))
	for _, candidate := range pool {
		if candidate == nil || candidate.ID == subject.ID || candidate.TenantID != subject.TenantID {
			continue
		}
		scored = append(scored, scoredProperty{
			property: candidate,
			score:    Similarity(subject, candidate),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > k {
		scored = scored[:k]
	}

	result := make([]*models.Property, len(scored))
	for i, s := range scored {
		result[i] = s.property
	}
	return result
}
