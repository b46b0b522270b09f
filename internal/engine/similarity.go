package engine

import (
	"math"

	"github.com/taxvalor/api/internal/models"
)

// Factor weights for the similarity score. A factor whose data is missing on
// either side is skipped entirely: its weight is excluded from the
// denominator so missing attributes never penalize or inflate the score.
const (
	weightPropertyType = 2.0
	weightZoneCode     = 1.5
	weightLandArea     = 1.5
	weightBuildingArea = 1.5
	weightYearBuilt    = 1.0
	weightZipCode      = 2.0
	// A zip match in the same city and state counts as a stronger signal;
	// the +1 bonus is folded into a 3-weight denominator.
	weightZipCityState = 3.0
	weightFeatures     = 0.5

	// Year-built differences beyond this many years score zero.
	yearBuiltSpan = 50.0
)

// Similarity computes a weighted similarity score between two properties in
// [0, 1]. It is pure and deterministic: identical inputs always produce the
// identical score. Similarity(a, a) is 1 for any property with at least one
// comparable attribute.
func Similarity(subject, candidate *models.Property) float64 {
	var sum, weights float64

	if subject.PropertyType != "" && candidate.PropertyType != "" {
		if subject.PropertyType == candidate.PropertyType {
			sum += weightPropertyType
		}
		weights += weightPropertyType
	}

	if subject.ZoneCode != "" && candidate.ZoneCode != "" {
		if subject.ZoneCode == candidate.ZoneCode {
			sum += weightZoneCode
		}
		weights += weightZoneCode
	}

	if subject.LandArea > 0 && candidate.LandArea > 0 {
		sum += closeness(subject.LandArea, candidate.LandArea) * weightLandArea
		weights += weightLandArea
	}

	if hasArea(subject.BuildingArea) && hasArea(candidate.BuildingArea) {
		sum += closeness(*subject.BuildingArea, *candidate.BuildingArea) * weightBuildingArea
		weights += weightBuildingArea
	}

	if subject.YearBuilt != nil && candidate.YearBuilt != nil {
		diff := math.Abs(float64(*subject.YearBuilt - *candidate.YearBuilt))
		sum += (1 - math.Min(diff/yearBuiltSpan, 1)) * weightYearBuilt
		weights += weightYearBuilt
	}

	if subject.ZipCode != "" && candidate.ZipCode != "" {
		w := weightZipCode
		if subject.ZipCode == candidate.ZipCode {
			if subject.City == candidate.City && subject.State == candidate.State && subject.City != "" {
				w = weightZipCityState
			}
			sum += w
		}
		weights += w
	}

	if len(subject.Features) > 0 && len(candidate.Features) > 0 {
		sum += featureOverlap(subject.Features, candidate.Features) * weightFeatures
		weights += weightFeatures
	}

	if weights == 0 {
		return 0
	}
	return sum / weights
}

// closeness scores two positive magnitudes by relative difference: equal
// values score 1, values an order of magnitude apart score near 0.
func closeness(a, b float64) float64 {
	maxVal := math.Max(a, b)
	if maxVal == 0 {
		return 0
	}
	return 1 - math.Abs(a-b)/maxVal
}

// featureOverlap is |common| / max(|a|, |b|). Duplicate entries within one
// list count once.
func featureOverlap(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, f := range a {
		setA[f] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	common := 0
	for _, f := range b {
		if _, dup := setB[f]; dup {
			continue
		}
		setB[f] = struct{}{}
		if _, ok := setA[f]; ok {
			common++
		}
	}
	larger := len(setA)
	if len(setB) > larger {
		larger = len(setB)
	}
	if larger == 0 {
		return 0
	}
	return float64(common) / float64(larger)
}

func hasArea(v *float64) bool {
	return v != nil && *v > 0
}
