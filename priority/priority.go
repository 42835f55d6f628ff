// Package priority scores reports for dispatch ordering
package priority

import "github.com/linesmerrill/disaster-intake-api/models"

// pointsPerSeverity is the base score for each severity step
const pointsPerSeverity = 25

var multipliers = map[models.Category]float64{
	models.CategoryMedical:    1.5,
	models.CategoryFire:       1.4,
	models.CategoryEarthquake: 1.3,
	models.CategoryFlood:      1.2,
	models.CategoryCyclone:    1.2,
	models.CategoryLandslide:  1.1,
	models.CategoryRoadblock:  1.0,
	models.CategoryOther:      0.9,
}

// Multiplier returns the category weight, 1.0 for unknown categories
func Multiplier(c models.Category) float64 {
	if m, ok := multipliers[c]; ok {
		return m
	}
	return 1.0
}

// Score is severity * 25 * category multiplier
func Score(severity int, c models.Category) float64 {
	return float64(severity*pointsPerSeverity) * Multiplier(c)
}
