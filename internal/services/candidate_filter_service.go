package services

import (
	"gymstack_go_backend/internal/models"
)

// CandidateFilterService selects plausible substitutes from the catalog pool.
// It never errors: an empty result is a valid, cacheable outcome.
type CandidateFilterService struct {
	maxCandidates int
}

func NewCandidateFilterService(maxCandidates int) *CandidateFilterService {
	return &CandidateFilterService{maxCandidates: maxCandidates}
}

// FilterCandidates keeps candidates that share the source's movement pattern
// or at least one muscle group, whose equipment is fully satisfiable from the
// effective set, and that match the difficulty filter exactly when one is
// given. Catalog order is preserved; the set is capped so the downstream
// rerank prompt stays bounded.
func (s *CandidateFilterService) FilterCandidates(source *models.Exercise, pool []models.Exercise, effectiveEquipment []string, difficultyFilter string) []models.Exercise {
	available := make(map[string]bool, len(effectiveEquipment))
	for _, tag := range effectiveEquipment {
		available[tag] = true
	}

	sourceMuscles := make(map[string]bool, len(source.MuscleGroups))
	for _, mg := range source.MuscleGroups {
		sourceMuscles[mg] = true
	}

	candidates := make([]models.Exercise, 0, s.maxCandidates)
	for _, candidate := range pool {
		if candidate.ExerciseID == source.ExerciseID {
			continue
		}
		if difficultyFilter != "" && candidate.Difficulty != difficultyFilter {
			continue
		}
		if !sharesMovementOrMuscles(source, &candidate, sourceMuscles) {
			continue
		}
		if !equipmentSatisfiable(&candidate, available) {
			continue
		}

		candidates = append(candidates, candidate)
		if len(candidates) >= s.maxCandidates {
			break
		}
	}
	return candidates
}

func sharesMovementOrMuscles(source, candidate *models.Exercise, sourceMuscles map[string]bool) bool {
	if candidate.MovementPattern != "" && candidate.MovementPattern == source.MovementPattern {
		return true
	}
	for _, mg := range candidate.MuscleGroups {
		if sourceMuscles[mg] {
			return true
		}
	}
	return false
}

func equipmentSatisfiable(candidate *models.Exercise, available map[string]bool) bool {
	if candidate.IsBodyweight() {
		return true
	}
	for _, tag := range candidate.Equipment {
		if !available[tag] {
			return false
		}
	}
	return true
}
