package services

import (
	"fmt"
	"strings"

	"gymstack_go_backend/internal/models"
)

// Scoring weights. They sum to 100 so a perfect substitute scores exactly 100.
const (
	muscleOverlapWeight    = 50
	movementPatternBonus   = 30
	equipmentWeight        = 10
	difficultyProximityMax = 10
)

var difficultyRank = map[string]int{
	models.DifficultyBeginner:     0,
	models.DifficultyIntermediate: 1,
	models.DifficultyAdvanced:     2,
}

// RuleScorerService produces the deterministic ranking. Same inputs always
// yield the same scores and order, which the cache depends on.
type RuleScorerService struct{}

func NewRuleScorerService() *RuleScorerService {
	return &RuleScorerService{}
}

// ScoreCandidates scores each candidate against the source and returns them
// sorted by score descending. The sort is stable so ties keep catalog order.
func (s *RuleScorerService) ScoreCandidates(source *models.Exercise, candidates []models.Exercise, effectiveEquipment []string) []AlternativeCandidate {
	available := make(map[string]bool, len(effectiveEquipment))
	for _, tag := range effectiveEquipment {
		available[tag] = true
	}

	scored := make([]AlternativeCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		score, reason := s.scoreOne(source, &candidate, available)
		scored = append(scored, AlternativeCandidate{
			ExerciseID:   candidate.ExerciseID,
			Name:         candidate.Name,
			MuscleGroups: candidate.MuscleGroups,
			Score:        score,
			Reason:       reason,
		})
	}

	sortCandidatesByScore(scored)
	return scored
}

func (s *RuleScorerService) scoreOne(source, candidate *models.Exercise, available map[string]bool) (int, string) {
	score := 0
	var reasonParts []string

	shared := sharedMuscleGroups(source, candidate)
	if len(source.MuscleGroups) > 0 && len(shared) > 0 {
		score += muscleOverlapWeight * len(shared) / len(source.MuscleGroups)
		reasonParts = append(reasonParts, fmt.Sprintf("works the same muscle groups (%s)", strings.Join(shared, ", ")))
	}

	if candidate.MovementPattern != "" && candidate.MovementPattern == source.MovementPattern {
		score += movementPatternBonus
		reasonParts = append(reasonParts, fmt.Sprintf("matches the %s movement pattern", source.MovementPattern))
	}

	switch {
	case candidate.IsBodyweight():
		score += equipmentWeight
		reasonParts = append(reasonParts, "requires no equipment")
	case len(candidate.Equipment) == 1:
		score += equipmentWeight - 3
		reasonParts = append(reasonParts, fmt.Sprintf("only needs a %s", candidate.Equipment[0]))
	default:
		score += equipmentWeight - 6
		reasonParts = append(reasonParts, "uses equipment you have available")
	}

	score += difficultyProximity(source.Difficulty, candidate.Difficulty)

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	reason := "Shares training characteristics with " + source.Name
	if len(reasonParts) > 0 {
		reason = capitalize(strings.Join(reasonParts, " and "))
	}
	return score, reason
}

func sharedMuscleGroups(source, candidate *models.Exercise) []string {
	candidateMuscles := make(map[string]bool, len(candidate.MuscleGroups))
	for _, mg := range candidate.MuscleGroups {
		candidateMuscles[mg] = true
	}

	var shared []string
	for _, mg := range source.MuscleGroups {
		if candidateMuscles[mg] {
			shared = append(shared, mg)
		}
	}
	return shared
}

func difficultyProximity(source, candidate string) int {
	srcRank, srcOK := difficultyRank[source]
	candRank, candOK := difficultyRank[candidate]
	if !srcOK || !candOK {
		return 0
	}

	distance := srcRank - candRank
	if distance < 0 {
		distance = -distance
	}
	switch distance {
	case 0:
		return difficultyProximityMax
	case 1:
		return difficultyProximityMax / 2
	default:
		return 0
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
