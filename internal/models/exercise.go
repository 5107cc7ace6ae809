package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Difficulty tiers for exercises. The alternatives pipeline filters on these
// as discrete values, never as a range.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// EquipmentBodyweight marks an exercise as requiring no equipment at all.
// Bodyweight exercises are always performable regardless of inventory.
const EquipmentBodyweight = "bodyweight"

type Exercise struct {
	gorm.Model
	ExerciseID      uuid.UUID `gorm:"type:uuid;uniqueIndex;default:gen_random_uuid()"`
	OrganizationID  uuid.UUID `gorm:"type:uuid;index"` // uuid.Nil for global catalog entries
	Name            string    `gorm:"not null"`
	Category        string    `gorm:"index"`
	MuscleGroups    []string  `gorm:"serializer:json"`
	Equipment       []string  `gorm:"serializer:json"`
	MovementPattern string    `gorm:"index"`
	Difficulty      string    `gorm:"index"`
}

// IsBodyweight reports whether the exercise requires no equipment.
func (e *Exercise) IsBodyweight() bool {
	if len(e.Equipment) == 0 {
		return true
	}
	for _, eq := range e.Equipment {
		if eq != EquipmentBodyweight {
			return false
		}
	}
	return true
}
