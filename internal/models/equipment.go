package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EquipmentInventory struct {
	gorm.Model
	OrganizationID uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	Available      []string  `gorm:"serializer:json"`
	Unavailable    []string  `gorm:"serializer:json"`
}

// EffectiveEquipment returns the allow-list minus the explicitly unavailable
// tags, deduplicated. Bodyweight is always included.
func (inv *EquipmentInventory) EffectiveEquipment() []string {
	blocked := make(map[string]bool, len(inv.Unavailable))
	for _, tag := range inv.Unavailable {
		blocked[tag] = true
	}

	seen := map[string]bool{EquipmentBodyweight: true}
	effective := []string{EquipmentBodyweight}
	for _, tag := range inv.Available {
		if blocked[tag] || seen[tag] {
			continue
		}
		seen[tag] = true
		effective = append(effective, tag)
	}
	return effective
}
