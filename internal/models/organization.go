package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnlimitedQuota is the sentinel for a quota tier with no cap. A tier set to
// this value is skipped entirely when checking allowances.
const UnlimitedQuota = 0

// Subscription plans. Plan selection itself is owned by the billing surface;
// the pipeline only needs to know whether a plan carries the feature.
const (
	PlanBasic    = "basic"
	PlanStandard = "standard"
	PlanPremium  = "premium"
)

type Organization struct {
	gorm.Model
	OrganizationID uuid.UUID `gorm:"type:uuid;uniqueIndex;default:gen_random_uuid()"`
	Name           string    `gorm:"not null"`
	Plan           string
	AIEnabled      bool

	// Monthly budgets. UnlimitedQuota disables the corresponding tier.
	MonthlyTokenLimit        int64
	MonthlyAlternativesLimit int64
	PerUserDailyLimit        int64
}

// HasAlternativesFeature reports whether the plan is entitled to the
// exercise-alternatives feature at all. Distinct from AIEnabled: an entitled
// org with AI disabled still gets rule-based results, an unentitled org
// gets 403.
func (o *Organization) HasAlternativesFeature() bool {
	return o.Plan == PlanStandard || o.Plan == PlanPremium
}
