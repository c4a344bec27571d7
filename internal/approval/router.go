// Package approval routes trips to the supervisor tier that must decide them.
//
// Tiers are disjoint queues, not a permission hierarchy: a tier 3 supervisor
// cannot decide a low risk trip and a tier 1 supervisor cannot decide a high
// risk one.
package approval

import (
	"fmt"

	"github.com/ukydev/trip-approvals/internal/models"
	"github.com/ukydev/trip-approvals/internal/risk"
)

var requiredRoles = map[risk.Tier]models.Role{
	risk.TierLow:    models.RoleSupervisorTier1,
	risk.TierMedium: models.RoleSupervisorTier2,
	risk.TierHigh:   models.RoleSupervisorTier3,
}

// RequiredRole returns the single role allowed to decide trips of tier.
func RequiredRole(tier risk.Tier) (models.Role, error) {
	role, ok := requiredRoles[tier]
	if !ok {
		return "", fmt.Errorf("no approver configured for risk tier %q", tier)
	}
	return role, nil
}

// IsAuthorized reports whether role may approve or reject a trip of tier.
func IsAuthorized(role models.Role, tier risk.Tier) bool {
	required, ok := requiredRoles[tier]
	return ok && role == required
}

// TierFor returns the tier whose queue role works on.
func TierFor(role models.Role) (risk.Tier, bool) {
	for tier, r := range requiredRoles {
		if r == role {
			return tier, true
		}
	}
	return "", false
}
