package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/trip-approvals/internal/models"
	"github.com/ukydev/trip-approvals/internal/risk"
)

func TestRequiredRole(t *testing.T) {
	tests := []struct {
		tier risk.Tier
		want models.Role
	}{
		{risk.TierLow, models.RoleSupervisorTier1},
		{risk.TierMedium, models.RoleSupervisorTier2},
		{risk.TierHigh, models.RoleSupervisorTier3},
	}
	for _, tt := range tests {
		got, err := RequiredRole(tt.tier)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := RequiredRole("extreme")
	assert.Error(t, err)
}

func TestIsAuthorized_ExactMatchOnly(t *testing.T) {
	roles := []models.Role{
		models.RoleAdmin,
		models.RoleSupervisorTier1,
		models.RoleSupervisorTier2,
		models.RoleSupervisorTier3,
		models.RoleDriver,
		models.RoleUser,
	}
	tiers := []risk.Tier{risk.TierLow, risk.TierMedium, risk.TierHigh}

	for _, role := range roles {
		for _, tier := range tiers {
			want := requiredRoles[tier] == role
			assert.Equal(t, want, IsAuthorized(role, tier), "%s deciding %s", role, tier)
		}
	}

	assert.True(t, IsAuthorized(models.RoleSupervisorTier2, risk.TierMedium))
	assert.False(t, IsAuthorized(models.RoleSupervisorTier2, risk.TierLow))
	assert.False(t, IsAuthorized(models.RoleSupervisorTier2, risk.TierHigh))
	assert.False(t, IsAuthorized(models.RoleSupervisorTier1, "unknown"))
}

func TestTierFor(t *testing.T) {
	tier, ok := TierFor(models.RoleSupervisorTier3)
	assert.True(t, ok)
	assert.Equal(t, risk.TierHigh, tier)

	_, ok = TierFor(models.RoleAdmin)
	assert.False(t, ok)
}
