package models

import (
	"testing"
)

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		expected bool
	}{
		{"administrator role", RoleAdmin, true},
		{"tier 1 supervisor", RoleSupervisorTier1, true},
		{"tier 2 supervisor", RoleSupervisorTier2, true},
		{"tier 3 supervisor", RoleSupervisorTier3, true},
		{"driver role", RoleDriver, true},
		{"generic user", RoleUser, true},
		{"invalid role", "manager", false},
		{"empty role", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidRole(tt.role)
			if result != tt.expected {
				t.Errorf("IsValidRole(%s) = %v, want %v", tt.role, result, tt.expected)
			}
		})
	}
}

func TestRole_IsSupervisor(t *testing.T) {
	for _, r := range []Role{RoleSupervisorTier1, RoleSupervisorTier2, RoleSupervisorTier3} {
		if !r.IsSupervisor() {
			t.Errorf("%s should be a supervisor", r)
		}
	}
	for _, r := range []Role{RoleAdmin, RoleDriver, RoleUser} {
		if r.IsSupervisor() {
			t.Errorf("%s should not be a supervisor", r)
		}
	}
}

func TestUser_HasPermission(t *testing.T) {
	admin := &User{Role: RoleAdmin}
	supervisor := &User{Role: RoleSupervisorTier2}
	driver := &User{Role: RoleDriver}
	planner := &User{Role: RoleUser}

	tests := []struct {
		name     string
		user     *User
		action   string
		expected bool
	}{
		{"admin can update trip", admin, "update_trip", true},
		{"admin can view dashboard", admin, "view_dashboard", true},
		{"admin cannot decide trip", admin, "decide_trip", false},
		{"admin cannot drive trip", admin, "drive_trip", false},
		{"admin can manage users", admin, "manage_users", true},
		{"admin can manage reference data", admin, "manage_reference", true},

		{"supervisor can decide trip", supervisor, "decide_trip", true},
		{"supervisor can view dashboard", supervisor, "view_dashboard", true},
		{"supervisor cannot drive trip", supervisor, "drive_trip", false},
		{"supervisor cannot manage users", supervisor, "manage_users", false},

		{"driver can view agenda", driver, "view_agenda", true},
		{"driver can drive trip", driver, "drive_trip", true},
		{"driver cannot create trip", driver, "create_trip", false},

		{"planner can create trip", planner, "create_trip", true},
		{"planner cannot decide trip", planner, "decide_trip", false},
		{"planner cannot view dashboard", planner, "view_dashboard", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.user.HasPermission(tt.action)
			if result != tt.expected {
				t.Errorf("User with role %s HasPermission(%s) = %v, want %v",
					tt.user.Role, tt.action, result, tt.expected)
			}
		})
	}
}

func TestClaims_Actor(t *testing.T) {
	claims := &Claims{UserID: "u-1", Username: "ana", Role: RoleDriver, DriverID: "d-1"}
	actor := claims.Actor()
	if actor.UserID != "u-1" || actor.Role != RoleDriver || actor.DriverID != "d-1" {
		t.Errorf("unexpected actor %+v", actor)
	}
}

func TestSafetyChecklist_Missing(t *testing.T) {
	full := SafetyChecklist{true, true, true, true, true, true, true}
	if got := full.Missing(); len(got) != 0 {
		t.Errorf("expected no missing items, got %v", got)
	}
	partial := full
	partial.SpareTire = false
	partial.MandatoryRest = false
	got := partial.Missing()
	if len(got) != 2 || got[0] != "spare_tire" || got[1] != "mandatory_rest" {
		t.Errorf("unexpected missing items %v", got)
	}
}

func TestEventIDs(t *testing.T) {
	if EventID("t1", EventStart) != "t1:start" {
		t.Errorf("unexpected start id %s", EventID("t1", EventStart))
	}
	if SignatureID("t1") != "t1:signature" {
		t.Errorf("unexpected signature id %s", SignatureID("t1"))
	}
}
