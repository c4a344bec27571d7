package models

import (
	"time"
)

// Role represents user roles in the system
type Role string

const (
	RoleAdmin           Role = "administrator"
	RoleSupervisorTier1 Role = "supervisor_tier1"
	RoleSupervisorTier2 Role = "supervisor_tier2"
	RoleSupervisorTier3 Role = "supervisor_tier3"
	RoleDriver          Role = "driver"
	RoleUser            Role = "user"
)

// User represents a user in the system
type User struct {
	ID           string     `bson:"_id,omitempty" json:"id"`
	Username     string     `bson:"username" json:"username"`
	Email        string     `bson:"email" json:"email"`
	PasswordHash string     `bson:"password_hash" json:"-"`
	Role         Role       `bson:"role" json:"role"`
	FirstName    string     `bson:"first_name" json:"first_name"`
	LastName     string     `bson:"last_name" json:"last_name"`
	DriverID     string     `bson:"driver_id,omitempty" json:"driver_id,omitempty"`
	IsActive     bool       `bson:"is_active" json:"is_active"`
	LastLogin    *time.Time `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// RegisterRequest represents an administrator's request to create an account
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      Role   `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DriverID  string `json:"driver_id,omitempty"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	DriverID string `json:"driver_id,omitempty"`
	Exp      int64  `json:"exp"`
}

// Actor is the identity an operation is performed on behalf of.
type Actor struct {
	UserID   string `json:"user_id"`
	Role     Role   `json:"role"`
	DriverID string `json:"driver_id,omitempty"`
}

// Actor converts verified claims into the caller identity.
func (c *Claims) Actor() Actor {
	return Actor{UserID: c.UserID, Role: c.Role, DriverID: c.DriverID}
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleSupervisorTier1, RoleSupervisorTier2, RoleSupervisorTier3, RoleDriver, RoleUser:
		return true
	default:
		return false
	}
}

// IsSupervisor reports whether role is one of the supervisor tiers.
func (r Role) IsSupervisor() bool {
	return r == RoleSupervisorTier1 || r == RoleSupervisorTier2 || r == RoleSupervisorTier3
}

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action string) bool {
	switch u.Role {
	case RoleAdmin:
		return action != "decide_trip" && action != "drive_trip"
	case RoleSupervisorTier1, RoleSupervisorTier2, RoleSupervisorTier3:
		return action == "view_trips" || action == "view_dashboard" ||
			action == "create_trip" || action == "update_trip" ||
			action == "decide_trip"
	case RoleDriver:
		return action == "view_agenda" || action == "drive_trip"
	case RoleUser:
		return action == "view_trips" || action == "create_trip" || action == "update_trip"
	default:
		return false
	}
}
