package models

import (
	"time"
)

// Vehicle represents a fleet vehicle.
type Vehicle struct {
	ID               string     `bson:"_id,omitempty" json:"id"`
	Plate            string     `bson:"plate" json:"plate"`
	Make             string     `bson:"make" json:"make"`
	Model            string     `bson:"model" json:"model"`
	Year             int        `bson:"year" json:"year"`
	InspectionExpiry *time.Time `bson:"inspection_expiry,omitempty" json:"inspection_expiry,omitempty"`
	InsuranceExpiry  *time.Time `bson:"insurance_expiry,omitempty" json:"insurance_expiry,omitempty"`
	Status           string     `bson:"status" json:"status"` // "active" or "inactive"
	CreatedAt        time.Time  `bson:"created_at" json:"created_at"`
}
