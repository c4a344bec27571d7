package models

import (
	"time"
)

// Client is the customer a trip is performed for.
type Client struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Name        string    `bson:"name" json:"name"`
	TaxID       string    `bson:"tax_id" json:"tax_id"`
	Address     string    `bson:"address" json:"address"`
	ContactName string    `bson:"contact_name" json:"contact_name"`
	Email       string    `bson:"email" json:"email"`
	Phone       string    `bson:"phone" json:"phone"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// Driver is a licensed driver that can be assigned to trips.
type Driver struct {
	ID            string     `bson:"_id,omitempty" json:"id"`
	Name          string     `bson:"name" json:"name"`
	NationalID    string     `bson:"national_id" json:"national_id"`
	LicenseNumber string     `bson:"license_number" json:"license_number"`
	LicenseExpiry *time.Time `bson:"license_expiry,omitempty" json:"license_expiry,omitempty"`
	Phone         string     `bson:"phone" json:"phone"`
	UserID        string     `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Status        string     `bson:"status" json:"status"` // "active" or "inactive"
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
}

// Reference entity statuses. Only active entities can be assigned to new trips.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)
