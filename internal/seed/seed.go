// Package seed bootstraps the administrator account and optional demo data.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/trip-approvals/internal/apperr"
	"github.com/ukydev/trip-approvals/internal/auth"
	"github.com/ukydev/trip-approvals/internal/db"
	"github.com/ukydev/trip-approvals/internal/models"
)

// DemoPassword is the password of every seeded demo account.
const DemoPassword = "demo-pass-2024"

// EnsureAdmin creates the bootstrap administrator unless a user of that name
// already exists. It reports whether an account was created.
func EnsureAdmin(ctx context.Context, users db.UserCollection, svc *auth.Service, username, password, email string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	_, err := users.FindUserByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return false, err
	}
	if err := svc.ValidatePassword(password); err != nil {
		return false, fmt.Errorf("bootstrap administrator: %w", err)
	}
	hash, err := svc.HashPassword(password)
	if err != nil {
		return false, err
	}
	user, err := users.InsertUser(ctx, models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		FirstName:    "System",
		LastName:     "Administrator",
	})
	if err != nil {
		return false, err
	}
	log.WithFields(log.Fields{"user_id": user.ID, "username": user.Username}).Info("Created bootstrap administrator")
	return true, nil
}

type demoDriver struct {
	name, nationalID, license, phone, status string
	licenseDays                              int
}

type demoVehicle struct {
	plate, make, model            string
	year                          int
	inspectionDays, insuranceDays int
	status                        string
}

var (
	demoClients = []models.Client{
		{Name: "Andes Mining S.A.", TaxID: "1790012345001", Address: "Av. Amazonas N34-120, Quito", ContactName: "Paula Ortiz", Email: "logistica@andesmining.example", Phone: "+593 2 555 0101"},
		{Name: "Costa Agro Export", TaxID: "0990023456001", Address: "Km 4.5 Via Daule, Guayaquil", ContactName: "Diego Salas", Email: "ops@costaagro.example", Phone: "+593 4 555 0202"},
		{Name: "Oriente Petroservicios", TaxID: "2190034567001", Address: "Calle 12 de Febrero, Lago Agrio", ContactName: "Marta Chela", Email: "despacho@oriente.example", Phone: "+593 6 555 0303"},
	}
	demoDrivers = []demoDriver{
		{"Rosa Vera", "1712345678", "E-100234", "+593 99 100 0001", models.StatusActive, 400},
		{"Luis Cedeno", "0923456789", "E-100876", "+593 99 100 0002", models.StatusActive, 12},
		{"Carlos Yanez", "1809876543", "C-200145", "+593 99 100 0003", models.StatusInactive, -20},
	}
	demoVehicles = []demoVehicle{
		{"PBA-1234", "Toyota", "Hilux", 2022, 200, 300, models.StatusActive},
		{"GSC-5678", "Chevrolet", "D-Max", 2021, 5, 90, models.StatusActive},
		{"SBC-9012", "Ford", "Ranger", 2020, -3, 150, models.StatusActive},
		{"PCD-3456", "Nissan", "Frontier", 2019, 100, -10, models.StatusInactive},
	}
)

// Demo fills an empty store with clients, drivers, vehicles and one account
// per role. It does nothing when any client is already registered.
func Demo(ctx context.Context, refs *db.ReferenceStore, users db.UserCollection, svc *auth.Service, now time.Time) error {
	existing, err := refs.FindClients(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.WithField("clients", len(existing)).Info("Store already has data; skipping demo seed")
		return nil
	}
	days := func(n int) *time.Time {
		t := now.UTC().AddDate(0, 0, n)
		return &t
	}

	for _, c := range demoClients {
		if _, err := refs.InsertClient(ctx, c); err != nil {
			return fmt.Errorf("seed client %s: %w", c.Name, err)
		}
	}

	hash, err := svc.HashPassword(DemoPassword)
	if err != nil {
		return err
	}
	account := func(username string, role models.Role, driverID string) error {
		_, err := users.InsertUser(ctx, models.User{
			Username:     username,
			Email:        username + "@fleet.example",
			PasswordHash: hash,
			Role:         role,
			FirstName:    username,
			DriverID:     driverID,
		})
		if err != nil {
			return fmt.Errorf("seed user %s: %w", username, err)
		}
		return nil
	}

	for i, d := range demoDrivers {
		stored, err := refs.InsertDriver(ctx, models.Driver{
			Name:          d.name,
			NationalID:    d.nationalID,
			LicenseNumber: d.license,
			LicenseExpiry: days(d.licenseDays),
			Phone:         d.phone,
			Status:        d.status,
		})
		if err != nil {
			return fmt.Errorf("seed driver %s: %w", d.name, err)
		}
		if d.status == models.StatusActive {
			if err := account(fmt.Sprintf("driver%d", i+1), models.RoleDriver, stored.ID); err != nil {
				return err
			}
		}
	}

	for _, v := range demoVehicles {
		_, err := refs.InsertVehicle(ctx, models.Vehicle{
			Plate:            v.plate,
			Make:             v.make,
			Model:            v.model,
			Year:             v.year,
			InspectionExpiry: days(v.inspectionDays),
			InsuranceExpiry:  days(v.insuranceDays),
			Status:           v.status,
		})
		if err != nil {
			return fmt.Errorf("seed vehicle %s: %w", v.plate, err)
		}
	}

	accounts := map[string]models.Role{
		"planner":     models.RoleUser,
		"supervisor1": models.RoleSupervisorTier1,
		"supervisor2": models.RoleSupervisorTier2,
		"supervisor3": models.RoleSupervisorTier3,
	}
	for _, name := range []string{"planner", "supervisor1", "supervisor2", "supervisor3"} {
		if err := account(name, accounts[name], ""); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"clients":  len(demoClients),
		"drivers":  len(demoDrivers),
		"vehicles": len(demoVehicles),
	}).Info("Seeded demo data")
	return nil
}
