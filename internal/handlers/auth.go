package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/trip-approvals/internal/apperr"
	"github.com/ukydev/trip-approvals/internal/auth"
	"github.com/ukydev/trip-approvals/internal/db"
	"github.com/ukydev/trip-approvals/internal/middleware"
	"github.com/ukydev/trip-approvals/internal/models"
)

// DriverFinder resolves the driver a user account is linked to.
type DriverFinder interface {
	FindDriverByID(ctx context.Context, id string) (*models.Driver, error)
}

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
	drivers        DriverFinder
	log            *log.Entry
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection, drivers DriverFinder, logger *log.Entry) *AuthHandler {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &AuthHandler{
		authService:    authService,
		userCollection: userCollection,
		drivers:        drivers,
		log:            logger.WithField("component", "auth"),
	}
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginReq models.LoginRequest
	if err := decode(w, r, &loginReq); err != nil {
		writeError(w, err)
		return
	}

	// Validate input
	if loginReq.Username == "" || loginReq.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.userCollection.FindUserByUsername(r.Context(), loginReq.Username)
	if errors.Is(err, apperr.ErrNotFound) {
		h.log.WithField("username", loginReq.Username).Warn("Login for unknown user")
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.authService.Authenticate(user, loginReq.Password)
	switch {
	case errors.Is(err, auth.ErrUserInactive):
		writeMessage(w, http.StatusUnauthorized, "Account is deactivated")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.log.WithField("username", user.Username).Warn("Login with wrong password")
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case err != nil:
		h.log.WithError(err).Error("Failed to generate token")
		writeMessage(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to generate refresh token")
		return
	}

	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID); err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Warn("Failed to update last login")
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         *user,
	})
}

// Register creates an account. Only administrators reach this handler.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var registerReq models.RegisterRequest
	if err := decode(w, r, &registerReq); err != nil {
		writeError(w, err)
		return
	}
	registerReq.Username = strings.TrimSpace(registerReq.Username)
	registerReq.DriverID = strings.TrimSpace(registerReq.DriverID)

	verr := &apperr.ValidationError{}
	if err := h.authService.ValidateUsername(registerReq.Username); err != nil {
		verr.Add("username", err.Error())
	}
	if err := h.authService.ValidateEmail(registerReq.Email); err != nil {
		verr.Add("email", err.Error())
	}
	if err := h.authService.ValidatePassword(registerReq.Password); err != nil {
		verr.Add("password", err.Error())
	}
	if !models.IsValidRole(registerReq.Role) {
		verr.Add("role", "invalid role")
	}
	if registerReq.Role == models.RoleDriver && registerReq.DriverID == "" {
		verr.Add("driver_id", "driver accounts must be linked to a driver")
	}
	if registerReq.Role != models.RoleDriver && registerReq.DriverID != "" {
		verr.Add("driver_id", "only driver accounts can be linked to a driver")
	}
	if err := verr.OrNil(); err != nil {
		writeError(w, err)
		return
	}

	if registerReq.DriverID != "" {
		_, err := h.drivers.FindDriverByID(r.Context(), registerReq.DriverID)
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, apperr.NewValidation("driver_id", "unknown driver"))
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
	}

	// Check if username already exists
	_, err := h.userCollection.FindUserByUsername(r.Context(), registerReq.Username)
	if err == nil {
		writeMessage(w, http.StatusConflict, "Username already exists")
		return
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		writeError(w, err)
		return
	}

	passwordHash, err := h.authService.HashPassword(registerReq.Password)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user, err := h.userCollection.InsertUser(r.Context(), models.User{
		Username:     registerReq.Username,
		Email:        registerReq.Email,
		PasswordHash: passwordHash,
		Role:         registerReq.Role,
		FirstName:    registerReq.FirstName,
		LastName:     registerReq.LastName,
		DriverID:     registerReq.DriverID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	fields := log.Fields{"user_id": user.ID, "username": user.Username, "role": user.Role}
	if actor, ok := middleware.ActorFromContext(r.Context()); ok {
		fields["created_by"] = actor.UserID
	}
	h.log.WithFields(fields).Info("User registered")
	writeJSON(w, http.StatusCreated, user)
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "User context not found")
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
