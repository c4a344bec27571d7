package db

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ukydev/trip-approvals/internal/models"
)

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
}

// UserStore implements UserCollection on a RecordStore
type UserStore struct {
	accessor
	now func() time.Time
}

// NewUserStore returns a UserStore over records.
func NewUserStore(records RecordStore, timeout time.Duration) *UserStore {
	return &UserStore{accessor: newAccessor(records, timeout), now: time.Now}
}

// InsertUser inserts a new active user
func (s *UserStore) InsertUser(ctx context.Context, user models.User) (models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := s.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true

	var stored models.User
	err := s.create(ctx, "insert user", CollectionUsers, user, &stored)
	return stored, err
}

// FindUserByID finds a user by their ID
func (s *UserStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.get(ctx, "find user "+id, CollectionUsers, id, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUserByUsername finds a user by their username, ignoring case
func (s *UserStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	users, err := listAll[models.User](ctx, s.accessor, "list users", CollectionUsers)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Username, username) {
			return &users[i], nil
		}
	}
	return nil, translate("find user "+username, ErrNotFound)
}

// UpdateLastLogin updates the last login time for a user
func (s *UserStore) UpdateLastLogin(ctx context.Context, id string) error {
	now := s.now().UTC()
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	_, err := s.records.UpdateRecord(ctx, CollectionUsers, id, Record{"last_login": now, "updated_at": now})
	if err != nil {
		return translate("update last login", err)
	}
	return nil
}

var _ UserCollection = (*UserStore)(nil)
