package repositories

import (
	"context"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockUserRepository is an in-memory implementation of UserRepository.
type MockUserRepository struct {
	store *MockStore
}

func (r *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	return r.store.view(func(d *memoryData) error {
		for _, u := range d.users {
			if u.Username == user.Username || u.Email == user.Email {
				return apperr.New(apperr.KindConflict, "user %s already exists", user.Username)
			}
		}
		now := r.store.now()
		user.CreatedAt, user.UpdatedAt = now, now
		d.users[user.ID] = *user
		return nil
	})
}

func (r *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.find("username", username, func(u models.User) bool { return u.Username == username })
}

func (r *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find("email", email, func(u models.User) bool { return u.Email == email })
}

func (r *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.find("ID", id, func(u models.User) bool { return u.ID == id })
}

func (r *MockUserRepository) find(field, value string, match func(models.User) bool) (*models.User, error) {
	var found *models.User
	err := r.store.view(func(d *memoryData) error {
		for _, u := range d.users {
			if match(u) {
				u := u
				found = &u
				return nil
			}
		}
		return apperr.NotFound("user with %s %s not found", field, value)
	})
	return found, err
}
