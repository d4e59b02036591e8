package services

import (
	"testing"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	user := Identity{UserID: "u1", Role: models.RoleUser}
	admin := Identity{UserID: "a1", Role: models.RoleAdmin}

	assert.NoError(t, authorize(user))
	assert.NoError(t, authorize(admin, models.RoleAdmin))
	assert.True(t, apperr.Is(authorize(user, models.RoleAdmin), apperr.KindForbidden))
	assert.True(t, apperr.Is(authorize(Identity{}), apperr.KindUnauthenticated))
	assert.True(t, apperr.Is(authorize(Identity{Role: models.RoleAdmin}, models.RoleAdmin), apperr.KindUnauthenticated))
}
