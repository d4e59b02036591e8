package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

const testJWTSecret = "test_jwt_secret"

func TestAuthService_RegisterUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)
	ctx := context.Background()

	user := &models.User{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "password123",
		Role:     models.RoleAdmin,
	}

	mockRepo.On("GetByUsername", ctx, user.Username).Return(nil, apperr.NotFound("not found")).Once()
	mockRepo.On("GetByEmail", ctx, user.Email).Return(nil, apperr.NotFound("not found")).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil).Once()

	err := authService.RegisterUser(ctx, user)
	assert.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role, "self-registration never grants admin")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")))
	mockRepo.AssertExpectations(t)

	// Test username already taken
	again := &models.User{Username: "testuser", Email: "test@example.com", Password: "password123"}
	mockRepo.On("GetByUsername", ctx, again.Username).Return(&models.User{ID: "1"}, nil).Once()
	err = authService.RegisterUser(ctx, again)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Contains(t, err.Error(), "username 'testuser' already taken")
	mockRepo.AssertExpectations(t)

	// Test email already registered
	mockRepo.On("GetByUsername", ctx, again.Username).Return(nil, apperr.NotFound("not found")).Once()
	mockRepo.On("GetByEmail", ctx, again.Email).Return(&models.User{ID: "1"}, nil).Once()
	err = authService.RegisterUser(ctx, again)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Contains(t, err.Error(), "email 'test@example.com' already registered")
	mockRepo.AssertExpectations(t)

	// Test invalid input never reaches the repository
	err = authService.RegisterUser(ctx, &models.User{Username: "ab", Email: "not-an-email", Password: "123"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestAuthService_LoginUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)
	ctx := context.Background()

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{
		ID:       "user-123",
		Username: "testuser",
		Email:    "test@example.com",
		Password: string(hashedPassword),
		Role:     models.RoleUser,
	}

	// Test successful login
	mockRepo.On("GetByUsername", ctx, user.Username).Return(user, nil).Once()
	token, err := authService.LoginUser(ctx, "testuser", "password123")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, user.ID, claims["user_id"])
	assert.Equal(t, user.Username, claims["username"])
	assert.Equal(t, models.RoleUser, claims["role"])
	mockRepo.AssertExpectations(t)

	// Test invalid credentials (wrong password)
	mockRepo.On("GetByUsername", ctx, user.Username).Return(user, nil).Once()
	_, err = authService.LoginUser(ctx, "testuser", "wrongpassword")
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
	assert.Contains(t, err.Error(), "invalid credentials")
	mockRepo.AssertExpectations(t)

	// Test invalid credentials (user not found)
	mockRepo.On("GetByUsername", ctx, "nonexistentuser").Return(nil, apperr.NotFound("user with username nonexistentuser not found")).Once()
	_, err = authService.LoginUser(ctx, "nonexistentuser", "password123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials") // Should return generic invalid credentials message
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  "user-123",
		"username": "testuser",
		"exp":      jwt.TimeFunc().Add(time.Hour).Unix(),
	})
	validTokenString, _ := token.SignedString([]byte(testJWTSecret))

	claims, err := authService.ValidateToken(validTokenString)
	assert.NoError(t, err)
	assert.NotNil(t, claims)
	assert.Equal(t, "user-123", claims["user_id"])
	assert.Equal(t, "testuser", claims["username"])

	// Test malformed token
	_, err = authService.ValidateToken("invalid.token.string")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")

	// Test token signed with another secret
	forged, _ := token.SignedString([]byte("other_secret"))
	_, err = authService.ValidateToken(forged)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	// Test expired token
	expiredToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  "user-123",
		"username": "testuser",
		"exp":      jwt.TimeFunc().Add(-time.Hour).Unix(),
	})
	expiredTokenString, _ := expiredToken.SignedString([]byte(testJWTSecret))
	_, err = authService.ValidateToken(expiredTokenString)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestAuthService_ResolveIdentity(t *testing.T) {
	authService := services.NewAuthService(new(MockUserRepository), testJWTSecret, time.Hour)

	token, err := authService.IssueToken(&models.User{ID: "admin-1", Username: "root", Role: models.RoleAdmin})
	require.NoError(t, err)

	id, err := authService.ResolveIdentity(token)
	require.NoError(t, err)
	assert.Equal(t, services.Identity{UserID: "admin-1", Username: "root", Role: models.RoleAdmin}, id)
	assert.True(t, id.IsAdmin())

	// Tokens without a role claim resolve to a regular user.
	legacy := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-9",
		"exp":     jwt.TimeFunc().Add(time.Hour).Unix(),
	})
	legacyString, _ := legacy.SignedString([]byte(testJWTSecret))
	id, err = authService.ResolveIdentity(legacyString)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, id.Role)

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": jwt.TimeFunc().Add(time.Hour).Unix()})
	noUserString, _ := noUser.SignedString([]byte(testJWTSecret))
	_, err = authService.ResolveIdentity(noUserString)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	_, err = authService.ResolveIdentity("garbage")
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}
