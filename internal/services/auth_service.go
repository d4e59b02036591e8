package services

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/logging"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo  repositories.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration // Duration for which JWT is valid
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// RegisterUser registers a new user, hashes their password, and saves them to the database.
// New accounts always get the USER role.
func (s *AuthService) RegisterUser(ctx context.Context, user *models.User) error {
	if err := validateInput(user, "registration"); err != nil {
		return err
	}

	// Check if username or email already exists
	if existingUser, err := s.userRepo.GetByUsername(ctx, user.Username); err == nil && existingUser != nil {
		return apperr.New(apperr.KindConflict, "username '%s' already taken", user.Username)
	}
	if existingUser, err := s.userRepo.GetByEmail(ctx, user.Email); err == nil && existingUser != nil {
		return apperr.New(apperr.KindConflict, "email '%s' already registered", user.Email)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)
	user.Role = models.RoleUser

	if err := s.userRepo.Create(ctx, user); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return err
		}
		return fmt.Errorf("failed to register user: %w", err)
	}
	logging.FromContext(ctx).Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return nil
}

// LoginUser authenticates a user and returns a JWT token if successful.
func (s *AuthService) LoginUser(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		// Do not reveal whether the username exists.
		return "", apperr.New(apperr.KindUnauthenticated, "invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", apperr.New(apperr.KindUnauthenticated, "invalid credentials")
	}

	return s.IssueToken(user)
}

// IssueToken signs an HS256 token carrying the user's id, name and role.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
		"exp":      now.Add(s.tokenTTL).Unix(),
		"iat":      now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, err, "invalid token")
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, apperr.New(apperr.KindUnauthenticated, "invalid token")
}

// ResolveIdentity turns a bearer token into the caller's Identity.
func (s *AuthService) ResolveIdentity(tokenString string) (Identity, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return Identity{}, err
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return Identity{}, apperr.New(apperr.KindUnauthenticated, "invalid token: missing user id")
	}
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	if role == "" {
		role = models.RoleUser
	}
	return Identity{UserID: userID, Username: username, Role: role}, nil
}
