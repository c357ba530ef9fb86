package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"memory-map-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserService handles user-related business logic
type UserService struct {
	userRepo  UserStore
	jwtSecret string
	jwtTTL    time.Duration
}

// NewUserService creates a new user service
func NewUserService(userRepo UserStore, jwtSecret string, jwtTTL time.Duration) *UserService {
	return &UserService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
	}
}

// RegisterRequest represents a request to create an account with a password
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// SyncUserRequest represents a user handed over by an identity provider
type SyncUserRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// LoginRequest represents a password login
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(s.jwtTTL).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// SessionTTL is how long issued tokens stay valid
func (s *UserService) SessionTTL() time.Duration {
	return s.jwtTTL
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

// Authenticate resolves a session token to the id of an existing user
func (s *UserService) Authenticate(ctx context.Context, tokenString string) (string, error) {
	if tokenString == "" {
		return "", models.ErrUnauthenticated
	}
	userID, err := s.ValidateJWT(tokenString)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, models.ErrUnauthenticated)
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", fmt.Errorf("unknown user %s: %w", userID, models.ErrUnauthenticated)
		}
		return "", err
	}
	return userID, nil
}

// Register creates an account with a bcrypt-hashed password
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, models.NewValidationError("email", "email already registered")
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hashed := string(hash)

	now := time.Now()
	user := &models.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: &hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SyncUser returns the user with the given email, creating it without a
// password when it does not exist yet
func (s *UserService) SyncUser(ctx context.Context, req SyncUserRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// a concurrent sync may have inserted the same email
		if errors.Is(err, models.ErrValidation) {
			return s.userRepo.GetByEmail(ctx, req.Email)
		}
		return nil, err
	}
	return user, nil
}

// Login checks a password and issues a session token
func (s *UserService) Login(ctx context.Context, req LoginRequest) (string, *models.User, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return "", nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", nil, fmt.Errorf("invalid email or password: %w", models.ErrUnauthenticated)
		}
		return "", nil, err
	}
	if user.PasswordHash == nil ||
		bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)) != nil {
		return "", nil, fmt.Errorf("invalid email or password: %w", models.ErrUnauthenticated)
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// DeleteUser removes a user together with everything the user owns
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	return s.userRepo.Delete(ctx, userID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
