package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"ticketing/entity"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Repository interface {
	Add(ctx context.Context, user entity.User) (entity.User, error)
	Get(ctx context.Context, id string) (entity.User, error)
	GetByEmail(ctx context.Context, email string) (entity.User, error)
}

type SignupRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      entity.Role
}

// Claims is what a session token asserts about its holder.
type Claims struct {
	Role entity.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c Claims) UserID() string {
	return c.Subject
}

var errBadCredentials = entity.Unauthorized("invalid_credentials", "email or password is incorrect")

type Service struct {
	repo     Repository
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

func NewService(repo Repository, secret string, tokenTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Signup registers a creator or eventee. Admins are never created here.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (entity.User, error) {
	role := req.Role
	if role == "" {
		role = entity.RoleEventee
	}
	if role != entity.RoleCreator && role != entity.RoleEventee {
		return entity.User{}, entity.Validation("invalid_role", "role must be CREATOR or EVENTEE")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return entity.User{}, fmt.Errorf("hashing password: %w", err)
	}

	return s.repo.Add(ctx, entity.User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(req.Email),
		PasswordHash: string(hash),
		Role:         role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	})
}

// Login returns a signed session token for valid credentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, entity.User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if entity.KindOf(err) == entity.KindNotFound {
		return "", entity.User{}, errBadCredentials
	}
	if err != nil {
		return "", entity.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", entity.User{}, errBadCredentials
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", entity.User{}, fmt.Errorf("signing token: %w", err)
	}

	return signed, user, nil
}

// ParseToken verifies a session token's signature and expiry.
func (s *Service) ParseToken(tokenString string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return Claims{}, entity.Unauthorized("token_expired", "session token has expired")
	}
	if err != nil {
		return Claims{}, entity.Unauthorized("invalid_token", "session token is invalid")
	}
	if claims.Subject == "" {
		return Claims{}, entity.Unauthorized("invalid_token", "session token has no subject")
	}

	return claims, nil
}

func (s *Service) Get(ctx context.Context, userID string) (entity.User, error) {
	return s.repo.Get(ctx, userID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
