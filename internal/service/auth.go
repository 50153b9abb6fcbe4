package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"

	"github.com/amirfarid/guardpost/internal/domain"
)

var authTracer = otel.Tracer("auth")

// ErrInvalidCredentials covers both unknown accounts and wrong passwords
// so login failures do not reveal which one it was.
var ErrInvalidCredentials = errors.New("invalid credentials")

type accountStore interface {
	Get(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

type accessClaims struct {
	jwt.RegisteredClaims
	CommunityID string `json:"cid"`
	Role        string `json:"role"`
}

// AuthService authenticates accounts and mints short-lived access tokens
// carrying the requester's community and role.
type AuthService struct {
	users  accountStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthService(users accountStore, secret string, ttl time.Duration, now func() time.Time) *AuthService {
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    now,
	}
}

// AuthResult identifies a verified requester.
type AuthResult struct {
	UserID      string
	CommunityID string
	Role        string
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	ctx, span := authTracer.Start(ctx, "Auth.Service.Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.User{}, ErrInvalidCredentials
		}
		span.RecordError(pkgerrors.Wrap(err, "user lookup failed"))
		return "", domain.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", domain.User{}, ErrInvalidCredentials
	}

	now := s.now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		CommunityID: user.CommunityID,
		Role:        user.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		span.RecordError(pkgerrors.Wrap(err, "token signing failed"))
		return "", domain.User{}, err
	}

	return signed, user, nil
}

// AuthToken verifies an access token and returns the requester identity.
func (s *AuthService) AuthToken(ctx context.Context, tokenStr string) (*AuthResult, error) {
	_, span := authTracer.Start(ctx, "Auth.Service.AuthToken")
	defer span.End()

	var parsed accessClaims
	_, err := jwt.ParseWithClaims(tokenStr, &parsed, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		span.RecordError(pkgerrors.Wrap(err, "token validation failed"))
		return nil, err
	}

	if parsed.Subject == "" || parsed.CommunityID == "" {
		err := fmt.Errorf("token missing subject or community")
		span.RecordError(err)
		return nil, err
	}

	return &AuthResult{
		UserID:      parsed.Subject,
		CommunityID: parsed.CommunityID,
		Role:        parsed.Role,
	}, nil
}

// HashPassword is used at account provisioning time.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
