package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTampered is returned when the signature does not match the payload.
	ErrTampered = errors.New("token signature invalid")
	// ErrExpired is returned when the embedded expiry has passed.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned when the token cannot be parsed at all.
	ErrMalformed = errors.New("token malformed")
)

// Claims is the verified content of a credential token.
type Claims struct {
	SubjectID   string
	CommunityID string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type credentialClaims struct {
	jwt.RegisteredClaims
	CommunityID string `json:"cid"`
}

// Codec signs and verifies credential tokens with a process-wide
// symmetric secret. The clock is injectable so expiry behaviour can be
// tested deterministically.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string, now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{secret: []byte(secret), now: now}
}

// Issue creates a signed token binding subject and community to an
// absolute expiry. Issuing an already-expired token is an error.
func (c *Codec) Issue(subjectID, communityID string, expiresAt time.Time) (string, error) {
	now := c.now()
	if !expiresAt.After(now) {
		return "", fmt.Errorf("expiry %s is not in the future", expiresAt.UTC().Format(time.RFC3339))
	}

	claims := credentialClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		CommunityID: communityID,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify checks the signature and the embedded expiry. The check is
// self-contained: it needs no cache lookup to assert time validity.
func (c *Codec) Verify(signed string) (Claims, error) {
	var parsed credentialClaims
	_, err := jwt.ParseWithClaims(signed, &parsed, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return Claims{}, ErrTampered
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, ErrMalformed
		default:
			return Claims{}, ErrTampered
		}
	}

	claims := Claims{
		SubjectID:   parsed.Subject,
		CommunityID: parsed.CommunityID,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, ErrMalformed
	}
	claims.ExpiresAt = parsed.ExpiresAt.Time

	if !claims.ExpiresAt.After(c.now()) {
		return Claims{}, ErrExpired
	}

	return claims, nil
}

// NewVisitorCode returns a short scannable identifier of the form
// VIS-XXXXXXXXXXXXXXXX. The signed token itself stays server-side; only
// this code is printed on the QR.
func NewVisitorCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "VIS-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// NewDeliveryPasscode returns a 6-digit passcode suitable for voice or
// manual entry at a gate. Not globally unique; callers scope it by
// community and active window.
func NewDeliveryPasscode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
