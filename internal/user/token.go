package user

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/victornm/listenup/internal/errors"
)

const (
	DefaultTokenTTL = 24 * time.Hour
	issuer          = "listenup"
)

type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Tokens issues and verifies bearer tokens binding a user to a game session.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(c TokenConfig) *Tokens {
	t := &Tokens{
		secret: c.Secret,
		ttl:    c.TTL,
		now:    c.Now,
	}

	if t.ttl <= 0 {
		t.ttl = DefaultTokenTTL
	}
	if t.now == nil {
		t.now = time.Now
	}

	return t
}

type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	UserID    int64
	SessionID string
}

func (t *Tokens) Issue(p Principal) (string, error) {
	now := t.now()
	claims := Claims{
		SessionID: p.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func (t *Tokens) Parse(token string) (Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Principal{}, unauthenticated(err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || claims.SessionID == "" {
		return Principal{}, unauthenticated(fmt.Errorf("malformed claims"))
	}

	return Principal{UserID: id, SessionID: claims.SessionID}, nil
}

func unauthenticated(err error) error {
	return errors.New(errors.CodeUnauthenticated,
		errors.WithMessagef("invalid token: %v", err),
		errors.WithCause(err),
	)
}
