package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/dmitrijs2005/taskauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the identity projection embedded in a bearer token.
type Claims struct {
	UserID    int64
	Email     string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the wire form: standard registered claims plus email and
// the ordered role list.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// TokenCodec issues and validates HS256 bearer tokens. The secret is
// captured at construction and never changes afterwards.
type TokenCodec struct {
	secret   []byte
	issuer   string
	audience string
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenCodec builds a codec. now may be nil, in which case time.Now is used.
func NewTokenCodec(secret, issuer, audience string, lifetime time.Duration, now func() time.Time) *TokenCodec {
	if now == nil {
		now = time.Now
	}
	return &TokenCodec{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		lifetime: lifetime,
		now:      now,
	}
}

// Lifetime returns the validity window applied by Issue.
func (c *TokenCodec) Lifetime() time.Duration { return c.lifetime }

// Issue signs a token for the given identity and returns it together with
// the claims it carries. Issue and expiry times come from the codec clock.
func (c *TokenCodec) Issue(userID int64, email string, roles []string) (string, *Claims, error) {
	now := c.now().Truncate(time.Second)
	exp := now.Add(c.lifetime)

	if roles == nil {
		roles = []string{}
	}

	tc := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Email: email,
		Roles: roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tc)
	s, err := token.SignedString(c.secret)
	if err != nil {
		return "", nil, err
	}

	return s, &Claims{UserID: userID, Email: email, Roles: roles, IssuedAt: now, ExpiresAt: exp}, nil
}

// Validate verifies signature, expiry, issuer and audience and returns the
// embedded claims. Errors are one of common.ErrSignatureInvalid,
// common.ErrTokenExpired or common.ErrTokenMalformed.
func (c *TokenCodec) Validate(tokenString string) (*Claims, error) {
	tc := &tokenClaims{}
	now := c.now()

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, tc, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)

	if err != nil {
		return nil, c.classify(err, tc, now)
	}
	if !token.Valid {
		return nil, common.ErrTokenMalformed
	}

	userID, err := strconv.ParseInt(tc.Subject, 10, 64)
	if err != nil {
		return nil, common.ErrTokenMalformed
	}

	claims := &Claims{
		UserID: userID,
		Email:  tc.Email,
		Roles:  tc.Roles,
	}
	if claims.Roles == nil {
		claims.Roles = []string{}
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	claims.ExpiresAt = tc.ExpiresAt.Time

	return claims, nil
}

// classify maps jwt parser errors to the token error taxonomy. An expired
// payload wins over a bad signature so that expiry is always reported as such.
func (c *TokenCodec) classify(err error, tc *tokenClaims, now time.Time) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		if tc.ExpiresAt != nil && !now.Before(tc.ExpiresAt.Time) {
			return common.ErrTokenExpired
		}
		return common.ErrSignatureInvalid
	default:
		return common.ErrTokenMalformed
	}
}
