// Package auth issues the credentials of a battle: per-role access tokens,
// one-time login codes and signed session tokens.
package auth

import (
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

const (
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength  = 8

	// CodeTTL is how long a one-time code stays redeemable.
	CodeTTL = 10 * time.Minute
	// SessionTTL is the lifetime of a session token.
	SessionTTL = 12 * time.Hour
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

var codeRegex = regexp.MustCompile("^[A-Z0-9]{8}$")

// NewOneTimeCode returns an 8 character code drawn from [A-Z0-9].
func NewOneTimeCode() (string, error) {
	b := make([]byte, codeLength)
	limit := big.NewInt(int64(len(codeCharset)))
	for i := range b {
		n, err := crand.Int(crand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b[i] = codeCharset[n.Int64()]
	}
	return string(b), nil
}

func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidCode reports whether s (already normalized) has the code shape.
func ValidCode(s string) bool {
	return codeRegex.MatchString(s)
}

// NewAccessToken returns a random 32 hex character token for role links.
func NewAccessToken() (string, error) {
	b := make([]byte, 16)
	if _, err := crand.Read(b); err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewAccessTokens returns one access token per role.
func NewAccessTokens() (map[game.Role]string, error) {
	out := make(map[game.Role]string, 3)
	for _, r := range []game.Role{game.RoleAdmin, game.RolePlayer, game.RoleSpectator} {
		tok, err := NewAccessToken()
		if err != nil {
			return nil, err
		}
		out[r] = tok
	}
	return out, nil
}

// Claims identify who a session belongs to.
type Claims struct {
	BattleID string    `json:"bid"`
	Role     game.Role `json:"role"`
	Name     string    `json:"name,omitempty"`
	PlayerID string    `json:"pid,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 session tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner uses secret as the HMAC key. An empty secret gets a random
// in-memory key, so sessions do not survive a restart.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := crand.Read(key); err != nil {
			return nil, errors.New("failed to generate dev session secret")
		}
	}
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &Signer{secret: key, ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the signer's time source.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

func (s *Signer) Issue(battleID string, role game.Role, name, playerID string) (string, error) {
	now := s.now()
	claims := Claims{
		BattleID: battleID,
		Role:     role,
		Name:     name,
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(role) + ":" + battleID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies token and returns its claims.
func (s *Signer) Parse(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.Role.Valid() || claims.BattleID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
