package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/ecocampus/ecocampus-server/internal/id"
)

const (
	tokenIssuer   = "ecocampus-server"
	tokenAudience = "ecocampus-web"
)

// IssuedToken is a freshly minted access token and its identity.
type IssuedToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// TokenService mints and verifies PASETO v4.local access tokens.
type TokenService struct {
	key      paseto.V4SymmetricKey
	duration time.Duration
	now      func() time.Time
}

// NewTokenService creates a token service from a raw 32-byte key.
func NewTokenService(key []byte, duration time.Duration) (*TokenService, error) {
	symmetric, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("create PASETO symmetric key: %w", err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("token duration must be positive, got %s", duration)
	}
	return &TokenService{key: symmetric, duration: duration, now: time.Now}, nil
}

// Issue creates an access token for an auth identity.
func (s *TokenService) Issue(authUserID, email string) (*IssuedToken, error) {
	now := s.now()
	expires := now.Add(s.duration)

	tokenID, err := id.Generate(id.PrefixSession)
	if err != nil {
		return nil, fmt.Errorf("generate token ID: %w", err)
	}

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetAudience(tokenAudience)
	token.SetSubject(authUserID)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(expires)
	token.SetJti(tokenID)
	//nolint:errcheck // Set only fails for unmarshalable values
	_ = token.Set("auth_user_id", authUserID)
	//nolint:errcheck // Set only fails for unmarshalable values
	_ = token.Set("email", email)

	return &IssuedToken{
		Token:     token.V4Encrypt(s.key, nil),
		TokenID:   tokenID,
		ExpiresAt: expires,
	}, nil
}

// Verify decrypts the token and checks audience, issuer and expiry.
func (s *TokenService) Verify(raw string) (*AccessClaims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.ValidAt(s.now()))

	token, err := parser.ParseV4Local(s.key, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	var claims AccessClaims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}
	return &claims, nil
}

// Duration returns the configured token lifetime.
func (s *TokenService) Duration() time.Duration {
	return s.duration
}
