package domain

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/typemint/typemint/internal/platform/errors"
)

// mintGrantEnv holds raw env values before post-parse validation.
type mintGrantEnv struct {
	Issuer    string `env:"TYPEMINT_MINT_GRANT_ISSUER"`
	Audience  string `env:"TYPEMINT_MINT_GRANT_AUDIENCE"`
	PublicKey string `env:"TYPEMINT_MINT_GRANT_PUBLIC_KEY"`
}

// MintGrantConfig defines how mint grants are verified. The key is held by
// the service operator and injected into the registry; revoking mint
// authority means rotating the key or letting grants expire.
type MintGrantConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// MintGrantExpectation defines the identity a mint grant must authorize.
type MintGrantExpectation struct {
	Creator    string
	Collection string
}

// MintGrantClaims captures validated mint grant claims.
type MintGrantClaims struct {
	Issuer     string
	Audience   []string
	ExpiresAt  time.Time
	NotBefore  time.Time
	IssuedAt   time.Time
	JWTID      string
	Creator    string
	Collection string
}

// mintGrantClaims is the internal claims type used for JWT parsing.
type mintGrantClaims struct {
	jwt.RegisteredClaims
	Creator    string `json:"creator"`
	Collection string `json:"collection"`
}

// LoadMintGrantConfigFromEnv reads mint grant verification configuration.
func LoadMintGrantConfigFromEnv(now func() time.Time) (MintGrantConfig, error) {
	var raw mintGrantEnv
	if err := env.Parse(&raw); err != nil {
		return MintGrantConfig{}, fmt.Errorf("parse mint grant env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return MintGrantConfig{}, fmt.Errorf("TYPEMINT_MINT_GRANT_ISSUER is required")
	}
	if audience == "" {
		return MintGrantConfig{}, fmt.Errorf("TYPEMINT_MINT_GRANT_AUDIENCE is required")
	}
	if publicKey == "" {
		return MintGrantConfig{}, fmt.Errorf("TYPEMINT_MINT_GRANT_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return MintGrantConfig{}, fmt.Errorf("decode mint grant public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return MintGrantConfig{}, fmt.Errorf("mint grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return MintGrantConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// ValidateMintGrant verifies a mint grant token and validates expected claims.
func ValidateMintGrant(grant string, expected MintGrantExpectation, cfg MintGrantConfig) (MintGrantClaims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return MintGrantClaims{}, apperrors.New(apperrors.CodeMintGrantInvalid, "mint grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return MintGrantClaims{}, errors.New("mint grant verifier is not configured")
	}

	var parsed mintGrantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return MintGrantClaims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return MintGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeMintGrantMismatch,
			"mint grant issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return MintGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeMintGrantMismatch,
			"mint grant audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}

	if parsed.ID == "" {
		return MintGrantClaims{}, apperrors.New(apperrors.CodeMintGrantInvalid, "mint grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return MintGrantClaims{}, apperrors.New(apperrors.CodeMintGrantInvalid, "mint grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return MintGrantClaims{}, apperrors.New(apperrors.CodeMintGrantExpired, "mint grant is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return MintGrantClaims{}, apperrors.New(apperrors.CodeMintGrantInvalid, "mint grant not active yet")
		}
	}

	if strings.TrimSpace(parsed.Creator) == "" || parsed.Creator != expected.Creator {
		return MintGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeMintGrantMismatch,
			"mint grant creator mismatch",
			map[string]string{"Field": "creator"},
		)
	}
	if strings.TrimSpace(parsed.Collection) == "" || parsed.Collection != expected.Collection {
		return MintGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeMintGrantMismatch,
			"mint grant collection mismatch",
			map[string]string{"Field": "collection"},
		)
	}

	claims := MintGrantClaims{
		Issuer:     parsed.Issuer,
		Audience:   []string(parsed.Audience),
		ExpiresAt:  exp,
		JWTID:      parsed.ID,
		Creator:    parsed.Creator,
		Collection: parsed.Collection,
	}
	if parsed.NotBefore != nil {
		claims.NotBefore = parsed.NotBefore.Time.UTC()
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// SignMintGrant issues a mint grant for the expected creator and collection.
// It is used by operator tooling and tests; services only verify.
func SignMintGrant(key ed25519.PrivateKey, cfg MintGrantConfig, expected MintGrantExpectation, jwtID string, ttl time.Duration) (string, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("mint grant private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	now := cfg.Now().UTC()
	claims := mintGrantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jwtID,
		},
		Creator:    expected.Creator,
		Collection: expected.Collection,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign mint grant: %w", err)
	}
	return signed, nil
}

// mapJWTError translates jwt library errors to registry errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeMintGrantInvalid, "mint grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeMintGrantInvalid, "mint grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeMintGrantInvalid, "mint grant is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
