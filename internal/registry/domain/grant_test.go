package domain

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	apperrors "github.com/typemint/typemint/internal/platform/errors"
)

func newGrantFixture(t *testing.T, now time.Time) (MintGrantConfig, ed25519.PrivateKey) {
	t.Helper()
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg := MintGrantConfig{
		Issuer:   "typemint-operator",
		Audience: "typemint-registry",
		Key:      publicKey,
		Now:      func() time.Time { return now },
	}
	return cfg, privateKey
}

func TestValidateMintGrantAcceptsSignedGrant(t *testing.T) {
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	cfg, privateKey := newGrantFixture(t, now)
	expected := MintGrantExpectation{Creator: "creator-1", Collection: "personality-archetypes"}

	grant, err := SignMintGrant(privateKey, cfg, expected, "grant-1", time.Hour)
	if err != nil {
		t.Fatalf("sign grant: %v", err)
	}

	claims, err := ValidateMintGrant(grant, expected, cfg)
	if err != nil {
		t.Fatalf("validate grant: %v", err)
	}
	if claims.Creator != "creator-1" {
		t.Fatalf("expected creator claim, got %q", claims.Creator)
	}
	if claims.Collection != "personality-archetypes" {
		t.Fatalf("expected collection claim, got %q", claims.Collection)
	}
	if claims.JWTID != "grant-1" {
		t.Fatalf("expected jti claim, got %q", claims.JWTID)
	}
	if !claims.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry %v, got %v", now.Add(time.Hour), claims.ExpiresAt)
	}
}

func TestValidateMintGrantRejectsEmptyGrant(t *testing.T) {
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	cfg, _ := newGrantFixture(t, now)

	_, err := ValidateMintGrant("  ", MintGrantExpectation{}, cfg)
	if apperrors.CodeOf(err) != apperrors.CodeMintGrantInvalid {
		t.Fatalf("expected invalid grant code, got %v", apperrors.CodeOf(err))
	}
}

func TestValidateMintGrantRejectsExpiredGrant(t *testing.T) {
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	cfg, privateKey := newGrantFixture(t, now)
	expected := MintGrantExpectation{Creator: "creator-1", Collection: "personality-archetypes"}

	grant, err := SignMintGrant(privateKey, cfg, expected, "grant-1", time.Hour)
	if err != nil {
		t.Fatalf("sign grant: %v", err)
	}

	cfg.Now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = ValidateMintGrant(grant, expected, cfg)
	if apperrors.CodeOf(err) != apperrors.CodeMintGrantExpired {
		t.Fatalf("expected expired grant code, got %v", apperrors.CodeOf(err))
	}
}

func TestValidateMintGrantRejectsWrongSigner(t *testing.T) {
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	cfg, _ := newGrantFixture(t, now)
	otherCfg, otherKey := newGrantFixture(t, now)
	otherCfg.Issuer = cfg.Issuer
	otherCfg.Audience = cfg.Audience
	expected := MintGrantExpectation{Creator: "creator-1", Collection: "personality-archetypes"}

	grant, err := SignMintGrant(otherKey, otherCfg, expected, "grant-1", time.Hour)
	if err != nil {
		t.Fatalf("sign grant: %v", err)
	}

	_, err = ValidateMintGrant(grant, expected, cfg)
	if apperrors.CodeOf(err) != apperrors.CodeMintGrantInvalid {
		t.Fatalf("expected invalid grant code, got %v", apperrors.CodeOf(err))
	}
}

func TestValidateMintGrantRejectsClaimMismatches(t *testing.T) {
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	cfg, privateKey := newGrantFixture(t, now)
	expected := MintGrantExpectation{Creator: "creator-1", Collection: "personality-archetypes"}

	grant, err := SignMintGrant(privateKey, cfg, expected, "grant-1", time.Hour)
	if err != nil {
		t.Fatalf("sign grant: %v", err)
	}

	tests := []struct {
		name     string
		expected MintGrantExpectation
	}{
		{name: "creator mismatch", expected: MintGrantExpectation{Creator: "creator-2", Collection: "personality-archetypes"}},
		{name: "collection mismatch", expected: MintGrantExpectation{Creator: "creator-1", Collection: "other-collection"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateMintGrant(grant, tc.expected, cfg)
			if apperrors.CodeOf(err) != apperrors.CodeMintGrantMismatch {
				t.Fatalf("expected mismatch code, got %v", apperrors.CodeOf(err))
			}
		})
	}
}

func TestValidateMintGrantRejectsIssuerMismatch(t *testing.T) {
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	cfg, privateKey := newGrantFixture(t, now)
	expected := MintGrantExpectation{Creator: "creator-1", Collection: "personality-archetypes"}

	signCfg := cfg
	signCfg.Issuer = "someone-else"
	grant, err := SignMintGrant(privateKey, signCfg, expected, "grant-1", time.Hour)
	if err != nil {
		t.Fatalf("sign grant: %v", err)
	}

	_, err = ValidateMintGrant(grant, expected, cfg)
	if apperrors.CodeOf(err) != apperrors.CodeMintGrantMismatch {
		t.Fatalf("expected mismatch code, got %v", apperrors.CodeOf(err))
	}
}
