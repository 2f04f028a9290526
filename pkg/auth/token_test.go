package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lfgraphics/khadimemillat-backend/pkg/config"
	"github.com/lfgraphics/khadimemillat-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "khadimemillat",
		ExpirationMinutes: 60,
	}
}

func TestMintAndParseRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	buyerID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		BuyerID: buyerID,
		Role:    enums.ActorRoleBuyer,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.BuyerID != buyerID {
		t.Fatalf("expected buyer %s, got %s", buyerID, claims.BuyerID)
	}
	if claims.Role != enums.ActorRoleBuyer {
		t.Fatalf("expected buyer role, got %q", claims.Role)
	}
	if claims.ID == "" {
		t.Fatal("expected a generated jti")
	}
}

func TestMintRejectsInvalidPayload(t *testing.T) {
	cfg := testJWTConfig()

	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.ActorRoleBuyer}); err == nil {
		t.Fatal("expected error for missing buyer id")
	}
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{BuyerID: uuid.New(), Role: "vendor"}); err == nil {
		t.Fatal("expected error for unknown role")
	}

	cfg.Secret = ""
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{BuyerID: uuid.New(), Role: enums.ActorRoleBuyer}); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()

	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{
		BuyerID: uuid.New(),
		Role:    enums.ActorRoleBuyer,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()

	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		BuyerID: uuid.New(),
		Role:    enums.ActorRoleAdmin,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	cfg.Secret = "other-secret"
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected signature mismatch to be rejected")
	}
}
