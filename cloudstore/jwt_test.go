package cloudstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestJWTAuth_GenerateToken(t *testing.T) {
	jwtAuth := NewJWTAuth("test-secret")
	ownerID := "owner-123"
	deviceID := "device-456"
	duration := time.Hour

	token, err := jwtAuth.GenerateToken(ownerID, deviceID, duration)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if token == "" {
		t.Error("Generated token should not be empty")
	}

	claims, err := jwtAuth.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate generated token: %v", err)
	}
	if claims.Subject != ownerID {
		t.Errorf("Expected owner_id %s, got %s", ownerID, claims.Subject)
	}
	if claims.DeviceID != deviceID {
		t.Errorf("Expected device_id %s, got %s", deviceID, claims.DeviceID)
	}
	if claims.Issuer != "finance-app" {
		t.Errorf("Expected issuer 'finance-app', got %s", claims.Issuer)
	}

	if claims.ExpiresAt == nil {
		t.Fatal("Token should have expiration time")
	}
	timeDiff := claims.ExpiresAt.Time.Sub(time.Now().Add(duration)).Abs()
	if timeDiff > time.Second {
		t.Errorf("Token expiry differs by more than 1 second: %v", timeDiff)
	}
}

func TestJWTAuth_ValidateToken_WrongSecret(t *testing.T) {
	token, err := NewJWTAuth("secret-a").GenerateToken("owner-1", "device-1", time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := NewJWTAuth("secret-b").ValidateToken(token); err == nil {
		t.Error("Token signed with a different secret should not validate")
	}
}

func TestJWTAuth_ValidateToken_Expired(t *testing.T) {
	jwtAuth := NewJWTAuth("test-secret")
	token, err := jwtAuth.GenerateToken("owner-1", "device-1", -time.Minute)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := jwtAuth.ValidateToken(token); err == nil {
		t.Error("Expired token should not validate")
	}
}

func TestJWTAuth_GetOwnerID(t *testing.T) {
	jwtAuth := NewJWTAuth("test-secret")
	token, err := jwtAuth.GenerateToken("owner-789", "device-1", time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/v1/wallets", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	owner, err := jwtAuth.GetOwnerID(r)
	if err != nil {
		t.Fatalf("Failed to extract owner ID: %v", err)
	}
	if owner != "owner-789" {
		t.Errorf("Expected owner-789, got %s", owner)
	}

	r = httptest.NewRequest(http.MethodGet, "/v1/wallets", nil)
	if _, err := jwtAuth.GetOwnerID(r); err == nil {
		t.Error("Missing authorization header should fail")
	}
}

func TestJWTAuth_Middleware(t *testing.T) {
	jwtAuth := NewJWTAuth("test-secret")
	token, err := jwtAuth.GenerateToken("owner-1", "device-1", time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	var gotOwner, gotDevice string
	handler := jwtAuth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := identityFrom(r.Context())
		gotOwner, gotDevice = id.Owner, id.Device
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/v1/wallets", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if gotOwner != "owner-1" {
		t.Errorf("Expected owner-1 in context, got %s", gotOwner)
	}
	if gotDevice != "device-1" {
		t.Errorf("Expected device-1 in context, got %s", gotDevice)
	}

	r = httptest.NewRequest(http.MethodGet, "/v1/wallets", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for invalid token, got %d", w.Code)
	}
}

func TestIdentityFrom_MissingIdentity(t *testing.T) {
	if _, ok := identityFrom(context.Background()); ok {
		t.Fatal("Expected no identity on a bare context")
	}
}
