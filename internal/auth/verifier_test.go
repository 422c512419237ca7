package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http/httptest"
	"testing"
)

func TestTokenMode(t *testing.T) {
	v := &Verifier{Mode: "token", Token: "s3cret"}
	if err := v.VerifyAdmin("s3cret"); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if err := v.VerifyAdmin("wrong"); err == nil {
		t.Fatal("wrong token accepted")
	}
}

func TestTokenModeEmptyTokenDeniesAll(t *testing.T) {
	v := &Verifier{Mode: "token"}
	if err := v.VerifyAdmin(""); err == nil {
		t.Fatal("empty configured token must deny everything")
	}
}

func TestIsAdminHeader(t *testing.T) {
	v := &Verifier{Mode: "token", Token: "s3cret"}
	r := httptest.NewRequest("GET", "/api/v1/list-registered-rooms", nil)
	if v.IsAdmin(r) {
		t.Fatal("missing header accepted")
	}
	r.Header.Set("Authorization", "Bearer s3cret")
	if !v.IsAdmin(r) {
		t.Fatal("valid bearer rejected")
	}
}

func signHS256(t *testing.T, secret []byte, payload string) string {
	t.Helper()
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body := enc.EncodeToString([]byte(payload))
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(header + "." + body))
	return header + "." + body + "." + enc.EncodeToString(mac.Sum(nil))
}

func TestHMACMode(t *testing.T) {
	secret := []byte("topsecret")
	v := &Verifier{Mode: "hmac", HMACSecret: secret, RoleClaim: "role"}

	if err := v.VerifyAdmin(signHS256(t, secret, `{"role":"admin"}`)); err != nil {
		t.Fatalf("admin JWT rejected: %v", err)
	}
	if err := v.VerifyAdmin(signHS256(t, secret, `{"role":"viewer"}`)); err == nil {
		t.Fatal("non-admin role accepted")
	}
	if err := v.VerifyAdmin(signHS256(t, []byte("other"), `{"role":"admin"}`)); err == nil {
		t.Fatal("bad signature accepted")
	}
	if err := v.VerifyAdmin("not.a.jwt"); err == nil {
		t.Fatal("malformed JWT accepted")
	}
}
