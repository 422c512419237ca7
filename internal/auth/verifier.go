// Package auth gates the admin endpoints (room registration CRUD).
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
)

// Verifier validates admin credentials. Two modes:
//   - "token": the bearer token must equal the configured admin token
//   - "hmac": the bearer token is an HS256 JWT whose role claim is "admin"
//
// With no admin token and no secret configured, every admin call is denied.
type Verifier struct {
	Mode       string
	Token      string
	HMACSecret []byte
	RoleClaim  string
}

// NewVerifier builds a verifier for the given static admin token; the HMAC
// mode is switched on via AUTH_MODE=hmac + AUTH_HMAC_SECRET.
func NewVerifier(adminToken string) *Verifier {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	if mode == "" {
		mode = "token"
	}
	return &Verifier{
		Mode:       mode,
		Token:      adminToken,
		HMACSecret: []byte(os.Getenv("AUTH_HMAC_SECRET")),
		RoleClaim:  envOr("AUTH_ROLE_CLAIM", "role"),
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

var ErrUnauthorized = errors.New("unauthorized")

// IsAdmin checks the request's bearer token.
func (v *Verifier) IsAdmin(r *http.Request) bool {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return false
	}
	return v.VerifyAdmin(strings.TrimPrefix(h, "Bearer ")) == nil
}

// VerifyAdmin validates a raw token string.
func (v *Verifier) VerifyAdmin(token string) error {
	switch v.Mode {
	case "token":
		if v.Token == "" {
			return ErrUnauthorized
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(v.Token)) != 1 {
			return ErrUnauthorized
		}
		return nil
	case "hmac":
		role, err := v.verifyHS256(token)
		if err != nil {
			return err
		}
		if !strings.EqualFold(role, "admin") {
			return ErrUnauthorized
		}
		return nil
	default:
		return ErrUnauthorized
	}
}

func (v *Verifier) verifyHS256(token string) (role string, err error) {
	if len(v.HMACSecret) == 0 {
		return "", ErrUnauthorized
	}
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return "", errors.New("invalid JWT")
	}
	headerJSON, err := b64urlDecode(segs[0])
	if err != nil {
		return "", err
	}
	payloadJSON, err := b64urlDecode(segs[1])
	if err != nil {
		return "", err
	}
	sig, err := b64urlDecode(segs[2])
	if err != nil {
		return "", err
	}
	var hdr map[string]any
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return "", err
	}
	if alg, _ := hdr["alg"].(string); alg != "HS256" {
		return "", errors.New("unsupported alg")
	}
	mac := hmac.New(sha256.New, v.HMACSecret)
	mac.Write([]byte(segs[0] + "." + segs[1]))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return "", errors.New("bad signature")
	}
	var claims map[string]any
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return "", err
	}
	role, _ = claims[v.RoleClaim].(string)
	return role, nil
}

func b64urlDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }
