package identity

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/matchpulse/vote-engine/internal/domain"
)

const (
	// CookieID carries the opaque voter identifier
	CookieID = "voter-id"
	// CookieSignature carries the HMAC signature over the identifier
	CookieSignature = "voter-sig"

	// cookieMaxAge is one year in seconds
	cookieMaxAge = 365 * 24 * 60 * 60
)

// Issuer mints, signs, verifies, and persists anonymous voter identities.
// No server-side session state is kept; the cookie pair is the only carrier.
type Issuer struct {
	secret []byte
	secure bool
}

// NewIssuer creates an identity issuer. The secret must already be validated
// by config loading (length is a startup invariant, not a per-request check).
func NewIssuer(secret string, secure bool) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("identity signing secret is empty")
	}
	return &Issuer{secret: []byte(secret), secure: secure}, nil
}

// EphemeralSecret generates a random signing secret for debug runs without a
// configured one. Identities signed with it die with the process.
func EphemeralSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("failed to generate ephemeral secret: %v", err))
	}
	return hex.EncodeToString(buf)
}

// Mint generates a fresh random 128-bit voter identifier
func (i *Issuer) Mint() domain.VoterID {
	return domain.VoterID(uuid.NewString())
}

// Sign computes the URL-safe HMAC-SHA256 signature over the identifier.
// Deterministic for a given identity and secret.
func (i *Issuer) Sign(id domain.VoterID) string {
	h := hmac.New(sha256.New, i.secret)
	h.Write([]byte(id))
	return strings.TrimRight(base64.URLEncoding.EncodeToString(h.Sum(nil)), "=")
}

// Verify recomputes the expected signature and compares in constant time.
// Total function: malformed or empty input returns false, never an error.
func (i *Issuer) Verify(id domain.VoterID, signature string) bool {
	if id == "" || signature == "" {
		return false
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return false
	}
	expected := i.Sign(id)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// Resolve extracts a verified identity from the request cookies without
// minting. Returns ok=false when the cookie pair is absent, malformed, or
// fails verification.
func (i *Issuer) Resolve(r *http.Request) (domain.VoterID, bool) {
	idCookie, err := r.Cookie(CookieID)
	if err != nil {
		return "", false
	}
	sigCookie, err := r.Cookie(CookieSignature)
	if err != nil {
		return "", false
	}

	id := domain.VoterID(idCookie.Value)
	if !i.Verify(id, sigCookie.Value) {
		return "", false
	}
	return id, true
}

// ResolveOrMint returns the verified identity from the request, or mints a
// fresh one. Absence or corruption of cookies degrades to a new anonymous
// voter; this function never fails.
func (i *Issuer) ResolveOrMint(r *http.Request) (id domain.VoterID, isNew bool) {
	if existing, ok := i.Resolve(r); ok {
		return existing, false
	}
	return i.Mint(), true
}

// Persist writes the identity and its signature back to the client as two
// long-lived cookies. Only called for newly minted identities to avoid
// needless cookie churn.
func (i *Issuer) Persist(c *gin.Context, id domain.VoterID) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieID, string(id), cookieMaxAge, "/", "", i.secure, true)
	c.SetCookie(CookieSignature, i.Sign(id), cookieMaxAge, "/", "", i.secure, true)
}
