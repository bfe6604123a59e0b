package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/chacha20poly1305"
)

// The session lives entirely in one sealed browser cookie: access token,
// refresh token and the cached user profile, encrypted+authenticated with a
// key derived from SESSION_SECRET. There is no server-side session table.

const (
	sessionCookie = "shoutme_session"
	sessionMaxAge = 30 * 24 * 60 * 60 // match the refresh token's useful life

	ctxSessionKey = "session"
)

func sessionKey() []byte {
	sum := sha256.Sum256([]byte(os.Getenv("SESSION_SECRET")))
	return sum[:]
}

func seal(plain []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(sessionKey())
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, plain, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func openSealed(value string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(sessionKey())
	if err != nil {
		return nil, err
	}
	if len(raw) < aead.NonceSize() {
		return nil, errors.New("sealed value too short")
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

// SaveSession writes the sealed session cookie.
func SaveSession(c *gin.Context, sess *Session) error {
	plain, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	value, err := seal(plain)
	if err != nil {
		return err
	}
	c.SetCookie(sessionCookie, value, sessionMaxAge, "/", "", false, true)
	return nil
}

// LoadSession returns the stored session, or nil when the cookie is absent,
// tampered with, or unreadable. A broken cookie is treated the same as being
// signed out.
func LoadSession(c *gin.Context) *Session {
	value, err := c.Cookie(sessionCookie)
	if err != nil || value == "" {
		return nil
	}
	plain, err := openSealed(value)
	if err != nil {
		return nil
	}
	var sess Session
	if err := json.Unmarshal(plain, &sess); err != nil {
		return nil
	}
	if sess.Access == "" {
		return nil
	}
	return &sess
}

// ClearSession deletes the cookie. Access, refresh and user go together.
func ClearSession(c *gin.Context) {
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
}

// SessionMiddleware loads the session once per request so pages read it from
// the gin context instead of poking at storage themselves.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sess := LoadSession(c); sess != nil {
			c.Set(ctxSessionKey, sess)
		}
		c.Next()
	}
}

// CurrentSession returns the request's session, nil when signed out.
func CurrentSession(c *gin.Context) *Session {
	v, ok := c.Get(ctxSessionKey)
	if !ok {
		return nil
	}
	sess, ok := v.(*Session)
	if !ok {
		return nil
	}
	return sess
}

// persistSession re-saves the cookie when the API client refreshed the
// access token mid-request.
func persistSession(c *gin.Context, sess *Session) {
	if sess != nil && sess.Refreshed {
		sess.Refreshed = false
		_ = SaveSession(c, sess)
	}
}

// tokenExpired does an unverified read of the access token's exp claim. The
// backend owns signature verification; we only want to know whether a refresh
// is already due before bothering the API.
func tokenExpired(raw string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
