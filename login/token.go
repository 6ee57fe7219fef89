package login

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is the resolved caller of a request: the minimal projection the
// gate and handlers need.
type Identity struct {
	UserID int
	Email  string
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func sessionSecret() []byte {
	s := os.Getenv("SESSION_SECRET")
	if s == "" {
		s = "dev-insecure-secret"
	}
	return []byte(s)
}

func sessionDuration(remember bool) time.Duration {
	defHours := 12
	if v := os.Getenv("SESSION_DEFAULT_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			defHours = n
		}
	}
	remDays := 30
	if v := os.Getenv("SESSION_REMEMBER_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			remDays = n
		}
	}
	if remember {
		return time.Hour * 24 * time.Duration(remDays)
	}
	return time.Hour * time.Duration(defHours)
}

// signToken issues an HS256 session token for the user.
func signToken(userID int, email string, dur time.Duration) (string, int64, error) {
	exp := time.Now().Add(dur)
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sessionSecret())
	if err != nil {
		return "", 0, err
	}
	return tok, exp.Unix(), nil
}

// SignSession mints a session token outside the login handler, for seed
// scripts and tests.
func SignSession(userID int, email string, dur time.Duration) (string, error) {
	tok, _, err := signToken(userID, email, dur)
	return tok, err
}

// parseToken verifies signature and expiry and returns the claims. A
// blacklisted jti (manual logout) is treated the same as a bad token.
func parseToken(token string) (*sessionClaims, bool) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return sessionSecret(), nil
	})
	if err != nil || !parsed.Valid {
		return nil, false
	}
	if blacklisted(claims.ID) {
		return nil, false
	}
	return &claims, true
}

// blacklist for manual logout (jti -> expiry). Not persisted; tokens expire
// on their own so the map stays small.
var (
	blacklistMu sync.Mutex
	blacklist   = map[string]time.Time{}
)

func blacklistToken(jti string, exp time.Time) {
	blacklistMu.Lock()
	defer blacklistMu.Unlock()
	for id, e := range blacklist {
		if e.Before(time.Now()) {
			delete(blacklist, id)
		}
	}
	blacklist[jti] = exp
}

func blacklisted(jti string) bool {
	blacklistMu.Lock()
	defer blacklistMu.Unlock()
	exp, ok := blacklist[jti]
	return ok && exp.After(time.Now())
}
