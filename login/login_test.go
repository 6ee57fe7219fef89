package login

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"

	"aidash-backend/users"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTokenRoundTrip(t *testing.T) {
	token, _, err := signToken(42, "u@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, ok := parseToken(token)
	if !ok {
		t.Fatal("token did not validate")
	}
	if claims.Subject != "42" || claims.Email != "u@example.com" {
		t.Errorf("unexpected claims: subject=%s email=%s", claims.Subject, claims.Email)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, _, err := signToken(1, "u@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, ok := parseToken(token); ok {
		t.Error("expired token validated")
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, ok := parseToken(token); ok {
			t.Errorf("token %q validated", token)
		}
	}
}

func TestBlacklistedTokenRejected(t *testing.T) {
	token, _, err := signToken(7, "u@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, ok := parseToken(token)
	if !ok {
		t.Fatal("token did not validate")
	}
	blacklistToken(claims.ID, claims.ExpiresAt.Time)
	if _, ok := parseToken(token); ok {
		t.Error("blacklisted token validated")
	}
}

func resolveWith(t *testing.T, setup func(r *http.Request)) *Identity {
	t.Helper()
	var got *Identity
	r := gin.New()
	r.GET("/whoami", func(c *gin.Context) {
		got = ResolveSession(c)
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	setup(req)
	r.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestResolveSessionFromBearer(t *testing.T) {
	token, err := SignSession(3, "bearer@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ident := resolveWith(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if ident == nil || ident.UserID != 3 {
		t.Fatalf("expected user 3, got %+v", ident)
	}
}

func TestResolveSessionFromCookie(t *testing.T) {
	token, err := SignSession(4, "cookie@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ident := resolveWith(t, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	})
	if ident == nil || ident.UserID != 4 {
		t.Fatalf("expected user 4, got %+v", ident)
	}
}

func TestResolveSessionMissingCredential(t *testing.T) {
	if ident := resolveWith(t, func(r *http.Request) {}); ident != nil {
		t.Fatalf("expected nil identity, got %+v", ident)
	}
}

func TestResolveSessionMalformedCredential(t *testing.T) {
	ident := resolveWith(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer nonsense")
	})
	if ident != nil {
		t.Fatalf("expected nil identity, got %+v", ident)
	}
}

func TestRequireAuthAborts(t *testing.T) {
	r := gin.New()
	r.Use(Identify())
	r.GET("/secure", RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/secure", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	token, _ := SignSession(9, "ok@example.com", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

type stubUserStore struct {
	byEmail   *users.User
	createErr error
}

func (s *stubUserStore) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return s.byEmail, nil
}

func (s *stubUserStore) GetByID(ctx context.Context, id int) (*users.User, error) {
	return nil, nil
}

func (s *stubUserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.byEmail != nil, nil
}

func (s *stubUserStore) Create(ctx context.Context, u *users.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	u.ID = 1
	return nil
}

func postRegister(t *testing.T, store UserStore) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	NewHandler(store).RegisterRoutes(r)
	body := `{"first_name":"A","email":"dup@example.com","password":"longenough"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterDuplicateEmailRaceConflicts(t *testing.T) {
	// EmailExists saw nothing, but a concurrent registration won the insert:
	// the UNIQUE key error maps to the same 409 as the pre-check.
	store := &stubUserStore{createErr: &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}}
	if w := postRegister(t, store); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRegisterOtherInsertErrorsAre500(t *testing.T) {
	store := &stubUserStore{createErr: errors.New("connection lost")}
	if w := postRegister(t, store); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
