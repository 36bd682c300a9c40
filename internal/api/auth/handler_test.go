package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bot-access/internal/app/http/middleware"
	"bot-access/internal/domain/users"
	"bot-access/internal/identity"
)

var secret = []byte("auth-secret")

type fakeFinder struct {
	byEmail map[string]*users.User
	err     error
}

func (f fakeFinder) FindByEmail(_ context.Context, email string) (*users.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, identity.ErrNotFound
}

func hashed(t *testing.T, pw string) *string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	s := string(b)
	return &s
}

func newRouter(f UserFinder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(f, secret, log)

	r := gin.New()
	r.Use(middleware.Sessions(middleware.NewSessionStore("0123456789abcdef0123456789abcdef", false), log))
	r.POST("/login", h.Login)
	r.GET("/whoami", middleware.AuthMiddleware(secret), func(c *gin.Context) {
		id, _ := middleware.UserID(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "session_email": middleware.SessionEmail(c)})
	})
	return r
}

func login(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLogin_IssuesUsableToken(t *testing.T) {
	u := &users.User{ID: 12, Email: "buyer@example.com", Role: users.RoleUser, IsActive: true, Password: hashed(t, "Temp-Pass-123")}
	r := newRouter(fakeFinder{byEmail: map[string]*users.User{u.Email: u}})

	w := login(r, `{"email":"Buyer@Example.com","password":"Temp-Pass-123"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+out.Token)
	req.AddCookie(cookies[len(cookies)-1])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":12,"session_email":"buyer@example.com"}`, w.Body.String())
}

func TestLogin_Rejects(t *testing.T) {
	active := &users.User{ID: 1, Email: "a@example.com", IsActive: true, Password: hashed(t, "right")}
	noCredential := &users.User{ID: 2, Email: "b@example.com", IsActive: true}
	disabled := &users.User{ID: 3, Email: "c@example.com", Password: hashed(t, "right")}
	r := newRouter(fakeFinder{byEmail: map[string]*users.User{
		active.Email: active, noCredential.Email: noCredential, disabled.Email: disabled,
	}})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"missing password", `{"email":"a@example.com"}`, http.StatusBadRequest},
		{"bad email", `{"email":"nope","password":"x"}`, http.StatusBadRequest},
		{"wrong password", `{"email":"a@example.com","password":"wrong"}`, http.StatusUnauthorized},
		{"unknown user", `{"email":"z@example.com","password":"right"}`, http.StatusUnauthorized},
		{"not yet activated", `{"email":"b@example.com","password":"right"}`, http.StatusUnauthorized},
		{"disabled", `{"email":"c@example.com","password":"right"}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, login(r, tt.body).Code)
		})
	}

	failing := newRouter(fakeFinder{err: errors.New("db down")})
	assert.Equal(t, http.StatusInternalServerError, login(failing, `{"email":"a@example.com","password":"right"}`).Code)
}

func TestIssueToken_Expired(t *testing.T) {
	r := newRouter(fakeFinder{})
	tok, err := IssueToken(secret, &users.User{ID: 1}, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
