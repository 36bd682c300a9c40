package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	SessionName = "bot_access"

	sessionKey          = "session"
	sessionEmail        = "email"
	sessionSelectedPlan = "selected_plan"
)

// NewSessionStore returns a cookie-backed store signed with secret.
func NewSessionStore(secret string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Sessions loads the caller's session into the context. A cookie that fails
// to decode yields a fresh session instead of an error.
func Sessions(store sessions.Store, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := store.Get(c.Request, SessionName)
		if err != nil {
			log.Debug("session decode failed, starting fresh", "error", err)
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func session(c *gin.Context) *sessions.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*sessions.Session)
	return sess
}

func sessionString(c *gin.Context, key string) string {
	sess := session(c)
	if sess == nil {
		return ""
	}
	s, _ := sess.Values[key].(string)
	return s
}

func SessionEmail(c *gin.Context) string { return sessionString(c, sessionEmail) }

func SelectedPlan(c *gin.Context) string { return sessionString(c, sessionSelectedPlan) }

// SetSelectedPlan stores plan in the session and writes the cookie.
func SetSelectedPlan(c *gin.Context, plan string) error {
	sess := session(c)
	if sess == nil {
		return http.ErrNoCookie
	}
	sess.Values[sessionSelectedPlan] = plan
	return sess.Save(c.Request, c.Writer)
}

// SetSessionEmail is used after sign-in to remember the payer's address.
func SetSessionEmail(c *gin.Context, email string) error {
	sess := session(c)
	if sess == nil {
		return http.ErrNoCookie
	}
	sess.Values[sessionEmail] = email
	return sess.Save(c.Request, c.Writer)
}
