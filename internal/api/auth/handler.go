package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"bot-access/internal/app/http/middleware"
	"bot-access/internal/domain/users"
	"bot-access/internal/identity"
)

const tokenTTL = 24 * time.Hour

type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*users.User, error)
}

type Handler struct {
	users  UserFinder
	secret []byte
	log    *slog.Logger
	now    func() time.Time
}

func NewHandler(u UserFinder, secret []byte, log *slog.Logger) *Handler {
	return &Handler{users: u, secret: secret, log: log, now: time.Now}
}

// Login exchanges the credential mailed after the first purchase for a
// bearer token and remembers the email in the session for checkout.
func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	user, err := h.users.FindByEmail(c.Request.Context(), users.NormalizeEmail(input.Email))
	if errors.Is(err, identity.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		middleware.Logger(c, h.log).Error("login lookup", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not sign in"})
		return
	}

	if !user.HasCredential() || !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	tokenString, err := IssueToken(h.secret, user, h.now().Add(tokenTTL))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	if err := middleware.SetSessionEmail(c, user.Email); err != nil {
		middleware.Logger(c, h.log).Warn("save session email", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"token": tokenString})
}

// IssueToken signs the claims AuthMiddleware reads.
func IssueToken(secret []byte, user *users.User, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
		"exp":     expiresAt.Unix(),
	})
	return token.SignedString(secret)
}
