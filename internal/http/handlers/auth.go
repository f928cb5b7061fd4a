package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/connvault/connvault/internal/config"
	"github.com/connvault/connvault/internal/models"
	"github.com/connvault/connvault/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// flagInvalidator lets the handler drop the cached auth-enforcement flag
// after toggling it.
type flagInvalidator interface {
	Invalidate()
}

// AuthHandler serves sign-in, sign-up, and auth configuration endpoints.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
	flag   flagInvalidator
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, flag flagInvalidator) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg, flag: flag}
}

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignIn authenticates a user and returns a session token. Unknown email
// and wrong password produce the same response.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req signInRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var user models.User
	errFind := h.db.Where("email = ?", email).First(&user).Error
	if errFind != nil || !security.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, errToken := security.GenerateSessionToken(h.jwtCfg.Secret, user.ID, user.Email, user.IsSuperuser, h.jwtCfg.Expiry())
	if errToken != nil {
		log.Errorf("could not sign session token: %v", errToken)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  serializeUser(&user),
	})
}

type signUpRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Username string `json:"username"`
}

// SignUp registers a new account. Sign-up is restricted to the configured
// email domains; the very first account becomes the superuser.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and a password of at least 8 characters are required"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.Contains(email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email address"})
		return
	}
	allowed, errDomains := h.domainAllowed(email)
	if errDomains != nil {
		log.Errorf("could not check allowed domains: %v", errDomains)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "email domain is not allowed to register"})
		return
	}

	hash, errHash := security.HashPassword(req.Password)
	if errHash != nil {
		log.Errorf("could not hash password: %v", errHash)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	user := models.User{
		Email:        email,
		PasswordHash: hash,
		Username:     strings.TrimSpace(req.Username),
	}
	errCreate := h.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if errCount := tx.Model(&models.User{}).Count(&count).Error; errCount != nil {
			return errCount
		}
		user.IsSuperuser = count == 0
		return tx.Create(&user).Error
	})
	if errCreate != nil {
		if isDuplicateError(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "email is already registered"})
			return
		}
		log.Errorf("could not create user: %v", errCreate)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, serializeUser(&user))
}

// SignOut acknowledges sign-out. Sessions are stateless tokens; the client
// discards its copy.
func (h *AuthHandler) SignOut(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}

// Session returns the authenticated caller's account.
func (h *AuthHandler) Session(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	var user models.User
	if errFind := h.db.First(&user, userID).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          serializeUser(&user),
	})
}

// ToggleAuth flips the auth-enforcement flag. Superuser only; enforced by
// route middleware.
func (h *AuthHandler) ToggleAuth(c *gin.Context) {
	var enabled bool
	errToggle := h.db.Transaction(func(tx *gorm.DB) error {
		var cfg models.AppConfig
		if errFind := tx.First(&cfg, models.AppConfigID).Error; errFind != nil {
			return errFind
		}
		enabled = !cfg.EnableAuth
		return tx.Model(&models.AppConfig{}).
			Where("id = ?", models.AppConfigID).
			Update("enable_auth", enabled).Error
	})
	if errToggle != nil {
		log.Errorf("could not toggle auth flag: %v", errToggle)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.flag.Invalidate()
	c.JSON(http.StatusOK, gin.H{"enable_auth": enabled})
}

// domainAllowed checks the sign-up email against the configured domain list.
// An empty or missing list allows every domain.
func (h *AuthHandler) domainAllowed(email string) (bool, error) {
	var cfg models.AppConfig
	if errFind := h.db.First(&cfg, models.AppConfigID).Error; errFind != nil {
		return false, errFind
	}
	raw := strings.TrimSpace(cfg.AllowedDomains)
	if raw == "" {
		return true, nil
	}
	var domains []string
	if errParse := json.Unmarshal([]byte(raw), &domains); errParse != nil {
		return false, errParse
	}
	if len(domains) == 0 {
		return true, nil
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	for _, candidate := range domains {
		if strings.EqualFold(strings.TrimSpace(candidate), domain) {
			return true, nil
		}
	}
	return false, nil
}

func serializeUser(user *models.User) gin.H {
	return gin.H{
		"id":           user.ID,
		"email":        user.Email,
		"username":     user.Username,
		"is_superuser": user.IsSuperuser,
	}
}

// isDuplicateError reports whether err is a unique-constraint violation on
// either supported dialect.
func isDuplicateError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
