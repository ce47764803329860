package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/banlist/internal/config"
	"github.com/router-for-me/banlist/internal/models"
	"github.com/router-for-me/banlist/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Handler issues account tokens.
type Handler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewHandler constructs a Handler.
func NewHandler(db *gorm.DB, jwtCfg config.JWTConfig) *Handler {
	return &Handler{db: db, jwtCfg: jwtCfg}
}

// rejectUnknownAccount keeps unknown usernames as slow as wrong passwords.
var rejectUnknownAccount = security.RejectUnknownAccount

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login checks a username and password and returns a signed JWT.
func (h *Handler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	ctx := c.Request.Context()
	var account models.Account
	if errFind := h.db.WithContext(ctx).Where("username = ?", username).Take(&account).Error; errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			log.WithError(errFind).Error("auth: load account")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		rejectUnknownAccount(body.Password)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !security.CheckPassword(account.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !account.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "account is disabled"})
		return
	}

	token, expiresAt, errToken := security.GenerateAccountToken(h.jwtCfg.Secret, account.ID, account.Username, account.IsAdmin, h.jwtCfg.Expiry)
	if errToken != nil {
		log.WithError(errToken).Error("auth: sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	now := time.Now().UTC()
	if errUpdate := h.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", account.ID).
		Update("last_login_at", now).Error; errUpdate != nil {
		log.WithError(errUpdate).WithField("account_id", account.ID).Warn("auth: update last login")
	}

	c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}
