package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/models"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/sessions"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/tokens"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/users"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/logger"
)

// LoginRequest is the first-factor login body
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// OTPRequest completes a two-factor login
type OTPRequest struct {
	UserID string `json:"userId" binding:"required"`
	Code   string `json:"code" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	blacklist   sessions.Blacklist
	issuer      *tokens.Issuer
	refreshTTL  time.Duration
}

func NewAuthHandler(u *users.Service, s *sessions.Service, bl sessions.Blacklist, iss *tokens.Issuer, refreshTTL time.Duration) *AuthHandler {
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &AuthHandler{usersSvc: u, sessionsSvc: s, blacklist: bl, issuer: iss, refreshTTL: refreshTTL}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/verify-otp", h.VerifyOTP)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
}

// Login checks the password. Accounts with a second factor get
// {otpRequired, userId} and must call /auth/verify-otp.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.usersSvc.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			logger.Infof("login failed for %q", req.Username)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}
		logger.Errorf("user lookup error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
		return
	}
	if u.HasOTP() {
		c.JSON(http.StatusOK, gin.H{"otpRequired": true, "userId": u.ID})
		return
	}
	h.issue(c, u)
}

// VerifyOTP completes login for accounts with a second factor
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.usersSvc.VerifyOTP(c.Request.Context(), req.UserID, req.Code)
	if err != nil {
		if errors.Is(err, users.ErrInvalidOTP) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid one-time code"})
			return
		}
		logger.Errorf("user lookup error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
		return
	}
	h.issue(c, u)
}

func (h *AuthHandler) issue(c *gin.Context, u *models.User) {
	rft, err := h.sessionsSvc.CreateSession(c.Request.Context(), u.ID, h.refreshTTL)
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	access, err := h.issuer.Issue(u)
	if err != nil {
		logger.Errorf("failed to sign access token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	logger.Infof("user %s (%s) logged in", u.ID, u.Role)
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  access,
		"refreshToken": rft,
		"userId":       u.ID,
		"userType":     u.Role,
		"expiresIn":    int(h.issuer.TTL().Seconds()),
	})
}

// Refresh accepts a refresh token and returns a new access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.sessionsSvc.ValidateRefresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		logger.Errorf("refresh validation error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	u, err := h.usersSvc.GetByID(c.Request.Context(), sess.UserID)
	if err != nil || u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user no longer exists"})
		return
	}
	access, err := h.issuer.Issue(u)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access, "expires_in": int(h.issuer.TTL().Seconds())})
}

// Logout invalidates the refresh token and blacklists the bearer access token
// for the rest of its lifetime.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var at string
	if n, _ := fmt.Sscanf(c.GetHeader("Authorization"), "Bearer %s", &at); n == 1 && h.blacklist != nil {
		if claims, err := h.issuer.Parse(at); err == nil && claims.ExpiresAt != nil {
			if err := h.blacklist.Add(c.Request.Context(), at, time.Until(claims.ExpiresAt.Time)); err != nil {
				logger.Errorf("failed to blacklist access token: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist access token"})
				return
			}
		}
	}

	if err := h.sessionsSvc.DeleteRefresh(c.Request.Context(), req.RefreshToken); err != nil {
		logger.Errorf("failed to remove session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
