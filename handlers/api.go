package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/models"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/users"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/middleware"
)

var startTime = time.Now()

// APIHandler serves the authenticated /api/v1 probes
type APIHandler struct {
	usersSvc *users.Service
}

func NewAPIHandler(u *users.Service) *APIHandler { return &APIHandler{usersSvc: u} }

// Register mounts the routes on a group that already runs AuthMiddleware.
func (h *APIHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/me", h.Me)
	rg.GET("/admin/stats", middleware.RequireRole(models.RoleAdmin), h.AdminStats)
}

// Me returns the calling user. Keycloak users unknown to the account table
// are described from their claims.
func (h *APIHandler) Me(c *gin.Context) {
	sub := middleware.Subject(c)
	if u, err := h.usersSvc.GetByID(c.Request.Context(), sub); err == nil && u != nil {
		c.JSON(http.StatusOK, gin.H{"userId": u.ID, "username": u.Username, "userType": u.Role})
		return
	}
	claims := middleware.Claims(c)
	name, _ := claims["preferred_username"].(string)
	role, _ := claims["role"].(string)
	c.JSON(http.StatusOK, gin.H{"userId": sub, "username": name, "userType": role})
}

// AdminStats is the permission probe: only admins get here.
func (h *APIHandler) AdminStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"uptime": time.Since(startTime).Round(time.Second).String()})
}
