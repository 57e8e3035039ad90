package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ataryouth/internal/apperror"
	"ataryouth/internal/middleware"
	"ataryouth/internal/models"
	"ataryouth/internal/validation"
)

func (h HandlerSet) DashboardStats(c *gin.Context) {
	stats, err := h.admin.DashboardStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// ListUsers serves every account unless page or perPage is given.
func (h HandlerSet) ListUsers(c *gin.Context) {
	var page models.Page
	for param, dst := range map[string]*int{"page": &page.Number, "perPage": &page.PerPage} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			badRequest(c, "Invalid pagination")
			return
		}
		*dst = v
	}
	if page.Number > 0 && page.PerPage == 0 {
		page.PerPage = 20
	}

	list, err := h.admin.ListUsers(c.Request.Context(), page)
	if err != nil {
		h.respondError(c, err)
		return
	}

	body := gin.H{
		"success": true,
		"users":   list.Users,
		"total":   list.Total,
	}
	if page.Limited() {
		body["page"] = list.Page
		body["perPage"] = list.PerPage
	}
	c.JSON(http.StatusOK, body)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h HandlerSet) SetUserStatus(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		h.respondError(c, apperror.Auth("Access token required"))
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, validation.FormatValidationError(err))
		return
	}

	message, err := h.admin.SetUserStatus(c.Request.Context(), claims.UserID, c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}
