package handlers

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"ataryouth/internal/apperror"
	"ataryouth/internal/ids"
	"ataryouth/internal/middleware"
	"ataryouth/internal/models"
	"ataryouth/internal/service"
	"ataryouth/internal/validation"
)

const photoField = "profilePhoto"

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone" binding:"required,ssphone"`
	Password    string `json:"password" binding:"required,min=6,max=72"`
	FullName    string `json:"full_name" binding:"required"`
	Gender      string `json:"gender" binding:"required,oneof=male female other"`
	DateOfBirth string `json:"date_of_birth" binding:"required,datetime=2006-01-02"`
	County      string `json:"county" binding:"required"`
	Payam       string `json:"payam" binding:"required"`
}

func (h HandlerSet) RegisterAccount(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, validation.FormatValidationError(err))
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:       req.Email,
		Phone:       req.Phone,
		Password:    req.Password,
		FullName:    req.FullName,
		Gender:      req.Gender,
		DateOfBirth: req.DateOfBirth,
		County:      req.County,
		Payam:       req.Payam,
	})
	if err != nil {
		// Duplicate registrations answer 400, not 409.
		if apperror.KindOf(err) == apperror.KindConflict {
			h.respondErrorStatus(c, http.StatusBadRequest, err)
			return
		}
		h.respondError(c, err)
		return
	}

	message := "Registration successful! Please login to continue."
	if result.Status == models.UserStatusPending {
		message = "Registration successful! Your account is pending approval."
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"message":  message,
		"status":   result.Status,
		"redirect": "/login",
	})
}

type loginRequest struct {
	// Email also accepts a phone number.
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password required")
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Identifier: req.Email,
		Password:   req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Login successful",
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"user":      result.User,
	})
}

func (h HandlerSet) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		h.respondError(c, apperror.Auth("Access token required"))
		return
	}

	user, err := h.auth.GetProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// profileRequest binds both multipart forms and JSON bodies.
type profileRequest struct {
	FullName    string `json:"full_name" form:"full_name"`
	Gender      string `json:"gender" form:"gender"`
	DateOfBirth string `json:"date_of_birth" form:"date_of_birth"`
	County      string `json:"county" form:"county"`
	Payam       string `json:"payam" form:"payam"`
	Bio         string `json:"bio" form:"bio"`
	Email       string `json:"email" form:"email" binding:"omitempty,email"`
	Phone       string `json:"phone" form:"phone"`
}

func (h HandlerSet) UpdateProfile(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		h.respondError(c, apperror.Auth("Access token required"))
		return
	}

	var req profileRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, validation.FormatValidationError(err))
		return
	}

	photo, err := h.receivePhoto(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.profiles.UpdateProfile(c.Request.Context(), claims.UserID, service.ProfileInput{
		FullName:    req.FullName,
		Gender:      req.Gender,
		DateOfBirth: req.DateOfBirth,
		County:      req.County,
		Payam:       req.Payam,
		Bio:         req.Bio,
		Email:       req.Email,
		Phone:       req.Phone,
		Photo:       photo,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	body := gin.H{
		"success":     true,
		"message":     "Profile updated successfully",
		"user":        result.User,
		"photoStatus": result.PhotoStage.String(),
	}
	if result.Warning != "" {
		body["warning"] = result.Warning
	}
	c.JSON(http.StatusOK, body)
}

// receivePhoto writes the optional upload to the temp dir. The profile
// service owns the file from then on.
func (h HandlerSet) receivePhoto(c *gin.Context) (*service.PhotoUpload, error) {
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return nil, nil
	}
	fh, err := c.FormFile(photoField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Validation("Invalid profile photo upload")
	}

	path := filepath.Join(h.cfg.Storage.TmpDir, "upload-"+ids.New())
	if err := c.SaveUploadedFile(fh, path); err != nil {
		return nil, apperror.Wrap(apperror.KindUnexpected, "Failed to update profile", err)
	}
	return &service.PhotoUpload{Path: path, Size: fh.Size}, nil
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6,max=72"`
}

func (h HandlerSet) UpdatePassword(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		h.respondError(c, apperror.Auth("Access token required"))
		return
	}

	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, validation.FormatValidationError(err))
		return
	}

	if err := h.auth.UpdatePassword(c.Request.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Password updated successfully. Please login again.",
	})
}
