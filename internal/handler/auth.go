package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"knowmystatus/internal/auth"
	"knowmystatus/internal/teacher"
)

// ---------- Auth ----------

func (h *Handler) Register(c *gin.Context) {
	var req teacher.NewTeacher
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All required fields must be provided", "detail": err.Error()})
		return
	}
	t, err := h.teachers.Register(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, "Internal server error")
		return
	}
	tokens, err := h.issueTokens(c, t)
	if err != nil {
		h.fail(c, err, "Internal server error")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":       "Teacher registered successfully",
		"teacher":       t,
		"token":         tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}
	t, err := h.teachers.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err, "Internal server error")
		return
	}
	tokens, err := h.issueTokens(c, t)
	if err != nil {
		h.fail(c, err, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Login successful",
		"teacher":       t,
		"token":         tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp,
	})
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Refresh token required"})
		return
	}
	ctx := c.Request.Context()
	claims, err := h.issuer.Parse(req.RefreshToken, auth.TypeRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		return
	}
	active, err := h.tokens.RefreshTokenActive(ctx, req.RefreshToken)
	if err != nil {
		h.fail(c, err, "Internal server error")
		return
	}
	if !active {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		return
	}
	t, err := h.teachers.Get(ctx, claims.TeacherID())
	if errors.Is(err, teacher.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		return
	}
	if err != nil {
		h.fail(c, err, "Internal server error")
		return
	}
	if err := h.tokens.RevokeRefreshToken(ctx, req.RefreshToken); err != nil {
		h.fail(c, err, "Internal server error")
		return
	}
	tokens, err := h.issueTokens(c, t)
	if err != nil {
		h.fail(c, err, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) issueTokens(c *gin.Context, t teacher.Teacher) (auth.TokenPair, error) {
	tokens, err := h.issuer.Issue(t.ID, t.Email)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if err := h.tokens.SaveRefreshToken(c.Request.Context(), t.ID, tokens.RefreshToken, tokens.RefreshExp); err != nil {
		return auth.TokenPair{}, err
	}
	h.log.Debug("tokens issued", zap.String("teacher_id", t.ID))
	return tokens, nil
}

func (h *Handler) Profile(c *gin.Context) {
	t, err := h.teachers.Get(c.Request.Context(), teacherID(c))
	if err != nil {
		h.fail(c, err, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"teacher": t})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req teacher.Update
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.teachers.Update(c.Request.Context(), teacherID(c), req)
	if err != nil {
		h.fail(c, err, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "teacher": t})
}
