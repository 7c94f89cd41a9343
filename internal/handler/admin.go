package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"knowmystatus/internal/teacher"
)

// AdminKeyHeader carries the shared admin secret.
const AdminKeyHeader = "X-Admin-Key"

// AdminKey guards the admin routes. With an empty key every request is refused.
func AdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin API disabled"})
			return
		}
		got := c.GetHeader(AdminKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin key"})
			return
		}
		c.Next()
	}
}

// ---------- Admin ----------

func (h *Handler) AdminTeachers(c *gin.Context) {
	ts, err := h.teachers.List(c.Request.Context(), teacher.ListOptions{NewestFirst: true})
	if err != nil {
		h.fail(c, err, "Failed to fetch teachers")
		return
	}
	if ts == nil {
		ts = []teacher.Teacher{}
	}
	c.JSON(http.StatusOK, gin.H{"teachers": ts, "total": len(ts)})
}

func (h *Handler) AdminStats(c *gin.Context) {
	st, err := h.teachers.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to fetch statistics")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": st})
}

func (h *Handler) AdminTeacher(c *gin.Context) {
	t, err := h.teachers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to fetch teacher")
		return
	}
	c.JSON(http.StatusOK, gin.H{"teacher": t})
}

func (h *Handler) AdminDeleteTeacher(c *gin.Context) {
	if err := h.teachers.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "Failed to delete teacher")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Teacher deleted successfully"})
}

func (h *Handler) AdminSetStatus(c *gin.Context) {
	var req teacher.StatusChange
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status is required"})
		return
	}
	t, err := h.teachers.SetStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, err, "Failed to update teacher status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Teacher status updated successfully", "teacher": t})
}
