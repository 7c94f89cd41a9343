package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"knowmystatus/internal/teacher"
)

// RecentWindow bounds the recently scanned teacher list.
const RecentWindow = 24 * time.Hour

// ---------- Directory ----------

func (h *Handler) ListTeachers(c *gin.Context) {
	ts, err := h.teachers.List(c.Request.Context(), teacher.ListOptions{})
	if err != nil {
		h.fail(c, err, "Failed to fetch teachers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"teachers": listings(ts, true)})
}

func (h *Handler) GetTeacher(c *gin.Context) {
	t, err := h.teachers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to fetch teacher")
		return
	}
	c.JSON(http.StatusOK, gin.H{"teacher": t.Contact()})
}

func (h *Handler) SearchTeachers(c *gin.Context) {
	ts, err := h.teachers.Search(c.Request.Context(), c.Param("query"))
	if err != nil {
		h.fail(c, err, "Failed to search teachers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"teachers": listings(ts, false)})
}

func (h *Handler) TeachersByDepartment(c *gin.Context) {
	ts, err := h.teachers.List(c.Request.Context(), teacher.ListOptions{Department: c.Param("department")})
	if err != nil {
		h.fail(c, err, "Failed to fetch teachers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"teachers": listings(ts, true)})
}

func (h *Handler) Departments(c *gin.Context) {
	deps, err := h.teachers.Departments(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to fetch departments")
		return
	}
	if deps == nil {
		deps = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"departments": deps})
}

func (h *Handler) MyAnalytics(c *gin.Context) {
	a, err := h.teachers.Analytics(c.Request.Context(), teacherID(c))
	if err != nil {
		h.fail(c, err, "Failed to fetch analytics")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) RecentScans(c *gin.Context) {
	ts, err := h.teachers.RecentlyScanned(c.Request.Context(), RecentWindow)
	if err != nil {
		h.fail(c, err, "Failed to fetch recent scans")
		return
	}
	c.JSON(http.StatusOK, gin.H{"teachers": listings(ts, true)})
}
