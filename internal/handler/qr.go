package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"knowmystatus/internal/qr"
	"knowmystatus/internal/teacher"
)

// ---------- QR ----------

func (h *Handler) GenerateQR(c *gin.Context) {
	code, err := h.qr.Generate(c.Request.Context(), teacherID(c))
	if err != nil {
		h.fail(c, err, "Failed to generate QR code")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "QR code generated successfully",
		"qrCodeUrl": code.URL,
		"qrData":    code.Payload,
	})
}

func (h *Handler) TeacherQR(c *gin.Context) {
	code, err := h.qr.Current(c.Request.Context(), c.Param("teacherId"))
	if err != nil {
		h.fail(c, err, "Failed to fetch QR code")
		return
	}
	c.JSON(http.StatusOK, gin.H{"teacher": code.Payload, "qrCodeUrl": code.URL})
}

func (h *Handler) MyQR(c *gin.Context) {
	code, err := h.qr.Current(c.Request.Context(), teacherID(c))
	if errors.Is(err, qr.ErrNoQRCode) {
		c.JSON(http.StatusNotFound, gin.H{"error": "QR code not generated yet", "code": CodeQRNotGenerated})
		return
	}
	if err != nil {
		h.fail(c, err, "Failed to fetch QR code")
		return
	}
	c.JSON(http.StatusOK, gin.H{"qrCodeUrl": code.URL, "qrData": code.Payload})
}

// ScanQR resolves the scanned text (or an already decoded object) to the
// teacher's live profile.
func (h *Handler) ScanQR(c *gin.Context) {
	var req struct {
		QRData json.RawMessage `json:"qrData"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "QR data is required"})
		return
	}
	raw := bytes.TrimSpace(req.QRData)
	if len(raw) == 0 || string(raw) == "null" || string(raw) == `""` {
		c.JSON(http.StatusBadRequest, gin.H{"error": "QR data is required"})
		return
	}
	profile, err := h.qr.ScanJSON(c.Request.Context(), raw, c.ClientIP())
	if err != nil {
		h.fail(c, err, "Failed to process QR scan")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "QR code scanned successfully", "teacher": profile})
}

// StudentTeacherQR streams the stored PNG of a teacher's code.
func (h *Handler) StudentTeacherQR(c *gin.Context) {
	id := c.Param("id")
	t, err := h.teachers.Get(c.Request.Context(), id)
	if err != nil && !errors.Is(err, teacher.ErrNotFound) {
		h.fail(c, err, "Failed to fetch QR code")
		return
	}
	if err != nil || t.QRCode == nil || *t.QRCode == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "QR code not available for this teacher", "code": CodeQRNotGenerated})
		return
	}

	data, err := h.readQR(c, *t.QRCode)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "QR code not available for this teacher", "code": CodeQRNotGenerated})
		return
	}
	c.Header("Content-Disposition", `inline; filename="teacher_`+t.ID+`_qr.png"`)
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", data)
}

// readQR loads a stored code. Bare file names predate object URLs and are
// read from the upload directory.
func (h *Handler) readQR(c *gin.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		rc, err := h.objects.Get(c.Request.Context(), ref)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	if h.uploadDir == "" {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(filepath.Join(h.uploadDir, filepath.Base(ref)))
}
