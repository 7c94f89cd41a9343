package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"knowmystatus/internal/auth"
	"knowmystatus/internal/objectstore"
	"knowmystatus/internal/qr"
	"knowmystatus/internal/qrcode"
	"knowmystatus/internal/teacher"
)

// TokenStore tracks issued refresh tokens for rotation.
type TokenStore interface {
	SaveRefreshToken(ctx context.Context, teacherID, token string, expiresAt time.Time) error
	RefreshTokenActive(ctx context.Context, token string) (bool, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators of a Handler.
type Deps struct {
	Teachers  *teacher.Service
	QR        *qr.Service
	Issuer    *auth.Issuer
	Tokens    TokenStore
	Objects   objectstore.Store
	UploadDir string
	Health    map[string]HealthCheck
	Log       *zap.Logger
}

// Handler serves the REST API. Each method handles one route.
type Handler struct {
	teachers  *teacher.Service
	qr        *qr.Service
	issuer    *auth.Issuer
	tokens    TokenStore
	objects   objectstore.Store
	uploadDir string
	health    map[string]HealthCheck
	log       *zap.Logger
}

func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Handler{
		teachers:  d.Teachers,
		qr:        d.QR,
		issuer:    d.Issuer,
		tokens:    d.Tokens,
		objects:   d.Objects,
		uploadDir: d.UploadDir,
		health:    d.Health,
		log:       d.Log,
	}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// fail writes the JSON error response for err. Unexpected errors are logged
// and reported with the generic message.
// Stable error codes carried next to the human-readable message so clients
// need not match on wording.
const (
	CodeValidation         = "validation_failed"
	CodeTeacherNotFound    = "teacher_not_found"
	CodeEmailTaken         = "email_taken"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidQR          = "invalid_qr"
	CodeQRNotGenerated     = "qr_not_generated"
	CodeInternal           = "internal"
)

func (h *Handler) fail(c *gin.Context, err error, generic string) {
	var verr *teacher.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "code": CodeValidation, "fields": verr.Fields})
	case errors.Is(err, teacher.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Teacher not found", "code": CodeTeacherNotFound})
	case errors.Is(err, teacher.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Teacher with this email already exists", "code": CodeEmailTaken})
	case errors.Is(err, teacher.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password", "code": CodeInvalidCredentials})
	case errors.Is(err, qrcode.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid QR code data", "code": CodeInvalidQR})
	case errors.Is(err, qr.ErrNoQRCode):
		c.JSON(http.StatusNotFound, gin.H{"error": "QR code not generated for this teacher", "code": CodeQRNotGenerated})
	default:
		h.log.Error(generic, zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": generic, "code": CodeInternal})
	}
}

func teacherID(c *gin.Context) string {
	claims, _ := auth.ClaimsFrom(c)
	return claims.TeacherID()
}

func listings(ts []teacher.Teacher, withQR bool) []teacher.Listing {
	out := make([]teacher.Listing, 0, len(ts))
	for _, t := range ts {
		l := t.Listing()
		if !withQR {
			l.QRCode = nil
		}
		out = append(out, l)
	}
	return out
}
