package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"knowmystatus/internal/auth"
	"knowmystatus/internal/httpmiddleware"
)

// RouterOptions configure the HTTP surface around a Handler.
type RouterOptions struct {
	CORSOrigins     []string
	RateLimitPerMin int
	AdminAPIKey     string
	// StaticUploads serves UploadDir under /uploads when set.
	StaticUploads bool
	// TrustedProxies may set the client IP through X-Forwarded-For.
	// With none, the peer address is the client IP.
	TrustedProxies []string
}

// Router registers every route of the API.
func Router(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		h.log.Warn("invalid trusted proxies, trusting none", zap.Strings("proxies", opts.TrustedProxies), zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(h.log))
	r.Use(corsMiddleware(opts.CORSOrigins))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)
	if opts.StaticUploads && h.uploadDir != "" {
		r.Static("/uploads", h.uploadDir)
	}

	requireTeacher := auth.TeacherAuth(h.issuer)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.GET("/profile", requireTeacher, h.Profile)
		authGroup.PUT("/profile", requireTeacher, h.UpdateProfile)
	}

	qrGroup := api.Group("/qr")
	{
		qrGroup.POST("/generate", requireTeacher, h.GenerateQR)
		qrGroup.GET("/teacher/:teacherId", h.TeacherQR)
		qrGroup.GET("/my-qr", requireTeacher, h.MyQR)
		if opts.RateLimitPerMin > 0 {
			limiter := httpmiddleware.NewSimpleTokenBucket(opts.RateLimitPerMin, opts.RateLimitPerMin)
			qrGroup.POST("/scan", limiter.GinMiddleware(), h.ScanQR)
		} else {
			qrGroup.POST("/scan", h.ScanQR)
		}
	}

	teachers := api.Group("/teachers")
	{
		teachers.GET("", h.ListTeachers)
		teachers.GET("/analytics/me", requireTeacher, h.MyAnalytics)
		teachers.GET("/search/:query", h.SearchTeachers)
		teachers.GET("/department/:department", h.TeachersByDepartment)
		teachers.GET("/departments/list", h.Departments)
		teachers.GET("/:id", h.GetTeacher)
	}

	students := api.Group("/students")
	{
		students.GET("/teachers", h.ListTeachers)
		students.GET("/teacher/:id", h.GetTeacher)
		students.GET("/teacher/:id/qr", h.StudentTeacherQR)
		students.GET("/search/:query", h.SearchTeachers)
		students.GET("/department/:department", h.TeachersByDepartment)
		students.GET("/departments", h.Departments)
		students.GET("/recent-scans", h.RecentScans)
	}

	admin := api.Group("/admin", AdminKey(opts.AdminAPIKey))
	{
		admin.GET("/teachers", h.AdminTeachers)
		admin.GET("/stats", h.AdminStats)
		admin.GET("/teachers/:id", h.AdminTeacher)
		admin.DELETE("/teachers/:id", h.AdminDeleteTeacher)
		admin.PATCH("/teachers/:id/status", h.AdminSetStatus)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", AdminKeyHeader},
		ExposeHeaders: []string{"Content-Disposition", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
