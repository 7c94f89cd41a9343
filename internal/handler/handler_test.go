package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"knowmystatus/internal/auth"
	"knowmystatus/internal/objectstore"
	"knowmystatus/internal/qr"
	"knowmystatus/internal/qrcode"
	"knowmystatus/internal/queue"
	"knowmystatus/internal/scanlog"
	"knowmystatus/internal/teacher"
)

const adminKey = "admin-secret"

type env struct {
	router *gin.Engine
	repo   *teacher.MemoryRepository
}

func newEnv(t *testing.T, opts RouterOptions) env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	repo := teacher.NewMemoryRepository(nil)
	uploads := t.TempDir()
	disk, err := objectstore.NewDisk(uploads, "http://kms.test")
	require.NoError(t, err)

	q := queue.NewInMemory(16)
	go func() { _ = scanlog.NewConsumer(q, repo, zap.NewNop()).Run(ctx) }()

	teachers := teacher.NewService(repo, zap.NewNop())
	h := New(Deps{
		Teachers:  teachers,
		QR:        qr.NewService(repo, disk, scanlog.NewPublisher(q, zap.NewNop()), qrcode.NewEncoder(4), qrcode.DefaultFormatter, zap.NewNop()),
		Issuer:    auth.NewIssuer("knowmystatus", "test-key", time.Hour, 24*time.Hour),
		Tokens:    repo,
		Objects:   disk,
		UploadDir: uploads,
		Health:    map[string]HealthCheck{"db": func(context.Context) bool { return true }},
	})
	return env{router: Router(h, opts), repo: repo}
}

func (e env) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:4000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

type authResponse struct {
	Message      string          `json:"message"`
	Teacher      teacher.Teacher `json:"teacher"`
	Token        string          `json:"token"`
	RefreshToken string          `json:"refresh_token"`
}

func (e env) register(t *testing.T, name, email, dept string) authResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"name": name, "email": email, "password": "secret1", "subject": "Maths", "department": dept,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res authResponse
	decode(t, w, &res)
	return res
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	return body.Error
}

func TestRegisterLoginProfile(t *testing.T) {
	e := newEnv(t, RouterOptions{})

	reg := e.register(t, "A. Rao", "Rao@Example.com", "Science")
	assert.Equal(t, "Teacher registered successfully", reg.Message)
	assert.Equal(t, "rao@example.com", reg.Teacher.Email)
	assert.Equal(t, teacher.StatusAvailable, reg.Teacher.Status)
	assert.NotEmpty(t, reg.Token)
	assert.NotEmpty(t, reg.RefreshToken)
	assert.NotContains(t, e.do(t, http.MethodGet, "/api/auth/profile", nil, bearer(reg.Token)).Body.String(), "secret1")

	w := e.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"name": "Other", "email": "rao@example.com", "password": "secret1", "subject": "Maths", "department": "Science",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Teacher with this email already exists", errorOf(t, w))

	w = e.do(t, http.MethodPost, "/api/auth/register", map[string]any{"name": "No Email"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "rao@example.com", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", errorOf(t, w))

	w = e.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "RAO@example.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var login authResponse
	decode(t, w, &login)
	assert.Equal(t, "Login successful", login.Message)

	w = e.do(t, http.MethodGet, "/api/auth/profile", nil, bearer(login.Token))
	require.Equal(t, http.StatusOK, w.Code)
	var profile struct {
		Teacher teacher.Teacher `json:"teacher"`
	}
	decode(t, w, &profile)
	assert.Equal(t, reg.Teacher.ID, profile.Teacher.ID)
}

func TestProfileRequiresToken(t *testing.T) {
	e := newEnv(t, RouterOptions{})

	w := e.do(t, http.MethodGet, "/api/auth/profile", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Access token required", errorOf(t, w))

	w = e.do(t, http.MethodGet, "/api/auth/profile", nil, bearer("not-a-jwt"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Invalid or expired token", errorOf(t, w))

	reg := e.register(t, "A. Rao", "rao@example.com", "Science")
	w = e.do(t, http.MethodGet, "/api/auth/profile", nil, bearer(reg.RefreshToken))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	e := newEnv(t, RouterOptions{})
	reg := e.register(t, "A. Rao", "rao@example.com", "Science")

	w := e.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": reg.RefreshToken}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var pair auth.TokenPair
	decode(t, w, &pair)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEqual(t, reg.RefreshToken, pair.RefreshToken)

	w = e.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": reg.RefreshToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": pair.AccessToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t, RouterOptions{})
	reg := e.register(t, "A. Rao", "rao@example.com", "Science")

	w := e.do(t, http.MethodPut, "/api/auth/profile", map[string]any{
		"status":       "lunch",
		"status_note":  "Back after lunch",
		"status_until": "2024-03-01T13:30:00Z",
		"office":       "B-204",
		"name":         "",
	}, bearer(reg.Token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Message string          `json:"message"`
		Teacher teacher.Teacher `json:"teacher"`
	}
	decode(t, w, &res)
	assert.Equal(t, "Profile updated successfully", res.Message)
	assert.Equal(t, "A. Rao", res.Teacher.Name)
	assert.Equal(t, teacher.StatusLunch, res.Teacher.Status)
	require.NotNil(t, res.Teacher.StatusUntil)
	assert.True(t, res.Teacher.StatusUntil.Equal(time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC)))

	w = e.do(t, http.MethodPut, "/api/auth/profile", map[string]any{"status_note": nil, "available_until": ""}, bearer(reg.Token))
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &res)
	assert.Nil(t, res.Teacher.StatusNote)
	assert.Nil(t, res.Teacher.StatusUntil)
	assert.Equal(t, "B-204", *res.Teacher.Office)

	w = e.do(t, http.MethodPut, "/api/auth/profile", map[string]any{"status": "asleep"}, bearer(reg.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"fields"`)

	w = e.do(t, http.MethodPut, "/api/auth/profile", map[string]any{"status_note": strings.Repeat("n", 101)}, bearer(reg.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type qrResponse struct {
	Message   string          `json:"message"`
	QRCodeURL string          `json:"qrCodeUrl"`
	QRData    json.RawMessage `json:"qrData"`
}

func TestQRLifecycle(t *testing.T) {
	e := newEnv(t, RouterOptions{})
	reg := e.register(t, "A. Rao", "rao@example.com", "Science")
	id := reg.Teacher.ID

	w := e.do(t, http.MethodGet, "/api/qr/my-qr", nil, bearer(reg.Token))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "QR code not generated yet", errorOf(t, w))

	w = e.do(t, http.MethodGet, "/api/qr/teacher/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "QR code not generated for this teacher", errorOf(t, w))

	w = e.do(t, http.MethodGet, "/api/students/teacher/"+id+"/qr", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "QR code not available for this teacher", errorOf(t, w))

	w = e.do(t, http.MethodPost, "/api/qr/generate", nil, bearer(reg.Token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var gen qrResponse
	decode(t, w, &gen)
	assert.Equal(t, "QR code generated successfully", gen.Message)
	assert.True(t, strings.HasPrefix(gen.QRCodeURL, "http://kms.test/uploads/teachers/teacher_"+id+"_"))
	var payload qrcode.Payload
	require.NoError(t, json.Unmarshal(gen.QRData, &payload))
	assert.Equal(t, id, payload.TeacherID)
	assert.Equal(t, "A. Rao", payload.Name)

	w = e.do(t, http.MethodGet, "/api/qr/my-qr", nil, bearer(reg.Token))
	require.Equal(t, http.StatusOK, w.Code)
	var mine qrResponse
	decode(t, w, &mine)
	assert.Equal(t, gen.QRCodeURL, mine.QRCodeURL)

	w = e.do(t, http.MethodGet, "/api/qr/teacher/"+id, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var public struct {
		Teacher   qrcode.Payload `json:"teacher"`
		QRCodeURL string         `json:"qrCodeUrl"`
	}
	decode(t, w, &public)
	assert.Equal(t, payload, public.Teacher)

	w = e.do(t, http.MethodGet, "/api/students/teacher/"+id+"/qr", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="teacher_`+id+`_qr.png"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
	text, ok, err := qrcode.DecodeBytes(w.Body.Bytes())
	require.NoError(t, err)
	require.True(t, ok)
	decoded, err := qrcode.ParseText(text)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestScan(t *testing.T) {
	e := newEnv(t, RouterOptions{})
	reg := e.register(t, "A. Rao", "rao@example.com", "Science")
	id := reg.Teacher.ID

	w := e.do(t, http.MethodPost, "/api/qr/generate", nil, bearer(reg.Token))
	require.Equal(t, http.StatusOK, w.Code)
	var gen qrResponse
	decode(t, w, &gen)

	w = e.do(t, http.MethodPut, "/api/auth/profile", map[string]any{"status": "in_meeting"}, bearer(reg.Token))
	require.Equal(t, http.StatusOK, w.Code)

	type scanResponse struct {
		Message string          `json:"message"`
		Teacher teacher.Profile `json:"teacher"`
	}

	cases := []struct {
		name   string
		qrData any
	}{
		{"scanned text", string(gen.QRData)},
		{"decoded object", gen.QRData},
		{"bare identifier", id},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(t, http.MethodPost, "/api/qr/scan", map[string]any{"qrData": tc.qrData}, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var res scanResponse
			decode(t, w, &res)
			assert.Equal(t, "QR code scanned successfully", res.Message)
			assert.Equal(t, "A. Rao", res.Teacher.Name)
			require.NotNil(t, res.Teacher.Status)
			assert.Equal(t, teacher.StatusInMeeting, *res.Teacher.Status)
		})
	}

	require.Eventually(t, func() bool {
		scans, _ := e.repo.ListScans(context.Background(), id)
		return len(scans) == len(cases)
	}, 2*time.Second, 10*time.Millisecond)
	scans, err := e.repo.ListScans(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", scans[0].IPAddress)

	w = e.do(t, http.MethodGet, "/api/teachers/analytics/me", nil, bearer(reg.Token))
	require.Equal(t, http.StatusOK, w.Code)
	var a teacher.Analytics
	decode(t, w, &a)
	assert.Equal(t, len(cases), a.TotalScans)
	assert.Equal(t, len(cases), a.WeeklyScans)
	assert.Len(t, a.RecentScans, len(cases))

	w = e.do(t, http.MethodGet, "/api/students/recent-scans", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)
}

func TestScanErrors(t *testing.T) {
	e := newEnv(t, RouterOptions{})

	tests := []struct {
		name    string
		body    any
		code    int
		message string
	}{
		{"missing", map[string]any{}, http.StatusBadRequest, "QR data is required"},
		{"null", map[string]any{"qrData": nil}, http.StatusBadRequest, "QR data is required"},
		{"empty", map[string]any{"qrData": ""}, http.StatusBadRequest, "QR data is required"},
		{"json array", map[string]any{"qrData": "[1,2]"}, http.StatusBadRequest, "Invalid QR code data"},
		{"object without name", map[string]any{"qrData": map[string]any{"teacherId": "x"}}, http.StatusBadRequest, "Invalid QR code data"},
		{"number", map[string]any{"qrData": 42}, http.StatusBadRequest, "Invalid QR code data"},
		{"unknown teacher", map[string]any{"qrData": `{"teacherId":"nope","name":"Ghost"}`}, http.StatusNotFound, "Teacher not found"},
		{"unknown bare id", map[string]any{"qrData": "nope"}, http.StatusNotFound, "Teacher not found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(t, http.MethodPost, "/api/qr/scan", tc.body, nil)
			assert.Equal(t, tc.code, w.Code, w.Body.String())
			assert.Equal(t, tc.message, errorOf(t, w))
		})
	}
}

func TestScanRateLimited(t *testing.T) {
	e := newEnv(t, RouterOptions{RateLimitPerMin: 2})
	body := map[string]any{"qrData": "nope"}

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/api/qr/scan", body, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/api/qr/scan", body, nil).Code)
	w := e.do(t, http.MethodPost, "/api/qr/scan", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestScanIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	e := newEnv(t, RouterOptions{RateLimitPerMin: 2})
	body := map[string]any{"qrData": "nope"}

	limited := 0
	for i := 0; i < 20; i++ {
		w := e.do(t, http.MethodPost, "/api/qr/scan", body, map[string]string{
			"X-Forwarded-For": fmt.Sprintf("198.51.100.%d", i+1),
		})
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 18, limited)
}

func TestScanRecordsClientIP(t *testing.T) {
	cases := []struct {
		name    string
		proxies []string
		want    string
	}{
		{"untrusted peer", nil, "192.0.2.10"},
		{"trusted proxy", []string{"192.0.2.10"}, "203.0.113.7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t, RouterOptions{TrustedProxies: tc.proxies})
			id := e.register(t, "A. Rao", "rao@example.com", "Science").Teacher.ID

			w := e.do(t, http.MethodPost, "/api/qr/scan", map[string]any{"qrData": id},
				map[string]string{"X-Forwarded-For": "203.0.113.7"})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			require.Eventually(t, func() bool {
				scans, _ := e.repo.ListScans(context.Background(), id)
				return len(scans) == 1
			}, 2*time.Second, 10*time.Millisecond)
			scans, err := e.repo.ListScans(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tc.want, scans[0].IPAddress)
		})
	}
}

func TestErrorCodes(t *testing.T) {
	e := newEnv(t, RouterOptions{})
	reg := e.register(t, "A. Rao", "rao@example.com", "Science")

	codeOf := func(w *httptest.ResponseRecorder) string {
		var body struct {
			Code string `json:"code"`
		}
		decode(t, w, &body)
		return body.Code
	}

	w := e.do(t, http.MethodGet, "/api/qr/my-qr", nil, bearer(reg.Token))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeQRNotGenerated, codeOf(w))

	w = e.do(t, http.MethodGet, "/api/qr/teacher/"+reg.Teacher.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeQRNotGenerated, codeOf(w))

	w = e.do(t, http.MethodPost, "/api/qr/scan", map[string]any{"qrData": "unknown-id"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeTeacherNotFound, codeOf(w))

	w = e.do(t, http.MethodPost, "/api/qr/scan", map[string]any{"qrData": "[1,2]"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidQR, codeOf(w))

	w = e.do(t, http.MethodPost, "/api/qr/scan", map[string]any{"qrData": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, codeOf(w))

	w = e.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "rao@example.com", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeInvalidCredentials, codeOf(w))
}

func TestDirectory(t *testing.T) {
	e := newEnv(t, RouterOptions{})
	rao := e.register(t, "A. Rao", "rao@example.com", "Science")
	e.register(t, "B. Iyer", "iyer@example.com", "Arts")
	e.register(t, "C. Das", "das@example.com", "Science")

	type listResponse struct {
		Teachers []teacher.Listing `json:"teachers"`
	}
	listNames := func(path string) []string {
		w := e.do(t, http.MethodGet, path, nil, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res listResponse
		decode(t, w, &res)
		names := make([]string, 0, len(res.Teachers))
		for _, l := range res.Teachers {
			names = append(names, l.Name)
		}
		return names
	}

	assert.Equal(t, []string{"A. Rao", "B. Iyer", "C. Das"}, listNames("/api/teachers"))
	assert.Equal(t, []string{"A. Rao", "B. Iyer", "C. Das"}, listNames("/api/students/teachers"))
	assert.Equal(t, []string{"A. Rao", "C. Das"}, listNames("/api/teachers/department/Science"))
	assert.Equal(t, []string{"B. Iyer"}, listNames("/api/students/search/iyer"))
	assert.Equal(t, []string{"A. Rao", "C. Das"}, listNames("/api/teachers/search/SCIENCE"))

	w := e.do(t, http.MethodGet, "/api/teachers/departments/list", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var deps struct {
		Departments []string `json:"departments"`
	}
	decode(t, w, &deps)
	assert.Equal(t, []string{"Arts", "Science"}, deps.Departments)

	w = e.do(t, http.MethodGet, "/api/students/teacher/"+rao.Teacher.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var one struct {
		Teacher teacher.Listing `json:"teacher"`
	}
	decode(t, w, &one)
	assert.Equal(t, "rao@example.com", one.Teacher.Email)

	w = e.do(t, http.MethodGet, "/api/teachers/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Teacher not found", errorOf(t, w))

	w = e.do(t, http.MethodGet, "/api/students/recent-scans", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"teachers":[]}`, w.Body.String())
}

func TestAdmin(t *testing.T) {
	t.Run("disabled without key", func(t *testing.T) {
		e := newEnv(t, RouterOptions{})
		w := e.do(t, http.MethodGet, "/api/admin/stats", nil, map[string]string{AdminKeyHeader: ""})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	e := newEnv(t, RouterOptions{AdminAPIKey: adminKey})
	admin := map[string]string{AdminKeyHeader: adminKey}
	rao := e.register(t, "A. Rao", "rao@example.com", "Science")
	e.register(t, "B. Iyer", "iyer@example.com", "Arts")

	w := e.do(t, http.MethodGet, "/api/admin/stats", nil, map[string]string{AdminKeyHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/api/admin/teachers", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Teachers []teacher.Teacher `json:"teachers"`
		Total    int               `json:"total"`
	}
	decode(t, w, &list)
	assert.Equal(t, 2, list.Total)

	w = e.do(t, http.MethodPatch, "/api/admin/teachers/"+rao.Teacher.ID+"/status", map[string]any{
		"status": "on_leave", "status_note": "Conference",
	}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Teacher status updated successfully")

	w = e.do(t, http.MethodPatch, "/api/admin/teachers/"+rao.Teacher.ID+"/status", map[string]any{}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/api/admin/stats", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Stats teacher.Stats `json:"stats"`
	}
	decode(t, w, &stats)
	assert.Equal(t, 2, stats.Stats.Total)
	assert.Equal(t, map[string]int{teacher.StatusOnLeave: 1, teacher.StatusAvailable: 1}, stats.Stats.ByStatus)
	assert.Equal(t, map[string]int{"Science": 1, "Arts": 1}, stats.Stats.ByDepartment)

	w = e.do(t, http.MethodDelete, "/api/admin/teachers/"+rao.Teacher.ID, nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/admin/teachers/"+rao.Teacher.ID, nil, admin).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/api/admin/teachers/"+rao.Teacher.ID, nil, admin).Code)
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(Deps{
		Issuer: auth.NewIssuer("knowmystatus", "k", time.Hour, time.Hour),
		Health: map[string]HealthCheck{
			"db":    func(context.Context) bool { return true },
			"redis": func(context.Context) bool { return false },
		},
	})
	r := Router(h, RouterOptions{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","db":true,"redis":false}`, w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
