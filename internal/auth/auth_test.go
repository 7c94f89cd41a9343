package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(now time.Time) *Issuer {
	i := NewIssuer("knowmystatus", "test-key", time.Hour, 24*time.Hour)
	i.now = func() time.Time { return now }
	return i
}

func TestIssueParse(t *testing.T) {
	now := time.Now()
	i := newTestIssuer(now)

	pair, err := i.Issue("teacher-1", "rao@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, now.Add(time.Hour), pair.AccessExp)

	claims, err := i.Parse(pair.AccessToken, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", claims.TeacherID())
	assert.Equal(t, "rao@example.com", claims.Email)
	assert.Equal(t, RoleTeacher, claims.Role)

	_, err = i.Parse(pair.RefreshToken, TypeRefresh)
	assert.NoError(t, err)

	again, err := i.Issue("teacher-1", "rao@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, again.RefreshToken)
}

func TestParseRejects(t *testing.T) {
	now := time.Now()
	i := newTestIssuer(now)
	pair, err := i.Issue("teacher-1", "rao@example.com")
	require.NoError(t, err)

	other := NewIssuer("knowmystatus", "other-key", time.Hour, time.Hour)
	foreign := NewIssuer("someone-else", "test-key", time.Hour, time.Hour)
	foreignPair, err := foreign.Issue("teacher-1", "rao@example.com")
	require.NoError(t, err)

	later := newTestIssuer(now.Add(2 * time.Hour))

	tests := []struct {
		name   string
		issuer *Issuer
		token  string
		typ    string
	}{
		{name: "wrong type", issuer: i, token: pair.RefreshToken, typ: TypeAccess},
		{name: "wrong key", issuer: other, token: pair.AccessToken, typ: TypeAccess},
		{name: "wrong issuer", issuer: i, token: foreignPair.AccessToken, typ: TypeAccess},
		{name: "expired", issuer: later, token: pair.AccessToken, typ: TypeAccess},
		{name: "garbage", issuer: i, token: "not.a.jwt", typ: TypeAccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.issuer.Parse(tt.token, tt.typ)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTeacherAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	i := newTestIssuer(time.Now())
	pair, err := i.Issue("teacher-1", "rao@example.com")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", TeacherAuth(i), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.TeacherID())
	})

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{name: "ok", header: "Bearer " + pair.AccessToken, code: http.StatusOK, body: "teacher-1"},
		{name: "lowercase scheme", header: "bearer " + pair.AccessToken, code: http.StatusOK, body: "teacher-1"},
		{name: "missing", header: "", code: http.StatusUnauthorized},
		{name: "refresh token", header: "Bearer " + pair.RefreshToken, code: http.StatusForbidden},
		{name: "basic", header: "Basic abc", code: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}
