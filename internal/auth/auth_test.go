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

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer("timeclock", "secret", 15*time.Minute, time.Hour)

	pair, err := iss.Issue("staff-1", RoleStaff)
	require.NoError(t, err)
	assert.True(t, pair.RefreshExp.After(pair.AccessExp))

	claims, err := iss.Parse(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", claims.Subject)
	assert.Equal(t, RoleStaff, claims.Role)
	assert.Equal(t, "timeclock", claims.Issuer)
}

func TestParseRejectsWrongKeyAndIssuer(t *testing.T) {
	pair, err := NewIssuer("timeclock", "secret", time.Minute, time.Hour).Issue("s", RoleStaff)
	require.NoError(t, err)

	_, err = NewIssuer("timeclock", "other", time.Minute, time.Hour).Parse(pair.AccessToken)
	assert.Error(t, err)

	_, err = NewIssuer("elsewhere", "secret", time.Minute, time.Hour).Parse(pair.AccessToken)
	assert.ErrorIs(t, err, ErrIssuerMismatch)

	_, err = NewIssuer("", "secret", time.Minute, time.Hour).Parse(pair.AccessToken)
	assert.NoError(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	iss := NewIssuer("timeclock", "secret", time.Minute, time.Hour)
	iss.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	pair, err := iss.Issue("s", RoleStaff)
	require.NoError(t, err)

	iss.now = func() time.Time { return time.Date(2024, 6, 1, 12, 5, 0, 0, time.UTC) }
	_, err = iss.Parse(pair.AccessToken)
	assert.Error(t, err)

	claims, err := iss.Parse(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "s", claims.Subject)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	iss := NewIssuer("timeclock", "secret", time.Minute, time.Hour)

	r := gin.New()
	r.GET("/staff", Bearer(iss), RequireRole(RoleStaff), func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.String(http.StatusOK, claims.Subject)
	})

	staff, err := iss.Issue("alice", RoleStaff)
	require.NoError(t, err)
	student, err := iss.Issue("bob", "student")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer " + student.AccessToken, http.StatusForbidden},
		{"refresh token", "Bearer " + staff.RefreshToken, http.StatusUnauthorized},
		{"staff", "Bearer " + staff.AccessToken, http.StatusOK},
		{"lowercase scheme", "bearer " + staff.AccessToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/staff", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "alice", w.Body.String())
			}
		})
	}
}

func TestParseAccessRejectsRefresh(t *testing.T) {
	iss := NewIssuer("timeclock", "secret", time.Minute, time.Hour)
	pair, err := iss.Issue("alice", RoleStaff)
	require.NoError(t, err)

	claims, err := iss.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, TypeAccess, claims.Type)

	_, err = iss.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrNotAccessToken)

	claims, err = iss.Parse(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TypeRefresh, claims.Type)
}
