package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeclock/internal/attendance"
	"timeclock/internal/auth"
	"timeclock/internal/payroll"
	"timeclock/internal/store"
)

type fixture struct {
	router *gin.Engine
	mem    *store.Memory
	staff  string
	other  string
}

type downChecker struct{}

func (downChecker) Healthy(context.Context) bool { return false }

func newFixture(t *testing.T, checks map[string]HealthChecker) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	att := attendance.NewService(mem, attendance.WithClock(func() time.Time { return now }))
	pay := payroll.NewService(mem, payroll.DefaultConfig(), nil)
	iss := auth.NewIssuer("timeclock", "test-key", time.Hour, 24*time.Hour)

	if checks == nil {
		checks = map[string]HealthChecker{"db": mem}
	}
	r := gin.New()
	Register(r, NewHandler(att, pay, checks, nil), iss, nil)

	staff, err := iss.Issue("staff-1", auth.RoleStaff)
	require.NoError(t, err)
	other, err := iss.Issue("student-1", "student")
	require.NoError(t, err)

	return fixture{router: r, mem: mem, staff: staff.AccessToken, other: other.AccessToken}
}

func (f fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestIngestValidation(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"ok", gin.H{"student": "s1", "timestamp": "2024-06-10T08:00:00Z", "action": "Clock In"}, http.StatusCreated},
		{"epoch millis", gin.H{"student": "s1", "timestamp": "1718020800000", "action": "Clock Out"}, http.StatusCreated},
		{"missing student", gin.H{"timestamp": "2024-06-10T08:00:00Z", "action": "Clock In"}, http.StatusBadRequest},
		{"blank student", gin.H{"student": "  ", "timestamp": "2024-06-10T08:00:00Z", "action": "Clock In"}, http.StatusBadRequest},
		{"bad timestamp", gin.H{"student": "s1", "timestamp": "yesterday", "action": "Clock In"}, http.StatusBadRequest},
		{"not json", "nope", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/v1/events", "", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestIngestStoresUppercasedAction(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPost, "/v1/events", "", gin.H{
		"student": "s1", "timestamp": "2024-06-10T08:00:00Z", "action": "clock in",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, "CLOCK IN", body["action"])
	assert.Equal(t, "form", body["source"])
	assert.NotEmpty(t, body["id"])
}

func TestStaffRoutesRequireStaffToken(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/v1/sessions/rebuild", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/v1/sessions/rebuild", f.other, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/v1/students/s1/balance", f.other, nil).Code)
}

func TestRebuildGenerateAndBalance(t *testing.T) {
	f := newFixture(t, nil)

	for _, evt := range []gin.H{
		{"student": "s1", "timestamp": "2024-06-10T08:00:00Z", "action": "Clock In"},
		{"student": "s1", "timestamp": "2024-06-10T12:00:00Z", "action": "Clock Out"},
		{"student": "s2", "timestamp": "2024-06-11T09:00:00Z", "action": "Clock Out"},
	} {
		require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/v1/events", "", evt).Code)
	}

	w := f.do(t, http.MethodPost, "/v1/sessions/rebuild?days=30", f.staff, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rebuilt := decode(t, w)
	assert.EqualValues(t, 2, rebuilt["processedGroups"])
	assert.EqualValues(t, 1, rebuilt["sessionsWritten"])
	assert.EqualValues(t, 1, rebuilt["warningsWritten"])
	assert.EqualValues(t, 30, rebuilt["daysBack"])

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	f.mem.PutPayPeriod(payroll.BuildPeriods(start, start, 20)[0])

	w = f.do(t, http.MethodPost, "/v1/payroll/2024-06-14/generate", f.staff, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	generated := decode(t, w)
	assert.Equal(t, "ok", generated["status"])
	assert.EqualValues(t, 1, generated["recordsWritten"])

	rec := f.mem.Payroll()["s1_2024-06-14"]
	assert.Equal(t, 80.0, rec.GrossPay)

	w = f.do(t, http.MethodGet, "/v1/students/s1/balance", f.staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 80, decode(t, w)["balance"])

	w = f.do(t, http.MethodGet, "/v1/students/s1/balance?since=2024-07-01", f.staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["balance"])
}

func TestRebuildRejectsBadDays(t *testing.T) {
	f := newFixture(t, nil)
	for _, q := range []string{"abc", "0", "-3"} {
		w := f.do(t, http.MethodPost, "/v1/sessions/rebuild?days="+q, f.staff, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestGenerateUnknownPeriod(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodPost, "/v1/payroll/1999-01-01/generate", f.staff, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "pay period not found", decode(t, w)["error"])
}

func TestBalanceRejectsBadSince(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/v1/students/s1/balance?since=June", f.staff, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["db"])

	f = newFixture(t, map[string]HealthChecker{"db": store.NewMemory(), "redis": downChecker{}})
	w = f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["redis"])
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2024-06-10T08:00:00Z",
		"2024-06-10T10:00:00+02:00",
		"2024-06-10 08:00:00",
		"2024-06-10T08:00:00",
		"6/10/2024 08:00:00",
		"1718006400000",
	} {
		got, err := parseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed as %s", in, got)
	}

	_, err := parseTimestamp("")
	assert.Error(t, err)
}
