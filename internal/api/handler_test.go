package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	testingclock "k8s.io/utils/clock/testing"

	"checkin-backend/config"
	"checkin-backend/internal/checkin"
	"checkin-backend/internal/db"
	"checkin-backend/internal/keystroke"
	"checkin-backend/internal/model"
	"checkin-backend/internal/session"
	"checkin-backend/internal/store"
)

const validBadge = "81722cf9182738"

type testEnv struct {
	router  *gin.Engine
	db      *gorm.DB
	bus     *keystroke.Bus
	clock   *testingclock.FakeClock
	workers *checkin.WorkerPool
	checkin *session.Controller
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	s := store.NewGormStore(gormDB)

	fc := testingclock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	bus := keystroke.NewBus()
	registry := session.NewRegistry()
	ctrl := session.New(bus, session.Options{Name: "checkin", IdleTimeout: 100 * time.Millisecond, Clock: fc})
	registry.Add(ctrl)
	registry.Add(session.New(bus, session.Options{Name: "enroll", IdleTimeout: 100 * time.Millisecond, Clock: fc}))
	t.Cleanup(registry.Close)

	workers := checkin.NewWorkerPool(1, s, 0)
	cfg := config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 60}
	router := NewRouter(cfg, NewHandler(s, registry, workers), nil)

	return &testEnv{router: router, db: gormDB, bus: bus, clock: fc, workers: workers, checkin: ctrl}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) scan(s string) {
	for _, r := range s {
		e.bus.Publish(keystroke.RuneEvent(r, e.clock.Now()))
	}
	e.bus.Publish(keystroke.EnterEvent(e.clock.Now()))
}

func TestSessions(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var states []session.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &states))
	require.Len(t, states, 2)
	assert.Equal(t, "checkin", states[0].Name)
	assert.Equal(t, "enroll", states[1].Name)
	assert.False(t, states[0].Enabled)

	w = env.do(http.MethodGet, "/api/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"session not found"}`, w.Body.String())

	w = env.do(http.MethodPut, "/api/sessions/checkin/enabled", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"checkin","enabled":true,"isReading":false,"lastRead":"","error":""}`, w.Body.String())
	assert.Equal(t, 1, env.bus.SubscriberCount())

	env.scan("81722CF9182738")
	w = env.do(http.MethodGet, "/api/sessions/checkin", nil)
	assert.JSONEq(t, `{"name":"checkin","enabled":true,"isReading":false,"lastRead":"81722cf9182738","error":""}`, w.Body.String())

	w = env.do(http.MethodPut, "/api/sessions/checkin/enabled", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteSessionError(t *testing.T) {
	env := newTestEnv(t)
	env.checkin.SetEnabled(true)

	env.scan("short")
	require.Equal(t, keystroke.ErrInvalidFormat.Error(), env.checkin.Err())

	w := env.do(http.MethodDelete, "/api/sessions/checkin/error", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, env.checkin.Err())

	w = env.do(http.MethodDelete, "/api/sessions/nope/error", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNormalizeBadge(t *testing.T) {
	env := newTestEnv(t)

	testCases := []struct {
		raw      string
		expected string
	}{
		{raw: "81722CF9182738", expected: `{"normalized":"81722cf9182738","valid":true,"formatted":"81722cf9182738"}`},
		{raw: "abcde12345fgh", expected: `{"normalized":"abcde12345fgh","valid":false,"formatted":"abcde-12-345fgh"}`},
		{raw: "", expected: `{"normalized":"","valid":false,"formatted":""}`},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			w := env.do(http.MethodGet, "/api/badges/normalize?raw="+tc.raw, nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tc.expected, w.Body.String())
		})
	}
}

func TestPutEmployeeBadge(t *testing.T) {
	env := newTestEnv(t)
	employee := model.Employee{Name: "Dana"}
	require.NoError(t, env.db.Create(&employee).Error)

	testCases := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{name: "Assigned", path: "/api/employees/1/badge", body: map[string]string{"badge_id": "81722CF9182738"}, status: http.StatusOK},
		{name: "Invalid badge", path: "/api/employees/1/badge", body: map[string]string{"badge_id": "123"}, status: http.StatusBadRequest},
		{name: "Missing body", path: "/api/employees/1/badge", body: map[string]string{}, status: http.StatusBadRequest},
		{name: "Bad ID", path: "/api/employees/x/badge", body: map[string]string{"badge_id": validBadge}, status: http.StatusBadRequest},
		{name: "Unknown employee", path: "/api/employees/99/badge", body: map[string]string{"badge_id": validBadge}, status: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodPut, tc.path, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}

	var stored model.Employee
	require.NoError(t, env.db.First(&stored, employee.ID).Error)
	require.NotNil(t, stored.BadgeID)
	assert.Equal(t, validBadge, *stored.BadgeID)
}

func TestGetTrainingAttendance(t *testing.T) {
	env := newTestEnv(t)
	at := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)

	employee := model.Employee{Name: "Dana"}
	require.NoError(t, env.db.Create(&employee).Error)
	training := model.Training{Title: "Forklift safety", StartsAt: at.Add(-time.Hour), EndsAt: at.Add(time.Hour)}
	require.NoError(t, env.db.Create(&training).Error)
	_, err := store.NewGormStore(env.db).RecordAttendance(context.Background(), &model.Attendance{
		TrainingID: training.ID, EmployeeID: employee.ID, Method: model.MethodNFC, CheckedInAt: at,
	})
	require.NoError(t, err)

	w := env.do(http.MethodGet, "/api/trainings/1/attendance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []attendanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Dana", got[0].EmployeeName)
	assert.Equal(t, model.MethodNFC, got[0].Method)
	assert.True(t, at.Equal(got[0].CheckedInAt))

	w = env.do(http.MethodGet, "/api/trainings/abc/attendance", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRecentCheckins(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/checkins/recent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}
