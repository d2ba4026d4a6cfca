package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/command"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/heartbeat"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/reminder"
)

var msk = time.FixedZone("MSK", 3*60*60)

type fakeScheduler struct {
	mu      sync.Mutex
	now     time.Time
	pending []reminder.Pending
	err     error
}

func (f *fakeScheduler) Schedule(_ context.Context, fireAt time.Time, text string) (reminder.Pending, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return reminder.Pending{}, f.err
	}
	if !fireAt.After(f.now) {
		return reminder.Pending{}, reminder.ValidationError("Время должно быть в будущем.")
	}
	p := reminder.Pending{
		ID:     reminder.NewID(),
		FireAt: fireAt,
		Text:   text,
		State:  reminder.StateScheduled,
		Source: reminder.SourceAdHoc,
	}
	f.pending = append(f.pending, p)
	return p, nil
}

func (f *fakeScheduler) Pending() []reminder.Pending {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]reminder.Pending(nil), f.pending...)
}

func (f *fakeScheduler) Location() *time.Location { return msk }

func setup() (*gin.Engine, *fakeScheduler) {
	gin.SetMode(gin.TestMode)
	sched := &fakeScheduler{now: time.Date(2026, 10, 19, 12, 0, 0, 0, msk)}
	return InitRoutes(sched, nil), sched
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateReminder(t *testing.T) {
	router, sched := setup()

	w := do(router, http.MethodPost, "/api/v1/reminders", `{"date":"2026-10-20","time":"11:36","text":"Выпить воды"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp ReminderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "Выпить воды", resp.Text)
	assert.Equal(t, "scheduled", resp.State)
	assert.True(t, resp.FireAt.Equal(time.Date(2026, 10, 20, 11, 36, 0, 0, msk)))
	assert.Len(t, sched.Pending(), 1)
}

func TestCreateReminderRejected(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		schErr  error
		status  int
		message string
	}{
		{"past time", `{"date":"2026-10-01","time":"10:00","text":"x"}`, nil, http.StatusBadRequest, "Время должно быть в будущем."},
		{"bad time", `{"date":"2026-10-20","time":"noon"}`, nil, http.StatusBadRequest, command.MsgUsage},
		{"missing date", `{"time":"10:00"}`, nil, http.StatusBadRequest, command.MsgUsage},
		{"not json", `date=2026-10-20`, nil, http.StatusBadRequest, command.MsgUsage},
		{"internal", `{"date":"2026-10-20","time":"10:00"}`, errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router, sched := setup()
			sched.err = tc.schErr

			w := do(router, http.MethodPost, "/api/v1/reminders", tc.body)
			assert.Equal(t, tc.status, w.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.message, resp.Error)
			assert.Empty(t, sched.Pending())
		})
	}
}

func TestListReminders(t *testing.T) {
	router, _ := setup()

	w := do(router, http.MethodGet, "/api/v1/reminders", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	do(router, http.MethodPost, "/api/v1/reminders", `{"date":"2026-10-20","time":"11:36"}`)
	w = do(router, http.MethodGet, "/api/v1/reminders", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list []ReminderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "adhoc", list[0].Source)
}

func TestHealth(t *testing.T) {
	router, _ := setup()
	w := do(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"remindbot","pending":0}`, w.Body.String())
}

func TestHealthDegraded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sched := &fakeScheduler{now: time.Date(2026, 10, 19, 12, 0, 0, 0, msk)}
	st := heartbeat.Status{Healthy: false, Failures: map[string]string{"logstore": "breaker is open"}}
	router := InitRoutes(sched, func() heartbeat.Status { return st })

	w := do(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status    string           `json:"status"`
		Heartbeat heartbeat.Status `json:"heartbeat"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "breaker is open", body.Heartbeat.Failures["logstore"])
}

func TestServerShutdown(t *testing.T) {
	router, _ := setup()
	srv := NewServer("127.0.0.1:0", router)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not stop")
	}
}
