package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/jobboard-api/internal/config"
	"github.com/jwalitptl/jobboard-api/internal/email"
	applicationHandler "github.com/jwalitptl/jobboard-api/internal/handler/application"
	"github.com/jwalitptl/jobboard-api/internal/handler/health"
	notificationHandler "github.com/jwalitptl/jobboard-api/internal/handler/notification"
	"github.com/jwalitptl/jobboard-api/internal/handler/prometheus"
	realtimeHandler "github.com/jwalitptl/jobboard-api/internal/handler/realtime"
	"github.com/jwalitptl/jobboard-api/internal/matching"
	"github.com/jwalitptl/jobboard-api/internal/middleware"
	"github.com/jwalitptl/jobboard-api/internal/model"
	"github.com/jwalitptl/jobboard-api/internal/realtime"
	applicationService "github.com/jwalitptl/jobboard-api/internal/service/application"
	notificationService "github.com/jwalitptl/jobboard-api/internal/service/notification"
	"github.com/jwalitptl/jobboard-api/internal/testutil"
	"github.com/jwalitptl/jobboard-api/pkg/auth"
	"github.com/jwalitptl/jobboard-api/pkg/logger"
	"github.com/jwalitptl/jobboard-api/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopQueue struct{}

func (nopQueue) Enqueue(ctx context.Context, job matching.Job) error { return nil }

func (nopQueue) DeleteResult(ctx context.Context, applicationID uuid.UUID) error { return nil }

type testServer struct {
	*httptest.Server
	tokens        *auth.TokenManager
	directory     *testutil.Directory
	notifications *testutil.Notifications
	registry      *realtime.Registry
	down          atomic.Bool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	require.NoError(t, middleware.RegisterValidators())

	nop := logger.Nop()
	reg := prom.NewRegistry()
	m := metrics.New("test", reg)

	ts := &testServer{
		tokens:        auth.NewTokenManager("test-secret", "jobboard", time.Hour),
		directory:     testutil.NewDirectory(),
		notifications: testutil.NewNotifications(),
		registry:      realtime.NewRegistry(m.ActiveConnections),
	}

	dispatcher := realtime.NewDispatcher(ts.registry, m, nop)
	notifications := notificationService.NewService(ts.notifications, dispatcher, m, nop)
	applications := applicationService.NewService(
		testutil.NewApplications(), ts.directory, notifications,
		nopQueue{}, email.NewService(config.EmailConfig{}), m, nop,
	)

	authz := middleware.NewAuthMiddleware(ts.tokens)
	promHandler := prometheus.New("test", reg)
	checks := map[string]health.Pinger{
		"database": health.PingFunc(func(ctx context.Context) error {
			if ts.down.Load() {
				return errors.New("connection refused")
			}
			return nil
		}),
	}

	r := NewRouter(Config{RequestTimeout: 5 * time.Second}, authz, Handlers{
		Health:        health.NewHandler(checks, promHandler.Handler()),
		Metrics:       promHandler,
		Applications:  applicationHandler.NewHandler(applications),
		Notifications: notificationHandler.NewHandler(notifications),
		Realtime:      realtimeHandler.NewHandler(ts.tokens, ts.registry, realtime.ClientOptions{}, nil, nop),
	}, nop)

	ts.Server = httptest.NewServer(r.Engine())
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) token(t *testing.T, user uuid.UUID, role auth.Role) string {
	t.Helper()
	token, err := ts.tokens.Issue(auth.Identity{UserID: user, Role: role})
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// dial opens a live channel and waits for the hello frame, after which the
// connection is registered.
func (ts *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	hello := readFrame(t, conn)
	require.Equal(t, "connected", hello.Type)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func readNotification(t *testing.T, conn *websocket.Conn) model.Notification {
	t.Helper()
	f := readFrame(t, conn)
	require.Equal(t, "notification", f.Type)
	var n model.Notification
	require.NoError(t, json.Unmarshal(f.Data, &n))
	return n
}

func TestApplicationLifecycle(t *testing.T) {
	ts := newTestServer(t)
	candidate, hr, employer := uuid.New(), uuid.New(), uuid.New()
	job := ts.directory.AddJob("Platform Engineer", hr)
	cv := ts.directory.AddCV(candidate)

	candidateToken := ts.token(t, candidate, auth.RoleCandidate)
	employerToken := ts.token(t, employer, auth.RoleEmployer)
	candidateWS := ts.dial(t, candidateToken)
	hrWS := ts.dial(t, ts.token(t, hr, auth.RoleEmployer))

	status, body := ts.do(t, http.MethodPost, "/api/v1/applications", candidateToken, gin.H{
		"jobId":       job.ID,
		"cvId":        cv.ID,
		"coverLetter": "I'd love to join.",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var created struct {
		ID        uuid.UUID `json:"id"`
		CreatedAt time.Time `json:"createdAt"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.False(t, created.CreatedAt.IsZero())

	hrNotice := readNotification(t, hrWS)
	assert.Equal(t, hr, hrNotice.UserID)
	require.NotNil(t, hrNotice.TargetID)
	assert.Equal(t, created.ID, *hrNotice.TargetID)

	path := "/api/v1/applications/" + created.ID.String()
	for _, next := range []string{"REVIEWING", "approved"} {
		status, body = ts.do(t, http.MethodPatch, path+"/status", employerToken, gin.H{"status": next})
		require.Equal(t, http.StatusOK, status, string(body))
	}
	var app model.Application
	require.NoError(t, json.Unmarshal(body, &app))
	assert.Equal(t, model.ApplicationStatusApproved, app.Status)
	require.Len(t, app.History, 3)
	assert.Equal(t, employer, app.History[2].Actor)

	assert.Equal(t, "Application under review", readNotification(t, candidateWS).Title)
	approved := readNotification(t, candidateWS)
	assert.Equal(t, "Application approved", approved.Title)
	assert.Equal(t, "APPROVED", approved.Payload["status"])

	status, body = ts.do(t, http.MethodGet, "/api/v1/notifications?page=1&limit=10", candidateToken, nil)
	require.Equal(t, http.StatusOK, status)
	var page model.NotificationPage
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Result, 2)
	assert.Equal(t, approved.ID, page.Result[0].ID)
	assert.Equal(t, "Application under review", page.Result[1].Title)
	assert.Equal(t, 2, page.Meta.Total)
	require.NotNil(t, page.Meta.UnreadCount)
	assert.Equal(t, 2, *page.Meta.UnreadCount)

	status, body = ts.do(t, http.MethodGet, "/api/v1/notifications/unread-count", candidateToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2", string(body))

	status, body = ts.do(t, http.MethodPatch, "/api/v1/notifications/"+approved.ID.String()+"/read", candidateToken, nil)
	require.Equal(t, http.StatusOK, status)
	var read model.Notification
	require.NoError(t, json.Unmarshal(body, &read))
	assert.True(t, read.IsRead)
	assert.NotNil(t, read.ReadAt)

	status, _ = ts.do(t, http.MethodPatch, "/api/v1/notifications/"+approved.ID.String()+"/read", employerToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = ts.do(t, http.MethodPost, "/api/v1/notifications/mark-all-read", candidateToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"updated":1}`, string(body))

	_, body = ts.do(t, http.MethodGet, "/api/v1/notifications/unread-count", candidateToken, nil)
	assert.Equal(t, "0", string(body))

	status, body = ts.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID.String()+"/applications/stats", employerToken, nil)
	require.Equal(t, http.StatusOK, status)
	var counts model.StatusCounts
	require.NoError(t, json.Unmarshal(body, &counts))
	assert.Equal(t, 1, counts.Total)
	assert.Equal(t, 1, counts.ByStatus[model.ApplicationStatusApproved])
}

func TestApplicationAuthorization(t *testing.T) {
	ts := newTestServer(t)
	candidate := uuid.New()
	job := ts.directory.AddJob("Support")
	cv := ts.directory.AddCV(candidate)
	candidateToken := ts.token(t, candidate, auth.RoleCandidate)
	employerToken := ts.token(t, uuid.New(), auth.RoleEmployer)

	status, _ := ts.do(t, http.MethodPost, "/api/v1/applications", "", gin.H{"jobId": job.ID, "cvId": cv.ID})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = ts.do(t, http.MethodPost, "/api/v1/applications", employerToken, gin.H{"jobId": job.ID, "cvId": cv.ID})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := ts.do(t, http.MethodPost, "/api/v1/applications", candidateToken, gin.H{"jobId": job.ID, "cvId": cv.ID})
	require.Equal(t, http.StatusCreated, status, string(body))
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	path := "/api/v1/applications/" + created.ID.String()

	status, _ = ts.do(t, http.MethodPatch, path+"/status", candidateToken, gin.H{"status": "APPROVED"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodPatch, path+"/status", employerToken, gin.H{"status": "HIRED"})
	assert.Equal(t, http.StatusBadRequest, status)

	strangerToken := ts.token(t, uuid.New(), auth.RoleCandidate)
	status, _ = ts.do(t, http.MethodGet, path, strangerToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = ts.do(t, http.MethodDelete, path, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodDelete, path, candidateToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = ts.do(t, http.MethodGet, path, candidateToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = ts.do(t, http.MethodPatch, path+"/status", employerToken, gin.H{"status": "REVIEWING"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListQueryValidation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, uuid.New(), auth.RoleCandidate)

	status, _ := ts.do(t, http.MethodGet, "/api/v1/notifications?unread=true", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(t, http.MethodGet, "/api/v1/applications?status=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := ts.do(t, http.MethodGet, "/api/v1/applications?status=pending&sort=-updatedAt&pageSize=5", token, nil)
	require.Equal(t, http.StatusOK, status)
	var page model.ApplicationPage
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Empty(t, page.Result)
	assert.Equal(t, 5, page.Meta.PageSize)
}

func TestBroadcast(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token(t, uuid.New(), auth.RoleAdmin)
	first, second := uuid.New(), uuid.New()
	firstWS := ts.dial(t, ts.token(t, first, auth.RoleCandidate))

	body := gin.H{
		"recipients": []string{first.String(), second.String()},
		"title":      "Scheduled maintenance",
		"content":    "The site is read-only tonight.",
		"kind":       "system",
	}

	status, _ := ts.do(t, http.MethodPost, "/api/v1/notifications", ts.token(t, first, auth.RoleCandidate), body)
	assert.Equal(t, http.StatusForbidden, status)

	status, raw := ts.do(t, http.MethodPost, "/api/v1/notifications", admin, body)
	require.Equal(t, http.StatusCreated, status, string(raw))
	assert.JSONEq(t, `{"created":2}`, string(raw))
	assert.Equal(t, "Scheduled maintenance", readNotification(t, firstWS).Title)

	rows, err := ts.notifications.ListByUser(context.Background(), second, 10, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	body["recipients"] = []string{uuid.New().String(), "nobody"}
	status, _ = ts.do(t, http.MethodPost, "/api/v1/notifications", admin, body)
	assert.Equal(t, http.StatusBadRequest, status)

	body["recipients"] = []string{second.String()}
	body["kind"] = "sms"
	status, _ = ts.do(t, http.MethodPost, "/api/v1/notifications", admin, body)
	assert.Equal(t, http.StatusBadRequest, status)

	rows, err = ts.notifications.ListByUser(context.Background(), second, 10, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDeleteNotification(t *testing.T) {
	ts := newTestServer(t)
	user := uuid.New()
	token := ts.token(t, user, auth.RoleCandidate)
	admin := ts.token(t, uuid.New(), auth.RoleAdmin)

	_, raw := ts.do(t, http.MethodPost, "/api/v1/notifications", admin, gin.H{
		"recipients": []string{user.String()},
		"title":      "Hello",
		"kind":       "system",
	})
	require.JSONEq(t, `{"created":1}`, string(raw))

	rows, err := ts.notifications.ListByUser(context.Background(), user, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	path := "/api/v1/notifications/" + rows[0].ID.String()

	status, _ := ts.do(t, http.MethodDelete, path, admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = ts.do(t, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusOK, status)

	_, raw = ts.do(t, http.MethodGet, "/api/v1/notifications", token, nil)
	var page model.NotificationPage
	require.NoError(t, json.Unmarshal(raw, &page))
	assert.Empty(t, page.Result)
	assert.Equal(t, 0, page.Meta.Total)
}

func TestWebsocketHandshake(t *testing.T) {
	ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	user := uuid.New()
	header := http.Header{"Authorization": []string{"Bearer " + ts.token(t, user, auth.RoleCandidate)}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	hello := readFrame(t, conn)
	assert.Equal(t, "connected", hello.Type)
	assert.JSONEq(t, `{"userId":"`+user.String()+`"}`, string(hello.Data))
	assert.Len(t, ts.registry.ConnectionsFor(user), 1)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, http.MethodGet, "/api/v1/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)

	ts.down.Store(true)
	status, body := ts.do(t, http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.JSONEq(t, `{"status":"DOWN","checks":{"database":"DOWN"}}`, string(body))

	status, body = ts.do(t, http.MethodGet, "/api/v1/health/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "test_http_requests_total")
}
