package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/engine"
	"github.com/leadflowhq/leadflow/engine/compliance"
	"github.com/leadflowhq/leadflow/engine/convcache"
	"github.com/leadflowhq/leadflow/engine/dedup"
	"github.com/leadflowhq/leadflow/engine/handoff"
	"github.com/leadflowhq/leadflow/engine/normalize"
	"github.com/leadflowhq/leadflow/engine/qualify"
	"github.com/leadflowhq/leadflow/engine/ratelimit"
	"github.com/leadflowhq/leadflow/engine/storage"
	"github.com/leadflowhq/leadflow/internal/cache"
	"github.com/leadflowhq/leadflow/internal/database"
	"github.com/leadflowhq/leadflow/internal/metrics"
	"github.com/leadflowhq/leadflow/internal/taskq"
	"github.com/leadflowhq/leadflow/providers"
)

const (
	testWebhookSecret = "hook-secret"
	testAdminSecret   = "admin-secret"
)

var testNamespace int64

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	redis, err := cache.NewManager(config.RedisConfig{Addr: mr.Addr(), DefaultTTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)

	mgr, err := database.Open(config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"}, zap.NewNop())
	require.NoError(t, err)

	store := storage.NewStore(mgr, zap.NewNop())
	require.NoError(t, store.AutoMigrate())

	engCfg := config.DefaultEngineConfig()
	engCfg.Cache.LookupTimeout = time.Second
	engCfg.RateLimit.PerHour = 100
	engCfg.RateLimit.QuietStartHour = 0
	engCfg.RateLimit.QuietEndHour = 0

	collector := metrics.NewCollector(fmt.Sprintf("api_test_%d", atomic.AddInt64(&testNamespace, 1)))
	conv := convcache.New(engCfg.Cache, redis, store, nil, collector, zap.NewNop())
	queue := taskq.New(config.WorkerConfig{Workers: 1, QueueSize: 16}, zap.NewNop())
	normalizer := normalize.New(testWebhookSecret, zap.NewNop())

	eng := engine.New(engCfg, engine.Deps{
		Guard:      dedup.NewRedisGuard(engCfg.Dedup, redis, zap.NewNop()),
		Normalizer: normalizer,
		Filter:     compliance.New(engCfg.Compliance, zap.NewNop()),
		Cache:      conv,
		Store:      store,
		Machine:    qualify.NewMachine(engCfg.Qualification, zap.NewNop()),
		Coord:      handoff.New(engCfg.Handoff, redis, store, zap.NewNop()),
		Limiter:    ratelimit.New(engCfg.RateLimit, redis, zap.NewNop()),
		Queue:      queue,
		CRM:        providers.NewMemoryCRM(),
		Messenger:  providers.NewMemoryMessenger(),
		Calendar:   providers.NewMemoryCalendar(),
		Metrics:    collector,
	}, zap.NewNop())

	srvCfg := config.DefaultServerConfig()
	srvCfg.WebhookSecret = testWebhookSecret
	srvCfg.AdminJWTSecret = testAdminSecret

	router := NewRouter(srvCfg, Deps{
		Engine:     eng,
		Normalizer: normalizer,
		Redis:      redis,
		DB:         mgr,
		Queue:      queue,
	}, zap.NewNop())

	ts := httptest.NewServer(router.Handler())
	t.Cleanup(func() {
		ts.Close()
		queue.Close()
		_ = redis.Close()
		mr.Close()
		_ = mgr.Close()
	})
	return ts
}

func sign(raw []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(raw)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, ts *httptest.Server, raw []byte, signature string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/webhook", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", signature)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func eventPayload(t *testing.T, contactID, eventID, text string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]string{
		"contact_id": contactID, "event_id": eventID, "body": text, "type": "sms",
	})
	require.NoError(t, err)
	return raw
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testAdminSecret))
	require.NoError(t, err)
	return signed
}

func TestWebhookProcessesEvent(t *testing.T) {
	ts := newTestServer(t)
	raw := eventPayload(t, "c1", uuid.NewString(), "I want to sell my house")

	resp, body := postWebhook(t, ts, raw, sign(raw))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "processed", body["outcome"])
	assert.Equal(t, "seller", body["agent"])
	assert.NotEmpty(t, body["reply"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	ts := newTestServer(t)
	raw := eventPayload(t, "c1", uuid.NewString(), "hello")

	resp, body := postWebhook(t, ts, raw, "sha256=deadbeef")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
}

func TestWebhookAcksDuplicates(t *testing.T) {
	ts := newTestServer(t)
	raw := eventPayload(t, "c1", "evt-1", "thinking of selling my home")

	resp, _ := postWebhook(t, ts, raw, sign(raw))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The retry is acknowledged, not re-processed.
	resp, body := postWebhook(t, ts, raw, sign(raw))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "duplicate", body["outcome"])
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	ts := newTestServer(t)
	raw := []byte("{not json")

	resp, body := postWebhook(t, ts, raw, sign(raw))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", body["code"])
}

func TestPauseRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Post(ts.URL+"/v1/contacts/c1/pause", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPauseAndResumeFlow(t *testing.T) {
	ts := newTestServer(t)
	token := adminToken(t)

	pause, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/contacts/c1/pause", nil)
	require.NoError(t, err)
	pause.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.Client().Do(pause)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A paused contact gets recorded but drawn no reply.
	raw := eventPayload(t, "c1", uuid.NewString(), "I want to sell my house")
	resp2, body := postWebhook(t, ts, raw, sign(raw))
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, "paused", body["outcome"])

	resume, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/contacts/c1/resume", nil)
	require.NoError(t, err)
	resume.Header.Set("Authorization", "Bearer "+token)
	resp, err = ts.Client().Do(resume)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw = eventPayload(t, "c1", uuid.NewString(), "still want to sell my house")
	_, body = postWebhook(t, ts, raw, sign(raw))
	assert.Equal(t, "processed", body["outcome"])
}

func TestHistoryEndpoint(t *testing.T) {
	ts := newTestServer(t)

	raw := eventPayload(t, "c1", uuid.NewString(), "the roof was replaced last year")
	postWebhook(t, ts, raw, sign(raw))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/contacts/c1/history?q=roof", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, msgs)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])

	resp2, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}
