package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/secdash/internal/apierrors"
	"github.com/bl4ck0w1/secdash/pkg/models"
	"github.com/bl4ck0w1/secdash/pkg/utils"
)

type memTokens struct {
	mu  sync.Mutex
	tok string
}

func (m *memTokens) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tok, nil
}

func (m *memTokens) SetToken(t string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = t
	return nil
}

func (m *memTokens) Clear() error { return m.SetToken("") }

func newTestClient(t *testing.T, srv *httptest.Server, tokens TokenSource) *Client {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RetryDelay = time.Millisecond
	cfg.RateLimit = 0
	c, err := New(cfg, tokens, utils.NewClientMetrics(false), logger)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListScansSendsStandardHeaders(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		writeJSON(w, http.StatusOK, []map[string]interface{}{
			{"id": "s1", "target_url": "https://example.com", "status": "completed",
				"created_at": "2026-10-17T10:00:00", "scan_config": map[string]interface{}{}, "findings": []interface{}{}},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &memTokens{tok: "abc"})
	c.SetUserAgent("SecurityScanner/1.0")

	scans, err := c.ListScans(context.Background())
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "s1", scans[0].ID)
	assert.Equal(t, models.ScanStatusCompleted, scans[0].Status)

	require.NotNil(t, got)
	assert.Equal(t, "/api/v1/scans/", got.URL.Path)
	assert.Equal(t, "Bearer abc", got.Header.Get("Authorization"))
	assert.Equal(t, "SecurityScanner/1.0", got.Header.Get("User-Agent"))
	_, err = uuid.Parse(got.Header.Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestNoAuthorizationHeaderWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []interface{}{})
	}))
	defer srv.Close()

	scans, err := newTestClient(t, srv, &memTokens{}).ListScans(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, scans)
	assert.Empty(t, scans)
}

func TestUnauthorizedClearsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
	}))
	defer srv.Close()

	tokens := &memTokens{tok: "stale"}
	_, err := newTestClient(t, srv, tokens).GetScan(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, apierrors.IsUnauthorized(err))
	assert.Contains(t, err.Error(), "Not authenticated")

	tok, _ := tokens.Token()
	assert.Empty(t, tok)
}

func TestRetriesIdempotentRequestsOnServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeJSON(w, http.StatusBadGateway, map[string]string{"detail": "upstream"})
			return
		}
		writeJSON(w, http.StatusOK, []interface{}{})
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).GetScanFindings(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoesNotRetryPosts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "busy"})
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).CreateScan(context.Background(),
		models.CreateScanRequest{TargetURL: "https://example.com", ScanType: "quick"})
	require.Error(t, err)
	assert.True(t, apierrors.IsRetryable(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Scan not found"})
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).GetScan(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, apierrors.IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCreateScanValidationDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body models.CreateScanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "full", body.ScanType)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"detail": []map[string]interface{}{
				{"loc": []interface{}{"body", "target_url"}, "msg": "field required"},
			},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).CreateScan(context.Background(),
		models.CreateScanRequest{ScanType: "full"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrValidation))
	assert.Contains(t, err.Error(), "target_url: field required")
}

func TestGetAnalysisNotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/ai/analysis/s1", r.URL.Path)
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Analysis not found"})
	}))
	defer srv.Close()

	a, err := newTestClient(t, srv, nil).GetAnalysis(context.Background(), "s1")
	assert.NoError(t, err)
	assert.Nil(t, a)
}

func TestAnalyzeScanDefaultsProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body models.AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "s1", body.ScanID)
		assert.Equal(t, "ollama", body.Provider)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": "a1", "scan_id": "s1", "provider": "ollama", "model": "llama3",
			"created_at": "2026-10-17T10:00:00Z",
			"analysis": map[string]interface{}{"summary": "ok", "prioritized_remediation": []interface{}{}},
		})
	}))
	defer srv.Close()

	a, err := newTestClient(t, srv, nil).AnalyzeScan(context.Background(), models.AnalyzeRequest{ScanID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "ok", a.SummaryText())
}

func TestExportReportReturnsRawBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scans/s1/export", r.URL.Path)
		assert.Equal(t, "pdf", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="report-s1.pdf"`)
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	exp, err := newTestClient(t, srv, nil).ExportReport(context.Background(), "s1", "PDF")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(exp.Data))
	assert.Equal(t, "application/pdf", exp.ContentType)
	assert.Equal(t, "report-s1.pdf", exp.Filename)
}

func TestEmptyIDIsRejectedLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s", r.URL.Path)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.GetScan(context.Background(), " ")
	assert.ErrorIs(t, err, apierrors.ErrValidation)
	assert.ErrorIs(t, c.DeleteScan(context.Background(), ""), apierrors.ErrValidation)
}

func TestLoginStoresTokenAndKeepsCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			var creds Credentials
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, "admin", creds.Username)
			assert.Empty(t, r.Header.Get("Authorization"))
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s-1", Path: "/"})
			writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-1", "token_type": "bearer"})
		case "/api/v1/auth/me":
			cookie, err := r.Cookie("session")
			require.NoError(t, err)
			assert.Equal(t, "s-1", cookie.Value)
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]string{"user": "admin"})
		case "/api/v1/auth/logout":
			writeJSON(w, http.StatusOK, map[string]string{"message": "bye"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tokens := &memTokens{}
	c := newTestClient(t, srv, tokens)

	tr, err := c.Login(context.Background(), Credentials{Username: "admin", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tr.BearerToken())
	tok, _ := tokens.Token()
	assert.Equal(t, "tok-1", tok)

	u, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Name())

	require.NoError(t, c.Logout(context.Background()))
	tok, _ = tokens.Token()
	assert.Empty(t, tok)
}

func TestRefreshesTokenCloseToExpiry(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	soon, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": now.Add(time.Minute).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	var refreshed int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/refresh":
			atomic.AddInt32(&refreshed, 1)
			assert.Equal(t, "Bearer "+soon, r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]string{"access_token": "fresh"})
		case "/api/v1/scans/":
			assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, []interface{}{})
		}
	}))
	defer srv.Close()

	tokens := &memTokens{tok: soon}
	c := newTestClient(t, srv, tokens)
	c.now = func() time.Time { return now }

	_, err = c.ListScans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshed))
}

func TestThrottleLowersRate(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"detail": "slow down"})
			return
		}
		writeJSON(w, http.StatusOK, []interface{}{})
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RetryDelay = time.Millisecond
	cfg.RateLimit = 100
	cfg.Burst = 10
	c, err := New(cfg, nil, nil, logger)
	require.NoError(t, err)

	_, err = c.ListScans(context.Background())
	require.NoError(t, err)
	assert.Less(t, float64(c.Limiter().Limit()), 100.0)
	assert.Equal(t, int64(1), c.Limiter().GetStats()["throttle_count"])
}

func TestRequestMetricsRecorded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.OK())

	families, err := c.metrics.GetRegistry().Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() != utils.MetricRequestsTotal {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["route"] == "/health" && labels["status"] == "200" {
				found = true
				assert.Equal(t, 1.0, m.GetCounter().GetValue())
			}
		}
	}
	assert.True(t, found)
}

func TestTransportErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, srv, nil)
	srv.Close()

	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrTransport)
	assert.True(t, apierrors.IsRetryable(err))
}

func TestNewRejectsBadURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "localhost"
	_, err := New(cfg, nil, nil, nil)
	assert.Error(t, err)
}

func TestCompatible(t *testing.T) {
	assert.NoError(t, Compatible("1.0.0"))
	assert.NoError(t, Compatible("v1.4.2"))
	assert.ErrorIs(t, Compatible("2.0.0"), ErrIncompatibleServer)
	assert.ErrorIs(t, Compatible("0.9.1"), ErrIncompatibleServer)
	assert.ErrorIs(t, Compatible("banana"), ErrIncompatibleServer)
}

func TestCheckCompatibility(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]interface{}{"name": "Security Scanner API", "version": "1.0.0"})
	}))
	defer srv.Close()

	info, err := newTestClient(t, srv, nil).CheckCompatibility(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Security Scanner API", info.Name)
}

func TestIDsAreEscapedOnce(t *testing.T) {
	var rawURI string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawURI = r.RequestURI
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": "a/b%c", "status": "running"})
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).GetScan(context.Background(), "a/b%c")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/scans/a%2Fb%25c", rawURI)
}

func TestOversizedResponseFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(bytes.Repeat([]byte("x"), 2048))
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RateLimit = 0
	cfg.MaxResponseBytes = 1024
	c, err := New(cfg, nil, utils.NewClientMetrics(false), logger)
	require.NoError(t, err)

	exp, err := c.ExportReport(context.Background(), "s1", "pdf")
	require.Error(t, err)
	assert.Nil(t, exp)
	assert.Contains(t, err.Error(), "exceeds")

	cfg.MaxResponseBytes = 2048
	c, err = New(cfg, nil, utils.NewClientMetrics(false), logger)
	require.NoError(t, err)
	exp, err = c.ExportReport(context.Background(), "s1", "pdf")
	require.NoError(t, err)
	assert.Len(t, exp.Data, 2048)
}

func TestRequestLogsCarryRequestID(t *testing.T) {
	var sentID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sentID = r.Header.Get("X-Request-ID")
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Scan not found"})
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.JSONFormatter{})
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RateLimit = 0
	c, err := New(cfg, nil, utils.NewClientMetrics(false), logger)
	require.NoError(t, err)

	_, err = c.GetScan(context.Background(), "missing")
	require.Error(t, err)
	require.NotEmpty(t, sentID)

	var entry map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var e map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &e))
		if _, ok := e["request_id"]; ok {
			entry = e
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, sentID, entry["request_id"])
	assert.Equal(t, "api_client", entry["component"])
	assert.Equal(t, "get_scan", entry["op"])
}
