package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/secdash/internal/apierrors"
	"github.com/bl4ck0w1/secdash/internal/client"
	"github.com/bl4ck0w1/secdash/pkg/models"
)

type fakeBackend struct {
	*httptest.Server
	analyzeCalls int32
	created      models.CreateScanRequest
	scans        []models.Scan
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	b := &fakeBackend{scans: []models.Scan{
		{
			ID:        "scan-1",
			TargetURL: "https://shop.example.com",
			Status:    models.ScanStatusCompleted,
			CreatedAt: now.Add(-2 * time.Hour),
			Findings:  sampleFindings(12),
		},
		{
			ID:        "scan-2",
			TargetURL: "https://blog.example.com",
			Status:    models.ScanStatusRunning,
			CreatedAt: now.Add(-time.Hour),
			Findings:  []models.Finding{},
		},
	}}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/scans/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/scans/")
		switch {
		case path == "" && r.Method == http.MethodGet:
			writeJSON(w, http.StatusOK, b.scans)
		case path == "" && r.Method == http.MethodPost:
			_ = json.NewDecoder(r.Body).Decode(&b.created)
			writeJSON(w, http.StatusOK, models.Scan{
				ID: "scan-new", TargetURL: b.created.TargetURL, Status: models.ScanStatusPending, CreatedAt: now,
			})
		case path == "scan-1":
			writeJSON(w, http.StatusOK, b.scans[0])
		case path == "scan-1/findings":
			writeJSON(w, http.StatusOK, b.scans[0].Findings)
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Scan not found"})
		}
	})
	mux.HandleFunc("/api/v1/ai/providers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.AIProvider{{Name: "ollama", Available: true}})
	})
	mux.HandleFunc("/api/v1/ai/analyze", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.analyzeCalls, 1)
		var req models.AnalyzeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, models.AIAnalysis{
			ID:        "an-1",
			ScanID:    req.ScanID,
			Provider:  req.Provider,
			Model:     "llama3",
			CreatedAt: now,
			Analysis: models.AnalysisBody{
				Summary: "Patch the injection points first.",
				PrioritizedRemediation: []models.RemediationItem{
					{Priority: models.SeverityCritical, Action: "Use parameterized queries"},
				},
			},
		})
	})
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds client.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Username != "alice" || creds.Password != "s3cret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "opaque-token", "token_type": "bearer"})
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func sampleFindings(n int) []models.Finding {
	severities := models.AllSeverities()
	out := make([]models.Finding, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Finding{
			ID:          "f" + string(rune('a'+i)),
			Severity:    severities[i%len(severities)],
			Type:        models.FindingTypeVulnerability,
			Title:       "Finding " + string(rune('A'+i)),
			Description: "Description of the issue",
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// setupViper resets global configuration. Commands must be built after
// this call so their flag bindings survive.
func setupViper(t *testing.T, apiURL string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("api.url", apiURL)
	viper.Set("api.timeout", "5s")
	viper.Set("api.rate_limit", 0)
	viper.Set("api.max_retries", 0)
	viper.Set("api.retry_delay", "1ms")
	viper.Set("storage.driver", "file")
	viper.Set("storage.dir", t.TempDir())
	viper.Set("analysis.cache_ttl", "1h")
	viper.Set("report.output_dir", t.TempDir())
	viper.Set("report.default_format", "json")
	viper.Set("report.max_age", "720h")
}

func execute(cmd *cobra.Command, stdin string, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), err
}

func TestScanListTable(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	out, err := execute(NewScanCommand(), "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "scan-1")
	assert.Contains(t, out, "https://blog.example.com")
	assert.Contains(t, out, "Completed")
}

func TestScanListStatusFilterJSON(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	out, err := execute(NewScanCommand(), "", "list", "--status", "running", "-o", "json")
	require.NoError(t, err)

	var scans []models.Scan
	require.NoError(t, json.Unmarshal([]byte(out), &scans))
	require.Len(t, scans, 1)
	assert.Equal(t, "scan-2", scans[0].ID)
}

func TestScanCreateValidatesTarget(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	for _, target := range []string{"", "example.com", "ftp://example.com"} {
		_, err := execute(NewScanCommand(), "", "create", target)
		assert.Error(t, err, target)
	}
	assert.Empty(t, b.created.TargetURL)
}

func TestScanCreateSendsSettings(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	out, err := execute(NewScanCommand(), "", "create", "https://example.com", "--type", "full")
	require.NoError(t, err)
	assert.Contains(t, out, "Scan started with ID: scan-new")
	assert.Equal(t, "https://example.com", b.created.TargetURL)
	assert.Equal(t, "full", b.created.ScanType)
	assert.Equal(t, true, b.created.Options["passive"])
	assert.Equal(t, "SecurityScanner/1.0", b.created.Options["user_agent"])
}

func TestScanCreateRejectsUnknownType(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	_, err := execute(NewScanCommand(), "", "create", "https://example.com", "--type", "deep")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scan type")
}

func TestScanGetNotFound(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	_, err := execute(NewScanCommand(), "", "get", "missing")
	require.Error(t, err)
	assert.True(t, apierrors.IsNotFound(err))
}

func TestFindingsPaging(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	out, err := execute(NewFindingsCommand(), "", "scan-1", "--page", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Page 2 of 2 (12 findings)")

	out, err = execute(NewFindingsCommand(), "", "scan-1", "--page", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Page 3 is past the last page (2).")
}

func TestFindingsHugePageIsPastTheEnd(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	out, err := execute(NewFindingsCommand(), "", "scan-1", "--page", "922337203685477582")
	require.NoError(t, err)
	assert.Contains(t, out, "Page 922337203685477582 is past the last page (2).")
}

func TestFindingsFilterJSON(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	out, err := execute(NewFindingsCommand(), "", "scan-1", "--severity", "critical", "-o", "json")
	require.NoError(t, err)

	var res struct {
		Total    int              `json:"total"`
		Pages    int              `json:"pages"`
		Findings []models.Finding `json:"findings"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Pages)
	for _, f := range res.Findings {
		assert.Equal(t, models.SeverityCritical, f.Severity)
	}
}

func TestFindingsRejectsUnknownSeverity(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	_, err := execute(NewFindingsCommand(), "", "scan-1", "--severity", "severe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid severity")
}

func TestDashboardJSON(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	out, err := execute(NewDashboardCommand(), "", "-o", "json")
	require.NoError(t, err)

	var summary struct {
		TotalScans       int              `json:"total_scans"`
		CriticalFindings int              `json:"critical_findings"`
		History          []map[string]any `json:"history"`
		Providers        []map[string]any `json:"providers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary.TotalScans)
	assert.Equal(t, 3, summary.CriticalFindings)
	assert.Len(t, summary.History, 30)
	assert.Len(t, summary.Providers, 1)
}

func TestDashboardSkipsScansDeletedMidway(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)
	b.scans = append(b.scans, models.Scan{
		ID:        "scan-gone",
		TargetURL: "https://old.example.com",
		Status:    models.ScanStatusCompleted,
		CreatedAt: time.Now().UTC().Add(-3 * time.Hour),
	})

	out, err := execute(NewDashboardCommand(), "", "-o", "json")
	require.NoError(t, err)

	var summary struct {
		TotalScans       int `json:"total_scans"`
		CriticalFindings int `json:"critical_findings"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 3, summary.TotalScans)
	assert.Equal(t, 3, summary.CriticalFindings)
}

func TestDashboardTable(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	out, err := execute(NewDashboardCommand(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "Security Dashboard")
	assert.Contains(t, out, "Last 30 days")
}

func TestAnalyzeRunUsesCache(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	out, err := execute(NewAnalyzeCommand(), "", "run", "scan-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Patch the injection points first.")
	assert.Contains(t, out, "Use parameterized queries")

	out, err = execute(NewAnalyzeCommand(), "", "run", "scan-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Patch the injection points first.")
	assert.EqualValues(t, 1, atomic.LoadInt32(&b.analyzeCalls))

	_, err = execute(NewAnalyzeCommand(), "", "run", "scan-1", "--refresh")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&b.analyzeCalls))
}

func TestAnalyzeRunRejectsUnknownProvider(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	_, err := execute(NewAnalyzeCommand(), "", "run", "scan-1", "--provider", "bard")
	require.Error(t, err)
	assert.Zero(t, atomic.LoadInt32(&b.analyzeCalls))
}

func TestSettingsSetAndGet(t *testing.T) {
	setupViper(t, "http://127.0.0.1:1")

	out, err := execute(NewSettingsCommand(), "", "set", "maxScanDuration", "600")
	require.NoError(t, err)
	assert.Equal(t, "max_scan_duration = 600\n", out)

	out, err = execute(NewSettingsCommand(), "", "get", "max-scan-duration")
	require.NoError(t, err)
	assert.Equal(t, "600\n", out)

	out, err = execute(NewSettingsCommand(), "", "set", "openai_api_key", "sk-abcdefghijklmnop")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-abcdefghijklmnop")

	_, err = execute(NewSettingsCommand(), "", "set", "ai_provider", "bard")
	assert.Error(t, err)

	_, err = execute(NewSettingsCommand(), "", "get", "nope")
	assert.Error(t, err)
}

func TestAuthLoginPasswordStdin(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	out, err := execute(NewAuthCommand(), "s3cret\n", "login", "-u", "alice", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice")

	_, err = execute(NewAuthCommand(), "wrong\n", "login", "-u", "alice", "--password-stdin")
	require.Error(t, err)
	assert.True(t, apierrors.IsUnauthorized(err))
}

func TestReportStdout(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	out, err := execute(NewReportCommand("test"), "", "scan-1", "--stdout", "-f", "md", "--no-analysis")
	require.NoError(t, err)
	assert.Contains(t, out, "# Security Scan Report: https://shop.example.com")
}

func TestReportRejectsMultipleStdoutFormats(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	_, err := execute(NewReportCommand("test"), "", "scan-1", "--stdout", "-f", "md,json")
	assert.Error(t, err)
}

func TestReportWritesFiles(t *testing.T) {
	b := newFakeBackend(t)
	setupViper(t, b.URL)

	out, err := execute(NewReportCommand("test"), "", "scan-1", "-f", "json,csv", "--no-analysis")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated json report:")
	assert.Contains(t, out, "Generated csv report:")
}

func TestHint(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("api.url", "http://localhost:8000")

	assert.Empty(t, Hint(nil))
	assert.Contains(t, Hint(&apierrors.APIError{Kind: apierrors.KindUnauthorized, Op: "list_scans", StatusCode: 401}), "secdash auth login")
	assert.Contains(t, Hint(&apierrors.APIError{Kind: apierrors.KindTransport, Op: "list_scans"}), "http://localhost:8000")
	assert.Contains(t, Hint(client.Compatible("2.1.0")), client.SupportedServerVersions)
}

func TestCompletionShells(t *testing.T) {
	out, err := execute(NewCompletionCommand(), "", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "bash completion")

	_, err = execute(NewCompletionCommand(), "", "tcsh")
	assert.Error(t, err)
}
