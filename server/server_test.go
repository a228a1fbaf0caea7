package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/engine"
	"github.com/hupe1980/accountplan/internal/testutil"
)

var _ Pipeline = (*engine.Engine)(nil)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg, _ := testutil.Registry(nil)
	eng, err := engine.New(testutil.PipelineModel(), func(o *engine.Options) {
		o.Registry = reg
	})
	require.NoError(t, err)
	return New(eng)
}

func do(t *testing.T, s *Server, method, path, session string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthz(t *testing.T) {
	resp := do(t, newTestServer(t), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestChat_MintsSession(t *testing.T) {
	s := newTestServer(t)
	resp := do(t, s, http.MethodPost, "/api/chat", "", ChatRequest{Message: testutil.Brief})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	id := resp.Header.Get(SessionHeader)
	assert.NotEmpty(t, id)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), SessionCookie+"="+id)

	body := decode[ChatResponse](t, resp)
	assert.Equal(t, core.StageConfirmingPlan, body.Stage)
	assert.False(t, body.HasAccountPlan)
	assert.NotEmpty(t, body.Workplan)
}

func TestChat_Validation(t *testing.T) {
	s := newTestServer(t)

	resp := do(t, s, http.MethodPost, "/api/chat", "s1", ChatRequest{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "message is required", decode[ErrorResponse](t, resp).Error)

	resp = do(t, s, http.MethodPost, "/api/chat", "s1", ChatRequest{Message: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFullFlow(t *testing.T) {
	s := newTestServer(t)

	resp := do(t, s, http.MethodPost, "/api/chat", "s1", ChatRequest{Message: testutil.Brief})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, s, http.MethodPost, "/api/chat", "s1", ChatRequest{Message: "yes"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	chat := decode[ChatResponse](t, resp)
	assert.Equal(t, core.StageReviewing, chat.Stage)
	assert.True(t, chat.HasAccountPlan)
	assert.Len(t, chat.ResearchActivity, len(core.MandatoryChannels()))
	assert.Contains(t, chat.ProgressLog, "🗂️ Account plan ready.")

	resp = do(t, s, http.MethodGet, "/api/report", "s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[ReportResponse](t, resp)
	assert.Equal(t, "Acme", report.CompanyName)
	assert.Equal(t, 1, report.Version)
	assert.Len(t, report.Sections, core.SectionCount())
	assert.NotEmpty(t, report.Sources)

	resp = do(t, s, http.MethodPost, "/api/regenerate-section", "s1", RegenerateRequest{Section: "swot", Instruction: "focus on healthcare AI"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	regen := decode[RegenerateResponse](t, resp)
	assert.Equal(t, "swot", regen.Section)
	assert.Equal(t, 2, regen.Version)

	resp = do(t, s, http.MethodPost, "/api/regenerate-section", "s1", RegenerateRequest{Section: "pricing"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[ErrorResponse](t, resp).Error, "pricing")

	resp = do(t, s, http.MethodGet, "/api/export?format=md", "s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "plan-v2.md")
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/markdown"))

	resp = do(t, s, http.MethodGet, "/api/progress", "s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	prog := decode[ProgressResponse](t, resp)
	assert.Equal(t, core.StageReviewing, prog.Stage)
	assert.Contains(t, prog.ProgressLog, "✅ SWOT Analysis updated.")
}

func TestReport_EmptyWithoutPlan(t *testing.T) {
	resp := do(t, newTestServer(t), http.MethodGet, "/api/report", "fresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[ReportResponse](t, resp)
	assert.Empty(t, report.Sections)
	assert.NotNil(t, report.Sections)
	assert.Equal(t, core.StagePlanning, report.Stage)
}

func TestPlanRequiredEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp := do(t, s, http.MethodPost, "/api/regenerate-section", "fresh", RegenerateRequest{Section: "swot"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, s, http.MethodGet, "/api/export?format=html", "fresh", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, s, http.MethodGet, "/api/export?format=pdf", "fresh", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatAudio(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", "clip.webm")
	require.NoError(t, err)
	_, _ = fw.Write([]byte{1, 2, 3})
	require.NoError(t, mw.WriteField("mime_type", "audio/webm"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/chat-audio", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(SessionHeader, "s1")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	resp = do(t, s, http.MethodPost, "/api/chat-audio", "s1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodGet, "/healthz", "", nil)

	resp := do(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "accountplan_http_requests_total")
}
