package sessions

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"resume-agent/internal/llm"
	"resume-agent/internal/renders"
	"resume-agent/internal/resume"
	"resume-agent/internal/shared/storage/object/local"
)

const minimalResumeJSON = `{"name":"A","email":"a@x.com","phone":"1","education":[],"experience":[],"skills":{"technical":[],"soft_skills":[]}}`

type reply struct {
	Text string
	Err  error
}

// queueGateway answers calls in order and records the user messages it saw.
type queueGateway struct {
	mu       sync.Mutex
	replies  []reply
	messages []string
}

func (g *queueGateway) Complete(ctx context.Context, system string, messages []llm.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range messages {
		g.messages = append(g.messages, m.Content)
	}
	if len(g.replies) == 0 {
		return "", llm.ErrNotImplemented
	}
	next := g.replies[0]
	g.replies = g.replies[1:]
	return next.Text, next.Err
}

type testServer struct {
	router   *gin.Engine
	registry *Registry
	gateway  *queueGateway
	clock    *fakeClock
}

func newTestServer(t *testing.T, replies ...reply) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gw := &queueGateway{replies: replies}
	clock := newFakeClock()
	reg := NewRegistry(func() *resume.Session {
		return resume.NewSession(gw, nil, resume.WithClock(clock.Now))
	}, time.Hour, WithClock(clock.Now))
	rendersSvc := &renders.Service{
		Repo:  renders.NewMemoryRepo(),
		Store: local.New(t.TempDir()),
		Now:   clock.Now,
	}

	router := gin.New()
	NewHandler(reg, rendersSvc).RegisterRoutes(router.Group("/api/v1"))
	return &testServer{router: router, registry: reg, gateway: gw, clock: clock}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	var req *http.Request
	if reader != nil {
		req = httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, req)
	return resp
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/sessions", nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", resp.Code, resp.Body.String())
	}
	var info Info
	if err := json.Unmarshal(resp.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	return info.ID
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", resp.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, resp)
	errBody, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error body, got %s", resp.Body.String())
	}
	code, _ := errBody["code"].(string)
	return code
}

func TestCreateSession(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.do(t, http.MethodPost, "/api/v1/sessions", nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("status = %d", resp.Code)
	}
	body := decodeBody(t, resp)
	if id, _ := body["sessionId"].(string); id == "" {
		t.Fatalf("missing sessionId in %v", body)
	}
	if _, ok := body["expiresAt"]; !ok {
		t.Fatalf("missing expiresAt in %v", body)
	}
	if srv.registry.Len() != 1 {
		t.Fatalf("registry Len = %d", srv.registry.Len())
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.do(t, http.MethodPost, "/api/v1/sessions/missing/chat", map[string]string{"message": "hi"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "not_found" {
		t.Fatalf("code = %s", code)
	}
}

func TestExpiredSessionReturns404(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)
	srv.clock.Advance(2 * time.Hour)
	resp := srv.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/history", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d", resp.Code)
	}
}

func TestParseRegenerateAndDownloadRender(t *testing.T) {
	srv := newTestServer(t,
		reply{Text: "```json\n" + minimalResumeJSON + "\n```"},
		reply{Text: "not json"},
		reply{Text: "Sure!\n\\documentclass{article}\n\\begin{document}A\\end{document}"},
	)
	id := srv.createSession(t)
	base := "/api/v1/sessions/" + id

	resp := srv.do(t, http.MethodPost, base+"/resume", map[string]string{"text": "A\na@x.com\n1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("parse status = %d body=%s", resp.Code, resp.Body.String())
	}
	parsed := decodeBody(t, resp)
	if parsed["status"] != "success" || parsed["version"].(float64) != 0 {
		t.Fatalf("unexpected parse body %v", parsed)
	}

	resp = srv.do(t, http.MethodPut, base+"/job-description", map[string]string{"jobDescription": "Backend engineer"})
	if resp.Code != http.StatusOK {
		t.Fatalf("job description status = %d", resp.Code)
	}

	resp = srv.do(t, http.MethodPost, base+"/regenerate", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("regenerate status = %d body=%s", resp.Code, resp.Body.String())
	}
	var result regenerateResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode regenerate: %v", err)
	}
	if !strings.HasPrefix(result.Markup, `\documentclass{article}`) {
		t.Fatalf("markup = %q", result.Markup)
	}
	if result.VersionIndex != 0 || result.RenderID == "" || result.StorageKey == "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Insights.GeneralImprovements) != 0 || result.Insights.SectionSpecific == nil {
		t.Fatalf("expected empty insights, got %+v", result.Insights)
	}

	resp = srv.do(t, http.MethodGet, base+"/renders/"+result.RenderID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("render status = %d", resp.Code)
	}
	if resp.Body.String() != result.Markup {
		t.Fatalf("render body = %q", resp.Body.String())
	}
	if cd := resp.Header().Get("Content-Disposition"); !strings.Contains(cd, result.SuggestedID) {
		t.Fatalf("Content-Disposition = %q", cd)
	}

	resp = srv.do(t, http.MethodGet, base+"/renders", nil)
	list := decodeBody(t, resp)
	if items, _ := list["renders"].([]any); len(items) != 1 {
		t.Fatalf("renders = %v", list)
	}

	resp = srv.do(t, http.MethodGet, base+"/versions/0", nil)
	var snap resume.Snapshot
	if err := json.Unmarshal(resp.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.RenderedMarkup == nil || *snap.RenderedMarkup != result.Markup {
		t.Fatalf("snapshot markup not set: %+v", snap)
	}
}

func TestParseBase64PlainText(t *testing.T) {
	srv := newTestServer(t, reply{Text: minimalResumeJSON})
	id := srv.createSession(t)

	encoded := base64.StdEncoding.EncodeToString([]byte("Jane Doe\nBackend Engineer"))
	resp := srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/resume", map[string]string{
		"resumeBase64": encoded,
		"fileName":     "resume.txt",
		"mimeType":     "text/plain",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.Code, resp.Body.String())
	}
	if len(srv.gateway.messages) != 1 || !strings.Contains(srv.gateway.messages[0], "Jane Doe") {
		t.Fatalf("gateway did not receive extracted text: %v", srv.gateway.messages)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)
	path := "/api/v1/sessions/" + id + "/resume"

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{name: "empty", body: map[string]string{}, status: http.StatusBadRequest},
		{name: "bad base64", body: map[string]string{"resumeBase64": "%%%"}, status: http.StatusBadRequest},
		{
			name:   "unsupported type",
			body:   map[string]string{"resumeBase64": base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G', 0, 0}), "mimeType": "image/png"},
			status: http.StatusUnsupportedMediaType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := srv.do(t, http.MethodPost, path, tt.body)
			if resp.Code != tt.status {
				t.Fatalf("status = %d body=%s", resp.Code, resp.Body.String())
			}
		})
	}
}

func TestParseInvalidReplyReturns422(t *testing.T) {
	srv := newTestServer(t, reply{Text: "I could not read that."})
	id := srv.createSession(t)
	resp := srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/resume", map[string]string{"text": "resume"})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "parse_error" {
		t.Fatalf("code = %s", code)
	}
}

func TestRegenerateWithoutJobDescriptionReturns409(t *testing.T) {
	srv := newTestServer(t, reply{Text: minimalResumeJSON})
	id := srv.createSession(t)
	srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/resume", map[string]string{"text": "resume"})

	resp := srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/regenerate", map[string]any{})
	if resp.Code != http.StatusConflict {
		t.Fatalf("status = %d body=%s", resp.Code, resp.Body.String())
	}
	if code := errorCode(t, resp); code != "precondition_failed" {
		t.Fatalf("code = %s", code)
	}
}

func TestRegenerateMissingMarkerReturns422(t *testing.T) {
	srv := newTestServer(t,
		reply{Text: minimalResumeJSON},
		reply{Text: `{}`},
		reply{Text: "I cannot comply."},
	)
	id := srv.createSession(t)
	base := "/api/v1/sessions/" + id
	srv.do(t, http.MethodPost, base+"/resume", map[string]string{"text": "resume"})
	srv.do(t, http.MethodPut, base+"/job-description", map[string]string{"jobDescription": "Backend engineer"})

	resp := srv.do(t, http.MethodPost, base+"/regenerate", map[string]int{"version": 0})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body=%s", resp.Code, resp.Body.String())
	}
	if code := errorCode(t, resp); code != "generation_invalid" {
		t.Fatalf("code = %s", code)
	}

	list := decodeBody(t, srv.do(t, http.MethodGet, base+"/renders", nil))
	if items, _ := list["renders"].([]any); len(items) != 0 {
		t.Fatalf("expected no renders, got %v", list)
	}
}

func TestChatAndHistory(t *testing.T) {
	srv := newTestServer(t,
		reply{Text: "Quantify your impact."},
		reply{Err: errors.New("upstream unavailable")},
	)
	id := srv.createSession(t)
	base := "/api/v1/sessions/" + id

	resp := srv.do(t, http.MethodPost, base+"/chat", map[string]string{"message": "How can I improve?"})
	if resp.Code != http.StatusOK {
		t.Fatalf("chat status = %d", resp.Code)
	}
	if body := decodeBody(t, resp); body["response"] != "Quantify your impact." {
		t.Fatalf("unexpected chat body %v", body)
	}

	resp = srv.do(t, http.MethodPost, base+"/chat", map[string]string{"message": "Again?"})
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("failed chat status = %d", resp.Code)
	}

	resp = srv.do(t, http.MethodGet, base+"/history", nil)
	var history historyResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	roles := make([]resume.Role, 0, len(history.Turns))
	for _, turn := range history.Turns {
		roles = append(roles, turn.Role)
	}
	want := []resume.Role{resume.RoleUser, resume.RoleAssistant, resume.RoleUser, resume.RoleSystem}
	if len(roles) != len(want) {
		t.Fatalf("roles = %v", roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("roles = %v, want %v", roles, want)
		}
	}
	if history.CurrentVersion != nil || history.TotalVersions != 0 {
		t.Fatalf("unexpected version info %+v", history)
	}
}

func TestChatRequiresMessage(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)
	resp := srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/chat", map[string]string{"message": "  "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.Code)
	}
}

func TestJobDescriptionAndFocus(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)
	base := "/api/v1/sessions/" + id

	resp := srv.do(t, http.MethodPut, base+"/job-description", map[string]string{"jobDescription": " "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("empty job description status = %d", resp.Code)
	}

	resp = srv.do(t, http.MethodPut, base+"/focus", map[string]string{"focus": " leadership "})
	if resp.Code != http.StatusOK {
		t.Fatalf("focus status = %d", resp.Code)
	}
	if body := decodeBody(t, resp); body["focus"] != "leadership" {
		t.Fatalf("unexpected focus body %v", body)
	}
}

func TestVersionsAndFeedback(t *testing.T) {
	srv := newTestServer(t, reply{Text: minimalResumeJSON})
	id := srv.createSession(t)
	base := "/api/v1/sessions/" + id
	srv.do(t, http.MethodPost, base+"/resume", map[string]string{"text": "resume"})

	body := decodeBody(t, srv.do(t, http.MethodGet, base+"/versions", nil))
	if body["total"].(float64) != 1 {
		t.Fatalf("unexpected versions body %v", body)
	}

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "first", path: base + "/versions/0", status: http.StatusOK},
		{name: "negative", path: base + "/versions/-1", status: http.StatusOK},
		{name: "out of range", path: base + "/versions/5", status: http.StatusNotFound},
		{name: "not a number", path: base + "/versions/x", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := srv.do(t, http.MethodGet, tt.path, nil); resp.Code != tt.status {
				t.Fatalf("status = %d", resp.Code)
			}
		})
	}

	resp := srv.do(t, http.MethodPost, base+"/versions/0/feedback", map[string]string{"feedback": "Looks good"})
	if resp.Code != http.StatusOK {
		t.Fatalf("feedback status = %d", resp.Code)
	}
	var snap resume.Snapshot
	if err := json.Unmarshal(resp.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Feedback == nil || *snap.Feedback != "Looks good" {
		t.Fatalf("feedback not attached: %+v", snap)
	}

	resp = srv.do(t, http.MethodPost, base+"/versions/3/feedback", map[string]string{"feedback": "x"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("out of range feedback status = %d", resp.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)

	resp := srv.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.Code)
	}
	resp = srv.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/history", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("history after delete status = %d", resp.Code)
	}
}

func TestRenderNotFound(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)
	resp := srv.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/renders/nope", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d", resp.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind resume.Kind
		want int
	}{
		{resume.KindInvalidInput, http.StatusBadRequest},
		{resume.KindNotFound, http.StatusNotFound},
		{resume.KindPrecondition, http.StatusConflict},
		{resume.KindParse, http.StatusUnprocessableEntity},
		{resume.KindGenerationInvalid, http.StatusUnprocessableEntity},
		{resume.KindModel, http.StatusBadGateway},
		{resume.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.kind); got != tt.want {
			t.Fatalf("StatusFor(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestDecodeBase64(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "padded", in: "aGVsbG8="},
		{name: "unpadded", in: "aGVsbG8"},
		{name: "data url", in: "data:text/plain;base64,aGVsbG8="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBase64(tt.in)
			if err != nil || string(got) != "hello" {
				t.Fatalf("decodeBase64(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}
