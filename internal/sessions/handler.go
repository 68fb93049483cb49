package sessions

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resume-agent/internal/extract"
	"resume-agent/internal/renders"
	"resume-agent/internal/resume"
	"resume-agent/internal/shared/metrics"
	"resume-agent/internal/shared/server/middleware"
	"resume-agent/internal/shared/server/respond"
	"resume-agent/internal/shared/telemetry"
)

const (
	maxUploadSize = 15 << 20 // base64 of a 10MB document

	sessionKey = "session"
)

// Handler exposes the session registry over HTTP.
type Handler struct {
	Registry *Registry
	Renders  *renders.Service
}

// NewHandler constructs a Handler. A nil renders service disables
// persistence of regenerated markup.
func NewHandler(registry *Registry, rendersSvc *renders.Service) *Handler {
	return &Handler{Registry: registry, Renders: rendersSvc}
}

// RegisterRoutes attaches session routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.create)

	s := rg.Group("/sessions/:id", h.withSession)
	s.DELETE("", h.remove)
	s.POST("/resume", h.parse)
	s.PUT("/job-description", h.setJobDescription)
	s.PUT("/focus", h.setFocus)
	s.POST("/chat", h.chat)
	s.POST("/regenerate", h.regenerate)
	s.GET("/history", h.history)
	s.GET("/versions", h.versions)
	s.GET("/versions/:index", h.version)
	s.POST("/versions/:index/feedback", h.feedback)
	s.GET("/renders", h.listRenders)
	s.GET("/renders/:renderId", h.render)
}

// withSession pins the session named by :id for the rest of the request.
func (h *Handler) withSession(c *gin.Context) {
	session, info, release, err := h.Registry.Acquire(c.Param("id"))
	if err != nil {
		respond.Error(c, http.StatusNotFound, string(resume.KindNotFound), "session not found or expired", nil)
		return
	}
	defer release()
	c.Set(middleware.SessionIDKey, info.ID)
	c.Set(sessionKey, session)
	c.Next()
}

func sessionFrom(c *gin.Context) *resume.Session {
	s, _ := c.MustGet(sessionKey).(*resume.Session)
	return s
}

func (h *Handler) create(c *gin.Context) {
	info := h.Registry.Create()
	c.Set(middleware.SessionIDKey, info.ID)
	telemetry.Info("session.created", map[string]any{
		"session_id": info.ID,
		"expires_at": info.ExpiresAt,
	})
	respond.Created(c, info)
}

func (h *Handler) remove(c *gin.Context) {
	h.Registry.Delete(c.GetString(middleware.SessionIDKey))
	c.Status(http.StatusNoContent)
}

type parseRequest struct {
	ResumeBase64 string `json:"resumeBase64"`
	FileName     string `json:"fileName"`
	MimeType     string `json:"mimeType"`
	Text         string `json:"text"`
}

type parseResponse struct {
	Status     string        `json:"status"`
	Version    int           `json:"version"`
	ResumeData resume.Resume `json:"resumeData"`
}

func (h *Handler) parse(c *gin.Context) {
	c.Set(middleware.OperationKey, "parse")
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, string(resume.KindInvalidInput), "invalid request body", nil)
		return
	}

	document := req.Text
	if strings.TrimSpace(document) == "" {
		if strings.TrimSpace(req.ResumeBase64) == "" {
			respond.Error(c, http.StatusBadRequest, string(resume.KindInvalidInput), "resumeBase64 or text is required", nil)
			return
		}
		data, err := decodeBase64(req.ResumeBase64)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, string(resume.KindInvalidInput), "resumeBase64 is not valid base64", nil)
			return
		}
		document, err = extract.Text(c.Request.Context(), data, req.MimeType, req.FileName)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, extract.ErrUnsupported) {
				status = http.StatusUnsupportedMediaType
			}
			respond.Error(c, status, string(resume.KindInvalidInput), err.Error(), nil)
			return
		}
	}

	start := time.Now()
	snap, err := sessionFrom(c).Parse(c.Request.Context(), document)
	outcome := resume.Capture(parseResponse{Status: "success", Version: snap.VersionIndex, ResumeData: snap.Data}, err)
	var extra map[string]any
	if err == nil {
		extra = map[string]any{"version_index": snap.VersionIndex}
	}
	h.record(c, "parse", start, outcome.Detail, extra)
	writeOutcome(c, outcome)
}

type jobDescriptionRequest struct {
	JobDescription string `json:"jobDescription"`
}

func (h *Handler) setJobDescription(c *gin.Context) {
	c.Set(middleware.OperationKey, "set_job_description")
	var req jobDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, string(resume.KindInvalidInput), "invalid request body", nil)
		return
	}
	if err := sessionFrom(c).SetJobDescription(req.JobDescription); err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"status": "success"})
}

type focusRequest struct {
	Focus string `json:"focus"`
}

func (h *Handler) setFocus(c *gin.Context) {
	c.Set(middleware.OperationKey, "set_focus")
	var req focusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, string(resume.KindInvalidInput), "invalid request body", nil)
		return
	}
	session := sessionFrom(c)
	session.SetFocus(req.Focus)
	respond.OK(c, gin.H{"status": "success", "focus": session.Focus()})
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Status   string `json:"status"`
	Response string `json:"response"`
}

func (h *Handler) chat(c *gin.Context) {
	c.Set(middleware.OperationKey, "chat")
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		respond.Error(c, http.StatusBadRequest, string(resume.KindInvalidInput), "message is required", nil)
		return
	}

	start := time.Now()
	reply, err := sessionFrom(c).Chat(c.Request.Context(), req.Message)
	outcome := resume.Capture(chatResponse{Status: "success", Response: reply}, err)
	h.record(c, "chat", start, outcome.Detail, nil)
	writeOutcome(c, outcome)
}

type regenerateRequest struct {
	Version *int `json:"version"`
}

type regenerateResponse struct {
	resume.RegenerationResult
	RenderID   string `json:"renderId,omitempty"`
	StorageKey string `json:"storageKey,omitempty"`
}

func (h *Handler) regenerate(c *gin.Context) {
	c.Set(middleware.OperationKey, "regenerate")
	var req regenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(c, http.StatusBadRequest, string(resume.KindInvalidInput), "invalid request body", nil)
		return
	}
	target := resume.Latest
	if req.Version != nil {
		target = *req.Version
	}

	start := time.Now()
	result, err := sessionFrom(c).Regenerate(c.Request.Context(), target)
	resp := regenerateResponse{RegenerationResult: result}
	var extra map[string]any
	if err == nil {
		resp.RenderID, resp.StorageKey = h.persist(c, result)
		extra = map[string]any{
			"version_index": result.VersionIndex,
			"render_id":     resp.RenderID,
		}
	}
	outcome := resume.Capture(resp, err)
	h.record(c, "regenerate", start, outcome.Detail, extra)
	writeOutcome(c, outcome)
}

// persist stores regenerated markup. A storage failure is logged and the
// markup is still returned to the caller.
func (h *Handler) persist(c *gin.Context, result resume.RegenerationResult) (string, string) {
	if h.Renders == nil {
		return "", ""
	}
	sessionID := c.GetString(middleware.SessionIDKey)
	render, err := h.Renders.Save(c.Request.Context(), sessionID, result.VersionIndex, result.SuggestedID, result.Markup)
	if err != nil {
		telemetry.Error("render.persist_failed", map[string]any{
			"session_id":    sessionID,
			"version_index": result.VersionIndex,
			"file_name":     result.SuggestedID,
			"error":         err.Error(),
		})
		return "", ""
	}
	return render.ID, render.StorageKey
}

type historyResponse struct {
	SessionID      string        `json:"sessionId"`
	Turns          []resume.Turn `json:"turns"`
	CurrentVersion *int          `json:"currentVersion"`
	TotalVersions  int           `json:"totalVersions"`
	JobDescription string        `json:"jobDescription,omitempty"`
	Focus          string        `json:"focus,omitempty"`
}

func (h *Handler) history(c *gin.Context) {
	session := sessionFrom(c)
	resp := historyResponse{
		SessionID:      c.GetString(middleware.SessionIDKey),
		Turns:          session.Conversation().Turns(),
		TotalVersions:  session.Versions().Len(),
		JobDescription: session.JobDescription(),
		Focus:          session.Focus(),
	}
	if latest, ok := session.Versions().Latest(); ok {
		idx := latest.VersionIndex
		resp.CurrentVersion = &idx
	}
	respond.OK(c, resp)
}

func (h *Handler) versions(c *gin.Context) {
	all := sessionFrom(c).Versions().All()
	respond.OK(c, gin.H{"versions": all, "total": len(all)})
}

func (h *Handler) version(c *gin.Context) {
	index, ok := versionParam(c)
	if !ok {
		return
	}
	snap, err := sessionFrom(c).Versions().At(index)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, snap)
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

func (h *Handler) feedback(c *gin.Context) {
	c.Set(middleware.OperationKey, "feedback")
	index, ok := versionParam(c)
	if !ok {
		return
	}
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, string(resume.KindInvalidInput), "invalid request body", nil)
		return
	}
	snap, err := sessionFrom(c).AttachFeedback(index, req.Feedback)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, snap)
}

func (h *Handler) listRenders(c *gin.Context) {
	if h.Renders == nil {
		respond.OK(c, gin.H{"renders": []renders.Render{}})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	list, err := h.Renders.List(c.Request.Context(), c.GetString(middleware.SessionIDKey), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, string(resume.KindInternal), "failed to list renders", nil)
		return
	}
	respond.OK(c, gin.H{"renders": list})
}

func (h *Handler) render(c *gin.Context) {
	if h.Renders == nil {
		respond.Error(c, http.StatusNotFound, string(resume.KindNotFound), "render not found", nil)
		return
	}
	render, rc, err := h.Renders.Open(c.Request.Context(), c.GetString(middleware.SessionIDKey), c.Param("renderId"))
	if err != nil {
		if errors.Is(err, renders.ErrNotFound) || errors.Is(err, renders.ErrInvalidInput) {
			respond.Error(c, http.StatusNotFound, string(resume.KindNotFound), "render not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, string(resume.KindInternal), "failed to open render", nil)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, render.SizeBytes, render.MimeType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, render.FileName),
	})
}

// record emits the structured log line and metrics for a model-backed operation.
func (h *Handler) record(c *gin.Context, op string, start time.Time, detail *resume.Detail, extra map[string]any) {
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	outcome := string(resume.OutcomeSuccess)
	fields := map[string]any{
		"session_id":  c.GetString(middleware.SessionIDKey),
		"request_id":  middleware.RequestIDFromContext(c),
		"duration_ms": elapsed,
	}
	for k, v := range extra {
		fields[k] = v
	}
	if detail != nil {
		outcome = string(detail.Kind)
		fields["error_kind"] = string(detail.Kind)
		fields["error"] = detail.Message
	}
	fields["outcome"] = outcome

	metrics.IncOperation(op, outcome)
	metrics.ObserveOperationDurationMs(elapsed)
	if detail != nil && detail.Kind == resume.KindInternal {
		telemetry.Error("session."+op, fields)
		return
	}
	telemetry.Info("session."+op, fields)
}

func writeOutcome[T any](c *gin.Context, outcome resume.Outcome[T]) {
	if outcome.OK() {
		respond.OK(c, outcome.Value)
		return
	}
	respond.Error(c, StatusFor(outcome.Detail.Kind), string(outcome.Detail.Kind), outcome.Detail.Message, nil)
}

func writeError(c *gin.Context, err error) {
	writeOutcome(c, resume.Capture(struct{}{}, err))
}

func versionParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, string(resume.KindInvalidInput), "version index must be an integer", nil)
		return 0, false
	}
	return index, true
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(kind resume.Kind) int {
	switch kind {
	case resume.KindInvalidInput:
		return http.StatusBadRequest
	case resume.KindNotFound:
		return http.StatusNotFound
	case resume.KindPrecondition:
		return http.StatusConflict
	case resume.KindParse, resume.KindGenerationInvalid:
		return http.StatusUnprocessableEntity
	case resume.KindModel:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
