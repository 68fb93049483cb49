package resume

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"resume-agent/internal/llm"
	"resume-agent/internal/prompts"
)

// Latest targets the newest snapshot.
const Latest = -1

// RegenerationResult is returned by a successful Regenerate.
type RegenerationResult struct {
	Status       string   `json:"status"`
	Markup       string   `json:"latex"`
	Insights     Insights `json:"insights"`
	VersionIndex int      `json:"versionIndex"`
	SuggestedID  string   `json:"suggestedId"`
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the session's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session owns one conversation and one version history. Operations are
// serialized per session; reads do not wait for an in-flight model call.
type Session struct {
	opMu sync.Mutex

	conversation *ConversationLog
	versions     *VersionStore

	stateMu        sync.RWMutex
	jobDescription string
	focus          string

	gateway llm.Gateway
	prompts prompts.Store
	now     func() time.Time
}

// NewSession constructs an empty session. A nil prompt store behaves as if
// every template were missing.
func NewSession(gateway llm.Gateway, store prompts.Store, opts ...Option) *Session {
	if gateway == nil {
		gateway = llm.PlaceholderGateway{}
	}
	if store == nil {
		store = prompts.Static{}
	}
	s := &Session{gateway: gateway, prompts: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.conversation = NewConversationLog(s.now)
	s.versions = NewVersionStore(s.now)
	return s
}

// Conversation exposes the session's log for reading.
func (s *Session) Conversation() *ConversationLog { return s.conversation }

// Versions exposes the session's snapshots for reading.
func (s *Session) Versions() *VersionStore { return s.versions }

// JobDescription returns the current job description.
func (s *Session) JobDescription() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.jobDescription
}

// Focus returns the current focus.
func (s *Session) Focus() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.focus
}

// SetJobDescription stores text as the target job description.
func (s *Session) SetJobDescription(text string) error {
	if strings.TrimSpace(text) == "" {
		return newError(KindInvalidInput, nil, "job description must not be empty")
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.stateMu.Lock()
	s.jobDescription = text
	s.stateMu.Unlock()
	return nil
}

// SetFocus stores free text the chat context should emphasize. Empty clears it.
func (s *Session) SetFocus(text string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.stateMu.Lock()
	s.focus = strings.TrimSpace(text)
	s.stateMu.Unlock()
}

// AttachFeedback records feedback on an existing snapshot.
func (s *Session) AttachFeedback(index int, feedback string) (Snapshot, error) {
	if strings.TrimSpace(feedback) == "" {
		return Snapshot{}, newError(KindInvalidInput, nil, "feedback must not be empty")
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.versions.setFeedback(index, feedback)
}

const parseInstruction = "Extract the structured information from this resume and return it as JSON following the exact format specified:"

// Parse asks the gateway to structure document and stores the result as a
// new snapshot. On failure no snapshot is added.
func (s *Session) Parse(ctx context.Context, document string) (Snapshot, error) {
	if strings.TrimSpace(document) == "" {
		return Snapshot{}, newError(KindInvalidInput, nil, "resume document must not be empty")
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	reply, err := s.gateway.Complete(ctx, s.prompts.Load(prompts.ResumeParser), []llm.Message{
		{Role: llm.RoleUser, Content: parseInstruction + "\n\n" + document},
	})
	if err != nil {
		s.conversation.Append(RoleSystem, fmt.Sprintf("Error parsing resume: %v", err))
		return Snapshot{}, newError(KindModel, err, "resume parse request failed")
	}
	data, err := ParseResume(reply)
	if err != nil {
		s.conversation.Append(RoleSystem, fmt.Sprintf("Error parsing resume: %v", err))
		return Snapshot{}, newError(KindParse, err, "model reply is not a valid resume")
	}
	return s.addVersion(data, "Initial parse"), nil
}

func (s *Session) addVersion(data Resume, summary string) Snapshot {
	snap := s.versions.Add(data, summary, nil, nil)
	s.conversation.Append(RoleSystem, fmt.Sprintf("New resume version %d created for %s. Changes: %s",
		snap.VersionIndex, snap.Data.Name, summary))
	return snap
}

type versionInfo struct {
	CurrentVersion *int `json:"current_version"`
	TotalVersions  int  `json:"total_versions"`
}

type chatContext struct {
	Resume         *Resume     `json:"resume"`
	ResumeVersion  *int        `json:"resume_version"`
	JobDescription *string     `json:"job_description"`
	CurrentFocus   *string     `json:"current_focus"`
	VersionInfo    versionInfo `json:"version_info"`
}

func (s *Session) chatContext() chatContext {
	c := chatContext{VersionInfo: versionInfo{TotalVersions: s.versions.Len()}}
	if latest, ok := s.versions.Latest(); ok {
		idx := latest.VersionIndex
		c.Resume = &latest.Data
		c.ResumeVersion = &idx
		c.VersionInfo.CurrentVersion = &idx
	}
	if jd := s.JobDescription(); jd != "" {
		c.JobDescription = &jd
	}
	if focus := s.Focus(); focus != "" {
		c.CurrentFocus = &focus
	}
	return c
}

// Chat records userText, asks the gateway for advice grounded on the latest
// snapshot and records the reply. A failed call leaves the user turn and a
// system note in the log.
func (s *Session) Chat(ctx context.Context, userText string) (string, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.conversation.Append(RoleUser, userText)

	contextJSON, err := json.MarshalIndent(s.chatContext(), "", "  ")
	if err != nil {
		s.conversation.Append(RoleSystem, fmt.Sprintf("Error in conversation: %v", err))
		return "", newError(KindInternal, err, "encode chat context")
	}
	system := fmt.Sprintf(`You are an expert resume consultant.
Current context: %s

Provide specific, actionable advice for improving the resume based on the conversation history.
If suggesting changes, be specific about what should be modified and why.`, contextJSON)

	reply, err := s.gateway.Complete(ctx, system, []llm.Message{{Role: llm.RoleUser, Content: userText}})
	if err != nil {
		s.conversation.Append(RoleSystem, fmt.Sprintf("Error in conversation: %v", err))
		return "", newError(KindModel, err, "chat request failed")
	}
	s.conversation.Append(RoleAssistant, reply)
	return reply, nil
}

const generationSystemPrompt = `You are an expert resume writer with a strict commitment to accuracy.
Create a professional LaTeX resume using ONLY the information provided in the resume data.
Never add, fabricate, or enhance details beyond what is explicitly stated in the source data.
Focus on optimal presentation of existing information only.
Return only the LaTeX code.`

// Regenerate renders the snapshot at target (Latest for the newest) as a
// tailored document. Only the target snapshot's markup changes, and only on
// success.
func (s *Session) Regenerate(ctx context.Context, target int) (RegenerationResult, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	jd := s.JobDescription()
	if s.versions.Len() == 0 {
		return RegenerationResult{}, newError(KindPrecondition, nil, "a parsed resume is required before regenerating")
	}
	if strings.TrimSpace(jd) == "" {
		return RegenerationResult{}, newError(KindPrecondition, nil, "a job description is required before regenerating")
	}
	snap, err := s.versions.At(target)
	if err != nil {
		return RegenerationResult{}, err
	}

	insights := s.extractInsights(ctx)

	prompt, err := generationPrompt(jd, snap.Data, insights, s.prompts.Load(prompts.ResumeCreator))
	if err != nil {
		return RegenerationResult{}, newError(KindInternal, err, "build generation prompt")
	}
	reply, err := s.gateway.Complete(ctx, generationSystemPrompt, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		s.conversation.Append(RoleSystem, fmt.Sprintf("Error generating LaTeX: %v", err))
		return RegenerationResult{}, newError(KindModel, err, "generation request failed")
	}
	markup, ok := ExtractMarkup(reply)
	if !ok {
		s.conversation.Append(RoleSystem, "Error generating LaTeX: reply is missing "+DocumentRootMarker)
		return RegenerationResult{}, newError(KindGenerationInvalid, nil, "generated reply does not contain %s", DocumentRootMarker)
	}
	if _, err := s.versions.setMarkup(snap.VersionIndex, markup); err != nil {
		return RegenerationResult{}, err
	}
	return RegenerationResult{
		Status:       "success",
		Markup:       markup,
		Insights:     insights,
		VersionIndex: snap.VersionIndex,
		SuggestedID:  SuggestedID(s.now()),
	}, nil
}

// extractInsights never fails; any problem yields EmptyInsights and a system note.
func (s *Session) extractInsights(ctx context.Context) Insights {
	conversation := transcript(s.conversation.TurnsWithRoles(RoleUser, RoleAssistant))
	reply, err := s.gateway.Complete(ctx, insightSystemPrompt, []llm.Message{
		{Role: llm.RoleUser, Content: insightInstruction + conversation},
	})
	if err != nil {
		s.conversation.Append(RoleSystem, fmt.Sprintf("Error analyzing conversation: %v", err))
		return EmptyInsights()
	}
	insights, err := ParseInsights(reply)
	if err != nil {
		s.conversation.Append(RoleSystem, fmt.Sprintf("Error analyzing conversation: %v", err))
		return EmptyInsights()
	}
	return insights
}

func generationPrompt(jobDescription string, data Resume, insights Insights, guidance string) (string, error) {
	resumeJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	insightsJSON, err := json.MarshalIndent(insights, "", "  ")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Here is a job description:\n\n%s\n\n", jobDescription)
	fmt.Fprintf(&b, "Here is the resume data:\n\n%s\n\n", resumeJSON)
	fmt.Fprintf(&b, "Based on our conversation, these improvements were suggested:\n%s\n\n", insightsJSON)
	b.WriteString(`IMPORTANT: Create a professional LaTeX resume that STRICTLY follows these rules:
1. Use ONLY the information provided in the resume data above and from our conversation. DO NOT add or fabricate any experience, skill, credential or qualification.
2. You may rephrase, reorder or reformat existing content, but must keep complete factual accuracy.
3. Maintain professional formatting and structure.
`)
	if strings.TrimSpace(guidance) != "" {
		b.WriteString("\n")
		b.WriteString(guidance)
		b.WriteString("\n")
	}
	b.WriteString("\nReturn only the LaTeX code.")
	return b.String(), nil
}
