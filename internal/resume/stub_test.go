package resume

import (
	"context"
	"sync"

	"resume-agent/internal/llm"
)

type call struct {
	System   string
	Messages []llm.Message
}

type reply struct {
	Text string
	Err  error
}

// scriptedGateway answers calls in order from replies and records every call.
type scriptedGateway struct {
	mu      sync.Mutex
	replies []reply
	calls   []call
}

func newScripted(replies ...reply) *scriptedGateway {
	return &scriptedGateway{replies: replies}
}

func (g *scriptedGateway) Complete(ctx context.Context, system string, messages []llm.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call{System: system, Messages: append([]llm.Message(nil), messages...)})
	i := len(g.calls) - 1
	if i >= len(g.replies) {
		return "", llm.ErrNotImplemented
	}
	return g.replies[i].Text, g.replies[i].Err
}

func (g *scriptedGateway) push(replies ...reply) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies = append(g.replies, replies...)
}

const minimalResumeJSON = `{"name":"A","email":"a@x.com","phone":"1","education":[],"experience":[],"skills":{"technical":[],"soft_skills":[]}}`
