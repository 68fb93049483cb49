package resume

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"
)

// SuggestedChange is one edit proposed during the conversation.
type SuggestedChange struct {
	Suggestion string `json:"suggestion"`
	Status     string `json:"status"`
	Source     string `json:"source"`
}

// Insights are the actionable edits mined from a conversation.
type Insights struct {
	GeneralImprovements   []string            `json:"general_improvements"`
	SectionSpecific       map[string][]string `json:"section_specific"`
	SkillsFocus           []string            `json:"skills_focus"`
	Formatting            []string            `json:"formatting"`
	Keywords              []string            `json:"keywords"`
	ModelSuggestedChanges []SuggestedChange   `json:"model_suggested_changes"`
	ApprovedChanges       []string            `json:"approved_changes"`
}

// EmptyInsights returns the all-empty insights value.
func EmptyInsights() Insights {
	return Insights{
		GeneralImprovements:   []string{},
		SectionSpecific:       map[string][]string{},
		SkillsFocus:           []string{},
		Formatting:            []string{},
		Keywords:              []string{},
		ModelSuggestedChanges: []SuggestedChange{},
		ApprovedChanges:       []string{},
	}
}

// ParseInsights reads a model reply as Insights. Absent keys become empty.
func ParseInsights(reply string) (Insights, error) {
	raw, err := extractJSONObject(reply)
	if err != nil {
		return EmptyInsights(), err
	}
	var in Insights
	if err := json.Unmarshal(raw, &in); err != nil {
		return EmptyInsights(), fmt.Errorf("decode insights json: %w", err)
	}
	return in.normalized(), nil
}

func (in Insights) normalized() Insights {
	out := EmptyInsights()
	out.GeneralImprovements = append(out.GeneralImprovements, in.GeneralImprovements...)
	for section, changes := range in.SectionSpecific {
		out.SectionSpecific[section] = cloneStrings(changes)
	}
	out.SkillsFocus = append(out.SkillsFocus, in.SkillsFocus...)
	out.Formatting = append(out.Formatting, in.Formatting...)
	out.Keywords = append(out.Keywords, in.Keywords...)
	out.ModelSuggestedChanges = append(out.ModelSuggestedChanges, in.ModelSuggestedChanges...)
	out.ApprovedChanges = append(out.ApprovedChanges, in.ApprovedChanges...)
	return out
}

const insightSystemPrompt = `You are an expert at analyzing resume discussions.
Focus on extracting concrete, actionable changes while maintaining strict accuracy.
Only include changes that work with existing resume information.
Return results as properly formatted JSON.`

const insightInstruction = `Carefully analyze this conversation history about a resume and extract:
1. General improvements suggested
2. Section-specific changes
3. Skills to emphasize
4. Formatting suggestions
5. Keywords to include
6. Model-suggested changes: specific changes the assistant suggested during the conversation
7. Approved changes: suggestions the user explicitly agreed with

Only include changes that can be made using information already in the resume. For each
suggested change, record whether it came from the user or the assistant and whether the user
approved it.

Return a JSON object with exactly this structure:
{
  "general_improvements": ["..."],
  "section_specific": {"section_name": ["..."]},
  "skills_focus": ["..."],
  "formatting": ["..."],
  "keywords": ["..."],
  "model_suggested_changes": [{"suggestion": "...", "status": "approved|pending", "source": "user|assistant"}],
  "approved_changes": ["..."]
}

Conversation:
`

func transcript(turns iter.Seq[Turn]) string {
	var b strings.Builder
	for turn := range turns {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", turn.Role, turn.Text)
	}
	return b.String()
}
