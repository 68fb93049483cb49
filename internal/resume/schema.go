package resume

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Resume is the fixed structured shape parsed from a candidate's document.
type Resume struct {
	Name       string       `json:"name"`
	Email      string       `json:"email"`
	Phone      string       `json:"phone"`
	Location   string       `json:"location"`
	Experience []Experience `json:"experience"`
	Education  []Education  `json:"education"`
	Skills     Skills       `json:"skills"`
}

// Experience is one job entry.
type Experience struct {
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	Achievements []string `json:"achievements"`
}

// Education is one degree entry.
type Education struct {
	Degree         string `json:"degree"`
	School         string `json:"school"`
	GraduationDate string `json:"graduation_date"`
	GPA            string `json:"gpa"`
	Thesis         string `json:"thesis"`
}

// Skills groups technical and soft skills.
type Skills struct {
	Technical  []string `json:"technical"`
	SoftSkills []string `json:"soft_skills"`
}

// Clone returns a deep copy with nil lists replaced by empty ones.
func (r Resume) Clone() Resume {
	out := r
	out.Experience = make([]Experience, len(r.Experience))
	for i, exp := range r.Experience {
		exp.Achievements = cloneStrings(exp.Achievements)
		out.Experience[i] = exp
	}
	out.Education = slices.Clone(r.Education)
	if out.Education == nil {
		out.Education = []Education{}
	}
	out.Skills = Skills{
		Technical:  cloneStrings(r.Skills.Technical),
		SoftSkills: cloneStrings(r.Skills.SoftSkills),
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}

var requiredFields = []string{"name", "email", "phone", "education", "experience", "skills"}

// ParseResume reads a model reply as a Resume. Markdown fences and prose
// around the JSON object are ignored. Replies in the extended shape
// (personal_info, work_experience) are normalized into the fixed shape.
func ParseResume(reply string) (Resume, error) {
	raw, err := extractJSONObject(reply)
	if err != nil {
		return Resume{}, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Resume{}, fmt.Errorf("decode resume json: %w", err)
	}
	if _, ok := fields["personal_info"]; ok {
		return parseExtended(raw)
	}
	for _, name := range requiredFields {
		value, ok := fields[name]
		if !ok || isNull(value) {
			return Resume{}, fmt.Errorf("missing required field %q", name)
		}
	}
	var out Resume
	if err := json.Unmarshal(raw, &out); err != nil {
		return Resume{}, fmt.Errorf("decode resume json: %w", err)
	}
	return out.Clone(), nil
}

type extendedResume struct {
	PersonalInfo *struct {
		Name     *string `json:"name"`
		Email    *string `json:"email"`
		Phone    *string `json:"phone"`
		Location struct {
			City    string `json:"city"`
			State   string `json:"state"`
			Country string `json:"country"`
		} `json:"location"`
	} `json:"personal_info"`
	WorkExperience *[]struct {
		Title            string   `json:"title"`
		Company          string   `json:"company"`
		StartDate        string   `json:"start_date"`
		EndDate          string   `json:"end_date"`
		Responsibilities []string `json:"responsibilities"`
		Achievements     []string `json:"achievements"`
	} `json:"work_experience"`
	Education *[]struct {
		Institution    string          `json:"institution"`
		Degree         string          `json:"degree"`
		FieldOfStudy   string          `json:"field_of_study"`
		GraduationDate string          `json:"graduation_date"`
		GPA            json.RawMessage `json:"gpa"`
		Highlights     []string        `json:"highlights"`
	} `json:"education"`
	Skills *Skills `json:"skills"`
}

func parseExtended(raw []byte) (Resume, error) {
	var in extendedResume
	if err := json.Unmarshal(raw, &in); err != nil {
		return Resume{}, fmt.Errorf("decode resume json: %w", err)
	}
	switch {
	case in.PersonalInfo == nil:
		return Resume{}, fmt.Errorf("missing required field %q", "personal_info")
	case in.PersonalInfo.Name == nil:
		return Resume{}, fmt.Errorf("missing required field %q", "personal_info.name")
	case in.PersonalInfo.Email == nil:
		return Resume{}, fmt.Errorf("missing required field %q", "personal_info.email")
	case in.PersonalInfo.Phone == nil:
		return Resume{}, fmt.Errorf("missing required field %q", "personal_info.phone")
	case in.WorkExperience == nil:
		return Resume{}, fmt.Errorf("missing required field %q", "work_experience")
	case in.Education == nil:
		return Resume{}, fmt.Errorf("missing required field %q", "education")
	case in.Skills == nil:
		return Resume{}, fmt.Errorf("missing required field %q", "skills")
	}

	loc := in.PersonalInfo.Location
	out := Resume{
		Name:     *in.PersonalInfo.Name,
		Email:    *in.PersonalInfo.Email,
		Phone:    *in.PersonalInfo.Phone,
		Location: joinNonEmpty(", ", loc.City, loc.State, loc.Country),
		Skills:   *in.Skills,
	}
	for _, job := range *in.WorkExperience {
		achievements := append(slices.Clone(job.Achievements), job.Responsibilities...)
		out.Experience = append(out.Experience, Experience{
			Title:        job.Title,
			Company:      job.Company,
			StartDate:    job.StartDate,
			EndDate:      job.EndDate,
			Achievements: achievements,
		})
	}
	for _, edu := range *in.Education {
		degree := edu.Degree
		if field := strings.TrimSpace(edu.FieldOfStudy); field != "" {
			degree = fmt.Sprintf("%s in %s", edu.Degree, field)
		}
		out.Education = append(out.Education, Education{
			Degree:         degree,
			School:         edu.Institution,
			GraduationDate: edu.GraduationDate,
			GPA:            rawScalar(edu.GPA),
			Thesis:         firstContaining(edu.Highlights, "thesis"),
		})
	}
	return out.Clone(), nil
}

func extractJSONObject(reply string) ([]byte, error) {
	text := stripFences(reply)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object found in reply")
	}
	raw := []byte(text[start : end+1])
	if !json.Valid(raw) {
		return nil, fmt.Errorf("reply does not contain valid JSON")
	}
	return raw, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.Contains(rest[:nl], "{") {
			rest = rest[nl+1:]
		}
		if j := strings.LastIndex(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	return text
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func rawScalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func firstContaining(values []string, needle string) string {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), needle) {
			return v
		}
	}
	return ""
}
