package matching

import "time"

// Known opportunity categories. The set is open; unknown labels pass through.
const (
	TypeScholarship = "scholarship"
	TypeResearchLab = "research_lab"
	TypeProgram     = "program"
)

// StudentProfile is what the matching service scores. Lists are never nil
// once built so they encode as [] rather than null.
type StudentProfile struct {
	UserID    int64    `json:"user_id"`
	GPA       *float64 `json:"gpa"`
	Skills    []string `json:"skills"`
	Goals     []string `json:"goals"`
	Strengths []string `json:"strengths"`
	Interests []string `json:"interests"`
}

type Criteria struct {
	GPAMin            *float64   `json:"gpa_min"`
	Skills            []string   `json:"skills"`
	RequiredDocuments []string   `json:"required_documents"`
	Deadline          *time.Time `json:"deadline"`
}

type OpportunityCandidate struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Type           string    `json:"type"`
	ProviderUserID int64     `json:"provider_user_id,omitempty"`
	Criteria       *Criteria `json:"criteria,omitempty"`
}

type MatchResult struct {
	OpportunityID int64    `json:"opportunity_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Type          string   `json:"type"`
	Score         float64  `json:"score"`
	MatchReasons  []string `json:"match_reasons"`
}

type MatchResponse struct {
	StudentUserID      int64         `json:"student_user_id"`
	TotalOpportunities int           `json:"total_opportunities"`
	Results            []MatchResult `json:"results"`
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func (p StudentProfile) normalized() StudentProfile {
	p.Skills = nonNil(p.Skills)
	p.Goals = nonNil(p.Goals)
	p.Strengths = nonNil(p.Strengths)
	p.Interests = nonNil(p.Interests)
	return p
}

func (c OpportunityCandidate) normalized() OpportunityCandidate {
	if c.Criteria != nil {
		cr := *c.Criteria
		cr.Skills = nonNil(cr.Skills)
		cr.RequiredDocuments = nonNil(cr.RequiredDocuments)
		c.Criteria = &cr
	}
	return c
}

func normalizeCandidates(candidates []OpportunityCandidate) []OpportunityCandidate {
	out := make([]OpportunityCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = c.normalized()
	}
	return out
}
