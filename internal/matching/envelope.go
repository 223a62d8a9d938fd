package matching

import (
	"fmt"
	"sort"
	"sync"
)

// Envelope shapes the request body a matching deployment expects.
type Envelope interface {
	Name() string
	Encode(profile StudentProfile, candidates []OpportunityCandidate) (interface{}, error)
}

const (
	EnvelopeApplicant = "applicant"
	EnvelopeStudent   = "student"
)

var (
	envelopesMu sync.RWMutex
	envelopes   = map[string]func() Envelope{
		EnvelopeApplicant: func() Envelope { return applicantEnvelope{} },
		EnvelopeStudent:   func() Envelope { return studentEnvelope{} },
	}
)

// RegisterEnvelope adds or replaces a named envelope.
func RegisterEnvelope(name string, factory func() Envelope) {
	envelopesMu.Lock()
	defer envelopesMu.Unlock()
	envelopes[name] = factory
}

func NewEnvelope(name string) (Envelope, error) {
	envelopesMu.RLock()
	defer envelopesMu.RUnlock()
	factory, ok := envelopes[name]
	if !ok {
		return nil, fmt.Errorf("unknown match envelope %q (known: %v)", name, envelopeNames())
	}
	return factory(), nil
}

func envelopeNames() []string {
	names := make([]string, 0, len(envelopes))
	for name := range envelopes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// applicantEnvelope is the ai-service shape.
type applicantEnvelope struct{}

type applicantRequest struct {
	Applicant    StudentProfile         `json:"applicant"`
	Scholarships []OpportunityCandidate `json:"scholarships"`
}

func (applicantEnvelope) Name() string { return EnvelopeApplicant }

func (applicantEnvelope) Encode(profile StudentProfile, candidates []OpportunityCandidate) (interface{}, error) {
	return applicantRequest{
		Applicant:    profile.normalized(),
		Scholarships: normalizeCandidates(candidates),
	}, nil
}

// studentEnvelope is the matching-service shape.
type studentEnvelope struct{}

type studentRequest struct {
	StudentUserID  int64                  `json:"student_user_id"`
	StudentProfile StudentProfile         `json:"student_profile"`
	Opportunities  []OpportunityCandidate `json:"opportunities"`
}

func (studentEnvelope) Name() string { return EnvelopeStudent }

func (studentEnvelope) Encode(profile StudentProfile, candidates []OpportunityCandidate) (interface{}, error) {
	return studentRequest{
		StudentUserID:  profile.UserID,
		StudentProfile: profile.normalized(),
		Opportunities:  normalizeCandidates(candidates),
	}, nil
}
