package matchopportunities

import (
	"opportunity-matcher/internal/common/validation"
	"opportunity-matcher/internal/matching"
	"opportunity-matcher/internal/notify"
)

// Input is the job's variables. The student's identity travels with the
// process instance rather than through a session store.
type Input struct {
	UserID  int64             `json:"userId"`
	Token   string            `json:"token,omitempty"`
	Role    string            `json:"role,omitempty"`
	Profile matching.RawForm  `json:"profile"`
	Notify  *notify.Recipient `json:"notify,omitempty"`
}

type Output struct {
	Matches      matching.View  `json:"matches"`
	HighMatches  int            `json:"highMatches"`
	Notification *notify.Result `json:"notification,omitempty"`
}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"userId", "profile"},
		Properties: map[string]validation.Property{
			"userId": {Type: "integer", Minimum: validation.Float64Ptr(1)},
			"token":  {Type: "string"},
			"role":   {Type: "string"},
			"profile": {
				Type: "object",
				Properties: map[string]validation.Property{
					"gpa":       {Type: "string"},
					"skills":    {Type: "string"},
					"goals":     {Type: "string"},
					"strengths": {Type: "string"},
					"interests": {Type: "string"},
				},
			},
			"notify": {
				Type:     "object",
				Nullable: true,
				Properties: map[string]validation.Property{
					"email": {Type: "string"},
					"phone": {Type: "string"},
				},
			},
		},
		// Other process variables ride along with the job.
		AdditionalProperties: true,
	}
}
