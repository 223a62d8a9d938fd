package matching

import (
	"math"
	"strconv"
	"strings"

	apperrors "opportunity-matcher/internal/common/errors"
	"opportunity-matcher/internal/common/validation"
)

// RawForm is the profile exactly as typed: a GPA and four comma-separated lists.
type RawForm struct {
	GPA       string `json:"gpa"`
	Skills    string `json:"skills"`
	Goals     string `json:"goals"`
	Strengths string `json:"strengths"`
	Interests string `json:"interests"`
}

var profileSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"gpa": {
			Type:     "number",
			Nullable: true,
			Minimum:  validation.Float64Ptr(0),
			Maximum:  validation.Float64Ptr(4),
		},
	},
}

// SplitList splits on commas, trims each segment and drops empty ones.
// Order and duplicates are kept.
func SplitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseGPA returns nil for blank input.
func ParseGPA(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	gpa, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(gpa) || math.IsInf(gpa, 0) {
		return nil, apperrors.NewValidationError("gpa", "gpa must be a number")
	}

	result := validation.ValidateInput(map[string]interface{}{"gpa": gpa}, profileSchema)
	if !result.Valid {
		return nil, apperrors.NewValidationError("gpa", "gpa must be between 0 and 4")
	}
	return &gpa, nil
}

// BuildProfile turns form input into a StudentProfile. Only a non-blank,
// unusable GPA is an error.
func BuildProfile(userID int64, form RawForm) (StudentProfile, error) {
	gpa, err := ParseGPA(form.GPA)
	if err != nil {
		return StudentProfile{}, err
	}
	return StudentProfile{
		UserID:    userID,
		GPA:       gpa,
		Skills:    SplitList(form.Skills),
		Goals:     SplitList(form.Goals),
		Strengths: SplitList(form.Strengths),
		Interests: SplitList(form.Interests),
	}, nil
}
