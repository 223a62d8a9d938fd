package sendmatchdigest

import "opportunity-matcher/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"userId", "matches", "notify"},
		Properties: map[string]validation.Property{
			"userId": {
				Type:        "integer",
				Description: "Student user id",
				Minimum:     validation.Float64Ptr(1),
			},
			"matches": {
				Type:        "object",
				Description: "Ranked view produced by match-opportunities",
				Required:    []string{"items"},
				Properties: map[string]validation.Property{
					"items": {Type: "array"},
				},
			},
			"notify": {
				Type:        "object",
				Description: "Where to send the digest",
				Properties: map[string]validation.Property{
					"email": {Type: "string", MaxLength: validation.IntPtr(255)},
					"phone": {Type: "string", MaxLength: validation.IntPtr(32)},
				},
			},
		},
		AdditionalProperties: true,
	}
}

func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"notification": {
				Type:        "object",
				Description: "Digest outcome with its notification id",
			},
			"delivered": {
				Type:        "boolean",
				Description: "Whether any channel accepted the digest",
			},
		},
		AdditionalProperties: false,
	}
}
