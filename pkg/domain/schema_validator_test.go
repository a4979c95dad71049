package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidator_Validate(t *testing.T) {
	minViewers := float64(1)

	descriptor := Descriptor{
		Provider: IntegrationType_Twitch,
		ID:       "viewer_threshold",
		ConfigProperties: []NodeProperty{
			{Key: "threshold", Name: "Threshold", Type: NodePropertyType_Integer, Required: true, NumberOpts: &NumberPropertyOptions{Min: &minViewers}},
			{Key: "label", Name: "Label", Type: NodePropertyType_String, MaxLength: 5},
			{Key: "mode", Name: "Mode", Type: NodePropertyType_String, Options: []NodePropertyOption{{Label: "A", Value: "a"}, {Label: "B", Value: "b"}}},
		},
	}

	validator := NewSchemaValidator()

	tests := []struct {
		name        string
		config      map[string]any
		wantFields  []string
		expectValid bool
	}{
		{
			name:        "valid config",
			config:      map[string]any{"threshold": 10, "mode": "a"},
			expectValid: true,
		},
		{
			name:       "missing required field",
			config:     map[string]any{},
			wantFields: []string{"threshold"},
		},
		{
			name:       "wrong type",
			config:     map[string]any{"threshold": "ten"},
			wantFields: []string{"threshold"},
		},
		{
			name:       "below minimum and too long",
			config:     map[string]any{"threshold": 0, "label": "much too long"},
			wantFields: []string{"label", "threshold"},
		},
		{
			name:       "value outside options",
			config:     map[string]any{"threshold": 3, "mode": "c"},
			wantFields: []string{"mode"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(descriptor, tt.config)

			if tt.expectValid {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)

			fields := []string{}
			for _, issue := range validationErr.Issues {
				fields = append(fields, issue.Field)
			}

			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestPropertiesToJSONSchema(t *testing.T) {
	schema := PropertiesToJSONSchema([]NodeProperty{
		{Key: "repository", Type: NodePropertyType_String, Required: true, Pattern: "^[^/]+/[^/]+$"},
		{Key: "labels", Type: NodePropertyType_TagInput},
	})

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"repository"}, schema["required"])

	properties := schema["properties"].(map[string]any)
	assert.Equal(t, "^[^/]+/[^/]+$", properties["repository"].(map[string]any)["pattern"])
	assert.Equal(t, "array", properties["labels"].(map[string]any)["type"])
}
