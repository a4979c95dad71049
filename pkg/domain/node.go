package domain

type NodePropertyType string

const (
	NodePropertyType_String   NodePropertyType = "string"
	NodePropertyType_Text     NodePropertyType = "text"
	NodePropertyType_TagInput NodePropertyType = "tag_input"
	NodePropertyType_Integer  NodePropertyType = "integer"
	NodePropertyType_Number   NodePropertyType = "number"
	NodePropertyType_Boolean  NodePropertyType = "boolean"
	NodePropertyType_Array    NodePropertyType = "array"
	NodePropertyType_Map      NodePropertyType = "map"
	NodePropertyType_Date     NodePropertyType = "date"
)

type NodeProperty struct {
	Key         string           `json:"key"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Required    bool             `json:"required"`
	Type        NodePropertyType `json:"type"`
	IsSecret    bool             `json:"is_secret,omitempty"`

	// Validation
	Pattern   string `json:"pattern,omitempty"`
	MinLength int    `json:"min_length,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`

	Placeholder string                 `json:"placeholder,omitempty"`
	Options     []NodePropertyOption   `json:"options,omitempty"`
	NumberOpts  *NumberPropertyOptions `json:"number_opts,omitempty"`

	// Filter marks the property as an event filter evaluated by MatchesConfig.
	Filter bool `json:"filter,omitempty"`
}

type NodePropertyOption struct {
	Label       string `json:"label"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

type NumberPropertyOptions struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// FilterKeys returns the keys of properties flagged as event filters.
func FilterKeys(properties []NodeProperty) []string {
	keys := []string{}

	for _, property := range properties {
		if property.Filter {
			keys = append(keys, property.Key)
		}
	}

	return keys
}
