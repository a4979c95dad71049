package domain

import "fmt"

type IntegrationType string

const (
	IntegrationType_Gmail    IntegrationType = "gmail"
	IntegrationType_Spotify  IntegrationType = "spotify"
	IntegrationType_Twitch   IntegrationType = "twitch"
	IntegrationType_Github   IntegrationType = "github"
	IntegrationType_Gitlab   IntegrationType = "gitlab"
	IntegrationType_Youtube  IntegrationType = "youtube"
	IntegrationType_Telegram IntegrationType = "telegram"
	IntegrationType_Discord  IntegrationType = "discord"
	IntegrationType_Slack    IntegrationType = "slack"
	IntegrationType_Resend   IntegrationType = "resend"
)

type CapabilityKind string

const (
	CapabilityKind_Trigger CapabilityKind = "trigger"
	CapabilityKind_Action  CapabilityKind = "action"
)

// CapabilityKey is the composite registry key "<provider>:<id>".
func CapabilityKey(provider IntegrationType, id string) string {
	return fmt.Sprintf("%s:%s", provider, id)
}

// Descriptor describes one trigger or action. It is immutable once registered.
type Descriptor struct {
	Provider            IntegrationType `json:"provider"`
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Description         string          `json:"description"`
	ConfigProperties    []NodeProperty  `json:"config_properties"`
	OutputProperties    []NodeProperty  `json:"output_properties,omitempty"`
	InputProperties     []NodeProperty  `json:"input_properties,omitempty"`
	RequiresCredentials bool            `json:"requires_credentials"`
	// AcceptsPush marks triggers that inbound webhooks may fire directly.
	AcceptsPush bool `json:"accepts_push,omitempty"`
}

func (d Descriptor) Key() string {
	return CapabilityKey(d.Provider, d.ID)
}

type DescriptorView struct {
	Kind         CapabilityKind `json:"kind"`
	Key          string         `json:"key"`
	Descriptor   Descriptor     `json:"descriptor"`
	ConfigSchema map[string]any `json:"config_schema"`
}

func NewDescriptorView(kind CapabilityKind, d Descriptor) DescriptorView {
	return DescriptorView{
		Kind:         kind,
		Key:          d.Key(),
		Descriptor:   d,
		ConfigSchema: PropertiesToJSONSchema(d.ConfigProperties),
	}
}
