package githubintegration

import "github.com/flowbaker/automations/pkg/domain"

const (
	TriggerID_NewStar = "new_star"

	ActionID_CreateIssue = "create_issue"
)

const repositoryPattern = `^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`

var (
	NewStarTrigger = domain.Descriptor{
		Provider:            domain.IntegrationType_Github,
		ID:                  TriggerID_NewStar,
		Name:                "New Star",
		Description:         "Triggered when someone stars a repository",
		RequiresCredentials: true,
		ConfigProperties: []domain.NodeProperty{
			{
				Key:         "repository",
				Name:        "Repository",
				Description: "Repository in owner/name form",
				Required:    true,
				Type:        domain.NodePropertyType_String,
				Pattern:     repositoryPattern,
				Placeholder: "flowbaker/flowbaker",
			},
		},
		OutputProperties: []domain.NodeProperty{
			{Key: "repository", Name: "Repository", Type: domain.NodePropertyType_String},
			{Key: "user", Name: "User", Type: domain.NodePropertyType_String},
			{Key: "user_url", Name: "User URL", Type: domain.NodePropertyType_String},
			{Key: "starred_at", Name: "Starred At", Type: domain.NodePropertyType_Date},
		},
	}

	CreateIssueAction = domain.Descriptor{
		Provider:            domain.IntegrationType_Github,
		ID:                  ActionID_CreateIssue,
		Name:                "Create Issue",
		Description:         "Open an issue in a repository",
		RequiresCredentials: true,
		InputProperties: []domain.NodeProperty{
			{Key: "repository", Name: "Repository", Required: true, Type: domain.NodePropertyType_String, Pattern: repositoryPattern},
			{Key: "title", Name: "Title", Required: true, Type: domain.NodePropertyType_String},
			{Key: "body", Name: "Body", Type: domain.NodePropertyType_Text},
			{Key: "labels", Name: "Labels", Type: domain.NodePropertyType_TagInput},
		},
	}
)
