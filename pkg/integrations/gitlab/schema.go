package gitlab

import "github.com/flowbaker/automations/pkg/domain"

const ActionID_CreateIssue = "create_issue"

var CreateIssueAction = domain.Descriptor{
	Provider:            domain.IntegrationType_Gitlab,
	ID:                  ActionID_CreateIssue,
	Name:                "Create Issue",
	Description:         "Open an issue in a GitLab project",
	RequiresCredentials: true,
	InputProperties: []domain.NodeProperty{
		{Key: "project_id", Name: "Project", Description: "Numeric id or full path of the project", Required: true, Type: domain.NodePropertyType_String, Placeholder: "group/project"},
		{Key: "title", Name: "Title", Required: true, Type: domain.NodePropertyType_String},
		{Key: "description", Name: "Description", Type: domain.NodePropertyType_Text},
		{Key: "labels", Name: "Labels", Type: domain.NodePropertyType_TagInput},
	},
}
