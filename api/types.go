package api

import (
	"agenda-view/domain"
	"agenda-view/view"
)

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// RepositoryFactory builds the repository a user's session talks through.
type RepositoryFactory func(userID string) view.Repository

type tasksResponse struct {
	Tasks []view.TaskView `json:"tasks"`
}

type deleteResponse struct {
	ID      domain.TaskID `json:"id"`
	Removed bool          `json:"removed"`
	Warning string        `json:"warning,omitempty"`
}

type errorResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
	Draft  *domain.Draft       `json:"draft,omitempty"`
	Task   *view.TaskView      `json:"task,omitempty"`
}
