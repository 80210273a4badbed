package view

import (
	"context"

	"agenda-view/domain"
)

// Repository is the remote task service as seen by the store and forms.
type Repository interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id domain.TaskID) (domain.Task, error)
	CreateTask(ctx context.Context, draft domain.Draft) (domain.Task, error)
	UpdateTask(ctx context.Context, id domain.TaskID, record domain.Task) (domain.Task, error)
	DeleteTask(ctx context.Context, id domain.TaskID) error
}

// MutationError is a recoverable failure of a store mutation. The store is
// left in whatever state the operation's policy defines; nothing is retried.
type MutationError struct {
	Op  string
	ID  domain.TaskID
	Err error
}

func (e *MutationError) Error() string {
	return e.Op + " " + string(e.ID) + ": " + e.Err.Error()
}

func (e *MutationError) Unwrap() error { return e.Err }
