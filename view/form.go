package view

import (
	"context"
	"errors"

	"agenda-view/domain"
)

// Mode tells whether a form creates a task or edits an existing one.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// ErrSessionClosed is returned by Submit after a successful submit.
var ErrSessionClosed = errors.New("form session already submitted")

// FormSession holds the draft being edited in a create or edit form.
type FormSession struct {
	repo   Repository
	mode   Mode
	id     domain.TaskID
	base   domain.Task
	draft  domain.Draft
	closed bool
	err    error
}

// NewCreateForm starts a form for a new task.
func NewCreateForm(repo Repository) *FormSession {
	if repo == nil {
		panic("view.NewCreateForm: repository is nil")
	}
	return &FormSession{repo: repo, mode: ModeCreate, draft: domain.NewDraft()}
}

// OpenEditForm loads task id from the service and starts a form seeded with
// its fields.
func OpenEditForm(ctx context.Context, repo Repository, id domain.TaskID) (*FormSession, error) {
	if repo == nil {
		panic("view.OpenEditForm: repository is nil")
	}
	task, err := repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.ID != id {
		task = task.WithIDOf(domain.Task{ID: id})
	}
	return &FormSession{repo: repo, mode: ModeEdit, id: id, base: task, draft: task.Draft()}, nil
}

func (f *FormSession) Mode() Mode          { return f.mode }
func (f *FormSession) ID() domain.TaskID   { return f.id }
func (f *FormSession) Draft() domain.Draft { return f.draft }
func (f *FormSession) Closed() bool        { return f.closed }

// Err returns the error of the last failed submit.
func (f *FormSession) Err() error { return f.err }

// SetDraft replaces the draft wholesale.
func (f *FormSession) SetDraft(d domain.Draft) { f.draft = d }

// Edit applies fn to the draft.
func (f *FormSession) Edit(fn func(*domain.Draft)) { fn(&f.draft) }

// Submit validates the draft and sends it to the service. A validation
// failure returns a *domain.ValidationError without any request. Any failure
// keeps the draft as it was; success closes the session.
func (f *FormSession) Submit(ctx context.Context) (domain.Task, error) {
	if f.closed {
		return domain.Task{}, ErrSessionClosed
	}
	if err := f.draft.Validate(); err != nil {
		f.err = err
		return domain.Task{}, err
	}

	var (
		task domain.Task
		err  error
	)
	switch f.mode {
	case ModeEdit:
		task, err = f.repo.UpdateTask(ctx, f.id, f.base.WithDraft(f.draft))
	default:
		task, err = f.repo.CreateTask(ctx, f.draft)
	}
	if err != nil {
		f.err = err
		return domain.Task{}, err
	}
	if f.mode == ModeEdit {
		task = task.WithIDOf(f.base)
	}
	f.err = nil
	f.closed = true
	return task, nil
}
