package view

import (
	"context"
	"errors"
	"fmt"

	"agenda-view/domain"
)

// fakeRepo is an in-memory task service. Hooks run before the default
// behaviour and may override it by returning a non-nil error.
type fakeRepo struct {
	tasks  []domain.Task
	nextID int

	listErr error

	onDelete func(id domain.TaskID) error
	onUpdate func(id domain.TaskID, record domain.Task) error
	onCreate func(draft domain.Draft) error

	listCalls   int
	deleteCalls []domain.TaskID
	updateCalls []domain.Task
	createCalls []domain.Draft
}

func (f *fakeRepo) ListTasks(ctx context.Context) ([]domain.Task, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Task(nil), f.tasks...), nil
}

func (f *fakeRepo) GetTask(ctx context.Context, id domain.TaskID) (domain.Task, error) {
	for _, t := range f.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Task{}, fmt.Errorf("get_task %s: %w", id, domain.ErrNotFound)
}

func (f *fakeRepo) CreateTask(ctx context.Context, draft domain.Draft) (domain.Task, error) {
	f.createCalls = append(f.createCalls, draft)
	if f.onCreate != nil {
		if err := f.onCreate(draft); err != nil {
			return domain.Task{}, err
		}
	}
	f.nextID++
	task := draft.Task(domain.TaskID(fmt.Sprintf("srv-%d", f.nextID)))
	f.tasks = append(f.tasks, task)
	return task, nil
}

func (f *fakeRepo) UpdateTask(ctx context.Context, id domain.TaskID, record domain.Task) (domain.Task, error) {
	f.updateCalls = append(f.updateCalls, record)
	if f.onUpdate != nil {
		if err := f.onUpdate(id, record); err != nil {
			return domain.Task{}, err
		}
	}
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks[i] = record
			return record, nil
		}
	}
	return domain.Task{}, fmt.Errorf("update_task %s: %w", id, domain.ErrNotFound)
}

func (f *fakeRepo) DeleteTask(ctx context.Context, id domain.TaskID) error {
	f.deleteCalls = append(f.deleteCalls, id)
	if f.onDelete != nil {
		if err := f.onDelete(id); err != nil {
			return err
		}
	}
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete_task %s: %w", id, domain.ErrNotFound)
}

var errUnavailable = &domain.TransportError{Op: "test", StatusCode: 503, Err: errors.New("service unavailable")}
