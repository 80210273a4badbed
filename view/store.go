package view

import (
	"container/list"
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"agenda-view/domain"
)

// Store holds the ordered task collection for one view. It is not safe for
// concurrent use; callers serialize access the way a UI serializes clicks.
type Store struct {
	repo Repository
	log  *log.Logger

	order   *list.List
	index   map[domain.TaskID]*list.Element
	loaded  bool
	loadErr error
}

// NewStore creates an empty store backed by repo.
func NewStore(repo Repository, logger *log.Logger) *Store {
	if repo == nil {
		panic("view.NewStore: repository is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{
		repo:  repo,
		log:   logger,
		order: list.New(),
		index: make(map[domain.TaskID]*list.Element),
	}
}

// Load replaces the collection with the service's task list, keeping server
// order. On failure the previous collection is kept and Err reports the
// failure until the next successful Load.
func (s *Store) Load(ctx context.Context) error {
	tasks, err := s.repo.ListTasks(ctx)
	if err != nil {
		s.loadErr = err
		s.log.WithError(err).Warn("task list load failed")
		return err
	}

	order := list.New()
	index := make(map[domain.TaskID]*list.Element, len(tasks))
	for _, t := range tasks {
		if _, dup := index[t.ID]; dup {
			s.log.WithField("task", t.ID).Warn("duplicate task id in listing; keeping first")
			continue
		}
		index[t.ID] = order.PushBack(t)
	}
	s.order = order
	s.index = index
	s.loaded = true
	s.loadErr = nil
	return nil
}

// Err returns the error of the most recent Load, or nil if it succeeded.
func (s *Store) Err() error { return s.loadErr }

// Loaded reports whether any Load has succeeded.
func (s *Store) Loaded() bool { return s.loaded }

// Len returns the number of tasks held.
func (s *Store) Len() int { return s.order.Len() }

// Get returns the task with id.
func (s *Store) Get(id domain.TaskID) (domain.Task, bool) {
	el, ok := s.index[id]
	if !ok {
		return domain.Task{}, false
	}
	return el.Value.(domain.Task), true
}

// All returns a copy of the collection in order.
func (s *Store) All() []domain.Task {
	out := make([]domain.Task, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(domain.Task))
	}
	return out
}

// Filter returns the tasks whose urgency at now is one of urgencies, in
// collection order. With no urgencies it returns All.
func (s *Store) Filter(now time.Time, urgencies ...domain.Urgency) []domain.Task {
	if len(urgencies) == 0 {
		return s.All()
	}
	want := make(map[domain.Urgency]bool, len(urgencies))
	for _, u := range urgencies {
		want[u] = true
	}
	out := []domain.Task{}
	for el := s.order.Front(); el != nil; el = el.Next() {
		t := el.Value.(domain.Task)
		if want[t.Urgency(now)] {
			out = append(out, t)
		}
	}
	return out
}

// Remove deletes id from the collection and then asks the service to delete
// it. The local removal is not undone if the service call fails; the
// returned *MutationError lets the caller warn the user. It reports false,
// with no error and no request, when id is not held.
func (s *Store) Remove(ctx context.Context, id domain.TaskID) (bool, error) {
	el, ok := s.index[id]
	if !ok {
		return false, nil
	}
	s.order.Remove(el)
	delete(s.index, id)

	if err := s.repo.DeleteTask(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return true, nil
		}
		s.log.WithFields(log.Fields{"task": id}).WithError(err).Warn("remote delete failed; task stays removed locally")
		return true, &MutationError{Op: "remove", ID: id, Err: err}
	}
	return true, nil
}

// ToggleFavorite flips the favorite flag through the service. The local task
// changes only to the record the service returns.
func (s *Store) ToggleFavorite(ctx context.Context, id domain.TaskID) (domain.Task, error) {
	return s.toggle(ctx, "toggle_favorite", id, func(t *domain.Task) { t.IsFavorite = !t.IsFavorite })
}

// ToggleCompleted flips the completed flag with the same semantics as
// ToggleFavorite.
func (s *Store) ToggleCompleted(ctx context.Context, id domain.TaskID) (domain.Task, error) {
	return s.toggle(ctx, "toggle_completed", id, func(t *domain.Task) { t.Completed = !t.Completed })
}

func (s *Store) toggle(ctx context.Context, op string, id domain.TaskID, flip func(*domain.Task)) (domain.Task, error) {
	current, ok := s.Get(id)
	if !ok {
		return domain.Task{}, &MutationError{Op: op, ID: id, Err: domain.ErrNotFound}
	}
	record := current
	flip(&record)

	updated, err := s.repo.UpdateTask(ctx, id, record)
	if err != nil {
		s.log.WithFields(log.Fields{"task": id, "op": op}).WithError(err).Warn("remote update failed; task left unchanged")
		return current, &MutationError{Op: op, ID: id, Err: err}
	}
	updated = updated.WithIDOf(current)
	if el, ok := s.index[id]; ok {
		el.Value = updated
	}
	return updated, nil
}

// Upsert records a task the service has confirmed, such as the result of a
// form submit. An existing entry is replaced in place; a new one is appended.
func (s *Store) Upsert(t domain.Task) {
	if el, ok := s.index[t.ID]; ok {
		el.Value = t
		return
	}
	s.index[t.ID] = s.order.PushBack(t)
}
