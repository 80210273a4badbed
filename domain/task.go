package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// TaskID is the identifier assigned to a task by the remote service. The
// service may send it as a JSON string or number; both decode to the same
// textual form. The wire shape is kept on the Task that carries it.
type TaskID string

func (id TaskID) String() string { return string(id) }

func (id TaskID) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(string(id))
}

func (id *TaskID) UnmarshalJSON(data []byte) error {
	parsed, _, err := decodeTaskID(data)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// decodeTaskID reads a string, number or null id and reports whether it was
// a number.
func decodeTaskID(data []byte) (TaskID, bool, error) {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "" || raw == "null":
		return "", false, nil
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := sonic.Unmarshal([]byte(raw), &s); err != nil {
			return "", false, err
		}
		return TaskID(s), false, nil
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return "", false, fmt.Errorf("task id must be a string or number: %w", err)
	}
	return TaskID(raw), true, nil
}

// Task is a task record as exchanged with the remote task service.
type Task struct {
	ID          TaskID    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     Timestamp `json:"due_date"`
	Completed   bool      `json:"completed"`
	IsFavorite  bool      `json:"is_favorite"`
	Color       string    `json:"color,omitempty"`

	numericID bool
}

// taskWire is Task as it travels, with the id kept raw so its shape
// survives a round trip.
type taskWire struct {
	ID          sonic.NoCopyRawMessage `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	DueDate     Timestamp              `json:"due_date"`
	Completed   bool                   `json:"completed"`
	IsFavorite  bool                   `json:"is_favorite"`
	Color       string                 `json:"color,omitempty"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	id := []byte(t.ID)
	if !t.numericID {
		var err error
		if id, err = sonic.Marshal(string(t.ID)); err != nil {
			return nil, err
		}
	}
	return sonic.Marshal(taskWire{
		ID:          id,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Completed:   t.Completed,
		IsFavorite:  t.IsFavorite,
		Color:       t.Color,
	})
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var wire taskWire
	if err := sonic.Unmarshal(data, &wire); err != nil {
		return err
	}
	id, numeric, err := decodeTaskID(wire.ID)
	if err != nil {
		return err
	}
	*t = Task{
		ID:          id,
		Title:       wire.Title,
		Description: wire.Description,
		DueDate:     wire.DueDate,
		Completed:   wire.Completed,
		IsFavorite:  wire.IsFavorite,
		Color:       wire.Color,
		numericID:   numeric,
	}
	return nil
}

// WithDraft returns t with its editable fields replaced by d. The identity
// of t, including the wire shape of its id, is kept.
func (t Task) WithDraft(d Draft) Task {
	t.Title = d.Title
	t.Description = d.Description
	t.DueDate = d.DueDate
	t.Completed = d.Completed
	t.IsFavorite = d.IsFavorite
	t.Color = d.Color
	return t
}

// WithIDOf returns t carrying the id of other.
func (t Task) WithIDOf(other Task) Task {
	t.ID = other.ID
	t.numericID = other.numericID
	return t
}

// Draft returns the editable fields of t.
func (t Task) Draft() Draft {
	return Draft{
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Completed:   t.Completed,
		IsFavorite:  t.IsFavorite,
		Color:       t.Color,
	}
}

// HasColor reports whether the task carries an explicit display color.
func (t Task) HasColor() bool {
	return strings.TrimSpace(t.Color) != ""
}
