package view

import (
	"strings"
	"time"

	"agenda-view/domain"
)

const (
	dueDateLayout      = "02/01/2006 15:04"
	noDescriptionLabel = "No description"
	statusCompleted    = "Completed"
	statusPending      = "Pending"
)

// TaskView is a task prepared for display at a given instant.
type TaskView struct {
	ID              domain.TaskID    `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	DescriptionText string           `json:"description_text"`
	DueDate         domain.Timestamp `json:"due_date"`
	DueDateText     string           `json:"due_date_text"`
	Completed       bool             `json:"completed"`
	IsFavorite      bool             `json:"is_favorite"`
	Color           string           `json:"color,omitempty"`
	Status          string           `json:"status"`
	Urgency         domain.Urgency   `json:"urgency"`
	Background      string           `json:"background"`
	Accent          string           `json:"accent"`
}

// Render classifies t at now and resolves its display attributes.
func Render(t domain.Task, now time.Time) TaskView {
	urgency := t.Urgency(now)
	v := TaskView{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		DescriptionText: t.Description,
		DueDate:         t.DueDate,
		Completed:       t.Completed,
		IsFavorite:      t.IsFavorite,
		Color:           t.Color,
		Status:          statusPending,
		Urgency:         urgency,
		Background:      t.Background(now),
		Accent:          urgency.Palette().Accent,
	}
	if strings.TrimSpace(t.Description) == "" {
		v.DescriptionText = noDescriptionLabel
	}
	if !t.DueDate.IsZero() {
		v.DueDateText = t.DueDate.Local().Format(dueDateLayout)
	}
	if t.Completed {
		v.Status = statusCompleted
	}
	return v
}

// RenderAll renders tasks in order against a single instant.
func RenderAll(tasks []domain.Task, now time.Time) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, Render(t, now))
	}
	return out
}
