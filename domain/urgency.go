package domain

import "time"

// Urgency is the visual classification of a task derived from its due date
// and completion flag.
type Urgency int

const (
	UrgencyNormal Urgency = iota
	UrgencyCompleted
	UrgencyOverdue
	UrgencyDueSoon
)

// DueSoonWindow is how far ahead of now a due date still counts as due soon.
const DueSoonWindow = 24 * time.Hour

var urgencyNames = map[Urgency]string{
	UrgencyNormal:    "normal",
	UrgencyCompleted: "completed",
	UrgencyOverdue:   "overdue",
	UrgencyDueSoon:   "due_soon",
}

func (u Urgency) String() string {
	if name, ok := urgencyNames[u]; ok {
		return name
	}
	return "normal"
}

func (u Urgency) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// ParseUrgency maps a name produced by String back to its Urgency.
func ParseUrgency(name string) (Urgency, bool) {
	for u, n := range urgencyNames {
		if n == name {
			return u, true
		}
	}
	return UrgencyNormal, false
}

// Palette is the display pair for an urgency category.
type Palette struct {
	Background string `json:"background"`
	Accent     string `json:"accent"`
}

var palettes = map[Urgency]Palette{
	UrgencyCompleted: {Background: "#e8f5e9", Accent: "#81c784"},
	UrgencyOverdue:   {Background: "#ffebee", Accent: "#e57373"},
	UrgencyDueSoon:   {Background: "#fff3e0", Accent: "#ffb74d"},
	UrgencyNormal:    {Background: "#e3f2fd", Accent: "#64b5f6"},
}

// Palette returns the display pair for u.
func (u Urgency) Palette() Palette {
	if p, ok := palettes[u]; ok {
		return p
	}
	return palettes[UrgencyNormal]
}

// Classify returns the urgency of a task due at due, evaluated at now.
// Completion wins over any due date. A due date equal to now is due soon,
// as is one exactly DueSoonWindow away.
func Classify(due time.Time, completed bool, now time.Time) Urgency {
	switch {
	case completed:
		return UrgencyCompleted
	case due.Before(now):
		return UrgencyOverdue
	case !due.After(now.Add(DueSoonWindow)):
		return UrgencyDueSoon
	default:
		return UrgencyNormal
	}
}

// Urgency classifies t at now.
func (t Task) Urgency(now time.Time) Urgency {
	return Classify(t.DueDate.Time, t.Completed, now)
}

// Background is the color t renders with at now: its own color when set,
// otherwise the urgency background.
func (t Task) Background(now time.Time) string {
	if t.HasColor() {
		return t.Color
	}
	return t.Urgency(now).Palette().Background
}
