package domain

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultColor is the background a new draft starts with.
const DefaultColor = "#e3f2fd"

// PresetColors are the background colors offered by the color picker.
var PresetColors = []string{
	"#e3f2fd",
	"#fce4ec",
	"#f0f4c3",
	"#ffebee",
	"#e8f5e9",
	"#fff3e0",
	"#f3e5f5",
}

// Draft is an in-progress task record that has not been submitted yet.
type Draft struct {
	Title       string    `json:"title" validate:"nonblank"`
	Description string    `json:"description"`
	DueDate     Timestamp `json:"due_date" validate:"required"`
	Completed   bool      `json:"completed"`
	IsFavorite  bool      `json:"is_favorite"`
	Color       string    `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// NewDraft returns an empty draft for the create form.
func NewDraft() Draft {
	return Draft{Color: DefaultColor}
}

// Task builds the full record for id from the draft.
func (d Draft) Task(id TaskID) Task {
	return Task{
		ID:          id,
		Title:       d.Title,
		Description: d.Description,
		DueDate:     d.DueDate,
		Completed:   d.Completed,
		IsFavorite:  d.IsFavorite,
		Color:       d.Color,
	}
}

var draftValidate *validator.Validate

func init() {
	draftValidate = validator.New()
	draftValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// A zero Timestamp is reported as absent so "required" rejects it.
	draftValidate.RegisterCustomTypeFunc(func(v reflect.Value) any {
		ts, ok := v.Interface().(Timestamp)
		if !ok || ts.IsZero() {
			return nil
		}
		return ts.Time
	}, Timestamp{})
	_ = draftValidate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Validate checks the fields a submit requires. It returns a
// *ValidationError naming every failing field.
func (d Draft) Validate() error {
	err := draftValidate.Struct(d)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &ValidationError{Message: "draft is incomplete"}
	for _, fe := range fieldErrs {
		verr.add(fe.Field(), validationMessage(fe.Tag()))
	}
	return verr
}

func validationMessage(tag string) string {
	switch tag {
	case "required", "nonblank":
		return "is required"
	case "hexcolor":
		return "must be a hex color"
	default:
		return "is invalid"
	}
}
