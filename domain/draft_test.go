package domain

import (
	"errors"
	"testing"
	"time"
)

func TestDraftValidateMissingFields(t *testing.T) {
	err := NewDraft().Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !verr.Has("title") || !verr.Has("due_date") {
		t.Fatalf("expected title and due_date to fail, got %v", verr.Fields)
	}
	if verr.Has("color") {
		t.Fatalf("expected default color to pass, got %v", verr.Fields)
	}
}

func TestDraftValidateBlankTitle(t *testing.T) {
	d := Draft{Title: "   ", DueDate: NewTimestamp(time.Now())}
	var verr *ValidationError
	if err := d.Validate(); !errors.As(err, &verr) || !verr.Has("title") {
		t.Fatalf("expected blank title to fail, got %v", err)
	}
}

func TestDraftValidateColor(t *testing.T) {
	d := Draft{Title: "Call", DueDate: NewTimestamp(time.Now()), Color: "blue"}
	var verr *ValidationError
	if err := d.Validate(); !errors.As(err, &verr) || !verr.Has("color") {
		t.Fatalf("expected non-hex color to fail, got %v", err)
	}
	d.Color = ""
	if err := d.Validate(); err != nil {
		t.Fatalf("expected empty color to pass, got %v", err)
	}
	for _, c := range PresetColors {
		d.Color = c
		if err := d.Validate(); err != nil {
			t.Fatalf("expected preset %s to pass, got %v", c, err)
		}
	}
}

func TestValidationErrorMessage(t *testing.T) {
	verr := &ValidationError{Fields: map[string][]string{
		"title":    {"is required"},
		"due_date": {"is required"},
	}}
	want := "validation failed: due_date is required; title is required"
	if verr.Error() != want {
		t.Fatalf("expected %q got %q", want, verr.Error())
	}
}
