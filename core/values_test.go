package core

import (
	"math"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestMapSubmissionValues_CoercesByDescriptorType(t *testing.T) {
	submission := Submission{Values: map[string]any{
		"email":    " ada@example.com ",
		"kids":     "3",
		"budget":   "1250.50",
		"optIn":    "yes",
		"birthday": "1815-12-10",
		"blank":    "  ",
		"topics":   []any{"math", "engines"},
	}}
	fields := []FieldDescriptor{
		{Handle: "emailaddress1", Type: FieldTypeString},
		{Handle: "numberofchildren", Type: FieldTypeNumber},
		{Handle: "budgetamount", Type: FieldTypeFloat},
		{Handle: "donotemail", Type: FieldTypeBoolean},
		{Handle: "birthdate", Type: FieldTypeDateTime},
		{Handle: "description", Type: FieldTypeString},
		{Handle: "subject", Type: FieldTypeString},
	}
	mapping := FieldMapping{
		"emailaddress1":    "{email}",
		"numberofchildren": "kids",
		"budgetamount":     "budget",
		"donotemail":       "optIn",
		"birthdate":        "birthday",
		"description":      "blank",
		"subject":          "topics",
		"unknownremote":    "email",
	}

	values, err := MapSubmissionValues(submission, mapping, fields)
	if err != nil {
		t.Fatalf("map values: %v", err)
	}
	if values["emailaddress1"] != "ada@example.com" {
		t.Fatalf("expected trimmed email, got %#v", values["emailaddress1"])
	}
	if values["numberofchildren"] != int64(3) {
		t.Fatalf("expected int64 3, got %#v", values["numberofchildren"])
	}
	if values["budgetamount"] != 1250.5 {
		t.Fatalf("expected float budget, got %#v", values["budgetamount"])
	}
	if values["donotemail"] != true {
		t.Fatalf("expected bool, got %#v", values["donotemail"])
	}
	if values["birthdate"] != time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC).Format(time.RFC3339) {
		t.Fatalf("unexpected datetime %#v", values["birthdate"])
	}
	if values["subject"] != "math, engines" {
		t.Fatalf("expected joined list, got %#v", values["subject"])
	}
	if _, ok := values["description"]; ok {
		t.Fatalf("expected blank value to be skipped")
	}
	if values["unknownremote"] != " ada@example.com " {
		t.Fatalf("expected handle without descriptor to pass through untyped, got %#v", values["unknownremote"])
	}
}

func TestMapSubmissionValues_ReportsTypeMismatches(t *testing.T) {
	_, err := MapSubmissionValues(
		Submission{Values: map[string]any{"kids": "several"}},
		FieldMapping{"numberofchildren": "kids"},
		[]FieldDescriptor{{Handle: "numberofchildren", Type: FieldTypeNumber}},
	)
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ClassifyError(err) != ErrorKindValidation {
		t.Fatalf("expected validation kind")
	}
}

func TestMapSubmissionValues_PassThroughWithoutDescriptors(t *testing.T) {
	values, err := MapSubmissionValues(
		Submission{Values: map[string]any{"email": "ada@example.com"}},
		FieldMapping{"email": "email"},
		nil,
	)
	if err != nil || values["email"] != "ada@example.com" {
		t.Fatalf("unexpected values %#v %v", values, err)
	}
}

func TestMapSubmissionValues_KeepsMappedHandlesMissingFromSnapshot(t *testing.T) {
	values, err := MapSubmissionValues(
		Submission{Values: map[string]any{"email": "a@b.c", "note": "call after five"}},
		FieldMapping{"emailaddress1": "email", "new_customnote": "note"},
		[]FieldDescriptor{{Handle: "emailaddress1", Type: FieldTypeString}},
	)
	if err != nil {
		t.Fatalf("map values: %v", err)
	}
	if values["emailaddress1"] != "a@b.c" || values["new_customnote"] != "call after five" {
		t.Fatalf("expected both mapped values, got %#v", values)
	}
}

func TestCoerceFieldValue_IntegerRejectsFractionsAndOverflow(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  int64
		fails bool
	}{
		{name: "integral string", value: "12", want: 12},
		{name: "whole float string", value: "12.0", want: 12},
		{name: "whole float", value: 7.0, want: 7},
		{name: "fractional string", value: "12.7", fails: true},
		{name: "fractional float", value: 2.5, fails: true},
		{name: "uint64 overflow", value: uint64(math.MaxInt64) + 1, fails: true},
		{name: "large uint64", value: uint64(math.MaxInt64), want: math.MaxInt64},
		{name: "float overflow", value: 1e19, fails: true},
	}
	for _, tc := range cases {
		got, err := CoerceFieldValue(FieldTypeNumber, tc.value)
		if tc.fails {
			if err == nil {
				t.Fatalf("%s: expected error, got %#v", tc.name, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%s: expected %d, got %#v (%v)", tc.name, tc.want, got, err)
		}
	}
}

func TestValidateFieldMapping_ListsEveryMissingRequiredField(t *testing.T) {
	err := ValidateFieldMapping("contact", FieldMapping{"lastname": "name"}, []FieldDescriptor{
		{Handle: "lastname", Name: "Last Name", Required: true},
		{Handle: "emailaddress1", Name: "Email", Required: true},
		{Handle: "ownerid@odata.bind", Name: "Owner", Required: true},
		{Handle: "description", Name: "Description"},
	})
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors validation, got %v", err)
	}
	if got := len(richErr.AllValidationErrors()); got != 2 {
		t.Fatalf("expected 2 missing fields, got %d", got)
	}
	if ValidateFieldMapping("contact", FieldMapping{}, nil) != nil {
		t.Fatalf("expected no error without required fields")
	}
}
