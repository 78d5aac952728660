package types

import (
	"strings"
	"testing"
	"time"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in    string
		want  Category
		valid bool
	}{
		{"open", CategoryOpen, true},
		{"wip", CategoryWip, true},
		{"done", CategoryDone, true},
		{" DONE ", CategoryDone, true},
		{"closed", Category("closed"), false},
		{"", Category(""), false},
	}
	for _, tt := range tests {
		got, ok := ParseCategory(tt.in)
		if ok != tt.valid {
			t.Errorf("ParseCategory(%q) valid = %v, want %v", tt.in, ok, tt.valid)
		}
		if ok && got != tt.want {
			t.Errorf("ParseCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLegacyCategory(t *testing.T) {
	tests := []struct {
		status string
		want   Category
	}{
		{"open", CategoryOpen},
		{"in_progress", CategoryWip},
		{"closed", CategoryDone},
		{"done", CategoryDone},
		{"resolved", CategoryDone},
		{"wont_fix", CategoryDone},
		{"cancelled", CategoryDone},
		{"archived", CategoryDone},
		{"triage", CategoryOpen},
		{"anything_else", CategoryOpen},
	}
	for _, tt := range tests {
		if got := LegacyCategory(tt.status); got != tt.want {
			t.Errorf("LegacyCategory(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestValidName(t *testing.T) {
	valid := []string{"open", "in_progress", "wont_fix", "a", "z9", "bug", strings.Repeat("a", 64)}
	for _, s := range valid {
		if !ValidName(s) {
			t.Errorf("ValidName(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "Open", "9open", "_open", "open-state", "open state", strings.Repeat("a", 65)}
	for _, s := range invalid {
		if ValidName(s) {
			t.Errorf("ValidName(%q) = true, want false", s)
		}
	}
}

func TestIssueValidate(t *testing.T) {
	base := func() *Issue {
		return &Issue{ID: "wf-abc123", Title: "Fix the flaky test", Status: "open", Type: "bug", Priority: 2}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid issue rejected: %v", err)
	}

	i := base()
	i.Title = "   "
	if err := i.Validate(); err == nil {
		t.Error("expected error for blank title")
	}

	i = base()
	i.Priority = 5
	if err := i.Validate(); err == nil {
		t.Error("expected error for out-of-range priority")
	}

	i = base()
	i.Priority = -1
	if err := i.Validate(); err == nil {
		t.Error("expected error for negative priority")
	}

	i = base()
	i.Type = "Bad-Type"
	if err := i.Validate(); err == nil {
		t.Error("expected error for invalid type name")
	}

	i = base()
	i.ParentID = i.ID
	if err := i.Validate(); err == nil {
		t.Error("expected error for self-parent")
	}
}

func TestFieldValueUnpopulated(t *testing.T) {
	tests := []struct {
		name string
		v    FieldValue
		want bool
	}{
		{"null", NewNull(), true},
		{"empty text", NewText(""), true},
		{"whitespace text", NewText("   \t"), true},
		{"text", NewText("x"), false},
		{"zero int", NewInt(0), false},
		{"false bool", NewBool(false), false},
		{"empty list", NewList(), false},
		{"empty enum", NewEnum(""), true},
		{"enum", NewEnum("high"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Unpopulated(); got != tt.want {
				t.Errorf("Unpopulated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFieldValueJSONRoundTrip(t *testing.T) {
	m := FieldMap{
		"summary":  NewText("tests pass"),
		"attempts": NewInt(0),
		"urgent":   NewBool(false),
		"steps":    NewList("build", "test"),
		"due":      NewDate(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		"cleared":  NewNull(),
	}

	data, err := marshalFieldMap(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := unmarshalFieldMap(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got["summary"].Text != "tests pass" || got["summary"].Kind != FieldText {
		t.Errorf("summary = %+v", got["summary"])
	}
	if got["attempts"].Int != 0 || got["attempts"].Kind != FieldInt {
		t.Errorf("attempts = %+v", got["attempts"])
	}
	if got["urgent"].Bool || got["urgent"].Kind != FieldBool {
		t.Errorf("urgent = %+v", got["urgent"])
	}
	if len(got["steps"].List) != 2 || got["steps"].List[0] != "build" {
		t.Errorf("steps = %+v", got["steps"])
	}
	// Dates come back as text until schema validation refines them.
	if got["due"].Kind != FieldText || got["due"].Text != "2025-03-01" {
		t.Errorf("due = %+v", got["due"])
	}
	if got["cleared"].Kind != FieldNull {
		t.Errorf("cleared = %+v", got["cleared"])
	}
}

func TestFieldValueUnmarshalRejectsFloat(t *testing.T) {
	var v FieldValue
	if err := v.UnmarshalJSON([]byte("1.5")); err == nil {
		t.Error("expected error for non-integer number")
	}
}

func TestFieldMapMerge(t *testing.T) {
	base := FieldMap{"a": NewText("1"), "b": NewText("2")}
	merged := base.Merge(FieldMap{"b": NewText("changed"), "c": NewInt(3)})

	if merged["a"].Text != "1" || merged["b"].Text != "changed" || merged["c"].Int != 3 {
		t.Errorf("merge produced %+v", merged)
	}
	// Inputs untouched.
	if base["b"].Text != "2" {
		t.Errorf("merge mutated the base map: %+v", base)
	}
	if len(base) != 2 {
		t.Errorf("merge grew the base map: %+v", base)
	}
}

func TestFieldMapPopulated(t *testing.T) {
	m := FieldMap{"set": NewText("x"), "blank": NewText(" "), "zero": NewInt(0)}
	if !m.Populated("set") {
		t.Error("set should be populated")
	}
	if m.Populated("blank") {
		t.Error("blank text should be unpopulated")
	}
	if !m.Populated("zero") {
		t.Error("zero int should be populated")
	}
	if m.Populated("absent") {
		t.Error("absent key should be unpopulated")
	}
}
