package templates

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/weftworks/weft/internal/types"
)

func validTemplateJSON() string {
	return `{
		"type": "ticket",
		"states": [
			{"name": "open", "category": "open"},
			{"name": "working", "category": "wip"},
			{"name": "closed", "category": "done"}
		],
		"initial_state": "open",
		"transitions": [
			{"from": "open", "to": "working", "enforcement": "soft"},
			{"from": "working", "to": "closed", "enforcement": "hard", "requires_fields": ["resolution"]}
		],
		"fields_schema": [
			{"name": "resolution", "type": "text"}
		]
	}`
}

func TestParseTemplate(t *testing.T) {
	tmpl, warnings, err := ParseTemplate([]byte(validTemplateJSON()))
	if err != nil {
		t.Fatalf("ParseTemplate failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if tmpl.Type != "ticket" {
		t.Errorf("type = %q, want ticket", tmpl.Type)
	}
	if len(tmpl.States) != 3 || tmpl.States[1].Category != types.CategoryWip {
		t.Errorf("states parsed wrong: %+v", tmpl.States)
	}
	if tmpl.InitialState != "open" {
		t.Errorf("initial_state = %q", tmpl.InitialState)
	}
}

func TestParseTemplateUnknownKeyWarning(t *testing.T) {
	data := strings.Replace(validTemplateJSON(), `"type": "ticket",`, `"type": "ticket", "colour": "red",`, 1)
	_, warnings, err := ParseTemplate([]byte(data))
	if err != nil {
		t.Fatalf("ParseTemplate failed: %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "colour") {
		t.Errorf("warnings = %v, want one mentioning colour", warnings)
	}
}

func TestParseTemplateErrors(t *testing.T) {
	cases := []struct {
		name    string
		mangle  func(string) string
		wantSub string
	}{
		{
			"bad type name",
			func(s string) string { return strings.Replace(s, `"type": "ticket"`, `"type": "Ticket!"`, 1) },
			"invalid type name",
		},
		{
			"initial state not declared",
			func(s string) string { return strings.Replace(s, `"initial_state": "open"`, `"initial_state": "begin"`, 1) },
			"initial_state",
		},
		{
			"transition to unknown state",
			func(s string) string { return strings.Replace(s, `"to": "working"`, `"to": "limbo"`, 1) },
			"unknown state",
		},
		{
			"requires unknown field",
			func(s string) string { return strings.Replace(s, `["resolution"]`, `["severity"]`, 1) },
			"unknown field",
		},
		{
			"bad category",
			func(s string) string { return strings.Replace(s, `"category": "wip"`, `"category": "busy"`, 1) },
			"invalid category",
		},
		{
			"bad enforcement",
			func(s string) string { return strings.Replace(s, `"enforcement": "hard"`, `"enforcement": "strict"`, 1) },
			"invalid enforcement",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseTemplate([]byte(tc.mangle(validTemplateJSON())))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrParse) {
				t.Errorf("error %v is not ErrParse", err)
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestParseTemplateSizeCaps(t *testing.T) {
	big := make([]byte, MaxFileSize+1)
	if _, _, err := ParseTemplate(big); err == nil {
		t.Error("oversized file should be rejected")
	}

	var sb strings.Builder
	sb.WriteString(`{"type": "wide", "initial_state": "s0", "states": [`)
	for i := 0; i <= MaxStates; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"name": "s` + strconv.Itoa(i) + `", "category": "open"}`)
	}
	sb.WriteString(`]}`)
	if _, _, err := ParseTemplate([]byte(sb.String())); err == nil {
		t.Errorf("template with %d states should be rejected", MaxStates+1)
	}
}

func TestParsePack(t *testing.T) {
	data := `{
		"name": "mini",
		"version": "0.2.0",
		"types": [` + validTemplateJSON() + `]
	}`
	pack, warnings, err := ParsePack([]byte(data))
	if err != nil {
		t.Fatalf("ParsePack failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if pack.Name != "mini" || pack.Version != "0.2.0" {
		t.Errorf("pack header = %q %q", pack.Name, pack.Version)
	}
	if len(pack.Types) != 1 || pack.Types[0].Type != "ticket" {
		t.Errorf("pack types = %+v", pack.Types)
	}
	if pack.Types[0].Pack != "mini" {
		t.Errorf("type pack attribution = %q, want mini", pack.Types[0].Pack)
	}
}

func TestParsePackBadVersion(t *testing.T) {
	data := `{"name": "mini", "version": "two", "types": [` + validTemplateJSON() + `]}`
	if _, _, err := ParsePack([]byte(data)); err == nil {
		t.Error("non-semver version should be rejected")
	}
}

func TestParsePackDuplicateType(t *testing.T) {
	data := `{"name": "mini", "version": "1.0.0", "types": [` +
		validTemplateJSON() + `,` + validTemplateJSON() + `]}`
	if _, _, err := ParsePack([]byte(data)); err == nil {
		t.Error("duplicate type in pack should be rejected")
	}
}

func TestComparePackVersions(t *testing.T) {
	if ComparePackVersions("1.0.0", "1.2.0") >= 0 {
		t.Error("1.0.0 should sort before 1.2.0")
	}
	if ComparePackVersions("2.0.0", "2.0.0") != 0 {
		t.Error("equal versions should compare as 0")
	}
	if ComparePackVersions("1.10.0", "1.9.0") <= 0 {
		t.Error("1.10.0 should sort after 1.9.0 (numeric, not lexical)")
	}
}

func TestBuiltinPacksParse(t *testing.T) {
	packs := builtinPacks()
	if len(packs) != 2 {
		t.Fatalf("builtin pack count = %d, want 2", len(packs))
	}

	byName := map[string]*types.WorkflowPack{}
	total := 0
	for _, p := range packs {
		byName[p.Name] = p
		total += len(p.Types)
	}
	if total < 9 {
		t.Errorf("builtin type count = %d, want >= 9", total)
	}
	if byName["core"] == nil || byName["planning"] == nil {
		t.Fatalf("missing expected builtin packs: %v", byName)
	}

	// The bug funnel drives the hard-enforcement path; pin its shape.
	var bug *types.TypeTemplate
	for i := range byName["core"].Types {
		if byName["core"].Types[i].Type == "bug" {
			bug = &byName["core"].Types[i]
		}
	}
	if bug == nil {
		t.Fatal("core pack has no bug type")
	}
	if bug.InitialState != "triage" {
		t.Errorf("bug initial state = %q, want triage", bug.InitialState)
	}
	tr, ok := findTransition(bug, "verifying", "closed")
	if !ok {
		t.Fatal("bug has no verifying -> closed transition")
	}
	if tr.Enforcement != types.EnforcementHard {
		t.Errorf("verifying -> closed enforcement = %q, want hard", tr.Enforcement)
	}
	if len(tr.RequiresFields) != 1 || tr.RequiresFields[0] != "fix_verification" {
		t.Errorf("verifying -> closed requires %v, want [fix_verification]", tr.RequiresFields)
	}
}
