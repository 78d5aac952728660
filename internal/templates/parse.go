// Package templates loads, caches, and queries workflow type templates
// and packs.
//
// Templates come from three layers, later layers overriding earlier ones
// by type name:
//  1. Built-in packs compiled into the binary.
//  2. Installed packs from <projectDir>/packs/*.json.
//  3. Project-local overrides from <projectDir>/templates/*.json.
//
// Invalid files are logged and skipped; loading never fails the process.
package templates

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/mod/semver"

	"github.com/weftworks/weft/internal/types"
)

// ErrParse marks template and pack definition errors so callers can map
// them to the TEMPLATE_PARSE error kind.
var ErrParse = errors.New("template parse error")

// Size caps for parsed definitions. Oversized templates are rejected with
// a detailed error rather than truncated.
const (
	MaxStates       = 50
	MaxTransitions  = 200
	MaxFields       = 50
	MaxTypesPerPack = 20
	MaxFileSize     = 512 * 1024
)

var templateKeys = map[string]bool{
	"type": true, "display_name": true, "description": true, "pack": true,
	"states": true, "initial_state": true, "transitions": true,
	"fields_schema": true, "suggested_children": true, "suggested_labels": true,
}

var packKeys = map[string]bool{
	"name": true, "version": true, "display_name": true, "description": true,
	"types": true, "requires_packs": true, "relationships": true,
	"cross_pack_relationships": true, "guide": true,
}

// ParseTemplate parses a single type template definition. Unknown
// top-level keys are ignored and reported as warnings.
func ParseTemplate(data []byte) (*types.TypeTemplate, []string, error) {
	if len(data) > MaxFileSize {
		return nil, nil, fmt.Errorf("%w: definition exceeds %d bytes", ErrParse, MaxFileSize)
	}

	warnings := unknownKeyWarnings(data, templateKeys, "template")

	var tmpl types.TypeTemplate
	if err := json.Unmarshal(data, &tmpl); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := ValidateTemplate(&tmpl); err != nil {
		return nil, nil, err
	}
	return &tmpl, warnings, nil
}

// ParsePack parses a pack definition: metadata plus a bundle of type
// templates. Every contained template is validated.
func ParsePack(data []byte) (*types.WorkflowPack, []string, error) {
	if len(data) > MaxFileSize {
		return nil, nil, fmt.Errorf("%w: pack exceeds %d bytes", ErrParse, MaxFileSize)
	}

	warnings := unknownKeyWarnings(data, packKeys, "pack")

	var pack types.WorkflowPack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := ValidatePack(&pack); err != nil {
		return nil, nil, err
	}
	// Provenance: every contained type belongs to this pack regardless of
	// what the file says per-type.
	for i := range pack.Types {
		pack.Types[i].Pack = pack.Name
	}
	return &pack, warnings, nil
}

// ValidateTemplate checks the consistency rules for one template: name
// shapes, state references, and size caps.
func ValidateTemplate(t *types.TypeTemplate) error {
	if !types.ValidName(t.Type) {
		return fmt.Errorf("%w: invalid type name %q", ErrParse, t.Type)
	}
	if len(t.States) == 0 {
		return fmt.Errorf("%w: type %q declares no states", ErrParse, t.Type)
	}
	if len(t.States) > MaxStates {
		return fmt.Errorf("%w: type %q has %d states (max %d)", ErrParse, t.Type, len(t.States), MaxStates)
	}
	if len(t.Transitions) > MaxTransitions {
		return fmt.Errorf("%w: type %q has %d transitions (max %d)", ErrParse, t.Type, len(t.Transitions), MaxTransitions)
	}
	if len(t.FieldsSchema) > MaxFields {
		return fmt.Errorf("%w: type %q has %d fields (max %d)", ErrParse, t.Type, len(t.FieldsSchema), MaxFields)
	}

	stateNames := make(map[string]bool, len(t.States))
	for _, s := range t.States {
		if !types.ValidName(s.Name) {
			return fmt.Errorf("%w: type %q: invalid state name %q", ErrParse, t.Type, s.Name)
		}
		if stateNames[s.Name] {
			return fmt.Errorf("%w: type %q: duplicate state %q", ErrParse, t.Type, s.Name)
		}
		if !s.Category.Valid() {
			return fmt.Errorf("%w: type %q: state %q has invalid category %q", ErrParse, t.Type, s.Name, s.Category)
		}
		stateNames[s.Name] = true
	}

	if !stateNames[t.InitialState] {
		return fmt.Errorf("%w: type %q: initial_state %q is not a declared state", ErrParse, t.Type, t.InitialState)
	}

	fieldNames := make(map[string]bool, len(t.FieldsSchema))
	for _, f := range t.FieldsSchema {
		if !types.ValidName(f.Name) {
			return fmt.Errorf("%w: type %q: invalid field name %q", ErrParse, t.Type, f.Name)
		}
		if fieldNames[f.Name] {
			return fmt.Errorf("%w: type %q: duplicate field %q", ErrParse, t.Type, f.Name)
		}
		if !types.ValidFieldKind(f.Type) {
			return fmt.Errorf("%w: type %q: field %q has unknown type %q", ErrParse, t.Type, f.Name, f.Type)
		}
		if f.Type == types.FieldEnum && len(f.Options) == 0 {
			return fmt.Errorf("%w: type %q: enum field %q declares no options", ErrParse, t.Type, f.Name)
		}
		for _, state := range f.RequiredAt {
			if !stateNames[state] {
				return fmt.Errorf("%w: type %q: field %q required_at unknown state %q", ErrParse, t.Type, f.Name, state)
			}
		}
		fieldNames[f.Name] = true
	}

	for i, tr := range t.Transitions {
		if !stateNames[tr.From] {
			return fmt.Errorf("%w: type %q: transition %d from unknown state %q", ErrParse, t.Type, i, tr.From)
		}
		if !stateNames[tr.To] {
			return fmt.Errorf("%w: type %q: transition %d to unknown state %q", ErrParse, t.Type, i, tr.To)
		}
		switch tr.Enforcement {
		case "", types.EnforcementHard, types.EnforcementSoft:
		default:
			return fmt.Errorf("%w: type %q: transition %s -> %s has invalid enforcement %q", ErrParse, t.Type, tr.From, tr.To, tr.Enforcement)
		}
		for _, field := range tr.RequiresFields {
			if !fieldNames[field] {
				return fmt.Errorf("%w: type %q: transition %s -> %s requires unknown field %q", ErrParse, t.Type, tr.From, tr.To, field)
			}
		}
	}

	return nil
}

// ValidatePack checks pack metadata and every contained template.
func ValidatePack(p *types.WorkflowPack) error {
	if !types.ValidName(p.Name) {
		return fmt.Errorf("%w: invalid pack name %q", ErrParse, p.Name)
	}
	if p.Version != "" && !semver.IsValid("v"+p.Version) {
		return fmt.Errorf("%w: pack %q: invalid version %q", ErrParse, p.Name, p.Version)
	}
	if len(p.Types) == 0 {
		return fmt.Errorf("%w: pack %q contains no types", ErrParse, p.Name)
	}
	if len(p.Types) > MaxTypesPerPack {
		return fmt.Errorf("%w: pack %q has %d types (max %d)", ErrParse, p.Name, len(p.Types), MaxTypesPerPack)
	}

	seen := make(map[string]bool, len(p.Types))
	for i := range p.Types {
		t := &p.Types[i]
		if err := ValidateTemplate(t); err != nil {
			return err
		}
		if seen[t.Type] {
			return fmt.Errorf("%w: pack %q declares type %q twice", ErrParse, p.Name, t.Type)
		}
		seen[t.Type] = true
	}

	for _, req := range p.RequiresPacks {
		if !types.ValidName(req) {
			return fmt.Errorf("%w: pack %q requires invalid pack name %q", ErrParse, p.Name, req)
		}
	}

	return nil
}

// ComparePackVersions orders two pack version strings. Empty versions sort
// lowest.
func ComparePackVersions(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}

func unknownKeyWarnings(data []byte, known map[string]bool, what string) []string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil // the typed unmarshal will surface the real error
	}
	var warnings []string
	for key := range raw {
		if !known[key] {
			warnings = append(warnings, fmt.Sprintf("unknown %s key %q ignored", what, key))
		}
	}
	return warnings
}
