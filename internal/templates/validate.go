package templates

import (
	"fmt"
	"strings"

	"github.com/weftworks/weft/internal/types"
)

// ValidateTransition checks one state change for a type against the
// supplied field values.
//
// Unknown types and undefined transitions are allowed: agents need escape
// hatches, so anything outside the declared table is a warning rather than
// a rejection. Hard enforcement only applies to transitions the template
// explicitly declares.
func (r *Registry) ValidateTransition(typeName, from, to string, fields types.FieldMap) types.TransitionResult {
	tmpl, ok := r.ensure().types[typeName]
	if !ok {
		return types.TransitionResult{Allowed: true, Enforcement: types.EnforcementNone}
	}

	tr, ok := findTransition(tmpl, from, to)
	if !ok {
		return types.TransitionResult{
			Allowed:     true,
			Enforcement: types.EnforcementNone,
			Warnings: []string{fmt.Sprintf(
				"transition %s -> %s is not in the standard %s workflow; see valid transitions", from, to, typeName)},
		}
	}

	missing := missingFields(tmpl, tr, to, fields)
	enforcement := tr.Enforcement
	if enforcement == "" {
		enforcement = types.EnforcementSoft
	}

	if len(missing) > 0 {
		if enforcement == types.EnforcementHard {
			return types.TransitionResult{Allowed: false, Enforcement: enforcement, Missing: missing}
		}
		return types.TransitionResult{
			Allowed:     true,
			Enforcement: enforcement,
			Missing:     missing,
			Warnings:    []string{"missing recommended fields: " + strings.Join(missing, ", ")},
		}
	}

	return types.TransitionResult{Allowed: true, Enforcement: enforcement}
}

// GetValidTransitions lists every declared transition out of from, with
// the fields still missing for each given the current values.
func (r *Registry) GetValidTransitions(typeName, from string, fields types.FieldMap) []types.TransitionOption {
	tmpl, ok := r.ensure().types[typeName]
	if !ok {
		return nil
	}

	var out []types.TransitionOption
	for i := range tmpl.Transitions {
		tr := &tmpl.Transitions[i]
		if tr.From != from {
			continue
		}
		missing := missingFields(tmpl, tr, tr.To, fields)
		enforcement := tr.Enforcement
		if enforcement == "" {
			enforcement = types.EnforcementSoft
		}
		cat := types.CategoryOpen
		if st, ok := tmpl.FindState(tr.To); ok {
			cat = st.Category
		}
		out = append(out, types.TransitionOption{
			To:             tr.To,
			Category:       cat,
			Enforcement:    enforcement,
			RequiresFields: tr.RequiresFields,
			MissingFields:  missing,
			Satisfied:      len(missing) == 0,
		})
	}
	return out
}

// ValidateFieldsForState returns the unpopulated fields whose required_at
// includes state.
func (r *Registry) ValidateFieldsForState(typeName, state string, fields types.FieldMap) []string {
	tmpl, ok := r.ensure().types[typeName]
	if !ok {
		return nil
	}
	var missing []string
	for _, f := range tmpl.FieldsSchema {
		for _, at := range f.RequiredAt {
			if at == state && !fields.Populated(f.Name) {
				missing = append(missing, f.Name)
				break
			}
		}
	}
	return missing
}

// CheckFieldValues verifies supplied values against the type's schema:
// keys must be declared (legacy rows from before the schema existed are
// preserved on read, but writes only accept declared names), declared
// fields must match their declared kind, enum values must be one of the
// options. Strings are refined in place to the declared date or enum kind.
// Types without a template accept anything.
func (r *Registry) CheckFieldValues(typeName string, fields types.FieldMap) error {
	tmpl, ok := r.ensure().types[typeName]
	if !ok {
		return nil
	}
	for name, val := range fields {
		schema, ok := tmpl.FindField(name)
		if !ok {
			return fmt.Errorf("field %q is not declared for type %s", name, typeName)
		}
		if val.Kind == types.FieldNull {
			continue
		}
		refined, err := refineValue(schema, val)
		if err != nil {
			return err
		}
		fields[name] = refined
	}
	return nil
}

func refineValue(schema types.FieldSchema, val types.FieldValue) (types.FieldValue, error) {
	switch schema.Type {
	case types.FieldText:
		if val.Kind != types.FieldText {
			return val, fmt.Errorf("field %q expects text, got %s", schema.Name, val.Kind)
		}
	case types.FieldInt:
		if val.Kind != types.FieldInt {
			return val, fmt.Errorf("field %q expects an integer, got %s", schema.Name, val.Kind)
		}
	case types.FieldBool:
		if val.Kind != types.FieldBool {
			return val, fmt.Errorf("field %q expects a boolean, got %s", schema.Name, val.Kind)
		}
	case types.FieldList:
		if val.Kind != types.FieldList {
			return val, fmt.Errorf("field %q expects a list of strings, got %s", schema.Name, val.Kind)
		}
	case types.FieldDate:
		if val.Kind != types.FieldText && val.Kind != types.FieldDate {
			return val, fmt.Errorf("field %q expects a date, got %s", schema.Name, val.Kind)
		}
		if strings.TrimSpace(val.Text) != "" {
			if _, err := val.Date(); err != nil {
				return val, fmt.Errorf("field %q expects a %s date: %v", schema.Name, types.DateFormat, err)
			}
		}
		val.Kind = types.FieldDate
	case types.FieldEnum:
		if val.Kind != types.FieldText && val.Kind != types.FieldEnum {
			return val, fmt.Errorf("field %q expects an enum symbol, got %s", schema.Name, val.Kind)
		}
		if strings.TrimSpace(val.Text) != "" && !contains(schema.Options, val.Text) {
			return val, fmt.Errorf("field %q must be one of %s, got %q",
				schema.Name, strings.Join(schema.Options, "|"), val.Text)
		}
		val.Kind = types.FieldEnum
	}
	return val, nil
}

func findTransition(tmpl *types.TypeTemplate, from, to string) (*types.Transition, bool) {
	for i := range tmpl.Transitions {
		tr := &tmpl.Transitions[i]
		if tr.From == from && tr.To == to {
			return tr, true
		}
	}
	return nil, false
}

// missingFields computes the unpopulated requirements for a transition:
// the transition's own requires_fields first, then fields required_at the
// target state, deduplicated in first-seen order.
func missingFields(tmpl *types.TypeTemplate, tr *types.Transition, to string, fields types.FieldMap) []string {
	var missing []string
	seen := make(map[string]bool)

	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		if !fields.Populated(name) {
			missing = append(missing, name)
		}
	}

	for _, name := range tr.RequiresFields {
		add(name)
	}
	for _, f := range tmpl.FieldsSchema {
		for _, at := range f.RequiredAt {
			if at == to {
				add(f.Name)
				break
			}
		}
	}
	return missing
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
