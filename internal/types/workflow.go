package types

// State is one named phase of a type's lifecycle.
type State struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

// Enforcement levels for transition field requirements.
const (
	EnforcementHard = "hard"
	EnforcementSoft = "soft"
	EnforcementNone = "none"
)

// Transition is an allowed move between two states of the same type.
type Transition struct {
	From           string   `json:"from"`
	To             string   `json:"to"`
	Enforcement    string   `json:"enforcement,omitempty"`
	RequiresFields []string `json:"requires_fields,omitempty"`
}

// FieldSchema declares one custom field of a type.
type FieldSchema struct {
	Name        string      `json:"name"`
	Type        FieldKind   `json:"type"`
	Description string      `json:"description,omitempty"`
	Options     []string    `json:"options,omitempty"`
	Default     *FieldValue `json:"default,omitempty"`
	RequiredAt  []string    `json:"required_at,omitempty"`
}

// TypeTemplate is the immutable workflow definition for one issue type.
type TypeTemplate struct {
	Type              string        `json:"type"`
	DisplayName       string        `json:"display_name,omitempty"`
	Description       string        `json:"description,omitempty"`
	Pack              string        `json:"pack,omitempty"`
	States            []State       `json:"states"`
	InitialState      string        `json:"initial_state"`
	Transitions       []Transition  `json:"transitions,omitempty"`
	FieldsSchema      []FieldSchema `json:"fields_schema,omitempty"`
	SuggestedChildren []string      `json:"suggested_children,omitempty"`
	SuggestedLabels   []string      `json:"suggested_labels,omitempty"`
}

// FindState returns the state with the given name, if declared.
func (t *TypeTemplate) FindState(name string) (State, bool) {
	for _, s := range t.States {
		if s.Name == name {
			return s, true
		}
	}
	return State{}, false
}

// FindField returns the schema entry for name, if declared.
func (t *TypeTemplate) FindField(name string) (FieldSchema, bool) {
	for _, f := range t.FieldsSchema {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSchema{}, false
}

// WorkflowPack bundles related type templates plus documentation.
type WorkflowPack struct {
	Name                   string            `json:"name"`
	Version                string            `json:"version"`
	DisplayName            string            `json:"display_name,omitempty"`
	Description            string            `json:"description,omitempty"`
	Types                  []TypeTemplate    `json:"types"`
	RequiresPacks          []string          `json:"requires_packs,omitempty"`
	Relationships          map[string]string `json:"relationships,omitempty"`
	CrossPackRelationships map[string]string `json:"cross_pack_relationships,omitempty"`
	Guide                  string            `json:"guide,omitempty"`
}

// TransitionResult is the outcome of validating one transition. Soft
// failures are never errors: Allowed stays true and Warnings carries the
// advisory text.
type TransitionResult struct {
	Allowed     bool     `json:"allowed"`
	Enforcement string   `json:"enforcement"`
	Missing     []string `json:"missing,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// TransitionOption describes one currently valid transition for an issue,
// used in hints and include_transitions responses.
type TransitionOption struct {
	To             string   `json:"to"`
	Category       Category `json:"category"`
	Enforcement    string   `json:"enforcement"`
	RequiresFields []string `json:"requires_fields,omitempty"`
	MissingFields  []string `json:"missing_fields,omitempty"`
	Satisfied      bool     `json:"satisfied"`
}
