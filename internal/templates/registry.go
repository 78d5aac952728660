package templates

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/weftworks/weft/internal/configfile"
	"github.com/weftworks/weft/internal/debug"
	"github.com/weftworks/weft/internal/types"
)

//go:embed builtin/*.json
var builtinFS embed.FS

// PackInfo describes one discovered pack, whether or not it is enabled.
type PackInfo struct {
	Pack    *types.WorkflowPack
	Builtin bool
	Enabled bool
	Source  string
}

// Registry holds the active template set for one project. It is lazy:
// nothing is read until the first query. Reload discards the cache so the
// next query rebuilds from disk. Readers always see a complete snapshot;
// rebuilds happen off to the side and swap in atomically.
type Registry struct {
	projectDir string

	snap   atomic.Pointer[snapshot]
	loadMu sync.Mutex
}

type snapshot struct {
	types      map[string]*types.TypeTemplate
	packs      map[string]PackInfo
	categories map[string]types.Category

	openStates []string
	wipStates  []string
	doneStates []string

	warnings []string
}

// New returns a registry rooted at projectDir (the .weft directory).
func New(projectDir string) *Registry {
	return &Registry{projectDir: projectDir}
}

// Load forces the snapshot to be built now. Idempotent; invalid files are
// skipped with a warning and never fail the load.
func (r *Registry) Load() {
	r.ensure()
}

// Reload discards the cached snapshot. The next query rebuilds from the
// built-ins, the packs directory, and the templates directory.
func (r *Registry) Reload() {
	r.snap.Store(nil)
}

func (r *Registry) ensure() *snapshot {
	if s := r.snap.Load(); s != nil {
		return s
	}
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	if s := r.snap.Load(); s != nil {
		return s
	}
	s := r.build()
	r.snap.Store(s)
	return s
}

// build assembles a fresh snapshot: built-in packs, then installed packs,
// then project-local template overrides, later layers winning by type name.
func (r *Registry) build() *snapshot {
	s := &snapshot{
		types:      make(map[string]*types.TypeTemplate),
		packs:      make(map[string]PackInfo),
		categories: make(map[string]types.Category),
	}

	cfg, err := configfile.Load(r.projectDir)
	if err != nil {
		cfg = configfile.Default()
		if !os.IsNotExist(err) {
			s.warn("config.json unreadable, using defaults: %v", err)
		}
	}

	for _, pack := range builtinPacks() {
		enabled := cfg.PackEnabled(pack.Name)
		s.packs[pack.Name] = PackInfo{Pack: pack, Builtin: true, Enabled: enabled, Source: "builtin"}
		if enabled {
			s.registerPack(pack)
		}
	}

	r.loadInstalledPacks(s, cfg)
	r.loadProjectTemplates(s)
	r.applyLegacyStates(s, cfg)

	s.finalize()
	return s
}

func (r *Registry) loadInstalledPacks(s *snapshot, cfg *configfile.Config) {
	dir := configfile.PacksPath(r.projectDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return // no packs directory is the common case
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path) // #nosec G304 - enumerated from the project packs dir
		if err != nil {
			s.warn("pack %s unreadable: %v", entry.Name(), err)
			continue
		}
		pack, warnings, err := ParsePack(data)
		if err != nil {
			s.warn("pack %s skipped: %v", entry.Name(), err)
			continue
		}
		for _, w := range warnings {
			s.warn("pack %s: %s", entry.Name(), w)
		}
		enabled := cfg.PackEnabled(pack.Name)
		s.packs[pack.Name] = PackInfo{Pack: pack, Enabled: enabled, Source: path}
		if enabled {
			s.registerPack(pack)
		}
	}
}

func (r *Registry) loadProjectTemplates(s *snapshot) {
	dir := configfile.TemplatesPath(r.projectDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path) // #nosec G304 - enumerated from the project templates dir
		if err != nil {
			s.warn("template %s unreadable: %v", entry.Name(), err)
			continue
		}
		tmpl, warnings, err := ParseTemplate(data)
		if err != nil {
			s.warn("template %s skipped: %v", entry.Name(), err)
			continue
		}
		for _, w := range warnings {
			s.warn("template %s: %s", entry.Name(), w)
		}
		if tmpl.Pack == "" {
			tmpl.Pack = "custom"
		}
		s.registerType(tmpl)
	}
}

// applyLegacyStates folds the config-level workflow_states list into the
// category unions so rows created before packs existed keep matching
// category filters. Categories come from the legacy name heuristic.
func (r *Registry) applyLegacyStates(s *snapshot, cfg *configfile.Config) {
	for _, name := range cfg.WorkflowStates {
		if !types.ValidName(name) {
			s.warn("legacy workflow state %q ignored: invalid name", name)
			continue
		}
		switch types.LegacyCategory(name) {
		case types.CategoryWip:
			s.wipStates = append(s.wipStates, name)
		case types.CategoryDone:
			s.doneStates = append(s.doneStates, name)
		default:
			s.openStates = append(s.openStates, name)
		}
	}
}

func (s *snapshot) registerPack(pack *types.WorkflowPack) {
	for i := range pack.Types {
		s.registerType(&pack.Types[i])
	}
}

func (s *snapshot) registerType(tmpl *types.TypeTemplate) {
	s.types[tmpl.Type] = tmpl
	for _, st := range tmpl.States {
		s.categories[catKey(tmpl.Type, st.Name)] = st.Category
	}
}

// finalize recomputes the category unions from the registered templates.
// Called once per build; the unions are sorted and deduplicated so IN
// clauses are deterministic.
func (s *snapshot) finalize() {
	for _, tmpl := range s.types {
		for _, st := range tmpl.States {
			switch st.Category {
			case types.CategoryOpen:
				s.openStates = append(s.openStates, st.Name)
			case types.CategoryWip:
				s.wipStates = append(s.wipStates, st.Name)
			case types.CategoryDone:
				s.doneStates = append(s.doneStates, st.Name)
			}
		}
	}
	s.openStates = sortedUnique(s.openStates)
	s.wipStates = sortedUnique(s.wipStates)
	s.doneStates = sortedUnique(s.doneStates)
}

func (s *snapshot) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.warnings = append(s.warnings, msg)
	debug.Logf("templates: %s", msg)
}

func catKey(typeName, state string) string {
	return typeName + "\x00" + state
}

func sortedUnique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	sort.Strings(in)
	out := in[:1]
	for _, v := range in[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// builtinPacks parses the embedded pack definitions. The embedded files
// are covered by tests, so a parse failure here is a programming error.
func builtinPacks() []*types.WorkflowPack {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		panic(fmt.Sprintf("embedded packs unreadable: %v", err))
	}
	packs := make([]*types.WorkflowPack, 0, len(entries))
	for _, entry := range entries {
		data, err := builtinFS.ReadFile("builtin/" + entry.Name())
		if err != nil {
			panic(fmt.Sprintf("embedded pack %s unreadable: %v", entry.Name(), err))
		}
		pack, _, err := ParsePack(data)
		if err != nil {
			panic(fmt.Sprintf("embedded pack %s invalid: %v", entry.Name(), err))
		}
		packs = append(packs, pack)
	}
	sort.Slice(packs, func(i, j int) bool { return packs[i].Name < packs[j].Name })
	return packs
}

// Builtin returns the packs compiled into the binary, sorted by name.
// Used by the store's schema migration to seed the packs tables.
func Builtin() []*types.WorkflowPack {
	return builtinPacks()
}

// GetType returns the template registered for name.
func (r *Registry) GetType(name string) (*types.TypeTemplate, bool) {
	tmpl, ok := r.ensure().types[name]
	return tmpl, ok
}

// ListTypes returns all registered templates sorted by type name.
func (r *Registry) ListTypes() []*types.TypeTemplate {
	s := r.ensure()
	out := make([]*types.TypeTemplate, 0, len(s.types))
	for _, tmpl := range s.types {
		out = append(out, tmpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// ListPacks returns every discovered pack, enabled or not, sorted by name.
func (r *Registry) ListPacks() []PackInfo {
	s := r.ensure()
	out := make([]PackInfo, 0, len(s.packs))
	for _, info := range s.packs {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pack.Name < out[j].Pack.Name })
	return out
}

// GetInitialState returns the declared initial state for a type, falling
// back to "open" for unknown types.
func (r *Registry) GetInitialState(typeName string) string {
	if tmpl, ok := r.ensure().types[typeName]; ok {
		return tmpl.InitialState
	}
	debug.Logf("templates: no template for type %q, initial state defaults to open", typeName)
	return "open"
}

// GetCategory returns the category of (type, state) in O(1).
func (r *Registry) GetCategory(typeName, state string) (types.Category, bool) {
	cat, ok := r.ensure().categories[catKey(typeName, state)]
	return cat, ok
}

// CategoryOrLegacy returns the template category when one exists, else the
// legacy name heuristic.
func (r *Registry) CategoryOrLegacy(typeName, state string) types.Category {
	if cat, ok := r.GetCategory(typeName, state); ok {
		return cat
	}
	return types.LegacyCategory(state)
}

// GetFirstStateOfCategory returns the first state (declaration order) of
// the given category for a type.
func (r *Registry) GetFirstStateOfCategory(typeName string, cat types.Category) (string, bool) {
	tmpl, ok := r.ensure().types[typeName]
	if !ok {
		return "", false
	}
	for _, st := range tmpl.States {
		if st.Category == cat {
			return st.Name, true
		}
	}
	return "", false
}

// GetValidStates returns the declared state names for a type in order.
func (r *Registry) GetValidStates(typeName string) ([]string, bool) {
	tmpl, ok := r.ensure().types[typeName]
	if !ok {
		return nil, false
	}
	out := make([]string, len(tmpl.States))
	for i, st := range tmpl.States {
		out[i] = st.Name
	}
	return out, true
}

// StatesOfCategory returns the states of one type in the given category,
// declaration order. Empty for unknown types.
func (r *Registry) StatesOfCategory(typeName string, cat types.Category) []string {
	tmpl, ok := r.ensure().types[typeName]
	if !ok {
		return nil
	}
	var out []string
	for _, st := range tmpl.States {
		if st.Category == cat {
			out = append(out, st.Name)
		}
	}
	return out
}

// OpenStates returns the memoized union of open-category state names
// across all registered types, sorted.
func (r *Registry) OpenStates() []string { return r.ensure().openStates }

// WipStates returns the memoized union of wip-category state names.
func (r *Registry) WipStates() []string { return r.ensure().wipStates }

// DoneStates returns the memoized union of done-category state names.
func (r *Registry) DoneStates() []string { return r.ensure().doneStates }

// StatesInCategory expands a category to its union of state names.
func (r *Registry) StatesInCategory(cat types.Category) []string {
	switch cat {
	case types.CategoryOpen:
		return r.OpenStates()
	case types.CategoryWip:
		return r.WipStates()
	case types.CategoryDone:
		return r.DoneStates()
	}
	return nil
}

// Warnings returns the load-time warnings from the current snapshot
// (skipped files, unknown keys, legacy state problems).
func (r *Registry) Warnings() []string {
	return r.ensure().warnings
}
