package keymap

import "slices"

// Binding describes a single key binding.
type Binding struct {
	Action      Action
	Keys        []string
	Description string
	Context     string // "global", "image", "grid"
}

// All contains all key bindings for help generation.
var All = []Binding{
	// Global
	{ActionQuit, []string{"q", "ctrl+c"}, "Quit", "global"},
	{ActionHelp, []string{"?"}, "Toggle help", "global"},
	{ActionToggleGrid, []string{"g", "tab"}, "Toggle grid", "global"},
	{ActionCycleStyle, []string{"s"}, "Next supported style", "global"},

	// Single image
	{ActionNext, []string{"n", "l", "right", " "}, "Next image", "image"},
	{ActionPrev, []string{"p", "h", "left", "backspace"}, "Previous image", "image"},
	{ActionFirst, []string{"home"}, "First image", "image"},
	{ActionLast, []string{"end"}, "Last image", "image"},
	{ActionRestart, []string{"r"}, "Restart animation", "image"},

	// Grid
	{ActionMoveUp, []string{"k", "up"}, "Move up", "grid"},
	{ActionMoveDown, []string{"j", "down"}, "Move down", "grid"},
	{ActionMoveLeft, []string{"h", "left"}, "Move left", "grid"},
	{ActionMoveRight, []string{"l", "right"}, "Move right", "grid"},
	{ActionOpen, []string{"enter"}, "Show image", "grid"},
}

// ByContext returns key bindings filtered by context.
func ByContext(context string) []Binding {
	var result []Binding
	for _, kb := range All {
		if kb.Context == context {
			result = append(result, kb)
		}
	}
	return result
}

// Resolver maps key strings to actions within the active contexts.
type Resolver struct {
	bindings map[string]map[string]Action // context -> key -> action
	byAction map[Action][]string
}

// NewResolver creates a resolver from bindings.
func NewResolver(bindings []Binding) *Resolver {
	r := &Resolver{
		bindings: make(map[string]map[string]Action),
		byAction: make(map[Action][]string),
	}
	for _, b := range bindings {
		keys := r.bindings[b.Context]
		if keys == nil {
			keys = make(map[string]Action)
			r.bindings[b.Context] = keys
		}
		for _, key := range b.Keys {
			keys[key] = b.Action
		}
		r.byAction[b.Action] = appendNew(r.byAction[b.Action], b.Keys...)
	}
	return r
}

// Resolve returns the action bound to key, trying contexts in order.
// It returns an empty action when the key is unbound.
func (r *Resolver) Resolve(key string, contexts ...string) Action {
	for _, c := range contexts {
		if a, ok := r.bindings[c][key]; ok {
			return a
		}
	}
	return ""
}

// KeysFor returns the keys bound to an action.
func (r *Resolver) KeysFor(action Action) []string {
	return r.byAction[action]
}

func appendNew(dst []string, keys ...string) []string {
	for _, k := range keys {
		if !slices.Contains(dst, k) {
			dst = append(dst, k)
		}
	}
	return dst
}
