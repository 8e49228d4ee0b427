package source

import "slices"

// EntryName is the binding under which normalized source exposes its root
// component to the runtime.
const EntryName = "__trialComponent"

// Hooks lists the state and effect primitives available to a component.
// React.useState / React.useEffect resolve to the same primitives.
var Hooks = []string{"useState", "useEffect"}

// Utilities lists non-markup helper functions in scope for component source.
var Utilities = []string{"escapeHtml"}

// HelperKind selects how the runtime renders a helper.
type HelperKind string

const (
	// KindElement wraps children in Tag.
	KindElement HelperKind = "element"
	// KindVoid renders a self-closing Tag and ignores children.
	KindVoid HelperKind = "void"
	// KindCard renders a titled card: props.heading becomes a heading above children.
	KindCard HelperKind = "card"
	// KindProgress renders a bar from props.value and props.max.
	KindProgress HelperKind = "progress"
)

// Helper describes one presentational primitive. Every helper is called as
// Name(props?, ...children) and returns a markup string; props.className
// replaces Class.
type Helper struct {
	Name  string     `json:"name"`
	Tag   string     `json:"tag"`
	Class string     `json:"class"`
	Kind  HelperKind `json:"kind"`
}

// Helpers is the fixed presentational vocabulary, in emission order.
var Helpers = []Helper{
	{Name: "Panel", Tag: "div", Class: "trial-panel max-w-2xl mx-auto p-6 bg-white rounded-lg shadow", Kind: KindElement},
	{Name: "Card", Tag: "section", Class: "trial-card p-4 border rounded-lg bg-white", Kind: KindCard},
	{Name: "Stack", Tag: "div", Class: "flex flex-col gap-4", Kind: KindElement},
	{Name: "Row", Tag: "div", Class: "flex flex-row gap-4 items-center justify-center", Kind: KindElement},
	{Name: "Heading", Tag: "h2", Class: "text-2xl font-bold mb-4", Kind: KindElement},
	{Name: "Text", Tag: "p", Class: "text-base text-gray-700", Kind: KindElement},
	{Name: "Stimulus", Tag: "div", Class: "trial-stage text-5xl font-bold", Kind: KindElement},
	{Name: "Feedback", Tag: "div", Class: "trial-feedback text-xl", Kind: KindElement},
	{Name: "Button", Tag: "button", Class: "trial-button px-4 py-2 rounded bg-blue-600 text-white", Kind: KindElement},
	{Name: "Choice", Tag: "button", Class: "trial-choice px-4 py-2 rounded border border-gray-400", Kind: KindElement},
	{Name: "TextInput", Tag: "input", Class: "border rounded px-3 py-2", Kind: KindVoid},
	{Name: "Image", Tag: "img", Class: "mx-auto", Kind: KindVoid},
	{Name: "Progress", Tag: "div", Class: "trial-progress w-full h-2 bg-gray-200 rounded", Kind: KindProgress},
}

// HelperNames returns helper names in emission order.
func HelperNames() []string {
	names := make([]string, len(Helpers))
	for i, h := range Helpers {
		names[i] = h.Name
	}
	return names
}

// Bindings returns every identifier injected into component scope:
// the React namespace shim, hooks, helpers, then utilities.
func Bindings() []string {
	out := []string{"React"}
	out = append(out, Hooks...)
	out = append(out, HelperNames()...)
	out = append(out, Utilities...)
	return out
}

// IsHook reports whether name is a supported hook.
func IsHook(name string) bool {
	return slices.Contains(Hooks, name)
}
