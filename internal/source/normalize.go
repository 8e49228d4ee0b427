package source

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cogbench/cogbench/internal/errors"
)

// Unit is one piece of component source handed to the pipeline by an
// authoring collaborator. It is never persisted as-is.
type Unit struct {
	Title       string
	Description string
	SourceText  string
}

// Normalized is component source rewritten so the runtime can reach the root
// component under EntryName.
type Normalized struct {
	// Text is the rewritten source, ending with the EntryName binding.
	Text string

	// Component is the identifier the author gave the root component, or
	// EntryName when it was anonymous.
	Component string

	// StrippedImports counts removed import declarations.
	StrippedImports int
}

const ident = `[A-Za-z_$][A-Za-z0-9_$]*`

var (
	// importDecl matches static import declarations, including multi-line
	// named imports. Dynamic import(...) is excluded by forbidding parens.
	importDecl = regexp.MustCompile(`(?m)^[ \t]*import(?:[ \t]+type)?[ \t{*][^;'"()]*?['"][^'"\n]+['"][ \t]*;?[ \t]*(?:\r?\n)?`)

	defaultNamedFunc = regexp.MustCompile(`(?m)^([ \t]*)export[ \t]+default[ \t]+((?:async[ \t]+)?function[ \t]*\*?[ \t]*)(` + ident + `)([ \t]*\()`)
	defaultAnonFunc  = regexp.MustCompile(`(?m)^([ \t]*)export[ \t]+default[ \t]+((?:async[ \t]+)?function\b)`)
	defaultIdent     = regexp.MustCompile(`(?m)^[ \t]*export[ \t]+default[ \t]+(` + ident + `)[ \t]*;?[ \t]*$`)
	defaultClass     = regexp.MustCompile(`(?m)^[ \t]*export[ \t]+default[ \t]+class\b`)
	defaultExpr      = regexp.MustCompile(`(?m)^([ \t]*)export[ \t]+default[ \t]+`)
	exportList       = regexp.MustCompile(`(?m)^[ \t]*export[ \t]*\{([^}]*)\}[ \t]*(?:from[ \t]*['"][^'"]*['"])?[ \t]*;?[ \t]*$`)
	namedDecl        = regexp.MustCompile(`(?m)^([ \t]*)export[ \t]+((?:async[ \t]+)?function\b[ \t]*\*?[ \t]*(` + ident + `)?|(?:const|let|var)[ \t]+(` + ident + `)|class\b)`)

	topLevelComponent = regexp.MustCompile(`(?m)^(?:(?:async[ \t]+)?function[ \t]+([A-Z][A-Za-z0-9_$]*)[ \t]*\(|(?:const|let|var)[ \t]+([A-Z][A-Za-z0-9_$]*)[ \t]*=[ \t]*(?:\(|function\b|async\b|` + ident + `[ \t]*=>))`)
)

// Normalize strips import declarations and rewrites whichever export
// convention the source uses so the root component is bound to EntryName.
// It returns a SOURCE_SHAPE error when no component definition can be located.
func Normalize(text string) (*Normalized, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewSourceShape("source is empty")
	}

	out := &Normalized{}
	stripped := importDecl.FindAllStringIndex(text, -1)
	out.StrippedImports = len(stripped)
	text = importDecl.ReplaceAllString(text, "")

	if defaultClass.MatchString(text) {
		return nil, errors.NewSourceShape("class components are not supported; export a function component")
	}

	defaults := 0
	defaultName := ""
	direct := false

	if m := defaultNamedFunc.FindAllStringSubmatch(text, -1); len(m) > 0 {
		defaults += len(m)
		defaultName = m[0][3]
		text = defaultNamedFunc.ReplaceAllString(text, "${1}${2}${3}${4}")
	}
	if m := defaultAnonFunc.FindAllStringIndex(text, -1); len(m) > 0 {
		defaults += len(m)
		direct = true
		text = defaultAnonFunc.ReplaceAllString(text, "${1}var "+EntryName+" = ${2}")
	}
	if m := defaultIdent.FindAllStringSubmatch(text, -1); len(m) > 0 {
		defaults += len(m)
		defaultName = m[0][1]
		text = defaultIdent.ReplaceAllString(text, "")
	}
	if m := defaultExpr.FindAllStringIndex(text, -1); len(m) > 0 {
		defaults += len(m)
		direct = true
		text = defaultExpr.ReplaceAllString(text, "${1}var "+EntryName+" = ")
	}

	// export { A as default, B } lists: bind the default alias, drop the line.
	for _, m := range exportList.FindAllStringSubmatch(text, -1) {
		for _, spec := range strings.Split(m[1], ",") {
			parts := strings.Fields(spec)
			if len(parts) == 3 && parts[1] == "as" && parts[2] == "default" {
				defaults++
				defaultName = parts[0]
			}
		}
	}
	text = exportList.ReplaceAllString(text, "")

	if defaults > 1 {
		return nil, errors.NewSourceShape(fmt.Sprintf("found %d default exports; expected one", defaults))
	}

	var namedCandidates []string
	for _, m := range namedDecl.FindAllStringSubmatch(text, -1) {
		name := m[3]
		if name == "" {
			name = m[4]
		}
		if isComponentName(name) {
			namedCandidates = append(namedCandidates, name)
		}
	}
	text = namedDecl.ReplaceAllString(text, "${1}${2}")

	text = strings.TrimRight(text, " \t\r\n")

	if direct {
		out.Component = EntryName
		out.Text = text + "\n"
		return out, nil
	}

	name := defaultName
	if name == "" && len(namedCandidates) > 0 {
		name = namedCandidates[0]
	}
	if name == "" {
		if m := topLevelComponent.FindStringSubmatch(text); m != nil {
			name = m[1]
			if name == "" {
				name = m[2]
			}
		}
	}
	if name == "" {
		return nil, errors.NewSourceShape("no component definition found: export a function component or define a capitalised top-level function")
	}
	if !isDefined(text, name) {
		return nil, errors.NewSourceShape(fmt.Sprintf("component %q is exported but never defined", name))
	}

	out.Component = name
	out.Text = text + "\nvar " + EntryName + " = " + name + ";\n"
	return out, nil
}

// isComponentName reports whether name follows the capitalised component convention.
func isComponentName(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

// isDefined checks for a function declaration or variable binding of name.
func isDefined(text, name string) bool {
	q := regexp.QuoteMeta(name)
	re := regexp.MustCompile(`(?:^|[^A-Za-z0-9_$.])(?:function[ \t]*\*?[ \t]*` + q + `[ \t]*\(|(?:const|let|var)[ \t]+` + q + `[ \t]*=)`)
	return re.MatchString(text)
}
