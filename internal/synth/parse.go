package synth

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

// Field is one declared attribute of a class: its name and the declared
// type's textual label, in declaration order.
type Field struct {
	Name      string
	TypeLabel string
}

// Class is a single class declaration found in generated source.
type Class struct {
	Name   string
	Base   string // declared base name, "" when none
	Fields []Field
}

// sourceFile is the parsed form of one generated source artifact: its
// top-level class declarations in declaration order, plus the set of names
// brought in by import statements (never treated as declared).
type sourceFile struct {
	classes  []*Class
	declared map[string]*Class
	imported map[string]bool
}

var (
	// class Name(Base): at zero indentation. The base is optional and may be
	// dotted (pydantic.BaseModel).
	classRe = regexp.MustCompile(`^class\s+([A-Za-z_]\w*)\s*(?:\(\s*([A-Za-z_][\w.]*)\s*\))?\s*:`)

	// Indented annotated field: name, colon, type expression, optional
	// "= default" tail which is stripped.
	fieldRe = regexp.MustCompile(`^\s+([A-Za-z_]\w*)\s*:\s*([^=#]+?)\s*(?:=.*)?$`)

	// from x import a, b  /  import x
	importRe = regexp.MustCompile(`^(?:from\s+[\w.]+\s+import|import)\s+(.+)$`)

	// A line that could plausibly open a statement in the generated dialect:
	// identifier, keyword, decorator, literal, or bracketed continuation.
	// Lines failing this (e.g. markup, tool error text) mean the artifact is
	// not loadable source.
	plausibleRe = regexp.MustCompile(`^[A-Za-z_@'"\(\[\{\d)\]}.,*-]`)
)

// parseSource parses generated source text into its class declarations.
// It recognizes the annotated-class dialect the generator emits: top-level
// class statements with indented "name: Type" field annotations. Statements
// outside that dialect are skipped as long as they look like source; a line
// that cannot open any statement (markup, tool error text) is a load
// failure. Source that parses but declares no classes yields an empty
// (valid) file.
func parseSource(src []byte) (*sourceFile, error) {
	f := &sourceFile{
		declared: make(map[string]*Class),
		imported: make(map[string]bool),
	}

	var current *Class
	inDocstring := false
	docQuote := ""

	scanner := bufio.NewScanner(bytes.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			continue
		}

		// Inside a docstring everything is skipped until the closing quote,
		// which may sit anywhere on the line, not just at the start.
		if inDocstring {
			if strings.Contains(trimmed, docQuote) {
				inDocstring = false
			}
			continue
		}

		// Triple-quoted docstrings open a skip region. Single-line
		// docstrings open and close on the same line.
		if strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, "'''") {
			quote := trimmed[:3]
			if !strings.Contains(trimmed[3:], quote) {
				inDocstring = true
				docQuote = quote
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}

		if m := importRe.FindStringSubmatch(line); m != nil {
			for _, name := range strings.Split(m[1], ",") {
				name = strings.TrimSpace(name)
				// Honor "import x as y" aliases.
				if idx := strings.Index(name, " as "); idx >= 0 {
					name = strings.TrimSpace(name[idx+4:])
				}
				if name != "" {
					f.imported[name] = true
				}
			}
			current = nil
			continue
		}

		if m := classRe.FindStringSubmatch(line); m != nil {
			current = &Class{Name: m[1], Base: baseName(m[2])}
			f.classes = append(f.classes, current)
			f.declared[current.Name] = current
			continue
		}

		if !plausibleRe.MatchString(trimmed) {
			return nil, stageErr(StageLoad, ErrLoadFailed,
				"unparseable statement in generated source: %q", trimmed)
		}

		// Any other statement at zero indentation ends the current class body.
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			current = nil
			continue
		}

		if current == nil {
			continue
		}
		if m := fieldRe.FindStringSubmatch(line); m != nil {
			current.Fields = append(current.Fields, Field{
				Name:      m[1],
				TypeLabel: strings.TrimSpace(m[2]),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, stageErr(StageLoad, ErrLoadFailed, "failed to scan source: %v", err)
	}

	return f, nil
}

// baseName reduces a possibly dotted base expression to its final component,
// so "pydantic.BaseModel" and "BaseModel" compare equal.
func baseName(expr string) string {
	if idx := strings.LastIndex(expr, "."); idx >= 0 {
		return expr[idx+1:]
	}
	return expr
}
