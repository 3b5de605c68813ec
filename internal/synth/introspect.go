package synth

import (
	"fmt"
	"strings"
)

// FieldDescriptor describes one declared attribute of a model class.
type FieldDescriptor struct {
	Name      string `json:"name"`
	TypeLabel string `json:"type_label"`
}

// ClassDescriptor describes one qualifying model class found in a unit.
type ClassDescriptor struct {
	ClassName string            `json:"class_name"`
	BaseName  string            `json:"base_name"`
	Fields    []FieldDescriptor `json:"fields"`
}

// Extract walks a unit's declared classes in declaration order and returns a
// descriptor for every class that is a structural subtype of base. The base
// type itself and names merely imported into the unit never qualify.
// Subtyping is transitive through classes declared in the same unit: a class
// whose base chain reaches base qualifies even if its direct base is another
// generated class. An empty result is a valid trivial outcome, not an error.
func Extract(u *Unit, base string) []ClassDescriptor {
	var descs []ClassDescriptor
	for _, c := range u.Classes() {
		if c.Name == base {
			continue
		}
		if !subtypeOf(u, c, base) {
			continue
		}

		d := ClassDescriptor{
			ClassName: c.Name,
			BaseName:  base,
			Fields:    make([]FieldDescriptor, 0, len(c.Fields)),
		}
		for _, f := range c.Fields {
			d.Fields = append(d.Fields, FieldDescriptor{Name: f.Name, TypeLabel: f.TypeLabel})
		}
		descs = append(descs, d)
	}
	return descs
}

// subtypeOf reports whether c's base chain reaches base. The chain is
// followed only through classes declared in the same unit; the walk is
// bounded by the unit's class count to guard against declaration cycles.
func subtypeOf(u *Unit, c *Class, base string) bool {
	cur := c
	for range u.Classes() {
		if cur.Base == "" {
			return false
		}
		if cur.Base == base {
			return true
		}
		parent, ok := u.Lookup(cur.Base)
		if !ok {
			return false
		}
		cur = parent
	}
	return false
}

// Render formats descriptors as the textual schema summary consumed by
// prompt construction: a header line per class followed by one indented line
// per field, classes separated by a blank line.
//
//	class Model(BaseModel):
//	  question: str
//	  score: float
func Render(descs []ClassDescriptor) string {
	var b strings.Builder
	for i, d := range descs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "class %s(%s):\n", d.ClassName, d.BaseName)
		for _, f := range d.Fields {
			fmt.Fprintf(&b, "  %s: %s\n", f.Name, f.TypeLabel)
		}
	}
	return b.String()
}
