package synth

import (
	"strings"
	"testing"
)

func loadUnit(t *testing.T, id, src string) *Unit {
	t.Helper()
	u, err := Load(id, []byte(src))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return u
}

func TestExtract_DeclarationOrder(t *testing.T) {
	u := loadUnit(t, "introspect-order", `from pydantic import BaseModel

class Zeta(BaseModel):
    z: int

class Alpha(BaseModel):
    a: str
`)

	descs := Extract(u, "BaseModel")
	if len(descs) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descs))
	}
	// Declaration order, not alphabetical.
	if descs[0].ClassName != "Zeta" || descs[1].ClassName != "Alpha" {
		t.Errorf("unexpected order: %s, %s", descs[0].ClassName, descs[1].ClassName)
	}
}

func TestExtract_BaseTypeExcluded(t *testing.T) {
	// A unit may redeclare the base name; it must never appear in results.
	u := loadUnit(t, "introspect-base", `class BaseModel:
    pass

class Model(BaseModel):
    a: str
`)

	descs := Extract(u, "BaseModel")
	for _, d := range descs {
		if d.ClassName == "BaseModel" {
			t.Error("base type must not appear as a descriptor")
		}
	}
	if len(descs) != 1 || descs[0].ClassName != "Model" {
		t.Errorf("expected only Model, got %+v", descs)
	}
}

func TestExtract_TransitiveSubtype(t *testing.T) {
	u := loadUnit(t, "introspect-transitive", `from pydantic import BaseModel

class Inner(BaseModel):
    x: int

class Model(Inner):
    y: str

class Unrelated:
    z: str
`)

	descs := Extract(u, "BaseModel")
	if len(descs) != 2 {
		t.Fatalf("expected Inner and Model, got %+v", descs)
	}
	for _, d := range descs {
		if d.ClassName == "Unrelated" {
			t.Error("class outside the base hierarchy must not qualify")
		}
		if d.BaseName != "BaseModel" {
			t.Errorf("descriptor base should be the filter base, got %q", d.BaseName)
		}
	}
}

func TestExtract_Empty(t *testing.T) {
	u := loadUnit(t, "introspect-empty", `from pydantic import BaseModel
`)
	descs := Extract(u, "BaseModel")
	if len(descs) != 0 {
		t.Errorf("expected empty extraction, got %+v", descs)
	}
	if Render(descs) != "" {
		t.Errorf("expected empty render, got %q", Render(descs))
	}
}

func TestRender(t *testing.T) {
	descs := []ClassDescriptor{
		{
			ClassName: "Tag",
			BaseName:  "BaseModel",
			Fields:    []FieldDescriptor{{Name: "label", TypeLabel: "str"}},
		},
		{
			ClassName: "Model",
			BaseName:  "BaseModel",
			Fields: []FieldDescriptor{
				{Name: "question", TypeLabel: "str"},
				{Name: "score", TypeLabel: "float"},
			},
		},
	}

	got := Render(descs)
	want := "class Tag(BaseModel):\n" +
		"  label: str\n" +
		"\n" +
		"class Model(BaseModel):\n" +
		"  question: str\n" +
		"  score: float\n"
	if got != want {
		t.Errorf("unexpected render:\n%q\nwant:\n%q", got, want)
	}
}

func TestUnitIsolation(t *testing.T) {
	// Two units declaring the same class name must not interfere.
	u1 := loadUnit(t, "isolation-1", `class Model:
    a: str
`)
	u2 := loadUnit(t, "isolation-2", `class Model:
    b: int
`)

	m1, ok := u1.Lookup("Model")
	if !ok {
		t.Fatal("unit 1 missing Model")
	}
	m2, ok := u2.Lookup("Model")
	if !ok {
		t.Fatal("unit 2 missing Model")
	}
	if m1.Fields[0].Name != "a" || m2.Fields[0].Name != "b" {
		t.Error("unit lookups returned the wrong declarations")
	}
}

func TestLoad_DuplicateIDRejected(t *testing.T) {
	if _, err := Load("dup-id", []byte("class A:\n    x: int\n")); err != nil {
		t.Fatalf("first Load failed: %v", err)
	}
	_, err := Load("dup-id", []byte("class B:\n    y: int\n"))
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Errorf("expected duplicate id rejection, got %v", err)
	}
}
