package synth

import "sync"

// Unit is a loaded piece of generated source: the parsed class declarations
// addressable by a process-unique unit ID. Units are immutable after load and
// are never merged; two units may declare classes with the same name without
// interfering, because all lookups go through the unit handle.
type Unit struct {
	id   string
	file *sourceFile
}

// ID returns the unit's unique identifier.
func (u *Unit) ID() string { return u.id }

// Lookup returns the class declared in this unit under name, if any.
// Imported names are not visible through Lookup.
func (u *Unit) Lookup(name string) (*Class, bool) {
	c, ok := u.file.declared[name]
	return c, ok
}

// Classes returns the unit's class declarations in declaration order.
func (u *Unit) Classes() []*Class {
	return u.file.classes
}

// unitRegistry is the one piece of process-wide state the loader maintains.
// Registration is append-only and mutex-guarded: units are never removed or
// replaced mid-process, and the mutation is serialized so concurrent loads
// cannot race. Parsing itself happens outside the lock.
var unitRegistry = struct {
	mu    sync.Mutex
	units map[string]*Unit
}{units: make(map[string]*Unit)}

// Load parses source text and registers it as a new unit under id. IDs are
// derived from artifact names and must never be reused, even for identical
// content; reuse is rejected to preserve unit isolation.
func Load(id string, src []byte) (*Unit, error) {
	file, err := parseSource(src)
	if err != nil {
		return nil, err
	}

	unit := &Unit{id: id, file: file}

	unitRegistry.mu.Lock()
	defer unitRegistry.mu.Unlock()
	if _, exists := unitRegistry.units[id]; exists {
		return nil, stageErr(StageLoad, ErrLoadFailed, "unit id %q already registered", id)
	}
	unitRegistry.units[id] = unit

	return unit, nil
}

// LoadedUnit returns a previously loaded unit by ID.
func LoadedUnit(id string) (*Unit, bool) {
	unitRegistry.mu.Lock()
	defer unitRegistry.mu.Unlock()
	u, ok := unitRegistry.units[id]
	return u, ok
}

// LoadedUnitCount reports how many units have been registered in this process.
func LoadedUnitCount() int {
	unitRegistry.mu.Lock()
	defer unitRegistry.mu.Unlock()
	return len(unitRegistry.units)
}
