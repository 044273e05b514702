package exec

import "github.com/coredb/qlcore/internal/value"

// Scope is a chain of variable bindings: LET statements, FOR loop
// variables, and the implicit $this/$parent bindings a record's own
// compute sees. Lookups walk outward to the enclosing scope, shadowing as
// expected from a block-structured LET.
type Scope struct {
	parent *Scope
	vars   map[string]value.Value
}

// NewScope creates a root scope with no bindings.
func NewScope() *Scope {
	return &Scope{vars: make(map[string]value.Value)}
}

// Child creates a scope nested under s, for a FOR/IF block.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s, vars: make(map[string]value.Value)}
}

// Set binds name in this scope.
func (s *Scope) Set(name string, v value.Value) {
	s.vars[name] = v
}

// Get resolves name by walking outward, returning (value.None{}, false) if
// unbound anywhere in the chain.
func (s *Scope) Get(name string) (value.Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return value.None{}, false
}
