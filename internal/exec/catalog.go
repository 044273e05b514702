package exec

import (
	"sync"

	"github.com/coredb/qlcore/internal/ast"
)

// Catalog is the in-process authoritative schema store shared by every
// Executor bound to the same backend (spec.md §4.7's DEFINE/REMOVE
// statements mutate it; SELECT/CREATE/UPDATE consult it for coercion and
// permission enforcement). Unlike kv.DefinitionCache (an LRU acceleration
// layer that may evict and re-derive), Catalog must never silently forget
// an entry: schema is authoritative, not a cache of something re-derivable
// from a cheaper source.
//
// DEFINE FIELD/TABLE clauses that carry an expression (VALUE, ASSERT,
// DEFAULT, PERMISSIONS ... WHERE, a table VIEW's SELECT) only survive for
// the lifetime of the process holding this Catalog: qlcore does not
// serialize ast.Expr trees into the KV plane. definitions.go writes coarse
// markers (TYPE, FLEXIBLE, READONLY, SCHEMAFULL, index fields, user roles)
// under the keys package's definition categories, but nothing reads them
// back: NewCatalog starts empty, so a process restarting against an
// existing backend has no definitions until the DEFINE statements run
// again.
type Catalog struct {
	mu      sync.RWMutex
	tables  map[string]*ast.DefineTableStmt
	fields  map[string]*ast.DefineFieldStmt
	indexes map[string]*ast.DefineIndexStmt
	users   map[string]*ast.DefineUserStmt
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		tables:  make(map[string]*ast.DefineTableStmt),
		fields:  make(map[string]*ast.DefineFieldStmt),
		indexes: make(map[string]*ast.DefineIndexStmt),
		users:   make(map[string]*ast.DefineUserStmt),
	}
}

func tableKey(ns, db, tb string) string  { return ns + "\x00" + db + "\x00" + tb }
func fieldKey(ns, db, tb, f string) string {
	return ns + "\x00" + db + "\x00" + tb + "\x00" + f
}
func indexKey(ns, db, tb, ix string) string {
	return ns + "\x00" + db + "\x00" + tb + "\x00" + ix
}
func userKey(ns, db, name string) string { return ns + "\x00" + db + "\x00" + name }

func (c *Catalog) PutTable(ns, db string, d *ast.DefineTableStmt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[tableKey(ns, db, d.Name)] = d
}

func (c *Catalog) Table(ns, db, tb string) (*ast.DefineTableStmt, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.tables[tableKey(ns, db, tb)]
	return d, ok
}

// TablesOf returns every table defined in ns/db, used by INFO FOR DATABASE.
func (c *Catalog) TablesOf(ns, db string) []*ast.DefineTableStmt {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prefix := ns + "\x00" + db + "\x00"
	var out []*ast.DefineTableStmt
	for k, d := range c.tables {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, d)
		}
	}
	return out
}

func (c *Catalog) RemoveTable(ns, db, tb string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, tableKey(ns, db, tb))
	for k := range c.fields {
		if hasTablePrefix(k, ns, db, tb) {
			delete(c.fields, k)
		}
	}
	for k := range c.indexes {
		if hasTablePrefix(k, ns, db, tb) {
			delete(c.indexes, k)
		}
	}
}

func hasTablePrefix(key, ns, db, tb string) bool {
	prefix := ns + "\x00" + db + "\x00" + tb + "\x00"
	return len(key) >= len(prefix) && key[:len(prefix)] == prefix
}

func (c *Catalog) PutField(ns, db string, d *ast.DefineFieldStmt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields[fieldKey(ns, db, d.Table, d.Name)] = d
}

func (c *Catalog) Field(ns, db, tb, name string) (*ast.DefineFieldStmt, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.fields[fieldKey(ns, db, tb, name)]
	return d, ok
}

// FieldsOf returns every field defined on tb, in definition order is not
// preserved (map-backed); callers that need INFO FOR TABLE's listing sort
// by name themselves.
func (c *Catalog) FieldsOf(ns, db, tb string) []*ast.DefineFieldStmt {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prefix := ns + "\x00" + db + "\x00" + tb + "\x00"
	var out []*ast.DefineFieldStmt
	for k, d := range c.fields {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, d)
		}
	}
	return out
}

func (c *Catalog) RemoveField(ns, db, tb, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.fields, fieldKey(ns, db, tb, name))
}

func (c *Catalog) PutIndex(ns, db string, d *ast.DefineIndexStmt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes[indexKey(ns, db, d.Table, d.Name)] = d
}

func (c *Catalog) IndexesOf(ns, db, tb string) []*ast.DefineIndexStmt {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prefix := ns + "\x00" + db + "\x00" + tb + "\x00"
	var out []*ast.DefineIndexStmt
	for k, d := range c.indexes {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, d)
		}
	}
	return out
}

func (c *Catalog) RemoveIndex(ns, db, tb, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.indexes, indexKey(ns, db, tb, name))
}

func (c *Catalog) PutUser(ns, db string, d *ast.DefineUserStmt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[userKey(ns, db, d.Name)] = d
}

func (c *Catalog) User(ns, db, name string) (*ast.DefineUserStmt, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.users[userKey(ns, db, name)]
	return d, ok
}

// UsersOf returns every user defined in ns/db, used by INFO FOR DATABASE
// and INFO FOR ROOT (db == "" for root/namespace-scoped users).
func (c *Catalog) UsersOf(ns, db string) []*ast.DefineUserStmt {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prefix := ns + "\x00" + db + "\x00"
	var out []*ast.DefineUserStmt
	for k, d := range c.users {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, d)
		}
	}
	return out
}

func (c *Catalog) RemoveUser(ns, db, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, userKey(ns, db, name))
}
