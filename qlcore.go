// Package qlcore is the embeddable core of a multi-model database server:
// parse a query-language source into statements, and run them against a
// pluggable key-value Backend through a transactional Executor (spec.md
// §1). A caller (an HTTP/WS API layer, a CLI, an embedding application)
// owns the Backend and the surrounding network plumbing; this package owns
// parsing, the value algebra, the key layout, and statement compute.
package qlcore

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/config"
	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/exec"
	"github.com/coredb/qlcore/internal/kv"
	"github.com/coredb/qlcore/internal/parser"
)

// Store bundles the long-lived state one running qlcore instance shares
// across every request: the storage Backend, its definitions cache, the
// schema Catalog, and the configured Knobs. Construct one Store at process
// start and reuse it for every Session.
type Store struct {
	Backend kv.Backend
	Cache   *kv.DefinitionCache
	Catalog *exec.Catalog
	Knobs   config.Knobs
	Log     *logrus.Entry
}

// NewStore wires a Backend into a ready-to-use Store, applying config
// defaults for anything the caller leaves zero.
func NewStore(backend kv.Backend, knobs config.Knobs) *Store {
	return &Store{
		Backend: backend,
		Cache:   kv.NewDefinitionCache(2048),
		Catalog: exec.NewCatalog(),
		Knobs:   knobs,
		Log:     logrus.NewEntry(logrus.StandardLogger()),
	}
}

// Session is one authenticated caller's namespace/database scope, the unit
// Execute runs a query string's statements within.
type Session struct {
	store *Store
	opts  exec.Options
}

// NewSession binds a Store to a request-scoped Options (GLOSSARY: Base).
func NewSession(store *Store, opts exec.Options) *Session {
	return &Session{store: store, opts: opts}
}

// Parse lexes and parses src into its statement list without executing it,
// exposed so callers can validate a query before committing to running it.
func Parse(src string) ([]ast.Statement, error) {
	return parser.New([]byte(src)).ParseStatements()
}

// Execute parses src and runs its statements against the session's Store,
// re-running the whole batch against a fresh Transaction on a Conflict
// error, with at most Knobs.MaxCommitRetries attempts in all and no delay
// between them (spec.md §7: retry is the executor's
// responsibility, not the Transaction's, since re-applying a stale overlay
// would not re-validate the reads that produced it).
func (s *Session) Execute(ctx context.Context, src string) ([]exec.Result, error) {
	stmts, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return s.ExecuteStatements(ctx, stmts)
}

// ExecuteStatements runs an already-parsed statement batch, the same
// retry-on-Conflict loop Execute uses.
func (s *Session) ExecuteStatements(ctx context.Context, stmts []ast.Statement) ([]exec.Result, error) {
	maxRetries := s.store.Knobs.MaxCommitRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		tx, err := kv.Open(ctx, s.store.Backend, false, s.store.Cache, s.store.Log, s.store.Knobs.MaxCommitRetries)
		if err != nil {
			return nil, err
		}
		ex := exec.NewExecutor(tx, s.opts, s.store.Catalog, s.store.Knobs, s.store.Log)
		results, err := ex.Execute(ctx, stmts)
		if err == nil {
			return results, nil
		}
		lastErr = err
		if !errs.KindOf(err).Retriable() {
			return results, err
		}
		s.store.Log.WithError(err).WithField("attempt", attempt+1).Warn("retrying statement batch after conflict")
	}
	return nil, lastErr
}
