package exec

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/coredb/qlcore/internal/ast"
	"github.com/coredb/qlcore/internal/config"
	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/kv"
	"github.com/coredb/qlcore/internal/value"
)

// Executor runs a batch of statements against one kv.Transaction, the
// per-request unit spec.md §4.7 describes: every statement in the batch
// shares the Transaction's read-your-writes overlay, and sees the prior
// statements' LET bindings through the carried Scope.
type Executor struct {
	tx    *kv.Transaction
	opts  Options
	cat   *Catalog
	knobs config.Knobs
	log   *logrus.Entry
	scope *Scope
}

// NewExecutor constructs an Executor bound to tx. cat is the schema
// catalog shared by every Executor over the same backend (see catalog.go).
func NewExecutor(tx *kv.Transaction, opts Options, cat *Catalog, knobs config.Knobs, log *logrus.Entry) *Executor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Executor{tx: tx, opts: opts, cat: cat, knobs: knobs, log: log, scope: NewScope()}
}

// Result is one statement's outcome: the value it produced (an Array for
// SELECT/CREATE/UPDATE/DELETE/INSERT, a scalar for RETURN, None for pure
// side-effecting statements like DEFINE/USE).
type Result struct {
	Value value.Value
}

// controlSignal is what execOne reports to Execute's statement loop to
// unwind it early: RETURN and CANCEL both stop
// processing remaining statements without that being a request-level
// failure, so it is not surfaced to the caller as an error.
type controlSignal int

const (
	controlNone controlSignal = iota
	controlReturn
	controlCancelled
)

// Execute runs stmts in order against e's Transaction, honoring BEGIN/
// COMMIT/CANCEL as markers around the batch (spec.md §4.6/§4.7): since the
// whole batch already shares one Transaction, BEGIN is a no-op, COMMIT
// finalizes the Transaction and stops the batch, and CANCEL discards it
// and stops the batch. A bare statement sequence with no explicit BEGIN/
// COMMIT auto-commits once every statement has run.
func (e *Executor) Execute(ctx context.Context, stmts []ast.Statement) ([]Result, error) {
	results := make([]Result, 0, len(stmts))
	committed := false
	cancelled := false
	for _, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return results, errs.Wrap(errs.Timeout, err, "statement batch cancelled")
		}
		res, sig, err := e.execOne(ctx, stmt, e.scope)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		switch sig {
		case controlReturn:
			return results, nil
		case controlCancelled:
			cancelled = true
		}
		if cancelled {
			break
		}
		if _, ok := stmt.(*ast.CommitStmt); ok {
			committed = true
			break
		}
	}
	if cancelled {
		if err := e.tx.Cancel(ctx); err != nil {
			return results, err
		}
		return results, nil
	}
	if !committed {
		if err := e.tx.Commit(ctx); err != nil {
			return results, err
		}
	}
	return results, nil
}

func (e *Executor) execOne(ctx context.Context, stmt ast.Statement, scope *Scope) (Result, controlSignal, error) {
	switch s := stmt.(type) {
	case *ast.BeginStmt:
		return Result{Value: value.None{}}, controlNone, nil
	case *ast.CommitStmt:
		if err := e.tx.Commit(ctx); err != nil {
			return Result{}, controlNone, err
		}
		return Result{Value: value.None{}}, controlNone, nil
	case *ast.CancelStmt:
		return Result{Value: value.None{}}, controlCancelled, nil
	case *ast.UseStmt:
		if s.Namespace != "" {
			e.opts.Namespace = s.Namespace
		}
		if s.Database != "" {
			e.opts.Database = s.Database
		}
		return Result{Value: value.None{}}, controlNone, nil
	case *ast.LetStmt:
		v, err := Eval(ctx, EvalContext{Scope: scope, Exec: e}, s.Value)
		if err != nil {
			return Result{}, controlNone, err
		}
		scope.Set(s.Name, v)
		return Result{Value: v}, controlNone, nil
	case *ast.ReturnStmt:
		v, err := Eval(ctx, EvalContext{Scope: scope, Exec: e}, s.Value)
		if err != nil {
			return Result{}, controlNone, err
		}
		return Result{Value: v}, controlReturn, nil
	case *ast.IfStmt:
		return e.execIf(ctx, s, scope)
	case *ast.ForStmt:
		return e.execFor(ctx, s, scope)
	case *ast.InfoStmt:
		v, err := e.execInfo(ctx, s)
		return Result{Value: v}, controlNone, err
	case *ast.DefineTableStmt:
		err := e.execDefineTable(ctx, s)
		return Result{Value: value.None{}}, controlNone, err
	case *ast.DefineFieldStmt:
		err := e.execDefineField(ctx, s)
		return Result{Value: value.None{}}, controlNone, err
	case *ast.DefineIndexStmt:
		err := e.execDefineIndex(ctx, s)
		return Result{Value: value.None{}}, controlNone, err
	case *ast.DefineUserStmt:
		err := e.execDefineUser(ctx, s)
		return Result{Value: value.None{}}, controlNone, err
	case *ast.RemoveStmt:
		err := e.execRemove(ctx, s)
		return Result{Value: value.None{}}, controlNone, err
	case *ast.SelectStmt:
		rows, err := e.runSelect(ctx, s, scope)
		if err != nil {
			return Result{}, controlNone, err
		}
		return Result{Value: outputValue(rows, s.Only)}, controlNone, nil
	case *ast.CreateStmt:
		rows, err := e.execCreate(ctx, s, scope)
		if err != nil {
			return Result{}, controlNone, err
		}
		return Result{Value: outputValue(rows, s.Only)}, controlNone, nil
	case *ast.UpdateStmt:
		rows, err := e.execUpdate(ctx, s, scope)
		if err != nil {
			return Result{}, controlNone, err
		}
		return Result{Value: outputValue(rows, s.Only)}, controlNone, nil
	case *ast.DeleteStmt:
		rows, err := e.execDelete(ctx, s, scope)
		if err != nil {
			return Result{}, controlNone, err
		}
		return Result{Value: outputValue(rows, s.Only)}, controlNone, nil
	case *ast.InsertStmt:
		rows, err := e.execInsert(ctx, s, scope)
		if err != nil {
			return Result{}, controlNone, err
		}
		return Result{Value: outputValue(rows, false)}, controlNone, nil
	case *ast.RelateStmt:
		rows, err := e.execRelate(ctx, s, scope)
		if err != nil {
			return Result{}, controlNone, err
		}
		return Result{Value: outputValue(rows, s.Only)}, controlNone, nil
	default:
		return Result{}, controlNone, errs.New(errs.Internal, "unhandled statement kind")
	}
}

// outputValue wraps the rows a write/select statement produced: ONLY
// collapses a single-row result to that row directly (spec.md §4.3's
// ONLY modifier), otherwise every statement returns an Array, even when
// empty, so callers never have to special-case "no rows".
func outputValue(rows []value.Value, only bool) value.Value {
	if only {
		if len(rows) == 0 {
			return value.None{}
		}
		return rows[0]
	}
	arr := make(value.Array, len(rows))
	copy(arr, rows)
	return arr
}

func (e *Executor) execIf(ctx context.Context, s *ast.IfStmt, scope *Scope) (Result, controlSignal, error) {
	cond, err := Eval(ctx, EvalContext{Scope: scope, Exec: e}, s.Cond)
	if err != nil {
		return Result{}, controlNone, err
	}
	if truthy(cond) {
		return e.execBlock(ctx, s.Then, scope.Child())
	}
	for _, branch := range s.ElseIf {
		c, err := Eval(ctx, EvalContext{Scope: scope, Exec: e}, branch.Cond)
		if err != nil {
			return Result{}, controlNone, err
		}
		if truthy(c) {
			return e.execBlock(ctx, branch.Then, scope.Child())
		}
	}
	if s.Else != nil {
		return e.execBlock(ctx, s.Else, scope.Child())
	}
	return Result{Value: value.None{}}, controlNone, nil
}

func (e *Executor) execFor(ctx context.Context, s *ast.ForStmt, scope *Scope) (Result, controlSignal, error) {
	in, err := Eval(ctx, EvalContext{Scope: scope, Exec: e}, s.In)
	if err != nil {
		return Result{}, controlNone, err
	}
	arr, ok := in.(value.Array)
	if !ok {
		return Result{}, controlNone, errs.New(errs.Conversion, "FOR ... IN expects an array")
	}
	for _, item := range arr {
		child := scope.Child()
		child.Set(s.Var, item)
		res, sig, err := e.execBlock(ctx, s.Body, child)
		if err != nil {
			return Result{}, controlNone, err
		}
		if sig == controlReturn {
			return res, sig, nil
		}
	}
	return Result{Value: value.None{}}, controlNone, nil
}

func (e *Executor) execBlock(ctx context.Context, stmts []ast.Statement, scope *Scope) (Result, controlSignal, error) {
	var last Result
	for _, s := range stmts {
		res, sig, err := e.execOne(ctx, s, scope)
		if err != nil {
			return Result{}, controlNone, err
		}
		last = res
		if sig == controlReturn {
			return res, sig, nil
		}
	}
	return last, controlNone, nil
}

// loadRecord is the Executor-bound form idiom.go's Field/RecordID
// dereference case calls to follow a bare record id into its body.
func (e *Executor) loadRecord(ctx context.Context, rid value.RecordID) (value.Object, bool, error) {
	return loadRecord(ctx, e.tx, e.opts.Namespace, e.opts.Database, rid)
}
