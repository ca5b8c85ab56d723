package sqlguard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
)

// ErrUnsafeSQL is returned for any text that is not exactly one read-only
// SELECT statement.
var ErrUnsafeSQL = errors.New("unsafe sql")

// Guard parses SQL with the MySQL-dialect TiDB parser.
type Guard struct {
	mu sync.Mutex
	p  *parser.Parser
}

// New constructs a Guard.
func New() *Guard {
	return &Guard{p: parser.New()}
}

// Check returns ErrUnsafeSQL unless sql is a single plain SELECT. Locking
// reads and SELECT ... INTO are rejected.
func (g *Guard) Check(sql string) error {
	g.mu.Lock()
	stmts, _, err := g.p.Parse(sql, "", "")
	g.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeSQL, err)
	}
	if len(stmts) != 1 {
		return fmt.Errorf("%w: expected one statement, got %d", ErrUnsafeSQL, len(stmts))
	}
	sel, ok := stmts[0].(*ast.SelectStmt)
	if !ok {
		return fmt.Errorf("%w: %T is not a select", ErrUnsafeSQL, stmts[0])
	}
	if sel.SelectIntoOpt != nil {
		return fmt.Errorf("%w: select into", ErrUnsafeSQL)
	}
	if sel.LockInfo != nil && sel.LockInfo.LockType != ast.SelectLockNone {
		return fmt.Errorf("%w: locking read", ErrUnsafeSQL)
	}
	return nil
}

// Querier executes a read query and returns positional rows.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) ([][]interface{}, error)
}

type guarded struct {
	guard *Guard
	next  Querier
}

// Wrap returns a Querier that checks every query before delegating to next.
func (g *Guard) Wrap(next Querier) Querier {
	return &guarded{guard: g, next: next}
}

func (q *guarded) Query(ctx context.Context, query string, args ...interface{}) ([][]interface{}, error) {
	if err := q.guard.Check(query); err != nil {
		return nil, err
	}
	return q.next.Query(ctx, query, args...)
}
