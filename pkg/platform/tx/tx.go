// Package tx provides the unit-of-work abstraction: a SQL transaction carried
// in context together with an explicit list of post-commit and post-rollback
// hooks. Hooks are registered by code running inside the transaction and fired
// by the manager after the outcome is known, so side effects like subscriber
// notification never race a transaction that may still roll back.
package tx

import (
	"context"
	"database/sql"
	"time"
)

type ctxKey struct{}

var txKey = ctxKey{}

// UnitOfWork couples a SQL transaction with its outcome hooks.
type UnitOfWork struct {
	tx         *sql.Tx
	onCommit   []func()
	onRollback []func()
}

// Tx returns the underlying SQL transaction.
func (u *UnitOfWork) Tx() *sql.Tx {
	return u.tx
}

// OnCommit registers fn to run after the transaction commits successfully.
// Hooks run in registration order.
func (u *UnitOfWork) OnCommit(fn func()) {
	u.onCommit = append(u.onCommit, fn)
}

// OnRollback registers fn to run after the transaction rolls back.
func (u *UnitOfWork) OnRollback(fn func()) {
	u.onRollback = append(u.onRollback, fn)
}

// With stores a unit of work in context for downstream store usage.
func With(ctx context.Context, uow *UnitOfWork) context.Context {
	if uow == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, uow)
}

// From extracts the unit of work from context if present.
func From(ctx context.Context) (*UnitOfWork, bool) {
	uow, ok := ctx.Value(txKey).(*UnitOfWork)
	return uow, ok
}

const defaultTimeout = 5 * time.Second

// Manager begins transactions and owns hook invocation. It is the only code
// that calls Commit or Rollback, which keeps the outcome hooks honest.
type Manager struct {
	db      *sql.DB
	timeout time.Duration
}

// NewManager constructs a transaction manager over db.
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db, timeout: defaultTimeout}
}

// WithTimeout overrides the default per-transaction timeout.
func (m *Manager) WithTimeout(d time.Duration) *Manager {
	if d > 0 {
		m.timeout = d
	}
	return m
}

// RunInTx runs fn inside a transaction. The unit of work is injected into the
// context handed to fn, so stores and the event publisher can participate.
// Commit hooks fire only after a successful commit; any error path fires the
// rollback hooks instead.
func (m *Manager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	sqlTx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	uow := &UnitOfWork{tx: sqlTx}
	committed := false
	defer func() {
		if committed {
			return
		}
		_ = sqlTx.Rollback()
		for _, hook := range uow.onRollback {
			hook()
		}
	}()

	if err := fn(With(ctx, uow)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return err
	}
	committed = true

	for _, hook := range uow.onCommit {
		hook()
	}
	return nil
}
