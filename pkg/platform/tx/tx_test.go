package tx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewManager(db), mock
}

func TestRunInTx_CommitFiresCommitHooksInOrder(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	var fired []string
	err := m.RunInTx(context.Background(), func(ctx context.Context) error {
		uow, ok := From(ctx)
		require.True(t, ok, "unit of work must be in the handed-down context")
		require.NotNil(t, uow.Tx())

		uow.OnCommit(func() { fired = append(fired, "first") })
		uow.OnCommit(func() { fired = append(fired, "second") })
		uow.OnRollback(func() { fired = append(fired, "rollback") })

		assert.Empty(t, fired, "hooks must not fire before the outcome is known")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, fired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_ErrorFiresRollbackHooks(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("state change failed")
	var fired []string
	err := m.RunInTx(context.Background(), func(ctx context.Context) error {
		uow, _ := From(ctx)
		uow.OnCommit(func() { fired = append(fired, "commit") })
		uow.OnRollback(func() { fired = append(fired, "rollback") })
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, []string{"rollback"}, fired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_PanicStillRollsBack(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	rolledBack := false
	require.Panics(t, func() {
		_ = m.RunInTx(context.Background(), func(ctx context.Context) error {
			uow, _ := From(ctx)
			uow.OnRollback(func() { rolledBack = true })
			panic("handler bug")
		})
	})

	assert.True(t, rolledBack)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_BeginFailure(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := m.RunInTx(context.Background(), func(context.Context) error {
		t.Fatal("fn must not run when begin fails")
		return nil
	})
	require.Error(t, err)
}

func TestRunInTx_CommitFailureSkipsCommitHooks(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	committed := false
	var rolledBack bool
	err := m.RunInTx(context.Background(), func(ctx context.Context) error {
		uow, _ := From(ctx)
		uow.OnCommit(func() { committed = true })
		uow.OnRollback(func() { rolledBack = true })
		return nil
	})
	require.Error(t, err)
	assert.False(t, committed)
	assert.True(t, rolledBack, "a failed commit is a rollback as far as hooks are concerned")
}

func TestRunInTx_CancelledContext(t *testing.T) {
	m, _ := newMockManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.RunInTx(ctx, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunInTx_AppliesDefaultDeadline(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	err := m.WithTimeout(time.Minute).RunInTx(context.Background(), func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok, "a deadline is applied when the caller has none")
		assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
		return nil
	})
	require.NoError(t, err)
}

func TestRunInTx_KeepsCallerDeadline(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	parent, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	parentDeadline, _ := parent.Deadline()

	err := m.RunInTx(parent, func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.Equal(t, parentDeadline, deadline)
		return nil
	})
	require.NoError(t, err)
}

func TestWith_NilUnitOfWorkLeavesContextUntouched(t *testing.T) {
	ctx := With(context.Background(), nil)
	_, ok := From(ctx)
	assert.False(t, ok)
}
