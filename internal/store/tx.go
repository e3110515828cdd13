package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/kiranshivaraju/authgraph/internal/apperr"
)

// Tx is one open unit of work. Statements issued through Repositories()
// belong to it until Commit or Rollback.
type Tx interface {
	Repositories() Repositories
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWork opens units of work. The transactional implementation applies
// all statements of a unit atomically; the pass-through one applies each
// statement as it is issued.
type UnitOfWork interface {
	Begin(ctx context.Context) (Tx, error)
	Transactional() bool
}

// InTx runs fn inside a unit of work, committing on success and rolling back
// on error.
func InTx(ctx context.Context, uow UnitOfWork, fn func(repos Repositories) error) error {
	tx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx.Repositories()); err != nil {
		if rErr := tx.Rollback(ctx); rErr != nil {
			return errors.Join(err, rErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

// --- Postgres ---

type pgUnitOfWork struct {
	store *PostgresStore
}

// UnitOfWork returns a transactional unit of work over the store's pool.
func (s *PostgresStore) UnitOfWork() UnitOfWork {
	return &pgUnitOfWork{store: s}
}

func (u *pgUnitOfWork) Transactional() bool { return true }

func (u *pgUnitOfWork) Begin(ctx context.Context) (Tx, error) {
	tx, err := u.store.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "begin transaction")
	}
	return &pgTx{tx: tx, repos: RepositoriesOf(u.store.withTx(tx))}, nil
}

type pgTx struct {
	tx    pgx.Tx
	repos Repositories
}

func (t *pgTx) Repositories() Repositories { return t.repos }

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return apperr.Internal(err, "commit transaction")
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return apperr.Internal(err, "rollback transaction")
	}
	return nil
}

// --- Pass-through ---

type passThrough struct {
	repos Repositories
}

// PassThrough returns a unit of work that issues every statement directly
// against repos. Commit and Rollback do nothing, so a failure leaves earlier
// statements applied.
func PassThrough(repos Repositories) UnitOfWork {
	return &passThrough{repos: repos}
}

func (p *passThrough) Transactional() bool { return false }

func (p *passThrough) Begin(context.Context) (Tx, error) { return p, nil }

func (p *passThrough) Repositories() Repositories { return p.repos }

func (p *passThrough) Commit(context.Context) error { return nil }

func (p *passThrough) Rollback(context.Context) error { return nil }
