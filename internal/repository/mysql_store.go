package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so that every query is
// written once and used inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// MySQLStore implements Store on InnoDB.  Row locks are taken with
// SELECT ... FOR UPDATE and released when the transaction ends.
type MySQLStore struct {
	db  *sql.DB
	log *zap.Logger
}

// NewMySQLStore returns a store bound to db.
func NewMySQLStore(db *sql.DB, log *zap.Logger) *MySQLStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &MySQLStore{db: db, log: log.Named("mysql")}
}

// DB exposes the underlying pool.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// InTx begins a transaction, runs fn and commits when fn succeeds.
func (s *MySQLStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.log.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()
	if err := fn(ctx, &mysqlTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// mysqlTx implements Tx over one *sql.Tx.
type mysqlTx struct {
	q querier
}

// dateArg formats a day for DATE column comparisons.
func dateArg(t time.Time) string {
	return model.Day(t).Format(model.DateLayout)
}

// isDuplicate reports a MySQL 1062 duplicate key error.
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}

// placeholders returns "(?, ?, ...)" groups for bulk inserts.
func placeholders(rows, cols int) string {
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", cols), ", ") + ")"
	parts := make([]string, rows)
	for i := range parts {
		parts[i] = group
	}
	return strings.Join(parts, ", ")
}

// notFound maps sql.ErrNoRows onto ErrNotFound.
func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return err
}
