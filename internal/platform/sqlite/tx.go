package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"dynsched/pkg/retry"
)

type txKey struct{}

// Querier объединяет методы выполнения запросов, общие для БД и транзакции.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// ErrNestedTx возвращается при попытке открыть транзакцию внутри транзакции.
var ErrNestedTx = errors.New("nested transactions are not supported by SQLite")

// TxRunner выполняет функцию внутри транзакции и повторяет ее при SQLITE_BUSY.
type TxRunner struct {
	DB    *sql.DB
	Retry retry.Config
}

// NewTxRunner создает TxRunner с короткой политикой повторов.
func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{
		DB: db,
		Retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
			Jitter:       retry.JitterEqual,
		},
	}
}

// WithinTx выполняет fn в транзакции: коммит при nil, откат при ошибке.
// Внутри fn транзакция доступна через Querier(ctx).
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return ErrNestedTx
	}
	return retry.DoWithClassifier(ctx, r.Retry, func(ctx context.Context) error {
		return r.runOnce(ctx, fn)
	}, IsBusy)
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Querier возвращает активную транзакцию из контекста или саму БД.
func (r *TxRunner) Querier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return r.DB
}

// IsBusy сообщает, что ошибка вызвана блокировкой БД (SQLITE_BUSY / SQLITE_LOCKED).
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database table is locked")
}
