package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// querier покрывает общий набор операций *sql.DB и *sql.Tx,
// чтобы репозитории работали и внутри транзакции, и вне её.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ querier = (*sql.DB)(nil)
	_ querier = (*sql.Tx)(nil)
)

// opContext возвращает контекст операции: транзакционные репозитории
// используют контекст своей транзакции, автономные создают собственный
// с таймаутом.
func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx != nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.Background(), opTimeout)
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == "23505"
}

func isCheckViolation(err error) bool {
	return pgErrorCode(err) == "23514"
}

func isSerializationFailure(err error) bool {
	code := pgErrorCode(err)
	return code == "40001" || code == "40P01"
}
