package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"userrepo/internal/errs"
	"userrepo/internal/repository"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Mapper describes how an entity type maps onto one table.
// Columns[0] must be the primary key; Values returns arguments in Columns order.
type Mapper[T any, ID comparable] struct {
	Table   string
	Columns []string
	OrderBy string
	ID      func(T) ID
	Values  func(T) []any
	Scan    func(Scanner) (T, error)
}

// Base is a PostgreSQL implementation of repository.Base.
// It uses database/sql with parameterized queries and contains no business logic.
type Base[T any, ID comparable] struct {
	db *sql.DB
	m  Mapper[T, ID]

	selectCols string
}

// NewBase creates a generic table repository.
func NewBase[T any, ID comparable](db *sql.DB, m Mapper[T, ID]) *Base[T, ID] {
	return &Base[T, ID]{
		db:         db,
		m:          m,
		selectCols: strings.Join(m.Columns, ", "),
	}
}

// DB exposes the pool for dedicated queries.
func (b *Base[T, ID]) DB() *sql.DB { return b.db }

// Create inserts a new row and returns the stored record.
func (b *Base[T, ID]) Create(ctx context.Context, entity T) (*T, error) {
	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		b.m.Table, b.selectCols, placeholders(1, len(b.m.Columns)), b.selectCols,
	)
	out, err := b.m.Scan(b.db.QueryRowContext(ctx, q, b.m.Values(entity)...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errs.AlreadyExists(b.m.ID(entity))
		}
		return nil, errs.Database("insert "+b.m.Table, err)
	}
	return &out, nil
}

// FindByID fetches a single row by its primary key.
func (b *Base[T, ID]) FindByID(ctx context.Context, id ID) (*T, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", b.selectCols, b.m.Table, b.m.Columns[0])
	out, err := b.m.Scan(b.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Database("select "+b.m.Table, err)
	}
	return &out, nil
}

// Update locks the row, applies patch and writes every non-key column back
// within one transaction.
func (b *Base[T, ID]) Update(ctx context.Context, id ID, patch func(*T) error) (*T, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Database("begin update "+b.m.Table, err)
	}
	defer func() { _ = tx.Rollback() }()

	qLock := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 FOR UPDATE", b.selectCols, b.m.Table, b.m.Columns[0])
	current, err := b.m.Scan(tx.QueryRowContext(ctx, qLock, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound(id)
		}
		return nil, errs.Database("lock "+b.m.Table, err)
	}

	if err := patch(&current); err != nil {
		return nil, err
	}
	if b.m.ID(current) != id {
		return nil, errs.Internal("identifier is immutable", nil)
	}

	sets := make([]string, 0, len(b.m.Columns)-1)
	for i, col := range b.m.Columns[1:] {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+2))
	}
	qUpdate := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = $1 RETURNING %s",
		b.m.Table, strings.Join(sets, ", "), b.m.Columns[0], b.selectCols,
	)
	out, err := b.m.Scan(tx.QueryRowContext(ctx, qUpdate, b.m.Values(current)...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflict(err)
		}
		return nil, errs.Database("update "+b.m.Table, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Database("commit update "+b.m.Table, err)
	}
	return &out, nil
}

// Delete removes a row by primary key; zero affected rows means NotFound.
func (b *Base[T, ID]) Delete(ctx context.Context, id ID) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", b.m.Table, b.m.Columns[0])
	res, err := b.db.ExecContext(ctx, q, id)
	if err != nil {
		return errs.Database("delete "+b.m.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Database("delete "+b.m.Table, err)
	}
	if n == 0 {
		return errs.NotFound(id)
	}
	return nil
}

// List returns rows using LIMIT/OFFSET pagination and a total count.
func (b *Base[T, ID]) List(ctx context.Context, p repository.Pagination) (*repository.PageResult[T], error) {
	p = p.Normalize()

	total, err := b.Count(ctx)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT $1 OFFSET $2", b.selectCols, b.m.Table, b.orderBy())
	items, err := b.queryAll(ctx, q, p.Limit(), p.Offset())
	if err != nil {
		return nil, err
	}
	return repository.NewPageResult(items, total, p), nil
}

// Find translates q into a WHERE clause. Fields must be mapped columns.
func (b *Base[T, ID]) Find(ctx context.Context, q repository.Query) ([]T, error) {
	var (
		where []string
		args  []any
	)
	for _, c := range q.Conditions {
		if !slices.Contains(b.m.Columns, c.Field) {
			return nil, errs.Internal(fmt.Sprintf("unknown column %q", c.Field), nil)
		}
		switch c.Op {
		case repository.OpEq, repository.OpGte, repository.OpLte:
		default:
			return nil, errs.Internal(fmt.Sprintf("unsupported operator %q", c.Op), nil)
		}
		args = append(args, c.Value)
		where = append(where, fmt.Sprintf("%s %s $%d", c.Field, c.Op, len(args)))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", b.selectCols, b.m.Table)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	fmt.Fprintf(&sb, " ORDER BY %s", b.orderBy())
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return b.queryAll(ctx, sb.String(), args...)
}

// Exists reports whether a row with id is present.
func (b *Base[T, ID]) Exists(ctx context.Context, id ID) (bool, error) {
	q := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)", b.m.Table, b.m.Columns[0])
	var ok bool
	if err := b.db.QueryRowContext(ctx, q, id).Scan(&ok); err != nil {
		return false, errs.Database("exists "+b.m.Table, err)
	}
	return ok, nil
}

// Count returns the number of rows.
func (b *Base[T, ID]) Count(ctx context.Context) (int, error) {
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", b.m.Table)
	var total int
	if err := b.db.QueryRowContext(ctx, q).Scan(&total); err != nil {
		return 0, errs.Database("count "+b.m.Table, err)
	}
	return total, nil
}

func (b *Base[T, ID]) queryAll(ctx context.Context, q string, args ...any) ([]T, error) {
	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.Database("query "+b.m.Table, err)
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		item, err := b.m.Scan(rows)
		if err != nil {
			return nil, errs.Database("scan "+b.m.Table, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Database("query "+b.m.Table, err)
	}
	return items, nil
}

func (b *Base[T, ID]) orderBy() string {
	if b.m.OrderBy != "" {
		return b.m.OrderBy
	}
	return b.m.Columns[0]
}

func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ps, ", ")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func conflict(err error) error {
	var pgErr *pgconn.PgError
	errors.As(err, &pgErr)
	return &errs.Error{
		Kind: errs.KindAlreadyExists,
		Msg:  "unique constraint violated: " + pgErr.ConstraintName,
		Err:  err,
	}
}
